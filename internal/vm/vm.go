// Package vm executes compiled oyc bytecode: a single dispatch loop over a
// stack of register-window frames (spec.md §4.4).
package vm

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/oyc-lang/oyc/internal/bytecode"
	"github.com/oyc-lang/oyc/internal/compiler"
	"github.com/oyc-lang/oyc/internal/lexer"
	"github.com/oyc-lang/oyc/internal/parser"
)

// Loader resolves a require()d script path to its source text. The host
// supplies this; the VM never touches the filesystem directly.
type Loader func(path string) (string, error)

// frame is one call's register window (spec.md §4.4). regs is allocated
// once at RegisterCount and never reallocated, so &regs[i] is a stable
// address an upvalue can point at for the frame's whole lifetime.
type frame struct {
	closure       *Closure
	proto         *bytecode.Prototype
	regs          []Value
	ip            int
	lastOp        int
	retReg        uint8
	isRequireRoot bool
}

// VM executes one or more scripts against a shared global namespace and
// heap. It is single-threaded and non-suspending (spec.md §5): Run blocks
// until the script completes or errors.
type VM struct {
	globals      map[string]Value
	frames       []*frame
	openUpvalues map[*Value]*upvalue
	scriptDirs   []string
	load         Loader

	traceHook TraceHook
	instLimit int64
	instCount int64
	maxFrames int
	out       io.Writer
}

// defaultMaxFrames bounds call/require recursion depth absent an explicit
// SetMaxFrames, so runaway recursion fails with a runtime error instead of
// exhausting the host process's own goroutine stack.
const defaultMaxFrames = 4096

// New creates a VM whose require() calls resolve source text via load.
// trace() writes to os.Stdout until overridden with SetOutput.
func New(load Loader) *VM {
	vm := &VM{
		globals:      make(map[string]Value),
		openUpvalues: make(map[*Value]*upvalue),
		load:         load,
		maxFrames:    defaultMaxFrames,
		out:          os.Stdout,
	}
	installBuiltins(vm)
	return vm
}

// SetOutput redirects trace()'s host sink (spec.md §4.6).
func (vm *VM) SetOutput(w io.Writer) { vm.out = w }

// Output returns trace()'s current host sink.
func (vm *VM) Output() io.Writer { return vm.out }

// Trace renders v the way trace() formats it (spec.md §4.6).
func Trace(v Value) string { return stringify(v) }

// SetTraceHook installs h to observe every instruction dispatch, or clears
// it if h is nil.
func (vm *VM) SetTraceHook(h TraceHook) { vm.traceHook = h }

// SetInstructionLimit aborts the run with a runtime error once more than n
// instructions have been dispatched. n <= 0 disables the limit.
func (vm *VM) SetInstructionLimit(n int64) { vm.instLimit = n }

// SetMaxFrames bounds call/require recursion depth. n <= 0 disables the
// limit entirely (the host's own stack becomes the only ceiling).
func (vm *VM) SetMaxFrames(n int) { vm.maxFrames = n }

// DefineGlobal binds name in the VM's global namespace, ahead of running
// any script (e.g. host-provided functions beyond the builtin set).
func (vm *VM) DefineGlobal(name string, v Value) { vm.globals[name] = v }

// Global looks up a name in the VM's global namespace.
func (vm *VM) Global(name string) (Value, bool) {
	v, ok := vm.globals[name]
	return v, ok
}

// RunModule executes mod's entry prototype as the top-level script, with
// argv as the initial command-line vector (spec.md §4.5) and scriptDir as
// the directory require() paths resolve relative to.
func (vm *VM) RunModule(mod *bytecode.Module, scriptDir string, argv []Value) (Value, error) {
	closure := &Closure{Proto: mod.Entry, Name: mod.Entry.Name}
	vm.scriptDirs = append(vm.scriptDirs, scriptDir)
	if _, err := vm.pushClosureFrame(closure, []Value{NewArray(append([]Value(nil), argv...))}, 0, true); err != nil {
		return Value{}, err
	}
	return vm.loop()
}

func (vm *VM) pushClosureFrame(clos *Closure, args []Value, retReg uint8, isRequireRoot bool) (*frame, error) {
	if vm.maxFrames > 0 && len(vm.frames) >= vm.maxFrames {
		var caller *frame
		if len(vm.frames) > 0 {
			caller = vm.frames[len(vm.frames)-1]
		}
		return nil, vm.errorf(caller, "stack overflow: exceeded max call depth of %d", vm.maxFrames)
	}
	proto := clos.Proto
	regs := make([]Value, proto.RegisterCount)
	n := len(args)
	if n > proto.NumParams {
		n = proto.NumParams
	}
	copy(regs, args[:n])
	fr := &frame{closure: clos, proto: proto, regs: regs, ip: 0, lastOp: -1, retReg: retReg, isRequireRoot: isRequireRoot}
	vm.frames = append(vm.frames, fr)
	return fr, nil
}

// loop is the single dispatch loop spec.md §4.4 requires: it runs until
// the outermost frame returns or an error aborts the whole run.
func (vm *VM) loop() (Value, error) {
	for {
		fr := vm.frames[len(vm.frames)-1]
		op, a, b, c, nextIP, err := bytecode.Decode(fr.proto.Chunk.Code, fr.ip)
		if err != nil {
			return Value{}, vm.errorf(fr, "%s", err.Error())
		}
		vm.instCount++
		if vm.instLimit > 0 && vm.instCount > vm.instLimit {
			return Value{}, vm.errorf(fr, "instruction limit exceeded")
		}
		fr.lastOp = fr.ip
		vm.emitTrace(fr, op)

		switch op {
		case bytecode.OP_NOP:
			fr.ip = nextIP

		case bytecode.OP_LOAD_NULL:
			fr.regs[a] = Null()
			fr.ip = nextIP
		case bytecode.OP_LOAD_VOID:
			fr.regs[a] = Void()
			fr.ip = nextIP
		case bytecode.OP_LOAD_BOOL:
			fr.regs[a] = Bool(b != 0)
			fr.ip = nextIP
		case bytecode.OP_LOAD_CONST:
			fr.regs[a] = constToValue(fr.proto.Chunk.Consts[b])
			fr.ip = nextIP
		case bytecode.OP_MOVE:
			fr.regs[a] = fr.regs[b]
			fr.ip = nextIP

		case bytecode.OP_GET_GLOBAL:
			name := fr.proto.Chunk.Consts[b].(string)
			if v, ok := vm.globals[name]; ok {
				fr.regs[a] = v
			} else {
				fr.regs[a] = Null()
			}
			fr.ip = nextIP
		case bytecode.OP_SET_GLOBAL:
			name := fr.proto.Chunk.Consts[b].(string)
			vm.globals[name] = fr.regs[a]
			fr.ip = nextIP

		case bytecode.OP_ADD, bytecode.OP_SUB, bytecode.OP_MUL, bytecode.OP_DIV, bytecode.OP_MOD,
			bytecode.OP_SHL, bytecode.OP_SHR, bytecode.OP_BAND, bytecode.OP_BOR, bytecode.OP_BXOR:
			res, err := arith(op, fr.regs[b], fr.regs[c])
			if err != nil {
				return Value{}, vm.wrapError(fr, err)
			}
			fr.regs[a] = res
			fr.ip = nextIP

		case bytecode.OP_EQ:
			fr.regs[a] = Bool(Equal(fr.regs[b], fr.regs[c]))
			fr.ip = nextIP
		case bytecode.OP_NEQ:
			fr.regs[a] = Bool(!Equal(fr.regs[b], fr.regs[c]))
			fr.ip = nextIP
		case bytecode.OP_LT, bytecode.OP_LTE, bytecode.OP_GT, bytecode.OP_GTE:
			res, err := compare(op, fr.regs[b], fr.regs[c])
			if err != nil {
				return Value{}, vm.wrapError(fr, err)
			}
			fr.regs[a] = res
			fr.ip = nextIP

		case bytecode.OP_NEG:
			res, err := negate(fr.regs[b])
			if err != nil {
				return Value{}, vm.wrapError(fr, err)
			}
			fr.regs[a] = res
			fr.ip = nextIP
		case bytecode.OP_NOT:
			fr.regs[a] = Bool(!Truthy(fr.regs[b]))
			fr.ip = nextIP
		case bytecode.OP_BNOT:
			if fr.regs[b].Kind != KindInt {
				return Value{}, vm.errorf(fr, "type error: ~ requires int, got %s", fr.regs[b].Kind)
			}
			fr.regs[a] = Int(^fr.regs[b].I)
			fr.ip = nextIP
		case bytecode.OP_TO_BOOL:
			fr.regs[a] = Bool(Truthy(fr.regs[b]))
			fr.ip = nextIP

		case bytecode.OP_CAST_INT:
			res, err := castInt(fr.regs[b])
			if err != nil {
				return Value{}, vm.wrapError(fr, err)
			}
			fr.regs[a] = res
			fr.ip = nextIP
		case bytecode.OP_CAST_FLOAT:
			res, err := castFloat(fr.regs[b])
			if err != nil {
				return Value{}, vm.wrapError(fr, err)
			}
			fr.regs[a] = res
			fr.ip = nextIP
		case bytecode.OP_CAST_STR:
			v := fr.regs[b]
			if v.Kind == KindString {
				fr.regs[a] = v
			} else {
				fr.regs[a] = String(stringify(v))
			}
			fr.ip = nextIP
		case bytecode.OP_CAST_BOOL:
			fr.regs[a] = Bool(Truthy(fr.regs[b]))
			fr.ip = nextIP

		case bytecode.OP_NEW_ARRAY:
			fr.regs[a] = NewArray(nil)
			fr.ip = nextIP
		case bytecode.OP_NEW_STRUCT:
			fr.regs[a] = NewStruct(NewStructObj())
			fr.ip = nextIP
		case bytecode.OP_ARRAY_APPEND:
			arr := fr.regs[a]
			if arr.Kind != KindArray {
				return Value{}, vm.errorf(fr, "type error: cannot append to %s", arr.Kind)
			}
			arr.Arr.Items = append(arr.Arr.Items, fr.regs[b])
			fr.ip = nextIP
		case bytecode.OP_ARRAY_SET:
			if err := arraySet(fr.regs[a], fr.regs[b], fr.regs[c]); err != nil {
				return Value{}, vm.wrapError(fr, err)
			}
			fr.ip = nextIP
		case bytecode.OP_STRUCT_SET:
			st := fr.regs[a]
			if st.Kind != KindStruct {
				return Value{}, vm.errorf(fr, "type error: cannot set a field on %s", st.Kind)
			}
			if err := st.Struc.Set(fr.regs[b], fr.regs[c]); err != nil {
				return Value{}, vm.wrapError(fr, err)
			}
			fr.ip = nextIP
		case bytecode.OP_IDX_GET:
			res, err := indexGet(fr.regs[b], fr.regs[c])
			if err != nil {
				return Value{}, vm.wrapError(fr, err)
			}
			fr.regs[a] = res
			fr.ip = nextIP
		case bytecode.OP_IDX_SET:
			if err := indexSet(fr.regs[a], fr.regs[b], fr.regs[c]); err != nil {
				return Value{}, vm.wrapError(fr, err)
			}
			fr.ip = nextIP
		case bytecode.OP_FIELD_GET:
			st := fr.regs[b]
			if st.Kind != KindStruct {
				return Value{}, vm.errorf(fr, "type error: cannot read a field of %s", st.Kind)
			}
			name := fr.proto.Chunk.Consts[c].(string)
			v, ok, err := st.Struc.Get(String(name))
			if err != nil {
				return Value{}, vm.wrapError(fr, err)
			}
			if !ok {
				fr.regs[a] = Void()
			} else {
				fr.regs[a] = v
			}
			fr.ip = nextIP
		case bytecode.OP_FIELD_SET:
			st := fr.regs[a]
			if st.Kind != KindStruct {
				return Value{}, vm.errorf(fr, "type error: cannot set a field on %s", st.Kind)
			}
			name := fr.proto.Chunk.Consts[b].(string)
			if err := st.Struc.Set(String(name), fr.regs[c]); err != nil {
				return Value{}, vm.wrapError(fr, err)
			}
			fr.ip = nextIP
		case bytecode.OP_DEL_INDEX:
			if err := delIndex(fr.regs[a], fr.regs[b]); err != nil {
				return Value{}, vm.wrapError(fr, err)
			}
			fr.ip = nextIP
		case bytecode.OP_DEL_FIELD:
			st := fr.regs[a]
			if st.Kind != KindStruct {
				return Value{}, vm.errorf(fr, "type error: cannot delete a field of %s", st.Kind)
			}
			name := fr.proto.Chunk.Consts[b].(string)
			if err := st.Struc.Delete(String(name)); err != nil {
				return Value{}, vm.wrapError(fr, err)
			}
			fr.ip = nextIP
		case bytecode.OP_TYPEOF:
			fr.regs[a] = String(typeName(fr.regs[b]))
			fr.ip = nextIP
		case bytecode.OP_SIZEOF:
			res, err := sizeOf(fr.regs[b])
			if err != nil {
				return Value{}, vm.wrapError(fr, err)
			}
			fr.regs[a] = res
			fr.ip = nextIP

		case bytecode.OP_JMP:
			fr.ip = nextIP + int(b)
		case bytecode.OP_JMP_IF_FALSE:
			if !Truthy(fr.regs[a]) {
				fr.ip = nextIP + int(b)
			} else {
				fr.ip = nextIP
			}
		case bytecode.OP_JMP_IF_TRUE:
			if Truthy(fr.regs[a]) {
				fr.ip = nextIP + int(b)
			} else {
				fr.ip = nextIP
			}

		case bytecode.OP_CALL:
			fr.ip = nextIP
			if err := vm.call(fr, a, b, c); err != nil {
				return Value{}, vm.wrapError(fr, err)
			}

		case bytecode.OP_RETURN:
			val := fr.regs[a]
			done, result := vm.popFrame(fr, val)
			if done {
				return result, nil
			}

		case bytecode.OP_RETURN_VOID:
			done, result := vm.popFrame(fr, Void())
			if done {
				return result, nil
			}

		case bytecode.OP_CLOSE_FN:
			ip := nextIP
			proto, ok := fr.proto.Chunk.Consts[b].(*bytecode.Prototype)
			if !ok {
				return Value{}, vm.errorf(fr, "internal error: CLOSE_FN constant is not a prototype")
			}
			upvalues := make([]*upvalue, len(proto.Upvalues))
			for i := range proto.Upvalues {
				fromLocal, idx, next, err := bytecode.ReadUpvalueDescriptor(fr.proto.Chunk.Code, ip)
				if err != nil {
					return Value{}, vm.errorf(fr, "%s", err.Error())
				}
				ip = next
				if fromLocal {
					upvalues[i] = vm.captureUpvalue(&fr.regs[idx])
				} else {
					upvalues[i] = fr.closure.Upvalues[idx]
				}
			}
			fr.regs[a] = NewClosure(&Closure{Proto: proto, Upvalues: upvalues, Name: proto.Name})
			fr.ip = ip

		case bytecode.OP_UP_GET:
			fr.regs[a] = fr.closure.Upvalues[b].get()
			fr.ip = nextIP
		case bytecode.OP_UP_SET:
			fr.closure.Upvalues[a].set(fr.regs[b])
			fr.ip = nextIP
		case bytecode.OP_CLOSE_UP:
			vm.closeUpvalueAt(&fr.regs[a])
			fr.ip = nextIP

		case bytecode.OP_ITER_INIT:
			it, err := newIteratorState(fr.regs[b])
			if err != nil {
				return Value{}, vm.wrapError(fr, err)
			}
			fr.regs[a] = newIterator(it)
			fr.ip = nextIP
		case bytecode.OP_ITER_NEXT:
			cur := fr.regs[b]
			fr.regs[a] = Bool(cur.iter.advance())
			fr.ip = nextIP
		case bytecode.OP_ITER_KEY:
			fr.regs[a] = fr.regs[b].iter.key()
			fr.ip = nextIP
		case bytecode.OP_ITER_VAL:
			fr.regs[a] = fr.regs[b].iter.value()
			fr.ip = nextIP

		case bytecode.OP_REQUIRE:
			fr.ip = nextIP
			if err := vm.require(fr, a, b, c); err != nil {
				return Value{}, vm.wrapError(fr, err)
			}

		default:
			return Value{}, vm.errorf(fr, "internal error: unknown opcode 0x%02x", op)
		}
	}
}

// popFrame finishes fr with val as its result. If fr was the outermost
// frame, done is true and val is the program's final result; otherwise
// val is written into the resuming caller's retReg.
func (vm *VM) popFrame(fr *frame, val Value) (done bool, result Value) {
	vm.closeUpvaluesForFrame(fr)
	vm.frames = vm.frames[:len(vm.frames)-1]
	if fr.isRequireRoot {
		vm.scriptDirs = vm.scriptDirs[:len(vm.scriptDirs)-1]
	}
	if len(vm.frames) == 0 {
		return true, val
	}
	caller := vm.frames[len(vm.frames)-1]
	caller.regs[fr.retReg] = val
	return false, Value{}
}

// call dispatches CALL fnReg, argCount, retReg (spec.md §4.4): missing
// arguments become null, extra arguments are discarded, a non-closure
// callee is a type error.
func (vm *VM) call(fr *frame, fnReg uint8, argCount, retReg int16) error {
	fnVal := fr.regs[fnReg]
	if fnVal.Kind != KindClosure {
		return vm.errorf(fr, "type error: cannot call %s", fnVal.Kind)
	}
	args := fr.regs[int(fnReg)+1 : int(fnReg)+1+int(argCount)]
	clos := fnVal.Clos
	if clos.Native != nil {
		result, err := clos.Native(vm, append([]Value(nil), args...))
		if err != nil {
			return err
		}
		fr.regs[retReg] = result
		return nil
	}
	_, err := vm.pushClosureFrame(clos, args, uint8(retReg), false)
	return err
}

// require lowers REQUIRE dst, argCount, pathReg (spec.md §4.5): resolve,
// load, compile, and run the target script as a nested frame in this VM.
func (vm *VM) require(fr *frame, dst uint8, argCount, pathReg int16) error {
	pathVal := fr.regs[pathReg]
	if pathVal.Kind != KindString {
		return vm.errorf(fr, "type error: require() path must be a string, got %s", pathVal.Kind)
	}
	if vm.load == nil {
		return vm.errorf(fr, "require error: no script loader configured")
	}
	baseDir := "."
	if len(vm.scriptDirs) > 0 {
		baseDir = vm.scriptDirs[len(vm.scriptDirs)-1]
	}
	fullPath := pathVal.S
	if !filepath.IsAbs(fullPath) {
		fullPath = filepath.Join(baseDir, fullPath)
	}
	src, err := vm.load(fullPath)
	if err != nil {
		return vm.errorf(fr, "require error: %s: %s", fullPath, err.Error())
	}

	p := parser.New(lexer.New(src))
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return vm.errorf(fr, "require error: %s: %s", fullPath, strings.Join(errs, "; "))
	}
	mod, err := compiler.Compile(prog, fullPath)
	if err != nil {
		return vm.errorf(fr, "require error: %s: %s", fullPath, err.Error())
	}

	args := fr.regs[int(pathReg)+1 : int(pathReg)+1+int(argCount)]
	argv := NewArray(append([]Value(nil), args...))
	closure := &Closure{Proto: mod.Entry, Name: mod.Entry.Name}

	vm.scriptDirs = append(vm.scriptDirs, filepath.Dir(fullPath))
	if _, err := vm.pushClosureFrame(closure, []Value{argv}, dst, true); err != nil {
		vm.scriptDirs = vm.scriptDirs[:len(vm.scriptDirs)-1]
		return err
	}
	return nil
}

func constToValue(c interface{}) Value {
	switch v := c.(type) {
	case int64:
		return Int(v)
	case float64:
		return Float(v)
	case string:
		return String(v)
	default:
		return Null()
	}
}

func isNumeric(v Value) bool { return v.Kind == KindInt || v.Kind == KindFloat }

func numericValue(v Value) float64 {
	if v.Kind == KindInt {
		return float64(v.I)
	}
	return v.F
}

// arith implements spec.md §4.4's operand-type dispatch: int op int stays
// int (wrapping two's-complement, decision #14); either operand float
// promotes both to float; '+' additionally concatenates two strings; any
// other mix is a type error. Division/modulo by a zero int is a runtime
// error; by a zero float it follows IEEE 754 (decision #4).
func arith(op byte, a, b Value) (Value, error) {
	if op == bytecode.OP_ADD && a.Kind == KindString && b.Kind == KindString {
		return String(a.S + b.S), nil
	}
	if !isNumeric(a) || !isNumeric(b) {
		return Value{}, fmt.Errorf("type error: operator requires numbers, got %s and %s", a.Kind, b.Kind)
	}
	if a.Kind == KindInt && b.Kind == KindInt {
		switch op {
		case bytecode.OP_ADD:
			return Int(a.I + b.I), nil
		case bytecode.OP_SUB:
			return Int(a.I - b.I), nil
		case bytecode.OP_MUL:
			return Int(a.I * b.I), nil
		case bytecode.OP_DIV:
			if b.I == 0 {
				return Value{}, fmt.Errorf("value error: integer division by zero")
			}
			return Int(a.I / b.I), nil
		case bytecode.OP_MOD:
			if b.I == 0 {
				return Value{}, fmt.Errorf("value error: integer modulo by zero")
			}
			return Int(a.I % b.I), nil
		case bytecode.OP_SHL, bytecode.OP_SHR, bytecode.OP_BAND, bytecode.OP_BOR, bytecode.OP_BXOR:
			return bitwise(op, a.I, b.I)
		}
	}
	if op == bytecode.OP_SHL || op == bytecode.OP_SHR || op == bytecode.OP_BAND || op == bytecode.OP_BOR || op == bytecode.OP_BXOR {
		return Value{}, fmt.Errorf("type error: bitwise operator requires int, got %s and %s", a.Kind, b.Kind)
	}
	af, bf := numericValue(a), numericValue(b)
	switch op {
	case bytecode.OP_ADD:
		return Float(af + bf), nil
	case bytecode.OP_SUB:
		return Float(af - bf), nil
	case bytecode.OP_MUL:
		return Float(af * bf), nil
	case bytecode.OP_DIV:
		return Float(af / bf), nil
	case bytecode.OP_MOD:
		return Float(math.Mod(af, bf)), nil
	}
	return Value{}, fmt.Errorf("internal error: unhandled arithmetic opcode 0x%02x", op)
}

func bitwise(op byte, a, b int64) (Value, error) {
	switch op {
	case bytecode.OP_BAND:
		return Int(a & b), nil
	case bytecode.OP_BOR:
		return Int(a | b), nil
	case bytecode.OP_BXOR:
		return Int(a ^ b), nil
	case bytecode.OP_SHL:
		if b < 0 {
			return Value{}, fmt.Errorf("value error: negative shift count")
		}
		return Int(a << uint(b&63)), nil
	case bytecode.OP_SHR:
		if b < 0 {
			return Value{}, fmt.Errorf("value error: negative shift count")
		}
		return Int(a >> uint(b&63)), nil
	}
	return Value{}, fmt.Errorf("internal error: unhandled bitwise opcode 0x%02x", op)
}

func compare(op byte, a, b Value) (Value, error) {
	if isNumeric(a) && isNumeric(b) {
		af, bf := numericValue(a), numericValue(b)
		switch op {
		case bytecode.OP_LT:
			return Bool(af < bf), nil
		case bytecode.OP_LTE:
			return Bool(af <= bf), nil
		case bytecode.OP_GT:
			return Bool(af > bf), nil
		case bytecode.OP_GTE:
			return Bool(af >= bf), nil
		}
	}
	if a.Kind == KindString && b.Kind == KindString {
		switch op {
		case bytecode.OP_LT:
			return Bool(a.S < b.S), nil
		case bytecode.OP_LTE:
			return Bool(a.S <= b.S), nil
		case bytecode.OP_GT:
			return Bool(a.S > b.S), nil
		case bytecode.OP_GTE:
			return Bool(a.S >= b.S), nil
		}
	}
	return Value{}, fmt.Errorf("type error: comparison requires two numbers or two strings, got %s and %s", a.Kind, b.Kind)
}

func negate(v Value) (Value, error) {
	switch v.Kind {
	case KindInt:
		return Int(-v.I), nil
	case KindFloat:
		return Float(-v.F), nil
	default:
		return Value{}, fmt.Errorf("type error: unary - requires a number, got %s", v.Kind)
	}
}

// castInt implements spec.md §4.4's int() cast: identity on int, truncate
// toward zero on float, 0/1 on bool, decimal parse (erroring on failure,
// decision #9) on string.
func castInt(v Value) (Value, error) {
	switch v.Kind {
	case KindInt:
		return v, nil
	case KindFloat:
		return Int(int64(v.F)), nil
	case KindBool:
		if v.B {
			return Int(1), nil
		}
		return Int(0), nil
	case KindString:
		i, err := strconv.ParseInt(strings.TrimSpace(v.S), 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("value error: int(): invalid decimal %q", v.S)
		}
		return Int(i), nil
	default:
		return Value{}, fmt.Errorf("type error: cannot convert %s to int", v.Kind)
	}
}

func castFloat(v Value) (Value, error) {
	switch v.Kind {
	case KindFloat:
		return v, nil
	case KindInt:
		return Float(float64(v.I)), nil
	case KindBool:
		if v.B {
			return Float(1), nil
		}
		return Float(0), nil
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.S), 64)
		if err != nil {
			return Value{}, fmt.Errorf("value error: float(): invalid decimal %q", v.S)
		}
		return Float(f), nil
	default:
		return Value{}, fmt.Errorf("type error: cannot convert %s to float", v.Kind)
	}
}

func sizeOf(v Value) (Value, error) {
	switch v.Kind {
	case KindString:
		return Int(int64(len(v.S))), nil
	case KindArray:
		return Int(int64(len(v.Arr.Items))), nil
	case KindStruct:
		return Int(int64(len(v.Struc.Keys))), nil
	default:
		return Value{}, fmt.Errorf("type error: sizeof() requires a string, array, or struct, got %s", v.Kind)
	}
}

// arrayIndex validates and extracts a non-negative int index (error kind
// #5: "invalid array index (negative; non-integer for arrays)").
func arrayIndex(idx Value) (int, error) {
	if idx.Kind != KindInt {
		return 0, fmt.Errorf("value error: array index must be int, got %s", idx.Kind)
	}
	if idx.I < 0 {
		return 0, fmt.Errorf("value error: negative array index %d", idx.I)
	}
	return int(idx.I), nil
}

// arraySet implements spec.md §3.2's array write/growth rule: writing at
// len extends by one, writing at len+k gap-fills with null, writing
// in-range overwrites.
func arraySet(container, idxVal, val Value) error {
	switch container.Kind {
	case KindArray:
		i, err := arrayIndex(idxVal)
		if err != nil {
			return err
		}
		items := container.Arr.Items
		switch {
		case i < len(items):
			items[i] = val
		case i == len(items):
			container.Arr.Items = append(items, val)
		default:
			for len(container.Arr.Items) < i {
				container.Arr.Items = append(container.Arr.Items, Null())
			}
			container.Arr.Items = append(container.Arr.Items, val)
		}
		return nil
	default:
		return fmt.Errorf("type error: cannot index-assign into %s", container.Kind)
	}
}

// indexGet implements IDX_GET across array/struct (spec.md §3.2/§3.3);
// strings are not indexable (decision #1); out-of-range array reads and
// absent struct keys both yield void, never an error.
func indexGet(container, idx Value) (Value, error) {
	switch container.Kind {
	case KindArray:
		i, err := arrayIndex(idx)
		if err != nil {
			return Value{}, err
		}
		if i >= len(container.Arr.Items) {
			return Void(), nil
		}
		return container.Arr.Items[i], nil
	case KindStruct:
		v, ok, err := container.Struc.Get(idx)
		if err != nil {
			return Value{}, err
		}
		if !ok {
			return Void(), nil
		}
		return v, nil
	case KindString:
		return Value{}, fmt.Errorf("type error: string is not indexable")
	default:
		return Value{}, fmt.Errorf("type error: cannot index %s", container.Kind)
	}
}

func indexSet(container, idx, val Value) error {
	switch container.Kind {
	case KindArray:
		return arraySet(container, idx, val)
	case KindStruct:
		return container.Struc.Set(idx, val)
	case KindString:
		return fmt.Errorf("type error: string is not indexable")
	default:
		return fmt.Errorf("type error: cannot index-assign into %s", container.Kind)
	}
}

// delIndex implements `delete arr[i]`/`delete st[k]`: array deletion
// truncates the tail (spec.md §3.2/§9), struct deletion removes one entry
// and closes the order gap (spec.md §3.3).
func delIndex(container, idx Value) error {
	switch container.Kind {
	case KindArray:
		i, err := arrayIndex(idx)
		if err != nil {
			return err
		}
		if i < len(container.Arr.Items) {
			container.Arr.Items = container.Arr.Items[:i]
		}
		return nil
	case KindStruct:
		return container.Struc.Delete(idx)
	default:
		return fmt.Errorf("type error: cannot delete from %s", container.Kind)
	}
}

// captureUpvalue returns the shared open upvalue cell for slot, creating
// one if this is the first closure to capture it (spec.md §3.4: "multiple
// nested closures referencing the same enclosing local share the same
// upvalue cell").
func (vm *VM) captureUpvalue(slot *Value) *upvalue {
	if uv, ok := vm.openUpvalues[slot]; ok {
		return uv
	}
	uv := newUpvalue(slot)
	vm.openUpvalues[slot] = uv
	return uv
}

func (vm *VM) closeUpvalueAt(slot *Value) {
	if uv, ok := vm.openUpvalues[slot]; ok {
		uv.close()
		delete(vm.openUpvalues, slot)
	}
}

// closeUpvaluesForFrame closes every upvalue still open into fr's register
// window as it returns (spec.md §3.6: "closing happens at or before that
// frame's return" — CLOSE_UP already closed block-scoped captures early;
// this is the backstop for the function's own parameters/top-level locals).
func (vm *VM) closeUpvaluesForFrame(fr *frame) {
	if len(vm.openUpvalues) == 0 {
		return
	}
	for i := range fr.regs {
		vm.closeUpvalueAt(&fr.regs[i])
	}
}
