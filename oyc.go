// Package oyc embeds the oyc scripting language (spec.md) in a host Go
// program: compile source, run it against a VM, and marshal values
// between Go and the scripting runtime.
package oyc

import (
	"fmt"
	"strconv"
	"strings"

	_ "github.com/oyc-lang/oyc/internal/builtins/clone"
	_ "github.com/oyc-lang/oyc/internal/builtins/trace"
	"github.com/oyc-lang/oyc/internal/bytecode"
	"github.com/oyc-lang/oyc/internal/compiler"
	"github.com/oyc-lang/oyc/internal/lexer"
	"github.com/oyc-lang/oyc/internal/parser"
	"github.com/oyc-lang/oyc/internal/vm"
)

// Value wraps an internal vm.Value so host code never imports internal/vm
// directly.
type Value struct {
	v vm.Value
}

// ValueKind mirrors the oyc runtime's dynamic type tags (spec.md §3.1).
type ValueKind int

const (
	KindNull ValueKind = iota
	KindVoid
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindStruct
	KindClosure
)

// Kind reports v's dynamic type.
func (v Value) Kind() ValueKind { return ValueKind(v.v.Kind) }

// Raw converts v into a plain Go value: nil, bool, int64, float64, string,
// []any, or map[string]any. Closures have no Go representation and return
// an error.
func (v Value) Raw() (any, error) { return toGo(v.v) }

// FrameTrace describes a single call frame captured at error time.
type FrameTrace struct {
	Function string
	Source   string
	Line     int
}

// RuntimeError is a source-aware execution failure (spec.md §7): any error
// at any layer aborts the run, carrying the position of the outermost
// offending construct and, for errors raised inside a require()d script,
// the chain of requiring sites above it.
type RuntimeError struct {
	ID      string
	Message string
	Frame   FrameTrace
	Stack   []FrameTrace
	Cause   error
}

func (e *RuntimeError) Error() string {
	return e.Message
}

func (e *RuntimeError) Unwrap() error { return e.Cause }

func wrapRuntimeError(err error) error {
	rte, ok := err.(*vm.RuntimeError)
	if !ok {
		return err
	}
	stack := make([]FrameTrace, len(rte.Stack))
	for i, fr := range rte.Stack {
		stack[i] = FrameTrace{Function: fr.Function, Source: fr.Source, Line: fr.Line}
	}
	return &RuntimeError{
		ID:      rte.ID,
		Message: rte.Error(),
		Frame:   FrameTrace{Function: rte.Frame.Function, Source: rte.Frame.Source, Line: rte.Frame.Line},
		Stack:   stack,
		Cause:   rte.Cause,
	}
}

// Loader resolves a require()d script path to its source text.
type Loader func(path string) (string, error)

// Program is a compiled oyc script, ready to run any number of times.
type Program struct {
	mod    *bytecode.Module
	source string
}

// Compile lexes, parses, and compiles src (spec.md §1–§2). source names
// the script for diagnostics (e.g. a file path).
func Compile(src, source string) (*Program, error) {
	p := parser.New(lexer.New(src))
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	mod, err := compiler.Compile(prog, source)
	if err != nil {
		return nil, err
	}
	return &Program{mod: mod, source: source}, nil
}

// LoadProgram reconstructs a Program from bytecode previously produced by
// MarshalModule (e.g. an `oyc build` artifact), skipping lex/parse/compile.
func LoadProgram(data []byte, source string) (*Program, error) {
	mod, err := bytecode.UnmarshalModule(data)
	if err != nil {
		return nil, err
	}
	return &Program{mod: mod, source: source}, nil
}

// MarshalModule serializes p's compiled bytecode, suitable for LoadProgram.
func MarshalModule(p *Program) ([]byte, error) {
	return bytecode.MarshalModule(p.mod)
}

// VM is a host-embeddable oyc execution environment. One VM's globals and
// heap are shared across every Program it runs.
type VM struct {
	inner *vm.VM
}

// New creates a VM. load resolves require() paths to source text; pass nil
// to disable require() for scripts run against this VM.
func New(load Loader) *VM {
	var lf vm.Loader
	if load != nil {
		lf = vm.Loader(load)
	}
	return &VM{inner: vm.New(lf)}
}

// DefineFunc registers a host Go function as a global closure callable from
// script code. fn receives already null-padded/truncated arguments
// (spec.md §4.4's permissive CALL convention) as raw Go values and must
// return a Go value marshalable by FromGo, or an error.
func (m *VM) DefineFunc(name string, arity int, fn func(args []any) (any, error)) {
	m.inner.DefineGlobal(name, vm.NewClosure(&vm.Closure{
		Name: name,
		Native: func(_ *vm.VM, vargs []vm.Value) (vm.Value, error) {
			n := len(vargs)
			if arity >= 0 && arity < n {
				n = arity
			}
			size := n
			if arity > size {
				size = arity
			}
			args := make([]any, size)
			for i := 0; i < n; i++ {
				raw, err := toGo(vargs[i])
				if err != nil {
					return vm.Value{}, err
				}
				args[i] = raw
			}
			result, err := fn(args)
			if err != nil {
				return vm.Value{}, err
			}
			return fromGo(result)
		},
	}))
}

// Define binds a Go value directly as a global (e.g. configuration data a
// script can read).
func (m *VM) Define(name string, val any) error {
	v, err := fromGo(val)
	if err != nil {
		return err
	}
	m.inner.DefineGlobal(name, v)
	return nil
}

// Run executes p's entry point with argv as its command-line vector
// (spec.md §4.5) and scriptDir as the base directory require() paths
// resolve against, returning its result as a Go value.
func (m *VM) Run(p *Program, scriptDir string, argv []string) (any, error) {
	args := make([]vm.Value, len(argv))
	for i, s := range argv {
		args[i] = vm.String(s)
	}
	result, err := m.inner.RunModule(p.mod, scriptDir, args)
	if err != nil {
		return nil, wrapRuntimeError(err)
	}
	return toGo(result)
}

// SetTraceHook installs a per-instruction observer, or clears it if h is
// nil.
func (m *VM) SetTraceHook(h func(TraceInfo)) {
	if h == nil {
		m.inner.SetTraceHook(nil)
		return
	}
	m.inner.SetTraceHook(func(info vm.TraceInfo) {
		h(TraceInfo{Op: info.Op, Function: info.Function, Source: info.Source, Line: info.Line, IP: info.IP})
	})
}

// TraceInfo describes a single instruction dispatch.
type TraceInfo struct {
	Op       byte
	Function string
	Source   string
	Line     int
	IP       int
}

// SetInstructionLimit aborts a run past n dispatched instructions, guarding
// a host against runaway scripts. n <= 0 disables the limit.
func (m *VM) SetInstructionLimit(n int64) { m.inner.SetInstructionLimit(n) }

// SetMaxFrames bounds call/require recursion depth, guarding the host
// process's own stack against runaway script recursion. n <= 0 disables
// the limit.
func (m *VM) SetMaxFrames(n int) { m.inner.SetMaxFrames(n) }

// structKeyGo renders a struct key (string or int, spec.md §3.3) as a Go
// map key. Unlike vm.Trace, this is unquoted/untagged: round-tripping
// through map[string]any necessarily collapses the int-vs-string key
// distinction (the int key 5 and the string key "5" become the same Go
// map key "5"), a known simplification of the full oyc key model.
func structKeyGo(k vm.Value) string {
	if k.Kind == vm.KindInt {
		return strconv.FormatInt(k.I, 10)
	}
	return k.S
}

func toGo(v vm.Value) (any, error) {
	switch v.Kind {
	case vm.KindNull, vm.KindVoid:
		return nil, nil
	case vm.KindBool:
		return v.B, nil
	case vm.KindInt:
		return v.I, nil
	case vm.KindFloat:
		return v.F, nil
	case vm.KindString:
		return v.S, nil
	case vm.KindArray:
		if v.Arr == nil {
			return []any{}, nil
		}
		out := make([]any, len(v.Arr.Items))
		for i, item := range v.Arr.Items {
			raw, err := toGo(item)
			if err != nil {
				return nil, err
			}
			out[i] = raw
		}
		return out, nil
	case vm.KindStruct:
		out := make(map[string]any)
		if v.Struc == nil {
			return out, nil
		}
		for i, k := range v.Struc.Keys {
			raw, err := toGo(v.Struc.Values[i])
			if err != nil {
				return nil, err
			}
			out[structKeyGo(k)] = raw
		}
		return out, nil
	default:
		return nil, fmt.Errorf("oyc: cannot convert a %s to a Go value", vm.TypeName(v))
	}
}

func fromGo(val any) (vm.Value, error) {
	switch x := val.(type) {
	case nil:
		return vm.Null(), nil
	case bool:
		return vm.Bool(x), nil
	case int:
		return vm.Int(int64(x)), nil
	case int64:
		return vm.Int(x), nil
	case float64:
		return vm.Float(x), nil
	case string:
		return vm.String(x), nil
	case []any:
		items := make([]vm.Value, len(x))
		for i, e := range x {
			v, err := fromGo(e)
			if err != nil {
				return vm.Value{}, err
			}
			items[i] = v
		}
		return vm.NewArray(items), nil
	case map[string]any:
		st := vm.NewStructObj()
		for k, e := range x {
			v, err := fromGo(e)
			if err != nil {
				return vm.Value{}, err
			}
			if err := st.Set(vm.String(k), v); err != nil {
				return vm.Value{}, err
			}
		}
		return vm.NewStruct(st), nil
	default:
		return vm.Value{}, fmt.Errorf("oyc: cannot convert a Go %T to an oyc value", val)
	}
}
