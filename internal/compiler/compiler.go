// Package compiler lowers a parsed program into register-machine bytecode
// (see internal/bytecode): one Prototype per function body (the implicit
// top-level script counts as one), with nested closures reached through
// their enclosing prototype's constant pool.
package compiler

import (
	"fmt"
	"sort"

	"github.com/oyc-lang/oyc/internal/ast"
	"github.com/oyc-lang/oyc/internal/bytecode"
	"github.com/oyc-lang/oyc/internal/token"
)

// Compile lowers a program AST into a Module whose Entry prototype takes
// one parameter, argv (spec.md §5.1).
func Compile(prog *ast.Program, source string) (*Module, error) {
	c := &compiler{source: source}
	entry, err := c.compileTop(prog)
	if err != nil {
		return nil, err
	}
	return &Module{Entry: entry}, nil
}

type compiler struct {
	source string
}

// funcCompiler compiles the body of one function (bytecode Prototype) into
// its Chunk, using fs for register allocation and upvalue capture.
type funcCompiler struct {
	c      *compiler
	fs     *funcScope
	chunk  *Chunk
	line   int
	loops  []*loopContext
	source string
}

// loopContext collects the backpatch positions of break/continue jumps
// emitted inside one enclosing loop, resolved once the loop's exit point
// (break) and re-entry point (continue) are known.
type loopContext struct {
	breaks    []int
	continues []int
}

func (c *compiler) compileTop(prog *ast.Program) (*Prototype, error) {
	fc := &funcCompiler{c: c, fs: newFuncScope(nil), chunk: &Chunk{}, source: c.source}
	fc.fs.declareLocal("argv")
	if err := fc.compileStatements(prog.Statements); err != nil {
		return nil, err
	}
	fc.ensureReturn()
	return &Prototype{
		Name:          "main",
		Source:        c.source,
		NumParams:     1,
		RegisterCount: int(fc.fs.highWater),
		Chunk:         fc.chunk,
		Upvalues:      fc.fs.upvalues,
	}, nil
}

// ensureReturn appends an implicit "return void;" if the body did not end
// with an explicit return (spec.md §4.4: falling off the end returns void).
func (fc *funcCompiler) ensureReturn() {
	if fc.lastOp() == OP_RETURN || fc.lastOp() == OP_RETURN_VOID {
		return
	}
	fc.emit(OP_RETURN_VOID, 0, 0, 0)
}

func (fc *funcCompiler) lastOp() byte {
	if len(fc.chunk.Code) < bytecode.InstructionWidth {
		return 0xff
	}
	return fc.chunk.Code[len(fc.chunk.Code)-bytecode.InstructionWidth]
}

// compileStatements compiles a sequence of statements in the funcCompiler's
// current block scope (caller pushes/pops the block).
func (fc *funcCompiler) compileStatements(stmts []ast.Statement) error {
	for _, stmt := range stmts {
		if err := fc.compileStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

// compileBlock pushes a fresh block scope, compiles stmts, then releases
// the block's registers.
func (fc *funcCompiler) compileBlock(block *ast.BlockStmt) error {
	fc.fs.pushBlock()
	err := fc.compileStatements(block.Statements)
	fc.popBlock()
	return err
}

// popBlock closes any upvalue captured from a local about to be reclaimed
// by the innermost block, then releases the block's registers (spec.md
// §3.6/§9: a captured local's cell must close before its register is
// recycled for something else in a later sibling block).
func (fc *funcCompiler) popBlock() {
	b := fc.fs.blocks[len(fc.fs.blocks)-1]
	if len(fc.fs.captured) > 0 {
		var regs []uint8
		for reg := range fc.fs.captured {
			if reg >= b.savedTop {
				regs = append(regs, reg)
			}
		}
		sort.Slice(regs, func(i, j int) bool { return regs[i] < regs[j] })
		for _, reg := range regs {
			fc.emit(OP_CLOSE_UP, reg, 0, 0)
			delete(fc.fs.captured, reg)
		}
	}
	fc.fs.popBlock()
}

func (fc *funcCompiler) compileStmt(stmt ast.Statement) error {
	fc.setLine(stmt.Pos().Line)
	switch s := stmt.(type) {
	case *ast.BlockStmt:
		return fc.compileBlock(s)
	case *ast.ExprStmt:
		return fc.compileDiscard(s.Expression)
	case *ast.AutoDecl:
		return fc.compileAutoDecl(s)
	case *ast.ReturnStmt:
		return fc.compileReturn(s)
	case *ast.DeleteStmt:
		return fc.compileDelete(s)
	case *ast.BreakStmt:
		return fc.compileBreak(s)
	case *ast.ContinueStmt:
		return fc.compileContinue(s)
	case *ast.IfStmt:
		return fc.compileIf(s)
	case *ast.SwitchStmt:
		return fc.compileSwitch(s)
	case *ast.WhileStmt:
		return fc.compileWhile(s)
	case *ast.DoWhileStmt:
		return fc.compileDoWhile(s)
	case *ast.ForStmt:
		return fc.compileFor(s)
	case *ast.ForeachStmt:
		return fc.compileForeach(s)
	default:
		return fmt.Errorf("compiler: unsupported statement %T", stmt)
	}
}

// compileDiscard compiles an expression used as a statement, for its side
// effects, dropping the result.
func (fc *funcCompiler) compileDiscard(expr ast.Expression) error {
	mark := fc.fs.mark()
	tmp := fc.fs.alloc()
	err := fc.compileInto(expr, tmp)
	fc.fs.freeTo(mark)
	return err
}

func (fc *funcCompiler) compileAutoDecl(s *ast.AutoDecl) error {
	if _, dup := fc.fs.blocks[len(fc.fs.blocks)-1].locals[s.Name]; dup {
		return fmt.Errorf("compiler: %s redeclared in the same scope", s.Name)
	}
	reg := fc.fs.declareLocal(s.Name)
	if s.Value == nil {
		fc.emit(OP_LOAD_NULL, reg, 0, 0)
		return nil
	}
	return fc.compileInto(s.Value, reg)
}

func (fc *funcCompiler) compileReturn(s *ast.ReturnStmt) error {
	if s.Value == nil {
		fc.emit(OP_RETURN_VOID, 0, 0, 0)
		return nil
	}
	mark := fc.fs.mark()
	reg := fc.fs.alloc()
	if err := fc.compileInto(s.Value, reg); err != nil {
		return err
	}
	fc.emit(OP_RETURN, reg, 0, 0)
	fc.fs.freeTo(mark)
	return nil
}

func (fc *funcCompiler) compileDelete(s *ast.DeleteStmt) error {
	mark := fc.fs.mark()
	switch t := ast.Unwrap(s.Target).(type) {
	case *ast.IndexExpr:
		containerReg := fc.fs.alloc()
		if err := fc.compileInto(t.Left, containerReg); err != nil {
			return err
		}
		indexReg := fc.fs.alloc()
		if err := fc.compileInto(t.Index, indexReg); err != nil {
			return err
		}
		fc.emit(OP_DEL_INDEX, containerReg, int16(indexReg), 0)
	case *ast.MemberExpr:
		objReg := fc.fs.alloc()
		if err := fc.compileInto(t.Left, objReg); err != nil {
			return err
		}
		idx := fc.chunk.AddConst(t.Property)
		fc.emit(OP_DEL_FIELD, objReg, int16(idx), 0)
	default:
		return fmt.Errorf("compiler: delete target must be an index or member expression, got %T", t)
	}
	fc.fs.freeTo(mark)
	return nil
}

func (fc *funcCompiler) compileBreak(s *ast.BreakStmt) error {
	if len(fc.loops) == 0 {
		return fmt.Errorf("compiler: break outside a loop")
	}
	loop := fc.loops[len(fc.loops)-1]
	loop.breaks = append(loop.breaks, fc.emit(OP_JMP, 0, 0, 0))
	return nil
}

func (fc *funcCompiler) compileContinue(s *ast.ContinueStmt) error {
	if len(fc.loops) == 0 {
		return fmt.Errorf("compiler: continue outside a loop")
	}
	loop := fc.loops[len(fc.loops)-1]
	loop.continues = append(loop.continues, fc.emit(OP_JMP, 0, 0, 0))
	return nil
}

func (fc *funcCompiler) compileIf(s *ast.IfStmt) error {
	fc.fs.pushBlock()
	defer fc.popBlock()
	if s.Init != nil {
		if err := fc.compileStmt(s.Init); err != nil {
			return err
		}
	}
	mark := fc.fs.mark()
	condReg := fc.fs.alloc()
	if err := fc.compileInto(s.Condition, condReg); err != nil {
		return err
	}
	falseJump := fc.emit(OP_JMP_IF_FALSE, condReg, 0, 0)
	fc.fs.freeTo(mark)

	if err := fc.compileBlock(s.Conseq); err != nil {
		return err
	}

	if s.Alt == nil {
		fc.patchJumpHere(falseJump)
		return nil
	}
	overJump := fc.emit(OP_JMP, 0, 0, 0)
	fc.patchJumpHere(falseJump)
	if err := fc.compileStmt(s.Alt); err != nil {
		return err
	}
	fc.patchJumpHere(overJump)
	return nil
}

// compileSwitch lowers a switch to a chain of equality tests against the
// tag value, followed by the matched arm's statements falling through into
// any following arm (spec.md §4.2/§9: no implicit break).
func (fc *funcCompiler) compileSwitch(s *ast.SwitchStmt) error {
	fc.fs.pushBlock()
	defer fc.popBlock()
	if s.Init != nil {
		if err := fc.compileStmt(s.Init); err != nil {
			return err
		}
	}

	mark := fc.fs.mark()
	tagReg := fc.fs.alloc()
	if err := fc.compileInto(s.Tag, tagReg); err != nil {
		return err
	}

	// switch reuses loopContext purely for break's jump-to-end mechanism;
	// continue is not meaningful inside a switch arm (spec.md §4.2), so the
	// continues recorded here are handed on to the nearest enclosing real
	// loop once the switch has been compiled.
	loop := &loopContext{}
	fc.loops = append(fc.loops, loop)
	defer func() { fc.loops = fc.loops[:len(fc.loops)-1] }()

	defaultIdx := -1
	var skipToNextTest int
	haveSkip := false
	fallJump := -1
	for i, clause := range s.Cases {
		if clause.IsDefault {
			defaultIdx = i
			continue
		}
		if haveSkip {
			fc.patchJumpHere(skipToNextTest)
			haveSkip = false
		}
		var matchJumps []int
		for _, val := range clause.Values {
			valMark := fc.fs.mark()
			valReg := fc.fs.alloc()
			if err := fc.compileInto(val, valReg); err != nil {
				return err
			}
			eqReg := fc.fs.alloc()
			fc.emit(OP_EQ, eqReg, int16(tagReg), int16(valReg))
			matchJumps = append(matchJumps, fc.emit(OP_JMP_IF_TRUE, eqReg, 0, 0))
			fc.fs.freeTo(valMark)
		}
		skipToNextTest = fc.emit(OP_JMP, 0, 0, 0)
		haveSkip = true
		for _, mj := range matchJumps {
			fc.patchJumpHere(mj)
		}
		if fallJump >= 0 {
			fc.patchJumpHere(fallJump)
		}
		if err := fc.compileStatements(clause.Statements); err != nil {
			return err
		}
		// falling off an arm enters the next case's body, not its tests
		fallJump = fc.emit(OP_JMP, 0, 0, 0)
	}
	if haveSkip {
		fc.patchJumpHere(skipToNextTest)
	}
	if defaultIdx >= 0 {
		if err := fc.compileStatements(s.Cases[defaultIdx].Statements); err != nil {
			return err
		}
	}
	// the last case arm skips default, which runs only when no case matched
	if fallJump >= 0 {
		fc.patchJumpHere(fallJump)
	}

	for _, b := range loop.breaks {
		fc.patchJumpHere(b)
	}
	if len(loop.continues) > 0 {
		if len(fc.loops) < 2 {
			return fmt.Errorf("compiler: continue outside a loop")
		}
		outer := fc.loops[len(fc.loops)-2]
		outer.continues = append(outer.continues, loop.continues...)
	}
	fc.fs.freeTo(mark)
	return nil
}

func (fc *funcCompiler) compileWhile(s *ast.WhileStmt) error {
	loopStart := len(fc.chunk.Code)
	mark := fc.fs.mark()
	condReg := fc.fs.alloc()
	if err := fc.compileInto(s.Condition, condReg); err != nil {
		return err
	}
	exitJump := fc.emit(OP_JMP_IF_FALSE, condReg, 0, 0)
	fc.fs.freeTo(mark)

	loop := &loopContext{}
	fc.loops = append(fc.loops, loop)
	if err := fc.compileBlock(s.Body); err != nil {
		fc.loops = fc.loops[:len(fc.loops)-1]
		return err
	}
	fc.loops = fc.loops[:len(fc.loops)-1]

	for _, c := range loop.continues {
		fc.patchJumpTo(c, loopStart)
	}
	fc.patchJumpTo(fc.emit(OP_JMP, 0, 0, 0), loopStart)
	fc.patchJumpHere(exitJump)
	for _, b := range loop.breaks {
		fc.patchJumpHere(b)
	}
	return nil
}

func (fc *funcCompiler) compileDoWhile(s *ast.DoWhileStmt) error {
	bodyStart := len(fc.chunk.Code)
	loop := &loopContext{}
	fc.loops = append(fc.loops, loop)
	if err := fc.compileBlock(s.Body); err != nil {
		fc.loops = fc.loops[:len(fc.loops)-1]
		return err
	}
	fc.loops = fc.loops[:len(fc.loops)-1]

	condStart := len(fc.chunk.Code)
	for _, c := range loop.continues {
		fc.patchJumpTo(c, condStart)
	}
	mark := fc.fs.mark()
	condReg := fc.fs.alloc()
	if err := fc.compileInto(s.Condition, condReg); err != nil {
		return err
	}
	fc.patchJumpTo(fc.emit(OP_JMP_IF_TRUE, condReg, 0, 0), bodyStart)
	fc.fs.freeTo(mark)
	for _, b := range loop.breaks {
		fc.patchJumpHere(b)
	}
	return nil
}

func (fc *funcCompiler) compileFor(s *ast.ForStmt) error {
	fc.fs.pushBlock()
	defer fc.popBlock()
	if s.Init != nil {
		if err := fc.compileStmt(s.Init); err != nil {
			return err
		}
	}

	loopStart := len(fc.chunk.Code)
	var exitJump = -1
	if s.Cond != nil {
		mark := fc.fs.mark()
		condReg := fc.fs.alloc()
		if err := fc.compileInto(s.Cond, condReg); err != nil {
			return err
		}
		exitJump = fc.emit(OP_JMP_IF_FALSE, condReg, 0, 0)
		fc.fs.freeTo(mark)
	}

	loop := &loopContext{}
	fc.loops = append(fc.loops, loop)
	if err := fc.compileBlock(s.Body); err != nil {
		fc.loops = fc.loops[:len(fc.loops)-1]
		return err
	}
	fc.loops = fc.loops[:len(fc.loops)-1]

	stepStart := len(fc.chunk.Code)
	for _, c := range loop.continues {
		fc.patchJumpTo(c, stepStart)
	}
	if s.Step != nil {
		if err := fc.compileDiscard(s.Step); err != nil {
			return err
		}
	}
	fc.patchJumpTo(fc.emit(OP_JMP, 0, 0, 0), loopStart)
	if exitJump >= 0 {
		fc.patchJumpHere(exitJump)
	}
	for _, b := range loop.breaks {
		fc.patchJumpHere(b)
	}
	return nil
}

// compileForeach lowers `foreach (auto k?, v : iterable) body` through the
// ITER_INIT/ITER_NEXT/ITER_KEY/ITER_VAL micro-protocol (spec.md §4.2,
// keeping each instruction within three operands).
func (fc *funcCompiler) compileForeach(s *ast.ForeachStmt) error {
	fc.fs.pushBlock()
	defer fc.popBlock()

	cursor := fc.fs.alloc()
	iterMark := fc.fs.mark()
	srcReg := fc.fs.alloc()
	if err := fc.compileInto(s.Iterable, srcReg); err != nil {
		return err
	}
	fc.emit(OP_ITER_INIT, cursor, int16(srcReg), 0)
	fc.fs.freeTo(iterMark)

	loopStart := len(fc.chunk.Code)
	okMark := fc.fs.mark()
	okReg := fc.fs.alloc()
	fc.emit(OP_ITER_NEXT, okReg, int16(cursor), 0)
	exitJump := fc.emit(OP_JMP_IF_FALSE, okReg, 0, 0)
	fc.fs.freeTo(okMark)

	if s.KeyName != "" {
		keyReg := fc.fs.declareLocal(s.KeyName)
		fc.emit(OP_ITER_KEY, keyReg, int16(cursor), 0)
	}
	valReg := fc.fs.declareLocal(s.ValueName)
	fc.emit(OP_ITER_VAL, valReg, int16(cursor), 0)

	loop := &loopContext{}
	fc.loops = append(fc.loops, loop)
	if err := fc.compileBlock(s.Body); err != nil {
		fc.loops = fc.loops[:len(fc.loops)-1]
		return err
	}
	fc.loops = fc.loops[:len(fc.loops)-1]

	for _, c := range loop.continues {
		fc.patchJumpTo(c, loopStart)
	}
	fc.patchJumpTo(fc.emit(OP_JMP, 0, 0, 0), loopStart)
	fc.patchJumpHere(exitJump)
	for _, b := range loop.breaks {
		fc.patchJumpHere(b)
	}
	return nil
}

// compileInto compiles expr so its result ends up in the already-reserved
// register dst. Callers must reserve dst (fs.alloc or a declared local)
// before calling, so any temporaries this call allocates land above it.
func (fc *funcCompiler) compileInto(expr ast.Expression, dst uint8) error {
	expr = ast.Unwrap(expr)
	fc.setLine(expr.Pos().Line)
	switch e := expr.(type) {
	case *ast.IntLiteral:
		fc.emit(OP_LOAD_CONST, dst, int16(fc.chunk.AddConst(e.Value)), 0)
	case *ast.FloatLiteral:
		fc.emit(OP_LOAD_CONST, dst, int16(fc.chunk.AddConst(e.Value)), 0)
	case *ast.StringLiteral:
		fc.emit(OP_LOAD_CONST, dst, int16(fc.chunk.AddConst(e.Value)), 0)
	case *ast.BoolLiteral:
		b := int16(0)
		if e.Value {
			b = 1
		}
		fc.emit(OP_LOAD_BOOL, dst, b, 0)
	case *ast.NullLiteral:
		fc.emit(OP_LOAD_NULL, dst, 0, 0)
	case *ast.Identifier:
		return fc.compileIdentInto(e.Name, dst)
	case *ast.ArrayLiteral:
		return fc.compileArrayLiteral(e, dst)
	case *ast.StructLiteral:
		return fc.compileStructLiteral(e, dst)
	case *ast.IndexExpr:
		mark := fc.fs.mark()
		containerReg := fc.fs.alloc()
		if err := fc.compileInto(e.Left, containerReg); err != nil {
			return err
		}
		indexReg := fc.fs.alloc()
		if err := fc.compileInto(e.Index, indexReg); err != nil {
			return err
		}
		fc.emit(OP_IDX_GET, dst, int16(containerReg), int16(indexReg))
		fc.fs.freeTo(mark)
	case *ast.MemberExpr:
		mark := fc.fs.mark()
		objReg := fc.fs.alloc()
		if err := fc.compileInto(e.Left, objReg); err != nil {
			return err
		}
		idx := fc.chunk.AddConst(e.Property)
		fc.emit(OP_FIELD_GET, dst, int16(objReg), int16(idx))
		fc.fs.freeTo(mark)
	case *ast.CallExpr:
		return fc.compileCall(e, dst)
	case *ast.AssignExpr:
		return fc.compileAssignInto(e, dst)
	case *ast.UpdateExpr:
		return fc.compileUpdateInto(e, dst)
	case *ast.UnaryExpr:
		return fc.compileUnary(e, dst)
	case *ast.BinaryExpr:
		return fc.compileBinary(e, dst)
	case *ast.TernaryExpr:
		return fc.compileTernary(e, dst)
	case *ast.CastExpr:
		return fc.compileCast(e, dst)
	case *ast.TypeofExpr:
		mark := fc.fs.mark()
		srcReg := fc.fs.alloc()
		if err := fc.compileInto(e.Arg, srcReg); err != nil {
			return err
		}
		fc.emit(OP_TYPEOF, dst, int16(srcReg), 0)
		fc.fs.freeTo(mark)
	case *ast.SizeofExpr:
		mark := fc.fs.mark()
		srcReg := fc.fs.alloc()
		if err := fc.compileInto(e.Arg, srcReg); err != nil {
			return err
		}
		fc.emit(OP_SIZEOF, dst, int16(srcReg), 0)
		fc.fs.freeTo(mark)
	case *ast.RequireExpr:
		return fc.compileRequire(e, dst)
	case *ast.FuncExpr:
		return fc.compileFuncExprInto(e, dst)
	default:
		return fmt.Errorf("compiler: unsupported expression %T", expr)
	}
	return nil
}

func (fc *funcCompiler) compileIdentInto(name string, dst uint8) error {
	if reg, ok := fc.fs.resolveLocal(name); ok {
		fc.emit(OP_MOVE, dst, int16(reg), 0)
		return nil
	}
	if idx, ok := fc.fs.resolveUpvalue(name); ok {
		fc.emit(OP_UP_GET, dst, int16(idx), 0)
		return nil
	}
	idx := fc.chunk.AddConst(name)
	fc.emit(OP_GET_GLOBAL, dst, int16(idx), 0)
	return nil
}

// compileArrayLiteral: bare items append at the next dense index; `[i] =
// v` items write at an explicit index, gap-filling with null writes in
// between (spec.md §3.2 array growth semantics, enforced at runtime by
// OP_ARRAY_SET).
func (fc *funcCompiler) compileArrayLiteral(e *ast.ArrayLiteral, dst uint8) error {
	fc.emit(OP_NEW_ARRAY, dst, 0, 0)
	mark := fc.fs.mark()
	for _, item := range e.Items {
		if item.Index == nil {
			valReg := fc.fs.alloc()
			if err := fc.compileInto(item.Value, valReg); err != nil {
				return err
			}
			fc.emit(OP_ARRAY_APPEND, dst, int16(valReg), 0)
		} else {
			idxReg := fc.fs.alloc()
			if err := fc.compileInto(item.Index, idxReg); err != nil {
				return err
			}
			valReg := fc.fs.alloc()
			if err := fc.compileInto(item.Value, valReg); err != nil {
				return err
			}
			fc.emit(OP_ARRAY_SET, dst, int16(idxReg), int16(valReg))
		}
		fc.fs.freeTo(mark)
	}
	return nil
}

// compileStructLiteral preserves insertion order (spec.md §3.3: struct
// keys iterate in the order first assigned); keys may be static strings
// (`.name`, bare `name`) or a dynamic `[expr]`, so OP_STRUCT_SET always
// takes its key from a register rather than a constant index.
func (fc *funcCompiler) compileStructLiteral(e *ast.StructLiteral, dst uint8) error {
	fc.emit(OP_NEW_STRUCT, dst, 0, 0)
	mark := fc.fs.mark()
	for _, item := range e.Items {
		keyReg := fc.fs.alloc()
		if err := fc.compileInto(item.Key, keyReg); err != nil {
			return err
		}
		valReg := fc.fs.alloc()
		if err := fc.compileInto(item.Value, valReg); err != nil {
			return err
		}
		fc.emit(OP_STRUCT_SET, dst, int16(keyReg), int16(valReg))
		fc.fs.freeTo(mark)
	}
	return nil
}

func (fc *funcCompiler) compileCall(e *ast.CallExpr, dst uint8) error {
	mark := fc.fs.mark()
	fnReg := fc.fs.alloc()
	if err := fc.compileInto(e.Callee, fnReg); err != nil {
		return err
	}
	for _, arg := range e.Arguments {
		argReg := fc.fs.alloc()
		if err := fc.compileInto(arg, argReg); err != nil {
			return err
		}
	}
	if len(e.Arguments) > 0x7fff {
		return fmt.Errorf("compiler: too many call arguments")
	}
	fc.emit(OP_CALL, fnReg, int16(len(e.Arguments)), int16(dst))
	fc.fs.freeTo(mark)
	return nil
}

// compileRequire lowers require(pathExpr, args...) following the same
// fnReg/argBase/argCount convention as CALL (spec.md §4.5), with pathReg
// standing in for the callee register.
func (fc *funcCompiler) compileRequire(e *ast.RequireExpr, dst uint8) error {
	mark := fc.fs.mark()
	pathReg := fc.fs.alloc()
	if err := fc.compileInto(e.Path, pathReg); err != nil {
		return err
	}
	for _, arg := range e.Arguments {
		argReg := fc.fs.alloc()
		if err := fc.compileInto(arg, argReg); err != nil {
			return err
		}
	}
	fc.emit(OP_REQUIRE, dst, int16(len(e.Arguments)), int16(pathReg))
	fc.fs.freeTo(mark)
	return nil
}

func (fc *funcCompiler) compileUnary(e *ast.UnaryExpr, dst uint8) error {
	if e.Operator == token.Plus {
		return fc.compileInto(e.Right, dst)
	}
	mark := fc.fs.mark()
	srcReg := fc.fs.alloc()
	if err := fc.compileInto(e.Right, srcReg); err != nil {
		return err
	}
	var op byte
	switch e.Operator {
	case token.Minus:
		op = OP_NEG
	case token.Bang:
		op = OP_NOT
	case token.Tilde:
		op = OP_BNOT
	default:
		return fmt.Errorf("compiler: unsupported unary operator %s", e.Operator)
	}
	fc.emit(op, dst, int16(srcReg), 0)
	fc.fs.freeTo(mark)
	return nil
}

var binaryOps = map[token.Type]byte{
	token.Plus:         OP_ADD,
	token.Minus:        OP_SUB,
	token.Star:         OP_MUL,
	token.Slash:        OP_DIV,
	token.Percent:      OP_MOD,
	token.Shl:          OP_SHL,
	token.Shr:          OP_SHR,
	token.Amp:          OP_BAND,
	token.Pipe:         OP_BOR,
	token.Caret:        OP_BXOR,
	token.Equal:        OP_EQ,
	token.NotEqual:     OP_NEQ,
	token.Less:         OP_LT,
	token.LessEqual:    OP_LTE,
	token.Greater:      OP_GT,
	token.GreaterEqual: OP_GTE,
}

func (fc *funcCompiler) compileBinary(e *ast.BinaryExpr, dst uint8) error {
	if e.Operator == token.AndAnd || e.Operator == token.OrOr {
		return fc.compileLogical(e, dst)
	}
	op, ok := binaryOps[e.Operator]
	if !ok {
		return fmt.Errorf("compiler: unsupported binary operator %s", e.Operator)
	}
	mark := fc.fs.mark()
	leftReg := fc.fs.alloc()
	if err := fc.compileInto(e.Left, leftReg); err != nil {
		return err
	}
	rightReg := fc.fs.alloc()
	if err := fc.compileInto(e.Right, rightReg); err != nil {
		return err
	}
	fc.emit(op, dst, int16(leftReg), int16(rightReg))
	fc.fs.freeTo(mark)
	return nil
}

// compileLogical lowers && and || to conditional jumps that skip the right
// operand and coerce the result to a real bool (spec.md §4.2: "produce a
// boolean-coerced result in a single destination register").
func (fc *funcCompiler) compileLogical(e *ast.BinaryExpr, dst uint8) error {
	mark := fc.fs.mark()
	leftReg := fc.fs.alloc()
	if err := fc.compileInto(e.Left, leftReg); err != nil {
		return err
	}
	fc.emit(OP_TO_BOOL, dst, int16(leftReg), 0)
	var skip int
	if e.Operator == token.AndAnd {
		skip = fc.emit(OP_JMP_IF_FALSE, dst, 0, 0)
	} else {
		skip = fc.emit(OP_JMP_IF_TRUE, dst, 0, 0)
	}
	rightReg := fc.fs.alloc()
	if err := fc.compileInto(e.Right, rightReg); err != nil {
		return err
	}
	fc.emit(OP_TO_BOOL, dst, int16(rightReg), 0)
	fc.patchJumpHere(skip)
	fc.fs.freeTo(mark)
	return nil
}

func (fc *funcCompiler) compileTernary(e *ast.TernaryExpr, dst uint8) error {
	mark := fc.fs.mark()
	condReg := fc.fs.alloc()
	if err := fc.compileInto(e.Condition, condReg); err != nil {
		return err
	}
	falseJump := fc.emit(OP_JMP_IF_FALSE, condReg, 0, 0)
	fc.fs.freeTo(mark)
	if err := fc.compileInto(e.Then, dst); err != nil {
		return err
	}
	overJump := fc.emit(OP_JMP, 0, 0, 0)
	fc.patchJumpHere(falseJump)
	if err := fc.compileInto(e.Else, dst); err != nil {
		return err
	}
	fc.patchJumpHere(overJump)
	return nil
}

var castOps = map[token.Type]byte{
	token.IntKw:   OP_CAST_INT,
	token.FloatKw: OP_CAST_FLOAT,
	token.StrKw:   OP_CAST_STR,
	token.BoolKw:  OP_CAST_BOOL,
}

func (fc *funcCompiler) compileCast(e *ast.CastExpr, dst uint8) error {
	op, ok := castOps[e.Target]
	if !ok {
		return fmt.Errorf("compiler: unsupported cast target %s", e.Target)
	}
	mark := fc.fs.mark()
	srcReg := fc.fs.alloc()
	if err := fc.compileInto(e.Arg, srcReg); err != nil {
		return err
	}
	fc.emit(op, dst, int16(srcReg), 0)
	fc.fs.freeTo(mark)
	return nil
}

// lvalue abstracts the three assignable forms (identifier, index, member)
// behind a get/set pair so compound assignment and ++/-- share one
// implementation. resolveLValue returns it together with the register-stack
// mark to restore once both get and set have been used.
type lvalue struct {
	get func(dst uint8)
	set func(src uint8)
}

func (fc *funcCompiler) resolveLValue(target ast.Expression) (lvalue, uint8, error) {
	mark := fc.fs.mark()
	switch t := ast.Unwrap(target).(type) {
	case *ast.Identifier:
		name := t.Name
		if reg, ok := fc.fs.resolveLocal(name); ok {
			return lvalue{
				get: func(dst uint8) { fc.emit(OP_MOVE, dst, int16(reg), 0) },
				set: func(src uint8) { fc.emit(OP_MOVE, reg, int16(src), 0) },
			}, mark, nil
		}
		if idx, ok := fc.fs.resolveUpvalue(name); ok {
			return lvalue{
				get: func(dst uint8) { fc.emit(OP_UP_GET, dst, int16(idx), 0) },
				set: func(src uint8) { fc.emit(OP_UP_SET, idx, int16(src), 0) },
			}, mark, nil
		}
		nameIdx := fc.chunk.AddConst(name)
		return lvalue{
			get: func(dst uint8) { fc.emit(OP_GET_GLOBAL, dst, int16(nameIdx), 0) },
			set: func(src uint8) { fc.emit(OP_SET_GLOBAL, src, int16(nameIdx), 0) },
		}, mark, nil
	case *ast.IndexExpr:
		containerReg := fc.fs.alloc()
		if err := fc.compileInto(t.Left, containerReg); err != nil {
			return lvalue{}, mark, err
		}
		indexReg := fc.fs.alloc()
		if err := fc.compileInto(t.Index, indexReg); err != nil {
			return lvalue{}, mark, err
		}
		return lvalue{
			get: func(dst uint8) { fc.emit(OP_IDX_GET, dst, int16(containerReg), int16(indexReg)) },
			set: func(src uint8) { fc.emit(OP_IDX_SET, containerReg, int16(indexReg), int16(src)) },
		}, mark, nil
	case *ast.MemberExpr:
		objReg := fc.fs.alloc()
		if err := fc.compileInto(t.Left, objReg); err != nil {
			return lvalue{}, mark, err
		}
		fieldIdx := fc.chunk.AddConst(t.Property)
		return lvalue{
			get: func(dst uint8) { fc.emit(OP_FIELD_GET, dst, int16(objReg), int16(fieldIdx)) },
			set: func(src uint8) { fc.emit(OP_FIELD_SET, objReg, int16(fieldIdx), int16(src)) },
		}, mark, nil
	default:
		return lvalue{}, mark, fmt.Errorf("compiler: invalid assignment target %T", t)
	}
}

var compoundOps = map[token.Type]byte{
	token.PlusAssign:    OP_ADD,
	token.MinusAssign:   OP_SUB,
	token.StarAssign:    OP_MUL,
	token.SlashAssign:   OP_DIV,
	token.PercentAssign: OP_MOD,
	token.ShlAssign:     OP_SHL,
	token.ShrAssign:     OP_SHR,
	token.AmpAssign:     OP_BAND,
	token.PipeAssign:    OP_BOR,
	token.CaretAssign:   OP_BXOR,
}

func (fc *funcCompiler) compileAssignInto(e *ast.AssignExpr, dst uint8) error {
	lv, mark, err := fc.resolveLValue(e.Left)
	if err != nil {
		return err
	}
	if e.Operator == token.Assign {
		valReg := fc.fs.alloc()
		if err := fc.compileInto(e.Value, valReg); err != nil {
			return err
		}
		lv.set(valReg)
		fc.emit(OP_MOVE, dst, int16(valReg), 0)
		fc.fs.freeTo(mark)
		return nil
	}
	op, ok := compoundOps[e.Operator]
	if !ok {
		return fmt.Errorf("compiler: unsupported assignment operator %s", e.Operator)
	}
	oldReg := fc.fs.alloc()
	lv.get(oldReg)
	valReg := fc.fs.alloc()
	if err := fc.compileInto(e.Value, valReg); err != nil {
		return err
	}
	newReg := fc.fs.alloc()
	fc.emit(op, newReg, int16(oldReg), int16(valReg))
	lv.set(newReg)
	fc.emit(OP_MOVE, dst, int16(newReg), 0)
	fc.fs.freeTo(mark)
	return nil
}

func (fc *funcCompiler) compileUpdateInto(e *ast.UpdateExpr, dst uint8) error {
	lv, mark, err := fc.resolveLValue(e.Target)
	if err != nil {
		return err
	}
	oneIdx := fc.chunk.AddConst(int64(1))
	oldReg := fc.fs.alloc()
	lv.get(oldReg)
	constReg := fc.fs.alloc()
	fc.emit(OP_LOAD_CONST, constReg, int16(oneIdx), 0)
	op := byte(OP_ADD)
	if e.Operator == token.MinusMinus {
		op = OP_SUB
	}
	newReg := fc.fs.alloc()
	fc.emit(op, newReg, int16(oldReg), int16(constReg))
	lv.set(newReg)
	if e.Prefix {
		fc.emit(OP_MOVE, dst, int16(newReg), 0)
	} else {
		fc.emit(OP_MOVE, dst, int16(oldReg), 0)
	}
	fc.fs.freeTo(mark)
	return nil
}

// compileFuncExprInto compiles a closure literal into a nested Prototype,
// placed in the constant pool, and emits CLOSE_FN plus its upvalue
// descriptor words (spec.md §5: upvalues captured either from the
// enclosing frame's locals or the enclosing closure's own upvalues).
func (fc *funcCompiler) compileFuncExprInto(fn *ast.FuncExpr, dst uint8) error {
	child := &funcCompiler{c: fc.c, fs: newFuncScope(fc.fs), chunk: &Chunk{}, source: fc.source, line: fc.line}
	for _, p := range fn.Params {
		child.fs.declareLocal(p.Name)
	}
	if err := child.compileBlock(fn.Body); err != nil {
		return err
	}
	child.ensureReturn()

	proto := &Prototype{
		Name:          "closure",
		Source:        fc.source,
		NumParams:     len(fn.Params),
		RegisterCount: int(child.fs.highWater),
		Chunk:         child.chunk,
		Upvalues:      child.fs.upvalues,
	}
	protoIdx := fc.chunk.AddConst(proto)
	fc.emit(OP_CLOSE_FN, dst, int16(protoIdx), 0)
	for _, uv := range proto.Upvalues {
		fc.chunk.EmitUpvalueDescriptor(uv.FromParentLocal, uv.Index)
	}
	return nil
}

func (fc *funcCompiler) emit(op byte, a uint8, b, c int16) int {
	fc.recordLine()
	return fc.chunk.Emit(op, a, b, c)
}

// patchJumpHere patches the jump at instrStart to target the current end
// of the code stream (a forward jump to "here").
func (fc *funcCompiler) patchJumpHere(instrStart int) {
	fc.patchJumpTo(instrStart, len(fc.chunk.Code))
}

// patchJumpTo patches the jump at instrStart to target an arbitrary
// already-known offset (forward or backward).
func (fc *funcCompiler) patchJumpTo(instrStart, target int) {
	offset := target - (instrStart + bytecode.InstructionWidth)
	fc.chunk.PatchB(instrStart, int16(offset))
}

func (fc *funcCompiler) setLine(line int) {
	if line > 0 {
		fc.line = line
	}
}

func (fc *funcCompiler) recordLine() {
	if fc.line == 0 {
		return
	}
	off := len(fc.chunk.Code)
	if len(fc.chunk.Lines) == 0 || fc.chunk.Lines[len(fc.chunk.Lines)-1].Offset != off {
		fc.chunk.Lines = append(fc.chunk.Lines, LineInfo{Offset: off, Line: fc.line})
	}
}
