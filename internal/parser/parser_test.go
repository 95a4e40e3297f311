package parser

import (
	"fmt"
	"testing"

	"github.com/oyc-lang/oyc/internal/ast"
	"github.com/oyc-lang/oyc/internal/lexer"
	"github.com/oyc-lang/oyc/internal/token"
)

func parseProgram(t *testing.T, input string) *ast.Program {
	t.Helper()
	p := New(lexer.New(input))
	prog := p.ParseProgram()
	checkErrors(t, p)
	return prog
}

func checkErrors(t *testing.T, p *Parser) {
	t.Helper()
	errs := p.Errors()
	if len(errs) == 0 {
		return
	}
	for _, e := range errs {
		t.Errorf("parser error: %s", e)
	}
	t.FailNow()
}

func TestAutoDeclAndLiterals(t *testing.T) {
	prog := parseProgram(t, `auto x = 5; auto y = 1.5; auto s = "hi"; auto b = true; auto n = null;`)
	if len(prog.Statements) != 5 {
		t.Fatalf("expected 5 statements, got %d", len(prog.Statements))
	}
	decl, ok := prog.Statements[0].(*ast.AutoDecl)
	if !ok {
		t.Fatalf("expected *ast.AutoDecl, got %T", prog.Statements[0])
	}
	if decl.Name != "x" {
		t.Fatalf("expected name x, got %s", decl.Name)
	}
	lit, ok := decl.Value.(*ast.IntLiteral)
	if !ok || lit.Value != 5 {
		t.Fatalf("expected int literal 5, got %#v", decl.Value)
	}
}

func TestArrayLiteral(t *testing.T) {
	prog := parseProgram(t, `auto a = [] { 1, 2, [5] = 9 };`)
	decl := prog.Statements[0].(*ast.AutoDecl)
	arr, ok := decl.Value.(*ast.ArrayLiteral)
	if !ok {
		t.Fatalf("expected *ast.ArrayLiteral, got %T", decl.Value)
	}
	if len(arr.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(arr.Items))
	}
	if arr.Items[0].Index != nil {
		t.Fatalf("expected item 0 to have no explicit index")
	}
	if arr.Items[2].Index == nil {
		t.Fatalf("expected item 2 to have an explicit index")
	}
	idx, ok := arr.Items[2].Index.(*ast.IntLiteral)
	if !ok || idx.Value != 5 {
		t.Fatalf("expected explicit index 5, got %#v", arr.Items[2].Index)
	}
}

func TestEmptyArrayLiteral(t *testing.T) {
	prog := parseProgram(t, `auto a = [] {};`)
	decl := prog.Statements[0].(*ast.AutoDecl)
	arr, ok := decl.Value.(*ast.ArrayLiteral)
	if !ok {
		t.Fatalf("expected *ast.ArrayLiteral, got %T", decl.Value)
	}
	if len(arr.Items) != 0 {
		t.Fatalf("expected 0 items, got %d", len(arr.Items))
	}
}

func TestStructLiteralAllKeyForms(t *testing.T) {
	prog := parseProgram(t, `auto s = struct { .a = 1, [foo()] = 2, b = 3 };`)
	decl := prog.Statements[0].(*ast.AutoDecl)
	st, ok := decl.Value.(*ast.StructLiteral)
	if !ok {
		t.Fatalf("expected *ast.StructLiteral, got %T", decl.Value)
	}
	if len(st.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(st.Items))
	}
	keyLit, ok := st.Items[0].Key.(*ast.StringLiteral)
	if !ok || keyLit.Value != "a" {
		t.Fatalf("expected .a key as string literal, got %#v", st.Items[0].Key)
	}
	if _, ok := st.Items[1].Key.(*ast.CallExpr); !ok {
		t.Fatalf("expected [foo()] key as call expr, got %#v", st.Items[1].Key)
	}
	bareKey, ok := st.Items[2].Key.(*ast.StringLiteral)
	if !ok || bareKey.Value != "b" {
		t.Fatalf("expected bare key b as string literal, got %#v", st.Items[2].Key)
	}
}

func TestClosureLiteral(t *testing.T) {
	prog := parseProgram(t, `auto add = (auto a, auto b) { return a + b; };`)
	decl := prog.Statements[0].(*ast.AutoDecl)
	fn, ok := decl.Value.(*ast.FuncExpr)
	if !ok {
		t.Fatalf("expected *ast.FuncExpr, got %T", decl.Value)
	}
	if len(fn.Params) != 2 || fn.Params[0].Name != "a" || fn.Params[1].Name != "b" {
		t.Fatalf("unexpected params: %#v", fn.Params)
	}
	if len(fn.Body.Statements) != 1 {
		t.Fatalf("expected 1 statement in body, got %d", len(fn.Body.Statements))
	}
}

func TestClosureNoParams(t *testing.T) {
	prog := parseProgram(t, `auto f = () { return 1; };`)
	decl := prog.Statements[0].(*ast.AutoDecl)
	fn, ok := decl.Value.(*ast.FuncExpr)
	if !ok {
		t.Fatalf("expected *ast.FuncExpr, got %T", decl.Value)
	}
	if len(fn.Params) != 0 {
		t.Fatalf("expected 0 params, got %d", len(fn.Params))
	}
}

func TestGroupedExpressionNotConfusedWithClosure(t *testing.T) {
	prog := parseProgram(t, `auto x = (1 + 2) * 3;`)
	decl := prog.Statements[0].(*ast.AutoDecl)
	bin, ok := decl.Value.(*ast.BinaryExpr)
	if !ok {
		t.Fatalf("expected *ast.BinaryExpr, got %T", decl.Value)
	}
	if bin.Operator != token.Star {
		t.Fatalf("expected outer operator *, got %s", bin.Operator)
	}
	if _, ok := bin.Left.(*parenWrap); !ok {
		t.Fatalf("expected left operand wrapped in parens, got %T", bin.Left)
	}
}

func TestCastsTypeofSizeof(t *testing.T) {
	prog := parseProgram(t, `
auto a = int(x);
auto b = float(x);
auto c = str(x);
auto d = bool(x);
auto e = typeof(x);
auto f = sizeof(x);
`)
	if len(prog.Statements) != 6 {
		t.Fatalf("expected 6 statements, got %d", len(prog.Statements))
	}
	cases := []struct {
		idx    int
		target token.Type
	}{
		{0, token.IntKw},
		{1, token.FloatKw},
		{2, token.StrKw},
		{3, token.BoolKw},
	}
	for _, c := range cases {
		decl := prog.Statements[c.idx].(*ast.AutoDecl)
		cast, ok := decl.Value.(*ast.CastExpr)
		if !ok {
			t.Fatalf("statement %d: expected *ast.CastExpr, got %T", c.idx, decl.Value)
		}
		if cast.Target != c.target {
			t.Fatalf("statement %d: expected target %s, got %s", c.idx, c.target, cast.Target)
		}
	}
	if _, ok := prog.Statements[4].(*ast.AutoDecl).Value.(*ast.TypeofExpr); !ok {
		t.Fatalf("expected *ast.TypeofExpr")
	}
	if _, ok := prog.Statements[5].(*ast.AutoDecl).Value.(*ast.SizeofExpr); !ok {
		t.Fatalf("expected *ast.SizeofExpr")
	}
}

func TestRequireExpr(t *testing.T) {
	prog := parseProgram(t, `auto m = require("./util.oyc", 1, 2);`)
	decl := prog.Statements[0].(*ast.AutoDecl)
	req, ok := decl.Value.(*ast.RequireExpr)
	if !ok {
		t.Fatalf("expected *ast.RequireExpr, got %T", decl.Value)
	}
	path, ok := req.Path.(*ast.StringLiteral)
	if !ok || path.Value != "./util.oyc" {
		t.Fatalf("expected path literal, got %#v", req.Path)
	}
	if len(req.Arguments) != 2 {
		t.Fatalf("expected 2 extra arguments, got %d", len(req.Arguments))
	}
}

func TestTraceIsOrdinaryIdentifierCall(t *testing.T) {
	prog := parseProgram(t, `trace(x);`)
	stmt, ok := prog.Statements[0].(*ast.ExprStmt)
	if !ok {
		t.Fatalf("expected *ast.ExprStmt, got %T", prog.Statements[0])
	}
	call, ok := stmt.Expression.(*ast.CallExpr)
	if !ok {
		t.Fatalf("expected *ast.CallExpr, got %T", stmt.Expression)
	}
	ident, ok := call.Callee.(*ast.Identifier)
	if !ok || ident.Name != "trace" {
		t.Fatalf("expected callee identifier 'trace', got %#v", call.Callee)
	}
}

func TestDeleteStatement(t *testing.T) {
	prog := parseProgram(t, `delete a[0]; delete s.k;`)
	del1, ok := prog.Statements[0].(*ast.DeleteStmt)
	if !ok {
		t.Fatalf("expected *ast.DeleteStmt, got %T", prog.Statements[0])
	}
	if _, ok := del1.Target.(*ast.IndexExpr); !ok {
		t.Fatalf("expected IndexExpr target, got %#v", del1.Target)
	}
	del2 := prog.Statements[1].(*ast.DeleteStmt)
	if _, ok := del2.Target.(*ast.MemberExpr); !ok {
		t.Fatalf("expected MemberExpr target, got %#v", del2.Target)
	}
}

func TestIfElseIfChain(t *testing.T) {
	prog := parseProgram(t, `
if (auto x = f(); x > 0) {
  return 1;
} else if (x < 0) {
  return -1;
} else {
  return 0;
}
`)
	ifStmt, ok := prog.Statements[0].(*ast.IfStmt)
	if !ok {
		t.Fatalf("expected *ast.IfStmt, got %T", prog.Statements[0])
	}
	if ifStmt.Init == nil {
		t.Fatalf("expected init declaration")
	}
	elseIf, ok := ifStmt.Alt.(*ast.IfStmt)
	if !ok {
		t.Fatalf("expected else-if chain, got %T", ifStmt.Alt)
	}
	if _, ok := elseIf.Alt.(*ast.BlockStmt); !ok {
		t.Fatalf("expected final else block, got %T", elseIf.Alt)
	}
}

func TestWhileStatement(t *testing.T) {
	prog := parseProgram(t, `while (x < 10) { trace(x); }`)
	w, ok := prog.Statements[0].(*ast.WhileStmt)
	if !ok {
		t.Fatalf("expected *ast.WhileStmt, got %T", prog.Statements[0])
	}
	if w.Condition == nil {
		t.Fatalf("expected condition")
	}
	if len(w.Body.Statements) != 1 {
		t.Fatalf("expected 1 statement in body, got %d", len(w.Body.Statements))
	}
}

func TestSwitchStatement(t *testing.T) {
	prog := parseProgram(t, `
switch (x) {
case 1:
  trace(1);
case 2:
case 3:
  trace(2);
  break;
default:
  trace(0);
}
`)
	sw, ok := prog.Statements[0].(*ast.SwitchStmt)
	if !ok {
		t.Fatalf("expected *ast.SwitchStmt, got %T", prog.Statements[0])
	}
	if len(sw.Cases) != 4 {
		t.Fatalf("expected 4 case clauses, got %d", len(sw.Cases))
	}
	if sw.Cases[1].IsDefault || len(sw.Cases[1].Statements) != 0 {
		t.Fatalf("expected empty fallthrough case 2, got %#v", sw.Cases[1])
	}
	if !sw.Cases[3].IsDefault {
		t.Fatalf("expected last clause to be default")
	}
}

func TestForLoopAllClauses(t *testing.T) {
	prog := parseProgram(t, `for (auto i = 0; i < 10; i = i + 1) { trace(i); }`)
	f, ok := prog.Statements[0].(*ast.ForStmt)
	if !ok {
		t.Fatalf("expected *ast.ForStmt, got %T", prog.Statements[0])
	}
	if f.Init == nil || f.Cond == nil || f.Step == nil {
		t.Fatalf("expected all three clauses present: %#v", f)
	}
}

func TestForLoopEmptyClauses(t *testing.T) {
	prog := parseProgram(t, `for (;;) { break; }`)
	f, ok := prog.Statements[0].(*ast.ForStmt)
	if !ok {
		t.Fatalf("expected *ast.ForStmt, got %T", prog.Statements[0])
	}
	if f.Init != nil || f.Cond != nil || f.Step != nil {
		t.Fatalf("expected all clauses absent: %#v", f)
	}
}

func TestForeachKeyValue(t *testing.T) {
	prog := parseProgram(t, `foreach (auto k, v : s) { trace(k); }`)
	f, ok := prog.Statements[0].(*ast.ForeachStmt)
	if !ok {
		t.Fatalf("expected *ast.ForeachStmt, got %T", prog.Statements[0])
	}
	if f.KeyName != "k" || f.ValueName != "v" {
		t.Fatalf("unexpected bindings: key=%q value=%q", f.KeyName, f.ValueName)
	}
}

func TestForeachKeyValueWithLoopBody(t *testing.T) {
	prog := parseProgram(t, `foreach (auto k, v : a) {}`)
	f, ok := prog.Statements[0].(*ast.ForeachStmt)
	if !ok {
		t.Fatalf("expected *ast.ForeachStmt, got %T", prog.Statements[0])
	}
	if f.KeyName != "k" || f.ValueName != "v" {
		t.Fatalf("unexpected bindings: key=%q value=%q", f.KeyName, f.ValueName)
	}
	iterable, ok := f.Iterable.(*ast.Identifier)
	if !ok || iterable.Name != "a" {
		t.Fatalf("expected iterable identifier a, got %#v", f.Iterable)
	}
	if len(f.Body.Statements) != 0 {
		t.Fatalf("expected empty body, got %d statements", len(f.Body.Statements))
	}
}

func TestForeachValueOnly(t *testing.T) {
	prog := parseProgram(t, `foreach (auto v : a) { trace(v); }`)
	f := prog.Statements[0].(*ast.ForeachStmt)
	if f.KeyName != "" || f.ValueName != "v" {
		t.Fatalf("unexpected bindings: key=%q value=%q", f.KeyName, f.ValueName)
	}
}

func TestDoWhile(t *testing.T) {
	prog := parseProgram(t, `do { trace(1); } while (x < 10);`)
	d, ok := prog.Statements[0].(*ast.DoWhileStmt)
	if !ok {
		t.Fatalf("expected *ast.DoWhileStmt, got %T", prog.Statements[0])
	}
	if d.Condition == nil {
		t.Fatalf("expected condition")
	}
}

func TestTernaryRightAssociative(t *testing.T) {
	prog := parseProgram(t, `auto x = a ? b : c ? d : e;`)
	decl := prog.Statements[0].(*ast.AutoDecl)
	outer, ok := decl.Value.(*ast.TernaryExpr)
	if !ok {
		t.Fatalf("expected *ast.TernaryExpr, got %T", decl.Value)
	}
	if _, ok := outer.Else.(*ast.TernaryExpr); !ok {
		t.Fatalf("expected nested ternary in else-branch, got %T", outer.Else)
	}
}

func TestCompoundAssignment(t *testing.T) {
	prog := parseProgram(t, `x += 1;`)
	stmt := prog.Statements[0].(*ast.ExprStmt)
	assign, ok := stmt.Expression.(*ast.AssignExpr)
	if !ok {
		t.Fatalf("expected *ast.AssignExpr, got %T", stmt.Expression)
	}
	if assign.Operator != token.PlusAssign {
		t.Fatalf("expected +=, got %s", assign.Operator)
	}
}

func TestPrefixAndPostfixUpdate(t *testing.T) {
	prog := parseProgram(t, `++x; x++;`)
	pre, ok := prog.Statements[0].(*ast.ExprStmt).Expression.(*ast.UpdateExpr)
	if !ok || !pre.Prefix {
		t.Fatalf("expected prefix update, got %#v", prog.Statements[0])
	}
	post, ok := prog.Statements[1].(*ast.ExprStmt).Expression.(*ast.UpdateExpr)
	if !ok || post.Prefix {
		t.Fatalf("expected postfix update, got %#v", prog.Statements[1])
	}
}

func TestOperatorPrecedenceOrdering(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a + b * c", "(a + (b * c))"},
		{"a * b + c", "((a * b) + c)"},
		{"a || b && c", "(a || (b && c))"},
		{"a & b | c ^ d", "((a & b) | (c ^ d))"},
		{"a == b < c", "(a == (b < c))"},
		{"a << 1 + 2", "(a << (1 + 2))"},
		{"-a * b", "((-a) * b)"},
		{"!a == b", "((!a) == b)"},
		{"a.b[c]", "(a.b[c])"},
		{"a = b = c", "(a = (b = c))"},
	}
	for _, tt := range tests {
		prog := parseProgram(t, tt.input+";")
		stmt := prog.Statements[0].(*ast.ExprStmt)
		got := exprString(stmt.Expression)
		if got != tt.expected {
			t.Errorf("input %q: expected %q, got %q", tt.input, tt.expected, got)
		}
	}
}

// exprString renders an expression tree in a fully-parenthesized form for
// precedence assertions, with operators in their source spelling; member
// access is left unparenthesized.
func exprString(e ast.Expression) string {
	switch n := e.(type) {
	case *ast.BinaryExpr:
		return fmt.Sprintf("(%s %s %s)", exprString(n.Left), opSymbol(n.Operator), exprString(n.Right))
	case *ast.UnaryExpr:
		return fmt.Sprintf("(%s%s)", opSymbol(n.Operator), exprString(n.Right))
	case *ast.AssignExpr:
		return fmt.Sprintf("(%s %s %s)", exprString(n.Left), opSymbol(n.Operator), exprString(n.Value))
	case *ast.MemberExpr:
		return fmt.Sprintf("%s.%s", exprString(n.Left), n.Property)
	case *ast.IndexExpr:
		return fmt.Sprintf("(%s[%s])", exprString(n.Left), exprString(n.Index))
	case *ast.Identifier:
		return n.Name
	case *ast.IntLiteral:
		return fmt.Sprintf("%d", n.Value)
	case *parenWrap:
		return exprString(n.Expression)
	default:
		return fmt.Sprintf("%T", e)
	}
}

// opSymbol maps an operator token type to its source spelling.
func opSymbol(t token.Type) string {
	symbols := map[token.Type]string{
		token.Plus: "+", token.Minus: "-", token.Star: "*", token.Bang: "!",
		token.OrOr: "||", token.AndAnd: "&&", token.Amp: "&", token.Pipe: "|",
		token.Caret: "^", token.Equal: "==", token.Less: "<", token.Shl: "<<",
		token.Assign: "=",
	}
	if s, ok := symbols[t]; ok {
		return s
	}
	return string(t)
}

func TestParseErrorOnMissingSemicolon(t *testing.T) {
	p := New(lexer.New(`auto x = 5`))
	p.ParseProgram()
	if len(p.Errors()) == 0 {
		t.Fatalf("expected a parse error for missing semicolon")
	}
}
