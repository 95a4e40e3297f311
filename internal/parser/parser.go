// Package parser turns a token stream into an AST for one script.
package parser

import (
	"fmt"
	"strconv"

	"github.com/oyc-lang/oyc/internal/ast"
	"github.com/oyc-lang/oyc/internal/lexer"
	"github.com/oyc-lang/oyc/internal/token"
)

// Parser is a recursive-descent parser with a single token of lookahead,
// following the precedence ladder documented in spec.md §4.2:
// assignment (right-assoc) -> ternary (right-assoc) -> || -> && -> | ->
// ^ -> & -> equality -> relational -> shift -> additive -> multiplicative
// -> unary -> postfix -> primary.
type Parser struct {
	l         *lexer.Lexer
	curToken  token.Token
	peekToken token.Token
	errors    []string
}

func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l, errors: []string{}}
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) Errors() []string {
	return p.errors
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// ParseProgram parses the whole script as an implicit top-level function
// body whose sole parameter is argv.
func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}
	for p.curToken.Type != token.EOF {
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		}
	}
	if len(prog.Statements) > 0 {
		prog.NodeSpan = token.Span{Start: prog.Statements[0].Span().Start, End: prog.Statements[len(prog.Statements)-1].Span().End}
	}
	return prog
}

// Statement parsing. By convention each parseXStmt leaves curToken on the
// first token following the statement (the next statement's start, or the
// enclosing block's closing '}'/EOF).

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.Semi:
		p.nextToken()
		return nil
	case token.LBrace:
		return p.parseBlock()
	case token.Auto:
		return p.parseAutoDecl()
	case token.Return:
		return p.parseReturn()
	case token.Delete:
		return p.parseDelete()
	case token.Break:
		return p.parseBreak()
	case token.Continue:
		return p.parseContinue()
	case token.If:
		return p.parseIf()
	case token.Switch:
		return p.parseSwitch()
	case token.While:
		return p.parseWhile()
	case token.Do:
		return p.parseDoWhile()
	case token.For:
		return p.parseFor()
	case token.Foreach:
		return p.parseForeach()
	default:
		return p.parseExprStatement()
	}
}

func (p *Parser) parseBlock() *ast.BlockStmt {
	block := &ast.BlockStmt{LBrace: p.curToken.Pos}
	p.nextToken() // consume '{'
	for p.curToken.Type != token.RBrace && p.curToken.Type != token.EOF {
		stmt := p.parseStatement()
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
	}
	end := block.LBrace
	if p.curToken.Type == token.RBrace {
		end = p.curToken.Pos
		p.nextToken() // consume '}'
	} else {
		p.errorf(p.curToken.Pos, "expected '}'")
	}
	block.BlockSpan = token.Span{Start: block.LBrace, End: end}
	return block
}

func (p *Parser) parseAutoDecl() ast.Statement {
	decl := &ast.AutoDecl{AutoPos: p.curToken.Pos}
	if !p.expectPeek(token.Ident) {
		return p.recoverStatement(decl)
	}
	decl.Name = p.curToken.Literal
	if p.peekToken.Type == token.Assign {
		p.nextToken() // at '='
		p.nextToken() // at value start
		decl.Value = p.parseExpression(lowest)
	}
	end := p.endSemi(decl.AutoPos)
	decl.StmtSpan = token.Span{Start: decl.AutoPos, End: end}
	return decl
}

func (p *Parser) parseReturn() ast.Statement {
	ret := &ast.ReturnStmt{Return: p.curToken.Pos}
	if p.peekToken.Type == token.Semi {
		p.nextToken() // at ';'
	} else {
		p.nextToken() // at value start
		ret.Value = p.parseExpression(lowest)
	}
	end := p.endSemi(ret.Return)
	ret.StmtSpan = token.Span{Start: ret.Return, End: end}
	return ret
}

func (p *Parser) parseDelete() ast.Statement {
	del := &ast.DeleteStmt{DeletePos: p.curToken.Pos}
	p.nextToken() // at target start
	del.Target = p.parseExpression(lowest)
	end := p.endSemi(del.DeletePos)
	del.StmtSpan = token.Span{Start: del.DeletePos, End: end}
	return del
}

func (p *Parser) parseBreak() ast.Statement {
	b := &ast.BreakStmt{BreakPos: p.curToken.Pos}
	end := p.endSemi(b.BreakPos)
	b.StmtSpan = token.Span{Start: b.BreakPos, End: end}
	return b
}

func (p *Parser) parseContinue() ast.Statement {
	c := &ast.ContinueStmt{ContinuePos: p.curToken.Pos}
	end := p.endSemi(c.ContinuePos)
	c.StmtSpan = token.Span{Start: c.ContinuePos, End: end}
	return c
}

// parseOptionalInit parses the "init?" clause shared by if/switch: an
// 'auto' declaration (which consumes its own trailing ';', leaving curToken
// on the token after it) if present, otherwise nil with no token consumed.
func (p *Parser) parseOptionalInit() ast.Statement {
	if p.peekToken.Type == token.Auto {
		p.nextToken() // at 'auto'
		return p.parseAutoDecl()
	}
	return nil
}

func (p *Parser) parseIf() ast.Statement {
	stmt := &ast.IfStmt{IfPos: p.curToken.Pos}
	if !p.expectPeek(token.LParen) {
		return p.recoverStatement(stmt)
	}
	stmt.Init = p.parseOptionalInit()
	if stmt.Init == nil {
		p.nextToken() // at condition start
	}
	stmt.Condition = p.parseExpression(lowest)
	p.consumeRParen()
	stmt.Conseq = p.parseBlock()

	if p.curToken.Type == token.Else {
		p.nextToken() // at 'else' body start
		if p.curToken.Type == token.If {
			stmt.Alt = p.parseIf()
		} else {
			stmt.Alt = p.parseBlock()
		}
	}
	end := stmt.Conseq.Span().End
	if stmt.Alt != nil {
		end = stmt.Alt.Span().End
	}
	stmt.IfSpan = token.Span{Start: stmt.IfPos, End: end}
	return stmt
}

func (p *Parser) parseSwitch() ast.Statement {
	stmt := &ast.SwitchStmt{SwitchPos: p.curToken.Pos}
	if !p.expectPeek(token.LParen) {
		return p.recoverStatement(stmt)
	}
	stmt.Init = p.parseOptionalInit()
	if stmt.Init == nil {
		p.nextToken() // at tag expression start
	}
	stmt.Tag = p.parseExpression(lowest)
	p.consumeRParen()
	if !p.curTokenIs(token.LBrace) {
		p.errorf(p.curToken.Pos, "expected '{' to start switch body")
		return p.recoverStatement(stmt)
	}
	p.nextToken() // consume '{'
	for p.curToken.Type != token.RBrace && p.curToken.Type != token.EOF {
		stmt.Cases = append(stmt.Cases, p.parseCaseClause())
	}
	end := p.curToken.Pos
	if p.curToken.Type == token.RBrace {
		p.nextToken() // consume '}'
	} else {
		p.errorf(p.curToken.Pos, "expected '}' to close switch")
	}
	stmt.NodeSpan = token.Span{Start: stmt.SwitchPos, End: end}
	return stmt
}

func (p *Parser) parseCaseClause() ast.CaseClause {
	clause := ast.CaseClause{Pos: p.curToken.Pos}
	switch p.curToken.Type {
	case token.Case:
		p.nextToken() // at label expression
		clause.Values = append(clause.Values, p.parseExpression(lowest))
		if !p.expectPeek(token.Colon) {
			return clause
		}
		p.nextToken() // consume ':'
	case token.Default:
		clause.IsDefault = true
		if !p.expectPeek(token.Colon) {
			return clause
		}
		p.nextToken() // consume ':'
	default:
		p.errorf(p.curToken.Pos, "expected 'case' or 'default'")
		p.nextToken()
		return clause
	}
	for p.curToken.Type != token.Case && p.curToken.Type != token.Default &&
		p.curToken.Type != token.RBrace && p.curToken.Type != token.EOF {
		stmt := p.parseStatement()
		if stmt != nil {
			clause.Statements = append(clause.Statements, stmt)
		}
	}
	return clause
}

func (p *Parser) parseWhile() ast.Statement {
	stmt := &ast.WhileStmt{WhilePos: p.curToken.Pos}
	if !p.expectPeek(token.LParen) {
		return p.recoverStatement(stmt)
	}
	p.nextToken() // at condition start
	stmt.Condition = p.parseExpression(lowest)
	p.consumeRParen()
	stmt.Body = p.parseBlock()
	stmt.NodeSpan = token.Span{Start: stmt.WhilePos, End: stmt.Body.Span().End}
	return stmt
}

func (p *Parser) parseDoWhile() ast.Statement {
	stmt := &ast.DoWhileStmt{DoPos: p.curToken.Pos}
	p.nextToken() // at body start
	stmt.Body = p.parseBlock()
	if !p.curTokenIs(token.While) {
		p.errorf(p.curToken.Pos, "expected 'while' after do block")
		return p.recoverStatement(stmt)
	}
	if !p.expectPeek(token.LParen) {
		return p.recoverStatement(stmt)
	}
	p.nextToken() // at condition start
	stmt.Condition = p.parseExpression(lowest)
	p.consumeRParen()
	// consumeRParen has already moved past ')', so curToken is the ';'.
	end := stmt.DoPos
	if p.curTokenIs(token.Semi) {
		end = p.curToken.Pos
		p.nextToken() // consume ';'
	} else {
		p.errorf(p.curToken.Pos, "expected ';', got %s", p.curToken.Type)
	}
	stmt.NodeSpan = token.Span{Start: stmt.DoPos, End: end}
	return stmt
}

func (p *Parser) parseFor() ast.Statement {
	stmt := &ast.ForStmt{ForPos: p.curToken.Pos}
	if !p.expectPeek(token.LParen) {
		return p.recoverStatement(stmt)
	}
	switch p.peekToken.Type {
	case token.Semi:
		p.nextToken() // at ';'
		p.nextToken() // consume ';'
	case token.Auto:
		p.nextToken() // at 'auto'
		stmt.Init = p.parseAutoDecl()
	default:
		p.nextToken() // at init-expr start
		stmt.Init = p.parseExprStatement()
	}

	// curToken is now the condition's first token, or ';' if it is empty.
	if p.curTokenIs(token.Semi) {
		p.nextToken() // consume ';', empty condition
	} else {
		stmt.Cond = p.parseExpression(lowest)
		if !p.expectPeek(token.Semi) {
			return p.recoverStatement(stmt)
		}
		p.nextToken() // consume ';'
	}

	// curToken is now the step's first token, or ')' if it is empty.
	if p.curTokenIs(token.RParen) {
		p.nextToken() // consume ')'
	} else {
		stmt.Step = p.parseExpression(lowest)
		p.consumeRParen()
	}

	stmt.Body = p.parseBlock()
	stmt.NodeSpan = token.Span{Start: stmt.ForPos, End: stmt.Body.Span().End}
	return stmt
}

func (p *Parser) parseForeach() ast.Statement {
	stmt := &ast.ForeachStmt{ForeachPos: p.curToken.Pos}
	if !p.expectPeek(token.LParen) {
		return p.recoverStatement(stmt)
	}
	if !p.expectPeek(token.Auto) {
		return p.recoverStatement(stmt)
	}
	if !p.expectPeek(token.Ident) {
		return p.recoverStatement(stmt)
	}
	name1 := p.curToken.Literal
	if p.peekToken.Type == token.Comma {
		p.nextToken() // at ','
		if !p.expectPeek(token.Ident) {
			return p.recoverStatement(stmt)
		}
		stmt.KeyName = name1
		stmt.ValueName = p.curToken.Literal
	} else {
		stmt.ValueName = name1
	}
	if !p.expectPeek(token.Colon) {
		return p.recoverStatement(stmt)
	}
	p.nextToken() // at iterable start
	stmt.Iterable = p.parseExpression(lowest)
	p.consumeRParen()
	stmt.Body = p.parseBlock()
	stmt.NodeSpan = token.Span{Start: stmt.ForeachPos, End: stmt.Body.Span().End}
	return stmt
}

func (p *Parser) parseExprStatement() *ast.ExprStmt {
	stmt := &ast.ExprStmt{Start: p.curToken.Pos}
	stmt.Expression = p.parseExpression(lowest)
	end := p.endSemi(stmt.Start)
	stmt.StmtSpan = token.Span{Start: stmt.Start, End: end}
	return stmt
}

// endSemi expects curToken to be the last token of a just-parsed
// expression, consumes the mandatory trailing ';', and leaves curToken on
// the token after it. Returns the position of the ';' for span-building.
func (p *Parser) endSemi(fallback token.Position) token.Position {
	if p.peekToken.Type == token.Semi {
		p.nextToken() // at ';'
		end := p.curToken.Pos
		p.nextToken() // consume ';'
		return end
	}
	p.errorf(p.peekToken.Pos, "expected ';', got %s", p.peekToken.Type)
	if p.curToken.Type != token.EOF {
		p.nextToken()
	}
	return fallback
}

// recoverStatement advances past the offending token so the caller's
// statement loop can keep making progress after a syntax error.
func (p *Parser) recoverStatement(stmt ast.Statement) ast.Statement {
	if p.curToken.Type != token.EOF {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) consumeRParen() {
	if p.peekToken.Type == token.RParen {
		p.nextToken() // at ')'
		p.nextToken() // consume ')'
		return
	}
	p.errorf(p.peekToken.Pos, "expected ')', got %s", p.peekToken.Type)
}

// Expression parsing. By convention each expression parser leaves
// curToken on the LAST token it consumed.

func (p *Parser) parseExpression(precedence int) ast.Expression {
	left := p.parseUnary()
	if left == nil {
		return nil
	}

	for precedence < p.peekPrecedence() {
		op := p.peekToken.Type
		switch {
		case isAssignOp(op):
			p.nextToken()
			left = p.parseAssignExpression(left)
		case op == token.Question:
			p.nextToken()
			left = p.parseTernary(left)
		case op == token.LParen:
			p.nextToken()
			left = p.parseCallExpression(left)
		case op == token.Dot:
			p.nextToken()
			left = p.parseMemberExpression(left)
		case op == token.LBracket:
			p.nextToken()
			left = p.parseIndexExpression(left)
		case op == token.PlusPlus || op == token.MinusMinus:
			p.nextToken()
			left = p.parsePostfixUpdate(left)
		default:
			p.nextToken()
			left = p.parseInfixExpression(left)
		}
		if left == nil {
			return nil
		}
	}

	return left
}

func (p *Parser) parseUnary() ast.Expression {
	switch p.curToken.Type {
	case token.Bang, token.Minus, token.Plus, token.Tilde:
		return p.parsePrefixOp()
	case token.PlusPlus, token.MinusMinus:
		return p.parsePrefixUpdate()
	case token.IntKw, token.FloatKw, token.StrKw, token.BoolKw:
		return p.parseCast()
	case token.Typeof:
		return p.parseTypeof()
	case token.Sizeof:
		return p.parseSizeof()
	case token.Require:
		return p.parseRequire()
	default:
		return p.parsePrimary()
	}
}

func (p *Parser) parsePrefixOp() ast.Expression {
	expr := &ast.UnaryExpr{Operator: p.curToken.Type, PosT: p.curToken.Pos}
	p.nextToken()
	expr.Right = p.parseUnary()
	if expr.Right == nil {
		return nil
	}
	expr.Sp = token.Span{Start: expr.PosT, End: expr.Right.Span().End}
	return expr
}

func (p *Parser) parsePrefixUpdate() ast.Expression {
	expr := &ast.UpdateExpr{Operator: p.curToken.Type, Prefix: true, PosT: p.curToken.Pos}
	p.nextToken()
	expr.Target = p.parseUnary()
	if expr.Target == nil {
		return nil
	}
	expr.Sp = token.Span{Start: expr.PosT, End: expr.Target.Span().End}
	return expr
}

// parseCast handles int(e) float(e) str(e) bool(e).
func (p *Parser) parseCast() ast.Expression {
	expr := &ast.CastExpr{Target: p.curToken.Type, PosT: p.curToken.Pos}
	if !p.expectPeek(token.LParen) {
		return nil
	}
	p.nextToken() // at argument start
	expr.Arg = p.parseExpression(lowest)
	if !p.expectPeek(token.RParen) {
		return nil
	}
	expr.Sp = token.Span{Start: expr.PosT, End: p.curToken.Pos}
	return expr
}

func (p *Parser) parseTypeof() ast.Expression {
	expr := &ast.TypeofExpr{PosT: p.curToken.Pos}
	if !p.expectPeek(token.LParen) {
		return nil
	}
	p.nextToken() // at argument start
	expr.Arg = p.parseExpression(lowest)
	if !p.expectPeek(token.RParen) {
		return nil
	}
	expr.Sp = token.Span{Start: expr.PosT, End: p.curToken.Pos}
	return expr
}

func (p *Parser) parseSizeof() ast.Expression {
	expr := &ast.SizeofExpr{PosT: p.curToken.Pos}
	if !p.expectPeek(token.LParen) {
		return nil
	}
	p.nextToken() // at argument start
	expr.Arg = p.parseExpression(lowest)
	if !p.expectPeek(token.RParen) {
		return nil
	}
	expr.Sp = token.Span{Start: expr.PosT, End: p.curToken.Pos}
	return expr
}

// parseRequire handles require(pathExpr, args...) — a dedicated form, not
// an ordinary call, since 'require' is a reserved keyword (spec.md §4.5).
func (p *Parser) parseRequire() ast.Expression {
	expr := &ast.RequireExpr{PosT: p.curToken.Pos}
	if !p.expectPeek(token.LParen) {
		return nil
	}
	p.nextToken() // at path-expr start or ')'
	if p.curToken.Type == token.RParen {
		p.errorf(p.curToken.Pos, "require() needs a path argument")
		expr.Sp = token.Span{Start: expr.PosT, End: p.curToken.Pos}
		return expr
	}
	expr.Path = p.parseExpression(lowest)
	for p.peekToken.Type == token.Comma {
		p.nextToken() // at ','
		p.nextToken() // at next arg start
		expr.Arguments = append(expr.Arguments, p.parseExpression(lowest))
	}
	if !p.expectPeek(token.RParen) {
		return nil
	}
	expr.Sp = token.Span{Start: expr.PosT, End: p.curToken.Pos}
	return expr
}

func (p *Parser) parsePrimary() ast.Expression {
	switch p.curToken.Type {
	case token.Ident:
		return &ast.Identifier{Name: p.curToken.Literal, PosT: p.curToken.Pos, Sp: p.selfSpan()}
	case token.Number:
		return p.parseIntLiteral()
	case token.Float:
		return p.parseFloatLiteral()
	case token.String:
		return &ast.StringLiteral{Value: p.curToken.Literal, PosT: p.curToken.Pos, Sp: p.selfSpan()}
	case token.True:
		return &ast.BoolLiteral{Value: true, PosT: p.curToken.Pos, Sp: p.selfSpan()}
	case token.False:
		return &ast.BoolLiteral{Value: false, PosT: p.curToken.Pos, Sp: p.selfSpan()}
	case token.Null:
		return &ast.NullLiteral{PosT: p.curToken.Pos, Sp: p.selfSpan()}
	case token.LBracket:
		return p.parseArrayLiteral()
	case token.Struct:
		return p.parseStructLiteral()
	case token.LParen:
		if p.peekToken.Type == token.Auto || p.peekToken.Type == token.RParen {
			return p.parseFuncExpr()
		}
		pos := p.curToken.Pos
		p.nextToken() // at inner expr start
		inner := p.parseExpression(lowest)
		if !p.expectPeek(token.RParen) {
			return nil
		}
		if inner != nil {
			inner = &parenWrap{Expression: inner, pos: pos, sp: token.Span{Start: pos, End: p.curToken.Pos}}
		}
		return inner
	default:
		p.errorf(p.curToken.Pos, "unexpected token %s", p.curToken.Type)
		return nil
	}
}

// parenWrap preserves the outer span of a parenthesized expression while
// delegating all other behavior to the wrapped node.
type parenWrap struct {
	ast.Expression
	pos token.Position
	sp  token.Span
}

func (w *parenWrap) Pos() token.Position { return w.pos }
func (w *parenWrap) Span() token.Span    { return w.sp }

// Unwrap exposes the parenthesized expression to callers (e.g. the
// compiler) that need to see through grouping, via ast.Unwrap.
func (w *parenWrap) Unwrap() ast.Expression { return w.Expression }

func (p *Parser) parseIntLiteral() ast.Expression {
	lit := p.curToken.Literal
	v, err := strconv.ParseInt(lit, 10, 64)
	if err != nil {
		p.errorf(p.curToken.Pos, "invalid integer literal %q", lit)
	}
	return &ast.IntLiteral{Value: v, PosT: p.curToken.Pos, Sp: p.selfSpan()}
}

func (p *Parser) parseFloatLiteral() ast.Expression {
	lit := p.curToken.Literal
	v, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		p.errorf(p.curToken.Pos, "invalid float literal %q", lit)
	}
	return &ast.FloatLiteral{Value: v, PosT: p.curToken.Pos, Sp: p.selfSpan()}
}

func (p *Parser) selfSpan() token.Span {
	return token.Span{Start: p.curToken.Pos, End: p.curToken.Pos}
}

// parseArrayLiteral handles the `[] { items }` primary form (spec.md
// §4.2); each item is a bare expression (next free dense index) or an
// explicit `[index] = expr`.
func (p *Parser) parseArrayLiteral() ast.Expression {
	startPos := p.curToken.Pos
	if !p.expectPeek(token.RBracket) {
		return nil
	}
	if !p.expectPeek(token.LBrace) {
		return nil
	}

	lit := &ast.ArrayLiteral{PosT: startPos}
	if p.peekToken.Type == token.RBrace {
		p.nextToken() // at '}'
		lit.Sp = token.Span{Start: startPos, End: p.curToken.Pos}
		return lit
	}
	for {
		p.nextToken() // at item start
		item := ast.ArrayItem{}
		if p.curToken.Type == token.LBracket {
			p.nextToken() // at index-expr start
			item.Index = p.parseExpression(lowest)
			if !p.expectPeek(token.RBracket) {
				return lit
			}
			if !p.expectPeek(token.Assign) {
				return lit
			}
			p.nextToken() // at value start
			item.Value = p.parseExpression(lowest)
		} else {
			item.Value = p.parseExpression(lowest)
		}
		lit.Items = append(lit.Items, item)
		if p.peekToken.Type == token.Comma {
			p.nextToken() // at ','
			continue
		}
		break
	}
	if !p.expectPeek(token.RBrace) {
		return lit
	}
	lit.Sp = token.Span{Start: startPos, End: p.curToken.Pos}
	return lit
}

// parseStructLiteral handles `struct { items }` with key forms `.name =
// expr`, `[key_expr] = expr`, and `name = expr` (spec.md §4.2).
func (p *Parser) parseStructLiteral() ast.Expression {
	startPos := p.curToken.Pos
	if !p.expectPeek(token.LBrace) {
		return nil
	}

	lit := &ast.StructLiteral{PosT: startPos}
	if p.peekToken.Type == token.RBrace {
		p.nextToken() // at '}'
		lit.Sp = token.Span{Start: startPos, End: p.curToken.Pos}
		return lit
	}
	for {
		p.nextToken() // at key start
		item := ast.StructItem{}
		switch p.curToken.Type {
		case token.Dot:
			if !p.expectPeek(token.Ident) {
				return lit
			}
			item.Key = &ast.StringLiteral{Value: p.curToken.Literal, PosT: p.curToken.Pos, Sp: p.selfSpan()}
		case token.LBracket:
			p.nextToken() // at key-expr start
			item.Key = p.parseExpression(lowest)
			if !p.expectPeek(token.RBracket) {
				return lit
			}
		case token.Ident:
			item.Key = &ast.StringLiteral{Value: p.curToken.Literal, PosT: p.curToken.Pos, Sp: p.selfSpan()}
		default:
			p.errorf(p.curToken.Pos, "invalid struct key")
			return lit
		}
		if !p.expectPeek(token.Assign) {
			return lit
		}
		p.nextToken() // at value start
		item.Value = p.parseExpression(lowest)
		lit.Items = append(lit.Items, item)
		if p.peekToken.Type == token.Comma {
			p.nextToken() // at ','
			continue
		}
		break
	}
	if !p.expectPeek(token.RBrace) {
		return lit
	}
	lit.Sp = token.Span{Start: startPos, End: p.curToken.Pos}
	return lit
}

// parseFuncExpr handles closure literals `(auto p1, auto p2, …) { body }`.
// curToken is the opening '(' on entry.
func (p *Parser) parseFuncExpr() ast.Expression {
	fn := &ast.FuncExpr{FuncPos: p.curToken.Pos}
	p.nextToken() // at first 'auto' or ')'
	fn.Params = p.parseParamList()
	p.nextToken() // move past ')'
	// The body is parsed here rather than by parseBlock so that curToken
	// stays on the closing '}', as for every other expression parser.
	body := &ast.BlockStmt{LBrace: p.curToken.Pos}
	p.nextToken() // consume '{'
	for p.curToken.Type != token.RBrace && p.curToken.Type != token.EOF {
		if stmt := p.parseStatement(); stmt != nil {
			body.Statements = append(body.Statements, stmt)
		}
	}
	if p.curToken.Type != token.RBrace {
		p.errorf(p.curToken.Pos, "expected '}'")
	}
	body.BlockSpan = token.Span{Start: body.LBrace, End: p.curToken.Pos}
	fn.Body = body
	fn.Sp = token.Span{Start: fn.FuncPos, End: fn.Body.Span().End}
	return fn
}

// parseParamList assumes curToken is the first token after '(' (either
// 'auto' or ')'), and leaves curToken on the closing ')'.
func (p *Parser) parseParamList() []ast.Param {
	var params []ast.Param
	if p.curToken.Type == token.RParen {
		return params
	}
	for {
		if p.curToken.Type != token.Auto {
			p.errorf(p.curToken.Pos, "expected 'auto' in parameter list")
			return params
		}
		if !p.expectPeek(token.Ident) {
			return params
		}
		params = append(params, ast.Param{Name: p.curToken.Literal, Pos: p.curToken.Pos, Sp: p.selfSpan()})
		if p.peekToken.Type == token.Comma {
			p.nextToken() // at ','
			p.nextToken() // at next 'auto'
			continue
		}
		break
	}
	if !p.expectPeek(token.RParen) {
		return params
	}
	return params
}

func (p *Parser) parseTernary(left ast.Expression) ast.Expression {
	expr := &ast.TernaryExpr{Condition: left, PosT: p.curToken.Pos}
	p.nextToken() // at then-expr start
	expr.Then = p.parseExpression(lowest)
	if !p.expectPeek(token.Colon) {
		return nil
	}
	p.nextToken() // at else-expr start
	expr.Else = p.parseExpression(ternaryPrecedence - 1)
	if expr.Else == nil {
		return nil
	}
	expr.Sp = token.Span{Start: left.Span().Start, End: expr.Else.Span().End}
	return expr
}

func (p *Parser) parseAssignExpression(left ast.Expression) ast.Expression {
	expr := &ast.AssignExpr{Left: left, Operator: p.curToken.Type, PosT: p.curToken.Pos}
	p.nextToken() // at value start
	expr.Value = p.parseExpression(assignPrecedence - 1)
	if expr.Value == nil {
		return nil
	}
	expr.Sp = token.Span{Start: left.Span().Start, End: expr.Value.Span().End}
	return expr
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expr := &ast.BinaryExpr{Left: left, Operator: p.curToken.Type, PosT: p.curToken.Pos}
	precedence := p.curPrecedence()
	p.nextToken() // at RHS start
	expr.Right = p.parseExpression(precedence)
	if expr.Right == nil {
		return nil
	}
	expr.Sp = token.Span{Start: left.Span().Start, End: expr.Right.Span().End}
	return expr
}

func (p *Parser) parsePostfixUpdate(left ast.Expression) ast.Expression {
	return &ast.UpdateExpr{
		Operator: p.curToken.Type,
		Target:   left,
		Prefix:   false,
		PosT:     left.Pos(),
		Sp:       token.Span{Start: left.Span().Start, End: p.curToken.Pos},
	}
}

func (p *Parser) parseCallExpression(callee ast.Expression) ast.Expression {
	expr := &ast.CallExpr{Callee: callee, PosT: p.curToken.Pos}
	if p.peekToken.Type == token.RParen {
		p.nextToken() // at ')'
		expr.Sp = token.Span{Start: callee.Span().Start, End: p.curToken.Pos}
		return expr
	}
	for {
		p.nextToken() // at argument start
		expr.Arguments = append(expr.Arguments, p.parseExpression(lowest))
		if p.peekToken.Type == token.Comma {
			p.nextToken() // at ','
			continue
		}
		break
	}
	if !p.expectPeek(token.RParen) {
		return nil
	}
	expr.Sp = token.Span{Start: callee.Span().Start, End: p.curToken.Pos}
	return expr
}

func (p *Parser) parseMemberExpression(left ast.Expression) ast.Expression {
	pos := p.curToken.Pos
	if !p.expectPeek(token.Ident) {
		return nil
	}
	return &ast.MemberExpr{
		Left:     left,
		Property: p.curToken.Literal,
		PosT:     pos,
		Sp:       token.Span{Start: left.Span().Start, End: p.curToken.Pos},
	}
}

func (p *Parser) parseIndexExpression(left ast.Expression) ast.Expression {
	pos := p.curToken.Pos
	p.nextToken() // at index-expr start
	index := p.parseExpression(lowest)
	if !p.expectPeek(token.RBracket) {
		return nil
	}
	return &ast.IndexExpr{
		Left:  left,
		Index: index,
		PosT:  pos,
		Sp:    token.Span{Start: left.Span().Start, End: p.curToken.Pos},
	}
}

// expectPeek checks that peekToken is t and, if so, advances so curToken
// becomes that token. Every call site relies on this advance: callers that
// need to move past the confirmed token issue exactly one further
// p.nextToken() of their own.
func (p *Parser) expectPeek(t token.Type) bool {
	if p.peekToken.Type == t {
		p.nextToken()
		return true
	}
	p.errorf(p.peekToken.Pos, "expected next token to be %s, got %s", t, p.peekToken.Type)
	return false
}

func (p *Parser) curTokenIs(t token.Type) bool { return p.curToken.Type == t }

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return lowest
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return lowest
}

func (p *Parser) errorf(pos token.Position, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.errors = append(p.errors, fmt.Sprintf("%d:%d: %s", pos.Line, pos.Column, msg))
}

func isAssignOp(t token.Type) bool {
	switch t {
	case token.Assign, token.PlusAssign, token.MinusAssign, token.StarAssign, token.SlashAssign,
		token.PercentAssign, token.ShlAssign, token.ShrAssign, token.AmpAssign, token.PipeAssign, token.CaretAssign:
		return true
	default:
		return false
	}
}

const (
	lowest = iota + 1
	assignPrecedence
	ternaryPrecedence
	orPrecedence
	andPrecedence
	bitOrPrecedence
	bitXorPrecedence
	bitAndPrecedence
	equalPrecedence
	relPrecedence
	shiftPrecedence
	addPrecedence
	mulPrecedence
	callPrecedence
)

var precedences = map[token.Type]int{
	token.Assign:        assignPrecedence,
	token.PlusAssign:    assignPrecedence,
	token.MinusAssign:   assignPrecedence,
	token.StarAssign:    assignPrecedence,
	token.SlashAssign:   assignPrecedence,
	token.PercentAssign: assignPrecedence,
	token.ShlAssign:     assignPrecedence,
	token.ShrAssign:     assignPrecedence,
	token.AmpAssign:     assignPrecedence,
	token.PipeAssign:    assignPrecedence,
	token.CaretAssign:   assignPrecedence,

	token.Question: ternaryPrecedence,

	token.OrOr:   orPrecedence,
	token.AndAnd: andPrecedence,

	token.Pipe:  bitOrPrecedence,
	token.Caret: bitXorPrecedence,
	token.Amp:   bitAndPrecedence,

	token.Equal:    equalPrecedence,
	token.NotEqual: equalPrecedence,

	token.Less:         relPrecedence,
	token.LessEqual:    relPrecedence,
	token.Greater:      relPrecedence,
	token.GreaterEqual: relPrecedence,

	token.Shl: shiftPrecedence,
	token.Shr: shiftPrecedence,

	token.Plus:  addPrecedence,
	token.Minus: addPrecedence,

	token.Star:    mulPrecedence,
	token.Slash:   mulPrecedence,
	token.Percent: mulPrecedence,

	token.PlusPlus:   callPrecedence,
	token.MinusMinus: callPrecedence,
	token.LParen:     callPrecedence,
	token.LBracket:   callPrecedence,
	token.Dot:        callPrecedence,
}
