package lexer

import (
	"testing"

	"github.com/oyc-lang/oyc/internal/token"
)

func TestLexerBasicTokens(t *testing.T) {
	input := `
auto add = (auto a, auto b) {
  auto c = a + b;
  if (c >= 10 && a != b) {
    return c;
  }
};
`

	tests := []token.Token{
		{Type: token.Auto, Literal: "auto"},
		{Type: token.Ident, Literal: "add"},
		{Type: token.Assign, Literal: "="},
		{Type: token.LParen, Literal: "("},
		{Type: token.Auto, Literal: "auto"},
		{Type: token.Ident, Literal: "a"},
		{Type: token.Comma, Literal: ","},
		{Type: token.Auto, Literal: "auto"},
		{Type: token.Ident, Literal: "b"},
		{Type: token.RParen, Literal: ")"},
		{Type: token.LBrace, Literal: "{"},
		{Type: token.Auto, Literal: "auto"},
		{Type: token.Ident, Literal: "c"},
		{Type: token.Assign, Literal: "="},
		{Type: token.Ident, Literal: "a"},
		{Type: token.Plus, Literal: "+"},
		{Type: token.Ident, Literal: "b"},
		{Type: token.Semi, Literal: ";"},
		{Type: token.If, Literal: "if"},
		{Type: token.LParen, Literal: "("},
		{Type: token.Ident, Literal: "c"},
		{Type: token.GreaterEqual, Literal: ">="},
		{Type: token.Number, Literal: "10"},
		{Type: token.AndAnd, Literal: "&&"},
		{Type: token.Ident, Literal: "a"},
		{Type: token.NotEqual, Literal: "!="},
		{Type: token.Ident, Literal: "b"},
		{Type: token.RParen, Literal: ")"},
		{Type: token.LBrace, Literal: "{"},
		{Type: token.Return, Literal: "return"},
		{Type: token.Ident, Literal: "c"},
		{Type: token.Semi, Literal: ";"},
		{Type: token.RBrace, Literal: "}"},
		{Type: token.RBrace, Literal: "}"},
		{Type: token.Semi, Literal: ";"},
		{Type: token.EOF},
	}

	l := New(input)
	for i, expected := range tests {
		tok := l.NextToken()
		if tok.Type != expected.Type || tok.Literal != expected.Literal {
			t.Fatalf("token %d: expected %v %q, got %v %q", i, expected.Type, expected.Literal, tok.Type, tok.Literal)
		}
	}
}

func TestLexerOperators(t *testing.T) {
	input := `% << >> & | ^ ~ += -= *= /= %= <<= >>= &= |= ^= ++ -- ? :`
	expected := []token.Type{
		token.Percent, token.Shl, token.Shr, token.Amp, token.Pipe, token.Caret, token.Tilde,
		token.PlusAssign, token.MinusAssign, token.StarAssign, token.SlashAssign, token.PercentAssign,
		token.ShlAssign, token.ShrAssign, token.AmpAssign, token.PipeAssign, token.CaretAssign,
		token.PlusPlus, token.MinusMinus, token.Question, token.Colon, token.EOF,
	}
	l := New(input)
	for i, typ := range expected {
		tok := l.NextToken()
		if tok.Type != typ {
			t.Fatalf("token %d: expected %v, got %v (%q)", i, typ, tok.Type, tok.Literal)
		}
	}
}

func TestLexerFloatLiterals(t *testing.T) {
	input := `1.1 100.1 1e10 1.5e-3 5`
	l := New(input)
	expectFloat := []bool{true, true, true, true, false}
	lits := []string{"1.1", "100.1", "1e10", "1.5e-3", "5"}
	for i, wantFloat := range expectFloat {
		tok := l.NextToken()
		if tok.Literal != lits[i] {
			t.Fatalf("literal %d: expected %q, got %q", i, lits[i], tok.Literal)
		}
		if wantFloat && tok.Type != token.Float {
			t.Fatalf("literal %d: expected FLOAT, got %v", i, tok.Type)
		}
		if !wantFloat && tok.Type != token.Number {
			t.Fatalf("literal %d: expected NUMBER, got %v", i, tok.Type)
		}
	}
}

func TestLexerStringEscapes(t *testing.T) {
	input := `"hi\n" "a\tb" "\x41\x42" "quote\"here" "\0"`
	want := []string{"hi\n", "a\tb", "AB", "quote\"here", "\x00"}
	l := New(input)
	for i, w := range want {
		tok := l.NextToken()
		if tok.Type != token.String {
			t.Fatalf("literal %d: expected STRING, got %v (%q)", i, tok.Type, tok.Literal)
		}
		if tok.Literal != w {
			t.Fatalf("literal %d: expected %q, got %q", i, w, tok.Literal)
		}
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	l := New(`"never closes`)
	tok := l.NextToken()
	if tok.Type != token.Illegal {
		t.Fatalf("expected ILLEGAL, got %v", tok.Type)
	}
}

func TestLexerUnterminatedBlockComment(t *testing.T) {
	l := New(`/* never closes`)
	tok := l.NextToken()
	if tok.Type != token.Illegal {
		t.Fatalf("expected ILLEGAL, got %v", tok.Type)
	}
}

func TestLexerComments(t *testing.T) {
	input := `// line comment
auto a = 1;
/* block
comment */
auto b = 2;`

	expected := []token.Type{
		token.Auto, token.Ident, token.Assign, token.Number, token.Semi,
		token.Auto, token.Ident, token.Assign, token.Number, token.Semi, token.EOF,
	}

	l := New(input)
	for i, typ := range expected {
		tok := l.NextToken()
		if tok.Type != typ {
			t.Fatalf("token %d: expected %v, got %v (%q)", i, typ, tok.Type, tok.Literal)
		}
	}
}

func TestLexerKeywords(t *testing.T) {
	input := `null true false auto if else while do for foreach switch case default break continue return struct typeof sizeof delete require int float str bool`
	expected := []token.Type{
		token.Null, token.True, token.False, token.Auto, token.If, token.Else, token.While, token.Do,
		token.For, token.Foreach, token.Switch, token.Case, token.Default, token.Break, token.Continue,
		token.Return, token.Struct, token.Typeof, token.Sizeof, token.Delete, token.Require,
		token.IntKw, token.FloatKw, token.StrKw, token.BoolKw, token.EOF,
	}
	l := New(input)
	for i, typ := range expected {
		tok := l.NextToken()
		if tok.Type != typ {
			t.Fatalf("token %d: expected %v, got %v (%q)", i, typ, tok.Type, tok.Literal)
		}
	}
}
