package lexer

import (
	"testing"

	"github.com/bdnk1/abml/expr/token"
)

func scanAll(t *testing.T, source string) []token.Token {
	t.Helper()
	l := New(source)
	var toks []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

func TestLexOperators(t *testing.T) {
	toks := scanAll(t, "a?.b ?? c?[0] && d || !e")
	wantKinds := []token.Kind{
		token.Ident, token.QuestionDot, token.Ident, token.QuestionQuestion, token.Ident,
		token.QuestionBracket, token.Int, token.RBracket, token.AndAnd, token.Ident,
		token.OrOr, token.Bang, token.Ident, token.EOF,
	}
	if len(toks) != len(wantKinds) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(wantKinds), toks)
	}
	for i, k := range wantKinds {
		if toks[i].Kind != k {
			t.Errorf("token %d: got %v, want %v", i, toks[i].Kind, k)
		}
	}
}

func TestLexStringEscapes(t *testing.T) {
	toks := scanAll(t, `'it\'s a "test"'`)
	if toks[0].Kind != token.String || toks[0].Text != `it's a "test"` {
		t.Errorf("got %+v", toks[0])
	}
}

func TestLexNumbers(t *testing.T) {
	toks := scanAll(t, "42 3.14 1e3")
	if toks[0].Kind != token.Int || toks[0].Text != "42" {
		t.Errorf("got %+v", toks[0])
	}
	if toks[1].Kind != token.Float || toks[1].Text != "3.14" {
		t.Errorf("got %+v", toks[1])
	}
	if toks[2].Kind != token.Float || toks[2].Text != "1e3" {
		t.Errorf("got %+v", toks[2])
	}
}

func TestLexKeywords(t *testing.T) {
	toks := scanAll(t, "true false null in")
	want := []token.Kind{token.True, token.False, token.Null, token.In, token.EOF}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Errorf("token %d: got %v, want %v", i, toks[i].Kind, k)
		}
	}
}

func TestLexUnterminatedStringErrors(t *testing.T) {
	l := New(`'unterminated`)
	if _, err := l.Next(); err == nil {
		t.Errorf("expected error for unterminated string")
	}
}
