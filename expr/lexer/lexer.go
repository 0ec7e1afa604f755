// Package lexer tokenizes embedded expression source text into the token
// stream the parser consumes. The cursor/scanning style is grounded on the
// teacher's hand-rolled DSL parser (a byte-index cursor over the source
// string with small lookahead helpers), generalized here to a full
// tokenizer for the expression grammar in §4.1.
package lexer

import (
	"fmt"
	"strings"

	"github.com/bdnk1/abml/expr/token"
)

// Error is a lex-time error with the source position it occurred at.
type Error struct {
	Pos int
	Msg string
}

func (e *Error) Error() string { return fmt.Sprintf("lex error at %d: %s", e.Pos, e.Msg) }

// Lexer scans a source string into tokens one at a time.
type Lexer struct {
	source string
	pos    int
}

func New(source string) *Lexer {
	return &Lexer{source: source}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordChar(c byte) bool { return isWordStart(c) || isDigit(c) }

func (l *Lexer) peekByte() byte {
	if l.pos >= len(l.source) {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekByteAt(offset int) byte {
	p := l.pos + offset
	if p >= len(l.source) {
		return 0
	}
	return l.source[p]
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.source) {
		switch l.source[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
		default:
			return
		}
	}
}

// Next returns the next token in the stream, or an EOF token once the
// source is exhausted.
func (l *Lexer) Next() (token.Token, error) {
	l.skipWhitespace()
	start := l.pos
	if l.pos >= len(l.source) {
		return token.Token{Kind: token.EOF, Pos: start}, nil
	}

	c := l.source[l.pos]

	switch {
	case isWordStart(c):
		return l.scanIdent(start), nil
	case isDigit(c):
		return l.scanNumber(start)
	case c == '\'' || c == '"':
		return l.scanString(start, c)
	}

	switch c {
	case '.':
		l.pos++
		return token.Token{Kind: token.Dot, Text: ".", Pos: start}, nil
	case '[':
		l.pos++
		return token.Token{Kind: token.LBracket, Text: "[", Pos: start}, nil
	case ']':
		l.pos++
		return token.Token{Kind: token.RBracket, Text: "]", Pos: start}, nil
	case '(':
		l.pos++
		return token.Token{Kind: token.LParen, Text: "(", Pos: start}, nil
	case ')':
		l.pos++
		return token.Token{Kind: token.RParen, Text: ")", Pos: start}, nil
	case ',':
		l.pos++
		return token.Token{Kind: token.Comma, Text: ",", Pos: start}, nil
	case ':':
		l.pos++
		return token.Token{Kind: token.Colon, Text: ":", Pos: start}, nil
	case '+':
		l.pos++
		return token.Token{Kind: token.Plus, Text: "+", Pos: start}, nil
	case '-':
		l.pos++
		return token.Token{Kind: token.Minus, Text: "-", Pos: start}, nil
	case '*':
		l.pos++
		return token.Token{Kind: token.Star, Text: "*", Pos: start}, nil
	case '/':
		l.pos++
		return token.Token{Kind: token.Slash, Text: "/", Pos: start}, nil
	case '%':
		l.pos++
		return token.Token{Kind: token.Percent, Text: "%", Pos: start}, nil
	case '?':
		l.pos++
		if l.peekByte() == '.' {
			l.pos++
			return token.Token{Kind: token.QuestionDot, Text: "?.", Pos: start}, nil
		}
		if l.peekByte() == '[' {
			l.pos++
			return token.Token{Kind: token.QuestionBracket, Text: "?[", Pos: start}, nil
		}
		if l.peekByte() == '?' {
			l.pos++
			return token.Token{Kind: token.QuestionQuestion, Text: "??", Pos: start}, nil
		}
		return token.Token{Kind: token.Question, Text: "?", Pos: start}, nil
	case '!':
		l.pos++
		if l.peekByte() == '=' {
			l.pos++
			return token.Token{Kind: token.NotEq, Text: "!=", Pos: start}, nil
		}
		return token.Token{Kind: token.Bang, Text: "!", Pos: start}, nil
	case '=':
		l.pos++
		if l.peekByte() == '=' {
			l.pos++
			return token.Token{Kind: token.EqEq, Text: "==", Pos: start}, nil
		}
		return token.Token{}, &Error{Pos: start, Msg: "unexpected '='"}
	case '<':
		l.pos++
		if l.peekByte() == '=' {
			l.pos++
			return token.Token{Kind: token.Le, Text: "<=", Pos: start}, nil
		}
		return token.Token{Kind: token.Lt, Text: "<", Pos: start}, nil
	case '>':
		l.pos++
		if l.peekByte() == '=' {
			l.pos++
			return token.Token{Kind: token.Ge, Text: ">=", Pos: start}, nil
		}
		return token.Token{Kind: token.Gt, Text: ">", Pos: start}, nil
	case '&':
		if l.peekByteAt(1) == '&' {
			l.pos += 2
			return token.Token{Kind: token.AndAnd, Text: "&&", Pos: start}, nil
		}
		return token.Token{}, &Error{Pos: start, Msg: "unexpected '&'"}
	case '|':
		if l.peekByteAt(1) == '|' {
			l.pos += 2
			return token.Token{Kind: token.OrOr, Text: "||", Pos: start}, nil
		}
		return token.Token{}, &Error{Pos: start, Msg: "unexpected '|'"}
	}

	return token.Token{}, &Error{Pos: start, Msg: fmt.Sprintf("unexpected character %q", c)}
}

func (l *Lexer) scanIdent(start int) token.Token {
	for l.pos < len(l.source) && isWordChar(l.source[l.pos]) {
		l.pos++
	}
	word := l.source[start:l.pos]
	if kind, ok := token.Lookup(word); ok {
		return token.Token{Kind: kind, Text: word, Pos: start}
	}
	return token.Token{Kind: token.Ident, Text: word, Pos: start}
}

func (l *Lexer) scanNumber(start int) (token.Token, error) {
	isFloat := false
	for l.pos < len(l.source) && isDigit(l.source[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.source) && l.source[l.pos] == '.' && l.pos+1 < len(l.source) && isDigit(l.source[l.pos+1]) {
		isFloat = true
		l.pos++
		for l.pos < len(l.source) && isDigit(l.source[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.source) && (l.source[l.pos] == 'e' || l.source[l.pos] == 'E') {
		save := l.pos
		p := l.pos + 1
		if p < len(l.source) && (l.source[p] == '+' || l.source[p] == '-') {
			p++
		}
		if p < len(l.source) && isDigit(l.source[p]) {
			isFloat = true
			l.pos = p
			for l.pos < len(l.source) && isDigit(l.source[l.pos]) {
				l.pos++
			}
		} else {
			l.pos = save
		}
	}
	text := l.source[start:l.pos]
	if isFloat {
		return token.Token{Kind: token.Float, Text: text, Pos: start}, nil
	}
	return token.Token{Kind: token.Int, Text: text, Pos: start}, nil
}

// scanString reads a quoted string literal, honoring backslash escapes for
// the quote character, backslash itself, and the common \n \t \r escapes --
// the same escape handling the teacher's readQuotedString implements.
func (l *Lexer) scanString(start int, quote byte) (token.Token, error) {
	l.pos++ // consume opening quote
	var sb strings.Builder
	for {
		if l.pos >= len(l.source) {
			return token.Token{}, &Error{Pos: start, Msg: "unterminated string literal"}
		}
		c := l.source[l.pos]
		if c == quote {
			l.pos++
			return token.Token{Kind: token.String, Text: sb.String(), Pos: start}, nil
		}
		if c == '\\' && l.pos+1 < len(l.source) {
			next := l.source[l.pos+1]
			switch next {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\', '\'', '"':
				sb.WriteByte(next)
			default:
				sb.WriteByte(next)
			}
			l.pos += 2
			continue
		}
		sb.WriteByte(c)
		l.pos++
	}
}
