// Package parser builds an AST from expression source text via recursive
// descent with precedence climbing. The overall shape -- a struct cursoring
// over a single input with small per-construct methods and a position used
// for diagnostics -- is grounded on the teacher's hand-rolled DSL parser
// (runtime/engine/dsl/parser.go), generalized here from that line-oriented
// mini-language into full C-like expression precedence per §4.1, since the
// teacher's own parser never attempts operator precedence (it parses
// statement blocks, not expressions).
package parser

import (
	"fmt"

	"github.com/bdnk1/abml/expr/ast"
	"github.com/bdnk1/abml/expr/lexer"
	"github.com/bdnk1/abml/expr/token"
)

// Error is a parse-time error with the source position it occurred at.
type Error struct {
	Pos int
	Msg string
}

func (e *Error) Error() string { return fmt.Sprintf("parse error at %d: %s", e.Pos, e.Msg) }

type parser struct {
	lex  *lexer.Lexer
	cur  token.Token
	peek *token.Token // one-token lookahead buffer, filled lazily
}

// Parse tokenizes and parses source into an expression AST.
func Parse(source string) (ast.Node, error) {
	p := &parser{lex: lexer.New(source)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != token.EOF {
		return nil, &Error{Pos: p.cur.Pos, Msg: fmt.Sprintf("unexpected trailing token %q", p.cur.Text)}
	}
	return node, nil
}

func (p *parser) advance() error {
	if p.peek != nil {
		p.cur = *p.peek
		p.peek = nil
		return nil
	}
	tok, err := p.lex.Next()
	if err != nil {
		if lexErr, ok := err.(*lexer.Error); ok {
			return &Error{Pos: lexErr.Pos, Msg: lexErr.Msg}
		}
		return err
	}
	p.cur = tok
	return nil
}

func (p *parser) expect(k token.Kind) (token.Token, error) {
	if p.cur.Kind != k {
		return token.Token{}, &Error{Pos: p.cur.Pos, Msg: fmt.Sprintf("expected %s, got %q", k, p.cur.Text)}
	}
	tok := p.cur
	err := p.advance()
	return tok, err
}

func (p *parser) parseExpr() (ast.Node, error) {
	return p.parseTernary()
}

func (p *parser) parseTernary() (ast.Node, error) {
	pos := p.cur.Pos
	cond, err := p.parseCoalesce()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != token.Question {
		return cond, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	thenExpr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Colon); err != nil {
		return nil, err
	}
	elseExpr, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	return ast.NewTernary(pos, cond, thenExpr, elseExpr), nil
}

func (p *parser) parseCoalesce() (ast.Node, error) {
	pos := p.cur.Pos
	left, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == token.QuestionQuestion {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseLogicalOr()
		if err != nil {
			return nil, err
		}
		left = ast.NewCoalesce(pos, left, right)
	}
	return left, nil
}

func (p *parser) parseLogicalOr() (ast.Node, error) {
	pos := p.cur.Pos
	left, err := p.parseLogicalAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == token.OrOr {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseLogicalAnd()
		if err != nil {
			return nil, err
		}
		left = ast.NewLogicalOp(pos, "||", left, right)
	}
	return left, nil
}

func (p *parser) parseLogicalAnd() (ast.Node, error) {
	pos := p.cur.Pos
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == token.AndAnd {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = ast.NewLogicalOp(pos, "&&", left, right)
	}
	return left, nil
}

func (p *parser) parseEquality() (ast.Node, error) {
	pos := p.cur.Pos
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == token.EqEq || p.cur.Kind == token.NotEq {
		op := "=="
		if p.cur.Kind == token.NotEq {
			op = "!="
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinOp(pos, op, left, right)
	}
	return left, nil
}

var relOps = map[token.Kind]string{
	token.Lt: "<", token.Le: "<=", token.Gt: ">", token.Ge: ">=", token.In: "in",
}

func (p *parser) parseRelational() (ast.Node, error) {
	pos := p.cur.Pos
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := relOps[p.cur.Kind]
		if !ok {
			return left, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinOp(pos, op, left, right)
	}
}

func (p *parser) parseAdditive() (ast.Node, error) {
	pos := p.cur.Pos
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == token.Plus || p.cur.Kind == token.Minus {
		op := "+"
		if p.cur.Kind == token.Minus {
			op = "-"
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinOp(pos, op, left, right)
	}
	return left, nil
}

var mulOps = map[token.Kind]string{token.Star: "*", token.Slash: "/", token.Percent: "%"}

func (p *parser) parseMultiplicative() (ast.Node, error) {
	pos := p.cur.Pos
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := mulOps[p.cur.Kind]
		if !ok {
			return left, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinOp(pos, op, left, right)
	}
}

func (p *parser) parseUnary() (ast.Node, error) {
	pos := p.cur.Pos
	if p.cur.Kind == token.Bang || p.cur.Kind == token.Minus {
		op := "!"
		if p.cur.Kind == token.Minus {
			op = "-"
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.NewUnary(pos, op, operand), nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (ast.Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur.Kind {
		case token.Dot:
			pos := p.cur.Pos
			if err := p.advance(); err != nil {
				return nil, err
			}
			name, err := p.expect(token.Ident)
			if err != nil {
				return nil, err
			}
			node = ast.NewMember(pos, node, name.Text, false)
		case token.QuestionDot:
			pos := p.cur.Pos
			if err := p.advance(); err != nil {
				return nil, err
			}
			name, err := p.expect(token.Ident)
			if err != nil {
				return nil, err
			}
			node = ast.NewMember(pos, node, name.Text, true)
		case token.LBracket:
			pos := p.cur.Pos
			if err := p.advance(); err != nil {
				return nil, err
			}
			key, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBracket); err != nil {
				return nil, err
			}
			node = ast.NewIndex(pos, node, key, false)
		case token.QuestionBracket:
			pos := p.cur.Pos
			if err := p.advance(); err != nil {
				return nil, err
			}
			key, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBracket); err != nil {
				return nil, err
			}
			node = ast.NewIndex(pos, node, key, true)
		default:
			return node, nil
		}
	}
}

func (p *parser) parsePrimary() (ast.Node, error) {
	tok := p.cur
	switch tok.Kind {
	case token.Null:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return ast.NewNullLit(tok.Pos), nil
	case token.True:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return ast.NewTrueLit(tok.Pos), nil
	case token.False:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return ast.NewFalseLit(tok.Pos), nil
	case token.Int:
		if err := p.advance(); err != nil {
			return nil, err
		}
		v, convErr := parseInt(tok.Text)
		if convErr != nil {
			return nil, &Error{Pos: tok.Pos, Msg: convErr.Error()}
		}
		return ast.NewIntLit(tok.Pos, v), nil
	case token.Float:
		if err := p.advance(); err != nil {
			return nil, err
		}
		v, convErr := parseFloat(tok.Text)
		if convErr != nil {
			return nil, &Error{Pos: tok.Pos, Msg: convErr.Error()}
		}
		return ast.NewFloatLit(tok.Pos, v), nil
	case token.String:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return ast.NewStringLit(tok.Pos, tok.Text), nil
	case token.Ident:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Kind == token.LParen {
			return p.parseCallArgs(tok.Pos, tok.Text)
		}
		return ast.NewIdent(tok.Pos, tok.Text), nil
	case token.LParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return inner, nil
	default:
		return nil, &Error{Pos: tok.Pos, Msg: fmt.Sprintf("unexpected token %q", tok.Text)}
	}
}

func (p *parser) parseCallArgs(pos int, name string) (ast.Node, error) {
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	var args []ast.Node
	for p.cur.Kind != token.RParen {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.cur.Kind == token.Comma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	return ast.NewCall(pos, name, args), nil
}
