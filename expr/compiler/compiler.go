// Package compiler lowers an expression AST (expr/ast) to register-based
// bytecode (expr/bytecode), per §4.1's lowering rules. Compilation is pure
// and reproducible: the same source text always yields byte-identical
// output, which is what makes expr/cache's memoization semantically
// transparent.
//
// Grounded structurally on other_examples' kristofer-smog VM's
// operand-packing idiom, generalized from that example's stack-based model
// into this spec's register allocator with a free-list (expr/compiler's
// allocator.go). The teacher itself never hand-builds an expression
// compiler -- it delegates to expr-lang/expr -- so this package has no
// teacher-file counterpart; see DESIGN.md's standard-library
// justifications.
package compiler

import (
	"fmt"

	"github.com/bdnk1/abml/expr/ast"
	"github.com/bdnk1/abml/expr/bytecode"
	"github.com/bdnk1/abml/expr/parser"
	"github.com/bdnk1/abml/value"
)

// Error is a compile-time error, carrying the source position it occurred
// at so diagnostics can point back into the original expression text.
type Error struct {
	Pos int
	Msg string
}

func (e *Error) Error() string { return fmt.Sprintf("compile error at %d: %s", e.Pos, e.Msg) }

type compiler struct {
	source string
	instr  []bytecode.Instruction
	consts []value.Value
	index  map[string]uint8
	alloc  allocator
}

// Compile parses and lowers source to a Compiled expression.
func Compile(source string) (*Compiled, error) {
	node, err := parser.Parse(source)
	if err != nil {
		if pe, ok := err.(*parser.Error); ok {
			return nil, &Error{Pos: pe.Pos, Msg: pe.Msg}
		}
		return nil, &Error{Msg: err.Error()}
	}
	c := &compiler{source: source, index: make(map[string]uint8)}
	dst, err := c.alloc.alloc()
	if err != nil {
		return nil, &Error{Pos: node.Pos(), Msg: err.Error()}
	}
	if err := c.compileNode(node, dst); err != nil {
		return nil, err
	}
	c.emit(bytecode.Return, dst, 0, 0)
	return &Compiled{
		Instructions: c.instr,
		Constants:    c.consts,
		NumRegisters: c.alloc.high,
		Source:       source,
	}, nil
}

func (c *compiler) emit(op bytecode.Opcode, a, b, cc uint8) int {
	c.instr = append(c.instr, bytecode.Instruction{Op: op, A: a, B: b, C: cc})
	return len(c.instr) - 1
}

func (c *compiler) patchJump(idx int, target int) {
	c.instr[idx] = bytecode.WithTarget(c.instr[idx], uint16(target))
}

func (c *compiler) here() int { return len(c.instr) }

func (c *compiler) constErr(pos int, format string, args ...any) error {
	return &Error{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (c *compiler) addConst(key string, v value.Value) (uint8, error) {
	if idx, ok := c.index[key]; ok {
		return idx, nil
	}
	if len(c.consts) >= 256 {
		return 0, fmt.Errorf("expression has more than 256 distinct constants")
	}
	idx := uint8(len(c.consts))
	c.consts = append(c.consts, v)
	c.index[key] = idx
	return idx, nil
}

func (c *compiler) stringConst(s string) (uint8, error) {
	return c.addConst("s:"+s, value.String(s))
}

// compileNode compiles node so that its result ends up in register dst.
func (c *compiler) compileNode(node ast.Node, dst uint8) error {
	switch n := node.(type) {
	case *ast.NullLit:
		c.emit(bytecode.LoadNull, dst, 0, 0)
		return nil
	case *ast.TrueLit:
		c.emit(bytecode.LoadTrue, dst, 0, 0)
		return nil
	case *ast.FalseLit:
		c.emit(bytecode.LoadFalse, dst, 0, 0)
		return nil
	case *ast.IntLit:
		idx, err := c.addConst(fmt.Sprintf("i:%d", n.Value), value.Int(n.Value))
		if err != nil {
			return c.constErr(n.Pos(), "%s", err)
		}
		c.emit(bytecode.LoadConst, dst, idx, 0)
		return nil
	case *ast.FloatLit:
		idx, err := c.addConst(fmt.Sprintf("f:%v", n.Value), value.Float(n.Value))
		if err != nil {
			return c.constErr(n.Pos(), "%s", err)
		}
		c.emit(bytecode.LoadConst, dst, idx, 0)
		return nil
	case *ast.StringLit:
		idx, err := c.stringConst(n.Value)
		if err != nil {
			return c.constErr(n.Pos(), "%s", err)
		}
		c.emit(bytecode.LoadConst, dst, idx, 0)
		return nil
	case *ast.Ident:
		idx, err := c.stringConst(n.Name)
		if err != nil {
			return c.constErr(n.Pos(), "%s", err)
		}
		c.emit(bytecode.LoadVar, dst, idx, 0)
		return nil
	case *ast.Member:
		if err := c.compileNode(n.Receiver, dst); err != nil {
			return err
		}
		nameIdx, err := c.stringConst(n.Name)
		if err != nil {
			return c.constErr(n.Pos(), "%s", err)
		}
		if n.Safe {
			skip := c.emit(bytecode.JumpIfNull, dst, 0, 0)
			c.emit(bytecode.GetProp, dst, dst, nameIdx)
			c.patchJump(skip, c.here())
		} else {
			c.emit(bytecode.GetProp, dst, dst, nameIdx)
		}
		return nil
	case *ast.Index:
		if err := c.compileNode(n.Receiver, dst); err != nil {
			return err
		}
		keyReg, err := c.alloc.alloc()
		if err != nil {
			return c.constErr(n.Pos(), "%s", err)
		}
		if err := c.compileNode(n.Key, keyReg); err != nil {
			return err
		}
		if n.Safe {
			skip := c.emit(bytecode.JumpIfNull, dst, 0, 0)
			c.emit(bytecode.GetIndex, dst, dst, keyReg)
			c.patchJump(skip, c.here())
		} else {
			c.emit(bytecode.GetIndex, dst, dst, keyReg)
		}
		c.alloc.release(keyReg)
		return nil
	case *ast.Unary:
		if err := c.compileNode(n.Operand, dst); err != nil {
			return err
		}
		switch n.Op {
		case "!":
			c.emit(bytecode.Not, dst, dst, 0)
		case "-":
			c.emit(bytecode.Neg, dst, dst, 0)
		default:
			return c.constErr(n.Pos(), "unknown unary operator %q", n.Op)
		}
		return nil
	case *ast.BinOp:
		return c.compileBinOp(n, dst)
	case *ast.LogicalOp:
		return c.compileLogical(n, dst)
	case *ast.Ternary:
		return c.compileTernary(n, dst)
	case *ast.Coalesce:
		return c.compileCoalesce(n, dst)
	case *ast.Call:
		return c.compileCall(n, dst)
	default:
		return c.constErr(node.Pos(), "unsupported expression node %T", node)
	}
}

var binOpcode = map[string]bytecode.Opcode{
	"+": bytecode.Add, "-": bytecode.Sub, "*": bytecode.Mul, "/": bytecode.Div, "%": bytecode.Mod,
	"==": bytecode.Eq, "!=": bytecode.Ne, "<": bytecode.Lt, "<=": bytecode.Le, ">": bytecode.Gt, ">=": bytecode.Ge,
	"in": bytecode.In,
}

func (c *compiler) compileBinOp(n *ast.BinOp, dst uint8) error {
	op, ok := binOpcode[n.Op]
	if !ok {
		return c.constErr(n.Pos(), "unknown binary operator %q", n.Op)
	}
	if err := c.compileNode(n.Left, dst); err != nil {
		return err
	}
	rhs, err := c.alloc.alloc()
	if err != nil {
		return c.constErr(n.Pos(), "%s", err)
	}
	if err := c.compileNode(n.Right, rhs); err != nil {
		return err
	}
	c.emit(op, dst, dst, rhs)
	c.alloc.release(rhs)
	return nil
}

// compileLogical lowers && and || as short-circuit control flow that
// re-uses dst, per §4.1: these never emit the non-short-circuit And/Or
// opcodes (those exist only for a hand-assembling embedder, per DESIGN.md's
// open-question decision).
func (c *compiler) compileLogical(n *ast.LogicalOp, dst uint8) error {
	if err := c.compileNode(n.Left, dst); err != nil {
		return err
	}
	var skip int
	switch n.Op {
	case "&&":
		skip = c.emit(bytecode.JumpIfFalse, dst, 0, 0)
	case "||":
		skip = c.emit(bytecode.JumpIfTrue, dst, 0, 0)
	default:
		return c.constErr(n.Pos(), "unknown logical operator %q", n.Op)
	}
	if err := c.compileNode(n.Right, dst); err != nil {
		return err
	}
	c.patchJump(skip, c.here())
	return nil
}

func (c *compiler) compileTernary(n *ast.Ternary, dst uint8) error {
	cond, err := c.alloc.alloc()
	if err != nil {
		return c.constErr(n.Pos(), "%s", err)
	}
	if err := c.compileNode(n.Cond, cond); err != nil {
		return err
	}
	toElse := c.emit(bytecode.JumpIfFalse, cond, 0, 0)
	c.alloc.release(cond)
	if err := c.compileNode(n.Then, dst); err != nil {
		return err
	}
	toEnd := c.emit(bytecode.Jump, 0, 0, 0)
	c.patchJump(toElse, c.here())
	if err := c.compileNode(n.Else, dst); err != nil {
		return err
	}
	c.patchJump(toEnd, c.here())
	return nil
}

// compileCoalesce lowers `a ?? b`: evaluate a, then JumpIfNotNull over b.
func (c *compiler) compileCoalesce(n *ast.Coalesce, dst uint8) error {
	if err := c.compileNode(n.Left, dst); err != nil {
		return err
	}
	done := c.emit(bytecode.JumpIfNotNull, dst, 0, 0)
	if err := c.compileNode(n.Right, dst); err != nil {
		return err
	}
	c.patchJump(done, c.here())
	return nil
}

func (c *compiler) compileCall(n *ast.Call, dst uint8) error {
	nameIdx, err := c.stringConst(n.Name)
	if err != nil {
		return c.constErr(n.Pos(), "%s", err)
	}
	regs, err := c.alloc.allocRange(len(n.Args))
	if err != nil {
		return c.constErr(n.Pos(), "%s", err)
	}
	for i, arg := range n.Args {
		if err := c.compileNode(arg, regs[i]); err != nil {
			return err
		}
	}
	start := uint8(0)
	if len(regs) > 0 {
		start = regs[0]
	}
	c.emit(bytecode.Call, dst, nameIdx, start)
	if len(n.Args) > 255 {
		return c.constErr(n.Pos(), "call has more than 255 arguments")
	}
	c.emit(bytecode.CallArgs, uint8(len(n.Args)), 0, 0)
	for _, r := range regs {
		c.alloc.release(r)
	}
	return nil
}
