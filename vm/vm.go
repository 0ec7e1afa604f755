// Package vm implements the register-based bytecode interpreter described
// in §4.3: a flat fixed-capacity register file, a flat opcode dispatch over
// a CompiledExpression's instruction array, and the permissive numeric
// coercion / comparison semantics delegated to package value.
//
// Grounded structurally on other_examples' kristofer-smog VM (switch-based
// opcode dispatch, per-type arithmetic helpers, push/pop-style error
// messages adapted here to register load/store errors). The teacher itself
// delegates all expression evaluation to expr-lang/expr
// (runtime/engine/yaml/evaluator.go) rather than hand-building a VM, so
// this package is stdlib-only by necessity -- see DESIGN.md.
package vm

import (
	"fmt"

	"github.com/bdnk1/abml/abmlerr"
	"github.com/bdnk1/abml/expr/bytecode"
	"github.com/bdnk1/abml/expr/compiler"
	"github.com/bdnk1/abml/value"
)

// registerCapacity is the VM's fixed register file size (§4.3).
const registerCapacity = 256

// Scope is the minimal read contract the VM needs from a variable scope:
// resolve an identifier, or return value.Null if it is unbound. Package
// scope's Scope implements this.
type Scope interface {
	Get(name string) value.Value
}

// Functions resolves a call expression's function name to a callable. The
// document executor's function registry implements this.
type Functions interface {
	Call(name string, args []value.Value) (value.Value, error)
}

// Tracer receives one notification per executed instruction when running
// under ExecuteTrace (§4.3 "Tracing mode"): the opcode, destination register, and
// a formatted snapshot of that register's value using the spec's format
// rule (strings quoted, booleans lowercased, null as "null", else default
// string form -- which is exactly value.Value.String()).
type Tracer func(pc int, op bytecode.Opcode, destReg uint8, snapshot string)

// VM holds one reusable register file. It is not safe for concurrent use on
// the same instance; callers pool one VM per logical thread of execution,
// mirroring the spec's "one VM per logical thread, or pooled" guidance.
type VM struct {
	regs      [registerCapacity]value.Value
	fromMissingVar [registerCapacity]bool
}

// New returns a VM with a freshly zeroed register file.
func New() *VM {
	return &VM{}
}

// RuntimeError is raised when bytecode execution fails: division by zero,
// null property/index access on a non-safe op, an incomparable comparison,
// an unknown function, or falling off the end without a Return.
type RuntimeError struct {
	Kind    abmlerr.Kind
	Message string
}

func (e *RuntimeError) Error() string { return e.Message }

// Execute runs expr's bytecode against scope and funcs, returning the
// value reached by its Return instruction. Failing to reach Return is a
// runtime error.
func (m *VM) Execute(expr *compiler.Compiled, scope Scope, funcs Functions) (value.Value, error) {
	return m.run(expr, scope, funcs, nil)
}

// ExecuteTrace runs expr exactly like Execute but additionally invokes
// trace after every instruction (§4.3 "Tracing mode").
func (m *VM) ExecuteTrace(expr *compiler.Compiled, scope Scope, funcs Functions, trace Tracer) (value.Value, error) {
	return m.run(expr, scope, funcs, trace)
}

func (m *VM) run(expr *compiler.Compiled, scope Scope, funcs Functions, trace Tracer) (value.Value, error) {
	n := expr.NumRegisters
	if n > registerCapacity {
		n = registerCapacity
	}
	for i := 0; i < n; i++ {
		m.regs[i] = value.Null
		m.fromMissingVar[i] = false
	}

	instr := expr.Instructions
	pc := 0
	for pc < len(instr) {
		origPC := pc
		in := instr[pc]
		switch in.Op {
		case bytecode.LoadConst:
			m.regs[in.A] = expr.Constants[in.B]
			m.fromMissingVar[in.A] = false
		case bytecode.LoadVar:
			name := expr.Constants[in.B].Str()
			v := scope.Get(name)
			m.regs[in.A] = v
			m.fromMissingVar[in.A] = v.IsNull()
		case bytecode.LoadNull:
			m.regs[in.A] = value.Null
			m.fromMissingVar[in.A] = false
		case bytecode.LoadTrue:
			m.regs[in.A] = value.Bool(true)
			m.fromMissingVar[in.A] = false
		case bytecode.LoadFalse:
			m.regs[in.A] = value.Bool(false)
			m.fromMissingVar[in.A] = false

		case bytecode.GetProp:
			recv := m.regs[in.B]
			if recv.IsNull() {
				return value.Null, m.nullErr(in.B)
			}
			name := expr.Constants[in.C].Str()
			v, err := value.GetProp(recv, name)
			if err != nil {
				return value.Null, &RuntimeError{Kind: abmlerr.KindExpression, Message: err.Error()}
			}
			m.regs[in.A] = v
			m.fromMissingVar[in.A] = false
		case bytecode.GetPropSafe:
			recv := m.regs[in.B]
			if recv.IsNull() {
				m.regs[in.A] = value.Null
				m.fromMissingVar[in.A] = false
				break
			}
			name := expr.Constants[in.C].Str()
			v, err := value.GetProp(recv, name)
			if err != nil {
				return value.Null, &RuntimeError{Kind: abmlerr.KindExpression, Message: err.Error()}
			}
			m.regs[in.A] = v
			m.fromMissingVar[in.A] = false
		case bytecode.GetIndex:
			recv := m.regs[in.B]
			if recv.IsNull() {
				return value.Null, m.nullErr(in.B)
			}
			v, err := value.GetIndex(recv, m.regs[in.C])
			if err != nil {
				return value.Null, &RuntimeError{Kind: abmlerr.KindExpression, Message: err.Error()}
			}
			m.regs[in.A] = v
			m.fromMissingVar[in.A] = false
		case bytecode.GetIndexSafe:
			recv := m.regs[in.B]
			if recv.IsNull() {
				m.regs[in.A] = value.Null
				m.fromMissingVar[in.A] = false
				break
			}
			v, err := value.GetIndex(recv, m.regs[in.C])
			if err != nil {
				return value.Null, &RuntimeError{Kind: abmlerr.KindExpression, Message: err.Error()}
			}
			m.regs[in.A] = v
			m.fromMissingVar[in.A] = false

		case bytecode.Add:
			v, err := value.Add(m.regs[in.B], m.regs[in.C])
			if err != nil {
				return value.Null, m.opErr(err)
			}
			m.regs[in.A] = v
			m.fromMissingVar[in.A] = false
		case bytecode.Sub:
			v, err := value.Sub(m.regs[in.B], m.regs[in.C])
			if err != nil {
				return value.Null, m.opErr(err)
			}
			m.regs[in.A] = v
			m.fromMissingVar[in.A] = false
		case bytecode.Mul:
			v, err := value.Mul(m.regs[in.B], m.regs[in.C])
			if err != nil {
				return value.Null, m.opErr(err)
			}
			m.regs[in.A] = v
			m.fromMissingVar[in.A] = false
		case bytecode.Div:
			v, err := value.Div(m.regs[in.B], m.regs[in.C])
			if err != nil {
				return value.Null, m.opErr(err)
			}
			m.regs[in.A] = v
			m.fromMissingVar[in.A] = false
		case bytecode.Mod:
			v, err := value.Mod(m.regs[in.B], m.regs[in.C])
			if err != nil {
				return value.Null, m.opErr(err)
			}
			m.regs[in.A] = v
			m.fromMissingVar[in.A] = false
		case bytecode.Neg:
			v, err := value.Neg(m.regs[in.B])
			if err != nil {
				return value.Null, m.opErr(err)
			}
			m.regs[in.A] = v
			m.fromMissingVar[in.A] = false

		case bytecode.Eq:
			m.regs[in.A] = value.Bool(value.Eq(m.regs[in.B], m.regs[in.C]))
			m.fromMissingVar[in.A] = false
		case bytecode.Ne:
			m.regs[in.A] = value.Bool(!value.Eq(m.regs[in.B], m.regs[in.C]))
			m.fromMissingVar[in.A] = false
		case bytecode.Lt, bytecode.Le, bytecode.Gt, bytecode.Ge:
			left, right := m.regs[in.B], m.regs[in.C]
			var result bool
			if left.Kind() == value.KindNull || right.Kind() == value.KindNull {
				// An ordered comparison against null is never true -- a
				// null-safe chain that bottoms out at null must not satisfy
				// "< x", overriding Compare's null-sorts-least convention
				// used elsewhere (e.g. min/max).
				result = false
			} else {
				cmp, err := value.Compare(left, right)
				if err != nil {
					return value.Null, m.opErr(err)
				}
				switch in.Op {
				case bytecode.Lt:
					result = cmp < 0
				case bytecode.Le:
					result = cmp <= 0
				case bytecode.Gt:
					result = cmp > 0
				case bytecode.Ge:
					result = cmp >= 0
				}
			}
			m.regs[in.A] = value.Bool(result)
			m.fromMissingVar[in.A] = false

		case bytecode.Not:
			m.regs[in.A] = value.Bool(!m.regs[in.B].Truthy())
			m.fromMissingVar[in.A] = false
		case bytecode.And:
			m.regs[in.A] = value.Bool(m.regs[in.B].Truthy() && m.regs[in.C].Truthy())
			m.fromMissingVar[in.A] = false
		case bytecode.Or:
			m.regs[in.A] = value.Bool(m.regs[in.B].Truthy() || m.regs[in.C].Truthy())
			m.fromMissingVar[in.A] = false
		case bytecode.ToBool:
			m.regs[in.A] = value.Bool(m.regs[in.B].Truthy())
			m.fromMissingVar[in.A] = false

		case bytecode.Jump:
			m.trace(trace, origPC, in)
			pc = int(in.Target())
			continue
		case bytecode.JumpIfTrue:
			m.trace(trace, origPC, in)
			if m.regs[in.A].Truthy() {
				pc = int(in.Target())
				continue
			}
		case bytecode.JumpIfFalse:
			m.trace(trace, origPC, in)
			if !m.regs[in.A].Truthy() {
				pc = int(in.Target())
				continue
			}
		case bytecode.JumpIfNull:
			m.trace(trace, origPC, in)
			if m.regs[in.A].IsNull() {
				pc = int(in.Target())
				continue
			}
		case bytecode.JumpIfNotNull:
			m.trace(trace, origPC, in)
			if !m.regs[in.A].IsNull() {
				pc = int(in.Target())
				continue
			}

		case bytecode.Call:
			name := expr.Constants[in.B].Str()
			argStart := in.C
			if pc+1 >= len(instr) || instr[pc+1].Op != bytecode.CallArgs {
				return value.Null, &RuntimeError{Kind: abmlerr.KindExpression, Message: "Call not followed by CallArgs"}
			}
			argCount := instr[pc+1].A
			args := make([]value.Value, argCount)
			for i := 0; i < int(argCount); i++ {
				args[i] = m.regs[int(argStart)+i]
			}
			if funcs == nil {
				return value.Null, &RuntimeError{Kind: abmlerr.KindExpression, Message: fmt.Sprintf("unknown function %q", name)}
			}
			v, err := funcs.Call(name, args)
			if err != nil {
				return value.Null, &RuntimeError{Kind: abmlerr.KindExpression, Message: err.Error()}
			}
			m.regs[in.A] = v
			m.fromMissingVar[in.A] = false
			m.trace(trace, origPC, in)
			pc += 2
			continue

		case bytecode.Coalesce:
			if !m.regs[in.B].IsNull() {
				m.regs[in.A] = m.regs[in.B]
			} else {
				m.regs[in.A] = m.regs[in.C]
			}
			m.fromMissingVar[in.A] = false
		case bytecode.In:
			ok, err := value.In(m.regs[in.B], m.regs[in.C])
			if err != nil {
				return value.Null, m.opErr(err)
			}
			m.regs[in.A] = value.Bool(ok)
			m.fromMissingVar[in.A] = false
		case bytecode.Concat:
			m.regs[in.A] = value.String(m.regs[in.B].ToStringValue().Str() + m.regs[in.C].ToStringValue().Str())
			m.fromMissingVar[in.A] = false

		case bytecode.Return:
			m.trace(trace, origPC, in)
			return m.regs[in.A], nil

		default:
			return value.Null, &RuntimeError{Kind: abmlerr.KindExpression, Message: fmt.Sprintf("unknown opcode %v", in.Op)}
		}

		m.trace(trace, origPC, in)
		pc++
	}
	return value.Null, &RuntimeError{Kind: abmlerr.KindExpression, Message: "expression did not reach a Return instruction"}
}

func (m *VM) trace(trace Tracer, pc int, in bytecode.Instruction) {
	if trace == nil {
		return
	}
	trace(pc, in.Op, in.A, m.regs[in.A].String())
}

func (m *VM) nullErr(reg uint8) error {
	kind := abmlerr.KindExpression
	if m.fromMissingVar[reg] {
		kind = abmlerr.KindMissingVariable
	}
	return &RuntimeError{Kind: kind, Message: "cannot access property or index of null"}
}

func (m *VM) opErr(err error) error {
	return &RuntimeError{Kind: abmlerr.KindExpression, Message: err.Error()}
}
