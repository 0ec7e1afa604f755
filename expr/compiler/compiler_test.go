package compiler

import (
	"testing"

	"github.com/bdnk1/abml/expr/bytecode"
)

func opcodes(c *Compiled) []bytecode.Opcode {
	ops := make([]bytecode.Opcode, len(c.Instructions))
	for i, in := range c.Instructions {
		ops[i] = in.Op
	}
	return ops
}

func containsOp(c *Compiled, op bytecode.Opcode) bool {
	for _, in := range c.Instructions {
		if in.Op == op {
			return true
		}
	}
	return false
}

func TestCompileAlwaysEndsInReturn(t *testing.T) {
	c, err := Compile("1 + 2")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	last := c.Instructions[len(c.Instructions)-1]
	if last.Op != bytecode.Return {
		t.Errorf("last instruction = %v, want Return", last.Op)
	}
}

func TestCompileSafeMemberEmitsJumpIfNullGuard(t *testing.T) {
	c, err := Compile("a?.b")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !containsOp(c, bytecode.JumpIfNull) {
		t.Errorf("a?.b should compile a JumpIfNull guard, got %v", opcodes(c))
	}
	if !containsOp(c, bytecode.GetProp) {
		t.Errorf("a?.b should still emit GetProp for the guarded access, got %v", opcodes(c))
	}
	if containsOp(c, bytecode.GetPropSafe) {
		t.Errorf("safe member access compiles via a guard, not a dedicated GetPropSafe opcode, got %v", opcodes(c))
	}
}

func TestCompileUnsafeMemberEmitsNoGuard(t *testing.T) {
	c, err := Compile("a.b")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if containsOp(c, bytecode.JumpIfNull) {
		t.Errorf("unsafe a.b should not guard, got %v", opcodes(c))
	}
}

func TestCompileLogicalAndShortCircuitsViaJump(t *testing.T) {
	c, err := Compile("a && b")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !containsOp(c, bytecode.JumpIfFalse) {
		t.Errorf("&& should compile to a JumpIfFalse short-circuit, got %v", opcodes(c))
	}
	if containsOp(c, bytecode.And) {
		t.Errorf("&& should never emit the eager And opcode, got %v", opcodes(c))
	}
}

func TestCompileLogicalOrShortCircuitsViaJump(t *testing.T) {
	c, err := Compile("a || b")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !containsOp(c, bytecode.JumpIfTrue) {
		t.Errorf("|| should compile to a JumpIfTrue short-circuit, got %v", opcodes(c))
	}
}

func TestCompileReusesConstantPoolEntriesForRepeatedLiterals(t *testing.T) {
	c, err := Compile("a + a + a")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	count := 0
	for _, v := range c.Constants {
		if v.Kind().String() == "string" && v.Str() == "a" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("constant pool has %d entries for repeated identifier \"a\", want 1 (deduplicated)", count)
	}
}

func TestCompileReleasesRegistersBetweenIndependentSubexpressions(t *testing.T) {
	deep, err := Compile("((((1 + 2) + 3) + 4) + 5)")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	wide, err := Compile("1 + 2 + 3 + 4 + 5")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if deep.NumRegisters > 4 {
		t.Errorf("NumRegisters = %d for a left-recursive chain, want register reuse to keep it small", deep.NumRegisters)
	}
	if wide.NumRegisters > 4 {
		t.Errorf("NumRegisters = %d, want register reuse to keep it small", wide.NumRegisters)
	}
}

func TestCompileRejectsMalformedSource(t *testing.T) {
	if _, err := Compile("1 +"); err == nil {
		t.Fatal("expected a compile error for a dangling binary operator")
	}
	if _, err := Compile("(1 + 2"); err == nil {
		t.Fatal("expected a compile error for an unclosed parenthesis")
	}
}

func TestCompileTernaryEmitsBothBranchesWithJumpAroundElse(t *testing.T) {
	c, err := Compile("a ? 1 : 2")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	var loads int
	for _, in := range c.Instructions {
		if in.Op == bytecode.LoadConst {
			loads++
		}
	}
	if loads < 2 {
		t.Errorf("ternary should compile a LoadConst for each branch, got %d", loads)
	}
	if !containsOp(c, bytecode.Jump) {
		t.Errorf("ternary's then-branch must jump over the else-branch, got %v", opcodes(c))
	}
}

func TestCompileCallEmitsCallArgsImmediatelyAfterCall(t *testing.T) {
	c, err := Compile("max(1, 2)")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	for i, in := range c.Instructions {
		if in.Op == bytecode.Call {
			if i+1 >= len(c.Instructions) || c.Instructions[i+1].Op != bytecode.CallArgs {
				t.Fatalf("Call at %d not immediately followed by CallArgs: %v", i, opcodes(c))
			}
			if c.Instructions[i+1].A != 2 {
				t.Errorf("CallArgs.A = %d, want 2 (argument count)", c.Instructions[i+1].A)
			}
		}
	}
}
