package compiler

import "github.com/bdnk1/abml/expr/bytecode"
import "github.com/bdnk1/abml/value"

// Compiled is the immutable, cacheable artifact of expression compilation
// (§3 CompiledExpression): bytecode, its constant pool, the register
// high-water mark, the original source (for diagnostics), and an optional
// expected-result type hint used by callers that want to coerce eagerly.
type Compiled struct {
	Instructions []bytecode.Instruction
	Constants    []value.Value
	NumRegisters int
	Source       string
	TypeHint     value.Kind
}
