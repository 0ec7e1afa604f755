package value

import (
	"fmt"
	"strings"
)

// OpError is raised by arithmetic/comparison operations that the spec
// defines as runtime errors (division by zero, incomparable types, ...).
// abmlerr wraps these into expression-kind errors at the VM boundary.
type OpError struct {
	Op  string
	Msg string
}

func (e *OpError) Error() string { return fmt.Sprintf("%s: %s", e.Op, e.Msg) }

func opErr(op, format string, args ...any) error {
	return &OpError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Add implements "+": numeric addition following the permissive coercion
// rule, or string concatenation when either operand is a string.
func Add(a, b Value) (Value, error) {
	if a.kind == KindString || b.kind == KindString {
		return String(a.ToStringValue().s + b.ToStringValue().s), nil
	}
	if !a.IsNumeric() || !b.IsNumeric() {
		return Null, opErr("+", "cannot add %s and %s", a.kind, b.kind)
	}
	if a.kind == KindInt && b.kind == KindInt {
		return Int(a.i + b.i), nil
	}
	return Float(a.AsFloat() + b.AsFloat()), nil
}

func Sub(a, b Value) (Value, error) { return numericBinOp("-", a, b, func(x, y int64) int64 { return x - y }, func(x, y float64) float64 { return x - y }) }
func Mul(a, b Value) (Value, error) { return numericBinOp("*", a, b, func(x, y int64) int64 { return x * y }, func(x, y float64) float64 { return x * y }) }

// Div implements "/": integer division of two ints truncates; any other
// numeric combination yields a float. Division by zero is a runtime error.
func Div(a, b Value) (Value, error) {
	if !a.IsNumeric() || !b.IsNumeric() {
		return Null, opErr("/", "cannot divide %s by %s", a.kind, b.kind)
	}
	if a.kind == KindInt && b.kind == KindInt {
		if b.i == 0 {
			return Null, opErr("/", "division by zero")
		}
		return Int(a.i / b.i), nil
	}
	bf := b.AsFloat()
	if bf == 0 {
		return Null, opErr("/", "division by zero")
	}
	return Float(a.AsFloat() / bf), nil
}

// Mod implements "%" with the same int/float split as Div.
func Mod(a, b Value) (Value, error) {
	if !a.IsNumeric() || !b.IsNumeric() {
		return Null, opErr("%", "cannot take modulo of %s and %s", a.kind, b.kind)
	}
	if a.kind == KindInt && b.kind == KindInt {
		if b.i == 0 {
			return Null, opErr("%", "division by zero")
		}
		return Int(a.i % b.i), nil
	}
	bf := b.AsFloat()
	if bf == 0 {
		return Null, opErr("%", "division by zero")
	}
	af := a.AsFloat()
	r := af - bf*float64(int64(af/bf))
	return Float(r), nil
}

func numericBinOp(op string, a, b Value, intOp func(x, y int64) int64, floatOp func(x, y float64) float64) (Value, error) {
	if !a.IsNumeric() || !b.IsNumeric() {
		return Null, opErr(op, "incompatible operand types %s and %s", a.kind, b.kind)
	}
	if a.kind == KindInt && b.kind == KindInt {
		return Int(intOp(a.i, b.i)), nil
	}
	return Float(floatOp(a.AsFloat(), b.AsFloat())), nil
}

// Neg implements unary "-".
func Neg(a Value) (Value, error) {
	switch a.kind {
	case KindInt:
		return Int(-a.i), nil
	case KindFloat:
		return Float(-a.f), nil
	default:
		return Null, opErr("-", "cannot negate %s", a.kind)
	}
}

// Eq implements strict equality: null equals only null; numeric types
// widen for comparison; everything else compares by kind and value.
func Eq(a, b Value) bool {
	if a.kind == KindNull || b.kind == KindNull {
		return a.kind == KindNull && b.kind == KindNull
	}
	if a.IsNumeric() && b.IsNumeric() {
		return a.AsFloat() == b.AsFloat()
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindBool:
		return a.b == b.b
	case KindString:
		return a.s == b.s
	case KindSeq:
		if len(a.seq) != len(b.seq) {
			return false
		}
		for i := range a.seq {
			if !Eq(a.seq[i], b.seq[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.m) != len(b.m) {
			return false
		}
		for k, av := range a.m {
			bv, ok := b.m[k]
			if !ok || !Eq(av, bv) {
				return false
			}
		}
		return true
	default:
		return a.host == b.host
	}
}

// Compare is the general-purpose three-way ordering used by callers that
// need a total order over values, such as min/max: numeric types widen,
// strings compare lexicographically, and null sorts less than any non-null
// value. The VM's <, <=, >, >= opcodes do NOT call this for a null operand --
// they special-case it to false directly (see vm.go), since an ordered
// comparison against null must never be truthy. Comparing two incomparable
// non-null types is a runtime error.
func Compare(a, b Value) (int, error) {
	if a.kind == KindNull && b.kind == KindNull {
		return 0, nil
	}
	if a.kind == KindNull {
		return -1, nil
	}
	if b.kind == KindNull {
		return 1, nil
	}
	if a.IsNumeric() && b.IsNumeric() {
		af, bf := a.AsFloat(), b.AsFloat()
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if a.kind == KindString && b.kind == KindString {
		return strings.Compare(a.s, b.s), nil
	}
	return 0, opErr("compare", "cannot order %s and %s", a.kind, b.kind)
}

// In implements the "in" membership operator: substring test for strings,
// element test for sequences, key presence for mappings.
func In(needle, haystack Value) (bool, error) {
	switch haystack.kind {
	case KindString:
		if needle.kind != KindString {
			return false, opErr("in", "left operand of string 'in' must be a string")
		}
		return strings.Contains(haystack.s, needle.s), nil
	case KindSeq:
		for _, e := range haystack.seq {
			if Eq(e, needle) {
				return true, nil
			}
		}
		return false, nil
	case KindMap:
		if needle.kind != KindString {
			return false, opErr("in", "mapping key must be a string")
		}
		_, ok := haystack.m[needle.s]
		return ok, nil
	default:
		return false, opErr("in", "cannot test membership in %s", haystack.kind)
	}
}

// GetProp implements member access a.b: property lookup on a mapping (by
// key) or a host object (via its Prop protocol). A null receiver is a
// runtime error (the safe form short-circuits before calling this).
func GetProp(receiver Value, name string) (Value, error) {
	switch receiver.kind {
	case KindNull:
		return Null, opErr("prop", "cannot access property %q of null", name)
	case KindMap:
		if v, ok := receiver.m[name]; ok {
			return v, nil
		}
		return Null, nil
	case KindHost:
		if v, ok := receiver.host.Prop(name); ok {
			return v, nil
		}
		return Null, nil
	default:
		return Null, opErr("prop", "cannot access property %q of %s", name, receiver.kind)
	}
}

// GetIndex implements index access a[b]: integer index into a sequence
// (out of range yields null), string index into a mapping (missing key
// yields null), or a host object's Index protocol.
func GetIndex(receiver, idx Value) (Value, error) {
	switch receiver.kind {
	case KindNull:
		return Null, opErr("index", "cannot index null")
	case KindSeq:
		if idx.kind != KindInt {
			return Null, opErr("index", "sequence index must be an integer")
		}
		i := idx.i
		if i < 0 || i >= int64(len(receiver.seq)) {
			return Null, nil
		}
		return receiver.seq[i], nil
	case KindMap:
		if idx.kind != KindString {
			return Null, opErr("index", "mapping index must be a string")
		}
		if v, ok := receiver.m[idx.s]; ok {
			return v, nil
		}
		return Null, nil
	case KindHost:
		if v, ok := receiver.host.Index(idx); ok {
			return v, nil
		}
		return Null, nil
	default:
		return Null, opErr("index", "cannot index %s", receiver.kind)
	}
}
