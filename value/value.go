// Package value implements the runtime's dynamic value type: the tagged
// union every expression evaluates to and every scope binding holds.
package value

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind discriminates the variants a Value can hold.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindSeq
	KindMap
	KindHost
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindSeq:
		return "sequence"
	case KindMap:
		return "mapping"
	case KindHost:
		return "host"
	default:
		return "unknown"
	}
}

// Host is the protocol an opaque host object may implement so the VM can
// navigate into it with GetProp/GetIndex without knowing its concrete type.
type Host interface {
	Prop(name string) (Value, bool)
	Index(idx Value) (Value, bool)
}

// Value is the runtime's dynamic scalar/composite, as defined in §3 of the
// data model: null, bool, int, float, string, ordered sequence, string-keyed
// mapping, or an opaque host object.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	seq  []Value
	m    map[string]Value
	host Host
}

// Null is the singleton null value.
var Null = Value{kind: KindNull}

func Bool(b bool) Value    { return Value{kind: KindBool, b: b} }
func Int(i int64) Value    { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func String(s string) Value { return Value{kind: KindString, s: s} }

func Seq(elems []Value) Value {
	return Value{kind: KindSeq, seq: elems}
}

func Map(m map[string]Value) Value {
	return Value{kind: KindMap, m: m}
}

func FromHost(h Host) Value {
	return Value{kind: KindHost, host: h}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() bool { return v.b }
func (v Value) Int() int64 { return v.i }
func (v Value) Float() float64 { return v.f }
func (v Value) Str() string { return v.s }
func (v Value) SeqElems() []Value { return v.seq }
func (v Value) MapEntries() map[string]Value { return v.m }
func (v Value) HostObj() Host { return v.host }

// IsNumeric reports whether v is an int or float.
func (v Value) IsNumeric() bool { return v.kind == KindInt || v.kind == KindFloat }

// AsFloat widens an int or float Value to float64. Callers must check
// IsNumeric first.
func (v Value) AsFloat() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// Truthy implements the spec's truthiness rule: null, false, numeric zero,
// empty string, and empty sequence/mapping are falsy; all else is truthy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString:
		return v.s != ""
	case KindSeq:
		return len(v.seq) > 0
	case KindMap:
		return len(v.m) > 0
	default:
		return true
	}
}

// FromGo converts a plain Go value (as produced by a YAML unmarshal into
// map[string]any/[]any/string/int/float64/bool/nil) into a Value, mirroring
// the shape of the teacher's ToStringValueMap conversion walk.
func FromGo(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float64:
		return Float(t)
	case float32:
		return Float(float64(t))
	case string:
		return String(t)
	case []any:
		elems := make([]Value, len(t))
		for i, e := range t {
			elems[i] = FromGo(e)
		}
		return Seq(elems)
	case []Value:
		return Seq(t)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			m[k] = FromGo(e)
		}
		return Map(m)
	case map[any]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = FromGo(e)
		}
		return Map(m)
	case Value:
		return t
	default:
		return String(fmt.Sprint(t))
	}
}

// ToGo converts a Value back into a plain Go value (map[string]any,
// []any, ...), for handing off to external handlers or host code.
func (v Value) ToGo() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindSeq:
		out := make([]any, len(v.seq))
		for i, e := range v.seq {
			out[i] = e.ToGo()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, e := range v.m {
			out[k] = e.ToGo()
		}
		return out
	default:
		return v.host
	}
}

// String renders v using the VM tracing format rule: strings are quoted,
// booleans lowercased, null rendered as "null", everything else via its
// default string form.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindSeq:
		parts := make([]string, len(v.seq))
		for i, e := range v.seq {
			parts[i] = e.ToStringValue().s
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + v.m[k].ToStringValue().s
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", v.host)
	}
}

// ToStringValue implements the interpolation ToString conversion (§6): the
// raw, unquoted text form used when splicing an expression result into a
// literal string.
func (v Value) ToStringValue() Value {
	switch v.kind {
	case KindString:
		return v
	case KindNull:
		return String("null")
	case KindBool:
		return String(v.String())
	case KindInt, KindFloat:
		return String(v.String())
	default:
		return String(v.String())
	}
}
