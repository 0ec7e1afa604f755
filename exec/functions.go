package exec

import (
	"encoding/base64"
	"fmt"
	"math"
	"strings"

	"github.com/bdnk1/abml/value"
)

// FuncRegistry is the VM's function registry (§4.3 "Function calls"): it
// resolves a call expression's function name to a callable and implements
// vm.Functions. The default set is grounded on the teacher's
// runtime/expression_test.go, which exercises base64_encode against its
// expr-lang/expr evaluator -- the one concrete function name the teacher's
// own test suite names.
type FuncRegistry struct {
	fns map[string]func([]value.Value) (value.Value, error)
}

// NewFuncRegistry returns a registry pre-populated with the runtime's
// built-in expression functions.
func NewFuncRegistry() *FuncRegistry {
	r := &FuncRegistry{fns: make(map[string]func([]value.Value) (value.Value, error))}
	r.registerDefaults()
	return r
}

// Register adds or replaces a function under name, letting host code extend
// the expression language without touching this package.
func (r *FuncRegistry) Register(name string, fn func([]value.Value) (value.Value, error)) {
	r.fns[name] = fn
}

func (r *FuncRegistry) Call(name string, args []value.Value) (value.Value, error) {
	fn, ok := r.fns[name]
	if !ok {
		return value.Null, fmt.Errorf("unknown function %q", name)
	}
	return fn(args)
}

func arityErr(name string, want, got int) error {
	return fmt.Errorf("%s: expected %d argument(s), got %d", name, want, got)
}

func (r *FuncRegistry) registerDefaults() {
	r.fns["len"] = func(a []value.Value) (value.Value, error) {
		if len(a) != 1 {
			return value.Null, arityErr("len", 1, len(a))
		}
		switch a[0].Kind() {
		case value.KindString:
			return value.Int(int64(len(a[0].Str()))), nil
		case value.KindSeq:
			return value.Int(int64(len(a[0].SeqElems()))), nil
		case value.KindMap:
			return value.Int(int64(len(a[0].MapEntries()))), nil
		default:
			return value.Null, fmt.Errorf("len: unsupported argument type %s", a[0].Kind())
		}
	}
	r.fns["upper"] = str1("upper", strings.ToUpper)
	r.fns["lower"] = str1("lower", strings.ToLower)
	r.fns["trim"] = str1("trim", strings.TrimSpace)
	r.fns["contains"] = func(a []value.Value) (value.Value, error) {
		if len(a) != 2 {
			return value.Null, arityErr("contains", 2, len(a))
		}
		ok, err := value.In(a[1], a[0])
		if err != nil {
			return value.Null, err
		}
		return value.Bool(ok), nil
	}
	r.fns["abs"] = func(a []value.Value) (value.Value, error) {
		if len(a) != 1 || !a[0].IsNumeric() {
			return value.Null, fmt.Errorf("abs: expected one numeric argument")
		}
		if a[0].Kind() == value.KindInt {
			v := a[0].Int()
			if v < 0 {
				v = -v
			}
			return value.Int(v), nil
		}
		return value.Float(math.Abs(a[0].AsFloat())), nil
	}
	r.fns["min"] = minMax("min", func(c int) bool { return c < 0 })
	r.fns["max"] = minMax("max", func(c int) bool { return c > 0 })
	r.fns["round"] = func(a []value.Value) (value.Value, error) {
		if len(a) != 1 || !a[0].IsNumeric() {
			return value.Null, fmt.Errorf("round: expected one numeric argument")
		}
		return value.Int(int64(math.Round(a[0].AsFloat()))), nil
	}
	r.fns["string"] = func(a []value.Value) (value.Value, error) {
		if len(a) != 1 {
			return value.Null, arityErr("string", 1, len(a))
		}
		return a[0].ToStringValue(), nil
	}
	r.fns["base64_encode"] = func(a []value.Value) (value.Value, error) {
		if len(a) != 1 || a[0].Kind() != value.KindString {
			return value.Null, fmt.Errorf("base64_encode: expected one string argument")
		}
		return value.String(base64.StdEncoding.EncodeToString([]byte(a[0].Str()))), nil
	}
	r.fns["base64_decode"] = func(a []value.Value) (value.Value, error) {
		if len(a) != 1 || a[0].Kind() != value.KindString {
			return value.Null, fmt.Errorf("base64_decode: expected one string argument")
		}
		decoded, err := base64.StdEncoding.DecodeString(a[0].Str())
		if err != nil {
			return value.Null, fmt.Errorf("base64_decode: %w", err)
		}
		return value.String(string(decoded)), nil
	}
}

func str1(name string, f func(string) string) func([]value.Value) (value.Value, error) {
	return func(a []value.Value) (value.Value, error) {
		if len(a) != 1 || a[0].Kind() != value.KindString {
			return value.Null, fmt.Errorf("%s: expected one string argument", name)
		}
		return value.String(f(a[0].Str())), nil
	}
}

func minMax(name string, pick func(cmp int) bool) func([]value.Value) (value.Value, error) {
	return func(a []value.Value) (value.Value, error) {
		if len(a) == 0 {
			return value.Null, fmt.Errorf("%s: expected at least one argument", name)
		}
		best := a[0]
		for _, v := range a[1:] {
			c, err := value.Compare(v, best)
			if err != nil {
				return value.Null, err
			}
			if pick(c) {
				best = v
			}
		}
		return best, nil
	}
}
