package builtin

import (
	"math"

	"github.com/bdnk1/abml/document"
	"github.com/bdnk1/abml/handler"
	"github.com/bdnk1/abml/value"
)

type repeatHandler struct{}

func (repeatHandler) Name() string { return document.ActionRepeat }

// Execute implements "repeat { count, do }" (§4.6, §9 open question): count
// may be an expression; a non-integer value truncates toward zero with a
// diagnostic log, and zero or negative skips the body entirely.
func (h repeatHandler) Execute(action *document.Action, ctx handler.Context) handler.Result {
	countVal, err := ctx.EvalInterpolated(action.Count)
	if err != nil {
		return errResult(err, ctx.FlowName(), document.ActionRepeat)
	}
	if !countVal.IsNumeric() {
		return structuralErr(ctx.FlowName(), document.ActionRepeat, "repeat: count must be numeric, got %s", countVal.Kind())
	}

	var n int64
	if countVal.Kind() == value.KindInt {
		n = countVal.Int()
	} else {
		f := countVal.Float()
		n = int64(math.Trunc(f))
		ctx.Log("warn", "repeat: non-integer count truncated")
	}
	if n < 0 {
		n = 0
	}

	for i := int64(0); i < n; i++ {
		res, err := ctx.RunActions(action.Do)
		if err != nil {
			return errResult(err, ctx.FlowName(), document.ActionRepeat)
		}
		if res.Kind == handler.StopFlow {
			return handler.ContinueResult()
		}
		if res.Kind != handler.Continue {
			return res
		}
	}
	return handler.ContinueResult()
}
