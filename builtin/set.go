package builtin

import (
	"github.com/bdnk1/abml/document"
	"github.com/bdnk1/abml/handler"
)

type setHandler struct{}

func (setHandler) Name() string { return document.ActionSet }

// Execute implements "set { variable, value, mode? }" (§4.6): evaluates
// value and writes it to the current scope using set, set_local, or
// set_global per mode (default "set").
func (h setHandler) Execute(action *document.Action, ctx handler.Context) handler.Result {
	v, err := ctx.EvalInterpolated(action.Value)
	if err != nil {
		return errResult(err, ctx.FlowName(), document.ActionSet)
	}
	switch action.Mode {
	case "", "set":
		ctx.Scope().Set(action.Variable, v)
	case "set_local":
		ctx.Scope().SetLocal(action.Variable, v)
	case "set_global":
		ctx.Scope().SetGlobal(action.Variable, v)
	default:
		return structuralErr(ctx.FlowName(), document.ActionSet, "set: unknown mode %q", action.Mode)
	}
	return handler.ContinueResult()
}
