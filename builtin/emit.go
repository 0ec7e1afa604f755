package builtin

import (
	"github.com/bdnk1/abml/document"
	"github.com/bdnk1/abml/handler"
)

type emitHandler struct{}

func (emitHandler) Name() string { return document.ActionEmit }

// Execute implements "emit { signal }" (§4.7): appends signal, namespaced
// to the current channel, to the scheduler's signal log. Stays ready; does
// not suspend.
func (h emitHandler) Execute(action *document.Action, ctx handler.Context) handler.Result {
	if err := ctx.EmitSignal(action.Signal); err != nil {
		return errResult(err, ctx.FlowName(), document.ActionEmit)
	}
	return handler.ContinueResult()
}
