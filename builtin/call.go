package builtin

import (
	"github.com/bdnk1/abml/abmlerr"
	"github.com/bdnk1/abml/document"
	"github.com/bdnk1/abml/handler"
)

type callHandler struct{}

func (callHandler) Name() string { return document.ActionCall }

// Execute implements "call { flow }" (§4.6): resolves flow, creates a child
// scope, and runs it to completion, isolating the callee's plain-set
// mutations from the caller (§8 "call isolation + global escape").
func (h callHandler) Execute(action *document.Action, ctx handler.Context) handler.Result {
	if !ctx.HasFlow(action.Flow) {
		return handler.ErrorResult(abmlerr.New(abmlerr.KindGotoTarget, ctx.FlowName(), document.ActionCall, "call: flow %q not found", action.Flow))
	}
	res, err := ctx.CallFlow(action.Flow)
	if err != nil {
		return errResult(err, ctx.FlowName(), document.ActionCall)
	}
	if res.Kind == handler.Halt {
		return handler.ErrorResult(abmlerr.New(abmlerr.KindExpression, ctx.FlowName(), document.ActionCall, "call: flow %q ended with an unhandled error", action.Flow))
	}
	return handler.ContinueResult()
}
