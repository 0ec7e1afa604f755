package builtin

import (
	"github.com/bdnk1/abml/abmlerr"
	"github.com/bdnk1/abml/document"
	"github.com/bdnk1/abml/handler"
)

type gotoHandler struct{}

func (gotoHandler) Name() string { return document.ActionGoto }

// Execute implements "goto { flow }" (§4.6): intra-document tail transfer.
// The current frame's scope is retained; the executor (not this handler)
// avoids pushing a new frame.
func (h gotoHandler) Execute(action *document.Action, ctx handler.Context) handler.Result {
	if !ctx.HasFlow(action.Flow) {
		return handler.ErrorResult(abmlerr.New(abmlerr.KindGotoTarget, ctx.FlowName(), document.ActionGoto, "goto: flow %q not found", action.Flow))
	}
	return handler.GotoResult(action.Flow)
}
