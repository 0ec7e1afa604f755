package builtin

import (
	"github.com/bdnk1/abml/document"
	"github.com/bdnk1/abml/handler"
)

type condHandler struct{}

func (condHandler) Name() string { return document.ActionCond }

// Execute implements "cond { branches, else? }" (§4.6): evaluates each
// branch's predicate in order against the current scope; the first truthy
// one runs its action list inline, sharing the current scope. If none
// match, else (if present) runs.
func (h condHandler) Execute(action *document.Action, ctx handler.Context) handler.Result {
	for _, br := range action.Branches {
		v, err := ctx.EvalInterpolated(br.When)
		if err != nil {
			return errResult(err, ctx.FlowName(), document.ActionCond)
		}
		if v.Truthy() {
			res, err := ctx.RunActions(br.Then)
			if err != nil {
				return errResult(err, ctx.FlowName(), document.ActionCond)
			}
			return res
		}
	}
	if action.Else != nil {
		res, err := ctx.RunActions(action.Else)
		if err != nil {
			return errResult(err, ctx.FlowName(), document.ActionCond)
		}
		return res
	}
	return handler.ContinueResult()
}
