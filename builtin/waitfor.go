package builtin

import (
	"github.com/bdnk1/abml/document"
	"github.com/bdnk1/abml/handler"
)

type waitForHandler struct{}

func (waitForHandler) Name() string { return document.ActionWaitFor }

// Execute implements "wait_for { wait }" (§4.7): yields the channel,
// handing the wait-set to the scheduler. Outside a channel context this is
// a structural error (§4.6 "YieldWait ... outside channels it is a
// structural error").
func (h waitForHandler) Execute(action *document.Action, ctx handler.Context) handler.Result {
	if ctx.ChannelName() == "" {
		return structuralErr(ctx.FlowName(), document.ActionWaitFor, "wait_for used outside a channel context")
	}
	if action.Wait == nil {
		return structuralErr(ctx.FlowName(), document.ActionWaitFor, "wait_for requires a wait spec")
	}
	return handler.YieldWaitResult(action.Wait)
}
