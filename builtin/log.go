package builtin

import (
	"github.com/bdnk1/abml/document"
	"github.com/bdnk1/abml/handler"
)

type logHandler struct{}

func (logHandler) Name() string { return document.ActionLog }

// Execute implements "log { message, level? }" (§4.6): evaluates message
// with full interpolation (§6) and writes it to the context's log sink.
func (h logHandler) Execute(action *document.Action, ctx handler.Context) handler.Result {
	v, err := ctx.EvalInterpolated(action.Message)
	if err != nil {
		return errResult(err, ctx.FlowName(), document.ActionLog)
	}
	level := action.Level
	if level == "" {
		level = "info"
	}
	ctx.Log(level, v.ToStringValue().Str())
	return handler.ContinueResult()
}
