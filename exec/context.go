package exec

import (
	"errors"
	"strings"

	"github.com/bdnk1/abml/abmlerr"
	"github.com/bdnk1/abml/document"
	"github.com/bdnk1/abml/handler"
	"github.com/bdnk1/abml/scope"
	"github.com/bdnk1/abml/value"
	"github.com/bdnk1/abml/vm"
)

// flowContext carries the information a running action list needs about its
// enclosing frame: which flow (if any) it belongs to for the error chain's
// middle level (§4.6 step 3), and which channel (if any) it runs in, for
// bare signal references (§6 "Signal naming") and the structural rule that
// wait_for/emit only make sense inside a channel.
type flowContext struct {
	flowName    string
	channelName string
	flowOnError []document.Action
}

// actionCtx is the handler.Context a single action sees. One is built per
// ExecuteOne call; it is cheap and holds no state of its own beyond pointers
// into the executor and the frame it was built for.
type actionCtx struct {
	ex   *Executor
	scp  *scope.Scope
	fctx *flowContext
}

func (c *actionCtx) Scope() *scope.Scope { return c.scp }

// Eval compiles and runs exprSrc against the current scope (§4.1, §4.2,
// §4.3). Compile failures surface as abmlerr.KindCompile; runtime failures
// carry whatever Kind the VM classified them as (expression or
// missing_variable).
func (c *actionCtx) Eval(exprSrc string) (value.Value, error) {
	compiled, err := c.ex.cache.Get(exprSrc)
	if err != nil {
		return value.Null, abmlerr.Wrap(abmlerr.KindCompile, c.fctx.flowName, "", err)
	}
	v, err := c.ex.vmInst.Execute(compiled, c.scp, c.ex.funcs)
	if err != nil {
		var rerr *vm.RuntimeError
		if errors.As(err, &rerr) {
			return value.Null, abmlerr.New(rerr.Kind, c.fctx.flowName, "", "%s", rerr.Message)
		}
		return value.Null, abmlerr.Wrap(abmlerr.KindExpression, c.fctx.flowName, "", err)
	}
	return v, nil
}

// EvalInterpolated implements §6's interpolation rule: a string that is
// exactly one "${...}" fragment yields that expression's raw Value; a
// string with embedded fragments (or none) interpolates each fragment via
// ToString and concatenates, yielding a string Value.
func (c *actionCtx) EvalInterpolated(exprSrc string) (value.Value, error) {
	if expr, ok := document.IsPureExpr(exprSrc); ok {
		return c.Eval(expr)
	}
	segs := document.Split(exprSrc)
	var sb strings.Builder
	for _, seg := range segs {
		if !seg.IsExpr {
			sb.WriteString(seg.Literal)
			continue
		}
		v, err := c.Eval(seg.Expr)
		if err != nil {
			return value.Null, err
		}
		sb.WriteString(v.ToStringValue().Str())
	}
	return value.String(sb.String()), nil
}

func (c *actionCtx) Log(level, message string) {
	c.ex.logger.Log(level, message, map[string]any{
		"flow":          c.fctx.flowName,
		"channel":       c.fctx.channelName,
		"execution_id":  c.ex.execID,
	})
}

func (c *actionCtx) ChannelName() string { return c.fctx.channelName }
func (c *actionCtx) FlowName() string    { return c.fctx.flowName }

// RunActions executes actions sharing the current scope, used by cond
// branches and repeat bodies (§4.6).
func (c *actionCtx) RunActions(actions []document.Action) (handler.Result, error) {
	return c.ex.runActionList(actions, c.scp, c.fctx), nil
}

// CallFlow implements the call built-in's callee-isolation invariant: a
// fresh child scope, run to completion, no frame left behind afterward
// (§4.6 "call").
func (c *actionCtx) CallFlow(flowName string) (handler.Result, error) {
	child := c.scp.CreateChild()
	return c.ex.runFlow(flowName, child), nil
}

// EmitSignal appends to the channel scheduler's signal log (§4.7). Outside
// a channel, or with no scheduler attached, this is a structural error.
func (c *actionCtx) EmitSignal(signal string) error {
	if c.fctx.channelName == "" {
		return abmlerr.New(abmlerr.KindExpression, c.fctx.flowName, "emit", "emit used outside a channel context")
	}
	if c.ex.signals == nil {
		return abmlerr.New(abmlerr.KindExpression, c.fctx.flowName, "emit", "no channel scheduler attached to this execution")
	}
	c.ex.signals.Emit(c.fctx.channelName, signal)
	return nil
}

func (c *actionCtx) HasFlow(name string) bool {
	_, ok := c.ex.doc.Flows[name]
	return ok
}

func (c *actionCtx) ChildScope() *scope.Scope { return c.scp.CreateChild() }

func (c *actionCtx) RunActionsIn(scp *scope.Scope, actions []document.Action) (handler.Result, error) {
	return c.ex.runActionList(actions, scp, c.fctx), nil
}
