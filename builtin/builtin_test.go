package builtin

import (
	"fmt"
	"strings"
	"testing"

	"github.com/bdnk1/abml/abmlerr"
	"github.com/bdnk1/abml/document"
	"github.com/bdnk1/abml/expr/cache"
	"github.com/bdnk1/abml/handler"
	"github.com/bdnk1/abml/scope"
	"github.com/bdnk1/abml/value"
	"github.com/bdnk1/abml/vm"
)

// fakeCtx is a minimal handler.Context backed by the real scope/cache/vm
// stack, so built-in handler tests exercise genuine expression evaluation
// and scope semantics rather than stubs.
type fakeCtx struct {
	scp         *scope.Scope
	flowName    string
	channelName string
	cache       *cache.Cache
	vmInst      *vm.VM
	reg         *handler.Registry
	flows       map[string]bool
	logs        []string
	signals     []string
}

func newFakeCtx() *fakeCtx {
	reg := handler.NewRegistry()
	RegisterAll(reg)
	return &fakeCtx{
		scp:    scope.New(),
		cache:  cache.New(0),
		vmInst: vm.New(),
		reg:    reg,
		flows:  map[string]bool{},
	}
}

func (c *fakeCtx) Scope() *scope.Scope { return c.scp }

func (c *fakeCtx) Eval(exprSrc string) (value.Value, error) {
	compiled, err := c.cache.Get(exprSrc)
	if err != nil {
		return value.Null, err
	}
	return c.vmInst.Execute(compiled, c.scp, nil)
}

func (c *fakeCtx) EvalInterpolated(exprSrc string) (value.Value, error) {
	if expr, ok := document.IsPureExpr(exprSrc); ok {
		return c.Eval(expr)
	}
	var sb strings.Builder
	for _, seg := range document.Split(exprSrc) {
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

func (c *fakeCtx) Log(level, message string) {
	c.logs = append(c.logs, level+": "+message)
}

func (c *fakeCtx) ChannelName() string { return c.channelName }
func (c *fakeCtx) FlowName() string    { return c.flowName }

func (c *fakeCtx) RunActions(actions []document.Action) (handler.Result, error) {
	return c.RunActionsIn(c.scp, actions)
}

func (c *fakeCtx) RunActionsIn(scp *scope.Scope, actions []document.Action) (handler.Result, error) {
	saved := c.scp
	c.scp = scp
	defer func() { c.scp = saved }()
	for i := range actions {
		a := &actions[i]
		h, ok := c.reg.Lookup(a.Type)
		if !ok {
			return handler.Result{}, fmt.Errorf("no handler registered for %q", a.Type)
		}
		res := h.Execute(a, c)
		if res.Kind != handler.Continue {
			return res, nil
		}
	}
	return handler.ContinueResult(), nil
}

func (c *fakeCtx) CallFlow(flow string) (handler.Result, error) {
	return handler.ContinueResult(), nil
}

func (c *fakeCtx) EmitSignal(signal string) error {
	if c.channelName == "" {
		return fmt.Errorf("emit used outside a channel context")
	}
	c.signals = append(c.signals, signal)
	return nil
}

func (c *fakeCtx) HasFlow(name string) bool { return c.flows[name] }

func (c *fakeCtx) ChildScope() *scope.Scope { return c.scp.CreateChild() }

func TestRegisterAllRegistersNineBuiltins(t *testing.T) {
	reg := handler.NewRegistry()
	RegisterAll(reg)
	names := []string{
		document.ActionSet, document.ActionCall, document.ActionGoto, document.ActionCond,
		document.ActionForEach, document.ActionRepeat, document.ActionLog, document.ActionEmit,
		document.ActionWaitFor,
	}
	for _, name := range names {
		if _, ok := reg.Lookup(name); !ok {
			t.Errorf("RegisterAll did not register %q", name)
		}
	}
}

func TestSetDefaultModeWalksUpExistingBinding(t *testing.T) {
	ctx := newFakeCtx()
	parent := ctx.scp
	child := parent.CreateChild()
	parent.SetLocal("score", value.Int(1))
	ctx.scp = child

	h := setHandler{}
	res := h.Execute(&document.Action{Type: document.ActionSet, Variable: "score", Value: "${2}"}, ctx)
	if res.Kind != handler.Continue {
		t.Fatalf("set returned %+v", res)
	}
	if _, ok := child.Lookup("score"); ok {
		t.Errorf("plain set should mutate the ancestor binding, not shadow locally")
	}
	if parent.Get("score").Int() != 2 {
		t.Errorf("parent.score = %v, want 2", parent.Get("score"))
	}
}

func TestSetLocalShadowsAncestor(t *testing.T) {
	ctx := newFakeCtx()
	ctx.scp.SetLocal("x", value.Int(1))
	child := ctx.scp.CreateChild()
	ctx.scp = child

	h := setHandler{}
	res := h.Execute(&document.Action{Type: document.ActionSet, Variable: "x", Value: "${9}", Mode: "set_local"}, ctx)
	if res.Kind != handler.Continue {
		t.Fatalf("set_local returned %+v", res)
	}
	if child.Get("x").Int() != 9 {
		t.Errorf("child.x = %v, want 9", child.Get("x"))
	}
	if child.Root().Get("x").Int() != 1 {
		t.Errorf("root.x = %v, want unchanged 1", child.Root().Get("x"))
	}
}

func TestSetUnknownModeIsStructuralError(t *testing.T) {
	ctx := newFakeCtx()
	h := setHandler{}
	res := h.Execute(&document.Action{Type: document.ActionSet, Variable: "x", Value: "${1}", Mode: "bogus"}, ctx)
	if res.Kind != handler.Error {
		t.Fatalf("set with unknown mode = %+v, want Error", res)
	}
}

func TestCondRunsFirstTruthyBranch(t *testing.T) {
	ctx := newFakeCtx()
	ctx.scp.SetLocal("health", value.Float(0.2))
	action := &document.Action{
		Type: document.ActionCond,
		Branches: []document.CondBranch{
			{When: "${health < 0.3}", Then: []document.Action{{Type: document.ActionSet, Variable: "mood", Value: "${'critical'}"}}},
			{When: "${true}", Then: []document.Action{{Type: document.ActionSet, Variable: "mood", Value: "${'stable'}"}}},
		},
	}
	h := condHandler{}
	res := h.Execute(action, ctx)
	if res.Kind != handler.Continue {
		t.Fatalf("cond returned %+v", res)
	}
	if ctx.scp.Get("mood").Str() != "critical" {
		t.Errorf("mood = %q, want critical", ctx.scp.Get("mood").Str())
	}
}

func TestCondFallsThroughToElse(t *testing.T) {
	ctx := newFakeCtx()
	action := &document.Action{
		Type: document.ActionCond,
		Branches: []document.CondBranch{
			{When: "${false}", Then: []document.Action{{Type: document.ActionSet, Variable: "hit", Value: "${true}"}}},
		},
		Else: []document.Action{{Type: document.ActionSet, Variable: "hit", Value: "${false}"}},
	}
	h := condHandler{}
	if res := h.Execute(action, ctx); res.Kind != handler.Continue {
		t.Fatalf("cond returned %+v", res)
	}
	if ctx.scp.Get("hit").Bool() {
		t.Errorf("hit = true, want false (else branch)")
	}
}

func TestForEachIsolatesLoopVariableFromOuterBinding(t *testing.T) {
	ctx := newFakeCtx()
	ctx.scp.SetLocal("i", value.String("outer"))
	seen := value.Seq([]value.Value{value.Int(1), value.Int(2), value.Int(3)})
	ctx.scp.SetLocal("items", seen)

	var sum int64
	action := &document.Action{
		Type:       document.ActionForEach,
		Variable:   "i",
		Collection: "${items}",
		Do: []document.Action{
			{Type: document.ActionSet, Variable: "sum", Value: "${sum + i}", Mode: "set_global"},
		},
	}
	ctx.scp.SetGlobal("sum", value.Int(0))
	h := forEachHandler{}
	if res := h.Execute(action, ctx); res.Kind != handler.Continue {
		t.Fatalf("for_each returned %+v", res)
	}
	sum = ctx.scp.Get("sum").Int()
	if sum != 6 {
		t.Errorf("sum = %d, want 6", sum)
	}
	if ctx.scp.Get("i").Str() != "outer" {
		t.Errorf("outer i = %q, want unchanged \"outer\"", ctx.scp.Get("i").Str())
	}
}

func TestForEachRejectsNonIterableCollection(t *testing.T) {
	ctx := newFakeCtx()
	action := &document.Action{Type: document.ActionForEach, Variable: "i", Collection: "${42}", Do: nil}
	h := forEachHandler{}
	if res := h.Execute(action, ctx); res.Kind != handler.Error {
		t.Fatalf("for_each over an int = %+v, want Error", res)
	}
}

func TestRepeatRunsBodyCountTimes(t *testing.T) {
	ctx := newFakeCtx()
	ctx.scp.SetLocal("n", value.Int(0))
	action := &document.Action{
		Type:  document.ActionRepeat,
		Count: "${3}",
		Do:    []document.Action{{Type: document.ActionSet, Variable: "n", Value: "${n + 1}"}},
	}
	h := repeatHandler{}
	if res := h.Execute(action, ctx); res.Kind != handler.Continue {
		t.Fatalf("repeat returned %+v", res)
	}
	if ctx.scp.Get("n").Int() != 3 {
		t.Errorf("n = %d, want 3", ctx.scp.Get("n").Int())
	}
}

func TestRepeatWithNonPositiveCountSkipsBody(t *testing.T) {
	ctx := newFakeCtx()
	ctx.scp.SetLocal("n", value.Int(0))
	action := &document.Action{
		Type:  document.ActionRepeat,
		Count: "${-1}",
		Do:    []document.Action{{Type: document.ActionSet, Variable: "n", Value: "${n + 1}"}},
	}
	h := repeatHandler{}
	if res := h.Execute(action, ctx); res.Kind != handler.Continue {
		t.Fatalf("repeat returned %+v", res)
	}
	if ctx.scp.Get("n").Int() != 0 {
		t.Errorf("n = %d, want 0 (negative count skips the body)", ctx.scp.Get("n").Int())
	}
}

func TestGotoUnknownFlowIsError(t *testing.T) {
	ctx := newFakeCtx()
	h := gotoHandler{}
	res := h.Execute(&document.Action{Type: document.ActionGoto, Flow: "missing"}, ctx)
	if res.Kind != handler.Error {
		t.Fatalf("goto to unknown flow = %+v, want Error", res)
	}
}

func TestGotoKnownFlowYieldsGotoResult(t *testing.T) {
	ctx := newFakeCtx()
	ctx.flows["next"] = true
	h := gotoHandler{}
	res := h.Execute(&document.Action{Type: document.ActionGoto, Flow: "next"}, ctx)
	if res.Kind != handler.Goto || res.FlowTarget != "next" {
		t.Fatalf("goto returned %+v, want Goto(next)", res)
	}
}

func TestCallUnknownFlowIsGotoTargetError(t *testing.T) {
	ctx := newFakeCtx()
	h := callHandler{}
	res := h.Execute(&document.Action{Type: document.ActionCall, Flow: "missing"}, ctx)
	if res.Kind != handler.Error || res.Err == nil || res.Err.Kind != abmlerr.KindGotoTarget {
		t.Fatalf("call to unknown flow = %+v, want a goto_target Error", res)
	}
}

func TestCallKnownFlowContinues(t *testing.T) {
	ctx := newFakeCtx()
	ctx.flows["greet"] = true
	h := callHandler{}
	res := h.Execute(&document.Action{Type: document.ActionCall, Flow: "greet"}, ctx)
	if res.Kind != handler.Continue {
		t.Fatalf("call returned %+v, want Continue", res)
	}
}

func TestLogInterpolatesMessage(t *testing.T) {
	ctx := newFakeCtx()
	h := logHandler{}
	res := h.Execute(&document.Action{Type: document.ActionLog, Message: "${1 + 1}"}, ctx)
	if res.Kind != handler.Continue {
		t.Fatalf("log returned %+v", res)
	}
	if len(ctx.logs) != 1 || ctx.logs[0] != "info: 2" {
		t.Errorf("logs = %v, want one entry \"info: 2\"", ctx.logs)
	}
}

func TestEmitOutsideChannelIsStructuralError(t *testing.T) {
	ctx := newFakeCtx()
	h := emitHandler{}
	res := h.Execute(&document.Action{Type: document.ActionEmit, Signal: "ready"}, ctx)
	if res.Kind != handler.Error {
		t.Fatalf("emit outside a channel = %+v, want Error", res)
	}
}

func TestEmitInsideChannelAppendsSignal(t *testing.T) {
	ctx := newFakeCtx()
	ctx.channelName = "camera"
	h := emitHandler{}
	res := h.Execute(&document.Action{Type: document.ActionEmit, Signal: "ready"}, ctx)
	if res.Kind != handler.Continue {
		t.Fatalf("emit returned %+v", res)
	}
	if len(ctx.signals) != 1 || ctx.signals[0] != "ready" {
		t.Errorf("signals = %v, want [ready]", ctx.signals)
	}
}

func TestWaitForOutsideChannelIsStructuralError(t *testing.T) {
	ctx := newFakeCtx()
	h := waitForHandler{}
	res := h.Execute(&document.Action{Type: document.ActionWaitFor, Wait: &document.WaitSpec{Mode: "all_of"}}, ctx)
	if res.Kind != handler.Error {
		t.Fatalf("wait_for outside a channel = %+v, want Error", res)
	}
}

func TestWaitForInsideChannelYields(t *testing.T) {
	ctx := newFakeCtx()
	ctx.channelName = "camera"
	wait := &document.WaitSpec{Mode: "any_of", Signals: []document.SignalRef{{Signal: "ready"}}}
	h := waitForHandler{}
	res := h.Execute(&document.Action{Type: document.ActionWaitFor, Wait: wait}, ctx)
	if res.Kind != handler.YieldWait || res.Wait != wait {
		t.Fatalf("wait_for returned %+v, want YieldWait(%v)", res, wait)
	}
}
