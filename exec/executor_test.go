package exec

import (
	"testing"

	"github.com/bdnk1/abml/abmlerr"
	"github.com/bdnk1/abml/builtin"
	"github.com/bdnk1/abml/document"
	"github.com/bdnk1/abml/expr/cache"
	"github.com/bdnk1/abml/handler"
	"github.com/bdnk1/abml/value"
)

// recordingLogger captures every Log call so a test can assert on what the
// error chain reported.
type recordingLogger struct {
	entries []string
}

func (l *recordingLogger) Log(level, message string, fields map[string]any) {
	l.entries = append(l.entries, level+": "+message)
}

// failingHandler always returns an Error result of the given kind, letting
// tests drive the error chain deterministically.
type failingHandler struct {
	name string
	kind abmlerr.Kind
}

func (f failingHandler) Name() string { return f.name }
func (f failingHandler) Execute(action *document.Action, ctx handler.Context) handler.Result {
	return handler.ErrorResult(abmlerr.New(f.kind, ctx.FlowName(), f.name, "synthetic failure from %q", f.name))
}

func newTestExecutor(doc *document.Document, extra ...handler.Handler) (*Executor, *recordingLogger) {
	reg := handler.NewRegistry()
	builtin.RegisterAll(reg)
	for _, h := range extra {
		reg.Register(h)
	}
	logger := &recordingLogger{}
	ex := New(doc, reg, cache.New(0), NewFuncRegistry(), logger, RealClock{})
	return ex, logger
}

// TestErrorEscalatesFromActionToFlowLevel exercises §4.6's chain: an
// action-level on_error that itself raises (via a handler with no on_error
// of its own) escalates to the enclosing flow's on_error, which resolves it.
func TestErrorEscalatesFromActionToFlowLevel(t *testing.T) {
	doc := &document.Document{
		Version:  document.SupportedVersion,
		Metadata: document.Metadata{ID: "escalation"},
		Flows: map[string]*document.Flow{
			"main": {
				Actions: []document.Action{
					{
						Type:    "boom",
						OnError: []document.Action{{Type: "boom_escalate"}},
					},
				},
				OnError: []document.Action{
					{Type: document.ActionSet, Variable: "_error_handled", Value: "${true}"},
					{Type: document.ActionSet, Variable: "resolved_at", Value: "${'flow'}"},
				},
			},
		},
	}
	ex, _ := newTestExecutor(doc,
		failingHandler{name: "boom", kind: abmlerr.KindExpression},
		failingHandler{name: "boom_escalate", kind: abmlerr.KindExpression},
	)

	err := ex.Run("main")
	if err != nil {
		t.Fatalf("Run returned %v, want nil (flow-level handler resolves it)", err)
	}
	if ex.RootScope().Get("resolved_at").Str() != "flow" {
		t.Errorf("resolved_at = %q, want flow", ex.RootScope().Get("resolved_at").Str())
	}
}

// TestErrorEscalatesFromActionToDocumentLevel checks that escalation skips a
// flow with no on_error of its own and falls through to the document level.
func TestErrorEscalatesFromActionToDocumentLevel(t *testing.T) {
	doc := &document.Document{
		Version:  document.SupportedVersion,
		Metadata: document.Metadata{ID: "escalation_doc"},
		OnError: []document.Action{
			{Type: document.ActionSet, Variable: "_error_handled", Value: "${true}"},
			{Type: document.ActionSet, Variable: "resolved_at", Value: "${'document'}"},
		},
		Flows: map[string]*document.Flow{
			"main": {
				Actions: []document.Action{
					{
						Type:    "boom",
						OnError: []document.Action{{Type: "boom_escalate"}},
					},
				},
			},
		},
	}
	ex, _ := newTestExecutor(doc,
		failingHandler{name: "boom", kind: abmlerr.KindExpression},
		failingHandler{name: "boom_escalate", kind: abmlerr.KindExpression},
	)

	err := ex.Run("main")
	if err != nil {
		t.Fatalf("Run returned %v, want nil (document-level handler resolves it)", err)
	}
	if ex.RootScope().Get("resolved_at").Str() != "document" {
		t.Errorf("resolved_at = %q, want document (the absent flow level must be skipped)", ex.RootScope().Get("resolved_at").Str())
	}
}

// TestUnhandledErrorHaltsTheFlow checks §4.6 step 5: exhausting all three
// levels without _error_handled == true halts with an error.
func TestUnhandledErrorHaltsTheFlow(t *testing.T) {
	doc := &document.Document{
		Version:  document.SupportedVersion,
		Metadata: document.Metadata{ID: "unhandled"},
		Flows: map[string]*document.Flow{
			"main": {Actions: []document.Action{{Type: "boom"}}},
		},
	}
	ex, logger := newTestExecutor(doc, failingHandler{name: "boom", kind: abmlerr.KindExpression})

	err := ex.Run("main")
	if err == nil {
		t.Fatal("expected Run to return an error when no on_error list handles it")
	}
	found := false
	for _, e := range logger.entries {
		if e == "error: unhandled error terminated execution" {
			found = true
		}
	}
	if !found {
		t.Errorf("logger entries = %v, want an \"unhandled error\" log line", logger.entries)
	}
}

// TestCancelledKindIsFatalAndSkipsTheChain checks §7's fatal-kind carve-out:
// a cancelled error halts immediately without consulting any on_error list.
func TestCancelledKindIsFatalAndSkipsTheChain(t *testing.T) {
	doc := &document.Document{
		Version:  document.SupportedVersion,
		Metadata: document.Metadata{ID: "cancelled"},
		OnError:  []document.Action{{Type: document.ActionSet, Variable: "_error_handled", Value: "${true}"}},
		Flows: map[string]*document.Flow{
			"main": {Actions: []document.Action{{Type: "boom"}}},
		},
	}
	ex, _ := newTestExecutor(doc, failingHandler{name: "boom", kind: abmlerr.KindCancelled})

	if err := ex.Run("main"); err == nil {
		t.Fatal("expected Run to report an error for a fatal cancelled kind")
	}
}

// TestCallIsolatesPlainSetButGlobalEscapes exercises §8's "call isolation +
// global escape": a callee's plain `set` of a variable bound in the caller
// mutates the caller's copy (set walks the chain), but a fresh variable the
// callee introduces with plain `set` stays local to the callee's child
// scope, while set_global always reaches the document root.
func TestCallIsolatesPlainSetButGlobalEscapes(t *testing.T) {
	doc := &document.Document{
		Version:  document.SupportedVersion,
		Metadata: document.Metadata{ID: "call_isolation"},
		Flows: map[string]*document.Flow{
			"main": {
				Actions: []document.Action{
					{Type: document.ActionSet, Variable: "shared", Value: "${1}"},
					{Type: document.ActionCall, Flow: "callee"},
				},
			},
			"callee": {
				Actions: []document.Action{
					{Type: document.ActionSet, Variable: "shared", Value: "${2}"},
					{Type: document.ActionSet, Variable: "callee_only", Value: "${'leaked?'}"},
					{Type: document.ActionSet, Variable: "from_callee", Value: "${'yes'}", Mode: "set_global"},
				},
			},
		},
	}
	ex, _ := newTestExecutor(doc)

	if err := ex.Run("main"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ex.RootScope().Get("shared").Int() != 1 {
		t.Errorf("shared = %v, want 1 (callee's plain set on an unbound-in-callee name must not leak back)", ex.RootScope().Get("shared"))
	}
	if _, ok := ex.RootScope().Lookup("callee_only"); ok {
		t.Errorf("callee_only leaked into the caller's scope, want it confined to the callee's child scope")
	}
	if ex.RootScope().Get("from_callee").Str() != "yes" {
		t.Errorf("from_callee = %q, want yes (set_global must escape the call)", ex.RootScope().Get("from_callee").Str())
	}
}

// TestGotoRetainsScopeAcrossTailTransfer checks that goto does not isolate
// or reset the running scope (§4.6 "goto": "the frame's scope is retained").
func TestGotoRetainsScopeAcrossTailTransfer(t *testing.T) {
	doc := &document.Document{
		Version:  document.SupportedVersion,
		Metadata: document.Metadata{ID: "goto_scope"},
		Flows: map[string]*document.Flow{
			"main": {
				Actions: []document.Action{
					{Type: document.ActionSet, Variable: "x", Value: "${1}"},
					{Type: document.ActionGoto, Flow: "second"},
				},
			},
			"second": {
				Actions: []document.Action{
					{Type: document.ActionSet, Variable: "x", Value: "${x + 1}"},
				},
			},
		},
	}
	ex, _ := newTestExecutor(doc)
	if err := ex.Run("main"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ex.RootScope().Get("x").Int() != 2 {
		t.Errorf("x = %v, want 2 (goto must see the prior flow's binding)", ex.RootScope().Get("x"))
	}
}

// TestErrorScopeBindingExposesKind checks that handleError binds _error
// with the kind field on_error actions rely on (§4.6 step 1).
func TestErrorScopeBindingExposesKind(t *testing.T) {
	doc := &document.Document{
		Version:  document.SupportedVersion,
		Metadata: document.Metadata{ID: "error_binding"},
		Flows: map[string]*document.Flow{
			"main": {
				Actions: []document.Action{{
					Type: "boom",
					OnError: []document.Action{
						{Type: document.ActionSet, Variable: "seen_kind", Value: "${_error.kind}"},
						{Type: document.ActionSet, Variable: "_error_handled", Value: "${true}"},
					},
				}},
			},
		},
	}
	ex, _ := newTestExecutor(doc, failingHandler{name: "boom", kind: abmlerr.KindMissingVariable})

	if err := ex.Run("main"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := ex.RootScope().Get("seen_kind"); got.Kind() != value.KindString || got.Str() != string(abmlerr.KindMissingVariable) {
		t.Errorf("seen_kind = %v, want %q", got, abmlerr.KindMissingVariable)
	}
}
