// Package handler defines the action handler contract (§4.5): the
// extension point domain actions dispatch to, and the name→handler
// registry the document executor consults. Handler payloads are opaque to
// the executor -- it dispatches by action type name and acts on the
// returned Result, nothing more.
//
// Grounded on the teacher's runtime/container.go, which reflects over
// plugin structs to build a name→callable registry for task/response
// handlers; adapted here from reflection-based signature discovery to a
// single fixed Execute(action, context) contract, since §4.5 specifies one
// exact handler signature rather than a family of plugin method shapes.
package handler

import (
	"github.com/bdnk1/abml/abmlerr"
	"github.com/bdnk1/abml/document"
	"github.com/bdnk1/abml/scope"
	"github.com/bdnk1/abml/value"
)

// ResultKind discriminates the outcomes a handler may produce. The first
// five are the HandlerResult variants §4.5 specifies; Halt is an
// executor-internal sixth value, never constructed by a leaf handler -- it
// is what Context.RunActions/CallFlow return to signal "this flow run is
// unwinding because an error of a fatal kind, or one that no on_error level
// handled without itself erroring, ended it" (§4.6 step 5). An on_error list
// that completes without setting _error_handled yields StopFlow instead
// (§4.6 step 4). Halt is deliberately NOT intercepted by for_each/repeat's
// StopFlow-as-break handling, unlike a handler-returned StopFlow.
type ResultKind int

const (
	Continue ResultKind = iota
	StopFlow
	Goto
	YieldWait
	Error
	Halt
)

// Result is a HandlerResult: exactly one of Continue, StopFlow, a named
// Goto target, a YieldWait wait-spec, an Err, or (internal-only) Halt.
type Result struct {
	Kind       ResultKind
	FlowTarget string
	Wait       *document.WaitSpec
	Err        *abmlerr.Error
}

func ContinueResult() Result                     { return Result{Kind: Continue} }
func StopFlowResult() Result                     { return Result{Kind: StopFlow} }
func GotoResult(flow string) Result              { return Result{Kind: Goto, FlowTarget: flow} }
func YieldWaitResult(w *document.WaitSpec) Result { return Result{Kind: YieldWait, Wait: w} }
func ErrorResult(err *abmlerr.Error) Result       { return Result{Kind: Error, Err: err} }
func HaltResult() Result                         { return Result{Kind: Halt} }

// Context is the view into the executing document a handler needs: its
// current variable scope, the ability to evaluate an embedded expression or
// an interpolated string (§6) against that scope, a log sink, the current
// channel's name for bare signal references (empty outside a channel), and
// three executor callbacks that let the five control-flow built-ins
// (cond/for_each/repeat/call/emit) reach into the executor without it
// exposing its full internals:
//
//   - RunActions executes a nested action list sharing the current scope
//     (cond branches, repeat bodies) and returns whatever that
//     list's terminal Result was.
//   - CallFlow creates a child scope and runs a named flow to completion
//     in it (§4.6's call semantics), returning its terminal Result.
//   - EmitSignal appends a signal to the channel scheduler's emission log;
//     it is an error to call this outside a channel.
type Context interface {
	Scope() *scope.Scope
	Eval(exprSrc string) (value.Value, error)
	EvalInterpolated(exprSrc string) (value.Value, error)
	Log(level, message string)
	ChannelName() string
	FlowName() string
	RunActions(actions []document.Action) (Result, error)
	CallFlow(flow string) (Result, error)
	EmitSignal(signal string) error

	// HasFlow reports whether name names a flow in the current document, so
	// goto/call can raise a goto_target error themselves (§7) before
	// returning a Goto result the executor would otherwise have to trust.
	HasFlow(name string) bool

	// ChildScope returns a fresh direct child of the current scope.
	// for_each uses this to bind its loop variable in an isolated scope so
	// the loop does not clobber an outer binding of the same name (§8
	// "loop variable isolation").
	ChildScope() *scope.Scope

	// RunActionsIn is RunActions against an explicit scope rather than the
	// current one.
	RunActionsIn(scp *scope.Scope, actions []document.Action) (Result, error)
}

// Handler is the action extension point (§4.5). Name returns the action
// type string it handles (e.g. "attack", "query_service" for a domain
// handler, or one of the nine built-in names for a built-in).
type Handler interface {
	Name() string
	Execute(action *document.Action, ctx Context) Result
}

// Registry is a name→Handler lookup table. The zero value is not usable;
// use NewRegistry.
type Registry struct {
	byName map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Handler)}
}

// Register adds h under h.Name(), replacing any previous handler with that
// name. Built-in names (set, call, goto, cond, for_each, repeat, log, emit,
// wait_for) are reserved (§6) but Registry does not itself enforce that:
// whichever handler is registered last under a name wins.
func (r *Registry) Register(h Handler) {
	r.byName[h.Name()] = h
}

// Lookup resolves an action type to its handler.
func (r *Registry) Lookup(name string) (Handler, bool) {
	h, ok := r.byName[name]
	return h, ok
}
