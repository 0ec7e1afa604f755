// Package exec implements the document executor (§4.6): the component that
// walks a parsed Document's flows and channels, dispatches each action to
// its registered handler, and runs the three-level on_error chain when a
// handler or expression fails.
//
// Grounded on the teacher's runtime/executor.go (step dispatch loop,
// retry/error classification, context construction per step) and
// runtime/app.go (slog wiring, graceful shutdown shape), generalized from
// the teacher's fixed Task/Step pipeline to the spec's flow/channel/handler
// model with goto-based tail transfer and call-based child scopes.
package exec

import (
	"fmt"

	"github.com/bdnk1/abml/abmlerr"
	"github.com/bdnk1/abml/document"
	"github.com/bdnk1/abml/expr/cache"
	"github.com/bdnk1/abml/handler"
	"github.com/bdnk1/abml/scope"
	"github.com/bdnk1/abml/value"
	"github.com/bdnk1/abml/vm"
	"github.com/google/uuid"
)

// SignalSink is the channel scheduler's append-to-log operation, as seen
// from an emit action (§4.7). Package scheduler implements this; a
// flow-only (channel-less) execution never attaches one.
type SignalSink interface {
	Emit(channel, signal string)
}

// Tracer is an optional ambient telemetry hook notified around each action
// dispatch and each error the chain records (§7 "user-visible behavior").
// Nil by default, so a channel-less CLI `run` pays nothing for it; package
// telemetry's Provider implements this via its ActionTracer adapter when
// the host wires an OTLP endpoint.
type Tracer interface {
	// StartAction is called before a built-in or domain handler runs; the
	// returned func must be called once the handler returns.
	StartAction(actionType, flow, channel string) func()
	// RecordError is called once per error the §4.6 chain logs, by kind.
	RecordError(kind string)
	// RecordDeadlock is called once if the channel scheduler detects a
	// deadlock (§4.7 "Deadlock detection").
	RecordDeadlock()
}

// Executor runs one Document to completion. It owns the document scope, the
// handler registry, the shared expression cache and function registry, and
// a single reusable VM instance -- safe because the spec's concurrency
// model is single-threaded cooperative (§5): at most one action executes at
// a time, so one VM suffices for the whole execution.
type Executor struct {
	doc       *document.Document
	handlers  *handler.Registry
	cache     *cache.Cache
	funcs     *FuncRegistry
	logger    Logger
	clock     Clock
	vmInst    *vm.VM
	rootScope *scope.Scope
	signals   SignalSink
	execID    string
	tracer    Tracer
}

// New constructs an Executor for doc. handlers must already have the nine
// built-ins registered (package builtin's RegisterAll does this) plus
// whatever domain handlers the host wants to expose (§4.5, §6). Each
// Executor is stamped with a fresh execution ID (google/uuid, as the
// teacher uses for correlating log lines across a run) for the log sink to
// attach to every record it writes.
func New(doc *document.Document, handlers *handler.Registry, exprCache *cache.Cache, funcs *FuncRegistry, logger Logger, clock Clock) *Executor {
	rootScope := scope.New()
	for k, v := range doc.Metadata.Properties {
		rootScope.SetLocal(k, value.FromGo(v))
	}
	return &Executor{
		doc:       doc,
		handlers:  handlers,
		cache:     exprCache,
		funcs:     funcs,
		logger:    logger,
		clock:     clock,
		vmInst:    vm.New(),
		rootScope: rootScope,
		execID:    uuid.NewString(),
	}
}

// ExecutionID returns the ID stamped on this run for log correlation.
func (e *Executor) ExecutionID() string { return e.execID }

// AttachSignalSink wires a channel scheduler's emission log so emit actions
// can reach it. Only needed when the document declares channels.
func (e *Executor) AttachSignalSink(s SignalSink) { e.signals = s }

// SetTracer wires an optional ambient telemetry hook (see Tracer). Passing
// nil disables it, which is also the zero-value default.
func (e *Executor) SetTracer(t Tracer) { e.tracer = t }

// RecordDeadlock lets the channel scheduler report a deadlock to the
// tracer without otherwise exposing the executor's telemetry wiring.
func (e *Executor) RecordDeadlock() {
	if e.tracer != nil {
		e.tracer.RecordDeadlock()
	}
}

// Document returns the document this executor runs.
func (e *Executor) Document() *document.Document { return e.doc }

// RootScope returns the document scope: the root of every flow and channel
// scope's parent chain (§3 VariableScope, §4.7 "scope isolation").
func (e *Executor) RootScope() *scope.Scope { return e.rootScope }

// NewChannelScope returns a fresh direct child of the document scope, one
// per channel instance (§4.7 "scope isolation").
func (e *Executor) NewChannelScope() *scope.Scope { return e.rootScope.CreateChild() }

// Clock exposes the execution's time source to the scheduler's wait_for
// timeout handling (§4.7 "Timeouts").
func (e *Executor) Clock() Clock { return e.clock }

// Run executes entryFlow in the document scope to completion. It is the
// channel-less execution path (§4.6); documents that declare channels are
// driven instead by package scheduler calling ExecuteChannelAction per tick.
func (e *Executor) Run(entryFlow string) error {
	res := e.runFlow(entryFlow, e.rootScope)
	switch res.Kind {
	case handler.Halt:
		return fmt.Errorf("document %q: unhandled error terminated execution of flow %q", e.doc.Metadata.ID, entryFlow)
	case handler.Error:
		return res.Err
	default:
		return nil
	}
}

// ExecuteChannelAction runs exactly one action as part of a channel's tick
// (§4.7 step 1). channelName makes bare signal references and emit/wait_for
// resolve against that channel; there is no enclosing flow, so the error
// chain's middle level is always empty for channel actions.
func (e *Executor) ExecuteChannelAction(action *document.Action, scp *scope.Scope, channelName string) handler.Result {
	fctx := &flowContext{channelName: channelName}
	return e.ExecuteOne(action, scp, fctx)
}

// RaiseChannelAction reruns the error chain for an action the scheduler
// itself determined has failed outside of a normal ExecuteOne dispatch
// (§4.7 "Timeouts": a wait_for whose deadline elapsed). ownLevel is that
// action's own on_error list; the flow level is always empty for channel
// actions, matching ExecuteChannelAction.
func (e *Executor) RaiseChannelAction(kind abmlerr.Kind, message string, scp *scope.Scope, channelName, actionType string, ownLevel []document.Action) handler.Result {
	rerr := abmlerr.New(kind, "", actionType, "%s", message)
	fctx := &flowContext{channelName: channelName}
	return e.handleError(scp, rerr, fctx, ownLevel)
}

// RaiseDocumentError runs only the document-level on_error list for an error
// that has no owning action or flow (§4.7 "deadlock": "the document's
// on_error (if any) receives the error"). Its Result's resume/stop verdict
// is informational only -- a deadlock or termination already ends every
// channel regardless of what the document's on_error decides.
func (e *Executor) RaiseDocumentError(kind abmlerr.Kind, message string) handler.Result {
	rerr := abmlerr.New(kind, "", "", "%s", message)
	fctx := &flowContext{}
	return e.handleError(e.rootScope, rerr, fctx, nil)
}

// runFlow runs the named flow to completion in scp, following any Goto
// result as an intra-document tail transfer: the frame's scope is retained
// and no new frame is pushed (§4.6 "goto").
func (e *Executor) runFlow(name string, scp *scope.Scope) handler.Result {
	for {
		flow, ok := e.doc.Flows[name]
		if !ok {
			return handler.ErrorResult(abmlerr.New(abmlerr.KindGotoTarget, name, "", "flow %q not found", name))
		}
		fctx := &flowContext{flowName: name, flowOnError: flow.OnError}
		res := e.runActionList(flow.Actions, scp, fctx)
		if res.Kind == handler.Goto {
			name = res.FlowTarget
			continue
		}
		return res
	}
}

// runActionList runs actions in order against scp, sharing fctx. It returns
// as soon as any action produces a non-Continue result -- this is how
// StopFlow, Goto, YieldWait, and Halt propagate out of a cond branch or
// for_each/repeat body to whatever is running that list (§4.6 "for_each"
// break-via-StopFlow, "goto" tail transfer).
func (e *Executor) runActionList(actions []document.Action, scp *scope.Scope, fctx *flowContext) handler.Result {
	for i := range actions {
		res := e.ExecuteOne(&actions[i], scp, fctx)
		if res.Kind != handler.Continue {
			return res
		}
	}
	return handler.ContinueResult()
}

// ExecuteOne dispatches action to its handler and, if the result is an
// Error, runs the on_error chain (§4.6 steps 1-5). It is the single place
// action dispatch and error recovery happen; runActionList, runFlow, and
// the channel scheduler all route every action through here.
func (e *Executor) ExecuteOne(action *document.Action, scp *scope.Scope, fctx *flowContext) handler.Result {
	h, ok := e.handlers.Lookup(action.Type)
	if !ok {
		rerr := abmlerr.New(abmlerr.KindUnknownAction, fctx.flowName, action.Type, "no handler registered for action type %q", action.Type)
		return e.handleError(scp, rerr, fctx, action.OnError)
	}
	ctx := &actionCtx{ex: e, scp: scp, fctx: fctx}
	if e.tracer != nil {
		done := e.tracer.StartAction(action.Type, fctx.flowName, fctx.channelName)
		defer done()
	}
	res := h.Execute(action, ctx)
	if res.Kind == handler.Error {
		rerr := res.Err
		if rerr == nil {
			rerr = abmlerr.New(abmlerr.KindExpression, fctx.flowName, action.Type, "handler returned an error result with no error detail")
		}
		if rerr.Flow == "" {
			rerr.Flow = fctx.flowName
		}
		if rerr.Action == "" {
			rerr.Action = action.Type
		}
		return e.handleError(scp, rerr, fctx, action.OnError)
	}
	return res
}

// handleError implements §4.6's error-handling chain and §7's propagation
// policy. It writes _error, clears _error_handled, then tries the action's
// own on_error list, the enclosing flow's, and the document's, in that
// order, skipping any that is absent. A list that itself produces an Error
// result escalates to the next level rather than being retried (§7
// "errors raised inside an on_error list ... escalate one level"). The
// first list that completes without erroring decides the outcome: if it
// ended in Goto/StopFlow/Halt, that result wins outright; otherwise
// _error_handled is consulted, and only the exact boolean true resumes
// execution (§4.6 step 4). Exhausting all three levels without a handled
// outcome -- or a Fatal kind (cancelled) -- halts the
// flow as an unhandled error (§4.6 step 5, §7).
func (e *Executor) handleError(scp *scope.Scope, rerr *abmlerr.Error, fctx *flowContext, ownLevel []document.Action) handler.Result {
	e.logger.Log("error", rerr.Message, map[string]any{
		"kind":   string(rerr.Kind),
		"flow":   rerr.Flow,
		"action": rerr.Action,
	})
	if e.tracer != nil {
		e.tracer.RecordError(string(rerr.Kind))
	}
	if abmlerr.Fatal(rerr.Kind) {
		return handler.HaltResult()
	}

	levels := [][]document.Action{ownLevel, fctx.flowOnError, e.doc.OnError}
	for _, list := range levels {
		if len(list) == 0 {
			continue
		}
		scp.SetLocal("_error", value.FromGo(rerr.ToMap()))
		scp.DeleteLocal("_error_handled")

		res := e.runActionList(list, scp, fctx)
		if res.Kind == handler.Error {
			if res.Err != nil {
				rerr = res.Err
				e.logger.Log("error", rerr.Message, map[string]any{
					"kind":   string(rerr.Kind),
					"flow":   rerr.Flow,
					"action": rerr.Action,
				})
			}
			continue
		}
		if res.Kind == handler.Goto || res.Kind == handler.StopFlow || res.Kind == handler.Halt {
			return res
		}

		handled, ok := scp.Lookup("_error_handled")
		if ok && handled.Kind() == value.KindBool && handled.Bool() {
			return handler.ContinueResult()
		}
		return handler.StopFlowResult()
	}

	e.logger.Log("error", "unhandled error terminated execution", map[string]any{
		"kind":   string(rerr.Kind),
		"flow":   rerr.Flow,
		"action": rerr.Action,
	})
	return handler.HaltResult()
}
