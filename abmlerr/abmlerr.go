// Package abmlerr classifies runtime errors by kind, per §7 of the runtime
// design. Errors are distinguished by Kind rather than by Go type name so the
// executor's error chain (§4.6) can dispatch on a small closed set of
// categories regardless of which layer raised them.
//
// Grounded on the teacher's runtime/flow_error.go (FlowErrorType/FlowErrorCode
// pairing and the single FlowError carrier struct), adapted from the
// teacher's transient/permanent/timeout retry classification to the spec's
// eight error kinds, which classify recoverability through the on_error
// chain rather than through retry semantics.
package abmlerr

import (
	"fmt"

	"github.com/Jeffail/gabs/v2"
)

// Kind is one of the eight error categories the spec defines in §7.
type Kind string

const (
	KindExpression      Kind = "expression"
	KindMissingVariable Kind = "missing_variable"
	KindUnknownAction   Kind = "unknown_action"
	KindGotoTarget      Kind = "goto_target"
	KindSchedulerDeadlock Kind = "scheduler_deadlock"
	KindTimeout         Kind = "timeout"
	KindCancelled       Kind = "cancelled"
	KindCompile         Kind = "compile"
)

// Error is the canonical error carrier propagated through the document
// executor's error chain. Flow and Action identify where it was raised;
// Stack is the active call-stack frame names at the time of failure.
type Error struct {
	Kind    Kind
	Message string
	Flow    string
	Action  string
	Stack   []string
	Cause   error
}

func (e *Error) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("[%s] %s (flow: %s, action: %s)", e.Kind, e.Message, e.Flow, e.Action)
	}
	return fmt.Sprintf("[%s] %s (flow: %s)", e.Kind, e.Message, e.Flow)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given kind.
func New(kind Kind, flow, action, format string, args ...any) *Error {
	return &Error{Kind: kind, Flow: flow, Action: action, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and location to an underlying cause.
func Wrap(kind Kind, flow, action string, cause error) *Error {
	return &Error{Kind: kind, Flow: flow, Action: action, Message: cause.Error(), Cause: cause}
}

// Payload builds the §4.6 step 1 diagnostic document -- { message, flow,
// action, kind, stack? } -- as a navigable gabs.Container rather than a
// bare map, so a handler or the CLI's `trace`/`validate` commands can
// re-serialize or further query it (e.g. `payload.Path("stack.0")`)
// without knowing the concrete Go shape underneath.
func (e *Error) Payload() *gabs.Container {
	c := gabs.New()
	c.Set(e.Message, "message")
	c.Set(e.Flow, "flow")
	c.Set(e.Action, "action")
	c.Set(string(e.Kind), "kind")
	if len(e.Stack) > 0 {
		c.Set(e.Stack, "stack")
	}
	return c
}

// ToMap renders Payload as a plain map[string]any, for code (like the
// executor's `_error` scope binding) that needs value.FromGo's generic
// Go-value walk rather than a gabs.Container.
func (e *Error) ToMap() map[string]any {
	m, ok := e.Payload().Data().(map[string]any)
	if !ok {
		return map[string]any{"message": e.Message, "flow": e.Flow, "action": e.Action, "kind": string(e.Kind)}
	}
	return m
}

// Fatal reports whether kind short-circuits the error chain entirely instead
// of being recoverable by an on_error list (§7 propagation policy: "cancelled
// ... Not recovered; document terminates"). scheduler_deadlock is NOT fatal
// in this sense -- §7 says it is "surfaced via document error chain", and §8's
// deadlock scenario expects the document's on_error to receive it; it is
// fatal only to the channel set, which the scheduler enforces independently
// of whatever the document's on_error chain decides.
func Fatal(kind Kind) bool {
	return kind == KindCancelled
}
