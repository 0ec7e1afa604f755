// Package builtin implements the nine reserved action handlers the
// executor dispatches to directly (§4.6, §6): set, call, goto, cond,
// for_each, repeat, log, emit, wait_for. Each is a handler.Handler exactly
// like a domain action's handler would be -- the executor does not treat
// them specially beyond registering them first (§9 "no source-language-
// specific behavior leaked into the core").
//
// Grounded on the teacher's plugin handlers (plugins/http, plugins/
// postgres implementing runtime/interfaces.go's TaskHandler), generalized
// from the teacher's fixed task-kind set to the spec's closed built-in
// action list.
package builtin

import (
	"errors"

	"github.com/bdnk1/abml/abmlerr"
	"github.com/bdnk1/abml/handler"
)

// RegisterAll registers the nine built-in handlers into reg. Callers
// register domain handlers either before or after this call; built-in
// names are reserved and a host must not attempt to override them (§6).
func RegisterAll(reg *handler.Registry) {
	reg.Register(setHandler{})
	reg.Register(callHandler{})
	reg.Register(gotoHandler{})
	reg.Register(condHandler{})
	reg.Register(forEachHandler{})
	reg.Register(repeatHandler{})
	reg.Register(logHandler{})
	reg.Register(emitHandler{})
	reg.Register(waitForHandler{})
}

// wrapErr recovers an *abmlerr.Error out of err if it already carries one
// (e.g. from ctx.Eval), otherwise classifies it as a generic expression
// error at the given flow/action.
func wrapErr(err error, flow, action string) *abmlerr.Error {
	var ae *abmlerr.Error
	if errors.As(err, &ae) {
		return ae
	}
	return abmlerr.New(abmlerr.KindExpression, flow, action, "%s", err.Error())
}

func errResult(err error, flow, action string) handler.Result {
	return handler.ErrorResult(wrapErr(err, flow, action))
}

func structuralErr(flow, action, format string, args ...any) handler.Result {
	return handler.ErrorResult(abmlerr.New(abmlerr.KindExpression, flow, action, format, args...))
}
