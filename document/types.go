// Package document defines the typed representation of an ABML document:
// metadata, flows, channels, and the structured/domain actions inside them
// (§3, §6). Parsing itself is a gopkg.in/yaml.v3 concern, exactly as the
// teacher's runtime/engine/yaml/loader.go unmarshals into tagged structs;
// this package owns the shape those structs take, generalized from the
// teacher's Flow/Step/Return (runtime/components.go) to the spec's
// flow-or-channel document model with structured control actions.
package document

// SupportedVersion is the only document schema version this runtime
// understands (§6).
const SupportedVersion = "2.0"

// Document is the top-level parsed unit (§3, §6). A document is identified
// by Metadata.ID; it must declare Flows, Channels, or both.
type Document struct {
	Version  string               `yaml:"version" validate:"required"`
	Metadata Metadata             `yaml:"metadata" validate:"required"`
	OnError  []Action             `yaml:"on_error,omitempty"`
	Flows    map[string]*Flow     `yaml:"flows,omitempty"`
	Channels map[string]*Channel  `yaml:"channels,omitempty"`
}

// Metadata carries the document's identity and free-form authoring
// properties.
type Metadata struct {
	ID         string         `yaml:"id" validate:"required"`
	Name       string         `yaml:"name,omitempty"`
	Properties map[string]any `yaml:"properties,omitempty"`
}

// Flow is an ordered list of actions plus an optional flow-level error
// handler (§3).
type Flow struct {
	Actions []Action `yaml:"actions"`
	OnError []Action `yaml:"on_error,omitempty"`
}

// Channel is an ordered list of actions that runs as a cooperatively
// scheduled parallel track (§3, §4.7).
type Channel struct {
	Actions []Action `yaml:"actions"`
}

// CondBranch is one "when/then" arm of a cond action.
type CondBranch struct {
	When string   `yaml:"when"`
	Then []Action `yaml:"then"`
}

// SignalRef names a signal, optionally qualified by channel (§6 "Signal
// naming"): a bare Signal refers to the current channel; a non-empty
// Channel makes it a cross-channel reference (@channel.signal).
type SignalRef struct {
	Channel string `yaml:"channel,omitempty"`
	Signal  string `yaml:"signal"`
}

// WaitSpec is a wait_for action's wait-set (§3 WaitSet, §4.7): either every
// named signal must be present in the emission log (all_of) or any one
// suffices (any_of), optionally bounded by Timeout (a Go duration string,
// e.g. "5s").
type WaitSpec struct {
	Mode    string      `yaml:"mode"`
	Signals []SignalRef `yaml:"signals"`
	Timeout string      `yaml:"timeout,omitempty"`
}

// Action is one step of a flow or channel (§3). Type selects which of the
// built-in structured actions (set/call/goto/cond/for_each/repeat/log/
// emit/wait_for) or which domain handler this action dispatches to; every
// other field is populated only for the action kinds that use it. String
// fields that may carry "${...}" interpolation (Value, Collection, Count,
// Message, CondBranch.When) are kept as raw, uninterpreted source text --
// interpolation happens per §6 at evaluation time, not at parse time.
type Action struct {
	Type string `yaml:"type"`

	// set
	Variable string `yaml:"variable,omitempty"`
	Value    string `yaml:"value,omitempty"`
	Mode     string `yaml:"mode,omitempty"`

	// call, goto
	Flow string `yaml:"flow,omitempty"`

	// cond
	Branches []CondBranch `yaml:"branches,omitempty"`
	Else     []Action     `yaml:"else,omitempty"`

	// for_each
	Collection string   `yaml:"collection,omitempty"`
	Do         []Action `yaml:"do,omitempty"`

	// repeat (reuses Do and Count)
	Count string `yaml:"count,omitempty"`

	// log
	Message string `yaml:"message,omitempty"`
	Level   string `yaml:"level,omitempty"`

	// emit
	Signal string `yaml:"signal,omitempty"`

	// wait_for
	Wait *WaitSpec `yaml:"wait,omitempty"`

	// domain action payload, opaque to the executor (§4.5).
	Args map[string]any `yaml:"args,omitempty"`

	OnError []Action `yaml:"on_error,omitempty"`
}

// Built-in action type names (§4.6, §6). Anything else is dispatched to a
// registered domain handler.
const (
	ActionSet     = "set"
	ActionCall    = "call"
	ActionGoto    = "goto"
	ActionCond    = "cond"
	ActionForEach = "for_each"
	ActionRepeat  = "repeat"
	ActionLog     = "log"
	ActionEmit    = "emit"
	ActionWaitFor = "wait_for"
)

// IsBuiltin reports whether typ names one of the nine reserved action
// kinds the executor itself implements.
func IsBuiltin(typ string) bool {
	switch typ {
	case ActionSet, ActionCall, ActionGoto, ActionCond, ActionForEach, ActionRepeat, ActionLog, ActionEmit, ActionWaitFor:
		return true
	default:
		return false
	}
}
