// Package config defines the runtime's own configuration: scheduler tick
// budget, default wait_for timeout, trace verbosity, and optional OTLP
// endpoint. Grounded directly on the teacher's runtime/config.go
// ApplyDefaults/validateConfig pairing (creasty/defaults struct tags,
// go-playground/validator/v10 struct validation), and on
// runtime/execution.go's resolveEnvVar regex for "${VAR:default}"
// environment references, which Load expands in DefaultWaitTimeout and
// OTLPEndpoint only.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// RuntimeConfig holds the engine's tunables. Zero value is invalid; call
// Load to get one with defaults applied and validated.
type RuntimeConfig struct {
	// MaxTicks is a tick budget for the scheduler. Load defaults and
	// validates it, but package scheduler does not read it: Scheduler.Run
	// has no tick ceiling.
	MaxTicks int `yaml:"max_ticks" default:"100000" validate:"gt=0"`

	// DefaultWaitTimeout is a Go duration string for wait_for actions that
	// give no timeout of their own. Load defaults and validates it, but the
	// scheduler does not read it: a wait_for without a timeout never times
	// out.
	DefaultWaitTimeout string `yaml:"default_wait_timeout" default:"30s" validate:"required"`

	// TraceVerbosity is one of "off", "summary" or "full". Load defaults and
	// validates it; neither vm.ExecuteTrace nor the trace command reads it.
	TraceVerbosity string `yaml:"trace_verbosity" default:"off" validate:"oneof=off summary full"`

	// ExpressionCacheSize bounds the compiled-expression cache; 0 means
	// unbounded (§4.2).
	ExpressionCacheSize int `yaml:"expression_cache_size" default:"0" validate:"gte=0"`

	// OTLPEndpoint enables telemetry export when non-empty (see
	// abml/telemetry).
	OTLPEndpoint string `yaml:"otlp_endpoint" default:""`
}

// Load applies defaults to cfg, then validates it. cfg must be a pointer to
// a RuntimeConfig (or an embedding struct) carrying `default`/`validate`
// struct tags, matching the teacher's ApplyDefaults + validateConfig
// two-step.
func Load(cfg *RuntimeConfig) error {
	if err := defaults.Set(cfg); err != nil {
		return fmt.Errorf("config: applying defaults: %w", err)
	}
	cfg.DefaultWaitTimeout = resolveEnvVar(cfg.DefaultWaitTimeout)
	cfg.OTLPEndpoint = resolveEnvVar(cfg.OTLPEndpoint)
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}
	return nil
}

// envVarPattern matches "${VAR}" and "${VAR:default}" references in
// otherwise-literal configuration strings.
var envVarPattern = regexp.MustCompile(`^\$\{([A-Z_][A-Z0-9_]*)(:[^}]*)?\}$`)

// resolveEnvVar expands a single "${VAR:default}" reference, or returns s
// unchanged if it doesn't match that shape.
func resolveEnvVar(s string) string {
	matches := envVarPattern.FindStringSubmatch(s)
	if matches == nil {
		return s
	}
	varName, defaultPart := matches[1], matches[2]
	if v, ok := os.LookupEnv(varName); ok {
		return v
	}
	return strings.TrimPrefix(defaultPart, ":")
}
