// Package telemetry wires the runtime's optional OpenTelemetry export: a
// span per action dispatch (through ActionTracer; StartFlowSpan is
// available but nothing in the runtime calls it), a counter
// for errors-by-kind and deadlocks, and the slog-to-OTLP log bridge. It is
// off by default and only activates when config.RuntimeConfig.OTLPEndpoint
// is non-empty (SPEC_FULL's DOMAIN STACK section), mirroring the teacher's
// go.mod carrying the full go.opentelemetry.io stack.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bdnk1/abml/exec"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Provider bundles the SDK providers and instruments telemetry.Setup
// constructs, plus an *slog.Logger whose records go only to the OTLP log
// bridge.
type Provider struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider
	Logger         *slog.Logger

	tracer       trace.Tracer
	errorsByKind metric.Int64Counter
	deadlocks    metric.Int64Counter
}

// Setup builds exporters and providers pointed at endpoint and registers
// the tracer and meter providers as the global OTel providers (the logger
// provider is not registered globally), matching the teacher's go.mod-carried
// OTLP gRPC exporter stack. Callers must defer Provider.Shutdown.
func Setup(ctx context.Context, serviceName, endpoint string) (*Provider, error) {
	traceExp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("telemetry: trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExp))
	otel.SetTracerProvider(tp)

	metricExp, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpoint(endpoint), otlpmetricgrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("telemetry: metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)))
	otel.SetMeterProvider(mp)

	logExp, err := otlploggrpc.New(ctx, otlploggrpc.WithEndpoint(endpoint), otlploggrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("telemetry: log exporter: %w", err)
	}
	lp := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)))

	meter := mp.Meter(serviceName)
	errorsByKind, err := meter.Int64Counter("abml.errors_by_kind", metric.WithDescription("runtime errors raised, by kind"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: errors_by_kind counter: %w", err)
	}
	deadlocks, err := meter.Int64Counter("abml.scheduler_deadlocks", metric.WithDescription("scheduler deadlocks detected"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: deadlocks counter: %w", err)
	}

	bridge := otelslog.NewHandler(serviceName, otelslog.WithLoggerProvider(lp))
	logger := slog.New(bridge)

	return &Provider{
		TracerProvider: tp,
		MeterProvider:  mp,
		LoggerProvider: lp,
		Logger:         logger,
		tracer:         tp.Tracer(serviceName),
		errorsByKind:   errorsByKind,
		deadlocks:      deadlocks,
	}, nil
}

// StartFlowSpan opens a span covering one run_flow call (§4.6), tagged with
// the flow's name.
func (p *Provider) StartFlowSpan(ctx context.Context, flowName string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "abml.run_flow", trace.WithAttributes(
		attrString("abml.flow", flowName),
	))
}

// StartActionSpan opens a span covering one action dispatch, tagged with
// its type, owning flow, and owning channel (empty outside a channel).
func (p *Provider) StartActionSpan(ctx context.Context, actionType, flow, channel string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "abml.action", trace.WithAttributes(
		attrString("abml.action_type", actionType),
		attrString("abml.flow", flow),
		attrString("abml.channel", channel),
	))
}

// RecordError increments the errors-by-kind counter (§7 "User-visible
// behavior").
func (p *Provider) RecordError(ctx context.Context, kind string) {
	p.errorsByKind.Add(ctx, 1, metric.WithAttributes(attrString("abml.kind", kind)))
}

// RecordDeadlock increments the deadlock counter (§4.7 "Deadlock
// detection").
func (p *Provider) RecordDeadlock(ctx context.Context) {
	p.deadlocks.Add(ctx, 1)
}

func attrString(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// ActionTracer adapts Provider to exec.Tracer, letting abml/exec notify
// OTel spans and counters around every action dispatch without that
// package importing anything OTel-shaped itself. Action spans use a
// background context rather than threading a context.Context through the
// single-threaded cooperative executor (§5): the spec's concurrency model
// has no per-action request context to inherit from.
func (p *Provider) ActionTracer() exec.Tracer { return actionTracer{p} }

type actionTracer struct{ p *Provider }

func (a actionTracer) StartAction(actionType, flow, channel string) func() {
	_, span := a.p.StartActionSpan(context.Background(), actionType, flow, channel)
	return span.End
}

func (a actionTracer) RecordError(kind string) {
	a.p.RecordError(context.Background(), kind)
}

func (a actionTracer) RecordDeadlock() {
	a.p.RecordDeadlock(context.Background())
}

// Shutdown flushes and closes every provider. Safe to call even if Setup
// partially failed for providers that were constructed.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if p.LoggerProvider != nil {
		if err := p.LoggerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("telemetry: shutdown errors: %v", errs)
	}
	return nil
}
