package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/bdnk1/abml/builtin"
	"github.com/bdnk1/abml/config"
	"github.com/bdnk1/abml/document"
	"github.com/bdnk1/abml/exec"
	"github.com/bdnk1/abml/expr/cache"
	"github.com/bdnk1/abml/handler"
	"github.com/bdnk1/abml/scheduler"
	"github.com/bdnk1/abml/telemetry"
	"github.com/spf13/cobra"
)

var (
	entryFlow    string
	otlpEndpoint string
)

var runCmd = &cobra.Command{
	Use:   "run <document.yaml>",
	Short: "Execute an ABML document to completion",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&entryFlow, "entry", "", "entry flow name (flow-only documents; defaults to \"main\" or the only flow)")
	runCmd.Flags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC endpoint; enables tracing/metrics/log export when set")
}

func runRun(_ *cobra.Command, args []string) error {
	doc, err := document.Load(args[0])
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	cfg := &config.RuntimeConfig{OTLPEndpoint: otlpEndpoint}
	if err := config.Load(cfg); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	logger := exec.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	var tracer exec.Tracer
	if cfg.OTLPEndpoint != "" {
		ctx := context.Background()
		provider, err := telemetry.Setup(ctx, doc.Metadata.ID, cfg.OTLPEndpoint)
		if err != nil {
			return fmt.Errorf("run: telemetry: %w", err)
		}
		defer provider.Shutdown(ctx)
		logger = exec.NewSlogLogger(provider.Logger)
		tracer = provider.ActionTracer()
	}

	handlers := handler.NewRegistry()
	builtin.RegisterAll(handlers)
	registerExampleHandlers(handlers)

	exprCache := cache.New(cfg.ExpressionCacheSize)
	funcs := exec.NewFuncRegistry()
	ex := exec.New(doc, handlers, exprCache, funcs, logger, exec.RealClock{})
	if tracer != nil {
		ex.SetTracer(tracer)
	}

	if len(doc.Channels) > 0 {
		return runChannels(doc, ex)
	}
	return runFlowOnly(doc, ex)
}

func runFlowOnly(doc *document.Document, ex *exec.Executor) error {
	flow := entryFlow
	if flow == "" {
		if _, ok := doc.Flows["main"]; ok {
			flow = "main"
		} else if len(doc.Flows) == 1 {
			for name := range doc.Flows {
				flow = name
			}
		} else {
			names := make([]string, 0, len(doc.Flows))
			for name := range doc.Flows {
				names = append(names, name)
			}
			sort.Strings(names)
			return fmt.Errorf("run: document declares multiple flows (%v); pass --entry", names)
		}
	}
	return ex.Run(flow)
}

func runChannels(doc *document.Document, ex *exec.Executor) error {
	cancel := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		close(cancel)
	}()

	sched := scheduler.New(doc, ex, cancel)
	if err := sched.Run(); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	for _, ch := range sched.Channels() {
		if ch.StatusNow() == scheduler.Errored && ch.Err != nil {
			return fmt.Errorf("run: channel %q ended in error: %w", ch.Name, ch.Err)
		}
	}
	return nil
}
