package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pubharness/internal/diagnostics"
	"pubharness/internal/metrics"
	"pubharness/internal/tracing"
	"pubharness/internal/version"
	"pubharness/pkg/clients"
	"pubharness/pkg/harness"
	"pubharness/pkg/healthcheck"
	"pubharness/pkg/messaging"
	"pubharness/pkg/publisher"
	"pubharness/pkg/scenario"

	"k8s.io/klog/v2"
)

const (
	serviceName  = "pubharness"
	flushTimeout = 5 * time.Second
)

func main() {
	//https://github.com/kubernetes/community/blob/master/contributors/devel/sig-instrumentation/logging.md
	klog.InitFlags(nil)
	defer klog.Flush()

	cfgBuilder, err := harness.NewConfigBuilder()
	if err != nil {
		klog.ErrorS(err, "Invalid environment")
		exit(1)
	}
	cfgBuilder.AttachCmdFlags(flag.StringVar, flag.BoolVar, flag.IntVar, flag.DurationVar)
	flag.Parse()
	cfg, err := cfgBuilder.Build()
	if err != nil {
		klog.ErrorS(err, "Invalid configuration")
		exit(1)
	}

	klog.InfoS("Harness is starting", version.KeysAndValues()...)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		klog.ErrorS(err, "Harness run failed")
		cancel()
		exit(1)
	}
}

func run(mainCtx context.Context, cfg harness.Config) error {
	s, err := scenario.Load(cfg.ScenarioPath)
	if err != nil {
		return err
	}
	duration := s.Duration
	if cfg.Duration > 0 {
		duration = cfg.Duration
	}

	var metricsHandler http.Handler
	if cfg.EnableMetrics {
		if metricsHandler, err = metrics.SetupPrometheus(serviceName); err != nil {
			return err
		}
	}
	if cfg.TracingEndpoint != "" {
		shutdown, err := tracing.Setup(mainCtx, serviceName, cfg.TracingEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			defer cancel()
			shutdown(ctx)
		}()
	}

	manager := clients.NewManager(RegisterClientFactories()...)
	defer func() {
		if err := manager.Close(); err != nil {
			klog.ErrorS(err, "Error closing clients")
		}
	}()
	for _, spec := range s.Clients {
		if err := manager.Init(spec); err != nil {
			return err
		}
	}

	configs, err := s.PublisherConfigs(cfg.Launcher, func(name string) (messaging.Publisher, bool) {
		return manager.Get(name)
	})
	if err != nil {
		return err
	}
	handles := make([]publisher.Handle, 0, len(configs))
	for _, c := range configs {
		h, err := publisher.New(c)
		if err != nil {
			return err
		}
		handles = append(handles, h)
	}

	supervisor := harness.NewSupervisor(handles, harness.WithStopTimeout(cfg.StopTimeout))

	diagCtx, stopDiagnostics := context.WithCancel(mainCtx)
	defer stopDiagnostics()
	if cfg.EnableDiagnostics {
		options := []healthcheck.Option{healthcheck.WithChecker("clients", manager)}
		for id, checker := range supervisor.HealthCheckers() {
			options = append(options, healthcheck.WithChecker("publisher/"+id, checker))
		}
		router := diagnostics.NewRouter(metricsHandler, options...)
		go func() {
			if err := diagnostics.Run(diagCtx, cfg.DiagnosticsPort, router); err != nil {
				klog.ErrorS(err, "Diagnostics server failed")
			}
		}()
	}

	report, err := supervisor.Run(mainCtx, duration)
	printReport(report)
	return err
}

func printReport(r harness.Report) {
	fmt.Printf("Published %d messages\n", r.Total())
	for _, id := range r.PublisherIDs() {
		line := fmt.Sprintf("  %s: %d", id, len(r.Published[id]))
		if err, ok := r.Failures[id]; ok {
			line += fmt.Sprintf(" (failed: %v)", err)
		}
		fmt.Println(line)
	}
	if r.Interrupted {
		fmt.Println("Run was interrupted")
	}
}

func exit(code int) {
	klog.Flush()
	os.Exit(code)
}
