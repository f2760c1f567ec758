// Package main implements the sensorweave entry point: it loads a
// pipeline definition, assembles the reactive graph, and drives it until
// a stop is requested or a component faults.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/c360/sensorweave/config"
	"github.com/c360/sensorweave/metric"
	"github.com/c360/sensorweave/pipeline"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "sensorweave"
)

var (
	flagLogLevel        string
	flagLogFormat       string
	flagConfig          string
	flagMetricsAddr     string
	flagShutdownTimeout time.Duration
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := newRootCmd().Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Deterministic sensor-to-inference pipeline runner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "json", "log format: json, text")

	root.AddCommand(newRunCmd(), newValidateCmd(), newVersionCmd())
	return root
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a pipeline until stopped or faulted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&flagConfig, "config", "c", "pipeline.yaml", "pipeline definition file")
	cmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address (empty = disabled)")
	cmd.Flags().DurationVar(&flagShutdownTimeout, "shutdown-timeout", 0, "component stop deadline (0 = definition value or default)")
	return cmd
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a pipeline definition and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			def, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pipeline %q is valid: %d components, %d connections\n",
				def.Name, len(def.Components), len(def.Connections))
			return nil
		},
	}
	cmd.Flags().StringVarP(&flagConfig, "config", "c", "pipeline.yaml", "pipeline definition file")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", appName, Version, runtime.Version())
		},
	}
}

func runPipeline(parent context.Context) error {
	logger := setupLogger(flagLogLevel, flagLogFormat)
	slog.SetDefault(logger)

	def, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagShutdownTimeout > 0 {
		def.ShutdownTimeout = flagShutdownTimeout
	}

	metrics := metric.NewRegistry()
	var metricsServer *http.Server
	if flagMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(
			metrics.PrometheusRegistry(), promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:              flagMetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("Metrics server listening", "addr", flagMetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	p, err := pipeline.New(def, pipeline.Options{
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := p.Run(ctx)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	return runErr
}
