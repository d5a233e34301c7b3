// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package run implements the `harness run` command: loads config and a
// workflow file, wires the Provider Manager, Runner and its
// collaborators, and drives the workflow to a terminal state.
package run

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/viamin/aidp-sub001/internal/app"
	"github.com/viamin/aidp-sub001/internal/cliio"
	"github.com/viamin/aidp-sub001/internal/commands/version"
	"github.com/viamin/aidp-sub001/internal/config"
	"github.com/viamin/aidp-sub001/internal/runner"
	"github.com/viamin/aidp-sub001/internal/telemetry"
	"github.com/viamin/aidp-sub001/internal/workflow"
	"github.com/viamin/aidp-sub001/pkg/provider"
)

// NewCommand creates the run command.
func NewCommand() *cobra.Command {
	var (
		configPath   string
		statePath    string
		model        string
		mode         string
		resume       bool
		trace        bool
		metricsAddr  string
		stateBackend string
	)

	cmd := &cobra.Command{
		Use:   "run <workflow-file>",
		Short: "Execute a workflow against the configured providers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHarness(cmd, runOptions{
				workflowPath: args[0],
				configPath:   configPath,
				statePath:    statePath,
				model:        model,
				mode:         mode,
				resume:       resume,
				trace:        trace,
				metricsAddr:  metricsAddr,
				stateBackend: stateBackend,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "harness.yaml", "path to the harness config file")
	cmd.Flags().StringVar(&statePath, "state", "", "path to the state checkpoint file (default: .harness/<run-id>.json, or .db with the sqlite backend)")
	cmd.Flags().StringVar(&model, "model", "", "model ID to request from the active provider")
	cmd.Flags().StringVar(&mode, "mode", string(runner.ModeExecute), "harness mode: analyze or execute")
	cmd.Flags().BoolVar(&resume, "resume", false, "resume from --state instead of starting a fresh run")
	cmd.Flags().BoolVar(&trace, "trace", false, "emit per-step OpenTelemetry spans as JSON to stderr")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090) for the run's duration")
	cmd.Flags().StringVar(&stateBackend, "state-backend", "file", "state checkpoint backend: file or sqlite")

	return cmd
}

// maxStateSavesPerSecond bounds how often the Runner may checkpoint to
// disk, so a workflow that transitions states in a tight loop cannot
// thrash the filesystem. Saves queue rather than drop, so every
// transition still lands eventually.
const maxStateSavesPerSecond = 10

// sqliteStateRunKey is the fixed row key used when --state-backend=sqlite,
// since each database file is scoped to one run, mirroring the file
// backend's one-file-per-run contract.
const sqliteStateRunKey = "run"

type runOptions struct {
	workflowPath string
	configPath   string
	statePath    string
	model        string
	mode         string
	resume       bool
	trace        bool
	metricsAddr  string
	stateBackend string
}

func runHarness(cmd *cobra.Command, opts runOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	doc, err := workflow.LoadDocument(opts.workflowPath)
	if err != nil {
		return fmt.Errorf("loading workflow: %w", err)
	}

	if opts.resume && opts.statePath == "" {
		return fmt.Errorf("--resume requires --state to name the snapshot to resume from")
	}

	metricsReg := prometheus.NewRegistry()
	metrics := provider.NewMetrics(metricsReg)

	mgr, err := app.BuildManager(cfg, provider.ManagerConfig{
		CircuitBreakerThreshold: cfg.CircuitBreaker.FailureThreshold,
		CircuitBreakerTimeout:   cfg.CircuitBreaker.Timeout,
	}, metrics)
	if err != nil {
		return fmt.Errorf("building provider manager: %w", err)
	}

	runID := uuid.New().String()
	logger := slog.Default().With("run_id", runID, "workflow", doc.Name)

	if opts.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))
		metricsSrv := &http.Server{Addr: opts.metricsAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("failed to shut down metrics server", "error", err)
			}
		}()
	}

	var traceWriter io.Writer
	if opts.trace {
		traceWriter = cmd.ErrOrStderr()
	}
	tp, err := telemetry.NewTracerProvider("harness", version.BuildVersion(), traceWriter)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		if err := telemetry.Shutdown(context.Background(), tp); err != nil {
			logger.Warn("failed to flush telemetry", "error", err)
		}
	}()

	statePath := opts.statePath
	if statePath == "" {
		ext := "json"
		if opts.stateBackend == "sqlite" {
			ext = "db"
		}
		statePath = fmt.Sprintf(".harness/%s.%s", runID, ext)
	}

	saveRateLimit := runner.WithSaveRateLimit(rate.Limit(maxStateSavesPerSecond), maxStateSavesPerSecond)
	var stateManager *runner.StateManager
	switch opts.stateBackend {
	case "sqlite":
		// statePath identifies the run the same way it does for the file
		// backend: one database per run, so a fixed row key is all that's
		// needed to find its snapshot again on --resume.
		stateManager, err = runner.NewSQLiteStateManager(statePath, sqliteStateRunKey, saveRateLimit)
		if err != nil {
			return fmt.Errorf("opening sqlite state backend: %w", err)
		}
		defer stateManager.Close()
	case "file", "":
		stateManager = runner.NewStateManager(statePath, saveRateLimit)
	default:
		return fmt.Errorf("unknown --state-backend %q: must be file or sqlite", opts.stateBackend)
	}

	staticRunner := workflow.NewStaticRunner(doc.Steps, mgr, opts.model)

	runnerOpts := []runner.Option{
		runner.WithDisplay(cliio.NewTermDisplay(cmd.OutOrStdout())),
		runner.WithInputCollector(cliio.NewSurveyCollector()),
		runner.WithLogger(logger),
		runner.WithTracer(telemetry.Tracer(tp, "github.com/viamin/aidp-sub001/internal/runner")),
	}

	if opts.resume {
		snapshot, ok, err := stateManager.LoadState()
		if err != nil {
			return fmt.Errorf("loading snapshot to resume from: %w", err)
		}
		if ok {
			staticRunner.ResumeFrom(snapshot.CurrentStep)
			runnerOpts = append(runnerOpts, runner.WithResume(snapshot))
			logger.Info("resuming run", "from_step", snapshot.CurrentStep)
		}
	}

	r := runner.New(staticRunner, mgr, stateManager, cfg.MaxRetries, runner.Mode(opts.mode), runnerOpts...)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if _, err := mgr.Start(time.Now()); err != nil {
		return fmt.Errorf("selecting initial provider: %w", err)
	}

	result, err := r.Run(ctx)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	cmd.Printf("run %s finished in state %s\n", runID, result.State)
	if result.State == runner.StateError {
		return fmt.Errorf("workflow ended in error state; see %s", statePath)
	}
	return nil
}
