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

package runner

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Option configures a Runner at construction. The harness never reads
// from package-level globals; every collaborator is injected.
type Option func(*Runner)

// WithDisplay sets the status-event sink. Defaults to a no-op Display
// if never set.
func WithDisplay(d Display) Option {
	return func(r *Runner) { r.display = d }
}

// WithInputCollector sets the feedback collector used when a step
// needs user input.
func WithInputCollector(c InputCollector) Option {
	return func(r *Runner) { r.input = c }
}

// WithCompletionChecker sets the collaborator consulted after the main
// loop exits to confirm the workflow is actually done.
func WithCompletionChecker(c CompletionChecker) Option {
	return func(r *Runner) { r.completion = c }
}

// WithLogger injects a structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithTracer sets the OpenTelemetry tracer used for per-step spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) { r.tracer = tracer }
}

// WithPauseInterval overrides the cooperative yield duration used while
// State == paused (default 1s).
func WithPauseInterval(d time.Duration) Option {
	return func(r *Runner) { r.pauseInterval = d }
}

// WithStepTimeout overrides the wall-clock timeout for a single step
// execution (default 300s).
func WithStepTimeout(d time.Duration) Option {
	return func(r *Runner) { r.stepTimeout = d }
}

// WithResume seeds RunnerState from a previously persisted snapshot:
// current_step, user_input and the execution log carry over, so
// next_step picks up where the run left off instead of starting from
// idle. The caller is still responsible for telling its Mode Runner
// which steps snapshot.CurrentStep implies are already done (e.g.
// workflow.StaticRunner.ResumeFrom).
func WithResume(snapshot Snapshot) Option {
	return func(r *Runner) {
		r.state.CurrentStep = snapshot.CurrentStep
		r.state.CurrentProvider = snapshot.CurrentProvider
		for k, v := range snapshot.UserInput {
			r.state.UserInput[k] = v
		}
		r.state.ExecutionLog = append(r.state.ExecutionLog, snapshot.ExecutionLog...)
	}
}
