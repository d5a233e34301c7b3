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
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/viamin/aidp-sub001/pkg/condition"
	"github.com/viamin/aidp-sub001/pkg/provider"
)

const (
	defaultPauseInterval = time.Second
	defaultStepTimeout   = 300 * time.Second
)

// Result is what Run returns once the loop reaches a terminal state.
type Result struct {
	State   State
	Summary string
}

// Runner is the supervisor loop and state machine driving a workflow
// to completion. It owns RunnerState exclusively; every other
// subsystem (Provider Manager, Condition Detector, Error Handler,
// State Manager) is an injected collaborator.
type Runner struct {
	mu    sync.Mutex
	state *RunnerState

	mode         ModeRunner
	providers    *provider.Manager
	errorHandler *ErrorHandler
	stateManager *StateManager
	display      Display
	input        InputCollector
	completion   CompletionChecker
	logger       *slog.Logger
	tracer       trace.Tracer

	pauseInterval time.Duration
	stepTimeout   time.Duration
	debug         bool

	backgroundCtx context.Context
	cancelBG      context.CancelFunc
	background    sync.WaitGroup

	stopRequested bool
}

// New constructs a Runner bound to mode and providers. The Runner
// starts in StateIdle; call Run to drive it.
func New(mode ModeRunner, providers *provider.Manager, stateManager *StateManager, maxRetries int, runnerMode Mode, opts ...Option) *Runner {
	r := &Runner{
		state:         NewRunnerState(runnerMode),
		mode:          mode,
		providers:     providers,
		stateManager:  stateManager,
		display:       noopDisplay{},
		completion:    alwaysCompleteChecker{},
		logger:        slog.Default(),
		pauseInterval: defaultPauseInterval,
		stepTimeout:   defaultStepTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.errorHandler = NewErrorHandler(providers, maxRetries, r.logger)
	r.backgroundCtx, r.cancelBG = context.WithCancel(context.Background())
	r.errorHandler.onRateLimitWait = r.startRateLimitCountdown
	return r
}

// Stop transitions the runner to stopped. Observed at the next loop
// iteration boundary; does not interrupt an in-flight step.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopRequested = true
}

// Pause transitions running -> paused.
func (r *Runner) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.State == StateRunning {
		r.state.State = StatePaused
	}
}

// Resume transitions paused -> running.
func (r *Runner) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.State == StatePaused {
		r.state.State = StateRunning
	}
}

// Run executes the main loop until a terminal state is reached, then
// performs the cleanup contract and returns.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	r.display.StartDisplayLoop()
	defer r.cleanup()

	r.mu.Lock()
	r.state.State = StateRunning
	r.mu.Unlock()

	for {
		if err := r.persist(); err != nil {
			r.logger.Error("failed to checkpoint state", "error", err)
		}

		r.mu.Lock()
		stopRequested := r.stopRequested
		if stopRequested {
			r.state.State = StateStopped
		}
		done := r.state.ShouldStop()
		state := r.state.State
		r.mu.Unlock()

		if done {
			return r.finalize(state)
		}

		if r.pausedWait(ctx, state) {
			continue
		}

		stepName, ok := r.mode.NextStep()
		if !ok {
			break
		}

		if err := r.runOneStep(ctx, stepName); err != nil {
			r.transitionToError(stepName, err)
			return r.finalize(StateError)
		}

		if ctx.Err() != nil {
			r.mu.Lock()
			r.state.State = StateStopped
			r.mu.Unlock()
			return r.finalize(StateStopped)
		}
	}

	return r.checkCompletion(ctx)
}

// pausedWait handles step 3 of the main loop contract: cooperative
// yield while paused, zero-sleep poll while waiting on an event.
func (r *Runner) pausedWait(ctx context.Context, state State) bool {
	switch state {
	case StatePaused:
		select {
		case <-time.After(r.pauseInterval):
		case <-ctx.Done():
		}
		return true
	case StateWaitingForUser, StateWaitingForRateLimit:
		return true
	default:
		return false
	}
}

func (r *Runner) runOneStep(ctx context.Context, stepName string) error {
	r.mu.Lock()
	r.state.CurrentStep = stepName
	r.state.CurrentProvider = r.providers.CurrentProvider()
	userInput := cloneUserInput(r.state.UserInput)
	r.mu.Unlock()

	r.mode.MarkStepInProgress(stepName)
	r.display.ShowStepExecution(stepName, PhaseStarting, "")

	stepCtx, cancel := context.WithTimeout(ctx, r.stepTimeout)
	defer cancel()

	if r.tracer != nil {
		var span trace.Span
		stepCtx, span = r.tracer.Start(stepCtx, fmt.Sprintf("step.%s", stepName))
		defer span.End()
	}

	result, err := r.errorHandler.ExecuteWithRetry(stepCtx, stepName, func(ctx context.Context) (StepResult, error) {
		return r.mode.RunStep(ctx, stepName, userInput)
	})
	if err != nil {
		r.display.ShowStepExecution(stepName, PhaseFailed, err.Error())
		r.appendLog("error", fmt.Sprintf("step %s failed: %v", stepName, err))
		return err
	}

	if result.NeedsFeedback {
		return r.collectFeedback(ctx, stepName, result)
	}

	r.display.ShowStepExecution(stepName, PhaseCompleted, result.Output)
	if result.Completed {
		r.mode.MarkStepCompleted(stepName)
		r.appendLog("info", fmt.Sprintf("step %s completed", stepName))
	}
	return nil
}

// collectFeedback implements step 6 of the main loop contract.
func (r *Runner) collectFeedback(ctx context.Context, stepName string, result StepResult) error {
	r.mu.Lock()
	r.state.State = StateWaitingForUser
	r.mu.Unlock()

	questions := condition.ExtractQuestions(condition.Result{Output: result.Output, Message: result.Message})
	if r.input == nil {
		return fmt.Errorf("step %s needs user feedback but no input collector is configured", stepName)
	}

	answers, err := r.input.CollectFeedback(ctx, questions, stepName)
	if err != nil {
		return fmt.Errorf("collecting feedback for step %s: %w", stepName, err)
	}

	r.mu.Lock()
	for k, v := range answers {
		r.state.UserInput[k] = v
	}
	r.state.State = StateRunning
	r.mu.Unlock()

	// Persist each answer immediately rather than waiting for the next
	// whole-state checkpoint, so a crash right after this exchange
	// never loses it.
	for k, v := range answers {
		if err := r.stateManager.AddUserInput(k, v); err != nil {
			r.logger.Error("failed to journal user input", "key", k, "error", err)
		}
	}
	return nil
}

func (r *Runner) transitionToError(stepName string, err error) {
	r.mu.Lock()
	r.state.State = StateError
	r.mu.Unlock()
	r.display.ShowMessage(fmt.Sprintf("step %s failed: %v", stepName, err), LevelError)
	r.appendLog("error", err.Error())
}

func (r *Runner) checkCompletion(ctx context.Context) (Result, error) {
	status := r.completion.CompletionStatus()

	satisfied := status.AllComplete
	if !satisfied {
		satisfied = r.confirmCompletionOverride(ctx, status)
	}

	r.mu.Lock()
	if satisfied {
		r.state.State = StateCompleted
	} else {
		r.state.State = StateError
	}
	finalState := r.state.State
	r.mu.Unlock()

	return r.finalize(finalState)
}

// confirmCompletionOverride presents the Completion Checker's verdict
// to the user and asks whether to force the run to completed anyway.
// The Display/InputCollector contract names no dedicated "override"
// method, so this reuses CollectFeedback with a single yes/no
// question, the same path feedback-needed steps already go through.
// With no InputCollector configured (a non-interactive run) there is
// no one to ask, so the checker's verdict stands and the run goes to
// StateError.
func (r *Runner) confirmCompletionOverride(ctx context.Context, status CompletionResult) bool {
	r.display.ShowMessage(fmt.Sprintf("completion check failed: %s", status.Summary), LevelWarning)
	if r.input == nil {
		return false
	}

	question := condition.Question{
		Number:       1,
		Text:         fmt.Sprintf("Completion check reports the workflow is not done (%s). Mark it completed anyway?", status.Summary),
		InputType:    condition.InputBoolean,
		QuestionType: condition.QuestionConfirm,
		Required:     true,
		Choices:      []string{"yes", "no"},
	}
	answers, err := r.input.CollectFeedback(ctx, []condition.Question{question}, "completion_override")
	if err != nil {
		r.logger.Error("failed to collect completion override choice", "error", err)
		return false
	}
	return isAffirmative(answers["question_1"])
}

func isAffirmative(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "true", "1":
		return true
	default:
		return false
	}
}

func (r *Runner) finalize(state State) (Result, error) {
	if err := r.persist(); err != nil {
		r.logger.Error("failed to checkpoint final state", "error", err)
	}
	return Result{State: state}, nil
}

// cleanup cancels and joins every background task before Run returns
// (the countdown task drops its Display job entry as it exits), then
// releases the display loop. Final state is persisted by finalize, not
// here.
func (r *Runner) cleanup() {
	r.cancelBG()
	r.background.Wait()
	r.display.StopDisplayLoop()
}

func (r *Runner) persist() error {
	r.mu.Lock()
	snap := Snapshot{
		State:           r.state.State,
		CurrentStep:     r.state.CurrentStep,
		CurrentProvider: r.state.CurrentProvider,
		UserInput:       cloneUserInput(r.state.UserInput),
		ExecutionLog:    append([]ExecutionLogEntry(nil), r.state.ExecutionLog...),
		LastUpdated:     time.Now(),
	}
	r.mu.Unlock()
	return r.stateManager.SaveState(snap)
}

func (r *Runner) appendLog(level, message string) {
	entry := LogEntry(level, message, r.debug)
	r.mu.Lock()
	r.state.ExecutionLog = append(r.state.ExecutionLog, entry)
	r.mu.Unlock()

	// Journal the entry durably on its own, independent of the next
	// whole-state checkpoint: an error entry in particular is exactly
	// the kind of thing a crash right afterward must not lose.
	if err := r.stateManager.AddExecutionLog(entry); err != nil {
		r.logger.Error("failed to journal execution log entry", "error", err)
	}
}

// Progress returns 100 * completed/total, rounded to 2 decimals; 0
// when total is 0.
func Progress(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	pct := 100 * float64(completed) / float64(total)
	return math.Round(pct*100) / 100
}

func cloneUserInput(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
