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

// Package workflow provides a concrete Mode Runner: an ordered list of
// named steps, each dispatched to the active provider through the
// Provider Manager and classified with the Condition Detector.
package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/viamin/aidp-sub001/internal/runner"
	"github.com/viamin/aidp-sub001/pkg/condition"
	"github.com/viamin/aidp-sub001/pkg/provider"
)

// Step is one named unit of work: a prompt template sent to whichever
// provider the Runner currently has selected.
type Step struct {
	Name   string `yaml:"name"`
	Prompt string `yaml:"prompt"`
}

type stepState struct {
	inProgress bool
	completed  bool
}

// StaticRunner implements runner.ModeRunner over a fixed, ordered list
// of steps. Each RunStep call executes the step's prompt against the
// Provider Manager and turns the raw Response into a StepResult using
// the Condition Detector.
type StaticRunner struct {
	mu        sync.Mutex
	steps     []Step
	state     map[string]*stepState
	providers *provider.Manager
	model     string
}

// NewStaticRunner creates a StaticRunner over steps, dispatching every
// request through providers using model (empty selects the provider's
// own default).
func NewStaticRunner(steps []Step, providers *provider.Manager, model string) *StaticRunner {
	state := make(map[string]*stepState, len(steps))
	for _, s := range steps {
		state[s.Name] = &stepState{}
	}
	return &StaticRunner{steps: steps, state: state, providers: providers, model: model}
}

// ResumeFrom marks every step before stepName completed, per the
// resumption edge case: a run that persisted current_step=s2 resumes
// with next_step beginning at s2, not s1. stepName itself and every
// step after it stay untouched. Unknown names are a no-op.
func (r *StaticRunner) ResumeFrom(stepName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.state[stepName]; !ok {
		return
	}
	for _, s := range r.steps {
		if s.Name == stepName {
			return
		}
		if st, ok := r.state[s.Name]; ok {
			st.completed = true
		}
	}
}

func (r *StaticRunner) NextStep() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.steps {
		st := r.state[s.Name]
		if !st.completed && !st.inProgress {
			return s.Name, true
		}
	}
	return "", false
}

func (r *StaticRunner) RunStep(ctx context.Context, name string, userInput map[string]string) (runner.StepResult, error) {
	step, ok := r.findStep(name)
	if !ok {
		return runner.StepResult{}, fmt.Errorf("unknown step: %s", name)
	}

	prompt := step.Prompt
	if answer, ok := userInput["question_1"]; ok {
		prompt = fmt.Sprintf("%s\n\nUser answer: %s", prompt, answer)
	}

	resp, err := r.providers.Execute(ctx, provider.Request{Prompt: prompt, Model: r.model})
	if err != nil {
		return runner.StepResult{}, err
	}

	detected := condition.Result{Output: resp.Output, StatusCode: resp.StatusCode}
	if condition.IsRateLimited(detected, r.providers.CurrentProvider()) {
		return runner.StepResult{RateLimited: true, Output: resp.Output, StatusCode: resp.StatusCode}, nil
	}
	if condition.NeedsUserFeedback(detected) {
		return runner.StepResult{NeedsFeedback: true, Output: resp.Output}, nil
	}

	progress := r.Progress()
	info := condition.IsWorkComplete(detected, condition.Progress{
		CompletedSteps: len(progress.CompletedSteps),
		TotalSteps:     progress.TotalSteps,
	})
	return runner.StepResult{Completed: info.IsComplete, Output: resp.Output}, nil
}

func (r *StaticRunner) findStep(name string) (Step, bool) {
	for _, s := range r.steps {
		if s.Name == name {
			return s, true
		}
	}
	return Step{}, false
}

func (r *StaticRunner) AllSteps() []string {
	names := make([]string, len(r.steps))
	for i, s := range r.steps {
		names[i] = s.Name
	}
	return names
}

func (r *StaticRunner) Progress() runner.Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	var done []string
	var current string
	for _, s := range r.steps {
		st := r.state[s.Name]
		if st.completed {
			done = append(done, s.Name)
		} else if st.inProgress && current == "" {
			current = s.Name
		}
	}
	return runner.Progress{CompletedSteps: done, CurrentStep: current, TotalSteps: len(r.steps)}
}

func (r *StaticRunner) AllStepsCompleted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.steps {
		if !r.state[s.Name].completed {
			return false
		}
	}
	return true
}

func (r *StaticRunner) MarkStepInProgress(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.state[name]; ok {
		st.inProgress = true
	}
}

func (r *StaticRunner) MarkStepCompleted(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.state[name]; ok {
		st.inProgress = false
		st.completed = true
	}
}
