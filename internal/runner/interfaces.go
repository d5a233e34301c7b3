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

	"github.com/viamin/aidp-sub001/pkg/condition"
)

// StepResult is what ModeRunner.RunStep returns for one step execution.
type StepResult struct {
	Completed    bool
	Output       string
	Error        string
	NeedsFeedback bool
	RateLimited  bool
	HTTPStatus   int
	StatusCode   int
	Message      string
}

// Progress summarizes a Mode Runner's step completion for progress
// reporting and the Condition Detector's completion heuristics.
type Progress struct {
	CompletedSteps []string
	CurrentStep    string
	TotalSteps     int
}

// ModeRunner is the external collaborator that owns the actual step
// definitions for a workflow. The Runner never creates or deletes
// steps itself.
type ModeRunner interface {
	NextStep() (string, bool)
	RunStep(ctx context.Context, name string, userInput map[string]string) (StepResult, error)
	AllSteps() []string
	Progress() Progress
	AllStepsCompleted() bool
	MarkStepInProgress(name string)
	MarkStepCompleted(name string)
}

// CompletionResult is the verdict from a CompletionChecker.
type CompletionResult struct {
	AllComplete bool
	Summary     string
}

// CompletionChecker runs after the main loop exits to confirm the
// workflow actually satisfies its completion criteria.
type CompletionChecker interface {
	CompletionStatus() CompletionResult
}

// MessageLevel classifies a Display message's severity.
type MessageLevel string

const (
	LevelInfo    MessageLevel = "info"
	LevelSuccess MessageLevel = "success"
	LevelWarning MessageLevel = "warning"
	LevelError   MessageLevel = "error"
)

// StepPhase marks where in its lifecycle a step execution is.
type StepPhase string

const (
	PhaseStarting  StepPhase = "starting"
	PhaseCompleted StepPhase = "completed"
	PhaseFailed    StepPhase = "failed"
)

// Job describes one tracked unit of work shown in the Display.
type Job struct {
	Name     string
	Status   string
	Progress float64
	Provider string
	Message  string
}

// WorkflowStatus is the aggregate view the Display renders.
type WorkflowStatus struct {
	WorkflowType       string
	Steps              []string
	CompletedSteps     []string
	CurrentStep        string
	ProgressPercentage float64
}

// Display is the status-event sink the Runner reports to; it never
// blocks the supervisor loop and must be internally synchronized since
// its own update loop reads concurrently.
type Display interface {
	ShowMessage(text string, level MessageLevel)
	AddJob(id string, job Job)
	UpdateJob(id string, patch Job)
	RemoveJob(id string)
	ShowStepExecution(name string, phase StepPhase, details string)
	ShowWorkflowStatus(status WorkflowStatus)
	StartDisplayLoop()
	StopDisplayLoop()
}

// InputCollector blocks on external user input when the Runner needs
// feedback to proceed. Answers are keyed "question_<n>".
type InputCollector interface {
	CollectFeedback(ctx context.Context, questions []condition.Question, stepContext string) (map[string]string, error)
}
