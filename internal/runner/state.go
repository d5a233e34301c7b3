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

import "time"

// State is one position in the Runner's state machine.
type State string

const (
	StateIdle                 State = "idle"
	StateRunning              State = "running"
	StatePaused               State = "paused"
	StateWaitingForUser       State = "waiting_for_user"
	StateWaitingForRateLimit  State = "waiting_for_rate_limit"
	StateStopped              State = "stopped"
	StateCompleted            State = "completed"
	StateError                State = "error"
)

// Mode is the harness's top-level operating mode, set at construction.
type Mode string

const (
	ModeAnalyze Mode = "analyze"
	ModeExecute Mode = "execute"
)

var terminalStates = map[State]bool{
	StateStopped:   true,
	StateCompleted: true,
	StateError:     true,
}

var pausedStates = map[State]bool{
	StatePaused:              true,
	StateWaitingForUser:      true,
	StateWaitingForRateLimit: true,
}

// ExecutionLogEntry is one append-only record in RunnerState's log.
type ExecutionLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Backtrace []string  `json:"backtrace,omitempty"`
}

// RunnerState is the Runner's exclusively-owned, checkpointed state.
// Mutations happen only inside the Runner's own goroutine.
type RunnerState struct {
	State           State                        `json:"state"`
	Mode            Mode                         `json:"mode"`
	CurrentStep     string                       `json:"current_step"`
	CurrentProvider string                       `json:"current_provider"`
	StartTime       time.Time                    `json:"start_time"`
	UserInput       map[string]string            `json:"user_input"`
	ExecutionLog    []ExecutionLogEntry          `json:"execution_log"`
	LastUpdated     time.Time                    `json:"last_updated"`
}

// NewRunnerState creates the initial idle state for mode.
func NewRunnerState(mode Mode) *RunnerState {
	return &RunnerState{
		State:     StateIdle,
		Mode:      mode,
		StartTime: time.Now(),
		UserInput: make(map[string]string),
	}
}

// ShouldStop reports whether the loop must exit: state has reached a
// terminal value.
func (s *RunnerState) ShouldStop() bool {
	return terminalStates[s.State]
}

// ShouldPause reports whether the loop should yield instead of
// advancing to the next step.
func (s *RunnerState) ShouldPause() bool {
	return pausedStates[s.State]
}
