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

// noopDisplay discards every status event; used when the caller never
// supplies a Display via WithDisplay.
type noopDisplay struct{}

func (noopDisplay) ShowMessage(string, MessageLevel)               {}
func (noopDisplay) AddJob(string, Job)                             {}
func (noopDisplay) UpdateJob(string, Job)                          {}
func (noopDisplay) RemoveJob(string)                               {}
func (noopDisplay) ShowStepExecution(string, StepPhase, string)    {}
func (noopDisplay) ShowWorkflowStatus(WorkflowStatus)              {}
func (noopDisplay) StartDisplayLoop()                              {}
func (noopDisplay) StopDisplayLoop()                               {}

// alwaysCompleteChecker is used when the caller never supplies a
// CompletionChecker: it trusts the Mode Runner's own completion signal.
type alwaysCompleteChecker struct{}

func (alwaysCompleteChecker) CompletionStatus() CompletionResult {
	return CompletionResult{AllComplete: true, Summary: "no completion checker configured"}
}
