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

package cliio

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/viamin/aidp-sub001/internal/runner"
)

var (
	styleOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleError = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleInfo  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	styleMuted = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func styleFor(level runner.MessageLevel) lipgloss.Style {
	switch level {
	case runner.LevelSuccess:
		return styleOK
	case runner.LevelWarning:
		return styleWarn
	case runner.LevelError:
		return styleError
	default:
		return styleInfo
	}
}

// TermDisplay implements runner.Display by writing styled, line-oriented
// status updates to out. It does not render a live-updating dashboard;
// jobs are logged as they change rather than drawn as a TUI.
type TermDisplay struct {
	mu  sync.Mutex
	out io.Writer
}

// NewTermDisplay creates a Display writing to out.
func NewTermDisplay(out io.Writer) *TermDisplay {
	return &TermDisplay{out: out}
}

func (d *TermDisplay) ShowMessage(text string, level runner.MessageLevel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(d.out, styleFor(level).Render(text))
}

func (d *TermDisplay) AddJob(id string, job runner.Job) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(d.out, styleInfo.Render(fmt.Sprintf("+ %s: %s", job.Name, job.Status)))
}

func (d *TermDisplay) UpdateJob(id string, patch runner.Job) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(d.out, styleMuted.Render(fmt.Sprintf("  %s: %s", id, patch.Message)))
}

func (d *TermDisplay) RemoveJob(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(d.out, styleMuted.Render(fmt.Sprintf("- %s", id)))
}

func (d *TermDisplay) ShowStepExecution(name string, phase runner.StepPhase, details string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	label := fmt.Sprintf("[%s] %s", name, phase)
	if details != "" {
		label += ": " + truncate(details, 120)
	}
	style := styleInfo
	if phase == runner.PhaseFailed {
		style = styleError
	} else if phase == runner.PhaseCompleted {
		style = styleOK
	}
	fmt.Fprintln(d.out, style.Render(label))
}

func (d *TermDisplay) ShowWorkflowStatus(status runner.WorkflowStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	bar := progressBar(status.ProgressPercentage, 20)
	fmt.Fprintf(d.out, "%s %s %.2f%%\n", styleMuted.Render(status.WorkflowType), bar, status.ProgressPercentage)
}

func (d *TermDisplay) StartDisplayLoop() {}
func (d *TermDisplay) StopDisplayLoop()  {}

func progressBar(pct float64, width int) string {
	filled := int(pct / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
