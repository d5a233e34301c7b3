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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateManager_SaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	sm := NewStateManager(path)

	assert.False(t, sm.HasState())

	snap := Snapshot{
		State:           StateRunning,
		CurrentStep:     "step1",
		CurrentProvider: "primary",
		UserInput:       map[string]string{"question_1": "Ada"},
		ExecutionLog:    []ExecutionLogEntry{{Level: "info", Message: "started"}},
		LastUpdated:     time.Now().Truncate(time.Second),
	}
	require.NoError(t, sm.SaveState(snap))
	assert.True(t, sm.HasState())

	loaded, ok, err := sm.LoadState()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap.State, loaded.State)
	assert.Equal(t, snap.CurrentStep, loaded.CurrentStep)
	assert.Equal(t, snap.UserInput, loaded.UserInput)

	// No leftover temp file after a successful save.
	_, statErr := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(statErr))
}

func TestStateManager_LoadStateMissingFileIsNotAnError(t *testing.T) {
	sm := NewStateManager(filepath.Join(t.TempDir(), "missing.json"))
	snap, ok, err := sm.LoadState()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Snapshot{}, snap)
}

func TestStateManager_SaveOverwritesPreviousSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	sm := NewStateManager(path)

	require.NoError(t, sm.SaveState(Snapshot{State: StateRunning, CurrentStep: "a"}))
	require.NoError(t, sm.SaveState(Snapshot{State: StateCompleted, CurrentStep: "b"}))

	loaded, ok, err := sm.LoadState()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StateCompleted, loaded.State)
	assert.Equal(t, "b", loaded.CurrentStep)
}

func TestLogEntry_AttachesBacktraceOnlyForErrorWithDebug(t *testing.T) {
	info := LogEntry("info", "hello", true)
	assert.Empty(t, info.Backtrace)

	errNoDebug := LogEntry("error", "boom", false)
	assert.Empty(t, errNoDebug.Backtrace)

	errDebug := LogEntry("error", "boom", true)
	assert.NotEmpty(t, errDebug.Backtrace)
}
