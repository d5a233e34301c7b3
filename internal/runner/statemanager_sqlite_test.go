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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStateManager_SaveAndLoadRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	sm, err := NewSQLiteStateManager(dbPath, "run-1")
	require.NoError(t, err)
	defer sm.Close()

	assert.False(t, sm.HasState())

	snap := Snapshot{
		State:           StateRunning,
		CurrentStep:     "step1",
		CurrentProvider: "primary",
		UserInput:       map[string]string{"question_1": "Ada"},
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
}

func TestSQLiteStateManager_SeparatesRunsByID(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	smA, err := NewSQLiteStateManager(dbPath, "run-a")
	require.NoError(t, err)
	defer smA.Close()
	require.NoError(t, smA.SaveState(Snapshot{State: StateRunning, CurrentStep: "a"}))

	smB, err := NewSQLiteStateManager(dbPath, "run-b")
	require.NoError(t, err)
	defer smB.Close()

	assert.False(t, smB.HasState())
	_, ok, err := smB.LoadState()
	require.NoError(t, err)
	assert.False(t, ok)

	loadedA, ok, err := smA.LoadState()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", loadedA.CurrentStep)
}

func TestSQLiteStateManager_HonorsSaveRateLimit(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	sm, err := NewSQLiteStateManager(dbPath, "run-rate", WithSaveRateLimit(1000, 1000))
	require.NoError(t, err)
	defer sm.Close()

	require.NoError(t, sm.SaveState(Snapshot{State: StateRunning, CurrentStep: "a"}))
	require.NoError(t, sm.SaveState(Snapshot{State: StateCompleted, CurrentStep: "b"}))

	loaded, ok, err := sm.LoadState()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", loaded.CurrentStep)
}
