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

package run

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCommand_ExecutesWorkflowAgainstFakeProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"output": "all steps completed successfully"})
	}))
	defer server.Close()

	t.Setenv("DEMO_BASE_URL", server.URL)
	t.Setenv("DEMO_API_KEY", "test-key")

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "harness.yaml")
	wfPath := filepath.Join(dir, "workflow.yaml")

	cfg := `
default_provider: demo
max_retries: 1
providers:
  demo:
    type: usage_based
    priority: 10
    weight: 1
    auth:
      api_key_env: DEMO_API_KEY
`
	wf := `
name: demo-workflow
steps:
  - name: only_step
    prompt: "do the thing"
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))
	require.NoError(t, os.WriteFile(wfPath, []byte(wf), 0o600))

	statePath := filepath.Join(dir, "state.json")

	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", cfgPath, "--state", statePath, wfPath})

	require.NoError(t, cmd.Execute())
	assert.True(t, strings.Contains(out.String(), "completed"))

	_, err := os.Stat(statePath)
	require.NoError(t, err)
}

func TestRunCommand_SQLiteStateBackendPersistsSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"output": "all steps completed successfully"})
	}))
	defer server.Close()

	t.Setenv("DEMO_BASE_URL", server.URL)
	t.Setenv("DEMO_API_KEY", "test-key")

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "harness.yaml")
	wfPath := filepath.Join(dir, "workflow.yaml")

	cfg := `
default_provider: demo
max_retries: 1
providers:
  demo:
    type: usage_based
    priority: 10
    weight: 1
    auth:
      api_key_env: DEMO_API_KEY
`
	wf := `
name: demo-workflow
steps:
  - name: only_step
    prompt: "do the thing"
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))
	require.NoError(t, os.WriteFile(wfPath, []byte(wf), 0o600))

	dbPath := filepath.Join(dir, "state.db")

	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", cfgPath, "--state", dbPath, "--state-backend", "sqlite", wfPath})

	require.NoError(t, cmd.Execute())
	assert.True(t, strings.Contains(out.String(), "completed"))

	_, err := os.Stat(dbPath)
	require.NoError(t, err)
}

func TestRunCommand_ResumeRequiresState(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "harness.yaml")
	wfPath := filepath.Join(dir, "workflow.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("default_provider: demo\nproviders:\n  demo:\n    type: usage_based\n    priority: 1\n"), 0o600))
	require.NoError(t, os.WriteFile(wfPath, []byte("steps:\n  - name: a\n    prompt: x\n"), 0o600))

	cmd := NewCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"--config", cfgPath, "--resume", wfPath})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--resume requires --state")
}
