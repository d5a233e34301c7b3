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

package validate

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
default_provider: primary
max_retries: 2
providers:
  primary:
    type: usage_based
    priority: 10
    weight: 1
`

const validWorkflow = `
name: demo
steps:
  - name: step_one
    prompt: "do the thing"
`

func TestValidate_ConfigOnly(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "harness.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(validConfig), 0o600))

	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", cfgPath})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "is valid")
}

func TestValidate_ConfigAndWorkflow(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "harness.yaml")
	wfPath := filepath.Join(dir, "workflow.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(validConfig), 0o600))
	require.NoError(t, os.WriteFile(wfPath, []byte(validWorkflow), 0o600))

	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", cfgPath, wfPath})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "workflow")
}

func TestValidate_RejectsBadConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "harness.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("default_provider: missing\n"), 0o600))

	cmd := NewCommand()
	cmd.SetArgs([]string{"--config", cfgPath})
	cmd.SetOut(new(bytes.Buffer))

	err := cmd.Execute()
	require.Error(t, err)
}
