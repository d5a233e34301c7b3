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

package workflow

import (
	"os"
	"strconv"

	harnesserrors "github.com/viamin/aidp-sub001/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Document is the on-disk shape of a workflow file: an ordered list of
// named steps, each carrying the prompt sent to the active provider.
// Step order in the YAML document is the order NextStep walks.
type Document struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// LoadDocument reads and parses a workflow file at path.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &harnesserrors.ConfigError{Key: path, Reason: "failed to read workflow file", Cause: err}
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &harnesserrors.ConfigError{Key: path, Reason: "failed to parse workflow YAML", Cause: err}
	}
	if len(doc.Steps) == 0 {
		return nil, &harnesserrors.ValidationError{Field: "steps", Message: "workflow must declare at least one step"}
	}
	for i, s := range doc.Steps {
		if s.Name == "" {
			return nil, &harnesserrors.ValidationError{Field: "steps", Message: "step at index " + strconv.Itoa(i) + " is missing a name"}
		}
	}
	return &doc, nil
}
