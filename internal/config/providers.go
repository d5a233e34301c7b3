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

package config

import (
	"fmt"

	harnesserrors "github.com/viamin/aidp-sub001/pkg/errors"
)

// ProvidersMap maps a user-chosen provider instance name to its
// configuration.
type ProvidersMap map[string]ProviderConfig

// AuthConfig names the environment variable a provider reads its
// credential from. The harness never stores the credential itself.
type AuthConfig struct {
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
}

// ProviderConfig is one entry under providers[name] in the config file.
type ProviderConfig struct {
	Type              string            `yaml:"type"`
	Priority          int               `yaml:"priority"`
	Weight            float64           `yaml:"weight,omitempty"`
	MaxTokens         int               `yaml:"max_tokens,omitempty"`
	Models            []string          `yaml:"models,omitempty"`
	ModelWeights      map[string]float64 `yaml:"model_weights,omitempty"`
	Auth              AuthConfig        `yaml:"auth,omitempty"`
	UnderlyingService string            `yaml:"underlying_service,omitempty"`
	Features          map[string]bool   `yaml:"features,omitempty"`
}

var validProviderTypes = map[string]bool{
	"usage_based":  true,
	"subscription": true,
	"passthrough":  true,
}

func (p ProviderConfig) validate(name string) error {
	if !validProviderTypes[p.Type] {
		return &harnesserrors.ValidationError{
			Field:   fmt.Sprintf("providers.%s.type", name),
			Message: fmt.Sprintf("unknown provider type %q", p.Type),
		}
	}
	if p.Priority < 1 || p.Priority > 10 {
		return &harnesserrors.ValidationError{
			Field:   fmt.Sprintf("providers.%s.priority", name),
			Message: "must be between 1 and 10",
		}
	}
	if p.Type == "passthrough" && p.UnderlyingService == "" {
		return &harnesserrors.ValidationError{
			Field:      fmt.Sprintf("providers.%s.underlying_service", name),
			Message:    "passthrough providers must name an underlying_service",
			Suggestion: "set underlying_service to the provider this one forwards to",
		}
	}
	return nil
}

// modelWeightWarnings warns when model_weights names a model that
// isn't listed in models, rather than failing validation outright.
func (p ProviderConfig) modelWeightWarnings(name string) []string {
	if len(p.ModelWeights) == 0 {
		return nil
	}
	modelSet := make(map[string]bool, len(p.Models))
	for _, m := range p.Models {
		modelSet[m] = true
	}
	var warnings []string
	for model := range p.ModelWeights {
		if !modelSet[model] {
			warnings = append(warnings, fmt.Sprintf(
				"providers.%s.model_weights references model %q which is not listed in models", name, model))
		}
	}
	return warnings
}
