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

// Package app wires the harness's validated configuration into a live
// Provider Manager: it is the one place that knows how to turn a
// config.ProvidersMap entry into a concrete pkg/provider.Provider, so
// that pkg/provider itself stays transport-agnostic and internal/config
// stays free of networking concerns.
package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/viamin/aidp-sub001/internal/config"
	"github.com/viamin/aidp-sub001/pkg/provider"
	"github.com/viamin/aidp-sub001/pkg/provider/httpprovider"
)

// wellKnownBaseURLs seeds the default endpoint for provider instance
// names the harness recognizes out of the box. Any name not listed
// here must set <NAME>_BASE_URL in the environment (dashes become
// underscores, the name is upper-cased).
var wellKnownBaseURLs = map[string]string{
	"anthropic":  "https://api.anthropic.com/v1",
	"openai":     "https://api.openai.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
}

var wellKnownAuthHeaders = map[string]string{
	"anthropic": "x-api-key",
}

// baseURLFor resolves the endpoint for provider instance name: an
// explicit <NAME>_BASE_URL environment override wins, then the
// well-known default, then an error.
func baseURLFor(name string) (string, error) {
	envKey := strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_BASE_URL"
	if v := os.Getenv(envKey); v != "" {
		return v, nil
	}
	if v, ok := wellKnownBaseURLs[name]; ok {
		return v, nil
	}
	return "", fmt.Errorf("provider %s: no base URL configured; set %s", name, envKey)
}

func authHeaderFor(name string) string {
	if h, ok := wellKnownAuthHeaders[name]; ok {
		return h
	}
	return "Authorization"
}

// BuildManager constructs a Provider Manager from cfg: every entry
// under cfg.Providers is registered as an httpprovider factory and
// activated immediately using the credential named by its
// auth.api_key_env. Returns the manager with AddProvider already
// called for each entry; callers still invoke Manager.Start to make
// the initial selection.
func BuildManager(cfg *config.Config, mgrCfg provider.ManagerConfig, metrics *provider.Metrics) (*provider.Manager, error) {
	registry := provider.NewRegistry()
	manager := provider.NewManager(registry, mgrCfg, nil, metrics)

	for name, p := range cfg.Providers {
		baseURL, err := baseURLFor(name)
		if err != nil {
			return nil, err
		}

		models := make([]provider.ModelInfo, 0, len(p.Models))
		for _, m := range p.Models {
			models = append(models, provider.ModelInfo{ID: m, Tier: provider.TierStandard})
		}

		httpCfg := httpprovider.Config{
			Name:       name,
			BaseURL:    baseURL,
			AuthHeader: authHeaderFor(name),
			Models:     models,
		}
		registry.RegisterFactory(name, httpprovider.Factory(httpCfg))

		creds := provider.Credentials{}
		if p.Auth.APIKeyEnv != "" {
			creds[httpprovider.CredentialKey] = os.Getenv(p.Auth.APIKeyEnv)
		}
		if err := registry.Activate(name, creds); err != nil {
			return nil, fmt.Errorf("activating provider %s: %w", name, err)
		}

		if err := manager.AddProvider(name, p.Priority, p.Weight, models, p.UnderlyingService); err != nil {
			return nil, fmt.Errorf("configuring provider %s: %w", name, err)
		}
	}

	return manager, nil
}
