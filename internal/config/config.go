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

// Package config loads and validates the harness's configuration
// surface: provider definitions, retry/circuit-breaker policy, and the
// runner's failover switches. The Runner never parses YAML itself; it
// only ever sees a validated *Config.
package config

import (
	"fmt"
	"os"
	"time"

	harnesserrors "github.com/viamin/aidp-sub001/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the complete, validated harness configuration.
type Config struct {
	DefaultProvider     string             `yaml:"default_provider"`
	FallbackProviders   []string           `yaml:"fallback_providers,omitempty"`
	MaxRetries          int                `yaml:"max_retries"`
	Timeout             time.Duration      `yaml:"timeout"`
	AutoSwitchOnError   bool               `yaml:"auto_switch_on_error"`
	AutoSwitchOnRateLimit bool             `yaml:"auto_switch_on_rate_limit"`
	CircuitBreaker      CircuitBreakerConfig `yaml:"circuit_breaker"`
	Retry               RetryConfig        `yaml:"retry"`
	Providers           ProvidersMap       `yaml:"providers"`
}

// CircuitBreakerConfig configures the Provider Manager's breaker.
type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// RetryConfig configures the Error Handler's backoff retry engine.
type RetryConfig struct {
	Enabled    bool          `yaml:"enabled"`
	MaxAttempts int          `yaml:"max_attempts"`
	BaseDelay  time.Duration `yaml:"base_delay"`
}

// DefaultConfig returns the harness's baseline configuration, applied
// before a loaded YAML document overrides fields it sets explicitly.
func DefaultConfig() Config {
	return Config{
		MaxRetries:            3,
		Timeout:               300 * time.Second,
		AutoSwitchOnError:     true,
		AutoSwitchOnRateLimit: true,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 5,
			Timeout:          300 * time.Second,
		},
		Retry: RetryConfig{
			Enabled:     true,
			MaxAttempts: 3,
			BaseDelay:   time.Second,
		},
	}
}

// Load reads and validates a Config from a YAML file at path, merged
// over DefaultConfig.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &harnesserrors.ConfigError{Key: path, Reason: "failed to read config file", Cause: err}
	}
	return Parse(data)
}

// Parse validates a Config from an in-memory YAML document.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &harnesserrors.ConfigError{Reason: "failed to parse YAML", Cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the cross-reference invariants of the config:
// max_retries and circuit breaker thresholds must be in range, named
// providers must exist, and each provider's own settings (type,
// priority, passthrough underlying_service) must be valid. Returns the
// first error encountered. model_weights keys that are not among the
// provider's models are not checked here; Warnings reports them as
// non-fatal advisories.
func (c *Config) Validate() error {
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return &harnesserrors.ValidationError{Field: "max_retries", Message: "must be between 0 and 10"}
	}
	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureThreshold < 1 {
			return &harnesserrors.ValidationError{Field: "circuit_breaker.failure_threshold", Message: "must be >= 1"}
		}
		if c.CircuitBreaker.Timeout < 60*time.Second {
			return &harnesserrors.ValidationError{Field: "circuit_breaker.timeout", Message: "must be >= 60s"}
		}
	}

	if c.DefaultProvider == "" {
		return &harnesserrors.ValidationError{Field: "default_provider", Message: "must be set"}
	}
	if _, ok := c.Providers[c.DefaultProvider]; !ok {
		return &harnesserrors.ValidationError{
			Field:      "default_provider",
			Message:    fmt.Sprintf("%q is not a configured provider", c.DefaultProvider),
			Suggestion: "add it under providers, or point default_provider at an existing entry",
		}
	}
	for _, name := range c.FallbackProviders {
		if _, ok := c.Providers[name]; !ok {
			return &harnesserrors.ValidationError{
				Field:   "fallback_providers",
				Message: fmt.Sprintf("%q is not a configured provider", name),
			}
		}
	}

	for name, p := range c.Providers {
		if err := p.validate(name); err != nil {
			return err
		}
	}

	return nil
}

// Warnings returns non-fatal advisories about the configuration, such
// as a model_weights key that isn't one of the provider's models.
// Load/Parse succeed regardless of warnings; callers decide whether to
// surface them.
func (c *Config) Warnings() []string {
	var warnings []string
	for name, p := range c.Providers {
		warnings = append(warnings, p.modelWeightWarnings(name)...)
	}
	return warnings
}
