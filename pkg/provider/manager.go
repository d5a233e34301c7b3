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

package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// entryConfig holds the static configuration and rotation state for one
// configured provider slot.
type entryConfig struct {
	name              string
	priority          int
	weight            float64
	models            []ModelInfo
	modelIdx          int
	underlyingService string // passthrough only
}

// ManagerConfig configures the Provider Manager's circuit breaker.
type ManagerConfig struct {
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

// Manager handles selection, failover, rate-limit coordination and
// circuit breaking across a configured set of providers. It owns the
// Provider table exclusively; nothing else mutates provider
// health/circuit state.
type Manager struct {
	mu         sync.RWMutex
	registry   *Registry
	order      []string
	entries    map[string]*entryConfig
	current    string
	rateLimits map[string]RateLimitInfo
	cb         *circuitBreaker
	logger     *slog.Logger
	metrics    *Metrics
}

// NewManager creates a Provider Manager backed by registry.
func NewManager(registry *Registry, cfg ManagerConfig, logger *slog.Logger, metrics *Metrics) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		registry:   registry,
		entries:    make(map[string]*entryConfig),
		rateLimits: make(map[string]RateLimitInfo),
		cb:         newCircuitBreaker(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerTimeout),
		logger:     logger,
		metrics:    metrics,
	}
}

// AddProvider registers a provider's selection configuration. priority
// must be unique within the set; providers of type passthrough must
// name underlyingService.
func (m *Manager) AddProvider(name string, priority int, weight float64, models []ModelInfo, underlyingService string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if e.priority == priority {
			return fmt.Errorf("priority %d already used by provider %s", priority, e.name)
		}
	}
	if weight <= 0 {
		weight = 1
	}
	m.entries[name] = &entryConfig{
		name:              name,
		priority:          priority,
		weight:            weight,
		models:            models,
		underlyingService: underlyingService,
	}
	m.order = append(m.order, name)
	return nil
}

// CurrentProvider returns the name of the provider currently selected
// for execution, or "unknown" if none has been selected yet.
func (m *Manager) CurrentProvider() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == "" {
		return "unknown"
	}
	return m.current
}

// Start performs the initial provider selection, used once at Runner
// startup (or resumption) to establish RunnerState.current_provider.
func (m *Manager) Start(now time.Time) (string, error) {
	name, ok := m.selectLocked(now)
	if !ok {
		return "", fmt.Errorf("no healthy provider available")
	}
	m.mu.Lock()
	m.current = name
	m.mu.Unlock()
	m.metrics.observeSelection(name)
	return name, nil
}

// SwitchProvider selects a new healthy provider per the scoring policy
// (priority * weight, ties broken by lowest recent failure count, then
// configured order). Returns ("", false) when none qualify; callers
// must fall back to waiting on NextResetTime.
func (m *Manager) SwitchProvider(now time.Time) (string, bool) {
	name, ok := m.selectLocked(now)
	if !ok {
		return "", false
	}

	m.mu.Lock()
	from := m.current
	m.current = name
	m.mu.Unlock()

	if from != "" && from != name && m.logger != nil {
		m.logger.Info("provider switch", "from", from, "to", name)
	}
	m.metrics.observeSelection(name)
	m.metrics.observeFailover(from, name)
	return name, true
}

// selectLocked applies the scoring policy: score = priority * weight,
// highest wins, ties broken by lowest circuit-breaker consecutive
// failure count, then by position in the configured provider order. It
// acquires the circuit breaker's own internal lock via
// effectiveState/allow, but reads its own state under m.mu.RLock.
func (m *Manager) selectLocked(now time.Time) (string, bool) {
	m.mu.RLock()
	type candidate struct {
		name  string
		score float64
		fails int
		order int
	}
	var cands []candidate
	for i, name := range m.order {
		if rl, limited := m.rateLimits[name]; limited && !rl.Expired(now) {
			continue
		}
		if m.cb.effectiveState(name, now) == CircuitOpen {
			continue
		}
		e := m.entries[name]
		cands = append(cands, candidate{
			name:  name,
			score: float64(e.priority) * e.weight,
			fails: m.cb.failureCount(name),
			order: i,
		})
	}
	m.mu.RUnlock()

	if len(cands) == 0 {
		return "", false
	}

	best := cands[0]
	for _, c := range cands[1:] {
		switch {
		case c.score > best.score:
			best = c
		case c.score == best.score && c.fails < best.fails:
			best = c
		case c.score == best.score && c.fails == best.fails && c.order < best.order:
			best = c
		}
	}

	// Commit the half-open probe / closed pass-through via allow().
	m.cb.allow(best.name, now)
	return best.name, true
}

// SwitchModel advances the current model index for providerName,
// round-robin, and returns the new model ID.
func (m *Manager) SwitchModel(providerName string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[providerName]
	if !ok {
		return "", fmt.Errorf("provider not configured: %s", providerName)
	}
	if len(e.models) == 0 {
		return "", fmt.Errorf("provider %s has no configured models", providerName)
	}
	e.modelIdx = (e.modelIdx + 1) % len(e.models)
	return e.models[e.modelIdx].ID, nil
}

// MarkRateLimited records a detected rate limit for name. Subsequent
// selection excludes name until info.ResetTime has passed.
func (m *Manager) MarkRateLimited(name string, info RateLimitInfo) {
	m.mu.Lock()
	m.rateLimits[name] = info
	m.mu.Unlock()
}

// NextResetTime returns the earliest unexpired rate-limit reset time
// across all tracked providers, or ok=false if none are rate-limited.
func (m *Manager) NextResetTime(now time.Time) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var earliest time.Time
	found := false
	for name, rl := range m.rateLimits {
		if rl.Expired(now) {
			delete(m.rateLimits, name)
			continue
		}
		if !found || rl.ResetTime.Before(earliest) {
			earliest = rl.ResetTime
			found = true
		}
	}
	return earliest, found
}

// MarkFailure drives the circuit breaker toward open on repeated
// failures. reason is used for structured logging only.
func (m *Manager) MarkFailure(name string, reason string) {
	now := time.Now()
	m.cb.recordFailure(name, now)
	state := m.cb.state(name)
	m.metrics.observeCircuitState(name, state)
	health := m.Health(name)
	m.metrics.observeHealth(name, health)
	if m.logger != nil {
		m.logger.Warn("provider failure recorded", "provider", name, "reason", reason, "circuit_state", state, "health", health)
	}
}

// MarkSuccess resets the circuit breaker for name to closed.
func (m *Manager) MarkSuccess(name string) {
	m.cb.recordSuccess(name)
	m.metrics.observeCircuitState(name, CircuitClosed)
	m.metrics.observeHealth(name, m.Health(name))
}

// Health reports name's derived reachability: an open or probing
// (half-open) circuit is unhealthy; a closed circuit that has
// nonetheless recorded a recent failure is degraded; otherwise
// healthy. This is a coarser, operator-facing signal than the circuit
// breaker's own three states.
func (m *Manager) Health(name string) Health {
	switch m.cb.state(name) {
	case CircuitOpen, CircuitHalfOpen:
		return HealthUnhealthy
	}
	if m.cb.failureCount(name) > 0 {
		return HealthDegraded
	}
	return HealthHealthy
}

// HealthStatus returns a snapshot of every configured provider's
// derived health.
func (m *Manager) HealthStatus() map[string]Health {
	m.mu.RLock()
	names := append([]string(nil), m.order...)
	m.mu.RUnlock()

	out := make(map[string]Health, len(names))
	for _, name := range names {
		out[name] = m.Health(name)
	}
	return out
}

// CircuitState exposes the current breaker state for name (closed if
// never observed), primarily for diagnostics and tests.
func (m *Manager) CircuitState(name string) CircuitState {
	return m.cb.state(name)
}

// CircuitStatus returns a snapshot of every tracked provider's breaker
// state.
func (m *Manager) CircuitStatus() map[string]CircuitState {
	return m.cb.status()
}

// Execute resolves the active provider from the registry and invokes
// it. It does not itself retry or switch providers; that orchestration
// belongs to the Error Handler, which calls SwitchProvider/MarkFailure
// directly so it can interleave with Condition Detector classification.
func (m *Manager) Execute(ctx context.Context, req Request) (*Response, error) {
	name := m.CurrentProvider()
	if name == "unknown" {
		return nil, fmt.Errorf("no provider selected")
	}
	p, err := m.registry.Get(name)
	if err != nil {
		return nil, err
	}
	return p.Execute(ctx, req)
}
