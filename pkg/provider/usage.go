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
	"sync"
	"time"
)

// UsageRecord tracks token consumption for a single provider execution,
// tagged so passthrough providers can be accounted separately from
// their underlying_service.
type UsageRecord struct {
	Provider          string
	UnderlyingService string
	Model             string
	Timestamp         time.Time
	Usage             TokenUsage
}

// UsageAggregate summarizes usage for one provider (or underlying
// service) across all recorded requests.
type UsageAggregate struct {
	Requests     int
	InputTokens  int
	OutputTokens int
}

// UsageTracker accumulates per-provider token usage, the basis for
// usage-based provider rotation (Glossary: "Tier" selection, and
// TypeUsageBased providers that may need to rotate once a budget is
// approached). It is independent of the circuit breaker: exhausting a
// usage budget is a policy decision made by the caller, not a health
// signal the Manager infers on its own.
type UsageTracker struct {
	mu      sync.RWMutex
	records []UsageRecord
}

// NewUsageTracker creates an empty tracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{}
}

// Record appends one usage observation.
func (t *UsageTracker) Record(rec UsageRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, rec)
}

// AggregateByProvider rolls up usage per provider name.
func (t *UsageTracker) AggregateByProvider() map[string]UsageAggregate {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]UsageAggregate)
	for _, r := range t.records {
		agg := out[r.Provider]
		agg.Requests++
		agg.InputTokens += r.Usage.InputTokens
		agg.OutputTokens += r.Usage.OutputTokens
		out[r.Provider] = agg
	}
	return out
}

// AggregateByUnderlyingService rolls up usage for passthrough providers
// keyed by the service they forward to, kept distinct from the
// passthrough provider's own name.
func (t *UsageTracker) AggregateByUnderlyingService() map[string]UsageAggregate {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]UsageAggregate)
	for _, r := range t.records {
		if r.UnderlyingService == "" {
			continue
		}
		agg := out[r.UnderlyingService]
		agg.Requests++
		agg.InputTokens += r.Usage.InputTokens
		agg.OutputTokens += r.Usage.OutputTokens
		out[r.UnderlyingService] = agg
	}
	return out
}

// RecordUsage is a convenience wrapper combining a Manager execution
// result with the configured underlying_service for passthrough
// providers, so callers don't need to look it up separately.
func (m *Manager) RecordUsage(tracker *UsageTracker, providerName, model string, usage TokenUsage, now time.Time) {
	if tracker == nil {
		return
	}
	m.mu.RLock()
	underlying := ""
	if e, ok := m.entries[providerName]; ok {
		underlying = e.underlyingService
	}
	m.mu.RUnlock()

	tracker.Record(UsageRecord{
		Provider:          providerName,
		UnderlyingService: underlying,
		Model:             model,
		Timestamp:         now,
		Usage:             usage,
	})
}
