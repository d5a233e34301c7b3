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
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Provider Manager health and circuit-breaker state as
// Prometheus gauges/counters. It is injected as an optional
// collaborator rather than registered through package-level globals,
// so multiple Managers in one process never collide on metric names.
type Metrics struct {
	circuitState   *prometheus.GaugeVec
	health         *prometheus.GaugeVec
	selections     *prometheus.CounterVec
	rateLimitWaits prometheus.Histogram
	failovers      *prometheus.CounterVec
}

// NewMetrics creates and registers Provider Manager metrics on reg.
// Pass prometheus.NewRegistry() in tests to avoid polluting the
// default global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		circuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "harness_provider_circuit_state",
			Help: "Circuit breaker state per provider (0=closed, 1=half_open, 2=open).",
		}, []string{"provider"}),
		health: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "harness_provider_health",
			Help: "Derived provider health (0=healthy, 1=degraded, 2=unhealthy).",
		}, []string{"provider"}),
		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harness_provider_selections_total",
			Help: "Count of times a provider was selected for execution.",
		}, []string{"provider"}),
		rateLimitWaits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "harness_rate_limit_wait_seconds",
			Help:    "Observed wait duration when the harness had to block for a rate limit reset.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		failovers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harness_provider_failovers_total",
			Help: "Count of provider-to-provider failovers.",
		}, []string{"from", "to"}),
	}
	if reg != nil {
		reg.MustRegister(m.circuitState, m.health, m.selections, m.rateLimitWaits, m.failovers)
	}
	return m
}

func circuitStateValue(s CircuitState) float64 {
	switch s {
	case CircuitClosed:
		return 0
	case CircuitHalfOpen:
		return 1
	case CircuitOpen:
		return 2
	default:
		return -1
	}
}

func (m *Metrics) observeCircuitState(provider string, s CircuitState) {
	if m == nil {
		return
	}
	m.circuitState.WithLabelValues(provider).Set(circuitStateValue(s))
}

func healthValue(h Health) float64 {
	switch h {
	case HealthHealthy:
		return 0
	case HealthDegraded:
		return 1
	case HealthUnhealthy:
		return 2
	default:
		return -1
	}
}

func (m *Metrics) observeHealth(provider string, h Health) {
	if m == nil {
		return
	}
	m.health.WithLabelValues(provider).Set(healthValue(h))
}

func (m *Metrics) observeSelection(provider string) {
	if m == nil {
		return
	}
	m.selections.WithLabelValues(provider).Inc()
}

func (m *Metrics) observeFailover(from, to string) {
	if m == nil {
		return
	}
	m.failovers.WithLabelValues(from, to).Inc()
}

func (m *Metrics) observeRateLimitWait(seconds float64) {
	if m == nil {
		return
	}
	m.rateLimitWaits.Observe(seconds)
}
