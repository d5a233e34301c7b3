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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := newCircuitBreaker(3, 10*time.Second)
	now := time.Now()

	assert.Equal(t, CircuitClosed, cb.state("p1"))
	cb.recordFailure("p1", now)
	cb.recordFailure("p1", now)
	assert.Equal(t, CircuitClosed, cb.state("p1"))
	cb.recordFailure("p1", now)
	assert.Equal(t, CircuitOpen, cb.state("p1"))
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	cb := newCircuitBreaker(1, 10*time.Second)
	now := time.Now()

	cb.recordFailure("p1", now)
	assert.Equal(t, CircuitOpen, cb.state("p1"))

	assert.False(t, cb.allow("p1", now.Add(5*time.Second)))
	assert.Equal(t, CircuitOpen, cb.effectiveState("p1", now.Add(5*time.Second)))

	assert.Equal(t, CircuitHalfOpen, cb.effectiveState("p1", now.Add(11*time.Second)))
	assert.True(t, cb.allow("p1", now.Add(11*time.Second)))
	assert.Equal(t, CircuitHalfOpen, cb.state("p1"))
}

func TestCircuitBreaker_HalfOpenSingleProbe(t *testing.T) {
	cb := newCircuitBreaker(1, 10*time.Second)
	now := time.Now()
	cb.recordFailure("p1", now)

	assert.True(t, cb.allow("p1", now.Add(11*time.Second)))
	// a second concurrent probe while the first is still in flight is refused
	assert.False(t, cb.allow("p1", now.Add(12*time.Second)))
}

func TestCircuitBreaker_SuccessClosesFromHalfOpen(t *testing.T) {
	cb := newCircuitBreaker(1, 10*time.Second)
	now := time.Now()
	cb.recordFailure("p1", now)
	cb.allow("p1", now.Add(11*time.Second))

	cb.recordSuccess("p1")
	assert.Equal(t, CircuitClosed, cb.state("p1"))
	assert.Equal(t, 0, cb.failureCount("p1"))
}

func TestCircuitBreaker_FailureWhileHalfOpenReopens(t *testing.T) {
	cb := newCircuitBreaker(1, 10*time.Second)
	now := time.Now()
	cb.recordFailure("p1", now)
	cb.allow("p1", now.Add(11*time.Second))

	cb.recordFailure("p1", now.Add(12*time.Second))
	assert.Equal(t, CircuitOpen, cb.state("p1"))
}

func TestCircuitBreaker_StatusSnapshot(t *testing.T) {
	cb := newCircuitBreaker(1, 10*time.Second)
	now := time.Now()
	cb.recordFailure("p1", now)
	cb.recordSuccess("p2")

	status := cb.status()
	assert.Equal(t, CircuitOpen, status["p1"])
	assert.Equal(t, CircuitClosed, status["p2"])
}
