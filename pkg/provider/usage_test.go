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
	"github.com/stretchr/testify/require"
)

func TestUsageTracker_AggregateByProvider(t *testing.T) {
	tr := NewUsageTracker()
	now := time.Now()

	tr.Record(UsageRecord{Provider: "a", Usage: TokenUsage{InputTokens: 10, OutputTokens: 5}, Timestamp: now})
	tr.Record(UsageRecord{Provider: "a", Usage: TokenUsage{InputTokens: 20, OutputTokens: 10}, Timestamp: now})
	tr.Record(UsageRecord{Provider: "b", Usage: TokenUsage{InputTokens: 1, OutputTokens: 1}, Timestamp: now})

	agg := tr.AggregateByProvider()
	require.Contains(t, agg, "a")
	assert.Equal(t, 2, agg["a"].Requests)
	assert.Equal(t, 30, agg["a"].InputTokens)
	assert.Equal(t, 15, agg["a"].OutputTokens)
	assert.Equal(t, 1, agg["b"].Requests)
}

func TestUsageTracker_AggregateByUnderlyingService(t *testing.T) {
	tr := NewUsageTracker()
	now := time.Now()

	tr.Record(UsageRecord{Provider: "cursor", UnderlyingService: "anthropic", Usage: TokenUsage{InputTokens: 5}, Timestamp: now})
	tr.Record(UsageRecord{Provider: "direct-anthropic", Usage: TokenUsage{InputTokens: 9}, Timestamp: now})

	agg := tr.AggregateByUnderlyingService()
	require.Contains(t, agg, "anthropic")
	assert.Equal(t, 1, agg["anthropic"].Requests)
	assert.NotContains(t, agg, "direct-anthropic")
}

func TestManager_RecordUsageTagsUnderlyingService(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.AddProvider("cursor", 1, 1, nil, "anthropic"))

	tr := NewUsageTracker()
	m.RecordUsage(tr, "cursor", "claude-3", TokenUsage{InputTokens: 3, OutputTokens: 2}, time.Now())

	byService := tr.AggregateByUnderlyingService()
	assert.Equal(t, 1, byService["anthropic"].Requests)
}
