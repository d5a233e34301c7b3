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

package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	harnesserrors "github.com/viamin/aidp-sub001/pkg/errors"
	"github.com/viamin/aidp-sub001/pkg/provider"
)

func newTestErrorHandler(t *testing.T, maxRetries int) (*ErrorHandler, *provider.Manager) {
	t.Helper()
	mgr := newTestProviderManager(t)
	h := NewErrorHandler(mgr, maxRetries, nil)
	h.sleep = func(context.Context, time.Duration) {} // no real waiting in tests
	return h, mgr
}

func TestErrorHandler_SucceedsWithoutRetry(t *testing.T) {
	h, _ := newTestErrorHandler(t, 3)
	calls := 0
	result, err := h.ExecuteWithRetry(context.Background(), "step", func(context.Context) (StepResult, error) {
		calls++
		return StepResult{Completed: true, Output: "ok"}, nil
	})
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Equal(t, 1, calls)
}

func TestErrorHandler_RetriesTransientThenSucceeds(t *testing.T) {
	h, _ := newTestErrorHandler(t, 3)
	calls := 0
	result, err := h.ExecuteWithRetry(context.Background(), "step", func(context.Context) (StepResult, error) {
		calls++
		if calls < 3 {
			return StepResult{}, errors.New("connection reset by peer")
		}
		return StepResult{Completed: true}, nil
	})
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Equal(t, 3, calls)
}

func TestErrorHandler_EscalatesAfterMaxRetries(t *testing.T) {
	h, _ := newTestErrorHandler(t, 2)
	calls := 0
	_, err := h.ExecuteWithRetry(context.Background(), "step", func(context.Context) (StepResult, error) {
		calls++
		return StepResult{}, errors.New("network timeout")
	})
	require.Error(t, err)
	var esc *harnesserrors.EscalationError
	require.ErrorAs(t, err, &esc)
	assert.Equal(t, "step", esc.Step)
	assert.Equal(t, 3, calls) // initial attempt + 2 retries
}

func TestErrorHandler_AuthErrorSurfacesImmediatelyWithoutRetry(t *testing.T) {
	h, _ := newTestErrorHandler(t, 5)
	calls := 0
	_, err := h.ExecuteWithRetry(context.Background(), "step", func(context.Context) (StepResult, error) {
		calls++
		return StepResult{}, errors.New("401 unauthorized: invalid api key")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestErrorHandler_RateLimitedResultSwitchesProvider(t *testing.T) {
	h, mgr := newTestErrorHandler(t, 3)
	require.NoError(t, mgr.AddProvider("secondary", 5, 1, nil, ""))

	calls := 0
	result, err := h.ExecuteWithRetry(context.Background(), "step", func(context.Context) (StepResult, error) {
		calls++
		if calls == 1 {
			return StepResult{RateLimited: true, Message: "rate limit exceeded, retry after 30 seconds"}, nil
		}
		return StepResult{Completed: true}, nil
	})
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "secondary", mgr.CurrentProvider())
}

func TestErrorHandler_RateLimitWithNoAlternateWaitsThenRetries(t *testing.T) {
	h, _ := newTestErrorHandler(t, 3)

	waited := false
	h.sleep = func(context.Context, time.Duration) { waited = true }

	calls := 0
	result, err := h.ExecuteWithRetry(context.Background(), "step", func(context.Context) (StepResult, error) {
		calls++
		if calls == 1 {
			return StepResult{RateLimited: true}, nil
		}
		return StepResult{Completed: true}, nil
	})
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.True(t, waited, "handler should wait out the rate limit when no alternate provider qualifies")
}
