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
	"log/slog"
	"time"

	"github.com/viamin/aidp-sub001/pkg/condition"
	harnesserrors "github.com/viamin/aidp-sub001/pkg/errors"
	"github.com/viamin/aidp-sub001/pkg/provider"
)

// StepAction is the step execution wrapped by ExecuteWithRetry.
type StepAction func(ctx context.Context) (StepResult, error)

// ErrorHandler wraps a step action with classification-driven recovery
// and a bounded retry budget, rotating providers through the Provider
// Manager when a failure calls for it.
type ErrorHandler struct {
	manager    *provider.Manager
	maxRetries int
	logger     *slog.Logger

	// now and sleep are overridable for deterministic tests; they
	// default to time.Now and time.Sleep.
	now   func() time.Time
	sleep func(context.Context, time.Duration)

	// onRateLimitWait, if set, is notified before the handler blocks
	// waiting for a rate limit to clear with no alternate provider
	// available. The Runner uses it to drive a Display countdown.
	onRateLimitWait func(provider string, resetAt time.Time)
}

// NewErrorHandler creates an ErrorHandler bounded by maxRetries
// non-rate-limit retries; rate-limit and quota waits don't count
// against the budget.
func NewErrorHandler(manager *provider.Manager, maxRetries int, logger *slog.Logger) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		manager:    manager,
		maxRetries: maxRetries,
		logger:     logger,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// ExecuteWithRetry repeatedly invokes action, recovering from
// classified errors and rate-limited results. Attempts persist across
// provider switches; exceeding maxRetries returns an
// *errors.EscalationError for the Runner to surface.
func (h *ErrorHandler) ExecuteWithRetry(ctx context.Context, stepName string, action StepAction) (StepResult, error) {
	attempts := 0

	for {
		result, err := action(ctx)
		if err == nil && !result.RateLimited {
			return result, nil
		}

		if err == nil && result.RateLimited {
			if waitErr := h.handleRateLimit(ctx, result, "rate_limit"); waitErr != nil {
				return result, waitErr
			}
			continue
		}

		classification := condition.ClassifyError(err)
		switch classification.Kind {
		case condition.ErrorRateLimit, condition.ErrorQuota:
			if waitErr := h.handleRateLimit(ctx, result, string(classification.Kind)); waitErr != nil {
				return result, waitErr
			}
			continue

		case condition.ErrorAuth, condition.ErrorPermission, condition.ErrorFatal:
			h.logger.Error("non-retryable error, surfacing to runner", "step", stepName, "kind", classification.Kind, "error", err)
			return result, err

		case condition.ErrorInvalidInput:
			h.logger.Error("invalid input, surfacing to runner", "step", stepName, "error", err)
			return result, err

		default: // timeout, network, transient
			attempts++
			if attempts > h.maxRetries {
				return result, &harnesserrors.EscalationError{
					Step:   stepName,
					Kind:   string(classification.Kind),
					Reason: "max_retries exceeded",
					Cause:  err,
				}
			}
			delay := condition.RetryDelayForError(classification.Kind, attempts)
			h.logger.Warn("retrying step after transient error", "step", stepName, "attempt", attempts, "delay", delay, "error", err)
			h.sleep(ctx, delay)
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
		}
	}
}

// handleRateLimit marks the current provider rate-limited, tries to
// switch, and if no provider qualifies, waits until the earliest reset
// time. Does not count against maxRetries.
func (h *ErrorHandler) handleRateLimit(ctx context.Context, result StepResult, reasonKind string) error {
	now := h.now()
	current := h.manager.CurrentProvider()

	info, ok := condition.ExtractRateLimitInfo(condition.Result{
		Output:     result.Output,
		Error:      result.Error,
		StatusCode: result.StatusCode,
		Message:    result.Message,
	}, current, now)
	if !ok {
		info = condition.RateLimitInfo{DetectedAt: now, ResetTime: now.Add(60 * time.Second), LimitType: condition.LimitGeneral}
	}
	if reasonKind == "quota" {
		// Quota exhaustion recovers on a longer horizon than a
		// requests-per-minute limit.
		info.ResetTime = now.Add(10 * time.Minute)
	}

	h.manager.MarkRateLimited(current, provider.RateLimitInfo{
		Provider:   current,
		DetectedAt: info.DetectedAt,
		ResetTime:  info.ResetTime,
		RetryAfter: info.RetryAfter,
		LimitType:  provider.LimitType(info.LimitType),
		Message:    info.Message,
	})

	if _, switched := h.manager.SwitchProvider(now); switched {
		h.logger.Info("switched provider after rate limit", "from", current, "reason", reasonKind)
		return nil
	}

	resetAt, any := h.manager.NextResetTime(now)
	if !any {
		return &harnesserrors.RateLimitError{Provider: current, Message: "all providers rate-limited with no reset time", ResetTime: now}
	}
	wait := resetAt.Sub(now)
	if wait < 0 {
		wait = 0
	}
	h.logger.Info("waiting for rate limit reset, no alternate provider available", "provider", current, "wait", wait)
	if h.onRateLimitWait != nil {
		h.onRateLimitWait(current, resetAt)
	}
	h.sleep(ctx, wait)
	return ctx.Err()
}
