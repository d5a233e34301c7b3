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

package condition

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name     string
		result   Result
		provider string
		want     bool
	}{
		{"status 429", Result{StatusCode: 429}, "", true},
		{"status 503", Result{StatusCode: 503}, "", true},
		{"common pattern in output", Result{Output: "Error: rate limit exceeded"}, "", true},
		{"anthropic specific", Result{Message: "requests per minute exceeded"}, "anthropic", true},
		{"cursor specific", Result{Message: "package limit reached"}, "cursor", true},
		{"no match", Result{Output: "all good"}, "openai", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRateLimited(tt.result, tt.provider))
		})
	}
}

func TestExtractRateLimitInfo_AgreesWithIsRateLimited(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	limited := Result{Output: "rate limit exceeded, retry after 30 seconds"}
	info, ok := ExtractRateLimitInfo(limited, "", now)
	require.True(t, ok)
	assert.Equal(t, now.Add(30*time.Second), info.ResetTime)
	assert.Equal(t, 30*time.Second, info.RetryAfter)

	notLimited := Result{Output: "everything is fine"}
	_, ok = ExtractRateLimitInfo(notLimited, "", now)
	assert.False(t, ok)
}

func TestExtractRateLimitInfo_DefaultsAndISO(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	defaulted := Result{Output: "rate limit exceeded"}
	info, ok := ExtractRateLimitInfo(defaulted, "", now)
	require.True(t, ok)
	assert.Equal(t, now.Add(60*time.Second), info.ResetTime)

	iso := Result{Output: "rate limit exceeded, reset at 2026-01-01 01:00:00"}
	info, ok = ExtractRateLimitInfo(iso, "", now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC), info.ResetTime)
}

func TestExtractRateLimitInfo_LimitType(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		result   Result
		provider string
		want     LimitType
	}{
		{"anthropic requests per minute", Result{Output: "rate limit: requests per minute exceeded"}, "anthropic", LimitRequestsPerMinute},
		{"openai tokens per minute", Result{Output: "rate limit: tokens per minute exceeded"}, "openai", LimitTokensPerMinute},
		{"google quota", Result{Output: "rate limit: quota exceeded"}, "google", LimitQuotaExceeded},
		{"cursor package limit", Result{Output: "rate limit: package limit reached"}, "cursor", LimitPackageLimit},
		{"no provider falls back to general", Result{Output: "rate limit exceeded"}, "", LimitGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := ExtractRateLimitInfo(tt.result, tt.provider, now)
			require.True(t, ok)
			assert.Equal(t, tt.want, info.LimitType)
		})
	}
}

func TestNeedsUserFeedback(t *testing.T) {
	assert.True(t, NeedsUserFeedback(Result{Output: "Please provide the target directory."}))
	assert.True(t, NeedsUserFeedback(Result{Output: "Can you clarify what you mean?"}))
	assert.False(t, NeedsUserFeedback(Result{Output: "All steps completed successfully."}))
}

func TestExtractQuestions_Numbered(t *testing.T) {
	r := Result{Output: "1. What is the target directory?\n2. Should I overwrite existing files?"}
	qs := ExtractQuestions(r)
	require.Len(t, qs, 2)
	assert.Equal(t, 1, qs[0].Number)
	assert.Equal(t, QuestionInformation, qs[0].QuestionType)
	assert.Equal(t, QuestionPermission, qs[1].QuestionType)
}

func TestExtractQuestions_InputTypeHeuristics(t *testing.T) {
	tests := []struct {
		text string
		want InputType
	}{
		{"1. Please attach the log file?", InputFile},
		{"1. What is your email?", InputEmail},
		{"1. What is the repo url?", InputURL},
		{"1. What directory path should I use?", InputPath},
		{"1. How many retries should I allow?", InputNumber},
		{"1. Should I proceed?", InputBoolean},
		{"1. What do you want to name it?", InputText},
	}
	for _, tt := range tests {
		qs := ExtractQuestions(Result{Output: tt.text})
		require.Len(t, qs, 1)
		assert.Equal(t, tt.want, qs[0].InputType, tt.text)
	}
}

func TestIsWorkComplete_AllStepsCompleted(t *testing.T) {
	info := IsWorkComplete(Result{}, Progress{CompletedSteps: 3, TotalSteps: 3})
	assert.True(t, info.IsComplete)
	assert.Equal(t, 1.0, info.Confidence)
	assert.Equal(t, CompletionAllStepsCompleted, info.CompletionType)
}

func TestIsWorkComplete_ImplicitHighProgressReportsRealProgressStatus(t *testing.T) {
	info := IsWorkComplete(Result{Output: "Almost done with the work"}, Progress{CompletedSteps: 4, TotalSteps: 5})
	assert.True(t, info.IsComplete)
	assert.Equal(t, CompletionImplicitHighProgress, info.CompletionType)
	assert.Equal(t, 0.6, info.Confidence)
	assert.Equal(t, StatusNearCompletion, info.ProgressStatus)
	assert.Contains(t, info.NextActions, ActionContinueToComplete)
}

func TestIsWorkComplete_ExplicitPhrases(t *testing.T) {
	tests := []struct {
		name   string
		output string
		conf   float64
	}{
		{"high confidence", "All steps completed.", 0.9},
		{"medium confidence", "Task complete.", 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := IsWorkComplete(Result{Output: tt.output}, Progress{})
			assert.True(t, info.IsComplete)
			assert.Equal(t, tt.conf, info.Confidence)
			assert.GreaterOrEqual(t, info.Confidence, 0.5)
		})
	}
}

func TestIsWorkComplete_NotComplete(t *testing.T) {
	info := IsWorkComplete(Result{Output: "Still working on the first draft."}, Progress{CompletedSteps: 1, TotalSteps: 5})
	assert.False(t, info.IsComplete)
	assert.Equal(t, StatusEarlyStage, info.ProgressStatus)
}

func TestDetectPartialCompletion(t *testing.T) {
	status, action := DetectPartialCompletion(Result{Output: "waiting for user input"}, Progress{})
	assert.Equal(t, StatusWaitingForInput, status)
	assert.Equal(t, ActionCollectUserInput, action)

	status, action = DetectPartialCompletion(Result{Error: "boom"}, Progress{})
	assert.Equal(t, StatusHasErrors, status)
	assert.Equal(t, ActionHandleErrors, action)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantKind  ErrorKind
		wantRetry bool
	}{
		{"rate limit", errors.New("429: rate limit exceeded"), ErrorRateLimit, true},
		{"auth", errors.New("401 unauthorized: invalid api key"), ErrorAuth, false},
		{"permission", errors.New("403 forbidden"), ErrorPermission, false},
		{"timeout", errors.New("request timed out"), ErrorTimeout, true},
		{"network", errors.New("dial tcp: connection refused"), ErrorNetwork, true},
		{"quota", errors.New("quota exceeded for this billing period"), ErrorQuota, true},
		{"invalid input", errors.New("400 bad request: validation failed"), ErrorInvalidInput, false},
		{"fatal", errors.New("panic: runtime error"), ErrorFatal, false},
		{"unknown defaults transient", errors.New("something odd happened"), ErrorTransient, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ClassifyError(tt.err)
			assert.Equal(t, tt.wantKind, c.Kind)
			assert.Equal(t, tt.wantRetry, c.Retryable)
			if c.Retryable {
				assert.NotEqual(t, ActionFail, c.RecommendedAction)
			}
			if c.Kind == ErrorAuth {
				assert.False(t, c.Retryable)
			}
		})
	}
}

func TestRetryDelayForError(t *testing.T) {
	assert.Equal(t, 60*time.Second, RetryDelayForError(ErrorRateLimit, 1))
	assert.Equal(t, 2*time.Second, RetryDelayForError(ErrorTransient, 1))
	assert.Equal(t, 4*time.Second, RetryDelayForError(ErrorTransient, 2))
	assert.Equal(t, 300*time.Second, RetryDelayForError(ErrorTransient, 20))
	assert.Equal(t, time.Duration(0), RetryDelayForError(ErrorFatal, 1))
}
