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

// Package condition implements the harness's stateless response
// classifier: rate-limit/feedback/completion detection and error
// classification, operating purely on the text and metadata of a step
// result.
package condition

import "time"

// Result is the subset of a step outcome the detector inspects. Any
// field may be zero-valued; detectors degrade gracefully to "no match"
// rather than erroring on missing data.
type Result struct {
	Output     string
	Error      string
	StatusCode int
	Message    string
}

// Progress summarizes a Mode Runner's step completion state, used by
// the completion detectors.
type Progress struct {
	CompletedSteps int
	TotalSteps     int
}

func (p Progress) ratio() float64 {
	if p.TotalSteps <= 0 {
		return 0
	}
	return float64(p.CompletedSteps) / float64(p.TotalSteps)
}

// LimitType enumerates the kinds of rate limit a provider may report.
type LimitType string

const (
	LimitRequestsPerMinute LimitType = "requests_per_minute"
	LimitTokensPerMinute   LimitType = "tokens_per_minute"
	LimitQuotaExceeded     LimitType = "quota_exceeded"
	LimitPackageLimit      LimitType = "package_limit"
	LimitGeneral           LimitType = "general_rate_limit"
)

// RateLimitInfo describes a detected rate limit, ready to hand to the
// Provider Manager's mark_rate_limited.
type RateLimitInfo struct {
	DetectedAt   time.Time
	ResetTime    time.Time
	RetryAfter   time.Duration
	LimitType    LimitType
	Message      string
}

// InputType classifies the expected answer shape for an extracted
// question.
type InputType string

const (
	InputText    InputType = "text"
	InputNumber  InputType = "number"
	InputBoolean InputType = "boolean"
	InputEmail   InputType = "email"
	InputURL     InputType = "url"
	InputFile    InputType = "file"
	InputPath    InputType = "path"
	InputChoice  InputType = "choice"
)

// Urgency classifies how soon a question needs an answer.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// FeedbackType buckets why a question was asked.
type FeedbackType string

const (
	FeedbackClarification FeedbackType = "clarification"
	FeedbackChoices       FeedbackType = "choices"
	FeedbackConfirmation  FeedbackType = "confirmation"
	FeedbackFileRequest   FeedbackType = "file_requests"
	FeedbackGeneral       FeedbackType = "general"
)

// QuestionType further classifies intent, independent of FeedbackType.
type QuestionType string

const (
	QuestionInformation QuestionType = "information"
	QuestionChoice      QuestionType = "choice"
	QuestionPermission  QuestionType = "permission"
	QuestionConfirm     QuestionType = "confirmation"
	QuestionRequest     QuestionType = "request"
	QuestionQuantity    QuestionType = "quantity"
	QuestionTime        QuestionType = "time"
	QuestionLocation    QuestionType = "location"
	QuestionExplanation QuestionType = "explanation"
	QuestionGeneral     QuestionType = "general"
)

// Question is one extracted, structured question awaiting an answer.
// Number is 1-based and unique within a single extraction batch.
type Question struct {
	Number       int
	Text         string
	InputType    InputType
	Urgency      Urgency
	FeedbackType FeedbackType
	QuestionType QuestionType
	Required     bool
	Default      string
	Choices      []string
}

// CompletionType names which rule decided a response was complete.
type CompletionType string

const (
	CompletionAllStepsCompleted     CompletionType = "all_steps_completed"
	CompletionExplicitHigh          CompletionType = "explicit_high_confidence"
	CompletionExplicitMedium        CompletionType = "explicit_medium_confidence"
	CompletionExplicitLow           CompletionType = "explicit_low_confidence"
	CompletionImplicitSummary       CompletionType = "implicit_summary"
	CompletionImplicitDeliverable   CompletionType = "implicit_deliverable"
	CompletionImplicitStatus        CompletionType = "implicit_status"
	CompletionImplicitHighProgress  CompletionType = "implicit_high_progress"
)

// ProgressStatus is the partial-completion bucket assigned when a
// response isn't yet a finished result.
type ProgressStatus string

const (
	StatusAllStepsCompleted ProgressStatus = "all_steps_completed"
	StatusNearCompletion    ProgressStatus = "near_completion"
	StatusHalfComplete      ProgressStatus = "half_complete"
	StatusEarlyStage        ProgressStatus = "early_stage"
	StatusJustStarted       ProgressStatus = "just_started"
	StatusHasNextActions    ProgressStatus = "has_next_actions"
	StatusWaitingForInput   ProgressStatus = "waiting_for_input"
	StatusHasErrors         ProgressStatus = "has_errors"
	StatusInProgress        ProgressStatus = "in_progress"
)

// NextAction names the recommended follow-up for a ProgressStatus.
type NextAction string

const (
	ActionCollectUserInput     NextAction = "collect_user_input"
	ActionHandleErrors         NextAction = "handle_errors"
	ActionContinueExecution    NextAction = "continue_execution"
	ActionContinueToComplete   NextAction = "continue_to_completion"
)

// CompletionInfo is the full verdict produced per response.
type CompletionInfo struct {
	IsComplete     bool
	CompletionType CompletionType
	Confidence     float64
	Indicators     []string
	ProgressStatus ProgressStatus
	NextActions    []NextAction
}

// ErrorKind is the harness-wide error taxonomy.
type ErrorKind string

const (
	ErrorRateLimit    ErrorKind = "rate_limit"
	ErrorTimeout      ErrorKind = "timeout"
	ErrorNetwork      ErrorKind = "network"
	ErrorAuth         ErrorKind = "auth"
	ErrorPermission   ErrorKind = "permission"
	ErrorQuota        ErrorKind = "quota"
	ErrorInvalidInput ErrorKind = "invalid_input"
	ErrorTransient    ErrorKind = "transient"
	ErrorFatal        ErrorKind = "fatal"
)

// RecommendedAction is the Error Handler's recovery directive.
type RecommendedAction string

const (
	ActionRetry          RecommendedAction = "retry"
	ActionSwitchProvider RecommendedAction = "switch_provider"
	ActionWait           RecommendedAction = "wait"
	ActionFail           RecommendedAction = "fail"
	ActionEscalate       RecommendedAction = "escalate"
)

// ErrorClassification is the verdict classify_error produces.
type ErrorClassification struct {
	Kind               ErrorKind
	Retryable          bool
	RecommendedAction  RecommendedAction
	Confidence         float64
	Reasoning          string
}
