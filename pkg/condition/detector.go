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
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

func fields(r Result) []string {
	return []string{r.Output, r.Error, r.Message}
}

func anyMatch(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func anyFieldMatches(r Result, patterns []*regexp.Regexp) bool {
	for _, f := range fields(r) {
		if f == "" {
			continue
		}
		if anyMatch(patterns, f) {
			return true
		}
	}
	return false
}

// IsRateLimited reports whether result indicates the current request
// was rejected for exceeding a rate limit.
func IsRateLimited(r Result, provider string) bool {
	if r.StatusCode == 429 || r.StatusCode == 503 {
		return true
	}
	if anyFieldMatches(r, commonRateLimitPatterns) {
		return true
	}
	if provider != "" {
		if patterns, ok := providerRateLimitPatterns[strings.ToLower(provider)]; ok {
			if anyFieldMatches(r, patterns) {
				return true
			}
		}
	}
	return false
}

// ExtractRateLimitInfo returns the structured rate-limit detail for r,
// or ok=false if r does not describe a rate limit; this must agree
// exactly with IsRateLimited.
func ExtractRateLimitInfo(r Result, provider string, now time.Time) (RateLimitInfo, bool) {
	if !IsRateLimited(r, provider) {
		return RateLimitInfo{}, false
	}

	text := strings.Join(fields(r), " ")

	resetTime := now.Add(60 * time.Second)
	retryAfter := 60 * time.Second

	if m := resetInSecondsPattern.FindStringSubmatch(text); m != nil {
		var seconds int
		fmt.Sscanf(m[1], "%d", &seconds)
		resetTime = now.Add(time.Duration(seconds) * time.Second)
		retryAfter = time.Duration(seconds) * time.Second
	} else if m := resetAtISOPattern.FindStringSubmatch(text); m != nil {
		if t, err := time.Parse("2006-01-02 15:04:05", m[1]); err == nil {
			resetTime = t
			if d := t.Sub(now); d > 0 {
				retryAfter = d
			}
		}
	}

	limitType := LimitGeneral
	if provider != "" {
		if patterns, ok := limitTypePatterns[strings.ToLower(provider)]; ok {
			for _, p := range patterns {
				if p.pattern.MatchString(text) {
					limitType = p.kind
					break
				}
			}
		}
	}

	return RateLimitInfo{
		DetectedAt: now,
		ResetTime:  resetTime,
		RetryAfter: retryAfter,
		LimitType:  limitType,
		Message:    text,
	}, true
}

// NeedsUserFeedback reports whether result is asking the user a
// question rather than reporting completion or failure.
func NeedsUserFeedback(r Result) bool {
	return anyFieldMatches(r, feedbackPatterns) || questionSentencePattern.MatchString(r.Output)
}

func classifyInputType(text string) InputType {
	switch {
	case fileInputPattern.MatchString(text):
		return InputFile
	case emailInputPattern.MatchString(text):
		return InputEmail
	case urlInputPattern.MatchString(text):
		return InputURL
	case pathInputPattern.MatchString(text):
		return InputPath
	case numberInputPattern.MatchString(text):
		return InputNumber
	case booleanInputPattern.MatchString(text):
		return InputBoolean
	default:
		return InputText
	}
}

func classifyUrgency(text string) Urgency {
	switch {
	case urgencyHighPattern.MatchString(text):
		return UrgencyHigh
	case urgencyMediumPattern.MatchString(text):
		return UrgencyMedium
	case urgencyLowPattern.MatchString(text):
		return UrgencyLow
	default:
		return UrgencyLow
	}
}

func classifyFeedbackType(text string) FeedbackType {
	switch {
	case feedbackClarifyPattern.MatchString(text):
		return FeedbackClarification
	case feedbackChoicesPattern.MatchString(text):
		return FeedbackChoices
	case feedbackConfirmationPattern.MatchString(text):
		return FeedbackConfirmation
	case feedbackFilePattern.MatchString(text):
		return FeedbackFileRequest
	default:
		return FeedbackGeneral
	}
}

func classifyQuestionType(text string) QuestionType {
	switch {
	case questionWhatIsPattern.MatchString(text):
		return QuestionInformation
	case questionWhichPattern.MatchString(text):
		return QuestionChoice
	case questionPermissionPattern.MatchString(text):
		return QuestionPermission
	case questionConfirmPattern.MatchString(text):
		return QuestionConfirm
	case questionRequestPattern.MatchString(text):
		return QuestionRequest
	case questionQuantityPattern.MatchString(text):
		return QuestionQuantity
	case questionWhenPattern.MatchString(text):
		return QuestionTime
	case questionWherePattern.MatchString(text):
		return QuestionLocation
	case questionWhyPattern.MatchString(text):
		return QuestionExplanation
	default:
		return QuestionGeneral
	}
}

// ExtractQuestions parses numbered and free-form questions out of
// result's output.
func ExtractQuestions(r Result) []Question {
	seen := make(map[string]bool)
	var out []Question
	n := 0

	addQuestion := func(text string) {
		text = strings.TrimSpace(text)
		if text == "" || seen[text] {
			return
		}
		seen[text] = true
		n++
		out = append(out, Question{
			Number:       n,
			Text:         text,
			InputType:    classifyInputType(text),
			Urgency:      classifyUrgency(text),
			FeedbackType: classifyFeedbackType(text),
			QuestionType: classifyQuestionType(text),
			Required:     true,
		})
	}

	for _, m := range numberedQuestionPattern.FindAllStringSubmatch(r.Output, -1) {
		addQuestion(m[2])
	}
	if len(out) == 0 {
		for _, m := range questionSentencePattern.FindAllString(r.Output, -1) {
			addQuestion(m)
		}
	}
	return out
}

func confidenceOf(text string, patterns []string, conf float64) (float64, bool) {
	lower := strings.ToLower(text)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return conf, true
		}
	}
	return 0, false
}

// IsWorkComplete evaluates whether result represents a finished
// workflow by walking a ladder of completion rules. Indicators records
// which rule(s) fired, for diagnostics.
func IsWorkComplete(r Result, progress Progress) CompletionInfo {
	if progress.TotalSteps > 0 && progress.CompletedSteps == progress.TotalSteps {
		return CompletionInfo{
			IsComplete:     true,
			CompletionType: CompletionAllStepsCompleted,
			Confidence:     1.0,
			Indicators:     []string{"all_steps_completed"},
			ProgressStatus: StatusAllStepsCompleted,
		}
	}

	text := r.Output

	if conf, ok := confidenceOf(text, completionHighPatterns, 0.9); ok {
		return completionResult(CompletionExplicitHigh, conf, "explicit_high_phrase")
	}

	if progress.ratio() >= 0.8 && almostDonePattern.MatchString(text) {
		status, action := DetectPartialCompletion(r, progress)
		return CompletionInfo{
			IsComplete:     true,
			CompletionType: CompletionImplicitHighProgress,
			Confidence:     0.6,
			Indicators:     []string{"high_progress_phrasing"},
			ProgressStatus: status,
			NextActions:    []NextAction{action},
		}
	}

	if conf, ok := confidenceOf(text, completionMediumPatterns, 0.7); ok {
		return completionResult(CompletionExplicitMedium, conf, "explicit_medium_phrase")
	}

	if summaryPattern.MatchString(text) {
		return completionResult(CompletionImplicitSummary, 0.8, "summary_language")
	}
	if deliverablePattern.MatchString(text) {
		return completionResult(CompletionImplicitDeliverable, 0.8, "deliverable_language")
	}
	if statusCompletePattern.MatchString(text) {
		return completionResult(CompletionImplicitStatus, 0.7, "explicit_status_line")
	}

	if conf, ok := confidenceOf(text, completionLowPatterns, 0.5); ok {
		return completionResult(CompletionExplicitLow, conf, "explicit_low_phrase")
	}

	return CompletionInfo{IsComplete: false, ProgressStatus: detectProgressStatus(r, progress)}
}

func completionResult(kind CompletionType, conf float64, indicator string) CompletionInfo {
	return CompletionInfo{
		IsComplete:     true,
		CompletionType: kind,
		Confidence:     conf,
		Indicators:     []string{indicator},
		ProgressStatus: StatusAllStepsCompleted,
	}
}

func detectProgressStatus(r Result, progress Progress) ProgressStatus {
	switch {
	case waitingForInputPattern.MatchString(r.Output):
		return StatusWaitingForInput
	case hasErrorsPattern.MatchString(r.Output) || r.Error != "":
		return StatusHasErrors
	case nextActionPattern.MatchString(r.Output):
		return StatusHasNextActions
	}

	ratio := progress.ratio()
	switch {
	case ratio >= 0.8:
		return StatusNearCompletion
	case ratio >= 0.5:
		return StatusHalfComplete
	case ratio >= 0.2:
		return StatusEarlyStage
	default:
		return StatusJustStarted
	}
}

// DetectPartialCompletion classifies an in-progress (not yet complete)
// response into a ProgressStatus with its recommended NextAction.
func DetectPartialCompletion(r Result, progress Progress) (ProgressStatus, NextAction) {
	status := detectProgressStatus(r, progress)
	switch status {
	case StatusWaitingForInput:
		return status, ActionCollectUserInput
	case StatusHasErrors:
		return status, ActionHandleErrors
	case StatusNearCompletion, StatusHalfComplete:
		return status, ActionContinueToComplete
	default:
		return status, ActionContinueExecution
	}
}

// ClassifyError maps an error's text to an ErrorClassification using
// the harness-wide error taxonomy.
func ClassifyError(err error) ErrorClassification {
	if err == nil {
		return ErrorClassification{Kind: ErrorTransient, Retryable: true, RecommendedAction: ActionRetry, Confidence: 0}
	}
	text := err.Error()

	switch {
	case rateLimitErrPattern.MatchString(text):
		return ErrorClassification{Kind: ErrorRateLimit, Retryable: true, RecommendedAction: ActionSwitchProvider, Confidence: 0.9, Reasoning: "matched rate-limit pattern"}
	case authErrPattern.MatchString(text):
		return ErrorClassification{Kind: ErrorAuth, Retryable: false, RecommendedAction: ActionFail, Confidence: 0.9, Reasoning: "matched authentication failure pattern"}
	case permissionErrPattern.MatchString(text):
		return ErrorClassification{Kind: ErrorPermission, Retryable: false, RecommendedAction: ActionFail, Confidence: 0.9, Reasoning: "matched permission-denied pattern"}
	case quotaErrPattern.MatchString(text):
		return ErrorClassification{Kind: ErrorQuota, Retryable: true, RecommendedAction: ActionSwitchProvider, Confidence: 0.85, Reasoning: "matched quota pattern"}
	case timeoutErrPattern.MatchString(text):
		return ErrorClassification{Kind: ErrorTimeout, Retryable: true, RecommendedAction: ActionRetry, Confidence: 0.85, Reasoning: "matched timeout pattern"}
	case networkErrPattern.MatchString(text):
		return ErrorClassification{Kind: ErrorNetwork, Retryable: true, RecommendedAction: ActionRetry, Confidence: 0.8, Reasoning: "matched network pattern"}
	case invalidInputErrPattern.MatchString(text):
		return ErrorClassification{Kind: ErrorInvalidInput, Retryable: false, RecommendedAction: ActionFail, Confidence: 0.8, Reasoning: "matched invalid-input pattern"}
	case fatalErrPattern.MatchString(text):
		return ErrorClassification{Kind: ErrorFatal, Retryable: false, RecommendedAction: ActionEscalate, Confidence: 0.8, Reasoning: "matched fatal-error marker"}
	default:
		return ErrorClassification{Kind: ErrorTransient, Retryable: true, RecommendedAction: ActionRetry, Confidence: 0.4, Reasoning: "unrecognized error, defaulting to transient"}
	}
}

// RetryDelayForError returns the backoff duration before retrying an
// action that failed with classification kind, on the given attempt
// number (1-based).
func RetryDelayForError(kind ErrorKind, attempt int) time.Duration {
	switch kind {
	case ErrorRateLimit:
		return 60 * time.Second
	case ErrorTimeout, ErrorNetwork, ErrorTransient:
		seconds := math.Min(math.Pow(2, float64(attempt)), 300)
		return time.Duration(seconds) * time.Second
	default:
		return 0
	}
}
