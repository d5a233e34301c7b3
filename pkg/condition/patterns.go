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

import "regexp"

// ci compiles a case-insensitive pattern, panicking on a malformed
// literal; these are fixed at init time, never user input.
func ci(pattern string) *regexp.Regexp {
	return regexp.MustCompile("(?i)" + pattern)
}

var commonRateLimitPatterns = []*regexp.Regexp{
	ci(`rate.?limit`),
	ci(`too many requests`),
	ci(`quota exceeded`),
	ci(`throttl`),
	ci(`try again later`),
	ci(`slow down`),
}

// providerRateLimitPatterns holds the provider-specific rate-limit
// phrasing checked in addition to commonRateLimitPatterns when a
// provider name is supplied.
var providerRateLimitPatterns = map[string][]*regexp.Regexp{
	"anthropic": {
		ci(`requests per minute`),
		ci(`overloaded`),
	},
	"openai": {
		ci(`tokens per minute`),
		ci(`rate_limit_exceeded`),
	},
	"google": {
		ci(`quota`),
		ci(`resource.?exhausted`),
	},
	"cursor": {
		ci(`package limit`),
		ci(`usage limit`),
	},
}

// limitTypePatterns maps provider-specific phrasing to LimitType using
// a first-match-wins resolution order (provider-specific, then
// general).
var limitTypePatterns = map[string][]struct {
	pattern *regexp.Regexp
	kind    LimitType
}{
	"anthropic": {
		{ci(`requests per minute`), LimitRequestsPerMinute},
	},
	"openai": {
		{ci(`tokens per minute`), LimitTokensPerMinute},
	},
	"google": {
		{ci(`quota`), LimitQuotaExceeded},
	},
	"cursor": {
		{ci(`package limit`), LimitPackageLimit},
	},
}

var (
	resetInSecondsPattern   = ci(`(?:reset in|retry after|wait)\s+(\d+)\s+second`)
	resetAtISOPattern       = ci(`reset at\s+(\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2})`)
)

var feedbackPatterns = []*regexp.Regexp{
	ci(`please provide`),
	ci(`what would you like`),
	ci(`can you clarify`),
	ci(`waiting for`),
	ci(`need input`),
}

var questionSentencePattern = ci(`[^.?!\n]*\?`)
var numberedQuestionPattern = regexp.MustCompile(`(?m)^\s*(\d+)[.)]\s*(.+?\?)\s*$`)

var (
	fileInputPattern    = ci(`file|attach`)
	emailInputPattern   = ci(`email`)
	urlInputPattern     = ci(`url|link`)
	pathInputPattern    = ci(`directory|path`)
	numberInputPattern  = ci(`count|many|amount|number`)
	booleanInputPattern = ci(`confirm|yes.?or.?no|should`)
)

var (
	urgencyHighPattern   = ci(`urgent|critical|important`)
	urgencyMediumPattern = ci(`please|can you|soon`)
	urgencyLowPattern    = ci(`when you have time`)
)

var (
	feedbackClarifyPattern      = ci(`clarify`)
	feedbackChoicesPattern      = ci(`which|option`)
	feedbackConfirmationPattern = ci(`is this correct`)
	feedbackFilePattern         = ci(`upload|file`)
)

var (
	questionWhatIsPattern      = ci(`what is`)
	questionWhichPattern       = ci(`which`)
	questionPermissionPattern  = ci(`should i|should we|can i|can we`)
	questionConfirmPattern     = ci(`is this|does this`)
	questionRequestPattern     = ci(`can you|could you`)
	questionQuantityPattern    = ci(`how many|how much`)
	questionWhenPattern        = ci(`\bwhen\b`)
	questionWherePattern       = ci(`\bwhere\b`)
	questionWhyPattern         = ci(`\bwhy\b`)
)

var (
	completionHighPatterns = []string{
		"all steps completed",
		"successfully completed",
		"finished successfully",
	}
	completionMediumPatterns = []string{"complete", "done"}
	completionLowPatterns    = []string{"end", "finish"}
	summaryPattern           = ci(`summary`)
	deliverablePattern       = ci(`generated|saved to|report`)
	statusCompletePattern    = ci(`status:\s*complete`)
	almostDonePattern        = ci(`almost done`)
)

var (
	waitingForInputPattern = ci(`waiting for user input`)
	hasErrorsPattern       = ci(`error occurred|error`)
	nextActionPattern      = ci(`next step`)
)

var (
	rateLimitErrPattern    = ci(`rate.?limit|too many requests|429`)
	timeoutErrPattern      = ci(`timeout|timed out|deadline exceeded`)
	networkErrPattern      = ci(`network|connection refused|connection reset|dial tcp|no route to host`)
	authErrPattern         = ci(`unauthorized|invalid api key|authentication failed|401`)
	permissionErrPattern   = ci(`forbidden|permission denied|403`)
	quotaErrPattern        = ci(`quota exceeded|insufficient quota|billing`)
	invalidInputErrPattern = ci(`invalid input|bad request|validation failed|400`)
	fatalErrPattern        = ci(`panic|fatal|out of memory|corrupt`)
)
