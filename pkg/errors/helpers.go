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

package errors

import "errors"

// As is a thin re-export of errors.As so callers only need to import
// this package when working with harness-specific error types.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is a thin re-export of errors.Is.
func Is(err, target error) bool { return errors.Is(err, target) }

// IsRetryable reports whether err is one of the harness error types that
// are inherently safe to retry without operator intervention.
func IsRetryable(err error) bool {
	var rle *RateLimitError
	if As(err, &rle) {
		return true
	}
	var te *TimeoutError
	if As(err, &te) {
		return true
	}
	var pe *ProviderError
	if As(err, &pe) {
		return pe.StatusCode >= 500 || pe.StatusCode == 429
	}
	return false
}
