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

package httpclient

import (
	"net/http"
	"net/url"
	"strings"
)

// sensitiveParams contains query parameter names that should be redacted from logs.
// These are matched case-insensitively.
var sensitiveParams = []string{
	"api_key",
	"apikey",
	"token",
	"password",
	"auth",
	"secret",
	"key",
	"credential",
}

// sanitizeURL removes sensitive query parameters from URLs before logging.
// This prevents leaking API keys, tokens, and other secrets in logs.
func sanitizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	// Parse query parameters
	q := u.Query()

	// Check each query parameter against sensitive list (case-insensitive)
	for param := range q {
		if isSensitiveParam(param) {
			q.Set(param, "[REDACTED]")
		}
	}

	// Rebuild URL with sanitized query
	safe := *u
	safe.RawQuery = q.Encode()
	return safe.String()
}

// isSensitiveParam checks if a parameter name matches the sensitive list.
// Comparison is case-insensitive to catch variants like "API_KEY", "Api_Key", etc.
func isSensitiveParam(param string) bool {
	lower := strings.ToLower(param)
	for _, sensitive := range sensitiveParams {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}

// sanitizeHeaders returns a redacted view of h suitable for logging: a
// provider's auth header (and anything else named in sensitive) comes
// back as "[REDACTED]", every other header passes through unchanged.
// This is what lets loggingTransport record which headers were present
// on a failed request, so an operator can tell a missing header from a
// rejected credential without the credential ever reaching a log line.
func sanitizeHeaders(h http.Header, sensitive []string) map[string]string {
	out := make(map[string]string, len(h))
	for name := range h {
		if headerIsSensitive(name, sensitive) {
			out[name] = "[REDACTED]"
			continue
		}
		out[name] = h.Get(name)
	}
	return out
}

func headerIsSensitive(name string, sensitive []string) bool {
	for _, s := range sensitive {
		if strings.EqualFold(name, s) {
			return true
		}
	}
	return false
}
