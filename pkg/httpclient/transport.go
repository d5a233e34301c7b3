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
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// loggingTransport wraps an http.RoundTripper to add:
// - Request logging with sanitized URLs
// - User-Agent header injection
// - Correlation ID propagation
// - Duration tracking
// - Provider-scoped, auth-header-redacted diagnostics on failure
type loggingTransport struct {
	base             http.RoundTripper
	userAgent        string
	providerName     string
	sensitiveHeaders []string
}

// newLoggingTransport creates a new logging transport that wraps the base transport.
func newLoggingTransport(base http.RoundTripper, cfg Config) *loggingTransport {
	if base == nil {
		base = http.DefaultTransport
	}

	return &loggingTransport{
		base:             base,
		userAgent:        cfg.UserAgent,
		providerName:     cfg.ProviderName,
		sensitiveHeaders: cfg.SensitiveHeaders,
	}
}

// RoundTrip implements http.RoundTripper.
// Logs all requests with method, URL (sanitized), status/error, and duration.
func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	// Set User-Agent header if not already set
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	// Propagate the active span's trace ID so a provider's own logs can
	// be correlated back to the step that issued the request.
	if sc := trace.SpanContextFromContext(req.Context()); sc.IsValid() {
		req.Header.Set("X-Trace-ID", sc.TraceID().String())
	}

	// Execute request
	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start).Milliseconds()

	// Sanitize URL for logging (remove sensitive query params)
	logURL := sanitizeURL(req.URL)

	// Log based on outcome. A transport-level failure or an HTTP error
	// status also gets the request's redacted headers attached, so an
	// operator can tell "the auth header was never sent" from "the
	// provider rejected the credential" without the credential itself
	// ever reaching the log.
	if err != nil {
		slog.Warn("http request failed",
			"method", req.Method,
			"url", logURL,
			"provider", t.providerName,
			"duration_ms", duration,
			"error", err.Error(),
			"headers", sanitizeHeaders(req.Header, t.sensitiveHeaders),
		)
	} else {
		level := slog.LevelDebug
		args := []any{
			"method", req.Method,
			"url", logURL,
			"provider", t.providerName,
			"status", resp.StatusCode,
			"duration_ms", duration,
		}
		if resp.StatusCode >= 400 {
			level = slog.LevelWarn
			args = append(args, "headers", sanitizeHeaders(req.Header, t.sensitiveHeaders))
		}
		slog.Log(req.Context(), level, "http request", args...)
	}

	return resp, err
}
