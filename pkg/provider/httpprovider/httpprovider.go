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

// Package httpprovider implements pkg/provider.Provider over a generic
// JSON chat-completion HTTP API, the shape shared by the usage-based
// and subscription AI-agent providers named in the harness's provider
// config (an Anthropic- or OpenAI-compatible /chat/completions
// endpoint).
package httpprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/viamin/aidp-sub001/pkg/errors"
	"github.com/viamin/aidp-sub001/pkg/httpclient"
	"github.com/viamin/aidp-sub001/pkg/provider"
)

// Config configures one HTTP-based provider instance.
type Config struct {
	Name       string
	BaseURL    string
	APIKey     string
	AuthHeader string // default "Authorization"; Anthropic-style endpoints use "x-api-key"
	Models     []provider.ModelInfo
	HTTPConfig httpclient.Config // no UserAgent (e.g. the zero value) selects httpclient.DefaultConfig() with a 120s timeout and a per-provider User-Agent

	// RequestsPerSecond self-throttles outbound calls so this harness
	// never trips the remote provider's own rate limiter. Zero disables
	// throttling (the default).
	RequestsPerSecond float64
	Burst             int
}

// Provider sends chat-completion requests over HTTP and adapts the
// response into pkg/provider.Response.
type Provider struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

// New builds a Provider from cfg, validating cfg.HTTPConfig via the
// shared httpclient factory.
func New(cfg Config) (*Provider, error) {
	if cfg.Name == "" {
		return nil, &errors.ConfigError{Reason: "httpprovider: name is required"}
	}
	if cfg.BaseURL == "" {
		return nil, &errors.ConfigError{Reason: "httpprovider: base_url is required"}
	}
	if cfg.AuthHeader == "" {
		cfg.AuthHeader = "Authorization"
	}

	httpCfg := cfg.HTTPConfig
	if httpCfg.UserAgent == "" {
		httpCfg = httpclient.DefaultConfig()
		httpCfg.Timeout = 120 * time.Second
		httpCfg.UserAgent = fmt.Sprintf("aidp-harness-%s/1.0", cfg.Name)
	}
	httpCfg.ProviderName = cfg.Name
	if !headerListed(httpCfg.SensitiveHeaders, cfg.AuthHeader) {
		httpCfg.SensitiveHeaders = append(httpCfg.SensitiveHeaders, cfg.AuthHeader)
	}

	client, err := httpclient.New(httpCfg)
	if err != nil {
		return nil, fmt.Errorf("building http client for provider %s: %w", cfg.Name, err)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Provider{cfg: cfg, client: client, limiter: limiter}, nil
}

// CredentialKey is the Credentials map key New reads the API key from
// when constructed via Factory.
const CredentialKey = "api_key"

// Factory adapts New to pkg/provider.Factory so it can be registered
// under Registry.RegisterFactory and activated with credentials read
// from the environment (the config's auth.api_key_env).
func Factory(cfg Config) provider.Factory {
	return func(creds provider.Credentials) (provider.Provider, error) {
		cfg.APIKey = creds[CredentialKey]
		return New(cfg)
	}
}

// headerListed reports whether name already appears in headers,
// case-insensitively.
func headerListed(headers []string, name string) bool {
	for _, h := range headers {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}

func (p *Provider) Name() string                 { return p.cfg.Name }
func (p *Provider) Type() provider.Type          { return provider.TypeUsageBased }
func (p *Provider) Models() []provider.ModelInfo { return p.cfg.Models }

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Output string `json:"output"`
	Usage  struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Execute sends req as a single-user-message chat completion and
// returns the raw Response. Non-2xx responses are returned as
// *errors.ProviderError so the Error Handler's text-based
// classification can recognize rate limits and auth failures from the
// error string alone.
func (p *Provider) Execute(ctx context.Context, req provider.Request) (*provider.Response, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, &errors.ProviderError{Provider: p.cfg.Name, Message: fmt.Sprintf("rate limiter wait: %v", err)}
		}
	}

	body, err := json.Marshal(chatRequest{
		Model:    req.Model,
		Messages: []chatMessage{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return nil, &errors.ProviderError{Provider: p.cfg.Name, Message: fmt.Sprintf("marshaling request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &errors.ProviderError{Provider: p.cfg.Name, Message: fmt.Sprintf("building request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.AuthHeader == "Authorization" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	} else {
		httpReq.Header.Set(p.cfg.AuthHeader, p.cfg.APIKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &errors.ProviderError{Provider: p.cfg.Name, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errors.ProviderError{Provider: p.cfg.Name, StatusCode: resp.StatusCode, Message: fmt.Sprintf("reading response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp chatErrorResponse
		message := string(respBody)
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			message = errResp.Error.Message
		}
		return nil, &errors.ProviderError{Provider: p.cfg.Name, StatusCode: resp.StatusCode, Message: message}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &errors.ProviderError{Provider: p.cfg.Name, StatusCode: resp.StatusCode, Message: fmt.Sprintf("parsing response: %v", err)}
	}

	return &provider.Response{
		Output:     parsed.Output,
		StatusCode: resp.StatusCode,
		Usage: provider.TokenUsage{
			InputTokens:  parsed.Usage.InputTokens,
			OutputTokens: parsed.Usage.OutputTokens,
		},
	}, nil
}
