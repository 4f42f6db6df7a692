// Copyright 2025 Third Eye
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

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// HTTPProvider talks to any OpenAI-compatible chat completions endpoint
// (OpenAI itself, Anthropic's and local proxies that speak the same
// wire shape).
type HTTPProvider struct {
	name       string
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
	health     *HealthChecker
}

// NewHTTPProvider wires an OpenAI-compatible provider named name.
func NewHTTPProvider(name, baseURL, apiKey, model string, timeout time.Duration, perCallLimit rate.Limit) *HTTPProvider {
	p := &HTTPProvider{
		name:       name,
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		limiter:    rate.NewLimiter(perCallLimit, 1),
	}
	p.health = NewHealthChecker(30*time.Second, p.probe)
	return p
}

func (p *HTTPProvider) Name() string { return p.name }

func (p *HTTPProvider) Capabilities() []string {
	return []string{"complete", "chat"}
}

func (p *HTTPProvider) IsHealthy() bool {
	return p.health.IsHealthy()
}

func (p *HTTPProvider) probe() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

type chatCompletionRequest struct {
	Model       string                 `json:"model"`
	Messages    []chatMessage          `json:"messages"`
	MaxTokens   int                    `json:"max_tokens,omitempty"`
	Temperature float64                `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (p *HTTPProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, &Error{Provider: p.name, Class: ClassNetwork, Cause: err}
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	body := chatCompletionRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Provider: p.name, Class: ClassNetwork, Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Provider: p.name, Class: ClassNetwork, Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	start := time.Now()
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.health.Invalidate()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &Error{Provider: p.name, Class: ClassTimeout, Cause: err}
		}
		return nil, &Error{Provider: p.name, Class: ClassNetwork, Cause: err}
	}
	defer resp.Body.Close()

	if classErr := classifyHTTPStatus(p.name, resp.StatusCode); classErr != nil {
		p.health.Invalidate()
		return nil, classErr
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Provider: p.name, Class: ClassNetwork, Cause: err}
	}
	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &Error{Provider: p.name, Class: ClassNetwork, Cause: err}
	}
	if len(parsed.Choices) == 0 {
		return nil, &Error{Provider: p.name, Class: ClassNetwork, Cause: fmt.Errorf("empty choices in response")}
	}

	return &Response{
		Text:         parsed.Choices[0].Message.Content,
		Model:        model,
		ResponseTime: time.Since(start),
		Metadata:     map[string]interface{}{"provider": p.name},
	}, nil
}

func classifyHTTPStatus(name string, status int) *Error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Error{Provider: name, Class: ClassAuth, Cause: fmt.Errorf("http status %d", status)}
	case status == http.StatusTooManyRequests:
		return &Error{Provider: name, Class: ClassRateLimited, Cause: fmt.Errorf("http status %d", status)}
	case status >= 500:
		return &Error{Provider: name, Class: ClassUpstream5xx, Cause: fmt.Errorf("http status %d", status)}
	default:
		return &Error{Provider: name, Class: ClassNetwork, Cause: fmt.Errorf("http status %d", status)}
	}
}
