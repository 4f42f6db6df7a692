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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"golang.org/x/time/rate"
)

// bedrockModelFamily maps a Bedrock model id to the request/response
// envelope its family expects. Only the families Third Eye's routing
// ever targets are implemented; others fail fast with a classified
// network-layer error rather than silently miswrapping the prompt.
func bedrockModelFamily(model string) string {
	switch {
	case strings.Contains(model, "anthropic"):
		return "anthropic"
	case strings.Contains(model, "amazon"):
		return "amazon"
	case strings.Contains(model, "meta"):
		return "meta"
	case strings.Contains(model, "mistral"):
		return "mistral"
	default:
		return "unknown"
	}
}

// bedrockClient is the subset of *bedrockruntime.Client this package
// calls, so tests can substitute a fake without a live AWS endpoint.
type bedrockClient interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockProvider implements Provider over AWS Bedrock, authenticating
// via the AWS SDK's own request signing (no manual SigV4 here — the
// SDK client handles it).
type BedrockProvider struct {
	client  bedrockClient
	region  string
	model   string
	timeout time.Duration
	limiter *rate.Limiter

	mu      sync.Mutex
	healthy bool
}

// NewBedrockProvider wraps a bedrockClient (normally a
// *bedrockruntime.Client; tests substitute a fake). perCallLimit is the
// outbound rate.Limiter ceiling (requests/sec, burst 1). Unlike
// HTTPProvider, Bedrock has no lightweight probe endpoint, so health
// reflects the outcome of the most recent call directly, in the
// teacher's style, rather than a polled HealthChecker.
func NewBedrockProvider(client bedrockClient, region, model string, timeout time.Duration, perCallLimit rate.Limit) *BedrockProvider {
	return &BedrockProvider{
		client:  client,
		region:  region,
		model:   model,
		timeout: timeout,
		limiter: rate.NewLimiter(perCallLimit, 1),
		healthy: true,
	}
}

func (p *BedrockProvider) Name() string { return "bedrock" }

func (p *BedrockProvider) Capabilities() []string {
	return []string{"complete", "chat"}
}

func (p *BedrockProvider) IsHealthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.healthy
}

func (p *BedrockProvider) setHealthy(ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healthy = ok
}

func (p *BedrockProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, &Error{Provider: "bedrock", Class: ClassNetwork, Cause: err}
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	body, err := buildBedrockRequestBody(req, model)
	if err != nil {
		return nil, &Error{Provider: "bedrock", Class: ClassNetwork, Cause: err}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Provider: "bedrock", Class: ClassNetwork, Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		Body:        payload,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		p.setHealthy(false)
		return nil, classifyBedrockError(err)
	}
	p.setHealthy(true)

	text, parseErr := parseBedrockResponseBody(out.Body, model)
	if parseErr != nil {
		return nil, &Error{Provider: "bedrock", Class: ClassNetwork, Cause: parseErr}
	}

	return &Response{
		Text:         text,
		Model:        model,
		ResponseTime: time.Since(start),
		Metadata:     map[string]interface{}{"provider": "bedrock", "region": p.region},
	}, nil
}

func buildBedrockRequestBody(req Request, model string) (map[string]interface{}, error) {
	switch bedrockModelFamily(model) {
	case "anthropic":
		return map[string]interface{}{
			"anthropic_version": "bedrock-2023-05-31",
			"max_tokens":        req.MaxTokens,
			"temperature":       req.Temperature,
			"messages": []map[string]string{
				{"role": "user", "content": req.Prompt},
			},
		}, nil
	case "amazon":
		return map[string]interface{}{
			"inputText": req.Prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": req.MaxTokens,
				"temperature":   req.Temperature,
				"topP":          0.9,
			},
		}, nil
	case "meta":
		return map[string]interface{}{
			"prompt":      req.Prompt,
			"max_gen_len": req.MaxTokens,
			"temperature": req.Temperature,
			"top_p":       0.9,
		}, nil
	case "mistral":
		return map[string]interface{}{
			"prompt":      req.Prompt,
			"max_tokens":  req.MaxTokens,
			"temperature": req.Temperature,
			"top_p":       0.9,
		}, nil
	default:
		return nil, fmt.Errorf("bedrock: unsupported model family for %q", model)
	}
}

func parseBedrockResponseBody(body []byte, model string) (string, error) {
	var generic map[string]interface{}
	if err := json.Unmarshal(body, &generic); err != nil {
		return "", fmt.Errorf("bedrock: parse response: %w", err)
	}

	switch bedrockModelFamily(model) {
	case "anthropic":
		if content, ok := generic["content"].([]interface{}); ok && len(content) > 0 {
			if first, ok := content[0].(map[string]interface{}); ok {
				if text, ok := first["text"].(string); ok {
					return text, nil
				}
			}
		}
	case "amazon":
		if results, ok := generic["results"].([]interface{}); ok && len(results) > 0 {
			if first, ok := results[0].(map[string]interface{}); ok {
				if text, ok := first["outputText"].(string); ok {
					return text, nil
				}
			}
		}
	case "meta", "mistral":
		if text, ok := generic["generation"].(string); ok {
			return text, nil
		}
	}
	return "", fmt.Errorf("bedrock: unrecognized response shape for model family %q", bedrockModelFamily(model))
}

// classifyBedrockError maps an AWS SDK error into Third Eye's
// vendor-independent error classes.
func classifyBedrockError(err error) *Error {
	var class ErrorClass
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		class = ClassTimeout
	case strings.Contains(err.Error(), "ThrottlingException"), strings.Contains(err.Error(), "TooManyRequests"):
		class = ClassRateLimited
	case strings.Contains(err.Error(), "AccessDenied"), strings.Contains(err.Error(), "UnrecognizedClient"):
		class = ClassAuth
	case strings.Contains(err.Error(), "ServiceUnavailable"), strings.Contains(err.Error(), "InternalServerError"):
		class = ClassUpstream5xx
	default:
		class = ClassNetwork
	}
	return &Error{Provider: "bedrock", Class: class, Cause: err}
}
