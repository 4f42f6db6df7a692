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

package eyes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/thirdeye-mcp/thirdeye/internal/provider"
)

// RoutingDecision is the contract a routing call must return:
// eyes_needed in the order they should run, plus the model's
// rationale. The exact prompt sent to the provider is an
// implementation detail; only this output shape is load-bearing.
type RoutingDecision struct {
	EyesNeeded []string `json:"eyes_needed"`
	Reasoning  string   `json:"reasoning"`
}

// RoutingEye asks the Provider for an ordered Eye sequence. It is
// invoked by the Overseer directly (not through the Registry, since
// its output decides what the Registry runs next), but it also
// satisfies Eye so it can be health-checked and described uniformly.
type RoutingEye struct {
	Provider provider.Provider
}

func (e *RoutingEye) Describe() Capability {
	return Capability{Name: "routing", Version: "1", AcceptsWorkKinds: []string{"*"}}
}

func (e *RoutingEye) Health(_ context.Context) HealthStatus {
	return HealthStatus{Healthy: e.Provider.IsHealthy()}
}

// Invoke adapts the generic Eye contract to Route, returning the
// decision's eyes_needed and reasoning as entries of Result.Data for
// callers that only see Eyes through the Registry.
func (e *RoutingEye) Invoke(ctx context.Context, envelope Envelope) (*Result, error) {
	decision, err := e.Route(ctx, envelope)
	if err != nil {
		return nil, err
	}
	return &Result{
		Ok:   boolPtr(true),
		Code: "ROUTED",
		MD:   decision.Reasoning,
		Data: map[string]interface{}{"eyes_needed": decision.EyesNeeded, "reasoning": decision.Reasoning},
	}, nil
}

// Route builds a routing prompt from the envelope's intent, work
// kinds, and context summary, asks the Provider, and parses its
// {eyes_needed, reasoning} response.
func (e *RoutingEye) Route(ctx context.Context, envelope Envelope) (*RoutingDecision, error) {
	prompt := buildRoutingPrompt(envelope)

	resp, err := e.Provider.Complete(ctx, provider.Request{Prompt: prompt, MaxTokens: 512})
	if err != nil {
		return nil, err
	}

	var decision RoutingDecision
	if err := json.Unmarshal([]byte(resp.Text), &decision); err != nil {
		return nil, fmt.Errorf("routing: unparseable decision: %w", err)
	}
	return &decision, nil
}

func buildRoutingPrompt(envelope Envelope) string {
	var kinds []string
	for kind := range envelope.Work {
		kinds = append(kinds, kind)
	}
	var ctxKeys []string
	for key := range envelope.ContextInfo {
		ctxKeys = append(ctxKeys, key)
	}

	return fmt.Sprintf(
		"intent: %s\nwork_kinds: %s\ncontext_keys: %s\n"+
			"Respond with JSON {\"eyes_needed\": [names...], \"reasoning\": \"...\"} naming registered validator Eyes in the order they should run.",
		envelope.Intent, strings.Join(kinds, ","), strings.Join(ctxKeys, ","),
	)
}

// ResolveRoutedNames applies the routing edge cases from the spec:
// dedup preserving first occurrence, dropping unknown names, and
// falling back to a single default Eye when the decision names none.
func ResolveRoutedNames(decision *RoutingDecision, registry *Registry, defaultEye string) []string {
	seen := make(map[string]bool)
	var resolved []string
	for _, name := range decision.EyesNeeded {
		if seen[name] {
			continue
		}
		seen[name] = true
		if !registry.Has(name) {
			continue // unknown name: drop and log (logging done by caller)
		}
		resolved = append(resolved, name)
	}
	if len(resolved) == 0 && defaultEye != "" && registry.Has(defaultEye) {
		resolved = []string{defaultEye}
	}
	return resolved
}
