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
	"strings"
)

// AmbiguityEye is the "default clarity" detector: when an intent is
// too short or generic relative to the threshold, it asks the host to
// clarify instead of letting a routed validator guess at intent.
type AmbiguityEye struct {
	// Threshold is the ambiguity score (0..1) above which clarification
	// is required. Score here is a cheap heuristic, not a model call:
	// per spec §1's scope boundary, Eye internals are illustrative.
	Threshold float64
}

var vagueIntentPhrases = []string{
	"make it better", "fix it", "improve this", "do something",
}

func (e *AmbiguityEye) Describe() Capability {
	return Capability{
		Name:                  "ambiguity_detector",
		Version:               "1",
		AcceptsWorkKinds:      []string{"*"},
		ReturnsClarifications: true,
	}
}

func (e *AmbiguityEye) Health(_ context.Context) HealthStatus {
	return HealthStatus{Healthy: true}
}

func (e *AmbiguityEye) Invoke(_ context.Context, envelope Envelope) (*Result, error) {
	score := ambiguityScore(envelope.Intent)
	threshold := e.Threshold
	if threshold == 0 {
		threshold = 0.5
	}

	if score <= threshold {
		return &Result{
			Ok:         boolPtr(true),
			Code:       "CLEAR",
			MD:         "intent is sufficiently specific",
			Confidence: floatPtr(1 - score),
		}, nil
	}

	return &Result{
		Ok:   boolPtr(false),
		Code: CodeClarificationRequired,
		MD:   "intent is ambiguous; clarification needed before routing",
		Data: map[string]interface{}{
			"ambiguity_score": score,
		},
		Clarifications: []ClarificationQuestion{
			{Question: "Which component or artifact does this request target?", Context: envelope.Intent},
		},
	}, nil
}

// ambiguityScore is a cheap heuristic: short or stock-vague intents
// score high.
func ambiguityScore(intent string) float64 {
	trimmed := strings.ToLower(strings.TrimSpace(intent))
	for _, phrase := range vagueIntentPhrases {
		if strings.Contains(trimmed, phrase) {
			return 0.9
		}
	}
	words := strings.Fields(trimmed)
	switch {
	case len(words) == 0:
		return 1.0
	case len(words) <= 2:
		return 0.8
	case len(words) <= 4:
		return 0.4
	default:
		return 0.1
	}
}
