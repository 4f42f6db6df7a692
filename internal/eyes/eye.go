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

// Package eyes implements the Eye Registry: the invocation contract
// every validator ("Eye") satisfies, and the Registry that wraps each
// call with a timeout, cancellation propagation, and error
// classification.
package eyes

import "context"

// Outcome codes the Overseer recognizes as short-circuit signals.
// Any other code is treated as an ordinary validator verdict.
const (
	CodeClarificationRequired = "CLARIFY"
	CodeRevisionRequired      = "REVISE"
)

// Envelope is the Work Envelope an Eye receives. Work maps artifact
// kind to content; kinds are an open set (code, plan, draft,
// requirements, tests, docs, ...) and an Eye ignores kinds it doesn't
// understand.
type Envelope struct {
	Intent      string
	Work        map[string]string
	ContextInfo map[string]interface{}
	ReasoningMD string
	SessionID   string
}

// ClarificationQuestion is one item an ambiguity-detecting Eye asks
// the host to resolve before the pipeline can continue.
type ClarificationQuestion struct {
	Question string `json:"question"`
	Context  string `json:"context"`
}

// Result is an Eye's verdict. Ok is a pointer so a still-running
// (suspended) Eye can represent "null" distinctly from true/false.
type Result struct {
	Ok              *bool                    `json:"ok"`
	Code            string                   `json:"code"`
	MD              string                   `json:"md"`
	Data            map[string]interface{}   `json:"data,omitempty"`
	Confidence      *float64                 `json:"confidence,omitempty"`
	Clarifications  []ClarificationQuestion  `json:"clarifications,omitempty"`
}

// Capability is an Eye's static self-description.
type Capability struct {
	Name                  string   `json:"name"`
	Version               string   `json:"version"`
	AcceptsWorkKinds      []string `json:"accepts_work_kinds"`
	ReturnsClarifications bool     `json:"returns_clarifications"`
}

// HealthStatus is the registry's cached health read for one Eye.
type HealthStatus struct {
	Healthy bool
	Detail  string
}

// Eye is the invocation contract every validator implements.
type Eye interface {
	Describe() Capability
	Invoke(ctx context.Context, envelope Envelope) (*Result, error)
	Health(ctx context.Context) HealthStatus
}

func boolPtr(b bool) *bool          { return &b }
func floatPtr(f float64) *float64   { return &f }
