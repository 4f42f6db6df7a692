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

// Package provider abstracts large-language-model backends behind a
// single interface, classifying every failure so the Overseer's retry
// policy can decide what to do without knowing which vendor failed.
package provider

import (
	"context"
	"time"
)

// Request is a single completion call.
type Request struct {
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Response is the provider's answer plus bookkeeping metadata.
type Response struct {
	Text         string
	Model        string
	ResponseTime time.Duration
	Metadata     map[string]interface{}
}

// Provider is implemented by every backend Third Eye can route to:
// Bedrock, an OpenAI-compatible HTTP endpoint, or MockProvider in
// tests.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
	IsHealthy() bool
	Capabilities() []string
}

// ErrorClass classifies a provider failure for the Overseer's retry
// policy, independent of which vendor produced it.
type ErrorClass string

const (
	ClassTimeout     ErrorClass = "timeout"
	ClassAuth        ErrorClass = "auth"
	ClassRateLimited ErrorClass = "rate_limited"
	ClassUpstream5xx ErrorClass = "upstream_5xx"
	ClassNetwork     ErrorClass = "network"
)

// Error is the typed failure every Provider implementation returns
// instead of a bare error, so callers can branch on Class without
// string-matching vendor error messages.
type Error struct {
	Provider string
	Class    ErrorClass
	Cause    error
}

func (e *Error) Error() string {
	return e.Provider + ": " + string(e.Class) + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }
