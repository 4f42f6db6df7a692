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
	"sync/atomic"
)

// MockProvider is a deterministic, in-process Provider for tests. Set
// CompleteFunc to control its response; defaults to echoing the prompt.
type MockProvider struct {
	NameValue         string
	CompleteFunc      func(ctx context.Context, req Request) (*Response, error)
	Healthy           bool
	CapabilitiesValue []string

	calls int64
}

func (m *MockProvider) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

func (m *MockProvider) Capabilities() []string {
	if m.CapabilitiesValue == nil {
		return []string{"complete"}
	}
	return m.CapabilitiesValue
}

func (m *MockProvider) IsHealthy() bool { return m.Healthy }

// Calls reports how many times Complete has been invoked. Useful for
// asserting retry behavior in callers.
func (m *MockProvider) Calls() int64 { return atomic.LoadInt64(&m.calls) }

func (m *MockProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	atomic.AddInt64(&m.calls, 1)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return &Response{Text: "echo: " + req.Prompt, Model: req.Model}, nil
}
