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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thirdeye-mcp/thirdeye/internal/provider"
)

func TestRoutingEyeRouteParsesDecision(t *testing.T) {
	mock := &provider.MockProvider{
		CompleteFunc: func(_ context.Context, _ provider.Request) (*provider.Response, error) {
			return &provider.Response{Text: `{"eyes_needed": ["code_review", "plan_review"], "reasoning": "both artifacts present"}`}, nil
		},
	}
	e := &RoutingEye{Provider: mock}

	decision, err := e.Route(context.Background(), Envelope{Intent: "review", Work: map[string]string{"code": "x", "plan": "y"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"code_review", "plan_review"}, decision.EyesNeeded)
	assert.Equal(t, "both artifacts present", decision.Reasoning)
}

func TestRoutingEyeRoutePropagatesProviderError(t *testing.T) {
	mock := &provider.MockProvider{
		CompleteFunc: func(_ context.Context, _ provider.Request) (*provider.Response, error) {
			return nil, &provider.Error{Provider: "mock", Class: provider.ClassTimeout}
		},
	}
	e := &RoutingEye{Provider: mock}

	_, err := e.Route(context.Background(), Envelope{Intent: "review"})
	require.Error(t, err)
}

func TestRoutingEyeRouteRejectsUnparseableResponse(t *testing.T) {
	mock := &provider.MockProvider{
		CompleteFunc: func(_ context.Context, _ provider.Request) (*provider.Response, error) {
			return &provider.Response{Text: "not json"}, nil
		},
	}
	e := &RoutingEye{Provider: mock}

	_, err := e.Route(context.Background(), Envelope{Intent: "review"})
	require.Error(t, err)
}

func TestResolveRoutedNamesDedupsPreservingFirstOccurrence(t *testing.T) {
	reg := NewRegistry(time.Second, time.Minute)
	reg.Register("a", &stubEye{})
	reg.Register("b", &stubEye{})

	decision := &RoutingDecision{EyesNeeded: []string{"a", "b", "a"}}
	resolved := ResolveRoutedNames(decision, reg, "default")

	assert.Equal(t, []string{"a", "b"}, resolved)
}

func TestResolveRoutedNamesDropsUnknownNames(t *testing.T) {
	reg := NewRegistry(time.Second, time.Minute)
	reg.Register("a", &stubEye{})

	decision := &RoutingDecision{EyesNeeded: []string{"a", "ghost"}}
	resolved := ResolveRoutedNames(decision, reg, "default")

	assert.Equal(t, []string{"a"}, resolved)
}

func TestResolveRoutedNamesFallsBackOnEmptyList(t *testing.T) {
	reg := NewRegistry(time.Second, time.Minute)
	reg.Register("ambiguity_detector", &stubEye{})

	decision := &RoutingDecision{EyesNeeded: nil}
	resolved := ResolveRoutedNames(decision, reg, "ambiguity_detector")

	assert.Equal(t, []string{"ambiguity_detector"}, resolved)
}

func TestResolveRoutedNamesEmptyWithNoDefaultRegisteredYieldsEmpty(t *testing.T) {
	reg := NewRegistry(time.Second, time.Minute)

	decision := &RoutingDecision{EyesNeeded: []string{"ghost"}}
	resolved := ResolveRoutedNames(decision, reg, "also-missing")

	assert.Empty(t, resolved)
}
