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

package overseer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thirdeye-mcp/thirdeye/internal/apperr"
	"github.com/thirdeye-mcp/thirdeye/internal/eyes"
	"github.com/thirdeye-mcp/thirdeye/internal/pipeline"
	"github.com/thirdeye-mcp/thirdeye/internal/provider"
	"github.com/thirdeye-mcp/thirdeye/internal/session"
)

func boolPtr(b bool) *bool       { return &b }
func floatPtr(f float64) *float64 { return &f }

type stubEye struct {
	result *eyes.Result
	err    error
}

func (s *stubEye) Describe() eyes.Capability { return eyes.Capability{Name: "stub"} }
func (s *stubEye) Health(_ context.Context) eyes.HealthStatus {
	return eyes.HealthStatus{Healthy: true}
}
func (s *stubEye) Invoke(_ context.Context, _ eyes.Envelope) (*eyes.Result, error) {
	return s.result, s.err
}

func routingMock(decision string) *provider.MockProvider {
	return &provider.MockProvider{
		CompleteFunc: func(_ context.Context, _ provider.Request) (*provider.Response, error) {
			return &provider.Response{Text: decision}, nil
		},
	}
}

func newTestOverseer(t *testing.T, decision string, namedEyes map[string]eyes.Eye) *Overseer {
	t.Helper()
	reg := eyes.NewRegistry(time.Second, time.Minute)
	for name, e := range namedEyes {
		reg.Register(name, e)
	}
	return &Overseer{
		Registry:       reg,
		Routing:        &eyes.RoutingEye{Provider: routingMock(decision)},
		Bus:            pipeline.New(),
		Sessions:       session.New(time.Hour),
		RoutingTimeout: time.Second,
	}
}

func TestOrchestrateRejectsInvalidEnvelope(t *testing.T) {
	o := newTestOverseer(t, `{"eyes_needed":[],"reasoning":"n/a"}`, nil)

	_, err := o.Orchestrate(context.Background(), Request{StrictMode: true}, "conn-1")
	require.Error(t, err)

	var appErr *apperr.Error
	require.True(t, apperr.As(err, &appErr))
	assert.Equal(t, apperr.CodeBadPayloadSchema, appErr.Code)
}

func TestOrchestrateInjectsSessionIDWhenAbsent(t *testing.T) {
	o := newTestOverseer(t, `{"eyes_needed":["a"],"reasoning":"ok"}`, map[string]eyes.Eye{
		"a": &stubEye{result: &eyes.Result{Ok: boolPtr(true), Code: "OK", Confidence: floatPtr(0.9)}},
	})

	resp, err := o.Orchestrate(context.Background(), Request{Intent: "do the thing"}, "conn-1")
	require.NoError(t, err)
	assert.True(t, resp.Ok)

	again, err := o.Orchestrate(context.Background(), Request{Intent: "do the thing"}, "conn-1")
	require.NoError(t, err)
	assert.True(t, again.Ok)
}

func TestOrchestrateRunsResolvedEyesInOrderAndAggregates(t *testing.T) {
	o := newTestOverseer(t, `{"eyes_needed":["first","second"],"reasoning":"both needed"}`, map[string]eyes.Eye{
		"first":  &stubEye{result: &eyes.Result{Ok: boolPtr(true), Code: "OK", Confidence: floatPtr(0.8)}},
		"second": &stubEye{result: &eyes.Result{Ok: boolPtr(true), Code: "OK", Confidence: floatPtr(0.6)}},
	})

	resp, err := o.Orchestrate(context.Background(), Request{Intent: "review this"}, "conn-2")
	require.NoError(t, err)
	assert.True(t, resp.Ok)
	assert.Equal(t, "OK_ALL", resp.Code)

	outcomes, ok := resp.Data["eyes"].([]EyeOutcome)
	require.True(t, ok)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "first", outcomes[0].Name)
	assert.Equal(t, "second", outcomes[1].Name)
	assert.InDelta(t, 0.7, resp.Data["confidence"].(float64), 0.0001)
}

func TestOrchestrateShortCircuitsOnClarificationRequired(t *testing.T) {
	o := newTestOverseer(t, `{"eyes_needed":["ambiguity_detector","never_runs"],"reasoning":"vague"}`, map[string]eyes.Eye{
		"ambiguity_detector": &stubEye{result: &eyes.Result{
			Ok:             boolPtr(false),
			Code:           eyes.CodeClarificationRequired,
			Clarifications: []eyes.ClarificationQuestion{{Question: "what do you mean?"}},
		}},
		"never_runs": &stubEye{result: &eyes.Result{Ok: boolPtr(true), Code: "OK"}},
	})

	resp, err := o.Orchestrate(context.Background(), Request{Intent: "do a thing maybe"}, "conn-3")
	require.NoError(t, err)
	assert.False(t, resp.Ok)
	assert.Equal(t, eyes.CodeClarificationRequired, resp.Code)
	assert.Equal(t, NextActionSubmitClarifications, resp.NextAction)

	outcomes, ok := resp.Data["eyes"].([]EyeOutcome)
	require.True(t, ok)
	assert.Len(t, outcomes, 1)
}

func TestOrchestrateShortCircuitsOnRevisionRequired(t *testing.T) {
	o := newTestOverseer(t, `{"eyes_needed":["code_review"],"reasoning":"code present"}`, map[string]eyes.Eye{
		"code_review": &stubEye{result: &eyes.Result{Ok: boolPtr(false), Code: eyes.CodeRevisionRequired, MD: "fix the TODO"}},
	})

	resp, err := o.Orchestrate(context.Background(), Request{Intent: "review my code"}, "conn-4")
	require.NoError(t, err)
	assert.Equal(t, NextActionRevise, resp.NextAction)
	assert.Equal(t, eyes.CodeRevisionRequired, resp.Code)
}

func TestOrchestrateRetriesOnceThenReturnsPartialFailure(t *testing.T) {
	calls := 0
	failing := &stubEye{}
	failEye := &flakyEye{
		invoke: func() (*eyes.Result, error) {
			calls++
			return nil, errors.New("transient upstream failure")
		},
	}
	_ = failing

	o := newTestOverseer(t, `{"eyes_needed":["first","flaky"],"reasoning":"chain"}`, map[string]eyes.Eye{
		"first": &stubEye{result: &eyes.Result{Ok: boolPtr(true), Code: "OK", Confidence: floatPtr(1)}},
		"flaky": failEye,
	})

	resp, err := o.Orchestrate(context.Background(), Request{Intent: "run the chain"}, "conn-5")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.False(t, resp.Ok)
	assert.Equal(t, 2, calls)

	var appErr *apperr.Error
	require.True(t, apperr.As(err, &appErr))
	assert.Equal(t, apperr.CodeOrchestrationFailed, appErr.Code)

	partial, ok := resp.Data["partial_results"].([]EyeOutcome)
	require.True(t, ok)
	assert.Len(t, partial, 1)
	assert.Equal(t, "first", partial[0].Name)
}

func TestOrchestrateFallsBackToDefaultEyeOnEmptyRouting(t *testing.T) {
	o := newTestOverseer(t, `{"eyes_needed":[],"reasoning":"nothing obviously needed"}`, map[string]eyes.Eye{
		"ambiguity_detector": &stubEye{result: &eyes.Result{Ok: boolPtr(true), Code: "CLEAR"}},
	})

	resp, err := o.Orchestrate(context.Background(), Request{Intent: "vague request here"}, "conn-6")
	require.NoError(t, err)
	outcomes := resp.Data["eyes"].([]EyeOutcome)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "ambiguity_detector", outcomes[0].Name)
}

func TestOrchestratePropagatesRoutingTimeoutAsLLMError(t *testing.T) {
	o := newTestOverseer(t, `{"eyes_needed":["a"],"reasoning":"ok"}`, map[string]eyes.Eye{
		"a": &stubEye{result: &eyes.Result{Ok: boolPtr(true), Code: "OK"}},
	})
	o.Routing = &eyes.RoutingEye{Provider: &provider.MockProvider{
		CompleteFunc: func(_ context.Context, _ provider.Request) (*provider.Response, error) {
			return nil, &provider.Error{Provider: "mock", Class: provider.ClassTimeout}
		},
	}}

	_, err := o.Orchestrate(context.Background(), Request{Intent: "do the thing"}, "conn-7")
	require.Error(t, err)

	var appErr *apperr.Error
	require.True(t, apperr.As(err, &appErr))
	assert.Equal(t, apperr.CodeLLMError, appErr.Code)
}

// flakyEye always fails; used to exercise the retry-once-then-partial
// policy without depending on stubEye's fixed err field.
type flakyEye struct {
	invoke func() (*eyes.Result, error)
}

func (f *flakyEye) Describe() eyes.Capability { return eyes.Capability{Name: "flaky"} }
func (f *flakyEye) Health(_ context.Context) eyes.HealthStatus {
	return eyes.HealthStatus{Healthy: true}
}
func (f *flakyEye) Invoke(_ context.Context, _ eyes.Envelope) (*eyes.Result, error) {
	return f.invoke()
}
