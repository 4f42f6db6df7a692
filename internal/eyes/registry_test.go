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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thirdeye-mcp/thirdeye/internal/apperr"
)

type stubEye struct {
	result  *Result
	err     error
	healthy bool
	delay   time.Duration
}

func (s *stubEye) Describe() Capability { return Capability{Name: "stub"} }
func (s *stubEye) Health(_ context.Context) HealthStatus {
	return HealthStatus{Healthy: s.healthy}
}
func (s *stubEye) Invoke(ctx context.Context, _ Envelope) (*Result, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.result, s.err
}

func TestRegistryInvokeReturnsResult(t *testing.T) {
	reg := NewRegistry(time.Second, 30*time.Second)
	reg.Register("stub", &stubEye{result: &Result{Ok: boolPtr(true), Code: "OK"}})

	result, err := reg.Invoke(context.Background(), "stub", Envelope{})
	require.NoError(t, err)
	assert.True(t, *result.Ok)
}

func TestRegistryInvokeUnregisteredNameFails(t *testing.T) {
	reg := NewRegistry(time.Second, 30*time.Second)

	_, err := reg.Invoke(context.Background(), "missing", Envelope{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeLLMError))
}

func TestRegistryInvokeTimesOut(t *testing.T) {
	reg := NewRegistry(10*time.Millisecond, 30*time.Second)
	reg.Register("slow", &stubEye{delay: 100 * time.Millisecond, result: &Result{}})

	_, err := reg.Invoke(context.Background(), "slow", Envelope{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeLLMError))
}

func TestRegistryInvokeClassifiesPlainError(t *testing.T) {
	reg := NewRegistry(time.Second, 30*time.Second)
	reg.Register("failing", &stubEye{err: errors.New("boom")})

	_, err := reg.Invoke(context.Background(), "failing", Envelope{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeLLMError))
}

func TestRegistryHealthIsCached(t *testing.T) {
	reg := NewRegistry(time.Second, time.Minute)
	calls := 0
	reg.Register("probe", &healthCountingEye{onHealth: func() { calls++ }})
	base := time.Now()
	reg.now = func() time.Time { return base }

	reg.Health(context.Background(), "probe")
	reg.Health(context.Background(), "probe")

	assert.Equal(t, 1, calls)
}

func TestRegistryHealthReprobesAfterTTL(t *testing.T) {
	reg := NewRegistry(time.Second, 30*time.Second)
	calls := 0
	reg.Register("probe", &healthCountingEye{onHealth: func() { calls++ }})
	base := time.Now()
	reg.now = func() time.Time { return base }
	reg.Health(context.Background(), "probe")

	reg.now = func() time.Time { return base.Add(31 * time.Second) }
	reg.Health(context.Background(), "probe")

	assert.Equal(t, 2, calls)
}

func TestNamesAndHasReflectRegistrations(t *testing.T) {
	reg := NewRegistry(time.Second, 30*time.Second)
	assert.False(t, reg.Has("x"))

	reg.Register("x", &stubEye{})
	assert.True(t, reg.Has("x"))
	assert.Contains(t, reg.Names(), "x")
}

type healthCountingEye struct {
	onHealth func()
}

func (h *healthCountingEye) Describe() Capability { return Capability{Name: "probe"} }
func (h *healthCountingEye) Invoke(_ context.Context, _ Envelope) (*Result, error) {
	return &Result{Ok: boolPtr(true)}, nil
}
func (h *healthCountingEye) Health(_ context.Context) HealthStatus {
	h.onHealth()
	return HealthStatus{Healthy: true}
}
