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
	"sync"
	"time"

	"github.com/thirdeye-mcp/thirdeye/internal/apperr"
	"github.com/thirdeye-mcp/thirdeye/internal/provider"
)

// Registry maps Eye names to invocation contracts and is the only
// thing the Overseer talks to — it never calls an Eye directly.
type Registry struct {
	mu   sync.RWMutex
	eyes map[string]Eye

	timeout time.Duration

	healthMu    sync.Mutex
	healthCache map[string]cachedHealth
	healthTTL   time.Duration
	now         func() time.Time
}

type cachedHealth struct {
	status HealthStatus
	at     time.Time
}

// NewRegistry builds an empty Registry. timeout is the per-Eye
// invocation deadline (spec default 30s); healthTTL is how long a
// Health() result is cached (spec default 30s).
func NewRegistry(timeout, healthTTL time.Duration) *Registry {
	return &Registry{
		eyes:        make(map[string]Eye),
		timeout:     timeout,
		healthCache: make(map[string]cachedHealth),
		healthTTL:   healthTTL,
		now:         time.Now,
	}
}

// Register binds name to an Eye implementation, replacing any prior
// binding.
func (r *Registry) Register(name string, eye Eye) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.eyes[name] = eye
}

// Names reports every registered Eye, used by the Overseer to validate
// a routing decision's eyes_needed list.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.eyes))
	for name := range r.eyes {
		names = append(names, name)
	}
	return names
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.eyes[name]
	return ok
}

// Invoke calls name's Eye under a per-Eye timeout, propagating ctx
// cancellation, and classifies any failure into the unified error
// taxonomy before returning it.
func (r *Registry) Invoke(ctx context.Context, name string, envelope Envelope) (*Result, error) {
	r.mu.RLock()
	eye, ok := r.eyes[name]
	r.mu.RUnlock()
	if !ok {
		return nil, apperr.LLMError(errors.New("eye not registered: " + name))
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := eye.Invoke(callCtx, envelope)
	if err != nil {
		return nil, classify(err)
	}
	return result, nil
}

// Health returns name's cached health, re-probing if the cache has
// aged past healthTTL.
func (r *Registry) Health(ctx context.Context, name string) HealthStatus {
	r.healthMu.Lock()
	defer r.healthMu.Unlock()

	if cached, ok := r.healthCache[name]; ok && r.now().Sub(cached.at) < r.healthTTL {
		return cached.status
	}

	r.mu.RLock()
	eye, ok := r.eyes[name]
	r.mu.RUnlock()
	if !ok {
		return HealthStatus{Healthy: false, Detail: "not registered"}
	}

	status := eye.Health(ctx)
	r.healthCache[name] = cachedHealth{status: status, at: r.now()}
	return status
}

// classify maps a transport/provider failure to the unified error
// taxonomy; apperr errors pass through unchanged.
func classify(err error) error {
	var aerr *apperr.Error
	if errors.As(err, &aerr) {
		return err
	}
	var perr *provider.Error
	if errors.As(err, &perr) {
		return apperr.LLMError(perr)
	}
	return apperr.LLMError(err)
}
