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

package quota

import (
	"context"
	"time"

	"github.com/thirdeye-mcp/thirdeye/internal/apperr"
)

// Backend is the storage strategy for window counters. MemoryBackend
// serves a single process; RedisBackend shares counters across
// replicas.
type Backend interface {
	// IncrementAndCount admits one request against key only if doing so
	// would keep the window's total count at or under max (max<=0
	// disables the check and always admits), returning the resulting
	// count and whether the request was admitted. A rejected request
	// must not change the counter.
	IncrementAndCount(ctx context.Context, key string, window time.Duration, buckets int, max int) (count uint64, admitted bool, err error)
	// Count returns the window's current total without recording a request.
	Count(ctx context.Context, key string, window time.Duration, buckets int) (uint64, error)
	// Reset clears key's window.
	Reset(ctx context.Context, key string) error
}

// Limit is the admission ceiling for one scope (tenant or API key).
type Limit struct {
	Window time.Duration
	Max    int
}

// Snapshotter is the durability mirror a Manager writes counts through
// to, so a restart (or a cold Redis instance) can be seeded back close
// to the truth instead of every scope resetting to zero. nil (the
// default) leaves quota tracking purely backend-resident.
type Snapshotter interface {
	PutQuotaSnapshot(ctx context.Context, snap QuotaSnapshotArgs) error
}

// QuotaSnapshotArgs is the subset of storage.QuotaSnapshot a Manager
// can populate without importing the storage package (which already
// imports session and would cycle back through quota's callers).
type QuotaSnapshotArgs struct {
	Scope       string
	WindowStart time.Time
	Count       int64
	UpdatedAt   time.Time
}

// Manager is the admission-control gate: every request checks the
// tenant-scoped quota before the key-scoped quota, so a single noisy
// key inside a tenant near its cap fails at the tenant check first.
type Manager struct {
	backend Backend
	snap    Snapshotter

	defaultWindow  time.Duration
	defaultBuckets int

	mu     chan struct{} // binary semaphore protecting limits
	limits map[string]Limit
}

// NewManager wires a Manager over backend with the given default window
// and bucket count (spec defaults: 60s / 12 buckets).
func NewManager(backend Backend, defaultWindow time.Duration, defaultBuckets int) *Manager {
	return &Manager{
		backend:        backend,
		defaultWindow:  defaultWindow,
		defaultBuckets: defaultBuckets,
		mu:             make(chan struct{}, 1),
		limits:         make(map[string]Limit),
	}
}

func (m *Manager) lock()   { m.mu <- struct{}{} }
func (m *Manager) unlock() { <-m.mu }

// SetSnapshotter wires snap as the Manager's durability mirror.
func (m *Manager) SetSnapshotter(snap Snapshotter) {
	m.lock()
	defer m.unlock()
	m.snap = snap
}

func (m *Manager) snapshot(scope string, count uint64) {
	m.lock()
	snap := m.snap
	m.unlock()
	if snap == nil {
		return
	}
	now := time.Now()
	go func() {
		_ = snap.PutQuotaSnapshot(context.Background(), QuotaSnapshotArgs{
			Scope:       scope,
			WindowStart: now,
			Count:       int64(count),
			UpdatedAt:   now,
		})
	}()
}

// SetLimit overrides the admission ceiling for scope (a tenant id or
// "key:"+apiKeyID). Zero Max disables the limit.
func (m *Manager) SetLimit(scope string, limit Limit) {
	m.lock()
	defer m.unlock()
	m.limits[scope] = limit
}

func (m *Manager) limitFor(scope string) Limit {
	m.lock()
	defer m.unlock()
	if l, ok := m.limits[scope]; ok {
		return l
	}
	return Limit{Window: m.defaultWindow, Max: 0} // 0 == unlimited
}

// CheckAndIncrement admits one request for (tenantScope, keyScope). The
// tenant check runs first: if it rejects, the key counter is never
// incremented, so a request that never should have counted against the
// tenant doesn't leave a stray increment on the key's window either.
func (m *Manager) CheckAndIncrement(ctx context.Context, tenantScope, keyScope string) error {
	if tenantScope != "" {
		if err := m.checkAndIncrementScope(ctx, tenantScope); err != nil {
			return err
		}
	}
	if keyScope != "" {
		if err := m.checkAndIncrementScope(ctx, keyScope); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) checkAndIncrementScope(ctx context.Context, scope string) error {
	limit := m.limitFor(scope)
	if limit.Max <= 0 {
		return nil
	}
	buckets := m.defaultBuckets
	count, admitted, err := m.backend.IncrementAndCount(ctx, scope, limit.Window, buckets, limit.Max)
	if err != nil {
		return apperr.Internal(err, "")
	}
	m.snapshot(scope, count)
	if !admitted {
		retryAfter := int(limit.Window / time.Duration(buckets) / time.Second)
		if retryAfter < 1 {
			retryAfter = 1
		}
		return apperr.QuotaExceeded(retryAfter)
	}
	return nil
}

// GetUsage reports scope's current count and configured max without
// admitting a request.
func (m *Manager) GetUsage(ctx context.Context, scope string) (count uint64, max int, err error) {
	limit := m.limitFor(scope)
	count, err = m.backend.Count(ctx, scope, limit.Window, m.defaultBuckets)
	if err != nil {
		return 0, limit.Max, apperr.Internal(err, "")
	}
	return count, limit.Max, nil
}

// Reset clears scope's window, e.g. for admin override or tests.
func (m *Manager) Reset(ctx context.Context, scope string) error {
	if err := m.backend.Reset(ctx, scope); err != nil {
		return apperr.Internal(err, "")
	}
	return nil
}

// TenantScope and KeyScope build the canonical scope keys used as map
// keys / Redis key suffixes, keeping tenant and per-key counters from
// colliding with each other.
func TenantScope(tenantID string) string { return "tenant:" + tenantID }
func KeyScope(apiKeyID string) string    { return "key:" + apiKeyID }
