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
	"sync"
	"time"
)

// HealthChecker caches a boolean health result for ttl (spec default
// 30s) so IsHealthy() doesn't hammer the backend on every routing
// decision.
type HealthChecker struct {
	mu       sync.Mutex
	ttl      time.Duration
	lastAt   time.Time
	lastOK   bool
	checking bool
	probe    func() bool
	now      func() time.Time
}

// NewHealthChecker wraps probe, a cheap synchronous check (e.g. "did
// the last call succeed"), with a cache of ttl.
func NewHealthChecker(ttl time.Duration, probe func() bool) *HealthChecker {
	return &HealthChecker{ttl: ttl, probe: probe, now: time.Now}
}

// IsHealthy returns the cached result, re-probing if ttl has elapsed.
func (h *HealthChecker) IsHealthy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	if now.Sub(h.lastAt) < h.ttl && !h.lastAt.IsZero() {
		return h.lastOK
	}
	h.lastOK = h.probe()
	h.lastAt = now
	return h.lastOK
}

// Invalidate forces the next IsHealthy call to re-probe, e.g. after an
// observed failure on the hot path.
func (h *HealthChecker) Invalidate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastAt = time.Time{}
}
