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
	"sync"
	"time"
)

// MemoryBackend keeps one slidingWindow per key in process memory.
// Correct for a single-replica deployment; the Manager works identically
// against RedisBackend when the deployment is clustered.
type MemoryBackend struct {
	mu      sync.Mutex
	windows map[string]*slidingWindow
}

// NewMemoryBackend constructs an empty in-process backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{windows: make(map[string]*slidingWindow)}
}

func (b *MemoryBackend) windowFor(key string, window time.Duration, buckets int) *slidingWindow {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.windows[key]
	if !ok {
		w = newSlidingWindow(window, buckets)
		b.windows[key] = w
	}
	return w
}

// IncrementAndCount admits one request against key only if doing so
// keeps the window's count at or under max (max<=0 always admits): the
// check and the increment happen under the same lock, so a rejected
// request never inflates the counter.
func (b *MemoryBackend) IncrementAndCount(_ context.Context, key string, window time.Duration, buckets int, max int) (uint64, bool, error) {
	count, admitted := b.windowFor(key, window, buckets).ReserveIfUnder(time.Now(), max)
	return count, admitted, nil
}

func (b *MemoryBackend) Count(_ context.Context, key string, window time.Duration, buckets int) (uint64, error) {
	return b.windowFor(key, window, buckets).Count(time.Now()), nil
}

func (b *MemoryBackend) Reset(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.windows, key)
	return nil
}
