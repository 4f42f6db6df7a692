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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

func newTestRedisBackend(t *testing.T) *RedisBackend {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisBackend(client)
}

func TestRedisBackendIncrementAndCount(t *testing.T) {
	backend := newTestRedisBackend(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, admitted, err := backend.IncrementAndCount(ctx, "tenant:a", 60*time.Second, 12, 0)
		require.NoError(t, err)
		require.True(t, admitted)
	}

	count, err := backend.Count(ctx, "tenant:a", 60*time.Second, 12)
	require.NoError(t, err)
	require.Equal(t, uint64(3), count)
}

func TestRedisBackendRejectsOverMax(t *testing.T) {
	backend := newTestRedisBackend(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, admitted, err := backend.IncrementAndCount(ctx, "tenant:a", 60*time.Second, 12, 2)
		require.NoError(t, err)
		require.True(t, admitted)
	}

	_, admitted, err := backend.IncrementAndCount(ctx, "tenant:a", 60*time.Second, 12, 2)
	require.NoError(t, err)
	require.False(t, admitted)

	count, err := backend.Count(ctx, "tenant:a", 60*time.Second, 12)
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)
}

func TestRedisBackendReset(t *testing.T) {
	backend := newTestRedisBackend(t)
	ctx := context.Background()

	_, _, err := backend.IncrementAndCount(ctx, "tenant:a", 60*time.Second, 12, 0)
	require.NoError(t, err)

	require.NoError(t, backend.Reset(ctx, "tenant:a"))

	count, err := backend.Count(ctx, "tenant:a", 60*time.Second, 12)
	require.NoError(t, err)
	require.Equal(t, uint64(0), count)
}

func TestManagerOverRedisBackend(t *testing.T) {
	backend := newTestRedisBackend(t)
	mgr := NewManager(backend, 60*time.Second, 12)
	mgr.SetLimit(KeyScope("key-a"), Limit{Window: 60 * time.Second, Max: 2})
	ctx := context.Background()

	require.NoError(t, mgr.CheckAndIncrement(ctx, "", KeyScope("key-a")))
	require.NoError(t, mgr.CheckAndIncrement(ctx, "", KeyScope("key-a")))
	require.Error(t, mgr.CheckAndIncrement(ctx, "", KeyScope("key-a")))
}
