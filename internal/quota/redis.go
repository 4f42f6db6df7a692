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
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisBackend implements a distributed sliding-window counter on top
// of a per-key sorted set: members are request timestamps, scores are
// the same timestamp, and every call first trims members older than
// the window before counting. This shares the window across every
// replica hitting the same Redis instance, unlike MemoryBackend.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend wraps an existing client. Callers own the client's
// lifecycle (Close).
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func quotaKey(key string) string {
	return "thirdeye:quota:" + key
}

// reserveScript trims expired members, checks the remaining cardinality
// against max, and only adds the new member (admitting the request)
// when that stays at or under max — all inside one Lua script so the
// check-then-increment is atomic against concurrent callers sharing the
// same Redis key, the distributed equivalent of slidingWindow's mutex.
var reserveScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '0', now - window)
local count = redis.call('ZCARD', key)
if max > 0 and count >= max then
	return {count, 0}
end
redis.call('ZADD', key, now, member)
redis.call('EXPIRE', key, math.floor(window / 1e9) + 1)
return {count + 1, 1}
`)

func (b *RedisBackend) IncrementAndCount(ctx context.Context, key string, window time.Duration, _ int, max int) (uint64, bool, error) {
	redisKey := quotaKey(key)
	now := time.Now().UnixNano()

	res, err := reserveScript.Run(ctx, b.client, []string{redisKey}, now, window.Nanoseconds(), max, now).Result()
	if err != nil {
		return 0, false, fmt.Errorf("quota: redis reserve script failed: %w", err)
	}
	result, ok := res.([]interface{})
	if !ok || len(result) != 2 {
		return 0, false, fmt.Errorf("quota: unexpected reserve script result %v", res)
	}
	count, _ := result[0].(int64)
	admitted, _ := result[1].(int64)
	return uint64(count), admitted == 1, nil
}

func (b *RedisBackend) Count(ctx context.Context, key string, window time.Duration, _ int) (uint64, error) {
	redisKey := quotaKey(key)
	now := time.Now()
	minScore := now.Add(-window).UnixNano()

	count, err := b.client.ZCount(ctx, redisKey, fmt.Sprintf("%d", minScore), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("quota: redis zcount failed: %w", err)
	}
	return uint64(count), nil
}

func (b *RedisBackend) Reset(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, quotaKey(key)).Err(); err != nil {
		return fmt.Errorf("quota: redis del failed: %w", err)
	}
	return nil
}
