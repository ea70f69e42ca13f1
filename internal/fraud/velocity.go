package fraud

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// VelocityCounter tracks platform-wide vending attempts for the velocity
// factor. Counts may be approximate; the scorer only compares them against a
// threshold.
type VelocityCounter interface {
	RecordVend(ctx context.Context) error
	VendsLastHour(ctx context.Context) (int64, error)
}

const velocityKeyPrefix = "fraud:vends:"

// RedisVelocity counts vends in hour-aligned Redis buckets. The last-hour
// figure sums the current and previous buckets, so it slightly overcounts at
// bucket boundaries rather than undercounting.
type RedisVelocity struct {
	cache *redis.Client
	now   func() time.Time
}

// NewRedisVelocity constructs a Redis-backed velocity counter.
func NewRedisVelocity(cache *redis.Client) *RedisVelocity {
	return &RedisVelocity{cache: cache, now: time.Now}
}

func (v *RedisVelocity) bucket(offset int64) string {
	hour := v.now().Unix()/3600 + offset
	return fmt.Sprintf("%s%d", velocityKeyPrefix, hour)
}

// RecordVend increments the current hour bucket.
func (v *RedisVelocity) RecordVend(ctx context.Context) error {
	key := v.bucket(0)
	cnt, err := v.cache.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if cnt == 1 {
		v.cache.Expire(ctx, key, 2*time.Hour)
	}
	return nil
}

// VendsLastHour sums the current and previous hour buckets.
func (v *RedisVelocity) VendsLastHour(ctx context.Context) (int64, error) {
	var total int64
	for _, key := range []string{v.bucket(0), v.bucket(-1)} {
		n, err := v.cache.Get(ctx, key).Int64()
		if err != nil && err != redis.Nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

type memoryVelocity struct {
	mu    sync.Mutex
	vends []time.Time
	now   func() time.Time
}

// NewMemoryVelocity constructs an in-memory velocity counter for tests and
// dev mode without Redis.
func NewMemoryVelocity() VelocityCounter {
	return &memoryVelocity{now: time.Now}
}

func (v *memoryVelocity) RecordVend(_ context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vends = append(v.vends, v.now())
	return nil
}

func (v *memoryVelocity) VendsLastHour(_ context.Context) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	cutoff := v.now().Add(-time.Hour)
	kept := v.vends[:0]
	var n int64
	for _, ts := range v.vends {
		if ts.After(cutoff) {
			kept = append(kept, ts)
			n++
		}
	}
	v.vends = kept
	return n, nil
}
