package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/viralforge/invoicing-accounts/internal/ports"
)

const lockoutKeyPrefix = "accounts:lockout:"

// RedisLockoutStore keeps failure counters in Redis hashes with
// fields failed_count and locked_until (unix seconds). The hash expires
// one window after its first failure, or one window after it locks.
type RedisLockoutStore struct {
	client redis.UniversalClient
}

func NewRedisLockoutStore(client redis.UniversalClient) *RedisLockoutStore {
	return &RedisLockoutStore{client: client}
}

func (s *RedisLockoutStore) Get(ctx context.Context, key string) (ports.LockoutState, error) {
	data, err := s.client.HGetAll(ctx, lockoutKeyPrefix+key).Result()
	if err != nil {
		return ports.LockoutState{}, err
	}
	return parseLockoutState(data), nil
}

// RecordFailure counts a failure in the window opened by the first one.
func (s *RedisLockoutStore) RecordFailure(ctx context.Context, key string, now time.Time, threshold int, lockoutWindow time.Duration) (ports.LockoutState, error) {
	redisKey := lockoutKeyPrefix + key

	var incr *redis.IntCmd
	if _, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.HIncrBy(ctx, redisKey, "failed_count", 1)
		p.ExpireNX(ctx, redisKey, lockoutWindow)
		return nil
	}); err != nil {
		return ports.LockoutState{}, err
	}

	count := int(incr.Val())
	state := ports.LockoutState{FailedCount: count}
	if count < threshold {
		return state, nil
	}

	lockedUntil := now.Add(lockoutWindow).UTC().Truncate(time.Second)
	if _, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, redisKey, "locked_until", lockedUntil.Unix())
		p.Expire(ctx, redisKey, lockoutWindow)
		return nil
	}); err != nil {
		return ports.LockoutState{}, err
	}
	state.LockedUntil = &lockedUntil
	return state, nil
}

func (s *RedisLockoutStore) Clear(ctx context.Context, key string) error {
	return s.client.Del(ctx, lockoutKeyPrefix+key).Err()
}

func parseLockoutState(data map[string]string) ports.LockoutState {
	var state ports.LockoutState
	if n, err := strconv.Atoi(data["failed_count"]); err == nil {
		state.FailedCount = n
	}
	if unix, err := strconv.ParseInt(data["locked_until"], 10, 64); err == nil && unix > 0 {
		t := time.Unix(unix, 0).UTC()
		state.LockedUntil = &t
	}
	return state
}
