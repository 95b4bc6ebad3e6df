package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps limiter state in Redis so several bot instances share it.
// Each user has a sorted set of interaction timestamps and a block key.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis backed state store
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "inspira:ratelimit"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) windowKey(userID int64) string {
	return fmt.Sprintf("%s:window:%d", s.prefix, userID)
}

func (s *RedisStore) blockKey(userID int64) string {
	return fmt.Sprintf("%s:block:%d", s.prefix, userID)
}

func (s *RedisStore) Record(ctx context.Context, userID int64, now time.Time, window time.Duration) (int, error) {
	key := s.windowKey(userID)
	cutoff := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	var card *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", cutoff)
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(now.UnixNano()),
			Member: uuid.NewString(),
		})
		card = pipe.ZCard(ctx, key)
		pipe.Expire(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis window update failed: %w", err)
	}
	return int(card.Val()), nil
}

func (s *RedisStore) ClearWindow(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, s.windowKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis window delete failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Block(ctx context.Context, userID int64, now, until time.Time) error {
	ttl := until.Sub(now)
	if ttl < time.Minute {
		ttl = time.Minute
	}
	// the key outlives the block so the guard sees the expiry and clears the window
	err := s.client.Set(ctx, s.blockKey(userID), until.UnixNano(), 2*ttl).Err()
	if err != nil {
		return fmt.Errorf("redis block set failed: %w", err)
	}
	return nil
}

func (s *RedisStore) BlockedUntil(ctx context.Context, userID int64) (time.Time, bool, error) {
	nanos, err := s.client.Get(ctx, s.blockKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis block get failed: %w", err)
	}
	return time.Unix(0, nanos), true, nil
}

func (s *RedisStore) Unblock(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, s.blockKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis block delete failed: %w", err)
	}
	return nil
}
