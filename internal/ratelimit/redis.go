package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore counts with INCR and expires the key when the window closes,
// so all instances sharing the Redis server share the windows.
type RedisStore struct {
	client *redis.Client
	prefix string
	max    int
	window time.Duration
}

func NewRedisStore(client *redis.Client, max int, window time.Duration) *RedisStore {
	if max <= 0 {
		max = DefaultMax
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisStore{
		client: client,
		prefix: "spai:rate_limit:",
		max:    max,
		window: window,
	}
}

func (s *RedisStore) Take(ctx context.Context, id string) (Decision, error) {
	key := s.prefix + id

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit incr: %w", err)
	}
	// Only the first request of a window sets the deadline.
	if count == 1 {
		if err := s.client.PExpire(ctx, key, s.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("rate limit expire: %w", err)
		}
		return s.decide(count, s.window), nil
	}

	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit ttl: %w", err)
	}
	if ttl < 0 {
		// a crash between INCR and PEXPIRE would leave the key without a deadline
		if err := s.client.PExpire(ctx, key, s.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("rate limit expire: %w", err)
		}
	}
	return s.decide(count, ttl), nil
}

func (s *RedisStore) Peek(ctx context.Context, id string) (Decision, error) {
	key := s.prefix + id

	count, err := s.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return Decision{Allowed: true, Limit: s.max, Remaining: s.max, ResetAt: time.Now()}, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit get: %w", err)
	}
	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit ttl: %w", err)
	}
	d := s.decide(count, ttl)
	d.Allowed = count < int64(s.max)
	return d, nil
}

func (s *RedisStore) decide(count int64, ttl time.Duration) Decision {
	if ttl < 0 {
		ttl = s.window
	}
	return Decision{
		Allowed:   count <= int64(s.max),
		Limit:     s.max,
		Remaining: max(0, s.max-int(count)),
		ResetAt:   time.Now().Add(ttl),
	}
}
