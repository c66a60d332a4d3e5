package redis

import (
	"context"
	"time"

	"github.com/altrivo/auth-service/internal/config"
	goredis "github.com/redis/go-redis/v9"
)

// NewClient creates a Redis client from the configured URL
// (redis://[user:pass@]host:port/db).
func NewClient(cfg *config.Config) *goredis.Client {
	opt, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		panic("invalid REDIS_URL: " + err.Error())
	}
	return goredis.NewClient(opt)
}

// KV is an expiring key-value store backed by Redis. It is the only shared
// mutable state the OTP flows touch.
type KV struct {
	client *goredis.Client
}

func NewKV(client *goredis.Client) *KV {
	return &KV{client: client}
}

func (s *KV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key).Result()
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *KV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Incr atomically increments key and returns the post-increment value. The
// TTL is armed only when the increment created the key, so the expiry window
// is not renewed by subsequent writes.
func (s *KV) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, err
		}
	}
	return n, nil
}

func (s *KV) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}
