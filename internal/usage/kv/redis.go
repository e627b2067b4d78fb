package kv

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores values in Redis with an optional expiry, so abandoned guest
// counters disappear on their own.
type Redis struct {
	Client redis.Cmdable
	Prefix string
	TTL    time.Duration
}

// NewRedis constructs a Redis store. A zero ttl keeps values forever.
func NewRedis(client redis.Cmdable, ttl time.Duration) *Redis {
	return &Redis{Client: client, Prefix: "agentcv:", TTL: ttl}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.Client.Get(ctx, r.Prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return val, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	return r.Client.Set(ctx, r.Prefix+key, value, r.TTL).Err()
}
