package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"satsangstream/resolverservice/internal/domain"
)

const redisCachePrefix = "resolver:cache:"

// RedisBackend stores resolved responses in Redis with JSON serialization.
// It sits behind the same lookup/store contract as the in-memory cache, so a
// deployment can share resolutions across processes without touching the
// orchestrator.
type RedisBackend struct {
	client *redis.Client
}

func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (r *RedisBackend) Get(ctx context.Context, key string) (domain.ResolveResponse, bool, error) {
	data, err := r.client.Get(ctx, redisCachePrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ResolveResponse{}, false, nil
		}
		return domain.ResolveResponse{}, false, err
	}
	var resp domain.ResolveResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return domain.ResolveResponse{}, false, err
	}
	return resp, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, response domain.ResolveResponse, ttl time.Duration) error {
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisCachePrefix+key, data, ttl).Err()
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, redisCachePrefix+key).Err()
}

func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
