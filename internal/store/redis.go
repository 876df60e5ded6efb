package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"modwatch/pkg/interfaces"
)

// RedisStateStore implements interfaces.TenantStateStore on Redis, so
// several bot nodes see the same prefix and caching-size settings.
type RedisStateStore struct {
	client *redis.Client
}

func NewRedisStateStore(addr, password string, db int) (*RedisStateStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStateStore{client: client}, nil
}

func prefixKey(tenantID string) string {
	return "modwatch:prefix:" + tenantID
}

func cachingKey(tenantID string) string {
	return "modwatch:caching:" + tenantID
}

func (s *RedisStateStore) Prefix(ctx context.Context, tenantID string) (string, error) {
	val, err := s.client.Get(ctx, prefixKey(tenantID)).Result()
	if err == redis.Nil {
		return "", interfaces.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load prefix: %w", err)
	}
	return val, nil
}

func (s *RedisStateStore) SetPrefix(ctx context.Context, tenantID, prefix string) error {
	return s.client.Set(ctx, prefixKey(tenantID), prefix, 0).Err()
}

func (s *RedisStateStore) CachingSize(ctx context.Context, tenantID string) (int, error) {
	val, err := s.client.Get(ctx, cachingKey(tenantID)).Result()
	if err == redis.Nil {
		return 0, interfaces.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load caching size: %w", err)
	}
	size, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("corrupt caching size %q: %w", val, err)
	}
	return size, nil
}

func (s *RedisStateStore) SetCachingSize(ctx context.Context, tenantID string, size int) error {
	return s.client.Set(ctx, cachingKey(tenantID), strconv.Itoa(size), 0).Err()
}

func (s *RedisStateStore) DeleteTenant(ctx context.Context, tenantID string) error {
	return s.client.Del(ctx, prefixKey(tenantID), cachingKey(tenantID)).Err()
}

func (s *RedisStateStore) Close() error {
	return s.client.Close()
}
