package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPersister stores slots as namespace:key strings, so several clients
// can share one Redis by using distinct namespaces.
type RedisPersister struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
}

// NewRedisPersister wraps client. A zero ttl keeps slots until deleted.
func NewRedisPersister(client redis.UniversalClient, namespace string, ttl time.Duration) *RedisPersister {
	return &RedisPersister{client: client, namespace: namespace, ttl: ttl}
}

func (r *RedisPersister) key(k Key) string {
	return r.namespace + ":" + string(k)
}

func (r *RedisPersister) Get(ctx context.Context, key Key) ([]byte, error) {
	b, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotPersisted
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

func (r *RedisPersister) Put(ctx context.Context, key Key, value []byte) error {
	if err := r.client.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisPersister) Delete(ctx context.Context, keys ...Key) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, r.key(k))
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
