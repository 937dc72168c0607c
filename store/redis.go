package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "x402:proof:"

// RedisStore shares claims between gate instances. A zero ttl keeps
// claims forever.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStoreFromClient(client, ttl), nil
}

func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Claim(ctx context.Context, txHash, binding string) error {
	key := redisKeyPrefix + normalize(txHash)

	ok, err := r.client.SetNX(ctx, key, binding, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("claim proof: %w", err)
	}
	if ok {
		return nil
	}

	existing, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return r.Claim(ctx, txHash, binding)
	}
	if err != nil {
		return fmt.Errorf("read proof claim: %w", err)
	}
	if existing != binding {
		return ErrProofReused
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
