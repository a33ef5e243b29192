package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flicky/go-checkout-engine/internal/model"
)

// IdempotencyStore remembers which order a commit token produced. Put
// reports false when the key was already taken.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*model.Order, error)
	Put(ctx context.Context, key string, order model.Order) (bool, error)
}

type redisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) IdempotencyStore {
	return &redisIdempotencyStore{client: client, ttl: ttl}
}

func (s *redisIdempotencyStore) Get(ctx context.Context, key string) (*model.Order, error) {
	data, err := s.client.Get(ctx, idempotencyKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var order model.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("unmarshal order failed: %w", err)
	}
	return &order, nil
}

func (s *redisIdempotencyStore) Put(ctx context.Context, key string, order model.Order) (bool, error) {
	data, err := json.Marshal(order)
	if err != nil {
		return false, fmt.Errorf("marshal order failed: %w", err)
	}
	ok, err := s.client.SetNX(ctx, idempotencyKey(key), data, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return ok, nil
}

func idempotencyKey(key string) string {
	return "checkout_commit:" + key
}
