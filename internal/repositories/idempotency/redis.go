package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SscSPs/hotel_billing/internal/core/ports/repositories"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "billing:idempotency:"
	pendingValue     = "-"
)

// RedisStore implements repositories.IdempotencyStore on Redis so several
// API instances share claims.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore connects to url (redis://...) and pings it.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client, ""), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

// Claim uses SETNX so exactly one request wins the key.
func (s *RedisStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+key, pendingValue, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Complete(ctx context.Context, key, resultID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.keyPrefix+key, resultID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to complete idempotency key: %w", err)
	}
	return nil
}

// Release deletes the key only while it is still pending.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	k := s.keyPrefix + key
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		v, err := tx.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) || (err == nil && v != pendingValue) {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, k)
			return nil
		})
		return err
	}, k)
	if err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

func (s *RedisStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	if v == pendingValue {
		return "", true, nil
	}
	return v, true, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ repositories.IdempotencyStore = (*RedisStore)(nil)
