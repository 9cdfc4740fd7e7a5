package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/finbridge/finbridge/internal/config"
	"github.com/redis/go-redis/v9"
)

// Default timeouts for Redis operations.
const (
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second
)

// RedisStore implements Store on a shared Redis instance. Required for
// horizontally scaled deployments: codes minted on one bridge instance must
// be redeemable on another. Expiry is native Redis TTL; consumption uses
// GETDEL so two concurrent takes of one code yield exactly one success.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg *config.StoreConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, keyPrefix: cfg.Prefix}, nil
}

// NewRedisStoreWithClient wraps a pre-configured client. Used by tests
// with miniredis.
func NewRedisStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) codeKey(code string) string {
	return s.keyPrefix + "code:" + code
}

func (s *RedisStore) pendingKey(state string) string {
	return s.keyPrefix + "pending:" + state
}

func (s *RedisStore) PutCode(ctx context.Context, code string, entry CodeEntry, ttl time.Duration) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal code entry: %w", err)
	}
	return s.client.Set(ctx, s.codeKey(code), payload, ttl).Err()
}

func (s *RedisStore) TakeCode(ctx context.Context, code string) (CodeEntry, error) {
	payload, err := s.client.GetDel(ctx, s.codeKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Redis evicts expired keys itself, so an expired code is
			// indistinguishable from a missing one here
			return CodeEntry{}, ErrNotFound
		}
		return CodeEntry{}, fmt.Errorf("take code: %w", err)
	}

	var entry CodeEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return CodeEntry{}, fmt.Errorf("unmarshal code entry: %w", err)
	}
	if time.Now().After(entry.ExpiresAt) {
		return CodeEntry{}, ErrExpired
	}
	return entry, nil
}

func (s *RedisStore) PutPending(ctx context.Context, state string, pending PendingAuth, ttl time.Duration) error {
	payload, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("marshal pending auth: %w", err)
	}
	return s.client.Set(ctx, s.pendingKey(state), payload, ttl).Err()
}

func (s *RedisStore) TakePending(ctx context.Context, state string) (PendingAuth, error) {
	payload, err := s.client.GetDel(ctx, s.pendingKey(state)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return PendingAuth{}, ErrNotFound
		}
		return PendingAuth{}, fmt.Errorf("take pending auth: %w", err)
	}

	var pending PendingAuth
	if err := json.Unmarshal(payload, &pending); err != nil {
		return PendingAuth{}, fmt.Errorf("unmarshal pending auth: %w", err)
	}
	return pending, nil
}

// Close closes the Redis client connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
