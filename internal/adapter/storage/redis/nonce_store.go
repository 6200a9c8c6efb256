package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// NonceStore rejects replayed request nonces. Each accepted nonce occupies a
// Redis key, scoped per student, for as long as the signing window allows the
// request to be retried.
type NonceStore struct {
	client *goredis.Client
	prefix string
}

// NewNonceStore creates a new Redis-backed nonce store.
func NewNonceStore(client *goredis.Client) *NonceStore {
	return &NonceStore{
		client: client,
		prefix: "nonce:",
	}
}

// CheckAndSet claims a nonce atomically via SETNX. It returns true when the
// nonce was unseen and is now claimed, false when it was already used.
func (s *NonceStore) CheckAndSet(ctx context.Context, owner string, nonce string, ttl time.Duration) (bool, error) {
	key := s.prefix + owner + ":" + nonce
	claimed, err := s.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis nonce check: %w", err)
	}
	return claimed, nil
}
