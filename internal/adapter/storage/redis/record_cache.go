package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RecordCache implements ports.RecordCache using Redis, keyed by reference
// digest. It fronts the transaction_records table for replay detection;
// Postgres stays authoritative.
type RecordCache struct {
	client *goredis.Client
	prefix string
}

// NewRecordCache creates a new Redis-backed settlement record cache.
func NewRecordCache(client *goredis.Client) *RecordCache {
	return &RecordCache{
		client: client,
		prefix: "record:",
	}
}

// Get retrieves a cached settlement record by reference digest.
// Returns nil, nil if the digest has no cached record.
func (c *RecordCache) Get(ctx context.Context, digest string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+digest).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis record get: %w", err)
	}
	return val, nil
}

// Set stores a settled record with TTL.
func (c *RecordCache) Set(ctx context.Context, digest string, value []byte, ttl time.Duration) error {
	err := c.client.Set(ctx, c.prefix+digest, value, ttl).Err()
	if err != nil {
		return fmt.Errorf("redis record set: %w", err)
	}
	return nil
}
