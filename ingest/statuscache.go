package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// StatusCache caches terminal batch statuses in Redis so upstream status
// polls can skip the database. Entirely optional: a nil client turns every
// operation into a no-op and the worker runs without Redis.
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatusCache wraps the given client. client may be nil.
func NewStatusCache(client *redis.Client, ttl time.Duration) *StatusCache {
	return &StatusCache{client: client, ttl: ttl}
}

func statusKey(batchID uuid.UUID) string {
	return fmt.Sprintf("batch:%s:status", batchID)
}

// SetTerminal records the batch's terminal status with the configured TTL.
func (c *StatusCache) SetTerminal(ctx context.Context, batchID uuid.UUID, status string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Set(ctx, statusKey(batchID), status, c.ttl).Err()
}

// Get returns the cached status, or "" when absent.
func (c *StatusCache) Get(ctx context.Context, batchID uuid.UUID) (string, error) {
	if c == nil || c.client == nil {
		return "", nil
	}
	v, err := c.client.Get(ctx, statusKey(batchID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}
