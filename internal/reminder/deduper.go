package reminder

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// markTTL outlives the scan window so overlapping scans, and a scanner
// restart, never re-publish a reminder for the same due date.
const markTTL = 2 * Window

// RedisDeduper records published reminders in Redis with a TTL.
type RedisDeduper struct {
	client *redis.Client
}

func NewRedisDeduper(client *redis.Client) *RedisDeduper {
	return &RedisDeduper{client: client}
}

// MarkOnce returns true exactly once per key within the TTL.
func (d *RedisDeduper) MarkOnce(ctx context.Context, key string) (bool, error) {
	return d.client.SetNX(ctx, key, time.Now().Unix(), markTTL).Result()
}
