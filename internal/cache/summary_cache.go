package cache

import (
	"context"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// SummaryCache keeps generated summaries in redis keyed by document and kind.
type SummaryCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewSummaryCache(client *redisv9.Client, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SummaryCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *SummaryCache) Get(ctx context.Context, documentID, kind string) (string, bool, error) {
	raw, err := c.client.Get(ctx, SummaryKey(documentID, kind)).Result()
	if err == redisv9.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get summary failed: %w", err)
	}
	return raw, true, nil
}

func (c *SummaryCache) Set(ctx context.Context, documentID, kind, summary string) error {
	if err := c.client.Set(ctx, SummaryKey(documentID, kind), summary, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set summary failed: %w", err)
	}
	return nil
}

func SummaryKey(documentID, kind string) string {
	return fmt.Sprintf("docexplorer:summary:%s:%s", kind, documentID)
}
