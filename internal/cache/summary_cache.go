package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// SummaryCache holds English re-summaries of stored records.
type SummaryCache struct {
	client     *redisv9.Client
	ttl        time.Duration
	pendingTTL time.Duration
}

func NewSummaryCache(client *redisv9.Client, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SummaryCache{client: client, ttl: ttl, pendingTTL: 2 * time.Minute}
}

func (c *SummaryCache) GetEnglish(ctx context.Context, id string) (string, bool, error) {
	value, err := c.client.Get(ctx, c.englishKey(id)).Result()
	if errors.Is(err, redisv9.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get english summary failed: %w", err)
	}
	return value, true, nil
}

func (c *SummaryCache) SetEnglish(ctx context.Context, id, summary string) error {
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, c.englishKey(id), summary, c.ttl)
	pipe.Del(ctx, c.pendingKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set english summary failed: %w", err)
	}
	return nil
}

// MarkPending claims the English re-summary of id; false means another worker holds it.
func (c *SummaryCache) MarkPending(ctx context.Context, id string) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.pendingKey(id), "1", c.pendingTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis set pending marker failed: %w", err)
	}
	return ok, nil
}

func (c *SummaryCache) Invalidate(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, c.englishKey(id), c.pendingKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete english summary failed: %w", err)
	}
	return nil
}

func (c *SummaryCache) englishKey(id string) string {
	return fmt.Sprintf("summary:english:%s", id)
}

func (c *SummaryCache) pendingKey(id string) string {
	return fmt.Sprintf("summary:english:pending:%s", id)
}
