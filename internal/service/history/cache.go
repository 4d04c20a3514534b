package history

import (
	"context"
	"errors"
	"log"
	"time"

	"synthesistalk/internal/models"
	"synthesistalk/internal/redis"
)

const historyCacheTTL = 30 * time.Minute

type historyCache struct {
	client *redis.Client
}

func newHistoryCache(client *redis.Client) *historyCache {
	return &historyCache{client: client}
}

func historyKey(userID string) string {
	return "history:" + userID
}

func (c *historyCache) enabled() bool {
	return c != nil && c.client != nil && c.client.Raw() != nil
}

func (c *historyCache) load(ctx context.Context, userID string) ([]models.Message, bool) {
	if !c.enabled() {
		return nil, false
	}
	var history []models.Message
	if err := c.client.GetJSON(ctx, historyKey(userID), &history); err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			log.Printf("history cache load failed: %v", err)
		}
		return nil, false
	}
	for _, msg := range history {
		if msg.UserID != userID {
			return nil, false
		}
	}
	return history, true
}

func (c *historyCache) store(ctx context.Context, userID string, history []models.Message) {
	if !c.enabled() {
		return
	}
	if err := c.client.SetJSON(ctx, historyKey(userID), history, historyCacheTTL); err != nil {
		log.Printf("history cache store failed: %v", err)
	}
}

func (c *historyCache) invalidate(ctx context.Context, userID string) {
	if !c.enabled() {
		return
	}
	if err := c.client.Del(ctx, historyKey(userID)); err != nil && !errors.Is(err, redis.ErrCacheMiss) {
		log.Printf("history cache invalidate failed: %v", err)
	}
}
