package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quote_manager/internal/models"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned when no summary is cached, including when the
// cache is disabled.
var ErrCacheMiss = errors.New("cache miss")

// ErrConcurrentWrite reports that the cached entry changed while a write was
// in flight; the write was dropped.
var ErrConcurrentWrite = errors.New("quote summary changed during write")

// Client caches quote summaries. A nil *Client is a disabled cache: reads
// miss and writes are no-ops.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

func Initialize(redisURL string, ttl time.Duration) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	// Test connection
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb, ttl: ttl}, nil
}

func summaryKey(quoteID string) string {
	return "quote_summary:" + quoteID
}

// SetQuoteSummary caches summary unless the cached entry carries a newer
// version. A concurrent write to the same key fails with ErrConcurrentWrite.
func (c *Client) SetQuoteSummary(ctx context.Context, summary models.QuoteSummary) error {
	if c == nil {
		return nil
	}
	jsonData, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal quote summary: %w", err)
	}

	key := summaryKey(summary.ID)
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		switch {
		case err == redis.Nil:
		case err != nil:
			return err
		default:
			var cached models.QuoteSummary
			if json.Unmarshal([]byte(current), &cached) == nil && cached.Version > summary.Version {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, jsonData, c.ttl)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConcurrentWrite
	}
	if err != nil {
		return fmt.Errorf("failed to set quote summary: %w", err)
	}
	return nil
}

func (c *Client) GetQuoteSummary(ctx context.Context, quoteID string) (*models.QuoteSummary, error) {
	if c == nil {
		return nil, ErrCacheMiss
	}
	val, err := c.rdb.Get(ctx, summaryKey(quoteID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get quote summary: %w", err)
	}

	var summary models.QuoteSummary
	if err := json.Unmarshal([]byte(val), &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quote summary: %w", err)
	}
	return &summary, nil
}

func (c *Client) DeleteQuoteSummary(ctx context.Context, quoteID string) error {
	if c == nil {
		return nil
	}
	return c.rdb.Del(ctx, summaryKey(quoteID)).Err()
}

// Close Redis connection
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
