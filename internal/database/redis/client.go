// Package redis caches finished reports in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when no report is cached for a request
var ErrCacheMiss = errors.New("cache miss")

// Client wraps Redis operations for the report cache
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration
type Config struct {
	// URL is a redis:// or rediss:// URL
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewClient creates a new Redis client and checks the connection
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// ReportKey is the cache key of a request's report
func ReportKey(requestTxID string) string {
	return fmt.Sprintf("report:%s", requestTxID)
}

// CacheReport stores an encoded report with expiration
func (c *Client) CacheReport(ctx context.Context, requestTxID string, data []byte, expiration time.Duration) error {
	if err := c.rdb.Set(ctx, ReportKey(requestTxID), data, expiration).Err(); err != nil {
		return fmt.Errorf("failed to cache report: %w", err)
	}
	return nil
}

// GetCachedReport retrieves an encoded report
func (c *Client) GetCachedReport(ctx context.Context, requestTxID string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, ReportKey(requestTxID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get cached report: %w", err)
	}
	return data, nil
}
