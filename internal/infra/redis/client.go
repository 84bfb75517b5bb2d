// Package redis publishes run reports and keeps a short quarantine log in
// Redis so dashboards and chat bots can follow runs without reading logs.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultChannel    = "crosspost:runs"
	defaultPrefix     = "crosspost"
	defaultHistoryLen = 50
)

// Client wraps the Redis operations used after a run.
type Client struct {
	rdb *redis.Client
	cfg Config
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	// Channel receives every run report via PUBLISH.
	Channel string `yaml:"channel"`
	// KeyPrefix namespaces all keys.
	KeyPrefix string `yaml:"key_prefix"`
	// HistoryLen bounds the run history list.
	HistoryLen int `yaml:"history_len"`
	// QuarantineTTL is how long quarantine entries are kept (seconds).
	QuarantineTTL int `yaml:"quarantine_ttl"`
}

// NewClient creates a new Redis client and checks the connection.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.Channel == "" {
		cfg.Channel = defaultChannel
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultPrefix
	}
	if cfg.HistoryLen <= 0 {
		cfg.HistoryLen = defaultHistoryLen
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb, cfg: cfg}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key helpers
func (c *Client) lastRunKey() string {
	return c.cfg.KeyPrefix + ":last_run"
}

func (c *Client) historyKey() string {
	return c.cfg.KeyPrefix + ":runs"
}

// PublishRun stores report as the last run, prepends it to the bounded
// history and publishes it on the channel, in one transaction.
func (c *Client) PublishRun(ctx context.Context, report any) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal run report: %w", err)
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.lastRunKey(), data, 0)
		pipe.LPush(ctx, c.historyKey(), data)
		pipe.LTrim(ctx, c.historyKey(), 0, int64(c.cfg.HistoryLen-1))
		pipe.Publish(ctx, c.cfg.Channel, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish run report: %w", err)
	}
	return nil
}

// LastRun returns the most recent run report, or nil when none was stored.
func (c *Client) LastRun(ctx context.Context) (json.RawMessage, error) {
	data, err := c.rdb.Get(ctx, c.lastRunKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}
	return data, nil
}

// RecentRuns returns up to n run reports, newest first.
func (c *Client) RecentRuns(ctx context.Context, n int) ([]json.RawMessage, error) {
	if n <= 0 {
		return nil, nil
	}
	items, err := c.rdb.LRange(ctx, c.historyKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange failed: %w", err)
	}
	runs := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		runs = append(runs, json.RawMessage(item))
	}
	return runs, nil
}
