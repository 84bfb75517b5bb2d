package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/crosspost/internal/core/domain"
)

const defaultQuarantineTTL = 30 * 24 * time.Hour

// QuarantineEntry is a file moved to quarantine during a run.
type QuarantineEntry struct {
	RunID  string            `json:"run_id"`
	Report domain.FileReport `json:"report"`
	At     time.Time         `json:"at"`
}

// QuarantineLog indexes quarantined files by time so operators can see
// what needs attention.
type QuarantineLog struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewQuarantineLog creates a quarantine log on client.
func NewQuarantineLog(client *Client) *QuarantineLog {
	ttl := time.Duration(client.cfg.QuarantineTTL) * time.Second
	if ttl <= 0 {
		ttl = defaultQuarantineTTL
	}
	return &QuarantineLog{rdb: client.rdb, prefix: client.cfg.KeyPrefix, ttl: ttl}
}

// Key helpers
func (q *QuarantineLog) indexKey() string {
	return q.prefix + ":quarantine"
}

func (q *QuarantineLog) entryKey(id string) string {
	return q.prefix + ":quarantine:" + id
}

func entryID(report domain.FileReport) string {
	return string(report.Source) + "/" + report.FileName
}

// Add records a quarantined file. Re-adding the same file replaces the
// previous entry.
func (q *QuarantineLog) Add(ctx context.Context, runID string, report domain.FileReport, at time.Time) error {
	data, err := json.Marshal(QuarantineEntry{RunID: runID, Report: report, At: at.UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal quarantine entry: %w", err)
	}

	id := entryID(report)
	if err := q.rdb.Set(ctx, q.entryKey(id), data, q.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set quarantine entry: %w", err)
	}

	// Score = time, newest last.
	if err := q.rdb.ZAdd(ctx, q.indexKey(), redis.Z{
		Score:  float64(at.Unix()),
		Member: id,
	}).Err(); err != nil {
		return fmt.Errorf("failed to add to index: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. Expired entries are
// pruned from the index as they are found.
func (q *QuarantineLog) Recent(ctx context.Context, limit int) ([]QuarantineEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	ids, err := q.rdb.ZRevRange(ctx, q.indexKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange failed: %w", err)
	}

	entries := make([]QuarantineEntry, 0, len(ids))
	for _, id := range ids {
		data, err := q.rdb.Get(ctx, q.entryKey(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			q.rdb.ZRem(ctx, q.indexKey(), id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get quarantine entry: %w", err)
		}

		var entry QuarantineEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Resolve removes a file from the log, e.g. after it was re-queued by hand.
func (q *QuarantineLog) Resolve(ctx context.Context, source domain.SourceID, fileName string) error {
	id := string(source) + "/" + fileName
	if err := q.rdb.ZRem(ctx, q.indexKey(), id).Err(); err != nil {
		return fmt.Errorf("failed to remove from index: %w", err)
	}
	if err := q.rdb.Del(ctx, q.entryKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete quarantine entry: %w", err)
	}
	return nil
}

// Count returns the number of indexed entries.
func (q *QuarantineLog) Count(ctx context.Context) (int, error) {
	count, err := q.rdb.ZCard(ctx, q.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return int(count), nil
}
