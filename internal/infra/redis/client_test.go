package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/vietddude/crosspost/internal/core/domain"
)

func newTestClient(t *testing.T, cfg Config) (*Client, *miniredis.Miniredis) {
	t.Helper()
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	t.Cleanup(srv.Close)

	cfg.URL = "redis://" + srv.Addr()
	c, err := NewClient(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, srv
}

type report struct {
	RunID string `json:"run_id"`
	Total int    `json:"total"`
}

func TestClient_PublishRun(t *testing.T) {
	c, srv := newTestClient(t, Config{HistoryLen: 2})
	ctx := context.Background()

	sub := c.rdb.Subscribe(ctx, defaultChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	for i := 1; i <= 3; i++ {
		if err := c.PublishRun(ctx, report{RunID: "run", Total: i}); err != nil {
			t.Fatalf("PublishRun failed: %v", err)
		}
	}

	last, err := c.LastRun(ctx)
	if err != nil {
		t.Fatalf("LastRun failed: %v", err)
	}
	var got report
	if err := json.Unmarshal(last, &got); err != nil || got.Total != 3 {
		t.Errorf("unexpected last run %s", last)
	}

	runs, err := c.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("history should be trimmed to 2, got %d", len(runs))
	}

	if !srv.Exists("crosspost:last_run") {
		t.Error("last run key missing")
	}

	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("ReceiveMessage failed: %v", err)
	}
	if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil || got.Total != 1 {
		t.Errorf("unexpected published payload %s", msg.Payload)
	}
}

func TestClient_LastRunEmpty(t *testing.T) {
	c, _ := newTestClient(t, Config{KeyPrefix: "test"})
	last, err := c.LastRun(context.Background())
	if err != nil || last != nil {
		t.Errorf("expected empty last run, got %s, %v", last, err)
	}
}

func TestNewClient_BadURL(t *testing.T) {
	if _, err := NewClient(context.Background(), Config{URL: "not-a-url"}); err == nil {
		t.Error("expected parse error")
	}
}

func TestQuarantineLog(t *testing.T) {
	c, srv := newTestClient(t, Config{QuarantineTTL: 3600})
	q := NewQuarantineLog(c)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	reports := []domain.FileReport{
		{Source: domain.SourceImage, FileName: "a.jpg", Disposition: domain.DispositionQuarantined},
		{Source: domain.SourceShortVideo, FileName: "b.mp4", Disposition: domain.DispositionQuarantined},
	}
	for i, r := range reports {
		if err := q.Add(ctx, "run-1", r, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	entries, err := q.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Report.FileName != "b.mp4" || entries[1].RunID != "run-1" {
		t.Errorf("unexpected entries %+v", entries)
	}

	if ttl := srv.TTL("crosspost:quarantine:image/a.jpg"); ttl != time.Hour {
		t.Errorf("expected 1h TTL, got %v", ttl)
	}

	if err := q.Resolve(ctx, domain.SourceImage, "a.jpg"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if n, _ := q.Count(ctx); n != 1 {
		t.Errorf("expected 1 entry after resolve, got %d", n)
	}

	// Expired payloads are pruned from the index.
	srv.FastForward(2 * time.Hour)
	entries, err = q.Recent(ctx, 10)
	if err != nil || len(entries) != 0 {
		t.Errorf("expected no entries after expiry, got %+v, %v", entries, err)
	}
	if n, _ := q.Count(ctx); n != 0 {
		t.Errorf("expected index pruned, got %d", n)
	}
}
