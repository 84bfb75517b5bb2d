package notify

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type chatServer struct {
	mu       sync.Mutex
	messages []string
	status   int
}

func (c *chatServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	c.mu.Lock()
	c.messages = append(c.messages, r.PostForm.Get("text"))
	c.mu.Unlock()
	if c.status != 0 {
		w.WriteHeader(c.status)
		return
	}
	w.Write([]byte(`{"ok":true}`))
}

func TestWrap_DisabledReturnsNext(t *testing.T) {
	next := slog.NewTextHandler(&bytes.Buffer{}, nil)
	if got := Wrap(next, Config{BotToken: "t"}); got != next {
		t.Error("expected the wrapped handler unchanged when chat id is missing")
	}
}

func TestHandler_ForwardsAtOrAboveLevel(t *testing.T) {
	chat := &chatServer{}
	srv := httptest.NewServer(chat)
	defer srv.Close()

	var console bytes.Buffer
	h := Wrap(slog.NewTextHandler(&console, &slog.HandlerOptions{Level: slog.LevelDebug}), Config{
		BotToken: "tok",
		ChatID:   "1",
		Level:    "warn",
		BaseURL:  srv.URL,
	})
	logger := slog.New(h).With("component", "orchestrator").WithGroup("file")

	logger.Info("Cycle started", "name", "a.jpg")
	logger.Warn("Quarantined", "name", "b.jpg")

	if len(chat.messages) != 1 {
		t.Fatalf("expected one forwarded message, got %v", chat.messages)
	}
	want := "[WARN] Quarantined component=orchestrator file.name=b.jpg"
	if chat.messages[0] != want {
		t.Errorf("got %q, want %q", chat.messages[0], want)
	}
	if !strings.Contains(console.String(), "Cycle started") || !strings.Contains(console.String(), "Quarantined") {
		t.Errorf("console handler should receive every record, got %q", console.String())
	}
}

func TestHandler_TruncatesAndSwallowsFailures(t *testing.T) {
	chat := &chatServer{status: http.StatusInternalServerError}
	srv := httptest.NewServer(chat)
	defer srv.Close()

	h := Wrap(slog.NewTextHandler(&bytes.Buffer{}, nil), Config{BotToken: "tok", ChatID: "1", BaseURL: srv.URL})
	logger := slog.New(h)

	logger.Error(strings.Repeat("x", 5000))

	if len(chat.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(chat.messages))
	}
	if n := len([]rune(chat.messages[0])); n != maxMessage {
		t.Errorf("expected message capped at %d, got %d", maxMessage, n)
	}
}

func TestHandler_UnreachableChatDoesNotFail(t *testing.T) {
	h := Wrap(slog.NewTextHandler(&bytes.Buffer{}, nil), Config{BotToken: "tok", ChatID: "1", BaseURL: "http://127.0.0.1:1"})
	slog.New(h).Error("still logs")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in, slog.LevelInfo); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
