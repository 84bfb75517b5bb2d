// Package notify forwards log records to an operator Telegram chat.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	// maxMessage keeps under Telegram's 4096 character message limit.
	maxMessage  = 4000
	sendTimeout = 10 * time.Second
)

// Config holds the operator chat settings.
type Config struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
	// Level is the minimum level forwarded (debug, info, warn, error).
	Level   string `yaml:"level"`
	BaseURL string `yaml:"base_url"`
}

// Enabled reports whether both the token and chat are configured.
func (c Config) Enabled() bool {
	return c.BotToken != "" && c.ChatID != ""
}

// Handler is a slog.Handler that passes every record to the wrapped handler
// and additionally sends records at or above its level to Telegram. Send
// failures are dropped so logging never breaks the run.
type Handler struct {
	next   slog.Handler
	level  slog.Level
	sender *sender
	attrs  string
	group  string
}

// Wrap returns next unchanged when cfg is not enabled.
func Wrap(next slog.Handler, cfg Config) slog.Handler {
	if !cfg.Enabled() {
		return next
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Handler{
		next:  next,
		level: ParseLevel(cfg.Level, slog.LevelInfo),
		sender: &sender{
			endpoint: fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(base, "/"), cfg.BotToken),
			chatID:   cfg.ChatID,
			client:   &http.Client{Timeout: sendTimeout},
		},
	}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level || h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if h.next.Enabled(ctx, r.Level) {
		err = h.next.Handle(ctx, r)
	}
	if r.Level >= h.level {
		h.sender.send(ctx, h.format(r))
	}
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.next = h.next.WithAttrs(attrs)
	var b strings.Builder
	b.WriteString(h.attrs)
	for _, a := range attrs {
		writeAttr(&b, h.group, a)
	}
	clone.attrs = b.String()
	return &clone
}

func (h *Handler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.next = h.next.WithGroup(name)
	if h.group == "" {
		clone.group = name
	} else {
		clone.group = h.group + "." + name
	}
	return &clone
}

func (h *Handler) format(r slog.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", r.Level, r.Message)
	b.WriteString(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.group, a)
		return true
	})
	return truncate(b.String(), maxMessage)
}

func writeAttr(b *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(b, key, ga)
		}
		return
	}
	fmt.Fprintf(b, " %s=%s", key, a.Value.String())
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// ParseLevel maps a level name to slog.Level, returning def when empty or
// unknown.
func ParseLevel(s string, def slog.Level) slog.Level {
	var level slog.Level
	if s == "" || level.UnmarshalText([]byte(s)) != nil {
		return def
	}
	return level
}

type sender struct {
	endpoint string
	chatID   string
	client   *http.Client
}

func (s *sender) send(ctx context.Context, text string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()

	form := url.Values{"chat_id": {s.chatID}, "text": {text}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := s.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}
