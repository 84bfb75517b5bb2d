package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/vietddude/crosspost/internal/core/domain"
)

const telegramBaseURL = "https://api.telegram.org"

// Telegram posts to a chat through the Bot API.
type Telegram struct {
	api     *apiClient
	baseURL string
	token   string
	chatID  string
	log     *slog.Logger
}

// NewTelegram creates a Telegram publisher.
func NewTelegram(baseURL, token, chatID string, client *http.Client) *Telegram {
	if baseURL == "" {
		baseURL = telegramBaseURL
	}
	api := newAPIClient(domain.PlatformTelegram, client)
	api.decorate = func(apiErr *domain.APIError, body []byte) {
		retryAfterFromJSON(apiErr, body, "parameters", "retry_after")
	}
	return &Telegram{
		api:     api,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		chatID:  chatID,
		log:     slog.Default().With("component", "publisher", "platform", domain.PlatformTelegram),
	}
}

func (t *Telegram) Name() domain.Platform { return domain.PlatformTelegram }

func (t *Telegram) Capabilities() Capabilities { return Capabilities{} }

func (t *Telegram) PostImage(ctx context.Context, media Media, caption domain.Caption) (bool, error) {
	return t.send(ctx, "sendPhoto", "photo", media, caption)
}

func (t *Telegram) PostVideo(ctx context.Context, media Media, caption domain.Caption) (bool, error) {
	return t.send(ctx, "sendVideo", "video", media, caption)
}

func (t *Telegram) send(ctx context.Context, method, field string, media Media, caption domain.Caption) (bool, error) {
	if media.LocalPath == "" {
		return false, fmt.Errorf("telegram: local file required: %w", ErrNotSupported)
	}

	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, method)
	fields := url.Values{"chat_id": {t.chatID}, "caption": {caption.Text}}
	req, err := newMultipartRequest(ctx, endpoint, fields, formFile{field: field, path: media.LocalPath})
	if err != nil {
		return false, err
	}

	var resp struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := t.api.do(req, &resp); err != nil {
		return false, err
	}
	if !resp.OK {
		return false, &domain.APIError{Platform: domain.PlatformTelegram, Message: resp.Description}
	}
	t.log.Info("Telegram content posted", "method", method)
	return true, nil
}
