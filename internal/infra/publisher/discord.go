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

const (
	discordBaseURL    = "https://discord.com/api/v10"
	discordContentMax = 2000
	// discordNitroFreeMB is the attachment size above which uploads may be
	// rejected for servers without boosts.
	discordNitroFreeMB = 8
)

// Discord posts media as a message attachment in a channel.
type Discord struct {
	api       *apiClient
	baseURL   string
	token     string
	channelID string
	log       *slog.Logger
}

// NewDiscord creates a Discord publisher.
func NewDiscord(baseURL, token, channelID string, client *http.Client) *Discord {
	if baseURL == "" {
		baseURL = discordBaseURL
	}
	api := newAPIClient(domain.PlatformDiscord, client)
	api.decorate = func(apiErr *domain.APIError, body []byte) {
		retryAfterFromJSON(apiErr, body, "retry_after")
	}
	return &Discord{
		api:       api,
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		channelID: channelID,
		log:       slog.Default().With("component", "publisher", "platform", domain.PlatformDiscord),
	}
}

func (d *Discord) Name() domain.Platform { return domain.PlatformDiscord }

func (d *Discord) Capabilities() Capabilities { return Capabilities{} }

func (d *Discord) PostImage(ctx context.Context, media Media, caption domain.Caption) (bool, error) {
	return d.post(ctx, media, caption)
}

// PostVideo sends the video as a plain attachment, the same as an image.
func (d *Discord) PostVideo(ctx context.Context, media Media, caption domain.Caption) (bool, error) {
	return d.post(ctx, media, caption)
}

func (d *Discord) post(ctx context.Context, media Media, caption domain.Caption) (bool, error) {
	if media.LocalPath == "" {
		return false, fmt.Errorf("discord: local file required: %w", ErrNotSupported)
	}
	if mb := fileSizeMB(media.LocalPath); mb > discordNitroFreeMB {
		d.log.Warn("Attachment above 8MB may be rejected without boosts", "size_mb", fmt.Sprintf("%.2f", mb))
	}

	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	fields := url.Values{"content": {truncateRunes(caption.Text, discordContentMax)}}
	endpoint := fmt.Sprintf("%s/channels/%s/messages", d.baseURL, url.PathEscape(d.channelID))
	req, err := newMultipartRequest(ctx, endpoint, fields, formFile{field: "file", path: media.LocalPath})
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bot "+d.token)
	req.Header.Set("User-Agent", "DiscordBot (crosspost, 1.0)")

	var msg struct {
		ID string `json:"id"`
	}
	if err := d.api.do(req, &msg); err != nil {
		return false, err
	}
	d.log.Info("Discord upload complete", "message_id", msg.ID)
	return true, nil
}
