package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vietddude/crosspost/internal/core/domain"
)

const (
	threadsBaseURL  = "https://graph.threads.net/v1.0"
	threadsMaxPolls = 60
)

// Threads publishes through the Threads API: create a container from a
// public URL, poll until processed (images included), then publish.
type Threads struct {
	api          *apiClient
	baseURL      string
	userID       string
	token        string
	pollInterval time.Duration
	log          *slog.Logger
}

// NewThreads creates a Threads publisher.
func NewThreads(baseURL, userID, token string, client *http.Client) *Threads {
	if baseURL == "" {
		baseURL = threadsBaseURL
	}
	return &Threads{
		api:          newAPIClient(domain.PlatformThreads, client),
		baseURL:      strings.TrimRight(baseURL, "/"),
		userID:       userID,
		token:        token,
		pollInterval: defaultPollInterval,
		log:          slog.Default().With("component", "publisher", "platform", domain.PlatformThreads),
	}
}

func (t *Threads) Name() domain.Platform { return domain.PlatformThreads }

func (t *Threads) Capabilities() Capabilities { return Capabilities{URLFirst: true} }

func (t *Threads) PostImage(ctx context.Context, media Media, caption domain.Caption) (bool, error) {
	return t.publish(ctx, "IMAGE", "image_url", media, caption)
}

func (t *Threads) PostVideo(ctx context.Context, media Media, caption domain.Caption) (bool, error) {
	return t.publish(ctx, "VIDEO", "video_url", media, caption)
}

func (t *Threads) publish(ctx context.Context, mediaType, urlField string, media Media, caption domain.Caption) (bool, error) {
	if media.URL == "" {
		return false, fmt.Errorf("threads: public url required: %w", ErrNotSupported)
	}
	user := fmt.Sprintf("%s/%s", t.baseURL, url.PathEscape(t.userID))

	var container struct {
		ID string `json:"id"`
	}
	createCtx, cancel := withTimeout(ctx, defaultTimeout)
	err := t.api.postForm(createCtx, user+"/threads", url.Values{
		"access_token": {t.token},
		"text":         {caption.Text},
		"media_type":   {mediaType},
		urlField:       {media.URL},
	}, &container)
	cancel()
	if err != nil {
		return false, err
	}
	if container.ID == "" {
		return false, &domain.APIError{Platform: domain.PlatformThreads, Message: "container create returned no id"}
	}

	t.log.Info("Waiting for container to process", "media_type", mediaType, "container_id", container.ID)
	if err := t.waitForContainer(ctx, container.ID); err != nil {
		return false, fmt.Errorf("threads: %w", err)
	}

	pubCtx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()
	err = t.api.postForm(pubCtx, user+"/threads_publish", url.Values{
		"creation_id":  {container.ID},
		"access_token": {t.token},
	}, nil)
	if err != nil {
		return false, err
	}
	t.log.Info("Threads published")
	return true, nil
}

func (t *Threads) waitForContainer(ctx context.Context, id string) error {
	attempt := 0
	return pollUntilReady(ctx, t.pollInterval, threadsMaxPolls, func(ctx context.Context) (bool, error) {
		attempt++
		pollCtx, cancel := withTimeout(ctx, pollTimeout)
		defer cancel()

		var status struct {
			Status       string `json:"status"`
			ErrorMessage string `json:"error_message"`
		}
		err := t.api.get(pollCtx, fmt.Sprintf("%s/%s", t.baseURL, url.PathEscape(id)), url.Values{
			"fields":       {"status,error_message"},
			"access_token": {t.token},
		}, &status)
		if err != nil {
			return false, err
		}
		t.log.Debug("Container status", "attempt", attempt, "status", status.Status)

		switch status.Status {
		case "FINISHED", "PUBLISHED":
			return true, nil
		case "ERROR", "EXPIRED":
			return false, &processingFailedError{status: status.Status, message: status.ErrorMessage}
		}
		return false, nil
	})
}
