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
	instagramMaxPolls = 20
	pollTimeout       = 30 * time.Second
)

// Instagram publishes through the Graph API content publishing flow:
// create a media container from a public URL, wait for video processing,
// then publish the container.
type Instagram struct {
	api          *apiClient
	baseURL      string
	accountID    string
	token        string
	pollInterval time.Duration
	log          *slog.Logger
}

// NewInstagram creates an Instagram publisher.
func NewInstagram(baseURL, accountID, token string, client *http.Client) *Instagram {
	if baseURL == "" {
		baseURL = graphBaseURL
	}
	return &Instagram{
		api:          newAPIClient(domain.PlatformInstagram, client),
		baseURL:      strings.TrimRight(baseURL, "/"),
		accountID:    accountID,
		token:        token,
		pollInterval: defaultPollInterval,
		log:          slog.Default().With("component", "publisher", "platform", domain.PlatformInstagram),
	}
}

func (i *Instagram) Name() domain.Platform { return domain.PlatformInstagram }

func (i *Instagram) Capabilities() Capabilities { return Capabilities{URLFirst: true} }

func (i *Instagram) PostImage(ctx context.Context, media Media, caption domain.Caption) (bool, error) {
	if media.URL == "" {
		return false, fmt.Errorf("instagram: public url required: %w", ErrNotSupported)
	}
	form := url.Values{
		"access_token": {i.token},
		"caption":      {caption.Text},
		"media_type":   {"IMAGE"},
		"image_url":    {media.URL},
	}
	return i.publish(ctx, form, false)
}

// PostVideo publishes the video as a Reel shared to the feed.
func (i *Instagram) PostVideo(ctx context.Context, media Media, caption domain.Caption) (bool, error) {
	if media.URL == "" {
		return false, fmt.Errorf("instagram: public url required: %w", ErrNotSupported)
	}
	form := url.Values{
		"access_token":  {i.token},
		"caption":       {caption.Text},
		"media_type":    {"REELS"},
		"video_url":     {media.URL},
		"share_to_feed": {"true"},
	}
	return i.publish(ctx, form, true)
}

func (i *Instagram) publish(ctx context.Context, form url.Values, waitForProcessing bool) (bool, error) {
	account := fmt.Sprintf("%s/%s", i.baseURL, url.PathEscape(i.accountID))

	var container struct {
		ID string `json:"id"`
	}
	createCtx, cancel := withTimeout(ctx, defaultTimeout)
	err := i.api.postForm(createCtx, account+"/media", form, &container)
	cancel()
	if err != nil {
		return false, err
	}
	if container.ID == "" {
		return false, &domain.APIError{Platform: domain.PlatformInstagram, Message: "container create returned no id"}
	}
	i.log.Info("Container created", "creation_id", container.ID)

	if waitForProcessing {
		if err := i.waitForContainer(ctx, container.ID); err != nil {
			return false, fmt.Errorf("instagram: %w", err)
		}
	}

	var published struct {
		ID string `json:"id"`
	}
	pubCtx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()
	err = i.api.postForm(pubCtx, account+"/media_publish", url.Values{
		"creation_id":  {container.ID},
		"access_token": {i.token},
	}, &published)
	if err != nil {
		return false, err
	}
	i.log.Info("Instagram published", "media_id", published.ID)
	return true, nil
}

func (i *Instagram) waitForContainer(ctx context.Context, id string) error {
	attempt := 0
	return pollUntilReady(ctx, i.pollInterval, instagramMaxPolls, func(ctx context.Context) (bool, error) {
		attempt++
		pollCtx, cancel := withTimeout(ctx, pollTimeout)
		defer cancel()

		var status struct {
			StatusCode string `json:"status_code"`
		}
		err := i.api.get(pollCtx, fmt.Sprintf("%s/%s", i.baseURL, url.PathEscape(id)), url.Values{
			"fields":       {"status_code"},
			"access_token": {i.token},
		}, &status)
		if err != nil {
			i.log.Warn("Container poll failed", "attempt", attempt, "error", err)
			return false, err
		}
		i.log.Debug("Container status", "attempt", attempt, "status", status.StatusCode)

		switch status.StatusCode {
		case "FINISHED":
			return true, nil
		case "ERROR", "EXPIRED":
			return false, &processingFailedError{status: status.StatusCode}
		}
		return false, nil
	})
}
