package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/crosspost/internal/core/domain"
)

const (
	twitterAPIURL      = "https://api.twitter.com"
	twitterUploadURL   = "https://upload.twitter.com"
	twitterChunkSize   = 4 << 20
	twitterMaxPolls    = 60
	twitterDefaultMime = "video/mp4"
)

// Twitter uploads media through the v1.1 media endpoint and posts the tweet
// through v2, both with OAuth 1.0a user context.
type Twitter struct {
	api          *apiClient
	apiURL       string
	uploadURL    string
	signer       *oauth1Signer
	chunkSize    int
	pollInterval time.Duration
	log          *slog.Logger
}

// NewTwitter creates a Twitter publisher. A non-empty baseURL replaces both
// the API and upload hosts.
func NewTwitter(baseURL string, creds OAuth1Credentials, client *http.Client) *Twitter {
	apiURL, uploadURL := twitterAPIURL, twitterUploadURL
	if baseURL != "" {
		apiURL = strings.TrimRight(baseURL, "/")
		uploadURL = apiURL
	}
	return &Twitter{
		api:          newAPIClient(domain.PlatformTwitter, client),
		apiURL:       apiURL,
		uploadURL:    uploadURL,
		signer:       newOAuth1Signer(creds),
		chunkSize:    twitterChunkSize,
		pollInterval: defaultPollInterval,
		log:          slog.Default().With("component", "publisher", "platform", domain.PlatformTwitter),
	}
}

func (t *Twitter) Name() domain.Platform { return domain.PlatformTwitter }

func (t *Twitter) Capabilities() Capabilities { return Capabilities{} }

func (t *Twitter) PostImage(ctx context.Context, media Media, caption domain.Caption) (bool, error) {
	if media.LocalPath == "" {
		return false, fmt.Errorf("twitter: local file required: %w", ErrNotSupported)
	}
	mediaID, err := t.uploadImage(ctx, media.LocalPath)
	if err != nil {
		return false, err
	}
	return t.tweet(ctx, caption.Text, mediaID)
}

func (t *Twitter) PostVideo(ctx context.Context, media Media, caption domain.Caption) (bool, error) {
	if media.LocalPath == "" {
		return false, fmt.Errorf("twitter: local file required: %w", ErrNotSupported)
	}
	mediaID, err := t.uploadVideo(ctx, media.LocalPath)
	if err != nil {
		return false, err
	}
	return t.tweet(ctx, caption.Text, mediaID)
}

func (t *Twitter) uploadEndpoint() string {
	return t.uploadURL + "/1.1/media/upload.json"
}

type twitterMedia struct {
	MediaIDString  string `json:"media_id_string"`
	ProcessingInfo *struct {
		State          string `json:"state"`
		CheckAfterSecs int    `json:"check_after_secs"`
		Error          *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"processing_info"`
}

func (t *Twitter) uploadImage(ctx context.Context, path string) (string, error) {
	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	req, err := newMultipartRequest(ctx, t.uploadEndpoint(), nil, formFile{field: "media", path: path})
	if err != nil {
		return "", err
	}
	t.signer.authorize(req, nil)

	var resp twitterMedia
	if err := t.api.do(req, &resp); err != nil {
		return "", err
	}
	if resp.MediaIDString == "" {
		return "", &domain.APIError{Platform: domain.PlatformTwitter, Message: "media upload returned no id"}
	}
	return resp.MediaIDString, nil
}

// uploadVideo runs the chunked INIT / APPEND / FINALIZE flow and waits for
// server-side processing when the platform asks for it.
func (t *Twitter) uploadVideo(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open media: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	mediaType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if !strings.HasPrefix(mediaType, "video/") {
		mediaType = twitterDefaultMime
	}

	var init twitterMedia
	err = t.signedForm(ctx, url.Values{
		"command":        {"INIT"},
		"total_bytes":    {strconv.FormatInt(info.Size(), 10)},
		"media_type":     {mediaType},
		"media_category": {"tweet_video"},
	}, &init)
	if err != nil {
		return "", err
	}
	mediaID := init.MediaIDString
	if mediaID == "" {
		return "", &domain.APIError{Platform: domain.PlatformTwitter, Message: "media init returned no id"}
	}

	buf := make([]byte, t.chunkSize)
	for segment := 0; ; segment++ {
		n, readErr := io.ReadFull(f, buf)
		if n > 0 {
			if err := t.appendChunk(ctx, mediaID, segment, buf[:n]); err != nil {
				return "", err
			}
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return "", fmt.Errorf("read media: %w", readErr)
		}
	}

	var final twitterMedia
	err = t.signedForm(ctx, url.Values{"command": {"FINALIZE"}, "media_id": {mediaID}}, &final)
	if err != nil {
		return "", err
	}
	if final.ProcessingInfo != nil {
		if err := t.waitForProcessing(ctx, mediaID); err != nil {
			return "", fmt.Errorf("twitter: %w", err)
		}
	}
	t.log.Info("Video upload complete", "media_id", mediaID)
	return mediaID, nil
}

func (t *Twitter) signedForm(ctx context.Context, form url.Values, out any) error {
	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	req, err := newFormRequest(ctx, t.uploadEndpoint(), form)
	if err != nil {
		return err
	}
	t.signer.authorize(req, form)
	return t.api.do(req, out)
}

func (t *Twitter) appendChunk(ctx context.Context, mediaID string, segment int, chunk []byte) error {
	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	err := writeFields(mw, url.Values{
		"command":       {"APPEND"},
		"media_id":      {mediaID},
		"segment_index": {strconv.Itoa(segment)},
	})
	if err != nil {
		return err
	}
	part, err := mw.CreateFormFile("media", "chunk")
	if err != nil {
		return err
	}
	if _, err := part.Write(chunk); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.uploadEndpoint(), &body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	t.signer.authorize(req, nil)
	return t.api.do(req, nil)
}

func (t *Twitter) waitForProcessing(ctx context.Context, mediaID string) error {
	return pollUntilReady(ctx, t.pollInterval, twitterMaxPolls, func(ctx context.Context) (bool, error) {
		pollCtx, cancel := withTimeout(ctx, pollTimeout)
		defer cancel()

		query := url.Values{"command": {"STATUS"}, "media_id": {mediaID}}
		req, err := http.NewRequestWithContext(pollCtx, http.MethodGet, t.uploadEndpoint()+"?"+query.Encode(), nil)
		if err != nil {
			return false, fmt.Errorf("create request: %w", err)
		}
		t.signer.authorize(req, nil)

		var status twitterMedia
		if err := t.api.do(req, &status); err != nil {
			return false, err
		}
		if status.ProcessingInfo == nil {
			return true, nil
		}
		switch status.ProcessingInfo.State {
		case "succeeded":
			return true, nil
		case "failed":
			msg := ""
			if status.ProcessingInfo.Error != nil {
				msg = status.ProcessingInfo.Error.Message
			}
			return false, &processingFailedError{status: "failed", message: msg}
		}
		return false, nil
	})
}

// tweet creates the post. A response without a tweet id is reported as
// not posted rather than as an error.
func (t *Twitter) tweet(ctx context.Context, text, mediaID string) (bool, error) {
	ctx, cancel := withTimeout(ctx, defaultTimeout)
	defer cancel()

	payload := map[string]any{
		"text":  text,
		"media": map[string]any{"media_ids": []string{mediaID}},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL+"/2/tweets", bytes.NewReader(data))
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	t.signer.authorize(req, nil)

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := t.api.do(req, &resp); err != nil {
		return false, err
	}
	if resp.Data.ID == "" {
		t.log.Warn("Tweet response carried no id")
		return false, nil
	}
	t.log.Info("Twitter posted", "tweet_id", resp.Data.ID)
	return true, nil
}
