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
	graphBaseURL         = "https://graph.facebook.com/v18.0"
	facebookVideoTimeout = 120 * time.Second
)

// Facebook uploads media to a Page through the Graph API.
type Facebook struct {
	api     *apiClient
	baseURL string
	pageID  string
	token   string
	log     *slog.Logger
}

// NewFacebook creates a Facebook Page publisher.
func NewFacebook(baseURL, pageID, token string, client *http.Client) *Facebook {
	if baseURL == "" {
		baseURL = graphBaseURL
	}
	return &Facebook{
		api:     newAPIClient(domain.PlatformFacebook, client),
		baseURL: strings.TrimRight(baseURL, "/"),
		pageID:  pageID,
		token:   token,
		log:     slog.Default().With("component", "publisher", "platform", domain.PlatformFacebook),
	}
}

func (f *Facebook) Name() domain.Platform { return domain.PlatformFacebook }

func (f *Facebook) Capabilities() Capabilities { return Capabilities{} }

func (f *Facebook) PostImage(ctx context.Context, media Media, caption domain.Caption) (bool, error) {
	fields := url.Values{"access_token": {f.token}, "message": {caption.Text}}
	var resp struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}
	if err := f.upload(ctx, "photos", defaultTimeout, media, fields, &resp); err != nil {
		return false, err
	}
	f.log.Info("Facebook photo published", "post_id", resp.PostID)
	return true, nil
}

func (f *Facebook) PostVideo(ctx context.Context, media Media, caption domain.Caption) (bool, error) {
	fields := url.Values{"access_token": {f.token}, "description": {caption.Text}}
	var resp struct {
		ID string `json:"id"`
	}
	if err := f.upload(ctx, "videos", facebookVideoTimeout, media, fields, &resp); err != nil {
		return false, err
	}
	f.log.Info("Facebook video published", "video_id", resp.ID)
	return true, nil
}

func (f *Facebook) upload(ctx context.Context, edge string, timeout time.Duration, media Media, fields url.Values, out any) error {
	if media.LocalPath == "" {
		return fmt.Errorf("facebook: local file required: %w", ErrNotSupported)
	}

	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/%s/%s", f.baseURL, url.PathEscape(f.pageID), edge)
	req, err := newMultipartRequest(ctx, endpoint, fields, formFile{field: "source", path: media.LocalPath})
	if err != nil {
		return err
	}
	return f.api.do(req, out)
}
