package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vietddude/crosspost/internal/core/domain"
)

const (
	tumblrBaseURL         = "https://api.tumblr.com/v2"
	tumblrVideoCaptionMax = 200
	tumblrTimeout         = 120 * time.Second
)

// Tumblr creates photo and video posts with OAuth 1.0a. It receives the
// structured caption and sends tags as post metadata instead of inline
// hashtags.
type Tumblr struct {
	api     *apiClient
	baseURL string
	blog    string
	signer  *oauth1Signer
	log     *slog.Logger
}

// NewTumblr creates a Tumblr publisher for blog.
func NewTumblr(baseURL, blog string, creds OAuth1Credentials, client *http.Client) *Tumblr {
	if baseURL == "" {
		baseURL = tumblrBaseURL
	}
	return &Tumblr{
		api:     newAPIClient(domain.PlatformTumblr, client),
		baseURL: strings.TrimRight(baseURL, "/"),
		blog:    blog,
		signer:  newOAuth1Signer(creds),
		log:     slog.Default().With("component", "publisher", "platform", domain.PlatformTumblr),
	}
}

func (t *Tumblr) Name() domain.Platform { return domain.PlatformTumblr }

func (t *Tumblr) Capabilities() Capabilities { return Capabilities{StructuredCaption: true} }

func (t *Tumblr) PostImage(ctx context.Context, media Media, caption domain.Caption) (bool, error) {
	text, tags := tumblrContent(caption)
	return t.post(ctx, "photo", "data[0]", media, text, tags)
}

func (t *Tumblr) PostVideo(ctx context.Context, media Media, caption domain.Caption) (bool, error) {
	text, tags := tumblrContent(caption)
	return t.post(ctx, "video", "data", media, truncateRunes(text, tumblrVideoCaptionMax), tags)
}

func (t *Tumblr) post(ctx context.Context, postType, fileField string, media Media, text string, tags []string) (bool, error) {
	if media.LocalPath == "" {
		return false, fmt.Errorf("tumblr: local file required: %w", ErrNotSupported)
	}

	ctx, cancel := withTimeout(ctx, tumblrTimeout)
	defer cancel()

	fields := url.Values{
		"type":    {postType},
		"state":   {"published"},
		"caption": {text},
	}
	if len(tags) > 0 {
		fields.Set("tags", strings.Join(tags, ","))
	}
	endpoint := fmt.Sprintf("%s/blog/%s/post", t.baseURL, url.PathEscape(t.blog))
	req, err := newMultipartRequest(ctx, endpoint, fields, formFile{field: fileField, path: media.LocalPath})
	if err != nil {
		return false, err
	}
	t.signer.authorize(req, nil)

	var resp struct {
		Response struct {
			ID json.RawMessage `json:"id"`
		} `json:"response"`
	}
	if err := t.api.do(req, &resp); err != nil {
		return false, err
	}
	id := strings.TrimSpace(string(resp.Response.ID))
	if id == "" || id == "null" {
		t.log.Warn("Tumblr response carried no post id", "type", postType)
		return false, nil
	}
	t.log.Info("Tumblr posted", "type", postType, "post_id", strings.Trim(id, `"`))
	return true, nil
}

// tumblrContent extracts the post text and tag list from the structured
// caption. The brand tag is appended without its '#'.
func tumblrContent(caption domain.Caption) (string, []string) {
	p := caption.Payload
	if p.Text == "" && len(p.Tags) == 0 && p.BrandTag == "" {
		return caption.Text, nil
	}

	text := strings.TrimSpace(p.Text)
	if text == "" {
		text = "New Post"
	}

	var tags []string
	for _, tag := range p.Tags {
		tag = strings.TrimSpace(strings.TrimPrefix(tag, "#"))
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	if brand := strings.TrimSpace(strings.ReplaceAll(p.BrandTag, "#", "")); brand != "" {
		tags = append(tags, brand)
	}
	return text, tags
}
