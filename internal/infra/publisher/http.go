package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vietddude/crosspost/internal/core/domain"
)

const (
	maxResponseBytes = 1 << 20
	maxErrorMessage  = 512
	defaultTimeout   = 60 * time.Second
)

// apiClient is the HTTP plumbing shared by all publishers.
type apiClient struct {
	platform domain.Platform
	http     *http.Client
	// decorate lets a platform enrich an APIError from its error body,
	// e.g. copying a JSON retry_after into the Retry-After header.
	decorate func(apiErr *domain.APIError, body []byte)
}

func newAPIClient(platform domain.Platform, client *http.Client) *apiClient {
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &apiClient{platform: platform, http: client}
}

// do sends req and decodes a 2xx JSON body into out (if non-nil). Non-2xx
// responses become *domain.APIError.
func (c *apiClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", c.platform, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s read response: %w", c.platform, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &domain.APIError{
			Platform:   c.platform,
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Message:    errorMessage(body),
		}
		if c.decorate != nil {
			c.decorate(apiErr, body)
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s decode response: %w", c.platform, err)
	}
	return nil
}

// postForm sends an application/x-www-form-urlencoded POST.
func (c *apiClient) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := newFormRequest(ctx, endpoint, form)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func newFormRequest(ctx context.Context, endpoint string, form url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

// get sends a GET with query parameters.
func (c *apiClient) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

// formFile is a file part of a multipart body.
type formFile struct {
	field string
	path  string
}

// newMultipartRequest builds a POST whose multipart body is streamed from
// disk, so large videos are never held in memory.
func newMultipartRequest(ctx context.Context, endpoint string, fields url.Values, file formFile) (*http.Request, error) {
	f, err := os.Open(file.path)
	if err != nil {
		return nil, fmt.Errorf("open media: %w", err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		defer f.Close()
		err := writeFields(mw, fields)
		if err == nil {
			var part io.Writer
			part, err = mw.CreateFormFile(file.field, filepath.Base(file.path))
			if err == nil {
				_, err = io.Copy(part, f)
			}
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}

func writeFields(mw *multipart.Writer, fields url.Values) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range fields[k] {
			if err := mw.WriteField(k, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func errorMessage(body []byte) string {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "empty response"
	}
	if len(msg) > maxErrorMessage {
		msg = msg[:maxErrorMessage]
	}
	return msg
}

// retryAfterFromJSON copies a numeric retry_after field (seconds) found at
// path in body into the Retry-After header when the platform did not send
// one.
func retryAfterFromJSON(apiErr *domain.APIError, body []byte, path ...string) {
	if apiErr.Header.Get("Retry-After") != "" {
		return
	}
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return
	}
	var cur any = doc
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return
		}
		cur = m[key]
	}
	secs, ok := cur.(float64)
	if !ok || secs < 0 {
		return
	}
	if apiErr.Header == nil {
		apiErr.Header = http.Header{}
	}
	// Round up so fractional waits never undershoot.
	whole := int64(secs)
	if float64(whole) < secs {
		whole++
	}
	apiErr.Header.Set("Retry-After", fmt.Sprint(whole))
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultTimeout
	}
	return context.WithTimeout(ctx, d)
}
