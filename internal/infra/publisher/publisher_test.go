package publisher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vietddude/crosspost/internal/core/domain"
)

func writeMedia(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func uploadedFile(t *testing.T, r *http.Request, field string) string {
	t.Helper()
	f, _, err := r.FormFile(field)
	if err != nil {
		t.Errorf("missing file field %q: %v", field, err)
		return ""
	}
	defer f.Close()
	data, _ := io.ReadAll(f)
	return string(data)
}

func TestDiscord_PostImage(t *testing.T) {
	var content, auth, file string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channels/42/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		auth = r.Header.Get("Authorization")
		content = r.FormValue("content")
		file = uploadedFile(t, r, "file")
		w.Write([]byte(`{"id":"1"}`))
	}))
	defer srv.Close()

	d := NewDiscord(srv.URL, "tok", "42", srv.Client())
	long := strings.Repeat("a", 2100)
	ok, err := d.PostImage(context.Background(), Media{LocalPath: writeMedia(t, "a.jpg", "img")}, domain.Caption{Text: long})
	if err != nil || !ok {
		t.Fatalf("PostImage = %v, %v", ok, err)
	}
	if auth != "Bot tok" {
		t.Errorf("unexpected auth header %q", auth)
	}
	if len(content) != 2000 {
		t.Errorf("expected content capped at 2000, got %d", len(content))
	}
	if file != "img" {
		t.Errorf("unexpected file body %q", file)
	}
}

func TestDiscord_RateLimitCarriesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"You are being rate limited.","retry_after":2.5}`))
	}))
	defer srv.Close()

	d := NewDiscord(srv.URL, "tok", "42", srv.Client())
	_, err := d.PostVideo(context.Background(), Media{LocalPath: writeMedia(t, "v.mp4", "vid")}, domain.Caption{Text: "x"})

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", apiErr.StatusCode)
	}
	if got := apiErr.Header.Get("Retry-After"); got != "3" {
		t.Errorf("expected Retry-After 3, got %q", got)
	}
}

func TestDiscord_RequiresLocalFile(t *testing.T) {
	d := NewDiscord("http://unused", "tok", "42", nil)
	_, err := d.PostImage(context.Background(), Media{URL: "https://x"}, domain.Caption{})
	if !errors.Is(err, ErrNotSupported) {
		t.Errorf("expected ErrNotSupported, got %v", err)
	}
}

func TestTelegram_Send(t *testing.T) {
	tests := []struct {
		name      string
		post      func(*Telegram, Media) (bool, error)
		wantPath  string
		wantField string
	}{
		{
			name: "photo",
			post: func(tg *Telegram, m Media) (bool, error) {
				return tg.PostImage(context.Background(), m, domain.Caption{Text: "hello"})
			},
			wantPath:  "/botT0K/sendPhoto",
			wantField: "photo",
		},
		{
			name: "video",
			post: func(tg *Telegram, m Media) (bool, error) {
				return tg.PostVideo(context.Background(), m, domain.Caption{Text: "hello"})
			},
			wantPath:  "/botT0K/sendVideo",
			wantField: "video",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != tt.wantPath {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if err := r.ParseMultipartForm(1 << 20); err != nil {
					t.Errorf("parse multipart: %v", err)
					return
				}
				if r.FormValue("chat_id") != "-100" || r.FormValue("caption") != "hello" {
					t.Errorf("unexpected form %v", r.MultipartForm.Value)
				}
				uploadedFile(t, r, tt.wantField)
				w.Write([]byte(`{"ok":true}`))
			}))
			defer srv.Close()

			tg := NewTelegram(srv.URL, "T0K", "-100", srv.Client())
			ok, err := tt.post(tg, Media{LocalPath: writeMedia(t, "f", "data")})
			if err != nil || !ok {
				t.Errorf("post = %v, %v", ok, err)
			}
		})
	}
}

func TestTelegram_ErrorCarriesStatusAndRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"ok":false,"description":"Too Many Requests","parameters":{"retry_after":7}}`))
	}))
	defer srv.Close()

	tg := NewTelegram(srv.URL, "T0K", "-100", srv.Client())
	_, err := tg.PostImage(context.Background(), Media{LocalPath: writeMedia(t, "f", "data")}, domain.Caption{})

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Platform != domain.PlatformTelegram || apiErr.Header.Get("Retry-After") != "7" {
		t.Errorf("unexpected error %+v", apiErr)
	}
}

func TestFacebook_Upload(t *testing.T) {
	var gotPath, description, message string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		gotPath = r.URL.Path
		description = r.FormValue("description")
		message = r.FormValue("message")
		if r.FormValue("access_token") != "meta" {
			t.Errorf("missing access token")
		}
		uploadedFile(t, r, "source")
		w.Write([]byte(`{"id":"9","post_id":"1_9"}`))
	}))
	defer srv.Close()

	fb := NewFacebook(srv.URL, "page", "meta", srv.Client())
	media := Media{LocalPath: writeMedia(t, "v.mp4", "vid")}

	if ok, err := fb.PostVideo(context.Background(), media, domain.Caption{Text: "desc"}); err != nil || !ok {
		t.Fatalf("PostVideo = %v, %v", ok, err)
	}
	if gotPath != "/page/videos" || description != "desc" {
		t.Errorf("video: path %s description %q", gotPath, description)
	}

	if ok, err := fb.PostImage(context.Background(), media, domain.Caption{Text: "msg"}); err != nil || !ok {
		t.Fatalf("PostImage = %v, %v", ok, err)
	}
	if gotPath != "/page/photos" || message != "msg" {
		t.Errorf("photo: path %s message %q", gotPath, message)
	}
}

func TestFacebook_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		http.Error(w, `{"error":{"message":"temporarily unavailable"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	fb := NewFacebook(srv.URL, "page", "meta", srv.Client())
	ok, err := fb.PostImage(context.Background(), Media{LocalPath: writeMedia(t, "a.jpg", "x")}, domain.Caption{})
	if ok {
		t.Error("expected not posted")
	}
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 APIError, got %v", err)
	}
	if !strings.Contains(apiErr.Message, "temporarily unavailable") {
		t.Errorf("message should carry body, got %q", apiErr.Message)
	}
}

func TestPost_Dispatch(t *testing.T) {
	p := &recordingPublisher{}
	if _, err := Post(context.Background(), p, domain.MediaVideo, Media{}, domain.Caption{}); err != nil {
		t.Fatal(err)
	}
	if _, err := Post(context.Background(), p, domain.MediaImage, Media{}, domain.Caption{}); err != nil {
		t.Fatal(err)
	}
	if strings.Join(p.calls, ",") != "video,image" {
		t.Errorf("unexpected calls %v", p.calls)
	}
	if _, err := Post(context.Background(), p, "gif", Media{}, domain.Caption{}); !errors.Is(err, ErrNotSupported) {
		t.Errorf("expected ErrNotSupported, got %v", err)
	}
}

type recordingPublisher struct {
	calls []string
}

func (p *recordingPublisher) Name() domain.Platform      { return "fake" }
func (p *recordingPublisher) Capabilities() Capabilities { return Capabilities{} }
func (p *recordingPublisher) PostImage(context.Context, Media, domain.Caption) (bool, error) {
	p.calls = append(p.calls, "image")
	return true, nil
}
func (p *recordingPublisher) PostVideo(context.Context, Media, domain.Caption) (bool, error) {
	p.calls = append(p.calls, "video")
	return true, nil
}
