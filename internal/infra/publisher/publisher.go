// Package publisher implements the per-platform clients that post media.
// Every platform failure is returned as a *domain.APIError (or a wrapped
// transport error) so the retry engine can classify it.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/vietddude/crosspost/internal/core/domain"
)

// ErrNotSupported is returned when a publisher cannot post the given media,
// e.g. a URL-only platform handed a local file.
var ErrNotSupported = errors.New("operation not supported by publisher")

// Media references the file being posted. URL is set only when the
// publisher consumes public URLs and a temporary link was obtained.
type Media struct {
	LocalPath string
	URL       string
}

// Capabilities describes how the orchestrator should feed a publisher.
type Capabilities struct {
	// URLFirst publishers get the temporary public URL as the first attempt.
	URLFirst bool
	// StructuredCaption publishers format the caption payload themselves.
	StructuredCaption bool
}

// Publisher posts media to a single platform. A false return with a nil
// error means the platform accepted the request but reported no post.
type Publisher interface {
	Name() domain.Platform
	Capabilities() Capabilities
	PostImage(ctx context.Context, media Media, caption domain.Caption) (bool, error)
	PostVideo(ctx context.Context, media Media, caption domain.Caption) (bool, error)
}

// Post dispatches to PostImage or PostVideo by media type.
func Post(ctx context.Context, p Publisher, mediaType domain.MediaType, media Media, caption domain.Caption) (bool, error) {
	switch mediaType {
	case domain.MediaImage:
		return p.PostImage(ctx, media, caption)
	case domain.MediaVideo:
		return p.PostVideo(ctx, media, caption)
	default:
		return false, fmt.Errorf("%s: unknown media type %q: %w", p.Name(), mediaType, ErrNotSupported)
	}
}

func fileSizeMB(path string) float64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return float64(info.Size()) / (1024 * 1024)
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
