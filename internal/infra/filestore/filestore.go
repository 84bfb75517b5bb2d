// Package filestore defines the remote file store the orchestrator pulls
// media from, and shared helpers for its backends.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/vietddude/crosspost/internal/core/domain"
)

// ErrNotSupported is returned when a backend cannot perform an operation,
// e.g. a local store without a public base URL asked for a temp link.
var ErrNotSupported = errors.New("operation not supported by file store")

// FileStore provides the media files for each source category.
type FileStore interface {
	// Fetch picks one file from the source folder. It returns nil, nil when
	// the folder is empty.
	Fetch(ctx context.Context, source domain.SourceID) (*domain.FileRef, error)

	// Download copies the file into dir and returns the local path.
	Download(ctx context.Context, ref *domain.FileRef, dir string) (string, error)

	// TempLink returns a temporary public URL for the file.
	TempLink(ctx context.Context, ref *domain.FileRef) (string, error)

	// Delete removes the file from the store.
	Delete(ctx context.Context, ref *domain.FileRef) error

	// Quarantine moves the file under the quarantine folder for source,
	// renaming on conflict.
	Quarantine(ctx context.Context, ref *domain.FileRef, source domain.SourceID) (string, error)

	// FolderStats counts files remaining in each source folder.
	FolderStats(ctx context.Context) (domain.FolderStats, error)
}

// Folders maps source categories to folder paths inside a store.
type Folders struct {
	ShortVideo   string `yaml:"ig"`
	GeneralVideo string `yaml:"general"`
	Images       string `yaml:"image"`
	Quarantine   string `yaml:"quarantine"`
}

// For returns the folder configured for source.
func (f Folders) For(source domain.SourceID) (string, error) {
	var dir string
	switch source {
	case domain.SourceShortVideo:
		dir = f.ShortVideo
	case domain.SourceGeneralVideo:
		dir = f.GeneralVideo
	case domain.SourceImage:
		dir = f.Images
	}
	if dir == "" {
		return "", fmt.Errorf("no folder configured for source %q", source)
	}
	return dir, nil
}

// QuarantineDir returns the quarantine folder for source.
func (f Folders) QuarantineDir(source domain.SourceID) string {
	root := f.Quarantine
	if root == "" {
		root = "failed"
	}
	return path.Join(root, string(source))
}

// CandidateName returns the n-th rename candidate for name: n=0 is name
// itself, then "name (1).ext", "name (2).ext", ...
func CandidateName(name string, n int) string {
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s (%d)%s", stem, n, ext)
}

// MaxRenameAttempts bounds the conflict rename search.
const MaxRenameAttempts = 1000
