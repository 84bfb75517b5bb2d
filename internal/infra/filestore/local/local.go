// Package local implements a file store on the local filesystem, for
// self-hosted setups where media is synced into folders on disk.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand/v2"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vietddude/crosspost/internal/core/domain"
	"github.com/vietddude/crosspost/internal/infra/filestore"
)

// Config holds local store settings.
type Config struct {
	Root string
	// PublicBaseURL, when set, is the URL Root is served under. TempLink
	// is unsupported without it.
	PublicBaseURL string
	Folders       filestore.Folders
}

// Store is a filestore.FileStore backed by directories under Root.
type Store struct {
	cfg  Config
	pick func(n int) int
}

// New creates a local store.
func New(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, errors.New("local file store requires a root directory")
	}
	return &Store{cfg: cfg, pick: rand.IntN}, nil
}

func (s *Store) abs(rel string) string {
	return filepath.Join(s.cfg.Root, filepath.FromSlash(rel))
}

func (s *Store) list(dir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(s.abs(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	files := entries[:0]
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
			files = append(files, e)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })
	return files, nil
}

// Fetch picks a random file from the source folder.
func (s *Store) Fetch(ctx context.Context, source domain.SourceID) (*domain.FileRef, error) {
	dir, err := s.cfg.Folders.For(source)
	if err != nil {
		return nil, err
	}
	files, err := s.list(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, nil
	}

	entry := files[s.pick(len(files))]
	info, err := entry.Info()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
	}
	rel := filepath.ToSlash(filepath.Join(dir, entry.Name()))
	return &domain.FileRef{
		ID:   rel,
		Name: entry.Name(),
		Path: rel,
		Size: info.Size(),
	}, nil
}

// Download copies the file into dir.
func (s *Store) Download(ctx context.Context, ref *domain.FileRef, dir string) (string, error) {
	src, err := os.Open(s.abs(ref.Path))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", ref.Path, err)
	}
	defer src.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	dest := filepath.Join(dir, "temp_"+ref.Name)
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		_ = os.Remove(dest)
		return "", fmt.Errorf("copy %s: %w", ref.Path, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dest)
		return "", err
	}
	return dest, nil
}

// TempLink returns the file's URL under PublicBaseURL.
func (s *Store) TempLink(ctx context.Context, ref *domain.FileRef) (string, error) {
	if s.cfg.PublicBaseURL == "" {
		return "", filestore.ErrNotSupported
	}
	segments := strings.Split(strings.TrimPrefix(ref.Path, "/"), "/")
	return url.JoinPath(s.cfg.PublicBaseURL, segments...)
}

// Delete removes the file.
func (s *Store) Delete(ctx context.Context, ref *domain.FileRef) error {
	if err := os.Remove(s.abs(ref.Path)); err != nil {
		return fmt.Errorf("delete %s: %w", ref.Path, err)
	}
	return nil
}

// Quarantine moves the file under the source's quarantine folder.
func (s *Store) Quarantine(ctx context.Context, ref *domain.FileRef, source domain.SourceID) (string, error) {
	relDir := s.cfg.Folders.QuarantineDir(source)
	// MkdirAll tolerates folders created concurrently.
	if err := os.MkdirAll(s.abs(relDir), 0o755); err != nil {
		return "", fmt.Errorf("create quarantine folder: %w", err)
	}

	for n := 0; n < filestore.MaxRenameAttempts; n++ {
		rel := filepath.ToSlash(filepath.Join(relDir, filestore.CandidateName(ref.Name, n)))
		if _, err := os.Lstat(s.abs(rel)); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		if err := os.Rename(s.abs(ref.Path), s.abs(rel)); err != nil {
			return "", fmt.Errorf("move %s to quarantine: %w", ref.Path, err)
		}
		return rel, nil
	}
	return "", fmt.Errorf("no free quarantine name for %s", ref.Name)
}

// FolderStats counts files per source folder.
func (s *Store) FolderStats(ctx context.Context) (domain.FolderStats, error) {
	stats := domain.FolderStats{Folders: make(map[domain.SourceID]int)}
	for _, src := range domain.Sources {
		dir, err := s.cfg.Folders.For(src.ID)
		if err != nil {
			continue
		}
		files, err := s.list(dir)
		if err != nil {
			return stats, fmt.Errorf("list %s: %w", dir, err)
		}
		stats.Folders[src.ID] = len(files)
		stats.Total += len(files)
	}
	return stats, nil
}

var _ filestore.FileStore = (*Store)(nil)
