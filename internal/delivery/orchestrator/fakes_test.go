package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vietddude/crosspost/internal/core/domain"
	"github.com/vietddude/crosspost/internal/delivery/retry"
	"github.com/vietddude/crosspost/internal/infra/filestore"
	"github.com/vietddude/crosspost/internal/infra/publisher"
)

// fakeStore serves files from memory and records what happened to them.
type fakeStore struct {
	mu          sync.Mutex
	files       map[domain.SourceID][]domain.FileRef
	size        int64
	link        string
	linkErr     error
	downloadErr error
	statsErr    error

	deleted     []string
	quarantined []string
	downloaded  []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		files: make(map[domain.SourceID][]domain.FileRef),
		size:  1024,
		link:  "https://cdn.example/tmp",
	}
}

func (s *fakeStore) add(source domain.SourceID, names ...string) {
	for _, n := range names {
		s.files[source] = append(s.files[source], domain.FileRef{ID: string(source) + "/" + n, Name: n, Path: string(source) + "/" + n})
	}
}

func (s *fakeStore) Fetch(_ context.Context, source domain.SourceID) (*domain.FileRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := s.files[source]
	if len(files) == 0 {
		return nil, nil
	}
	ref := files[0]
	return &ref, nil
}

func (s *fakeStore) Download(_ context.Context, ref *domain.FileRef, dir string) (string, error) {
	if s.downloadErr != nil {
		return "", s.downloadErr
	}
	path := filepath.Join(dir, "temp_"+ref.Name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	// Sparse file: the size is what verification looks at.
	if err := f.Truncate(s.size); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.downloaded = append(s.downloaded, path)
	s.mu.Unlock()
	return path, nil
}

func (s *fakeStore) TempLink(_ context.Context, ref *domain.FileRef) (string, error) {
	if s.linkErr != nil {
		return "", s.linkErr
	}
	return s.link + "/" + ref.Name, nil
}

func (s *fakeStore) remove(ref *domain.FileRef) {
	for source, files := range s.files {
		for i, f := range files {
			if f.ID == ref.ID {
				s.files[source] = append(files[:i:i], files[i+1:]...)
				return
			}
		}
	}
}

func (s *fakeStore) Delete(_ context.Context, ref *domain.FileRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(ref)
	s.deleted = append(s.deleted, ref.Name)
	return nil
}

func (s *fakeStore) Quarantine(_ context.Context, ref *domain.FileRef, source domain.SourceID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(ref)
	s.quarantined = append(s.quarantined, ref.Name)
	return "quarantine/" + string(source) + "/" + ref.Name, nil
}

func (s *fakeStore) FolderStats(context.Context) (domain.FolderStats, error) {
	if s.statsErr != nil {
		return domain.FolderStats{}, s.statsErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := domain.FolderStats{Folders: make(map[domain.SourceID]int)}
	for _, src := range domain.Sources {
		n := len(s.files[src.ID])
		stats.Folders[src.ID] = n
		stats.Total += n
	}
	return stats, nil
}

var _ filestore.FileStore = (*fakeStore)(nil)

type fakeCaptions struct{}

func (fakeCaptions) Generate(_ context.Context, filename, group string) domain.CaptionPayload {
	return domain.CaptionPayload{Text: group + ": " + filename, Tags: []string{"#test"}}
}

// call is one publisher invocation.
type call struct {
	media   domain.MediaType
	local   string
	url     string
	caption string
}

// fakePublisher answers each call with the next scripted response; the
// last response repeats.
type fakePublisher struct {
	name      domain.Platform
	caps      publisher.Capabilities
	mu        sync.Mutex
	responses []response
	calls     []call
}

type response struct {
	ok  bool
	err error
}

func newPublisher(name domain.Platform, responses ...response) *fakePublisher {
	if len(responses) == 0 {
		responses = []response{{ok: true}}
	}
	return &fakePublisher{name: name, responses: responses}
}

func (p *fakePublisher) Name() domain.Platform                { return p.name }
func (p *fakePublisher) Capabilities() publisher.Capabilities { return p.caps }
func (p *fakePublisher) PostImage(ctx context.Context, m publisher.Media, c domain.Caption) (bool, error) {
	return p.post(domain.MediaImage, m, c)
}
func (p *fakePublisher) PostVideo(ctx context.Context, m publisher.Media, c domain.Caption) (bool, error) {
	return p.post(domain.MediaVideo, m, c)
}

func (p *fakePublisher) post(media domain.MediaType, m publisher.Media, c domain.Caption) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call{media: media, local: m.LocalPath, url: m.URL, caption: c.Text})
	i := min(len(p.calls)-1, len(p.responses)-1)
	r := p.responses[i]
	return r.ok, r.err
}

func (p *fakePublisher) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func apiErr(platform domain.Platform, code int, msg string) error {
	return &domain.APIError{Platform: platform, StatusCode: code, Message: msg}
}

// sleepRecorder counts sleeps without blocking.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waits)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(sleep retry.SleepFunc) *retry.Engine {
	e, err := retry.NewEngine(
		retry.Policy{MaxAttempts: 3, BackoffBase: time.Second, MaxBackoff: 10 * time.Second},
		retry.WithLogger(discardLogger()),
		retry.WithSleep(sleep),
		retry.WithRand(func() float64 { return 0 }),
	)
	if err != nil {
		panic(err)
	}
	return e
}
