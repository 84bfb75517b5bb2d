package config

import (
	"time"

	"github.com/vietddude/crosspost/internal/core/domain"
	"github.com/vietddude/crosspost/internal/delivery/caption"
	"github.com/vietddude/crosspost/internal/delivery/metrics"
	"github.com/vietddude/crosspost/internal/delivery/retry"
	"github.com/vietddude/crosspost/internal/infra/filestore"
	"github.com/vietddude/crosspost/internal/infra/notify"
	redisclient "github.com/vietddude/crosspost/internal/infra/redis"
	"github.com/vietddude/crosspost/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Logging   LoggingConfig                      `yaml:"logging"`
	Settings  Settings                           `yaml:"settings"`
	FileStore FileStoreConfig                    `yaml:"filestore"`
	Caption   caption.Config                     `yaml:"caption"`
	Platforms map[domain.Platform]PlatformConfig `yaml:"platforms"`
	Notify    notify.Config                      `yaml:"notify"`
	Redis     redisclient.Config                 `yaml:"redis"`
	Database  postgres.Config                    `yaml:"database"`
	Metrics   metrics.PushConfig                 `yaml:"metrics"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Settings are the run-wide knobs. Durations are whole seconds.
type Settings struct {
	RetryCount  int `yaml:"retry_count"`
	BackoffBase int `yaml:"backoff_base"`
	MaxBackoff  int `yaml:"max_backoff"`
	PostDelay   int `yaml:"post_delay"`
	// FixedHashtag is the brand tag appended to every caption.
	FixedHashtag     string `yaml:"fixed_hashtag"`
	TempDir          string `yaml:"temp_dir"`
	QuarantineOnSkip bool   `yaml:"quarantine_on_skip"`
	// HistoryRetention prunes delivery history older than this after every
	// run. Zero keeps everything.
	HistoryRetention time.Duration `yaml:"history_retention"`
}

// RetryPolicy converts the retry settings.
func (s Settings) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: s.RetryCount,
		BackoffBase: time.Duration(s.BackoffBase) * time.Second,
		MaxBackoff:  time.Duration(s.MaxBackoff) * time.Second,
	}
}

// PostDelayDuration is the pause between two platforms for the same file.
func (s Settings) PostDelayDuration() time.Duration {
	return time.Duration(s.PostDelay) * time.Second
}

// FileStoreConfig selects and configures the media store.
type FileStoreConfig struct {
	Backend string            `yaml:"backend"` // local, s3
	Folders filestore.Folders `yaml:"folders"`

	// local
	Root          string `yaml:"root"`
	PublicBaseURL string `yaml:"public_base_url"`

	// s3
	Bucket    string        `yaml:"bucket"`
	Prefix    string        `yaml:"prefix"`
	Region    string        `yaml:"region"`
	Endpoint  string        `yaml:"endpoint"`
	PathStyle bool          `yaml:"path_style"`
	LinkTTL   time.Duration `yaml:"link_ttl"`
}

const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// PlatformConfig holds settings for one publishing platform.
type PlatformConfig struct {
	Enabled bool `yaml:"enabled"`
	// Limit is the caption character limit.
	Limit             int               `yaml:"limit"`
	UploadFromIG      bool              `yaml:"upload_from_ig"`
	UploadFromGeneral bool              `yaml:"upload_from_general"`
	UploadFromImages  bool              `yaml:"upload_from_images"`
	Credentials       map[string]string `yaml:"credentials"`
	BaseURL           string            `yaml:"base_url"`
}

// Sources returns the categories routed to the platform.
func (p PlatformConfig) Sources() map[domain.SourceID]bool {
	return map[domain.SourceID]bool{
		domain.SourceShortVideo:   p.UploadFromIG,
		domain.SourceGeneralVideo: p.UploadFromGeneral,
		domain.SourceImage:        p.UploadFromImages,
	}
}

// EnabledPlatforms lists enabled platforms in fan-out order.
func (c *AppConfig) EnabledPlatforms() []domain.Platform {
	var out []domain.Platform
	for _, p := range domain.PlatformOrder {
		if c.Platforms[p].Enabled {
			out = append(out, p)
		}
	}
	return out
}
