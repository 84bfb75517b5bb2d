package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/crosspost/internal/core/domain"
)

const defaultCaptionLimit = 2000

// Default returns the configuration used for keys absent from the file.
func Default() AppConfig {
	return AppConfig{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Settings: Settings{
			RetryCount:       3,
			BackoffBase:      5,
			MaxBackoff:       900,
			PostDelay:        10,
			QuarantineOnSkip: true,
		},
		FileStore: FileStoreConfig{Backend: BackendLocal},
	}
}

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse expands environment variables in data, decodes it over the
// defaults and validates the result.
func Parse(data []byte) (*AppConfig, error) {
	cfg := Default()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Settings.TempDir == "" {
		cfg.Settings.TempDir = os.TempDir()
	}
	for name, p := range cfg.Platforms {
		if p.Limit == 0 {
			p.Limit = defaultCaptionLimit
		}
		cfg.Platforms[name] = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every problem found, joined.
func (c *AppConfig) Validate() error {
	var errs []error

	if err := c.Settings.RetryPolicy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("settings: %w", err))
	}
	if c.Settings.PostDelay < 0 {
		errs = append(errs, fmt.Errorf("settings: post_delay must be >= 0, got %d", c.Settings.PostDelay))
	}

	switch c.FileStore.Backend {
	case BackendLocal:
		if c.FileStore.Root == "" {
			errs = append(errs, errors.New("filestore: root is required for the local backend"))
		}
	case BackendS3:
		if c.FileStore.Bucket == "" {
			errs = append(errs, errors.New("filestore: bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("filestore: unknown backend %q", c.FileStore.Backend))
	}
	for _, src := range domain.Sources {
		if _, err := c.FileStore.Folders.For(src.ID); err != nil {
			errs = append(errs, fmt.Errorf("filestore: %w", err))
		}
	}

	for name, p := range c.Platforms {
		if !name.IsKnown() {
			errs = append(errs, fmt.Errorf("platforms: unknown platform %q", name))
			continue
		}
		if p.Limit < 0 {
			errs = append(errs, fmt.Errorf("platforms.%s: limit must be positive", name))
		}
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging: unknown format %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
