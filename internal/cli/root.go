package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/crosspost/internal/control"
	"github.com/vietddude/crosspost/internal/core/config"
	"github.com/vietddude/crosspost/internal/infra/notify"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "crosspost",
	Short: "Publish one media file per category to every enabled platform",
	Long: `crosspost picks a file from each source folder, posts it to every enabled
social platform with classified retries, then deletes it on full success or
moves it to quarantine.`,
	Run: runPublish,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// loadConfig reads .env and the config file, then installs the logger.
func loadConfig() *config.AppConfig {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg)
	return cfg
}

func setupLogger(cfg *config.AppConfig) {
	level := notify.ParseLevel(cfg.Logging.Level, slog.LevelInfo)
	if isDebug {
		level = slog.LevelDebug
	}

	if strings.EqualFold(cfg.Logging.Format, "json") {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	} else {
		stylelog.InitDefault(&tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
		})
	}

	if cfg.Notify.Enabled() {
		slog.SetDefault(slog.New(notify.Wrap(slog.Default().Handler(), cfg.Notify)))
	}
}

func runPublish(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := control.NewApp(ctx, cfg, control.Options{})
	if err != nil {
		slog.Error("Failed to initialize crosspost", "error", err)
		os.Exit(1)
	}

	slog.Info("Crosspost started", "config", cfgPath, "platforms", len(cfg.EnabledPlatforms()))
	summary, err := app.Run(ctx)
	app.Close()
	if err != nil {
		slog.Warn("Run interrupted", "error", err)
	}
	if summary == nil {
		os.Exit(1)
	}

	fmt.Println(summary.String())
	os.Exit(summary.ExitCode())
}
