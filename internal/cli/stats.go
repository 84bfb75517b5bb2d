package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/crosspost/internal/control"
	"github.com/vietddude/crosspost/internal/core/domain"
	redisclient "github.com/vietddude/crosspost/internal/infra/redis"
	"github.com/vietddude/crosspost/internal/infra/storage/postgres"
)

var statsSince time.Duration

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show remaining files, the last run and per-platform delivery counts",
	Run:   runStats,
}

func init() {
	statsCmd.Flags().DurationVar(&statsSince, "since", 7*24*time.Hour, "window for per-platform counts")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

	store, err := control.NewFileStore(ctx, cfg.FileStore)
	if err != nil {
		slog.Error("Failed to open file store", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	defer func() {
		_ = w.Flush()
	}()

	stats, err := store.FolderStats(ctx)
	if err != nil {
		slog.Error("Failed to count files", "error", err)
	} else {
		_, _ = fmt.Fprintln(w, "SOURCE\tFILES")
		for _, src := range domain.Sources {
			_, _ = fmt.Fprintf(w, "%s\t%d\n", src.ID, stats.Folders[src.ID])
		}
		_, _ = fmt.Fprintf(w, "total\t%d\n\n", stats.Total)
	}

	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Error("Failed to connect to redis", "error", err)
		} else {
			defer func() {
				_ = client.Close()
			}()
			last, err := client.LastRun(ctx)
			switch {
			case err != nil:
				slog.Error("Failed to read last run", "error", err)
			case last == nil:
				_, _ = fmt.Fprintln(w, "LAST RUN\tnone")
			default:
				_, _ = fmt.Fprintf(w, "LAST RUN\t%s\n\n", last)
			}
		}
	}

	if cfg.Database.URL == "" {
		return
	}
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	rows, err := postgres.NewHistoryRepo(db).PlatformStats(ctx, time.Now().Add(-statsSince))
	if err != nil {
		slog.Error("Failed to query platform stats", "error", err)
		return
	}
	_, _ = fmt.Fprintln(w, "PLATFORM\tSUCCESS\tFAILED\tSKIPPED")
	for _, r := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", r.Platform, r.Success, r.Failure, r.Skipped)
	}
}
