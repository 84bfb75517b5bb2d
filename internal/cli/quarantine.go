package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/crosspost/internal/core/domain"
	redisclient "github.com/vietddude/crosspost/internal/infra/redis"
)

var quarantineLimit int

var quarantineCmd = &cobra.Command{
	Use:   "quarantine",
	Short: "List recently quarantined files",
	Run:   runQuarantineList,
}

var quarantineResolveCmd = &cobra.Command{
	Use:   "resolve [source] [file_name]",
	Short: "Remove a quarantined file from the log once it has been handled",
	Args:  cobra.ExactArgs(2),
	Run:   runQuarantineResolve,
}

func init() {
	quarantineCmd.Flags().IntVar(&quarantineLimit, "limit", 20, "number of entries to show")
	quarantineCmd.AddCommand(quarantineResolveCmd)
	rootCmd.AddCommand(quarantineCmd)
}

func openQuarantineLog(ctx context.Context) (*redisclient.Client, *redisclient.QuarantineLog) {
	cfg := loadConfig()
	if cfg.Redis.URL == "" {
		slog.Error("Redis is not configured, no quarantine log available")
		os.Exit(1)
	}
	client, err := redisclient.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	return client, redisclient.NewQuarantineLog(client)
}

func runQuarantineList(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	client, log := openQuarantineLog(ctx)
	defer func() {
		_ = client.Close()
	}()

	entries, err := log.Recent(ctx, quarantineLimit)
	if err != nil {
		slog.Error("Failed to read quarantine log", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "AT\tSOURCE\tFILE\tFAILED\tRUN")
	for _, e := range entries {
		var failed []string
		for _, r := range e.Report.Results {
			if r.Outcome != domain.OutcomeSuccess {
				failed = append(failed, fmt.Sprintf("%s(%s)", r.Platform, r.Outcome))
			}
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n",
			e.At.Format(time.RFC3339), e.Report.Source, e.Report.FileName, failed, e.RunID)
	}
	_ = w.Flush()
}

func runQuarantineResolve(cmd *cobra.Command, args []string) {
	source := domain.SourceID(args[0])
	fileName := args[1]

	ctx := context.Background()
	client, log := openQuarantineLog(ctx)
	defer func() {
		_ = client.Close()
	}()

	if err := log.Resolve(ctx, source, fileName); err != nil {
		slog.Error("Failed to resolve quarantine entry", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Resolved %s/%s\n", source, fileName)
}
