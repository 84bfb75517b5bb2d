package orchestrator

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/vietddude/crosspost/internal/core/domain"
)

// PlatformCounts are the outcomes recorded for one platform in a run.
type PlatformCounts struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Skipped int `json:"skipped"`
}

func (c PlatformCounts) add(o domain.Outcome) PlatformCounts {
	switch o {
	case domain.OutcomeSuccess:
		c.Success++
	case domain.OutcomeFailure:
		c.Failure++
	case domain.OutcomeSkipped:
		c.Skipped++
	}
	return c
}

// Summary is the result of one run. It is built by folding file reports in
// with withFile, which never mutates the receiver.
type Summary struct {
	RunID          string                             `json:"run_id"`
	StartedAt      time.Time                          `json:"started_at"`
	FinishedAt     time.Time                          `json:"finished_at"`
	Enabled        []domain.Platform                  `json:"enabled"`
	TotalPlatforms int                                `json:"total_platforms"`
	Files          []domain.FileReport                `json:"files"`
	Platforms      map[domain.Platform]PlatformCounts `json:"platforms"`
	// Remaining is nil when the file store could not be counted.
	Remaining *domain.FolderStats `json:"remaining,omitempty"`
}

func newSummary(runID string, startedAt time.Time, enabled []domain.Platform, total int) Summary {
	return Summary{
		RunID:          runID,
		StartedAt:      startedAt,
		Enabled:        slices.Clone(enabled),
		TotalPlatforms: total,
		Platforms:      make(map[domain.Platform]PlatformCounts),
	}
}

func (s Summary) withFile(report domain.FileReport) Summary {
	next := s
	next.Files = append(slices.Clone(s.Files), report)
	next.Platforms = maps.Clone(s.Platforms)
	for _, r := range report.Results {
		next.Platforms[r.Platform] = next.Platforms[r.Platform].add(r.Outcome)
	}
	return next
}

func (s Summary) finish(at time.Time, remaining *domain.FolderStats) Summary {
	next := s
	next.FinishedAt = at
	next.Remaining = remaining
	return next
}

// Totals sums the counts across platforms.
func (s Summary) Totals() PlatformCounts {
	var t PlatformCounts
	for _, c := range s.Platforms {
		t.Success += c.Success
		t.Failure += c.Failure
		t.Skipped += c.Skipped
	}
	return t
}

// ExitCode is 1 only for a run where deliveries failed and none succeeded.
// Runs with no work, or with at least one success, exit 0.
func (s Summary) ExitCode() int {
	t := s.Totals()
	if t.Success == 0 && t.Failure > 0 {
		return 1
	}
	return 0
}

const (
	ruleHeavy = "============================================================"
	ruleLight = "------------------------------------------------------------"
)

// String renders the human-readable run report.
func (s Summary) String() string {
	t := s.Totals()

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line(ruleHeavy)
	line("CROSSPOST RUN SUMMARY")
	line(ruleHeavy)
	line("Run ID            : %s", s.RunID)
	line("Enabled Platforms : %d", len(s.Enabled))
	line("Disabled Platforms: %d", s.TotalPlatforms-len(s.Enabled))
	line(ruleLight)
	line("Total Success     : %d", t.Success)
	line("Total Failed      : %d", t.Failure)
	line("Total Skipped     : %d", t.Skipped)
	line(ruleHeavy)
	for _, p := range s.Enabled {
		c := s.Platforms[p]
		line("%-10s -> S:%d | F:%d | SK:%d", strings.ToUpper(string(p)), c.Success, c.Failure, c.Skipped)
	}
	line(ruleHeavy)
	line("FILE STORE REMAINING FILES")
	line(ruleLight)
	if s.Remaining == nil {
		line("unavailable")
	} else {
		line("IG Videos       : %d", s.Remaining.Folders[domain.SourceShortVideo])
		line("General Videos  : %d", s.Remaining.Folders[domain.SourceGeneralVideo])
		line("Images          : %d", s.Remaining.Folders[domain.SourceImage])
		line(ruleLight)
		line("TOTAL FILES     : %d", s.Remaining.Total)
	}
	b.WriteString(ruleHeavy)
	return b.String()
}
