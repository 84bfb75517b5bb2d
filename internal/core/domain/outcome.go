package domain

import "time"

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeSkipped Outcome = "skipped"
)

type Disposition string

const (
	DispositionDeleted     Disposition = "deleted"
	DispositionQuarantined Disposition = "quarantined"
	// DispositionNone means the cycle ended before a disposition was made.
	DispositionNone Disposition = "none"
)

// DeliveryResult is the outcome of delivering one file to one platform.
type DeliveryResult struct {
	RunID    string    `json:"run_id"`
	Source   SourceID  `json:"source"`
	FileName string    `json:"file_name"`
	Platform Platform  `json:"platform"`
	Outcome  Outcome   `json:"outcome"`
	Attempts int       `json:"attempts"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

// FileReport records what happened to one source file during a run.
type FileReport struct {
	Source      SourceID         `json:"source"`
	FileName    string           `json:"file_name"`
	Results     []DeliveryResult `json:"results"`
	Disposition Disposition      `json:"disposition"`
	Error       string           `json:"error,omitempty"`
}
