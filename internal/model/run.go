package model

import "time"

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// ErrorCategory classifies why a run failed.
type ErrorCategory string

const (
	ErrorCategoryUnreadable    ErrorCategory = "empty_or_unreadable"
	ErrorCategoryNoRows        ErrorCategory = "no_rows"
	ErrorCategoryDecode        ErrorCategory = "decode"
	ErrorCategoryMissingColumn ErrorCategory = "missing_column"
	ErrorCategoryPrediction    ErrorCategory = "prediction"
	ErrorCategoryInternal      ErrorCategory = "internal"
)

// Run records one pipeline execution for the run history.
type Run struct {
	ID            string        `json:"id"`
	SessionID     string        `json:"session_id,omitempty"`
	Source        string        `json:"source"`
	Model         string        `json:"model"`
	Status        RunStatus     `json:"status"`
	Rows          int           `json:"rows"`
	Churned       int           `json:"churned"`
	TierCounts    map[Tier]int  `json:"tier_counts,omitempty"`
	ErrorCategory ErrorCategory `json:"error_category,omitempty"`
	Error         string        `json:"error,omitempty"`
	Phases        []PhaseResult `json:"phases,omitempty"`
	DurationMs    int64         `json:"duration_ms"`
	CreatedAt     time.Time     `json:"created_at"`
}

// PhaseStatus is the outcome of one pipeline phase.
type PhaseStatus string

const (
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
)

// PhaseResult records the timing and outcome of one pipeline phase.
type PhaseResult struct {
	Name       string      `json:"name"`
	Status     PhaseStatus `json:"status"`
	DurationMs int64       `json:"duration_ms"`
	Error      string      `json:"error,omitempty"`
}
