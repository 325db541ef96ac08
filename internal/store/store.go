// Package store persists pipeline run history in SQLite or Postgres.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/churn-cli/internal/model"
)

// ErrRunNotFound is returned by GetRun for unknown ids.
var ErrRunNotFound = eris.New("store: run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status    model.RunStatus `json:"status,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty"`
}

const defaultListLimit = 100

func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

// Store defines the persistence interface for run history.
type Store interface {
	// RecordRun inserts a finished run. A missing ID or CreatedAt is filled in.
	RecordRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	// DeleteRunsBefore removes runs created before cutoff and returns how many were removed.
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// prepareRun fills defaults and encodes the JSON columns shared by both drivers.
func prepareRun(run *model.Run) (tierJSON, phasesJSON []byte, err error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	tierJSON, err = json.Marshal(run.TierCounts)
	if err != nil {
		return nil, nil, eris.Wrap(err, "marshal tier counts")
	}
	phasesJSON, err = json.Marshal(run.Phases)
	if err != nil {
		return nil, nil, eris.Wrap(err, "marshal phases")
	}
	return tierJSON, phasesJSON, nil
}

// runRow holds the scanned columns of a runs row before conversion.
type runRow struct {
	id, sessionID, source, modelName, status string
	rows, churned, durationMs                int64
	tierJSON, phasesJSON                     []byte
	errorCategory, errorMsg                  string
	createdAt                                time.Time
}

const runColumns = `id, session_id, source, model, status, row_count, churned_count, tier_counts, error_category, error, phases, duration_ms, created_at`

func (r *runRow) dest() []any {
	return []any{
		&r.id, &r.sessionID, &r.source, &r.modelName, &r.status,
		&r.rows, &r.churned, &r.tierJSON, &r.errorCategory, &r.errorMsg,
		&r.phasesJSON, &r.durationMs, &r.createdAt,
	}
}

func (r *runRow) toRun() (*model.Run, error) {
	run := &model.Run{
		ID:            r.id,
		SessionID:     r.sessionID,
		Source:        r.source,
		Model:         r.modelName,
		Status:        model.RunStatus(r.status),
		Rows:          int(r.rows),
		Churned:       int(r.churned),
		ErrorCategory: model.ErrorCategory(r.errorCategory),
		Error:         r.errorMsg,
		DurationMs:    r.durationMs,
		CreatedAt:     r.createdAt.UTC(),
	}
	if len(r.tierJSON) > 0 {
		if err := json.Unmarshal(r.tierJSON, &run.TierCounts); err != nil {
			return nil, eris.Wrap(err, "unmarshal tier counts")
		}
	}
	if len(r.phasesJSON) > 0 {
		if err := json.Unmarshal(r.phasesJSON, &run.Phases); err != nil {
			return nil, eris.Wrap(err, "unmarshal phases")
		}
	}
	return run, nil
}
