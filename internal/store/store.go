// Package store persists analysis runs behind a driver-neutral
// interface, with SQLite for single-clinic installs and Postgres for
// shared deployments.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/harborview-health/intake-cli/internal/model"
)

// ErrNotFound reports a run ID with no stored run. GetRun returns it
// unwrapped so callers can map it with errors.Is.
var ErrNotFound = eris.New("run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Source string          `json:"source,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for analysis runs.
type Store interface {
	// CreateRun inserts a new run in status running. The store assigns
	// the ID and timestamps; the caller fills the descriptive fields.
	CreateRun(ctx context.Context, run model.Run) (*model.Run, error)
	// CompleteRun marks a run complete and installs its answers, token
	// usage, and duration in one write.
	CompleteRun(ctx context.Context, runID string, answers []model.AnswerEntry, usage model.TokenUsage, durationMS int64) error
	// FailRun marks a run failed and records why.
	FailRun(ctx context.Context, runID string, errMsg string) error
	// UpdateRunAnswers replaces a completed run's answers, used when a
	// reviewer overrides a selection.
	UpdateRunAnswers(ctx context.Context, runID string, answers []model.AnswerEntry) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
