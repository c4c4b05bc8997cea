package reorder

import (
	"context"

	"pharmstock/internal/core/id"
)

// Repository is the append-only recommendation log. Runs are immutable;
// only the per-row status advances.
type Repository interface {
	// AppendRun inserts every recommendation of one run.
	AppendRun(ctx context.Context, runID id.ID, recs []Recommendation) error

	// ListByRun returns the recommendations of a single run.
	ListByRun(ctx context.Context, runID id.ID) ([]Recommendation, error)

	// ListPending returns recommendations still awaiting purchasing action,
	// newest run first.
	ListPending(ctx context.Context, limit int) ([]Recommendation, error)

	// UpdateStatus advances the status of the given recommendations.
	UpdateStatus(ctx context.Context, recIDs []id.ID, status Status) error
}

// Archiver stores a compressed snapshot of a run for audit.
type Archiver interface {
	ArchiveRun(ctx context.Context, runID id.ID, recs []Recommendation) error
}

// Notifier delivers a recommendation list to whoever acts on it. The engine
// calls it after a scheduled run; the delivery channel is not our concern.
type Notifier interface {
	Notify(ctx context.Context, runID id.ID, recs []Recommendation) error
}
