package storage

import (
	"context"

	"popgensim/internal/model"
)

// Store persists run summaries and their per-generation artifacts by run id.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error
	GetDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error)
	SaveFixations(ctx context.Context, runID string, fixations []model.FixationRecord) error
	GetFixations(ctx context.Context, runID string) ([]model.FixationRecord, bool, error)
	SaveSnapshot(ctx context.Context, snapshot model.PopulationSnapshot) error
	GetSnapshot(ctx context.Context, runID string) (model.PopulationSnapshot, bool, error)
}

// Resetter is implemented by stores that can drop all persisted runs.
type Resetter interface {
	Reset(ctx context.Context) error
}
