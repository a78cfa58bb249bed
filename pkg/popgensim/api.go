package popgensim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"popgensim/internal/config"
	"popgensim/internal/evo"
	"popgensim/internal/logging"
	"popgensim/internal/model"
	"popgensim/internal/population"
	"popgensim/internal/rng"
	"popgensim/internal/stats"
	"popgensim/internal/storage"
)

const (
	defaultArtifactsDir = "artifacts"
	defaultExportsDir   = "exports"
	defaultDBPath       = "popgensim.db"

	// Fixed-width so that run timestamps sort lexically.
	createdAtLayout = "2006-01-02T15:04:05.000000000Z"
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *slog.Logger
}

type Client struct {
	store  storage.Store
	logger *slog.Logger

	artifactsDir string
	exportsDir   string
}

type RunRequest struct {
	// Config defaults to the embedded defaults when nil.
	Config *config.Config
}

type RunSummary struct {
	RunID            string
	ArtifactsDir     string
	Seed             uint64
	Generations      int
	FinalGeneration  uint32
	FinalSize        int
	MeanFitness      []float64
	FinalMeanFitness float64
	Fixations        int
	Segregating      int
}

type RunsRequest struct {
	Limit int
}

// RunRef names a run either by id or as the most recent one.
type RunRef struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" && storeKind == "sqlite" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		logger:       logger,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// Reset drops every persisted run. Artifact directories are left in place.
func (c *Client) Reset(ctx context.Context) error {
	resetter, ok := c.store.(storage.Resetter)
	if !ok {
		return errors.New("store backend does not support reset")
	}
	return resetter.Reset(ctx)
}

// Run simulates one configured population to the end of its schedule and
// persists the run summary, diagnostics, fixations and final snapshot.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	cfg := req.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.Init(ctx); err != nil {
		return RunSummary{}, err
	}

	params, err := cfg.Params()
	if err != nil {
		return RunSummary{}, err
	}
	recorder := stats.NewRecorder(cfg.Run.RecordEvery)
	params.Sampler = recorder

	pop, err := population.NewMultiLocus(cfg.Population.Size, cfg.Population.Loci)
	if err != nil {
		return RunSummary{}, err
	}

	now := time.Now().UTC()
	runID := uuid.NewString()
	logger := c.logger.With("run_id", runID)
	schedule := cfg.ScheduleSizes()

	result, err := evo.Evolve(ctx, rng.New(cfg.Run.Seed), pop, schedule, evo.EvolveConfig{
		Params:          params,
		CheckInvariants: cfg.Run.CheckInvariants,
		Logger:          logger,
	})
	if err != nil {
		return RunSummary{}, fmt.Errorf("run %s: %w", runID, err)
	}

	rawConfig, err := json.Marshal(cfg)
	if err != nil {
		return RunSummary{}, err
	}
	version := storage.CurrentVersion()
	diagnostics := recorder.Diagnostics()
	fixations := stats.Fixations(pop)
	snapshot := stats.Snapshot(runID, pop, version)
	finalMeanFitness := 0.0
	if n := len(result.MeanFitness); n > 0 {
		finalMeanFitness = result.MeanFitness[n-1]
	}

	run := model.RunRecord{
		VersionedRecord:  version,
		ID:               runID,
		CreatedAtUTC:     now.Format(createdAtLayout),
		Seed:             cfg.Run.Seed,
		Rules:            params.Rules.Name(),
		Loci:             pop.Loci,
		InitialSize:      cfg.Population.Size,
		Generations:      len(schedule),
		FinalGeneration:  pop.Generation,
		FinalSize:        pop.N,
		FinalMeanFitness: finalMeanFitness,
		Fixations:        result.Fixations,
		Segregating:      pop.Segregating(),
		Config:           rawConfig,
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveDiagnostics(ctx, runID, diagnostics); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveFixations(ctx, runID, fixations); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveSnapshot(ctx, snapshot); err != nil {
		return RunSummary{}, err
	}

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		RunID:       runID,
		Config:      cfg,
		Diagnostics: diagnostics,
		Fixations:   fixations,
		Snapshot:    &snapshot,
	})
	if err != nil {
		return RunSummary{}, err
	}
	logger.Info("run persisted", "artifacts", runDir, "fixations", result.Fixations)

	return RunSummary{
		RunID:            runID,
		ArtifactsDir:     filepath.Clean(runDir),
		Seed:             cfg.Run.Seed,
		Generations:      len(schedule),
		FinalGeneration:  pop.Generation,
		FinalSize:        pop.N,
		MeanFitness:      append([]float64(nil), result.MeanFitness...),
		FinalMeanFitness: finalMeanFitness,
		Fixations:        result.Fixations,
		Segregating:      run.Segregating,
	}, nil
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]model.RunRecord, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := c.store.Init(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) > req.Limit {
		runs = runs[:req.Limit]
	}
	return runs, nil
}

func (c *Client) Diagnostics(ctx context.Context, req RunRef) ([]model.GenerationDiagnostics, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest, "diagnostics")
	if err != nil {
		return nil, err
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	diagnostics, ok, err := c.store.GetDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	return limit(diagnostics, req.Limit), nil
}

func (c *Client) Fixations(ctx context.Context, req RunRef) ([]model.FixationRecord, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest, "fixations")
	if err != nil {
		return nil, err
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	fixations, ok, err := c.store.GetFixations(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fixations not found for run id: %s", runID)
	}
	return limit(fixations, req.Limit), nil
}

func (c *Client) Snapshot(ctx context.Context, req RunRef) (model.PopulationSnapshot, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest, "snapshot")
	if err != nil {
		return model.PopulationSnapshot{}, err
	}
	snapshot, ok, err := c.store.GetSnapshot(ctx, runID)
	if err != nil {
		return model.PopulationSnapshot{}, err
	}
	if !ok {
		return model.PopulationSnapshot{}, fmt.Errorf("snapshot not found for run id: %s", runID)
	}
	return snapshot, nil
}

func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest, "export")
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool, what string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if err := c.store.Init(ctx); err != nil {
		return "", err
	}
	if !latest {
		if runID == "" {
			return "", fmt.Errorf("%s requires run id or latest", what)
		}
		return runID, nil
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs available")
	}
	return runs[0].ID, nil
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		items = items[:n]
	}
	return append([]T(nil), items...)
}
