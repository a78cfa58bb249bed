package evo

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"popgensim/internal/genetics"
	"popgensim/internal/logging"
	"popgensim/internal/population"
	"popgensim/internal/rng"
)

type EvolveConfig struct {
	Params          Params
	CheckInvariants bool
	// Updaters are called after each generation with its index, in
	// addition to the trait map and noise policy of the rules.
	Updaters []genetics.GenerationUpdater
	Logger   *slog.Logger
}

type RunResult struct {
	// MeanFitness holds the parental mean fitness of every generation.
	MeanFitness []float64
	Fixations   int
}

// ValidateSchedule rejects an empty schedule or a non-positive size.
func ValidateSchedule(schedule []int) error {
	if len(schedule) == 0 {
		return fmt.Errorf("%w: empty generation-size schedule", ErrInvalidInput)
	}
	for i, n := range schedule {
		if n <= 0 {
			return fmt.Errorf("%w: schedule entry %d has size %d", ErrInvalidInput, i, n)
		}
	}
	return nil
}

// Evolve advances pop once per schedule entry. All inputs are validated
// before the population is touched. Cancellation is checked between
// generations; a cancelled run leaves pop at the last completed generation.
func Evolve(ctx context.Context, r *rng.Stream, pop *population.Population, schedule []int, cfg EvolveConfig) (RunResult, error) {
	if err := ValidateSchedule(schedule); err != nil {
		return RunResult{}, err
	}
	engine, err := NewEngine(cfg.Params, pop.Loci)
	if err != nil {
		return RunResult{}, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	params := engine.Params()

	ctx, span := otel.Tracer("popgensim/evo").Start(ctx, "evo.Evolve",
		trace.WithAttributes(
			attribute.String("rules", params.Rules.Name()),
			attribute.Int("generations", len(schedule)),
			attribute.Int("loci", pop.Loci),
			attribute.Int64("seed", int64(r.Seed())),
		),
	)
	defer span.End()

	result := RunResult{MeanFitness: make([]float64, 0, len(schedule))}
	for _, size := range schedule {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "cancelled")
			return result, err
		}

		pop.Generation++
		wbar, err := engine.Advance(ctx, r, pop, size)
		if err != nil {
			pop.Generation--
			generationsTotal.WithLabelValues("failed").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "advance failed")
			return result, fmt.Errorf("generation %d: %w", pop.Generation+1, err)
		}
		fixed, err := UpdateMutations(pop, pop.Generation, params.Removal)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "bookkeeping failed")
			return result, fmt.Errorf("generation %d: %w", pop.Generation, err)
		}
		if cfg.CheckInvariants {
			if err := pop.CheckInvariants(); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "invariant violated")
				return result, fmt.Errorf("generation %d: %w", pop.Generation, err)
			}
		}
		if u, ok := params.Rules.(genetics.GenerationUpdater); ok {
			u.UpdateGeneration(pop.Generation)
		}
		for _, u := range cfg.Updaters {
			u.UpdateGeneration(pop.Generation)
		}

		result.MeanFitness = append(result.MeanFitness, wbar)
		result.Fixations += fixed
		segregating := pop.Segregating()
		generationsTotal.WithLabelValues("ok").Inc()
		meanFitness.Set(wbar)
		segregatingMutations.Set(float64(segregating))
		logger.Debug("generation advanced",
			"generation", pop.Generation,
			"n", pop.N,
			"wbar", wbar,
			"segregating", segregating,
			"fixed", fixed,
		)
	}

	if !pop.Fit {
		if _, err := params.Rules.Recompute(ctx, pop); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "final recompute failed")
			return result, fmt.Errorf("generation %d: refresh fitness: %w", pop.Generation, err)
		}
	}

	logger.Info("evolution finished",
		"rules", params.Rules.Name(),
		"generation", pop.Generation,
		"n", pop.N,
		"fixations", len(pop.Fixations),
		"segregating", pop.Segregating(),
	)
	span.SetStatus(codes.Ok, "")
	return result, nil
}
