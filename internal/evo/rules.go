package evo

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"popgensim/internal/genetics"
	"popgensim/internal/population"
	"popgensim/internal/rng"
)

// Rules turns genetic values into fitness. Recompute runs once per
// generation before any parent is sampled and returns mean fitness.
// Update finalizes the metadata of one offspring whose gametes are already
// in pop; p1 and p2 index the parental metadata.
type Rules interface {
	Name() string
	Recompute(ctx context.Context, pop *population.Population) (float64, error)
	Update(r *rng.Stream, pop *population.Population, offspring *population.DiploidMetadata, genotype []population.DiploidGenotype, label, p1, p2 int) error
}

// deferredFitness is implemented by rules whose offspring carry no fitness
// until the next Recompute.
type deferredFitness interface {
	deferFitness()
}

// PlainRules uses the genetic value directly as fitness. Fitness is only
// evaluated on parents; offspring metadata is filled by the next Recompute.
type PlainRules struct {
	Model   genetics.GeneticValue
	Workers int
}

func (*PlainRules) Name() string { return "plain" }

func (p *PlainRules) Recompute(ctx context.Context, pop *population.Population) (float64, error) {
	if p.Model == nil {
		return 0, fmt.Errorf("%w: plain rules require a genetic value model", ErrInvalidInput)
	}
	if err := p.Model.Update(pop); err != nil {
		return 0, err
	}
	err := forEachIndividual(ctx, pop.N, p.Workers, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			w, err := p.Model.Value(pop, i, pop.Genotype(i))
			if err != nil {
				return err
			}
			md := &pop.Metadata[i]
			md.G, md.E, md.W = w, 0, w
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	pop.Fit = true
	return pop.MeanFitness(), nil
}

func (*PlainRules) Update(_ *rng.Stream, _ *population.Population, offspring *population.DiploidMetadata, _ []population.DiploidGenotype, label, p1, p2 int) error {
	finalize(offspring, label, p1, p2)
	return nil
}

func (*PlainRules) deferFitness() {}

// QTraitRules maps g + e through a trait-to-fitness function. g comes from
// the genetic value model at birth and e from the noise policy.
type QTraitRules struct {
	Model   genetics.GeneticValue
	Trait   genetics.TraitToFitness
	Noise   genetics.Noise
	Workers int
}

func (*QTraitRules) Name() string { return "qtrait" }

func (q *QTraitRules) Recompute(ctx context.Context, pop *population.Population) (float64, error) {
	if q.Model == nil || q.Trait == nil {
		return 0, fmt.Errorf("%w: qtrait rules require a genetic value model and a trait map", ErrInvalidInput)
	}
	if err := q.Model.Update(pop); err != nil {
		return 0, err
	}
	return recomputeTrait(ctx, pop, q.Workers, q.Trait, func(i int) (float64, error) {
		return q.Model.Value(pop, i, pop.Genotype(i))
	})
}

func (q *QTraitRules) Update(r *rng.Stream, pop *population.Population, offspring *population.DiploidMetadata, genotype []population.DiploidGenotype, label, p1, p2 int) error {
	g, err := q.Model.Value(pop, label, genotype)
	if err != nil {
		return err
	}
	finalizeTrait(r, pop, offspring, q.Trait, q.Noise, g, label, p1, p2)
	return nil
}

func (q *QTraitRules) UpdateGeneration(generation uint32) {
	updateGeneration(generation, q.Trait, q.Noise)
}

// MultiLocusRules evaluates one genetic value model per locus and combines
// the per-locus values with Aggregator before the trait path.
type MultiLocusRules struct {
	Models     []genetics.GeneticValue
	Aggregator genetics.Aggregator
	Trait      genetics.TraitToFitness
	Noise      genetics.Noise
	Workers    int

	values []float64
}

func (*MultiLocusRules) Name() string { return "multilocus" }

func (m *MultiLocusRules) Recompute(ctx context.Context, pop *population.Population) (float64, error) {
	if len(m.Models) != pop.Loci {
		return 0, fmt.Errorf("%w: %d locus models for %d loci", ErrInvalidInput, len(m.Models), pop.Loci)
	}
	if m.Aggregator == nil || m.Trait == nil {
		return 0, fmt.Errorf("%w: multi-locus rules require an aggregator and a trait map", ErrInvalidInput)
	}
	for l, model := range m.Models {
		if err := model.Update(pop); err != nil {
			return 0, fmt.Errorf("locus %d: %w", l, err)
		}
	}
	return recomputeTrait(ctx, pop, m.Workers, m.Trait, func(i int) (float64, error) {
		return m.value(pop, i, pop.Genotype(i), make([]float64, len(m.Models)))
	})
}

func (m *MultiLocusRules) Update(r *rng.Stream, pop *population.Population, offspring *population.DiploidMetadata, genotype []population.DiploidGenotype, label, p1, p2 int) error {
	if cap(m.values) < len(m.Models) {
		m.values = make([]float64, len(m.Models))
	}
	g, err := m.value(pop, label, genotype, m.values[:len(m.Models)])
	if err != nil {
		return err
	}
	finalizeTrait(r, pop, offspring, m.Trait, m.Noise, g, label, p1, p2)
	return nil
}

func (m *MultiLocusRules) UpdateGeneration(generation uint32) {
	updateGeneration(generation, m.Trait, m.Noise)
}

func (m *MultiLocusRules) value(pop *population.Population, label int, genotype []population.DiploidGenotype, values []float64) (float64, error) {
	for l, model := range m.Models {
		v, err := model.Value(pop, label, genotype[l:l+1])
		if err != nil {
			return 0, fmt.Errorf("locus %d: %w", l, err)
		}
		values[l] = v
	}
	return m.Aggregator.Aggregate(values), nil
}

// recomputeTrait refreshes w from g + e under the current trait map.
// Founders that were never fit get g from the model and e = 0.
func recomputeTrait(ctx context.Context, pop *population.Population, workers int, trait genetics.TraitToFitness, value func(i int) (float64, error)) (float64, error) {
	fit := pop.Fit
	err := forEachIndividual(ctx, pop.N, workers, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			md := &pop.Metadata[i]
			if !fit {
				g, err := value(i)
				if err != nil {
					return err
				}
				md.G, md.E = g, 0
			}
			md.W = trait.Fitness(md.G + md.E)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	pop.Fit = true
	return pop.MeanFitness(), nil
}

func finalizeTrait(r *rng.Stream, pop *population.Population, offspring *population.DiploidMetadata, trait genetics.TraitToFitness, noise genetics.Noise, g float64, label, p1, p2 int) {
	e := 0.0
	if noise != nil {
		e = noise.Draw(r, g, &pop.Metadata[p1], &pop.Metadata[p2])
	}
	finalize(offspring, label, p1, p2)
	offspring.G, offspring.E, offspring.W = g, e, trait.Fitness(g+e)
}

func finalize(md *population.DiploidMetadata, label, p1, p2 int) {
	*md = population.DiploidMetadata{
		Label:   label,
		Parents: [2]int{p1, p2},
		Nodes:   [2]int32{-1, -1},
	}
}

func updateGeneration(generation uint32, policies ...any) {
	for _, p := range policies {
		if u, ok := p.(genetics.GenerationUpdater); ok {
			u.UpdateGeneration(generation)
		}
	}
}

// forEachIndividual splits [0, n) into contiguous chunks evaluated on up to
// workers goroutines. fn must only write state owned by its chunk.
func forEachIndividual(ctx context.Context, n, workers int, fn func(lo, hi int) error) error {
	if workers <= 1 || n < 2*workers {
		return fn(0, n)
	}
	g, _ := errgroup.WithContext(ctx)
	chunk := (n + workers - 1) / workers
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, min(lo+chunk, n)
		g.Go(func() error { return fn(lo, hi) })
	}
	return g.Wait()
}
