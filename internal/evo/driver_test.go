package evo

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"popgensim/internal/genetics"
	"popgensim/internal/population"
	"popgensim/internal/regions"
	"popgensim/internal/rng"
)

func constantSchedule(n, generations int) []int {
	out := make([]int, generations)
	for i := range out {
		out[i] = n
	}
	return out
}

func qtraitParams(t *testing.T, trait genetics.TraitToFitness, workers int) Params {
	t.Helper()
	return Params{
		MutationRates:  []float64{0.05},
		Mutations:      []MutationModel{mixedModel(t, 0, regions.GaussianS{SD: 0.1})},
		Recombinations: []RecombinationModel{poissonRec(t, 1, 0)},
		Rules: &QTraitRules{
			Model:   genetics.Additive{Scaling: 2, Mode: genetics.TraitMode},
			Trait:   trait,
			Noise:   genetics.GaussianNoise{SD: 0.05},
			Workers: workers,
		},
		Removal: RemoveNeutral{},
	}
}

func TestEvolveIsDeterministic(t *testing.T) {
	run := func(workers int) *population.Population {
		pop, err := population.New(40)
		require.NoError(t, err)
		cfg := EvolveConfig{Params: qtraitParams(t, genetics.GSS{VS: 1}, workers), CheckInvariants: true}
		_, err = Evolve(context.Background(), rng.New(2024), pop, constantSchedule(40, 25), cfg)
		require.NoError(t, err)
		return pop
	}

	a, b := run(1), run(4)
	require.Equal(t, a.Genotypes, b.Genotypes)
	require.Equal(t, a.Metadata, b.Metadata)
	require.Equal(t, a.Mutations, b.Mutations)
	require.Equal(t, a.MutationCounts, b.MutationCounts)
	require.Equal(t, a.Fixations, b.Fixations)
	require.Equal(t, a.FixationTimes, b.FixationTimes)
}

func TestEvolveGenerationCounter(t *testing.T) {
	pop, err := population.New(10)
	require.NoError(t, err)
	cfg := EvolveConfig{Params: plainParams(t, 0.01, 0)}

	_, err = Evolve(context.Background(), rng.New(1), pop, constantSchedule(10, 3), cfg)
	require.NoError(t, err)
	require.Equal(t, uint32(3), pop.Generation)

	_, err = Evolve(context.Background(), rng.New(1), pop, nil, cfg)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = Evolve(context.Background(), rng.New(1), pop, []int{10, 0, 10}, cfg)
	require.ErrorIs(t, err, ErrInvalidInput)

	negative := plainParams(t, -0.1, 0)
	_, err = Evolve(context.Background(), rng.New(1), pop, []int{10}, EvolveConfig{Params: negative})
	require.ErrorIs(t, err, ErrInvalidInput)

	selfing := plainParams(t, 0, 0)
	selfing.SelfingRate = 1.5
	_, err = Evolve(context.Background(), rng.New(1), pop, []int{10}, EvolveConfig{Params: selfing})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Equal(t, uint32(3), pop.Generation)

	_, err = Evolve(context.Background(), rng.New(1), pop, constantSchedule(10, 2), cfg)
	require.NoError(t, err)
	require.Equal(t, uint32(5), pop.Generation)
}

func TestEvolveRestoresGenerationOnFailure(t *testing.T) {
	pop, err := population.New(10)
	require.NoError(t, err)
	params := plainParams(t, 1, 0)
	params.Mutations[0] = failingMutations{MutationModel: params.Mutations[0], at: 4}

	res, err := Evolve(context.Background(), rng.New(9), pop, constantSchedule(10, 6), EvolveConfig{Params: params})
	require.ErrorIs(t, err, errPolicy)
	require.Equal(t, uint32(3), pop.Generation)
	require.Len(t, res.MeanFitness, 3)
	require.NoError(t, pop.CheckInvariants())
}

func TestEvolveStopsWhenCancelled(t *testing.T) {
	pop, err := population.New(10)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	params := plainParams(t, 0.01, 0)
	params.Sampler = SamplerFunc(func(*population.Population) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return nil
	})

	_, err = Evolve(ctx, rng.New(1), pop, constantSchedule(10, 10), EvolveConfig{Params: params})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, uint32(2), pop.Generation)
	require.NoError(t, pop.CheckInvariants())
}

func injectFixed(t *testing.T, pop *population.Population, m population.Mutation) int {
	t.Helper()
	h, _ := pop.InsertMutation(population.NewRecyclingBins(), m)
	if m.Neutral {
		pop.Gametes[0].Neutral = []int{h}
	} else {
		pop.Gametes[0].Selected = []int{h}
	}
	pop.RecountGametes()
	require.Equal(t, uint32(pop.TwoN()), pop.MutationCounts[h])
	return h
}

func TestRemovedFixationRecordedOnce(t *testing.T) {
	pop, err := population.New(10)
	require.NoError(t, err)
	h := injectFixed(t, pop, population.Mutation{Pos: 0.5, Neutral: true})
	before := testutil.ToFloat64(fixationsTotal)

	res, err := Evolve(context.Background(), rng.New(4), pop, constantSchedule(10, 3), EvolveConfig{Params: plainParams(t, 0, 0), CheckInvariants: true})
	require.NoError(t, err)

	require.Equal(t, 1, res.Fixations)
	require.Equal(t, []population.Mutation{{Pos: 0.5, Neutral: true}}, pop.Fixations)
	require.Equal(t, []uint32{1}, pop.FixationTimes)
	require.Zero(t, pop.MutationCounts[h])
	require.Empty(t, pop.Gametes[0].Neutral)
	require.False(t, pop.Occupied(0.5))
	require.Equal(t, before+1, testutil.ToFloat64(fixationsTotal))
}

func TestRetainedFixationRecordedOnce(t *testing.T) {
	pop, err := population.New(10)
	require.NoError(t, err)
	m := population.Mutation{Pos: 0.25, S: 0.1, H: 1}
	h := injectFixed(t, pop, m)
	params := plainParams(t, 0, 0)
	params.Removal = RemoveNeutral{}

	_, err = Evolve(context.Background(), rng.New(4), pop, constantSchedule(10, 4), EvolveConfig{Params: params, CheckInvariants: true})
	require.NoError(t, err)

	require.Equal(t, []population.Mutation{m}, pop.Fixations)
	require.Equal(t, []uint32{1}, pop.FixationTimes)
	require.Equal(t, uint32(20), pop.MutationCounts[h])
	require.Equal(t, []int{h}, pop.Gametes[0].Selected)
	require.True(t, pop.Occupied(0.25))
}

func TestUpdateMutationsRejectsOvercount(t *testing.T) {
	pop, err := population.New(3)
	require.NoError(t, err)
	h := injectFixed(t, pop, population.Mutation{Pos: 0.5, Neutral: true})
	pop.MutationCounts[h] = 7

	_, err = UpdateMutations(pop, 1, RemoveAll{})
	require.ErrorIs(t, err, ErrInvariantViolation)
	require.Empty(t, pop.Fixations)
}

func TestSelfingBoundary(t *testing.T) {
	pop := diverseFounders(t, 10)
	params := plainParams(t, 0, 0)
	params.SelfingRate = 1
	engine, err := NewEngine(params, 1)
	require.NoError(t, err)
	r := rng.New(8)

	distinct := distinctGametes(pop)
	for gen := 1; gen <= 5; gen++ {
		parents := append([]population.DiploidGenotype(nil), pop.Genotypes...)
		pop.Generation++
		_, err := engine.Advance(context.Background(), r, pop, 10)
		require.NoError(t, err)
		_, err = UpdateMutations(pop, pop.Generation, params.Removal)
		require.NoError(t, err)

		for i, md := range pop.Metadata {
			require.Equal(t, md.Parents[0], md.Parents[1])
			parent := parents[md.Parents[0]]
			for _, g := range []int{pop.Genotypes[i].First, pop.Genotypes[i].Second} {
				require.Contains(t, []int{parent.First, parent.Second}, g)
			}
		}
		now := distinctGametes(pop)
		require.LessOrEqual(t, now, distinct)
		distinct = now
	}
}

func TestNeutralDriftAllocatesNothing(t *testing.T) {
	pop := diverseFounders(t, 20)
	mutations, gametes := len(pop.Mutations), len(pop.Gametes)
	params := Params{
		MutationRates: []float64{0},
		Mutations:     []MutationModel{nil},
		Rules:         &PlainRules{Model: genetics.Additive{Scaling: 2}},
	}
	var totals []int
	params.Sampler = SamplerFunc(func(p *population.Population) error {
		totals = append(totals, gameteCopies(p))
		return nil
	})

	_, err := Evolve(context.Background(), rng.New(77), pop, constantSchedule(20, 15), EvolveConfig{Params: params, CheckInvariants: true})
	require.NoError(t, err)
	require.Equal(t, mutations, len(pop.Mutations))
	require.Equal(t, gametes, len(pop.Gametes))
	require.Equal(t, 40, gameteCopies(pop))
	for _, total := range totals {
		require.Equal(t, 40, total)
	}
}

type recordingOptimum struct {
	*genetics.GSSmo
	generations []uint32
}

func (r *recordingOptimum) UpdateGeneration(generation uint32) {
	r.generations = append(r.generations, generation)
	r.GSSmo.UpdateGeneration(generation)
}

func TestQTraitShiftingOptimum(t *testing.T) {
	pop, err := population.New(30)
	require.NoError(t, err)
	trait := &recordingOptimum{GSSmo: genetics.NewGSSmo(1, 0, []genetics.OptimumStep{{Generation: 3, Optimum: 0.5}})}
	params := qtraitParams(t, trait, 2)

	var sampled []uint32
	var means []float64
	params.Sampler = SamplerFunc(func(p *population.Population) error {
		sampled = append(sampled, p.Generation)
		total := 0.0
		for _, md := range p.Metadata {
			total += md.W
		}
		means = append(means, total/float64(len(p.Metadata)))
		return nil
	})

	res, err := Evolve(context.Background(), rng.New(31), pop, constantSchedule(30, 6), EvolveConfig{Params: params, CheckInvariants: true})
	require.NoError(t, err)

	require.Equal(t, []uint32{1, 2, 3, 4, 5, 6}, trait.generations)
	require.Equal(t, sampled, trait.generations)
	require.Equal(t, 0.5, trait.Optimum)
	require.Len(t, res.MeanFitness, 6)
	for i := range means {
		require.InDelta(t, means[i], res.MeanFitness[i], 1e-12)
	}
	for _, md := range pop.Metadata {
		require.InDelta(t, trait.Fitness(md.G+md.E), md.W, 1e-12)
	}
}

func TestExternalUpdatersRunAfterEachGeneration(t *testing.T) {
	pop, err := population.New(5)
	require.NoError(t, err)
	step := genetics.NewGSSmo(1, 0, []genetics.OptimumStep{{Generation: 2, Optimum: 1}})
	_, err = Evolve(context.Background(), rng.New(1), pop, constantSchedule(5, 2), EvolveConfig{
		Params:   plainParams(t, 0, 0),
		Updaters: []genetics.GenerationUpdater{step},
	})
	require.NoError(t, err)
	require.Equal(t, 1.0, step.Optimum)
}

func TestMultiLocusEvolve(t *testing.T) {
	const loci = 3
	pop, err := population.NewMultiLocus(25, loci)
	require.NoError(t, err)

	params := Params{
		Removal: RemoveNeutral{},
		Rules: &MultiLocusRules{
			Aggregator: genetics.AggregateAdditive{},
			Trait:      genetics.GSS{VS: 2},
			Noise:      genetics.GaussianNoise{SD: 0.1},
		},
	}
	rules := params.Rules.(*MultiLocusRules)
	for l := 0; l < loci; l++ {
		offset := float64(l)
		params.MutationRates = append(params.MutationRates, 0.05)
		params.Mutations = append(params.Mutations, mixedModel(t, offset, regions.GaussianS{SD: 0.05}))
		params.Recombinations = append(params.Recombinations, poissonRec(t, 0.5, offset))
		rules.Models = append(rules.Models, genetics.Additive{Scaling: 2, Mode: genetics.TraitMode})
		if l > 0 {
			params.Interlocus = append(params.Interlocus, regions.BinomialInterlocus{P: 0.5})
		}
	}

	_, err = Evolve(context.Background(), rng.New(12), pop, constantSchedule(25, 20), EvolveConfig{Params: params, CheckInvariants: true})
	require.NoError(t, err)

	for i := 0; i < pop.N; i++ {
		for l, dip := range pop.Genotype(i) {
			for _, g := range []int{dip.First, dip.Second} {
				gamete := pop.Gametes[g]
				for _, h := range append(append([]int(nil), gamete.Neutral...), gamete.Selected...) {
					pos := pop.Mutations[h].Pos
					require.GreaterOrEqual(t, pos, float64(l))
					require.Less(t, pos, float64(l+1))
				}
			}
		}
	}
}

func TestPlainSnowdriftOverGrowingSchedule(t *testing.T) {
	newModel := func() *genetics.Snowdrift {
		return &genetics.Snowdrift{B1: 6, B2: -1.4, C1: 4.56, C2: -1.6, InitP: 0.1}
	}
	pop, err := population.New(10)
	require.NoError(t, err)
	params := Params{
		MutationRates:  []float64{0.2},
		Mutations:      []MutationModel{mixedModel(t, 0, regions.GaussianS{SD: 0.1})},
		Recombinations: []RecombinationModel{poissonRec(t, 0.5, 0)},
		Rules:          &PlainRules{Model: newModel(), Workers: 2},
		Removal:        RemoveNeutral{},
	}

	var sizes []int
	var means []float64
	params.Sampler = SamplerFunc(func(p *population.Population) error {
		sizes = append(sizes, p.N)
		means = append(means, p.MeanFitness())
		return nil
	})

	schedule := []int{10, 20, 20, 35, 15}
	res, err := Evolve(context.Background(), rng.New(77), pop, schedule, EvolveConfig{Params: params, CheckInvariants: true})
	require.NoError(t, err)

	require.Equal(t, uint32(len(schedule)), pop.Generation)
	require.Equal(t, 15, pop.N)
	require.Equal(t, []int{10, 10, 20, 20, 35}, sizes)
	require.Len(t, res.MeanFitness, len(schedule))
	for i := range means {
		require.InDelta(t, means[i], res.MeanFitness[i], 1e-12)
	}

	require.True(t, pop.Fit)
	check := newModel()
	require.NoError(t, check.Update(pop))
	for i, md := range pop.Metadata {
		require.Equal(t, i, md.Label)
		w, err := check.Value(pop, md.Label, pop.Genotype(i))
		require.NoError(t, err)
		require.InDelta(t, w, md.W, 1e-12)
		require.Equal(t, md.W, md.G)
		require.Zero(t, md.E)
	}
}

func TestQTraitOverVaryingSchedule(t *testing.T) {
	pop, err := population.New(20)
	require.NoError(t, err)
	trait := genetics.GSS{VS: 1}
	params := qtraitParams(t, trait, 3)

	var parents []int
	params.Sampler = SamplerFunc(func(p *population.Population) error {
		parents = append(parents, p.N)
		return nil
	})

	schedule := []int{35, 12, 40, 25}
	res, err := Evolve(context.Background(), rng.New(5), pop, schedule, EvolveConfig{Params: params, CheckInvariants: true})
	require.NoError(t, err)

	require.Equal(t, []int{20, 35, 12, 40}, parents)
	require.Len(t, res.MeanFitness, len(schedule))
	require.Equal(t, 25, pop.N)
	require.Len(t, pop.Metadata, 25)
	require.Equal(t, 2*pop.N, gameteCopies(pop))
	require.True(t, pop.Fit)
	for i, md := range pop.Metadata {
		require.Equal(t, i, md.Label)
		require.Less(t, md.Parents[0], 40)
		require.Less(t, md.Parents[1], 40)
		require.InDelta(t, trait.Fitness(md.G+md.E), md.W, 1e-12)
	}
}
