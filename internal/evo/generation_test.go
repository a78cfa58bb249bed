package evo

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"popgensim/internal/population"
	"popgensim/internal/rng"
)

func TestAdvanceKeepsCountInvariant(t *testing.T) {
	pop, err := population.New(50)
	require.NoError(t, err)
	engine, err := NewEngine(plainParams(t, 0.05, 0.5), 1)
	require.NoError(t, err)
	r := rng.New(11)

	for gen := 1; gen <= 40; gen++ {
		pop.Generation++
		_, err := engine.Advance(context.Background(), r, pop, 50)
		require.NoError(t, err)
		_, err = UpdateMutations(pop, pop.Generation, RemoveAll{})
		require.NoError(t, err)
		require.NoError(t, pop.CheckInvariants())
		require.Equal(t, 2*pop.N, gameteCopies(pop))
	}
	require.NotZero(t, pop.Segregating())
}

func TestAdvanceNeverReissuesLiveHandles(t *testing.T) {
	pop, err := population.New(30)
	require.NoError(t, err)
	params := plainParams(t, 0.2, 1)
	params.Removal = RemoveNothing{}
	engine, err := NewEngine(params, 1)
	require.NoError(t, err)
	r := rng.New(5)

	created := 0
	for gen := 1; gen <= 40; gen++ {
		liveMutations := map[int]population.Mutation{}
		for h, c := range pop.MutationCounts {
			if c > 0 {
				liveMutations[h] = pop.Mutations[h]
			}
		}
		liveGametes := map[int]population.Gamete{}
		for h, g := range pop.Gametes {
			if g.N > 0 {
				liveGametes[h] = population.Gamete{Neutral: slices.Clone(g.Neutral), Selected: slices.Clone(g.Selected)}
			}
		}

		pop.Generation++
		_, err := engine.Advance(context.Background(), r, pop, 30)
		require.NoError(t, err)
		_, err = UpdateMutations(pop, pop.Generation, RemoveNothing{})
		require.NoError(t, err)

		for h, m := range liveMutations {
			require.Equal(t, m, pop.Mutations[h], "generation %d: live mutation %d overwritten", gen, h)
		}
		for h, before := range liveGametes {
			g := pop.Gametes[h]
			if g.N == 0 {
				continue
			}
			require.Equal(t, before.Neutral, g.Neutral, "generation %d: live gamete %d overwritten", gen, h)
			require.Equal(t, before.Selected, g.Selected, "generation %d: live gamete %d overwritten", gen, h)
		}
		created += len(engine.newMutations)
	}
	require.Less(t, len(pop.Mutations), created, "lost mutation slots were never reused")
}

func TestAdvanceRejectsBadInput(t *testing.T) {
	pop, err := population.New(5)
	require.NoError(t, err)
	engine, err := NewEngine(plainParams(t, 0, 0), 1)
	require.NoError(t, err)

	_, err = engine.Advance(context.Background(), rng.New(1), pop, 0)
	require.ErrorIs(t, err, ErrInvalidInput)

	multi, err := population.NewMultiLocus(5, 2)
	require.NoError(t, err)
	_, err = engine.Advance(context.Background(), rng.New(1), multi, 5)
	require.ErrorIs(t, err, ErrInvalidInput)
}

var errPolicy = errors.New("mutation policy failed")

type failingMutations struct {
	MutationModel
	at uint32
}

func (f failingMutations) NewMutation(r *rng.Stream, generation uint32, occupied func(float64) bool) (population.Mutation, error) {
	if generation == f.at {
		return population.Mutation{}, errPolicy
	}
	return f.MutationModel.NewMutation(r, generation, occupied)
}

func TestAdvanceFailureRestoresPopulation(t *testing.T) {
	pop, err := population.New(20)
	require.NoError(t, err)
	params := plainParams(t, 0.5, 0.5)
	params.Mutations[0] = failingMutations{MutationModel: params.Mutations[0], at: 3}
	engine, err := NewEngine(params, 1)
	require.NoError(t, err)
	r := rng.New(3)

	for gen := 1; gen <= 2; gen++ {
		pop.Generation++
		_, err := engine.Advance(context.Background(), r, pop, 20)
		require.NoError(t, err)
		_, err = UpdateMutations(pop, pop.Generation, RemoveAll{})
		require.NoError(t, err)
	}
	genotypes := slices.Clone(pop.Genotypes)
	counts := slices.Clone(pop.MutationCounts)

	pop.Generation++
	_, err = engine.Advance(context.Background(), r, pop, 20)
	require.ErrorIs(t, err, errPolicy)

	require.Equal(t, genotypes, pop.Genotypes)
	require.Equal(t, counts, pop.MutationCounts[:len(counts)])
	for _, c := range pop.MutationCounts[len(counts):] {
		require.Zero(t, c)
	}
	require.NoError(t, pop.CheckInvariants())
	require.Equal(t, 2*pop.N, gameteCopies(pop))
	for h := len(counts); h < len(pop.Mutations); h++ {
		require.False(t, pop.Occupied(pop.Mutations[h].Pos))
	}
}

func TestMergeAtSwitchesAtBreakpoints(t *testing.T) {
	pop, err := population.New(1)
	require.NoError(t, err)
	bins := population.NewRecyclingBins()
	handle := map[float64]int{}
	for _, pos := range []float64{0.1, 0.2, 0.5, 0.6, 0.9} {
		handle[pos], _ = pop.InsertMutation(bins, population.Mutation{Pos: pos, Neutral: true})
	}
	a := []int{handle[0.1], handle[0.5], handle[0.9]}
	b := []int{handle[0.2], handle[0.6]}

	require.Equal(t, []int{handle[0.1], handle[0.6]}, mergeAt(pop, nil, a, b, []float64{0.4}))
	require.Equal(t, []int{handle[0.1], handle[0.6], handle[0.9]}, mergeAt(pop, nil, a, b, []float64{0.4, 0.7}))
	require.Equal(t, a, mergeAt(pop, nil, a, b, []float64{0.3, 0.3}))
	require.Equal(t, b, mergeAt(pop, nil, a, b, []float64{0}))
}

func TestInsertByPositionKeepsOrder(t *testing.T) {
	pop, err := population.New(1)
	require.NoError(t, err)
	bins := population.NewRecyclingBins()
	var hs []int
	for _, pos := range []float64{0.3, 0.1, 0.7} {
		h, _ := pop.InsertMutation(bins, population.Mutation{Pos: pos})
		hs = insertByPosition(pop, hs, h)
	}
	require.Equal(t, []int{1, 0, 2}, hs)
}
