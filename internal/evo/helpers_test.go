package evo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"popgensim/internal/genetics"
	"popgensim/internal/population"
	"popgensim/internal/regions"
)

func unitRegion(offset float64) []regions.Region {
	return []regions.Region{{Begin: offset, End: offset + 1, Weight: 1}}
}

func mixedModel(t *testing.T, offset float64, dfe regions.DFE) *regions.MutationRegions {
	t.Helper()
	m, err := regions.NewMutationRegions(1, 0.5, unitRegion(offset), []regions.Sregion{
		{Region: unitRegion(offset)[0], DFE: dfe, H: 0.5},
	})
	require.NoError(t, err)
	return m
}

func poissonRec(t *testing.T, rate, offset float64) *regions.PoissonRecombination {
	t.Helper()
	rec, err := regions.NewPoissonRecombination(rate, unitRegion(offset))
	require.NoError(t, err)
	return rec
}

// plainParams builds single-locus multiplicative selection.
func plainParams(t *testing.T, mu, rec float64) Params {
	t.Helper()
	return Params{
		MutationRates:  []float64{mu},
		Mutations:      []MutationModel{mixedModel(t, 0, regions.ConstantS{S: -0.01})},
		Recombinations: []RecombinationModel{poissonRec(t, rec, 0)},
		Rules:          &PlainRules{Model: genetics.Multiplicative{Scaling: 2}},
		Removal:        RemoveAll{},
	}
}

// diverseFounders gives every founder two private gametes, each carrying one
// neutral mutation. The shared founder gamete 0 ends up unused.
func diverseFounders(t *testing.T, n int) *population.Population {
	t.Helper()
	pop, err := population.New(n)
	require.NoError(t, err)
	bins := population.NewRecyclingBins()
	for i := 0; i < n; i++ {
		var pair [2]int
		for k := range pair {
			pos := float64(2*i+k+1) / float64(2*n+2)
			h, _ := pop.InsertMutation(bins, population.Mutation{Pos: pos, Neutral: true})
			pair[k], _ = pop.InsertGamete(bins, []int{h}, nil)
		}
		pop.Genotypes[i] = population.DiploidGenotype{First: pair[0], Second: pair[1]}
	}
	pop.RecountGametes()
	require.NoError(t, pop.CheckInvariants())
	return pop
}

func gameteCopies(pop *population.Population) int {
	total := 0
	for i := range pop.Gametes {
		total += int(pop.Gametes[i].N)
	}
	return total
}

func distinctGametes(pop *population.Population) int {
	seen := map[int]struct{}{}
	for _, dip := range pop.Genotypes {
		seen[dip.First] = struct{}{}
		seen[dip.Second] = struct{}{}
	}
	return len(seen)
}
