package evo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"popgensim/internal/population"
	"popgensim/internal/rng"
)

func TestFitnessSamplerNeverPicksZeroFitness(t *testing.T) {
	pop, err := population.New(4)
	require.NoError(t, err)
	for i, w := range []float64{0, 2, 0, 1} {
		pop.Metadata[i].W = w
	}
	s, err := NewFitnessSampler(rng.New(3), pop)
	require.NoError(t, err)

	counts := map[int]int{}
	for i := 0; i < 3000; i++ {
		counts[s.Pick1()]++
	}
	require.Zero(t, counts[0])
	require.Zero(t, counts[2])
	require.InDelta(t, 2.0, float64(counts[1])/float64(counts[3]), 0.3)
}

func TestFitnessSamplerRejectsDegenerateFitness(t *testing.T) {
	pop, err := population.New(3)
	require.NoError(t, err)
	for i := range pop.Metadata {
		pop.Metadata[i].W = 0
	}
	_, err = NewFitnessSampler(rng.New(1), pop)
	require.ErrorIs(t, err, ErrZeroFitness)

	pop.Metadata[1].W = -1
	_, err = NewFitnessSampler(rng.New(1), pop)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestPick2Selfing(t *testing.T) {
	pop, err := population.New(5)
	require.NoError(t, err)

	r := rng.New(10)
	s, err := NewFitnessSampler(r, pop)
	require.NoError(t, err)
	ref := rng.New(10)

	// A selfing rate of one draws nothing from the stream.
	for i := 0; i < 10; i++ {
		require.Equal(t, 3, s.Pick2(3, 1))
	}
	require.Equal(t, ref.Uniform(), r.Uniform())

	selfed := 0
	for i := 0; i < 2000; i++ {
		if s.Pick2(2, 0.5) == 2 {
			selfed++
		}
	}
	// 0.5 from the coin plus 0.5 * 1/5 from the outcrossing draw.
	require.InDelta(t, 0.6, float64(selfed)/2000, 0.05)
}
