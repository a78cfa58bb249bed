package evo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"popgensim/internal/population"
	"popgensim/internal/rng"
)

// FitnessSampler picks parents with probability proportional to their
// fitness in the current generation.
type FitnessSampler struct {
	r   *rng.Stream
	cat distuv.Categorical
}

func NewFitnessSampler(r *rng.Stream, pop *population.Population) (*FitnessSampler, error) {
	weights := make([]float64, pop.N)
	total := 0.0
	for i := range weights {
		w := pop.Metadata[i].W
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: individual %d has fitness %v", ErrInvalidInput, i, w)
		}
		weights[i] = w
		total += w
	}
	if total <= 0 {
		return nil, ErrZeroFitness
	}
	return &FitnessSampler{r: r, cat: r.Categorical(weights)}, nil
}

func (s *FitnessSampler) Pick1() int {
	return int(s.cat.Rand())
}

// Pick2 returns p1 (a selfed offspring) when selfingRate is 1, or when it
// is positive and a uniform draw falls below it. Otherwise the second
// parent is drawn like the first and may still equal p1.
func (s *FitnessSampler) Pick2(p1 int, selfingRate float64) int {
	if selfingRate == 1 || (selfingRate > 0 && s.r.Uniform() < selfingRate) {
		return p1
	}
	return s.Pick1()
}
