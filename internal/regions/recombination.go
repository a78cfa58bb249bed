package regions

import (
	"errors"
	"fmt"
	"sort"

	"popgensim/internal/population"
	"popgensim/internal/rng"
)

// PoissonRecombination draws a Poisson number of crossovers with mean Rate
// per meiosis and places them in Regions by weight.
type PoissonRecombination struct {
	Rate    float64
	Regions []Region

	weights []float64
}

func NewPoissonRecombination(rate float64, rs []Region) (*PoissonRecombination, error) {
	if rate < 0 {
		return nil, fmt.Errorf("negative recombination rate: %v", rate)
	}
	if rate > 0 && len(rs) == 0 {
		return nil, errors.New("recombination rate > 0 requires at least one region")
	}
	for i, reg := range rs {
		if err := reg.Validate(); err != nil {
			return nil, fmt.Errorf("recombination region %d: %w", i, err)
		}
	}
	return &PoissonRecombination{Rate: rate, Regions: rs, weights: weightsOf(rs)}, nil
}

// Breakpoints returns the sorted crossover positions for one meiosis. The
// gamete pair does not influence this model.
func (p *PoissonRecombination) Breakpoints(r *rng.Stream, _ *population.Population, _, _ int) ([]float64, error) {
	n := r.Poisson(p.Rate)
	if n == 0 {
		return nil, nil
	}
	out := make([]float64, n)
	for i := range out {
		reg := p.Regions[pickRegion(r, p.weights)]
		out[i] = r.UniformRange(reg.Begin, reg.End)
	}
	sort.Float64s(out)
	return out, nil
}

// BinomialInterlocus crosses over between adjacent loci with probability P.
type BinomialInterlocus struct{ P float64 }

func (b BinomialInterlocus) Crossovers(r *rng.Stream) int {
	if b.P <= 0 {
		return 0
	}
	if r.Uniform() < b.P {
		return 1
	}
	return 0
}

// PoissonInterlocus draws the number of crossovers between adjacent loci;
// only its parity matters to transmission.
type PoissonInterlocus struct{ Mean float64 }

func (p PoissonInterlocus) Crossovers(r *rng.Stream) int {
	return r.Poisson(p.Mean)
}
