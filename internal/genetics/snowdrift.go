package genetics

import (
	"fmt"
	"math"

	"popgensim/internal/population"
)

// Snowdrift is a frequency-dependent model: each individual's phenotype is
// an additive genetic value shifted by InitP and clamped to [0, 1], and its
// fitness is the mean snowdrift payoff against every other individual.
// Phenotypes are cached by Update once per generation.
type Snowdrift struct {
	B1, B2, C1, C2 float64
	InitP          float64

	Phenotypes []float64
}

func (s *Snowdrift) Update(pop *population.Population) error {
	if cap(s.Phenotypes) < pop.N {
		s.Phenotypes = make([]float64, pop.N)
	}
	s.Phenotypes = s.Phenotypes[:pop.N]
	additive := Additive{Scaling: 2, Mode: FitnessMode}
	for i := 0; i < pop.N; i++ {
		v, err := additive.Value(pop, i, pop.Genotype(i))
		if err != nil {
			return err
		}
		s.Phenotypes[pop.Metadata[i].Label] = math.Min(1, math.Max(0, v-1+s.InitP))
	}
	return nil
}

func (s *Snowdrift) Value(_ *population.Population, label int, _ []population.DiploidGenotype) (float64, error) {
	n := len(s.Phenotypes)
	if label < 0 || label >= n {
		return 0, fmt.Errorf("snowdrift: label %d outside phenotype cache of %d", label, n)
	}
	if n < 2 {
		return 1, nil
	}
	self := s.Phenotypes[label]
	fitness := 0.0
	for j, other := range s.Phenotypes {
		if j == label {
			continue
		}
		pair := self + other
		payoff := s.B1*pair + s.B2*pair*pair - s.C1*self - s.C2*self*self
		fitness += 1 + math.Max(payoff, 0)
	}
	return fitness / float64(n-1), nil
}
