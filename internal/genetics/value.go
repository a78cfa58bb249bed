package genetics

import (
	"math"

	"popgensim/internal/population"
)

// GeneticValue maps an individual's gametes to a genetic value. Update is
// called once per generation before any Value call for that generation;
// after Update returns, Value must be safe for concurrent use.
type GeneticValue interface {
	Update(pop *population.Population) error
	Value(pop *population.Population, label int, genotype []population.DiploidGenotype) (float64, error)
}

// Mode selects whether a model reports a fitness (1 + effect, floored at 0)
// or a trait value (the raw effect).
type Mode int

const (
	FitnessMode Mode = iota
	TraitMode
)

func (m Mode) String() string {
	if m == TraitMode {
		return "trait"
	}
	return "fitness"
}

// Additive sums selected effects: s*h for heterozygous sites and
// Scaling*s for homozygous ones.
type Additive struct {
	Scaling float64
	Mode    Mode
}

func (Additive) Update(*population.Population) error { return nil }

func (a Additive) Value(pop *population.Population, _ int, genotype []population.DiploidGenotype) (float64, error) {
	sum := 0.0
	for _, dip := range genotype {
		visitSelected(pop, dip, func(m population.Mutation, homozygous bool) {
			if homozygous {
				sum += a.Scaling * m.S
			} else {
				sum += m.S * m.H
			}
		})
	}
	if a.Mode == TraitMode {
		return sum, nil
	}
	return math.Max(0, 1+sum), nil
}

// Multiplicative multiplies (1 + s*h) over heterozygous sites and
// (1 + Scaling*s) over homozygous ones.
type Multiplicative struct {
	Scaling float64
	Mode    Mode
}

func (Multiplicative) Update(*population.Population) error { return nil }

func (m Multiplicative) Value(pop *population.Population, _ int, genotype []population.DiploidGenotype) (float64, error) {
	product := 1.0
	for _, dip := range genotype {
		visitSelected(pop, dip, func(mut population.Mutation, homozygous bool) {
			if homozygous {
				product *= 1 + m.Scaling*mut.S
			} else {
				product *= 1 + mut.S*mut.H
			}
		})
	}
	if m.Mode == TraitMode {
		return product - 1, nil
	}
	return math.Max(0, product), nil
}

// visitSelected merges the two position-ordered selected lists of dip and
// reports each site once with its zygosity.
func visitSelected(pop *population.Population, dip population.DiploidGenotype, fn func(population.Mutation, bool)) {
	a := pop.Gametes[dip.First].Selected
	b := pop.Gametes[dip.Second].Selected
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			fn(pop.Mutations[a[i]], true)
			i++
			j++
		case pop.Mutations[a[i]].Pos < pop.Mutations[b[j]].Pos:
			fn(pop.Mutations[a[i]], false)
			i++
		default:
			fn(pop.Mutations[b[j]], false)
			j++
		}
	}
	for ; i < len(a); i++ {
		fn(pop.Mutations[a[i]], false)
	}
	for ; j < len(b); j++ {
		fn(pop.Mutations[b[j]], false)
	}
}
