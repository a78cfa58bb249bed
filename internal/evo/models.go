package evo

import (
	"errors"

	"popgensim/internal/population"
	"popgensim/internal/rng"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvariantViolation = population.ErrInvariantViolation
	ErrZeroFitness        = errors.New("parental fitnesses sum to zero")
)

// MutationModel places one new mutation. occupied reports positions already
// in use so the model can redraw under infinite sites.
type MutationModel interface {
	NewMutation(r *rng.Stream, generation uint32, occupied func(pos float64) bool) (population.Mutation, error)
}

// RecombinationModel returns the sorted breakpoints used to interleave
// gametes g1 and g2.
type RecombinationModel interface {
	Breakpoints(r *rng.Stream, pop *population.Population, g1, g2 int) ([]float64, error)
}

// InterlocusRecombination returns the number of crossovers between two
// adjacent loci. An odd count switches the transmitted haplotype.
type InterlocusRecombination interface {
	Crossovers(r *rng.Stream) int
}

// TemporalSampler observes the parental generation once per generation. It
// must not modify pop.
type TemporalSampler interface {
	Sample(pop *population.Population) error
}

// NoRecombination never breaks a gamete and consumes no randomness.
type NoRecombination struct{}

func (NoRecombination) Breakpoints(*rng.Stream, *population.Population, int, int) ([]float64, error) {
	return nil, nil
}

// RemovalPolicy decides whether a fixed mutation is dropped from gametes
// and moved to the fixation record.
type RemovalPolicy interface {
	Name() string
	Remove(m population.Mutation) bool
}

// RemoveAll drops every fixation.
type RemoveAll struct{}

func (RemoveAll) Name() string                    { return "all" }
func (RemoveAll) Remove(population.Mutation) bool { return true }

// RemoveNeutral drops neutral fixations and keeps selected ones in the
// gametes.
type RemoveNeutral struct{}

func (RemoveNeutral) Name() string                      { return "neutral" }
func (RemoveNeutral) Remove(m population.Mutation) bool { return m.Neutral }

// RemoveNothing keeps every fixation in the gametes.
type RemoveNothing struct{}

func (RemoveNothing) Name() string                    { return "none" }
func (RemoveNothing) Remove(population.Mutation) bool { return false }

func RemovalPolicyByName(name string) (RemovalPolicy, error) {
	switch name {
	case "all":
		return RemoveAll{}, nil
	case "neutral":
		return RemoveNeutral{}, nil
	case "none":
		return RemoveNothing{}, nil
	default:
		return nil, errors.New("unknown removal policy: " + name)
	}
}
