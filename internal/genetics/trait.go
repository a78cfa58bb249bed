package genetics

import (
	"math"
	"sort"

	"popgensim/internal/population"
	"popgensim/internal/rng"
)

// TraitToFitness maps a trait value (g + e) to fitness.
type TraitToFitness interface {
	Fitness(trait float64) float64
}

// GenerationUpdater is implemented by trait maps and noise policies whose
// parameters change over time. The driver calls UpdateGeneration once per
// generation, after the generation's bookkeeping.
type GenerationUpdater interface {
	UpdateGeneration(generation uint32)
}

// GSS is Gaussian stabilizing selection around a fixed optimum:
// w = exp(-(P-O)^2 / (2 VS)).
type GSS struct {
	VS      float64
	Optimum float64
}

func (g GSS) Fitness(trait float64) float64 {
	d := trait - g.Optimum
	return math.Exp(-d * d / (2 * g.VS))
}

// OptimumStep moves the optimum once the population reaches Generation.
type OptimumStep struct {
	Generation uint32
	Optimum    float64
}

// GSSmo is Gaussian stabilizing selection with a moving optimum.
type GSSmo struct {
	VS      float64
	Optimum float64
	Steps   []OptimumStep

	next int
}

func NewGSSmo(vs, optimum float64, steps []OptimumStep) *GSSmo {
	ordered := append([]OptimumStep(nil), steps...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Generation < ordered[j].Generation })
	return &GSSmo{VS: vs, Optimum: optimum, Steps: ordered}
}

func (g *GSSmo) Fitness(trait float64) float64 {
	return GSS{VS: g.VS, Optimum: g.Optimum}.Fitness(trait)
}

func (g *GSSmo) UpdateGeneration(generation uint32) {
	for g.next < len(g.Steps) && generation >= g.Steps[g.next].Generation {
		g.Optimum = g.Steps[g.next].Optimum
		g.next++
	}
}

// Noise draws the environmental deviation e of an offspring.
type Noise interface {
	Draw(r *rng.Stream, g float64, parent1, parent2 *population.DiploidMetadata) float64
}

// NoNoise returns 0 and consumes no randomness.
type NoNoise struct{}

func (NoNoise) Draw(*rng.Stream, float64, *population.DiploidMetadata, *population.DiploidMetadata) float64 {
	return 0
}

type GaussianNoise struct {
	Mean float64
	SD   float64
}

func (n GaussianNoise) Draw(r *rng.Stream, _ float64, _, _ *population.DiploidMetadata) float64 {
	return r.Normal(n.Mean, n.SD)
}
