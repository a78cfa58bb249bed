package rng

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// streamIncrement decorrelates the two PCG words derived from one seed.
const streamIncrement = 0x9e3779b97f4a7c15

// Stream is the single random-number stream owned by a simulation run.
// Every variate drawn by the engine, the mutation and recombination models
// and the noise policies comes from the same underlying PCG source, so a
// fixed seed and a fixed call sequence reproduce a run exactly.
//
// A Stream is not safe for concurrent use.
type Stream struct {
	seed uint64
	src  *rand.PCG
	r    *rand.Rand
}

func New(seed uint64) *Stream {
	src := rand.NewPCG(seed, seed^streamIncrement)
	return &Stream{seed: seed, src: src, r: rand.New(src)}
}

func (s *Stream) Seed() uint64 {
	return s.seed
}

// Source exposes the underlying source for gonum distributions.
func (s *Stream) Source() rand.Source {
	return s.src
}

// Uniform returns a variate in [0, 1).
func (s *Stream) Uniform() float64 {
	return s.r.Float64()
}

func (s *Stream) UniformRange(lo, hi float64) float64 {
	return distuv.Uniform{Min: lo, Max: hi, Src: s.src}.Rand()
}

// Poisson returns zero without consuming the stream when mean <= 0.
func (s *Stream) Poisson(mean float64) int {
	if mean <= 0 {
		return 0
	}
	return int(distuv.Poisson{Lambda: mean, Src: s.src}.Rand())
}

func (s *Stream) Normal(mu, sigma float64) float64 {
	if sigma <= 0 {
		return mu
	}
	return distuv.Normal{Mu: mu, Sigma: sigma, Src: s.src}.Rand()
}

// Exponential draws with the given (positive) mean.
func (s *Stream) Exponential(mean float64) float64 {
	return distuv.Exponential{Rate: 1 / mean, Src: s.src}.Rand()
}

func (s *Stream) Gamma(shape, scale float64) float64 {
	return distuv.Gamma{Alpha: shape, Beta: 1 / scale, Src: s.src}.Rand()
}

// Categorical builds a weighted index sampler that draws from this stream.
// Weights must be non-negative with a positive sum.
func (s *Stream) Categorical(weights []float64) distuv.Categorical {
	return distuv.NewCategorical(weights, s.src)
}
