package evo

import "popgensim/internal/population"

// RecordNothing is the default sampler.
type RecordNothing struct{}

func (RecordNothing) Sample(*population.Population) error { return nil }

// SamplerFunc adapts a function to TemporalSampler.
type SamplerFunc func(pop *population.Population) error

func (f SamplerFunc) Sample(pop *population.Population) error { return f(pop) }

// MultiSampler calls each sampler in order and stops at the first error.
type MultiSampler []TemporalSampler

func (m MultiSampler) Sample(pop *population.Population) error {
	for _, s := range m {
		if err := s.Sample(pop); err != nil {
			return err
		}
	}
	return nil
}
