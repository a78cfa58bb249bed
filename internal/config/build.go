package config

import (
	"fmt"

	"popgensim/internal/evo"
	"popgensim/internal/genetics"
	"popgensim/internal/regions"
)

func (c *Config) modelSpec() genetics.ModelSpec {
	mode := genetics.TraitMode
	if c.Run.Regime == RegimePlain {
		mode = genetics.FitnessMode
	}
	return genetics.ModelSpec{
		Name:    c.GeneticValue.Model,
		Scaling: c.GeneticValue.Scaling,
		Mode:    mode,
		Params:  c.GeneticValue.Params,
	}
}

// Params builds fresh engine collaborators for one run. Stateful models are
// never shared between two calls. The sampler is left for the caller.
func (c *Config) Params() (evo.Params, error) {
	loci := c.Population.Loci
	params := evo.Params{
		MutationRates:  make([]float64, loci),
		Mutations:      make([]evo.MutationModel, loci),
		Recombinations: make([]evo.RecombinationModel, loci),
		Interlocus:     make([]evo.InterlocusRecombination, 0, loci-1),
		SelfingRate:    c.SelfingRate,
	}

	for l := 0; l < loci; l++ {
		offset := float64(l)
		mutations, err := c.mutationRegions(offset)
		if err != nil {
			return evo.Params{}, fmt.Errorf("locus %d: %w", l, err)
		}
		params.Mutations[l] = mutations
		params.MutationRates[l] = mutations.Rate()

		if c.Recombination.Rate == 0 {
			params.Recombinations[l] = evo.NoRecombination{}
			continue
		}
		rec, err := regions.NewPoissonRecombination(c.Recombination.Rate, shiftAll(c.Recombination.Regions, offset))
		if err != nil {
			return evo.Params{}, fmt.Errorf("locus %d: %w", l, err)
		}
		params.Recombinations[l] = rec
	}
	for l := 1; l < loci; l++ {
		il, err := c.interlocus()
		if err != nil {
			return evo.Params{}, err
		}
		params.Interlocus = append(params.Interlocus, il)
	}

	removal, err := evo.RemovalPolicyByName(c.RemovalPolicy())
	if err != nil {
		return evo.Params{}, err
	}
	params.Removal = removal

	rules, err := c.rules()
	if err != nil {
		return evo.Params{}, err
	}
	params.Rules = rules
	return params, nil
}

func (c *Config) mutationRegions(offset float64) (*regions.MutationRegions, error) {
	selected := make([]regions.Sregion, len(c.Mutation.Selected))
	for i, reg := range c.Mutation.Selected {
		dfe, err := reg.DFE.Build()
		if err != nil {
			return nil, fmt.Errorf("selected region %d: %w", i, err)
		}
		selected[i] = regions.Sregion{Region: reg.Region.Shift(offset), DFE: dfe, H: reg.H}
	}
	return regions.NewMutationRegions(
		c.Mutation.NeutralRate,
		c.Mutation.SelectedRate,
		shiftAll(c.Mutation.Neutral, offset),
		selected,
	)
}

func (c *Config) rules() (evo.Rules, error) {
	workers := c.Run.Workers
	switch c.Run.Regime {
	case RegimePlain:
		model, err := genetics.ResolveModel(c.modelSpec())
		if err != nil {
			return nil, err
		}
		return &evo.PlainRules{Model: model, Workers: workers}, nil
	case RegimeQTrait:
		model, err := genetics.ResolveModel(c.modelSpec())
		if err != nil {
			return nil, err
		}
		return &evo.QTraitRules{Model: model, Trait: c.trait(), Noise: c.noise(), Workers: workers}, nil
	case RegimeMultiLocus:
		models := make([]genetics.GeneticValue, c.Population.Loci)
		for l := range models {
			model, err := genetics.ResolveModel(c.modelSpec())
			if err != nil {
				return nil, err
			}
			models[l] = model
		}
		agg, err := aggregatorByName(c.Aggregator)
		if err != nil {
			return nil, err
		}
		return &evo.MultiLocusRules{
			Models:     models,
			Aggregator: agg,
			Trait:      c.trait(),
			Noise:      c.noise(),
			Workers:    workers,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown regime %q", ErrInvalidConfig, c.Run.Regime)
	}
}

func (c *Config) trait() genetics.TraitToFitness {
	if len(c.Trait.Shifts) == 0 {
		return genetics.GSS{VS: c.Trait.VS, Optimum: c.Trait.Optimum}
	}
	steps := make([]genetics.OptimumStep, len(c.Trait.Shifts))
	for i, s := range c.Trait.Shifts {
		steps[i] = genetics.OptimumStep{Generation: s.Generation, Optimum: s.Optimum}
	}
	return genetics.NewGSSmo(c.Trait.VS, c.Trait.Optimum, steps)
}

func (c *Config) noise() genetics.Noise {
	if c.Trait.NoiseSD == 0 && c.Trait.NoiseMean == 0 {
		return genetics.NoNoise{}
	}
	return genetics.GaussianNoise{Mean: c.Trait.NoiseMean, SD: c.Trait.NoiseSD}
}

func shiftAll(rs []regions.Region, offset float64) []regions.Region {
	out := make([]regions.Region, len(rs))
	for i, r := range rs {
		out[i] = r.Shift(offset)
	}
	return out
}
