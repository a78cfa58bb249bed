package config

import (
	"errors"
	"fmt"

	"popgensim/internal/evo"
	"popgensim/internal/genetics"
	"popgensim/internal/regions"
)

var ErrInvalidConfig = errors.New("invalid config")

// Validate rejects settings the engine would refuse, before any population
// is built.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	switch c.Run.Regime {
	case RegimePlain, RegimeQTrait, RegimeMultiLocus:
	default:
		add("run.regime %q must be plain, qtrait or multilocus", c.Run.Regime)
	}
	if c.Run.Workers < 0 {
		add("run.workers must be >= 0")
	}
	if c.Run.RecordEvery < 0 {
		add("run.record_every must be >= 0")
	}
	if c.Population.Size <= 0 {
		add("population.size must be > 0")
	}
	if c.Population.Loci <= 0 {
		add("population.loci must be > 0")
	}
	if len(c.Schedule.Sizes) == 0 && c.Schedule.Generations <= 0 {
		add("schedule needs generations > 0 or explicit sizes")
	}
	for i, n := range c.Schedule.Sizes {
		if n <= 0 {
			add("schedule.sizes[%d] must be > 0", i)
		}
	}

	if c.Mutation.NeutralRate < 0 || c.Mutation.SelectedRate < 0 {
		add("mutation rates must be >= 0")
	}
	if c.Mutation.NeutralRate > 0 && len(c.Mutation.Neutral) == 0 {
		add("mutation.neutral_rate > 0 needs neutral regions")
	}
	if c.Mutation.SelectedRate > 0 && len(c.Mutation.Selected) == 0 {
		add("mutation.selected_rate > 0 needs selected regions")
	}
	for i, reg := range c.Mutation.Neutral {
		if err := reg.Validate(); err != nil {
			add("mutation.neutral[%d]: %v", i, err)
		}
	}
	for i, reg := range c.Mutation.Selected {
		if err := reg.Region.Validate(); err != nil {
			add("mutation.selected[%d]: %v", i, err)
		}
		if _, err := reg.DFE.Build(); err != nil {
			add("mutation.selected[%d].dfe: %v", i, err)
		}
	}

	if c.Recombination.Rate < 0 {
		add("recombination.rate must be >= 0")
	}
	if c.Recombination.Rate > 0 && len(c.Recombination.Regions) == 0 {
		add("recombination.rate > 0 needs regions")
	}
	for i, reg := range c.Recombination.Regions {
		if err := reg.Validate(); err != nil {
			add("recombination.regions[%d]: %v", i, err)
		}
	}
	if c.Population.Loci > 1 {
		if _, err := c.interlocus(); err != nil {
			add("recombination.interlocus: %v", err)
		}
	}

	if c.SelfingRate < 0 || c.SelfingRate > 1 {
		add("selfing_rate %v outside [0, 1]", c.SelfingRate)
	}
	if _, err := genetics.ResolveModel(c.modelSpec()); err != nil {
		add("genetic_value: %v", err)
	}
	if c.Run.Regime != RegimePlain {
		if !(c.Trait.VS > 0) {
			add("trait.vs must be > 0")
		}
		if c.Trait.NoiseSD < 0 {
			add("trait.noise_sd must be >= 0")
		}
	}
	if c.Run.Regime == RegimeMultiLocus {
		if _, err := aggregatorByName(c.Aggregator); err != nil {
			add("aggregator: %v", err)
		}
	}
	if _, err := evo.RemovalPolicyByName(c.RemovalPolicy()); err != nil {
		add("removal: %v", err)
	}
	switch c.Storage.Kind {
	case "", "memory", "sqlite", "badger":
	default:
		add("storage.kind %q must be memory, sqlite or badger", c.Storage.Kind)
	}
	if err := c.Logging.Validate(); err != nil {
		add("logging: %v", err)
	}
	return errors.Join(errs...)
}

func (c *Config) interlocus() (evo.InterlocusRecombination, error) {
	il := c.Recombination.Interlocus
	switch il.Policy {
	case "", "binomial":
		if il.Rate < 0 || il.Rate > 1 {
			return nil, fmt.Errorf("binomial crossover probability %v outside [0, 1]", il.Rate)
		}
		return regions.BinomialInterlocus{P: il.Rate}, nil
	case "poisson":
		if il.Rate < 0 {
			return nil, fmt.Errorf("poisson crossover mean %v must be >= 0", il.Rate)
		}
		return regions.PoissonInterlocus{Mean: il.Rate}, nil
	default:
		return nil, fmt.Errorf("unsupported inter-locus policy: %s", il.Policy)
	}
}

func aggregatorByName(name string) (genetics.Aggregator, error) {
	switch name {
	case "", "additive":
		return genetics.AggregateAdditive{}, nil
	case "multiplicative":
		return genetics.AggregateMultiplicative{}, nil
	default:
		return nil, fmt.Errorf("unsupported aggregator: %s", name)
	}
}
