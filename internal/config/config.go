// Package config loads simulation settings from YAML on top of embedded
// defaults.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"popgensim/internal/logging"
	"popgensim/internal/regions"
)

//go:embed defaults.yaml
var defaultsYAML []byte

const (
	RegimePlain      = "plain"
	RegimeQTrait     = "qtrait"
	RegimeMultiLocus = "multilocus"
)

type Config struct {
	Run           RunConfig           `yaml:"run" json:"run"`
	Population    PopulationConfig    `yaml:"population" json:"population"`
	Schedule      ScheduleConfig      `yaml:"schedule" json:"schedule"`
	Mutation      MutationConfig      `yaml:"mutation" json:"mutation"`
	Recombination RecombinationConfig `yaml:"recombination" json:"recombination"`
	SelfingRate   float64             `yaml:"selfing_rate" json:"selfing_rate"`
	GeneticValue  GeneticValueConfig  `yaml:"genetic_value" json:"genetic_value"`
	Trait         TraitConfig         `yaml:"trait" json:"trait"`
	Aggregator    string              `yaml:"aggregator" json:"aggregator"`
	Removal       string              `yaml:"removal" json:"removal"`
	Storage       StorageConfig       `yaml:"storage" json:"storage"`
	Logging       logging.Config      `yaml:"logging" json:"logging"`
	ArtifactsDir  string              `yaml:"artifacts_dir" json:"artifacts_dir"`
}

type RunConfig struct {
	Seed            uint64 `yaml:"seed" json:"seed"`
	Regime          string `yaml:"regime" json:"regime"`
	Workers         int    `yaml:"workers" json:"workers"`
	CheckInvariants bool   `yaml:"check_invariants" json:"check_invariants"`
	RecordEvery     int    `yaml:"record_every" json:"record_every"`
}

type PopulationConfig struct {
	Size int `yaml:"size" json:"size"`
	Loci int `yaml:"loci" json:"loci"`
}

// ScheduleConfig is either a constant-size run of Generations generations
// or an explicit list of per-generation sizes. Sizes wins when both are set.
type ScheduleConfig struct {
	Generations int   `yaml:"generations" json:"generations"`
	Sizes       []int `yaml:"sizes" json:"sizes,omitempty"`
}

// MutationConfig describes one locus on [0, 1). Locus l of a multi-locus
// run uses the same regions shifted to [l, l+1).
type MutationConfig struct {
	NeutralRate  float64          `yaml:"neutral_rate" json:"neutral_rate"`
	SelectedRate float64          `yaml:"selected_rate" json:"selected_rate"`
	Neutral      []regions.Region `yaml:"neutral" json:"neutral"`
	Selected     []SelectedRegion `yaml:"selected" json:"selected"`
}

type SelectedRegion struct {
	regions.Region `yaml:",inline"`
	DFE            regions.DFESpec `yaml:"dfe" json:"dfe"`
	H              float64         `yaml:"h" json:"h"`
}

type RecombinationConfig struct {
	Rate       float64          `yaml:"rate" json:"rate"`
	Regions    []regions.Region `yaml:"regions" json:"regions"`
	Interlocus InterlocusConfig `yaml:"interlocus" json:"interlocus"`
}

// InterlocusConfig picks the crossover policy between adjacent loci. Rate is
// the crossover probability for binomial and the mean for poisson.
type InterlocusConfig struct {
	Policy string  `yaml:"policy" json:"policy"`
	Rate   float64 `yaml:"rate" json:"rate"`
}

type GeneticValueConfig struct {
	Model   string             `yaml:"model" json:"model"`
	Scaling float64            `yaml:"scaling" json:"scaling"`
	Params  map[string]float64 `yaml:"params,omitempty" json:"params,omitempty"`
}

type TraitConfig struct {
	Optimum   float64        `yaml:"optimum" json:"optimum"`
	VS        float64        `yaml:"vs" json:"vs"`
	NoiseMean float64        `yaml:"noise_mean" json:"noise_mean"`
	NoiseSD   float64        `yaml:"noise_sd" json:"noise_sd"`
	Shifts    []OptimumShift `yaml:"shifts" json:"shifts,omitempty"`
}

type OptimumShift struct {
	Generation uint32  `yaml:"generation" json:"generation"`
	Optimum    float64 `yaml:"optimum" json:"optimum"`
}

type StorageConfig struct {
	Kind string `yaml:"kind" json:"kind"`
	Path string `yaml:"path" json:"path"`
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := Parse(nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load reads path on top of the embedded defaults. An empty path yields the
// defaults alone.
func Load(path string) (*Config, error) {
	if path == "" {
		return Parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse unmarshals data over the embedded defaults and validates the
// result. Only fields present in data are overwritten.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// ScheduleSizes expands the schedule section into one size per generation.
func (c *Config) ScheduleSizes() []int {
	if len(c.Schedule.Sizes) > 0 {
		return append([]int(nil), c.Schedule.Sizes...)
	}
	sizes := make([]int, c.Schedule.Generations)
	for i := range sizes {
		sizes[i] = c.Population.Size
	}
	return sizes
}

// RemovalPolicy resolves the empty removal setting to the regime default.
func (c *Config) RemovalPolicy() string {
	if c.Removal != "" {
		return c.Removal
	}
	if c.Run.Regime == RegimePlain {
		return "all"
	}
	return "neutral"
}
