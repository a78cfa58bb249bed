package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"popgensim/internal/evo"
	"popgensim/internal/genetics"
	"popgensim/internal/regions"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.Equal(t, RegimePlain, cfg.Run.Regime)
	require.Equal(t, 1000, cfg.Population.Size)
	require.Len(t, cfg.ScheduleSizes(), 1000)
	require.Equal(t, "all", cfg.RemovalPolicy())
}

func TestParseOverridesOnlyPresentFields(t *testing.T) {
	cfg, err := Parse([]byte(`
run:
  seed: 7
  regime: qtrait
population:
  size: 50
schedule:
  sizes: [50, 60, 70]
trait:
  vs: 2.0
  shifts:
    - generation: 10
      optimum: 0.5
`))
	require.NoError(t, err)
	require.Equal(t, uint64(7), cfg.Run.Seed)
	require.Equal(t, 1, cfg.Run.Workers)
	require.Equal(t, []int{50, 60, 70}, cfg.ScheduleSizes())
	require.Equal(t, "neutral", cfg.RemovalPolicy())
	require.Equal(t, "multiplicative", cfg.GeneticValue.Model)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("population:\n  size: 12\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 12, cfg.Population.Size)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Run.Seed = 99
	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func TestValidateCollectsErrors(t *testing.T) {
	_, err := Parse([]byte(`
run:
  regime: other
population:
  size: 0
selfing_rate: 1.5
mutation:
  neutral_rate: -1
storage:
  kind: postgres
`))
	require.ErrorIs(t, err, ErrInvalidConfig)
	for _, want := range []string{"run.regime", "population.size", "selfing_rate", "mutation rates", "storage.kind"} {
		require.ErrorContains(t, err, want)
	}
}

func TestValidateRejectsBadRegionsAndModels(t *testing.T) {
	_, err := Parse([]byte(`
mutation:
  selected_rate: 0.01
  selected:
    - begin: 0.5
      end: 0.2
      weight: 1
      dfe: {type: gaussian, sd: 0}
`))
	require.ErrorContains(t, err, "mutation.selected[0]")
	require.ErrorContains(t, err, "mutation.selected[0].dfe")

	_, err = Parse([]byte("genetic_value:\n  model: nope\n"))
	require.ErrorContains(t, err, genetics.ErrModelNotFound.Error())

	_, err = Parse([]byte("run:\n  regime: qtrait\ngenetic_value:\n  model: snowdrift\n"))
	require.ErrorContains(t, err, "genetic_value")
}

func TestPlainParams(t *testing.T) {
	cfg := Default()
	params, err := cfg.Params()
	require.NoError(t, err)
	require.NoError(t, params.Validate(1))
	require.IsType(t, &evo.PlainRules{}, params.Rules)
	require.Equal(t, "all", params.Removal.Name())
	require.InDelta(t, 0.001, params.MutationRates[0], 1e-15)
	require.IsType(t, &regions.PoissonRecombination{}, params.Recombinations[0])
	require.Empty(t, params.Interlocus)
}

func TestMultiLocusParamsShiftRegions(t *testing.T) {
	cfg, err := Parse([]byte(`
run:
  regime: multilocus
population:
  size: 10
  loci: 3
mutation:
  neutral_rate: 0.0
  selected_rate: 0.01
  neutral: []
  selected:
    - {begin: 0.0, end: 1.0, weight: 1.0, h: 1.0, dfe: {type: gaussian, sd: 0.1}}
recombination:
  rate: 0.0
  interlocus: {policy: poisson, rate: 0.3}
aggregator: multiplicative
`))
	require.NoError(t, err)

	params, err := cfg.Params()
	require.NoError(t, err)
	require.NoError(t, params.Validate(3))
	require.Len(t, params.Interlocus, 2)
	require.Equal(t, regions.PoissonInterlocus{Mean: 0.3}, params.Interlocus[0])
	require.Equal(t, evo.NoRecombination{}, params.Recombinations[2])

	for l, m := range params.Mutations {
		mr := m.(*regions.MutationRegions)
		require.Equal(t, float64(l), mr.Selected[0].Begin)
		require.Equal(t, float64(l+1), mr.Selected[0].End)
	}

	rules := params.Rules.(*evo.MultiLocusRules)
	require.Len(t, rules.Models, 3)
	require.Equal(t, genetics.AggregateMultiplicative{}, rules.Aggregator)
	require.Equal(t, genetics.GSS{VS: 1, Optimum: 0}, rules.Trait)
	require.Equal(t, genetics.NoNoise{}, rules.Noise)
}

func TestQTraitParamsUseMovingOptimumAndNoise(t *testing.T) {
	cfg, err := Parse([]byte(`
run:
  regime: qtrait
trait:
  vs: 1.0
  noise_sd: 0.1
  shifts:
    - {generation: 5, optimum: 1.0}
`))
	require.NoError(t, err)

	params, err := cfg.Params()
	require.NoError(t, err)
	rules := params.Rules.(*evo.QTraitRules)
	require.Equal(t, genetics.GaussianNoise{SD: 0.1}, rules.Noise)
	mo, ok := rules.Trait.(*genetics.GSSmo)
	require.True(t, ok)
	mo.UpdateGeneration(5)
	require.Equal(t, 1.0, mo.Optimum)
}
