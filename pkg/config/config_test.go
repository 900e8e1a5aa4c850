package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/evoagent-go/pkg/errors"
	"github.com/XiaoConstantine/evoagent-go/pkg/genome"
	"github.com/XiaoConstantine/evoagent-go/pkg/operators"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaultsOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	doc := `
evolution:
  population_size: 24
  max_generations: 5
  seed: 7
llm:
  provider: anthropic
  api_key: test-key
hivemind:
  backend: sqlite
  path: /tmp/hive.db
logging:
  severity: debug
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 24, cfg.Evolution.PopulationSize)
	assert.Equal(t, 5, cfg.Evolution.MaxGenerations)
	assert.Equal(t, int64(7), cfg.Evolution.Seed)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "sqlite", cfg.Hivemind.Backend)
	assert.Equal(t, "debug", cfg.Logging.Severity)

	// Untouched keys keep their defaults.
	assert.InDelta(t, 0.7, cfg.Evolution.CrossoverRate, 1e-12)
	assert.Equal(t, 2, cfg.Evolution.EliteCount)
	assert.Equal(t, "tournament", cfg.Operators.Selector)
	assert.Equal(t, 512, cfg.Hivemind.Capacity)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.ResourceNotFound, errors.CodeOf(err))
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("evolution: [not, a, mapping"))
	require.Error(t, err)
	assert.Equal(t, errors.InvalidInput, errors.CodeOf(err))
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"population too small", func(c *Config) { c.Evolution.PopulationSize = 1 }},
		{"elite count not below population", func(c *Config) { c.Evolution.EliteCount = c.Evolution.PopulationSize }},
		{"negative weight", func(c *Config) { c.Evaluation.Weights.Novelty = -0.1 }},
		{"all-zero weights", func(c *Config) { c.Evaluation.Weights = genome.Weights{} }},
		{"migration count not below population", func(c *Config) {
			c.Islands.Enabled = true
			c.Islands.MigrationCount = c.Evolution.PopulationSize
		}},
		{"sqlite without a path", func(c *Config) {
			c.Hivemind.Backend = "sqlite"
			c.Hivemind.Path = ""
		}},
		{"speciation thresholds inverted", func(c *Config) {
			c.Evolution.Speciation.MinThreshold = 3.0
			c.Evolution.Speciation.MaxThreshold = 1.0
		}},
		{"unknown selector", func(c *Config) { c.Operators.Selector = "lottery" }},
		{"unknown severity", func(c *Config) { c.Logging.Severity = "loud" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, errors.ValidationFailed, errors.CodeOf(err))
		})
	}
}

func TestBuildSelector(t *testing.T) {
	ops := Default().Operators

	sel, err := ops.BuildSelector()
	require.NoError(t, err)
	tournament, ok := sel.(operators.Tournament)
	require.True(t, ok)
	assert.Equal(t, 3, tournament.K)

	ops.Selector = "nsga2"
	sel, err = ops.BuildSelector()
	require.NoError(t, err)
	assert.Equal(t, "nsga2", sel.Name())

	ops.Selector = "lottery"
	_, err = ops.BuildSelector()
	require.Error(t, err)
	assert.Equal(t, errors.ValidationFailed, errors.CodeOf(err))
}

func TestBuildCrossover(t *testing.T) {
	ops := Default().Operators

	cross, err := ops.BuildCrossover(nil)
	require.NoError(t, err)
	assert.Equal(t, "neat", cross.Name())

	ops.Crossover = "uniform"
	ops.UniformRate = 0.25
	cross, err = ops.BuildCrossover(nil)
	require.NoError(t, err)
	uniform, ok := cross.(operators.Uniform)
	require.True(t, ok)
	assert.InDelta(t, 0.25, uniform.Rate, 1e-12)

	ops.Crossover = "semantic_crossover"
	cross, err = ops.BuildCrossover(nil)
	require.NoError(t, err)
	assert.Equal(t, "semantic_crossover", cross.Name())
}

func TestBuildMutator(t *testing.T) {
	ops := Default().Operators

	mut, err := ops.BuildMutator(0.3, nil)
	require.NoError(t, err)
	standard, ok := mut.(operators.StandardMutation)
	require.True(t, ok)
	assert.InDelta(t, 0.3, standard.Rate, 1e-12)

	ops.Mutator = "adaptive"
	mut, err = ops.BuildMutator(0.3, nil)
	require.NoError(t, err)
	assert.Equal(t, "adaptive", mut.Name())

	ops.Mutator = "semantic_mutation"
	mut, err = ops.BuildMutator(0.3, nil)
	require.NoError(t, err)
	assert.Equal(t, "semantic_mutation", mut.Name())
}

func TestBuildLogger(t *testing.T) {
	logCfg := LoggingConfig{Severity: "warn"}
	logger, err := logCfg.BuildLogger()
	require.NoError(t, err)
	require.NotNil(t, logger)

	logCfg.File = filepath.Join(t.TempDir(), "run.log")
	logger, err = logCfg.BuildLogger()
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestCoordinatorConfigCarriesEngineSettings(t *testing.T) {
	cfg := Default()
	cfg.Islands.Count = 3

	islandCfg := cfg.Islands.CoordinatorConfig(cfg.Evolution)
	assert.Equal(t, 3, islandCfg.Islands)
	assert.Equal(t, cfg.Evolution.PopulationSize, islandCfg.Engine.PopulationSize)
	assert.Equal(t, 5, islandCfg.MigrationInterval)
}
