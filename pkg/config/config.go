// Package config loads and validates run configuration from YAML. A file
// only needs the keys it wants to change; everything else comes from
// Default. Configuration problems are fatal before generation zero, so Load
// returns coded errors instead of patching values up.
package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/XiaoConstantine/evoagent-go/pkg/core"
	"github.com/XiaoConstantine/evoagent-go/pkg/errors"
	"github.com/XiaoConstantine/evoagent-go/pkg/evaluation"
	"github.com/XiaoConstantine/evoagent-go/pkg/evolution"
	"github.com/XiaoConstantine/evoagent-go/pkg/logging"
	"github.com/XiaoConstantine/evoagent-go/pkg/novelty"
	"github.com/XiaoConstantine/evoagent-go/pkg/operators"
)

// Config is the complete run configuration.
type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Evolution   evolution.Config  `yaml:"evolution"`
	Islands     IslandsConfig     `yaml:"islands"`
	Distributed DistributedConfig `yaml:"distributed"`
	Evaluation  evaluation.Config `yaml:"evaluation"`
	Novelty     NoveltyConfig     `yaml:"novelty"`
	Hivemind    HivemindConfig    `yaml:"hivemind"`
	Operators   OperatorsConfig   `yaml:"operators"`
	Datasets    DatasetsConfig    `yaml:"datasets"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LLMConfig selects the model behind semantic operators, the quality judge,
// and knowledge extraction. An empty provider runs without a model; every
// model call site has a deterministic fallback.
type LLMConfig struct {
	Provider  string `yaml:"provider" validate:"omitempty,oneof=anthropic"`
	ModelID   string `yaml:"model_id"`
	APIKey    string `yaml:"api_key"`
	MaxTokens int    `yaml:"max_tokens" validate:"gte=0"`
}

// IslandsConfig switches the run to the island model. The engine section
// supplies the per-island settings.
type IslandsConfig struct {
	Enabled           bool `yaml:"enabled"`
	Count             int  `yaml:"count" validate:"min=1"`
	MigrationInterval int  `yaml:"migration_interval" validate:"min=1"`
	MigrationCount    int  `yaml:"migration_count" validate:"gte=0"`
}

// CoordinatorConfig combines the island section with the engine settings.
func (c IslandsConfig) CoordinatorConfig(engine evolution.Config) evolution.IslandConfig {
	return evolution.IslandConfig{
		Islands:           c.Count,
		MigrationInterval: c.MigrationInterval,
		MigrationCount:    c.MigrationCount,
		Engine:            engine,
	}
}

// DistributedConfig switches evaluation to remote workers.
type DistributedConfig struct {
	Enabled  bool                        `yaml:"enabled"`
	Dispatch evolution.DistributedConfig `yaml:"dispatch"`
}

// NoveltyConfig controls the behavior archive.
type NoveltyConfig struct {
	Enabled bool           `yaml:"enabled"`
	Archive novelty.Config `yaml:"archive"`
}

// HivemindConfig selects the knowledge store backing contribution scoring.
type HivemindConfig struct {
	Enabled bool   `yaml:"enabled"`
	Backend string `yaml:"backend" validate:"omitempty,oneof=memory sqlite"`
	// Path is the database file, sqlite backend only.
	Path     string `yaml:"path"`
	Capacity int    `yaml:"capacity" validate:"min=1"`
}

// OperatorsConfig names the genetic operators by their Name() strings and
// carries their tuning knobs.
type OperatorsConfig struct {
	Selector    string  `yaml:"selector" validate:"oneof=tournament roulette_wheel rank_based nsga2"`
	TournamentK int     `yaml:"tournament_k" validate:"min=2"`
	Crossover   string  `yaml:"crossover" validate:"oneof=neat single_point uniform semantic_crossover"`
	UniformRate float64 `yaml:"uniform_rate" validate:"gte=0,lte=1"`
	Mutator     string  `yaml:"mutator" validate:"oneof=standard adaptive semantic_mutation"`
	// Adaptive mutation bounds and the diversity level below which the rate
	// climbs toward AdaptiveMax.
	AdaptiveMin        float64 `yaml:"adaptive_min" validate:"gte=0,lte=1"`
	AdaptiveMax        float64 `yaml:"adaptive_max" validate:"gte=0,lte=1"`
	DiversityThreshold float64 `yaml:"diversity_threshold" validate:"gte=0,lte=1"`
}

// DatasetsConfig points at the evaluation task suite.
type DatasetsConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format" validate:"omitempty,oneof=yaml parquet"`
}

// LoggingConfig tunes the process logger.
type LoggingConfig struct {
	Severity string `yaml:"severity" validate:"omitempty,oneof=debug info warn error"`
	// File adds a file output next to the console one.
	File string `yaml:"file"`
}

// Default returns the configuration a file's keys override.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			ModelID:   string(core.ModelAnthropicSonnet),
			MaxTokens: 4096,
		},
		Evolution: evolution.DefaultConfig(),
		Islands: IslandsConfig{
			Count:             4,
			MigrationInterval: 5,
			MigrationCount:    2,
		},
		Distributed: DistributedConfig{
			Dispatch: evolution.DefaultDistributedConfig(),
		},
		Evaluation: evaluation.DefaultConfig(),
		Novelty: NoveltyConfig{
			Enabled: true,
			Archive: novelty.DefaultConfig(),
		},
		Hivemind: HivemindConfig{
			Enabled:  true,
			Backend:  "memory",
			Capacity: 512,
		},
		Operators: OperatorsConfig{
			Selector:           "tournament",
			TournamentK:        3,
			Crossover:          "neat",
			UniformRate:        0.5,
			Mutator:            "standard",
			AdaptiveMin:        0.1,
			AdaptiveMax:        0.8,
			DiversityThreshold: 0.25,
		},
		Datasets: DatasetsConfig{
			Format: "yaml",
		},
		Logging: LoggingConfig{
			Severity: "info",
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ResourceNotFound, "read config "+path)
	}
	return Parse(data)
}

// Parse unmarshals YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// BuildSelector maps the configured selector name to an instance.
func (c OperatorsConfig) BuildSelector() (operators.Selector, error) {
	switch c.Selector {
	case "tournament":
		return operators.Tournament{K: c.TournamentK}, nil
	case "roulette_wheel":
		return operators.RouletteWheel{}, nil
	case "rank_based":
		return operators.RankBased{}, nil
	case "nsga2":
		return operators.NSGA2{}, nil
	default:
		return nil, errors.WithFields(
			errors.New(errors.ValidationFailed, "unknown selector"),
			errors.Fields{"selector": c.Selector})
	}
}

// BuildCrossover maps the configured crossover name to an instance. The
// model is only used by semantic crossover and may be nil.
func (c OperatorsConfig) BuildCrossover(llm core.LLM) (operators.Crossover, error) {
	switch c.Crossover {
	case "neat":
		return operators.NEAT{}, nil
	case "single_point":
		return operators.SinglePoint{}, nil
	case "uniform":
		return operators.Uniform{Rate: c.UniformRate}, nil
	case "semantic_crossover":
		return operators.NewSemanticCrossover(llm), nil
	default:
		return nil, errors.WithFields(
			errors.New(errors.ValidationFailed, "unknown crossover"),
			errors.Fields{"crossover": c.Crossover})
	}
}

// BuildMutator maps the configured mutator name to an instance. rate is the
// engine's mutation rate; the model is only used by semantic mutation and
// may be nil.
func (c OperatorsConfig) BuildMutator(rate float64, llm core.LLM) (operators.Mutator, error) {
	switch c.Mutator {
	case "standard":
		return operators.StandardMutation{Rate: rate}, nil
	case "adaptive":
		return operators.NewAdaptiveMutation(rate, c.AdaptiveMin, c.AdaptiveMax, c.DiversityThreshold), nil
	case "semantic_mutation":
		return operators.NewSemanticMutation(llm, rate), nil
	default:
		return nil, errors.WithFields(
			errors.New(errors.ValidationFailed, "unknown mutator"),
			errors.Fields{"mutator": c.Mutator})
	}
}

// BuildLogger assembles the process logger from the logging section.
func (c LoggingConfig) BuildLogger() (*logging.Logger, error) {
	outputs := []logging.Output{logging.NewConsoleOutput(true)}
	if c.File != "" {
		fileOut, err := logging.NewFileOutput(c.File)
		if err != nil {
			return nil, errors.Wrap(err, errors.InvalidInput, "open log file "+c.File)
		}
		outputs = append(outputs, fileOut)
	}
	return logging.NewLogger(logging.Config{
		Severity: logging.ParseSeverity(strings.ToUpper(c.Severity)),
		Outputs:  outputs,
	}), nil
}
