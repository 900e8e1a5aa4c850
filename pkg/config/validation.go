package config

import (
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/XiaoConstantine/evoagent-go/pkg/errors"
	"github.com/XiaoConstantine/evoagent-go/pkg/evolution"
	"github.com/XiaoConstantine/evoagent-go/pkg/genome"
	"github.com/XiaoConstantine/evoagent-go/pkg/speciation"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterStructValidation(validateWeights, genome.Weights{})
		validate.RegisterStructValidation(validateEngine, evolution.Config{})
		validate.RegisterStructValidation(validateSpeciation, speciation.Config{})
		validate.RegisterStructValidation(validateSections, Config{})
	})
	return validate
}

// Validate applies the struct tags plus the cross-field rules and reports
// every violation in one coded error.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New(errors.InvalidInput, "config is nil")
	}
	if err := structValidator().Struct(c); err != nil {
		return codedValidationError(err)
	}
	return nil
}

func codedValidationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(err, errors.ValidationFailed, "config validation")
	}
	fields := errors.Fields{}
	for _, fe := range verrs {
		fields[fe.Namespace()] = fe.Tag()
	}
	return errors.WithFields(
		errors.New(errors.ValidationFailed, "config validation failed"),
		fields)
}

// validateWeights requires at least one positive fitness weight; the
// per-field tags already forbid negatives.
func validateWeights(sl validator.StructLevel) {
	w := sl.Current().Interface().(genome.Weights)
	sum := w.Completion + w.Quality + w.Efficiency + w.Novelty + w.Contribution + w.Consistency
	if sum <= 0 {
		sl.ReportError(w.Completion, "Completion", "completion", "weights_sum_positive", "")
	}
}

// validateEngine holds the cross-field engine rules the tags cannot express.
func validateEngine(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(evolution.Config)
	if cfg.EliteCount >= cfg.PopulationSize {
		sl.ReportError(cfg.EliteCount, "EliteCount", "elite_count", "lt_population_size", "")
	}
}

func validateSpeciation(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(speciation.Config)
	if cfg.MinThreshold > cfg.MaxThreshold {
		sl.ReportError(cfg.MinThreshold, "MinThreshold", "min_threshold", "lte_max_threshold", "")
	}
}

// validateSections holds the rules that reach across top-level sections.
func validateSections(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)
	if cfg.Islands.Enabled && cfg.Islands.MigrationCount >= cfg.Evolution.PopulationSize {
		sl.ReportError(cfg.Islands.MigrationCount, "MigrationCount", "migration_count", "lt_population_size", "")
	}
	if cfg.Hivemind.Enabled && cfg.Hivemind.Backend == "sqlite" && cfg.Hivemind.Path == "" {
		sl.ReportError(cfg.Hivemind.Path, "Path", "path", "required_with_sqlite", "")
	}
}
