// Package datasets loads evaluation task suites. Suites are authored as
// YAML, or converted from question/answer Parquet datasets in the Hugging
// Face layout (GSM8K and friends).
package datasets

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/XiaoConstantine/evoagent-go/pkg/errors"
	"github.com/XiaoConstantine/evoagent-go/pkg/evaluation"
)

// suiteFile is the YAML shape of a task suite.
type suiteFile struct {
	Tasks []taskEntry `yaml:"tasks"`
}

type taskEntry struct {
	ID       string                 `yaml:"id"`
	Input    map[string]interface{} `yaml:"input"`
	Keywords []string               `yaml:"keywords"`
	// Timeout is a Go duration string, e.g. "30s". Empty uses the
	// evaluator's configured task timeout.
	Timeout string `yaml:"timeout"`
}

// Load reads a task suite, dispatching on format ("yaml" or "parquet"). An
// empty format falls back to the file extension.
func Load(path, format string) ([]evaluation.EvaluationTask, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".parquet":
			format = "parquet"
		default:
			format = "yaml"
		}
	}

	switch format {
	case "yaml":
		return LoadYAML(path)
	case "parquet":
		return LoadParquet(path, DefaultParquetOptions())
	default:
		return nil, errors.WithFields(
			errors.New(errors.InvalidInput, "unknown task suite format"),
			errors.Fields{"format": format})
	}
}

// LoadYAML reads a YAML task suite from a file.
func LoadYAML(path string) ([]evaluation.EvaluationTask, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ResourceNotFound, "read task suite "+path)
	}
	return ParseYAML(data)
}

// ParseYAML decodes a YAML task suite and validates every entry.
func ParseYAML(data []byte) ([]evaluation.EvaluationTask, error) {
	var suite suiteFile
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "parse task suite")
	}
	if len(suite.Tasks) == 0 {
		return nil, errors.New(errors.InvalidInput, "task suite is empty")
	}

	seen := make(map[string]bool, len(suite.Tasks))
	tasks := make([]evaluation.EvaluationTask, 0, len(suite.Tasks))
	for i, entry := range suite.Tasks {
		if entry.ID == "" {
			return nil, errors.WithFields(
				errors.New(errors.ValidationFailed, "task missing id"),
				errors.Fields{"index": i})
		}
		if seen[entry.ID] {
			return nil, errors.WithFields(
				errors.New(errors.ValidationFailed, "duplicate task id"),
				errors.Fields{"task_id": entry.ID})
		}
		seen[entry.ID] = true

		if len(entry.Input) == 0 {
			return nil, errors.WithFields(
				errors.New(errors.ValidationFailed, "task missing input"),
				errors.Fields{"task_id": entry.ID})
		}
		if len(entry.Keywords) == 0 {
			return nil, errors.WithFields(
				errors.New(errors.ValidationFailed, "task missing pass keywords"),
				errors.Fields{"task_id": entry.ID})
		}

		var timeout time.Duration
		if entry.Timeout != "" {
			parsed, err := time.ParseDuration(entry.Timeout)
			if err != nil || parsed <= 0 {
				return nil, errors.WithFields(
					errors.New(errors.ValidationFailed, "invalid task timeout"),
					errors.Fields{"task_id": entry.ID, "timeout": entry.Timeout})
			}
			timeout = parsed
		}

		tasks = append(tasks, evaluation.EvaluationTask{
			ID:       entry.ID,
			Input:    entry.Input,
			Keywords: entry.Keywords,
			Timeout:  timeout,
		})
	}

	return tasks, nil
}
