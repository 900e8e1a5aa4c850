// Package evaluation scores chromosomes: it materializes each one into an
// agent blueprint, runs the task suite under a concurrency bulkhead, and
// aggregates the six fitness metrics.
package evaluation

import (
	"strings"
	"time"

	"github.com/XiaoConstantine/evoagent-go/pkg/core"
)

// EvaluationTask is one scored exercise in the suite.
type EvaluationTask struct {
	ID    string
	Input map[string]interface{}

	// Keywords pass the task when every one appears in the output,
	// case-insensitively. Ignored when Validator is set.
	Keywords []string

	// Validator, when set, is the sole pass criterion applied to the output.
	Validator func(output string) bool

	// Timeout bounds one invocation. Zero falls back to the evaluator's
	// configured task timeout.
	Timeout time.Duration
}

// Passes reports whether an invocation result satisfies the task's pass
// criteria. A failed or missing result never passes.
func (t EvaluationTask) Passes(result *core.InvokeResult) bool {
	if result == nil || !result.Success {
		return false
	}
	if t.Validator != nil {
		return t.Validator(result.Output)
	}
	output := strings.ToLower(result.Output)
	for _, kw := range t.Keywords {
		if !strings.Contains(output, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}
