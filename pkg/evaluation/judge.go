package evaluation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/XiaoConstantine/evoagent-go/pkg/core"
	"github.com/XiaoConstantine/evoagent-go/pkg/logging"
)

// QualityJudge rates a chromosome's task outputs. With a model it asks for
// one 0-10 judgment over the whole transcript; without one, or on any model
// failure, it scores deterministically from output shape.
type QualityJudge struct {
	llm core.LLM
}

// NewQualityJudge returns a judge backed by llm. A nil llm is allowed and
// scores heuristically.
func NewQualityJudge(llm core.LLM) *QualityJudge {
	return &QualityJudge{llm: llm}
}

// Score returns the quality metric in [0,1] for the given outcomes.
func (j *QualityJudge) Score(ctx context.Context, outcomes []taskOutcome) float64 {
	if j == nil || j.llm == nil {
		return heuristicQuality(outcomes)
	}

	resp, err := j.llm.Generate(ctx, judgePrompt(outcomes), core.WithTemperature(0))
	if err != nil {
		logging.GetLogger().Debug(ctx, "quality judge fell back to heuristic: %v", err)
		return heuristicQuality(outcomes)
	}

	score, ok := parseJudgeScore(resp.Content)
	if !ok {
		logging.GetLogger().Debug(ctx, "quality judge reply had no usable score: %q", resp.Content)
		return heuristicQuality(outcomes)
	}
	return score
}

func judgePrompt(outcomes []taskOutcome) string {
	var transcript strings.Builder
	for _, o := range outcomes {
		fmt.Fprintf(&transcript, "Task %s", o.task.ID)
		if o.result == nil {
			transcript.WriteString(" produced no output.\n")
			continue
		}
		verdict := "failed"
		if o.passed {
			verdict = "passed"
		}
		fmt.Fprintf(&transcript, " (%s):\n%s\n\n", verdict, truncate(o.result.Output, 400))
	}

	return fmt.Sprintf(`Judge the overall quality of these agent responses: correctness, clarity, and directness.

%s
Respond with only a number from 0 to 10.`, transcript.String())
}

// parseJudgeScore extracts the first number in the reply and maps the 0-10
// scale into [0,1].
func parseJudgeScore(reply string) (float64, bool) {
	numbers := strings.FieldsFunc(reply, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})
	for _, n := range numbers {
		score, err := strconv.ParseFloat(strings.Trim(n, "."), 64)
		if err != nil {
			continue
		}
		return clamp01(score / 10), true
	}
	return 0, false
}

// heuristicQuality mirrors the judge without a model: reasonable length,
// no error wording, and meeting the pass criteria each earn a share.
func heuristicQuality(outcomes []taskOutcome) float64 {
	if len(outcomes) == 0 {
		return 0
	}

	total := 0.0
	for _, o := range outcomes {
		if o.result == nil || o.result.Output == "" {
			continue
		}
		score := 0.0
		if n := len(o.result.Output); n > 10 && n < 4000 {
			score += 0.5
		}
		if !containsErrorKeywords(o.result.Output) {
			score += 0.3
		}
		if o.passed {
			score += 0.2
		}
		total += score
	}
	return total / float64(len(outcomes))
}

func containsErrorKeywords(text string) bool {
	errorKeywords := []string{"error", "failed", "unable", "cannot", "invalid", "undefined"}
	lower := strings.ToLower(text)
	for _, kw := range errorKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
