package evaluation

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/evoagent-go/internal/testutil"
	"github.com/XiaoConstantine/evoagent-go/pkg/core"
)

func outcome(id, output string, passed bool) taskOutcome {
	return taskOutcome{
		task:   EvaluationTask{ID: id},
		result: &core.InvokeResult{Output: output, Success: passed},
		passed: passed,
	}
}

func TestParseJudgeScore(t *testing.T) {
	cases := []struct {
		reply string
		want  float64
		ok    bool
	}{
		{"8", 0.8, true},
		{"Score: 7.5 / 10", 0.75, true},
		{"I would rate this run a 9.", 0.9, true},
		{"15", 1.0, true},
		{"no verdict here", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseJudgeScore(tc.reply)
		assert.Equal(t, tc.ok, ok, "reply %q", tc.reply)
		if tc.ok {
			assert.InDelta(t, tc.want, got, 1e-9, "reply %q", tc.reply)
		}
	}
}

func TestQualityJudgeUsesModelVerdict(t *testing.T) {
	llm := &testutil.ScriptedLLM{Reply: "8"}
	judge := NewQualityJudge(llm)

	outcomes := []taskOutcome{outcome("t1", "The computed value is 42.", true)}
	score := judge.Score(context.Background(), outcomes)

	assert.InDelta(t, 0.8, score, 1e-9)
	assert.Equal(t, int32(1), llm.Calls.Load())
	assert.Contains(t, llm.LastPrompt, "t1")
	assert.Contains(t, llm.LastPrompt, "0 to 10")
}

func TestQualityJudgeFallsBackOnModelError(t *testing.T) {
	llm := &testutil.ScriptedLLM{Err: fmt.Errorf("rate limited")}
	judge := NewQualityJudge(llm)

	outcomes := []taskOutcome{outcome("t1", "The computed value is 42.", true)}
	score := judge.Score(context.Background(), outcomes)

	assert.InDelta(t, heuristicQuality(outcomes), score, 1e-9)
}

func TestQualityJudgeFallsBackOnUnparseableReply(t *testing.T) {
	llm := &testutil.ScriptedLLM{Reply: "excellent work overall"}
	judge := NewQualityJudge(llm)

	outcomes := []taskOutcome{outcome("t1", "The computed value is 42.", true)}
	score := judge.Score(context.Background(), outcomes)

	assert.InDelta(t, heuristicQuality(outcomes), score, 1e-9)
}

func TestQualityJudgeNilModelIsHeuristic(t *testing.T) {
	var judge *QualityJudge

	outcomes := []taskOutcome{outcome("t1", "The computed value is 42.", true)}
	require.InDelta(t, heuristicQuality(outcomes), judge.Score(context.Background(), outcomes), 1e-9)
}

func TestHeuristicQualityGradesOutputs(t *testing.T) {
	clean := outcome("t1", "The computed value is 42.", true)
	assert.InDelta(t, 1.0, heuristicQuality([]taskOutcome{clean}), 1e-9)

	// Substantial length but an error keyword and no pass.
	noisy := outcome("t2", "Error: the tool failed", false)
	assert.InDelta(t, 0.5, heuristicQuality([]taskOutcome{noisy}), 1e-9)

	empty := outcome("t3", "", false)
	assert.InDelta(t, 0.0, heuristicQuality([]taskOutcome{empty}), 1e-9)

	missing := taskOutcome{task: EvaluationTask{ID: "t4"}, err: fmt.Errorf("boom")}
	assert.InDelta(t, 0.0, heuristicQuality([]taskOutcome{missing}), 1e-9)

	assert.InDelta(t, 0.5, heuristicQuality([]taskOutcome{clean, empty}), 1e-9)
}
