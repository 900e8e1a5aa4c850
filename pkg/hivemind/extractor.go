package hivemind

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/XiaoConstantine/evoagent-go/pkg/core"
	"github.com/XiaoConstantine/evoagent-go/pkg/genome"
	"github.com/XiaoConstantine/evoagent-go/pkg/logging"
)

// Extractor derives zero or more knowledge items from an evaluated
// chromosome and its invoke results.
type Extractor interface {
	Extract(ctx context.Context, chrom *genome.Chromosome, results []*core.InvokeResult) ([]KnowledgeItem, error)
}

// maxExtractedItems caps how many learnings one evaluation contributes.
const maxExtractedItems = 3

// HeuristicExtractor summarizes the configuration and its task outcomes
// without any model call. It is the fallback behind LLMExtractor and the
// extractor of choice for offline runs.
type HeuristicExtractor struct{}

// Extract produces a configuration learning when any task passed, plus a
// tool-usage learning when the traces show tool calls. Failed configurations
// contribute nothing.
func (HeuristicExtractor) Extract(ctx context.Context, chrom *genome.Chromosome, results []*core.InvokeResult) ([]KnowledgeItem, error) {
	successes, total := outcomes(results)
	if total == 0 || successes == 0 {
		return nil, nil
	}

	bp := chrom.Blueprint()
	tags := TagsFor(chrom)

	summary := fmt.Sprintf("strategy %s on model %s passed %d/%d tasks", bp.Strategy, bp.Model, successes, total)
	if len(bp.Tools) > 0 {
		summary += " with tools " + strings.Join(bp.Tools, ", ")
	}
	items := []KnowledgeItem{{
		SourceChromosomeID: chrom.ID,
		Generation:         chrom.Generation,
		Content:            summary,
		Tags:               tags,
	}}

	if usage := toolUsage(results); usage != "" {
		items = append(items, KnowledgeItem{
			SourceChromosomeID: chrom.ID,
			Generation:         chrom.Generation,
			Content:            "tool usage across tasks: " + usage,
			Tags:               tags,
		})
	}
	return items, nil
}

// LLMExtractor asks a model to phrase transferable learnings, falling back
// to HeuristicExtractor whenever the model is absent, errors, or replies
// with nothing usable.
type LLMExtractor struct {
	llm      core.LLM
	fallback HeuristicExtractor
}

// NewLLMExtractor returns an extractor backed by llm. A nil llm is allowed
// and behaves exactly like HeuristicExtractor.
func NewLLMExtractor(llm core.LLM) *LLMExtractor {
	return &LLMExtractor{llm: llm}
}

func (e *LLMExtractor) Extract(ctx context.Context, chrom *genome.Chromosome, results []*core.InvokeResult) ([]KnowledgeItem, error) {
	if e.llm == nil {
		return e.fallback.Extract(ctx, chrom, results)
	}

	successes, total := outcomes(results)
	if total == 0 {
		return nil, nil
	}

	prompt := fmt.Sprintf(`Summarize what this agent configuration teaches about solving its task suite.

Configuration:
%s
Outcome: %d of %d tasks passed.

List up to %d short, standalone learnings that other agent designs could reuse.
Write one plain sentence per line with no numbering.`,
		queryFor(chrom).Content, successes, total, maxExtractedItems)

	resp, err := e.llm.Generate(ctx, prompt, core.WithTemperature(0.3))
	if err != nil {
		logging.GetLogger().Debug(ctx, "knowledge extraction fell back to heuristic: %v", err)
		return e.fallback.Extract(ctx, chrom, results)
	}

	lines := substantialLines(resp.Content, maxExtractedItems)
	if len(lines) == 0 {
		logging.GetLogger().Debug(ctx, "knowledge extraction reply had no usable lines")
		return e.fallback.Extract(ctx, chrom, results)
	}

	tags := TagsFor(chrom)
	items := make([]KnowledgeItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, KnowledgeItem{
			SourceChromosomeID: chrom.ID,
			Generation:         chrom.Generation,
			Content:            line,
			Tags:               tags,
		})
	}
	return items, nil
}

func outcomes(results []*core.InvokeResult) (successes, total int) {
	for _, r := range results {
		total++
		if r != nil && r.Success {
			successes++
		}
	}
	return successes, total
}

// toolUsage renders per-tool call counts like "calculator x2, web_search x5".
func toolUsage(results []*core.InvokeResult) string {
	counts := make(map[string]int)
	for _, r := range results {
		if r == nil || r.Trace == nil {
			continue
		}
		for _, call := range r.Trace.ToolCalls {
			counts[call]++
		}
	}
	if len(counts) == 0 {
		return ""
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s x%d", name, counts[name])
	}
	return strings.Join(parts, ", ")
}

// substantialLines keeps up to max reply lines that carry real content,
// stripping list markers and quotes.
func substantialLines(reply string, max int) []string {
	var out []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		for _, marker := range []string{"-", "*", "1.", "2.", "3.", "4.", "5."} {
			line = strings.TrimSpace(strings.TrimPrefix(line, marker))
		}
		line = strings.Trim(line, `"'`)
		if len(line) > 10 {
			out = append(out, line)
			if len(out) == max {
				break
			}
		}
	}
	return out
}
