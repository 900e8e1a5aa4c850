package operators

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/XiaoConstantine/evoagent-go/pkg/core"
	"github.com/XiaoConstantine/evoagent-go/pkg/errors"
	"github.com/XiaoConstantine/evoagent-go/pkg/genome"
	"github.com/XiaoConstantine/evoagent-go/pkg/logging"
)

// Crossover recombines two parents into one offspring for the given
// generation. The offspring carries a fresh ID, both parent IDs, and no
// fitness. Parents are never modified.
type Crossover interface {
	Name() string
	Cross(ctx context.Context, rng *rand.Rand, parent1, parent2 *genome.Chromosome, generation int) *genome.Chromosome
}

// SinglePoint splits the aligned gene list at a random index: innovations
// before the split come from parent1, the rest from parent2. A gene missing
// from the preferred side is taken from the other parent.
type SinglePoint struct{}

func (SinglePoint) Name() string { return "single_point" }

func (SinglePoint) Cross(ctx context.Context, rng *rand.Rand, parent1, parent2 *genome.Chromosome, generation int) *genome.Chromosome {
	child := newOffspring(generation, parent1, parent2)
	union := unionInnovations(parent1, parent2)
	split := 0
	if len(union) > 0 {
		split = rng.Intn(len(union) + 1)
	}

	for i, innovation := range union {
		preferred, other := parent1, parent2
		if i >= split {
			preferred, other = parent2, parent1
		}
		gene, ok := preferred.Gene(innovation)
		if !ok {
			gene, _ = other.Gene(innovation)
		}
		mustInherit(child, gene)
	}
	return child
}

// Uniform flips a per-gene coin: with probability Rate the gene comes from
// parent2, otherwise from parent1. A gene missing from the chosen side is
// taken from the other parent. Rate is clamped into [0,1].
type Uniform struct {
	Rate float64
}

func (Uniform) Name() string { return "uniform" }

func (u Uniform) Cross(ctx context.Context, rng *rand.Rand, parent1, parent2 *genome.Chromosome, generation int) *genome.Chromosome {
	rate := clampUnit(u.Rate)
	child := newOffspring(generation, parent1, parent2)

	for _, innovation := range unionInnovations(parent1, parent2) {
		preferred, other := parent1, parent2
		if rng.Float64() < rate {
			preferred, other = parent2, parent1
		}
		gene, ok := preferred.Gene(innovation)
		if !ok {
			gene, _ = other.Gene(innovation)
		}
		mustInherit(child, gene)
	}
	return child
}

// NEAT aligns genes by innovation number. Matched genes are inherited from a
// uniformly random parent, except matched numeric genes which average their
// values half the time. Disjoint and excess genes are inherited only from the
// fitter parent; on an exact fitness tie each side's extras are kept with
// probability one half.
type NEAT struct{}

func (NEAT) Name() string { return "neat" }

func (NEAT) Cross(ctx context.Context, rng *rand.Rand, parent1, parent2 *genome.Chromosome, generation int) *genome.Chromosome {
	child := newOffspring(generation, parent1, parent2)

	f1, f2 := genome.OverallOf(parent1), genome.OverallOf(parent2)
	tie := f1 == f2
	fitter := parent1
	if f2 > f1 {
		fitter = parent2
	}

	for _, innovation := range unionInnovations(parent1, parent2) {
		g1, ok1 := parent1.Gene(innovation)
		g2, ok2 := parent2.Gene(innovation)

		switch {
		case ok1 && ok2:
			mustInherit(child, mergeMatched(rng, g1, g2))
		case ok1:
			if (tie && rng.Float64() < 0.5) || (!tie && fitter == parent1) {
				mustInherit(child, g1)
			}
		case ok2:
			if (tie && rng.Float64() < 0.5) || (!tie && fitter == parent2) {
				mustInherit(child, g2)
			}
		}
	}
	return child
}

// mergeMatched resolves a matched gene pair. Numeric pairs average their
// values half the time; everything else is a uniform pick.
func mergeMatched(rng *rand.Rand, g1, g2 genome.Gene) genome.Gene {
	n1, isNumeric1 := g1.(*genome.NumericGene)
	n2, isNumeric2 := g2.(*genome.NumericGene)
	if isNumeric1 && isNumeric2 && rng.Float64() < 0.5 {
		merged := n1.Clone().(*genome.NumericGene)
		merged.Value = (n1.Value + n2.Value) / 2
		return merged
	}
	if rng.Float64() < 0.5 {
		return g1
	}
	return g2
}

// SemanticCrossover recombines structure with NEAT alignment, then asks the
// LLM to merge the parents' prompt texts role by role. Any model failure or
// unusable reply leaves the NEAT result in place, so offspring production
// never blocks on the model.
type SemanticCrossover struct {
	llm  core.LLM
	neat NEAT
}

// NewSemanticCrossover returns a crossover backed by the given model. A nil
// model is allowed and makes the operator behave exactly like NEAT.
func NewSemanticCrossover(llm core.LLM) *SemanticCrossover {
	return &SemanticCrossover{llm: llm}
}

func (*SemanticCrossover) Name() string { return "semantic_crossover" }

func (s *SemanticCrossover) Cross(ctx context.Context, rng *rand.Rand, parent1, parent2 *genome.Chromosome, generation int) *genome.Chromosome {
	child := s.neat.Cross(ctx, rng, parent1, parent2, generation)
	if s.llm == nil {
		return child
	}

	for _, gene := range child.Genes() {
		prompt, ok := gene.(*genome.PromptGene)
		if !ok {
			continue
		}
		text1, ok1 := promptText(parent1, prompt.InnovationNumber())
		text2, ok2 := promptText(parent2, prompt.InnovationNumber())
		if !ok1 || !ok2 || text1 == text2 {
			continue
		}
		merged, err := s.mergePrompts(ctx, parent1, parent2, text1, text2)
		if err != nil {
			logging.GetLogger().Debug(ctx, "semantic crossover for %s fell back to structural result: %v",
				prompt.Role, err)
			continue
		}
		prompt.Text = merged
	}
	return child
}

func (s *SemanticCrossover) mergePrompts(ctx context.Context, parent1, parent2 *genome.Chromosome, text1, text2 string) (string, error) {
	prompt := fmt.Sprintf(`Create one new agent instruction by combining the best aspects of these parent instructions:

Parent 1 (fitness: %.3f): "%s"
Parent 2 (fitness: %.3f): "%s"

The merged instruction must:
1. Combine semantic elements from both parents
2. Stay clear and actionable
3. Fit on a single line

Merged instruction:`,
		genome.OverallOf(parent1), text1,
		genome.OverallOf(parent2), text2)

	response, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	merged := firstSubstantialLine(response.Content)
	if merged == "" {
		return "", errors.New(errors.InvalidResponse, "no usable instruction in model reply")
	}
	return merged, nil
}

// promptText finds the prompt text a parent carries under an innovation
// number.
func promptText(parent *genome.Chromosome, innovation int64) (string, bool) {
	gene, ok := parent.Gene(innovation)
	if !ok {
		return "", false
	}
	prompt, ok := gene.(*genome.PromptGene)
	if !ok {
		return "", false
	}
	return prompt.Text, true
}

// firstSubstantialLine extracts the first meaningful line from a model
// reply, stripping numbering and quotes.
func firstSubstantialLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "1.")
		line = strings.TrimPrefix(line, "-")
		line = strings.TrimSpace(line)
		line = strings.Trim(line, "\"'")
		if len(line) > 10 {
			return line
		}
	}
	return ""
}

// newOffspring creates an empty chromosome descending from both parents.
func newOffspring(generation int, parent1, parent2 *genome.Chromosome) *genome.Chromosome {
	child := genome.New(generation)
	child.ParentIDs = []string{parent1.ID, parent2.ID}
	return child
}

// unionInnovations returns the sorted union of both parents' markers.
func unionInnovations(parent1, parent2 *genome.Chromosome) []int64 {
	union := parent1.InnovationNumbers()
	seen := make(map[int64]struct{}, len(union))
	for _, n := range union {
		seen[n] = struct{}{}
	}
	for _, n := range parent2.InnovationNumbers() {
		if _, ok := seen[n]; !ok {
			union = append(union, n)
		}
	}
	sort.Slice(union, func(i, j int) bool { return union[i] < union[j] })
	return union
}

// mustInherit clones a gene into the child. Callers iterate deduplicated
// innovation sets, so a collision is a programming error.
func mustInherit(child *genome.Chromosome, g genome.Gene) {
	if err := child.AddGene(g.Clone()); err != nil {
		panic(err)
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
