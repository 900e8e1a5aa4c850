package operators

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/XiaoConstantine/evoagent-go/pkg/core"
	"github.com/XiaoConstantine/evoagent-go/pkg/errors"
	"github.com/XiaoConstantine/evoagent-go/pkg/genome"
	"github.com/XiaoConstantine/evoagent-go/pkg/logging"
)

// Mutator perturbs a chromosome's gene payloads in place. Innovation numbers
// never change under mutation.
type Mutator interface {
	Name() string
	Mutate(ctx context.Context, rng *rand.Rand, c *genome.Chromosome, domain *genome.Domain)
}

// PopulationAware is implemented by mutators that tune themselves against
// the current population before reproduction. The engine calls
// ObservePopulation once per generation.
type PopulationAware interface {
	ObservePopulation(pop []*genome.Chromosome)
}

// StandardMutation flips an independent coin per gene and calls the gene's
// own Mutate on success. Rate is clamped into [0,1].
type StandardMutation struct {
	Rate float64
}

func (StandardMutation) Name() string { return "standard" }

func (m StandardMutation) Mutate(ctx context.Context, rng *rand.Rand, c *genome.Chromosome, domain *genome.Domain) {
	rate := clampUnit(m.Rate)
	for _, gene := range c.Genes() {
		if rng.Float64() < rate {
			gene.Mutate(rng, domain)
		}
	}
}

// AdaptiveMutation scales the per-gene rate inversely with measured
// population diversity: a converging population mutates near the maximum
// rate, a diverse one near the minimum. Until the first observation the base
// rate applies.
type AdaptiveMutation struct {
	base      float64
	min       float64
	max       float64
	threshold float64

	mu       sync.RWMutex
	rate     float64
	observed bool
}

// NewAdaptiveMutation builds an adaptive mutator. Rates are clamped into
// [0,1] and min/max are swapped when inverted. diversityThreshold is the
// mean pairwise distance considered healthy; at or above it the minimum rate
// applies.
func NewAdaptiveMutation(base, min, max, diversityThreshold float64) *AdaptiveMutation {
	base = clampUnit(base)
	min = clampUnit(min)
	max = clampUnit(max)
	if min > max {
		min, max = max, min
	}
	return &AdaptiveMutation{base: base, min: min, max: max, threshold: diversityThreshold}
}

func (*AdaptiveMutation) Name() string { return "adaptive" }

// ObservePopulation recomputes the effective rate from the population's mean
// pairwise gene distance.
func (m *AdaptiveMutation) ObservePopulation(pop []*genome.Chromosome) {
	diversity := PairwiseDiversity(pop)
	ratio := 1.0
	if m.threshold > 0 {
		ratio = clampUnit(diversity / m.threshold)
	}

	m.mu.Lock()
	m.rate = m.max - (m.max-m.min)*ratio
	m.observed = true
	m.mu.Unlock()
}

// Rate returns the per-gene mutation rate currently in effect.
func (m *AdaptiveMutation) Rate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.observed {
		return m.base
	}
	return m.rate
}

func (m *AdaptiveMutation) Mutate(ctx context.Context, rng *rand.Rand, c *genome.Chromosome, domain *genome.Domain) {
	StandardMutation{Rate: m.Rate()}.Mutate(ctx, rng, c, domain)
}

// SemanticMutation rewrites prompt genes through the LLM and mutates every
// other gene kind through its own Mutate. A failed or unusable rewrite falls
// back to the prompt gene's local mutation, so the operator works offline
// with a nil model.
type SemanticMutation struct {
	llm  core.LLM
	rate float64
}

// NewSemanticMutation builds a semantic mutator with the given per-gene
// rate. A nil model is allowed and keeps every mutation local.
func NewSemanticMutation(llm core.LLM, rate float64) *SemanticMutation {
	return &SemanticMutation{llm: llm, rate: clampUnit(rate)}
}

func (*SemanticMutation) Name() string { return "semantic_mutation" }

func (m *SemanticMutation) Mutate(ctx context.Context, rng *rand.Rand, c *genome.Chromosome, domain *genome.Domain) {
	for _, gene := range c.Genes() {
		if rng.Float64() >= m.rate {
			continue
		}
		prompt, ok := gene.(*genome.PromptGene)
		if !ok || m.llm == nil {
			gene.Mutate(rng, domain)
			continue
		}
		rewritten, err := m.rewrite(ctx, rng, prompt.Text)
		if err != nil {
			logging.GetLogger().Debug(ctx, "semantic mutation for %s fell back to local mutation: %v",
				prompt.Role, err)
			prompt.Mutate(rng, domain)
			continue
		}
		prompt.Text = rewritten
	}
}

// mutationMoves pairs each semantic rewrite style with the guidance handed
// to the model.
var mutationMoves = [][2]string{
	{"enhance_specificity", "Make the instruction more specific about the task and the expected output"},
	{"simplify_language", "Use simpler, clearer language while keeping the meaning"},
	{"add_constraints", "Add a helpful constraint or guideline the agent should follow"},
	{"restructure_logic", "Reorganize the instruction's steps into a clearer order"},
	{"modify_emphasis", "Shift which aspect of the task the instruction emphasizes"},
}

func (m *SemanticMutation) rewrite(ctx context.Context, rng *rand.Rand, original string) (string, error) {
	move := mutationMoves[rng.Intn(len(mutationMoves))]

	prompt := fmt.Sprintf(`Apply a "%s" mutation to this agent instruction:
Original: "%s"

Requirement: %s.

Generate a mutated version that keeps the core intent while applying the change, on a single line:`,
		move[0], original, move[1])

	response, err := m.llm.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	rewritten := firstSubstantialLine(response.Content)
	if rewritten == "" || rewritten == original {
		return "", errors.New(errors.InvalidResponse, "rewrite unusable or unchanged")
	}
	return rewritten, nil
}

// PairwiseDiversity reports the mean pairwise chromosome distance across the
// population in [0,1]. Populations of fewer than two members have zero
// diversity. The engine also reports this figure per generation.
func PairwiseDiversity(pop []*genome.Chromosome) float64 {
	if len(pop) < 2 {
		return 0
	}
	total := 0.0
	pairs := 0
	for i := 0; i < len(pop); i++ {
		for j := i + 1; j < len(pop); j++ {
			total += chromosomeDistance(pop[i], pop[j])
			pairs++
		}
	}
	return total / float64(pairs)
}

// chromosomeDistance averages gene distance over the union of innovation
// numbers, counting one-sided genes as maximally distant.
func chromosomeDistance(a, b *genome.Chromosome) float64 {
	union := unionInnovations(a, b)
	if len(union) == 0 {
		return 0
	}
	total := 0.0
	for _, innovation := range union {
		ga, okA := a.Gene(innovation)
		gb, okB := b.Gene(innovation)
		if okA && okB {
			total += ga.DistanceTo(gb)
		} else {
			total += 1.0
		}
	}
	return total / float64(len(union))
}
