package genome

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/XiaoConstantine/evoagent-go/pkg/core"
	"github.com/XiaoConstantine/evoagent-go/pkg/errors"
	"github.com/google/uuid"
)

// Chromosome aggregates genes keyed by innovation number into one complete
// agent configuration.
type Chromosome struct {
	ID         string
	Generation int
	SpeciesID  string
	ParentIDs  []string
	Fitness    *FitnessResult

	genes map[int64]Gene
}

// New creates an empty chromosome for the given creation generation.
func New(generation int) *Chromosome {
	return &Chromosome{
		ID:         uuid.New().String(),
		Generation: generation,
		genes:      make(map[int64]Gene),
	}
}

// AddGene inserts a gene, rejecting a second gene under the same innovation
// number.
func (c *Chromosome) AddGene(g Gene) error {
	n := g.InnovationNumber()
	if _, exists := c.genes[n]; exists {
		return errors.WithFields(
			errors.New(errors.InvalidInput, "duplicate innovation number in chromosome"),
			errors.Fields{"innovation": n, "chromosome": c.ID})
	}
	c.genes[n] = g
	return nil
}

// Gene returns the gene stored under the given innovation number.
func (c *Chromosome) Gene(innovation int64) (Gene, bool) {
	g, ok := c.genes[innovation]
	return g, ok
}

// Genes returns all genes ordered by innovation number.
func (c *Chromosome) Genes() []Gene {
	out := make([]Gene, 0, len(c.genes))
	for _, g := range c.genes {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].InnovationNumber() < out[j].InnovationNumber()
	})
	return out
}

// InnovationNumbers returns the sorted marker set.
func (c *Chromosome) InnovationNumbers() []int64 {
	out := make([]int64, 0, len(c.genes))
	for n := range c.genes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len reports the gene count.
func (c *Chromosome) Len() int {
	return len(c.genes)
}

// Clone returns an exact deep copy preserving identity, lineage, and
// fitness. Elite carry-over and island migration use it.
func (c *Chromosome) Clone() *Chromosome {
	clone := &Chromosome{
		ID:         c.ID,
		Generation: c.Generation,
		SpeciesID:  c.SpeciesID,
		ParentIDs:  append([]string(nil), c.ParentIDs...),
		genes:      make(map[int64]Gene, len(c.genes)),
	}
	if c.Fitness != nil {
		f := *c.Fitness
		clone.Fitness = &f
	}
	for n, g := range c.genes {
		clone.genes[n] = g.Clone()
	}
	return clone
}

// CloneAsOffspring returns a deep copy under a fresh identity with this
// chromosome as sole parent and no fitness. Used when crossover is skipped
// and the fitter parent is propagated directly.
func (c *Chromosome) CloneAsOffspring(generation int) *Chromosome {
	offspring := &Chromosome{
		ID:         uuid.New().String(),
		Generation: generation,
		ParentIDs:  []string{c.ID},
		genes:      make(map[int64]Gene, len(c.genes)),
	}
	for n, g := range c.genes {
		offspring.genes[n] = g.Clone()
	}
	return offspring
}

// ContentKey returns a stable digest of the gene content. Chromosomes with
// equal keys are behaviorally identical and share fitness evaluations.
func (c *Chromosome) ContentKey() string {
	h := sha256.New()
	for _, g := range c.Genes() {
		fmt.Fprintf(h, "%d|%s|%s\n", g.InnovationNumber(), g.Kind(), g.Content())
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Blueprint decodes the chromosome into the executable view handed to the
// agent executor.
func (c *Chromosome) Blueprint() core.AgentBlueprint {
	bp := core.AgentBlueprint{
		ChromosomeID: c.ID,
		Parameters:   make(map[string]float64),
	}

	var bt *BehaviorTreeGene
	var sm *StateMachineGene

	for _, g := range c.Genes() {
		switch gene := g.(type) {
		case *PromptGene:
			if bp.SystemPrompt == "" {
				bp.SystemPrompt = gene.Text
			} else {
				bp.SystemPrompt += "\n" + gene.Text
			}
		case *ToolConfigGene:
			bp.Tools = append(bp.Tools, gene.Tools...)
		case *StrategyGene:
			bp.Strategy = gene.Strategy
		case *ModelGene:
			bp.Model = gene.Model
		case *BehaviorTreeGene:
			bt = gene
		case *StateMachineGene:
			sm = gene
		case *NumericGene:
			bp.Parameters[gene.Name] = gene.Value
		}
	}

	// A behavior tree outranks a state machine when both are present.
	if bt != nil && len(bt.Nodes) > 0 {
		nodes := make([]string, len(bt.Nodes))
		for i, n := range bt.Nodes {
			nodes[i] = n.Type + ":" + n.Label
		}
		bp.ControlFlow = &core.ControlFlowSpec{
			Kind:  "behavior_tree",
			Nodes: nodes,
			Edges: bt.Edges(),
		}
	} else if sm != nil && len(sm.States) > 0 {
		index := make(map[string]int, len(sm.States))
		for i, s := range sm.States {
			index[s] = i
		}
		edges := make([][2]int, 0, len(sm.Transitions))
		for _, tr := range sm.Transitions {
			from, okFrom := index[tr[0]]
			to, okTo := index[tr[1]]
			if okFrom && okTo {
				edges = append(edges, [2]int{from, to})
			}
		}
		bp.ControlFlow = &core.ControlFlowSpec{
			Kind:  "state_machine",
			Nodes: append([]string(nil), sm.States...),
			Edges: edges,
		}
	}

	return bp
}
