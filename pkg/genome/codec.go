package genome

import (
	"github.com/XiaoConstantine/evoagent-go/pkg/core"
	"github.com/XiaoConstantine/evoagent-go/pkg/errors"
)

// GeneRecord is the wire form of one gene. Exactly the fields for the
// record's Kind are set; the rest stay zero.
type GeneRecord struct {
	Innovation int64    `json:"innovation"`
	Kind       GeneKind `json:"kind"`

	Role string `json:"role,omitempty"`
	Text string `json:"text,omitempty"`

	Name  string   `json:"name,omitempty"`
	Tools []string `json:"tools,omitempty"`

	Strategy string `json:"strategy,omitempty"`
	Model    string `json:"model,omitempty"`

	Nodes []BehaviorNode `json:"nodes,omitempty"`

	States      []string    `json:"states,omitempty"`
	Transitions [][2]string `json:"transitions,omitempty"`

	Value float64 `json:"value,omitempty"`
	Min   float64 `json:"min,omitempty"`
	Max   float64 `json:"max,omitempty"`
}

// ChromosomeRecord is the wire form of a chromosome, self-contained enough
// to rebuild it in another process without the originating tracker.
type ChromosomeRecord struct {
	ID         string         `json:"id"`
	Generation int            `json:"generation"`
	SpeciesID  string         `json:"species_id,omitempty"`
	ParentIDs  []string       `json:"parent_ids,omitempty"`
	Fitness    *FitnessResult `json:"fitness,omitempty"`
	Genes      []GeneRecord   `json:"genes"`
}

// Record returns the chromosome's wire form with genes in innovation order.
func (c *Chromosome) Record() ChromosomeRecord {
	rec := ChromosomeRecord{
		ID:         c.ID,
		Generation: c.Generation,
		SpeciesID:  c.SpeciesID,
		ParentIDs:  append([]string(nil), c.ParentIDs...),
		Genes:      make([]GeneRecord, 0, len(c.genes)),
	}
	if c.Fitness != nil {
		f := *c.Fitness
		rec.Fitness = &f
	}
	for _, g := range c.Genes() {
		rec.Genes = append(rec.Genes, geneRecord(g))
	}
	return rec
}

func geneRecord(g Gene) GeneRecord {
	rec := GeneRecord{Innovation: g.InnovationNumber(), Kind: g.Kind()}
	switch gene := g.(type) {
	case *PromptGene:
		rec.Role = gene.Role
		rec.Text = gene.Text
	case *ToolConfigGene:
		rec.Name = gene.Name
		rec.Tools = append([]string(nil), gene.Tools...)
	case *StrategyGene:
		rec.Strategy = gene.Strategy
	case *ModelGene:
		rec.Model = string(gene.Model)
	case *BehaviorTreeGene:
		rec.Nodes = append([]BehaviorNode(nil), gene.Nodes...)
	case *StateMachineGene:
		rec.States = append([]string(nil), gene.States...)
		rec.Transitions = append([][2]string(nil), gene.Transitions...)
	case *NumericGene:
		rec.Name = gene.Name
		rec.Value = gene.Value
		rec.Min = gene.Min
		rec.Max = gene.Max
	}
	return rec
}

// FromRecord rebuilds a chromosome from its wire form, restoring the
// original innovation numbers.
func FromRecord(rec ChromosomeRecord) (*Chromosome, error) {
	c := &Chromosome{
		ID:         rec.ID,
		Generation: rec.Generation,
		SpeciesID:  rec.SpeciesID,
		ParentIDs:  append([]string(nil), rec.ParentIDs...),
		genes:      make(map[int64]Gene, len(rec.Genes)),
	}
	if rec.Fitness != nil {
		f := *rec.Fitness
		c.Fitness = &f
	}
	for _, gr := range rec.Genes {
		g, err := geneFromRecord(gr)
		if err != nil {
			return nil, err
		}
		if err := c.AddGene(g); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func geneFromRecord(rec GeneRecord) (Gene, error) {
	switch rec.Kind {
	case KindPrompt:
		return &PromptGene{innovation: rec.Innovation, Role: rec.Role, Text: rec.Text}, nil
	case KindToolConfig:
		return &ToolConfigGene{
			innovation: rec.Innovation,
			Name:       rec.Name,
			Tools:      normalizeTools(rec.Tools),
		}, nil
	case KindStrategy:
		return &StrategyGene{innovation: rec.Innovation, Strategy: rec.Strategy}, nil
	case KindModel:
		return &ModelGene{innovation: rec.Innovation, Model: core.ModelID(rec.Model)}, nil
	case KindBehaviorTree:
		return &BehaviorTreeGene{
			innovation: rec.Innovation,
			Nodes:      append([]BehaviorNode(nil), rec.Nodes...),
		}, nil
	case KindStateMachine:
		return &StateMachineGene{
			innovation:  rec.Innovation,
			States:      append([]string(nil), rec.States...),
			Transitions: normalizeTransitions(rec.Transitions),
		}, nil
	case KindNumeric:
		return &NumericGene{
			innovation: rec.Innovation,
			Name:       rec.Name,
			Value:      rec.Value,
			Min:        rec.Min,
			Max:        rec.Max,
		}, nil
	default:
		return nil, errors.WithFields(
			errors.New(errors.InvalidInput, "unknown gene kind in record"),
			errors.Fields{"kind": string(rec.Kind), "innovation": rec.Innovation})
	}
}
