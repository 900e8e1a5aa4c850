package genome

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/XiaoConstantine/evoagent-go/pkg/core"
)

// PromptGene carries one prompt an agent runs with, identified by role
// (system, planner, critic, ...).
type PromptGene struct {
	innovation int64
	Role       string
	Text       string
}

func NewPromptGene(tracker *InnovationTracker, role, text string) *PromptGene {
	g := &PromptGene{Role: role, Text: text}
	g.innovation = tracker.GetInnovationNumber(g.Signature())
	return g
}

func (g *PromptGene) Kind() GeneKind          { return KindPrompt }
func (g *PromptGene) InnovationNumber() int64 { return g.innovation }
func (g *PromptGene) Signature() string       { return "prompt:" + g.Role }

func (g *PromptGene) Clone() Gene {
	clone := *g
	return &clone
}

// Mutate rewrites the text by appending a fragment, dropping the last
// sentence, or restarting from a domain template. No-ops when the domain
// offers nothing for the chosen move.
func (g *PromptGene) Mutate(rng *rand.Rand, domain *Domain) {
	switch rng.Intn(3) {
	case 0:
		if len(domain.PromptFragments) > 0 {
			fragment := domain.PromptFragments[rng.Intn(len(domain.PromptFragments))]
			g.Text = strings.TrimSpace(g.Text + " " + fragment)
		}
	case 1:
		sentences := splitSentences(g.Text)
		if len(sentences) > 1 {
			g.Text = strings.Join(sentences[:len(sentences)-1], " ")
		}
	case 2:
		if len(domain.PromptTemplates) > 0 {
			g.Text = domain.PromptTemplates[rng.Intn(len(domain.PromptTemplates))]
		}
	}
}

func (g *PromptGene) DistanceTo(other Gene) float64 {
	o, ok := other.(*PromptGene)
	if !ok {
		return 1.0
	}
	return clamp01(1.0 - jaccard(foldTokens(g.Text), foldTokens(o.Text)))
}

func (g *PromptGene) Content() string {
	return fmt.Sprintf("prompt/%s: %s", g.Role, g.Text)
}

func splitSentences(text string) []string {
	parts := strings.Split(text, ". ")
	sentences := make([]string, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if i < len(parts)-1 && !strings.HasSuffix(p, ".") {
			p += "."
		}
		sentences = append(sentences, p)
	}
	return sentences
}

// ToolConfigGene carries the sorted set of tool names granted to the agent.
type ToolConfigGene struct {
	innovation int64
	Name       string
	Tools      []string
}

func NewToolConfigGene(tracker *InnovationTracker, name string, tools []string) *ToolConfigGene {
	g := &ToolConfigGene{Name: name, Tools: normalizeTools(tools)}
	g.innovation = tracker.GetInnovationNumber(g.Signature())
	return g
}

func (g *ToolConfigGene) Kind() GeneKind          { return KindToolConfig }
func (g *ToolConfigGene) InnovationNumber() int64 { return g.innovation }
func (g *ToolConfigGene) Signature() string       { return "tool_config:" + g.Name }

func (g *ToolConfigGene) Clone() Gene {
	clone := *g
	clone.Tools = append([]string(nil), g.Tools...)
	return &clone
}

// Mutate grows or shrinks the tool set within the domain's size bounds.
func (g *ToolConfigGene) Mutate(rng *rand.Rand, domain *Domain) {
	var missing []string
	have := stringSet(g.Tools)
	for _, name := range domain.ToolNames {
		if _, ok := have[name]; !ok {
			missing = append(missing, name)
		}
	}

	canAdd := len(missing) > 0 && len(g.Tools) < domain.MaxTools
	canRemove := len(g.Tools) > domain.MinTools

	switch {
	case canAdd && (!canRemove || rng.Float64() < 0.5):
		g.Tools = append(g.Tools, missing[rng.Intn(len(missing))])
		g.Tools = normalizeTools(g.Tools)
	case canRemove:
		idx := rng.Intn(len(g.Tools))
		g.Tools = append(g.Tools[:idx], g.Tools[idx+1:]...)
	}
}

func (g *ToolConfigGene) DistanceTo(other Gene) float64 {
	o, ok := other.(*ToolConfigGene)
	if !ok {
		return 1.0
	}
	return clamp01(1.0 - jaccard(stringSet(g.Tools), stringSet(o.Tools)))
}

func (g *ToolConfigGene) Content() string {
	return fmt.Sprintf("tools/%s: %s", g.Name, strings.Join(g.Tools, ","))
}

func normalizeTools(tools []string) []string {
	seen := make(map[string]struct{}, len(tools))
	out := make([]string, 0, len(tools))
	for _, t := range tools {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// StrategyGene carries the agent's decision strategy.
type StrategyGene struct {
	innovation int64
	Strategy   string
}

func NewStrategyGene(tracker *InnovationTracker, strategy string) *StrategyGene {
	g := &StrategyGene{Strategy: strategy}
	g.innovation = tracker.GetInnovationNumber(g.Signature())
	return g
}

func (g *StrategyGene) Kind() GeneKind          { return KindStrategy }
func (g *StrategyGene) InnovationNumber() int64 { return g.innovation }
func (g *StrategyGene) Signature() string       { return "strategy:decision" }

func (g *StrategyGene) Clone() Gene {
	clone := *g
	return &clone
}

func (g *StrategyGene) Mutate(rng *rand.Rand, domain *Domain) {
	var candidates []string
	for _, s := range domain.Strategies {
		if s != g.Strategy {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) > 0 {
		g.Strategy = candidates[rng.Intn(len(candidates))]
	}
}

func (g *StrategyGene) DistanceTo(other Gene) float64 {
	o, ok := other.(*StrategyGene)
	if !ok {
		return 1.0
	}
	if g.Strategy == o.Strategy {
		return 0.0
	}
	return 1.0
}

func (g *StrategyGene) Content() string {
	return "strategy: " + g.Strategy
}

// ModelGene carries the LLM model choice for the agent.
type ModelGene struct {
	innovation int64
	Model      core.ModelID
}

func NewModelGene(tracker *InnovationTracker, model core.ModelID) *ModelGene {
	g := &ModelGene{Model: model}
	g.innovation = tracker.GetInnovationNumber(g.Signature())
	return g
}

func (g *ModelGene) Kind() GeneKind          { return KindModel }
func (g *ModelGene) InnovationNumber() int64 { return g.innovation }
func (g *ModelGene) Signature() string       { return "model:primary" }

func (g *ModelGene) Clone() Gene {
	clone := *g
	return &clone
}

func (g *ModelGene) Mutate(rng *rand.Rand, domain *Domain) {
	var candidates []core.ModelID
	for _, m := range domain.Models {
		if m != g.Model {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) > 0 {
		g.Model = candidates[rng.Intn(len(candidates))]
	}
}

// DistanceTo treats a provider switch as a bigger jump than a model switch
// within one provider.
func (g *ModelGene) DistanceTo(other Gene) float64 {
	o, ok := other.(*ModelGene)
	if !ok {
		return 1.0
	}
	if g.Model == o.Model {
		return 0.0
	}
	if providerOf(g.Model) == providerOf(o.Model) {
		return 0.5
	}
	return 1.0
}

func (g *ModelGene) Content() string {
	return "model: " + string(g.Model)
}

func providerOf(model core.ModelID) string {
	for provider, models := range core.ProviderModels {
		for _, m := range models {
			if m == model {
				return provider
			}
		}
	}
	return ""
}

// BehaviorNode is one node of a behavior tree in preorder-with-depth
// encoding: the parent of a node is its nearest shallower predecessor.
type BehaviorNode struct {
	Type  string `json:"type"` // sequence, selector, action, condition
	Label string `json:"label"`
	Depth int    `json:"depth"`
}

// BehaviorTreeGene carries the shape of the agent's behavior tree.
type BehaviorTreeGene struct {
	innovation int64
	Nodes      []BehaviorNode
}

func NewBehaviorTreeGene(tracker *InnovationTracker, nodes []BehaviorNode) *BehaviorTreeGene {
	g := &BehaviorTreeGene{Nodes: append([]BehaviorNode(nil), nodes...)}
	g.innovation = tracker.GetInnovationNumber(g.Signature())
	return g
}

func (g *BehaviorTreeGene) Kind() GeneKind          { return KindBehaviorTree }
func (g *BehaviorTreeGene) InnovationNumber() int64 { return g.innovation }
func (g *BehaviorTreeGene) Signature() string       { return "behavior_tree:control" }

func (g *BehaviorTreeGene) Clone() Gene {
	clone := *g
	clone.Nodes = append([]BehaviorNode(nil), g.Nodes...)
	return &clone
}

// Mutate inserts a leaf under a random node, removes a random non-root
// subtree, or relabels a node.
func (g *BehaviorTreeGene) Mutate(rng *rand.Rand, domain *Domain) {
	if len(g.Nodes) == 0 {
		return
	}
	switch rng.Intn(3) {
	case 0:
		if len(domain.ActionLabels) == 0 {
			return
		}
		parent := rng.Intn(len(g.Nodes))
		leaf := BehaviorNode{
			Type:  leafType(rng),
			Label: domain.ActionLabels[rng.Intn(len(domain.ActionLabels))],
			Depth: g.Nodes[parent].Depth + 1,
		}
		g.Nodes = append(g.Nodes[:parent+1], append([]BehaviorNode{leaf}, g.Nodes[parent+1:]...)...)
	case 1:
		if len(g.Nodes) < 2 {
			return
		}
		start := 1 + rng.Intn(len(g.Nodes)-1)
		end := subtreeEnd(g.Nodes, start)
		g.Nodes = append(g.Nodes[:start], g.Nodes[end:]...)
	case 2:
		idx := rng.Intn(len(g.Nodes))
		node := &g.Nodes[idx]
		if node.Type == "sequence" || node.Type == "selector" {
			if len(domain.BehaviorNodeTypes) > 0 {
				node.Type = domain.BehaviorNodeTypes[rng.Intn(len(domain.BehaviorNodeTypes))]
			}
		} else if len(domain.ActionLabels) > 0 {
			node.Label = domain.ActionLabels[rng.Intn(len(domain.ActionLabels))]
		}
	}
}

func leafType(rng *rand.Rand) string {
	if rng.Float64() < 0.7 {
		return "action"
	}
	return "condition"
}

// subtreeEnd returns the index just past the subtree rooted at start.
func subtreeEnd(nodes []BehaviorNode, start int) int {
	end := start + 1
	for end < len(nodes) && nodes[end].Depth > nodes[start].Depth {
		end++
	}
	return end
}

// DistanceTo is a normalized positional edit distance over the preorder
// encodings.
func (g *BehaviorTreeGene) DistanceTo(other Gene) float64 {
	o, ok := other.(*BehaviorTreeGene)
	if !ok {
		return 1.0
	}
	longest := len(g.Nodes)
	if len(o.Nodes) > longest {
		longest = len(o.Nodes)
	}
	if longest == 0 {
		return 0.0
	}
	shared := len(g.Nodes)
	if len(o.Nodes) < shared {
		shared = len(o.Nodes)
	}
	mismatches := longest - shared
	for i := 0; i < shared; i++ {
		a, b := g.Nodes[i], o.Nodes[i]
		if a.Type != b.Type || a.Label != b.Label || a.Depth != b.Depth {
			mismatches++
		}
	}
	return clamp01(float64(mismatches) / float64(longest))
}

func (g *BehaviorTreeGene) Content() string {
	parts := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		parts[i] = fmt.Sprintf("%s:%s@%d", n.Type, n.Label, n.Depth)
	}
	return "behavior_tree: " + strings.Join(parts, ";")
}

// Edges returns parent-child index pairs for control-flow materialization.
func (g *BehaviorTreeGene) Edges() [][2]int {
	var edges [][2]int
	for i := 1; i < len(g.Nodes); i++ {
		for j := i - 1; j >= 0; j-- {
			if g.Nodes[j].Depth == g.Nodes[i].Depth-1 {
				edges = append(edges, [2]int{j, i})
				break
			}
		}
	}
	return edges
}

// StateMachineGene carries the agent's state-machine shape: labeled states
// (the first is initial) and directed transitions between them.
type StateMachineGene struct {
	innovation  int64
	States      []string
	Transitions [][2]string
}

func NewStateMachineGene(tracker *InnovationTracker, states []string, transitions [][2]string) *StateMachineGene {
	g := &StateMachineGene{
		States:      append([]string(nil), states...),
		Transitions: normalizeTransitions(transitions),
	}
	g.innovation = tracker.GetInnovationNumber(g.Signature())
	return g
}

func (g *StateMachineGene) Kind() GeneKind          { return KindStateMachine }
func (g *StateMachineGene) InnovationNumber() int64 { return g.innovation }
func (g *StateMachineGene) Signature() string       { return "state_machine:control" }

func (g *StateMachineGene) Clone() Gene {
	clone := *g
	clone.States = append([]string(nil), g.States...)
	clone.Transitions = append([][2]string(nil), g.Transitions...)
	return &clone
}

// Mutate adds a reachable state, removes a non-initial state, or toggles a
// transition between two existing states.
func (g *StateMachineGene) Mutate(rng *rand.Rand, domain *Domain) {
	if len(g.States) == 0 {
		return
	}
	switch rng.Intn(3) {
	case 0:
		have := stringSet(g.States)
		var missing []string
		for _, s := range domain.StateLabels {
			if _, ok := have[s]; !ok {
				missing = append(missing, s)
			}
		}
		if len(missing) == 0 {
			return
		}
		state := missing[rng.Intn(len(missing))]
		from := g.States[rng.Intn(len(g.States))]
		g.States = append(g.States, state)
		g.Transitions = normalizeTransitions(append(g.Transitions, [2]string{from, state}))
	case 1:
		if len(g.States) < 3 {
			return
		}
		idx := 1 + rng.Intn(len(g.States)-1)
		removed := g.States[idx]
		g.States = append(g.States[:idx], g.States[idx+1:]...)
		kept := g.Transitions[:0]
		for _, tr := range g.Transitions {
			if tr[0] != removed && tr[1] != removed {
				kept = append(kept, tr)
			}
		}
		g.Transitions = kept
	case 2:
		if len(g.States) < 2 {
			return
		}
		from := g.States[rng.Intn(len(g.States))]
		to := g.States[rng.Intn(len(g.States))]
		if from == to {
			return
		}
		for i, tr := range g.Transitions {
			if tr[0] == from && tr[1] == to {
				g.Transitions = append(g.Transitions[:i], g.Transitions[i+1:]...)
				return
			}
		}
		g.Transitions = normalizeTransitions(append(g.Transitions, [2]string{from, to}))
	}
}

// DistanceTo averages state-set and transition-set dissimilarity.
func (g *StateMachineGene) DistanceTo(other Gene) float64 {
	o, ok := other.(*StateMachineGene)
	if !ok {
		return 1.0
	}
	states := jaccard(stringSet(g.States), stringSet(o.States))
	transitions := jaccard(transitionSet(g.Transitions), transitionSet(o.Transitions))
	return clamp01(1.0 - (states+transitions)/2.0)
}

func (g *StateMachineGene) Content() string {
	trs := make([]string, len(g.Transitions))
	for i, tr := range g.Transitions {
		trs[i] = tr[0] + ">" + tr[1]
	}
	return fmt.Sprintf("state_machine: states=%s transitions=%s",
		strings.Join(g.States, ","), strings.Join(trs, ","))
}

func transitionSet(transitions [][2]string) map[string]struct{} {
	set := make(map[string]struct{}, len(transitions))
	for _, tr := range transitions {
		set[tr[0]+">"+tr[1]] = struct{}{}
	}
	return set
}

func normalizeTransitions(transitions [][2]string) [][2]string {
	seen := make(map[string]struct{}, len(transitions))
	out := make([][2]string, 0, len(transitions))
	for _, tr := range transitions {
		key := tr[0] + ">" + tr[1]
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// NumericGene carries one bounded hyperparameter.
type NumericGene struct {
	innovation int64
	Name       string
	Value      float64
	Min        float64
	Max        float64
}

func NewNumericGene(tracker *InnovationTracker, spec NumericSpec, value float64) *NumericGene {
	g := &NumericGene{Name: spec.Name, Min: spec.Min, Max: spec.Max}
	g.Value = g.clampValue(value)
	g.innovation = tracker.GetInnovationNumber(g.Signature())
	return g
}

func (g *NumericGene) Kind() GeneKind          { return KindNumeric }
func (g *NumericGene) InnovationNumber() int64 { return g.innovation }
func (g *NumericGene) Signature() string       { return "numeric:" + g.Name }

func (g *NumericGene) Clone() Gene {
	clone := *g
	return &clone
}

// Mutate applies a gaussian perturbation scaled to the domain width and
// clamps back into bounds.
func (g *NumericGene) Mutate(rng *rand.Rand, domain *Domain) {
	width := g.Max - g.Min
	if width <= 0 {
		return
	}
	g.Value = g.clampValue(g.Value + rng.NormFloat64()*0.15*width)
}

// DistanceTo is the normalized absolute difference of values.
func (g *NumericGene) DistanceTo(other Gene) float64 {
	o, ok := other.(*NumericGene)
	if !ok {
		return 1.0
	}
	width := g.Max - g.Min
	if ow := o.Max - o.Min; ow > width {
		width = ow
	}
	if width <= 0 {
		return 0.0
	}
	diff := g.Value - o.Value
	if diff < 0 {
		diff = -diff
	}
	return clamp01(diff / width)
}

func (g *NumericGene) Content() string {
	return fmt.Sprintf("numeric/%s: %.6f", g.Name, g.Value)
}

func (g *NumericGene) clampValue(v float64) float64 {
	if v < g.Min {
		return g.Min
	}
	if v > g.Max {
		return g.Max
	}
	return v
}
