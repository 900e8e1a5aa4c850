package genome

import (
	"math/rand"

	"github.com/XiaoConstantine/evoagent-go/pkg/core"
)

// NumericSpec bounds one numeric hyperparameter.
type NumericSpec struct {
	Name string
	Min  float64
	Max  float64
}

// Domain bounds the values random initialization and mutation may draw for
// each gene kind. Callers typically start from DefaultDomain and override
// ToolNames from their tool catalog.
type Domain struct {
	PromptTemplates []string
	PromptFragments []string

	ToolNames []string
	MinTools  int
	MaxTools  int

	Strategies []string
	Models     []core.ModelID

	BehaviorNodeTypes []string
	ActionLabels      []string
	StateLabels       []string

	NumericSpecs []NumericSpec
}

// DefaultDomain returns a workable general-purpose domain.
func DefaultDomain() *Domain {
	return &Domain{
		PromptTemplates: []string{
			"You are a capable assistant. Solve the task step by step and state your final answer clearly.",
			"You are a careful analyst. Verify each intermediate result before moving on. End with the final answer.",
			"You are an efficient problem solver. Prefer the shortest correct path to the answer.",
		},
		PromptFragments: []string{
			"Show your reasoning before the final answer.",
			"If a tool is available for a subtask, use it instead of guessing.",
			"Double-check arithmetic before answering.",
			"Keep the final answer on its own line.",
			"When uncertain, state your best answer rather than refusing.",
		},
		ToolNames: []string{"web_search", "calculator", "code_exec", "file_read"},
		MinTools:  1,
		MaxTools:  4,
		Strategies: []string{
			"react", "plan_execute", "chain_of_thought", "reflect_revise",
		},
		Models:            core.SupportedModels(),
		BehaviorNodeTypes: []string{"sequence", "selector"},
		ActionLabels: []string{
			"gather_context", "plan", "act", "verify", "summarize", "recover",
		},
		StateLabels: []string{
			"plan", "act", "observe", "reflect", "done",
		},
		NumericSpecs: []NumericSpec{
			{Name: "temperature", Min: 0.0, Max: 1.0},
			{Name: "top_p", Min: 0.1, Max: 1.0},
			{Name: "max_steps", Min: 1, Max: 20},
			{Name: "retry_budget", Min: 0, Max: 5},
		},
	}
}

// NewRandomChromosome assembles the full gene complement with every payload
// randomized within the domain. Used to seed generation 0.
func NewRandomChromosome(rng *rand.Rand, tracker *InnovationTracker, domain *Domain, generation int) *Chromosome {
	c := New(generation)

	if len(domain.PromptTemplates) > 0 {
		text := domain.PromptTemplates[rng.Intn(len(domain.PromptTemplates))]
		for i := 0; i < rng.Intn(3); i++ {
			if len(domain.PromptFragments) > 0 {
				text += " " + domain.PromptFragments[rng.Intn(len(domain.PromptFragments))]
			}
		}
		mustAdd(c, NewPromptGene(tracker, "system", text))
	}

	if len(domain.ToolNames) > 0 {
		count := domain.MinTools
		if spread := domain.MaxTools - domain.MinTools; spread > 0 {
			count += rng.Intn(spread + 1)
		}
		if count > len(domain.ToolNames) {
			count = len(domain.ToolNames)
		}
		perm := rng.Perm(len(domain.ToolNames))
		tools := make([]string, 0, count)
		for _, idx := range perm[:count] {
			tools = append(tools, domain.ToolNames[idx])
		}
		mustAdd(c, NewToolConfigGene(tracker, "toolset", tools))
	}

	if len(domain.Strategies) > 0 {
		mustAdd(c, NewStrategyGene(tracker, domain.Strategies[rng.Intn(len(domain.Strategies))]))
	}

	if len(domain.Models) > 0 {
		mustAdd(c, NewModelGene(tracker, domain.Models[rng.Intn(len(domain.Models))]))
	}

	if len(domain.BehaviorNodeTypes) > 0 && len(domain.ActionLabels) > 0 {
		root := BehaviorNode{
			Type:  domain.BehaviorNodeTypes[rng.Intn(len(domain.BehaviorNodeTypes))],
			Label: "root",
			Depth: 0,
		}
		nodes := []BehaviorNode{root}
		for i := 0; i < 1+rng.Intn(3); i++ {
			nodes = append(nodes, BehaviorNode{
				Type:  leafType(rng),
				Label: domain.ActionLabels[rng.Intn(len(domain.ActionLabels))],
				Depth: 1,
			})
		}
		mustAdd(c, NewBehaviorTreeGene(tracker, nodes))
	}

	if len(domain.StateLabels) >= 2 {
		perm := rng.Perm(len(domain.StateLabels))
		count := 2 + rng.Intn(min(3, len(domain.StateLabels)-1))
		if count > len(domain.StateLabels) {
			count = len(domain.StateLabels)
		}
		states := make([]string, 0, count)
		for _, idx := range perm[:count] {
			states = append(states, domain.StateLabels[idx])
		}
		var transitions [][2]string
		for i := 0; i < len(states)-1; i++ {
			transitions = append(transitions, [2]string{states[i], states[i+1]})
		}
		mustAdd(c, NewStateMachineGene(tracker, states, transitions))
	}

	for _, spec := range domain.NumericSpecs {
		value := spec.Min + rng.Float64()*(spec.Max-spec.Min)
		mustAdd(c, NewNumericGene(tracker, spec, value))
	}

	return c
}

// mustAdd panics on duplicate innovation numbers; signatures inside one
// chromosome are distinct by construction, so this never fires for
// domain-driven initialization.
func mustAdd(c *Chromosome, g Gene) {
	if err := c.AddGene(g); err != nil {
		panic(err)
	}
}
