package core

import (
	"context"
	"time"
)

// AgentBlueprint is the decoded, executable view of an evolved agent
// configuration. The engine never runs agents itself; it hands blueprints to
// an AgentExecutor supplied by the caller.
type AgentBlueprint struct {
	ChromosomeID string
	SystemPrompt string
	Tools        []string
	Strategy     string
	Model        ModelID
	Parameters   map[string]float64
	ControlFlow  *ControlFlowSpec
}

// ControlFlowSpec describes the structural shape of an agent's control flow,
// either a behavior tree or a state machine, in a canonical node/edge form.
type ControlFlowSpec struct {
	Kind  string   // "behavior_tree" or "state_machine"
	Nodes []string // node or state labels in canonical order
	Edges [][2]int // directed transitions between node indices
}

// InvokeResult carries the outcome of one agent invocation against one task
// input.
type InvokeResult struct {
	Output   string
	Success  bool
	Usage    *TokenInfo // nil when the executor cannot report usage
	Duration time.Duration
	CostUSD  float64
	Trace    *AgentTrace
}

// AgentTrace records the externally visible behavior of one invocation. It
// must carry enough signal to derive a behavior descriptor for novelty
// scoring.
type AgentTrace struct {
	Steps     int
	ToolCalls []string
	States    []string // visited control-flow nodes, when applicable
}

// AgentExecutor converts a blueprint into a runnable agent with external
// model and tool access and invokes it on a single input. Implementations
// are supplied by the caller; the engine only consumes this interface.
type AgentExecutor interface {
	Invoke(ctx context.Context, agent AgentBlueprint, input map[string]interface{}) (*InvokeResult, error)
}

// ProgressReporter receives informational stage updates from long-running
// engine phases. Reporting never gates engine behavior.
type ProgressReporter interface {
	Report(stage string, processed, total int)
}
