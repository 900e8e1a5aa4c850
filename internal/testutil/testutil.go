// Package testutil provides scripted collaborator doubles shared by the
// evaluation and evolution tests.
package testutil

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/XiaoConstantine/evoagent-go/pkg/core"
)

// ScriptedLLM implements core.LLM with a canned reply or error. It records
// the last prompt it saw; callers driving it from multiple goroutines should
// only inspect Calls.
type ScriptedLLM struct {
	Reply      string
	Err        error
	Calls      atomic.Int32
	LastPrompt string
}

func (s *ScriptedLLM) Generate(ctx context.Context, prompt string, opts ...core.GenerateOption) (*core.LLMResponse, error) {
	s.Calls.Add(1)
	s.LastPrompt = prompt
	if s.Err != nil {
		return nil, s.Err
	}
	return &core.LLMResponse{Content: s.Reply}, nil
}

func (s *ScriptedLLM) GenerateWithJSON(ctx context.Context, prompt string, opts ...core.GenerateOption) (map[string]interface{}, error) {
	s.Calls.Add(1)
	if s.Err != nil {
		return nil, s.Err
	}
	return map[string]interface{}{"content": s.Reply}, nil
}

func (s *ScriptedLLM) ProviderName() string            { return "scripted" }
func (s *ScriptedLLM) ModelID() string                 { return "scripted-model" }
func (s *ScriptedLLM) Capabilities() []core.Capability { return nil }

// ScriptedExecutor implements core.AgentExecutor by delegating to Fn and
// counting invocations.
type ScriptedExecutor struct {
	Fn    func(ctx context.Context, agent core.AgentBlueprint, input map[string]interface{}) (*core.InvokeResult, error)
	Calls atomic.Int32
}

func (s *ScriptedExecutor) Invoke(ctx context.Context, agent core.AgentBlueprint, input map[string]interface{}) (*core.InvokeResult, error) {
	s.Calls.Add(1)
	return s.Fn(ctx, agent, input)
}

// PassingExecutor invokes agents that always succeed with the given output
// and a small fixed cost.
func PassingExecutor(output string) *ScriptedExecutor {
	return &ScriptedExecutor{
		Fn: func(ctx context.Context, agent core.AgentBlueprint, input map[string]interface{}) (*core.InvokeResult, error) {
			return &core.InvokeResult{
				Output:   output,
				Success:  true,
				Usage:    &core.TokenInfo{PromptTokens: 600, CompletionTokens: 400, TotalTokens: 1000},
				Duration: time.Second,
				CostUSD:  0.01,
				Trace: &core.AgentTrace{
					Steps:     3,
					ToolCalls: []string{"calculator"},
					States:    []string{"plan", "act", "done"},
				},
			}, nil
		},
	}
}
