package tools

import (
	"context"

	"github.com/XiaoConstantine/evoagent-go/pkg/core"
	"github.com/XiaoConstantine/evoagent-go/pkg/errors"
)

// ToolFunc is a Go function exposed as a tool.
type ToolFunc func(ctx context.Context, params map[string]interface{}) (core.ToolResult, error)

// FuncTool wraps a Go function as a core.Tool implementation.
type FuncTool struct {
	fn          ToolFunc
	metadata    *core.ToolMetadata
	matchCutoff float64
}

// NewFuncTool creates a new function-based tool. The schema maps parameter
// names to their expected types.
func NewFuncTool(name, description string, schema map[string]string, fn ToolFunc) *FuncTool {
	metadata := &core.ToolMetadata{
		Name:         name,
		Description:  description,
		InputSchema:  schema,
		Capabilities: extractCapabilities(description),
		Version:      "1.0.0",
	}

	return &FuncTool{
		fn:          fn,
		metadata:    metadata,
		matchCutoff: 0.3,
	}
}

// Metadata returns the tool's metadata for intent matching.
func (t *FuncTool) Metadata() *core.ToolMetadata {
	return t.metadata
}

// CanHandle checks if the tool can handle a specific action/intent.
func (t *FuncTool) CanHandle(ctx context.Context, intent string) bool {
	return calculateToolMatchScore(t.metadata, intent) >= t.matchCutoff
}

// Execute runs the wrapped function with the provided parameters.
func (t *FuncTool) Execute(ctx context.Context, params map[string]interface{}) (core.ToolResult, error) {
	if err := t.validate(params); err != nil {
		return core.ToolResult{}, err
	}
	return t.fn(ctx, params)
}

// validate checks that every parameter named in the schema is present.
func (t *FuncTool) validate(params map[string]interface{}) error {
	for name := range t.metadata.InputSchema {
		if _, exists := params[name]; !exists {
			return errors.WithFields(
				errors.New(errors.InvalidInput, "missing required parameter"),
				errors.Fields{"parameter": name, "tool_name": t.metadata.Name})
		}
	}
	return nil
}

var _ core.Tool = (*FuncTool)(nil)
