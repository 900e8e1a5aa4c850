package core

import "context"

// ToolMetadata contains information about a tool's capabilities and
// requirements. Tool-config genes draw their domain from registered tool
// names.
type ToolMetadata struct {
	Name         string            // Unique identifier for the tool
	Description  string            // Human-readable description
	InputSchema  map[string]string // Expected input parameter types
	Capabilities []string          // List of supported capabilities
	Version      string            // Tool version for compatibility
}

// Tool represents a capability an evolved agent may be granted.
type Tool interface {
	// Metadata returns the tool's metadata
	Metadata() *ToolMetadata

	// CanHandle checks if the tool can handle a specific action/intent
	CanHandle(ctx context.Context, intent string) bool

	// Execute runs the tool with provided parameters
	Execute(ctx context.Context, params map[string]interface{}) (ToolResult, error)
}

// ToolResult wraps tool execution results with metadata.
type ToolResult struct {
	Data        interface{}            // The actual result data
	Metadata    map[string]interface{} // Execution metadata (timing, resources used, etc)
	Annotations map[string]interface{} // Additional context for result interpretation
}

// ToolRegistry manages available tools.
type ToolRegistry interface {
	Register(tool Tool) error
	Get(name string) (Tool, error)
	List() []Tool
	Match(intent string) []Tool
}
