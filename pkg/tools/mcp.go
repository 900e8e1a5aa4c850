package tools

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/XiaoConstantine/mcp-go/pkg/client"
	mcplogging "github.com/XiaoConstantine/mcp-go/pkg/logging"
	models "github.com/XiaoConstantine/mcp-go/pkg/model"
	"github.com/XiaoConstantine/mcp-go/pkg/transport"

	"github.com/XiaoConstantine/evoagent-go/pkg/core"
	"github.com/XiaoConstantine/evoagent-go/pkg/errors"
	"github.com/XiaoConstantine/evoagent-go/pkg/logging"
)

// MCPClient is the slice of the MCP client surface the catalog needs.
// *client.Client satisfies it; tests substitute their own.
type MCPClient interface {
	ListTools(ctx context.Context, cursor *models.Cursor) (*models.ListToolsResult, error)
	CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*models.CallToolResult, error)
}

// MCPTool represents a tool that delegates to an MCP server.
type MCPTool struct {
	schema      models.InputSchema
	client      MCPClient
	toolName    string
	metadata    *core.ToolMetadata
	matchCutoff float64
}

// NewMCPTool creates a new MCP-based tool.
func NewMCPTool(name, description string, schema models.InputSchema, client MCPClient, toolName string) *MCPTool {
	metadata := &core.ToolMetadata{
		Name:         name,
		Description:  description,
		InputSchema:  summarizeSchema(schema),
		Capabilities: extractCapabilities(description),
		Version:      "1.0.0",
	}

	return &MCPTool{
		schema:      schema,
		client:      client,
		toolName:    toolName,
		metadata:    metadata,
		matchCutoff: 0.3,
	}
}

// Metadata returns the tool's metadata for intent matching.
func (t *MCPTool) Metadata() *core.ToolMetadata {
	return t.metadata
}

// CanHandle checks if the tool can handle a specific action/intent.
func (t *MCPTool) CanHandle(ctx context.Context, intent string) bool {
	return calculateToolMatchScore(t.metadata, intent) >= t.matchCutoff
}

// Execute forwards the call to the MCP server and adapts the result to the
// core interface.
func (t *MCPTool) Execute(ctx context.Context, params map[string]interface{}) (core.ToolResult, error) {
	for name, param := range t.schema.Properties {
		if param.Required {
			if _, exists := params[name]; !exists {
				return core.ToolResult{}, errors.WithFields(
					errors.New(errors.InvalidInput, "missing required parameter"),
					errors.Fields{"parameter": name, "tool_name": t.metadata.Name})
			}
		}
	}

	result, err := t.client.CallTool(ctx, t.toolName, convertMCPParams(ctx, t.schema, params))
	if err != nil {
		return core.ToolResult{}, errors.Wrap(err, errors.Unknown, "MCP tool call failed")
	}

	return core.ToolResult{
		Data:        extractContentText(result.Content),
		Metadata:    map[string]interface{}{"isError": result.IsError},
		Annotations: map[string]interface{}{},
	}, nil
}

var _ core.Tool = (*MCPTool)(nil)

// MCPClientOptions contains configuration options for creating an MCP client.
type MCPClientOptions struct {
	ClientName    string
	ClientVersion string
	Logger        mcplogging.Logger
}

// NewMCPClientFromStdio creates a new MCP client using standard I/O for
// communication. This is useful for connecting to an MCP server launched as
// a subprocess.
func NewMCPClientFromStdio(reader io.Reader, writer io.Writer, options MCPClientOptions) (*client.Client, error) {
	logger := options.Logger
	if logger == nil {
		logger = mcplogging.NewStdLogger(mcplogging.InfoLevel)
	}

	t := transport.NewStdioTransport(reader, writer, logger)

	clientOptions := []client.Option{
		client.WithLogger(logger),
	}
	if options.ClientName != "" && options.ClientVersion != "" {
		clientOptions = append(clientOptions, client.WithClientInfo(options.ClientName, options.ClientVersion))
	}

	mcpClient := client.NewClient(t, clientOptions...)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := mcpClient.Initialize(ctx); err != nil {
		return nil, err
	}

	return mcpClient, nil
}

// RegisterMCPTools discovers all tools an MCP server advertises and registers
// them in the catalog, bridging them to the local tool interface. Afterwards
// Catalog.Names carries the discovered names into the evolvable tool domain.
func RegisterMCPTools(catalog *Catalog, mcpClient MCPClient) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	toolsResult, err := mcpClient.ListTools(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.Unknown, "failed to list MCP tools")
	}

	for _, mcpTool := range toolsResult.Tools {
		tool := NewMCPTool(
			mcpTool.Name,
			mcpTool.Description,
			mcpTool.InputSchema,
			mcpClient,
			mcpTool.Name,
		)

		if err := catalog.Register(tool); err != nil {
			return err
		}
	}

	return nil
}

// summarizeSchema flattens an MCP input schema into the name-to-type map the
// core metadata carries.
func summarizeSchema(schema models.InputSchema) map[string]string {
	summary := make(map[string]string, len(schema.Properties))
	for name, prop := range schema.Properties {
		summary[name] = prop.Type
	}
	return summary
}

// convertMCPParams attempts to convert parameter values based on the provided
// MCP schema. It prioritizes converting strings to numbers/integers if the
// schema specifies.
func convertMCPParams(ctx context.Context, schema models.InputSchema, params map[string]interface{}) map[string]interface{} {
	logger := logging.GetLogger()
	convertedParams := make(map[string]interface{})

	for key, value := range params {
		convertedParams[key] = value

		prop, schemaHasKey := schema.Properties[key]
		if !schemaHasKey {
			continue
		}

		expectedType := strings.ToLower(prop.Type)
		currentValueStr, isString := value.(string)
		if !isString {
			continue
		}

		var conversionErr error
		switch expectedType {
		case "number", "float":
			if floatVal, err := strconv.ParseFloat(currentValueStr, 64); err == nil {
				convertedParams[key] = floatVal
			} else {
				conversionErr = err
			}
		case "integer":
			if intVal, err := strconv.Atoi(currentValueStr); err == nil {
				convertedParams[key] = intVal
			} else {
				conversionErr = err
			}
		}

		if conversionErr != nil {
			logger.Warn(ctx, "Failed to convert param '%s' ('%s') to expected type '%s': %v. Using original string.", key, currentValueStr, prop.Type, conversionErr)
		}
	}
	return convertedParams
}

// extractContentText collects the text blocks of an MCP content array.
func extractContentText(content []models.Content) string {
	var result strings.Builder

	for _, item := range content {
		if textContent, ok := item.(models.TextContent); ok {
			if result.Len() > 0 {
				result.WriteString("\n")
			}
			result.WriteString(textContent.Text)
		}
	}

	return result.String()
}

// extractCapabilities derives capability keywords from a description.
func extractCapabilities(description string) []string {
	capabilities := []string{}

	keywords := []string{"search", "query", "calculate", "fetch", "retrieve",
		"find", "create", "update", "delete", "read", "write", "execute"}

	descLower := strings.ToLower(description)
	for _, keyword := range keywords {
		if strings.Contains(descLower, keyword) {
			capabilities = append(capabilities, keyword)
		}
	}

	return capabilities
}

// calculateToolMatchScore determines how well a tool matches an action.
func calculateToolMatchScore(metadata *core.ToolMetadata, action string) float64 {
	score := 0.1
	actionLower := strings.ToLower(action)

	if strings.Contains(actionLower, strings.ToLower(metadata.Name)) {
		score += 0.5
	}

	for _, capability := range metadata.Capabilities {
		if strings.Contains(actionLower, strings.ToLower(capability)) {
			score += 0.3
		}
	}

	return score
}
