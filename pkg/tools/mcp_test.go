package tools

import (
	"context"
	"testing"

	models "github.com/XiaoConstantine/mcp-go/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/evoagent-go/pkg/errors"
)

// mockMCPClient scripts the two MCP calls the catalog uses.
type mockMCPClient struct {
	listToolsFunc func(ctx context.Context, cursor *models.Cursor) (*models.ListToolsResult, error)
	callToolFunc  func(ctx context.Context, name string, args map[string]interface{}) (*models.CallToolResult, error)
	lastArgs      map[string]interface{}
}

func (m *mockMCPClient) ListTools(ctx context.Context, cursor *models.Cursor) (*models.ListToolsResult, error) {
	if m.listToolsFunc != nil {
		return m.listToolsFunc(ctx, cursor)
	}
	return &models.ListToolsResult{}, nil
}

func (m *mockMCPClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*models.CallToolResult, error) {
	m.lastArgs = args
	if m.callToolFunc != nil {
		return m.callToolFunc(ctx, name, args)
	}
	return &models.CallToolResult{
		Content: []models.Content{models.TextContent{Text: "ok"}},
	}, nil
}

func searchSchema() models.InputSchema {
	return models.InputSchema{
		Type: "object",
		Properties: map[string]models.ParameterSchema{
			"query": {Type: "string", Required: true},
			"limit": {Type: "integer"},
		},
	}
}

func TestRegisterMCPTools(t *testing.T) {
	client := &mockMCPClient{
		listToolsFunc: func(ctx context.Context, cursor *models.Cursor) (*models.ListToolsResult, error) {
			return &models.ListToolsResult{
				Tools: []models.Tool{
					{Name: "web_search", Description: "search the web", InputSchema: searchSchema()},
					{Name: "file_read", Description: "read a file", InputSchema: models.InputSchema{Type: "object"}},
				},
			}, nil
		},
	}

	catalog := NewCatalog()
	require.NoError(t, RegisterMCPTools(catalog, client))

	assert.Equal(t, []string{"file_read", "web_search"}, catalog.Names())

	tool, err := catalog.Get("web_search")
	require.NoError(t, err)
	assert.Equal(t, "string", tool.Metadata().InputSchema["query"])
}

func TestRegisterMCPToolsListFailure(t *testing.T) {
	client := &mockMCPClient{
		listToolsFunc: func(ctx context.Context, cursor *models.Cursor) (*models.ListToolsResult, error) {
			return nil, errors.New(errors.Timeout, "server unreachable")
		},
	}

	err := RegisterMCPTools(NewCatalog(), client)
	assert.Error(t, err)
}

func TestMCPToolExecute(t *testing.T) {
	client := &mockMCPClient{
		callToolFunc: func(ctx context.Context, name string, args map[string]interface{}) (*models.CallToolResult, error) {
			assert.Equal(t, "web_search", name)
			return &models.CallToolResult{
				Content: []models.Content{
					models.TextContent{Text: "first result"},
					models.TextContent{Text: "second result"},
				},
			}, nil
		},
	}
	tool := NewMCPTool("web_search", "search the web", searchSchema(), client, "web_search")

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"query": "population of France",
		"limit": "3",
	})
	require.NoError(t, err)
	assert.Equal(t, "first result\nsecond result", result.Data)
	assert.Equal(t, false, result.Metadata["isError"])

	// String parameters are coerced to the schema's declared types.
	assert.Equal(t, 3, client.lastArgs["limit"])
	assert.Equal(t, "population of France", client.lastArgs["query"])
}

func TestMCPToolExecuteMissingRequired(t *testing.T) {
	tool := NewMCPTool("web_search", "search the web", searchSchema(), &mockMCPClient{}, "web_search")

	_, err := tool.Execute(context.Background(), map[string]interface{}{"limit": 3})
	require.Error(t, err)
	assert.Equal(t, errors.InvalidInput, errors.CodeOf(err))
}

func TestMCPToolCanHandle(t *testing.T) {
	tool := NewMCPTool("web_search", "search and retrieve web pages", searchSchema(), &mockMCPClient{}, "web_search")

	assert.True(t, tool.CanHandle(context.Background(), "search the web for recent news"))
	assert.False(t, tool.CanHandle(context.Background(), "summarize this document"))
}
