package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/evoagent-go/pkg/core"
	"github.com/XiaoConstantine/evoagent-go/pkg/errors"
)

func echoTool(name, description string) *FuncTool {
	return NewFuncTool(name, description, map[string]string{"input": "string"},
		func(ctx context.Context, params map[string]interface{}) (core.ToolResult, error) {
			return core.ToolResult{Data: params["input"]}, nil
		})
}

func TestCatalogRegisterAndGet(t *testing.T) {
	catalog := NewCatalog()

	tool := echoTool("calculator", "calculate arithmetic expressions")
	require.NoError(t, catalog.Register(tool))

	got, err := catalog.Get("calculator")
	require.NoError(t, err)
	assert.Equal(t, "calculator", got.Metadata().Name)

	t.Run("duplicate name rejected", func(t *testing.T) {
		err := catalog.Register(echoTool("calculator", "another calculator"))
		require.Error(t, err)
		assert.Equal(t, errors.InvalidInput, errors.CodeOf(err))
	})

	t.Run("nil tool rejected", func(t *testing.T) {
		assert.Error(t, catalog.Register(nil))
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := catalog.Get("missing")
		require.Error(t, err)
		assert.Equal(t, errors.ResourceNotFound, errors.CodeOf(err))
	})
}

func TestCatalogNames(t *testing.T) {
	catalog := NewCatalog()
	require.NoError(t, catalog.Register(echoTool("web_search", "search the web")))
	require.NoError(t, catalog.Register(echoTool("calculator", "calculate expressions")))
	require.NoError(t, catalog.Register(echoTool("file_read", "read files")))

	// Sorted, so the list is a stable gene value space.
	assert.Equal(t, []string{"calculator", "file_read", "web_search"}, catalog.Names())
}

func TestCatalogMatch(t *testing.T) {
	catalog := NewCatalog()
	require.NoError(t, catalog.Register(echoTool("web_search", "search the web")))
	require.NoError(t, catalog.Register(echoTool("calculator", "calculate expressions")))

	matches := catalog.Match("use web_search to find the population of France")
	require.Len(t, matches, 1)
	assert.Equal(t, "web_search", matches[0].Metadata().Name)

	assert.Empty(t, catalog.Match("no tool mentioned here"))
}

func TestFuncToolExecute(t *testing.T) {
	tool := echoTool("echo", "echo the input back")

	result, err := tool.Execute(context.Background(), map[string]interface{}{"input": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Data)

	t.Run("missing parameter", func(t *testing.T) {
		_, err := tool.Execute(context.Background(), map[string]interface{}{})
		require.Error(t, err)
		assert.Equal(t, errors.InvalidInput, errors.CodeOf(err))
	})
}

func TestFuncToolCanHandle(t *testing.T) {
	tool := echoTool("calculator", "calculate arithmetic expressions")

	assert.True(t, tool.CanHandle(context.Background(), "calculate 2+2 with the calculator"))
	assert.False(t, tool.CanHandle(context.Background(), "write a poem"))
}
