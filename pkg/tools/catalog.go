// Package tools maintains the catalog of capabilities evolved agents may be
// granted. The catalog implements core.ToolRegistry; its sorted name list is
// what callers feed into a genome Domain so tool-config genes only draw
// tools that actually exist. Tools come from local Go functions or from MCP
// servers discovered at startup.
package tools

import (
	"sort"
	"strings"
	"sync"

	"github.com/XiaoConstantine/evoagent-go/pkg/core"
	"github.com/XiaoConstantine/evoagent-go/pkg/errors"
)

// Catalog is an in-memory core.ToolRegistry.
type Catalog struct {
	mu    sync.RWMutex
	tools map[string]core.Tool
}

// NewCatalog creates a new, empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		tools: make(map[string]core.Tool),
	}
}

// Register adds a tool to the catalog. It returns an error if a tool with
// the same name already exists.
func (c *Catalog) Register(tool core.Tool) error {
	if tool == nil {
		return errors.New(errors.InvalidInput, "cannot register a nil tool")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	name := tool.Metadata().Name
	if _, exists := c.tools[name]; exists {
		return errors.WithFields(errors.New(errors.InvalidInput, "tool already registered"), errors.Fields{
			"tool_name": name,
		})
	}

	c.tools[name] = tool
	return nil
}

// Get retrieves a tool by its name.
func (c *Catalog) Get(name string) (core.Tool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tool, exists := c.tools[name]
	if !exists {
		return nil, errors.WithFields(errors.New(errors.ResourceNotFound, "tool not found"), errors.Fields{
			"tool_name": name,
		})
	}
	return tool, nil
}

// List returns a slice of all registered tools. The order is not guaranteed.
func (c *Catalog) List() []core.Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	list := make([]core.Tool, 0, len(c.tools))
	for _, tool := range c.tools {
		list = append(list, tool)
	}
	return list
}

// Match finds tools whose name appears in the given intent string,
// case-insensitively.
func (c *Catalog) Match(intent string) []core.Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var matches []core.Tool
	lowerIntent := strings.ToLower(intent)

	for name, tool := range c.tools {
		if strings.Contains(lowerIntent, strings.ToLower(name)) {
			matches = append(matches, tool)
		}
	}
	return matches
}

// Names returns all registered tool names in sorted order. This is the list
// callers hand to a genome Domain as the tool-config gene value space.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.tools))
	for name := range c.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var _ core.ToolRegistry = (*Catalog)(nil)
