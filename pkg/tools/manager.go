package tools

import (
	"fmt"
	"slices"
	"strings"
)

// ToolManager manages the available tools
type ToolManager struct {
	tools map[string]Tool
}

// NewToolManager creates a new ToolManager
func NewToolManager(tools ...Tool) *ToolManager {
	m := &ToolManager{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		m.RegisterTool(t)
	}
	return m
}

// RegisterTool registers a new tool
func (m *ToolManager) RegisterTool(tool Tool) {
	m.tools[tool.Name()] = tool
}

// GetTool retrieves a tool by name
func (m *ToolManager) GetTool(name string) (Tool, error) {
	tool, ok := m.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return tool, nil
}

// List returns all registered tools ordered by name
func (m *ToolManager) List() []Tool {
	ts := make([]Tool, 0, len(m.tools))
	for _, t := range m.tools {
		ts = append(ts, t)
	}
	slices.SortFunc(ts, func(a, b Tool) int { return strings.Compare(a.Name(), b.Name()) })
	return ts
}

// Definitions describes the named tools, the set a model may call in one step.
func (m *ToolManager) Definitions(names ...string) ([]Definition, error) {
	defs := make([]Definition, 0, len(names))
	for _, n := range names {
		t, err := m.GetTool(n)
		if err != nil {
			return nil, err
		}
		defs = append(defs, Describe(t))
	}
	return defs, nil
}
