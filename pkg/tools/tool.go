package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tool is the interface for all tools
type Tool interface {
	Name() string
	Description() string
	// Params returns a pointer to the argument struct; its JSON schema is what
	// the model sees.
	Params() any
	Run(ctx context.Context, args map[string]any) (string, error)
}

// Definition is the model-facing description of a tool.
type Definition struct {
	Name        string
	Description string
	Parameters  any
}

// Describe builds the Definition of t.
func Describe(t Tool) Definition {
	return Definition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  GenerateSchema(t.Params()),
	}
}

// decodeArgs maps a tool call's argument mapping onto the tool's arg struct.
func decodeArgs[T any](args map[string]any) (T, error) {
	var out T
	b, err := json.Marshal(args)
	if err != nil {
		return out, fmt.Errorf("encode tool arguments: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("parse tool arguments: %w", err)
	}
	return out, nil
}
