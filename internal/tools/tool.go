// Package tools holds the search tools the answering engine may call.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tool is a function the model can invoke by name with JSON arguments.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON schema of the arguments object.
	Parameters() map[string]any
	Call(ctx context.Context, args json.RawMessage) (any, error)
}

// Set is an ordered collection of tools addressable by name.
type Set []Tool

// Lookup returns the tool registered under name.
func (s Set) Lookup(name string) (Tool, bool) {
	for _, t := range s {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// Names lists tool names in registration order.
func (s Set) Names() []string {
	out := make([]string, 0, len(s))
	for _, t := range s {
		out = append(out, t.Name())
	}
	return out
}

func decodeArgs(args json.RawMessage, out any) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, out); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func stringParam(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}
