package toolbridge

import (
	"context"

	"github.com/tjfontaine/agent-pipeline/internal/core/domain"
	"github.com/tjfontaine/agent-pipeline/internal/core/ports"
)

// FuncTool adapts a plain Go function into a ports.Tool.
type FuncTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, args map[string]any) (map[string]any, error)
}

var _ ports.Tool = (*FuncTool)(nil)

// NewFunc creates a function-backed tool. parameters is the JSON Schema
// advertised to the backend and may be nil for argument-free tools.
func NewFunc(name, description string, parameters map[string]any, fn func(ctx context.Context, args map[string]any) (map[string]any, error)) *FuncTool {
	return &FuncTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// Name implements ports.Tool.
func (t *FuncTool) Name() string { return t.name }

// Descriptor implements ports.Tool.
func (t *FuncTool) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        t.name,
		Description: t.description,
		Parameters:  t.parameters,
	}
}

// Invoke implements ports.Tool.
func (t *FuncTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	return t.fn(ctx, args)
}
