package ports

import (
	"context"

	"github.com/tjfontaine/agent-pipeline/internal/core/domain"
)

// Tool is a synchronous unit of delegated work a stage may expose to the
// generation backend. Implementations should be idempotent-safe to retry at
// the caller's discretion; the bridge itself never retries.
type Tool interface {
	// Name returns the identifier the backend uses to request this tool.
	Name() string

	// Descriptor declares the tool to the generation backend.
	Descriptor() domain.ToolDescriptor

	// Invoke executes the tool with the backend-supplied arguments.
	Invoke(ctx context.Context, args map[string]any) (map[string]any, error)
}
