// Package ports defines the interfaces between the orchestrator core and
// its collaborators: generation backends, tools, session stores, and the
// stage contract itself.
package ports

import (
	"context"

	"github.com/tjfontaine/agent-pipeline/internal/core/domain"
)

// GenerationBackend produces text from a role-tagged conversation and a
// resolved stage instruction. Calls are synchronous and potentially
// long-latency; implementations must honor ctx cancellation. Failures are
// returned as errors, never panics.
type GenerationBackend interface {
	Generate(ctx context.Context, req *domain.GenerationRequest) (*domain.GenerationResult, error)
}
