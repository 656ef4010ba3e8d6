package stage

import (
	"context"
	"fmt"

	"github.com/tjfontaine/agent-pipeline/internal/core/ports"
)

// Sequential executes its children strictly in list order. A child must
// finish before the next starts; the first failure aborts the remaining
// children. Later children observe every state bag write made by earlier
// ones.
type Sequential struct {
	name     string
	children []ports.Stage
}

var _ ports.Stage = (*Sequential)(nil)

// NewSequential creates an ordered chain of stages.
func NewSequential(name string, children ...ports.Stage) *Sequential {
	return &Sequential{name: name, children: children}
}

// Name implements ports.Stage.
func (s *Sequential) Name() string { return s.name }

// Run implements ports.Stage.
func (s *Sequential) Run(ctx context.Context, rc *ports.RunContext) error {
	for _, child := range s.children {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := child.Run(ctx, rc); err != nil {
			return fmt.Errorf("stage %s: %w", child.Name(), err)
		}
	}
	return nil
}
