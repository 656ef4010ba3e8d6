package stage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tjfontaine/agent-pipeline/internal/core/ports"
)

// Loop executes its child sequence as one sequential pass, up to a maximum
// number of iterations. The loop is exhaustive: absent an explicitly
// configured stop sentinel it always runs all iterations, regardless of
// what the children produce. Each iteration observes the state bag as left
// by the previous one.
type Loop struct {
	name          string
	children      []ports.Stage
	maxIterations int
	stopKey       string
	stopValue     string
}

var _ ports.Stage = (*Loop)(nil)

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithStopValue enables early termination: after each full pass the loop
// stops if the named state key equals value. This is an explicit opt-in;
// the default loop runs every iteration.
func WithStopValue(key, value string) LoopOption {
	return func(l *Loop) {
		l.stopKey = key
		l.stopValue = value
	}
}

// NewLoop creates a bounded repeated chain running the children up to
// maxIterations times.
func NewLoop(name string, maxIterations int, children []ports.Stage, opts ...LoopOption) *Loop {
	l := &Loop{
		name:          name,
		children:      children,
		maxIterations: maxIterations,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name implements ports.Stage.
func (l *Loop) Name() string { return l.name }

// Run implements ports.Stage.
func (l *Loop) Run(ctx context.Context, rc *ports.RunContext) error {
	for i := 1; i <= l.maxIterations; i++ {
		for _, child := range l.children {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := child.Run(ctx, rc); err != nil {
				return fmt.Errorf("stage %s (iteration %d): %w", child.Name(), i, err)
			}
		}
		if l.shouldStop(rc) {
			rc.Logger.Debug("loop stopped on sentinel",
				slog.String("stage", l.name),
				slog.String("key", l.stopKey),
				slog.Int("iteration", i))
			return nil
		}
	}
	return nil
}

func (l *Loop) shouldStop(rc *ports.RunContext) bool {
	if l.stopKey == "" {
		return false
	}
	v, ok := rc.Session.State.Get(l.stopKey)
	return ok && v == l.stopValue
}
