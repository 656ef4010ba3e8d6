package ports

import (
	"context"
	"log/slog"
	"time"

	"github.com/tjfontaine/agent-pipeline/internal/core/domain"
)

// Stage is one composable unit of the pipeline: a single generation call
// (leaf), an ordered chain (sequential), or a bounded repeated chain
// (loop). Stages are immutable configuration, constructed once at startup
// and shared read-only across concurrent invocations; all mutable state
// lives in the RunContext.
type Stage interface {
	// Name returns the stage's unique identifier.
	Name() string

	// Run executes the stage against the invocation's session. It may append
	// turns and write its declared output key into the session state bag;
	// failures abort the run and unwind to the orchestrator.
	Run(ctx context.Context, rc *RunContext) error
}

// RunContext carries the per-invocation state and collaborators handed to
// every stage of one run. It is owned by a single invocation and is not
// safe for concurrent use.
type RunContext struct {
	Session *domain.Session
	Backend GenerationBackend
	Logger  *slog.Logger

	// Store persists appended turns as they are produced. A nil store keeps
	// the run purely in-memory (used for isolated tool sub-runs).
	Store SessionStore

	produced []domain.Turn
	lastStep []domain.Turn
}

// NewRunContext creates the context for one invocation against session.
func NewRunContext(session *domain.Session, backend GenerationBackend, store SessionStore, logger *slog.Logger) *RunContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunContext{
		Session: session,
		Backend: backend,
		Store:   store,
		Logger:  logger,
	}
}

// AppendTurn stamps, appends, and persists one transcript turn. Turns are
// appended in strict call order; there is no reordering or coalescing.
func (rc *RunContext) AppendTurn(ctx context.Context, t domain.Turn) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	rc.Session.Append(t)
	rc.produced = append(rc.produced, t)
	if rc.Store != nil {
		if err := rc.Store.AppendTurn(ctx, rc.Session.Key, t); err != nil {
			return err
		}
	}
	return nil
}

// Produced returns every turn appended during this invocation so far.
func (rc *RunContext) Produced() []domain.Turn {
	return rc.produced
}

// StepStart returns a marker for the current transcript position. A leaf
// records it before generating and passes it to MarkStep afterwards.
func (rc *RunContext) StepStart() int {
	return len(rc.produced)
}

// MarkStep records the turns appended since start as the most recent stage
// step. The last step marked before the run finishes is the one whose text
// becomes the invocation's output.
func (rc *RunContext) MarkStep(start int) {
	if start < 0 || start > len(rc.produced) {
		return
	}
	rc.lastStep = rc.produced[start:]
}

// FinalOutput concatenates the text of every turn in the final stage step,
// in production order, joined by newlines. Empty when the run produced no
// steps.
func (rc *RunContext) FinalOutput() string {
	out := ""
	for i, t := range rc.lastStep {
		if i > 0 {
			out += "\n"
		}
		out += t.Text
	}
	return out
}
