// Package runtime provides the pipeline Orchestrator: it owns the root
// stage, the session store, and the generation backend, and drives one
// end-to-end invocation per Invoke call.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/agent-pipeline/internal/core/domain"
	"github.com/tjfontaine/agent-pipeline/internal/core/ports"
	"github.com/tjfontaine/agent-pipeline/internal/session/memory"
)

// Orchestrator is the invocation entry point for a configured pipeline.
// Stage configuration is immutable and shared; invocations for distinct
// session identities run concurrently, while invocations against the same
// identity are serialized.
type Orchestrator struct {
	appName string
	root    ports.Stage
	store   ports.SessionStore
	backend ports.GenerationBackend
	logger  *slog.Logger
	tracer  trace.Tracer

	mu    sync.Mutex
	locks map[domain.SessionKey]*sessionLock
}

// sessionLock serializes invocations for one identity. refs counts holders
// and waiters so the entry can be dropped once the identity goes idle.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// New creates an Orchestrator from the given options. A root stage and a
// generation backend are required; the store defaults to in-memory.
func New(opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		appName: "agent-pipeline",
		logger:  slog.Default(),
		tracer:  otel.Tracer("agent-pipeline/runtime"),
		locks:   make(map[domain.SessionKey]*sessionLock),
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if o.root == nil {
		return nil, fmt.Errorf("root stage required (use WithRootStage)")
	}
	if o.backend == nil {
		return nil, fmt.Errorf("generation backend required (use WithBackend)")
	}
	if o.store == nil {
		o.logger.Info("no session store specified, using in-memory store")
		o.store = memory.New()
	}

	return o, nil
}

// Invoke runs one end-to-end invocation: resolve or create the session,
// append the user turn, run the root stage, and return the text of the
// final stage step. It is safe to call repeatedly with the same session
// identity; each call continues the same transcript and state bag.
func (o *Orchestrator) Invoke(ctx context.Context, text, sessionID, userID string) (string, error) {
	key := domain.SessionKey{AppName: o.appName, UserID: userID, SessionID: sessionID}

	unlock := o.lockSession(key)
	defer unlock()

	ctx, span := o.tracer.Start(ctx, "pipeline.invoke",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("user.id", userID),
		))
	defer span.End()

	sess, err := o.store.GetOrCreate(ctx, key)
	if err != nil {
		span.RecordError(err)
		return "", domain.AsError(fmt.Errorf("get or create session: %w", err), "")
	}

	rc := ports.NewRunContext(sess, o.backend, o.store, o.logger)
	if err := rc.AppendTurn(ctx, domain.Turn{Role: domain.RoleUser, Text: text}); err != nil {
		span.RecordError(err)
		return "", domain.AsError(fmt.Errorf("append user turn: %w", err), "")
	}

	if err := o.root.Run(ctx, rc); err != nil {
		perr := domain.AsError(err, o.root.Name())
		span.RecordError(perr)
		span.SetStatus(codes.Error, string(perr.Kind))
		o.logger.Error("invocation failed",
			slog.String("session_id", sessionID),
			slog.String("user_id", userID),
			slog.String("kind", string(perr.Kind)),
			slog.String("stage", perr.Stage),
			slog.String("error", perr.Message))
		return "", perr
	}

	if err := o.store.SaveState(ctx, key, sess.State); err != nil {
		span.RecordError(err)
		return "", domain.AsError(fmt.Errorf("save session state: %w", err), "")
	}

	out := rc.FinalOutput()
	o.logger.Info("invocation completed",
		slog.String("session_id", sessionID),
		slog.String("user_id", userID),
		slog.Int("turns", len(rc.Produced())))
	return out, nil
}

// WarmSession pre-creates (or fetches) the session for an identity without
// running the pipeline.
func (o *Orchestrator) WarmSession(ctx context.Context, sessionID, userID string) (*domain.Session, error) {
	key := domain.SessionKey{AppName: o.appName, UserID: userID, SessionID: sessionID}
	return o.store.GetOrCreate(ctx, key)
}

// Session returns an existing session for inspection, or
// ports.ErrSessionNotFound.
func (o *Orchestrator) Session(ctx context.Context, sessionID, userID string) (*domain.Session, error) {
	key := domain.SessionKey{AppName: o.appName, UserID: userID, SessionID: sessionID}
	return o.store.Get(ctx, key)
}

// Shutdown releases the orchestrator's resources.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.logger.Info("shutting down orchestrator")
	if err := o.store.Close(); err != nil {
		o.logger.Error("failed to close session store", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// lockSession serializes invocations per session identity. Locks for
// distinct identities are independent, so long-latency backend calls in
// one session never block another. Lock entries are reference counted and
// removed when the last holder releases, so idle identities never
// accumulate in the map.
func (o *Orchestrator) lockSession(key domain.SessionKey) func() {
	o.mu.Lock()
	lock, ok := o.locks[key]
	if !ok {
		lock = &sessionLock{}
		o.locks[key] = lock
	}
	lock.refs++
	o.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		o.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(o.locks, key)
		}
		o.mu.Unlock()
	}
}
