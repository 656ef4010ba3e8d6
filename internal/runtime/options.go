package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tjfontaine/agent-pipeline/internal/core/ports"
	"github.com/tjfontaine/agent-pipeline/internal/session/memory"
	redisstore "github.com/tjfontaine/agent-pipeline/internal/session/redis"
	sqlitestore "github.com/tjfontaine/agent-pipeline/internal/session/sqlite"
)

// Option is a functional option for configuring an Orchestrator.
type Option func(*Orchestrator) error

// WithAppName sets the application name used in session identities.
func WithAppName(name string) Option {
	return func(o *Orchestrator) error {
		if name == "" {
			return fmt.Errorf("app name must not be empty")
		}
		o.appName = name
		return nil
	}
}

// WithRootStage sets the root stage the orchestrator drives.
func WithRootStage(root ports.Stage) Option {
	return func(o *Orchestrator) error {
		o.root = root
		return nil
	}
}

// WithBackend sets the generation backend.
func WithBackend(backend ports.GenerationBackend) Option {
	return func(o *Orchestrator) error {
		o.backend = backend
		return nil
	}
}

// WithMemoryStore uses the in-memory session store (default for
// single-process deployments; sessions live for the process lifetime).
func WithMemoryStore() Option {
	return func(o *Orchestrator) error {
		o.store = memory.New()
		return nil
	}
}

// WithSQLiteStore uses SQLite-backed durable sessions.
func WithSQLiteStore(path string) Option {
	return func(o *Orchestrator) error {
		store, err := sqlitestore.New(path)
		if err != nil {
			return fmt.Errorf("create sqlite session store: %w", err)
		}
		o.store = store
		return nil
	}
}

// WithRedisStore uses Redis-backed sessions with the given TTL.
func WithRedisStore(url string, ttl time.Duration) Option {
	return func(o *Orchestrator) error {
		store, err := redisstore.New(context.Background(), url, ttl)
		if err != nil {
			return fmt.Errorf("create redis session store: %w", err)
		}
		o.store = store
		return nil
	}
}

// WithSessionStore sets a custom session store.
func WithSessionStore(store ports.SessionStore) Option {
	return func(o *Orchestrator) error {
		o.store = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		o.logger = logger
		return nil
	}
}
