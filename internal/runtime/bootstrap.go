package runtime

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tjfontaine/agent-pipeline/internal/backend/gemini"
	"github.com/tjfontaine/agent-pipeline/internal/config"
	"github.com/tjfontaine/agent-pipeline/internal/core/ports"
	"github.com/tjfontaine/agent-pipeline/internal/stage"
	"github.com/tjfontaine/agent-pipeline/internal/tokens"
	"github.com/tjfontaine/agent-pipeline/internal/toolbridge"
	"github.com/tjfontaine/agent-pipeline/internal/tools"
)

// FromConfig assembles an Orchestrator from loaded configuration: the
// builtin tool registry, the declared stage tree, the Gemini backend, and
// the configured session store.
func FromConfig(cfg *config.Config, logger *slog.Logger) (*Orchestrator, error) {
	if cfg.Backend.Gemini.APIKey == "" {
		return nil, fmt.Errorf("backend.gemini.api_key is required (set PIPE_BACKEND__GEMINI__API_KEY or GOOGLE_API_KEY in config)")
	}
	if logger == nil {
		logger = slog.Default()
	}

	registry := map[string]ports.Tool{}
	for _, t := range []ports.Tool{tools.NewWebSearch(), tools.NewValueLookup()} {
		registry[t.Name()] = t
	}

	var counter tokens.Counter
	if tc, err := tokens.NewTiktokenCounter(); err != nil {
		logger.Warn("tokenizer unavailable, using size estimator", slog.String("error", err.Error()))
		counter = tokens.Estimator{}
	} else {
		counter = tc
	}

	root, err := stage.Build(cfg.Pipeline, stage.BuildOptions{
		Tools:   registry,
		Bridge:  toolbridge.New(toolbridge.WithLogger(logger)),
		Counter: counter,
	})
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	var clientOpts []gemini.ClientOption
	if cfg.Backend.Gemini.BaseURL != "" {
		clientOpts = append(clientOpts, gemini.WithBaseURL(cfg.Backend.Gemini.BaseURL))
	}
	backend := gemini.New(
		gemini.NewClient(cfg.Backend.Gemini.APIKey, clientOpts...),
		gemini.WithModel(cfg.Backend.Gemini.Model),
	)

	opts := []Option{
		WithAppName(cfg.App.Name),
		WithRootStage(root),
		WithBackend(backend),
		WithLogger(logger),
	}

	switch cfg.Storage.Type {
	case "", "memory":
		opts = append(opts, WithMemoryStore())
	case "sqlite":
		opts = append(opts, WithSQLiteStore(cfg.Storage.SQLite.Path))
	case "redis":
		ttl := time.Duration(cfg.Storage.Redis.TTLSeconds) * time.Second
		opts = append(opts, WithRedisStore(cfg.Storage.Redis.URL, ttl))
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}

	return New(opts...)
}
