// Package pipeline provides the public API for embedding the agent
// pipeline. This is the stable API for external consumers.
package pipeline

import (
	"github.com/tjfontaine/agent-pipeline/internal/runtime"
)

// Orchestrator is the main entry point for running a pipeline.
// See internal/runtime.Orchestrator for full documentation.
type Orchestrator = runtime.Orchestrator

// Option is a functional option for configuring an Orchestrator.
type Option = runtime.Option

// New creates a new Orchestrator with the given options.
// Example:
//
//	orc, err := pipeline.New(
//	    pipeline.WithRootStage(root),
//	    pipeline.WithBackend(backend),
//	    pipeline.WithSQLiteStore("./data/sessions.db"),
//	)
var New = runtime.New

// FromConfig assembles an Orchestrator from loaded configuration.
var FromConfig = runtime.FromConfig

// Configuration options
var (
	WithAppName   = runtime.WithAppName
	WithRootStage = runtime.WithRootStage
	WithBackend   = runtime.WithBackend

	// Storage
	WithMemoryStore  = runtime.WithMemoryStore
	WithSQLiteStore  = runtime.WithSQLiteStore
	WithRedisStore   = runtime.WithRedisStore
	WithSessionStore = runtime.WithSessionStore

	// Advanced options
	WithLogger = runtime.WithLogger
)
