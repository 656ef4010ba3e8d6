package stage

import (
	"fmt"

	"github.com/tjfontaine/agent-pipeline/internal/core/ports"
	"github.com/tjfontaine/agent-pipeline/internal/tokens"
	"github.com/tjfontaine/agent-pipeline/internal/toolbridge"
)

// Config declares one stage of a pipeline. Stage trees are declarative
// configuration (loaded from config.yaml or built in code) and are turned
// into immutable stages by Build at startup.
type Config struct {
	Name string `koanf:"name"`
	Type string `koanf:"type"` // leaf, sequential, loop

	// Leaf fields.
	Instruction       string   `koanf:"instruction"`
	OutputKey         string   `koanf:"output_key"`
	Tools             []string `koanf:"tools"`
	Lenient           bool     `koanf:"lenient"`
	ToolRounds        int      `koanf:"tool_rounds"`
	HistoryTokenLimit int      `koanf:"history_token_limit"`

	// Loop fields.
	MaxIterations int    `koanf:"max_iterations"`
	StopKey       string `koanf:"stop_key"`
	StopValue     string `koanf:"stop_value"`

	// Sequential and loop children.
	Children []Config `koanf:"children"`

	// AsTool exposes this stage to its parent leaf as a tool with the given
	// description, instead of running it inline.
	AsTool string `koanf:"as_tool"`
}

// BuildOptions carries the shared collaborators stage construction needs.
type BuildOptions struct {
	// Tools resolves tool names referenced by leaf configs.
	Tools map[string]ports.Tool

	// Bridge is used by every leaf with tools. Defaults to a fail-fast
	// bridge.
	Bridge *toolbridge.Bridge

	// Counter is used for history budgets. Defaults to the estimator.
	Counter tokens.Counter
}

// Build constructs the stage tree declared by cfg.
func Build(cfg Config, opts BuildOptions) (ports.Stage, error) {
	if opts.Bridge == nil {
		opts.Bridge = toolbridge.New()
	}
	return build(cfg, opts)
}

func build(cfg Config, opts BuildOptions) (ports.Stage, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("stage config missing name")
	}

	switch cfg.Type {
	case "leaf":
		return buildLeaf(cfg, opts)

	case "sequential":
		children, err := buildChildren(cfg, opts)
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			return nil, fmt.Errorf("sequential stage %s has no children", cfg.Name)
		}
		return NewSequential(cfg.Name, children...), nil

	case "loop":
		children, err := buildChildren(cfg, opts)
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			return nil, fmt.Errorf("loop stage %s has no children", cfg.Name)
		}
		if cfg.MaxIterations <= 0 {
			return nil, fmt.Errorf("loop stage %s needs max_iterations > 0", cfg.Name)
		}
		var loopOpts []LoopOption
		if cfg.StopKey != "" {
			loopOpts = append(loopOpts, WithStopValue(cfg.StopKey, cfg.StopValue))
		}
		return NewLoop(cfg.Name, cfg.MaxIterations, children, loopOpts...), nil

	default:
		return nil, fmt.Errorf("stage %s: unknown type %q", cfg.Name, cfg.Type)
	}
}

func buildLeaf(cfg Config, opts BuildOptions) (ports.Stage, error) {
	if cfg.Instruction == "" {
		return nil, fmt.Errorf("leaf stage %s missing instruction", cfg.Name)
	}

	leafOpts := []LeafOption{}
	if cfg.OutputKey != "" {
		leafOpts = append(leafOpts, WithOutputKey(cfg.OutputKey))
	}
	if cfg.Lenient {
		leafOpts = append(leafOpts, WithLenientInterpolation())
	}
	if cfg.ToolRounds > 0 {
		leafOpts = append(leafOpts, WithToolRounds(cfg.ToolRounds))
	}
	if cfg.HistoryTokenLimit > 0 {
		leafOpts = append(leafOpts, WithHistoryBudget(tokens.NewBudget(opts.Counter, cfg.HistoryTokenLimit)))
	}

	var leafTools []ports.Tool
	for _, name := range cfg.Tools {
		tool, ok := opts.Tools[name]
		if !ok {
			return nil, fmt.Errorf("leaf stage %s references unknown tool %q", cfg.Name, name)
		}
		leafTools = append(leafTools, tool)
	}

	// Child stages declared with as_tool become stage-tools of this leaf.
	for _, child := range cfg.Children {
		if child.AsTool == "" {
			return nil, fmt.Errorf("leaf stage %s child %s must declare as_tool", cfg.Name, child.Name)
		}
		sub, err := build(child, opts)
		if err != nil {
			return nil, err
		}
		leafTools = append(leafTools, toolbridge.NewStageTool(sub, child.AsTool))
	}

	if len(leafTools) > 0 {
		leafOpts = append(leafOpts, WithTools(opts.Bridge, leafTools...))
	}

	return NewLeaf(cfg.Name, cfg.Instruction, leafOpts...), nil
}

func buildChildren(cfg Config, opts BuildOptions) ([]ports.Stage, error) {
	children := make([]ports.Stage, 0, len(cfg.Children))
	for _, c := range cfg.Children {
		child, err := build(c, opts)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}
