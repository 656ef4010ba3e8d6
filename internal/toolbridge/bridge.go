// Package toolbridge executes tool delegations requested by the generation
// backend mid-exchange: plain function tools and whole stages wrapped as
// tools. Execution is synchronous; the result is folded back into the
// calling stage's conversation before the backend produces its final
// answer.
package toolbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tjfontaine/agent-pipeline/internal/core/domain"
	"github.com/tjfontaine/agent-pipeline/internal/core/ports"
)

// Bridge resolves and invokes tools on behalf of a calling leaf stage.
type Bridge struct {
	tolerant bool
	logger   *slog.Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// Tolerant makes tool failures fold their error text back into the
// conversation instead of aborting the calling exchange. The default is
// fail-fast.
func Tolerant() Option {
	return func(b *Bridge) { b.tolerant = true }
}

// WithLogger sets the bridge logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

// New creates a bridge.
func New(opts ...Option) *Bridge {
	b := &Bridge{logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Invoke executes the requested tool call against the calling stage's tool
// set and returns the result as text. callerStage and callerKey identify
// the calling leaf and its declared output key; stage-as-tool results are
// merged into the caller's state bag namespaced under callerKey.
func (b *Bridge) Invoke(ctx context.Context, rc *ports.RunContext, callerStage, callerKey string, call domain.ToolCallRequest, tools []ports.Tool) (string, error) {
	tool := findTool(tools, call.Name)
	if tool == nil {
		return b.fail(callerStage, call.Name, fmt.Errorf("not exposed by stage"))
	}

	b.logger.Debug("invoking tool",
		slog.String("stage", callerStage),
		slog.String("tool", call.Name))

	var (
		result map[string]any
		err    error
	)
	if st, ok := tool.(*StageTool); ok {
		result, err = st.run(ctx, rc, callerKey, call.Arguments)
	} else {
		result, err = tool.Invoke(ctx, call.Arguments)
	}
	if err != nil {
		return b.fail(callerStage, call.Name, err)
	}

	return renderResult(result)
}

// fail reports a tool failure according to the bridge's error mode.
func (b *Bridge) fail(stage, tool string, err error) (string, error) {
	if b.tolerant {
		b.logger.Warn("tool failed, folding error into conversation",
			slog.String("stage", stage),
			slog.String("tool", tool),
			slog.String("error", err.Error()))
		return fmt.Sprintf("tool %s failed: %v", tool, err), nil
	}
	return "", domain.NewToolError(stage, tool, err)
}

func findTool(tools []ports.Tool, name string) ports.Tool {
	for _, t := range tools {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

// renderResult flattens a tool result to the text folded into the
// exchange: a lone string value is used verbatim, anything richer is
// serialized as JSON.
func renderResult(result map[string]any) (string, error) {
	if len(result) == 1 {
		for _, v := range result {
			if s, ok := v.(string); ok {
				return s, nil
			}
		}
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal tool result: %w", err)
	}
	return string(data), nil
}
