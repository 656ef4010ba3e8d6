// Package stage implements the pipeline stage variants: leaf (a single
// generation call), sequential (an ordered chain), and loop (a bounded
// repeated chain), plus config-driven construction of stage trees.
package stage

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/agent-pipeline/internal/core/domain"
	"github.com/tjfontaine/agent-pipeline/internal/core/ports"
	"github.com/tjfontaine/agent-pipeline/internal/tokens"
	"github.com/tjfontaine/agent-pipeline/internal/toolbridge"
)

// defaultToolRounds bounds tool delegation to one generate → tool → resume
// round per leaf call, matching observed usage. Raise via WithToolRounds
// when broader chains are needed.
const defaultToolRounds = 1

// Leaf is a single unit of generation work: it interpolates its
// instruction against the session state bag, calls the backend once
// (folding at most a bounded number of tool rounds), appends the resulting
// turns, and writes its declared output key.
type Leaf struct {
	name        string
	instruction string
	outputKey   string
	tools       []ports.Tool
	bridge      *toolbridge.Bridge
	lenient     bool
	toolRounds  int
	budget      *tokens.Budget
	tracer      trace.Tracer
}

var _ ports.Stage = (*Leaf)(nil)

// LeafOption configures a Leaf.
type LeafOption func(*Leaf)

// WithOutputKey declares the state key the leaf writes its final text to.
func WithOutputKey(key string) LeafOption {
	return func(l *Leaf) { l.outputKey = key }
}

// WithTools exposes tools to the backend for this leaf's calls.
func WithTools(bridge *toolbridge.Bridge, tools ...ports.Tool) LeafOption {
	return func(l *Leaf) {
		l.bridge = bridge
		l.tools = tools
	}
}

// WithLenientInterpolation substitutes the empty string for unwritten
// template keys instead of failing the stage.
func WithLenientInterpolation() LeafOption {
	return func(l *Leaf) { l.lenient = true }
}

// WithToolRounds overrides the bound on tool delegation rounds per call.
func WithToolRounds(n int) LeafOption {
	return func(l *Leaf) {
		if n > 0 {
			l.toolRounds = n
		}
	}
}

// WithHistoryBudget trims the replayed conversation to a token budget
// before each backend call.
func WithHistoryBudget(budget *tokens.Budget) LeafOption {
	return func(l *Leaf) { l.budget = budget }
}

// NewLeaf creates a leaf stage with the given instruction template.
func NewLeaf(name, instruction string, opts ...LeafOption) *Leaf {
	l := &Leaf{
		name:        name,
		instruction: instruction,
		toolRounds:  defaultToolRounds,
		tracer:      otel.Tracer("agent-pipeline/stage"),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.bridge == nil {
		l.bridge = toolbridge.New()
	}
	return l
}

// Name implements ports.Stage.
func (l *Leaf) Name() string { return l.name }

// OutputKey returns the declared output key, empty if none.
func (l *Leaf) OutputKey() string { return l.outputKey }

// Run implements ports.Stage.
func (l *Leaf) Run(ctx context.Context, rc *ports.RunContext) error {
	ctx, span := l.tracer.Start(ctx, "stage.leaf",
		trace.WithAttributes(attribute.String("stage.name", l.name)))
	defer span.End()

	instruction, err := l.resolveInstruction(rc)
	if err != nil {
		span.RecordError(err)
		return err
	}

	conv := rc.Session.Conversation()
	if l.budget != nil {
		conv = l.budget.Trim(conv)
	}

	req := &domain.GenerationRequest{
		Conversation: conv,
		Instruction:  instruction,
		OutputKey:    l.outputKey,
		Tools:        l.descriptors(),
	}

	res, err := rc.Backend.Generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		return domain.NewBackendError(l.name, err)
	}

	for round := 0; len(res.ToolCalls) > 0 && round < l.toolRounds; round++ {
		res, err = l.foldToolRound(ctx, rc, req, res)
		if err != nil {
			span.RecordError(err)
			return err
		}
	}

	// Only the agent's answer is the stage step; tool turns stay in the
	// transcript but never surface as invocation output.
	start := rc.StepStart()

	if err := rc.AppendTurn(ctx, domain.Turn{
		Role:  domain.RoleAgent,
		Text:  res.Text,
		Stage: l.name,
	}); err != nil {
		return err
	}

	if l.outputKey != "" {
		rc.Session.State.Set(l.outputKey, res.Text)
	}
	rc.MarkStep(start)

	rc.Logger.Debug("leaf stage completed",
		slog.String("stage", l.name),
		slog.String("output_key", l.outputKey),
		slog.Int("tool_calls", len(res.ToolCalls)))

	return nil
}

// resolveInstruction interpolates the instruction template against the
// session state bag under the configured unresolved-key policy.
func (l *Leaf) resolveInstruction(rc *ports.RunContext) (string, error) {
	if l.lenient {
		return rc.Session.State.InterpolateLenient(l.instruction), nil
	}
	resolved, err := rc.Session.State.Interpolate(l.instruction)
	if err != nil {
		return "", domain.AsError(err, l.name)
	}
	return resolved, nil
}

// foldToolRound executes every tool call requested in res, appends a tool
// turn per result, and resumes the generation exchange with the results
// folded into the conversation. The model's tool-call message is folded in
// first; backends need it to pair each tool result with its request.
func (l *Leaf) foldToolRound(ctx context.Context, rc *ports.RunContext, req *domain.GenerationRequest, res *domain.GenerationResult) (*domain.GenerationResult, error) {
	req.Conversation = append(req.Conversation, domain.Message{
		Role:      domain.RoleAgent,
		Text:      res.Text,
		ToolCalls: res.ToolCalls,
	})

	for _, call := range res.ToolCalls {
		result, err := l.bridge.Invoke(ctx, rc, l.name, l.outputKey, call, l.tools)
		if err != nil {
			return nil, err
		}
		if err := rc.AppendTurn(ctx, domain.Turn{
			Role:  domain.RoleTool,
			Text:  result,
			Stage: l.name,
		}); err != nil {
			return nil, err
		}
		req.Conversation = append(req.Conversation, domain.Message{
			Role: domain.RoleTool,
			Text: result,
			Tool: call.Name,
		})
	}

	resumed, err := rc.Backend.Generate(ctx, req)
	if err != nil {
		return nil, domain.NewBackendError(l.name, err)
	}
	return resumed, nil
}

func (l *Leaf) descriptors() []domain.ToolDescriptor {
	if len(l.tools) == 0 {
		return nil
	}
	out := make([]domain.ToolDescriptor, 0, len(l.tools))
	for _, t := range l.tools {
		out = append(out, t.Descriptor())
	}
	return out
}
