package toolbridge

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tjfontaine/agent-pipeline/internal/core/domain"
	"github.com/tjfontaine/agent-pipeline/internal/core/ports"
)

// StageTool wraps a whole stage as a tool. The target stage runs against an
// isolated scratch session: a fresh transcript seeded with the tool request
// and a state bag pre-seeded (read-only) from the caller's bag. Whatever
// keys the sub-stage writes are merged back into the caller's bag under
// callerKey.subKey, so sub-stage outputs never collide with the caller's
// own declared key.
type StageTool struct {
	stage       ports.Stage
	description string
}

var _ ports.Tool = (*StageTool)(nil)

// NewStageTool wraps stage as a tool invocable by the backend.
func NewStageTool(stage ports.Stage, description string) *StageTool {
	return &StageTool{stage: stage, description: description}
}

// Name implements ports.Tool.
func (t *StageTool) Name() string { return t.stage.Name() }

// Descriptor implements ports.Tool. Stage tools take a single free-text
// request argument.
func (t *StageTool) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        t.stage.Name(),
		Description: t.description,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"request": map[string]any{
					"type":        "string",
					"description": "The request to delegate to this stage",
				},
			},
			"required": []string{"request"},
		},
	}
}

// Invoke implements ports.Tool for completeness; the bridge routes stage
// tools through run so the sub-stage inherits the caller's backend.
func (t *StageTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	return nil, fmt.Errorf("stage tool %s must be invoked through the tool bridge", t.stage.Name())
}

// run executes the wrapped stage in an isolated sub-conversation and
// merges its outputs into the caller's state bag under callerKey.
func (t *StageTool) run(ctx context.Context, rc *ports.RunContext, callerKey string, args map[string]any) (map[string]any, error) {
	request, _ := args["request"].(string)
	if request == "" {
		return nil, fmt.Errorf("missing request argument")
	}

	scratch := domain.NewSession(domain.SessionKey{
		AppName:   rc.Session.Key.AppName,
		UserID:    rc.Session.Key.UserID,
		SessionID: "tool-" + uuid.NewString(),
	})
	scratch.State.Merge(rc.Session.State)
	scratch.Append(domain.Turn{Role: domain.RoleUser, Text: request})

	subRC := ports.NewRunContext(scratch, rc.Backend, nil, rc.Logger)
	if err := t.stage.Run(ctx, subRC); err != nil {
		return nil, err
	}

	// Fold sub-stage outputs into the caller's namespace. Keys the sub-run
	// merely inherited from the caller are skipped.
	inherited := make(map[string]string, rc.Session.State.Len())
	for _, e := range rc.Session.State.Entries() {
		inherited[e.Key] = e.Value
	}
	for _, e := range scratch.State.Entries() {
		if prev, ok := inherited[e.Key]; ok && prev == e.Value {
			continue
		}
		namespaced := e.Key
		if callerKey != "" {
			namespaced = callerKey + "." + e.Key
		}
		rc.Session.State.Set(namespaced, e.Value)
	}

	return map[string]any{"result": subRC.FinalOutput()}, nil
}
