package toolbridge

import (
	"context"
	"testing"

	"github.com/tjfontaine/agent-pipeline/internal/core/domain"
	"github.com/tjfontaine/agent-pipeline/internal/core/ports"
)

// scriptedStage writes state keys and appends an agent turn when run.
type scriptedStage struct {
	name   string
	writes map[string]string
	reply  string

	sawSession *domain.Session
}

func (s *scriptedStage) Name() string { return s.name }

func (s *scriptedStage) Run(ctx context.Context, rc *ports.RunContext) error {
	s.sawSession = rc.Session
	for k, v := range s.writes {
		rc.Session.State.Set(k, v)
	}
	start := rc.StepStart()
	if err := rc.AppendTurn(ctx, domain.Turn{Role: domain.RoleAgent, Text: s.reply, Stage: s.name}); err != nil {
		return err
	}
	rc.MarkStep(start)
	return nil
}

func TestStageTool_RunIsolatesSession(t *testing.T) {
	sub := &scriptedStage{
		name:   "web_searcher",
		writes: map[string]string{"research_notes": "notes"},
		reply:  "found three articles",
	}
	tool := NewStageTool(sub, "searches the web")

	rc := newRC()
	rc.Session.Append(domain.Turn{Role: domain.RoleUser, Text: "caller transcript"})
	rc.Session.State.Set("architecture_design", "v1")

	b := New()
	call := domain.ToolCallRequest{Name: "web_searcher", Arguments: map[string]any{"request": "find articles"}}
	out, err := b.Invoke(context.Background(), rc, "refiner", "architecture_design", call, []ports.Tool{tool})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if out != "found three articles" {
		t.Errorf("Invoke() = %q", out)
	}

	// The sub-run got a fresh transcript, not the caller's.
	if sub.sawSession == rc.Session {
		t.Fatal("sub-stage ran against the caller's session")
	}
	if len(sub.sawSession.Turns) != 2 {
		t.Fatalf("sub transcript = %d turns, want request + reply", len(sub.sawSession.Turns))
	}
	if sub.sawSession.Turns[0].Text != "find articles" {
		t.Errorf("sub request turn = %q", sub.sawSession.Turns[0].Text)
	}

	// The sub-run saw the caller's state.
	if v, _ := sub.sawSession.State.Get("architecture_design"); v != "v1" {
		t.Errorf("sub state architecture_design = %q, want v1", v)
	}

	// No turns leaked into the caller's transcript.
	if len(rc.Session.Turns) != 1 {
		t.Errorf("caller transcript = %d turns, want 1", len(rc.Session.Turns))
	}
}

func TestStageTool_NamespacesOutputs(t *testing.T) {
	sub := &scriptedStage{
		name:   "web_searcher",
		writes: map[string]string{"research_notes": "notes"},
		reply:  "done",
	}
	tool := NewStageTool(sub, "searches the web")

	rc := newRC()
	rc.Session.State.Set("architecture_design", "v1")

	b := New()
	call := domain.ToolCallRequest{Name: "web_searcher", Arguments: map[string]any{"request": "r"}}
	if _, err := b.Invoke(context.Background(), rc, "refiner", "architecture_design", call, []ports.Tool{tool}); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	// Sub-stage output lands under the caller's key namespace.
	if v, _ := rc.Session.State.Get("architecture_design.research_notes"); v != "notes" {
		t.Errorf("namespaced key = %q, want notes", v)
	}
	// Inherited, unchanged keys are not duplicated into the namespace.
	if _, ok := rc.Session.State.Get("architecture_design.architecture_design"); ok {
		t.Error("inherited key was re-namespaced")
	}
	// Caller's own key untouched.
	if v, _ := rc.Session.State.Get("architecture_design"); v != "v1" {
		t.Errorf("caller key = %q, want v1", v)
	}
}

func TestStageTool_MissingRequest(t *testing.T) {
	tool := NewStageTool(&scriptedStage{name: "sub", reply: "x"}, "d")

	b := New()
	_, err := b.Invoke(context.Background(), newRC(), "caller", "k", domain.ToolCallRequest{Name: "sub"}, []ports.Tool{tool})
	if err == nil {
		t.Fatal("Invoke() error = nil, want missing-request failure")
	}
}

func TestStageTool_DirectInvokeRefused(t *testing.T) {
	tool := NewStageTool(&scriptedStage{name: "sub"}, "d")
	if _, err := tool.Invoke(context.Background(), map[string]any{"request": "r"}); err == nil {
		t.Fatal("Invoke() error = nil, want refusal outside the bridge")
	}
}

func TestStageTool_Descriptor(t *testing.T) {
	tool := NewStageTool(&scriptedStage{name: "web_searcher"}, "searches the web")

	d := tool.Descriptor()
	if d.Name != "web_searcher" {
		t.Errorf("Name = %q", d.Name)
	}
	if d.Description != "searches the web" {
		t.Errorf("Description = %q", d.Description)
	}
	if d.Parameters == nil {
		t.Error("Parameters = nil, want request schema")
	}
}
