package stage

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/tjfontaine/agent-pipeline/internal/core/ports"
)

func TestLoop_RunsAllIterations(t *testing.T) {
	var order []string
	loop := NewLoop("refinement_loop", 5, []ports.Stage{
		recordingStage("reviewer", &order),
		recordingStage("refiner", &order),
	})

	rc := newRunContext(nil)
	if err := loop.Run(context.Background(), rc); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Exhaustive by default: 5 full passes, children alternating.
	if len(order) != 10 {
		t.Fatalf("ran %d stages, want 10: %v", len(order), order)
	}
	for i, name := range order {
		want := "reviewer"
		if i%2 == 1 {
			want = "refiner"
		}
		if name != want {
			t.Fatalf("order[%d] = %s, want %s (%v)", i, name, want, order)
		}
	}
}

func TestLoop_StopSentinel(t *testing.T) {
	passes := 0
	child := &fakeStage{name: "worker", fn: func(_ context.Context, rc *ports.RunContext) error {
		passes++
		rc.Session.State.Set("iteration", strconv.Itoa(passes))
		return nil
	}}

	loop := NewLoop("bounded", 10, []ports.Stage{child}, WithStopValue("iteration", "3"))

	rc := newRunContext(nil)
	if err := loop.Run(context.Background(), rc); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if passes != 3 {
		t.Errorf("passes = %d, want 3 (stopped on sentinel)", passes)
	}
}

func TestLoop_StopCheckedAfterFullPass(t *testing.T) {
	var order []string
	first := &fakeStage{name: "first", fn: func(_ context.Context, rc *ports.RunContext) error {
		order = append(order, "first")
		rc.Session.State.Set("done", "yes")
		return nil
	}}
	second := recordingStage("second", &order)

	loop := NewLoop("l", 5, []ports.Stage{first, second}, WithStopValue("done", "yes"))

	rc := newRunContext(nil)
	if err := loop.Run(context.Background(), rc); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// The sentinel set mid-pass must not skip the rest of that pass.
	if len(order) != 2 || order[1] != "second" {
		t.Errorf("ran %v, want [first second]", order)
	}
}

func TestLoop_FailureCarriesIteration(t *testing.T) {
	calls := 0
	child := &fakeStage{name: "flaky", fn: func(_ context.Context, _ *ports.RunContext) error {
		calls++
		if calls == 3 {
			return fmt.Errorf("boom")
		}
		return nil
	}}

	loop := NewLoop("l", 5, []ports.Stage{child})

	err := loop.Run(context.Background(), newRunContext(nil))
	if err == nil {
		t.Fatal("Run() error = nil, want failure on iteration 3")
	}
	want := "stage flaky (iteration 3): boom"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestLoop_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	child := &fakeStage{name: "worker", fn: func(_ context.Context, _ *ports.RunContext) error {
		calls++
		cancel()
		return nil
	}}

	loop := NewLoop("l", 5, []ports.Stage{child})
	if err := loop.Run(ctx, newRunContext(nil)); err == nil {
		t.Fatal("Run() error = nil, want context error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (stopped after cancellation)", calls)
	}
}
