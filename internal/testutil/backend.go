package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/tjfontaine/agent-pipeline/internal/core/domain"
	"github.com/tjfontaine/agent-pipeline/internal/core/ports"
)

// ScriptedBackend is a GenerationBackend that produces results from a
// script function, recording every request it sees.
type ScriptedBackend struct {
	mu       sync.Mutex
	calls    int
	Requests []*domain.GenerationRequest
	Script   func(call int, req *domain.GenerationRequest) (*domain.GenerationResult, error)
}

var _ ports.GenerationBackend = (*ScriptedBackend)(nil)

// NewScriptedBackend wraps a script function. The call argument starts at 1.
func NewScriptedBackend(script func(call int, req *domain.GenerationRequest) (*domain.GenerationResult, error)) *ScriptedBackend {
	return &ScriptedBackend{Script: script}
}

// NewEchoBackend returns a backend that echoes the last conversation
// message prefixed with the instruction's first line.
func NewEchoBackend() *ScriptedBackend {
	return NewScriptedBackend(func(_ int, req *domain.GenerationRequest) (*domain.GenerationResult, error) {
		last := ""
		if n := len(req.Conversation); n > 0 {
			last = req.Conversation[n-1].Text
		}
		return &domain.GenerationResult{Text: "echo: " + last}, nil
	})
}

// NewCountingBackend returns a backend that answers "response N" for the
// Nth call, regardless of input.
func NewCountingBackend() *ScriptedBackend {
	return NewScriptedBackend(func(call int, _ *domain.GenerationRequest) (*domain.GenerationResult, error) {
		return &domain.GenerationResult{Text: fmt.Sprintf("response %d", call)}, nil
	})
}

// Generate implements ports.GenerationBackend.
func (b *ScriptedBackend) Generate(_ context.Context, req *domain.GenerationRequest) (*domain.GenerationResult, error) {
	b.mu.Lock()
	b.calls++
	call := b.calls
	b.Requests = append(b.Requests, req)
	b.mu.Unlock()

	return b.Script(call, req)
}

// Calls returns how many times Generate has been invoked.
func (b *ScriptedBackend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}
