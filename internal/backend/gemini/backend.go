package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/tjfontaine/agent-pipeline/internal/core/domain"
	"github.com/tjfontaine/agent-pipeline/internal/core/ports"
)

// Backend adapts the Gemini client to the GenerationBackend port.
type Backend struct {
	client *Client
	model  string
}

var _ ports.GenerationBackend = (*Backend)(nil)

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithModel overrides the default model.
func WithModel(model string) BackendOption {
	return func(b *Backend) {
		if model != "" {
			b.model = model
		}
	}
}

// New creates a Gemini generation backend.
func New(client *Client, opts ...BackendOption) *Backend {
	b := &Backend{client: client, model: defaultModel}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Generate implements ports.GenerationBackend.
func (b *Backend) Generate(ctx context.Context, req *domain.GenerationRequest) (*domain.GenerationResult, error) {
	resp, err := b.client.GenerateContent(ctx, b.model, encodeRequest(req))
	if err != nil {
		return nil, err
	}
	return decodeResponse(resp)
}

// encodeRequest maps the canonical generation request onto the wire
// format: the instruction becomes the system instruction, the transcript
// becomes contents, tool calls become model functionCall parts, and tool
// results become the functionResponse parts paired with them. The API
// rejects a functionResponse with no preceding functionCall, so replayed
// tool turns that lost their call pairing are sent as plain user text.
func encodeRequest(req *domain.GenerationRequest) *GenerateContentRequest {
	out := &GenerateContentRequest{}

	if req.Instruction != "" {
		out.SystemInstruction = &Content{Parts: []Part{{Text: req.Instruction}}}
	}

	for _, msg := range req.Conversation {
		switch msg.Role {
		case domain.RoleAgent:
			var parts []Part
			if msg.Text != "" || len(msg.ToolCalls) == 0 {
				parts = append(parts, Part{Text: msg.Text})
			}
			for _, call := range msg.ToolCalls {
				parts = append(parts, Part{FunctionCall: &FunctionCall{
					Name: call.Name,
					Args: call.Arguments,
				}})
			}
			out.Contents = append(out.Contents, Content{Role: "model", Parts: parts})
		case domain.RoleTool:
			if msg.Tool == "" {
				out.Contents = append(out.Contents, Content{
					Role:  "user",
					Parts: []Part{{Text: msg.Text}},
				})
				continue
			}
			out.Contents = append(out.Contents, Content{
				Role: "user",
				Parts: []Part{{FunctionResponse: &FunctionResponse{
					Name:     msg.Tool,
					Response: map[string]any{"result": msg.Text},
				}}},
			})
		default:
			out.Contents = append(out.Contents, Content{
				Role:  "user",
				Parts: []Part{{Text: msg.Text}},
			})
		}
	}

	if len(req.Tools) > 0 {
		tc := ToolConfig{}
		for _, t := range req.Tools {
			tc.FunctionDeclarations = append(tc.FunctionDeclarations, FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			})
		}
		out.Tools = []ToolConfig{tc}
	}

	return out
}

// decodeResponse maps the first candidate onto the canonical result: text
// parts are joined, functionCall parts become tool call requests.
func decodeResponse(resp *GenerateContentResponse) (*domain.GenerationResult, error) {
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("response contained no candidates")
	}

	cand := resp.Candidates[0]
	result := &domain.GenerationResult{FinishReason: cand.FinishReason}

	var texts []string
	for _, part := range cand.Content.Parts {
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
		if part.FunctionCall != nil {
			result.ToolCalls = append(result.ToolCalls, domain.ToolCallRequest{
				Name:      part.FunctionCall.Name,
				Arguments: part.FunctionCall.Args,
			})
		}
	}
	result.Text = strings.Join(texts, "\n")

	return result, nil
}
