package domain

// Message is one role-tagged entry of the conversation sent to the
// generation backend.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`

	// Tool names the tool whose result this message carries. Only set on
	// RoleTool messages folded into a generation exchange.
	Tool string `json:"tool,omitempty"`

	// ToolCalls carries the tool invocations the backend requested in this
	// message. Only set on RoleAgent messages folded into a generation
	// exchange; backends pair each following tool result with its call.
	ToolCalls []ToolCallRequest `json:"tool_calls,omitempty"`
}

// ToolDescriptor declares a tool to the generation backend.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"` // JSON Schema
}

// ToolCallRequest is a tool invocation requested by the backend
// mid-generation.
type ToolCallRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// GenerationRequest is the input to one generation backend call.
type GenerationRequest struct {
	// Conversation is the prior transcript, oldest first.
	Conversation []Message `json:"conversation"`

	// Instruction is the stage's resolved instruction template.
	Instruction string `json:"instruction"`

	// OutputKey is the state key the calling stage will write, if any.
	// Backends may use it to steer structured output; it is advisory.
	OutputKey string `json:"output_key,omitempty"`

	// Tools the backend may request during this call.
	Tools []ToolDescriptor `json:"tools,omitempty"`
}

// GenerationResult is the output of one generation backend call.
type GenerationResult struct {
	Text         string            `json:"text"`
	ToolCalls    []ToolCallRequest `json:"tool_calls,omitempty"`
	FinishReason string            `json:"finish_reason,omitempty"`
}
