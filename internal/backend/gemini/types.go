package gemini

import "encoding/json"

// Wire types for the Gemini generateContent REST API.

// Content is one conversation entry: a role plus one or more parts.
type Content struct {
	Role  string `json:"role,omitempty"` // "user" or "model"
	Parts []Part `json:"parts"`
}

// Part is one piece of content: text, a function call requested by the
// model, or a function response supplied by the caller.
type Part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// FunctionCall is a tool invocation requested by the model.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse carries a tool result back to the model.
type FunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// FunctionDeclaration declares a callable function to the model.
type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolConfig groups function declarations in a request.
type ToolConfig struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations"`
}

// GenerateContentRequest is the generateContent request body.
type GenerateContentRequest struct {
	Contents          []Content    `json:"contents"`
	SystemInstruction *Content     `json:"systemInstruction,omitempty"`
	Tools             []ToolConfig `json:"tools,omitempty"`
}

// GenerateContentResponse is the generateContent response body.
type GenerateContentResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// Candidate is one generated completion.
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

// ErrorResponse is the error envelope returned on non-2xx status.
type ErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// ParseErrorResponse extracts the error envelope from a response body.
// Returns nil if the body is not a recognizable error payload.
func ParseErrorResponse(body []byte) *ErrorResponse {
	var er ErrorResponse
	if err := json.Unmarshal(body, &er); err != nil || er.Error.Message == "" {
		return nil
	}
	return &er
}
