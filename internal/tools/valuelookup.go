package tools

import (
	"context"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/tjfontaine/agent-pipeline/internal/core/ports"
	"github.com/tjfontaine/agent-pipeline/internal/toolbridge"
)

// NewValueLookup creates the get_value tool: it fetches the current value
// for a named metric from an upstream source. The stub implementation
// returns a random value tagged with a generated source id.
func NewValueLookup() ports.Tool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{
				"type":        "string",
				"description": "The name of the metric to look up",
			},
		},
		"required": []string{"name"},
	}

	return toolbridge.NewFunc("get_value", "Get the current value of a named metric", params,
		func(_ context.Context, args map[string]any) (map[string]any, error) {
			name, _ := args["name"].(string)
			return map[string]any{
				"name":      name,
				"source_id": uuid.NewString(),
				"value":     rand.IntN(1000) + 1,
			}, nil
		})
}
