package config

import "github.com/tjfontaine/agent-pipeline/internal/stage"

// DefaultPipeline returns the architecture design pipeline used when no
// pipeline is configured: an initial design pass followed by a bounded
// review/refine loop. The refiner can consult a web researcher exposed as
// a tool.
func DefaultPipeline() stage.Config {
	return stage.Config{
		Name: "software_architecture_pipeline",
		Type: "sequential",
		Children: []stage.Config{
			{
				Name: "initial_architecture",
				Type: "leaf",
				Instruction: `You are an architect agent. Your task is to provide an initial architecture design based on
the given requirements.`,
				OutputKey: "architecture_design",
			},
			{
				Name:          "refinement_loop",
				Type:          "loop",
				MaxIterations: 5,
				Children: []stage.Config{
					{
						Name: "architecture_reviewer",
						Type: "leaf",
						Instruction: `You are an architecture reviewer agent.

Your task is to review the architecture design provided by the initial architecture agent.

Analyze the design for completeness, scalability, maintainability, and adherence to best practices.
Identify any potential issues or areas for improvement, and provide constructive feedback.

Provide feedback on the design, including any potential issues or improvements.

## ARCHITECTURE TO REVIEW
{architecture_design}`,
						OutputKey: "review_feedback",
					},
					{
						Name: "architecture_refiner",
						Type: "leaf",
						Instruction: `You are an architecture refiner agent.

Your task is to refine the software architecture based on the given feedback.

## INPUTS
**Current Design:**
{architecture_design}

**Review Feedback:**
{review_feedback}

## TASK
Refine the architecture design based on the review feedback provided.
Ensure that the refined design addresses all the feedback points and improves the overall quality of the architecture.
Focus on enhancing the design's clarity, completeness, and adherence to best practices.
Provide a clear and concise refined architecture design that incorporates the feedback.

## OUTPUT INSTRUCTIONS
- Output ONLY the refined design content in markdown format.`,
						OutputKey: "architecture_design",
						Children: []stage.Config{
							{
								Name: "web_searcher",
								Type: "leaf",
								Instruction: `You are a helpful assistant that can analyze technical articles about software architecture
available on the web.

When asked about, you should use the websearch tool to search for technical articles that
are useful to solve a problem.`,
								OutputKey: "research_notes",
								Tools:     []string{"websearch"},
								AsTool:    "Searches the web for technical articles relevant to an architecture question",
							},
						},
					},
				},
			},
		},
	}
}
