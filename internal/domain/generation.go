package domain

import "context"

// GenerationRequest is a single deterministic chat call: a system instruction,
// reference documents the model may ground on, and the user turn.
type GenerationRequest struct {
	System    string
	Documents []string
	Prompt    string
}

// GenerationResult is the first generated segment plus token usage.
type GenerationResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Generator produces text from a GenerationRequest.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}
