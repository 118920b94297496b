package models

import "context"

// ReasoningClient is the core interface for the external reasoning backend.
// Never call a concrete backend directly — always inject this interface.
type ReasoningClient interface {
	// Complete sends a system + user prompt pair to the given model and
	// returns the raw assistant text, which is expected (but not guaranteed)
	// to contain a JSON payload.
	Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
	// Name returns the backend identifier (e.g., "openrouter").
	Name() string
}

// DebateResult bundles everything the reasoning step produces for one job.
type DebateResult struct {
	Individual []SpeakerAnalysis
	Comparison Comparison
}
