// Package llm provides the text-generation backend client.
package llm

import "context"

// Client is the generation backend consumed by the agent loop and the
// summarization paths. Implementations must tolerate jsonMode being a
// hint only: the caller's decision parser handles non-JSON output.
type Client interface {
	// Generate sends a single prompt and returns the raw model text.
	// When jsonMode is true the backend is asked to emit strict JSON;
	// backends that cannot honor it may return free-form text.
	Generate(ctx context.Context, prompt string, jsonMode bool) (string, error)
}
