// Package llm abstracts the language model service behind a narrow text-in,
// text-out interface. Providers retry transient failures internally with
// exponential backoff; callers see either generated text or a final error.
package llm

import "context"

// Client generates text from a prompt.
type Client interface {
	// Name returns the provider identifier.
	Name() string

	// Generate submits a prompt and returns the model's text output.
	Generate(ctx context.Context, prompt string) (string, error)
}
