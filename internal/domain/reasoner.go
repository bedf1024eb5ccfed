package domain

import "context"

// CompletionOptions tunes a single Reasoner call.
type CompletionOptions struct {
	MaxTokens   int
	Temperature float32
	// JSON asks the provider for a JSON object response when it supports it.
	JSON bool
}

// Reasoner is the language-model contract shared between layers.
// Errors wrap ErrReasoner; callers that parse structured output wrap ErrReasonerParse.
type Reasoner interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}
