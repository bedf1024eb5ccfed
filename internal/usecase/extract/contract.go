package extract

import (
	"context"

	"github.com/kailas-cloud/hwfinder/internal/domain"
)

// Reasoner completes prompts.
type Reasoner interface {
	Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (string, error)
}
