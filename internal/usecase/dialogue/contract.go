package dialogue

import (
	"context"

	"github.com/kailas-cloud/hwfinder/internal/domain"
	"github.com/kailas-cloud/hwfinder/internal/domain/candidate"
	"github.com/kailas-cloud/hwfinder/internal/domain/product"
	"github.com/kailas-cloud/hwfinder/internal/domain/query"
	"github.com/kailas-cloud/hwfinder/internal/usecase/retrieve"
)

// Extractor turns an utterance into a query. It never fails.
type Extractor interface {
	Extract(ctx context.Context, raw, history string) query.Query
}

// Retriever gathers candidates for a query.
type Retriever interface {
	Retrieve(ctx context.Context, q query.Query, target int) retrieve.Outcome
}

// Diversifier picks a varied shortlist from candidates.
type Diversifier interface {
	Diversify(set *candidate.Set, target int) []product.Product
}

// Reasoner completes prompts.
type Reasoner interface {
	Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (string, error)
}
