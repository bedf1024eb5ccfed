package retrieve

import (
	"context"

	"github.com/kailas-cloud/hwfinder/internal/domain/product"
)

// OnlineFetcher searches the live catalog. Errors wrap domain.ErrFetchTimeout or domain.ErrFetch.
type OnlineFetcher interface {
	Search(ctx context.Context, text string) ([]product.Raw, error)
}

// LocalIndex searches the offline vector index. Returns domain.ErrIndexUnavailable when not built.
type LocalIndex interface {
	Search(ctx context.Context, text string, k int) ([]product.Scored, error)
}
