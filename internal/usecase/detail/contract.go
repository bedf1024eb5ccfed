package detail

import (
	"context"

	"github.com/kailas-cloud/hwfinder/internal/domain/product"
)

// AuthenticatedFetcher looks up products by exact name behind a login.
// Errors wrap domain.ErrFetchTimeout or domain.ErrFetch.
type AuthenticatedFetcher interface {
	FetchByName(ctx context.Context, name string) ([]product.Raw, error)
}
