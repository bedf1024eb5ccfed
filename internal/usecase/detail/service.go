// Package detail resolves a product name to its full authoritative record.
package detail

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hwfinder/internal/domain"
	"github.com/kailas-cloud/hwfinder/internal/domain/product"
	"github.com/kailas-cloud/hwfinder/internal/logger"
	"github.com/kailas-cloud/hwfinder/internal/metrics"
	"github.com/kailas-cloud/hwfinder/internal/usecase/diversify"
)

// Defaults.
const (
	DefaultCacheSize = 128
	DefaultTimeout   = 60 * time.Second
)

// Service resolves product details with an in-process cache.
type Service struct {
	fetcher AuthenticatedFetcher
	cache   *lru.Cache[string, product.Product]
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a detail resolver. cacheSize <= 0 uses DefaultCacheSize.
func New(fetcher AuthenticatedFetcher, cacheSize int, logger *zap.Logger) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, product.Product](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create detail cache: %w", err)
	}
	return &Service{fetcher: fetcher, cache: cache, timeout: DefaultTimeout, logger: logger}, nil
}

// WithTimeout configures the fetch timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Resolve fetches the product named exactly name.
// Zero matches is domain.ErrProductNotFound; several matches prefer an exact normalized name,
// then the closest name.
func (s *Service) Resolve(ctx context.Context, name string) (product.Product, error) {
	key := product.Fold(name)
	if key == "" {
		return product.Product{}, fmt.Errorf("empty product name: %w", domain.ErrProductNotFound)
	}
	if p, ok := s.cache.Get(key); ok {
		metrics.DetailCacheTotal.WithLabelValues("hit").Inc()
		return p, nil
	}
	metrics.DetailCacheTotal.WithLabelValues("miss").Inc()

	raws, elapsed, err := s.fetch(ctx, name)
	if err != nil {
		return product.Product{}, err
	}
	if len(raws) == 0 {
		return product.Product{}, fmt.Errorf("%q: %w", name, domain.ErrProductNotFound)
	}

	meta := product.Meta{Source: product.SourceOnline, Query: name, Elapsed: elapsed}
	matches := make([]product.Product, len(raws))
	for i, raw := range raws {
		matches[i] = product.Normalize(raw, meta)
	}

	best := pick(key, name, matches)
	if len(matches) > 1 {
		logger.FromContextOr(ctx, s.logger).Info("Ambiguous product name, picked closest match",
			zap.String("name", name),
			zap.Int("matches", len(matches)),
			zap.String("picked", best.Name()),
		)
	}
	s.cache.Add(key, best)
	return best, nil
}

func (s *Service) fetch(ctx context.Context, name string) ([]product.Raw, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	raws, err := s.fetcher.FetchByName(ctx, name)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrFetchTimeout) {
			err = fmt.Errorf("%w: %w", domain.ErrFetchTimeout, err)
		}
		return nil, elapsed, fmt.Errorf("fetch %q: %w", name, err)
	}
	return raws, elapsed, nil
}

// pick returns the first exact normalized match, else the most similar name (earliest on ties).
func pick(key, name string, matches []product.Product) product.Product {
	for _, p := range matches {
		if product.Fold(p.Name()) == key {
			return p
		}
	}
	best, bestScore := matches[0], -1.0
	for _, p := range matches {
		if score := diversify.NameSimilarity(name, p.Name()); score > bestScore {
			best, bestScore = p, score
		}
	}
	return best
}
