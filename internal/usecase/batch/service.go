// Package batch runs many independent one-shot searches concurrently.
package batch

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/hwfinder/internal/domain"
	dombatch "github.com/kailas-cloud/hwfinder/internal/domain/batch"
)

// Defaults.
const (
	DefaultConcurrency = 4
	MaxBatchSize       = 100
)

// Service runs queries through extract, retrieve and diversify with bounded parallelism.
type Service struct {
	extractor    Extractor
	retriever    Retriever
	diversifier  Diversifier
	target       int
	concurrency  int
	maxBatchSize int
	logger       *zap.Logger
}

// New creates a batch service.
func New(extractor Extractor, retriever Retriever, diversifier Diversifier, target int, logger *zap.Logger) *Service {
	if target <= 0 {
		target = 5
	}
	return &Service{
		extractor:    extractor,
		retriever:    retriever,
		diversifier:  diversifier,
		target:       target,
		concurrency:  DefaultConcurrency,
		maxBatchSize: MaxBatchSize,
		logger:       logger,
	}
}

// WithConcurrency configures how many queries run at once.
func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// Run processes queries and returns one result per input, in input order.
// A failing query never affects the others.
func (s *Service) Run(ctx context.Context, queries []string) []dombatch.Result {
	results := make([]dombatch.Result, len(queries))

	if len(queries) > s.maxBatchSize {
		for i, q := range queries {
			results[i] = dombatch.NewError(q, fmt.Errorf("batch size exceeds %d", s.maxBatchSize))
		}
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, raw := range queries {
		g.Go(func() error {
			results[i] = s.one(gctx, raw)
			return nil
		})
	}
	_ = g.Wait()

	ok := 0
	for _, r := range results {
		if r.Status() == dombatch.StatusOK {
			ok++
		}
	}
	s.logger.Info("Batch finished", zap.Int("queries", len(queries)), zap.Int("ok", ok))
	return results
}

func (s *Service) one(ctx context.Context, raw string) dombatch.Result {
	if strings.TrimSpace(raw) == "" {
		return dombatch.NewError(raw, fmt.Errorf("empty query: %w", domain.ErrRetrievalExhausted))
	}
	if err := ctx.Err(); err != nil {
		return dombatch.NewError(raw, err)
	}

	q := s.extractor.Extract(ctx, raw, "")
	q.Target = s.target
	outcome := s.retriever.Retrieve(ctx, q, s.target)
	if err := ctx.Err(); err != nil {
		return dombatch.NewError(raw, err)
	}
	if outcome.Exhausted() {
		return dombatch.NewEmpty(raw, outcome.Err())
	}
	return dombatch.NewOK(raw, s.diversifier.Diversify(outcome.Candidates(), s.target))
}
