// Package retrieve gathers candidate products from the online catalog and the local index.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hwfinder/internal/domain"
	"github.com/kailas-cloud/hwfinder/internal/domain/candidate"
	"github.com/kailas-cloud/hwfinder/internal/domain/product"
	"github.com/kailas-cloud/hwfinder/internal/domain/query"
	"github.com/kailas-cloud/hwfinder/internal/logger"
	"github.com/kailas-cloud/hwfinder/internal/metrics"
)

// Options tune fan-out and fallback behavior.
type Options struct {
	Mode         query.Mode
	FetchTimeout time.Duration
	IndexTimeout time.Duration
	// MinOnlineResults below which the local index is consulted; 0 means the target count.
	MinOnlineResults  int
	OverfetchMultiple int
	MaxCandidates     int
}

// DefaultOptions mirror the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Mode:              query.Hybrid,
		FetchTimeout:      60 * time.Second,
		IndexTimeout:      10 * time.Second,
		OverfetchMultiple: 3,
		MaxCandidates:     30,
	}
}

// Service merges online and local results into a bounded candidate set.
type Service struct {
	online OnlineFetcher
	local  LocalIndex
	opts   Options
	logger *zap.Logger
}

// New creates a retriever. Either source may be nil when not configured.
func New(online OnlineFetcher, local LocalIndex, opts Options, logger *zap.Logger) *Service {
	def := DefaultOptions()
	if !opts.Mode.IsValid() {
		opts.Mode = def.Mode
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = def.FetchTimeout
	}
	if opts.IndexTimeout <= 0 {
		opts.IndexTimeout = def.IndexTimeout
	}
	if opts.OverfetchMultiple <= 0 {
		opts.OverfetchMultiple = def.OverfetchMultiple
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = def.MaxCandidates
	}
	return &Service{online: online, local: local, opts: opts, logger: logger}
}

// Mode reports the effective capability given which sources are wired.
func (s *Service) Mode() query.Mode {
	switch {
	case s.online != nil && s.local != nil:
		return s.opts.Mode
	case s.online != nil:
		return query.Online
	case s.local != nil:
		return query.Local
	default:
		return s.opts.Mode
	}
}

// Cap returns the over-fetch bound for a target count.
func (s *Service) Cap(target int) int {
	if target < 1 {
		target = 1
	}
	c := target * s.opts.OverfetchMultiple
	if c > s.opts.MaxCandidates {
		c = s.opts.MaxCandidates
	}
	return c
}

// Retrieve runs the query against the configured sources and merges online first, then local.
func (s *Service) Retrieve(ctx context.Context, q query.Query, target int) Outcome {
	log := logger.FromContextOr(ctx, s.logger)
	mode := q.Mode
	if !mode.IsValid() {
		mode = s.opts.Mode
	}
	limit := s.Cap(target)
	minOnline := s.opts.MinOnlineResults
	if minOnline <= 0 {
		minOnline = max(target, 1)
	}

	set := candidate.NewSet(limit)
	var onlineErr, localErr error
	var fromOnline, fromLocal int

	if mode != query.Local {
		var raws []product.Raw
		var elapsed time.Duration
		raws, elapsed, onlineErr = s.searchOnline(ctx, q.Text)
		if onlineErr != nil {
			log.Warn("Online search failed", zap.String("query", q.Text), zap.Error(onlineErr))
		}
		meta := product.Meta{Source: product.SourceOnline, Query: q.Text, Elapsed: elapsed}
		for _, raw := range raws {
			set.Add(product.Normalize(raw, meta), rankScore(set.Len()))
		}
		fromOnline = set.Len()
	}

	needLocal := mode == query.Local || (mode == query.Hybrid && (onlineErr != nil || fromOnline < minOnline))
	if needLocal && !set.Full() {
		var hits []product.Scored
		var elapsed time.Duration
		hits, elapsed, localErr = s.searchLocal(ctx, q.Text, limit)
		switch {
		case errors.Is(localErr, domain.ErrIndexUnavailable):
			log.Warn("Local index unavailable, running with degraded capability", zap.Error(localErr))
		case localErr != nil:
			log.Warn("Local search failed", zap.String("query", q.Text), zap.Error(localErr))
		}
		meta := product.Meta{Source: product.SourceLocal, Query: q.Text, Elapsed: elapsed}
		before := set.Len()
		for _, hit := range hits {
			set.Add(product.Normalize(hit.Raw, meta), localScore(hit.Score, set.Len()))
		}
		fromLocal = set.Len() - before
	}

	out := Outcome{candidates: set}
	switch {
	case fromOnline > 0 && fromLocal > 0:
		out.kind = KindMixed
	case fromOnline > 0:
		out.kind = KindOnline
	case fromLocal > 0:
		out.kind = KindLocal
	default:
		out = Outcome{kind: KindExhausted, err: domain.NewExhausted(onlineErr, localErr)}
	}
	metrics.RetrievalOutcomesTotal.WithLabelValues(string(out.kind)).Inc()

	log.Debug("Retrieval finished",
		zap.String("query", q.Text),
		zap.String("mode", string(mode)),
		zap.String("kind", string(out.kind)),
		zap.Int("online", fromOnline),
		zap.Int("local", fromLocal),
	)
	return out
}

// rankScore assigns a descending score by merged position.
func rankScore(position int) float64 {
	return 1 / float64(1+position)
}

// localScore keeps the index similarity but never ranks a local hit above an earlier merged position.
func localScore(similarity float64, position int) float64 {
	return min(similarity, rankScore(position))
}

func (s *Service) searchOnline(ctx context.Context, text string) ([]product.Raw, time.Duration, error) {
	if s.online == nil {
		return nil, 0, fmt.Errorf("online source not configured: %w", domain.ErrFetch)
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	start := time.Now()
	raws, err := s.online.Search(ctx, text)
	elapsed := time.Since(start)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrFetchTimeout) {
		err = fmt.Errorf("%w: %w", domain.ErrFetchTimeout, err)
	}
	observe(string(product.SourceOnline), elapsed, len(raws), err)
	if err != nil {
		return nil, elapsed, fmt.Errorf("online search: %w", err)
	}
	return raws, elapsed, nil
}

func (s *Service) searchLocal(ctx context.Context, text string, k int) ([]product.Scored, time.Duration, error) {
	if s.local == nil {
		return nil, 0, fmt.Errorf("local index not configured: %w", domain.ErrIndexUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.IndexTimeout)
	defer cancel()

	start := time.Now()
	hits, err := s.local.Search(ctx, text, k)
	elapsed := time.Since(start)
	observe(string(product.SourceLocal), elapsed, len(hits), err)
	if err != nil {
		return nil, elapsed, fmt.Errorf("local search: %w", err)
	}
	return hits, elapsed, nil
}

func observe(source string, elapsed time.Duration, n int, err error) {
	status := "ok"
	switch {
	case errors.Is(err, domain.ErrFetchTimeout), errors.Is(err, context.DeadlineExceeded):
		status = "timeout"
	case errors.Is(err, domain.ErrIndexUnavailable):
		status = "unavailable"
	case err != nil:
		status = "error"
	case n == 0:
		status = "empty"
	}
	metrics.SourceRequestsTotal.WithLabelValues(source, status).Inc()
	metrics.SourceRequestDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}
