// Package catalog stores the offline product catalog as Redis hashes with a vector index over them.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hwfinder/internal/db"
	"github.com/kailas-cloud/hwfinder/internal/domain"
	"github.com/kailas-cloud/hwfinder/internal/domain/product"
)

// Hash fields written next to the catalog columns.
const (
	fieldVector = "embedding"
	fieldText   = "embedding_text"
	vectorAlias = "vector"
)

// store is the consumer interface for the catalog (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	DelMulti(ctx context.Context, keys []string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Config names the index and tunes the HNSW graph.
type Config struct {
	IndexName   string
	KeyPrefix   string
	HNSWM       int
	EFConstruct int
	BatchSize   int
}

// Defaults.
const (
	DefaultIndexName = "hwfinder:catalog"
	DefaultBatchSize = 64
)

// DefaultKeyPrefix is the hash key prefix for catalog rows.
var DefaultKeyPrefix = domain.KeyPrefix + "product:"

// Repo implements retrieve.LocalIndex over a Redis vector index.
type Repo struct {
	store    store
	embedder domain.Embedder
	cfg      Config
	logger   *zap.Logger
}

// New creates a catalog repository. embedder vectorizes queries.
func New(s store, embedder domain.Embedder, cfg Config, logger *zap.Logger) *Repo {
	if cfg.IndexName == "" {
		cfg.IndexName = DefaultIndexName
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Repo{store: s, embedder: embedder, cfg: cfg, logger: logger}
}

// Search returns the k nearest catalog rows, best first, scored by cosine similarity.
func (r *Repo) Search(ctx context.Context, text string, k int) ([]product.Scored, error) {
	if k <= 0 {
		return nil, nil
	}

	emb, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	result, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName: r.cfg.IndexName,
		Vector:    emb.Embedding,
		K:         k,
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, fmt.Errorf("index %s: %w", r.cfg.IndexName, domain.ErrIndexUnavailable)
		}
		return nil, fmt.Errorf("knn search %s: %w", r.cfg.IndexName, err)
	}

	out := make([]product.Scored, 0, len(result.Entries))
	for _, e := range result.Entries {
		out = append(out, product.Scored{Raw: rowFromHash(e.Fields), Score: e.Score})
	}
	return out, nil
}

// Ready reports whether the index has been built.
func (r *Repo) Ready(ctx context.Context) (bool, error) {
	ok, err := r.store.IndexExists(ctx, r.cfg.IndexName)
	if err != nil {
		return false, fmt.Errorf("index info %s: %w", r.cfg.IndexName, err)
	}
	return ok, nil
}

// rowFromHash drops the storage-only fields from a stored row.
func rowFromHash(fields map[string]string) product.Raw {
	raw := make(product.Raw, len(fields))
	for k, v := range fields {
		if k == fieldVector || k == fieldText {
			continue
		}
		raw[k] = v
	}
	return raw
}
