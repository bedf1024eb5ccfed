package catalog

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hwfinder/internal/db"
	"github.com/kailas-cloud/hwfinder/internal/domain"
)

// BuildStats summarizes a rebuild.
type BuildStats struct {
	Rows       int
	Removed    int
	Dimensions int
	Tokens     int
	Elapsed    time.Duration
}

// Rebuild replaces the catalog with rows. Rows are embedded by docs in batches and the index is recreated.
// The previous index and rows are removed first, so a failed rebuild leaves the index unavailable rather than stale.
func (r *Repo) Rebuild(ctx context.Context, rows []Row, docs domain.Embedder) (BuildStats, error) {
	start := time.Now()
	if len(rows) == 0 {
		return BuildStats{}, errors.New("catalog is empty")
	}

	removed, err := r.clear(ctx)
	if err != nil {
		return BuildStats{}, err
	}
	stats := BuildStats{Removed: removed}

	for from := 0; from < len(rows); from += r.cfg.BatchSize {
		to := min(from+r.cfg.BatchSize, len(rows))
		batch := rows[from:to]

		texts := make([]string, len(batch))
		for i, row := range batch {
			texts[i] = row.EmbeddingText()
		}
		emb, err := domain.EmbedAll(ctx, docs, texts)
		if err != nil {
			return stats, fmt.Errorf("embed rows %d-%d: %w", from, to-1, err)
		}
		if len(emb.Embeddings) != len(batch) {
			return stats, fmt.Errorf("embed rows %d-%d: got %d vectors: %w", from, to-1, len(emb.Embeddings), domain.ErrEmbedding)
		}

		items := make([]db.HashSetItem, len(batch))
		for i, row := range batch {
			vec := emb.Embeddings[i]
			if stats.Dimensions == 0 {
				stats.Dimensions = len(vec)
			}
			if len(vec) != stats.Dimensions {
				return stats, fmt.Errorf("row %d: vector has %d dimensions, want %d: %w",
					from+i, len(vec), stats.Dimensions, domain.ErrEmbedding)
			}
			fields := row.Fields()
			fields[fieldText] = texts[i]
			fields[fieldVector] = vectorToBytes(vec)
			items[i] = db.HashSetItem{Key: r.cfg.KeyPrefix + strconv.Itoa(from+i), Fields: fields}
		}
		if err := r.store.HSetMulti(ctx, items); err != nil {
			return stats, fmt.Errorf("store rows %d-%d: %w", from, to-1, err)
		}

		stats.Rows += len(batch)
		stats.Tokens += emb.TotalTokens
		r.logger.Debug("Catalog batch stored", zap.Int("rows", stats.Rows), zap.Int("total", len(rows)))
	}

	def, err := db.NewIndexDefinition(r.cfg.IndexName, []string{r.cfg.KeyPrefix},
		db.TextField(fieldText),
		db.HNSWField(fieldVector, vectorAlias, stats.Dimensions, db.DistanceCosine,
			db.HNSWParams{M: r.cfg.HNSWM, EFConstruct: r.cfg.EFConstruct}),
	)
	if err != nil {
		return stats, fmt.Errorf("index definition: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		return stats, fmt.Errorf("create index %s: %w", r.cfg.IndexName, err)
	}

	stats.Elapsed = time.Since(start)
	r.logger.Info("Catalog rebuilt",
		zap.String("index", r.cfg.IndexName),
		zap.Int("rows", stats.Rows),
		zap.Int("removed", stats.Removed),
		zap.Int("dimensions", stats.Dimensions),
		zap.Int("tokens", stats.Tokens),
		zap.Duration("elapsed", stats.Elapsed),
	)
	return stats, nil
}

func (r *Repo) clear(ctx context.Context) (int, error) {
	if err := r.store.DropIndex(ctx, r.cfg.IndexName); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return 0, fmt.Errorf("drop index %s: %w", r.cfg.IndexName, err)
	}
	keys, err := r.store.Scan(ctx, r.cfg.KeyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", r.cfg.KeyPrefix, err)
	}
	for from := 0; from < len(keys); from += r.cfg.BatchSize {
		to := min(from+r.cfg.BatchSize, len(keys))
		if err := r.store.DelMulti(ctx, keys[from:to]); err != nil {
			return from, fmt.Errorf("delete old rows: %w", err)
		}
	}
	return len(keys), nil
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
