// Package embcache keeps query and catalog embeddings so repeated text is vectorized once.
// Lookups go to an optional in-process LRU, then to the key-value store; concurrent misses
// for the same text share one provider call.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/hwfinder/internal/db"
	"github.com/kailas-cloud/hwfinder/internal/domain"
)

var cacheKeyPrefix = domain.KeyPrefix + "emb_cache:"

type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type inner interface {
	domain.Embedder
	domain.BatchEmbedder
}

// CachedEmbedder decorates an embedding provider with a two-tier cache.
type CachedEmbedder struct {
	inner      inner
	store      store
	model      string
	ttl        time.Duration
	hot        *lru.Cache[string, []float32]
	flight     singleflight.Group
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// Option configures a CachedEmbedder.
type Option func(*CachedEmbedder)

// WithMemoryEntries keeps up to n vectors in process memory in front of the store. n <= 0 disables it.
func WithMemoryEntries(n int) Option {
	return func(c *CachedEmbedder) {
		if n <= 0 {
			return
		}
		hot, err := lru.New[string, []float32](n)
		if err == nil {
			c.hot = hot
		}
	}
}

// New wraps in. Keys include model so switching models never serves stale vectors.
// ttl <= 0 keeps store entries forever. cacheTotal is labelled by result (hit or miss) and may be nil.
func New(
	in inner,
	s store,
	model string,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
	opts ...Option,
) *CachedEmbedder {
	c := &CachedEmbedder{
		inner:      in,
		store:      s,
		model:      model,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Embed returns the cached vector with TotalTokens 0, or asks the provider.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)
	if vec, ok := c.lookup(ctx, key); ok {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	v, err, _ := c.flight.Do(key, func() (any, error) {
		res, err := c.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		c.remember(ctx, key, res.Embedding)
		return res, nil
	})
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	return v.(domain.EmbeddingResult), nil
}

// BatchEmbed answers hits from the cache and sends each distinct missing text to the provider once.
// Vectors come back in input order.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	out := make([][]float32, len(texts))
	var (
		missing []string
		missKey []string
		waiting = map[string][]int{}
	)
	for i, text := range texts {
		key := c.cacheKey(text)
		if pos, seen := waiting[key]; seen {
			waiting[key] = append(pos, i)
			continue
		}
		if vec, ok := c.lookup(ctx, key); ok {
			out[i] = vec
			continue
		}
		waiting[key] = []int{i}
		missing = append(missing, text)
		missKey = append(missKey, key)
	}
	if len(missing) == 0 {
		return domain.BatchEmbeddingResult{Embeddings: out}, nil
	}

	res, err := c.inner.BatchEmbed(ctx, missing)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed %d texts: %w", len(missing), err)
	}
	if len(res.Embeddings) != len(missing) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"batch embed: %d vectors for %d texts: %w", len(res.Embeddings), len(missing), domain.ErrEmbedding)
	}
	for j, key := range missKey {
		vec := res.Embeddings[j]
		for _, i := range waiting[key] {
			out[i] = vec
		}
		c.remember(ctx, key, vec)
	}
	return domain.BatchEmbeddingResult{Embeddings: out, TotalTokens: res.TotalTokens}, nil
}

func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// lookup checks memory, then the store. Store failures and corrupt entries count as misses.
func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	if c.hot != nil {
		if vec, ok := c.hot.Get(key); ok {
			c.count("hit")
			return vec, true
		}
	}

	data, err := c.store.Get(ctx, key)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
	case err != nil:
		c.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
	default:
		vec, derr := decodeVector(data)
		if derr == nil {
			if c.hot != nil {
				c.hot.Add(key, vec)
			}
			c.count("hit")
			return vec, true
		}
		c.logger.Warn("Dropping corrupt cached embedding", zap.String("key", key), zap.Error(derr))
	}
	c.count("miss")
	return nil, false
}

// remember writes vec to both tiers. A failed store write only loses the cache entry.
func (c *CachedEmbedder) remember(ctx context.Context, key string, vec []float32) {
	if c.hot != nil {
		c.hot.Add(key, vec)
	}
	if err := c.store.Put(ctx, key, encodeVector(vec), c.ttl); err != nil {
		c.logger.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedEmbedder) count(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

// encodeVector packs v as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 0, 4*len(v))
	for _, f := range v {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("cached vector has %d bytes, want a positive multiple of 4", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return vec, nil
}
