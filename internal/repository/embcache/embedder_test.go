package embcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hwfinder/internal/domain"
)

func TestEmbed_MissThenHit(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}, TotalTokens: 10}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ctx := context.Background()

	first, err := ce.Embed(ctx, "brass knob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.TotalTokens != 10 || ms.setCall != 1 {
		t.Fatalf("miss should call provider and store, got tokens=%d sets=%d", first.TotalTokens, ms.setCall)
	}

	inner.result = domain.EmbeddingResult{Embedding: []float32{9, 9, 9}}
	second, err := ce.Embed(ctx, "brass knob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Embedding[0] != 0.1 || second.TotalTokens != 0 {
		t.Errorf("expected cached vector with zero tokens, got %+v", second)
	}
}

func TestEmbed_KeyScopedByModel(t *testing.T) {
	ms := newMemStore()
	a := New(&mockEmbedder{}, ms, "model-a", 0, nil, zap.NewNop())
	b := New(&mockEmbedder{}, ms, "model-b", 0, nil, zap.NewNop())
	if a.cacheKey("x") == b.cacheKey("x") {
		t.Error("different models must not share cache keys")
	}
}

func TestEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{err: errors.New("provider down")}
	ce, ms := newTestCachedEmbedder(t, inner)

	if _, err := ce.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	if ms.setCall != 0 {
		t.Error("failed embeddings must not be cached")
	}
}

func TestEmbed_StoreErrorsDegrade(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.5}}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.getErr = errors.New("connection refused")
	ms.setErr = errors.New("connection refused")

	res, err := ce.Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("store errors should not fail embedding: %v", err)
	}
	if res.Embedding[0] != 0.5 {
		t.Errorf("unexpected vector: %v", res.Embedding)
	}
}

func TestEmbed_CorruptEntryIsMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.5}}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.data[ce.cacheKey("x")] = []byte{1, 2, 3}

	res, err := ce.Embed(context.Background(), "x")
	if err != nil || res.Embedding[0] != 0.5 {
		t.Fatalf("expected provider vector, got %v, %v", res, err)
	}
}

func TestEmbed_TTL(t *testing.T) {
	ms := newMemStore()
	ce := New(&mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}, ms, "m", time.Hour, nil, zap.NewNop())

	if _, err := ce.Embed(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	if ms.ttls[ce.cacheKey("x")] != time.Hour {
		t.Errorf("ttl = %v, want 1h", ms.ttls[ce.cacheKey("x")])
	}
}

func TestBatchEmbed_MixedHitsMisses(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.7}, TotalTokens: 3}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.data[ce.cacheKey("b")] = encodeVector([]float32{0.2})

	res, err := ce.BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.batchCalls != 1 || len(inner.batchSeen[0]) != 2 || inner.batchSeen[0][0] != "a" || inner.batchSeen[0][1] != "c" {
		t.Fatalf("only misses should reach the provider, got %v", inner.batchSeen)
	}
	got := []float32{res.Embeddings[0][0], res.Embeddings[1][0], res.Embeddings[2][0]}
	if got[0] != 0.7 || got[1] != 0.2 || got[2] != 0.7 {
		t.Errorf("vectors out of order: %v", got)
	}
	if res.TotalTokens != 6 {
		t.Errorf("TotalTokens = %d, want 6", res.TotalTokens)
	}
}

func TestBatchEmbed_AllHits(t *testing.T) {
	inner := &mockEmbedder{}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.data[ce.cacheKey("a")] = encodeVector([]float32{0.1})

	if _, err := ce.BatchEmbed(context.Background(), []string{"a"}); err != nil {
		t.Fatal(err)
	}
	if inner.batchCalls != 0 {
		t.Error("provider must not be called when everything is cached")
	}
}

func TestBatchEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{batchErr: domain.ErrEmbedding}
	ce, _ := newTestCachedEmbedder(t, inner)

	_, err := ce.BatchEmbed(context.Background(), []string{"a"})
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
}

func TestBatchEmbed_Empty(t *testing.T) {
	inner := &mockEmbedder{}
	ce, _ := newTestCachedEmbedder(t, inner)

	res, err := ce.BatchEmbed(context.Background(), nil)
	if err != nil || res.Embeddings != nil || inner.batchCalls != 0 {
		t.Errorf("unexpected result: %+v, %v", res, err)
	}
}

func TestCacheCounter(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
	ms := newMemStore()
	ce := New(&mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}, ms, "m", 0, counter, zap.NewNop())

	_, _ = ce.Embed(context.Background(), "x")
	_, _ = ce.Embed(context.Background(), "x")

	if got := testutil.ToFloat64(counter.WithLabelValues("miss")); got != 1 {
		t.Errorf("miss = %v, want 1", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("hit")); got != 1 {
		t.Errorf("hit = %v, want 1", got)
	}
}

func TestVectorRoundTrip(t *testing.T) {
	vec, err := decodeVector(encodeVector([]float32{1.5, -2}))
	if err != nil || len(vec) != 2 || vec[0] != 1.5 || vec[1] != -2 {
		t.Errorf("round trip = %v, %v", vec, err)
	}
	for _, bad := range [][]byte{{1}, nil} {
		if _, err := decodeVector(bad); err == nil {
			t.Errorf("expected error for %v", bad)
		}
	}
}

func TestEmbed_MemoryTierSkipsStore(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.4}}}
	ms := newMemStore()
	ce := New(inner, ms, "m", 0, nil, zap.NewNop(), WithMemoryEntries(8))
	ctx := context.Background()

	if _, err := ce.Embed(ctx, "hinge"); err != nil {
		t.Fatal(err)
	}
	ms.getErr = errors.New("store gone")
	res, err := ce.Embed(ctx, "hinge")
	if err != nil || res.Embedding[0] != 0.4 {
		t.Fatalf("memory hit expected, got %v, %v", res, err)
	}
	if got := inner.embedCalls.Load(); got != 1 {
		t.Errorf("provider calls = %d, want 1", got)
	}
}

func TestEmbed_ConcurrentMissesShareOneCall(t *testing.T) {
	gate := make(chan struct{})
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.9}}, gate: gate}
	ce, _ := newTestCachedEmbedder(t, inner)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ce.Embed(context.Background(), "same text")
			errs <- err
		}()
	}
	// Let every goroutine reach the flight group before the provider answers.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := inner.embedCalls.Load(); got < 1 || got > 4 {
		t.Fatalf("provider calls = %d", got)
	}
}

func TestBatchEmbed_DuplicateTextsEmbeddedOnce(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.3}, TotalTokens: 2}}
	ce, _ := newTestCachedEmbedder(t, inner)

	res, err := ce.BatchEmbed(context.Background(), []string{"knob", "pull", "knob"})
	if err != nil {
		t.Fatal(err)
	}
	if len(inner.batchSeen) != 1 || len(inner.batchSeen[0]) != 2 {
		t.Fatalf("provider saw %v, want two distinct texts", inner.batchSeen)
	}
	if len(res.Embeddings) != 3 || res.Embeddings[2] == nil {
		t.Errorf("duplicate position left empty: %v", res.Embeddings)
	}
}
