package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	texts  []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.texts = append(s.texts, text)
	return s.result, s.err
}

type stubBatchEmbedder struct {
	stubEmbedder
	batch      BatchEmbeddingResult
	batchTexts []string
}

func (s *stubBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	s.batchTexts = texts
	return s.batch, nil
}

func TestQueryEmbedder_PrependsInstruction(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.1, 0.2}}}
	emb := NewQueryEmbedder(inner, "query: ")

	res, err := emb.Embed(context.Background(), "brass knob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.texts[0] != "query: brass knob" {
		t.Errorf("expected prefixed text, got %q", inner.texts[0])
	}
	if len(res.Embedding) != 2 {
		t.Errorf("expected 2-element vector, got %d", len(res.Embedding))
	}
}

func TestQueryEmbedder_WrapsError(t *testing.T) {
	innerErr := errors.New("provider down")
	emb := NewQueryEmbedder(&stubEmbedder{err: innerErr}, "")

	if _, err := emb.Embed(context.Background(), "x"); !errors.Is(err, innerErr) {
		t.Fatalf("expected wrapped inner error, got %v", err)
	}
}

func TestEmbedAll_FallsBackToSingleCalls(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{1}, TotalTokens: 3}}

	res, err := EmbedAll(context.Background(), inner, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(res.Embeddings))
	}
	if res.TotalTokens != 9 {
		t.Errorf("expected 9 tokens, got %d", res.TotalTokens)
	}
	if len(inner.texts) != 3 {
		t.Errorf("expected 3 single calls, got %d", len(inner.texts))
	}
}

func TestEmbedAll_UsesNativeBatch(t *testing.T) {
	inner := &stubBatchEmbedder{batch: BatchEmbeddingResult{Embeddings: [][]float32{{1}, {2}}}}

	res, err := EmbedAll(context.Background(), inner, []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(res.Embeddings))
	}
	if len(inner.texts) != 0 {
		t.Errorf("single Embed should not be called, got %d calls", len(inner.texts))
	}
	if len(inner.batchTexts) != 2 {
		t.Errorf("expected batch of 2, got %d", len(inner.batchTexts))
	}
}

func TestEmbedAll_StopsOnError(t *testing.T) {
	inner := &stubEmbedder{err: errors.New("boom")}
	if _, err := EmbedAll(context.Background(), inner, []string{"a", "b"}); err == nil {
		t.Fatal("expected error")
	}
	if len(inner.texts) != 1 {
		t.Errorf("expected to stop after first failure, got %d calls", len(inner.texts))
	}
}
