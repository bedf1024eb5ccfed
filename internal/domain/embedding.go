package domain

import (
	"context"
	"fmt"
)

// Embedder turns catalog or query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes several texts in one provider call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// EmbeddingResult carries a vector and the tokens it cost.
type EmbeddingResult struct {
	Embedding   []float32
	TotalTokens int
}

// BatchEmbeddingResult carries one vector per input text.
type BatchEmbeddingResult struct {
	Embeddings  [][]float32
	TotalTokens int
}

// EmbedAll vectorizes texts, using the native batch call when the embedder has one.
func EmbedAll(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	if be, ok := e.(BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}
		return res, nil
	}

	out := BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("embed [%d]: %w", i, err)
		}
		out.Embeddings[i] = res.Embedding
		out.TotalTokens += res.TotalTokens
	}
	return out, nil
}

// QueryEmbedder prefixes every query with a retrieval instruction before embedding.
// Catalog entries are embedded without the prefix.
type QueryEmbedder struct {
	inner       Embedder
	instruction string
}

// NewQueryEmbedder wraps inner with an instruction prefix.
func NewQueryEmbedder(inner Embedder, instruction string) *QueryEmbedder {
	return &QueryEmbedder{inner: inner, instruction: instruction}
}

// Embed prepends the instruction and delegates.
func (e *QueryEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	res, err := e.inner.Embed(ctx, e.instruction+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("query embed: %w", err)
	}
	return res, nil
}
