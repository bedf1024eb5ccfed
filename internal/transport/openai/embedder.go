package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hwfinder/internal/domain"
)

// Embedder turns catalog rows and shopper queries into vectors for the local index.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	user       string
	provider   string
	logger     *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *Config, logger *zap.Logger) *Embedder {
	return &Embedder{
		client:     newClient(cfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		provider:   providerName(cfg),
		logger:     logger,
	}
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: res.Embeddings[0], TotalTokens: res.TotalTokens}, nil
}

// BatchEmbed implements domain.BatchEmbedder. Vectors are returned in input order.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.user,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	m := startMeter(callEmbedding, e.provider, string(e.model))
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		m.finish("error")
		e.logger.Debug("Embedding request failed", zap.Int("batch_size", len(texts)), zap.Error(err))
		return domain.BatchEmbeddingResult{}, parseAPIError(err, domain.ErrEmbedding)
	}
	m.tokens("total", resp.Usage.TotalTokens)

	out, err := orderEmbeddings(resp.Data, len(texts))
	if err != nil {
		m.finish("incomplete")
		return domain.BatchEmbeddingResult{}, err
	}
	m.finish("ok")

	return domain.BatchEmbeddingResult{Embeddings: out, TotalTokens: resp.Usage.TotalTokens}, nil
}

// orderEmbeddings places each vector at its input index. Every input must receive a vector.
func orderEmbeddings(data []openai.Embedding, n int) ([][]float32, error) {
	out := make([][]float32, n)
	for _, d := range data {
		if d.Index >= 0 && d.Index < n {
			out[d.Index] = d.Embedding
		}
	}
	for i, v := range out {
		if len(v) == 0 {
			return nil, fmt.Errorf("missing embedding for input %d: %w", i, domain.ErrEmbedding)
		}
	}
	return out, nil
}

// HealthCheck verifies the embedding API is reachable.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	return listModels(ctx, e.client)
}
