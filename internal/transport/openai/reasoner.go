package openai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hwfinder/internal/domain"
)

// Reasoner implements domain.Reasoner with chat completions.
type Reasoner struct {
	client   *openai.Client
	model    string
	user     string
	provider string
	logger   *zap.Logger
}

// NewReasoner creates a chat completion reasoner.
func NewReasoner(cfg *Config, logger *zap.Logger) *Reasoner {
	return &Reasoner{
		client:   newClient(cfg),
		model:    cfg.Model,
		user:     cfg.User,
		provider: providerName(cfg),
		logger:   logger,
	}
}

// Complete sends a single user message and returns the first choice.
func (r *Reasoner) Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		User:        r.user,
	}
	if opts.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	m := startMeter(callCompletion, r.provider, r.model)
	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		elapsed := m.finish("error")
		r.logger.Debug("Completion request failed",
			zap.String("provider", r.provider),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return "", parseAPIError(err, domain.ErrReasoner)
	}
	m.tokens("prompt", resp.Usage.PromptTokens)
	m.tokens("completion", resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		m.finish("empty")
		return "", fmt.Errorf("empty completion: %w", domain.ErrReasonerParse)
	}
	m.finish("ok")

	return resp.Choices[0].Message.Content, nil
}

// HealthCheck verifies the completion API is reachable.
func (r *Reasoner) HealthCheck(ctx context.Context) error {
	return listModels(ctx, r.client)
}
