// Package openai adapts OpenAI-compatible APIs (OpenAI, Azure OpenAI, Nebius) to the domain interfaces.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/hwfinder/internal/metrics"
)

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
)

// Config holds the provider connection settings shared by the reasoner and the embedder.
type Config struct {
	Provider string
	APIKey   string
	BaseURL  string
	// APIVersion is used by Azure only.
	APIVersion string
	// Model is the model name, or the deployment name on Azure.
	Model      string
	Dimensions int
	User       string
}

func newClient(cfg *Config) *openai.Client {
	if cfg.Provider == ProviderAzure {
		clientCfg := openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		if cfg.APIVersion != "" {
			clientCfg.APIVersion = cfg.APIVersion
		}
		deployment := cfg.Model
		clientCfg.AzureModelMapperFunc = func(string) string { return deployment }
		return openai.NewClientWithConfig(clientCfg)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

func providerName(cfg *Config) string {
	if cfg.Provider == "" {
		return ProviderOpenAI
	}
	return cfg.Provider
}

// listModels is the cheapest authenticated call; health checks use it.
func listModels(ctx context.Context, c *openai.Client) error {
	if _, err := c.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Call kinds used as the metrics call label.
const (
	callCompletion = "completion"
	callEmbedding  = "embedding"
)

// meter records one model API call.
type meter struct {
	call     string
	provider string
	model    string
	started  time.Time
}

func startMeter(call, provider, model string) meter {
	return meter{call: call, provider: provider, model: model, started: time.Now()}
}

func (m meter) finish(status string) time.Duration {
	elapsed := time.Since(m.started)
	metrics.ModelRequestsTotal.WithLabelValues(m.call, m.provider, m.model, status).Inc()
	metrics.ModelRequestDuration.WithLabelValues(m.call, m.provider).Observe(elapsed.Seconds())
	return elapsed
}

func (m meter) tokens(kind string, n int) {
	if n > 0 {
		metrics.ModelTokensTotal.WithLabelValues(m.call, m.model, kind).Add(float64(n))
	}
}

// parseAPIError extracts a human-readable error from the API response and wraps it with the given sentinel.
// The transport error stays in the chain so context deadlines remain detectable.
func parseAPIError(err error, wrap error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("request failed: %w: %w", wrap, err)
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
