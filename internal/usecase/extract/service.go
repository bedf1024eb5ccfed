// Package extract turns a free-text utterance into a canonical query.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hwfinder/internal/domain"
	"github.com/kailas-cloud/hwfinder/internal/domain/query"
	"github.com/kailas-cloud/hwfinder/internal/metrics"
)

// DefaultTimeout bounds a single reasoner call.
const DefaultTimeout = 60 * time.Second

var (
	translateOpts = domain.CompletionOptions{MaxTokens: 64, Temperature: 0.1}
	extractOpts   = domain.CompletionOptions{MaxTokens: 256, Temperature: 0.1, JSON: true}
)

// Service extracts facets and search intent from user text.
type Service struct {
	reasoner Reasoner
	logger   *zap.Logger
	mode     query.Mode
	timeout  time.Duration
}

// New creates an extractor.
func New(reasoner Reasoner, logger *zap.Logger) *Service {
	return &Service{
		reasoner: reasoner,
		logger:   logger,
		mode:     query.Hybrid,
		timeout:  DefaultTimeout,
	}
}

// WithMode sets the retrieval mode stamped on every query.
func (s *Service) WithMode(m query.Mode) *Service {
	if m.IsValid() {
		s.mode = m
	}
	return s
}

// WithTimeout configures the per-call reasoner timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Extract never fails: any reasoner problem degrades to a pass-through query.
// history is recent conversation text given to the reasoner as context; it may be empty.
func (s *Service) Extract(ctx context.Context, raw, history string) query.Query {
	text := strings.TrimSpace(raw)
	if text == "" {
		q := query.PassThrough(raw)
		q.Mode = s.mode
		return q
	}

	working := text
	if NeedsTranslation(text) {
		translated, err := s.translate(ctx, text)
		if err != nil {
			s.logger.Warn("Translation failed, keeping raw text", zap.Error(err))
		} else {
			working = translated
		}
	}

	parsed, err := s.extract(ctx, working, history)
	if err != nil {
		s.logger.Warn("Keyword extraction failed, passing query through", zap.Error(err))
		metrics.ExtractionsTotal.WithLabelValues("passthrough").Inc()
		q := query.PassThrough(raw)
		q.Text = working
		q.Mode = s.mode
		return q
	}
	metrics.ExtractionsTotal.WithLabelValues("ok").Inc()

	q := query.Query{
		Raw:             raw,
		Text:            working,
		Facets:          parsed.facets(),
		Ambiguities:     parsed.ambiguities(),
		SearchRequested: bool(parsed.SearchRequest),
		Mode:            s.mode,
	}
	if q.Facets.Category != "" {
		q.Text = q.Facets.Terms()
	}
	return q
}

func (s *Service) translate(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.reasoner.Complete(ctx, translatePrompt(text), translateOpts)
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	out = strings.Trim(strings.TrimSpace(out), `"`)
	if out == "" {
		return "", fmt.Errorf("empty translation: %w", domain.ErrReasonerParse)
	}
	return out, nil
}

func (s *Service) extract(ctx context.Context, text, history string) (extraction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.reasoner.Complete(ctx, extractPrompt(text, history), extractOpts)
	if err != nil {
		return extraction{}, fmt.Errorf("extract: %w", err)
	}
	return parseExtraction(out)
}

// nonLatin lists scripts that are translated before extraction.
var nonLatin = []*unicode.RangeTable{
	unicode.Han, unicode.Hiragana, unicode.Katakana,
	unicode.Hangul, unicode.Cyrillic, unicode.Arabic,
}

// NeedsTranslation reports whether text contains a script the catalog cannot be searched with.
func NeedsTranslation(text string) bool {
	for _, r := range text {
		if unicode.IsOneOf(nonLatin, r) {
			return true
		}
	}
	return false
}

func translatePrompt(text string) string {
	return "Please translate the following product keywords to English, keep it concise. " +
		"Reply with the translation only.\n\n" + text
}

func extractPrompt(text, history string) string {
	var b strings.Builder
	b.WriteString(`You are an intelligent shopping assistant for a hardware store.
Extract the product category, usage, style, material, budget and brand from the user description.
Set "search_request" to true only if the user explicitly asks to search now.
List in "ambiguities" any term you could not interpret.
Use empty strings for anything not mentioned.

Example:
User description: "I want to buy a cabinet handle suitable for Nordic style, preferably stainless steel."
{"category": "handle", "usage": "cabinet", "style": "nordic", "material": "stainless steel", "budget": "", "brand": "", "search_request": false, "ambiguities": []}
`)
	if history != "" {
		b.WriteString("\nConversation so far:\n")
		b.WriteString(history)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nUser description: %q\nOutput only the JSON object:", text)
	return b.String()
}
