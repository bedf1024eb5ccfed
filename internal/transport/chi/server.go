// Package chi exposes conversations, detail lookups and batch runs over HTTP.
package chi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	dombatch "github.com/kailas-cloud/hwfinder/internal/domain/batch"
	domdialogue "github.com/kailas-cloud/hwfinder/internal/domain/dialogue"
	"github.com/kailas-cloud/hwfinder/internal/domain/product"
	"github.com/kailas-cloud/hwfinder/internal/domain/query"
	logpkg "github.com/kailas-cloud/hwfinder/internal/logger"
	"github.com/kailas-cloud/hwfinder/internal/metrics"
	"github.com/kailas-cloud/hwfinder/internal/usecase/dialogue"
	"github.com/kailas-cloud/hwfinder/internal/usecase/health"
)

const maxBodyBytes = 1 << 20

// Server serves the HTTP API.
type Server struct {
	conversations Conversations
	details       DetailResolver
	batch         BatchRunner
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	conversations Conversations,
	details DetailResolver,
	batch BatchRunner,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	return &Server{
		conversations: conversations,
		details:       details,
		batch:         batch,
		health:        health,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Router mounts every route behind the middleware chain.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(recoverJSON(s.logger))
	r.Use(accessLog(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/conversations", s.StartConversation)
		r.Route("/conversations/{id}", func(r chi.Router) {
			r.Get("/", s.GetConversation)
			r.Delete("/", s.EndConversation)
			r.Post("/messages", s.SendMessage)
			r.Post("/cancel", s.CancelTurn)
		})
		r.Post("/products/details", s.ProductDetails)
		r.Post("/batch", s.RunBatch)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	return r
}

// ConversationResponse is returned when a conversation starts.
type ConversationResponse struct {
	ID    string         `json:"id"`
	Reply dialogue.Reply `json:"reply"`
}

// MessageRequest is one user turn. SearchNow forces a search with the facets known so far.
type MessageRequest struct {
	Text      string `json:"text"`
	SearchNow bool   `json:"search_now"`
}

// ConversationState is the public view of a conversation.
type ConversationState struct {
	ID             string                       `json:"id"`
	StartedAt      time.Time                    `json:"started_at"`
	Status         domdialogue.Status           `json:"status"`
	Facets         query.Facets                 `json:"facets"`
	CompletionRate float64                      `json:"completion_rate"`
	Clarifications int                          `json:"clarifications"`
	Shortlist      []domdialogue.Recommendation `json:"shortlist"`
	History        []domdialogue.Turn           `json:"history"`
}

// DetailRequest names one product exactly as shown in a shortlist.
type DetailRequest struct {
	Name string `json:"name"`
}

// BatchRequest lists independent queries.
type BatchRequest struct {
	Queries []string `json:"queries"`
}

// BatchResultItem is the outcome of one batch query.
type BatchResultItem struct {
	Query    string              `json:"query"`
	Status   dombatch.ItemStatus `json:"status"`
	Products []product.Product   `json:"products"`
	Error    *ErrorResponse      `json:"error,omitempty"`
}

// BatchResponse keeps results in input order.
type BatchResponse struct {
	Results []BatchResultItem `json:"results"`
}

// StartConversation handles POST /v1/conversations.
func (s *Server) StartConversation(w http.ResponseWriter, r *http.Request) {
	id, reply := s.conversations.Start()
	s.log(r).Info("conversation started", zap.String("conversation_id", id))
	writeJSON(w, http.StatusCreated, ConversationResponse{ID: id, Reply: reply})
}

// GetConversation handles GET /v1/conversations/{id}.
func (s *Server) GetConversation(w http.ResponseWriter, r *http.Request) {
	st, err := s.conversations.Snapshot(chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := ConversationState{
		ID:             st.ID,
		StartedAt:      st.StartedAt,
		Status:         st.Status,
		Facets:         st.Facets,
		CompletionRate: st.CompletionRate(),
		Clarifications: st.Clarifications,
		Shortlist:      st.Shortlist,
		History:        st.History,
	}
	if resp.Shortlist == nil {
		resp.Shortlist = []domdialogue.Recommendation{}
	}
	if resp.History == nil {
		resp.History = []domdialogue.Turn{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// SendMessage handles POST /v1/conversations/{id}/messages.
func (s *Server) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if !s.decode(w, r, &req) {
		return
	}

	var ev dialogue.Event
	switch {
	case req.SearchNow:
		ev = dialogue.SearchNow{}
	case strings.TrimSpace(req.Text) == "":
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "text is required unless search_now is set")
		return
	default:
		ev = dialogue.UserMessage{Text: req.Text}
	}

	reply, err := s.conversations.Send(r.Context(), chi.URLParam(r, "id"), ev)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// CancelTurn handles POST /v1/conversations/{id}/cancel.
func (s *Server) CancelTurn(w http.ResponseWriter, r *http.Request) {
	running, err := s.conversations.Cancel(chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"canceled": running})
}

// EndConversation handles DELETE /v1/conversations/{id}.
func (s *Server) EndConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.conversations.End(chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ProductDetails handles POST /v1/products/details.
func (s *Server) ProductDetails(w http.ResponseWriter, r *http.Request) {
	var req DetailRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "name is required")
		return
	}

	p, err := s.details.Resolve(r.Context(), req.Name)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// RunBatch handles POST /v1/batch.
func (s *Server) RunBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Queries) == 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "queries must not be empty")
		return
	}

	results := s.batch.Run(r.Context(), req.Queries)
	items := make([]BatchResultItem, len(results))
	for i, res := range results {
		items[i] = batchResultItem(res)
	}
	writeJSON(w, http.StatusOK, BatchResponse{Results: items})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status == health.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) log(r *http.Request) *zap.Logger {
	return logpkg.FromContextOr(r.Context(), s.logger)
}

func batchResultItem(r dombatch.Result) BatchResultItem {
	products := r.Products()
	if products == nil {
		products = []product.Product{}
	}
	item := BatchResultItem{
		Query:    r.Query(),
		Status:   r.Status(),
		Products: products,
	}
	if r.Err() != nil {
		item.Error = &ErrorResponse{
			Code:    errorCode(r.Err()),
			Message: safeDomainMessage(r.Err()),
		}
	}
	return item
}
