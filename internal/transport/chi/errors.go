package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hwfinder/internal/domain"
)

// ErrorCode is the machine-readable error kind returned to clients.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest           ErrorCode = "bad_request"
	CodeUnauthorized         ErrorCode = "unauthorized"
	CodeValidationFailed     ErrorCode = "validation_failed"
	CodeConversationNotFound ErrorCode = "conversation_not_found"
	CodeConversationClosed   ErrorCode = "conversation_closed"
	CodeProductNotFound      ErrorCode = "product_not_found"
	CodeSourceTimeout        ErrorCode = "source_timeout"
	CodeSourceError          ErrorCode = "source_error"
	CodeIndexUnavailable     ErrorCode = "index_unavailable"
	CodeReasonerError        ErrorCode = "reasoner_error"
	CodeRetrievalExhausted   ErrorCode = "retrieval_exhausted"
	CodeCanceled             ErrorCode = "canceled"
	CodeInternalError        ErrorCode = "internal_error"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

type sentinelMapping struct {
	err    error
	status int
	code   ErrorCode
}

// Ordered most specific first: a fetch timeout inside an exhausted retrieval reports as exhausted.
var sentinelMappings = []sentinelMapping{
	{domain.ErrConversationNotFound, http.StatusNotFound, CodeConversationNotFound},
	{domain.ErrConversationClosed, http.StatusConflict, CodeConversationClosed},
	{domain.ErrProductNotFound, http.StatusNotFound, CodeProductNotFound},
	{domain.ErrRetrievalExhausted, http.StatusBadGateway, CodeRetrievalExhausted},
	{domain.ErrFetchTimeout, http.StatusGatewayTimeout, CodeSourceTimeout},
	{domain.ErrFetch, http.StatusBadGateway, CodeSourceError},
	{domain.ErrIndexUnavailable, http.StatusServiceUnavailable, CodeIndexUnavailable},
	{domain.ErrReasonerParse, http.StatusBadGateway, CodeReasonerError},
	{domain.ErrReasoner, http.StatusBadGateway, CodeReasonerError},
	{domain.ErrEmbedding, http.StatusBadGateway, CodeIndexUnavailable},
	{domain.ErrInvalidConfig, http.StatusInternalServerError, CodeInternalError},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	for _, m := range sentinelMappings {
		if errors.Is(err, m.err) {
			return m.err.Error()
		}
	}
	return "internal error"
}

// errorCode maps an error to its client code.
func errorCode(err error) ErrorCode {
	for _, m := range sentinelMappings {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	return CodeInternalError
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// canceledHandler reports turns aborted by a client or a DELETE.
func canceledHandler(w http.ResponseWriter, err error, _ string) bool {
	if !errors.Is(err, context.Canceled) {
		return false
	}
	writeError(w, statusClientClosedRequest, CodeCanceled, "request canceled")
	return true
}

// statusClientClosedRequest is the nginx convention for a request the client gave up on.
const statusClientClosedRequest = 499

func defaultErrorHandlers() []errorHandler {
	handlers := make([]errorHandler, 0, len(sentinelMappings)+1)
	for _, m := range sentinelMappings {
		handlers = append(handlers, sentinelHandler(m.err, m.status, m.code))
	}
	return append(handlers, canceledHandler)
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.log(r)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
