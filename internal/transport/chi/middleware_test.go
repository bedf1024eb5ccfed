package chi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	logpkg "github.com/kailas-cloud/hwfinder/internal/logger"
)

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	var handlerLogger *zap.Logger

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(accessLog(zap.New(core)))
	r.Post("/v1/conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		handlerLogger = logpkg.FromContextOr(r.Context(), nil)
		w.WriteHeader(http.StatusBadGateway)
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/conversations/c-42/messages", http.NoBody))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if handlerLogger == nil {
		t.Fatal("handler did not receive a request logger")
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d log entries, want 2", len(entries))
	}
	turn := entries[0]
	if turn.Level != zapcore.WarnLevel {
		t.Errorf("5xx level = %v, want warn", turn.Level)
	}
	fields := turn.ContextMap()
	if fields["conversation_id"] != "c-42" || fields["status"] != int64(http.StatusBadGateway) || fields["request_id"] == "" {
		t.Errorf("unexpected fields: %v", fields)
	}
	if entries[1].Level != zapcore.DebugLevel {
		t.Errorf("health level = %v, want debug", entries[1].Level)
	}
}
