package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrReasoner signals a failed completion call (timeout, quota, malformed response).
	ErrReasoner = errors.New("reasoner error")
	// ErrReasonerParse signals a completion that could not be parsed into the expected shape.
	ErrReasonerParse = errors.New("reasoner parse error")

	// ErrEmbedding signals a failed embedding provider call.
	ErrEmbedding = errors.New("embedding provider error")

	// ErrFetchTimeout signals that the online source did not answer in time.
	ErrFetchTimeout = errors.New("fetch timeout")
	// ErrFetch signals any other online source failure.
	ErrFetch = errors.New("fetch error")
	// ErrIndexUnavailable signals that the local index has not been built or loaded.
	ErrIndexUnavailable = errors.New("local index unavailable")

	// ErrProductNotFound signals that no product matched an exact-name lookup.
	ErrProductNotFound = errors.New("product not found")
	// ErrRetrievalExhausted signals that every configured source came back empty or failed.
	ErrRetrievalExhausted = errors.New("retrieval exhausted")

	// ErrConversationNotFound signals an unknown conversation ID.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrConversationClosed signals a message sent to a completed conversation.
	ErrConversationClosed = errors.New("conversation closed")

	// ErrInvalidConfig signals a configuration that cannot be served.
	ErrInvalidConfig = errors.New("invalid config")
)

// ExhaustedError wraps ErrRetrievalExhausted with the per-source causes.
type ExhaustedError struct {
	Causes []error
}

func (e *ExhaustedError) Error() string {
	if len(e.Causes) == 0 {
		return ErrRetrievalExhausted.Error() + ": no results from any source"
	}
	parts := make([]string, len(e.Causes))
	for i, c := range e.Causes {
		parts[i] = c.Error()
	}
	return fmt.Sprintf("%s: %s", ErrRetrievalExhausted.Error(), strings.Join(parts, "; "))
}

func (e *ExhaustedError) Unwrap() []error {
	return append([]error{ErrRetrievalExhausted}, e.Causes...)
}

// NewExhausted creates a retrieval exhausted error. Nil causes are dropped.
func NewExhausted(causes ...error) error {
	kept := make([]error, 0, len(causes))
	for _, c := range causes {
		if c != nil {
			kept = append(kept, c)
		}
	}
	return &ExhaustedError{Causes: kept}
}
