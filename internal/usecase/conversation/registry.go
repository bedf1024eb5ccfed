// Package conversation owns live conversations and serializes turns within each one.
package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hwfinder/internal/domain"
	domdialogue "github.com/kailas-cloud/hwfinder/internal/domain/dialogue"
	"github.com/kailas-cloud/hwfinder/internal/metrics"
	"github.com/kailas-cloud/hwfinder/internal/usecase/dialogue"
)

type entry struct {
	// turn serializes events for one conversation.
	turn  sync.Mutex
	state *domdialogue.State

	mu         sync.Mutex
	cancel     context.CancelFunc
	lastActive time.Time
}

func (e *entry) setCancel(c context.CancelFunc) {
	e.mu.Lock()
	e.cancel = c
	e.mu.Unlock()
}

func (e *entry) abort() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel == nil {
		return false
	}
	e.cancel()
	return true
}

func (e *entry) touch(now time.Time) {
	e.mu.Lock()
	e.lastActive = now
	e.mu.Unlock()
}

// stale reports an idle conversation last active before cutoff. A running turn is never stale.
func (e *entry) stale(cutoff time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel == nil && e.lastActive.Before(cutoff)
}

// Registry holds isolated conversation states keyed by ID.
type Registry struct {
	mu      sync.Mutex
	convs   map[string]*entry
	handler Handler
	logger  *zap.Logger
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(handler Handler, logger *zap.Logger) *Registry {
	return &Registry{
		convs:   make(map[string]*entry),
		handler: handler,
		logger:  logger,
		now:     time.Now,
	}
}

// Start opens a conversation and returns its ID with the greeting.
func (r *Registry) Start() (string, dialogue.Reply) {
	id := uuid.NewString()
	now := r.now()
	e := &entry{state: domdialogue.NewState(id, now), lastActive: now}
	reply := r.handler.Greet(e.state)

	r.mu.Lock()
	r.convs[id] = e
	n := len(r.convs)
	r.mu.Unlock()

	metrics.ActiveConversations.Set(float64(n))
	r.logger.Debug("Conversation started", zap.String("conversation_id", id))
	return id, reply
}

// Send applies an event. Turns for the same conversation run one at a time; different
// conversations never block each other.
func (r *Registry) Send(ctx context.Context, id string, ev dialogue.Event) (dialogue.Reply, error) {
	e, err := r.get(id)
	if err != nil {
		return dialogue.Reply{}, err
	}

	e.turn.Lock()
	defer e.turn.Unlock()
	e.touch(r.now())

	tctx, cancel := context.WithCancel(ctx)
	e.setCancel(cancel)
	defer func() {
		e.setCancel(nil)
		cancel()
	}()

	reply, err := r.handler.Handle(tctx, e.state, ev)
	e.touch(r.now())
	if err != nil {
		return reply, fmt.Errorf("conversation %s: %w", id, err)
	}
	return reply, nil
}

// Cancel aborts the in-flight turn of one conversation. It reports whether a turn was running.
func (r *Registry) Cancel(id string) (bool, error) {
	e, err := r.get(id)
	if err != nil {
		return false, err
	}
	return e.abort(), nil
}

// End aborts any in-flight turn and forgets the conversation.
func (r *Registry) End(id string) error {
	r.mu.Lock()
	e, ok := r.convs[id]
	delete(r.convs, id)
	n := len(r.convs)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", id, domain.ErrConversationNotFound)
	}
	e.abort()
	metrics.ActiveConversations.Set(float64(n))
	return nil
}

// Snapshot returns a copy of the conversation state, waiting for any in-flight turn.
func (r *Registry) Snapshot(id string) (domdialogue.State, error) {
	e, err := r.get(id)
	if err != nil {
		return domdialogue.State{}, err
	}
	e.turn.Lock()
	defer e.turn.Unlock()

	st := *e.state
	st.History = append([]domdialogue.Turn(nil), e.state.History...)
	st.Shortlist = append([]domdialogue.Recommendation(nil), e.state.Shortlist...)
	return st, nil
}

// Prune forgets conversations idle for longer than ttl and returns how many were removed.
func (r *Registry) Prune(ttl time.Duration) int {
	cutoff := r.now().Add(-ttl)
	r.mu.Lock()
	var stale []*entry
	for id, e := range r.convs {
		if e.stale(cutoff) {
			stale = append(stale, e)
			delete(r.convs, id)
		}
	}
	n := len(r.convs)
	r.mu.Unlock()

	for _, e := range stale {
		e.abort()
	}
	metrics.ActiveConversations.Set(float64(n))
	return len(stale)
}

// Len returns the number of live conversations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.convs)
}

func (r *Registry) get(id string) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.convs[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrConversationNotFound)
	}
	return e, nil
}
