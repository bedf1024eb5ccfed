package conversation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hwfinder/internal/domain"
	domdialogue "github.com/kailas-cloud/hwfinder/internal/domain/dialogue"
	"github.com/kailas-cloud/hwfinder/internal/usecase/dialogue"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- Mocks ---

// mockHandler echoes messages into state; "wait" blocks until the turn is cancelled.
type mockHandler struct {
	inflight sync.Map // conversation ID -> *int32
	overlap  atomic.Bool
	started  chan string
}

func (m *mockHandler) Greet(st *domdialogue.State) dialogue.Reply {
	return dialogue.Reply{Text: "hello", Status: st.Status}
}

func (m *mockHandler) Handle(ctx context.Context, st *domdialogue.State, ev dialogue.Event) (dialogue.Reply, error) {
	v, _ := m.inflight.LoadOrStore(st.ID, new(int32))
	counter := v.(*int32)
	if atomic.AddInt32(counter, 1) > 1 {
		m.overlap.Store(true)
	}
	defer atomic.AddInt32(counter, -1)

	msg, _ := ev.(dialogue.UserMessage)
	if msg.Text == "wait" {
		if m.started != nil {
			m.started <- st.ID
		}
		<-ctx.Done()
		return dialogue.Reply{}, ctx.Err()
	}
	time.Sleep(time.Millisecond)
	st.AddTurn(domdialogue.RoleUser, msg.Text, time.Now())
	return dialogue.Reply{Text: msg.Text, Status: st.Status}, nil
}

func TestRegistry_StartAndSend(t *testing.T) {
	r := NewRegistry(&mockHandler{}, zap.NewNop())

	id, greeting := r.Start()
	if id == "" || greeting.Text != "hello" {
		t.Fatalf("Start() = %q, %+v", id, greeting)
	}

	reply, err := r.Send(context.Background(), id, dialogue.UserMessage{Text: "knob"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Text != "knob" {
		t.Errorf("Text = %q", reply.Text)
	}

	st, err := r.Snapshot(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(st.History) != 1 || st.ID != id {
		t.Errorf("unexpected snapshot: %+v", st)
	}
}

func TestRegistry_UnknownConversation(t *testing.T) {
	r := NewRegistry(&mockHandler{}, zap.NewNop())

	if _, err := r.Send(context.Background(), "nope", dialogue.UserMessage{}); !errors.Is(err, domain.ErrConversationNotFound) {
		t.Errorf("Send err = %v", err)
	}
	if _, err := r.Cancel("nope"); !errors.Is(err, domain.ErrConversationNotFound) {
		t.Errorf("Cancel err = %v", err)
	}
	if err := r.End("nope"); !errors.Is(err, domain.ErrConversationNotFound) {
		t.Errorf("End err = %v", err)
	}
	if _, err := r.Snapshot("nope"); !errors.Is(err, domain.ErrConversationNotFound) {
		t.Errorf("Snapshot err = %v", err)
	}
}

func TestRegistry_SerializesTurnsPerConversation(t *testing.T) {
	h := &mockHandler{}
	r := NewRegistry(h, zap.NewNop())
	a, _ := r.Start()
	b, _ := r.Start()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		for _, id := range []string{a, b} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = r.Send(context.Background(), id, dialogue.UserMessage{Text: "x"})
			}()
		}
	}
	wg.Wait()

	if h.overlap.Load() {
		t.Error("turns of one conversation overlapped")
	}
	for _, id := range []string{a, b} {
		st, _ := r.Snapshot(id)
		if len(st.History) != 20 {
			t.Errorf("%s: history = %d, want 20", id, len(st.History))
		}
	}
}

func TestRegistry_CancelAffectsOnlyOneConversation(t *testing.T) {
	h := &mockHandler{started: make(chan string, 1)}
	r := NewRegistry(h, zap.NewNop())
	a, _ := r.Start()
	b, _ := r.Start()

	done := make(chan error, 1)
	go func() {
		_, err := r.Send(context.Background(), a, dialogue.UserMessage{Text: "wait"})
		done <- err
	}()
	<-h.started

	reply, err := r.Send(context.Background(), b, dialogue.UserMessage{Text: "free"})
	if err != nil || reply.Text != "free" {
		t.Fatalf("other conversation blocked: %v", err)
	}

	running, err := r.Cancel(a)
	if err != nil || !running {
		t.Fatalf("Cancel() = %v, %v", running, err)
	}
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("in-flight turn err = %v, want context.Canceled", err)
	}

	running, _ = r.Cancel(b)
	if running {
		t.Error("idle conversation reported a running turn")
	}
}

func TestRegistry_EndAbortsAndForgets(t *testing.T) {
	h := &mockHandler{started: make(chan string, 1)}
	r := NewRegistry(h, zap.NewNop())
	id, _ := r.Start()

	done := make(chan error, 1)
	go func() {
		_, err := r.Send(context.Background(), id, dialogue.UserMessage{Text: "wait"})
		done <- err
	}()
	<-h.started

	if err := r.End(id); err != nil {
		t.Fatal(err)
	}
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRegistry_Prune(t *testing.T) {
	r := NewRegistry(&mockHandler{}, zap.NewNop())
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }
	old, _ := r.Start()

	r.now = func() time.Time { return base.Add(time.Hour) }
	fresh, _ := r.Start()

	if n := r.Prune(30 * time.Minute); n != 1 {
		t.Errorf("Prune() = %d, want 1", n)
	}
	if _, err := r.Snapshot(old); !errors.Is(err, domain.ErrConversationNotFound) {
		t.Error("stale conversation should be gone")
	}
	if _, err := r.Snapshot(fresh); err != nil {
		t.Errorf("fresh conversation should remain: %v", err)
	}
}

func TestRegistry_PruneSparesRunningTurn(t *testing.T) {
	h := &mockHandler{started: make(chan string, 1)}
	r := NewRegistry(h, zap.NewNop())
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var clock atomic.Int64
	clock.Store(base.UnixNano())
	r.now = func() time.Time { return time.Unix(0, clock.Load()).UTC() }
	id, _ := r.Start()

	clock.Store(base.Add(29 * time.Minute).UnixNano())
	done := make(chan error, 1)
	go func() {
		_, err := r.Send(context.Background(), id, dialogue.UserMessage{Text: "wait"})
		done <- err
	}()
	<-h.started

	clock.Store(base.Add(time.Hour).UnixNano())
	if n := r.Prune(30 * time.Minute); n != 0 {
		t.Errorf("Prune() = %d, want 0 while a turn is running", n)
	}
	if _, err := r.Cancel(id); err != nil {
		t.Fatalf("conversation pruned mid-turn: %v", err)
	}
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if n := r.Prune(30 * time.Minute); n != 0 {
		t.Errorf("Prune() = %d, want 0 right after a turn", n)
	}
}
