package dialogue

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hwfinder/internal/domain"
	domdialogue "github.com/kailas-cloud/hwfinder/internal/domain/dialogue"
	"github.com/kailas-cloud/hwfinder/internal/domain/product"
	"github.com/kailas-cloud/hwfinder/internal/domain/query"
	"github.com/kailas-cloud/hwfinder/internal/usecase/diversify"
	"github.com/kailas-cloud/hwfinder/internal/usecase/retrieve"
)

// --- Mocks ---

type mockExtractor struct {
	facets map[string]query.Facets
	calls  int
}

func (m *mockExtractor) Extract(_ context.Context, raw, _ string) query.Query {
	m.calls++
	q := query.PassThrough(raw)
	q.Facets = m.facets[raw]
	if q.Facets.Category != "" {
		q.Text = q.Facets.Terms()
	}
	return q
}

type mockOnline struct {
	raws  []product.Raw
	err   error
	calls int
}

func (m *mockOnline) Search(_ context.Context, _ string) ([]product.Raw, error) {
	m.calls++
	return m.raws, m.err
}

type mockLocal struct {
	hits []product.Scored
	err  error
}

func (m *mockLocal) Search(_ context.Context, _ string, _ int) ([]product.Scored, error) {
	return m.hits, m.err
}

type mockReasoner struct {
	reply string
	err   error
}

func (m *mockReasoner) Complete(_ context.Context, _ string, _ domain.CompletionOptions) (string, error) {
	return m.reply, m.err
}

type fixture struct {
	svc    *Service
	ext    *mockExtractor
	online *mockOnline
	local  *mockLocal
}

func newFixture(online *mockOnline, local *mockLocal, reasoner Reasoner) fixture {
	ext := &mockExtractor{facets: map[string]query.Facets{
		"i need a modern kitchen handle": {Category: "handle", Usage: "kitchen", Style: "modern"},
		"something nice":                 {Style: "modern"},
		"a knob":                         {Category: "knob"},
	}}
	r := retrieve.New(online, local, retrieve.DefaultOptions(), zap.NewNop())
	svc := New(ext, r, diversify.New(diversify.DefaultThreshold), reasoner, DefaultOptions(), zap.NewNop()).
		WithClock(func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) })
	return fixture{svc: svc, ext: ext, online: online, local: local}
}

func handles(n int) []product.Raw {
	names := []string{"Bar Pull", "Cup Pull", "Round Knob", "Edge Pull", "Ring Handle", "Square Knob", "Arch Handle"}
	out := make([]product.Raw, n)
	for i := range out {
		out[i] = product.Raw{"name": names[i%len(names)], "product_url": "https://example.com/p", "price": 10 + i}
	}
	return out
}

func newState() *domdialogue.State {
	return domdialogue.NewState("c1", time.Now())
}

func TestHandle_SufficientFacetsSearches(t *testing.T) {
	f := newFixture(&mockOnline{raws: handles(7)}, &mockLocal{}, &mockReasoner{reply: "Matches your kitchen."})
	st := newState()

	reply, err := f.svc.Handle(context.Background(), st, UserMessage{Text: "i need a modern kitchen handle"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Status != domdialogue.StatusCompleted {
		t.Errorf("Status = %q, want completed", reply.Status)
	}
	if len(reply.Shortlist) != 5 {
		t.Fatalf("got %d recommendations, want 5", len(reply.Shortlist))
	}
	for _, r := range reply.Shortlist {
		if r.Reason != "Matches your kitchen." {
			t.Errorf("Reason = %q", r.Reason)
		}
	}
	if strings.Contains(reply.Text, "https://") {
		t.Error("stage-one reply must not include product URLs")
	}
	if reply.Outcome != retrieve.KindOnline {
		t.Errorf("Outcome = %q, want online", reply.Outcome)
	}
	if len(st.History) != 2 {
		t.Errorf("history has %d turns, want 2", len(st.History))
	}
}

func TestHandle_InsufficientAsksOneQuestion(t *testing.T) {
	f := newFixture(&mockOnline{raws: handles(3)}, &mockLocal{}, nil)
	st := newState()

	reply, err := f.svc.Handle(context.Background(), st, UserMessage{Text: "something nice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Status != domdialogue.StatusCollecting {
		t.Errorf("Status = %q, want collecting", reply.Status)
	}
	if reply.Facet != query.FacetCategory {
		t.Errorf("Facet = %q, want category", reply.Facet)
	}
	if strings.Count(reply.Text, "?") != 1 {
		t.Errorf("expected exactly one question, got %q", reply.Text)
	}
	if f.online.calls != 0 {
		t.Error("retrieval must not run while collecting")
	}
	if st.Facets.Style != "modern" {
		t.Error("partial facets should be kept")
	}

	reply, err = f.svc.Handle(context.Background(), st, UserMessage{Text: "a knob"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Status != domdialogue.StatusCompleted {
		t.Errorf("Status = %q, want completed after category arrives", reply.Status)
	}
}

func TestHandle_ExhaustedReturnsToCollecting(t *testing.T) {
	f := newFixture(&mockOnline{}, &mockLocal{}, nil)
	st := newState()

	reply, err := f.svc.Handle(context.Background(), st, UserMessage{Text: "a knob"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Status != domdialogue.StatusCollecting {
		t.Errorf("Status = %q, want collecting", reply.Status)
	}
	if !strings.Contains(reply.Text, "no products found") {
		t.Errorf("Text = %q", reply.Text)
	}
	if reply.Outcome != retrieve.KindExhausted {
		t.Errorf("Outcome = %q", reply.Outcome)
	}
}

func TestHandle_ReasonerFailureUsesGenericReason(t *testing.T) {
	f := newFixture(&mockOnline{raws: handles(2)}, &mockLocal{}, &mockReasoner{err: domain.ErrReasoner})
	st := newState()

	reply, err := f.svc.Handle(context.Background(), st, UserMessage{Text: "a knob"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range reply.Shortlist {
		if r.Reason != GenericReason {
			t.Errorf("Reason = %q, want generic", r.Reason)
		}
	}
}

func TestHandle_SearchNowOverridesMissingCategory(t *testing.T) {
	f := newFixture(&mockOnline{raws: handles(3)}, &mockLocal{}, nil)
	st := newState()

	if _, err := f.svc.Handle(context.Background(), st, UserMessage{Text: "something nice"}); err != nil {
		t.Fatal(err)
	}
	reply, err := f.svc.Handle(context.Background(), st, SearchNow{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Status != domdialogue.StatusCompleted || len(reply.Shortlist) != 3 {
		t.Errorf("Status = %q shortlist=%d", reply.Status, len(reply.Shortlist))
	}
}

func TestHandle_SearchPhraseOverrides(t *testing.T) {
	f := newFixture(&mockOnline{raws: handles(3)}, &mockLocal{}, nil)
	st := newState()

	reply, err := f.svc.Handle(context.Background(), st, UserMessage{Text: "just search for something"})
	if err != nil {
		t.Fatal(err)
	}
	if reply.Intent != IntentSearch || reply.Status != domdialogue.StatusCompleted {
		t.Errorf("Intent = %q Status = %q", reply.Intent, reply.Status)
	}
}

func TestHandle_CompletedIsTerminal(t *testing.T) {
	f := newFixture(&mockOnline{raws: handles(3)}, &mockLocal{}, nil)
	st := newState()

	if _, err := f.svc.Handle(context.Background(), st, UserMessage{Text: "a knob"}); err != nil {
		t.Fatal(err)
	}
	for _, ev := range []Event{UserMessage{Text: "more"}, SearchNow{}, Reset{}, Exit{}} {
		if _, err := f.svc.Handle(context.Background(), st, ev); !errors.Is(err, domain.ErrConversationClosed) {
			t.Errorf("%T: err = %v, want ErrConversationClosed", ev, err)
		}
	}
}

func TestHandle_GreetingKeepsStatus(t *testing.T) {
	f := newFixture(&mockOnline{}, &mockLocal{}, nil)
	st := newState()

	reply, err := f.svc.Handle(context.Background(), st, UserMessage{Text: "Hello!"})
	if err != nil {
		t.Fatal(err)
	}
	if reply.Intent != IntentGreeting || !strings.HasPrefix(reply.Text, "Good morning") {
		t.Errorf("unexpected greeting reply: %+v", reply)
	}
	if reply.Status != domdialogue.StatusCollecting || f.ext.calls != 0 {
		t.Error("greeting must not change status or extract")
	}
}

func TestHandle_ExitAndReset(t *testing.T) {
	f := newFixture(&mockOnline{}, &mockLocal{}, nil)

	st := newState()
	st.Facets = query.Facets{Style: "modern"}
	reply, err := f.svc.Handle(context.Background(), st, UserMessage{Text: "start over"})
	if err != nil {
		t.Fatal(err)
	}
	if reply.Text != RestartText || !st.Facets.IsEmpty() {
		t.Errorf("restart did not reset state: %+v", st.Facets)
	}

	reply, err = f.svc.Handle(context.Background(), st, Exit{})
	if err != nil {
		t.Fatal(err)
	}
	if reply.Text != GoodbyeText || reply.Status != domdialogue.StatusCompleted {
		t.Errorf("unexpected exit reply: %+v", reply)
	}

	st = newState()
	reply, _ = f.svc.Handle(context.Background(), st, UserMessage{Text: "thanks, bye"})
	if reply.Status != domdialogue.StatusCompleted {
		t.Errorf("Status = %q, want completed", reply.Status)
	}
}

func TestHandle_CancelledContext(t *testing.T) {
	f := newFixture(&mockOnline{raws: handles(3)}, &mockLocal{}, nil)
	st := newState()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Handle(ctx, st, UserMessage{Text: "a knob"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if st.Status != domdialogue.StatusCollecting {
		t.Errorf("Status = %q, want collecting", st.Status)
	}
}

func TestHandle_ClarificationCapOffersSearchButKeepsCollecting(t *testing.T) {
	online := &mockOnline{raws: handles(2)}
	f := newFixture(online, &mockLocal{}, nil)
	st := newState()

	var reply Reply
	for i := 0; i < DefaultOptions().MaxClarifications+1; i++ {
		var err error
		reply, err = f.svc.Handle(context.Background(), st, UserMessage{Text: "something nice"})
		if err != nil {
			t.Fatal(err)
		}
		if reply.Status != domdialogue.StatusCollecting {
			t.Fatalf("turn %d: Status = %q, want collecting", i+1, reply.Status)
		}
	}
	if online.calls != 0 {
		t.Errorf("online calls = %d, want 0 without a category or an explicit search", online.calls)
	}
	if !strings.Contains(reply.Text, searchAnywayHint) {
		t.Errorf("reply %q should offer an explicit search", reply.Text)
	}

	reply, err := f.svc.Handle(context.Background(), st, SearchNow{})
	if err != nil {
		t.Fatal(err)
	}
	if reply.Status != domdialogue.StatusCompleted || online.calls != 1 {
		t.Errorf("Status = %q, online calls = %d; want completed after search now", reply.Status, online.calls)
	}
}

func TestClassify(t *testing.T) {
	tests := map[string]Intent{
		"hello":                        IntentGreeting,
		"Hi there!":                    IntentGreeting,
		"a white hinge":                IntentInquiry,
		"thanks":                       IntentEnd,
		"bye":                          IntentEnd,
		"end cap for a shelf rail kit": IntentInquiry,
		"let's start over":             IntentRestart,
		"new search please":            IntentRestart,
		"show me brass knobs":          IntentSearch,
		"":                             IntentInquiry,
	}
	for in, want := range tests {
		if got := Classify(in); got != want {
			t.Errorf("Classify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGreeting_TimeOfDay(t *testing.T) {
	day := func(h int) time.Time { return time.Date(2024, 1, 1, h, 0, 0, 0, time.UTC) }
	for h, want := range map[int]string{8: "Good morning", 13: "Good afternoon", 20: "Good evening"} {
		if got := Greeting(day(h)); !strings.HasPrefix(got, want) {
			t.Errorf("Greeting(%d:00) = %q, want prefix %q", h, got, want)
		}
	}
}
