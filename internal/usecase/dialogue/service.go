// Package dialogue runs the clarify-then-search conversation state machine.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/hwfinder/internal/domain"
	domdialogue "github.com/kailas-cloud/hwfinder/internal/domain/dialogue"
	"github.com/kailas-cloud/hwfinder/internal/domain/product"
	"github.com/kailas-cloud/hwfinder/internal/domain/query"
	"github.com/kailas-cloud/hwfinder/internal/logger"
	"github.com/kailas-cloud/hwfinder/internal/metrics"
	"github.com/kailas-cloud/hwfinder/internal/usecase/retrieve"
)

// Reply texts.
const (
	GenericReason = "This product meets your requirements and has good quality and design."
	GoodbyeText   = "Thank you for using our system, goodbye!"
	NotFoundText  = "Sorry, no products found. Could you describe what you need in other words?"
	RestartText   = "Let's start over. What type of product do you need?"
)

const searchAnywayHint = `Or say "search now" to search with what you have told me so far.`

// clarifications holds one question per facet, in asking order.
var clarifications = []struct {
	facet    string
	question string
}{
	{query.FacetCategory, "What type of product do you need? For example: door handles, drawer pulls, cabinet handles, etc."},
	{query.FacetStyle, "What style do you prefer? For example: modern minimalist, European classical, industrial style, etc."},
	{query.FacetMaterial, "What material requirements do you have? For example: stainless steel, brass, zinc alloy, etc."},
}

// Options tune the conversation.
type Options struct {
	Target            int
	ReasonMaxTokens   int
	ReasonConcurrency int
	// MaxClarifications after which each question also offers an explicit search.
	MaxClarifications int
	Timeout           time.Duration
	HistoryTurns      int
}

// DefaultOptions mirror the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Target:            5,
		ReasonMaxTokens:   256,
		ReasonConcurrency: 4,
		MaxClarifications: 3,
		Timeout:           60 * time.Second,
		HistoryTurns:      3,
	}
}

// Reply is the assistant's answer to one event.
type Reply struct {
	Text      string                       `json:"text"`
	Status    domdialogue.Status           `json:"status"`
	Intent    Intent                       `json:"intent,omitempty"`
	Question  string                       `json:"question,omitempty"`
	Facet     string                       `json:"missing_facet,omitempty"`
	Shortlist []domdialogue.Recommendation `json:"shortlist,omitempty"`
	Outcome   retrieve.Kind                `json:"outcome,omitempty"`
}

// Service handles dialogue events against a conversation state.
type Service struct {
	extractor   Extractor
	retriever   Retriever
	diversifier Diversifier
	reasoner    Reasoner
	opts        Options
	logger      *zap.Logger
	now         func() time.Time
}

// New creates a dialogue manager.
func New(
	extractor Extractor, retriever Retriever, diversifier Diversifier,
	reasoner Reasoner, opts Options, logger *zap.Logger,
) *Service {
	def := DefaultOptions()
	if opts.Target <= 0 {
		opts.Target = def.Target
	}
	if opts.ReasonMaxTokens <= 0 {
		opts.ReasonMaxTokens = def.ReasonMaxTokens
	}
	if opts.ReasonConcurrency <= 0 {
		opts.ReasonConcurrency = def.ReasonConcurrency
	}
	if opts.MaxClarifications <= 0 {
		opts.MaxClarifications = def.MaxClarifications
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = def.HistoryTurns
	}
	return &Service{
		extractor:   extractor,
		retriever:   retriever,
		diversifier: diversifier,
		reasoner:    reasoner,
		opts:        opts,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Target returns the shortlist size.
func (s *Service) Target() int { return s.opts.Target }

// Greet opens a conversation with a time-of-day greeting.
func (s *Service) Greet(st *domdialogue.State) Reply {
	text := Greeting(s.now())
	st.AddTurn(domdialogue.RoleAssistant, text, s.now())
	return Reply{Text: text, Status: st.Status, Intent: IntentGreeting}
}

// Greeting picks the salutation for the hour.
func Greeting(now time.Time) string {
	var hello string
	switch h := now.Hour(); {
	case h < 12:
		hello = "Good morning"
	case h < 18:
		hello = "Good afternoon"
	default:
		hello = "Good evening"
	}
	return hello + "! I'm your intelligent product recommendation assistant. " +
		"Please tell me what type of product you need, and I'll help you find the most suitable one."
}

// Handle applies one event. A completed conversation rejects every event with domain.ErrConversationClosed.
func (s *Service) Handle(ctx context.Context, st *domdialogue.State, ev Event) (Reply, error) {
	if st.Status == domdialogue.StatusCompleted {
		return Reply{Status: st.Status}, domain.ErrConversationClosed
	}
	ctx = logger.WithFields(ctx, s.logger, zap.String("conversation_id", st.ID))

	var reply Reply
	var err error
	switch e := ev.(type) {
	case UserMessage:
		reply, err = s.handleMessage(ctx, st, e.Text)
	case SearchNow:
		reply, err = s.search(ctx, st, s.lastQuery(st))
	case Reset:
		reply = s.reset(st)
	case Exit:
		reply = s.exit(st)
	default:
		return Reply{Status: st.Status}, fmt.Errorf("unknown event %T", ev)
	}
	if err != nil {
		return reply, err
	}

	st.AddTurn(domdialogue.RoleAssistant, reply.Text, s.now())
	reply.Status = st.Status
	metrics.DialogueTurnsTotal.WithLabelValues(string(st.Status)).Inc()
	return reply, nil
}

func (s *Service) handleMessage(ctx context.Context, st *domdialogue.State, text string) (Reply, error) {
	history := st.Recent(s.opts.HistoryTurns)
	st.AddTurn(domdialogue.RoleUser, text, s.now())
	st.TurnCount++

	intent := Classify(text)
	switch intent {
	case IntentEnd:
		return s.exit(st), nil
	case IntentRestart:
		return s.reset(st), nil
	case IntentGreeting:
		return Reply{Text: Greeting(s.now()), Intent: intent}, nil
	}

	q := s.extractor.Extract(ctx, text, history)
	st.Facets = st.Facets.Merge(q.Facets)

	force := intent == IntentSearch || q.SearchRequested
	if st.Facets.Category == "" && !force {
		return s.clarify(st, intent), nil
	}

	reply, err := s.search(ctx, st, q)
	reply.Intent = intent
	return reply, err
}

// clarify asks about the most impactful missing facet.
func (s *Service) clarify(st *domdialogue.State, intent Intent) Reply {
	for _, c := range clarifications {
		if st.Facets.Get(c.facet) == "" {
			st.Clarifications++
			text := c.question
			if st.Clarifications > s.opts.MaxClarifications {
				text += " " + searchAnywayHint
			}
			return Reply{Text: text, Intent: intent, Question: c.question, Facet: c.facet}
		}
	}
	return Reply{Intent: intent}
}

func (s *Service) search(ctx context.Context, st *domdialogue.State, q query.Query) (Reply, error) {
	log := logger.FromContextOr(ctx, s.logger)
	q.Facets = st.Facets
	if st.Facets.Category != "" {
		q.Text = st.Facets.Terms()
	}
	if strings.TrimSpace(q.Text) == "" {
		st.Status = domdialogue.StatusCollecting
		return s.clarify(st, IntentSearch), nil
	}
	q.Target = s.opts.Target

	st.Status = domdialogue.StatusReadyToSearch
	outcome := s.retriever.Retrieve(ctx, q, s.opts.Target)
	if err := ctx.Err(); err != nil {
		st.Status = domdialogue.StatusCollecting
		return Reply{Status: st.Status}, fmt.Errorf("search interrupted: %w", err)
	}
	if outcome.Exhausted() {
		log.Info("No products found", zap.String("query", q.Text), zap.Error(outcome.Err()))
		st.Status = domdialogue.StatusCollecting
		return Reply{Text: NotFoundText, Outcome: outcome.Kind()}, nil
	}

	products := s.diversifier.Diversify(outcome.Candidates(), s.opts.Target)
	st.Shortlist = s.recommend(ctx, st.Facets, products)
	st.Status = domdialogue.StatusCompleted

	log.Info("Shortlist ready",
		zap.String("query", q.Text),
		zap.String("outcome", string(outcome.Kind())),
		zap.Int("products", len(st.Shortlist)),
	)
	return Reply{
		Text:      RenderShortlist(st.Shortlist),
		Shortlist: st.Shortlist,
		Outcome:   outcome.Kind(),
	}, nil
}

// lastQuery rebuilds a query from the most recent user turn for SearchNow.
func (s *Service) lastQuery(st *domdialogue.State) query.Query {
	for i := len(st.History) - 1; i >= 0; i-- {
		if st.History[i].Role == domdialogue.RoleUser {
			q := query.PassThrough(st.History[i].Text)
			q.Mode = ""
			return q
		}
	}
	return query.Query{}
}

// recommend attaches a reason to each product, in parallel.
func (s *Service) recommend(ctx context.Context, facets query.Facets, products []product.Product) []domdialogue.Recommendation {
	reasons := make([]string, len(products))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.ReasonConcurrency)
	for i, p := range products {
		g.Go(func() error {
			reasons[i] = s.reason(gctx, facets, p)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domdialogue.Recommendation, len(products))
	for i, p := range products {
		out[i] = domdialogue.NewRecommendation(p, reasons[i])
	}
	return out
}

func (s *Service) reason(ctx context.Context, facets query.Facets, p product.Product) string {
	if s.reasoner == nil {
		return GenericReason
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	out, err := s.reasoner.Complete(ctx, reasonPrompt(facets, p), domain.CompletionOptions{
		MaxTokens:   s.opts.ReasonMaxTokens,
		Temperature: 0.5,
	})
	out = strings.TrimSpace(out)
	if err != nil || out == "" {
		if err == nil {
			err = domain.ErrReasonerParse
		}
		if !errors.Is(err, context.Canceled) {
			logger.FromContextOr(ctx, s.logger).Warn("Reason generation failed, using generic reason",
				zap.String("product", p.Name()), zap.Error(err))
		}
		return GenericReason
	}
	return out
}

func reasonPrompt(facets query.Facets, p product.Product) string {
	var req []string
	for _, f := range []string{query.FacetCategory, query.FacetUsage, query.FacetStyle, query.FacetMaterial, query.FacetBudget, query.FacetBrand} {
		if v := facets.Get(f); v != "" {
			req = append(req, f+": "+v)
		}
	}
	info := fmt.Sprintf("name: %s; description: %s; material: %s; finish: %s; dimensions: %s; price: %s",
		p.Name(), p.Description(), p.Material(), p.Finish(), p.Dimensions(), p.Price())
	return "You are a professional home furnishing consultant. User requirements: " + strings.Join(req, ", ") +
		"\nRecommended product information: " + info +
		"\nPlease use concise, professional language to explain why this product is recommended to the user, " +
		"with reasons that combine user requirements and product features."
}

func (s *Service) reset(st *domdialogue.State) Reply {
	st.Reset()
	return Reply{Text: RestartText, Intent: IntentRestart}
}

func (s *Service) exit(st *domdialogue.State) Reply {
	st.Status = domdialogue.StatusCompleted
	return Reply{Text: GoodbyeText, Intent: IntentEnd}
}

// RenderShortlist formats recommendations as a numbered list for display.
func RenderShortlist(recs []domdialogue.Recommendation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here are %d products I recommend:\n", len(recs))
	for i, r := range recs {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, r.Name)
		if product.Has(r.Price) {
			fmt.Fprintf(&b, "   Price: %s\n", r.Price)
		}
		if product.Has(r.Description) {
			fmt.Fprintf(&b, "   %s\n", r.Description)
		}
		fmt.Fprintf(&b, "   Why: %s\n", r.Reason)
	}
	return strings.TrimRight(b.String(), "\n")
}
