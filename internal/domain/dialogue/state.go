// Package dialogue holds the per-conversation state tracked across turns.
package dialogue

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/hwfinder/internal/domain/product"
	"github.com/kailas-cloud/hwfinder/internal/domain/query"
)

// Status is the conversation phase.
type Status string

// Conversation phases.
const (
	StatusCollecting    Status = "collecting"
	StatusReadyToSearch Status = "ready-to-search"
	StatusCompleted     Status = "completed"
)

// Role identifies the speaker of a turn.
type Role string

// Speakers.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one history entry.
type Turn struct {
	Role   Role      `json:"role"`
	Text   string    `json:"text"`
	Status Status    `json:"status"`
	At     time.Time `json:"at"`
}

// Recommendation is a stage-one shortlist entry. It deliberately carries no product URL.
type Recommendation struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Price       string         `json:"price"`
	Material    string         `json:"material"`
	Finish      string         `json:"finish"`
	Dimensions  string         `json:"dimensions"`
	SKU         string         `json:"sku"`
	Source      product.Source `json:"source"`
	Reason      string         `json:"reason"`
}

// NewRecommendation projects a product onto the stage-one shape.
func NewRecommendation(p product.Product, reason string) Recommendation {
	return Recommendation{
		Name:        p.Name(),
		Description: p.Description(),
		Price:       p.Price(),
		Material:    p.Material(),
		Finish:      p.Finish(),
		Dimensions:  p.Dimensions(),
		SKU:         p.SKU(),
		Source:      p.Source(),
		Reason:      reason,
	}
}

// State is the mutable per-conversation record. Owned by exactly one conversation; not safe for concurrent use.
type State struct {
	ID             string
	StartedAt      time.Time
	Status         Status
	Facets         query.Facets
	History        []Turn
	Shortlist      []Recommendation
	Clarifications int
	TurnCount      int
}

// NewState starts a conversation in the collecting phase.
func NewState(id string, now time.Time) *State {
	return &State{ID: id, StartedAt: now, Status: StatusCollecting}
}

// AddTurn appends a history entry stamped with the current status.
func (s *State) AddTurn(role Role, text string, now time.Time) {
	s.History = append(s.History, Turn{Role: role, Text: text, Status: s.Status, At: now})
}

// Reset clears facets and results and returns to collecting. History is kept.
func (s *State) Reset() {
	s.Facets = query.Facets{}
	s.Shortlist = nil
	s.Clarifications = 0
	s.Status = StatusCollecting
}

// Recent renders the last n turns as "role: text" lines for prompt context.
func (s *State) Recent(n int) string {
	start := 0
	if len(s.History) > n {
		start = len(s.History) - n
	}
	lines := make([]string, 0, len(s.History)-start)
	for _, t := range s.History[start:] {
		lines = append(lines, fmt.Sprintf("%s: %s", t.Role, t.Text))
	}
	return strings.Join(lines, "\n")
}

// requiredFacets and optionalFacets drive the completion rate.
var (
	requiredFacets = []string{query.FacetCategory, query.FacetUsage, query.FacetStyle, query.FacetMaterial}
	optionalFacets = []string{query.FacetBudget, query.FacetBrand}
)

// CompletionRate is the share of known facets over all tracked facets.
func (s *State) CompletionRate() float64 {
	all := append(append([]string{}, requiredFacets...), optionalFacets...)
	filled := 0
	for _, f := range all {
		if s.Facets.Get(f) != "" {
			filled++
		}
	}
	return float64(filled) / float64(len(all))
}

// MissingFacets lists unknown required facets.
func (s *State) MissingFacets() []string {
	var out []string
	for _, f := range requiredFacets {
		if s.Facets.Get(f) == "" {
			out = append(out, f)
		}
	}
	return out
}
