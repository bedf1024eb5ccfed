package retrieve

import "github.com/kailas-cloud/hwfinder/internal/domain/candidate"

// Kind tags which sources produced a retrieval outcome.
type Kind string

// Outcome kinds.
const (
	KindOnline    Kind = "online"
	KindLocal     Kind = "local"
	KindMixed     Kind = "mixed"
	KindExhausted Kind = "exhausted"
)

// Outcome is the result of one retrieval. Exhausted outcomes carry an error and no candidates.
type Outcome struct {
	kind       Kind
	candidates *candidate.Set
	err        error
}

// Kind returns the outcome tag.
func (o Outcome) Kind() Kind { return o.kind }

// Candidates returns the merged candidate set; empty for exhausted outcomes.
func (o Outcome) Candidates() *candidate.Set {
	if o.candidates == nil {
		return candidate.NewSet(0)
	}
	return o.candidates
}

// Err returns the exhaustion error wrapping domain.ErrRetrievalExhausted, or nil.
func (o Outcome) Err() error { return o.err }

// Exhausted reports whether no source produced anything.
func (o Outcome) Exhausted() bool { return o.kind == KindExhausted }
