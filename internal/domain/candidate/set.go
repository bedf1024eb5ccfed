// Package candidate holds the transient, fingerprint-keyed collection a retrieval produces.
package candidate

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/kailas-cloud/hwfinder/internal/domain/product"
)

// Candidate is a product with its relevance score and arrival position.
type Candidate struct {
	fingerprint string
	product     product.Product
	score       float64
	arrival     int
}

// Fingerprint returns the dedup key.
func (c Candidate) Fingerprint() string { return c.fingerprint }

// Product returns the normalized product.
func (c Candidate) Product() product.Product { return c.product }

// Score returns the relevance score (higher is better).
func (c Candidate) Score() float64 { return c.score }

// Arrival returns the position at which the candidate entered the set.
func (c Candidate) Arrival() int { return c.arrival }

// Fingerprint derives the exact-duplicate key from the folded name, SKU and dimensions.
func Fingerprint(p product.Product) string {
	key := product.CoreName(p.Name()) + "|" + product.Fold(p.SKU()) + "|" + product.Fold(p.Dimensions())
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:8])
}

// Set is an ordered collection with unique fingerprints and a size cap. Not safe for concurrent use.
type Set struct {
	max   int
	index map[string]int
	items []Candidate
}

// NewSet creates a set holding at most max candidates. max <= 0 means unbounded.
func NewSet(max int) *Set {
	return &Set{max: max, index: make(map[string]int)}
}

// Add inserts p. An existing fingerprint keeps its position; the richer product
// (fewer defaulted fields, then higher source priority) wins and the higher score is kept.
// Returns false when p is new and the set is full.
func (s *Set) Add(p product.Product, score float64) bool {
	fp := Fingerprint(p)
	if i, ok := s.index[fp]; ok {
		cur := &s.items[i]
		if richer(p, cur.product) {
			cur.product = p
		}
		if score > cur.score {
			cur.score = score
		}
		return true
	}
	if s.Full() {
		return false
	}
	s.index[fp] = len(s.items)
	s.items = append(s.items, Candidate{
		fingerprint: fp,
		product:     p,
		score:       score,
		arrival:     len(s.items),
	})
	return true
}

func richer(a, b product.Product) bool {
	da, db := a.DefaultedFields(), b.DefaultedFields()
	if da != db {
		return da < db
	}
	return a.Source().Priority() < b.Source().Priority()
}

// Full reports whether the cap is reached.
func (s *Set) Full() bool {
	return s.max > 0 && len(s.items) >= s.max
}

// Len returns the number of candidates.
func (s *Set) Len() int { return len(s.items) }

// Max returns the cap.
func (s *Set) Max() int { return s.max }

// Items returns a copy of the candidates in arrival order.
func (s *Set) Items() []Candidate {
	out := make([]Candidate, len(s.items))
	copy(out, s.items)
	return out
}

// Products returns the products in arrival order.
func (s *Set) Products() []product.Product {
	out := make([]product.Product, len(s.items))
	for i, c := range s.items {
		out[i] = c.product
	}
	return out
}
