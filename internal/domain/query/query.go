// Package query holds the canonical search request.
package query

import "strings"

// Mode selects which sources a retrieval consults.
type Mode string

// Retrieval modes.
const (
	// Hybrid uses the online source first and falls back to the local index.
	Hybrid Mode = "hybrid"
	Online Mode = "online"
	Local  Mode = "local"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Hybrid || m == Online || m == Local
}

// Label is the human-readable search mode reported at startup and on /health.
func (m Mode) Label() string {
	switch m {
	case Online:
		return "online-only"
	case Local:
		return "local-only"
	default:
		return string(Hybrid)
	}
}

// Facet names, in clarification priority order where it matters.
const (
	FacetCategory = "category"
	FacetStyle    = "style"
	FacetMaterial = "material"
	FacetUsage    = "usage"
	FacetBudget   = "budget"
	FacetBrand    = "brand"
)

// Facets are categorical attributes extracted from the user's words. Empty means unknown.
type Facets struct {
	Category string `json:"category,omitempty"`
	Usage    string `json:"usage,omitempty"`
	Style    string `json:"style,omitempty"`
	Material string `json:"material,omitempty"`
	Budget   string `json:"budget,omitempty"`
	Brand    string `json:"brand,omitempty"`
}

// Merge returns f updated with every non-empty value of other.
func (f Facets) Merge(other Facets) Facets {
	pick := func(cur, next string) string {
		if next = strings.TrimSpace(next); next != "" {
			return next
		}
		return cur
	}
	return Facets{
		Category: pick(f.Category, other.Category),
		Usage:    pick(f.Usage, other.Usage),
		Style:    pick(f.Style, other.Style),
		Material: pick(f.Material, other.Material),
		Budget:   pick(f.Budget, other.Budget),
		Brand:    pick(f.Brand, other.Brand),
	}
}

// Get returns a facet value by name.
func (f Facets) Get(name string) string {
	switch name {
	case FacetCategory:
		return f.Category
	case FacetStyle:
		return f.Style
	case FacetMaterial:
		return f.Material
	case FacetUsage:
		return f.Usage
	case FacetBudget:
		return f.Budget
	case FacetBrand:
		return f.Brand
	default:
		return ""
	}
}

// IsEmpty reports whether no facet is known.
func (f Facets) IsEmpty() bool {
	return f == Facets{}
}

// Filled counts known facets.
func (f Facets) Filled() int {
	n := 0
	for _, v := range []string{f.Category, f.Usage, f.Style, f.Material, f.Budget, f.Brand} {
		if v != "" {
			n++
		}
	}
	return n
}

// Terms joins known facets into search text: style, material, usage, category.
func (f Facets) Terms() string {
	parts := make([]string, 0, 4)
	for _, v := range []string{f.Style, f.Material, f.Usage, f.Category} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// Query is a canonical search request.
type Query struct {
	Raw         string
	Text        string
	Facets      Facets
	Ambiguities []string
	// SearchRequested is set when the user explicitly asked to search now.
	SearchRequested bool
	Target          int
	Mode            Mode
}

// PassThrough builds a degraded query: raw text verbatim, no facets.
func PassThrough(raw string) Query {
	return Query{Raw: raw, Text: strings.TrimSpace(raw), Mode: Hybrid}
}
