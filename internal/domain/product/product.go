// Package product holds the canonical catalog record and the rules that
// turn heterogeneous source records into it.
package product

import (
	"encoding/json"
	"time"
)

// Default is the placeholder for any text field the source did not provide.
const Default = "N/A"

// Source tags where a product record came from.
type Source string

// Source values.
const (
	SourceOnline Source = "online"
	SourceLocal  Source = "local-index"
)

// Priority orders sources for tie-breaking: lower wins.
func (s Source) Priority() int {
	switch s {
	case SourceOnline:
		return 0
	case SourceLocal:
		return 1
	default:
		return 2
	}
}

// Raw is an upstream record before normalization. Keys and value types vary by source.
type Raw map[string]any

// Scored is a raw record with the similarity score assigned by the local index.
type Scored struct {
	Raw   Raw
	Score float64
}

// Meta describes the retrieval call that produced a record.
type Meta struct {
	Source  Source
	Query   string
	Elapsed time.Duration
}

// Product is the canonical, fully populated product record (immutable value object).
type Product struct {
	name            string
	price           string
	imageURL        string
	productURL      string
	description     string
	sku             string
	dimensions      string
	material        string
	finish          string
	installation    string
	weight          string
	packageContents string
	technicalSpecs  string
	certifications  string
	warranty        string
	category        string
	style           string

	source      Source
	searchQuery string
	searchTime  float64
}

// Name returns the product title.
func (p Product) Name() string { return p.name }

// Price returns the price text, e.g. "$12.34 CAD".
func (p Product) Price() string { return p.price }

// ImageURL returns the product image URL.
func (p Product) ImageURL() string { return p.imageURL }

// ProductURL returns the product page URL.
func (p Product) ProductURL() string { return p.productURL }

// Description returns the product description.
func (p Product) Description() string { return p.description }

// SKU returns the product code.
func (p Product) SKU() string { return p.sku }

// Dimensions returns the dimensions text.
func (p Product) Dimensions() string { return p.dimensions }

// Material returns the material text.
func (p Product) Material() string { return p.material }

// Finish returns the finish or color text.
func (p Product) Finish() string { return p.finish }

// Installation returns installation requirements.
func (p Product) Installation() string { return p.installation }

// Weight returns the weight text.
func (p Product) Weight() string { return p.weight }

// PackageContents returns what ships in the package.
func (p Product) PackageContents() string { return p.packageContents }

// TechnicalSpecs returns the technical specifications.
func (p Product) TechnicalSpecs() string { return p.technicalSpecs }

// Certifications returns certifications or standards.
func (p Product) Certifications() string { return p.certifications }

// Warranty returns warranty information.
func (p Product) Warranty() string { return p.warranty }

// Category returns the product category facet.
func (p Product) Category() string { return p.category }

// Style returns the style facet.
func (p Product) Style() string { return p.style }

// Source returns where the record came from.
func (p Product) Source() Source { return p.source }

// SearchQuery returns the query that produced the record.
func (p Product) SearchQuery() string { return p.searchQuery }

// SearchTime returns the source call latency in seconds.
func (p Product) SearchTime() float64 { return p.searchTime }

// Field is one named value of a product, in display order.
type Field struct {
	Key   string
	Value string
}

// Fields returns the descriptive fields in canonical order.
// Source, search query and search time are not included.
func (p Product) Fields() []Field {
	return []Field{
		{"name", p.name},
		{"price", p.price},
		{"image_url", p.imageURL},
		{"product_url", p.productURL},
		{"description", p.description},
		{"sku", p.sku},
		{"dimensions", p.dimensions},
		{"material", p.material},
		{"finish", p.finish},
		{"installation", p.installation},
		{"weight", p.weight},
		{"package_contents", p.packageContents},
		{"technical_specs", p.technicalSpecs},
		{"certifications", p.certifications},
		{"warranty", p.warranty},
		{"category", p.category},
		{"style", p.style},
	}
}

// DefaultedFields counts descriptive fields still holding the default.
// Lower means richer.
func (p Product) DefaultedFields() int {
	n := 0
	for _, f := range p.Fields() {
		if f.Value == Default {
			n++
		}
	}
	return n
}

// Has reports whether a descriptive value is present (not the default).
func Has(v string) bool { return v != "" && v != Default }

// MarshalJSON encodes every field, including provenance.
func (p Product) MarshalJSON() ([]byte, error) {
	fields := p.Fields()
	m := make(map[string]any, len(fields)+3)
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	m["source"] = string(p.source)
	m["search_query"] = p.searchQuery
	m["search_time"] = p.searchTime
	return json.Marshal(m)
}
