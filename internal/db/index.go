package db

import (
	"errors"
	"fmt"
	"regexp"
)

// DistanceMetric is the vector distance used by a KNN index.
type DistanceMetric string

// Distance metrics.
const (
	DistanceL2     DistanceMetric = "L2"
	DistanceCosine DistanceMetric = "COSINE"
)

// VectorAlgorithm is the vector index structure.
type VectorAlgorithm string

// Vector algorithms. FLAT is exact; HNSW is approximate and scales to large catalogs.
const (
	VectorFlat VectorAlgorithm = "FLAT"
	VectorHNSW VectorAlgorithm = "HNSW"
)

// IndexFieldType is the schema type of an indexed hash field.
type IndexFieldType int

// Field types.
const (
	IndexFieldTag IndexFieldType = iota
	IndexFieldText
	IndexFieldVector
)

// IndexField is one schema entry. The Vector* attributes apply to IndexFieldVector only.
type IndexField struct {
	Name  string
	Alias string
	Type  IndexFieldType

	VectorAlgo        VectorAlgorithm
	VectorDim         int
	VectorDistance    DistanceMetric
	VectorM           int
	VectorEFConstruct int
}

// HNSWParams tunes an HNSW graph. Zero values leave the server defaults (M 16, EF_CONSTRUCTION 200).
type HNSWParams struct {
	M           int
	EFConstruct int
}

// TextField is a full-text field.
func TextField(name string) IndexField {
	return IndexField{Name: name, Type: IndexFieldText}
}

// TagField is an exact-match tag field.
func TagField(name string) IndexField {
	return IndexField{Name: name, Type: IndexFieldTag}
}

// HNSWField is a FLOAT32 vector field stored under name and queried as @alias.
func HNSWField(name, alias string, dim int, metric DistanceMetric, p HNSWParams) IndexField {
	return IndexField{
		Name:              name,
		Alias:             alias,
		Type:              IndexFieldVector,
		VectorAlgo:        VectorHNSW,
		VectorDim:         dim,
		VectorDistance:    metric,
		VectorM:           p.M,
		VectorEFConstruct: p.EFConstruct,
	}
}

// IndexDefinition describes an index over hashes whose keys start with one of Prefixes.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// NewIndexDefinition returns a validated definition.
func NewIndexDefinition(name string, prefixes []string, fields ...IndexField) (*IndexDefinition, error) {
	def := &IndexDefinition{Name: name, Prefixes: prefixes, Fields: fields}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

var identifier = regexp.MustCompile(`^[A-Za-z0-9_:-]+$`)

// IsValidIdentifier reports whether s is usable as an index name: letters, digits, '_', ':' and '-'.
func IsValidIdentifier(s string) bool {
	return identifier.MatchString(s)
}

// Validate checks the name, requires at least one field, rejects names that collide
// once aliases are applied and requires a positive dimension on vector fields.
func (d *IndexDefinition) Validate() error {
	if !IsValidIdentifier(d.Name) {
		return fmt.Errorf("index name %q is empty or has characters outside [A-Za-z0-9_:-]", d.Name)
	}
	if len(d.Fields) == 0 {
		return errors.New("index needs at least one field")
	}
	visible := make(map[string]struct{}, len(d.Fields))
	for i, f := range d.Fields {
		if f.Name == "" {
			return fmt.Errorf("field %d has no name", i)
		}
		name := f.Name
		if f.Alias != "" {
			name = f.Alias
		}
		if _, dup := visible[name]; dup {
			return fmt.Errorf("field %q is declared twice", name)
		}
		visible[name] = struct{}{}
		if f.Type == IndexFieldVector && f.VectorDim <= 0 {
			return fmt.Errorf("vector field %q needs a positive dimension, got %d", name, f.VectorDim)
		}
	}
	return nil
}
