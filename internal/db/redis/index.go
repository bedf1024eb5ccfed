package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/hwfinder/internal/db"
)

// CreateIndex runs FT.CREATE ON HASH for def. An existing index yields db.ErrIndexExists.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := createArgs(def)
	if err != nil {
		return err
	}
	_, err = s.run(ctx, db.OpCreateIndex, def.Name, s.client.B().Arbitrary("FT.CREATE").Args(args...).Build())
	return err
}

// DropIndex removes the index and leaves the hashes in place.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	_, err := s.run(ctx, db.OpDropIndex, name, s.client.B().Arbitrary("FT.DROPINDEX").Args(name).Build())
	return err
}

// IndexExists asks FT.INFO about name.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	_, err := s.run(ctx, db.OpIndexInfo, name, s.client.B().Arbitrary("FT.INFO").Args(name).Build())
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, db.ErrIndexNotFound):
		return false, nil
	default:
		return false, err
	}
}

// createArgs renders def as FT.CREATE arguments:
// name ON HASH [PREFIX n p...] SCHEMA field [AS alias] type [attrs...] ...
func createArgs(def *db.IndexDefinition) ([]string, error) {
	if def == nil {
		return nil, errors.New("redis: nil index definition")
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("redis: index %q: %w", def.Name, err)
	}

	args := []string{def.Name, "ON", "HASH"}
	if n := len(def.Prefixes); n > 0 {
		args = append(append(args, "PREFIX", strconv.Itoa(n)), def.Prefixes...)
	}
	args = append(args, "SCHEMA")
	for _, f := range def.Fields {
		args = append(args, f.Name)
		if f.Alias != "" {
			args = append(args, "AS", f.Alias)
		}
		switch f.Type {
		case db.IndexFieldText:
			args = append(args, "TEXT")
		case db.IndexFieldTag:
			args = append(args, "TAG")
		case db.IndexFieldVector:
			args = append(args, vectorAttrs(f)...)
		default:
			return nil, fmt.Errorf("redis: field %q has unsupported type %d", f.Name, f.Type)
		}
	}
	return args, nil
}

// vectorAttrs renders VECTOR algo nargs attrs... with FLAT and COSINE as fallbacks.
func vectorAttrs(f db.IndexField) []string {
	algo, metric := f.VectorAlgo, f.VectorDistance
	if algo == "" {
		algo = db.VectorFlat
	}
	if metric == "" {
		metric = db.DistanceCosine
	}

	attrs := []string{"TYPE", "FLOAT32", "DIM", strconv.Itoa(f.VectorDim), "DISTANCE_METRIC", string(metric)}
	if algo == db.VectorHNSW {
		for _, kv := range []struct {
			name  string
			value int
		}{{"M", f.VectorM}, {"EF_CONSTRUCTION", f.VectorEFConstruct}} {
			if kv.value > 0 {
				attrs = append(attrs, kv.name, strconv.Itoa(kv.value))
			}
		}
	}
	return append([]string{"VECTOR", string(algo), strconv.Itoa(len(attrs))}, attrs...)
}
