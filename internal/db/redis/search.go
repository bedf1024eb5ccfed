package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/hwfinder/internal/db"
)

// scoreField is the distance column FT.SEARCH adds for KNN queries.
const scoreField = "__vector_score"

// SearchKNN returns the K hashes nearest to q.Vector, nearest first.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if err := checkKNN(q); err != nil {
		return nil, err
	}
	res, err := s.run(ctx, db.OpSearch, q.IndexName, s.client.B().Arbitrary("FT.SEARCH").Args(knnArgs(q)...).Build())
	if err != nil {
		return nil, err
	}
	reply, err := res.ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Key: q.IndexName, Err: err}
	}
	return decodeSearchReply(reply)
}

func checkKNN(q *db.KNNQuery) error {
	switch {
	case q.IndexName == "":
		return errors.New("redis: knn query needs an index name")
	case len(q.Vector) == 0:
		return errors.New("redis: knn query needs a vector")
	case q.K <= 0:
		return fmt.Errorf("redis: knn k must be positive, got %d", q.K)
	}
	return nil
}

func knnArgs(q *db.KNNQuery) []string {
	k := strconv.Itoa(q.K)
	args := []string{q.IndexName, "*=>[KNN " + k + " @vector $BLOB]"}
	if n := len(q.ReturnFields); n > 0 {
		args = append(append(args, "RETURN", strconv.Itoa(n+1), scoreField), q.ReturnFields...)
	}
	return append(args,
		"SORTBY", scoreField, "ASC",
		"LIMIT", "0", k,
		"PARAMS", "2", "BLOB", vectorToBytes(q.Vector),
		"DIALECT", "2",
	)
}

// decodeSearchReply reads the RESP2 shape [total, key, [field, value, ...], key, [...], ...].
// Entries whose key or field list cannot be read are skipped.
func decodeSearchReply(reply []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(reply) == 0 {
		return &db.SearchResult{}, nil
	}
	total, err := reply[0].AsInt64()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("total: %w", err)}
	}

	out := &db.SearchResult{Total: int(total), Entries: make([]db.SearchEntry, 0, len(reply)/2)}
	for i := 1; i+1 < len(reply); i += 2 {
		key, err := reply[i].ToString()
		if err != nil {
			continue
		}
		pairs, err := reply[i+1].ToArray()
		if err != nil {
			continue
		}
		fields := make(map[string]string, len(pairs)/2)
		for j := 0; j+1 < len(pairs); j += 2 {
			name, nerr := pairs[j].ToString()
			value, verr := pairs[j+1].ToString()
			if nerr == nil && verr == nil {
				fields[name] = value
			}
		}
		out.Entries = append(out.Entries, db.SearchEntry{Key: key, Score: similarity(fields), Fields: fields})
	}
	return out, nil
}

// similarity pops the cosine distance out of fields and turns it into a [0,1] similarity.
func similarity(fields map[string]string) float64 {
	raw, ok := fields[scoreField]
	if !ok {
		return 0
	}
	delete(fields, scoreField)
	d, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return min(1, max(0, 1-d))
}

// vectorToBytes packs v as little-endian FLOAT32, the layout of the index's vector field.
func vectorToBytes(v []float32) string {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return string(buf)
}
