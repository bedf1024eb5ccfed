package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/hwfinder/internal/db"
)

// Pipeline and scan sizing for catalog loads.
const (
	hsetChunk   = 256
	unlinkChunk = 512
	scanCount   = 1000
)

// HSetMulti writes catalog rows, pipelining up to hsetChunk HSETs per round trip.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	for from := 0; from < len(items); from += hsetChunk {
		chunk := items[from:min(from+hsetChunk, len(items))]
		keys := make([]string, len(chunk))
		cmds := make([]rueidis.Completed, len(chunk))
		for i, item := range chunk {
			hset := s.client.B().Hset().Key(item.Key).FieldValue()
			for field, value := range item.Fields {
				hset = hset.FieldValue(field, value)
			}
			keys[i] = item.Key
			cmds[i] = hset.Build()
		}
		if err := s.runMulti(ctx, db.OpHSet, keys, cmds); err != nil {
			return err
		}
	}
	return nil
}

// DelMulti removes keys with UNLINK so large catalogs are freed off the main thread.
func (s *Store) DelMulti(ctx context.Context, keys []string) error {
	for from := 0; from < len(keys); from += unlinkChunk {
		chunk := keys[from:min(from+unlinkChunk, len(keys))]
		if _, err := s.run(ctx, db.OpUnlink, "", s.client.B().Unlink().Key(chunk...).Build()); err != nil {
			return err
		}
	}
	return nil
}

// Scan collects every key matching pattern.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		res, err := s.run(ctx, db.OpScan, pattern, s.client.B().Scan().Cursor(cursor).Match(pattern).Count(scanCount).Build())
		if err != nil {
			return nil, err
		}
		page, err := res.AsScanEntry()
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Key: pattern, Err: err}
		}
		keys = append(keys, page.Elements...)
		if cursor = page.Cursor; cursor == 0 {
			return keys, nil
		}
	}
}
