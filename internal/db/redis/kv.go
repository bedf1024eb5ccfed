package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/hwfinder/internal/db"
)

// Get returns the blob stored at key, or db.ErrKeyNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	res, err := s.run(ctx, db.OpGet, key, s.client.B().Get().Key(key).Build())
	if err != nil {
		return nil, err
	}
	data, err := res.AsBytes()
	if err != nil {
		return nil, &db.Error{Op: db.OpGet, Key: key, Err: err}
	}
	return data, nil
}

// Put stores value at key. Sub-second TTLs use millisecond precision.
func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	set := s.client.B().Set().Key(key).Value(rueidis.BinaryString(value))
	var cmd rueidis.Completed
	switch {
	case ttl <= 0:
		cmd = set.Build()
	case ttl%time.Second == 0:
		cmd = set.Ex(ttl).Build()
	default:
		cmd = set.Px(ttl).Build()
	}
	_, err := s.run(ctx, db.OpSet, key, cmd)
	return err
}
