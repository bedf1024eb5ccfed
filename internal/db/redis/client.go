// Package redis is the db.Store for the local catalog: RediSearch vector indexes over hashes, reached through rueidis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/hwfinder/internal/db"
	"github.com/kailas-cloud/hwfinder/internal/metrics"
)

var _ db.Store = (*Store)(nil)

// Config holds connection parameters.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
}

// Store issues every command through run or runMulti, so each one is timed, counted and
// has its error translated to a db sentinel or *db.Error in one place.
type Store struct {
	client rueidis.Client
}

// NewStore dials Redis. FT.SEARCH replies are parsed as RESP2 arrays.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("redis: at least one address is required")
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("redis: connect %s: %w", strings.Join(cfg.Addrs, ","), err)
	}
	return &Store{client: client}, nil
}

// NewStoreWithClient wraps an existing client, typically a rueidis mock.
func NewStoreWithClient(c rueidis.Client) *Store {
	return &Store{client: c}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.run(ctx, db.OpPing, "", s.client.B().Ping().Build())
	return err
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.client.Close()
}

// readyPollInterval is how often WaitForReady retries Ping.
const readyPollInterval = 100 * time.Millisecond

// WaitForReady blocks until Ping succeeds or timeout elapses.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()
	for {
		err := s.Ping(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("redis not ready after %s (last error: %v): %w", timeout, err, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (s *Store) run(ctx context.Context, op db.Op, key string, cmd rueidis.Completed) (rueidis.RedisResult, error) {
	started := time.Now()
	res := s.client.Do(ctx, cmd)
	err := translate(op, key, res.Error())
	metrics.ObserveStoreOp(string(op), outcome(err), time.Since(started).Seconds())
	return res, err
}

// runMulti pipelines cmds in one round trip. keys[i] names the target of cmds[i]; the first failure wins.
func (s *Store) runMulti(ctx context.Context, op db.Op, keys []string, cmds []rueidis.Completed) error {
	started := time.Now()
	var err error
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if e := res.Error(); e != nil {
			key := ""
			if i < len(keys) {
				key = keys[i]
			}
			err = translate(op, key, e)
			break
		}
	}
	metrics.ObserveStoreOp(string(op), outcome(err), time.Since(started).Seconds())
	return err
}

// translate maps nil replies and RediSearch index errors to sentinels and wraps the rest.
func translate(op db.Op, key string, err error) error {
	switch {
	case err == nil:
		return nil
	case rueidis.IsRedisNil(err):
		return db.ErrKeyNotFound
	case serverSays(err, "index already exists"):
		return db.ErrIndexExists
	case serverSays(err, "unknown index name"), serverSays(err, "no such index"):
		return db.ErrIndexNotFound
	}
	return &db.Error{Op: op, Key: key, Err: err}
}

func serverSays(err error, phrase string) bool {
	re, ok := rueidis.IsRedisErr(err)
	return ok && strings.Contains(strings.ToLower(re.Error()), phrase)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, db.ErrKeyNotFound), errors.Is(err, db.ErrIndexNotFound):
		return "miss"
	default:
		return "error"
	}
}
