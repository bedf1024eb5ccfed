// Package db declares the storage contract behind the local catalog index and the embedding cache.
// internal/db/redis is the only implementation.
package db

import (
	"context"
	"time"
)

// Store is everything the catalog and the embedding cache need from one backend.
type Store interface {
	KV
	Rows
	Indexes
	Ping(ctx context.Context) error
	WaitForReady(ctx context.Context, timeout time.Duration) error
	Close()
}

// KV holds opaque blobs. Get reports ErrKeyNotFound for a missing key.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores value under key. A ttl of zero or less keeps it forever.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// HashSetItem is one catalog row written as a hash.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// Rows loads and clears catalog rows.
type Rows interface {
	HSetMulti(ctx context.Context, items []HashSetItem) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	DelMulti(ctx context.Context, keys []string) error
}

// Indexes manages vector indexes and queries them.
type Indexes interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}

// KNNQuery asks for the K rows nearest to Vector.
type KNNQuery struct {
	IndexName string
	Vector    []float32
	K         int
	// ReturnFields limits the returned hash fields. Empty returns all of them.
	ReturnFields []string
}

// SearchResult lists hits nearest first.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is one hit. Score is cosine similarity clamped to [0,1].
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
