// Package db is the storage facade for Redis-compatible search servers:
// Redis 8 with built-in search and Valkey with the valkey-search module.
package db

import (
	"context"
	"time"
)

// Store is everything ragdex needs from the server. Consumers depend on the
// narrow interfaces below.
type Store interface {
	Pinger
	Hashes
	Keys
	Indexes
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Hashes hold vector records. A single HSet is applied atomically by the server.
type Hashes interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	Del(ctx context.Context, keys ...string) (int, error)
}

// Keys hold plain values: cached embeddings and counters.
type Keys interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value; ttl <= 0 keeps it until deleted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
}

// Indexes manage the vector index and query it.
type Indexes interface {
	CreateIndex(ctx context.Context, s *Schema) error
	SearchKNN(ctx context.Context, q *KNNQuery) ([]Neighbor, error)
}
