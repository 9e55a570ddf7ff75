// Package db declares what pagegen needs from Redis or Valkey with the search module:
// a vector cache for embeddings and throwaway vector indexes, one per run.
package db

import (
	"context"
	"time"
)

// Store is the facade implemented by db/redis.
type Store interface {
	Pinger
	Cache
	VectorIndexes
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Cache stores opaque values. Get on a missing key returns ErrKeyNotFound.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// SetWithTTL writes value; a non-positive ttl keeps it until evicted.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Hash is one HASH document covered by an index prefix.
type Hash struct {
	Key    string
	Fields map[string]string
}

// VectorIndexes manages FT indexes over HASH documents.
type VectorIndexes interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	// DropIndex removes the index and every hash it covers (FT.DROPINDEX DD).
	DropIndex(ctx context.Context, name string) error
	// PutHashes writes all hashes in one round-trip.
	PutHashes(ctx context.Context, hashes []Hash) error
	SearchKNN(ctx context.Context, q KNNQuery) ([]Hit, error)
}
