package provider

import (
	"context"

	"github.com/snapseek/snapseek/pkg/types"
)

// VectorStore persists screenshot records with their fused embeddings and
// answers nearest-neighbor queries over them.
//
// The distance metric is cosine and is fixed at collection creation; the
// confidence transform in the search layer depends on it. The store must
// provide its own internal consistency for concurrent insert/delete/query.
type VectorStore interface {
	// Name returns the store name (e.g., "sqlitevec").
	Name() string

	// Init opens or creates the store at the given path.
	// Returns an error wrapping types.ErrStoreUnavailable on failure.
	Init(path string) error

	// Insert stores a record with its embedding. The record ID is the
	// primary key; the caller is responsible for path uniqueness (see
	// GetByPath).
	Insert(ctx context.Context, rec *types.RecordWithEmbedding) error

	// GetByPath returns the record whose path metadata matches exactly,
	// or nil if no such record exists.
	GetByPath(ctx context.Context, path string) (*types.Record, error)

	// DeleteByPath removes the record for path. Deleting an unknown path
	// is a no-op, not an error.
	DeleteByPath(ctx context.Context, path string) error

	// QueryNearest returns up to topN stored records ordered by ascending
	// cosine distance from the query vector.
	QueryNearest(ctx context.Context, vector []float32, topN int) ([]*types.Neighbor, error)

	// SearchText returns records whose indexed OCR text matches the query,
	// best match first.
	SearchText(ctx context.Context, query string, topN int) ([]*types.Neighbor, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close releases resources and closes connections.
	Close() error
}

// VectorStoreConfig contains configuration for vector stores.
type VectorStoreConfig struct {
	Provider string // "sqlitevec"
	Path     string // path to database file
}
