// Package types defines shared data structures used across snapseek.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// AllowedExtensions is the set of image file extensions that are indexed.
// Extensions are compared case-insensitively and include the leading dot.
var AllowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
}

// Record is a stored screenshot entry. The store's primary key is the
// opaque ID; Path is carried as metadata and is the logical identity of
// the record (at most one record per path).
type Record struct {
	ID          string    `json:"id"`
	Path        string    `json:"path"`
	IndexedText string    `json:"indexed_text"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// RecordWithEmbedding pairs a record with its fused retrieval vector.
type RecordWithEmbedding struct {
	Record    *Record
	Embedding []float32
}

// Neighbor is one nearest-neighbor match returned by the vector store.
// Distance is cosine distance in [0, 2], smallest first.
type Neighbor struct {
	Record   *Record
	Distance float64
}

// SearchResult is a ranked query result as presented to a front end.
// Confidence is 1 - distance/2, in [0, 1].
type SearchResult struct {
	FilePath    string  `json:"filepath"`
	Confidence  float64 `json:"confidence"`
	ID          string  `json:"id"`
	IndexedText string  `json:"indexed_text,omitempty"`
}

// IndexReport summarizes one batch indexing run.
type IndexReport struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Total returns the number of candidate files the run observed.
func (r IndexReport) Total() int {
	return r.Indexed + r.Skipped + r.Failed
}

// HashBytes returns the hex SHA-256 of content, used to detect changed
// files behind an unchanged path.
func HashBytes(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}
