// Package search translates free-text queries into ranked, confidence-
// scored screenshot results.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/snapseek/snapseek/pkg/provider"
	"github.com/snapseek/snapseek/pkg/types"
)

// Searcher embeds query text and ranks stored screenshots by similarity.
type Searcher struct {
	store     provider.VectorStore
	embedding provider.EmbeddingProvider
}

// Config contains searcher configuration.
type Config struct {
	Store     provider.VectorStore
	Embedding provider.EmbeddingProvider
}

// New creates a new searcher. The store must already be initialized; a
// store that failed to open never reaches this point.
func New(cfg Config) *Searcher {
	return &Searcher{
		store:     cfg.Store,
		embedding: cfg.Embedding,
	}
}

// Confidence maps a cosine distance in [0, 2] to a score in [0, 1],
// where 1 means identical and 0 maximally dissimilar. Results are clamped
// so float noise at the boundaries never leaks out of range.
func Confidence(distance float64) float64 {
	c := 1 - distance/2
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Search embeds the query as raw text (no prompt template) and returns
// the topN most similar screenshots, most similar first. An empty query
// or an empty store yields an empty result list, not an error.
func (s *Searcher) Search(ctx context.Context, query string, topN int) ([]*types.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		slog.Debug("empty query, returning no results")
		return nil, nil
	}
	if topN <= 0 {
		topN = 5
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("store count failed: %w", err)
	}
	if count == 0 {
		return nil, nil
	}

	embeddings, err := s.embedding.EmbedText(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("expected 1 query embedding, got %d", len(embeddings))
	}

	neighbors, err := s.store.QueryNearest(ctx, embeddings[0], topN)
	if err != nil {
		return nil, fmt.Errorf("nearest-neighbor query failed: %w", err)
	}

	return toResults(neighbors), nil
}

// SearchText ranks screenshots by full-text match against their indexed
// OCR text, bypassing the embedding model entirely.
func (s *Searcher) SearchText(ctx context.Context, query string, topN int) ([]*types.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if topN <= 0 {
		topN = 5
	}

	neighbors, err := s.store.SearchText(ctx, query, topN)
	if err != nil {
		return nil, fmt.Errorf("text search failed: %w", err)
	}

	return toResults(neighbors), nil
}

// toResults converts store neighbors into front-end results. The store's
// ascending-distance order is preserved, so confidence is non-increasing.
func toResults(neighbors []*types.Neighbor) []*types.SearchResult {
	results := make([]*types.SearchResult, 0, len(neighbors))
	for _, n := range neighbors {
		results = append(results, &types.SearchResult{
			FilePath:    n.Record.Path,
			Confidence:  Confidence(n.Distance),
			ID:          n.Record.ID,
			IndexedText: n.Record.IndexedText,
		})
	}
	return results
}
