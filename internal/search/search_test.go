package search

import (
	"context"
	"image"
	"testing"

	"github.com/snapseek/snapseek/pkg/types"
)

// stubStore returns canned neighbors and tracks the query it received.
type stubStore struct {
	neighbors []*types.Neighbor
	count     int

	lastTopN int
}

func (s *stubStore) Name() string           { return "stub" }
func (s *stubStore) Init(path string) error { return nil }
func (s *stubStore) Close() error           { return nil }

func (s *stubStore) Insert(ctx context.Context, rec *types.RecordWithEmbedding) error { return nil }

func (s *stubStore) GetByPath(ctx context.Context, path string) (*types.Record, error) {
	return nil, nil
}

func (s *stubStore) DeleteByPath(ctx context.Context, path string) error { return nil }

func (s *stubStore) QueryNearest(ctx context.Context, vector []float32, topN int) ([]*types.Neighbor, error) {
	s.lastTopN = topN
	if len(s.neighbors) > topN {
		return s.neighbors[:topN], nil
	}
	return s.neighbors, nil
}

func (s *stubStore) SearchText(ctx context.Context, query string, topN int) ([]*types.Neighbor, error) {
	s.lastTopN = topN
	return s.neighbors, nil
}

func (s *stubStore) Count(ctx context.Context) (int, error) { return s.count, nil }

type stubEmbedding struct {
	lastText string
}

func (s *stubEmbedding) Name() string { return "stub" }

func (s *stubEmbedding) EmbedText(ctx context.Context, texts []string) ([][]float32, error) {
	s.lastText = texts[0]
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func (s *stubEmbedding) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}

func (s *stubEmbedding) Dimensions() int                  { return 4 }
func (s *stubEmbedding) Warmup(ctx context.Context) error { return nil }
func (s *stubEmbedding) Close() error                     { return nil }

func neighbor(id, path string, distance float64) *types.Neighbor {
	return &types.Neighbor{
		Record:   &types.Record{ID: id, Path: path, IndexedText: "A screenshot showing text: " + id},
		Distance: distance,
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		want     float64
	}{
		{"identical vectors", 0, 1},
		{"orthogonal vectors", 1, 0.5},
		{"opposite vectors", 2, 0},
		{"beyond cosine range", 2.5, 0},
		{"negative distance", -0.1, 1},
		{"typical match", 0.4, 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Confidence(tt.distance)
			if got != tt.want {
				t.Errorf("Confidence(%v) = %v, want %v", tt.distance, got, tt.want)
			}
		})
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	store := &stubStore{count: 3, neighbors: []*types.Neighbor{neighbor("a", "/a.png", 0.1)}}
	s := New(Config{Store: store, Embedding: &stubEmbedding{}})

	for _, query := range []string{"", "   ", "\t\n"} {
		results, err := s.Search(context.Background(), query, 5)
		if err != nil {
			t.Errorf("Search(%q) errored: %v", query, err)
		}
		if len(results) != 0 {
			t.Errorf("Search(%q) returned %d results, want 0", query, len(results))
		}
	}
}

func TestSearchEmptyStore(t *testing.T) {
	embedding := &stubEmbedding{}
	s := New(Config{Store: &stubStore{count: 0}, Embedding: embedding})

	results, err := s.Search(context.Background(), "terminal error", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results from an empty store, want 0", len(results))
	}
	if embedding.lastText != "" {
		t.Error("query was embedded despite the store being empty")
	}
}

func TestSearchOrderAndConfidence(t *testing.T) {
	store := &stubStore{
		count: 3,
		neighbors: []*types.Neighbor{
			neighbor("best", "/best.png", 0.2),
			neighbor("mid", "/mid.png", 0.6),
			neighbor("worst", "/worst.png", 1.4),
		},
	}
	embedding := &stubEmbedding{}
	s := New(Config{Store: store, Embedding: embedding})

	results, err := s.Search(context.Background(), "invoice screenshot", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	// The raw query is embedded as-is, no prompt wrapping
	if embedding.lastText != "invoice screenshot" {
		t.Errorf("embedded query = %q", embedding.lastText)
	}

	wantOrder := []string{"/best.png", "/mid.png", "/worst.png"}
	for i, want := range wantOrder {
		if results[i].FilePath != want {
			t.Errorf("result %d path = %q, want %q", i, results[i].FilePath, want)
		}
	}

	for i := 1; i < len(results); i++ {
		if results[i].Confidence > results[i-1].Confidence {
			t.Errorf("confidence increased at position %d", i)
		}
	}
	if results[0].Confidence != 0.9 {
		t.Errorf("top confidence = %v, want 0.9", results[0].Confidence)
	}
}

func TestSearchLimitDefaults(t *testing.T) {
	store := &stubStore{count: 1, neighbors: []*types.Neighbor{neighbor("a", "/a.png", 0.3)}}
	s := New(Config{Store: store, Embedding: &stubEmbedding{}})

	if _, err := s.Search(context.Background(), "anything", 0); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if store.lastTopN != 5 {
		t.Errorf("topN = %d, want default 5", store.lastTopN)
	}

	if _, err := s.Search(context.Background(), "anything", 2); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if store.lastTopN != 2 {
		t.Errorf("topN = %d, want 2", store.lastTopN)
	}
}

func TestSearchTextMode(t *testing.T) {
	store := &stubStore{
		neighbors: []*types.Neighbor{
			neighbor("hit", "/hit.png", 0.5),
		},
	}
	embedding := &stubEmbedding{}
	s := New(Config{Store: store, Embedding: embedding})

	results, err := s.SearchText(context.Background(), "stack trace", 5)
	if err != nil {
		t.Fatalf("SearchText failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Confidence != 0.75 {
		t.Errorf("confidence = %v, want 0.75", results[0].Confidence)
	}
	if embedding.lastText != "" {
		t.Error("text-mode search must not call the embedding model")
	}
}
