package index

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/snapseek/snapseek/internal/encoder"
	"github.com/snapseek/snapseek/pkg/provider"
	"github.com/snapseek/snapseek/pkg/types"
)

// memStore is an in-memory VectorStore for tests.
type memStore struct {
	mu   sync.Mutex
	recs map[string]*types.RecordWithEmbedding // by id
}

func newMemStore() *memStore {
	return &memStore{recs: make(map[string]*types.RecordWithEmbedding)}
}

func (m *memStore) Name() string           { return "mem" }
func (m *memStore) Init(path string) error { return nil }
func (m *memStore) Close() error           { return nil }

func (m *memStore) Insert(ctx context.Context, rec *types.RecordWithEmbedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.Record.ID] = rec
	return nil
}

func (m *memStore) GetByPath(ctx context.Context, path string) (*types.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.recs {
		if rec.Record.Path == path {
			return rec.Record, nil
		}
	}
	return nil, nil
}

func (m *memStore) DeleteByPath(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rec := range m.recs {
		if rec.Record.Path == path {
			delete(m.recs, id)
		}
	}
	return nil
}

func (m *memStore) QueryNearest(ctx context.Context, vector []float32, topN int) ([]*types.Neighbor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var neighbors []*types.Neighbor
	for _, rec := range m.recs {
		neighbors = append(neighbors, &types.Neighbor{
			Record:   rec.Record,
			Distance: cosineDistance(vector, rec.Embedding),
		})
	}
	sort.Slice(neighbors, func(i, j int) bool {
		return neighbors[i].Distance < neighbors[j].Distance
	})
	if len(neighbors) > topN {
		neighbors = neighbors[:topN]
	}
	return neighbors, nil
}

func (m *memStore) SearchText(ctx context.Context, query string, topN int) ([]*types.Neighbor, error) {
	return nil, nil
}

func (m *memStore) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs), nil
}

// pathCount returns the number of records stored for path.
func (m *memStore) pathCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rec := range m.recs {
		if rec.Record.Path == path {
			n++
		}
	}
	return n
}

func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

var _ provider.VectorStore = (*memStore)(nil)

// fakeEmbedding derives deterministic vectors from input bytes so
// different images land at different points of the space.
type fakeEmbedding struct{}

func (fakeEmbedding) Name() string { return "fake" }

func (fakeEmbedding) EmbedText(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vecFromString(t)
	}
	return out, nil
}

func (fakeEmbedding) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	r, g, b, _ := img.At(0, 0).RGBA()
	return vecFromString(fmt.Sprintf("%d-%d-%d", r, g, b)), nil
}

func (fakeEmbedding) Dimensions() int                  { return 4 }
func (fakeEmbedding) Warmup(ctx context.Context) error { return nil }
func (fakeEmbedding) Close() error                     { return nil }

func vecFromString(s string) []float32 {
	v := make([]float32, 4)
	for i, c := range []byte(s) {
		v[i%4] += float32(c) / 255
	}
	return v
}

type fakeExtractor struct{}

func (fakeExtractor) Name() string { return "fake" }
func (fakeExtractor) ExtractText(ctx context.Context, path string) string {
	return ""
}
func (fakeExtractor) Close() error { return nil }

func newTestIndexer(store provider.VectorStore) *Indexer {
	return New(Config{
		Store:   store,
		Encoder: encoder.New(fakeEmbedding{}, fakeExtractor{}),
	})
}

// writePNG writes a small solid-color PNG and returns its path.
func writePNG(t *testing.T, dir, name string, c color.RGBA) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create image file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return path
}

func TestHasAllowedExtension(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"shot.png", true},
		{"shot.PNG", true},
		{"photo.jpg", true},
		{"photo.JPEG", true},
		{"old.bmp", true},
		{"animation.gif", false},
		{"notes.txt", false},
		{"noext", false},
		{"dir/shot.png", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := HasAllowedExtension(tt.path); got != tt.want {
				t.Errorf("HasAllowedExtension(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestIndexDirectoryIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "a.png", color.RGBA{R: 255, A: 255})
	writePNG(t, dir, "b.jpeg", color.RGBA{G: 255, A: 255})
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}

	store := newMemStore()
	idx := newTestIndexer(store)
	ctx := context.Background()

	report, err := idx.IndexDirectory(ctx, dir)
	if err != nil {
		t.Fatalf("first IndexDirectory failed: %v", err)
	}
	if report.Indexed != 2 || report.Skipped != 0 || report.Failed != 0 {
		t.Fatalf("first run report = %+v, want 2/0/0", report)
	}

	report, err = idx.IndexDirectory(ctx, dir)
	if err != nil {
		t.Fatalf("second IndexDirectory failed: %v", err)
	}
	if report.Indexed != 0 || report.Skipped != 2 {
		t.Errorf("second run report = %+v, want 0 indexed, 2 skipped", report)
	}

	count, _ := store.Count(ctx)
	if count != 2 {
		t.Errorf("store count = %d, want 2", count)
	}
}

func TestIndexDirectorySkipsHiddenDirectories(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "visible.png", color.RGBA{R: 255, A: 255})

	hidden := filepath.Join(dir, ".cache")
	if err := os.Mkdir(hidden, 0755); err != nil {
		t.Fatal(err)
	}
	hiddenImg := writePNG(t, hidden, "thumb.png", color.RGBA{G: 255, A: 255})

	dataDir := filepath.Join(dir, ".snapseek")
	if err := os.Mkdir(dataDir, 0755); err != nil {
		t.Fatal(err)
	}
	writePNG(t, dataDir, "stray.png", color.RGBA{B: 255, A: 255})

	store := newMemStore()
	idx := newTestIndexer(store)

	report, err := idx.IndexDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("IndexDirectory failed: %v", err)
	}
	if report.Indexed != 1 {
		t.Errorf("report = %+v, want 1 indexed", report)
	}
	rec, _ := store.GetByPath(context.Background(), hiddenImg)
	if rec != nil {
		t.Error("image under a hidden directory was indexed")
	}
}

func TestIndexDirectorySkipsUnreadableImages(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "good.png", color.RGBA{B: 255, A: 255})
	if err := os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}

	store := newMemStore()
	idx := newTestIndexer(store)

	report, err := idx.IndexDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("IndexDirectory failed: %v", err)
	}
	if report.Indexed != 1 || report.Failed != 1 {
		t.Errorf("report = %+v, want 1 indexed, 1 failed", report)
	}

	// The failed file was never marked indexed, so a retry picks it up
	// (and fails again here since the file is still broken).
	report, err = idx.IndexDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("retry IndexDirectory failed: %v", err)
	}
	if report.Failed != 1 || report.Skipped != 1 {
		t.Errorf("retry report = %+v, want 1 failed, 1 skipped", report)
	}
}

func TestIndexFileIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "a.png", color.RGBA{R: 10, A: 255})

	store := newMemStore()
	idx := newTestIndexer(store)
	ctx := context.Background()

	if err := idx.IndexFile(ctx, path); err != nil {
		t.Fatalf("first IndexFile failed: %v", err)
	}
	first, _ := store.GetByPath(ctx, path)
	if first == nil {
		t.Fatal("record not found after first IndexFile")
	}

	if err := idx.IndexFile(ctx, path); err != nil {
		t.Fatalf("second IndexFile failed: %v", err)
	}
	second, _ := store.GetByPath(ctx, path)
	if second.ID != first.ID {
		t.Error("unchanged file was re-indexed")
	}
	if store.pathCount(path) != 1 {
		t.Errorf("path has %d records, want 1", store.pathCount(path))
	}
}

func TestIndexFileReindexesChangedContent(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "a.png", color.RGBA{R: 10, A: 255})

	store := newMemStore()
	idx := newTestIndexer(store)
	ctx := context.Background()

	if err := idx.IndexFile(ctx, path); err != nil {
		t.Fatalf("IndexFile failed: %v", err)
	}
	first, _ := store.GetByPath(ctx, path)

	// Overwrite with different pixels at the same path
	writePNG(t, dir, "a.png", color.RGBA{G: 200, A: 255})

	if err := idx.IndexFile(ctx, path); err != nil {
		t.Fatalf("re-IndexFile failed: %v", err)
	}
	second, _ := store.GetByPath(ctx, path)
	if second == nil {
		t.Fatal("record missing after re-index")
	}
	if second.ID == first.ID {
		t.Error("changed file kept its old record")
	}
	if store.pathCount(path) != 1 {
		t.Errorf("path has %d records, want 1", store.pathCount(path))
	}
}

func TestIndexFileIgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	store := newMemStore()
	idx := newTestIndexer(store)

	if err := idx.IndexFile(context.Background(), path); err != nil {
		t.Fatalf("IndexFile on non-image errored: %v", err)
	}
	count, _ := store.Count(context.Background())
	if count != 0 {
		t.Errorf("store count = %d, want 0", count)
	}
}

func TestDeleteByPath(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "a.png", color.RGBA{R: 10, A: 255})

	store := newMemStore()
	idx := newTestIndexer(store)
	ctx := context.Background()

	if err := idx.IndexFile(ctx, path); err != nil {
		t.Fatalf("IndexFile failed: %v", err)
	}

	if err := idx.DeleteByPath(ctx, path); err != nil {
		t.Fatalf("DeleteByPath failed: %v", err)
	}
	rec, _ := store.GetByPath(ctx, path)
	if rec != nil {
		t.Error("record still present after delete")
	}

	// Deleting an unknown path is a no-op, not an error
	if err := idx.DeleteByPath(ctx, filepath.Join(dir, "never-indexed.png")); err != nil {
		t.Errorf("delete of unknown path errored: %v", err)
	}
}
