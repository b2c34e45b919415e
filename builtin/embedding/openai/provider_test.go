package openai

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newEmbeddingServer mimics an OpenAI-compatible /embeddings endpoint.
func newEmbeddingServer(t *testing.T, dims int, inputs *[][]string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		*inputs = append(*inputs, req.Input)

		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			vec := make([]float32, dims)
			vec[0] = float32(i + 1)
			data[i] = map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": vec,
			}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
		})
	}))
}

func newTestProvider(serverURL string, cfg Config) *Provider {
	cfg.APIKey = "test-key"
	cfg.BaseURL = serverURL + "/v1"
	return New(cfg)
}

func TestEmbedText(t *testing.T) {
	var inputs [][]string
	server := newEmbeddingServer(t, 8, &inputs)
	defer server.Close()

	p := newTestProvider(server.URL, Config{})

	embeddings, err := p.EmbedText(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("EmbedText failed: %v", err)
	}
	if len(embeddings) != 2 {
		t.Fatalf("got %d embeddings, want 2", len(embeddings))
	}
	if len(embeddings[0]) != 8 {
		t.Errorf("embedding size = %d, want 8", len(embeddings[0]))
	}

	if len(inputs) != 1 || len(inputs[0]) != 2 || inputs[0][1] != "second" {
		t.Errorf("server saw inputs %v", inputs)
	}
}

func TestEmbedTextBatching(t *testing.T) {
	var inputs [][]string
	server := newEmbeddingServer(t, 4, &inputs)
	defer server.Close()

	p := newTestProvider(server.URL, Config{BatchSize: 2})

	embeddings, err := p.EmbedText(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedText failed: %v", err)
	}
	if len(embeddings) != 3 {
		t.Errorf("got %d embeddings, want 3", len(embeddings))
	}
	if len(inputs) != 2 {
		t.Errorf("server saw %d requests, want 2 batches", len(inputs))
	}
}

func TestEmbedImageSendsDataURL(t *testing.T) {
	var inputs [][]string
	server := newEmbeddingServer(t, 8, &inputs)
	defer server.Close()

	p := newTestProvider(server.URL, Config{})

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	embedding, err := p.EmbedImage(context.Background(), img)
	if err != nil {
		t.Fatalf("EmbedImage failed: %v", err)
	}
	if len(embedding) != 8 {
		t.Errorf("embedding size = %d, want 8", len(embedding))
	}

	if len(inputs) != 1 || len(inputs[0]) != 1 {
		t.Fatalf("server saw inputs %v", inputs)
	}
	if !strings.HasPrefix(inputs[0][0], "data:image/png;base64,") {
		t.Errorf("image input is not a PNG data URL: %.40s", inputs[0][0])
	}
}

func TestDimensions(t *testing.T) {
	p := New(Config{APIKey: "k", Model: "clip-ViT-L-14"})
	if p.Dimensions() != 768 {
		t.Errorf("known model dimensions = %d, want 768", p.Dimensions())
	}

	p = New(Config{APIKey: "k", Model: "some-custom-model", Dimensions: 1024})
	if p.Dimensions() != 1024 {
		t.Errorf("explicit dimensions = %d, want 1024", p.Dimensions())
	}

	// Unknown model with no override detects from the first response
	var inputs [][]string
	server := newEmbeddingServer(t, 16, &inputs)
	defer server.Close()

	p = newTestProvider(server.URL, Config{Model: "some-custom-model"})
	if p.Dimensions() != 0 {
		t.Errorf("dimensions before first call = %d, want 0", p.Dimensions())
	}
	if _, err := p.EmbedText(context.Background(), []string{"probe"}); err != nil {
		t.Fatalf("EmbedText failed: %v", err)
	}
	if p.Dimensions() != 16 {
		t.Errorf("dimensions after first call = %d, want 16", p.Dimensions())
	}
}

func TestServerErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "model not found"}}`, http.StatusNotFound)
	}))
	defer server.Close()

	p := newTestProvider(server.URL, Config{})

	if _, err := p.EmbedText(context.Background(), []string{"a"}); err == nil {
		t.Error("expected error from failing server")
	}
}

func TestDefaults(t *testing.T) {
	p := New(Config{APIKey: "k"})

	if p.config.Model != DefaultModel {
		t.Errorf("model = %q", p.config.Model)
	}
	if p.config.BatchSize != DefaultBatchSize {
		t.Errorf("batch size = %d", p.config.BatchSize)
	}
	if p.Name() != "openai" {
		t.Errorf("name = %q", p.Name())
	}
}
