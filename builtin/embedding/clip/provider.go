// Package clip implements EmbeddingProvider against a local CLIP
// embedding server exposing text and image endpoints over HTTP.
package clip

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/snapseek/snapseek/pkg/provider"
)

// Default values
const (
	DefaultModel      = "clip-ViT-B-32"
	DefaultEndpoint   = "http://localhost:8099"
	DefaultBatchSize  = 32
	DefaultDimensions = 512 // clip-ViT-B-32 output size
)

// Config contains CLIP server provider configuration.
type Config struct {
	Model      string
	Endpoint   string
	BatchSize  int
	Dimensions int // Set to 0 to auto-detect from first embedding
}

// Provider implements the EmbeddingProvider interface for a CLIP server.
type Provider struct {
	config     Config
	client     *http.Client
	dimensions int
	mu         sync.RWMutex
}

// New creates a new CLIP embedding provider.
func New(cfg Config) *Provider {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	return &Provider{
		config: cfg,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		dimensions: cfg.Dimensions,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "clip"
}

// EmbedText generates embeddings for the given texts.
func (p *Provider) EmbedText(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, 0, len(texts))

	// Process in batches
	for i := 0; i < len(texts); i += p.config.BatchSize {
		end := i + p.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := p.post(ctx, "/embed/text", map[string]any{
			"model": p.config.Model,
			"texts": texts[i:end],
		})
		if err != nil {
			return nil, fmt.Errorf("failed to embed text batch %d: %w", i/p.config.BatchSize, err)
		}
		if len(batch) != end-i {
			return nil, fmt.Errorf("clip server returned %d embeddings for %d texts", len(batch), end-i)
		}
		results = append(results, batch...)
	}

	p.detectDimensions(results)

	return results, nil
}

// EmbedImage generates an embedding for a decoded image. The image is
// re-encoded as PNG for transport regardless of its source format.
func (p *Provider) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	embeddings, err := p.post(ctx, "/embed/image", map[string]any{
		"model":  p.config.Model,
		"images": []string{base64.StdEncoding.EncodeToString(buf.Bytes())},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed image: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("clip server returned %d embeddings for 1 image", len(embeddings))
	}

	p.detectDimensions(embeddings)

	return embeddings[0], nil
}

// post sends one embedding request and decodes the response.
func (p *Provider) post(ctx context.Context, path string, body map[string]any) ([][]float32, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.config.Endpoint+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("clip server request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("clip server returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode clip server response: %w", err)
	}

	return result.Embeddings, nil
}

// detectDimensions records the embedding size from the first non-empty result.
func (p *Provider) detectDimensions(embeddings [][]float32) {
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return
	}
	p.mu.Lock()
	if p.dimensions == 0 {
		p.dimensions = len(embeddings[0])
	}
	p.mu.Unlock()
}

// Dimensions returns the embedding dimensions. For models other than the
// default it returns 0 until the first embedding has been seen.
func (p *Provider) Dimensions() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.dimensions == 0 && p.config.Model == DefaultModel {
		return DefaultDimensions
	}
	return p.dimensions
}

// Warmup sends a test embedding request to load the model.
func (p *Provider) Warmup(ctx context.Context) error {
	_, err := p.EmbedText(ctx, []string{"warmup"})
	return err
}

// Close releases resources.
func (p *Provider) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}

// Ensure Provider implements EmbeddingProvider interface
var _ provider.EmbeddingProvider = (*Provider)(nil)
