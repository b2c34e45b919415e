// Package openai implements EmbeddingProvider against an OpenAI-compatible
// embeddings endpoint serving a multimodal (CLIP-class) model, such as
// Infinity or LocalAI. Images are submitted to the same endpoint as base64
// data URLs, so text and image vectors share one space.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"os"
	"sync"

	"github.com/sashabaranov/go-openai"

	"github.com/snapseek/snapseek/pkg/provider"
)

// Default values
const (
	DefaultModel     = "clip-ViT-B-32"
	DefaultBatchSize = 64
)

// Dimensions for known multimodal models.
var modelDimensions = map[string]int{
	"clip-ViT-B-32":           512,
	"clip-ViT-B-16":           512,
	"clip-ViT-L-14":           768,
	"jina-clip-v1":            768,
	"nomic-embed-vision-v1.5": 768,
}

// Config contains OpenAI-compatible provider configuration.
type Config struct {
	Model      string
	APIKey     string // If empty, uses OPENAI_API_KEY env var
	BaseURL    string // Custom endpoint (Infinity, LocalAI, etc.)
	BatchSize  int
	Dimensions int // Set to 0 to use the known default for the model
}

// Provider implements the EmbeddingProvider interface for OpenAI-compatible
// embedding servers.
type Provider struct {
	config     Config
	client     *openai.Client
	dimensions int
	mu         sync.RWMutex
}

// New creates a new OpenAI-compatible embedding provider.
func New(cfg Config) *Provider {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(clientConfig)

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = modelDimensions[cfg.Model]
	}

	return &Provider{
		config:     cfg,
		client:     client,
		dimensions: dimensions,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "openai"
}

// EmbedText generates embeddings for the given texts.
func (p *Provider) EmbedText(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))

	// Process in batches
	for i := 0; i < len(texts); i += p.config.BatchSize {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		end := i + p.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts[i:end],
			Model: openai.EmbeddingModel(p.config.Model),
		})
		if err != nil {
			return nil, fmt.Errorf("embedding request failed: %w", err)
		}
		if len(resp.Data) != end-i {
			return nil, fmt.Errorf("server returned %d embeddings for %d inputs", len(resp.Data), end-i)
		}

		for j, data := range resp.Data {
			results[i+j] = data.Embedding
		}
	}

	p.detectDimensions(results)

	return results, nil
}

// EmbedImage generates an embedding for a decoded image by sending it as a
// PNG data URL through the embeddings endpoint.
func (p *Provider) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{dataURL},
		Model: openai.EmbeddingModel(p.config.Model),
	})
	if err != nil {
		return nil, fmt.Errorf("image embedding request failed: %w", err)
	}
	if len(resp.Data) != 1 {
		return nil, fmt.Errorf("server returned %d embeddings for 1 image", len(resp.Data))
	}

	embedding := resp.Data[0].Embedding
	p.detectDimensions([][]float32{embedding})

	return embedding, nil
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

// Dimensions returns the embedding dimensions.
func (p *Provider) Dimensions() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dimensions
}

// Warmup tests the API connection.
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
