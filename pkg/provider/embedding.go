// Package provider defines interfaces for pluggable components.
package provider

import (
	"context"
	"image"
)

// EmbeddingProvider generates vector embeddings for text and images.
// Both kinds of embedding must live in the same fixed-dimension space so
// that a fused image vector and a text query vector are comparable.
type EmbeddingProvider interface {
	// Name returns the provider name (e.g., "clip", "openai").
	Name() string

	// EmbedText generates embeddings for the given texts.
	// Returns one embedding per input text.
	EmbedText(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedImage generates an embedding for a decoded image.
	EmbedImage(ctx context.Context, img image.Image) ([]float32, error)

	// Dimensions returns the embedding dimension size.
	Dimensions() int

	// Warmup verifies the backing model is reachable and loads it.
	// Models are expensive to load; providers are constructed once per
	// process and reused for every call.
	Warmup(ctx context.Context) error

	// Close releases any resources.
	Close() error
}

// EmbeddingConfig contains configuration for embedding providers.
type EmbeddingConfig struct {
	Provider  string // "clip", "openai"
	Model     string // model name
	Endpoint  string // API endpoint
	APIKey    string // API key (for OpenAI-compatible endpoints)
	BatchSize int    // texts per batch
}
