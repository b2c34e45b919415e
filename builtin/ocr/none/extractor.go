// Package none implements a TextExtractor that never recognizes text.
// It lets indexing run visual-only on systems without an OCR engine.
package none

import (
	"context"

	"github.com/snapseek/snapseek/pkg/provider"
)

// Extractor is a no-op text extractor.
type Extractor struct{}

// New creates a new no-op text extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return "none"
}

// ExtractText always returns an empty string.
func (e *Extractor) ExtractText(ctx context.Context, path string) string {
	return ""
}

// Close releases resources.
func (e *Extractor) Close() error {
	return nil
}

// Ensure Extractor implements TextExtractor interface
var _ provider.TextExtractor = (*Extractor)(nil)
