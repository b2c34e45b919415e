// Package tesseract implements TextExtractor using the Tesseract OCR
// engine via gosseract.
package tesseract

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/snapseek/snapseek/pkg/provider"
)

// DefaultLanguages is used when no language hints are configured.
var DefaultLanguages = []string{"eng"}

// Config contains Tesseract extractor configuration.
type Config struct {
	Languages []string
}

// Extractor implements the TextExtractor interface using Tesseract.
// The gosseract client is not safe for concurrent use, so calls are
// serialized with a mutex.
type Extractor struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// New creates a new Tesseract text extractor.
func New(cfg Config) *Extractor {
	langs := cfg.Languages
	if len(langs) == 0 {
		langs = DefaultLanguages
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(langs...); err != nil {
		slog.Warn("failed to set OCR languages, using engine default", "languages", langs, "error", err)
	}

	return &Extractor{client: client}
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return "tesseract"
}

// ExtractText runs OCR on the image at path. Failures are absorbed here:
// the error is logged and an empty string returned, so indexing degrades
// to visual-only rather than failing.
func (e *Extractor) ExtractText(ctx context.Context, path string) string {
	if ctx.Err() != nil {
		return ""
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.client.SetImage(path); err != nil {
		slog.Warn("OCR could not read image", "path", path, "error", err)
		return ""
	}

	text, err := e.client.Text()
	if err != nil {
		slog.Warn("OCR extraction failed", "path", path, "error", err)
		return ""
	}

	// Tesseract emits line breaks between blocks; collapse to the
	// single-space-joined fragment form used as indexed text.
	return strings.Join(strings.Fields(text), " ")
}

// Close releases the Tesseract client.
func (e *Extractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client.Close()
}

// Ensure Extractor implements TextExtractor interface
var _ provider.TextExtractor = (*Extractor)(nil)
