package provider

import "context"

// TextExtractor recognizes text inside an image file.
//
// Implementations must never let an internal failure escape this boundary:
// any OCR error is logged and mapped to an empty string, so a broken OCR
// engine degrades indexing to visual-only instead of blocking it.
type TextExtractor interface {
	// Name returns the extractor name (e.g., "tesseract", "none").
	Name() string

	// ExtractText returns the recognized text fragments of the image at
	// path, in detection order, joined by single spaces. An empty string
	// means either "no text detected" or "extraction failed"; callers
	// treat the two identically.
	ExtractText(ctx context.Context, path string) string

	// Close releases any resources.
	Close() error
}

// OCRConfig contains configuration for text extractors.
type OCRConfig struct {
	Provider  string   // "tesseract", "none"
	Languages []string // OCR language hints, e.g. ["eng"]
}
