// Package encoder fuses a screenshot's visual embedding with an embedding
// of its OCR text into a single retrieval vector.
package encoder

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"

	"github.com/snapseek/snapseek/pkg/provider"
	"github.com/snapseek/snapseek/pkg/types"
)

// promptTemplate wraps raw OCR fragments into a sentence closer to the
// text encoder's expected input distribution. The filled template is also
// what gets stored as the record's indexed text.
const promptTemplate = "A screenshot showing text: %s"

// Encoder produces one fused vector per image.
type Encoder struct {
	embedding provider.EmbeddingProvider
	extractor provider.TextExtractor
}

// Result is the output of encoding one image.
type Result struct {
	Embedding   []float32
	IndexedText string
	ContentHash string
}

// New creates a new encoder.
func New(embedding provider.EmbeddingProvider, extractor provider.TextExtractor) *Encoder {
	return &Encoder{
		embedding: embedding,
		extractor: extractor,
	}
}

// BuildPrompt returns the descriptive prompt for extracted OCR text.
func BuildPrompt(extractedText string) string {
	return fmt.Sprintf(promptTemplate, extractedText)
}

// Encode loads the image at path and returns its fused retrieval vector.
// An unreadable or undecodable file fails with types.ErrMediaUnreadable;
// OCR failure does not fail the encode (the extractor absorbs it).
func (e *Encoder) Encode(ctx context.Context, path string) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrMediaUnreadable, path, err)
	}

	img, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrMediaUnreadable, path, err)
	}

	// OCR never fails past its boundary; empty text is a valid outcome.
	extracted := e.extractor.ExtractText(ctx, path)
	prompt := BuildPrompt(extracted)

	visual, err := e.embedding.EmbedImage(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("visual embedding failed for %s: %w", path, err)
	}

	textVecs, err := e.embedding.EmbedText(ctx, []string{prompt})
	if err != nil {
		return nil, fmt.Errorf("text embedding failed for %s: %w", path, err)
	}
	if len(textVecs) != 1 {
		return nil, fmt.Errorf("expected 1 text embedding, got %d", len(textVecs))
	}

	fused, err := fuse(visual, textVecs[0])
	if err != nil {
		return nil, fmt.Errorf("fusing embeddings for %s: %w", path, err)
	}

	return &Result{
		Embedding:   fused,
		IndexedText: prompt,
		ContentHash: types.HashBytes(content),
	}, nil
}

// fuse returns the element-wise arithmetic mean of the two vectors. The
// result is not re-normalized: cosine distance is magnitude-invariant, so
// a sub-unit-norm average is fine.
func fuse(visual, text []float32) ([]float32, error) {
	if len(visual) != len(text) {
		return nil, fmt.Errorf("%w: visual=%d text=%d", types.ErrDimensionMismatch, len(visual), len(text))
	}
	if len(visual) == 0 {
		return nil, fmt.Errorf("%w: empty vectors", types.ErrEmbeddingFailed)
	}

	fused := make([]float32, len(visual))
	for i := range visual {
		fused[i] = (visual[i] + text[i]) / 2
	}
	return fused, nil
}
