// Package builtin registers all built-in providers with the default registry.
package builtin

import (
	clipEmbed "github.com/snapseek/snapseek/builtin/embedding/clip"
	openaiEmbed "github.com/snapseek/snapseek/builtin/embedding/openai"
	"github.com/snapseek/snapseek/builtin/ocr/none"
	"github.com/snapseek/snapseek/builtin/ocr/tesseract"
	"github.com/snapseek/snapseek/builtin/vectorstore/sqlitevec"
	"github.com/snapseek/snapseek/pkg/provider"
)

func init() {
	// Register embedding providers
	provider.RegisterEmbedding("clip", func(cfg provider.EmbeddingConfig) (provider.EmbeddingProvider, error) {
		return clipEmbed.New(clipEmbed.Config{
			Model:     cfg.Model,
			Endpoint:  cfg.Endpoint,
			BatchSize: cfg.BatchSize,
		}), nil
	})

	provider.RegisterEmbedding("openai", func(cfg provider.EmbeddingConfig) (provider.EmbeddingProvider, error) {
		return openaiEmbed.New(openaiEmbed.Config{
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.Endpoint,
			BatchSize: cfg.BatchSize,
		}), nil
	})

	// Register text extractors
	provider.RegisterOCR("tesseract", func(cfg provider.OCRConfig) (provider.TextExtractor, error) {
		return tesseract.New(tesseract.Config{
			Languages: cfg.Languages,
		}), nil
	})

	provider.RegisterOCR("none", func(cfg provider.OCRConfig) (provider.TextExtractor, error) {
		return none.New(), nil
	})

	// Register vector stores
	provider.RegisterVectorStore("sqlitevec", func() (provider.VectorStore, error) {
		return sqlitevec.New(), nil
	})
}
