// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete configuration.
type Config struct {
	Embedding   EmbeddingConfig   `mapstructure:"embedding" yaml:"embedding"`
	OCR         OCRConfig         `mapstructure:"ocr" yaml:"ocr"`
	VectorStore VectorStoreConfig `mapstructure:"vectorstore" yaml:"vectorstore"`
	Search      SearchConfig      `mapstructure:"search" yaml:"search"`
	Watch       WatchConfig       `mapstructure:"watch" yaml:"watch"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
}

// EmbeddingConfig contains embedding provider configuration.
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider" yaml:"provider"`     // clip, openai
	Model     string `mapstructure:"model" yaml:"model"`           // model name
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`     // API endpoint
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`       // API key
	BatchSize int    `mapstructure:"batch_size" yaml:"batch_size"` // texts per batch
}

// OCRConfig contains text extractor configuration.
type OCRConfig struct {
	Provider  string   `mapstructure:"provider" yaml:"provider"`   // tesseract, none
	Languages []string `mapstructure:"languages" yaml:"languages"` // OCR language hints
}

// VectorStoreConfig contains vector store configuration.
type VectorStoreConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"` // sqlitevec
}

// SearchConfig contains search configuration.
type SearchConfig struct {
	DefaultLimit int `mapstructure:"default_limit" yaml:"default_limit"` // default result count
}

// WatchConfig contains filesystem watcher configuration.
type WatchConfig struct {
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"` // wait after create before reading
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text, json
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:  "clip",
			Model:     "clip-ViT-B-32",
			Endpoint:  "http://localhost:8099",
			BatchSize: 32,
		},
		OCR: OCRConfig{
			Provider:  "tesseract",
			Languages: []string{"eng"},
		},
		VectorStore: VectorStoreConfig{
			Provider: "sqlitevec",
		},
		Search: SearchConfig{
			DefaultLimit: 5,
		},
		Watch: WatchConfig{
			SettleDelay: 500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ConfigDir returns the path to the .snapseek directory.
func ConfigDir(root string) string {
	return filepath.Join(root, ".snapseek")
}

// ConfigPath returns the path to config.yaml.
func ConfigPath(root string) string {
	return filepath.Join(ConfigDir(root), "config.yaml")
}

// IndexDBPath returns the path to index.db.
func IndexDBPath(root string) string {
	return filepath.Join(ConfigDir(root), "index.db")
}

// Load loads configuration from file, falling back to defaults.
func Load(root string) (*Config, []string, error) {
	cfg := DefaultConfig()
	warnings := []string{}

	configPath := ConfigPath(root)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		warnings = append(warnings, "No config file found, using defaults")
		return cfg, warnings, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply defaults for missing values
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "clip"
		warnings = append(warnings, "Using default embedding provider: clip")
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "clip-ViT-B-32"
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.OCR.Provider == "" {
		cfg.OCR.Provider = "tesseract"
	}
	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "sqlitevec"
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 5
	}
	if cfg.Watch.SettleDelay == 0 {
		cfg.Watch.SettleDelay = 500 * time.Millisecond
	}

	return cfg, warnings, nil
}

// Save saves configuration to file.
func Save(root string, cfg *Config) error {
	configDir := ConfigDir(root)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(ConfigPath(root))
	v.SetConfigType("yaml")

	v.Set("embedding", cfg.Embedding)
	v.Set("ocr", cfg.OCR)
	v.Set("vectorstore", cfg.VectorStore)
	v.Set("search", cfg.Search)
	v.Set("watch", cfg.Watch)
	v.Set("logging", cfg.Logging)

	return v.WriteConfig()
}

// Validate validates the configuration.
func Validate(cfg *Config) []error {
	var errs []error

	validEmbeddingProviders := map[string]bool{
		"clip": true, "openai": true,
	}
	if !validEmbeddingProviders[cfg.Embedding.Provider] {
		errs = append(errs, fmt.Errorf("invalid embedding provider: %s", cfg.Embedding.Provider))
	}

	validOCRProviders := map[string]bool{
		"tesseract": true, "none": true,
	}
	if !validOCRProviders[cfg.OCR.Provider] {
		errs = append(errs, fmt.Errorf("invalid OCR provider: %s", cfg.OCR.Provider))
	}

	validVectorStores := map[string]bool{
		"sqlitevec": true,
	}
	if !validVectorStores[cfg.VectorStore.Provider] {
		errs = append(errs, fmt.Errorf("invalid vector store: %s", cfg.VectorStore.Provider))
	}

	if cfg.Search.DefaultLimit < 0 {
		errs = append(errs, fmt.Errorf("search default_limit must not be negative: %d", cfg.Search.DefaultLimit))
	}

	if cfg.Watch.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("watch settle_delay must not be negative: %s", cfg.Watch.SettleDelay))
	}

	return errs
}
