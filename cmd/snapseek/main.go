// snapseek indexes a screenshot directory and searches it by natural-
// language description.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	_ "github.com/snapseek/snapseek/builtin"
	"github.com/snapseek/snapseek/internal/config"
	"github.com/snapseek/snapseek/internal/encoder"
	"github.com/snapseek/snapseek/internal/index"
	"github.com/snapseek/snapseek/internal/search"
	"github.com/snapseek/snapseek/pkg/provider"
	"github.com/snapseek/snapseek/pkg/types"
)

var (
	version   = "0.1.0"
	logLevel  string
	logFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "snapseek",
	Short: "Natural-language search over your screenshot history",
	Long: `snapseek indexes a directory of screenshots into a local vector
database and retrieves them by free-text description. Each image is
represented by a fused embedding that captures both what it looks like
and what text it contains (via OCR).`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("snapseek %s\n", version)
		fmt.Printf("Go version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

var indexCmd = &cobra.Command{
	Use:   "index [dir]",
	Short: "Index a screenshot directory",
	Long:  `Recursively index every screenshot under the directory. Already-indexed files are skipped. If no directory is provided, indexes the current directory.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		runIndex(dir)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed screenshots",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		mode, _ := cmd.Flags().GetString("mode")
		runSearch(args[0], limit, mode)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Watch a directory and index new screenshots automatically",
	Long:  `Watch the directory for created and deleted files and keep the index current until interrupted. If no directory is provided, watches the current directory.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		settleMs, _ := cmd.Flags().GetInt("settle")
		runWatch(dir, settleMs)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index status",
	Run: func(cmd *cobra.Command, args []string) {
		runStatus()
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration",
	Run: func(cmd *cobra.Command, args []string) {
		runConfigInit()
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Run: func(cmd *cobra.Command, args []string) {
		runConfigValidate()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	searchCmd.Flags().IntP("limit", "n", 0, "maximum results to return (0 = config default)")
	searchCmd.Flags().String("mode", "vector", "search mode (vector, text)")

	watchCmd.Flags().Int("settle", 0, "settling delay in milliseconds before reading a new file (0 = config default)")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}

func setupLogging() {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// createProviders builds the store, embedding provider and text extractor
// from configuration via the default registry. Models are loaded once
// here and reused for the whole process lifetime.
func createProviders(cfg *config.Config) (provider.VectorStore, provider.EmbeddingProvider, provider.TextExtractor, error) {
	store, err := provider.DefaultRegistry.CreateVectorStore(cfg.VectorStore.Provider)
	if err != nil {
		return nil, nil, nil, err
	}

	embedding, err := provider.DefaultRegistry.CreateEmbedding(cfg.Embedding.Provider, provider.EmbeddingConfig{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		Endpoint:  cfg.Embedding.Endpoint,
		APIKey:    cfg.Embedding.APIKey,
		BatchSize: cfg.Embedding.BatchSize,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	extractor, err := provider.DefaultRegistry.CreateOCR(cfg.OCR.Provider, provider.OCRConfig{
		Provider:  cfg.OCR.Provider,
		Languages: cfg.OCR.Languages,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	return store, embedding, extractor, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		slog.Info("received interrupt signal, shutting down", "signal", sig)
		cancel()
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

func runIndex(dir string) {
	absDir, _ := filepath.Abs(dir)
	slog.Info("indexing", "dir", absDir)

	cfg, warnings, err := config.Load(absDir)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	for _, w := range warnings {
		slog.Warn(w)
	}

	store, embedding, extractor, err := createProviders(cfg)
	if err != nil {
		slog.Error("failed to create providers", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	defer embedding.Close()
	defer extractor.Close()

	if err := store.Init(config.IndexDBPath(absDir)); err != nil {
		slog.Error("failed to init store", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := embedding.Warmup(ctx); err != nil {
		slog.Warn("embedding warmup failed", "error", err)
	}

	indexer := index.New(index.Config{
		Store:   store,
		Encoder: encoder.New(embedding, extractor),
	})

	report, err := indexer.IndexDirectory(ctx, absDir)
	if err != nil {
		if ctx.Err() != nil {
			slog.Info("indexing stopped by user")
			return
		}
		slog.Error("indexing failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Indexed %d new, skipped %d already indexed, %d failed.\n",
		report.Indexed, report.Skipped, report.Failed)
}

func runSearch(query string, limit int, mode string) {
	cwd, _ := os.Getwd()

	cfg, _, err := config.Load(cwd)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if limit <= 0 {
		limit = cfg.Search.DefaultLimit
	}

	store, embedding, extractor, err := createProviders(cfg)
	if err != nil {
		slog.Error("failed to create providers", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	defer embedding.Close()
	defer extractor.Close()

	// A store that cannot be opened refuses to search instead of
	// returning misleading empty results.
	if err := store.Init(config.IndexDBPath(cwd)); err != nil {
		slog.Error("store unavailable, run 'snapseek index' first", "error", err)
		os.Exit(1)
	}

	searcher := search.New(search.Config{
		Store:     store,
		Embedding: embedding,
	})

	ctx := context.Background()

	var results []*types.SearchResult
	if mode == "text" {
		results, err = searcher.SearchText(ctx, query, limit)
	} else {
		results, err = searcher.Search(ctx, query, limit)
	}
	if err != nil {
		slog.Error("search failed", "error", err)
		os.Exit(1)
	}

	if len(results) == 0 {
		fmt.Println("No matching screenshots found.")
		return
	}

	for _, r := range results {
		fmt.Printf("%6.1f%%  %s\n", r.Confidence*100, r.FilePath)
	}
}

func runWatch(dir string, settleMs int) {
	absDir, _ := filepath.Abs(dir)

	cfg, warnings, err := config.Load(absDir)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	for _, w := range warnings {
		slog.Warn(w)
	}

	settleDelay := cfg.Watch.SettleDelay
	if settleMs > 0 {
		settleDelay = time.Duration(settleMs) * time.Millisecond
	}

	store, embedding, extractor, err := createProviders(cfg)
	if err != nil {
		slog.Error("failed to create providers", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	defer embedding.Close()
	defer extractor.Close()

	if err := store.Init(config.IndexDBPath(absDir)); err != nil {
		slog.Error("failed to init store", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := embedding.Warmup(ctx); err != nil {
		slog.Warn("embedding warmup failed", "error", err)
	}

	indexer := index.New(index.Config{
		Store:   store,
		Encoder: encoder.New(embedding, extractor),
	})

	// Catch up on files created while the watcher was not running
	if report, err := indexer.IndexDirectory(ctx, absDir); err == nil {
		slog.Info("initial scan complete", "indexed", report.Indexed, "skipped", report.Skipped, "failed", report.Failed)
	} else if ctx.Err() == nil {
		slog.Warn("initial scan failed", "error", err)
	}

	watcher, err := index.NewWatcher(index.WatcherConfig{
		Root:        absDir,
		Indexer:     indexer,
		SettleDelay: settleDelay,
	})
	if err != nil {
		slog.Error("failed to create watcher", "error", err)
		os.Exit(1)
	}

	if err := watcher.Watch(ctx); err != nil && ctx.Err() == nil {
		slog.Error("watcher failed", "error", err)
		os.Exit(1)
	}
}

func runStatus() {
	cwd, _ := os.Getwd()

	cfg, _, err := config.Load(cwd)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	store, err := provider.DefaultRegistry.CreateVectorStore(cfg.VectorStore.Provider)
	if err != nil {
		slog.Error("failed to create vector store", "error", err)
		os.Exit(1)
	}
	dbPath := config.IndexDBPath(cwd)
	if err := store.Init(dbPath); err != nil {
		slog.Error("store unavailable", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	count, err := store.Count(context.Background())
	if err != nil {
		slog.Error("failed to count records", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Store:      %s\n", dbPath)
	fmt.Printf("Records:    %d\n", count)
	fmt.Printf("Embedding:  %s/%s\n", cfg.Embedding.Provider, cfg.Embedding.Model)
	fmt.Printf("OCR:        %s\n", cfg.OCR.Provider)
}

func runConfigInit() {
	cwd, _ := os.Getwd()

	configPath := config.ConfigPath(cwd)
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists: %s\n", configPath)
		return
	}

	if err := config.Save(cwd, config.DefaultConfig()); err != nil {
		slog.Error("failed to write config", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Created %s\n", configPath)
}

func runConfigValidate() {
	cwd, _ := os.Getwd()

	cfg, warnings, err := config.Load(cwd)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	for _, w := range warnings {
		slog.Warn(w)
	}

	errs := config.Validate(cfg)
	if len(errs) == 0 {
		fmt.Println("Configuration is valid.")
		return
	}
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "error: %v\n", e)
	}
	os.Exit(1)
}
