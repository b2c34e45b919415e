// Package index keeps the vector store synchronized with a screenshot
// directory, by batch scan and by live filesystem events.
package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/snapseek/snapseek/internal/encoder"
	"github.com/snapseek/snapseek/pkg/provider"
	"github.com/snapseek/snapseek/pkg/types"
)

// Indexer orchestrates scanning, encoding and store upkeep.
//
// The check-then-insert sequence (GetByPath, then Insert when absent) is
// not atomic; path uniqueness holds under the single-writer discipline the
// CLI enforces (one batch scan or one watcher per store, never both).
type Indexer struct {
	store   provider.VectorStore
	encoder *encoder.Encoder
}

// Config contains indexer configuration.
type Config struct {
	Store   provider.VectorStore
	Encoder *encoder.Encoder
}

// New creates a new indexer.
func New(cfg Config) *Indexer {
	return &Indexer{
		store:   cfg.Store,
		encoder: cfg.Encoder,
	}
}

// HasAllowedExtension reports whether path has an indexable image
// extension (case-insensitive).
func HasAllowedExtension(path string) bool {
	return types.AllowedExtensions[strings.ToLower(filepath.Ext(path))]
}

// IndexDirectory recursively indexes every allowed image file under root.
// Already-indexed paths are skipped; per-file failures are logged and
// counted, never aborting the scan.
func (idx *Indexer) IndexDirectory(ctx context.Context, root string) (*types.IndexReport, error) {
	startTime := time.Now()
	report := &types.IndexReport{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("skipping unreadable entry", "path", path, "error", err)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			// Skip hidden directories (including the .snapseek data dir),
			// matching what the watcher tracks
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !HasAllowedExtension(path) {
			return nil
		}

		existing, err := idx.store.GetByPath(ctx, path)
		if err != nil {
			return fmt.Errorf("existence check for %s: %w", path, err)
		}
		if existing != nil {
			slog.Debug("already indexed", "path", path)
			report.Skipped++
			return nil
		}

		if err := idx.encodeAndInsert(ctx, path); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// The file was never marked indexed; a later scan retries it.
			slog.Warn("failed to index file", "path", path, "error", err)
			report.Failed++
			return nil
		}
		report.Indexed++
		return nil
	})
	if err != nil {
		return report, err
	}

	slog.Info("scan complete",
		"root", root,
		"indexed", report.Indexed,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"duration", time.Since(startTime).Round(time.Millisecond),
	)

	return report, nil
}

// IndexFile indexes a single file, used for event-driven updates.
// Calling it twice on an unchanged path is a no-op the second time; a
// path whose content changed is re-indexed by delete-then-insert.
func (idx *Indexer) IndexFile(ctx context.Context, path string) error {
	if !HasAllowedExtension(path) {
		return nil
	}

	existing, err := idx.store.GetByPath(ctx, path)
	if err != nil {
		return fmt.Errorf("existence check for %s: %w", path, err)
	}

	if existing != nil {
		hash, err := hashFile(path)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", types.ErrMediaUnreadable, path, err)
		}
		if hash == existing.ContentHash {
			slog.Debug("already indexed, content unchanged", "path", path)
			return nil
		}

		slog.Info("content changed, re-indexing", "path", path)
		if err := idx.store.DeleteByPath(ctx, path); err != nil {
			return fmt.Errorf("removing stale record for %s: %w", path, err)
		}
	}

	return idx.encodeAndInsert(ctx, path)
}

// DeleteByPath removes the record for path. Deleting an unknown path is
// tolerated: delete events can race with, or arrive without, a create.
func (idx *Indexer) DeleteByPath(ctx context.Context, path string) error {
	if err := idx.store.DeleteByPath(ctx, path); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("deleting record for %s: %w", path, err)
	}
	slog.Debug("removed from index", "path", path)
	return nil
}

// encodeAndInsert runs the hybrid encoder and stores a fresh record.
func (idx *Indexer) encodeAndInsert(ctx context.Context, path string) error {
	res, err := idx.encoder.Encode(ctx, path)
	if err != nil {
		return err
	}

	rec := &types.RecordWithEmbedding{
		Record: &types.Record{
			ID:          uuid.NewString(),
			Path:        path,
			IndexedText: res.IndexedText,
			ContentHash: res.ContentHash,
			CreatedAt:   time.Now(),
		},
		Embedding: res.Embedding,
	}

	if err := idx.store.Insert(ctx, rec); err != nil {
		return fmt.Errorf("storing record for %s: %w", path, err)
	}

	slog.Info("indexed", "path", path, "id", rec.Record.ID)
	return nil
}

// hashFile returns the content hash of the file at path.
func hashFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return types.HashBytes(content), nil
}
