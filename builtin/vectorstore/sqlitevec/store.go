// Package sqlitevec implements VectorStore using sqlite-vec for cosine
// nearest-neighbor search and FTS5 for text search over indexed OCR text.
package sqlitevec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/snapseek/snapseek/pkg/provider"
	"github.com/snapseek/snapseek/pkg/types"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

var (
	// Ensure sqlite-vec Auto() is called exactly once before any db connection
	vecAutoOnce sync.Once
)

// SchemaVersion is incremented when schema changes require reindexing.
const SchemaVersion = 1

// Store implements the VectorStore interface using sqlite-vec.
// Cosine is the only distance metric; the confidence transform upstream
// depends on it and it must never change for an existing database.
type Store struct {
	db         *sql.DB
	path       string
	dimensions int
	enableFTS  bool
}

// New creates a new sqlite-vec store.
func New() *Store {
	return &Store{
		enableFTS: true,
	}
}

// Name returns the store name.
func (s *Store) Name() string {
	return "sqlitevec"
}

// Init opens or creates the store at the given path. Any failure here is
// fatal for the owning component and wraps types.ErrStoreUnavailable.
func (s *Store) Init(path string) error {
	s.path = path

	// Register sqlite-vec extension before opening any database connection.
	vecAutoOnce.Do(func() {
		sqlite_vec.Auto()
	})

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create directory: %v", types.ErrStoreUnavailable, err)
	}

	// WAL mode for concurrent reads while the watcher writes,
	// busy_timeout to wait for locks instead of failing immediately
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("%w: failed to open database: %v", types.ErrStoreUnavailable, err)
	}
	s.db = db

	if _, err := db.Exec("SELECT vec_version()"); err != nil {
		return fmt.Errorf("%w: sqlite-vec extension not available: %v", types.ErrStoreUnavailable, err)
	}

	if err := s.createSchema(); err != nil {
		return fmt.Errorf("%w: failed to create schema: %v", types.ErrStoreUnavailable, err)
	}

	// Recreate the vector table if a dimension was recorded previously.
	if dims, err := s.storedDimensions(); err == nil && dims > 0 {
		if err := s.createVectorTable(dims); err != nil {
			return fmt.Errorf("%w: failed to create vector table: %v", types.ErrStoreUnavailable, err)
		}
	}

	return nil
}

// createSchema creates all necessary tables.
func (s *Store) createSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS screenshots (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			indexed_text TEXT NOT NULL DEFAULT '',
			content_hash TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	// Index on path for existence checks and deletion
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_screenshots_path ON screenshots(path)`)
	if err != nil {
		return err
	}

	// FTS5 over indexed OCR text
	if s.enableFTS {
		_, err = s.db.Exec(`
			CREATE VIRTUAL TABLE IF NOT EXISTS screenshots_fts USING fts5(
				id,
				indexed_text,
				content='screenshots',
				content_rowid='rowid',
				tokenize='porter unicode61'
			)
		`)
		if err != nil {
			return err
		}

		// Triggers to keep FTS in sync
		_, err = s.db.Exec(`
			CREATE TRIGGER IF NOT EXISTS screenshots_ai AFTER INSERT ON screenshots BEGIN
				INSERT INTO screenshots_fts(rowid, id, indexed_text)
				VALUES (new.rowid, new.id, new.indexed_text);
			END
		`)
		if err != nil {
			return err
		}

		_, err = s.db.Exec(`
			CREATE TRIGGER IF NOT EXISTS screenshots_ad AFTER DELETE ON screenshots BEGIN
				INSERT INTO screenshots_fts(screenshots_fts, rowid, id, indexed_text)
				VALUES('delete', old.rowid, old.id, old.indexed_text);
			END
		`)
		if err != nil {
			return err
		}
	}

	return nil
}

// storedDimensions reads the recorded embedding dimension, 0 if unset.
func (s *Store) storedDimensions() (int, error) {
	var dims int
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = 'dimensions'`).Scan(&dims)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return dims, err
}

// createVectorTable creates the vector table with the specified dimensions.
func (s *Store) createVectorTable(dimensions int) error {
	if s.dimensions == dimensions {
		return nil // Already created
	}
	if s.dimensions != 0 && s.dimensions != dimensions {
		return fmt.Errorf("%w: store has %d, got %d", types.ErrDimensionMismatch, s.dimensions, dimensions)
	}

	_, err := s.db.Exec(fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS screenshot_embeddings USING vec0(
			screenshot_id TEXT PRIMARY KEY,
			embedding float[%d]
		)
	`, dimensions))
	if err != nil {
		return err
	}

	if _, err := s.db.Exec(
		`INSERT OR REPLACE INTO metadata (key, value) VALUES ('dimensions', ?)`, dimensions,
	); err != nil {
		return err
	}

	s.dimensions = dimensions
	return nil
}

// Close releases resources and closes connections.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Insert stores a record with its embedding.
func (s *Store) Insert(ctx context.Context, rec *types.RecordWithEmbedding) error {
	if rec == nil || rec.Record == nil {
		return errors.New("nil record")
	}
	if len(rec.Embedding) == 0 {
		return fmt.Errorf("record %s has no embedding", rec.Record.ID)
	}

	if err := s.createVectorTable(len(rec.Embedding)); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	r := rec.Record
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO screenshots (id, path, indexed_text, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.ID, r.Path, r.IndexedText, r.ContentHash, createdAt)
	if err != nil {
		return fmt.Errorf("failed to store record %s: %w", r.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO screenshot_embeddings (screenshot_id, embedding)
		VALUES (?, ?)
	`, r.ID, floatsToBytes(rec.Embedding))
	if err != nil {
		return fmt.Errorf("failed to store embedding for %s: %w", r.ID, err)
	}

	return tx.Commit()
}

// GetByPath returns the record for an exact path match, nil when absent.
func (s *Store) GetByPath(ctx context.Context, path string) (*types.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, path, indexed_text, content_hash, created_at
		FROM screenshots WHERE path = ?
	`, path)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteByPath removes the record for path. Unknown paths are a no-op.
func (s *Store) DeleteByPath(ctx context.Context, path string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Collect ids first so embeddings can be removed from the vec table
	rows, err := tx.QueryContext(ctx, `SELECT id FROM screenshots WHERE path = ?`, path)
	if err != nil {
		return err
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()

	if len(ids) == 0 {
		return nil
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM screenshot_embeddings WHERE screenshot_id = ?`, id); err != nil {
			return err
		}
	}

	// FTS is updated by trigger
	if _, err := tx.ExecContext(ctx, `DELETE FROM screenshots WHERE path = ?`, path); err != nil {
		return err
	}

	return tx.Commit()
}

// QueryNearest returns up to topN records ordered by ascending cosine
// distance from the query vector.
func (s *Store) QueryNearest(ctx context.Context, vector []float32, topN int) ([]*types.Neighbor, error) {
	if len(vector) == 0 {
		return nil, errors.New("query vector is required")
	}
	if topN <= 0 {
		topN = 10
	}

	// Nothing has ever been inserted; the vec table does not exist yet.
	if s.dimensions == 0 {
		return nil, nil
	}
	if len(vector) != s.dimensions {
		return nil, fmt.Errorf("%w: store has %d, query has %d", types.ErrDimensionMismatch, s.dimensions, len(vector))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			se.screenshot_id,
			vec_distance_cosine(se.embedding, ?) AS distance,
			sc.path, sc.indexed_text, sc.content_hash, sc.created_at
		FROM screenshot_embeddings se
		JOIN screenshots sc ON se.screenshot_id = sc.id
		ORDER BY distance ASC
		LIMIT ?
	`, floatsToBytes(vector), topN)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	var neighbors []*types.Neighbor
	for rows.Next() {
		var (
			rec      types.Record
			distance float64
		)
		err := rows.Scan(&rec.ID, &distance, &rec.Path, &rec.IndexedText, &rec.ContentHash, &rec.CreatedAt)
		if err != nil {
			return nil, err
		}
		neighbors = append(neighbors, &types.Neighbor{Record: &rec, Distance: distance})
	}

	return neighbors, rows.Err()
}

// SearchText performs BM25 full-text search over indexed OCR text. BM25
// rank is normalized into a synthetic cosine-range distance so that the
// shared confidence transform applies.
func (s *Store) SearchText(ctx context.Context, query string, topN int) ([]*types.Neighbor, error) {
	if !s.enableFTS {
		return nil, errors.New("full-text search is disabled")
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if topN <= 0 {
		topN = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			sc.id, bm25(screenshots_fts) AS rank,
			sc.path, sc.indexed_text, sc.content_hash, sc.created_at
		FROM screenshots_fts fts
		JOIN screenshots sc ON fts.id = sc.id
		WHERE screenshots_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, escapeFTSQuery(query), topN)
	if err != nil {
		return nil, fmt.Errorf("text search failed: %w", err)
	}
	defer rows.Close()

	var neighbors []*types.Neighbor
	for rows.Next() {
		var (
			rec  types.Record
			rank float64
		)
		err := rows.Scan(&rec.ID, &rank, &rec.Path, &rec.IndexedText, &rec.ContentHash, &rec.CreatedAt)
		if err != nil {
			return nil, err
		}

		// BM25 rank is negative, lower is better. Normalize to (0, 1]
		// and express as a distance in [0, 2).
		score := 1.0 / (1.0 + math.Abs(rank))
		neighbors = append(neighbors, &types.Neighbor{Record: &rec, Distance: 2 * (1 - score)})
	}

	return neighbors, rows.Err()
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM screenshots`).Scan(&count)
	return count, err
}

// scanner abstracts sql.Row and sql.Rows for scanRecord.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*types.Record, error) {
	var rec types.Record
	err := row.Scan(&rec.ID, &rec.Path, &rec.IndexedText, &rec.ContentHash, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// floatsToBytes converts float32 slice to bytes for sqlite-vec.
func floatsToBytes(floats []float32) []byte {
	bytes := make([]byte, len(floats)*4)
	for i, f := range floats {
		bits := math.Float32bits(f)
		bytes[i*4] = byte(bits)
		bytes[i*4+1] = byte(bits >> 8)
		bytes[i*4+2] = byte(bits >> 16)
		bytes[i*4+3] = byte(bits >> 24)
	}
	return bytes
}

// escapeFTSQuery escapes special characters in FTS5 query.
func escapeFTSQuery(query string) string {
	special := []string{"*", "\"", "(", ")", ":", "-", "^", "~"}
	result := query
	for _, s := range special {
		result = strings.ReplaceAll(result, s, "\""+s+"\"")
	}
	return result
}

// Ensure Store implements VectorStore interface
var _ provider.VectorStore = (*Store)(nil)
