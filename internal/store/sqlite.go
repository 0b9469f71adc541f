package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/seekly/seekly/internal/errors"
)

// SQLitePassageStore persists passages in SQLite. It is the durable side of
// the index: on restart the lexical index is rebuilt from AllPassages.
// WAL mode allows a reader to inspect the database while the engine writes.
type SQLitePassageStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ PassageStore = (*SQLitePassageStore)(nil)

// NewSQLitePassageStore opens (or creates) the passage database at path.
// An empty path creates an in-memory store for testing.
func NewSQLitePassageStore(path string) (*SQLitePassageStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeStoreIO, "create directory %s", dir)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreIO, "open passage database")
	}

	// Single writer prevents lock contention with modernc.org/sqlite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Pragmas must be set via statements; DSN params are ignored by the driver.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, errors.ErrCodeStoreIO, "set pragma")
		}
	}

	s := &SQLitePassageStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeStoreIO, "initialize schema")
	}
	return s, nil
}

func (s *SQLitePassageStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS passages (
		chunk_id   TEXT PRIMARY KEY,
		doc_id     TEXT NOT NULL,
		content    TEXT NOT NULL,
		metadata   TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_passages_doc_id ON passages(doc_id);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SavePassages inserts or replaces passages in a single transaction.
func (s *SQLitePassageStore) SavePassages(ctx context.Context, passages []*Passage) error {
	if len(passages) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New(errors.ErrCodeStoreIO, "passage store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreIO, "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO passages (chunk_id, doc_id, content, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			doc_id     = excluded.doc_id,
			content    = excluded.content,
			metadata   = excluded.metadata,
			updated_at = excluded.updated_at`)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreIO, "prepare upsert")
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for _, p := range passages {
		if p.ChunkID == "" {
			return errors.New(errors.ErrCodeInvalidInput, "passage missing chunk_id")
		}
		md, err := json.Marshal(p.Metadata)
		if err != nil {
			return errors.Wrapf(err, errors.ErrCodeStoreIO, "marshal metadata for %s", p.ChunkID)
		}
		created := p.CreatedAt.UnixMilli()
		if p.CreatedAt.IsZero() {
			created = now
		}
		updated := p.UpdatedAt.UnixMilli()
		if p.UpdatedAt.IsZero() {
			updated = now
		}
		if _, err := stmt.ExecContext(ctx, p.ChunkID, p.DocID, p.Content, string(md), created, updated); err != nil {
			return errors.Wrapf(err, errors.ErrCodeStoreIO, "save passage %s", p.ChunkID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreIO, "commit passages")
	}
	return nil
}

// GetPassage returns a single passage, or nil when no row exists.
func (s *SQLitePassageStore) GetPassage(ctx context.Context, chunkID string) (*Passage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.New(errors.ErrCodeStoreIO, "passage store is closed")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT chunk_id, doc_id, content, metadata, created_at, updated_at
		FROM passages WHERE chunk_id = ?`, chunkID)
	p, err := scanPassage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// GetPassages returns the passages for the given chunk IDs. Missing IDs are
// silently skipped so callers can enrich partial candidate sets.
func (s *SQLitePassageStore) GetPassages(ctx context.Context, chunkIDs []string) ([]*Passage, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.New(errors.ErrCodeStoreIO, "passage store is closed")
	}

	placeholders := strings.Repeat("?,", len(chunkIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(chunkIDs))
	for i, id := range chunkIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT chunk_id, doc_id, content, metadata, created_at, updated_at
		FROM passages WHERE chunk_id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreIO, "query passages")
	}
	defer rows.Close()

	byID := make(map[string]*Passage, len(chunkIDs))
	for rows.Next() {
		p, err := scanPassage(rows)
		if err != nil {
			return nil, err
		}
		byID[p.ChunkID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreIO, "iterate passages")
	}

	// Preserve the caller's ordering.
	result := make([]*Passage, 0, len(byID))
	for _, id := range chunkIDs {
		if p, ok := byID[id]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}

// DeletePassage removes a passage. Deleting a missing passage is a no-op.
func (s *SQLitePassageStore) DeletePassage(ctx context.Context, chunkID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New(errors.ErrCodeStoreIO, "passage store is closed")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM passages WHERE chunk_id = ?`, chunkID); err != nil {
		return errors.Wrapf(err, errors.ErrCodeStoreIO, "delete passage %s", chunkID)
	}
	return nil
}

// AllPassages streams every stored passage, used to rebuild the lexical
// index on warm restart.
func (s *SQLitePassageStore) AllPassages(ctx context.Context) ([]*Passage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.New(errors.ErrCodeStoreIO, "passage store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, doc_id, content, metadata, created_at, updated_at
		FROM passages ORDER BY chunk_id`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreIO, "query all passages")
	}
	defer rows.Close()

	var result []*Passage
	for rows.Next() {
		p, err := scanPassage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreIO, "iterate all passages")
	}
	return result, nil
}

// Close closes the database. Safe to call multiple times.
func (s *SQLitePassageStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	// Compact the WAL so a cold open sees a single file.
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPassage(row rowScanner) (*Passage, error) {
	var (
		p        Passage
		rawMeta  string
		created  int64
		updated  int64
	)
	if err := row.Scan(&p.ChunkID, &p.DocID, &p.Content, &rawMeta, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrCodeStoreIO, "scan passage")
	}
	if rawMeta != "" && rawMeta != "{}" {
		if err := json.Unmarshal([]byte(rawMeta), &p.Metadata); err != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeCorruptIndex, "decode metadata for %s", p.ChunkID)
		}
	}
	p.CreatedAt = time.UnixMilli(created)
	p.UpdatedAt = time.UnixMilli(updated)
	return &p, nil
}
