// Package store holds the two index artifacts: the SQLite relational
// store with its FTS5 shadow table, and the HNSW vector index. The
// SQLite rowid is the key shared between them.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	kberrors "github.com/waycore/waykb/internal/errors"
	"github.com/waycore/waykb/internal/entry"
)

// Store is the SQLite side of the dual index.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the database at path. An empty path opens an
// in-memory database for tests.
func Open(path string) (*Store, error) {
	dsn := path
	if path == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, kberrors.New(kberrors.ErrCodeStore, "create output directory", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, kberrors.New(kberrors.ErrCodeStore, "open database", err)
	}

	// Single connection: SQLite has one writer, and the in-memory DSN
	// would otherwise give each pooled connection its own database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, kberrors.New(kberrors.ErrCodeStore, "set pragma", err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, kberrors.New(kberrors.ErrCodeStore, "initialize schema", err)
	}
	return s, nil
}

// initSchema creates the entries table, its FTS5 shadow, the sync
// triggers and the query indexes. The FTS table is external-content:
// it indexes the entries table itself and is kept in sync purely by
// the triggers, so the two can never disagree about membership.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		category TEXT NOT NULL,
		subcategory TEXT,
		safety_level TEXT DEFAULT 'safe',
		safety_notes TEXT,
		source_file TEXT,
		source_page INTEGER,
		source_url TEXT,
		license TEXT,
		tags TEXT,
		created_at TEXT
	);

	CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
		id,
		title,
		content,
		tags,
		content='entries',
		content_rowid='rowid'
	);

	CREATE TRIGGER IF NOT EXISTS entries_ai AFTER INSERT ON entries BEGIN
		INSERT INTO entries_fts(rowid, id, title, content, tags)
		VALUES (new.rowid, new.id, new.title, new.content, new.tags);
	END;

	CREATE TRIGGER IF NOT EXISTS entries_ad AFTER DELETE ON entries BEGIN
		INSERT INTO entries_fts(entries_fts, rowid, id, title, content, tags)
		VALUES('delete', old.rowid, old.id, old.title, old.content, old.tags);
	END;

	CREATE TRIGGER IF NOT EXISTS entries_au AFTER UPDATE ON entries BEGIN
		INSERT INTO entries_fts(entries_fts, rowid, id, title, content, tags)
		VALUES('delete', old.rowid, old.id, old.title, old.content, old.tags);
		INSERT INTO entries_fts(rowid, id, title, content, tags)
		VALUES (new.rowid, new.id, new.title, new.content, new.tags);
	END;

	CREATE INDEX IF NOT EXISTS idx_category ON entries(category);
	CREATE INDEX IF NOT EXISTS idx_safety ON entries(safety_level);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertEntry inserts one entry and returns its rowid, the key the
// vector index uses for the same entry.
func (s *Store) InsertEntry(ctx context.Context, e *entry.Entry) (int64, error) {
	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return 0, kberrors.New(kberrors.ErrCodeStore, "encode tags", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (id, title, content, category, subcategory,
			safety_level, safety_notes, source_file, source_page,
			source_url, license, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Title, e.Content, e.Category, nullable(e.Subcategory),
		string(e.SafetyLevel), nullable(e.SafetyNotes), nullable(e.SourceFile),
		nullablePage(e.SourcePage), nullable(e.SourceURL), nullable(e.License),
		string(tags), e.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, kberrors.New(kberrors.ErrCodeStore, "insert entry", err)
	}
	rowid, err := res.LastInsertId()
	if err != nil {
		return 0, kberrors.New(kberrors.ErrCodeStore, "read rowid", err)
	}
	return rowid, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullablePage(p int) any {
	if p == 0 {
		return nil
	}
	return p
}

// Count returns the number of entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n)
	if err != nil {
		return 0, kberrors.New(kberrors.ErrCodeStore, "count entries", err)
	}
	return n, nil
}

// CountByCategory returns entry counts keyed by category.
func (s *Store) CountByCategory(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT category, COUNT(*) FROM entries GROUP BY category")
	if err != nil {
		return nil, kberrors.New(kberrors.ErrCodeStore, "count by category", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			category string
			n        int
		)
		if err := rows.Scan(&category, &n); err != nil {
			return nil, kberrors.New(kberrors.ErrCodeStore, "scan category count", err)
		}
		counts[category] = n
	}
	return counts, rows.Err()
}

// RowContent pairs a rowid with the entry content it embeds.
type RowContent struct {
	RowID   int64
	Content string
}

// Contents returns every (rowid, content) pair ordered by rowid. This
// is the phase-2 readback: embedding order, and therefore the vector
// index labels, follow the rowid order exactly.
func (s *Store) Contents(ctx context.Context) ([]RowContent, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT rowid, content FROM entries ORDER BY rowid")
	if err != nil {
		return nil, kberrors.New(kberrors.ErrCodeStore, "read contents", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RowContent
	for rows.Next() {
		var rc RowContent
		if err := rows.Scan(&rc.RowID, &rc.Content); err != nil {
			return nil, kberrors.New(kberrors.ErrCodeStore, "scan content row", err)
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

// EntryByRowID loads the full entry stored under a rowid.
func (s *Store) EntryByRowID(ctx context.Context, rowid int64) (*entry.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, content, category,
			COALESCE(subcategory, ''), safety_level, COALESCE(safety_notes, ''),
			COALESCE(source_file, ''), COALESCE(source_page, 0),
			COALESCE(source_url, ''), COALESCE(license, ''),
			COALESCE(tags, '[]'), COALESCE(created_at, '')
		FROM entries WHERE rowid = ?`, rowid)

	var (
		e         entry.Entry
		safety    string
		tagsJSON  string
		createdAt string
	)
	err := row.Scan(&e.ID, &e.Title, &e.Content, &e.Category,
		&e.Subcategory, &safety, &e.SafetyNotes,
		&e.SourceFile, &e.SourcePage, &e.SourceURL, &e.License,
		&tagsJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, kberrors.New(kberrors.ErrCodeStore, fmt.Sprintf("no entry at rowid %d", rowid), nil)
	}
	if err != nil {
		return nil, kberrors.New(kberrors.ErrCodeStore, "load entry", err)
	}

	e.SafetyLevel = entry.SafetyLevel(safety)
	if err := json.Unmarshal([]byte(tagsJSON), &e.Tags); err != nil {
		return nil, kberrors.New(kberrors.ErrCodeStore, "decode tags", err)
	}
	if createdAt != "" {
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			e.CreatedAt = t
		}
	}
	return &e, nil
}

// TextHit is one FTS5 search result.
type TextHit struct {
	RowID int64
	Title string
	// Rank is the FTS5 bm25 rank; more negative is more relevant.
	Rank float64
}

// SearchText runs an FTS5 match over title, content and tags.
func (s *Store) SearchText(ctx context.Context, query string, limit int) ([]TextHit, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT rowid, title, rank FROM entries_fts
		WHERE entries_fts MATCH ?
		ORDER BY rank LIMIT ?`, query, limit)
	if err != nil {
		return nil, kberrors.New(kberrors.ErrCodeStore, "text search", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []TextHit
	for rows.Next() {
		var h TextHit
		if err := rows.Scan(&h.RowID, &h.Title, &h.Rank); err != nil {
			return nil, kberrors.New(kberrors.ErrCodeStore, "scan hit", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// HasTable reports whether a table or virtual table exists.
func (s *Store) HasTable(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&n)
	if err != nil {
		return false, kberrors.New(kberrors.ErrCodeStore, "query schema", err)
	}
	return n > 0, nil
}

// IntegrityCheck runs SQLite's integrity check.
func (s *Store) IntegrityCheck(ctx context.Context) error {
	var result string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return kberrors.New(kberrors.ErrCodeStore, "integrity check", err)
	}
	if result != "ok" {
		return kberrors.New(kberrors.ErrCodeStore, "database corrupted: "+result, nil)
	}
	return nil
}

// Close checkpoints and closes the database.
func (s *Store) Close() error {
	// Fold the WAL back into the main file so the shipped artifact is
	// a single hashable file.
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
