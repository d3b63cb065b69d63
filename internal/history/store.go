// Package history persists transcription results in a FTS-backed SQLite
// database: insert, paginated listing, full-text search with a substring
// fallback for short queries, deletion, and recency lookups. This package
// is the concrete adapter the worker and summarizer are wired against.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS transcriptions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at TEXT NOT NULL DEFAULT (datetime('now', 'localtime')),
	duration_seconds REAL,
	text TEXT NOT NULL,
	raw_text TEXT,
	language TEXT,
	model_name TEXT,
	segments_json TEXT
);

CREATE INDEX IF NOT EXISTS idx_transcriptions_created_at
	ON transcriptions(created_at);

CREATE VIRTUAL TABLE IF NOT EXISTS transcriptions_fts
	USING fts5(text, content=transcriptions, content_rowid=id, tokenize='trigram');

CREATE TRIGGER IF NOT EXISTS transcriptions_ai AFTER INSERT ON transcriptions BEGIN
	INSERT INTO transcriptions_fts(rowid, text) VALUES (new.id, new.text);
END;

CREATE TRIGGER IF NOT EXISTS transcriptions_ad AFTER DELETE ON transcriptions BEGIN
	INSERT INTO transcriptions_fts(transcriptions_fts, rowid, text)
		VALUES('delete', old.id, old.text);
END;

CREATE TRIGGER IF NOT EXISTS transcriptions_au AFTER UPDATE ON transcriptions BEGIN
	INSERT INTO transcriptions_fts(transcriptions_fts, rowid, text)
		VALUES('delete', old.id, old.text);
	INSERT INTO transcriptions_fts(rowid, text) VALUES (new.id, new.text);
END;
`

// fullTextMinChars is the trigram tokenizer's minimum useful query length;
// shorter queries fall back to a LIKE substring scan.
const fullTextMinChars = 3

// Entry is one stored transcription. ID and CreatedAt are assigned by the
// store on Insert.
type Entry struct {
	ID              int64    `json:"id"`
	CreatedAt       string   `json:"created_at"`
	DurationSeconds *float64 `json:"duration_s,omitempty"`
	Text            string   `json:"text"`
	RawText         *string  `json:"raw_text,omitempty"`
	Language        *string  `json:"language,omitempty"`
	ModelName       *string  `json:"model_name,omitempty"`
	SegmentsJSON    *string  `json:"segments_json,omitempty"`
}

// Page is one paginated or searched slice of history, with enough
// metadata for a caller to render "load more".
type Page struct {
	Entries    []Entry `json:"entries"`
	TotalCount int64   `json:"total_count"`
	HasMore    bool    `json:"has_more"`
}

// Store is a mutex-guarded handle to the history database; all writers
// share one serialized connection.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates (if absent) and opens the database at path, initializing
// schema and the FTS index.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite over a single mutex-guarded connection

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Insert stores entry and returns its assigned id.
func (s *Store) Insert(ctx context.Context, entry Entry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transcriptions (duration_seconds, text, raw_text, language, model_name, segments_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.DurationSeconds, entry.Text, entry.RawText, entry.Language, entry.ModelName, entry.SegmentsJSON,
	)
	if err != nil {
		return 0, fmt.Errorf("insert entry: %w", err)
	}
	return res.LastInsertId()
}

// GetAll returns a page of entries ordered by recency.
func (s *Store) GetAll(ctx context.Context, limit, offset int) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total, err := s.countLocked(ctx)
	if err != nil {
		return Page{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, duration_seconds, text, raw_text, language, model_name, segments_json
		 FROM transcriptions ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return Page{}, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return Page{}, err
	}
	return Page{Entries: entries, TotalCount: total, HasMore: int64(offset+limit) < total}, nil
}

// Search performs a full-text search for queries of fullTextMinChars or
// more characters, and a LIKE substring scan otherwise.
func (s *Store) Search(ctx context.Context, query string, limit, offset int) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len([]rune(query)) >= fullTextMinChars {
		return s.searchFTSLocked(ctx, query, limit, offset)
	}
	return s.searchLikeLocked(ctx, query, limit, offset)
}

func (s *Store) searchFTSLocked(ctx context.Context, query string, limit, offset int) (Page, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transcriptions_fts WHERE text MATCH ?`, query).Scan(&total); err != nil {
		return Page{}, fmt.Errorf("count fts matches: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.created_at, t.duration_seconds, t.text, t.raw_text, t.language, t.model_name, t.segments_json
		 FROM transcriptions t
		 JOIN transcriptions_fts fts ON t.id = fts.rowid
		 WHERE fts.text MATCH ?
		 ORDER BY t.created_at DESC LIMIT ? OFFSET ?`, query, limit, offset)
	if err != nil {
		return Page{}, fmt.Errorf("query fts matches: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return Page{}, err
	}
	return Page{Entries: entries, TotalCount: total, HasMore: int64(offset+limit) < total}, nil
}

func (s *Store) searchLikeLocked(ctx context.Context, query string, limit, offset int) (Page, error) {
	pattern := "%" + query + "%"

	var total int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transcriptions WHERE text LIKE ?`, pattern).Scan(&total); err != nil {
		return Page{}, fmt.Errorf("count like matches: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, duration_seconds, text, raw_text, language, model_name, segments_json
		 FROM transcriptions WHERE text LIKE ?
		 ORDER BY created_at DESC LIMIT ? OFFSET ?`, pattern, limit, offset)
	if err != nil {
		return Page{}, fmt.Errorf("query like matches: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return Page{}, err
	}
	return Page{Entries: entries, TotalCount: total, HasMore: int64(offset+limit) < total}, nil
}

// GetRecent returns entries created within the last `minutes` minutes,
// newest first, used by the summarize orchestrator to pull a history
// window.
func (s *Store) GetRecent(ctx context.Context, minutes int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, duration_seconds, text, raw_text, language, model_name, segments_json
		 FROM transcriptions
		 WHERE created_at >= datetime('now', ? || ' minutes', 'localtime')
		 ORDER BY created_at DESC`, fmt.Sprintf("-%d", minutes))
	if err != nil {
		return nil, fmt.Errorf("query recent entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Delete removes a single entry by id, reporting whether a row was removed.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM transcriptions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteAll clears every entry, returning the number of rows removed.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM transcriptions`)
	if err != nil {
		return 0, fmt.Errorf("delete all entries: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) countLocked(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transcriptions`).Scan(&total)
	return total, err
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.DurationSeconds, &e.Text, &e.RawText, &e.Language, &e.ModelName, &e.SegmentsJSON); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
