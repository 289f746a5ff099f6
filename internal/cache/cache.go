// Package cache is a content-addressed store mapping compiled source to
// its target-language output, backed by SQLite (modernc.org/sqlite, pure
// Go, no cgo) through database/sql. Grounded on funvibe/funxy's
// internal/ext.Cache (a sha256-of-content keyed cache keyed by config +
// platform) — adapted here to key on source text and persist to a
// queryable SQLite table instead of loose files on disk, since a
// compile cache wants range/inspection queries a binary blob cache does
// not.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store is a content-addressed cache of source -> compiled target. A
// hit is only ever recorded after a Process call's top-level statements
// were all made permanent (spec §4.8): a cache entry must be
// observationally identical to a fresh successful Process, so Put is
// never called for a source that produced any diagnostics.
type Store struct {
	db *sql.DB
}

// Open creates or attaches to the SQLite file at path, creating the
// schema if absent. An empty path (per config.Settings.CachePath) means
// "no persistent cache" — callers should skip Open entirely in that
// case rather than pass "".
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("cache: empty path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS compile_cache (
			key     TEXT PRIMARY KEY,
			source  TEXT NOT NULL,
			target  TEXT NOT NULL,
			hits    INTEGER NOT NULL DEFAULT 0
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Key hashes the exact source text that would be handed to
// compiler.State.Process; the cache makes no attempt to key on anything
// about session state, so it is only valid to consult for a source unit
// that does not depend on prior top-level statements in the same
// session (a fresh, self-contained program — the common case for a
// one-shot `polysubml run`).
func Key(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached target for source, or ok=false on a miss.
func (s *Store) Get(source string) (target string, ok bool, err error) {
	key := Key(source)
	row := s.db.QueryRow(`SELECT target FROM compile_cache WHERE key = ?`, key)
	if err := row.Scan(&target); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("cache: get: %w", err)
	}
	if _, err := s.db.Exec(`UPDATE compile_cache SET hits = hits + 1 WHERE key = ?`, key); err != nil {
		return target, true, fmt.Errorf("cache: record hit: %w", err)
	}
	return target, true, nil
}

// Put records a successful compilation. Overwrites any existing entry
// for the same source (the target is a pure function of source for a
// self-contained program, so an overwrite can only ever be a no-op
// rewrite of the same bytes).
func (s *Store) Put(source, target string) error {
	key := Key(source)
	_, err := s.db.Exec(
		`INSERT INTO compile_cache(key, source, target, hits) VALUES (?, ?, ?, 0)
		 ON CONFLICT(key) DO UPDATE SET target = excluded.target`,
		key, source, target,
	)
	if err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}
	return nil
}
