// Package store persists the memory hierarchy (episodes, semantics, themes,
// user profiles) plus supporting caches on SQLite, following the teacher's
// WAL-mode, single-writer, idempotent-migration pattern.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite connection with initialization logic.
type DB struct {
	*sql.DB
}

// Open creates or opens the SQLite database at the given path, runs schema
// initialization, and configures WAL mode for concurrent reads.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite handles one writer at a time

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &DB{db}, nil
}

// runMigrations applies incremental schema changes added after the initial
// schema. Each migration is idempotent so it is safe to call on every open.
func runMigrations(db *sql.DB) error {
	hasDormant, err := columnExists(db, "themes", "dormant")
	if err != nil {
		return fmt.Errorf("check dormant column: %w", err)
	}
	if !hasDormant {
		if _, err := db.Exec(`ALTER TABLE themes ADD COLUMN dormant INTEGER NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("run migration v1: %w", err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS themes (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  summary TEXT,
  embedding BLOB,
  semantic_ids TEXT,
  message_count INTEGER NOT NULL DEFAULT 0,
  last_active INTEGER NOT NULL,
  neighbor_ids TEXT,
  dormant INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_themes_last_active ON themes(last_active);

CREATE TABLE IF NOT EXISTS semantics (
  id TEXT PRIMARY KEY,
  content TEXT NOT NULL,
  embedding BLOB,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  theme_id TEXT NOT NULL,
  source_episode_ids TEXT,
  neighbor_ids TEXT
);

CREATE INDEX IF NOT EXISTS idx_semantics_theme ON semantics(theme_id);
CREATE INDEX IF NOT EXISTS idx_semantics_created_at ON semantics(created_at);

CREATE VIRTUAL TABLE IF NOT EXISTS semantics_fts USING fts5(
  content, content='semantics', content_rowid='rowid'
);

CREATE TABLE IF NOT EXISTS episodes (
  id TEXT PRIMARY KEY,
  session_id TEXT,
  summary TEXT NOT NULL,
  turn_start INTEGER NOT NULL DEFAULT 0,
  turn_end INTEGER NOT NULL DEFAULT 0,
  message_count INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL,
  embedding BLOB,
  raw_messages BLOB
);

CREATE INDEX IF NOT EXISTS idx_episodes_session ON episodes(session_id);
CREATE INDEX IF NOT EXISTS idx_episodes_created_at ON episodes(created_at);

CREATE TABLE IF NOT EXISTS user_profile (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  phase TEXT NOT NULL,
  behavioural TEXT,
  cognitive TEXT,
  merged_global TEXT,
  embedding BLOB,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  UNIQUE(user_id, phase)
);

CREATE TABLE IF NOT EXISTS temporal_events (
  id TEXT PRIMARY KEY,
  content TEXT NOT NULL,
  semantic_time INTEGER NOT NULL,
  dialogue_time INTEGER NOT NULL,
  duration_ms INTEGER NOT NULL DEFAULT 0,
  source_episode_id TEXT,
  embedding BLOB
);

CREATE INDEX IF NOT EXISTS idx_temporal_events_semantic_time ON temporal_events(semantic_time);

CREATE TABLE IF NOT EXISTS durative_memories (
  id TEXT PRIMARY KEY,
  summary TEXT NOT NULL,
  start_time INTEGER NOT NULL,
  end_time INTEGER NOT NULL,
  member_ids TEXT,
  theme_tag TEXT,
  embedding BLOB,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS embedding_cache (
  content_hash TEXT PRIMARY KEY,
  embedding BLOB NOT NULL,
  dimension INTEGER NOT NULL,
  model TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tuning_state (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS semantics_ai AFTER INSERT ON semantics BEGIN
  INSERT INTO semantics_fts(rowid, content) VALUES (NEW.rowid, NEW.content);
END;`,
		`CREATE TRIGGER IF NOT EXISTS semantics_ad AFTER DELETE ON semantics BEGIN
  INSERT INTO semantics_fts(semantics_fts, rowid, content) VALUES ('delete', OLD.rowid, OLD.content);
END;`,
		`CREATE TRIGGER IF NOT EXISTS semantics_au AFTER UPDATE ON semantics BEGIN
  INSERT INTO semantics_fts(semantics_fts, rowid, content) VALUES ('delete', OLD.rowid, OLD.content);
  INSERT INTO semantics_fts(rowid, content) VALUES (NEW.rowid, NEW.content);
END;`,
	}
	for _, t := range triggers {
		if _, err := db.Exec(t); err != nil {
			return fmt.Errorf("create trigger: %w", err)
		}
	}

	return nil
}

// ThemeCount returns the total number of themes in the database.
func (db *DB) ThemeCount() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM themes").Scan(&count)
	return count, err
}

// SemanticFTSHit is one keyword match from the semantics full-text index.
type SemanticFTSHit struct {
	ID      string
	ThemeID string
	Content string
}

// SearchSemanticsFTS runs a keyword search over semantics content via the
// FTS5 index, matching any query token. Queries with no indexable tokens
// return nothing. This is the lexical fallback retrieval reaches for when
// vector ranking surfaces no facts.
func (db *DB) SearchSemanticsFTS(query string, limit int) ([]SemanticFTSHit, error) {
	match := ftsMatchExpr(query)
	if match == "" {
		return nil, nil
	}

	rows, err := db.Query(`
SELECT s.id, s.theme_id, s.content
FROM semantics_fts f
JOIN semantics s ON s.rowid = f.rowid
WHERE semantics_fts MATCH ?
ORDER BY rank
LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("fts search: %w", err)
	}
	defer rows.Close()

	var hits []SemanticFTSHit
	for rows.Next() {
		var h SemanticFTSHit
		if err := rows.Scan(&h.ID, &h.ThemeID, &h.Content); err != nil {
			return nil, fmt.Errorf("fts scan: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// ftsMatchExpr turns free text into a quoted OR query, keeping FTS5
// operator characters out of the match expression.
func ftsMatchExpr(query string) string {
	var tokens []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, `"`+string(cur)+`"`)
			cur = cur[:0]
		}
	}
	for _, r := range query {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur = append(cur, r)
			continue
		}
		flush()
	}
	flush()
	return strings.Join(tokens, " OR ")
}

// columnExists checks if a column exists in a table. It closes the rows
// cursor before returning, avoiding deadlocks with MaxOpenConns(1).
func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(
		fmt.Sprintf("SELECT name FROM pragma_table_info('%s') WHERE name = ?", table),
		column,
	)
	if err != nil {
		return false, err
	}
	found := rows.Next()
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, err
	}
	return found, nil
}
