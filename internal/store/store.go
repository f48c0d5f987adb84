// Package store provides sqlite-backed persistence for identities, tasks,
// facts, lessons, outcomes and conversation history.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// Store wraps the sqlite database shared by the pipeline, the marker
// engine and the background producers. Every mutating operation exposed
// here is a single statement or an explicit transaction, so concurrent
// callers (a scheduler tick racing a user-triggered cancel) cannot observe
// a half-applied write.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Serialized access keeps single-statement writes atomic under the
	// pure-Go driver.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS identities (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			onboarded INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS aliases (
			channel TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			identity_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (channel, channel_id)
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			identity_id TEXT NOT NULL,
			description TEXT NOT NULL,
			due_at TEXT NOT NULL,
			repeat TEXT NOT NULL DEFAULT 'none',
			kind TEXT NOT NULL DEFAULT 'reminder',
			status TEXT NOT NULL DEFAULT 'pending',
			channel TEXT NOT NULL DEFAULT '',
			chat_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(status, due_at)`,
		`CREATE TABLE IF NOT EXISTS facts (
			identity_id TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (identity_id, key)
		)`,
		`CREATE TABLE IF NOT EXISTS lessons (
			id TEXT PRIMARY KEY,
			identity_id TEXT NOT NULL,
			domain TEXT NOT NULL,
			rule TEXT NOT NULL,
			reinforced INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lessons_scope ON lessons(identity_id, domain)`,
		`CREATE TABLE IF NOT EXISTS outcomes (
			id TEXT PRIMARY KEY,
			identity_id TEXT NOT NULL,
			score INTEGER NOT NULL,
			domain TEXT NOT NULL,
			lesson TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS exchanges (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			identity_id TEXT NOT NULL,
			session_key TEXT NOT NULL,
			user_text TEXT NOT NULL,
			reply_text TEXT NOT NULL,
			closed INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exchanges_session ON exchanges(session_key, id)`,
		`CREATE TABLE IF NOT EXISTS bug_reports (
			id TEXT PRIMARY KEY,
			identity_id TEXT NOT NULL,
			description TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS build_proposals (
			id TEXT PRIMARY KEY,
			identity_id TEXT NOT NULL,
			spec TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS heartbeat_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			identity_id TEXT NOT NULL,
			item TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS heartbeat_suppressed (
			identity_id TEXT NOT NULL,
			section TEXT NOT NULL,
			PRIMARY KEY (identity_id, section)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Scope returns a handle bound to one canonical identity. Marker handlers
// receive a Scope so every operation they perform is sender-scoped.
func (s *Store) Scope(identityID string) *Scope {
	return &Scope{store: s, identityID: identityID}
}

// Scope is a sender-scoped view of the store.
type Scope struct {
	store      *Store
	identityID string
}

// IdentityID returns the canonical identity this scope is bound to.
func (sc *Scope) IdentityID() string { return sc.identityID }

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
