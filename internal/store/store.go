// Package store provides SQLite-backed persistence for the adaptive
// learning engine: the corpus (exercises, core loops, topics), review
// state, mastery aggregates, quiz sessions, the prerequisite graph, and
// the LLM request event log. It talks to the database directly through
// database/sql; there is no ORM layer.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Store holds the database handle and the per-resource locks that
// enforce single-writer semantics for hot entities.
type Store struct {
	db  *sql.DB
	seq *sequenceCounter

	mu          sync.Mutex
	reviewLocks map[string]*sync.Mutex
	sessionLocks map[string]*sync.Mutex
}

// Open creates a new Store connected to the SQLite database at dsn. It
// applies recommended pragmas and creates the schema if it doesn't exist.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	seq, err := newSequenceCounter(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init sequence counter: %w", err)
	}

	return &Store{
		db:           db,
		seq:          seq,
		reviewLocks:  make(map[string]*sync.Mutex),
		sessionLocks: make(map[string]*sync.Mutex),
	}, nil
}

// DB returns the underlying *sql.DB for callers that need raw access
// (migrations, diagnostics).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// EventRepo returns an EventRepo backed by this store.
func (s *Store) EventRepo() EventRepo {
	return &eventRepo{db: s.db, seq: s.seq}
}

// CorpusRepo returns a CorpusRepo backed by this store.
func (s *Store) CorpusRepo() CorpusRepo {
	return &corpusRepo{db: s.db}
}

// ReviewRepo returns a ReviewRepo backed by this store.
func (s *Store) ReviewRepo() ReviewRepo {
	return &reviewRepo{db: s.db, store: s}
}

// MasteryRepo returns a MasteryRepo backed by this store.
func (s *Store) MasteryRepo() MasteryRepo {
	return &masteryRepo{db: s.db}
}

// SessionRepo returns a SessionRepo backed by this store.
func (s *Store) SessionRepo() SessionRepo {
	return &sessionRepo{db: s.db, store: s}
}

// PrereqRepo returns a PrereqRepo backed by this store.
func (s *Store) PrereqRepo() PrereqRepo {
	return &prereqRepo{db: s.db}
}

// reviewLock returns the mutex guarding the (studentID, coreLoopID) pair,
// creating it on first use. Every mutation of a ReviewState must hold
// this lock for the duration of its read-modify-write cycle.
func (s *Store) reviewLock(studentID, coreLoopID string) *sync.Mutex {
	key := studentID + "\x00" + coreLoopID
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.reviewLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.reviewLocks[key] = l
	}
	return l
}

// sessionLock returns the mutex guarding a single quiz session, creating
// it on first use.
func (s *Store) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.sessionLocks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.sessionLocks[sessionID] = l
	}
	return l
}

// applyPragmas configures SQLite for single-process, durable-enough
// concurrent access.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
//  1. ALE_DB environment variable
//  2. $XDG_DATA_HOME/ale/ale.db
//  3. ~/.local/share/ale/ale.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("ALE_DB"); p != "" {
		return p, ensureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "ale", "ale.db")
	return p, ensureDir(p)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

// EnsureDir creates the parent directory of path if it doesn't exist,
// for callers (such as cmd's --db flag handling) resolving a path
// outside of DefaultDBPath.
func EnsureDir(path string) error {
	return ensureDir(path)
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error (including a panic, which it re-raises after rollback).
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
