package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when an update or delete targets a missing row.
	ErrNotFound = errors.New("store: not found")
	// ErrSlotTaken is returned when a consultant already holds a non-cancelled
	// session at the requested date and time.
	ErrSlotTaken = errors.New("store: slot already taken")
	// ErrDuplicate is returned on any other unique constraint violation.
	ErrDuplicate = errors.New("store: duplicate record")
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers, which the booking path relies on.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		tier TEXT NOT NULL DEFAULT 'free',
		current_class TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS availability (
		consultant_id TEXT PRIMARY KEY,
		days TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (consultant_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		student_name TEXT NOT NULL,
		consultant_id TEXT NOT NULL,
		consultant_name TEXT NOT NULL,
		date TEXT NOT NULL,
		time TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'Scheduled',
		meeting_link TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_slot
		ON sessions(consultant_id, date, time) WHERE status <> 'Cancelled';
	CREATE INDEX IF NOT EXISTS idx_sessions_student ON sessions(student_id);

	CREATE TABLE IF NOT EXISTS roadmaps (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		career_title TEXT NOT NULL,
		date TEXT NOT NULL,
		steps TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_roadmaps_user ON roadmaps(user_id);

	CREATE TABLE IF NOT EXISTS trackers (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		roadmap_id TEXT NOT NULL,
		career_title TEXT NOT NULL,
		current_phase_index INTEGER NOT NULL DEFAULT 0,
		total_weeks_completed INTEGER NOT NULL DEFAULT 0,
		overall_progress_score INTEGER NOT NULL DEFAULT 0,
		history TEXT NOT NULL DEFAULT '[]',
		current_week TEXT NOT NULL,
		active_seq INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_trackers_roadmap ON trackers(user_id, roadmap_id);

	CREATE TABLE IF NOT EXISTS assessments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		profile TEXT NOT NULL,
		recommendations TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_assessments_user ON assessments(user_id);

	CREATE TABLE IF NOT EXISTS faqs (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		answer TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT 'General',
		status TEXT NOT NULL DEFAULT 'pending',
		asked_by TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		return serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			serr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
