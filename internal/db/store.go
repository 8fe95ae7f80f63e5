package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS auth_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		token TEXT NOT NULL,
		userId TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		authenticated INTEGER NOT NULL DEFAULT 0,
		updatedAt REAL NOT NULL
	);
`

// Store provides access to the lexnova SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" opens a
// private in-memory database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadAuth returns the persisted identity, or nil if none is stored.
func (s *Store) LoadAuth() (*AuthRecord, error) {
	row := s.db.QueryRow(`
		SELECT token, userId, email, name, authenticated, updatedAt
		FROM auth_state
		WHERE id = 1
	`)

	var rec AuthRecord
	var authenticated int
	var updatedAt float64
	if err := row.Scan(&rec.Token, &rec.UserID, &rec.Email, &rec.Name,
		&authenticated, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan auth state: %w", err)
	}
	rec.Authenticated = authenticated == 1
	rec.UpdatedAt = timeFromUnix(updatedAt)
	return &rec, nil
}

// SaveAuth replaces the persisted identity.
func (s *Store) SaveAuth(rec AuthRecord) error {
	authenticated := 0
	if rec.Authenticated {
		authenticated = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO auth_state (id, token, userId, email, name, authenticated, updatedAt)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			userId = excluded.userId,
			email = excluded.email,
			name = excluded.name,
			authenticated = excluded.authenticated,
			updatedAt = excluded.updatedAt
	`, rec.Token, rec.UserID, rec.Email, rec.Name, authenticated, unixFromTime(time.Now()))
	if err != nil {
		return fmt.Errorf("save auth state: %w", err)
	}
	return nil
}

// ClearAuth removes the persisted identity. Clearing an empty store is not
// an error.
func (s *Store) ClearAuth() error {
	if _, err := s.db.Exec(`DELETE FROM auth_state WHERE id = 1`); err != nil {
		return fmt.Errorf("clear auth state: %w", err)
	}
	return nil
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
