// Package localstore provides the durable key-value substrate that every
// cache store persists its snapshot onto.
//
// The store is a single SQLite database (embedded, WAL mode) with one
// snapshots table keyed by store name. Payloads are opaque serialized
// snapshots; consumers never read them directly — they are rehydrated into
// the in-memory collections at process start.
package localstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store wraps the SQLite connection holding persisted cache snapshots.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates or opens the snapshot database at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// The caller MUST call Close() when done.
//
// Example:
//
//	kv, err := localstore.Open(filepath.Join(dataDir, "owlet.db"))
//	if err != nil {
//	    return err
//	}
//	defer kv.Close()
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path}

	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection after checkpointing the WAL.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// initSchema creates the snapshots table if it doesn't exist. Idempotent.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		name TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		saved_at TEXT NOT NULL
	);
	`
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Put stores the payload under the given snapshot name, replacing any
// previous payload.
func (s *Store) Put(name string, payload []byte) error {
	return s.PutContext(context.Background(), name, payload)
}

// PutContext stores a snapshot with context support.
func (s *Store) PutContext(ctx context.Context, name string, payload []byte) error {
	query := `
	INSERT INTO snapshots (name, payload, saved_at)
	VALUES (?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET
		payload = excluded.payload,
		saved_at = excluded.saved_at
	`
	_, err := s.conn.ExecContext(ctx, query, name, payload, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to put snapshot %s: %w", name, err)
	}
	return nil
}

// Get returns the payload stored under the given name. The second return
// value is false if no snapshot exists.
func (s *Store) Get(name string) ([]byte, bool, error) {
	return s.GetContext(context.Background(), name)
}

// GetContext reads a snapshot with context support.
func (s *Store) GetContext(ctx context.Context, name string) ([]byte, bool, error) {
	var payload []byte
	err := s.conn.QueryRowContext(ctx, "SELECT payload FROM snapshots WHERE name = ?", name).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get snapshot %s: %w", name, err)
	}
	return payload, true, nil
}

// Delete removes the snapshot stored under the given name.
// Returns nil if the snapshot doesn't exist (idempotent).
func (s *Store) Delete(name string) error {
	return s.DeleteContext(context.Background(), name)
}

// DeleteContext removes a snapshot with context support.
func (s *Store) DeleteContext(ctx context.Context, name string) error {
	_, err := s.conn.ExecContext(ctx, "DELETE FROM snapshots WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", name, err)
	}
	return nil
}

// Names returns the names of all stored snapshots, sorted.
func (s *Store) Names() ([]string, error) {
	return s.NamesContext(context.Background())
}

// NamesContext lists snapshot names with context support.
func (s *Store) NamesContext(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT name FROM snapshots ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return names, nil
}

// SavedAt returns when the named snapshot was last written.
// The second return value is false if no snapshot exists.
func (s *Store) SavedAt(name string) (time.Time, bool, error) {
	var raw string
	err := s.conn.QueryRow("SELECT saved_at FROM snapshots WHERE name = ?", name).Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read saved_at for %s: %w", name, err)
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse saved_at for %s: %w", name, err)
	}
	return t, true, nil
}

// RawDB returns the underlying sql.DB connection.
// This is useful for integrating with other libraries that expect *sql.DB.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}
