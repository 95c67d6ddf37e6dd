package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSlot stores the payload as one row of a small sqlite database
type SQLiteSlot struct {
	path string
	key  string

	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteSlot opens (creating if needed) the database at path. An empty
// path selects DefaultDatabasePath.
func NewSQLiteSlot(path string) (*SQLiteSlot, error) {
	if path == "" {
		p, err := DefaultDatabasePath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}
	// a single connection serializes writers
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS slots (
			key TEXT PRIMARY KEY,
			payload BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create checkpoint table: %w", err)
	}

	return &SQLiteSlot{path: path, key: StorageKey, db: db}, nil
}

// Path returns the database file
func (s *SQLiteSlot) Path() string {
	return s.path
}

func (s *SQLiteSlot) Read() ([]byte, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	var payload []byte
	err = db.QueryRow(`SELECT payload FROM slots WHERE key = ?`, s.key).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSlotEmpty
		}
		return nil, fmt.Errorf("failed to read checkpoint row: %w", err)
	}
	return payload, nil
}

func (s *SQLiteSlot) Write(data []byte) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT INTO slots (key, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, s.key, data, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to write checkpoint row: %w", err)
	}
	return nil
}

func (s *SQLiteSlot) Remove() error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	if _, err := db.Exec(`DELETE FROM slots WHERE key = ?`, s.key); err != nil {
		return fmt.Errorf("failed to delete checkpoint row: %w", err)
	}
	return nil
}

// Close releases the database handle; later calls fail
func (s *SQLiteSlot) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteSlot) getDB() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil, errors.New("checkpoint database is closed")
	}
	return s.db, nil
}

// DefaultDatabasePath returns the sqlite file in the platform data directory
func DefaultDatabasePath() (string, error) {
	dir, err := getDataDirectory()
	if err != nil {
		return "", fmt.Errorf("failed to get data directory: %w", err)
	}
	return filepath.Join(dir, "checkpoint.db"), nil
}
