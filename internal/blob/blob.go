// Package blob stores signed receipt files.
package blob

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no file exists under a key.
var ErrNotFound = errors.New("blob not found")

// Store is a flat key/value file store.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
}

// DBStore keeps files in the files table of the main database.
type DBStore struct {
	DB *sql.DB
}

// NewDBStore returns a Store backed by the given database.
func NewDBStore(db *sql.DB) *DBStore {
	return &DBStore{DB: db}
}

// Put stores data under key, replacing any existing file.
func (s *DBStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO files (id, content_type, data) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET content_type = excluded.content_type, data = excluded.data`,
		key, contentType, data,
	)
	if err != nil {
		return fmt.Errorf("storing file: %w", err)
	}
	return nil
}

// Get returns the data and content type stored under key.
func (s *DBStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	var data []byte
	var contentType string
	err := s.DB.QueryRowContext(ctx,
		`SELECT data, content_type FROM files WHERE id = ?`, key,
	).Scan(&data, &contentType)
	if err == sql.ErrNoRows {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting file: %w", err)
	}
	return data, contentType, nil
}

// Delete removes the file under key. Deleting a missing key is not an error.
func (s *DBStore) Delete(ctx context.Context, key string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, key); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
