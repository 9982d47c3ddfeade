package library

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Store persists whole-library snapshots.
type Store interface {
	// Save replaces whatever the store held with data.
	Save(data *LibraryData) error
	// Load returns the last saved snapshot, or ErrSnapshotNotFound.
	Load() (*LibraryData, error)
	Close() error
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*Database)(nil)
)

// OpenStore picks a SQLite database for .db/.sqlite/.sqlite3 paths and a JSON
// file for anything else.
func OpenStore(path string, logger Logger) (Store, error) {
	if logger == nil {
		logger = discardLogger
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		db, err := NewDatabase(path, WithDatabaseLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("open database %s: %w", path, err)
		}
		return db, nil
	default:
		return NewFileStore(path, logger), nil
	}
}

// openExistingStore is OpenStore for reading: a path that does not exist
// yields ErrSnapshotNotFound instead of a freshly created store.
func openExistingStore(path string, logger Logger) (Store, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, path)
	}
	return OpenStore(path, logger)
}

// FileStore keeps the snapshot as a JSON document on disk.
type FileStore struct {
	path   string
	logger Logger
}

func NewFileStore(path string, logger Logger) *FileStore {
	if logger == nil {
		logger = discardLogger
	}
	return &FileStore{path: path, logger: logger}
}

func (s *FileStore) Path() string { return s.path }

// Save overwrites the file in place.
func (s *FileStore) Save(data *LibraryData) error {
	if err := writeSnapshotFile(s.path, data); err != nil {
		return err
	}
	s.logger.Debug("snapshot written", "path", s.path, "books", len(data.Books), "transactions", len(data.Transactions))
	return nil
}

func (s *FileStore) Load() (*LibraryData, error) {
	data, err := readSnapshotFile(s.path, s.logger)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("snapshot read", "path", s.path, "books", len(data.Books), "transactions", len(data.Transactions))
	return data, nil
}

func (s *FileStore) Close() error { return nil }
