// Package localstore keeps the terminal's state on local disk as a backup
// document, so the ledgers survive restarts with or without a remote store.
package localstore

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"pos_ledger/internal/backup"
)

// FileStore persists a backup.Document to a single file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates the parent directory of path if needed.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return &FileStore{path: path}, nil
}

// Path returns the file location.
func (s *FileStore) Path() string { return s.path }

// Load reads the stored document. found is false when nothing was saved yet.
func (s *FileStore) Load() (doc backup.Document, found bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return backup.Document{}, false, nil
	}
	if err != nil {
		return backup.Document{}, false, err
	}
	doc, err = backup.Decode(bytes.NewReader(b))
	if err != nil {
		return backup.Document{}, false, fmt.Errorf("corrupt local state %s: %w", s.path, err)
	}
	return doc, true, nil
}

// Save writes doc to a temporary file, syncs it, then renames it over the
// previous state so a crash leaves either the old or the new document.
func (s *FileStore) Save(doc backup.Document) error {
	var buf bytes.Buffer
	if err := backup.Encode(&buf, doc); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}

	// best-effort directory fsync
	if d, err := os.Open(filepath.Dir(s.path)); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
