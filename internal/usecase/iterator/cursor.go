package iterator

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// FileCursorStore persists one cursor per tenant as a JSON file.
type FileCursorStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileCursorStore creates the store, making dir if needed.
func NewFileCursorStore(dir string) (*FileCursorStore, error) {
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cursor dir %s: %w", dir, err)
	}
	return &FileCursorStore{dir: dir}, nil
}

func (s *FileCursorStore) path(tenantID int64) string {
	return filepath.Join(s.dir, "cursor-"+strconv.FormatInt(tenantID, 10)+".json")
}

// Load returns the saved cursor, or a fresh one if none exists.
func (s *FileCursorStore) Load(tenantID int64) (Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(tenantID)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Cursor{TenantID: tenantID}, nil
	}
	if err != nil {
		return Cursor{}, fmt.Errorf("read cursor %s: %w", path, err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("parse cursor %s: %w", path, err)
	}
	if c.TenantID != tenantID {
		return Cursor{}, fmt.Errorf("cursor %s belongs to tenant %d", path, c.TenantID)
	}
	return c, nil
}

// Save writes c atomically: a temp file renamed over the old one.
func (s *FileCursorStore) Save(c Cursor) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(c.TenantID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write cursor: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename cursor: %w", err)
	}
	return nil
}

// Reset removes the saved cursor so the next run starts from the beginning.
func (s *FileCursorStore) Reset(tenantID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(tenantID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cursor: %w", err)
	}
	return nil
}
