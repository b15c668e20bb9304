package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/starford/folio/internal/checksum"
)

// FileStore keeps one named store as a single JSON object file. Key order
// on disk follows insertion order.
type FileStore struct {
	path string

	mu      sync.Mutex
	data    *orderedmap.OrderedMap[string, json.RawMessage]
	dirty   bool
	lastSum string
}

var _ Store = (*FileStore)(nil)

// OpenFile opens (or lazily creates) the store <dir>/<name>.json.
// The directory is created when missing.
func OpenFile(dir, name string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("kvstore: mkdir: %w", err)
	}
	abs, err := filepath.Abs(filepath.Join(dir, name+".json"))
	if err != nil {
		return nil, fmt.Errorf("kvstore: resolve path: %w", err)
	}
	s := &FileStore{path: abs}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the absolute path of the backing file.
func (s *FileStore) Path() string { return s.path }

// LastChecksum returns the digest of the bytes last read or written by
// this store.
func (s *FileStore) LastChecksum() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSum
}

// Reload discards unsaved changes and re-reads the file.
func (s *FileStore) Reload() error {
	return s.load()
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	m := orderedmap.New[string, json.RawMessage]()
	switch {
	case errors.Is(err, os.ErrNotExist):
		data = nil
	case err != nil:
		return fmt.Errorf("kvstore: read %s: %w", s.path, err)
	case len(data) > 0:
		if err := json.Unmarshal(data, m); err != nil {
			return fmt.Errorf("kvstore: decode %s: %w", s.path, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = m
	s.dirty = false
	if data != nil {
		s.lastSum = checksum.Sum(data)
	}
	return nil
}

// Get returns the raw value of key.
func (s *FileStore) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data.Get(key)
	return v, ok, nil
}

// Set stores value under key.
func (s *FileStore) Set(_ context.Context, key string, value any) error {
	raw, err := encode(value)
	if err != nil {
		return fmt.Errorf("kvstore: encode %q: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Set(key, raw)
	s.dirty = true
	return nil
}

// Delete removes key.
func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Delete(key); ok {
		s.dirty = true
	}
	return nil
}

// Rename replaces oldKey with newKey at the same position.
func (s *FileStore) Rename(_ context.Context, oldKey, newKey string, value any) error {
	raw, err := encode(value)
	if err != nil {
		return fmt.Errorf("kvstore: encode %q: %w", newKey, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Get(oldKey); !ok {
		s.data.Set(newKey, raw)
		s.dirty = true
		return nil
	}
	next := orderedmap.New[string, json.RawMessage]()
	for p := s.data.Oldest(); p != nil; p = p.Next() {
		switch p.Key {
		case oldKey:
			next.Set(newKey, raw)
		case newKey:
		default:
			next.Set(p.Key, p.Value)
		}
	}
	s.data = next
	s.dirty = true
	return nil
}

// Entries returns all pairs in insertion order.
func (s *FileStore) Entries(_ context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, s.data.Len())
	for p := s.data.Oldest(); p != nil; p = p.Next() {
		out = append(out, Entry{Key: p.Key, Value: p.Value})
	}
	return out, nil
}

// Save atomically rewrites the file: tmp file → fsync → rename.
// A clean store is not rewritten.
func (s *FileStore) Save(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	content, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("kvstore: encode store: %w", err)
	}
	if err := writeAtomic(s.path, content); err != nil {
		return err
	}
	s.lastSum = checksum.Sum(content)
	s.dirty = false
	return nil
}

func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".folio-tmp-*")
	if err != nil {
		return fmt.Errorf("kvstore: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("kvstore: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("kvstore: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("kvstore: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("kvstore: rename: %w", err)
	}
	success = true
	return nil
}
