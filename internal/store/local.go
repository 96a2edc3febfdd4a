package store

import (
	"encoding/base64"
	"path/filepath"
	"sync"

	"chatcore/internal/domain"
)

const localStorageFile = "storage.json"

// LocalFileStore persists the device's key-value store to a single JSON
// file under dir. Keys are stored as "prefix_key".
type LocalFileStore struct {
	dir    string
	prefix string
	mu     sync.Mutex
}

// NewLocalFileStore returns a LocalFileStore rooted at dir.
func NewLocalFileStore(dir, prefix string) *LocalFileStore {
	return &LocalFileStore{dir: dir, prefix: prefix}
}

// GetString returns the string stored under key.
func (s *LocalFileStore) GetString(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := entries[namespaced(s.prefix, key)]
	return v, ok, nil
}

// SetString stores value under key.
func (s *LocalFileStore) SetString(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	entries[namespaced(s.prefix, key)] = value
	return writeJSON(s.path(), entries, 0o600)
}

// GetBinary returns the bytes stored under key.
func (s *LocalFileStore) GetBinary(key string) ([]byte, bool, error) {
	v, ok, err := s.GetString(key)
	if err != nil || !ok {
		return nil, ok, err
	}
	b, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil, false, domain.Malformed("local storage %q: %v", key, err)
	}
	return b, true, nil
}

// SetBinary stores value under key as base64.
func (s *LocalFileStore) SetBinary(key string, value []byte) error {
	return s.SetString(key, base64.StdEncoding.EncodeToString(value))
}

// Delete removes keys. Missing keys are ignored.
func (s *LocalFileStore) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(entries, namespaced(s.prefix, k))
	}
	return writeJSON(s.path(), entries, 0o600)
}

func (s *LocalFileStore) path() string { return filepath.Join(s.dir, localStorageFile) }

func (s *LocalFileStore) load() (map[string]string, error) {
	entries := make(map[string]string)
	if err := readJSON(s.path(), &entries); err != nil {
		return nil, domain.Malformed("local storage: %v", err)
	}
	return entries, nil
}

// MemoryLocalStorage is an in-process LocalStorage.
type MemoryLocalStorage struct {
	prefix  string
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryLocalStorage returns an empty MemoryLocalStorage.
func NewMemoryLocalStorage(prefix string) *MemoryLocalStorage {
	return &MemoryLocalStorage{prefix: prefix, entries: make(map[string]string)}
}

// GetString returns the string stored under key.
func (s *MemoryLocalStorage) GetString(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[namespaced(s.prefix, key)]
	return v, ok, nil
}

// SetString stores value under key.
func (s *MemoryLocalStorage) SetString(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[namespaced(s.prefix, key)] = value
	return nil
}

// GetBinary returns the bytes stored under key.
func (s *MemoryLocalStorage) GetBinary(key string) ([]byte, bool, error) {
	v, ok, _ := s.GetString(key)
	if !ok {
		return nil, false, nil
	}
	b, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil, false, domain.Malformed("local storage %q: %v", key, err)
	}
	return b, true, nil
}

// SetBinary stores value under key as base64.
func (s *MemoryLocalStorage) SetBinary(key string, value []byte) error {
	return s.SetString(key, base64.StdEncoding.EncodeToString(value))
}

// Delete removes keys.
func (s *MemoryLocalStorage) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.entries, namespaced(s.prefix, k))
	}
	return nil
}

func namespaced(prefix, key string) string { return prefix + "_" + key }

// Compile-time assertions.
var (
	_ domain.LocalStorage = (*LocalFileStore)(nil)
	_ domain.LocalStorage = (*MemoryLocalStorage)(nil)
)
