package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/nao1215/dlcollect/internal/fileutil"
	"gopkg.in/yaml.v3"
)

// filePermission keeps the settings file private to the user.
const filePermission os.FileMode = 0o600

// MemoryStore keeps settings in memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]bool
}

// NewMemoryStore creates a store pre-populated with values.
func NewMemoryStore(values map[string]bool) *MemoryStore {
	m := &MemoryStore{values: make(map[string]bool, len(values))}
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

// GetBool implements Store.
func (m *MemoryStore) GetBool(key string) (bool, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// SetBool implements Store.
func (m *MemoryStore) SetBool(key string, value bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// FileStore keeps settings in a YAML file.
// Every write re-reads the file, applies one change and atomically replaces
// it, so a reader never sees a half-written file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by path. The file is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (f *FileStore) Path() string {
	return f.path
}

// GetBool implements Store.
func (f *FileStore) GetBool(key string) (bool, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return false, false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// SetBool implements Store.
func (f *FileStore) SetBool(key string, value bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return err
	}
	values[key] = value

	data, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	return fileutil.WriteAtomic(context.Background(), f.path, data, filePermission)
}

// read loads the whole file. A missing file is an empty store.
func (f *FileStore) read() (map[string]bool, error) {
	values := make(map[string]bool)

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return values, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", f.path, err)
	}
	if values == nil {
		values = make(map[string]bool)
	}

	return values, nil
}
