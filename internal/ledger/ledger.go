// Package ledger tracks which signals this node has already claimed. It is
// a per-device anti-duplicate guard, never synced to the shared store.
package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Storage persists the claimed-id list. Implementations must treat
// missing or corrupt data as an empty list rather than an error.
type Storage interface {
	Load() ([]int64, error)
	Save(ids []int64) error
}

// FileStorage keeps the list as a JSON array in a single file, the moral
// equivalent of the browser's localStorage entry.
type FileStorage struct {
	path string
}

// NewFileStorage returns storage rooted at path.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Load reads the claimed ids. Missing or malformed content yields an
// empty list, never an error.
func (f *FileStorage) Load() ([]int64, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, nil
	}
	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, nil
	}
	return ids, nil
}

// Save writes the claimed ids, creating directories as needed. The write
// goes through a same-directory temp file swapped into place, so an
// interrupted save leaves the previous list intact instead of a torn file
// that would read back as empty.
func (f *FileStorage) Save(ids []int64) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// MemoryStorage is an in-memory Storage for tests and throwaway sessions.
type MemoryStorage struct {
	ids []int64
}

// Load returns the stored ids.
func (m *MemoryStorage) Load() ([]int64, error) {
	return append([]int64(nil), m.ids...), nil
}

// Save replaces the stored ids.
func (m *MemoryStorage) Save(ids []int64) error {
	m.ids = append([]int64(nil), ids...)
	return nil
}

// Ledger is the claimed-id set with durable backing. Entries never expire
// and are never removed in normal operation.
type Ledger struct {
	mu      sync.Mutex
	storage Storage
	ids     []int64
	present map[int64]struct{}
}

// New loads the ledger from storage.
func New(storage Storage) *Ledger {
	ids, _ := storage.Load()
	present := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		present[id] = struct{}{}
	}
	return &Ledger{storage: storage, ids: ids, present: present}
}

// Contains reports whether this node has claimed the signal.
func (l *Ledger) Contains(id int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.present[id]
	return ok
}

// Record adds an id to the ledger. Recording an already-present id is a
// no-op; the ledger never holds duplicates.
func (l *Ledger) Record(id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.present[id]; ok {
		return nil
	}
	l.ids = append(l.ids, id)
	l.present[id] = struct{}{}
	return l.storage.Save(l.ids)
}

// IDs returns a copy of every claimed id in insertion order.
func (l *Ledger) IDs() []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int64(nil), l.ids...)
}
