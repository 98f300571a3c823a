package storage

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Veraticus/photodump/internal/common"
	"github.com/Veraticus/photodump/internal/model"
)

// MockStore is an in-memory implementation of the Storage interface for
// tests. Paths are tracked as a flat set; directory structure is implied
// by path prefixes.
type MockStore struct {
	files   map[string]bool
	copies  []string
	deletes []string
	mu      sync.Mutex
}

// NewMockStore creates an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{
		files: make(map[string]bool),
	}
}

// AddFile seeds a file into the store.
func (m *MockStore) AddFile(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = true
}

// HasFile reports whether a path exists in the store.
func (m *MockStore) HasFile(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[path]
}

// Copies returns every dst path written through Copy, in call order.
func (m *MockStore) Copies() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	copies := make([]string, len(m.copies))
	copy(copies, m.copies)
	return copies
}

// Deletes returns every path removed through DeleteTree, in call order.
func (m *MockStore) Deletes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	deletes := make([]string, len(m.deletes))
	copy(deletes, m.deletes)
	return deletes
}

// Copy duplicates src to dst. Missing sources yield common.ErrNotFound,
// matching the filesystem-backed store.
func (m *MockStore) Copy(_ context.Context, src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.files[src] {
		return common.ErrNotFound
	}
	m.files[dst] = true
	m.copies = append(m.copies, dst)
	return nil
}

// DeleteTree removes a path and everything beneath it.
func (m *MockStore) DeleteTree(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := strings.TrimSuffix(path, "/") + "/"
	for file := range m.files {
		if file == path || strings.HasPrefix(file, prefix) {
			delete(m.files, file)
		}
	}
	m.deletes = append(m.deletes, path)
	return nil
}

// ClearDir empties a directory without removing it.
func (m *MockStore) ClearDir(ctx context.Context, dir string) error {
	return m.DeleteTree(ctx, dir)
}

// ListImages returns the image files directly inside dir in lexical order.
func (m *MockStore) ListImages(_ context.Context, dir string) ([]model.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := strings.TrimSuffix(dir, "/") + "/"
	var photos []model.Photo
	for file := range m.files {
		if !strings.HasPrefix(file, prefix) {
			continue
		}
		rest := strings.TrimPrefix(file, prefix)
		if strings.Contains(rest, "/") || !IsImage(filepath.Base(file)) {
			continue
		}
		photos = append(photos, model.Photo{Path: file})
	}
	sort.Slice(photos, func(i, j int) bool { return photos[i].Path < photos[j].Path })
	return photos, nil
}

// Remove deletes a single file.
func (m *MockStore) Remove(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.files[path] {
		return common.ErrNotFound
	}
	delete(m.files, path)
	return nil
}
