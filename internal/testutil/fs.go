package testutil

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync"
)

// MemFS is an in-memory file reader rooted at a fixed directory. It counts
// reads per file so tests can observe caching.
//
// Thread-safety: MemFS is safe for concurrent use.
type MemFS struct {
	mu    sync.Mutex
	root  string
	files map[string]string
	reads map[string]int
}

// NewMemFS creates a MemFS holding files, keyed by paths relative to root.
func NewMemFS(root string, files map[string]string) *MemFS {
	m := &MemFS{root: root, files: make(map[string]string, len(files)), reads: make(map[string]int)}
	for name, src := range files {
		m.files[filepath.Join(root, name)] = src
	}
	return m
}

// ReadFile returns the content stored at path, or an fs.ErrNotExist
// PathError.
func (m *MemFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads[path]++
	src, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return []byte(src), nil
}

// Write stores or replaces the file at name, relative to the root.
func (m *MemFS) Write(name, src string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[filepath.Join(m.root, name)] = src
}

// Reads reports how many times the file at name was read.
func (m *MemFS) Reads(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads[filepath.Join(m.root, name)]
}

// Root returns the directory file names are relative to.
func (m *MemFS) Root() string {
	return m.root
}

// TotalReads reports how many reads were attempted across all paths,
// including paths that do not exist.
func (m *MemFS) TotalReads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.reads {
		n += c
	}
	return n
}
