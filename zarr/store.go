package zarr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// -----------------------------------------------------------------------------
// Directory store
// -----------------------------------------------------------------------------

type dirStore struct {
	root string
}

// NewDirStore returns an ObjectStore over an existing directory tree. Keys map
// to file paths relative to root.
func NewDirStore(root string) (ObjectStore, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("zarr: open store %q: %w", root, ErrNotFound)
		}
		return nil, fmt.Errorf("zarr: open store %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("zarr: open store %q: not a directory", root)
	}
	return &dirStore{root: root}, nil
}

// CreateDirStore creates a new directory and returns an ObjectStore over it.
// It fails with ErrExists if the path is already present.
func CreateDirStore(root string) (ObjectStore, error) {
	if err := os.Mkdir(root, 0o755); err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("zarr: create store %q: %w", root, ErrExists)
		}
		return nil, fmt.Errorf("zarr: create store %q: %w", root, err)
	}
	return &dirStore{root: root}, nil
}

func (s *dirStore) Put(ctx context.Context, path string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.safePath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("zarr: create parent of %q: %w", path, err)
	}
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("zarr: create %q: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(full)
		return fmt.Errorf("zarr: write %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("zarr: close %q: %w", path, err)
	}
	return nil
}

func (s *dirStore) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.safePath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("zarr: get %q: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("zarr: get %q: %w", path, err)
	}
	return f, nil
}

func (s *dirStore) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	full, err := s.safePath(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("zarr: stat %q: %w", path, err)
	}
	return true, nil
}

func (s *dirStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("zarr: list %q: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// safePath maps a store key to a filesystem path, rejecting keys that would
// escape the root.
func (s *dirStore) safePath(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("zarr: empty object key")
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("zarr: key %q escapes store root", key)
	}
	return filepath.Join(s.root, clean), nil
}

// -----------------------------------------------------------------------------
// Memory store
// -----------------------------------------------------------------------------

type memStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemStore returns an in-memory ObjectStore. It is safe for concurrent use
// and is mainly useful in tests.
func NewMemStore() ObjectStore {
	return &memStore{objects: map[string][]byte{}}
}

func (s *memStore) Put(ctx context.Context, path string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("zarr: empty object key")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("zarr: write %q: %w", path, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = data
	return nil
}

func (s *memStore) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.objects[path]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("zarr: get %q: %w", path, ErrNotFound)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return io.NopCloser(bytes.NewReader(cp)), nil
}

func (s *memStore) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[path]
	return ok, nil
}

func (s *memStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
