package zarr

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

// -----------------------------------------------------------------------------
// Zip archive store (read)
// -----------------------------------------------------------------------------

type zipStore struct {
	rc    *zip.ReadCloser
	index map[string]*zip.File
}

// OpenZipStore opens a zip archive as a read-only ObjectStore. Writes fail
// with ErrReadOnly: archives cannot be updated in place.
func OpenZipStore(path string) (ObjectStore, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("zarr: open archive %q: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("zarr: open archive %q: %w", path, err)
	}
	index := make(map[string]*zip.File, len(rc.File))
	for _, f := range rc.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		index[f.Name] = f
	}
	return &zipStore{rc: rc, index: index}, nil
}

func (s *zipStore) Put(ctx context.Context, path string, r io.Reader) error {
	return fmt.Errorf("zarr: write %q: %w", path, ErrReadOnly)
}

func (s *zipStore) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, ok := s.index[path]
	if !ok {
		return nil, fmt.Errorf("zarr: get %q: %w", path, ErrNotFound)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("zarr: get %q: %w", path, err)
	}
	return rc, nil
}

func (s *zipStore) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, ok := s.index[path]
	return ok, nil
}

func (s *zipStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	for k := range s.index {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *zipStore) Close() error {
	return s.rc.Close()
}

// -----------------------------------------------------------------------------
// Zip archive store (create)
// -----------------------------------------------------------------------------

type zipCreateStore struct {
	mu      sync.RWMutex
	target  string
	entries map[string][]byte
	closed  bool
}

// CreateZipStore returns an ObjectStore that accumulates objects in memory
// and writes them out as a zip archive on Close. It fails with ErrExists if
// the target path is already present.
func CreateZipStore(path string) (ObjectStore, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("zarr: create archive %q: %w", path, ErrExists)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("zarr: create archive %q: %w", path, err)
	}
	return &zipCreateStore{target: path, entries: map[string][]byte{}}, nil
}

func (s *zipCreateStore) Put(ctx context.Context, path string, r io.Reader) error {
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
	if s.closed {
		return fmt.Errorf("zarr: write %q: %w", path, ErrClosed)
	}
	s.entries[path] = data
	return nil
}

func (s *zipCreateStore) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.entries[path]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("zarr: get %q: %w", path, ErrNotFound)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return io.NopCloser(bytes.NewReader(cp)), nil
}

func (s *zipCreateStore) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[path]
	return ok, nil
}

func (s *zipCreateStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close writes the buffered entries to the target archive. Chunks are already
// compressed, so entries are stored without further deflation.
func (s *zipCreateStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	f, err := os.OpenFile(s.target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("zarr: create archive %q: %w", s.target, ErrExists)
		}
		return fmt.Errorf("zarr: create archive %q: %w", s.target, err)
	}
	zw := zip.NewWriter(f)

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: k, Method: zip.Store})
		if err != nil {
			zw.Close()
			f.Close()
			return fmt.Errorf("zarr: add %q to archive: %w", k, err)
		}
		if _, err := w.Write(s.entries[k]); err != nil {
			zw.Close()
			f.Close()
			return fmt.Errorf("zarr: add %q to archive: %w", k, err)
		}
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("zarr: finalize archive %q: %w", s.target, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("zarr: finalize archive %q: %w", s.target, err)
	}
	return nil
}
