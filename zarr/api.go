// Package zarr implements a minimal chunked-array hierarchy compatible with
// the Zarr v2 on-disk layout: named groups, N-dimensional arrays with an
// explicit dtype and chunk grid, and JSON attribute documents, all stored
// through a pluggable object store.
//
// Zarr focuses on the storage structure the brim format needs: group/array
// creation, attribute staging, and rectangular (hyperslab) reads that touch
// only the chunks intersecting the selection. It does not implement filters,
// Fortran order, or the v3 layout.
package zarr

import (
	"context"
	"io"
)

// -----------------------------------------------------------------------------
// Object store interface
// -----------------------------------------------------------------------------

// ObjectStore abstracts the flat keyspace a hierarchy is stored in.
//
// Implementations may target directory trees, zip archives, S3, or memory.
// Keys are '/'-separated relative paths. Put replaces any existing object
// (metadata documents are rewritten on flush).
type ObjectStore interface {
	// Put writes the object at the given path, replacing any previous value.
	Put(ctx context.Context, path string, r io.Reader) error

	// Get retrieves the object at the given path.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Exists checks whether a path exists.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns all object paths under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// -----------------------------------------------------------------------------
// Compressor interface
// -----------------------------------------------------------------------------

// Compressor handles compression and decompression of chunk payloads.
//
// Name and Level are recorded in the array metadata document so readers can
// reconstruct the codec without out-of-band knowledge.
type Compressor interface {
	// Name returns the numcodecs identifier ("zstd", "gzip").
	Name() string

	// Level returns the compression level recorded in array metadata.
	Level() int

	// Compress wraps a writer with compression.
	Compress(w io.Writer) (io.WriteCloser, error)

	// Decompress wraps a reader with decompression.
	Decompress(r io.Reader) (io.ReadCloser, error)
}

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

// Error sentinel values for common conditions.
var (
	// ErrNotFound indicates a requested group, array, or object does not exist.
	ErrNotFound = errNotFound{}

	// ErrExists indicates an attempt to create a node or store that already exists.
	ErrExists = errExists{}

	// ErrReadOnly indicates a mutating call on a read-only hierarchy or store.
	ErrReadOnly = errReadOnly{}

	// ErrClosed indicates use of a hierarchy after Close.
	ErrClosed = errClosed{}

	// ErrUnsupportedDType indicates a dtype this implementation does not handle.
	ErrUnsupportedDType = errUnsupportedDType{}

	// ErrBadSelection indicates a hyperslab selection outside the array bounds.
	ErrBadSelection = errBadSelection{}
)

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

type errExists struct{}

func (errExists) Error() string { return "already exists" }

type errReadOnly struct{}

func (errReadOnly) Error() string { return "read-only" }

type errClosed struct{}

func (errClosed) Error() string { return "closed" }

type errUnsupportedDType struct{}

func (errUnsupportedDType) Error() string { return "unsupported dtype" }

type errBadSelection struct{}

func (errBadSelection) Error() string { return "selection out of bounds" }
