package zarr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
)

// Array is an N-dimensional typed dataset stored as compressed C-order
// chunks. Reads materialize values as float64 or int64 regardless of the
// stored dtype; narrower dtypes widen on read and truncate on write.
type Array struct {
	h    *Hierarchy
	path string
	meta *arrayMeta
}

// Path returns the slash-separated path from the root.
func (a *Array) Path() string {
	return a.path
}

// Name returns the final path segment.
func (a *Array) Name() string {
	_, name := splitNodePath(a.path)
	return name
}

// Shape returns a copy of the array shape.
func (a *Array) Shape() []int {
	return append([]int(nil), a.meta.Shape...)
}

// ChunkShape returns a copy of the chunk shape.
func (a *Array) ChunkShape() []int {
	return append([]int(nil), a.meta.Chunks...)
}

// DType returns the stored element type.
func (a *Array) DType() DType {
	return a.meta.DType
}

// Size returns the total number of elements.
func (a *Array) Size() int {
	return product(a.meta.Shape)
}

// Attrs returns a copy of the array's attribute document.
func (a *Array) Attrs(ctx context.Context) (map[string]any, error) {
	return a.h.nodeAttrs(ctx, a.path)
}

// Attr returns one attribute and whether it is present.
func (a *Array) Attr(ctx context.Context, key string) (any, bool, error) {
	attrs, err := a.h.nodeAttrs(ctx, a.path)
	if err != nil {
		return nil, false, err
	}
	v, ok := attrs[key]
	return v, ok, nil
}

// SetAttr stages one attribute write. Values must be JSON-encodable.
func (a *Array) SetAttr(ctx context.Context, key string, value any) error {
	return a.h.setNodeAttr(ctx, a.path, key, value)
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

// Float64 reads the whole array in C order.
func (a *Array) Float64(ctx context.Context) ([]float64, error) {
	return readSlice[float64](ctx, a, make([]int, len(a.meta.Shape)), a.Shape())
}

// Int64 reads the whole array in C order, truncating float values.
func (a *Array) Int64(ctx context.Context) ([]int64, error) {
	return readSlice[int64](ctx, a, make([]int, len(a.meta.Shape)), a.Shape())
}

// SliceFloat64 reads the hyperslab starting at start with the given count
// along each axis, touching only the chunks the selection intersects.
func (a *Array) SliceFloat64(ctx context.Context, start, count []int) ([]float64, error) {
	return readSlice[float64](ctx, a, start, count)
}

// SliceInt64 reads a hyperslab as int64 values.
func (a *Array) SliceInt64(ctx context.Context, start, count []int) ([]int64, error) {
	return readSlice[int64](ctx, a, start, count)
}

// -----------------------------------------------------------------------------
// Writes
// -----------------------------------------------------------------------------

// WriteFloat64 writes the whole array from a C-order buffer.
func (a *Array) WriteFloat64(ctx context.Context, vals []float64) error {
	return writeFull(ctx, a, vals)
}

// WriteInt64 writes the whole array from a C-order buffer.
func (a *Array) WriteInt64(ctx context.Context, vals []int64) error {
	return writeFull(ctx, a, vals)
}

// -----------------------------------------------------------------------------
// Engine
// -----------------------------------------------------------------------------

func (a *Array) checkSelection(start, count []int) error {
	rank := len(a.meta.Shape)
	if len(start) != rank || len(count) != rank {
		return fmt.Errorf("zarr: array %q: selection rank does not match array rank %d: %w",
			a.path, rank, ErrBadSelection)
	}
	for i := 0; i < rank; i++ {
		if start[i] < 0 || count[i] < 1 || start[i]+count[i] > a.meta.Shape[i] {
			return fmt.Errorf("zarr: array %q: selection [%d:%d) exceeds axis %d extent %d: %w",
				a.path, start[i], start[i]+count[i], i, a.meta.Shape[i], ErrBadSelection)
		}
	}
	return nil
}

func readSlice[T element](ctx context.Context, a *Array, start, count []int) ([]T, error) {
	if err := a.checkSelection(start, count); err != nil {
		return nil, err
	}
	sel := box{start: start, end: addVec(start, count)}
	out := make([]T, product(count))
	fill := fillAs[T](a.meta.Fill)
	for i := range out {
		out[i] = fill
	}
	err := eachChunkIn(sel, a.meta.Chunks, func(idx []int) error {
		vals, ok, err := readChunk[T](ctx, a, idx)
		if err != nil {
			return err
		}
		if !ok {
			// missing chunk: the selection keeps the fill value
			return nil
		}
		cb := chunkBox(idx, a.meta.Chunks, a.meta.Shape)
		inter := intersect(sel, cb)
		if inter.empty() {
			return nil
		}
		size := subVec(inter.end, inter.start)
		copyRegion(out, count, subVec(inter.start, sel.start), vals, a.meta.Chunks, subVec(inter.start, cb.start), size)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func writeFull[T element](ctx context.Context, a *Array, vals []T) error {
	if a.h.readOnly {
		return fmt.Errorf("zarr: write array %q: %w", a.path, ErrReadOnly)
	}
	want := product(a.meta.Shape)
	if len(vals) != want {
		return fmt.Errorf("zarr: write array %q: got %d values, want %d: %w",
			a.path, len(vals), want, ErrBadSelection)
	}
	full := box{start: make([]int, len(a.meta.Shape)), end: a.meta.Shape}
	fill := fillAs[T](a.meta.Fill)
	buf := make([]T, product(a.meta.Chunks))
	return eachChunkIn(full, a.meta.Chunks, func(idx []int) error {
		cb := chunkBox(idx, a.meta.Chunks, a.meta.Shape)
		size := subVec(cb.end, cb.start)
		if product(size) != len(buf) {
			// edge chunk: pad the unused tail with fill
			for i := range buf {
				buf[i] = fill
			}
		}
		copyRegion(buf, a.meta.Chunks, make([]int, len(size)), vals, a.meta.Shape, cb.start, size)
		return writeChunk(ctx, a, idx, buf)
	})
}

// readChunk fetches and decodes one chunk. The second result is false when
// the chunk object does not exist.
func readChunk[T element](ctx context.Context, a *Array, idx []int) ([]T, bool, error) {
	key := joinKey(a.path, chunkKey(idx))
	if err := a.h.checkOpen(); err != nil {
		return nil, false, err
	}
	rc, err := a.h.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	dec, err := a.meta.Compressor.Decompress(rc)
	if err != nil {
		rc.Close()
		return nil, false, err
	}
	raw, err := io.ReadAll(dec)
	if cerr := dec.Close(); err == nil {
		err = cerr
	}
	if cerr := rc.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, false, fmt.Errorf("zarr: read chunk %q: %w", key, err)
	}
	vals, err := decodeElems[T](raw, a.meta.DType)
	if err != nil {
		return nil, false, err
	}
	if len(vals) != product(a.meta.Chunks) {
		return nil, false, fmt.Errorf("zarr: chunk %q holds %d elements, want %d", key, len(vals), product(a.meta.Chunks))
	}
	return vals, true, nil
}

func writeChunk[T element](ctx context.Context, a *Array, idx []int, vals []T) error {
	raw, err := encodeElems(vals, a.meta.DType)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	cw, err := a.meta.Compressor.Compress(&buf)
	if err != nil {
		return err
	}
	if _, err := cw.Write(raw); err != nil {
		cw.Close()
		return fmt.Errorf("zarr: compress chunk: %w", err)
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("zarr: compress chunk: %w", err)
	}
	return a.h.putObject(ctx, joinKey(a.path, chunkKey(idx)), buf.Bytes())
}

// fillAs converts the metadata fill value to the in-memory element type.
// Non-finite fills collapse to zero for integer reads.
func fillAs[T element](fill float64) T {
	var zero T
	if math.IsNaN(fill) || math.IsInf(fill, 0) {
		if _, isInt := any(zero).(int64); isInt {
			return zero
		}
	}
	return T(fill)
}

func addVec(a, b []int) []int {
	out := make([]int, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

func subVec(a, b []int) []int {
	out := make([]int, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}
