package zarr

import (
	"strconv"
	"strings"
)

// -----------------------------------------------------------------------------
// Chunk grid math
// -----------------------------------------------------------------------------

// defaultChunkBytes is the target uncompressed size for automatically chosen
// chunk shapes.
const defaultChunkBytes = 1 << 20

// gridShape returns the number of chunks along each axis (ceiling division).
func gridShape(shape, chunks []int) []int {
	grid := make([]int, len(shape))
	for i := range shape {
		grid[i] = (shape[i] + chunks[i] - 1) / chunks[i]
	}
	return grid
}

// chunkKey renders chunk grid indices as a zarr v2 object key ("2.0.1").
func chunkKey(indices []int) string {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ".")
}

// product returns the element count of a shape. An empty shape has product 1
// (a scalar), matching the zarr convention.
func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// defaultChunks picks a chunk shape for a new array: the final axis is kept
// whole (spectra are read along it) and leading axes are halved, largest
// first, until the chunk fits the target byte size.
func defaultChunks(shape []int, itemSize int) []int {
	chunks := make([]int, len(shape))
	copy(chunks, shape)
	if len(shape) < 2 {
		return chunks
	}
	for product(chunks)*itemSize > defaultChunkBytes {
		largest := 0
		for i := 0; i < len(chunks)-1; i++ {
			if chunks[i] > chunks[largest] {
				largest = i
			}
		}
		if chunks[largest] <= 1 {
			break
		}
		chunks[largest] = (chunks[largest] + 1) / 2
	}
	return chunks
}

// -----------------------------------------------------------------------------
// Selection / chunk intersection
// -----------------------------------------------------------------------------

// box is a half-open rectangular region [start, end) in array index space.
type box struct {
	start []int
	end   []int
}

func (b box) empty() bool {
	for i := range b.start {
		if b.start[i] >= b.end[i] {
			return true
		}
	}
	return false
}

// intersect clips the selection against one chunk's extent.
func intersect(a, b box) box {
	n := len(a.start)
	out := box{start: make([]int, n), end: make([]int, n)}
	for i := 0; i < n; i++ {
		out.start[i] = max(a.start[i], b.start[i])
		out.end[i] = min(a.end[i], b.end[i])
	}
	return out
}

// chunkBox returns the index-space extent covered by the chunk at grid
// position idx, clipped to the array shape for edge chunks.
func chunkBox(idx, chunks, shape []int) box {
	n := len(idx)
	b := box{start: make([]int, n), end: make([]int, n)}
	for i := 0; i < n; i++ {
		b.start[i] = idx[i] * chunks[i]
		b.end[i] = min(b.start[i]+chunks[i], shape[i])
	}
	return b
}

// eachChunkIn invokes fn for every chunk grid index whose extent intersects
// the selection. The callback receives a reused index slice; copy if kept.
func eachChunkIn(sel box, chunks []int, fn func(idx []int) error) error {
	n := len(chunks)
	first := make([]int, n)
	last := make([]int, n)
	for i := 0; i < n; i++ {
		first[i] = sel.start[i] / chunks[i]
		last[i] = (sel.end[i] - 1) / chunks[i]
	}
	idx := make([]int, n)
	copy(idx, first)
	for {
		if err := fn(idx); err != nil {
			return err
		}
		// odometer increment over the chunk index range
		d := n - 1
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d] <= last[d] {
				break
			}
			idx[d] = first[d]
		}
		if d < 0 {
			return nil
		}
	}
}

// copyRegion copies the region between two C-order buffers. src has shape
// srcShape with the region anchored at srcOff; dst has shape dstShape with the
// region anchored at dstOff. The innermost axis is copied as contiguous runs.
func copyRegion[T element](dst []T, dstShape, dstOff []int, src []T, srcShape, srcOff, size []int) {
	n := len(size)
	if n == 0 {
		dst[0] = src[0]
		return
	}
	dstStride := strides(dstShape)
	srcStride := strides(srcShape)
	run := size[n-1]

	// cursor iterates the cartesian product of all axes but the innermost
	cur := make([]int, n-1)
	for {
		dstBase := dstOff[n-1]
		srcBase := srcOff[n-1]
		for i := 0; i < n-1; i++ {
			dstBase += (dstOff[i] + cur[i]) * dstStride[i]
			srcBase += (srcOff[i] + cur[i]) * srcStride[i]
		}
		copy(dst[dstBase:dstBase+run], src[srcBase:srcBase+run])

		d := n - 2
		for ; d >= 0; d-- {
			cur[d]++
			if cur[d] < size[d] {
				break
			}
			cur[d] = 0
		}
		if d < 0 {
			return
		}
	}
}

// strides returns C-order strides for a shape.
func strides(shape []int) []int {
	st := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		st[i] = acc
		acc *= shape[i]
	}
	return st
}
