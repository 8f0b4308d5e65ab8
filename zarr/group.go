package zarr

import (
	"context"
	"fmt"
)

// Group is a named node that holds child groups and arrays plus a JSON
// attribute document.
type Group struct {
	h    *Hierarchy
	path string
}

// Path returns the slash-separated path from the root ("" for the root).
func (g *Group) Path() string {
	return g.path
}

// Name returns the final path segment ("" for the root).
func (g *Group) Name() string {
	_, name := splitNodePath(g.path)
	return name
}

// Group opens a direct child group.
func (g *Group) Group(ctx context.Context, name string) (*Group, error) {
	path := joinKey(g.path, name)
	ok, err := g.h.isGroup(ctx, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("zarr: group %q: %w", path, ErrNotFound)
	}
	return &Group{h: g.h, path: path}, nil
}

// CreateGroup creates a direct child group. It fails with ErrExists if a node
// of either kind is already present under that name.
func (g *Group) CreateGroup(ctx context.Context, name string) (*Group, error) {
	if name == "" {
		return nil, fmt.Errorf("zarr: create group: empty name")
	}
	path := joinKey(g.path, name)
	if err := g.h.checkVacant(ctx, path); err != nil {
		return nil, fmt.Errorf("zarr: create group %q: %w", path, err)
	}
	doc, err := encodeGroupMeta()
	if err != nil {
		return nil, err
	}
	if err := g.h.putObject(ctx, joinKey(path, groupMetaName), doc); err != nil {
		return nil, err
	}
	return &Group{h: g.h, path: path}, nil
}

// Groups returns the names of the direct child groups in lexical order.
func (g *Group) Groups(ctx context.Context) ([]string, error) {
	groups, _, err := g.h.children(ctx, g.path)
	return groups, err
}

// Arrays returns the names of the direct child arrays in lexical order.
func (g *Group) Arrays(ctx context.Context) ([]string, error) {
	_, arrays, err := g.h.children(ctx, g.path)
	return arrays, err
}

// HasGroup reports whether a direct child group exists.
func (g *Group) HasGroup(ctx context.Context, name string) (bool, error) {
	return g.h.isGroup(ctx, joinKey(g.path, name))
}

// HasArray reports whether a direct child array exists.
func (g *Group) HasArray(ctx context.Context, name string) (bool, error) {
	return g.h.isArray(ctx, joinKey(g.path, name))
}

// Array opens a direct child array.
func (g *Group) Array(ctx context.Context, name string) (*Array, error) {
	path := joinKey(g.path, name)
	raw, err := g.h.getMeta(ctx, joinKey(path, arrayMetaName))
	if err != nil {
		return nil, fmt.Errorf("zarr: array %q: %w", path, err)
	}
	meta, err := parseArrayMeta(raw)
	if err != nil {
		return nil, fmt.Errorf("zarr: array %q: %w", path, err)
	}
	return &Array{h: g.h, path: path, meta: meta}, nil
}

// CreateArray creates a direct child array with the given shape and dtype.
// Chunk shape, compressor and fill value can be overridden per array.
func (g *Group) CreateArray(ctx context.Context, name string, shape []int, dtype DType, opts ...ArrayOption) (*Array, error) {
	if name == "" {
		return nil, fmt.Errorf("zarr: create array: empty name")
	}
	if len(shape) == 0 {
		return nil, fmt.Errorf("zarr: create array %q: scalar arrays are not supported", name)
	}
	for _, dim := range shape {
		if dim <= 0 {
			return nil, fmt.Errorf("zarr: create array %q: invalid dimension %d", name, dim)
		}
	}
	path := joinKey(g.path, name)
	if err := g.h.checkVacant(ctx, path); err != nil {
		return nil, fmt.Errorf("zarr: create array %q: %w", path, err)
	}

	meta := &arrayMeta{
		Shape:      append([]int(nil), shape...),
		DType:      dtype,
		Compressor: NewZstdCompressor(0),
		Fill:       dtype.defaultFill(),
	}
	for _, opt := range opts {
		opt(meta)
	}
	if meta.Chunks == nil {
		meta.Chunks = defaultChunks(meta.Shape, dtype.Size())
	}
	if len(meta.Chunks) != len(meta.Shape) {
		return nil, fmt.Errorf("zarr: create array %q: chunk rank %d does not match shape rank %d",
			path, len(meta.Chunks), len(meta.Shape))
	}
	for i, c := range meta.Chunks {
		if c <= 0 || c > meta.Shape[i] {
			return nil, fmt.Errorf("zarr: create array %q: invalid chunk size %d for axis %d", path, c, i)
		}
	}

	doc, err := meta.encode()
	if err != nil {
		return nil, err
	}
	if err := g.h.putObject(ctx, joinKey(path, arrayMetaName), doc); err != nil {
		return nil, err
	}
	return &Array{h: g.h, path: path, meta: meta}, nil
}

// Attrs returns a copy of the group's attribute document.
func (g *Group) Attrs(ctx context.Context) (map[string]any, error) {
	return g.h.nodeAttrs(ctx, g.path)
}

// Attr returns one attribute and whether it is present.
func (g *Group) Attr(ctx context.Context, key string) (any, bool, error) {
	attrs, err := g.h.nodeAttrs(ctx, g.path)
	if err != nil {
		return nil, false, err
	}
	v, ok := attrs[key]
	return v, ok, nil
}

// SetAttr stages one attribute write. Values must be JSON-encodable.
func (g *Group) SetAttr(ctx context.Context, key string, value any) error {
	return g.h.setNodeAttr(ctx, g.path, key, value)
}

// checkVacant fails with ErrExists when a node of either kind occupies path.
func (h *Hierarchy) checkVacant(ctx context.Context, path string) error {
	if isGroup, err := h.isGroup(ctx, path); err != nil {
		return err
	} else if isGroup {
		return ErrExists
	}
	if isArray, err := h.isArray(ctx, path); err != nil {
		return err
	} else if isArray {
		return ErrExists
	}
	return nil
}

// ArrayOption overrides one aspect of a new array.
type ArrayOption func(*arrayMeta)

// WithChunks sets the chunk shape. It must match the array rank.
func WithChunks(chunks []int) ArrayOption {
	return func(m *arrayMeta) { m.Chunks = append([]int(nil), chunks...) }
}

// WithCompressor sets the chunk compressor.
func WithCompressor(c Compressor) ArrayOption {
	return func(m *arrayMeta) { m.Compressor = c }
}

// WithFill sets the fill value returned for unwritten regions.
func WithFill(fill float64) ArrayOption {
	return func(m *arrayMeta) { m.Fill = fill }
}
