// Package zarr implements a minimal chunked-array hierarchy compatible with
// the Zarr v2 on-disk layout: groups and N-dimensional arrays addressed by
// slash-separated paths inside an ObjectStore, with JSON metadata objects and
// compressed C-order chunks.
package zarr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Hierarchy is a handle on one zarr tree inside an ObjectStore. Attribute
// writes are staged in memory and persisted by Flush or Close; reads observe
// staged writes. Concurrent readers are safe; writers need external
// coordination.
type Hierarchy struct {
	store    ObjectStore
	readOnly bool

	mu           sync.Mutex
	attrCache    map[string]map[string]any
	dirtyAttrs   map[string]struct{}
	consolidated map[string][]byte
	closed       bool
}

type hierarchyConfig struct {
	readOnly bool
}

// Option configures Open and Create.
type Option func(*hierarchyConfig)

// ReadOnly opens the hierarchy for reading only; every mutating call fails
// with ErrReadOnly.
func ReadOnly() Option {
	return func(c *hierarchyConfig) { c.readOnly = true }
}

// Open attaches to an existing hierarchy. The store must hold a root group.
// When opened read-only and a consolidated metadata object is present, all
// metadata reads are served from it without touching the store again.
func Open(ctx context.Context, store ObjectStore, opts ...Option) (*Hierarchy, error) {
	var cfg hierarchyConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	h := &Hierarchy{
		store:      store,
		readOnly:   cfg.readOnly,
		attrCache:  map[string]map[string]any{},
		dirtyAttrs: map[string]struct{}{},
	}
	if cfg.readOnly {
		if err := h.loadConsolidated(ctx); err != nil {
			return nil, err
		}
	}
	doc, err := h.getMeta(ctx, groupMetaName)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("zarr: open hierarchy: missing root group: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("zarr: open hierarchy: %w", err)
	}
	if err := checkGroupMeta(doc); err != nil {
		return nil, err
	}
	return h, nil
}

// Create initializes a new hierarchy by writing the root group metadata. It
// fails with ErrExists if the store already holds one.
func Create(ctx context.Context, store ObjectStore) (*Hierarchy, error) {
	h := &Hierarchy{
		store:      store,
		attrCache:  map[string]map[string]any{},
		dirtyAttrs: map[string]struct{}{},
	}
	ok, err := store.Exists(ctx, groupMetaName)
	if err != nil {
		return nil, fmt.Errorf("zarr: create hierarchy: %w", err)
	}
	if ok {
		return nil, fmt.Errorf("zarr: create hierarchy: root group: %w", ErrExists)
	}
	doc, err := encodeGroupMeta()
	if err != nil {
		return nil, err
	}
	if err := h.putObject(ctx, groupMetaName, doc); err != nil {
		return nil, err
	}
	return h, nil
}

// Root returns the root group.
func (h *Hierarchy) Root() *Group {
	return &Group{h: h, path: ""}
}

// ReadOnly reports whether mutating calls are rejected.
func (h *Hierarchy) ReadOnly() bool {
	return h.readOnly
}

// Flush persists staged attribute writes and refreshes the consolidated
// metadata object. It is a no-op on read-only hierarchies.
func (h *Hierarchy) Flush(ctx context.Context) error {
	if h.readOnly {
		return nil
	}
	h.mu.Lock()
	dirty := make([]string, 0, len(h.dirtyAttrs))
	for path := range h.dirtyAttrs {
		dirty = append(dirty, path)
	}
	docs := make(map[string][]byte, len(dirty))
	for _, path := range dirty {
		doc, err := encodeAttrs(h.attrCache[path])
		if err != nil {
			h.mu.Unlock()
			return err
		}
		docs[path] = doc
	}
	h.mu.Unlock()

	for _, path := range dirty {
		if err := h.putObject(ctx, joinKey(path, attrsMetaName), docs[path]); err != nil {
			return err
		}
		h.mu.Lock()
		delete(h.dirtyAttrs, path)
		h.mu.Unlock()
	}
	return h.writeConsolidated(ctx)
}

// Close flushes pending writes and releases the store if it holds resources.
// Closing twice is harmless.
func (h *Hierarchy) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	var flushErr error
	if !h.readOnly {
		flushErr = h.Flush(ctx)
	}
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	var closeErr error
	if c, ok := h.store.(io.Closer); ok {
		closeErr = c.Close()
	}
	return errors.Join(flushErr, closeErr)
}

// -----------------------------------------------------------------------------
// Object access
// -----------------------------------------------------------------------------

func (h *Hierarchy) checkOpen() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	return nil
}

func (h *Hierarchy) getObject(ctx context.Context, key string) ([]byte, error) {
	if err := h.checkOpen(); err != nil {
		return nil, fmt.Errorf("zarr: read %q: %w", key, err)
	}
	rc, err := h.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(rc)
	if cerr := rc.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("zarr: read %q: %w", key, err)
	}
	return data, nil
}

func (h *Hierarchy) putObject(ctx context.Context, key string, data []byte) error {
	if h.readOnly {
		return fmt.Errorf("zarr: write %q: %w", key, ErrReadOnly)
	}
	if err := h.checkOpen(); err != nil {
		return fmt.Errorf("zarr: write %q: %w", key, err)
	}
	return h.store.Put(ctx, key, bytes.NewReader(data))
}

// getMeta reads a metadata object, preferring the consolidated snapshot when
// one was loaded at open time.
func (h *Hierarchy) getMeta(ctx context.Context, key string) ([]byte, error) {
	h.mu.Lock()
	if h.consolidated != nil {
		doc, ok := h.consolidated[key]
		h.mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("zarr: get %q: %w", key, ErrNotFound)
		}
		return doc, nil
	}
	h.mu.Unlock()
	return h.getObject(ctx, key)
}

func (h *Hierarchy) metaExists(ctx context.Context, key string) (bool, error) {
	h.mu.Lock()
	if h.consolidated != nil {
		_, ok := h.consolidated[key]
		h.mu.Unlock()
		return ok, nil
	}
	h.mu.Unlock()
	return h.store.Exists(ctx, key)
}

func (h *Hierarchy) loadConsolidated(ctx context.Context) error {
	ok, err := h.store.Exists(ctx, consolidatedMetaName)
	if err != nil || !ok {
		return err
	}
	raw, err := h.getObject(ctx, consolidatedMetaName)
	if err != nil {
		return err
	}
	docs, err := parseConsolidated(raw)
	if err != nil {
		return err
	}
	h.consolidated = docs
	return nil
}

// writeConsolidated rewrites the consolidated metadata object from the live
// metadata objects in the store.
func (h *Hierarchy) writeConsolidated(ctx context.Context) error {
	keys, err := h.store.List(ctx, "")
	if err != nil {
		return err
	}
	docs := map[string][]byte{}
	for _, key := range keys {
		if !isMetaKey(key) {
			continue
		}
		doc, err := h.getObject(ctx, key)
		if err != nil {
			return err
		}
		docs[key] = doc
	}
	raw, err := encodeConsolidated(docs)
	if err != nil {
		return err
	}
	return h.putObject(ctx, consolidatedMetaName, raw)
}

func isMetaKey(key string) bool {
	name := key
	if i := strings.LastIndex(key, "/"); i >= 0 {
		name = key[i+1:]
	}
	switch name {
	case groupMetaName, arrayMetaName, attrsMetaName:
		return true
	}
	return false
}

// -----------------------------------------------------------------------------
// Node lookup
// -----------------------------------------------------------------------------

func (h *Hierarchy) isGroup(ctx context.Context, path string) (bool, error) {
	return h.metaExists(ctx, joinKey(path, groupMetaName))
}

func (h *Hierarchy) isArray(ctx context.Context, path string) (bool, error) {
	return h.metaExists(ctx, joinKey(path, arrayMetaName))
}

// children lists the direct child node names of a group, split by kind.
func (h *Hierarchy) children(ctx context.Context, path string) (groups, arrays []string, err error) {
	prefix := joinKey(path)
	if prefix != "" {
		prefix += "/"
	}

	var keys []string
	h.mu.Lock()
	if h.consolidated != nil {
		for k := range h.consolidated {
			keys = append(keys, k)
		}
		h.mu.Unlock()
	} else {
		h.mu.Unlock()
		keys, err = h.store.List(ctx, prefix)
		if err != nil {
			return nil, nil, err
		}
	}

	groupSet := map[string]struct{}{}
	arraySet := map[string]struct{}{}
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		parts := strings.SplitN(rest, "/", 3)
		if len(parts) != 2 {
			continue
		}
		switch parts[1] {
		case groupMetaName:
			groupSet[parts[0]] = struct{}{}
		case arrayMetaName:
			arraySet[parts[0]] = struct{}{}
		}
	}
	for name := range groupSet {
		groups = append(groups, name)
	}
	for name := range arraySet {
		arrays = append(arrays, name)
	}
	sort.Strings(groups)
	sort.Strings(arrays)
	return groups, arrays, nil
}

// -----------------------------------------------------------------------------
// Attribute staging
// -----------------------------------------------------------------------------

// loadAttrs returns the staged attribute document for a node, loading it from
// the store on first access. Callers outside this file receive copies; the
// map itself is shared staging state guarded by h.mu.
func (h *Hierarchy) loadAttrs(ctx context.Context, path string) (map[string]any, error) {
	h.mu.Lock()
	if doc, ok := h.attrCache[path]; ok {
		h.mu.Unlock()
		return doc, nil
	}
	h.mu.Unlock()

	raw, err := h.getMeta(ctx, joinKey(path, attrsMetaName))
	var doc map[string]any
	switch {
	case err == nil:
		doc, err = parseAttrs(raw)
		if err != nil {
			return nil, err
		}
	case errors.Is(err, ErrNotFound):
		doc = map[string]any{}
	default:
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if cached, ok := h.attrCache[path]; ok {
		return cached, nil
	}
	h.attrCache[path] = doc
	return doc, nil
}

func (h *Hierarchy) nodeAttrs(ctx context.Context, path string) (map[string]any, error) {
	doc, err := h.loadAttrs(ctx, path)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out, nil
}

func (h *Hierarchy) setNodeAttr(ctx context.Context, path, key string, value any) error {
	if h.readOnly {
		return fmt.Errorf("zarr: set attribute %q: %w", key, ErrReadOnly)
	}
	doc, err := h.loadAttrs(ctx, path)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	doc[key] = value
	h.dirtyAttrs[path] = struct{}{}
	return nil
}
