package brim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/brim-format/brim-go/zarr"
)

// -----------------------------------------------------------------------------
// Options
// -----------------------------------------------------------------------------

// Option configures Open and Create.
type Option func(*fileConfig)

type fileConfig struct {
	readWrite bool
	store     zarr.ObjectStore
	comp      zarr.Compressor
	tol       GridTolerances
}

// ReadWrite opens the container for mutation. Containers open read-only by
// default; Create ignores this option and always yields a writable handle.
func ReadWrite() Option {
	return func(c *fileConfig) { c.readWrite = true }
}

// WithStore uses the given object store instead of deriving one from the
// path. The path then only labels the container in error messages.
func WithStore(st zarr.ObjectStore) Option {
	return func(c *fileConfig) { c.store = st }
}

// WithCompressor selects the chunk compressor for arrays created through
// this handle. The backend default is zstd.
func WithCompressor(comp zarr.Compressor) Option {
	return func(c *fileConfig) { c.comp = comp }
}

// WithGridTolerances overrides the spatial reconstruction tolerances.
func WithGridTolerances(tol GridTolerances) Option {
	return func(c *fileConfig) { c.tol = tol }
}

func newFileConfig(opts []Option) fileConfig {
	cfg := fileConfig{
		tol: GridTolerances{CoordRel: defaultCoordRel, ExtentAbs: defaultExtentAbs},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// -----------------------------------------------------------------------------
// File
// -----------------------------------------------------------------------------

// File is an open brim container.
//
// A File and the accessors derived from it are safe for concurrent readers;
// mutations need external coordination, and only one writer may hold a
// container at a time. Within one handle reads observe prior writes; other
// handles see staged changes only after Flush or Close.
type File struct {
	hier *zarr.Hierarchy
	base *zarr.Group
	tol  GridTolerances
	comp zarr.Compressor
}

// Open opens an existing brim container.
//
// The backend is derived from the path: names ending in ".zip" open the zip
// backend, anything else a directory tree; WithStore overrides this.
// Containers open read-only unless ReadWrite is given; zip containers cannot
// be opened for writing.
func Open(ctx context.Context, path string, opts ...Option) (*File, error) {
	cfg := newFileConfig(opts)

	store := cfg.store
	if store == nil {
		var err error
		if isZipPath(path) {
			if cfg.readWrite {
				return nil, fmt.Errorf("brim: open %s: zip containers cannot be modified in place: %w", path, ErrReadOnly)
			}
			store, err = zarr.OpenZipStore(path)
		} else {
			store, err = zarr.NewDirStore(path)
		}
		if err != nil {
			return nil, fmt.Errorf("brim: open %s: %w", path, mapErr(err))
		}
	}

	var zopts []zarr.Option
	if !cfg.readWrite {
		zopts = append(zopts, zarr.ReadOnly())
	}
	h, err := zarr.Open(ctx, store, zopts...)
	if err != nil {
		if errors.Is(err, zarr.ErrNotFound) {
			return nil, fmt.Errorf("brim: open %s: %w", path, ErrNotContainer)
		}
		return nil, fmt.Errorf("brim: open %s: %w", path, mapErr(err))
	}

	f := &File{hier: h, tol: cfg.tol, comp: cfg.comp}
	if err := f.validate(ctx); err != nil {
		_ = h.Close(ctx)
		return nil, fmt.Errorf("brim: open %s: %w", path, err)
	}
	return f, nil
}

// Create initializes a new brim container at path, failing with ErrExists
// when the target is occupied. Names ending in ".zip" produce a zip archive
// assembled when the file is closed. The handle is writable.
func Create(ctx context.Context, path string, opts ...Option) (*File, error) {
	cfg := newFileConfig(opts)

	store := cfg.store
	if store == nil {
		var err error
		if isZipPath(path) {
			store, err = zarr.CreateZipStore(path)
		} else {
			store, err = zarr.CreateDirStore(path)
		}
		if err != nil {
			return nil, fmt.Errorf("brim: create %s: %w", path, mapErr(err))
		}
	}

	h, err := zarr.Create(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("brim: create %s: %w", path, mapErr(err))
	}
	root := h.Root()
	if err := root.SetAttr(ctx, versionAttr, currentVersion); err != nil {
		return nil, fmt.Errorf("brim: create %s: %w", path, mapErr(err))
	}
	base, err := root.CreateGroup(ctx, baseGroupName)
	if err != nil {
		return nil, fmt.Errorf("brim: create %s: %w", path, mapErr(err))
	}
	if _, err := base.CreateGroup(ctx, metadataGroupName); err != nil {
		return nil, fmt.Errorf("brim: create %s: %w", path, mapErr(err))
	}
	return &File{hier: h, base: base, tol: cfg.tol, comp: cfg.comp}, nil
}

func isZipPath(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".zip")
}

// validate checks the version attribute and base group, binding f.base.
func (f *File) validate(ctx context.Context) error {
	raw, ok, err := f.hier.Root().Attr(ctx, versionAttr)
	if err != nil {
		return mapErr(err)
	}
	if !ok {
		return ErrNotContainer
	}
	version, ok := raw.(string)
	if !ok {
		return ErrNotContainer
	}
	if !supportedVersions[version] {
		return fmt.Errorf("version %q: %w", version, ErrUnsupportedVersion)
	}
	base, err := f.hier.Root().Group(ctx, baseGroupName)
	if err != nil {
		if errors.Is(err, zarr.ErrNotFound) {
			return ErrNotContainer
		}
		return mapErr(err)
	}
	f.base = base
	return nil
}

// Valid reports whether the container still looks like a brim file of a
// supported version.
func (f *File) Valid(ctx context.Context) bool {
	return f.validate(ctx) == nil
}

// IsReadOnly reports whether mutating calls will be rejected.
func (f *File) IsReadOnly() bool {
	return f.hier.ReadOnly()
}

// Flush persists staged structural changes without closing the container.
func (f *File) Flush(ctx context.Context) error {
	if err := f.hier.Flush(ctx); err != nil {
		return fmt.Errorf("brim: flush: %w", mapErr(err))
	}
	return nil
}

// Close flushes staged changes and releases the backend. Closing twice is
// harmless.
func (f *File) Close(ctx context.Context) error {
	if err := f.hier.Close(ctx); err != nil {
		return fmt.Errorf("brim: close: %w", mapErr(err))
	}
	return nil
}

// Metadata returns the accessor for the file-global metadata record.
func (f *File) Metadata() *Metadata {
	return &Metadata{f: f}
}

// -----------------------------------------------------------------------------
// Data group listing
// -----------------------------------------------------------------------------

// DataGroupInfo identifies one data group.
type DataGroupInfo struct {
	// Index is the creation-order index parsed from the group id.
	Index int
	// ID is the stored group id, e.g. "Data_0".
	ID string
	// Name is the custom display name when set, the id otherwise.
	Name string
}

// ListDataGroups enumerates the container's data groups in creation order.
func (f *File) ListDataGroups(ctx context.Context) ([]DataGroupInfo, error) {
	names, err := f.base.Groups(ctx)
	if err != nil {
		return nil, fmt.Errorf("brim: list data groups: %w", mapErr(err))
	}
	infos := make([]DataGroupInfo, 0, len(names))
	for _, id := range names {
		index, ok := parseNumberedName(dataGroupPrefix, id)
		if !ok {
			continue
		}
		g, err := f.base.Group(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("brim: list data groups: %w", mapErr(err))
		}
		name, err := effectiveName(ctx, g, id)
		if err != nil {
			return nil, fmt.Errorf("brim: list data groups: %w", err)
		}
		infos = append(infos, DataGroupInfo{Index: index, ID: id, Name: name})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Index < infos[j].Index })
	return infos, nil
}

// DataGroup binds the accessor for the data group with the given effective
// name.
func (f *File) DataGroup(ctx context.Context, name string) (*Data, error) {
	infos, err := f.ListDataGroups(ctx)
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		if info.Name == name {
			return f.bindData(ctx, info)
		}
	}
	return nil, fmt.Errorf("brim: data group %q: %w", name, ErrNotFound)
}

// DataGroupAt binds the accessor for the data group with the given index.
func (f *File) DataGroupAt(ctx context.Context, index int) (*Data, error) {
	infos, err := f.ListDataGroups(ctx)
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		if info.Index == index {
			return f.bindData(ctx, info)
		}
	}
	return nil, fmt.Errorf("brim: data group %d: %w", index, ErrNotFound)
}

func (f *File) bindData(ctx context.Context, info DataGroupInfo) (*Data, error) {
	g, err := f.base.Group(ctx, info.ID)
	if err != nil {
		return nil, fmt.Errorf("brim: data group %q: %w", info.ID, mapErr(err))
	}
	sparse, err := loadSparseFlag(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("brim: data group %q: %w", info.ID, err)
	}
	return &Data{f: f, g: g, id: info.ID, index: info.Index, sparse: sparse}, nil
}

// loadSparseFlag reads the Sparse attribute; anything but an explicit true
// counts as dense.
func loadSparseFlag(ctx context.Context, g *zarr.Group) (bool, error) {
	raw, ok, err := g.Attr(ctx, sparseAttr)
	if err != nil {
		return false, mapErr(err)
	}
	if !ok {
		return false, nil
	}
	b, isBool := raw.(bool)
	return isBool && b, nil
}

// -----------------------------------------------------------------------------
// Data group creation
// -----------------------------------------------------------------------------

// SpectralCube is the raw acquisition payload for a new data group.
//
// Dense acquisitions use Shape {Nz, Ny, Nx, Nf}, sparse ones {Ns, Nf}. PSD
// is in C order; Frequency holds the Nf frequency-axis values shared by
// every spectrum.
type SpectralCube struct {
	PSD       []float64
	Shape     []int
	Frequency []float64
}

func (c SpectralCube) validate(rank int) error {
	if len(c.Shape) != rank {
		return fmt.Errorf("cube must have %d axes, got %d", rank, len(c.Shape))
	}
	size := 1
	for _, n := range c.Shape {
		if n <= 0 {
			return fmt.Errorf("cube shape %v has a non-positive axis", c.Shape)
		}
		size *= n
	}
	if len(c.PSD) != size {
		return fmt.Errorf("cube holds %d values, shape %v wants %d", len(c.PSD), c.Shape, size)
	}
	if nf := c.Shape[len(c.Shape)-1]; len(c.Frequency) != nf {
		return fmt.Errorf("frequency axis holds %d values, cube wants %d", len(c.Frequency), nf)
	}
	return nil
}

// DataGroupConfig carries the optional properties of a new data group. The
// zero value is ready to use.
type DataGroupConfig struct {
	// Name is a custom display name, checked against the effective names of
	// existing groups. Empty means none.
	Name string

	// PSDUnits annotates the raw PSD values. Empty means unit-less.
	PSDUnits string

	// FrequencyUnits annotates the frequency axis. Defaults to "GHz".
	FrequencyUnits string

	// Timestamps holds per-spectrum acquisition times in milliseconds, one
	// per spectrum in storage order. Nil stores none.
	Timestamps []float64
}

// ScanLayout locates each spectrum of a sparse acquisition in space. At
// least one coordinate array or the index map must be present.
type ScanLayout struct {
	// X, Y, Z hold per-spectrum physical coordinates. Axes the scan never
	// moved along may be nil; the rest must match the spectrum count.
	X, Y, Z []float64

	// CoordUnits annotates the coordinate arrays. Defaults to "um".
	CoordUnits string

	// IndexMap is a dense C-order (Nz, Ny, Nx) grid of spectrum indices,
	// with -1 marking cells the scan never visited.
	IndexMap      []int64
	IndexMapShape []int

	// PixelSize is the physical (z, y, x) spacing of IndexMap cells in
	// PixelUnits. Nil leaves it unrecorded.
	PixelSize  []float64
	PixelUnits string
}

// CreateDataGroup writes a dense acquisition into a new data group.
//
// The cube carries shape {Nz, Ny, Nx, Nf}; pixelSize is the physical
// (z, y, x) spacing in micrometres, with 1 conventionally used on collapsed
// axes.
func (f *File) CreateDataGroup(ctx context.Context, cube SpectralCube, pixelSize [3]float64, cfg DataGroupConfig) (*Data, error) {
	if f.IsReadOnly() {
		return nil, fmt.Errorf("brim: create data group: %w", ErrReadOnly)
	}
	if err := cube.validate(4); err != nil {
		return nil, fmt.Errorf("brim: create data group: %w", err)
	}
	for _, p := range pixelSize {
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
			return nil, fmt.Errorf("brim: create data group: pixel size %v needs positive entries", pixelSize)
		}
	}
	spectra := cube.Shape[0] * cube.Shape[1] * cube.Shape[2]
	if cfg.Timestamps != nil && len(cfg.Timestamps) != spectra {
		return nil, fmt.Errorf("brim: create data group: %d timestamps for %d spectra", len(cfg.Timestamps), spectra)
	}

	info, g, err := f.newDataGroup(ctx, cfg.Name, false)
	if err != nil {
		return nil, err
	}
	if err := g.SetAttr(ctx, elementSizeAttr, pixelSize[:]); err != nil {
		return nil, fmt.Errorf("brim: create data group: %w", mapErr(err))
	}
	if err := g.SetAttr(ctx, attrUnits(elementSizeAttr), defaultSpatialUnits); err != nil {
		return nil, fmt.Errorf("brim: create data group: %w", mapErr(err))
	}
	if err := f.writeCube(ctx, g, cube, cfg); err != nil {
		return nil, fmt.Errorf("brim: create data group: %w", err)
	}
	return &Data{f: f, g: g, id: info.ID, index: info.Index, sparse: false}, nil
}

// CreateSparseDataGroup writes a sparse acquisition into a new data group.
//
// The cube carries shape {Ns, Nf}; scan locates each of the Ns spectra in
// space, through per-spectrum coordinates, a dense index map, or both.
func (f *File) CreateSparseDataGroup(ctx context.Context, cube SpectralCube, scan ScanLayout, cfg DataGroupConfig) (*Data, error) {
	if f.IsReadOnly() {
		return nil, fmt.Errorf("brim: create data group: %w", ErrReadOnly)
	}
	if err := cube.validate(2); err != nil {
		return nil, fmt.Errorf("brim: create data group: %w", err)
	}
	ns := cube.Shape[0]
	if err := validateScan(scan, ns); err != nil {
		return nil, fmt.Errorf("brim: create data group: %w", err)
	}
	if cfg.Timestamps != nil && len(cfg.Timestamps) != ns {
		return nil, fmt.Errorf("brim: create data group: %d timestamps for %d spectra", len(cfg.Timestamps), ns)
	}

	info, g, err := f.newDataGroup(ctx, cfg.Name, true)
	if err != nil {
		return nil, err
	}
	if err := f.writeCube(ctx, g, cube, cfg); err != nil {
		return nil, fmt.Errorf("brim: create data group: %w", err)
	}
	if err := f.writeScanLayout(ctx, g, scan, ns); err != nil {
		return nil, fmt.Errorf("brim: create data group: %w", err)
	}
	return &Data{f: f, g: g, id: info.ID, index: info.Index, sparse: true}, nil
}

// validateScan checks the layout against the spectrum count.
func validateScan(scan ScanLayout, ns int) error {
	hasCoords := false
	for _, proj := range [][]float64{scan.Z, scan.Y, scan.X} {
		if proj == nil {
			continue
		}
		hasCoords = true
		if len(proj) != ns {
			return fmt.Errorf("coordinate arrays must hold %d entries, got %d", ns, len(proj))
		}
	}
	if scan.IndexMap == nil {
		if !hasCoords {
			return fmt.Errorf("scan layout needs coordinates or an index map")
		}
		return nil
	}
	if len(scan.IndexMapShape) != 3 {
		return fmt.Errorf("index map must be 3-dimensional, got shape %v", scan.IndexMapShape)
	}
	size := 1
	for _, n := range scan.IndexMapShape {
		if n <= 0 {
			return fmt.Errorf("index map shape %v has a non-positive axis", scan.IndexMapShape)
		}
		size *= n
	}
	if len(scan.IndexMap) != size {
		return fmt.Errorf("index map holds %d cells, shape %v wants %d", len(scan.IndexMap), scan.IndexMapShape, size)
	}
	for _, v := range scan.IndexMap {
		if v < -1 || v >= int64(ns) {
			return fmt.Errorf("index map entry %d outside [-1, %d)", v, ns)
		}
	}
	if scan.PixelSize != nil && len(scan.PixelSize) != 3 {
		return fmt.Errorf("pixel size must hold 3 entries (z, y, x), got %d", len(scan.PixelSize))
	}
	return nil
}

// newDataGroup allocates the next Data_<n> group, enforcing effective-name
// uniqueness when a custom name is given.
func (f *File) newDataGroup(ctx context.Context, name string, sparse bool) (DataGroupInfo, *zarr.Group, error) {
	infos, err := f.ListDataGroups(ctx)
	if err != nil {
		return DataGroupInfo{}, nil, err
	}
	next := 0
	for _, info := range infos {
		if name != "" && info.Name == name {
			return DataGroupInfo{}, nil, fmt.Errorf("brim: data group %q: %w", name, ErrNameCollision)
		}
		if info.Index >= next {
			next = info.Index + 1
		}
	}
	id := numberedName(dataGroupPrefix, next)
	g, err := f.base.CreateGroup(ctx, id)
	if err != nil {
		return DataGroupInfo{}, nil, fmt.Errorf("brim: create data group: %w", mapErr(err))
	}
	if err := g.SetAttr(ctx, sparseAttr, sparse); err != nil {
		return DataGroupInfo{}, nil, fmt.Errorf("brim: create data group: %w", mapErr(err))
	}
	if name != "" {
		if err := g.SetAttr(ctx, nameAttr, name); err != nil {
			return DataGroupInfo{}, nil, fmt.Errorf("brim: create data group: %w", mapErr(err))
		}
	}
	if _, err := g.CreateGroup(ctx, metadataGroupName); err != nil {
		return DataGroupInfo{}, nil, fmt.Errorf("brim: create data group: %w", mapErr(err))
	}
	return DataGroupInfo{Index: next, ID: id, Name: name}, g, nil
}

// writeCube stores the PSD and Frequency arrays, their units, and the
// optional timestamps.
func (f *File) writeCube(ctx context.Context, g *zarr.Group, cube SpectralCube, cfg DataGroupConfig) error {
	psd, err := f.createArray(ctx, g, psdName, cube.Shape, zarr.Float64)
	if err != nil {
		return err
	}
	if err := psd.WriteFloat64(ctx, cube.PSD); err != nil {
		return mapErr(err)
	}
	if cfg.PSDUnits != "" {
		if err := psd.SetAttr(ctx, unitsAttr, cfg.PSDUnits); err != nil {
			return mapErr(err)
		}
	}

	freq, err := f.createArray(ctx, g, frequencyName, []int{len(cube.Frequency)}, zarr.Float64)
	if err != nil {
		return err
	}
	if err := freq.WriteFloat64(ctx, cube.Frequency); err != nil {
		return mapErr(err)
	}
	funits := cfg.FrequencyUnits
	if funits == "" {
		funits = defaultFrequencyUnits
	}
	if err := freq.SetAttr(ctx, unitsAttr, funits); err != nil {
		return mapErr(err)
	}

	if cfg.Timestamps != nil {
		ts, err := f.createArray(ctx, g, timestampName, []int{len(cfg.Timestamps)}, zarr.Float64)
		if err != nil {
			return err
		}
		if err := ts.WriteFloat64(ctx, cfg.Timestamps); err != nil {
			return mapErr(err)
		}
	}
	return nil
}

// writeScanLayout stores the spatial mapping of a sparse group: the
// coordinate arrays under Spatial_map and the dense index map, whichever the
// layout provides.
func (f *File) writeScanLayout(ctx context.Context, g *zarr.Group, scan ScanLayout, ns int) error {
	coords := [3][]float64{scan.Z, scan.Y, scan.X}
	if coords[0] != nil || coords[1] != nil || coords[2] != nil {
		sm, err := g.CreateGroup(ctx, spatialMapName)
		if err != nil {
			return mapErr(err)
		}
		units := scan.CoordUnits
		if units == "" {
			units = defaultSpatialUnits
		}
		if err := sm.SetAttr(ctx, unitsAttr, units); err != nil {
			return mapErr(err)
		}
		for i, proj := range coords {
			if proj == nil {
				continue
			}
			arr, err := f.createArray(ctx, sm, spatialAxisNames[i], []int{len(proj)}, zarr.Float64)
			if err != nil {
				return err
			}
			if err := arr.WriteFloat64(ctx, proj); err != nil {
				return mapErr(err)
			}
		}
	}

	if scan.IndexMap != nil {
		dtype := zarr.SmallestIntDType(-1, int64(ns-1))
		cv, err := f.createArray(ctx, g, cartesianName, scan.IndexMapShape, dtype)
		if err != nil {
			return err
		}
		if err := cv.WriteInt64(ctx, scan.IndexMap); err != nil {
			return mapErr(err)
		}
		if scan.PixelSize != nil {
			if err := cv.SetAttr(ctx, elementSizeAttr, scan.PixelSize); err != nil {
				return mapErr(err)
			}
			units := scan.PixelUnits
			if units == "" {
				units = defaultSpatialUnits
			}
			if err := cv.SetAttr(ctx, attrUnits(elementSizeAttr), units); err != nil {
				return mapErr(err)
			}
		}
	}
	return nil
}

// createArray makes an array honoring the handle's compressor choice.
func (f *File) createArray(ctx context.Context, g *zarr.Group, name string, shape []int, dtype zarr.DType) (*zarr.Array, error) {
	var opts []zarr.ArrayOption
	if f.comp != nil {
		opts = append(opts, zarr.WithCompressor(f.comp))
	}
	a, err := g.CreateArray(ctx, name, shape, dtype, opts...)
	if err != nil {
		return nil, mapErr(err)
	}
	return a, nil
}

// -----------------------------------------------------------------------------
// Shared helpers
// -----------------------------------------------------------------------------

// attrNode is the attribute surface shared by zarr groups and arrays.
type attrNode interface {
	Attr(ctx context.Context, key string) (any, bool, error)
}

// stringAttr reads an attribute as a string, "" when absent or not one.
func stringAttr(ctx context.Context, n attrNode, key string) (string, error) {
	raw, ok, err := n.Attr(ctx, key)
	if err != nil {
		return "", mapErr(err)
	}
	if !ok {
		return "", nil
	}
	s, _ := raw.(string)
	return s, nil
}

// floatsAttr coerces an attribute value into a float slice. Attributes read
// back from storage decode as []any; staged ones keep their Go type.
func floatsAttr(raw any) ([]float64, bool) {
	switch v := raw.(type) {
	case []float64:
		return append([]float64(nil), v...), true
	case []any:
		out := make([]float64, len(v))
		for i, e := range v {
			f, ok := e.(float64)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	}
	return nil, false
}

// effectiveName resolves the display name of a group: the Name attribute
// when present, the fallback id otherwise.
func effectiveName(ctx context.Context, g *zarr.Group, id string) (string, error) {
	name, err := stringAttr(ctx, g, nameAttr)
	if err != nil {
		return "", err
	}
	if name == "" {
		return id, nil
	}
	return name, nil
}

// ensureGroup returns the named child group, creating it when absent.
func ensureGroup(ctx context.Context, parent *zarr.Group, name string) (*zarr.Group, error) {
	ok, err := parent.HasGroup(ctx, name)
	if err != nil {
		return nil, mapErr(err)
	}
	if !ok {
		g, err := parent.CreateGroup(ctx, name)
		if err != nil {
			return nil, mapErr(err)
		}
		return g, nil
	}
	g, err := parent.Group(ctx, name)
	if err != nil {
		return nil, mapErr(err)
	}
	return g, nil
}

// mapErr translates backend failures into the package's sentinels while
// keeping the original error in the chain. Unrecognized errors wrap
// ErrBackend.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, zarr.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, zarr.ErrExists):
		return fmt.Errorf("%w: %w", ErrExists, err)
	case errors.Is(err, zarr.ErrReadOnly):
		return fmt.Errorf("%w: %w", ErrReadOnly, err)
	case errors.Is(err, zarr.ErrBadSelection):
		return fmt.Errorf("%w: %w", ErrIndexOutOfRange, err)
	default:
		return fmt.Errorf("%w: %w", ErrBackend, err)
	}
}
