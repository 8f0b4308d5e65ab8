package brim

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/brim-format/brim-go/zarr"
)

// Data accesses one data group: the raw spectral cube, its spatial layout,
// its metadata, and the analysis-result sets derived from it.
type Data struct {
	f      *File
	g      *zarr.Group
	id     string
	index  int
	sparse bool
}

// ID returns the stored group id, e.g. "Data_0".
func (d *Data) ID() string { return d.id }

// Index returns the creation-order index parsed from the group id.
func (d *Data) Index() int { return d.index }

// IsSparse reports whether spectra are stored per scan point rather than as
// a dense spatial cube.
func (d *Data) IsSparse() bool { return d.sparse }

// Name returns the display name: the custom name when set, the id otherwise.
func (d *Data) Name(ctx context.Context) (string, error) {
	name, err := effectiveName(ctx, d.g, d.id)
	if err != nil {
		return "", fmt.Errorf("brim: data group %q: %w", d.id, err)
	}
	return name, nil
}

// Metadata returns the metadata accessor for this group. Lookups fall back
// to the file-global record.
func (d *Data) Metadata() *Metadata {
	return &Metadata{f: d.f, owner: d.g}
}

// -----------------------------------------------------------------------------
// Raw spectra
// -----------------------------------------------------------------------------

// Spectrum is one acquired power spectrum with its frequency axis.
type Spectrum struct {
	PSD            []float64
	Frequency      []float64
	PSDUnits       string
	FrequencyUnits string
}

func (d *Data) psdArray(ctx context.Context) (*zarr.Array, error) {
	a, err := d.g.Array(ctx, psdName)
	if err != nil {
		return nil, fmt.Errorf("brim: data group %q: PSD: %w", d.id, mapErr(err))
	}
	rank := 4
	if d.sparse {
		rank = 2
	}
	if len(a.Shape()) != rank {
		return nil, fmt.Errorf("brim: data group %q: PSD must be %d-dimensional: %w", d.id, rank, ErrNotContainer)
	}
	return a, nil
}

// NumSpectra returns how many spectra the group stores.
func (d *Data) NumSpectra(ctx context.Context) (int, error) {
	psd, err := d.psdArray(ctx)
	if err != nil {
		return 0, err
	}
	shape := psd.Shape()
	n := 1
	for _, v := range shape[:len(shape)-1] {
		n *= v
	}
	return n, nil
}

// FrequencyCount returns the number of bins on the spectral axis.
func (d *Data) FrequencyCount(ctx context.Context) (int, error) {
	psd, err := d.psdArray(ctx)
	if err != nil {
		return 0, err
	}
	shape := psd.Shape()
	return shape[len(shape)-1], nil
}

// ImageShape returns the (z, y, x) extent of the group's image. Sparse
// groups take it from the stored index map, or reconstruct one from the scan
// coordinates when only those exist.
func (d *Data) ImageShape(ctx context.Context) ([]int, error) {
	if !d.sparse {
		psd, err := d.psdArray(ctx)
		if err != nil {
			return nil, err
		}
		shape := psd.Shape()
		return shape[:len(shape)-1], nil
	}
	m, err := d.spatialIndexMap(ctx)
	if err != nil {
		return nil, err
	}
	return append([]int(nil), m.shape...), nil
}

// SpectrumAt reads the spectrum acquired at image position (z, y, x) without
// materializing the cube. Positions outside the image, and sparse cells the
// scan never visited, fail with ErrIndexOutOfRange.
func (d *Data) SpectrumAt(ctx context.Context, coord [3]int) (*Spectrum, error) {
	psd, err := d.psdArray(ctx)
	if err != nil {
		return nil, err
	}
	shape := psd.Shape()
	var row []float64
	if d.sparse {
		sample, ok, err := d.samplePosition(ctx, coord)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("brim: no spectrum at %v: %w", coord, ErrIndexOutOfRange)
		}
		row, err = psd.SliceFloat64(ctx, []int{sample, 0}, []int{1, shape[1]})
		if err != nil {
			return nil, fmt.Errorf("brim: data group %q: %w", d.id, mapErr(err))
		}
	} else {
		for k := 0; k < 3; k++ {
			if coord[k] < 0 || coord[k] >= shape[k] {
				return nil, fmt.Errorf("brim: position %v outside image %v: %w", coord, shape[:3], ErrIndexOutOfRange)
			}
		}
		row, err = psd.SliceFloat64(ctx, []int{coord[0], coord[1], coord[2], 0}, []int{1, 1, 1, shape[3]})
		if err != nil {
			return nil, fmt.Errorf("brim: data group %q: %w", d.id, mapErr(err))
		}
	}

	freq, funits, err := d.frequencyAxis(ctx)
	if err != nil {
		return nil, err
	}
	punits, err := stringAttr(ctx, psd, unitsAttr)
	if err != nil {
		return nil, fmt.Errorf("brim: data group %q: %w", d.id, err)
	}
	return &Spectrum{PSD: row, Frequency: freq, PSDUnits: punits, FrequencyUnits: funits}, nil
}

// frequencyAxis loads the shared frequency axis and its unit.
func (d *Data) frequencyAxis(ctx context.Context) ([]float64, string, error) {
	arr, err := d.g.Array(ctx, frequencyName)
	if err != nil {
		return nil, "", fmt.Errorf("brim: data group %q: Frequency: %w", d.id, mapErr(err))
	}
	vals, err := arr.Float64(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("brim: data group %q: Frequency: %w", d.id, mapErr(err))
	}
	units, err := stringAttr(ctx, arr, unitsAttr)
	if err != nil {
		return nil, "", fmt.Errorf("brim: data group %q: %w", d.id, err)
	}
	return vals, units, nil
}

// Timestamps returns per-spectrum acquisition times in milliseconds, or
// ErrNotFound when the group stores none.
func (d *Data) Timestamps(ctx context.Context) ([]float64, error) {
	ok, err := d.g.HasArray(ctx, timestampName)
	if err != nil {
		return nil, fmt.Errorf("brim: data group %q: %w", d.id, mapErr(err))
	}
	if !ok {
		return nil, fmt.Errorf("brim: data group %q has no timestamps: %w", d.id, ErrNotFound)
	}
	arr, err := d.g.Array(ctx, timestampName)
	if err != nil {
		return nil, fmt.Errorf("brim: data group %q: %w", d.id, mapErr(err))
	}
	vals, err := arr.Float64(ctx)
	if err != nil {
		return nil, fmt.Errorf("brim: data group %q: %w", d.id, mapErr(err))
	}
	return vals, nil
}

// -----------------------------------------------------------------------------
// Spatial layout
// -----------------------------------------------------------------------------

// indexMap is the dense spatial layout of a sparse group: the spectrum index
// of every (z, y, x) cell, -1 where the scan never visited.
type indexMap struct {
	cells     []int64
	shape     []int
	pixelSize []float64
	units     string
}

// at resolves an image position to its stored spectrum index.
func (m *indexMap) at(coord [3]int) (int64, error) {
	flat := 0
	for k := 0; k < 3; k++ {
		if coord[k] < 0 || coord[k] >= m.shape[k] {
			return 0, fmt.Errorf("position %v outside image %v: %w", coord, m.shape, ErrIndexOutOfRange)
		}
		flat = flat*m.shape[k] + coord[k]
	}
	return m.cells[flat], nil
}

// spatialIndexMap resolves the sparse group's layout, preferring the stored
// index map and reconstructing one from the scan coordinates otherwise.
func (d *Data) spatialIndexMap(ctx context.Context) (*indexMap, error) {
	hasCV, err := d.g.HasArray(ctx, cartesianName)
	if err != nil {
		return nil, fmt.Errorf("brim: data group %q: %w", d.id, mapErr(err))
	}
	if hasCV {
		return d.loadStoredIndexMap(ctx)
	}
	hasSM, err := d.g.HasGroup(ctx, spatialMapName)
	if err != nil {
		return nil, fmt.Errorf("brim: data group %q: %w", d.id, mapErr(err))
	}
	if hasSM {
		return d.reconstructIndexMap(ctx)
	}
	return nil, fmt.Errorf("brim: data group %q has no spatial mapping: %w", d.id, ErrNotFound)
}

func (d *Data) loadStoredIndexMap(ctx context.Context) (*indexMap, error) {
	cv, err := d.g.Array(ctx, cartesianName)
	if err != nil {
		return nil, fmt.Errorf("brim: data group %q: %w", d.id, mapErr(err))
	}
	shape := cv.Shape()
	if len(shape) != 3 {
		return nil, fmt.Errorf("brim: data group %q: index map must be 3-dimensional: %w", d.id, ErrNotContainer)
	}
	cells, err := cv.Int64(ctx)
	if err != nil {
		return nil, fmt.Errorf("brim: data group %q: %w", d.id, mapErr(err))
	}
	m := &indexMap{cells: cells, shape: shape, pixelSize: []float64{1, 1, 1}}
	raw, ok, err := cv.Attr(ctx, elementSizeAttr)
	if err != nil {
		return nil, fmt.Errorf("brim: data group %q: %w", d.id, mapErr(err))
	}
	if px, pok := floatsAttr(raw); ok && pok && len(px) == 3 {
		m.pixelSize = px
		m.units, err = stringAttr(ctx, cv, attrUnits(elementSizeAttr))
		if err != nil {
			return nil, fmt.Errorf("brim: data group %q: %w", d.id, err)
		}
	}
	return m, nil
}

// reconstructIndexMap rebuilds the dense layout by gridding the sample
// indices over the stored scan coordinates.
func (d *Data) reconstructIndexMap(ctx context.Context) (*indexMap, error) {
	coords, units, n, err := d.scanCoordinates(ctx)
	if err != nil {
		return nil, err
	}
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = float64(i)
	}
	grid, err := reconstruct(coords, samples, 1, d.f.tol)
	if err != nil {
		return nil, fmt.Errorf("brim: data group %q: %w", d.id, err)
	}
	cells := make([]int64, len(grid.Values))
	for i, v := range grid.Values {
		if math.IsNaN(v) {
			cells[i] = -1
		} else {
			cells[i] = int64(v)
		}
	}
	return &indexMap{cells: cells, shape: grid.Shape, pixelSize: grid.PixelSize, units: units}, nil
}

// scanCoordinates loads the Spatial_map arrays in (z, y, x) order; axes the
// scan never stored are nil.
func (d *Data) scanCoordinates(ctx context.Context) ([][]float64, string, int, error) {
	sm, err := d.g.Group(ctx, spatialMapName)
	if err != nil {
		return nil, "", 0, fmt.Errorf("brim: data group %q: %w", d.id, mapErr(err))
	}
	coords := make([][]float64, 3)
	n := 0
	for i, name := range spatialAxisNames {
		ok, err := sm.HasArray(ctx, name)
		if err != nil {
			return nil, "", 0, fmt.Errorf("brim: data group %q: %w", d.id, mapErr(err))
		}
		if !ok {
			continue
		}
		arr, err := sm.Array(ctx, name)
		if err != nil {
			return nil, "", 0, fmt.Errorf("brim: data group %q: %w", d.id, mapErr(err))
		}
		vals, err := arr.Float64(ctx)
		if err != nil {
			return nil, "", 0, fmt.Errorf("brim: data group %q: %w", d.id, mapErr(err))
		}
		if n != 0 && len(vals) != n {
			return nil, "", 0, fmt.Errorf("brim: data group %q: coordinate arrays differ in length: %w", d.id, ErrNotContainer)
		}
		n = len(vals)
		coords[i] = vals
	}
	if n == 0 {
		return nil, "", 0, fmt.Errorf("brim: data group %q: spatial map is empty: %w", d.id, ErrNotFound)
	}
	units, err := stringAttr(ctx, sm, unitsAttr)
	if err != nil {
		return nil, "", 0, fmt.Errorf("brim: data group %q: %w", d.id, err)
	}
	return coords, units, n, nil
}

// samplePosition resolves an image position to the flat sample index,
// reporting ok=false for sparse cells the scan never visited.
func (d *Data) samplePosition(ctx context.Context, coord [3]int) (int, bool, error) {
	if d.sparse {
		m, err := d.spatialIndexMap(ctx)
		if err != nil {
			return 0, false, err
		}
		s, err := m.at(coord)
		if err != nil {
			return 0, false, fmt.Errorf("brim: data group %q: %w", d.id, err)
		}
		if s < 0 {
			return 0, false, nil
		}
		return int(s), true, nil
	}
	shape, err := d.ImageShape(ctx)
	if err != nil {
		return 0, false, err
	}
	flat := 0
	for k := 0; k < 3; k++ {
		if coord[k] < 0 || coord[k] >= shape[k] {
			return 0, false, fmt.Errorf("brim: position %v outside image %v: %w", coord, shape, ErrIndexOutOfRange)
		}
		flat = flat*shape[k] + coord[k]
	}
	return flat, true, nil
}

// PSDSpatialMap returns the acquisition as a dense spatial grid of spectra:
// shape (Nz, Ny, Nx, Nf) with NaN rows at positions the scan never visited,
// plus the physical pixel size. The grid is rebuilt on every call and not
// cached.
func (d *Data) PSDSpatialMap(ctx context.Context) (*SpatialGrid, error) {
	psd, err := d.psdArray(ctx)
	if err != nil {
		return nil, err
	}
	vals, err := psd.Float64(ctx)
	if err != nil {
		return nil, fmt.Errorf("brim: data group %q: %w", d.id, mapErr(err))
	}
	shape := psd.Shape()
	if !d.sparse {
		px, units, err := d.densePixelSize(ctx)
		if err != nil {
			return nil, err
		}
		return &SpatialGrid{Values: vals, Shape: shape, PixelSize: px, Units: units}, nil
	}
	return d.scatterRows(ctx, vals, shape[1], true)
}

// densePixelSize reads the element_size attribute, defaulting to unit
// spacing when the group does not carry one.
func (d *Data) densePixelSize(ctx context.Context) ([]float64, string, error) {
	raw, ok, err := d.g.Attr(ctx, elementSizeAttr)
	if err != nil {
		return nil, "", fmt.Errorf("brim: data group %q: %w", d.id, mapErr(err))
	}
	px, pok := floatsAttr(raw)
	if !ok || !pok || len(px) != 3 {
		return []float64{1, 1, 1}, "", nil
	}
	units, err := stringAttr(ctx, d.g, attrUnits(elementSizeAttr))
	if err != nil {
		return nil, "", fmt.Errorf("brim: data group %q: %w", d.id, err)
	}
	return px, units, nil
}

// scatterRows spreads per-sample rows of rowLen values onto the dense image
// grid, appending the row axis to the grid shape when appendAxis is set.
// Dense groups pass through with the stored pixel size.
func (d *Data) scatterRows(ctx context.Context, rows []float64, rowLen int, appendAxis bool) (*SpatialGrid, error) {
	if !d.sparse {
		shape, err := d.ImageShape(ctx)
		if err != nil {
			return nil, err
		}
		px, units, err := d.densePixelSize(ctx)
		if err != nil {
			return nil, err
		}
		if appendAxis {
			shape = append(shape, rowLen)
		}
		return &SpatialGrid{Values: rows, Shape: shape, PixelSize: px, Units: units}, nil
	}

	hasCV, err := d.g.HasArray(ctx, cartesianName)
	if err != nil {
		return nil, fmt.Errorf("brim: data group %q: %w", d.id, mapErr(err))
	}
	if hasCV {
		m, err := d.loadStoredIndexMap(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(m.cells)*rowLen)
		for i := range out {
			out[i] = math.NaN()
		}
		for cell, s := range m.cells {
			if s < 0 {
				continue
			}
			lo := int(s) * rowLen
			if lo+rowLen > len(rows) {
				return nil, fmt.Errorf("brim: data group %q: index map entry %d has no spectrum: %w", d.id, s, ErrNotContainer)
			}
			copy(out[cell*rowLen:(cell+1)*rowLen], rows[lo:lo+rowLen])
		}
		shape := append([]int(nil), m.shape...)
		if appendAxis {
			shape = append(shape, rowLen)
		}
		return &SpatialGrid{Values: out, Shape: shape, PixelSize: m.pixelSize, Units: m.units}, nil
	}

	coords, units, _, err := d.scanCoordinates(ctx)
	if err != nil {
		return nil, err
	}
	grid, err := reconstruct(coords, rows, rowLen, d.f.tol)
	if err != nil {
		return nil, fmt.Errorf("brim: data group %q: %w", d.id, err)
	}
	grid.Units = units
	if appendAxis {
		grid.Shape = append(grid.Shape, rowLen)
	}
	return grid, nil
}

// -----------------------------------------------------------------------------
// Analysis results
// -----------------------------------------------------------------------------

// AnalysisResultsInfo identifies one analysis-result set.
type AnalysisResultsInfo struct {
	// Index is the creation-order index parsed from the group id.
	Index int
	// ID is the stored group id, e.g. "Analysis_results_0".
	ID string
	// Name is the custom display name when set, the id otherwise.
	Name string
}

// ListAnalysisResults enumerates the group's analysis-result sets in
// creation order.
func (d *Data) ListAnalysisResults(ctx context.Context) ([]AnalysisResultsInfo, error) {
	names, err := d.g.Groups(ctx)
	if err != nil {
		return nil, fmt.Errorf("brim: data group %q: %w", d.id, mapErr(err))
	}
	infos := make([]AnalysisResultsInfo, 0, len(names))
	for _, id := range names {
		index, ok := parseNumberedName(analysisGroupPrefix, id)
		if !ok {
			continue
		}
		g, err := d.g.Group(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("brim: data group %q: %w", d.id, mapErr(err))
		}
		name, err := effectiveName(ctx, g, id)
		if err != nil {
			return nil, fmt.Errorf("brim: data group %q: %w", d.id, err)
		}
		infos = append(infos, AnalysisResultsInfo{Index: index, ID: id, Name: name})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Index < infos[j].Index })
	return infos, nil
}

// AnalysisResults binds the result set with the given effective name.
func (d *Data) AnalysisResults(ctx context.Context, name string) (*AnalysisResults, error) {
	infos, err := d.ListAnalysisResults(ctx)
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		if info.Name == name {
			return d.bindAnalysis(ctx, info)
		}
	}
	return nil, fmt.Errorf("brim: analysis results %q: %w", name, ErrNotFound)
}

// AnalysisResultsAt binds the result set with the given index.
func (d *Data) AnalysisResultsAt(ctx context.Context, index int) (*AnalysisResults, error) {
	infos, err := d.ListAnalysisResults(ctx)
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		if info.Index == index {
			return d.bindAnalysis(ctx, info)
		}
	}
	return nil, fmt.Errorf("brim: analysis results %d: %w", index, ErrNotFound)
}

func (d *Data) bindAnalysis(ctx context.Context, info AnalysisResultsInfo) (*AnalysisResults, error) {
	g, err := d.g.Group(ctx, info.ID)
	if err != nil {
		return nil, fmt.Errorf("brim: analysis results %q: %w", info.ID, mapErr(err))
	}
	return &AnalysisResults{d: d, g: g, id: info.ID, index: info.Index}, nil
}

// SpectrumAndQuantitiesAt combines SpectrumAt with every quantity the result
// set stores at that position, keyed by quantity and peak type. Average
// entries appear where derivable and ElasticContrast where the metadata
// allows it.
func (d *Data) SpectrumAndQuantitiesAt(ctx context.Context, ar *AnalysisResults, coord [3]int, peak int) (*Spectrum, map[Quantity]map[PeakType]Item, error) {
	sp, err := d.SpectrumAt(ctx, coord)
	if err != nil {
		return nil, nil, err
	}
	qts, err := ar.quantitiesAt(ctx, coord, peak)
	if err != nil {
		return nil, nil, err
	}
	return sp, qts, nil
}
