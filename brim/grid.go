package brim

import (
	"fmt"
	"math"
	"sort"
)

// GridTolerances controls how strictly scan coordinates must match a regular
// grid during reconstruction.
type GridTolerances struct {
	// CoordRel is the fraction of an axis span below which two coordinate
	// projections count as the same grid line.
	CoordRel float64

	// ExtentAbs is the largest deviation from an integer, in grid-index
	// units, accepted for axis extents and cell positions.
	ExtentAbs float64
}

// Tolerances applied when WithGridTolerances is not given.
const (
	defaultCoordRel  = 1e-6
	defaultExtentAbs = 1e-3
)

// SpatialGrid is a dense regular image reconstructed on demand.
//
// Values is in C order over Shape; cells the scan never visited hold NaN.
// PixelSize gives the spacing of the (z, y, x) axes in Units, with 0 on axes
// collapsed to a single grid line. Units annotates PixelSize, not Values.
type SpatialGrid struct {
	Values    []float64
	Shape     []int
	PixelSize []float64
	Units     string
}

// gridAxis is the resolved geometry of one reconstructed axis.
type gridAxis struct {
	origin  float64
	spacing float64
	extent  int
}

// resolveAxis derives one axis' grid geometry from the coordinate
// projections of every sample. The spacing is the smallest positive distance
// between grid lines, lines closer than CoordRel of the span collapsing into
// one; the extent must then come out integral within ExtentAbs.
func resolveAxis(proj []float64, tol GridTolerances) (gridAxis, error) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range proj {
		if math.IsNaN(c) {
			return gridAxis{}, fmt.Errorf("brim: NaN scan coordinate: %w", ErrIrregularGrid)
		}
		lo = math.Min(lo, c)
		hi = math.Max(hi, c)
	}
	span := hi - lo
	if span == 0 {
		return gridAxis{origin: lo, spacing: 0, extent: 1}, nil
	}

	sorted := append([]float64(nil), proj...)
	sort.Float64s(sorted)

	eps := tol.CoordRel * span
	spacing := math.Inf(1)
	line := sorted[0]
	for _, c := range sorted[1:] {
		d := c - line
		if d <= eps {
			continue
		}
		if d < spacing {
			spacing = d
		}
		line = c
	}
	if math.IsInf(spacing, 1) {
		// Every projection collapsed onto one line.
		return gridAxis{origin: lo, spacing: 0, extent: 1}, nil
	}

	extentF := span/spacing + 1
	extent := int(math.Round(extentF))
	if math.Abs(extentF-float64(extent)) > tol.ExtentAbs {
		return gridAxis{}, fmt.Errorf("brim: axis extent %v is not integral: %w", extentF, ErrIrregularGrid)
	}
	return gridAxis{origin: lo, spacing: spacing, extent: extent}, nil
}

// cell maps one coordinate onto the axis' grid index.
func (ax gridAxis) cell(c float64, tol GridTolerances) (int, error) {
	if ax.spacing == 0 {
		return 0, nil
	}
	pos := (c - ax.origin) / ax.spacing
	i := int(math.Round(pos))
	if math.Abs(pos-float64(i)) > tol.ExtentAbs || i < 0 || i >= ax.extent {
		return 0, fmt.Errorf("brim: coordinate %v is off-grid: %w", c, ErrIrregularGrid)
	}
	return i, nil
}

// reconstruct builds a dense grid from per-sample coordinates.
//
// coords holds one projection per axis, slowest axis first; nil entries
// stand for axes the scan never moved along. values holds rowLen contiguous
// payload values per sample. The result has rowLen cells per grid position
// and NaN everywhere the scan never visited. Samples mapping to the same
// cell must carry equal rows (NaN matching NaN) or the reconstruction fails
// with ErrDuplicateCoordinate.
func reconstruct(coords [][]float64, values []float64, rowLen int, tol GridTolerances) (*SpatialGrid, error) {
	n := -1
	for _, proj := range coords {
		if proj == nil {
			continue
		}
		if n >= 0 && len(proj) != n {
			return nil, fmt.Errorf("brim: coordinate arrays differ in length: %w", ErrIrregularGrid)
		}
		n = len(proj)
	}
	if n <= 0 {
		return nil, fmt.Errorf("brim: no scan coordinates: %w", ErrIrregularGrid)
	}
	if rowLen <= 0 || len(values) != n*rowLen {
		return nil, fmt.Errorf("brim: %d values cannot fill %d samples of %d: %w",
			len(values), n, rowLen, ErrIrregularGrid)
	}

	axes := make([]gridAxis, len(coords))
	for k, proj := range coords {
		if proj == nil {
			axes[k] = gridAxis{extent: 1}
			continue
		}
		ax, err := resolveAxis(proj, tol)
		if err != nil {
			return nil, err
		}
		axes[k] = ax
	}

	shape := make([]int, len(axes))
	pixel := make([]float64, len(axes))
	cells := 1
	for k, ax := range axes {
		shape[k] = ax.extent
		pixel[k] = ax.spacing
		cells *= ax.extent
	}

	dense := make([]float64, cells*rowLen)
	for i := range dense {
		dense[i] = math.NaN()
	}
	seen := make([]bool, cells)

	for s := 0; s < n; s++ {
		flat := 0
		for k, ax := range axes {
			i := 0
			if coords[k] != nil {
				var err error
				i, err = ax.cell(coords[k][s], tol)
				if err != nil {
					return nil, err
				}
			}
			flat = flat*ax.extent + i
		}
		row := values[s*rowLen : (s+1)*rowLen]
		dst := dense[flat*rowLen : (flat+1)*rowLen]
		if seen[flat] {
			if !rowsEqual(dst, row) {
				return nil, fmt.Errorf("brim: sample %d revisits an occupied grid cell: %w",
					s, ErrDuplicateCoordinate)
			}
			continue
		}
		copy(dst, row)
		seen[flat] = true
	}

	return &SpatialGrid{Values: dense, Shape: shape, PixelSize: pixel}, nil
}

// rowsEqual compares two sample rows treating NaN as equal to NaN.
func rowsEqual(a, b []float64) bool {
	for i := range a {
		if a[i] != b[i] && !(math.IsNaN(a[i]) && math.IsNaN(b[i])) {
			return false
		}
	}
	return true
}
