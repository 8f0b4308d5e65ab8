package brim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/brim-format/brim-go/zarr"
)

// AnalysisResults accesses one analysis-result set: per-pixel quantities
// derived from peak fitting, stored per (quantity, peak type, peak index).
type AnalysisResults struct {
	d     *Data
	g     *zarr.Group
	id    string
	index int
}

// ID returns the stored group id, e.g. "Analysis_results_0".
func (ar *AnalysisResults) ID() string { return ar.id }

// Index returns the creation-order index parsed from the group id.
func (ar *AnalysisResults) Index() int { return ar.index }

// Name returns the display name: the custom name when set, the id otherwise.
func (ar *AnalysisResults) Name(ctx context.Context) (string, error) {
	name, err := effectiveName(ctx, ar.g, ar.id)
	if err != nil {
		return "", fmt.Errorf("brim: analysis results %q: %w", ar.id, err)
	}
	return name, nil
}

// FitModel reports the spectral model recorded for this result set. Missing
// or unrecognized values read as FitModelUndefined.
func (ar *AnalysisResults) FitModel(ctx context.Context) (FitModel, error) {
	s, err := stringAttr(ctx, ar.g, fitModelAttr)
	if err != nil {
		return FitModelUndefined, fmt.Errorf("brim: analysis results %q: %w", ar.id, err)
	}
	switch fm := FitModel(s); fm {
	case FitModelLorentzian, FitModelDHO, FitModelGaussian, FitModelVoigt, FitModelCustom:
		return fm, nil
	}
	return FitModelUndefined, nil
}

// -----------------------------------------------------------------------------
// Creation
// -----------------------------------------------------------------------------

// QuantityData is one quantity array for a single fitted peak.
//
// Values are in sample order for sparse groups and C spatial order (z, y, x)
// for dense ones, one value per spectrum.
type QuantityData struct {
	Values []float64
	Units  string
}

// PeakData collects the quantities fitted for one peak.
type PeakData map[Quantity]QuantityData

// AnalysisConfig carries the optional properties of a new result set. The
// zero value is ready to use.
type AnalysisConfig struct {
	// Name is a custom display name, checked against existing sets.
	Name string

	// FitModel records the spectral model; the zero value records none.
	FitModel FitModel
}

// CreateAnalysisResults stores fitted quantities as a new result set.
//
// Slice position within antiStokes and stokes is the fitted-peak index for
// multi-peak fits. Every quantity array must match the group's spectrum
// count; a quantity present for both peak types of the same peak index must
// carry the same unit. ElasticContrast cannot be stored.
func (d *Data) CreateAnalysisResults(ctx context.Context, antiStokes, stokes []PeakData, cfg AnalysisConfig) (*AnalysisResults, error) {
	if d.f.IsReadOnly() {
		return nil, fmt.Errorf("brim: create analysis results: %w", ErrReadOnly)
	}
	if countQuantities(antiStokes)+countQuantities(stokes) == 0 {
		return nil, fmt.Errorf("brim: create analysis results: no quantities given")
	}
	want, shape, err := d.quantityExtent(ctx)
	if err != nil {
		return nil, err
	}
	if err := validatePeakData(antiStokes, stokes, want); err != nil {
		return nil, fmt.Errorf("brim: create analysis results: %w", err)
	}

	info, g, err := d.newAnalysisGroup(ctx, cfg.Name)
	if err != nil {
		return nil, err
	}
	if cfg.FitModel != "" {
		if err := g.SetAttr(ctx, fitModelAttr, string(cfg.FitModel)); err != nil {
			return nil, fmt.Errorf("brim: create analysis results: %w", mapErr(err))
		}
	}
	for peak, pd := range antiStokes {
		if err := writePeak(ctx, d.f, g, AntiStokes, peak, pd, shape); err != nil {
			return nil, err
		}
	}
	for peak, pd := range stokes {
		if err := writePeak(ctx, d.f, g, Stokes, peak, pd, shape); err != nil {
			return nil, err
		}
	}
	return &AnalysisResults{d: d, g: g, id: info.ID, index: info.Index}, nil
}

func countQuantities(peaks []PeakData) int {
	n := 0
	for _, pd := range peaks {
		n += len(pd)
	}
	return n
}

// quantityExtent returns the flat length and stored shape quantity arrays
// must have for this group: the PSD shape without its spectral axis.
func (d *Data) quantityExtent(ctx context.Context) (int, []int, error) {
	psd, err := d.psdArray(ctx)
	if err != nil {
		return 0, nil, err
	}
	shape := psd.Shape()
	spatial := shape[:len(shape)-1]
	n := 1
	for _, v := range spatial {
		n *= v
	}
	return n, spatial, nil
}

// validatePeakData checks array lengths and cross-peak unit consistency.
func validatePeakData(antiStokes, stokes []PeakData, want int) error {
	check := func(peaks []PeakData) error {
		for i, pd := range peaks {
			for q, qd := range pd {
				if q == ElasticContrast {
					return fmt.Errorf("%s is computed on read and cannot be stored", ElasticContrast)
				}
				if len(qd.Values) != want {
					return fmt.Errorf("peak %d %s holds %d values, want %d", i, q, len(qd.Values), want)
				}
			}
		}
		return nil
	}
	if err := check(antiStokes); err != nil {
		return err
	}
	if err := check(stokes); err != nil {
		return err
	}
	for i := 0; i < len(antiStokes) && i < len(stokes); i++ {
		for q, as := range antiStokes[i] {
			if s, ok := stokes[i][q]; ok && as.Units != s.Units {
				return fmt.Errorf("peak %d %s units differ between peak types: %q vs %q", i, q, as.Units, s.Units)
			}
		}
	}
	return nil
}

// newAnalysisGroup allocates the next Analysis_results_<n> group, enforcing
// effective-name uniqueness when a custom name is given.
func (d *Data) newAnalysisGroup(ctx context.Context, name string) (AnalysisResultsInfo, *zarr.Group, error) {
	infos, err := d.ListAnalysisResults(ctx)
	if err != nil {
		return AnalysisResultsInfo{}, nil, err
	}
	next := 0
	for _, info := range infos {
		if name != "" && info.Name == name {
			return AnalysisResultsInfo{}, nil, fmt.Errorf("brim: analysis results %q: %w", name, ErrNameCollision)
		}
		if info.Index >= next {
			next = info.Index + 1
		}
	}
	id := numberedName(analysisGroupPrefix, next)
	g, err := d.g.CreateGroup(ctx, id)
	if err != nil {
		return AnalysisResultsInfo{}, nil, fmt.Errorf("brim: create analysis results: %w", mapErr(err))
	}
	if name != "" {
		if err := g.SetAttr(ctx, nameAttr, name); err != nil {
			return AnalysisResultsInfo{}, nil, fmt.Errorf("brim: create analysis results: %w", mapErr(err))
		}
	}
	return AnalysisResultsInfo{Index: next, ID: id, Name: name}, g, nil
}

// writePeak stores one peak's quantity arrays, fit errors under their
// subgroup and everything else flat.
func writePeak(ctx context.Context, f *File, g *zarr.Group, pt PeakType, peak int, pd PeakData, shape []int) error {
	var feGroup *zarr.Group
	for _, q := range sortedKeys(pd) {
		qd := pd[q]
		parent, name := g, quantityDatasetName(q, pt, peak)
		if q.fitError() {
			if feGroup == nil {
				var err error
				feGroup, err = ensureGroup(ctx, g, fitErrorGroupName(pt, peak))
				if err != nil {
					return fmt.Errorf("brim: create analysis results: %w", err)
				}
			}
			parent, name = feGroup, string(q)
		}
		arr, err := f.createArray(ctx, parent, name, shape, zarr.Float64)
		if err != nil {
			return fmt.Errorf("brim: create analysis results: %s: %w", q, err)
		}
		if err := arr.WriteFloat64(ctx, qd.Values); err != nil {
			return fmt.Errorf("brim: create analysis results: %s: %w", q, mapErr(err))
		}
		if qd.Units != "" {
			if err := arr.SetAttr(ctx, unitsAttr, qd.Units); err != nil {
				return fmt.Errorf("brim: create analysis results: %s: %w", q, mapErr(err))
			}
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Listing
// -----------------------------------------------------------------------------

// PeakTypes lists the concrete peak types stored for one fitted-peak index,
// probing the Shift dataset like every other reader of the format.
func (ar *AnalysisResults) PeakTypes(ctx context.Context, peak int) ([]PeakType, error) {
	var present []PeakType
	for _, pt := range []PeakType{AntiStokes, Stokes} {
		ok, err := ar.g.HasArray(ctx, quantityDatasetName(Shift, pt, peak))
		if err != nil {
			return nil, fmt.Errorf("brim: analysis results %q: %w", ar.id, mapErr(err))
		}
		if ok {
			present = append(present, pt)
		}
	}
	return present, nil
}

// Quantities lists the stored quantities for a peak type in lexicographic
// dataset order, fit errors after the flat quantities, with ElasticContrast
// appended when Shift is available. For Average it is the union over
// AntiStokes and Stokes, i.e. everything an average image can be requested
// for.
func (ar *AnalysisResults) Quantities(ctx context.Context, pt PeakType, peak int) ([]Quantity, error) {
	if pt == Average {
		as, err := ar.Quantities(ctx, AntiStokes, peak)
		if err != nil {
			return nil, err
		}
		s, err := ar.Quantities(ctx, Stokes, peak)
		if err != nil {
			return nil, err
		}
		out := as
		for _, q := range s {
			if !containsQuantity(out, q) {
				out = append(out, q)
			}
		}
		return out, nil
	}

	arrays, err := ar.g.Arrays(ctx)
	if err != nil {
		return nil, fmt.Errorf("brim: analysis results %q: %w", ar.id, mapErr(err))
	}
	suffix := quantityNameSuffix(pt, peak)
	var out []Quantity
	for _, name := range arrays {
		if q, ok := strings.CutSuffix(name, suffix); ok && q != "" {
			out = append(out, Quantity(q))
		}
	}

	feName := fitErrorGroupName(pt, peak)
	hasFE, err := ar.g.HasGroup(ctx, feName)
	if err != nil {
		return nil, fmt.Errorf("brim: analysis results %q: %w", ar.id, mapErr(err))
	}
	if hasFE {
		fe, err := ar.g.Group(ctx, feName)
		if err != nil {
			return nil, fmt.Errorf("brim: analysis results %q: %w", ar.id, mapErr(err))
		}
		errNames, err := fe.Arrays(ctx)
		if err != nil {
			return nil, fmt.Errorf("brim: analysis results %q: %w", ar.id, mapErr(err))
		}
		for _, name := range errNames {
			out = append(out, Quantity(name))
		}
	}

	if containsQuantity(out, Shift) {
		out = append(out, ElasticContrast)
	}
	return out, nil
}

func containsQuantity(qs []Quantity, q Quantity) bool {
	for _, e := range qs {
		if e == q {
			return true
		}
	}
	return false
}

// Units returns the unit recorded for a quantity, "" when it is stored
// unit-less. ElasticContrast is always unit-less; for Average the unit comes
// from whichever concrete peak type stores the quantity. A quantity stored
// for no peak type fails with ErrNotFound.
func (ar *AnalysisResults) Units(ctx context.Context, q Quantity, pt PeakType, peak int) (string, error) {
	if q == ElasticContrast {
		return "", nil
	}
	if pt == Average {
		for _, cpt := range []PeakType{AntiStokes, Stokes} {
			units, err := ar.Units(ctx, q, cpt, peak)
			if err == nil {
				return units, nil
			}
			if !errors.Is(err, ErrNotFound) {
				return "", err
			}
		}
		return "", fmt.Errorf("brim: quantity %s: %w", q, ErrNotFound)
	}
	arr, err := ar.quantityArray(ctx, q, pt, peak)
	if err != nil {
		return "", err
	}
	units, err := stringAttr(ctx, arr, unitsAttr)
	if err != nil {
		return "", fmt.Errorf("brim: quantity %s (%s, peak %d): %w", q, pt, peak, err)
	}
	return units, nil
}

// quantityArray opens the dataset storing one (quantity, peak type, index).
func (ar *AnalysisResults) quantityArray(ctx context.Context, q Quantity, pt PeakType, peak int) (*zarr.Array, error) {
	arr, err := ar.g.Array(ctx, quantityDatasetName(q, pt, peak))
	if err != nil {
		return nil, fmt.Errorf("brim: quantity %s (%s, peak %d): %w", q, pt, peak, mapErr(err))
	}
	return arr, nil
}

// quantityValues reads the flat stored values of one quantity (sample order
// for sparse groups, C spatial order for dense ones).
func (ar *AnalysisResults) quantityValues(ctx context.Context, q Quantity, pt PeakType, peak int) ([]float64, error) {
	arr, err := ar.quantityArray(ctx, q, pt, peak)
	if err != nil {
		return nil, err
	}
	vals, err := arr.Float64(ctx)
	if err != nil {
		return nil, fmt.Errorf("brim: quantity %s (%s, peak %d): %w", q, pt, peak, mapErr(err))
	}
	return vals, nil
}

// -----------------------------------------------------------------------------
// Images
// -----------------------------------------------------------------------------

// Image reconstructs the dense (z, y, x) image of one quantity.
//
// Average is computed per pixel as (|AntiStokes| + |Stokes|)/2 and is NaN
// anywhere either side is missing: with only one peak type stored the image
// exists but is entirely NaN, and with neither the call fails with
// ErrNotFound. ElasticContrast divides the Shift image by the water
// reference shift derived from metadata and subtracts 1. The grid is rebuilt
// on every call and not cached.
func (ar *AnalysisResults) Image(ctx context.Context, q Quantity, pt PeakType, peak int) (*SpatialGrid, error) {
	if q == ElasticContrast {
		grid, err := ar.Image(ctx, Shift, pt, peak)
		if err != nil {
			return nil, err
		}
		if err := ar.applyElasticContrast(ctx, grid.Values); err != nil {
			return nil, err
		}
		return grid, nil
	}
	if pt == Average {
		return ar.averageImage(ctx, q, peak)
	}
	flat, err := ar.quantityValues(ctx, q, pt, peak)
	if err != nil {
		return nil, err
	}
	return ar.d.scatterRows(ctx, flat, 1, false)
}

// averageImage combines both concrete peak types into the average
// pseudo-peak image.
func (ar *AnalysisResults) averageImage(ctx context.Context, q Quantity, peak int) (*SpatialGrid, error) {
	as, asErr := ar.quantityValues(ctx, q, AntiStokes, peak)
	if asErr != nil && !errors.Is(asErr, ErrNotFound) {
		return nil, asErr
	}
	s, sErr := ar.quantityValues(ctx, q, Stokes, peak)
	if sErr != nil && !errors.Is(sErr, ErrNotFound) {
		return nil, sErr
	}
	switch {
	case as == nil && s == nil:
		return nil, fmt.Errorf("brim: quantity %s: stored for no peak type: %w", q, ErrNotFound)
	case as != nil && s != nil:
		if len(as) != len(s) {
			return nil, fmt.Errorf("brim: quantity %s: peak types differ in length: %w", q, ErrNotContainer)
		}
		avg := make([]float64, len(as))
		for i := range avg {
			avg[i] = (math.Abs(as[i]) + math.Abs(s[i])) / 2
		}
		return ar.d.scatterRows(ctx, avg, 1, false)
	default:
		// One peak type only: the average is defined nowhere.
		one := as
		if one == nil {
			one = s
		}
		nan := make([]float64, len(one))
		for i := range nan {
			nan[i] = math.NaN()
		}
		return ar.d.scatterRows(ctx, nan, 1, false)
	}
}

// QuantityAt reads one quantity at an image position without materializing
// the grid.
//
// Sparse positions resolve through the index map; cells the scan never
// visited, and averages where a peak side is missing, return NaN.
// ErrNotFound is reserved for quantities stored for no peak type; positions
// outside the image fail with ErrIndexOutOfRange.
func (ar *AnalysisResults) QuantityAt(ctx context.Context, coord [3]int, q Quantity, pt PeakType, peak int) (float64, error) {
	if q == ElasticContrast {
		shift, err := ar.QuantityAt(ctx, coord, Shift, pt, peak)
		if err != nil {
			return 0, err
		}
		vals := []float64{shift}
		if err := ar.applyElasticContrast(ctx, vals); err != nil {
			return 0, err
		}
		return vals[0], nil
	}

	sample, visited, err := ar.d.samplePosition(ctx, coord)
	if err != nil {
		return 0, err
	}

	if pt == Average {
		var as, s float64
		asOK, sOK := false, false
		if visited {
			as, asOK, err = ar.quantityAtSample(ctx, q, AntiStokes, peak, sample)
			if err != nil {
				return 0, err
			}
			s, sOK, err = ar.quantityAtSample(ctx, q, Stokes, peak, sample)
			if err != nil {
				return 0, err
			}
		} else {
			asOK, err = ar.g.HasArray(ctx, quantityDatasetName(q, AntiStokes, peak))
			if err != nil {
				return 0, fmt.Errorf("brim: analysis results %q: %w", ar.id, mapErr(err))
			}
			sOK, err = ar.g.HasArray(ctx, quantityDatasetName(q, Stokes, peak))
			if err != nil {
				return 0, fmt.Errorf("brim: analysis results %q: %w", ar.id, mapErr(err))
			}
			if asOK || sOK {
				return math.NaN(), nil
			}
		}
		switch {
		case !asOK && !sOK:
			return 0, fmt.Errorf("brim: quantity %s: stored for no peak type: %w", q, ErrNotFound)
		case asOK && sOK:
			return (math.Abs(as) + math.Abs(s)) / 2, nil
		default:
			return math.NaN(), nil
		}
	}

	if !visited {
		ok, err := ar.g.HasArray(ctx, quantityDatasetName(q, pt, peak))
		if err != nil {
			return 0, fmt.Errorf("brim: analysis results %q: %w", ar.id, mapErr(err))
		}
		if !ok {
			return 0, fmt.Errorf("brim: quantity %s (%s, peak %d): %w", q, pt, peak, ErrNotFound)
		}
		return math.NaN(), nil
	}
	v, ok, err := ar.quantityAtSample(ctx, q, pt, peak, sample)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("brim: quantity %s (%s, peak %d): %w", q, pt, peak, ErrNotFound)
	}
	return v, nil
}

// quantityAtSample point-reads one stored quantity value; ok=false when the
// dataset does not exist.
func (ar *AnalysisResults) quantityAtSample(ctx context.Context, q Quantity, pt PeakType, peak, sample int) (float64, bool, error) {
	arr, err := ar.g.Array(ctx, quantityDatasetName(q, pt, peak))
	if err != nil {
		if errors.Is(err, zarr.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("brim: quantity %s (%s, peak %d): %w", q, pt, peak, mapErr(err))
	}
	shape := arr.Shape()
	count := make([]int, len(shape))
	for i := range count {
		count[i] = 1
	}
	vals, err := arr.SliceFloat64(ctx, unflatten(sample, shape), count)
	if err != nil {
		return 0, false, fmt.Errorf("brim: quantity %s (%s, peak %d): %w", q, pt, peak, mapErr(err))
	}
	return vals[0], true, nil
}

// unflatten converts a flat C-order position into per-axis indices.
func unflatten(flat int, shape []int) []int {
	idx := make([]int, len(shape))
	for k := len(shape) - 1; k >= 0; k-- {
		idx[k] = flat % shape[k]
		flat /= shape[k]
	}
	return idx
}

// quantitiesAt gathers every stored quantity at one position, adding Average
// entries where derivable and ElasticContrast ones when the metadata allows.
func (ar *AnalysisResults) quantitiesAt(ctx context.Context, coord [3]int, peak int) (map[Quantity]map[PeakType]Item, error) {
	sample, visited, err := ar.d.samplePosition(ctx, coord)
	if err != nil {
		return nil, err
	}

	out := make(map[Quantity]map[PeakType]Item)
	add := func(q Quantity, pt PeakType, it Item) {
		if out[q] == nil {
			out[q] = make(map[PeakType]Item)
		}
		out[q][pt] = it
	}

	for _, pt := range []PeakType{AntiStokes, Stokes} {
		qts, err := ar.Quantities(ctx, pt, peak)
		if err != nil {
			return nil, err
		}
		for _, q := range qts {
			if q == ElasticContrast {
				continue
			}
			v := math.NaN()
			if visited {
				var ok bool
				v, ok, err = ar.quantityAtSample(ctx, q, pt, peak, sample)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
			}
			units, err := ar.Units(ctx, q, pt, peak)
			if err != nil {
				return nil, err
			}
			add(q, pt, Item{Value: NumberValue(v), Units: units})
		}
	}

	// Average entries where both sides exist, NaN ones where only one does.
	for q, byPT := range out {
		as, hasAS := byPT[AntiStokes]
		s, hasS := byPT[Stokes]
		switch {
		case hasAS && hasS:
			av, _ := as.Value.Number()
			sv, _ := s.Value.Number()
			add(q, Average, Item{Value: NumberValue((math.Abs(av) + math.Abs(sv)) / 2), Units: as.Units})
		case hasAS:
			add(q, Average, Item{Value: NumberValue(math.NaN()), Units: as.Units})
		case hasS:
			add(q, Average, Item{Value: NumberValue(math.NaN()), Units: s.Units})
		}
	}

	// Elastic contrast per Shift entry, skipped when the metadata lacks the
	// wavelength.
	if byPT, ok := out[Shift]; ok {
		water, err := ar.waterReferenceShift(ctx)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return out, nil
			}
			return nil, err
		}
		for pt, it := range byPT {
			v, _ := it.Value.Number()
			w := water
			if v < 0 {
				w = -w
			}
			add(ElasticContrast, pt, Item{Value: NumberValue(v/w - 1)})
		}
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Elastic contrast
// -----------------------------------------------------------------------------

// waterReferenceShift derives the Brillouin shift of water from the group's
// metadata: the wavelength entry is required, the temperature defaults to
// 22 °C and the scattering angle to 180°.
func (ar *AnalysisResults) waterReferenceShift(ctx context.Context) (float64, error) {
	md := ar.d.Metadata()
	wavelength, err := md.number(ctx, Optics, KeyWavelength)
	if err != nil {
		return 0, fmt.Errorf("brim: elastic contrast: %w", err)
	}
	temperature, err := md.number(ctx, Experiment, KeyTemperature)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return 0, fmt.Errorf("brim: elastic contrast: %w", err)
		}
		temperature = 22
	}
	angle, err := md.number(ctx, Optics, KeyScatteringAngle)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return 0, fmt.Errorf("brim: elastic contrast: %w", err)
		}
		angle = 180
	}
	return BrillouinShiftWater(wavelength, temperature, angle), nil
}

// applyElasticContrast rewrites shift values in place as elastic contrast.
// The water reference takes the sign of the data, so predominantly negative
// shift values still land near zero.
func (ar *AnalysisResults) applyElasticContrast(ctx context.Context, shift []float64) error {
	water, err := ar.waterReferenceShift(ctx)
	if err != nil {
		return err
	}
	if nanMean(shift) < 0 {
		water = -water
	}
	for i, v := range shift {
		shift[i] = v/water - 1
	}
	return nil
}

// nanMean averages the non-NaN values, NaN when there are none.
func nanMean(vals []float64) float64 {
	sum, n := 0.0, 0
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
