package brim

import (
	"context"
	"errors"
	"math"
	"testing"
)

func denseShift() []float64 {
	return []float64{7.1, 7.2, 7.3, 7.4, 7.5, 7.6}
}

// addShiftResults stores an anti-Stokes Shift on the group and returns the
// bound result set.
func addShiftResults(t *testing.T, d *Data, name string) *AnalysisResults {
	t.Helper()
	n, err := d.NumSpectra(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	shift := make([]float64, n)
	for i := range shift {
		shift[i] = 7.0 + 0.2*float64(i)
	}
	ar, err := d.CreateAnalysisResults(context.Background(),
		[]PeakData{{Shift: {Values: shift, Units: "GHz"}}}, nil,
		AnalysisConfig{Name: name})
	if err != nil {
		t.Fatal(err)
	}
	return ar
}

func setWavelength(t *testing.T, d *Data) {
	t.Helper()
	err := d.Metadata().Set(context.Background(), Optics, KeyWavelength,
		Item{Value: NumberValue(532), Units: "nm"})
	if err != nil {
		t.Fatal(err)
	}
}

// -----------------------------------------------------------------------------
// Creation and listing
// -----------------------------------------------------------------------------

func TestCreateAnalysisResults_Image_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f, path := newTestFile(t)
	d := addDenseGroup(t, f, "run")
	shift := denseShift()
	width := []float64{0.3, 0.3, 0.3, 0.4, 0.4, 0.4}
	_, err := d.CreateAnalysisResults(ctx,
		[]PeakData{{
			Shift: {Values: shift, Units: "GHz"},
			Width: {Values: width, Units: "GHz"},
		}}, nil,
		AnalysisConfig{Name: "fit-1"})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Close(ctx); err != nil {
		t.Fatal(err)
	}

	ro, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer ro.Close(ctx)
	d, err = ro.DataGroup(ctx, "run")
	if err != nil {
		t.Fatal(err)
	}
	infos, err := d.ListAnalysisResults(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || infos[0].ID != "Analysis_results_0" || infos[0].Name != "fit-1" {
		t.Fatalf("listing = %+v", infos)
	}
	ar, err := d.AnalysisResultsAt(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}

	grid, err := ar.Image(ctx, Shift, AntiStokes, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(grid.Shape) != 3 || grid.Shape[0] != 1 || grid.Shape[1] != 2 || grid.Shape[2] != 3 {
		t.Fatalf("image shape = %v, want [1 2 3]", grid.Shape)
	}
	for i, v := range shift {
		if grid.Values[i] != v {
			t.Errorf("image[%d] = %v, want %v", i, grid.Values[i], v)
		}
	}
	wantPixel := []float64{1, 2, 2}
	for k := range wantPixel {
		if grid.PixelSize[k] != wantPixel[k] {
			t.Errorf("pixel size = %v, want %v", grid.PixelSize, wantPixel)
		}
	}
	if grid.Units != "um" {
		t.Errorf("pixel units = %q, want um", grid.Units)
	}
}

func TestAnalysisResults_LookupByNameAndIndex(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t)
	d := addDenseGroup(t, f, "")
	addShiftResults(t, d, "first")
	addShiftResults(t, d, "second")

	ar, err := d.AnalysisResults(ctx, "second")
	if err != nil {
		t.Fatal(err)
	}
	if ar.ID() != "Analysis_results_1" || ar.Index() != 1 {
		t.Errorf("bound %q index %d", ar.ID(), ar.Index())
	}
	name, err := ar.Name(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if name != "second" {
		t.Errorf("name = %q", name)
	}

	ar, err = d.AnalysisResultsAt(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if ar.ID() != "Analysis_results_0" {
		t.Errorf("bound %q by index 0", ar.ID())
	}

	if _, err := d.AnalysisResults(ctx, "third"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
	if _, err := d.AnalysisResultsAt(ctx, 9); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

func TestCreateAnalysisResults_NameCollision(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t)
	d := addDenseGroup(t, f, "")
	addShiftResults(t, d, "fit")

	_, err := d.CreateAnalysisResults(ctx,
		[]PeakData{{Shift: {Values: denseShift()}}}, nil,
		AnalysisConfig{Name: "fit"})
	if !errors.Is(err, ErrNameCollision) {
		t.Errorf("expected ErrNameCollision, got: %v", err)
	}
}

func TestCreateAnalysisResults_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t)
	d := addDenseGroup(t, f, "")

	if _, err := d.CreateAnalysisResults(ctx, nil, nil, AnalysisConfig{}); err == nil {
		t.Error("expected error for empty input")
	}

	ec := []PeakData{{ElasticContrast: {Values: denseShift()}}}
	if _, err := d.CreateAnalysisResults(ctx, ec, nil, AnalysisConfig{}); err == nil {
		t.Error("expected error for stored elastic contrast")
	}

	short := []PeakData{{Shift: {Values: []float64{7.1, 7.2}}}}
	if _, err := d.CreateAnalysisResults(ctx, short, nil, AnalysisConfig{}); err == nil {
		t.Error("expected error for wrong value count")
	}

	as := []PeakData{{Shift: {Values: denseShift(), Units: "GHz"}}}
	s := []PeakData{{Shift: {Values: denseShift(), Units: "MHz"}}}
	if _, err := d.CreateAnalysisResults(ctx, as, s, AnalysisConfig{}); err == nil {
		t.Error("expected error for units differing between peak types")
	}
}

// -----------------------------------------------------------------------------
// Quantity and peak-type discovery
// -----------------------------------------------------------------------------

func TestQuantities_ListsStoredAndDerived(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t)
	d := addDenseGroup(t, f, "")
	shift := denseShift()
	r2 := []float64{0.99, 0.98, 0.97, 0.99, 0.96, 0.95}
	ar, err := d.CreateAnalysisResults(ctx,
		[]PeakData{{
			Shift: {Values: shift, Units: "GHz"},
			Width: {Values: shift, Units: "GHz"},
			R2:    {Values: r2},
			RMSE:  {Values: r2},
		}}, nil,
		AnalysisConfig{})
	if err != nil {
		t.Fatal(err)
	}

	got, err := ar.Quantities(ctx, AntiStokes, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []Quantity{Shift, Width, R2, RMSE, ElasticContrast}
	if len(got) != len(want) {
		t.Fatalf("quantities = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("quantities = %v, want %v", got, want)
		}
	}

	none, err := ar.Quantities(ctx, Stokes, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("Stokes quantities = %v, want none", none)
	}

	avg, err := ar.Quantities(ctx, Average, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(avg) != len(want) {
		t.Errorf("Average quantities = %v, want %v", avg, want)
	}
}

func TestPeakTypes_ProbesShiftDataset(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t)
	d := addDenseGroup(t, f, "")
	shift := denseShift()
	both, err := d.CreateAnalysisResults(ctx,
		[]PeakData{{Shift: {Values: shift}}},
		[]PeakData{{Shift: {Values: shift}}},
		AnalysisConfig{})
	if err != nil {
		t.Fatal(err)
	}
	pts, err := both.PeakTypes(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) != 2 || pts[0] != AntiStokes || pts[1] != Stokes {
		t.Errorf("peak types = %v, want [AS S]", pts)
	}

	widthOnly, err := d.CreateAnalysisResults(ctx,
		[]PeakData{{Width: {Values: shift}}}, nil, AnalysisConfig{})
	if err != nil {
		t.Fatal(err)
	}
	pts, err = widthOnly.PeakTypes(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) != 0 {
		t.Errorf("peak types = %v, want none without Shift", pts)
	}
}

func TestUnits_PerPeakType(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t)
	d := addDenseGroup(t, f, "")
	ar := addShiftResults(t, d, "")

	units, err := ar.Units(ctx, Shift, AntiStokes, 0)
	if err != nil {
		t.Fatal(err)
	}
	if units != "GHz" {
		t.Errorf("units = %q, want GHz", units)
	}

	units, err = ar.Units(ctx, Shift, Average, 0)
	if err != nil {
		t.Fatal(err)
	}
	if units != "GHz" {
		t.Errorf("average units = %q, want GHz", units)
	}

	units, err = ar.Units(ctx, ElasticContrast, AntiStokes, 0)
	if err != nil {
		t.Fatal(err)
	}
	if units != "" {
		t.Errorf("elastic contrast units = %q, want unit-less", units)
	}

	if _, err := ar.Units(ctx, Width, Stokes, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

func TestQuantityAt_FitError_ReadsSubgroup(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t)
	d := addDenseGroup(t, f, "")
	r2 := []float64{0.91, 0.92, 0.93, 0.94, 0.95, 0.96}
	ar, err := d.CreateAnalysisResults(ctx,
		[]PeakData{{
			Shift: {Values: denseShift(), Units: "GHz"},
			R2:    {Values: r2},
		}}, nil, AnalysisConfig{})
	if err != nil {
		t.Fatal(err)
	}

	// (0,1,2) is the last cell of the 1x2x3 image.
	v, err := ar.QuantityAt(ctx, [3]int{0, 1, 2}, R2, AntiStokes, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0.96 {
		t.Errorf("R2 at (0,1,2) = %v, want 0.96", v)
	}
}

// -----------------------------------------------------------------------------
// Average pseudo-peak
// -----------------------------------------------------------------------------

func TestImage_Average_CombinesBothPeakTypes(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t)
	d := addDenseGroup(t, f, "")
	as := []float64{7.0, 7.1, 7.2, 7.3, 7.4, 7.5}
	s := []float64{-7.2, -7.3, -7.0, -7.1, -7.6, -7.5}
	ar, err := d.CreateAnalysisResults(ctx,
		[]PeakData{{Shift: {Values: as, Units: "GHz"}}},
		[]PeakData{{Shift: {Values: s, Units: "GHz"}}},
		AnalysisConfig{})
	if err != nil {
		t.Fatal(err)
	}

	grid, err := ar.Image(ctx, Shift, Average, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i := range as {
		want := (math.Abs(as[i]) + math.Abs(s[i])) / 2
		if math.Abs(grid.Values[i]-want) > 1e-12 {
			t.Errorf("average[%d] = %v, want %v", i, grid.Values[i], want)
		}
	}
}

func TestImage_Average_SingleSide_AllNaN(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t)
	d := addDenseGroup(t, f, "")
	ar, err := d.CreateAnalysisResults(ctx, nil,
		[]PeakData{{Shift: {Values: denseShift(), Units: "GHz"}}},
		AnalysisConfig{})
	if err != nil {
		t.Fatal(err)
	}

	grid, err := ar.Image(ctx, Shift, Average, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range grid.Values {
		if !math.IsNaN(v) {
			t.Errorf("average[%d] = %v, want NaN with one peak type", i, v)
		}
	}

	if _, err := ar.Image(ctx, Width, Average, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for quantity stored nowhere, got: %v", err)
	}
}

func TestQuantityAt_Average_Dense(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t)
	d := addDenseGroup(t, f, "")
	as := []float64{7.0, 7.1, 7.2, 7.3, 7.4, 7.5}
	s := []float64{-7.2, -7.3, -7.0, -7.1, -7.6, -7.5}
	ar, err := d.CreateAnalysisResults(ctx,
		[]PeakData{{Shift: {Values: as, Units: "GHz"}}},
		[]PeakData{{Shift: {Values: s, Units: "GHz"}}},
		AnalysisConfig{})
	if err != nil {
		t.Fatal(err)
	}

	// (0,1,2) is flat position 5.
	v, err := ar.QuantityAt(ctx, [3]int{0, 1, 2}, Shift, Average, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := (math.Abs(as[5]) + math.Abs(s[5])) / 2
	if math.Abs(v-want) > 1e-12 {
		t.Errorf("average at (0,1,2) = %v, want %v", v, want)
	}
}

// -----------------------------------------------------------------------------
// Sparse point access
// -----------------------------------------------------------------------------

func TestQuantityAt_SparseSemantics(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t)
	d := addSparseCoordGroup(t, f, "")
	shift := []float64{7.0, 7.2, 7.4}
	ar, err := d.CreateAnalysisResults(ctx,
		[]PeakData{{Shift: {Values: shift, Units: "GHz"}}}, nil,
		AnalysisConfig{})
	if err != nil {
		t.Fatal(err)
	}

	v, err := ar.QuantityAt(ctx, [3]int{0, 0, 1}, Shift, AntiStokes, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v != 7.2 {
		t.Errorf("shift at (0,0,1) = %v, want 7.2", v)
	}

	// (0,1,1) is inside the image but was never scanned.
	v, err = ar.QuantityAt(ctx, [3]int{0, 1, 1}, Shift, AntiStokes, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(v) {
		t.Errorf("shift at empty cell = %v, want NaN", v)
	}

	if _, err := ar.QuantityAt(ctx, [3]int{0, 0, 0}, Width, AntiStokes, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for quantity never stored, got: %v", err)
	}
	if _, err := ar.QuantityAt(ctx, [3]int{0, 5, 0}, Shift, AntiStokes, 0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange outside image, got: %v", err)
	}

	// Averages with one peak type are NaN everywhere, including empty cells.
	v, err = ar.QuantityAt(ctx, [3]int{0, 0, 0}, Shift, Average, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(v) {
		t.Errorf("single-sided average = %v, want NaN", v)
	}
	v, err = ar.QuantityAt(ctx, [3]int{0, 1, 1}, Shift, Average, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(v) {
		t.Errorf("average at empty cell = %v, want NaN", v)
	}
	if _, err := ar.QuantityAt(ctx, [3]int{0, 0, 0}, Width, Average, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for average stored nowhere, got: %v", err)
	}
}

// -----------------------------------------------------------------------------
// Elastic contrast
// -----------------------------------------------------------------------------

func TestImage_ElasticContrast(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t)
	d := addDenseGroup(t, f, "")
	setWavelength(t, d)
	shift := denseShift()
	ar, err := d.CreateAnalysisResults(ctx,
		[]PeakData{{Shift: {Values: shift, Units: "GHz"}}}, nil,
		AnalysisConfig{})
	if err != nil {
		t.Fatal(err)
	}

	grid, err := ar.Image(ctx, ElasticContrast, AntiStokes, 0)
	if err != nil {
		t.Fatal(err)
	}
	water := BrillouinShiftWater(532, 22, 180)
	for i, v := range shift {
		want := v/water - 1
		if math.Abs(grid.Values[i]-want) > 1e-12 {
			t.Errorf("contrast[%d] = %v, want %v", i, grid.Values[i], want)
		}
	}
}

func TestImage_ElasticContrast_UsesMetadataOverrides(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t)
	d := addDenseGroup(t, f, "")
	md := d.Metadata()
	if err := md.Set(ctx, Optics, KeyWavelength, Item{Value: NumberValue(660), Units: "nm"}); err != nil {
		t.Fatal(err)
	}
	if err := md.Set(ctx, Optics, KeyScatteringAngle, Item{Value: NumberValue(90), Units: "deg"}); err != nil {
		t.Fatal(err)
	}
	if err := md.Set(ctx, Experiment, KeyTemperature, Item{Value: NumberValue(30), Units: "C"}); err != nil {
		t.Fatal(err)
	}
	ar := addShiftResults(t, d, "")

	v, err := ar.QuantityAt(ctx, [3]int{0, 0, 0}, ElasticContrast, AntiStokes, 0)
	if err != nil {
		t.Fatal(err)
	}
	water := BrillouinShiftWater(660, 30, 90)
	want := 7.0/water - 1
	if math.Abs(v-want) > 1e-12 {
		t.Errorf("contrast = %v, want %v", v, want)
	}
}

func TestImage_ElasticContrast_NegativeShifts(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t)
	d := addDenseGroup(t, f, "")
	setWavelength(t, d)
	shift := []float64{-7.0, -7.1, -7.2, -7.3, -7.4, -7.5}
	ar, err := d.CreateAnalysisResults(ctx, nil,
		[]PeakData{{Shift: {Values: shift, Units: "GHz"}}},
		AnalysisConfig{})
	if err != nil {
		t.Fatal(err)
	}

	grid, err := ar.Image(ctx, ElasticContrast, Stokes, 0)
	if err != nil {
		t.Fatal(err)
	}
	water := BrillouinShiftWater(532, 22, 180)
	for i, v := range shift {
		want := math.Abs(v)/water - 1
		if math.Abs(grid.Values[i]-want) > 1e-12 {
			t.Errorf("contrast[%d] = %v, want %v", i, grid.Values[i], want)
		}
	}
}

func TestImage_ElasticContrast_MissingWavelength(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t)
	d := addDenseGroup(t, f, "")
	ar := addShiftResults(t, d, "")

	if _, err := ar.Image(ctx, ElasticContrast, AntiStokes, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound without wavelength metadata, got: %v", err)
	}
}

// -----------------------------------------------------------------------------
// Fit model
// -----------------------------------------------------------------------------

func TestFitModel_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f, path := newTestFile(t)
	d := addDenseGroup(t, f, "run")
	_, err := d.CreateAnalysisResults(ctx,
		[]PeakData{{Shift: {Values: denseShift()}}}, nil,
		AnalysisConfig{FitModel: FitModelLorentzian})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Close(ctx); err != nil {
		t.Fatal(err)
	}

	ro, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer ro.Close(ctx)
	d, err = ro.DataGroup(ctx, "run")
	if err != nil {
		t.Fatal(err)
	}
	ar, err := d.AnalysisResultsAt(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	fm, err := ar.FitModel(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if fm != FitModelLorentzian {
		t.Errorf("fit model = %q, want %q", fm, FitModelLorentzian)
	}
}

func TestFitModel_MissingOrUnknown_ReadsUndefined(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t)
	d := addDenseGroup(t, f, "")

	plain := addShiftResults(t, d, "")
	fm, err := plain.FitModel(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if fm != FitModelUndefined {
		t.Errorf("fit model = %q, want undefined when unset", fm)
	}

	odd, err := d.CreateAnalysisResults(ctx,
		[]PeakData{{Shift: {Values: denseShift()}}}, nil,
		AnalysisConfig{FitModel: FitModel("Banana")})
	if err != nil {
		t.Fatal(err)
	}
	fm, err = odd.FitModel(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if fm != FitModelUndefined {
		t.Errorf("fit model = %q, want undefined for unrecognized value", fm)
	}
}

// -----------------------------------------------------------------------------
// Combined access
// -----------------------------------------------------------------------------

func TestSpectrumAndQuantitiesAt_GathersEverything(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t)
	d := addDenseGroup(t, f, "")
	setWavelength(t, d)
	as := []float64{7.0, 7.1, 7.2, 7.3, 7.4, 7.5}
	s := []float64{-7.2, -7.3, -7.0, -7.1, -7.6, -7.5}
	ar, err := d.CreateAnalysisResults(ctx,
		[]PeakData{{Shift: {Values: as, Units: "GHz"}}},
		[]PeakData{{Shift: {Values: s, Units: "GHz"}}},
		AnalysisConfig{})
	if err != nil {
		t.Fatal(err)
	}

	sp, qts, err := d.SpectrumAndQuantitiesAt(ctx, ar, [3]int{0, 0, 1}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if sp.PSD[0] != 4 {
		t.Errorf("PSD[0] = %v, want 4", sp.PSD[0])
	}

	byPT, ok := qts[Shift]
	if !ok {
		t.Fatal("Shift missing from combined read")
	}
	if v, _ := byPT[AntiStokes].Value.Number(); v != as[1] {
		t.Errorf("Shift AS = %v, want %v", v, as[1])
	}
	if byPT[AntiStokes].Units != "GHz" {
		t.Errorf("Shift AS units = %q", byPT[AntiStokes].Units)
	}
	if v, _ := byPT[Stokes].Value.Number(); v != s[1] {
		t.Errorf("Shift S = %v, want %v", v, s[1])
	}
	wantAvg := (math.Abs(as[1]) + math.Abs(s[1])) / 2
	if v, _ := byPT[Average].Value.Number(); math.Abs(v-wantAvg) > 1e-12 {
		t.Errorf("Shift avg = %v, want %v", v, wantAvg)
	}

	water := BrillouinShiftWater(532, 22, 180)
	ec, ok := qts[ElasticContrast]
	if !ok {
		t.Fatal("ElasticContrast missing from combined read")
	}
	if v, _ := ec[AntiStokes].Value.Number(); math.Abs(v-(as[1]/water-1)) > 1e-12 {
		t.Errorf("contrast AS = %v", v)
	}
	// Negative Stokes shifts compare against the negated reference.
	if v, _ := ec[Stokes].Value.Number(); math.Abs(v-(s[1]/-water-1)) > 1e-12 {
		t.Errorf("contrast S = %v", v)
	}
	if ec[AntiStokes].Units != "" {
		t.Errorf("contrast units = %q, want unit-less", ec[AntiStokes].Units)
	}

	if _, ok := qts[Width]; ok {
		t.Error("Width should not appear, it was never stored")
	}
}

func TestSpectrumAndQuantitiesAt_SkipsContrastWithoutWavelength(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t)
	d := addDenseGroup(t, f, "")
	ar := addShiftResults(t, d, "")

	_, qts, err := d.SpectrumAndQuantitiesAt(ctx, ar, [3]int{0, 0, 0}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := qts[Shift]; !ok {
		t.Error("Shift missing from combined read")
	}
	if _, ok := qts[ElasticContrast]; ok {
		t.Error("ElasticContrast should be skipped without wavelength metadata")
	}
}
