package brim

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/brim-format/brim-go/zarr"
)

// -----------------------------------------------------------------------------
// Fixtures
// -----------------------------------------------------------------------------

func tempPath(t *testing.T, name string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "brim-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, name)
}

func newTestFile(t *testing.T) (*File, string) {
	t.Helper()
	path := tempPath(t, "sample.brim")
	f, err := Create(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close(context.Background()) })
	return f, path
}

// denseCube builds a 1x2x3 image with 4 frequency bins and ascending values.
func denseCube() SpectralCube {
	psd := make([]float64, 1*2*3*4)
	for i := range psd {
		psd[i] = float64(i)
	}
	return SpectralCube{
		PSD:       psd,
		Shape:     []int{1, 2, 3, 4},
		Frequency: []float64{5, 6, 7, 8},
	}
}

func addDenseGroup(t *testing.T, f *File, name string) *Data {
	t.Helper()
	d, err := f.CreateDataGroup(context.Background(), denseCube(), [3]float64{1, 2, 2}, DataGroupConfig{Name: name})
	if err != nil {
		t.Fatal(err)
	}
	return d
}

// sparseScan builds three spectra of 3 bins on a 2x2 grid with the (1,1)
// cell never visited: x spacing 2, y spacing 3, z collapsed.
func sparseScan() (SpectralCube, ScanLayout) {
	cube := SpectralCube{
		PSD:       []float64{10, 11, 12, 20, 21, 22, 30, 31, 32},
		Shape:     []int{3, 3},
		Frequency: []float64{1, 2, 3},
	}
	scan := ScanLayout{
		X: []float64{0, 2, 0},
		Y: []float64{0, 0, 3},
	}
	return cube, scan
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

func TestCreate_ThenOpen_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f, path := newTestFile(t)
	addDenseGroup(t, f, "run-1")
	if err := f.Close(ctx); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer reopened.Close(ctx)

	if !reopened.IsReadOnly() {
		t.Error("expected read-only handle by default")
	}
	if !reopened.Valid(ctx) {
		t.Error("expected reopened container to be valid")
	}
	infos, err := reopened.ListDataGroups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || infos[0].Name != "run-1" || infos[0].ID != "Data_0" {
		t.Errorf("unexpected listing: %+v", infos)
	}
}

func TestCreate_OccupiedPath_ErrExists(t *testing.T) {
	ctx := context.Background()
	f, path := newTestFile(t)
	if err := f.Close(ctx); err != nil {
		t.Fatal(err)
	}

	if _, err := Create(ctx, path); !errors.Is(err, ErrExists) {
		t.Errorf("expected ErrExists, got: %v", err)
	}
}

func TestOpen_EmptyDirectory_ErrNotContainer(t *testing.T) {
	ctx := context.Background()
	path := tempPath(t, "empty")
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(ctx, path); !errors.Is(err, ErrNotContainer) {
		t.Errorf("expected ErrNotContainer, got: %v", err)
	}
}

func TestOpen_MissingVersionAttr_ErrNotContainer(t *testing.T) {
	ctx := context.Background()
	path := tempPath(t, "bare")
	store, err := zarr.CreateDirStore(path)
	if err != nil {
		t.Fatal(err)
	}
	h, err := zarr.Create(ctx, store)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.Root().CreateGroup(ctx, "Brillouin_data"); err != nil {
		t.Fatal(err)
	}
	if err := h.Close(ctx); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(ctx, path); !errors.Is(err, ErrNotContainer) {
		t.Errorf("expected ErrNotContainer, got: %v", err)
	}
}

func TestOpen_FutureVersion_ErrUnsupportedVersion(t *testing.T) {
	ctx := context.Background()
	path := tempPath(t, "future")
	store, err := zarr.CreateDirStore(path)
	if err != nil {
		t.Fatal(err)
	}
	h, err := zarr.Create(ctx, store)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Root().SetAttr(ctx, "brim_version", "9.9"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Root().CreateGroup(ctx, "Brillouin_data"); err != nil {
		t.Fatal(err)
	}
	if err := h.Close(ctx); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(ctx, path); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected ErrUnsupportedVersion, got: %v", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t)
	if err := f.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(ctx); err != nil {
		t.Errorf("second close: %v", err)
	}
}

// -----------------------------------------------------------------------------
// Data group management
// -----------------------------------------------------------------------------

func TestCreateDataGroup_AutoNamesDistinct(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t)
	addDenseGroup(t, f, "")
	addDenseGroup(t, f, "")

	infos, err := f.ListDataGroups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(infos))
	}
	if infos[0].Name == infos[1].Name {
		t.Errorf("expected distinct fallback names, both %q", infos[0].Name)
	}
	if infos[0].ID != "Data_0" || infos[1].ID != "Data_1" {
		t.Errorf("unexpected ids: %q, %q", infos[0].ID, infos[1].ID)
	}
}

func TestCreateDataGroup_NameCollision(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t)
	addDenseGroup(t, f, "run")

	_, err := f.CreateDataGroup(ctx, denseCube(), [3]float64{1, 1, 1}, DataGroupConfig{Name: "run"})
	if !errors.Is(err, ErrNameCollision) {
		t.Errorf("expected ErrNameCollision, got: %v", err)
	}
}

func TestCreateDataGroup_BadShape_ReturnsError(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t)

	cube := denseCube()
	cube.Shape = []int{2, 3, 4}
	if _, err := f.CreateDataGroup(ctx, cube, [3]float64{1, 1, 1}, DataGroupConfig{}); err == nil {
		t.Error("expected error for 3-axis dense cube")
	}

	cube = denseCube()
	if _, err := f.CreateDataGroup(ctx, cube, [3]float64{1, 0, 1}, DataGroupConfig{}); err == nil {
		t.Error("expected error for non-positive pixel size")
	}

	cube = denseCube()
	cube.Frequency = cube.Frequency[:2]
	if _, err := f.CreateDataGroup(ctx, cube, [3]float64{1, 1, 1}, DataGroupConfig{}); err == nil {
		t.Error("expected error for frequency axis mismatch")
	}
}

func TestDataGroup_LookupByNameAndIndex(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t)
	addDenseGroup(t, f, "alpha")
	addDenseGroup(t, f, "beta")

	d, err := f.DataGroup(ctx, "beta")
	if err != nil {
		t.Fatal(err)
	}
	if d.Index() != 1 || d.ID() != "Data_1" {
		t.Errorf("unexpected binding: index=%d id=%q", d.Index(), d.ID())
	}

	d, err = f.DataGroupAt(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	name, err := d.Name(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if name != "alpha" {
		t.Errorf("expected alpha, got %q", name)
	}

	if _, err := f.DataGroup(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
	if _, err := f.DataGroupAt(ctx, 7); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

// -----------------------------------------------------------------------------
// Read-only enforcement
// -----------------------------------------------------------------------------

func TestReadOnly_MutationsRejected_BackendUnchanged(t *testing.T) {
	ctx := context.Background()
	f, path := newTestFile(t)
	addDenseGroup(t, f, "run")
	if err := f.Close(ctx); err != nil {
		t.Fatal(err)
	}

	ro, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer ro.Close(ctx)

	if _, err := ro.CreateDataGroup(ctx, denseCube(), [3]float64{1, 1, 1}, DataGroupConfig{}); !errors.Is(err, ErrReadOnly) {
		t.Errorf("CreateDataGroup: expected ErrReadOnly, got: %v", err)
	}
	err = ro.Metadata().Set(ctx, Experiment, "Sample", Item{Value: StringValue("agarose")})
	if !errors.Is(err, ErrReadOnly) {
		t.Errorf("Set: expected ErrReadOnly, got: %v", err)
	}
	d, err := ro.DataGroup(ctx, "run")
	if err != nil {
		t.Fatal(err)
	}
	shift := make([]float64, 6)
	_, err = d.CreateAnalysisResults(ctx, []PeakData{{Shift: {Values: shift}}}, nil, AnalysisConfig{})
	if !errors.Is(err, ErrReadOnly) {
		t.Errorf("CreateAnalysisResults: expected ErrReadOnly, got: %v", err)
	}
	if err := ro.Close(ctx); err != nil {
		t.Fatal(err)
	}

	// Nothing must have leaked into the container.
	check, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer check.Close(ctx)
	infos, err := check.ListDataGroups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 {
		t.Errorf("expected 1 data group after rejected writes, got %d", len(infos))
	}
	if _, err := check.Metadata().Get(ctx, Experiment, "Sample"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for rejected metadata, got: %v", err)
	}
	d, err = check.DataGroup(ctx, "run")
	if err != nil {
		t.Fatal(err)
	}
	ars, err := d.ListAnalysisResults(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ars) != 0 {
		t.Errorf("expected no analysis results after rejected write, got %d", len(ars))
	}
}

func TestOpen_ReadWrite_AllowsMutation(t *testing.T) {
	ctx := context.Background()
	f, path := newTestFile(t)
	addDenseGroup(t, f, "first")
	if err := f.Close(ctx); err != nil {
		t.Fatal(err)
	}

	rw, err := Open(ctx, path, ReadWrite())
	if err != nil {
		t.Fatal(err)
	}
	defer rw.Close(ctx)
	if rw.IsReadOnly() {
		t.Fatal("expected writable handle")
	}
	addDenseGroup(t, rw, "second")
	if err := rw.Close(ctx); err != nil {
		t.Fatal(err)
	}

	check, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer check.Close(ctx)
	infos, err := check.ListDataGroups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 {
		t.Errorf("expected 2 data groups, got %d", len(infos))
	}
}

// -----------------------------------------------------------------------------
// Zip archives
// -----------------------------------------------------------------------------

func TestZip_CreateCloseOpen(t *testing.T) {
	ctx := context.Background()
	path := tempPath(t, "archive.zip")

	f, err := Create(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	addDenseGroup(t, f, "zipped")
	if err := f.Close(ctx); err != nil {
		t.Fatal(err)
	}

	ro, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open zip failed: %v", err)
	}
	defer ro.Close(ctx)

	d, err := ro.DataGroup(ctx, "zipped")
	if err != nil {
		t.Fatal(err)
	}
	sp, err := d.SpectrumAt(ctx, [3]int{0, 1, 2})
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{20, 21, 22, 23}
	for i, v := range want {
		if sp.PSD[i] != v {
			t.Errorf("PSD[%d] = %v, want %v", i, sp.PSD[i], v)
		}
	}
}

func TestZip_OpenReadWrite_ErrReadOnly(t *testing.T) {
	ctx := context.Background()
	path := tempPath(t, "archive.zip")
	f, err := Create(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Close(ctx); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(ctx, path, ReadWrite()); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got: %v", err)
	}
}
