// Package brim reads and writes brim containers, the storage format for
// Brillouin-microscopy datasets: raw spectral cubes, per-pixel quantities
// derived from peak fitting, and typed metadata, organized as a hierarchy of
// chunked arrays.
//
// Brim focuses on access structure: data groups, analysis-result sets, and
// explicit typed metadata. It does not implement peak fitting or rendering.
package brim

// -----------------------------------------------------------------------------
// Core types
// -----------------------------------------------------------------------------

// Quantity identifies a per-pixel quantity derived from peak fitting.
//
// The predeclared constants cover the standard fit outputs; any other value
// names a custom quantity stored under its own dataset name. ElasticContrast
// is computed from Shift and the water reference shift on read and is never
// stored.
type Quantity string

// Standard quantities.
const (
	Shift     Quantity = "Shift"
	Width     Quantity = "Width"
	Amplitude Quantity = "Amplitude"
	Offset    Quantity = "Offset"
	R2        Quantity = "R2"
	RMSE      Quantity = "RMSE"

	ElasticContrast Quantity = "Elastic_contrast"
)

// fitError reports whether the quantity lives under the fit-error subgroup.
func (q Quantity) fitError() bool { return q == R2 || q == RMSE }

// PeakType identifies which spectral peak a quantity was fitted to.
//
// Stokes and AntiStokes are the stored peaks; any other value names a custom
// peak. Average is a pseudo-peak combining Stokes and AntiStokes on read and
// is never stored.
type PeakType string

// Standard peak types.
const (
	AntiStokes PeakType = "AS"
	Stokes     PeakType = "S"
	Average    PeakType = "avg"
)

// FitModel describes the spectral model a result set was fitted with.
type FitModel string

// Known fit models. Unrecognized stored values read as FitModelUndefined.
const (
	FitModelUndefined  FitModel = "Undefined"
	FitModelLorentzian FitModel = "Lorentzian"
	FitModelDHO        FitModel = "DHO"
	FitModelGaussian   FitModel = "Gaussian"
	FitModelVoigt      FitModel = "Voigt"
	FitModelCustom     FitModel = "Custom"
)

// Category groups related metadata entries. The constants below are the
// conventional categories; any other value names a custom category.
type Category string

// Conventional metadata categories.
const (
	Experiment   Category = "Experiment"
	Optics       Category = "Optics"
	Brillouin    Category = "Brillouin"
	Acquisition  Category = "Acquisition"
	Spectrometer Category = "Spectrometer"
)

// Metadata keys consulted when computing ElasticContrast. Wavelength and
// ScatteringAngle live under Optics, Temperature under Experiment; their
// values are read as nanometres, degrees, and degrees Celsius respectively.
const (
	KeyWavelength      = "Wavelength"
	KeyTemperature     = "Temperature"
	KeyScatteringAngle = "Scattering_angle"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

// Error sentinel values for common conditions.
var (
	// ErrUnsupportedVersion indicates a container written with a format
	// version this implementation does not understand.
	ErrUnsupportedVersion = errUnsupportedVersion{}

	// ErrNotContainer indicates the target is missing the root structure or
	// attributes of a brim container.
	ErrNotContainer = errNotContainer{}

	// ErrExists indicates an attempt to create a container over an occupied
	// path.
	ErrExists = errExists{}

	// ErrNameCollision indicates a new group's name matches an existing one.
	ErrNameCollision = errNameCollision{}

	// ErrNotFound indicates a requested group, entry, or quantity does not
	// exist.
	ErrNotFound = errNotFound{}

	// ErrReadOnly indicates a mutating call on a read-only container.
	ErrReadOnly = errReadOnly{}

	// ErrIndexOutOfRange indicates an image position with no recorded
	// acquisition.
	ErrIndexOutOfRange = errIndexOutOfRange{}

	// ErrIrregularGrid indicates scan coordinates that cannot be reconciled
	// to a regular grid.
	ErrIrregularGrid = errIrregularGrid{}

	// ErrDuplicateCoordinate indicates two samples mapping to the same grid
	// cell with differing values.
	ErrDuplicateCoordinate = errDuplicateCoordinate{}

	// ErrBackend wraps storage failures from the underlying array store.
	ErrBackend = errBackend{}
)

type errUnsupportedVersion struct{}

func (errUnsupportedVersion) Error() string { return "unsupported format version" }

type errNotContainer struct{}

func (errNotContainer) Error() string { return "not a brim container" }

type errExists struct{}

func (errExists) Error() string { return "already exists" }

type errNameCollision struct{}

func (errNameCollision) Error() string { return "name collision" }

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

type errReadOnly struct{}

func (errReadOnly) Error() string { return "read-only" }

type errIndexOutOfRange struct{}

func (errIndexOutOfRange) Error() string { return "index out of range" }

type errIrregularGrid struct{}

func (errIrregularGrid) Error() string { return "irregular grid" }

type errDuplicateCoordinate struct{}

func (errDuplicateCoordinate) Error() string { return "duplicate coordinate" }

type errBackend struct{}

func (errBackend) Error() string { return "backend failure" }
