package brim

import (
	"strconv"
	"strings"
)

// Object and attribute names fixed by the container layout.
const (
	baseGroupName     = "Brillouin_data"
	metadataGroupName = "Metadata"

	dataGroupPrefix     = "Data_"
	analysisGroupPrefix = "Analysis_results_"
	fitErrorPrefix      = "Fit_error_"

	psdName        = "PSD"
	frequencyName  = "Frequency"
	spatialMapName = "Spatial_map"
	cartesianName  = "Cartesian_visualisation"
	timestampName  = "Timestamp"

	versionAttr     = "brim_version"
	nameAttr        = "Name"
	sparseAttr      = "Sparse"
	elementSizeAttr = "element_size"
	unitsAttr       = "units"
	fitModelAttr    = "Fit_model"
)

// currentVersion is stamped on new containers; supportedVersions is the set
// this implementation can read.
const currentVersion = "0.1"

var supportedVersions = map[string]bool{"0.1": true}

// Default unit annotations.
const (
	defaultSpatialUnits   = "um"
	defaultFrequencyUnits = "GHz"
)

// spatialAxisNames are the coordinate arrays of a Spatial_map group, in the
// (z, y, x) axis order used throughout.
var spatialAxisNames = [3]string{"z", "y", "x"}

// attrUnits returns the name of the companion attribute holding the unit of
// another attribute, e.g. "element_size_units".
func attrUnits(attr string) string { return attr + "_units" }

// numberedName builds group ids like "Data_0" or "Analysis_results_3".
func numberedName(prefix string, index int) string {
	return prefix + strconv.Itoa(index)
}

// parseNumberedName extracts the index from ids produced by numberedName.
// Zero-padded digits are accepted; anything else after the prefix is not.
func parseNumberedName(prefix, name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok || rest == "" {
		return 0, false
	}
	for _, c := range rest {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}

// quantityDatasetName returns the dataset path of a quantity relative to its
// analysis-result group. Fit-error quantities live one level down, e.g.
// "Fit_error_AS_0/R2"; everything else is flat, e.g. "Shift_AS_0".
func quantityDatasetName(q Quantity, pt PeakType, peak int) string {
	if q.fitError() {
		return fitErrorGroupName(pt, peak) + "/" + string(q)
	}
	return string(q) + quantityNameSuffix(pt, peak)
}

// fitErrorGroupName returns the subgroup holding the fit-error quantities of
// one peak, e.g. "Fit_error_S_1".
func fitErrorGroupName(pt PeakType, peak int) string {
	return fitErrorPrefix + string(pt) + "_" + strconv.Itoa(peak)
}

// quantityNameSuffix is the trailing part of flat quantity dataset names for
// one (peak type, peak index) pair.
func quantityNameSuffix(pt PeakType, peak int) string {
	return "_" + string(pt) + "_" + strconv.Itoa(peak)
}
