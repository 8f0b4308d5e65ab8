package brim

import "math"

// BrillouinShiftWater returns the expected Brillouin shift of water in GHz
// for the given optical wavelength (nm), temperature (°C), and scattering
// angle (degrees).
//
// The speed of sound comes from a 4th-order polynomial fit to measured data,
// valid between 20 and 40 °C; the refractive index is held at 1.333 across
// that range.
func BrillouinShiftWater(wavelengthNM, temperatureC, scatteringAngleDeg float64) float64 {
	const refractiveIndex = 1.333
	t := temperatureC
	speedOfSound := 1485.115245 +
		t*(-6.273078+t*(5.308978e-1+t*(-1.319485681e-2+t*1.12602896e-4)))
	halfAngle := scatteringAngleDeg / 2 * math.Pi / 180
	return 2 * speedOfSound * refractiveIndex * math.Sin(halfAngle) / wavelengthNM
}
