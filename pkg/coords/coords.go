// Package coords converts between the coordinate units used by the Alpaca
// API (hours of right ascension, degrees of declination) and the radians the
// Origin wire protocol expects. 12 hours = π radians.
package coords

import "math"

// HoursToRadians converts right ascension in hours to radians.
func HoursToRadians(hours float64) float64 {
	return hours * math.Pi / 12.0
}

// RadiansToHours converts right ascension in radians to hours.
func RadiansToHours(radians float64) float64 {
	return radians * 12.0 / math.Pi
}

// DegreesToRadians converts degrees to radians.
func DegreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180.0
}

// RadiansToDegrees converts radians to degrees.
func RadiansToDegrees(radians float64) float64 {
	return radians * 180.0 / math.Pi
}
