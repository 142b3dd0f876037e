package coords

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHoursRoundTrip(t *testing.T) {
	for h := 0.0; h < 24.0; h += 0.25 {
		assert.InDelta(t, h, RadiansToHours(HoursToRadians(h)), 1e-12)
	}
}

func TestDegreesRoundTrip(t *testing.T) {
	for d := -90.0; d <= 90.0; d += 0.5 {
		assert.InDelta(t, d, RadiansToDegrees(DegreesToRadians(d)), 1e-12)
	}
}

func TestKnownValues(t *testing.T) {
	t.Run("12 hours is pi radians", func(t *testing.T) {
		assert.InDelta(t, math.Pi, HoursToRadians(12), 1e-15)
	})

	t.Run("180 degrees is pi radians", func(t *testing.T) {
		assert.InDelta(t, math.Pi, DegreesToRadians(180), 1e-15)
	})

	t.Run("6 hours is 90 degrees worth of rotation", func(t *testing.T) {
		assert.InDelta(t, DegreesToRadians(90), HoursToRadians(6), 1e-15)
	})
}
