package winloop

import (
	"math"
)

type (
	// LogicalSize is a size in device-independent units.
	LogicalSize struct {
		Width  float64
		Height float64
	}

	// PhysicalSize is a size in device pixels.
	PhysicalSize struct {
		Width  uint32
		Height uint32
	}
)

// LogicalToPhysical converts a logical size to device pixels, rounding half
// away from zero. Negative or NaN components clamp to zero.
func LogicalToPhysical(size LogicalSize, scaleFactor float64) PhysicalSize {
	return PhysicalSize{
		Width:  roundPixels(size.Width * scaleFactor),
		Height: roundPixels(size.Height * scaleFactor),
	}
}

// ToLogical converts a physical size to logical units.
func (s PhysicalSize) ToLogical(scaleFactor float64) LogicalSize {
	if scaleFactor <= 0 || math.IsNaN(scaleFactor) {
		scaleFactor = 1
	}
	return LogicalSize{
		Width:  float64(s.Width) / scaleFactor,
		Height: float64(s.Height) / scaleFactor,
	}
}

func roundPixels(v float64) uint32 {
	v = math.Round(v)
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(v)
	}
}
