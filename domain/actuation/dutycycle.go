package actuation

import (
	"math"

	"github.com/leapdrone/controller/domain/motion"
)

// DefaultZeroThreshold is the duty cycle at or below which a channel is
// driven with an explicit zero pulse instead of a raw value.
const DefaultZeroThreshold = 0.001

// DutyCycle maps an axis angle in [-π/2, π/2] onto [0, 1].
func DutyCycle(angle float64) float64 {
	if math.IsNaN(angle) {
		angle = 0
	}
	f := (angle + motion.HalfPi) / math.Pi
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
