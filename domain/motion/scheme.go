package motion

import "math"

// Physical ranges, in millimetres, mapped onto the full control range.
const (
	throttleMinY = 50.0
	throttleMaxY = 1000.0

	translationalMinX = -300.0
	translationalMaxX = 300.0
	translationalMinZ = -300.0
	translationalMaxZ = 300.0

	yawOffsetGain = 2.0
	yawMinOffset  = -40.0
	yawMaxOffset  = 40.0

	// yawDeadband is the yaw magnitude above which a yaw gesture is active.
	yawDeadband = 0.001
)

// axes is the unscaled output of a scheme.
type axes struct {
	roll, pitch, yaw, throttle float64
}

// compute dispatches to the scheme selected by c.
func (c Controller) compute(h Hand) axes {
	switch c {
	case Translational:
		return translationalAxes(h)
	default:
		return bankedAxes(h)
	}
}

// Compute returns the clamped ControlVector for h under the given sensitivity.
func (c Controller) Compute(h Hand, s SensitivityVector) ControlVector {
	a := c.compute(h)
	v := ControlVector{
		Roll:     a.roll * s.Roll,
		Pitch:    a.pitch * s.Pitch,
		Yaw:      a.yaw * s.Yaw,
		Throttle: a.throttle * s.Throttle,
	}
	return v.Clamped()
}

func bankedAxes(h Hand) axes {
	a := axes{
		roll:     bankedRoll(h),
		pitch:    bankedPitch(h),
		yaw:      bankedYaw(h),
		throttle: throttle(h),
	}
	// an active yaw gesture (beyond the deadband) zeroes roll and pitch
	if math.Abs(a.yaw) > yawDeadband {
		a.roll = 0
		a.pitch = 0
	}
	return a
}

func translationalAxes(h Hand) axes {
	return axes{
		roll:     Angle(h.Palm.X, translationalMinX, translationalMaxX),
		pitch:    Angle(h.Palm.Z, translationalMinZ, translationalMaxZ),
		yaw:      0,
		throttle: throttle(h),
	}
}

func throttle(h Hand) float64 {
	return Angle(h.Palm.Y, throttleMinY, throttleMaxY)
}

// curlFinger reports whether t takes part in the tilt estimate.
func curlFinger(t FingerType) bool {
	return t != Thumb && t != Pinky
}

// bankedRoll is the tilt of the line through the distal joints of the
// middle fingers.
func bankedRoll(h Hand) float64 {
	if len(h.Fingers) == 0 {
		return 0
	}
	var sumDX, sumDY float64
	var last *Finger
	for i := range h.Fingers {
		f := &h.Fingers[i]
		if !curlFinger(f.Type) {
			continue
		}
		if last != nil {
			sumDX += f.DIP.X - last.DIP.X
			sumDY += f.DIP.Y - last.DIP.Y
		}
		last = f
	}
	n := float64(len(h.Fingers))
	return -math.Atan((sumDY / n) / (sumDX / n))
}

// bankedPitch is the mean elevation of the distal joints relative to the palm.
func bankedPitch(h Hand) float64 {
	if len(h.Fingers) == 0 {
		return 0
	}
	var sum float64
	for _, f := range h.Fingers {
		if !curlFinger(f.Type) {
			continue
		}
		dy := f.DIP.Y - h.Palm.Y
		dz := f.DIP.Z - h.Palm.Z
		sum += math.Atan(dy / dz)
	}
	return -sum / float64(len(h.Fingers))
}

// bankedYaw is active only while pointing: index extended, every other finger retracted.
func bankedYaw(h Hand) float64 {
	index, ok := h.Finger(Index)
	if !ok || !index.Extended {
		return 0
	}
	for _, f := range h.Fingers {
		if f.Type != Index && f.Extended {
			return 0
		}
	}
	offset := index.DIP.X - index.PIP.X
	return Angle(offset*yawOffsetGain, yawMinOffset, yawMaxOffset)
}

// FistGesture is the default control-set heuristic: the summed distance of
// every fingertip from the palm exceeds threshold.
func FistGesture(h Hand, threshold float64) bool {
	if len(h.Fingers) == 0 {
		return false
	}
	var sum float64
	for _, f := range h.Fingers {
		sum += f.Tip.Sub(h.Palm).Norm()
	}
	return sum > threshold
}
