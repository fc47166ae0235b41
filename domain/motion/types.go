package motion

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// HalfPi bounds every control axis.
const HalfPi = math.Pi / 2

// Vector3 is a position in millimetres in sensor space.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns v - o.
func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Add returns v + o.
func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Norm is the euclidean length of v.
func (v Vector3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Side is the tracked hand side.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// FingerType follows the sensor numbering, thumb first.
type FingerType int

const (
	Thumb FingerType = iota
	Index
	Middle
	Ring
	Pinky
)

// Finger is one digit with its joint positions.
type Finger struct {
	Type     FingerType
	Extended bool
	MCP      Vector3 // knuckle
	PIP      Vector3 // proximal interphalangeal joint
	DIP      Vector3 // distal interphalangeal joint
	Tip      Vector3
}

// Hand is a single HandObservation. Read-only to the interpreter.
type Hand struct {
	ID      int
	Side    Side
	Palm    Vector3
	Fingers []Finger
}

// Finger returns the finger of type t, if present.
func (h Hand) Finger(t FingerType) (Finger, bool) {
	for _, f := range h.Fingers {
		if f.Type == t {
			return f, true
		}
	}
	return Finger{}, false
}

// Frame is everything the sensor reported at one instant.
type Frame struct {
	ID        int64
	Timestamp time.Time
	Hands     []Hand
}

// Controller selects the interpretation scheme.
type Controller int

const (
	Banked Controller = iota
	Translational
)

func (c Controller) String() string {
	switch c {
	case Banked:
		return "banked"
	case Translational:
		return "translational"
	default:
		return fmt.Sprintf("controller(%d)", int(c))
	}
}

// ParseController maps the wire name onto a Controller.
func ParseController(s string) (Controller, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "banked":
		return Banked, nil
	case "translational":
		return Translational, nil
	default:
		return Banked, fmt.Errorf("unknown controller %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler so JSON and YAML carry the name.
func (c Controller) MarshalText() ([]byte, error) {
	switch c {
	case Banked, Translational:
		return []byte(c.String()), nil
	default:
		return nil, fmt.Errorf("unknown controller %d", int(c))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Controller) UnmarshalText(text []byte) error {
	parsed, err := ParseController(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// SensitivityVector holds per-axis multipliers applied before clamping.
type SensitivityVector struct {
	Roll     float64 `json:"roll" yaml:"roll"`
	Pitch    float64 `json:"pitch" yaml:"pitch"`
	Yaw      float64 `json:"yaw" yaml:"yaw"`
	Throttle float64 `json:"throttle" yaml:"throttle"`
}

// UnitSensitivity leaves every axis unchanged.
var UnitSensitivity = SensitivityVector{Roll: 1, Pitch: 1, Yaw: 1, Throttle: 1}

// MetaData describes how a ControlVector was produced.
type MetaData struct {
	Controller  Controller        `json:"controller"`
	Sensitivity SensitivityVector `json:"sensitivity"`
}

// ControlVector is the bounded output of one frame, in radians.
type ControlVector struct {
	Roll     float64   `json:"roll"`
	Pitch    float64   `json:"pitch"`
	Yaw      float64   `json:"yaw"`
	Throttle float64   `json:"throttle"`
	MetaData *MetaData `json:"metaData,omitempty"`
	Quad     int       `json:"quad"`

	// Palm is the raw palm position of the hand that produced the vector.
	Palm *Vector3 `json:"palm,omitempty"`
}

// NeutralVector is the fail-safe output: level attitude, throttle at its minimum.
func NeutralVector(quad int) ControlVector {
	return ControlVector{Roll: 0, Pitch: 0, Yaw: 0, Throttle: -HalfPi, Quad: quad}
}

// Clamped returns v with every axis inside [-π/2, π/2]; NaN becomes 0.
func (v ControlVector) Clamped() ControlVector {
	v.Roll = ClampAxis(v.Roll)
	v.Pitch = ClampAxis(v.Pitch)
	v.Yaw = ClampAxis(v.Yaw)
	v.Throttle = ClampAxis(v.Throttle)
	return v
}

// ClampAxis bounds a to [-π/2, π/2] and maps NaN to the midpoint.
func ClampAxis(a float64) float64 {
	if math.IsNaN(a) {
		return 0
	}
	if a < -HalfPi {
		return -HalfPi
	}
	if a > HalfPi {
		return HalfPi
	}
	return a
}

// Angle maps d, bounded to [min, max], linearly onto [-π/2, π/2].
func Angle(d, min, max float64) float64 {
	if d < min {
		d = min
	}
	if d > max {
		d = max
	}
	return math.Pi*(d-min)/(max-min) - HalfPi
}
