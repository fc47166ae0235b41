// Package hover holds altitude by feeding position error back into throttle.
package hover

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/leapdrone/controller/domain/motion"
	customlog "github.com/leapdrone/controller/pkg/log"
)

// Gains are the PID coefficients. Apply gates writing the corrected
// vector back to the actuator.
type Gains struct {
	P     float64 `json:"P" yaml:"p"`
	I     float64 `json:"I" yaml:"i"`
	D     float64 `json:"D" yaml:"d"`
	Apply bool    `json:"apply" yaml:"apply"`
}

// PIDState is the controller memory cleared on every start and stop.
type PIDState struct {
	Integral  motion.Vector3 `json:"integral"`
	LastError motion.Vector3 `json:"lastError"`
}

// Positioner is the part of the actuation layer the loop corrects.
type Positioner interface {
	CurrentPosition() motion.ControlVector
	Update(v motion.ControlVector) error
}

// Status is a snapshot for diagnostics.
type Status struct {
	Active        bool            `json:"active"`
	Gains         Gains           `json:"gains"`
	Desired       *motion.Vector3 `json:"desired,omitempty"`
	State         PIDState        `json:"state"`
	ThrottleDelta float64         `json:"throttleDelta"`
}

// Loop is the altitude-hold controller.
type Loop struct {
	logger   customlog.Logger
	actuator Positioner

	mu        sync.Mutex
	gains     Gains
	active    bool
	desired   *motion.Vector3
	state     PIDState
	lastDelta float64
}

// NewLoop creates an idle loop correcting actuator.
func NewLoop(actuator Positioner, gains Gains, logger customlog.Logger) *Loop {
	if logger == nil {
		logger = customlog.NewNopLogger()
	}
	return &Loop{logger: logger, actuator: actuator, gains: gains}
}

// Start arms the loop; the next observed position becomes the anchor.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active {
		return
	}
	l.resetLocked()
	l.active = true
	l.logger.Infof("Hover started")
}

// Stop disarms the loop and clears its state.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active {
		return
	}
	l.resetLocked()
	l.active = false
	l.logger.Infof("Hover stopped")
}

// Reset clears PID state and the anchor without changing whether the loop is armed.
func (l *Loop) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetLocked()
}

func (l *Loop) resetLocked() {
	l.desired = nil
	l.state = PIDState{}
	l.lastDelta = 0
}

// SetGains replaces the coefficients.
func (l *Loop) SetGains(g Gains) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gains = g
}

// Gains returns the coefficients in use.
func (l *Loop) Gains() Gains {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gains
}

// Active reports whether the loop is armed.
func (l *Loop) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Status returns a snapshot of the loop.
func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := Status{Active: l.active, Gains: l.gains, State: l.state, ThrottleDelta: l.lastDelta}
	if l.desired != nil {
		d := *l.desired
		s.Desired = &d
	}
	return s
}

// Observe feeds one measured position. It returns the throttle correction
// and whether one was computed.
func (l *Loop) Observe(pos motion.Vector3) (float64, bool) {
	l.mu.Lock()
	if !l.active {
		l.mu.Unlock()
		return 0, false
	}
	if l.desired == nil {
		anchor := pos
		l.desired = &anchor
		l.mu.Unlock()
		l.logger.Debugf("Hover anchor set at %.1f,%.1f,%.1f", pos.X, pos.Y, pos.Z)
		return 0, false
	}

	e := l.desired.Sub(pos)
	derivative := e.Sub(l.state.LastError)
	l.state.Integral = l.state.Integral.Add(l.state.LastError)
	l.state.LastError = e

	g := l.gains
	delta := g.P*e.Y + g.I*l.state.Integral.Y + g.D*derivative.Y
	l.lastDelta = delta
	l.mu.Unlock()

	if l.actuator == nil {
		return delta, true
	}
	corrected := l.actuator.CurrentPosition()
	corrected.Throttle = motion.ClampAxis(corrected.Throttle + delta)
	l.logger.Debugf("Hover throttle %.4f (delta %.4f)", corrected.Throttle, delta)
	if g.Apply {
		if err := l.actuator.Update(corrected); err != nil {
			l.logger.Errorf("Hover correction failed: %v", err)
		}
	}
	return delta, true
}

// HandlePosition feeds a position event to the loop. Payloads carry the
// observed point either as top-level x, y and z or as a ControlVector palm.
func (l *Loop) HandlePosition(data json.RawMessage) {
	pos, ok, err := decodePosition(data)
	if err != nil {
		l.logger.Warnf("Hover ignoring malformed position: %v", err)
		return
	}
	if !ok {
		return
	}
	l.Observe(pos)
}

// decodePosition reports ok=false for payloads without an observed point,
// such as the neutral vector sent when the hand is lost.
func decodePosition(data json.RawMessage) (motion.Vector3, bool, error) {
	var p struct {
		X    *float64        `json:"x"`
		Y    *float64        `json:"y"`
		Z    *float64        `json:"z"`
		Palm *motion.Vector3 `json:"palm"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return motion.Vector3{}, false, fmt.Errorf("failed to decode position: %w", err)
	}
	if p.X != nil && p.Y != nil && p.Z != nil {
		return motion.Vector3{X: *p.X, Y: *p.Y, Z: *p.Z}, true, nil
	}
	if p.Palm != nil {
		return *p.Palm, true, nil
	}
	return motion.Vector3{}, false, nil
}
