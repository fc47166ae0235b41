package actuation

import (
	"sync"
	"time"

	"github.com/leapdrone/controller/domain/motion"
)

// SyncPhase is the state of the two-phase synchronisation maneuver.
type SyncPhase int

const (
	SyncIdle SyncPhase = iota
	SyncThrottleLow
	SyncThrottleHigh
)

func (p SyncPhase) String() string {
	switch p {
	case SyncThrottleLow:
		return "throttle-low"
	case SyncThrottleHigh:
		return "throttle-high"
	default:
		return "idle"
	}
}

// MarshalText lets diagnostics carry the phase name.
func (p SyncPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// scheduler runs f after d and returns a stop function.
type scheduler func(d time.Duration, f func()) (stop func() bool)

func afterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// syncSequence runs Idle -> ThrottleLow -> ThrottleHigh -> Idle. Every
// trigger bumps token; steps scheduled under an older token do nothing.
type syncSequence struct {
	actuator *PWMActuator
	delay    time.Duration
	schedule scheduler

	mu    sync.Mutex
	phase SyncPhase
	quad  int
	token uint64
	stop  func() bool
}

func newSyncSequence(a *PWMActuator, delay time.Duration, schedule scheduler) *syncSequence {
	return &syncSequence{actuator: a, delay: delay, schedule: schedule}
}

func (s *syncSequence) trigger(quad int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.actuator.isClosed() {
		return ErrActuatorClosed
	}
	if s.phase != SyncIdle {
		s.actuator.logger.Warnf("Sync already running for quad %d (%s), restarting", s.quad, s.phase)
	}
	s.cancelLocked()

	s.token++
	s.quad = quad
	s.phase = SyncThrottleLow
	err := s.actuator.writeAngles(quad, 0, 0, 0, -motion.HalfPi)
	s.scheduleLocked(s.token, s.raiseThrottle)
	return err
}

func (s *syncSequence) raiseThrottle(token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.token || s.phase != SyncThrottleLow || s.actuator.isClosed() {
		return
	}
	s.phase = SyncThrottleHigh
	if err := s.actuator.writeThrottle(s.quad, motion.HalfPi); err != nil {
		s.actuator.logger.Errorf("Sync throttle high failed for quad %d: %v", s.quad, err)
	}
	s.scheduleLocked(token, s.lowerThrottle)
}

func (s *syncSequence) lowerThrottle(token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.token || s.phase != SyncThrottleHigh || s.actuator.isClosed() {
		return
	}
	if err := s.actuator.writeThrottle(s.quad, -motion.HalfPi); err != nil {
		s.actuator.logger.Errorf("Sync throttle low failed for quad %d: %v", s.quad, err)
	}
	s.phase = SyncIdle
	s.stop = nil
	s.actuator.logger.Infof("Sync sequence complete for quad %d", s.quad)
}

func (s *syncSequence) scheduleLocked(token uint64, step func(uint64)) {
	s.stop = s.schedule(s.delay, func() { step(token) })
}

// abortLocked abandons a running sequence without further writes.
func (s *syncSequence) abortLocked() {
	s.cancelLocked()
	s.token++
	s.phase = SyncIdle
}

// runningLocked reports whether quad is mid-sequence.
func (s *syncSequence) runningLocked(quad int) bool {
	return s.phase != SyncIdle && s.quad == quad
}

func (s *syncSequence) cancelLocked() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
}

func (s *syncSequence) currentPhase() SyncPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}
