package actuation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/leapdrone/controller/domain/motion"
	customlog "github.com/leapdrone/controller/pkg/log"
)

// ErrActuatorClosed is returned once Shutdown has zeroed the outputs.
var ErrActuatorClosed = errors.New("actuator is shut down")

// Bus is the hardware capability the actuator writes through.
type Bus interface {
	SetChannelDutyCycle(channel int, dutyCycle float64) error
	ZeroChannel(channel int) error
}

// Actuator drives one or more quads from ControlVectors.
type Actuator interface {
	Init() error
	Update(v motion.ControlVector) error
	CurrentPosition() motion.ControlVector
	Sync(quad int) error
	SyncPhase() SyncPhase
	Shutdown() error
	Enabled() bool
}

// AxisChannels is the channel offset of each axis inside a quad.
type AxisChannels struct {
	Roll     int `json:"roll"`
	Pitch    int `json:"pitch"`
	Yaw      int `json:"yaw"`
	Throttle int `json:"throttle"`
}

// DefaultAxisChannels is roll, pitch, yaw, throttle on consecutive channels.
var DefaultAxisChannels = AxisChannels{Roll: 0, Pitch: 1, Yaw: 2, Throttle: 3}

// AxisChannelsFromMap reads a name->channel map, keeping defaults for missing axes.
func AxisChannelsFromMap(m map[string]int) AxisChannels {
	out := DefaultAxisChannels
	if v, ok := m["roll"]; ok {
		out.Roll = v
	}
	if v, ok := m["pitch"]; ok {
		out.Pitch = v
	}
	if v, ok := m["yaw"]; ok {
		out.Yaw = v
	}
	if v, ok := m["throttle"]; ok {
		out.Throttle = v
	}
	return out
}

// Config is the static channel layout of the actuation layer.
type Config struct {
	ChannelsPerQuad int
	Quads           int
	Channels        AxisChannels
	SyncDelay       time.Duration
	ZeroThreshold   float64
}

// DefaultConfig drives a single quad on channels 0..3.
func DefaultConfig() Config {
	return Config{
		ChannelsPerQuad: 4,
		Quads:           1,
		Channels:        DefaultAxisChannels,
		SyncDelay:       2 * time.Second,
		ZeroThreshold:   DefaultZeroThreshold,
	}
}

// New returns a PWM actuator on bus, or the no-op actuator when bus is nil.
func New(bus Bus, cfg Config, logger customlog.Logger) Actuator {
	if bus == nil {
		return NewNoopActuator(logger)
	}
	return NewPWMActuator(bus, cfg, logger)
}

// PWMActuator writes duty cycles to a Bus.
type PWMActuator struct {
	bus    Bus
	cfg    Config
	logger customlog.Logger

	// mu serialises bus writes and guards current and closed. When both
	// are needed seq.mu is taken first.
	mu      sync.Mutex
	current motion.ControlVector
	closed  bool

	seq *syncSequence
}

// NewPWMActuator creates an actuator writing through bus.
func NewPWMActuator(bus Bus, cfg Config, logger customlog.Logger) *PWMActuator {
	if logger == nil {
		logger = customlog.NewNopLogger()
	}
	if cfg.ChannelsPerQuad <= 0 {
		cfg.ChannelsPerQuad = 4
	}
	if cfg.Quads <= 0 {
		cfg.Quads = 1
	}
	if cfg.ZeroThreshold <= 0 {
		cfg.ZeroThreshold = DefaultZeroThreshold
	}
	a := &PWMActuator{
		bus:     bus,
		cfg:     cfg,
		logger:  logger,
		current: motion.NeutralVector(0),
	}
	a.seq = newSyncSequence(a, cfg.SyncDelay, afterFunc)
	return a
}

// Channel is the absolute channel of an axis offset within quad.
func (a *PWMActuator) Channel(quad, axisOffset int) int {
	return quad*a.cfg.ChannelsPerQuad + axisOffset
}

// Enabled is true for hardware-backed actuators.
func (a *PWMActuator) Enabled() bool { return true }

// Init drives every configured quad to the neutral vector.
func (a *PWMActuator) Init() error {
	var errs []error
	for q := 0; q < a.cfg.Quads; q++ {
		if err := a.Update(motion.NeutralVector(q)); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to initialise actuators: %w", err)
	}
	a.logger.Infof("Actuators initialised: quads=%d channels_per_quad=%d", a.cfg.Quads, a.cfg.ChannelsPerQuad)
	return nil
}

// Update writes every axis of v to the channels of v.Quad. While that quad
// is synchronising the vector is recorded but not written.
func (a *PWMActuator) Update(v motion.ControlVector) error {
	if err := a.checkQuad(v.Quad); err != nil {
		return err
	}
	v = v.Clamped()

	a.seq.mu.Lock()
	defer a.seq.mu.Unlock()
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrActuatorClosed
	}
	if a.seq.runningLocked(v.Quad) {
		a.current = v
		a.logger.Debugf("Quad %d is synchronising (%s), holding update", v.Quad, a.seq.phase)
		return nil
	}

	ch := a.cfg.Channels
	err := errors.Join(
		a.writeAxis(a.Channel(v.Quad, ch.Roll), v.Roll),
		a.writeAxis(a.Channel(v.Quad, ch.Pitch), v.Pitch),
		a.writeAxis(a.Channel(v.Quad, ch.Yaw), v.Yaw),
		a.writeAxis(a.Channel(v.Quad, ch.Throttle), v.Throttle),
	)
	a.current = v
	if err != nil {
		return fmt.Errorf("failed to update quad %d: %w", v.Quad, err)
	}
	return nil
}

// writeAxis converts angle and writes it. Caller holds mu.
func (a *PWMActuator) writeAxis(channel int, angle float64) error {
	f := DutyCycle(angle)
	if f <= a.cfg.ZeroThreshold {
		if err := a.bus.ZeroChannel(channel); err != nil {
			return fmt.Errorf("channel %d: %w", channel, err)
		}
		return nil
	}
	if err := a.bus.SetChannelDutyCycle(channel, f); err != nil {
		return fmt.Errorf("channel %d: %w", channel, err)
	}
	return nil
}

// writeAngles writes raw angles for one quad without touching current.
func (a *PWMActuator) writeAngles(quad int, roll, pitch, yaw, throttle float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrActuatorClosed
	}

	ch := a.cfg.Channels
	return errors.Join(
		a.writeAxis(a.Channel(quad, ch.Roll), roll),
		a.writeAxis(a.Channel(quad, ch.Pitch), pitch),
		a.writeAxis(a.Channel(quad, ch.Yaw), yaw),
		a.writeAxis(a.Channel(quad, ch.Throttle), throttle),
	)
}

func (a *PWMActuator) writeThrottle(quad int, throttle float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrActuatorClosed
	}
	return a.writeAxis(a.Channel(quad, a.cfg.Channels.Throttle), throttle)
}

func (a *PWMActuator) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func (a *PWMActuator) checkQuad(quad int) error {
	if quad < 0 || quad >= a.cfg.Quads {
		return fmt.Errorf("quad %d outside configured range [0,%d)", quad, a.cfg.Quads)
	}
	return nil
}

// CurrentPosition returns the last vector written by Update.
func (a *PWMActuator) CurrentPosition() motion.ControlVector {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Sync starts the two-phase synchronisation of quad, restarting any
// sequence already running.
func (a *PWMActuator) Sync(quad int) error {
	if err := a.checkQuad(quad); err != nil {
		return err
	}
	a.logger.Infof("Starting sync sequence for quad %d", quad)
	return a.seq.trigger(quad)
}

// SyncPhase reports where the sync sequence is.
func (a *PWMActuator) SyncPhase() SyncPhase {
	return a.seq.currentPhase()
}

// Shutdown cancels any sync sequence and zeroes every channel of every quad.
// Afterwards Update, Sync and pending sync steps write nothing.
func (a *PWMActuator) Shutdown() error {
	a.seq.mu.Lock()
	defer a.seq.mu.Unlock()
	a.seq.abortLocked()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	var errs []error
	total := a.cfg.Quads * a.cfg.ChannelsPerQuad
	for ch := 0; ch < total; ch++ {
		if err := a.bus.ZeroChannel(ch); err != nil {
			errs = append(errs, fmt.Errorf("channel %d: %w", ch, err))
		}
	}
	a.current = motion.NeutralVector(0)
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to zero actuators: %w", err)
	}
	a.logger.Infof("Actuators zeroed: %d channels", total)
	return nil
}
