package actuation

import (
	"sync"

	"github.com/leapdrone/controller/domain/motion"
	customlog "github.com/leapdrone/controller/pkg/log"
)

// NoopActuator stands in when no hardware bus is available. It remembers
// the last vector so diagnostics and the hover loop keep working.
type NoopActuator struct {
	logger customlog.Logger

	mu      sync.Mutex
	current motion.ControlVector
}

// NewNoopActuator creates an actuator that writes nothing.
func NewNoopActuator(logger customlog.Logger) *NoopActuator {
	if logger == nil {
		logger = customlog.NewNopLogger()
	}
	return &NoopActuator{logger: logger, current: motion.NeutralVector(0)}
}

func (n *NoopActuator) Enabled() bool { return false }

func (n *NoopActuator) Init() error {
	n.logger.Warnf("Actuation hardware unavailable, running without output")
	return nil
}

func (n *NoopActuator) Update(v motion.ControlVector) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = v.Clamped()
	return nil
}

func (n *NoopActuator) CurrentPosition() motion.ControlVector {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *NoopActuator) Sync(quad int) error {
	n.logger.Infof("Sync requested for quad %d but actuation hardware is unavailable", quad)
	return nil
}

func (n *NoopActuator) SyncPhase() SyncPhase { return SyncIdle }

func (n *NoopActuator) Shutdown() error {
	n.logger.Infof("No actuation hardware to zero")
	return nil
}
