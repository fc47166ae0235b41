package motion

import (
	"sort"
	"sync"
	"sync/atomic"

	customlog "github.com/leapdrone/controller/pkg/log"
)

// Listener receives everything the interpreter raises.
type Listener interface {
	OnPosition(v ControlVector)
	OnHandLost(side Side)
	OnControlSet()
	OnControlUnset()
}

// ListenerFuncs adapts optional callbacks to Listener.
type ListenerFuncs struct {
	Position     func(v ControlVector)
	HandLost     func(side Side)
	ControlSet   func()
	ControlUnset func()
}

func (f ListenerFuncs) OnPosition(v ControlVector) {
	if f.Position != nil {
		f.Position(v)
	}
}

func (f ListenerFuncs) OnHandLost(side Side) {
	if f.HandLost != nil {
		f.HandLost(side)
	}
}

func (f ListenerFuncs) OnControlSet() {
	if f.ControlSet != nil {
		f.ControlSet()
	}
}

func (f ListenerFuncs) OnControlUnset() {
	if f.ControlUnset != nil {
		f.ControlUnset()
	}
}

// GestureFunc decides whether a left hand is showing the control-set gesture.
type GestureFunc func(h Hand, threshold float64) bool

// Interpreter turns frames into smoothed ControlVectors and tracks the
// left-hand control signal.
type Interpreter struct {
	logger  customlog.Logger
	opts    atomic.Pointer[Options]
	gesture GestureFunc

	listenersMu sync.RWMutex
	listeners   []Listener

	// frame state, owned by the frame loop; mu lets diagnostics read it
	mu      sync.Mutex
	tracked map[int]Side
	window  *rollingWindow
	state   GestureState
}

// NewInterpreter creates an interpreter using the FistGesture.
func NewInterpreter(opts Options, logger customlog.Logger) *Interpreter {
	if logger == nil {
		logger = customlog.NewNopLogger()
	}
	i := &Interpreter{
		logger:  logger,
		gesture: FistGesture,
		tracked: make(map[int]Side),
		window:  newRollingWindow(opts.RollingAverageCount),
	}
	i.opts.Store(&opts)
	return i
}

// SetGesture replaces the control-set detector.
func (i *Interpreter) SetGesture(g GestureFunc) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.gesture = g
}

// AddListener registers l; listeners are notified in registration order.
func (i *Interpreter) AddListener(l Listener) {
	i.listenersMu.Lock()
	defer i.listenersMu.Unlock()
	i.listeners = append(i.listeners, l)
}

// Options returns the active snapshot.
func (i *Interpreter) Options() Options {
	return *i.opts.Load()
}

// SetOptions swaps in a new snapshot; the next frame uses it.
func (i *Interpreter) SetOptions(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	i.opts.Store(&opts)
	i.logger.Infof("Motion options updated: controller=%s window=%d", opts.Controller, opts.RollingAverageCount)
	return nil
}

// GestureState returns a copy of the control-signal memory.
func (i *Interpreter) GestureState() GestureState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Reset forgets tracked hands, the rolling window and the gesture state.
func (i *Interpreter) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.tracked = make(map[int]Side)
	i.window.clear()
	i.state = GestureState{}
}

// frameResult collects notifications so listeners run outside the lock.
type frameResult struct {
	lost       []Side
	neutral    *ControlVector
	position   *ControlVector
	transition transition
}

// ProcessFrame consumes one sensor frame.
func (i *Interpreter) ProcessFrame(f Frame) {
	opts := i.Options()
	res := i.process(f, opts)

	listeners := i.snapshotListeners()
	for _, side := range res.lost {
		i.logger.Infof("Hand lost: %s", side)
		for _, l := range listeners {
			l.OnHandLost(side)
		}
	}
	if res.neutral != nil {
		for _, l := range listeners {
			l.OnPosition(*res.neutral)
		}
	}
	if res.position != nil {
		for _, l := range listeners {
			l.OnPosition(*res.position)
		}
	}
	switch res.transition {
	case transitionSet:
		i.logger.Infof("Control signal set")
		for _, l := range listeners {
			l.OnControlSet()
		}
	case transitionUnset:
		i.logger.Infof("Control signal unset")
		for _, l := range listeners {
			l.OnControlUnset()
		}
	}
}

func (i *Interpreter) process(f Frame, opts Options) frameResult {
	i.mu.Lock()
	defer i.mu.Unlock()

	var res frameResult

	current := make(map[int]Side, len(f.Hands))
	for _, h := range f.Hands {
		current[h.ID] = h.Side
	}
	lostIDs := make([]int, 0)
	for id := range i.tracked {
		if _, ok := current[id]; !ok {
			lostIDs = append(lostIDs, id)
		}
	}
	sort.Ints(lostIDs)
	for _, id := range lostIDs {
		side := i.tracked[id]
		res.lost = append(res.lost, side)
		if side == SideRight && res.neutral == nil {
			neutral := NeutralVector(opts.Quad)
			neutral.MetaData = &MetaData{Controller: opts.Controller, Sensitivity: opts.Sensitivity}
			res.neutral = &neutral
			i.window.clear()
		}
	}
	i.tracked = current

	i.window.resize(opts.RollingAverageCount)

	leftSignal := false
	seenRight, seenLeft := false, false
	for _, h := range f.Hands {
		switch h.Side {
		case SideRight:
			if seenRight {
				continue
			}
			seenRight = true
			v := opts.Controller.Compute(h, opts.Sensitivity)
			v.Quad = opts.Quad
			v.MetaData = &MetaData{Controller: opts.Controller, Sensitivity: opts.Sensitivity}
			i.window.push(v)
			avg := i.window.mean()
			palm := h.Palm
			avg.Palm = &palm
			res.position = &avg
		case SideLeft:
			if seenLeft {
				continue
			}
			seenLeft = true
			leftSignal = i.gesture(h, opts.FistThreshold)
		}
	}

	res.transition = i.state.observe(leftSignal, f.Timestamp, opts.holdDuration(), opts.timeoutDuration())
	return res
}

func (i *Interpreter) snapshotListeners() []Listener {
	i.listenersMu.RLock()
	defer i.listenersMu.RUnlock()
	out := make([]Listener, len(i.listeners))
	copy(out, i.listeners)
	return out
}
