package motion

import "time"

// GestureState is the hysteresis memory of the control-signal state machine.
type GestureState struct {
	IsControlSet     bool      `json:"isControlSet"`
	ControlStartTime time.Time `json:"controlStartTime"`
	LastSeenTime     time.Time `json:"lastSeenTime"`
}

type transition int

const (
	noTransition transition = iota
	transitionSet
	transitionUnset
)

// observe feeds one sample of the set signal taken at now.
//
// UNSET -> SET needs the signal continuously present for hold.
// SET -> UNSET needs it continuously absent for timeout.
func (g *GestureState) observe(signal bool, now time.Time, hold, timeout time.Duration) transition {
	if signal {
		g.LastSeenTime = now
		if g.ControlStartTime.IsZero() {
			g.ControlStartTime = now
		}
		if !g.IsControlSet && now.Sub(g.ControlStartTime) >= hold {
			g.IsControlSet = true
			return transitionSet
		}
		return noTransition
	}

	g.ControlStartTime = time.Time{}
	if g.IsControlSet && now.Sub(g.LastSeenTime) >= timeout {
		g.IsControlSet = false
		return transitionUnset
	}
	return noTransition
}
