package motion

// rollingWindow keeps the most recent vectors, oldest first.
type rollingWindow struct {
	size    int
	entries []ControlVector
}

func newRollingWindow(size int) *rollingWindow {
	if size < 1 {
		size = 1
	}
	return &rollingWindow{size: size, entries: make([]ControlVector, 0, size)}
}

// resize changes the capacity, dropping the oldest entries when shrinking.
func (w *rollingWindow) resize(size int) {
	if size < 1 {
		size = 1
	}
	w.size = size
	w.trim()
}

func (w *rollingWindow) push(v ControlVector) {
	w.entries = append(w.entries, v)
	w.trim()
}

func (w *rollingWindow) trim() {
	if extra := len(w.entries) - w.size; extra > 0 {
		w.entries = append(w.entries[:0], w.entries[extra:]...)
	}
}

func (w *rollingWindow) clear() {
	w.entries = w.entries[:0]
}

func (w *rollingWindow) len() int { return len(w.entries) }

// mean is the component-wise average. Metadata and quad come from the newest entry.
// The incremental form keeps a window of identical vectors exact.
func (w *rollingWindow) mean() ControlVector {
	if len(w.entries) == 0 {
		return ControlVector{}
	}
	out := w.entries[len(w.entries)-1]
	var roll, pitch, yaw, throttle float64
	for i, e := range w.entries {
		k := float64(i + 1)
		roll += (e.Roll - roll) / k
		pitch += (e.Pitch - pitch) / k
		yaw += (e.Yaw - yaw) / k
		throttle += (e.Throttle - throttle) / k
	}
	out.Roll, out.Pitch, out.Yaw, out.Throttle = roll, pitch, yaw, throttle
	return out
}
