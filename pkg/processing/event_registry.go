package processing

import (
	"sort"
	"sync"
	"time"

	customlog "github.com/leapdrone/controller/pkg/log"
)

// Event directions tracked by the registry.
const (
	DirectionInbound  = "INBOUND"
	DirectionOutbound = "OUTBOUND"
)

// EventInfo holds statistics for one event name
type EventInfo struct {
	Name          string `json:"name"`
	Known         bool   `json:"known"`
	Subscribers   int    `json:"subscribers"`
	InboundCount  int64  `json:"inbound"`
	OutboundCount int64  `json:"outbound"`
	LastSeen      int64  `json:"lastSeenNs"`
}

// EventRegistry maintains information about broker events
type EventRegistry struct {
	logger customlog.Logger
	events map[string]*EventInfo
	mu     sync.RWMutex
}

// NewEventRegistry creates a registry that knows the given event names
func NewEventRegistry(logger customlog.Logger, known ...string) *EventRegistry {
	if logger == nil {
		logger = customlog.NewNopLogger()
	}
	r := &EventRegistry{
		logger: logger,
		events: make(map[string]*EventInfo, len(known)),
	}
	for _, name := range known {
		r.events[name] = &EventInfo{Name: name, Known: true}
	}
	return r
}

// IsKnown reports whether name is part of the vocabulary
func (r *EventRegistry) IsKnown(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.events[name]
	return exists && info.Known
}

// AddSubscriber counts one more registered callback for name
func (r *EventRegistry) AddSubscriber(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lookup(name).Subscribers++
}

// UpdateEventStats records one event seen in the given direction
func (r *EventRegistry) UpdateEventStats(name, direction string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := r.lookup(name)
	switch direction {
	case DirectionInbound:
		info.InboundCount++
	default:
		info.OutboundCount++
	}
	info.LastSeen = at.UnixNano()
}

// lookup returns the entry for name, creating an unknown one. Caller holds the lock.
func (r *EventRegistry) lookup(name string) *EventInfo {
	info, exists := r.events[name]
	if !exists {
		info = &EventInfo{Name: name}
		r.events[name] = info
	}
	return info
}

// GetEventInfo gets a copy of the statistics for name
func (r *EventRegistry) GetEventInfo(name string) (EventInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.events[name]
	if !exists {
		return EventInfo{}, false
	}
	return *info, true
}

// GetAllEvents returns every event name seen or known, sorted
func (r *EventRegistry) GetAllEvents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.events))
	for name := range r.events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetEventStats returns a snapshot of every entry keyed by name
func (r *EventRegistry) GetEventStats() map[string]EventInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]EventInfo, len(r.events))
	for name, info := range r.events {
		stats[name] = *info
	}
	return stats
}
