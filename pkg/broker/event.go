package broker

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event names understood by the broker.
const (
	EventPosition  = "position"
	EventConfig    = "config"
	EventDroneSync = "drone-sync"
)

// KnownEvents is the closed event vocabulary.
var KnownEvents = []string{EventPosition, EventConfig, EventDroneSync}

var (
	// ErrUnknownEvent is returned for names outside KnownEvents.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrServiceClosed is returned after Close.
	ErrServiceClosed = errors.New("broker closed")
)

// Event is the envelope exchanged with every peer.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals payload into the data field of an event called name.
func NewEvent(name string, payload interface{}) (Event, error) {
	if payload == nil {
		return Event{Name: name}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode %s payload: %w", name, err)
	}
	return Event{Name: name, Data: data}, nil
}

// ParseEvent decodes an inbound envelope.
func ParseEvent(raw []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, fmt.Errorf("malformed event: %w", err)
	}
	if ev.Name == "" {
		return Event{}, fmt.Errorf("malformed event: missing event name")
	}
	return ev, nil
}

func isKnown(name string) bool {
	for _, k := range KnownEvents {
		if k == name {
			return true
		}
	}
	return false
}

// Message is one serialized event queued for a peer.
type Message struct {
	Event
	// Raw is the JSON envelope, encoded once per publish.
	Raw []byte
}
