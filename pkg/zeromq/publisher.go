package zeromq

import (
	"encoding/json"
	"time"

	"github.com/leapdrone/controller/domain/motion"
	"github.com/leapdrone/controller/pkg/broker"
	customlog "github.com/leapdrone/controller/pkg/log"
)

// MirrorPeerID identifies the ZeroMQ mirror among broker peers.
const MirrorPeerID = "zeromq-pub"

// Publisher sends a payload under a topic
type Publisher interface {
	PublishMessage(topic string, message []byte) error
}

// EventMirror is a broker peer that republishes every event on the PUB
// socket, topic = event name. Position events go out as ControlFrame
// flatbuffers, everything else as the JSON envelope.
type EventMirror struct {
	publisher Publisher
	logger    customlog.Logger
	now       func() time.Time
}

// NewEventMirror creates a mirror writing to publisher
func NewEventMirror(publisher Publisher, logger customlog.Logger) *EventMirror {
	if logger == nil {
		logger = customlog.NewNopLogger()
	}
	return &EventMirror{publisher: publisher, logger: logger, now: time.Now}
}

// ID implements broker.Peer
func (m *EventMirror) ID() string { return MirrorPeerID }

// Send implements broker.Peer
func (m *EventMirror) Send(msg broker.Message) error {
	payload := msg.Raw
	if msg.Name == broker.EventPosition {
		var v motion.ControlVector
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			m.logger.Debugf("Position payload is not a control vector, mirroring JSON: %v", err)
		} else {
			payload = EncodeControlFrame(v, m.now())
		}
	}
	return m.publisher.PublishMessage(msg.Name, payload)
}

// Close implements broker.Peer; the sockets belong to the service.
func (m *EventMirror) Close() error { return nil }
