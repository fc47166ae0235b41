package zeromq

import (
	"fmt"

	"github.com/leapdrone/controller/pkg/broker"
	customlog "github.com/leapdrone/controller/pkg/log"
)

// EventHandler feeds EVENT requests into the broker as inbound events
type EventHandler struct {
	dispatch func(ev broker.Event) error
	logger   customlog.Logger
}

// NewEventHandler creates a handler dispatching through dispatch
func NewEventHandler(dispatch func(ev broker.Event) error, logger customlog.Logger) *EventHandler {
	if logger == nil {
		logger = customlog.NewNopLogger()
	}
	return &EventHandler{dispatch: dispatch, logger: logger}
}

// HandleMessage processes an EVENT message and acknowledges it
func (h *EventHandler) HandleMessage(msg ZeroMQMessage) ([]byte, error) {
	if msg.Type != MsgTypeEvent {
		return nil, fmt.Errorf("unexpected message type: %s", msg.Type)
	}
	ev, err := broker.ParseEvent(msg.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := h.dispatch(ev); err != nil {
		return nil, fmt.Errorf("failed to dispatch %s: %w", ev.Name, err)
	}

	h.logger.Debugf("Dispatched %s event from ZeroMQ", ev.Name)
	return NewMessage(MsgTypeAck, map[string]string{
		"status": "OK",
		"event":  ev.Name,
	})
}

// ConfigHandler handles CONFIG_REQUEST messages
type ConfigHandler struct {
	snapshot func() interface{}
	logger   customlog.Logger
}

// NewConfigHandler creates a handler answering with snapshot()
func NewConfigHandler(snapshot func() interface{}, logger customlog.Logger) *ConfigHandler {
	if logger == nil {
		logger = customlog.NewNopLogger()
	}
	return &ConfigHandler{snapshot: snapshot, logger: logger}
}

// HandleMessage processes a CONFIG_REQUEST message and returns a CONFIG_RESPONSE
func (h *ConfigHandler) HandleMessage(msg ZeroMQMessage) ([]byte, error) {
	if msg.Type != MsgTypeConfigRequest {
		return nil, fmt.Errorf("unexpected message type: %s", msg.Type)
	}

	h.logger.Debugf("Processing configuration request")
	return NewMessage(MsgTypeConfigResponse, h.snapshot())
}

// RegisterBrokerHandlers wires the service to b: EVENT and CONFIG_REQUEST
// requests are served, and when a PUB socket is bound every published
// event is mirrored on it.
func RegisterBrokerHandlers(service *ZeroMQService, b *broker.Broker, snapshot func() interface{}, logger customlog.Logger) error {
	if logger == nil {
		logger = customlog.NewNopLogger()
	}
	service.RegisterHandler(MsgTypeEvent, NewEventHandler(b.DispatchEvent, logger))
	service.RegisterHandler(MsgTypeConfigRequest, NewConfigHandler(snapshot, logger))

	if !service.CanPublish() {
		return nil
	}
	if err := b.Attach(NewEventMirror(service, logger)); err != nil {
		return fmt.Errorf("failed to attach ZeroMQ mirror: %w", err)
	}
	logger.Infof("ZeroMQ mirror attached to broker")
	return nil
}
