package zeromq

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pebbe/zmq4"

	"github.com/leapdrone/controller/pkg/config"
	customlog "github.com/leapdrone/controller/pkg/log"
)

// Common errors
var (
	ErrServiceClosed      = errors.New("zeromq service is closed")
	ErrInvalidMessage     = errors.New("invalid message format")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Message types
const (
	MsgTypeEvent          = "EVENT"
	MsgTypeConfigRequest  = "CONFIG_REQUEST"
	MsgTypeConfigResponse = "CONFIG_RESPONSE"
	MsgTypeAck            = "ACK"
	MsgTypeError          = "ERROR"
)

const (
	pollInterval  = 500 * time.Millisecond
	socketTimeout = 1 * time.Second
)

// ZeroMQMessage represents a generic message structure for ZeroMQ communication
type ZeroMQMessage struct {
	Type      string          `json:"type"`
	Timestamp float64         `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ErrorResponse represents an error response message
type ErrorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// NewMessage builds an envelope of the given type around data.
func NewMessage(msgType string, data interface{}) ([]byte, error) {
	msg := ZeroMQMessage{
		Type:      msgType,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s data: %w", msgType, err)
		}
		msg.Data = raw
	}
	out, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s message: %w", msgType, err)
	}
	return out, nil
}

// MessageHandler defines the interface for handlers that process specific message types
type MessageHandler interface {
	HandleMessage(msg ZeroMQMessage) ([]byte, error)
}

// HandlerFunc is a function type that implements MessageHandler
type HandlerFunc func(msg ZeroMQMessage) ([]byte, error)

// HandleMessage calls the function
func (f HandlerFunc) HandleMessage(msg ZeroMQMessage) ([]byte, error) {
	return f(msg)
}

// MessageDispatcher routes messages to the appropriate handlers
type MessageDispatcher struct {
	handlers map[string]MessageHandler
	logger   customlog.Logger
	mu       sync.RWMutex
}

// NewMessageDispatcher creates a new message dispatcher
func NewMessageDispatcher(logger customlog.Logger) *MessageDispatcher {
	if logger == nil {
		logger = customlog.NewNopLogger()
	}
	return &MessageDispatcher{
		handlers: make(map[string]MessageHandler),
		logger:   logger,
	}
}

// RegisterHandler adds a handler for a specific message type
func (d *MessageDispatcher) RegisterHandler(messageType string, handler MessageHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[messageType] = handler
	d.logger.Debugf("Registered handler for message type: %s", messageType)
}

// Dispatch processes a request and routes it to the handler for its type
func (d *MessageDispatcher) Dispatch(data []byte) ([]byte, error) {
	var msg ZeroMQMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidMessage)
	}

	d.mu.RLock()
	handler, exists := d.handlers[msg.Type]
	d.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.Type)
	}
	d.logger.Debugf("Dispatching message of type: %s", msg.Type)
	return handler.HandleMessage(msg)
}

// Respond dispatches data and always produces a reply, an ERROR envelope on failure.
func (d *MessageDispatcher) Respond(data []byte) []byte {
	response, err := d.Dispatch(data)
	if err == nil {
		return response
	}
	d.logger.Warnf("Error dispatching message: %v", err)

	code := 500
	if errors.Is(err, ErrInvalidMessage) || errors.Is(err, ErrUnknownMessageType) {
		code = 400
	}
	errData, mErr := NewMessage(MsgTypeError, ErrorResponse{Message: err.Error(), Code: code})
	if mErr != nil {
		return []byte(`{"type":"ERROR"}`)
	}
	return errData
}

// MessageReceiver serves a REP socket
type MessageReceiver struct {
	socket     *zmq4.Socket
	dispatcher *MessageDispatcher
	poller     *zmq4.Poller
	logger     customlog.Logger
	running    atomic.Bool
	wg         *sync.WaitGroup
}

// newMessageReceiver creates a new MessageReceiver
func newMessageReceiver(ctx *zmq4.Context, address string, dispatcher *MessageDispatcher, logger customlog.Logger, wg *sync.WaitGroup) (*MessageReceiver, error) {
	socket, err := ctx.NewSocket(zmq4.REP)
	if err != nil {
		return nil, fmt.Errorf("failed to create REP socket: %w", err)
	}

	if err := socket.Bind(address); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind to %s: %w", address, err)
	}

	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}

	// Timeouts keep shutdown from blocking on a stuck peer
	if err := socket.SetRcvtimeo(socketTimeout); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set receive timeout: %w", err)
	}
	if err := socket.SetSndtimeo(socketTimeout); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set send timeout: %w", err)
	}

	poller := zmq4.NewPoller()
	poller.Add(socket, zmq4.POLLIN)

	logger.Infof("MessageReceiver initialized on %s", address)

	return &MessageReceiver{
		socket:     socket,
		dispatcher: dispatcher,
		poller:     poller,
		logger:     logger,
		wg:         wg,
	}, nil
}

// Start begins the request loop. The loop owns the socket and closes it on exit.
func (r *MessageReceiver) Start() {
	if !r.running.CompareAndSwap(false, true) {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.socket.Close()
		r.logger.Infof("MessageReceiver started")

		for r.running.Load() {
			sockets, err := r.poller.Poll(pollInterval)
			if err != nil {
				if r.running.Load() {
					r.logger.Warnf("Error polling socket: %v", err)
				}
				continue
			}
			if len(sockets) == 0 {
				continue
			}

			msg, err := r.socket.RecvBytes(0)
			if err != nil {
				if r.running.Load() {
					r.logger.Warnf("Error receiving message: %v", err)
				}
				continue
			}
			r.logger.Debugf("Received message (%d bytes)", len(msg))

			response := r.dispatcher.Respond(msg)
			if _, err := r.socket.SendBytes(response, 0); err != nil && r.running.Load() {
				r.logger.Errorf("Error sending response: %v", err)
			}
		}
		r.logger.Infof("MessageReceiver stopped")
	}()
}

// Stop asks the request loop to exit after its current poll
func (r *MessageReceiver) Stop() {
	r.running.Store(false)
}

// MessageSender publishes on a PUB socket
type MessageSender struct {
	socket  *zmq4.Socket
	logger  customlog.Logger
	running bool
	mu      sync.Mutex
}

// newMessageSender creates a new MessageSender
func newMessageSender(ctx *zmq4.Context, address string, logger customlog.Logger) (*MessageSender, error) {
	socket, err := ctx.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}

	if err := socket.Bind(address); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind to %s: %w", address, err)
	}

	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}

	logger.Infof("MessageSender initialized on %s", address)

	return &MessageSender{
		socket:  socket,
		logger:  logger,
		running: true,
	}, nil
}

// PublishMessage sends a message with the given topic
func (s *MessageSender) PublishMessage(topic string, message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrServiceClosed
	}

	// topic frame first, then payload
	if _, err := s.socket.Send(topic, zmq4.SNDMORE); err != nil {
		return fmt.Errorf("failed to send topic: %w", err)
	}
	if _, err := s.socket.SendBytes(message, 0); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Close cleans up resources
func (s *MessageSender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	if s.socket != nil {
		s.socket.Close()
		s.socket = nil
	}
}

// ZeroMQService owns the optional PUB mirror and REP intake sockets
type ZeroMQService struct {
	ctx        *zmq4.Context
	receiver   *MessageReceiver
	sender     *MessageSender
	dispatcher *MessageDispatcher
	logger     customlog.Logger
	mu         sync.Mutex
	running    bool
	wg         sync.WaitGroup
}

// NewZeroMQService binds the sockets whose addresses are set in cfg
func NewZeroMQService(cfg config.ZeroMQConfig, logger customlog.Logger) (*ZeroMQService, error) {
	if logger == nil {
		logger = customlog.NewNopLogger()
	}
	ctx, err := zmq4.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create ZMQ context: %w", err)
	}

	s := &ZeroMQService{
		ctx:        ctx,
		dispatcher: NewMessageDispatcher(logger),
		logger:     logger,
	}

	if cfg.RequestBindAddress != "" {
		s.receiver, err = newMessageReceiver(ctx, cfg.RequestBindAddress, s.dispatcher, logger, &s.wg)
		if err != nil {
			ctx.Term()
			return nil, err
		}
	}

	if cfg.PublishBindAddress != "" {
		s.sender, err = newMessageSender(ctx, cfg.PublishBindAddress, logger)
		if err != nil {
			if s.receiver != nil {
				s.receiver.socket.Close()
			}
			ctx.Term()
			return nil, err
		}
	}

	return s, nil
}

// RegisterHandler adds a handler for a specific message type
func (s *ZeroMQService) RegisterHandler(messageType string, handler MessageHandler) {
	s.dispatcher.RegisterHandler(messageType, handler)
}

// RegisterHandlerFunc adds a handler function for a specific message type
func (s *ZeroMQService) RegisterHandlerFunc(messageType string, handler func(ZeroMQMessage) ([]byte, error)) {
	s.dispatcher.RegisterHandler(messageType, HandlerFunc(handler))
}

// Start begins serving requests
func (s *ZeroMQService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true
	s.logger.Infof("Starting ZeroMQ service")
	if s.receiver != nil {
		s.receiver.Start()
	}
	return nil
}

// Stop closes every socket and terminates the context
func (s *ZeroMQService) Stop() {
	s.mu.Lock()
	ctx := s.ctx
	if ctx == nil {
		s.mu.Unlock()
		return
	}
	started := s.running
	s.running = false
	s.ctx = nil
	s.mu.Unlock()

	s.logger.Infof("Stopping ZeroMQ service")
	if s.receiver != nil {
		if started {
			s.receiver.Stop()
		} else {
			s.receiver.socket.Close()
		}
	}
	if s.sender != nil {
		s.sender.Close()
	}

	s.wg.Wait()
	ctx.Term()
	s.logger.Infof("ZeroMQ service stopped")
}

// CanPublish reports whether a PUB socket is bound.
func (s *ZeroMQService) CanPublish() bool {
	return s.sender != nil
}

// PublishMessage sends a message with the given topic
func (s *ZeroMQService) PublishMessage(topic string, message []byte) error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running || s.sender == nil {
		return ErrServiceClosed
	}
	return s.sender.PublishMessage(topic, message)
}
