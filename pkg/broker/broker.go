package broker

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	customlog "github.com/leapdrone/controller/pkg/log"
	"github.com/leapdrone/controller/pkg/processing"
)

// DefaultPeerQueueSize is the outbound buffer of each peer.
const DefaultPeerQueueSize = 64

// Callback handles the data of a dispatched event.
type Callback func(data json.RawMessage)

// Peer is a remote subscriber. Send is only ever called from the peer's
// own delivery goroutine.
type Peer interface {
	ID() string
	Send(msg Message) error
	Close() error
}

type peerConn struct {
	peer   Peer
	queue  chan Message
	done   chan struct{}
	failed bool
}

// Broker multiplexes events between local callbacks and remote peers.
// Publish reaches callbacks and peers, Broadcast only peers and Dispatch
// only callbacks.
type Broker struct {
	logger    customlog.Logger
	registry  *processing.EventRegistry
	queueSize int

	callbacksMu sync.RWMutex
	callbacks   map[string][]Callback

	peersMu sync.Mutex
	peers   map[string]*peerConn
	closed  bool
}

// New creates a broker whose peers buffer up to queueSize events.
func New(queueSize int, logger customlog.Logger) *Broker {
	if logger == nil {
		logger = customlog.NewNopLogger()
	}
	if queueSize < 1 {
		queueSize = DefaultPeerQueueSize
	}
	return &Broker{
		logger:    logger,
		registry:  processing.NewEventRegistry(logger, KnownEvents...),
		queueSize: queueSize,
		callbacks: make(map[string][]Callback),
		peers:     make(map[string]*peerConn),
	}
}

// Register adds cb for name. Unknown names are logged and never fire.
func (b *Broker) Register(name string, cb Callback) {
	if !isKnown(name) {
		b.logger.Warnf("Ignoring registration for unknown event %q", name)
		return
	}
	b.callbacksMu.Lock()
	defer b.callbacksMu.Unlock()
	b.callbacks[name] = append(b.callbacks[name], cb)
	b.registry.AddSubscriber(name)
}

// Publish runs the local callbacks for ev in registration order, then
// queues it for every peer.
func (b *Broker) Publish(ev Event) error {
	msg, err := b.encode(ev)
	if err != nil {
		return err
	}
	if b.isClosed() {
		return ErrServiceClosed
	}
	b.runCallbacks(ev)
	return b.fanOut(msg)
}

// PublishData wraps payload in an event called name and publishes it.
func (b *Broker) PublishData(name string, payload interface{}) error {
	ev, err := NewEvent(name, payload)
	if err != nil {
		return err
	}
	return b.Publish(ev)
}

// Broadcast queues ev for every peer without running local callbacks.
// Components announcing their own state use it so their callback does not
// see the announcement again.
func (b *Broker) Broadcast(ev Event) error {
	msg, err := b.encode(ev)
	if err != nil {
		return err
	}
	return b.fanOut(msg)
}

// BroadcastData wraps payload in an event called name and broadcasts it.
func (b *Broker) BroadcastData(name string, payload interface{}) error {
	ev, err := NewEvent(name, payload)
	if err != nil {
		return err
	}
	return b.Broadcast(ev)
}

func (b *Broker) encode(ev Event) (Message, error) {
	if !isKnown(ev.Name) {
		b.logger.Warnf("Refusing to publish unknown event %q", ev.Name)
		return Message{}, fmt.Errorf("publish %q: %w", ev.Name, ErrUnknownEvent)
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode %s event: %w", ev.Name, err)
	}
	return Message{Event: ev, Raw: raw}, nil
}

func (b *Broker) fanOut(msg Message) error {
	b.peersMu.Lock()
	defer b.peersMu.Unlock()
	if b.closed {
		return ErrServiceClosed
	}
	b.registry.UpdateEventStats(msg.Name, processing.DirectionOutbound, time.Now())
	for id, pc := range b.peers {
		select {
		case pc.queue <- msg:
		default:
			b.logger.Warnf("Peer %s queue full, dropping %s event", id, msg.Name)
		}
	}
	return nil
}

// runCallbacks invokes the callbacks for ev.Name outside every lock.
func (b *Broker) runCallbacks(ev Event) {
	b.callbacksMu.RLock()
	cbs := make([]Callback, len(b.callbacks[ev.Name]))
	copy(cbs, b.callbacks[ev.Name])
	b.callbacksMu.RUnlock()

	for _, cb := range cbs {
		cb(ev.Data)
	}
}

func (b *Broker) isClosed() bool {
	b.peersMu.Lock()
	defer b.peersMu.Unlock()
	return b.closed
}

// Dispatch parses an inbound message and runs the callbacks for it in
// registration order.
func (b *Broker) Dispatch(raw []byte) error {
	ev, err := ParseEvent(raw)
	if err != nil {
		b.logger.Warnf("Dropping inbound message: %v", err)
		return err
	}
	return b.DispatchEvent(ev)
}

// DispatchEvent runs the callbacks for an already decoded event.
func (b *Broker) DispatchEvent(ev Event) error {
	b.registry.UpdateEventStats(ev.Name, processing.DirectionInbound, time.Now())
	if !isKnown(ev.Name) {
		b.logger.Warnf("Dropping unknown inbound event %q", ev.Name)
		return fmt.Errorf("dispatch %q: %w", ev.Name, ErrUnknownEvent)
	}
	if b.isClosed() {
		return ErrServiceClosed
	}
	b.runCallbacks(ev)
	return nil
}

// Attach starts delivering published events to p. A peer with the same id
// is replaced.
func (b *Broker) Attach(p Peer) error {
	pc := &peerConn{
		peer:  p,
		queue: make(chan Message, b.queueSize),
		done:  make(chan struct{}),
	}

	b.peersMu.Lock()
	if b.closed {
		b.peersMu.Unlock()
		return ErrServiceClosed
	}
	old := b.peers[p.ID()]
	if old != nil {
		b.removeLocked(old)
	}
	b.peers[p.ID()] = pc
	count := len(b.peers)
	b.peersMu.Unlock()

	if old != nil {
		b.closePeer(old)
	}
	go b.deliver(pc)
	b.logger.Infof("Peer %s attached (%d connected)", p.ID(), count)
	return nil
}

// Detach stops delivery to the peer with id. Unknown ids are ignored.
func (b *Broker) Detach(id string) {
	b.peersMu.Lock()
	pc := b.peers[id]
	if pc != nil {
		b.removeLocked(pc)
	}
	count := len(b.peers)
	b.peersMu.Unlock()

	if pc != nil {
		b.closePeer(pc)
		b.logger.Infof("Peer %s detached (%d connected)", id, count)
	}
}

// detachConn removes pc only if it is still the registered peer for its id.
func (b *Broker) detachConn(pc *peerConn) {
	b.peersMu.Lock()
	current := b.peers[pc.peer.ID()]
	if current != pc {
		b.peersMu.Unlock()
		return
	}
	b.removeLocked(pc)
	b.peersMu.Unlock()
	b.closePeer(pc)
}

// removeLocked unregisters pc and ends its delivery loop. Caller holds peersMu.
func (b *Broker) removeLocked(pc *peerConn) {
	delete(b.peers, pc.peer.ID())
	close(pc.queue)
}

func (b *Broker) closePeer(pc *peerConn) {
	if err := pc.peer.Close(); err != nil {
		b.logger.Debugf("Closing peer %s: %v", pc.peer.ID(), err)
	}
}

func (b *Broker) deliver(pc *peerConn) {
	defer close(pc.done)
	for msg := range pc.queue {
		if pc.failed {
			continue
		}
		if err := pc.peer.Send(msg); err != nil {
			pc.failed = true
			b.logger.Warnf("Write to peer %s failed, detaching: %v", pc.peer.ID(), err)
			b.detachConn(pc)
		}
	}
}

// PeerCount is the number of attached peers.
func (b *Broker) PeerCount() int {
	b.peersMu.Lock()
	defer b.peersMu.Unlock()
	return len(b.peers)
}

// Stats returns per-event counters.
func (b *Broker) Stats() map[string]processing.EventInfo {
	return b.registry.GetEventStats()
}

// Close detaches every peer and waits for their delivery loops to finish.
// Events still queued for a closed peer are discarded by its failed writes.
func (b *Broker) Close() {
	b.peersMu.Lock()
	if b.closed {
		b.peersMu.Unlock()
		return
	}
	b.closed = true
	conns := make([]*peerConn, 0, len(b.peers))
	for _, pc := range b.peers {
		conns = append(conns, pc)
	}
	for _, pc := range conns {
		b.removeLocked(pc)
	}
	b.peersMu.Unlock()

	for _, pc := range conns {
		b.closePeer(pc)
		<-pc.done
	}
	b.logger.Infof("Broker closed")
}
