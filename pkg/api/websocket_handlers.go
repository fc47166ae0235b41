package api

import (
	"errors"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/leapdrone/controller/pkg/broker"
	customlog "github.com/leapdrone/controller/pkg/log"
)

const writeTimeout = 5 * time.Second

var errPeerClosed = errors.New("websocket peer closed")

// wsPeer delivers broker events to one websocket client.
type wsPeer struct {
	id   string
	conn *websocket.Conn

	writeMu sync.Mutex
	closed  bool
}

func newWSPeer(conn *websocket.Conn) *wsPeer {
	return &wsPeer{id: uuid.NewString(), conn: conn}
}

func (p *wsPeer) ID() string { return p.id }

func (p *wsPeer) Send(msg broker.Message) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if p.closed {
		return errPeerClosed
	}
	if err := p.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return p.conn.WriteMessage(websocket.TextMessage, msg.Raw)
}

// Close is idempotent; the connection must not be touched once the
// handler has returned.
func (p *wsPeer) Close() error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.conn.Close()
}

// EventWebSocketHandler attaches the connection to the broker as a peer
// and dispatches every text message it sends.
func EventWebSocketHandler(conn *websocket.Conn, b *broker.Broker, logger customlog.Logger) {
	peer := newWSPeer(conn)
	log := logger.WithField("peer", peer.ID())
	log.Infof("Event WebSocket connected: %s", conn.RemoteAddr())

	if err := b.Attach(peer); err != nil {
		log.Warnf("Rejecting WebSocket client: %v", err)
		_ = peer.Close()
		return
	}
	defer func() {
		b.Detach(peer.ID())
		_ = peer.Close()
		log.Infof("Event WebSocket disconnected: %s", conn.RemoteAddr())
	}()

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Errorf("Event WS read error: %v", err)
			} else if err != websocket.ErrCloseSent && !errors.Is(err, syscall.EPIPE) && !errors.Is(err, syscall.ECONNRESET) {
				log.Infof("Event WS connection closed: %v", err)
			} else {
				log.Infof("Event WS connection closed normally.")
			}
			return
		}

		if mt != websocket.TextMessage {
			log.Debugf("Ignoring non-text Event WS message type: %d", mt)
			continue
		}
		// malformed and unknown events are logged by the broker and skipped
		_ = b.Dispatch(msg)
	}
}

// RegisterEventRoutes mounts the broker websocket at path.
func RegisterEventRoutes(app *fiber.App, path string, b *broker.Broker, logger customlog.Logger) {
	app.Use(path, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get(path, websocket.New(func(conn *websocket.Conn) {
		EventWebSocketHandler(conn, b, logger)
	}))
	logger.Infof("Registered event WebSocket endpoint at %s", path)
}
