package leap

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fasthttp/websocket"

	"github.com/leapdrone/controller/domain/motion"
	customlog "github.com/leapdrone/controller/pkg/log"
)

// DefaultURL is the local Leap Motion service, protocol v6.
const DefaultURL = "ws://127.0.0.1:6437/v6.json"

// FrameHandler receives every decoded frame on the client goroutine.
type FrameHandler func(f motion.Frame)

// Client keeps a connection to the Leap service open and forwards frames.
type Client struct {
	url       string
	reconnect time.Duration
	handler   FrameHandler
	logger    customlog.Logger
	dialer    *websocket.Dialer
	now       func() time.Time

	connected atomic.Bool
	frames    atomic.Int64
}

// NewClient creates a client for url. A non-positive reconnect uses one second.
func NewClient(url string, reconnect time.Duration, handler FrameHandler, logger customlog.Logger) *Client {
	if url == "" {
		url = DefaultURL
	}
	if reconnect <= 0 {
		reconnect = time.Second
	}
	if logger == nil {
		logger = customlog.NewNopLogger()
	}
	return &Client{
		url:       url,
		reconnect: reconnect,
		handler:   handler,
		logger:    logger,
		dialer:    &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		now:       time.Now,
	}
}

// Connected reports whether a session is open.
func (c *Client) Connected() bool { return c.connected.Load() }

// FramesReceived counts frames handed to the handler.
func (c *Client) FramesReceived() int64 { return c.frames.Load() }

// Run connects and reads until ctx is cancelled, reconnecting after every
// failure. It returns ctx.Err().
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warnf("Leap session ended: %v; reconnecting in %s", err, c.reconnect)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnect):
		}
	}
}

func (c *Client) session(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}
	defer conn.Close()

	// frames only while focused, no gesture events
	if err := conn.WriteJSON(map[string]bool{"enableGestures": false}); err != nil {
		return fmt.Errorf("failed to configure leap session: %w", err)
	}
	if err := conn.WriteJSON(map[string]bool{"focused": true}); err != nil {
		return fmt.Errorf("failed to configure leap session: %w", err)
	}

	c.connected.Store(true)
	defer c.connected.Store(false)
	c.logger.Infof("Connected to Leap service at %s", c.url)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		frame, ok, err := DecodeFrame(data, c.now())
		if err != nil {
			c.logger.Warnf("Dropping leap message: %v", err)
			continue
		}
		if !ok {
			continue
		}
		c.frames.Add(1)
		if c.handler != nil {
			c.handler(frame)
		}
	}
}
