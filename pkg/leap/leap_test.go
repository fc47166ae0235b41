package leap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fasthttp/websocket"

	"github.com/leapdrone/controller/domain/motion"
)

const sampleFrame = `{
  "id": 4211,
  "timestamp": 91823311,
  "hands": [
    {"id": 7, "type": "right", "palmPosition": [10.5, 220.1, -30.2]},
    {"id": 8, "type": "left", "palmPosition": [-80, 200, 5]}
  ],
  "pointables": [
    {"id": 70, "handId": 7, "type": 1, "extended": true,
     "mcpPosition": [1,2,3], "pipPosition": [4,5,6], "dipPosition": [7,8,9], "tipPosition": [10,11,12]},
    {"id": 71, "handId": 7, "type": 2, "extended": false, "tipPosition": [0,0,0]},
    {"id": 80, "handId": 8, "type": 0, "extended": true, "tipPosition": [1,1,1]},
    {"id": 99, "handId": 7, "type": 0, "tool": true},
    {"id": 98, "handId": 42, "type": 3}
  ]
}`

func TestDecodeFrame(t *testing.T) {
	at := time.Unix(100, 0)
	f, ok, err := DecodeFrame([]byte(sampleFrame), at)
	if err != nil || !ok {
		t.Fatalf("DecodeFrame failed: ok=%v err=%v", ok, err)
	}
	if f.ID != 4211 || !f.Timestamp.Equal(at) {
		t.Errorf("Unexpected frame header: id=%d ts=%v", f.ID, f.Timestamp)
	}
	if len(f.Hands) != 2 {
		t.Fatalf("Expected 2 hands, got %d", len(f.Hands))
	}

	right := f.Hands[0]
	if right.Side != motion.SideRight || right.Palm != (motion.Vector3{X: 10.5, Y: 220.1, Z: -30.2}) {
		t.Errorf("Unexpected right hand: %+v", right)
	}
	if len(right.Fingers) != 2 {
		t.Fatalf("Expected tools and orphans skipped, got %d fingers", len(right.Fingers))
	}
	index, found := right.Finger(motion.Index)
	if !found || !index.Extended {
		t.Fatalf("Expected extended index finger")
	}
	if index.MCP != (motion.Vector3{X: 1, Y: 2, Z: 3}) || index.DIP != (motion.Vector3{X: 7, Y: 8, Z: 9}) || index.Tip != (motion.Vector3{X: 10, Y: 11, Z: 12}) {
		t.Errorf("Unexpected joints: %+v", index)
	}
	if f.Hands[1].Side != motion.SideLeft || len(f.Hands[1].Fingers) != 1 {
		t.Errorf("Unexpected left hand: %+v", f.Hands[1])
	}
}

func TestDecodeFrameSkipsNonFrames(t *testing.T) {
	_, ok, err := DecodeFrame([]byte(`{"serviceVersion":"2.3.1","version":6}`), time.Now())
	if err != nil || ok {
		t.Errorf("Expected handshake skipped, ok=%v err=%v", ok, err)
	}

	f, ok, err := DecodeFrame([]byte(`{"id":1,"hands":[],"pointables":[]}`), time.Now())
	if err != nil || !ok || len(f.Hands) != 0 {
		t.Errorf("Expected empty frame, ok=%v err=%v hands=%d", ok, err, len(f.Hands))
	}

	if _, _, err := DecodeFrame([]byte(`{"hands":`), time.Now()); err == nil {
		t.Errorf("Expected error for truncated message")
	}
}

func TestClientStreamsFrames(t *testing.T) {
	configured := make(chan string, 2)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"serviceVersion":"2.3.1","version":6}`))
		for i := 0; i < 2; i++ {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			configured <- string(msg)
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(sampleFrame))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	frames := make(chan motion.Frame, 1)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := NewClient(url, 10*time.Millisecond, func(f motion.Frame) { frames <- f }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- c.Run(ctx) }()

	select {
	case f := <-frames:
		if f.ID != 4211 {
			t.Errorf("Expected frame 4211, got %d", f.ID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("No frame received")
	}
	if got := <-configured; !strings.Contains(got, "enableGestures") {
		t.Errorf("Expected gesture configuration first, got %s", got)
	}
	if got := <-configured; !strings.Contains(got, "focused") {
		t.Errorf("Expected focus configuration, got %s", got)
	}
	if !c.Connected() || c.FramesReceived() != 1 {
		t.Errorf("Unexpected client state: connected=%v frames=%d", c.Connected(), c.FramesReceived())
	}

	cancel()
	select {
	case err := <-result:
		if err != context.Canceled {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
