package test

import (
	"encoding/json"
	"fmt"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/pebbe/zmq4"

	"github.com/leapdrone/controller/pkg/zeromq"
)

// liveAddress returns the controller endpoints or skips; these tests need a running controller.
func liveAddress(t *testing.T, key, fallback string) string {
	t.Helper()
	if os.Getenv("LEAPDRONE_ZMQ_LIVE") == "" {
		t.Skip("set LEAPDRONE_ZMQ_LIVE=1 to run against a running controller")
	}
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// TestRequestClient sends a drone-sync EVENT and a CONFIG_REQUEST to the REP socket
func TestRequestClient(t *testing.T) {
	address := liveAddress(t, "LEAPDRONE_ZMQ_REQ", "tcp://localhost:5555")

	ctx, err := zmq4.NewContext()
	if err != nil {
		t.Fatalf("Failed to create ZMQ context: %v", err)
	}
	defer ctx.Term()

	socket, err := ctx.NewSocket(zmq4.REQ)
	if err != nil {
		t.Fatalf("Failed to create REQ socket: %v", err)
	}
	defer socket.Close()

	if err := socket.Connect(address); err != nil {
		t.Fatalf("Failed to connect to controller: %v", err)
	}
	socket.SetRcvtimeo(5 * time.Second)

	requests := []struct {
		msgType string
		data    interface{}
		want    string
	}{
		{zeromq.MsgTypeEvent, map[string]interface{}{"event": "drone-sync", "data": map[string]int{"quad": 0}}, zeromq.MsgTypeAck},
		{zeromq.MsgTypeConfigRequest, nil, zeromq.MsgTypeConfigResponse},
	}
	for _, req := range requests {
		reqData, err := zeromq.NewMessage(req.msgType, req.data)
		if err != nil {
			t.Fatalf("Failed to marshal request: %v", err)
		}
		if _, err := socket.SendBytes(reqData, 0); err != nil {
			t.Fatalf("Failed to send request: %v", err)
		}

		respData, err := socket.RecvBytes(0)
		if err != nil {
			t.Fatalf("Failed to receive response: %v", err)
		}
		var resp zeromq.ZeroMQMessage
		if err := json.Unmarshal(respData, &resp); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if resp.Type != req.want {
			t.Errorf("Expected response type '%s', got '%s' (%s)", req.want, resp.Type, resp.Data)
		}
		fmt.Printf("Received %s: %s\n", resp.Type, resp.Data)
	}
}

// TestSubscriber prints mirrored events until interrupted
func TestSubscriber(t *testing.T) {
	address := liveAddress(t, "LEAPDRONE_ZMQ_PUB", "tcp://localhost:5556")

	ctx, err := zmq4.NewContext()
	if err != nil {
		t.Fatalf("Failed to create ZMQ context: %v", err)
	}
	defer ctx.Term()

	socket, err := ctx.NewSocket(zmq4.SUB)
	if err != nil {
		t.Fatalf("Failed to create SUB socket: %v", err)
	}
	defer socket.Close()

	if err := socket.Connect(address); err != nil {
		t.Fatalf("Failed to connect to controller: %v", err)
	}
	if err := socket.SetSubscribe(""); err != nil {
		t.Fatalf("Failed to set subscription: %v", err)
	}
	socket.SetRcvtimeo(1 * time.Second)

	fmt.Println("Subscribed to all events, waiting for messages...")
	for {
		topic, err := socket.Recv(0)
		if err != nil {
			if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
				continue
			}
			t.Fatalf("Failed to receive topic: %v", err)
		}
		payload, err := socket.RecvBytes(0)
		if err != nil {
			t.Fatalf("Failed to receive message: %v", err)
		}

		if topic == "position" {
			v, at, err := zeromq.DecodeControlFrame(payload)
			if err != nil {
				fmt.Printf("position (json): %s\n", payload)
				continue
			}
			fmt.Printf("position %s: roll=%.3f pitch=%.3f yaw=%.3f throttle=%.3f quad=%d\n",
				at.Format(time.RFC3339Nano), v.Roll, v.Pitch, v.Yaw, v.Throttle, v.Quad)
			continue
		}
		fmt.Printf("%s: %s\n", topic, payload)
	}
}
