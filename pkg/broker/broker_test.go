package broker

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakePeer struct {
	id      string
	gate    chan struct{}
	failErr error

	mu       sync.Mutex
	received []Message
	closed   int
}

func newFakePeer(id string) *fakePeer { return &fakePeer{id: id} }

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Send(msg Message) error {
	if p.gate != nil {
		<-p.gate
	}
	if p.failErr != nil {
		return p.failErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received = append(p.received, msg)
	return nil
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

func (p *fakePeer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.received)
}

func (p *fakePeer) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRegisterRunsCallbacksInOrder(t *testing.T) {
	b := New(0, nil)
	var order []string
	b.Register(EventConfig, func(json.RawMessage) { order = append(order, "first") })
	b.Register(EventConfig, func(data json.RawMessage) {
		order = append(order, "second:"+string(data))
	})

	if err := b.Dispatch([]byte(`{"event":"config","data":{"quad":1}}`)); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if len(order) != 2 || order[0] != "first" || order[1] != `second:{"quad":1}` {
		t.Errorf("Unexpected callback order: %v", order)
	}
	if st := b.Stats()[EventConfig]; st.InboundCount != 1 || st.Subscribers != 2 {
		t.Errorf("Unexpected stats: %+v", st)
	}
}

func TestUnknownRegistrationNeverFires(t *testing.T) {
	b := New(0, nil)
	fired := false
	b.Register("telemetry", func(json.RawMessage) { fired = true })

	err := b.Dispatch([]byte(`{"event":"telemetry","data":{}}`))
	if !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("Expected ErrUnknownEvent, got %v", err)
	}
	if err := b.Publish(Event{Name: "telemetry"}); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("Expected ErrUnknownEvent on publish, got %v", err)
	}
	if fired {
		t.Errorf("Callback for unknown event fired")
	}
}

func TestDispatchDropsMalformed(t *testing.T) {
	b := New(0, nil)
	fired := false
	b.Register(EventPosition, func(json.RawMessage) { fired = true })

	for _, raw := range []string{`{"event":`, `{"data":{}}`, `[]`} {
		if err := b.Dispatch([]byte(raw)); err == nil {
			t.Errorf("Expected error for %q", raw)
		}
	}
	if fired {
		t.Errorf("Callback fired for malformed input")
	}
}

func TestPublishFansOutInOrder(t *testing.T) {
	b := New(0, nil)
	defer b.Close()
	peers := []*fakePeer{newFakePeer("a"), newFakePeer("b")}
	for _, p := range peers {
		if err := b.Attach(p); err != nil {
			t.Fatalf("Attach failed: %v", err)
		}
	}
	local := 0
	b.Register(EventPosition, func(json.RawMessage) { local++ })

	for i := 0; i < 5; i++ {
		if err := b.PublishData(EventPosition, map[string]int{"seq": i}); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	for _, p := range peers {
		waitFor(t, "delivery to "+p.id, func() bool { return p.count() == 5 })
		p.mu.Lock()
		for i, msg := range p.received {
			want := fmt.Sprintf(`{"event":"position","data":{"seq":%d}}`, i)
			if string(msg.Raw) != want {
				t.Errorf("Peer %s message %d: expected %s, got %s", p.id, i, want, msg.Raw)
			}
		}
		p.mu.Unlock()
	}
	if local != 5 {
		t.Errorf("Expected 5 local callback runs, got %d", local)
	}
	if st := b.Stats()[EventPosition]; st.OutboundCount != 5 {
		t.Errorf("Expected 5 outbound, got %d", st.OutboundCount)
	}
}

func TestSlowPeerDoesNotBlockOthers(t *testing.T) {
	b := New(2, nil)
	slow := newFakePeer("slow")
	slow.gate = make(chan struct{})
	fast := newFakePeer("fast")
	_ = b.Attach(slow)
	_ = b.Attach(fast)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			_ = b.PublishData(EventPosition, i)
			want := i + 1
			for fast.count() < want {
				time.Sleep(time.Millisecond)
			}
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked on a slow peer")
	}

	waitFor(t, "fast peer delivery", func() bool { return fast.count() == 20 })
	close(slow.gate)
	b.Close()
	if n := slow.count(); n >= 20 {
		t.Errorf("Expected slow peer to drop events, got %d", n)
	}
}

func TestFailingPeerIsDetached(t *testing.T) {
	b := New(0, nil)
	defer b.Close()
	bad := newFakePeer("bad")
	bad.failErr = errors.New("broken pipe")
	good := newFakePeer("good")
	_ = b.Attach(bad)
	_ = b.Attach(good)

	_ = b.PublishData(EventDroneSync, map[string]int{"quad": 0})

	waitFor(t, "detach", func() bool { return b.PeerCount() == 1 })
	waitFor(t, "close", func() bool { return bad.closeCount() == 1 })
	_ = b.PublishData(EventDroneSync, nil)
	waitFor(t, "good peer delivery", func() bool { return good.count() == 2 })
	if bad.closeCount() != 1 {
		t.Errorf("Expected a single close, got %d", bad.closeCount())
	}
}

func TestDetachIsIdempotent(t *testing.T) {
	b := New(0, nil)
	p := newFakePeer("p")
	_ = b.Attach(p)

	b.Detach("p")
	b.Detach("p")
	b.Detach("missing")

	if b.PeerCount() != 0 {
		t.Errorf("Expected no peers")
	}
	if p.closeCount() != 1 {
		t.Errorf("Expected one close, got %d", p.closeCount())
	}
}

func TestAttachReplacesSameID(t *testing.T) {
	b := New(0, nil)
	defer b.Close()
	first := newFakePeer("dup")
	second := newFakePeer("dup")
	_ = b.Attach(first)
	_ = b.Attach(second)

	if b.PeerCount() != 1 || first.closeCount() != 1 {
		t.Fatalf("Expected first peer replaced")
	}
	_ = b.PublishData(EventConfig, nil)
	waitFor(t, "delivery", func() bool { return second.count() == 1 })
}

func TestClosedBrokerRejects(t *testing.T) {
	b := New(0, nil)
	p := newFakePeer("p")
	_ = b.Attach(p)
	b.Close()
	b.Close()

	if p.closeCount() != 1 {
		t.Errorf("Expected peer closed once, got %d", p.closeCount())
	}
	if err := b.Attach(newFakePeer("q")); !errors.Is(err, ErrServiceClosed) {
		t.Errorf("Expected ErrServiceClosed, got %v", err)
	}
	fired := false
	b.Register(EventConfig, func(json.RawMessage) { fired = true })
	if err := b.PublishData(EventConfig, nil); !errors.Is(err, ErrServiceClosed) {
		t.Errorf("Expected ErrServiceClosed, got %v", err)
	}
	if err := b.Dispatch([]byte(`{"event":"config","data":{}}`)); !errors.Is(err, ErrServiceClosed) {
		t.Errorf("Expected ErrServiceClosed from Dispatch, got %v", err)
	}
	if fired {
		t.Errorf("Callback ran on a closed broker")
	}
}

func TestPublishRunsLocalCallbacksBeforePeers(t *testing.T) {
	b := New(0, nil)
	defer b.Close()
	p := newFakePeer("p")
	if err := b.Attach(p); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	var order []string
	b.Register(EventPosition, func(data json.RawMessage) {
		order = append(order, "first:"+string(data))
	})
	b.Register(EventPosition, func(json.RawMessage) {
		order = append(order, fmt.Sprintf("second:%d", p.count()))
	})
	b.Register(EventConfig, func(json.RawMessage) { order = append(order, "config") })

	if err := b.PublishData(EventPosition, map[string]float64{"throttle": 1}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	want := []string{`first:{"throttle":1}`, "second:0"}
	if fmt.Sprint(order) != fmt.Sprint(want) {
		t.Errorf("Expected callbacks %v, got %v", want, order)
	}
	waitFor(t, "peer delivery", func() bool { return p.count() == 1 })
}

func TestBroadcastSkipsLocalCallbacks(t *testing.T) {
	b := New(0, nil)
	defer b.Close()
	p := newFakePeer("p")
	_ = b.Attach(p)

	fired := false
	b.Register(EventConfig, func(json.RawMessage) { fired = true })
	if err := b.BroadcastData(EventConfig, map[string]int{"quad": 1}); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}
	waitFor(t, "peer delivery", func() bool { return p.count() == 1 })
	if fired {
		t.Errorf("Broadcast ran a local callback")
	}
	if err := b.BroadcastData("telemetry", nil); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("Expected ErrUnknownEvent, got %v", err)
	}
}
