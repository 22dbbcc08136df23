package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quickchat/qc/internal/bus"
)

// wsServer is a loopback chat server: records inbound envelopes and can
// push envelopes to the connected client.
type wsServer struct {
	*httptest.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns []*websocket.Conn
	seen  []Envelope
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	s := &wsServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		for {
			var env Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			s.mu.Lock()
			s.seen = append(s.seen, env)
			s.mu.Unlock()
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *wsServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *wsServer) push(t *testing.T, env Envelope) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		t.Fatal("no client connected")
	}
	if err := s.conns[len(s.conns)-1].WriteJSON(env); err != nil {
		t.Fatalf("push: %v", err)
	}
}

func (s *wsServer) envelopes(event string) []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Envelope
	for _, env := range s.seen {
		if env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestChannelJoinAndInbound(t *testing.T) {
	srv := newWSServer(t)
	b := bus.NewBus()
	ch, unsub := b.Subscribe("transport.", 16)
	defer unsub()

	c := NewChannel(srv.wsURL(), b, nil)
	c.Connect(context.Background())
	defer c.Close()

	// Wait for the connected status event.
	waitForStatus(t, ch, StatusConnected)

	c.JoinRoom("u1")
	waitFor(t, func() bool { return len(srv.envelopes(EventJoinRoom)) == 1 })

	var joined string
	if err := json.Unmarshal(srv.envelopes(EventJoinRoom)[0].Data, &joined); err != nil {
		t.Fatal(err)
	}
	if joined != "u1" {
		t.Errorf("joinRoom payload = %q, want u1", joined)
	}

	// Server pushes an event; it must land on the bus under transport.*.
	srv.push(t, Envelope{Event: EventReceiveMessage, Data: json.RawMessage(`{"_id":"m1"}`)})

	select {
	case evt := <-ch:
		if evt.Kind != bus.KindTransportReceive {
			t.Errorf("kind = %q, want %q", evt.Kind, bus.KindTransportReceive)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for inbound event")
	}
}

func TestChannelEmitWhileDisconnected(t *testing.T) {
	c := NewChannel("ws://127.0.0.1:0/none", bus.NewBus(), nil)
	if err := c.Emit(EventSendMessage, "x"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Emit() error = %v, want ErrNotConnected", err)
	}
}

func TestChannelRejoinsAfterReconnect(t *testing.T) {
	srv := newWSServer(t)
	b := bus.NewBus()
	ch, unsub := b.Subscribe("transport.status", 16)
	defer unsub()

	c := NewChannel(srv.wsURL(), b, nil)
	c.Connect(context.Background())
	defer c.Close()

	waitForStatus(t, ch, StatusConnected)
	c.JoinRoom("u1")
	waitFor(t, func() bool { return len(srv.envelopes(EventJoinRoom)) == 1 })

	// Kill the server side of the connection; the channel must dial
	// again and replay joinRoom on its own.
	srv.mu.Lock()
	_ = srv.conns[0].Close()
	srv.mu.Unlock()

	waitForStatus(t, ch, StatusDisconnected)
	waitForStatus(t, ch, StatusConnected)
	waitFor(t, func() bool { return len(srv.envelopes(EventJoinRoom)) == 2 })
}

func TestChannelCloseIdempotent(t *testing.T) {
	srv := newWSServer(t)
	c := NewChannel(srv.wsURL(), bus.NewBus(), nil)
	c.Connect(context.Background())
	c.Close()
	c.Close()

	if err := c.Emit(EventSendMessage, "x"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Emit() after Close error = %v, want ErrNotConnected", err)
	}
}

func waitForStatus(t *testing.T, ch <-chan bus.Event, want Status) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case evt := <-ch:
			if evt.Kind == bus.KindTransportStatus && evt.Payload == want {
				return
			}
		case <-deadline:
			t.Fatalf("timeout waiting for status %v", want)
		}
	}
}
