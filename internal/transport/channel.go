package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quickchat/qc/internal/bus"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by Emit while the socket is down.
// Outbound events are not queued; callers surface the failure and the
// user retries once the channel is back.
var ErrNotConnected = errors.New("transport: not connected")

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Channel is the process-wide duplex connection to the chat server.
// It multiplexes named events over one websocket, owns reconnection,
// and re-publishes every inbound event on the bus under "transport.".
// There is exactly one Channel per process; conversations join and
// leave rooms on it, they never dial their own.
type Channel struct {
	url    string
	bus    *bus.Bus
	logger *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	room   string
	closed bool
	cancel context.CancelFunc
	done   chan struct{}
}

// NewChannel creates a channel for the given websocket URL. No network
// activity happens until Connect.
func NewChannel(url string, b *bus.Bus, logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{url: url, bus: b, logger: logger}
}

// Connect starts the dial/read/reconnect loop in the background.
func (c *Channel) Connect(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.run(ctx)
	}()
}

// Close tears the connection down and stops reconnecting. Idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cancel := c.cancel
	conn := c.conn
	done := c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if done != nil {
		<-done
	}
}

// JoinRoom registers the identity's room and emits joinRoom now if
// connected. The room is replayed on every reconnect so the server
// keeps targeting this connection after a drop.
func (c *Channel) JoinRoom(identityID string) {
	c.mu.Lock()
	c.room = identityID
	c.mu.Unlock()

	if err := c.Emit(EventJoinRoom, identityID); err != nil {
		// Fire-and-forget: the connect loop replays the room later.
		c.logger.Debug("join deferred until connect", zap.String("identity", identityID))
	}
}

// Emit marshals payload and writes it as a named event. Returns
// ErrNotConnected while the socket is down.
func (c *Channel) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(Envelope{Event: event, Data: data}); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

func (c *Channel) run(ctx context.Context) {
	backoff := initialBackoff
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("dial failed, retrying",
				zap.String("url", c.url),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = initialBackoff

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		room := c.room
		c.mu.Unlock()

		c.logger.Info("transport connected", zap.String("url", c.url))
		c.bus.Publish(bus.New(bus.KindTransportStatus, StatusConnected))
		if room != "" {
			if err := c.Emit(EventJoinRoom, room); err != nil {
				c.logger.Warn("rejoin failed", zap.Error(err))
			}
		}

		c.readLoop(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		c.bus.Publish(bus.New(bus.KindTransportStatus, StatusDisconnected))

		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("transport disconnected, reconnecting")
	}
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("read error", zap.Error(err))
			}
			_ = conn.Close()
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("malformed envelope", zap.Error(err))
			continue
		}
		c.bus.Publish(bus.New("transport."+env.Event, env.Data))
	}
}
