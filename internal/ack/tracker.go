// Package ack coordinates read acknowledgements: reporting remote
// messages as read, and applying the peer's read receipts to our own
// sent messages.
package ack

import (
	"context"

	"github.com/quickchat/qc/internal/bus"
	"github.com/quickchat/qc/internal/chat"
	"github.com/quickchat/qc/internal/transport"
	"go.uber.org/zap"
)

// ReadReporter is the durable mark-read call on the backend.
type ReadReporter interface {
	MarkRead(ctx context.Context, messageID string) error
}

// Emitter is the push path for read receipts.
type Emitter interface {
	Emit(event string, payload any) error
}

// Tracker observes messages in the active conversation and drives the
// Delivered -> Seen half of the state machine on both sides.
type Tracker struct {
	store   *chat.Store
	rest    ReadReporter
	channel Emitter
	bus     *bus.Bus
	logger  *zap.Logger
}

// NewTracker creates a tracker over the shared store.
func NewTracker(store *chat.Store, rest ReadReporter, channel Emitter, b *bus.Bus, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{store: store, rest: rest, channel: channel, bus: b, logger: logger}
}

// AckRemote reports an appended remote message as read: the
// conversation is open, so the message is visible the moment it lands.
// Durable PUT first, then the push receipt to the sender, then the
// local state. Messages without a server id cannot be acked; they are
// left at Delivered.
func (t *Tracker) AckRemote(ctx context.Context, m chat.Message) {
	if m.Origin != chat.OriginRemote || m.ID == "" {
		return
	}
	if m.State >= chat.StateSeen {
		return
	}

	if err := t.rest.MarkRead(ctx, m.ID); err != nil {
		t.logger.Warn("mark read failed", zap.String("msg_id", m.ID), zap.Error(err))
		return
	}
	if err := t.channel.Emit(transport.EventMarkRead, m.ID); err != nil {
		// The durable write landed; the sender still learns about it
		// from history next time. Not worth failing over.
		t.logger.Warn("read receipt emit failed", zap.String("msg_id", m.ID), zap.Error(err))
	}
	if t.store.Advance(m.ID, chat.StateSeen) {
		t.bus.Publish(bus.New(bus.KindMessageUpdated, m.ID))
	}
}

// HandleReadReceipt applies an inbound messageRead event to one of our
// sent messages. Unknown ids are stale events from a closed
// conversation and are ignored; repeated receipts no-op.
func (t *Tracker) HandleReadReceipt(messageID string) {
	if messageID == "" {
		return
	}
	if t.store.Advance(messageID, chat.StateSeen) {
		t.bus.Publish(bus.New(bus.KindMessageUpdated, messageID))
	}
}
