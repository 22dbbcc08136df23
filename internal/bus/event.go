package bus

import "time"

// Event kinds published on the bus. Subscribers filter by namespace
// prefix, e.g. "transport." matches every inbound channel event.
const (
	// Inbound push events re-published by the transport channel. The
	// suffix after "transport." is the wire event name.
	KindTransportReceive = "transport.receiveMessage"
	KindTransportRead    = "transport.messageRead"
	KindTransportStatus  = "transport.status"

	// Store mutations, consumed by the TUI to redraw.
	KindMessageAppended   = "message.appended"
	KindMessageUpdated    = "message.updated"
	KindMessageSendFailed = "message.send_failed"

	// Conversation lifecycle.
	KindConversationOpened = "conversation.opened"
	KindConversationClosed = "conversation.closed"
	KindHistoryLoaded      = "conversation.history_loaded"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// New builds an event stamped with the current time.
func New(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
