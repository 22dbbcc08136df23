package transport

import "encoding/json"

// Wire event names, matching the backend's socket protocol.
const (
	EventJoinRoom    = "joinRoom"
	EventSendMessage = "sendMessage"
	EventMarkRead    = "markRead"

	EventReceiveMessage = "receiveMessage"
	EventMessageRead    = "messageRead"
)

// Envelope frames every event on the socket: a name and a JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// SendPayload is the outbound sendMessage body: the persisted (or
// optimistic) message plus explicit routing ids so the server can
// target the receiver's room without parsing the message.
type SendPayload struct {
	SenderID   string          `json:"senderId"`
	ReceiverID string          `json:"receiverId"`
	Message    json.RawMessage `json:"message"`
}

// Status is published on the bus as transport.status payload.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)
