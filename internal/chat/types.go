package chat

import (
	"strings"
	"time"
)

// Identity is a chat participant as served by the backend user API.
// The engine never mutates identities; they are resolved once per
// conversation by the auth/roster layer.
type Identity struct {
	ID        string
	Name      string
	Email     string
	AvatarURL string
}

// Origin tells which side of the conversation created a message.
type Origin int

const (
	// OriginSelf marks messages created by the local user.
	OriginSelf Origin = iota
	// OriginRemote marks messages received from the peer.
	OriginRemote
)

// Message is a single chat message in the active conversation.
type Message struct {
	// ID is the server-assigned identifier. Empty until the durable
	// write completes for locally created messages.
	ID string
	// ClientTempID correlates an optimistic message with its
	// server-confirmed counterpart.
	ClientTempID string
	Text         string
	SenderID     string
	ReceiverID   string
	// Timestamp is the client clock for optimistic messages and the
	// server clock once confirmed. Clock skew is not reconciled.
	Timestamp time.Time
	State     DeliveryState
	Origin    Origin
}

// Conversation is the unordered identity pair of a one-to-one chat.
type Conversation struct {
	Local  Identity
	Remote Identity
}

// Key returns a stable key for the identity pair, independent of which
// side is local.
func (c Conversation) Key() string {
	a, b := c.Local.ID, c.Remote.ID
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + ":" + b
}
