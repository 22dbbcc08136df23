package rest

import (
	"time"

	"github.com/quickchat/qc/internal/chat"
)

// WireMessage is a message as the backend serves it. ClientTempID is
// only present on optimistic copies pushed before the durable write
// resolves; the server never stores it.
type WireMessage struct {
	ID           string    `json:"_id,omitempty"`
	ClientTempID string    `json:"clientTempId,omitempty"`
	SenderID     string    `json:"senderId"`
	ReceiverID   string    `json:"receiverId"`
	MessageText  string    `json:"messageText"`
	CreatedAt    time.Time `json:"createdAt"`
	Seen         bool      `json:"seen"`
	Delivered    bool      `json:"delivered"`
}

// ToMessage converts a wire message into the domain model, tagging the
// origin by comparing the sender against the local identity.
func (w WireMessage) ToMessage(localID string) chat.Message {
	origin := chat.OriginRemote
	if w.SenderID == localID {
		origin = chat.OriginSelf
	}
	return chat.Message{
		ID:           w.ID,
		ClientTempID: w.ClientTempID,
		Text:         w.MessageText,
		SenderID:     w.SenderID,
		ReceiverID:   w.ReceiverID,
		Timestamp:    w.CreatedAt,
		State:        chat.StateFromFlags(w.Seen, w.Delivered),
		Origin:       origin,
	}
}

// FromMessage builds the wire form of a locally created message for
// the push path.
func FromMessage(m chat.Message) WireMessage {
	return WireMessage{
		ID:           m.ID,
		ClientTempID: m.ClientTempID,
		SenderID:     m.SenderID,
		ReceiverID:   m.ReceiverID,
		MessageText:  m.Text,
		CreatedAt:    m.Timestamp,
	}
}

// WireUser is a chat participant as served by /api/users.
type WireUser struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

// ToIdentity converts a wire user into the domain model.
func (u WireUser) ToIdentity() chat.Identity {
	return chat.Identity{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		AvatarURL: u.Avatar,
	}
}
