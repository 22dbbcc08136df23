package cache

import (
	"time"

	"github.com/quickchat/qc/internal/chat"
)

// UpsertMessage writes through a confirmed message (idempotent on
// conversation key + server id). Messages without a server id are not
// cached; an unconfirmed optimistic message has nothing stable to key on.
func (db *DB) UpsertMessage(conversationKey string, m chat.Message) error {
	if m.ID == "" {
		return nil
	}
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (conversation_key, msg_id, sender_id, receiver_id, body, state, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_key, msg_id) DO UPDATE SET
			state = excluded.state`,
		conversationKey, m.ID, m.SenderID, m.ReceiverID, m.Text, m.State.String(), m.Timestamp.UnixMilli(), now)
	return err
}

// ListConversation returns cached messages for a conversation in
// chronological order, with origin derived against localID.
func (db *DB) ListConversation(conversationKey, localID string) ([]chat.Message, error) {
	rows, err := db.Query(`
		SELECT msg_id, sender_id, receiver_id, body, state, timestamp
		FROM messages
		WHERE conversation_key = ?
		ORDER BY timestamp ASC, id ASC`, conversationKey)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []chat.Message
	for rows.Next() {
		var (
			m     chat.Message
			state string
			ts    int64
		)
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &state, &ts); err != nil {
			return nil, err
		}
		m.State = parseState(state)
		m.Timestamp = time.UnixMilli(ts)
		m.Origin = chat.OriginRemote
		if m.SenderID == localID {
			m.Origin = chat.OriginSelf
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// UpsertIdentity caches a roster entry.
func (db *DB) UpsertIdentity(id chat.Identity) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO identities (id, name, email, avatar_url, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			avatar_url = excluded.avatar_url,
			updated_at = excluded.updated_at`,
		id.ID, id.Name, id.Email, id.AvatarURL, now)
	return err
}

// ListIdentities returns all cached roster entries sorted by name.
func (db *DB) ListIdentities() ([]chat.Identity, error) {
	rows, err := db.Query(`SELECT id, name, email, avatar_url FROM identities ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []chat.Identity
	for rows.Next() {
		var id chat.Identity
		if err := rows.Scan(&id.ID, &id.Name, &id.Email, &id.AvatarURL); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func parseState(s string) chat.DeliveryState {
	switch s {
	case "seen":
		return chat.StateSeen
	case "delivered":
		return chat.StateDelivered
	case "sent":
		return chat.StateSent
	default:
		return chat.StatePending
	}
}
