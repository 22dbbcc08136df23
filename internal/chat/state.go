package chat

// DeliveryState tracks how far a message has travelled:
// Pending -> Sent -> Delivered -> Seen. States only move forward.
type DeliveryState int

const (
	// StatePending: created locally, durable write not confirmed yet.
	StatePending DeliveryState = iota
	// StateSent: persisted by the server, id assigned.
	StateSent
	// StateDelivered: reached the peer's client.
	StateDelivered
	// StateSeen: read by the peer (or, for remote messages, by us).
	StateSeen
)

func (s DeliveryState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSent:
		return "sent"
	case StateDelivered:
		return "delivered"
	case StateSeen:
		return "seen"
	default:
		return "unknown"
	}
}

// Advance moves s forward to target and reports whether anything
// changed. Regressions are refused, which makes duplicate read
// receipts and replayed events harmless.
func (s *DeliveryState) Advance(target DeliveryState) bool {
	if target <= *s {
		return false
	}
	*s = target
	return true
}

// StateFromFlags derives the delivery state of a wire message from its
// seen/delivered flags. A message materialized from history or push has
// at minimum reached the server, so the floor is Sent.
func StateFromFlags(seen, delivered bool) DeliveryState {
	switch {
	case seen:
		return StateSeen
	case delivered:
		return StateDelivered
	default:
		return StateSent
	}
}
