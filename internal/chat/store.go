package chat

import "sync"

// Store is the in-memory ordered message collection for the active
// conversation and the single source of truth for rendering. Visual
// order is append-only: history arrives sorted, later entries are
// appended in arrival order and never re-sorted.
type Store struct {
	mu     sync.RWMutex
	msgs   []Message
	byID   map[string]int
	byTemp map[string]int
}

// NewStore creates an empty message store.
func NewStore() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.msgs = nil
	s.byID = make(map[string]int)
	s.byTemp = make(map[string]int)
}

// Append adds a message at the end of the timeline. A message whose
// server id is already present is refused, which is what suppresses
// duplicates when a buffered push replays over fetched history.
func (s *Store) Append(m Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID != "" {
		if _, dup := s.byID[m.ID]; dup {
			return false
		}
	}
	s.msgs = append(s.msgs, m)
	idx := len(s.msgs) - 1
	if m.ID != "" {
		s.byID[m.ID] = idx
	}
	if m.ClientTempID != "" {
		s.byTemp[m.ClientTempID] = idx
	}
	return true
}

// Replace swaps the whole timeline for a history snapshot.
func (s *Store) Replace(msgs []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	for _, m := range msgs {
		s.msgs = append(s.msgs, m)
		idx := len(s.msgs) - 1
		if m.ID != "" {
			s.byID[m.ID] = idx
		}
		if m.ClientTempID != "" {
			s.byTemp[m.ClientTempID] = idx
		}
	}
}

// ResolveTemp attaches the server id to the optimistic message with the
// given temp id and advances it to Sent. Reports false when the temp id
// is unknown (conversation switched before the write resolved).
func (s *Store) ResolveTemp(tempID, serverID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byTemp[tempID]
	if !ok {
		return false
	}
	s.msgs[idx].ID = serverID
	s.byID[serverID] = idx
	s.msgs[idx].State.Advance(StateSent)
	return true
}

// Advance moves the delivery state of the message with the given server
// id forward. Reports false when the id is unknown or the transition
// would regress.
func (s *Store) Advance(id string, target DeliveryState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[id]
	if !ok {
		return false
	}
	return s.msgs[idx].State.Advance(target)
}

// ContainsID reports whether a message with the given server id exists.
func (s *Store) ContainsID(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[id]
	return ok
}

// Get returns the message with the given server id.
func (s *Store) Get(id string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return Message{}, false
	}
	return s.msgs[idx], true
}

// Snapshot returns a copy of the timeline in visual order.
func (s *Store) Snapshot() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}

// Clear discards the timeline. Called when the conversation closes.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}
