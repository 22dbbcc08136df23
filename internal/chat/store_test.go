package chat

import (
	"testing"
	"time"
)

func msg(id, tempID, text string, origin Origin) Message {
	return Message{
		ID:           id,
		ClientTempID: tempID,
		Text:         text,
		SenderID:     "u1",
		ReceiverID:   "u2",
		Timestamp:    time.Now(),
		Origin:       origin,
	}
}

func TestStoreAppendPreservesArrivalOrder(t *testing.T) {
	s := NewStore()
	s.Append(msg("m1", "", "one", OriginRemote))
	s.Append(msg("m2", "", "two", OriginRemote))
	s.Append(msg("m3", "", "three", OriginSelf))

	snap := s.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("len = %d, want 3", len(snap))
	}
	for i, want := range []string{"one", "two", "three"} {
		if snap[i].Text != want {
			t.Errorf("snap[%d].Text = %q, want %q", i, snap[i].Text, want)
		}
	}
}

func TestStoreAppendRejectsDuplicateID(t *testing.T) {
	s := NewStore()
	if !s.Append(msg("m1", "", "one", OriginRemote)) {
		t.Fatal("first Append = false, want true")
	}
	if s.Append(msg("m1", "", "one again", OriginRemote)) {
		t.Error("duplicate Append = true, want false")
	}
	if s.Len() != 1 {
		t.Errorf("len = %d, want 1", s.Len())
	}
}

func TestStoreReplaceDiscardsPrevious(t *testing.T) {
	s := NewStore()
	s.Append(msg("stale", "", "from cache", OriginRemote))

	s.Replace([]Message{
		msg("m1", "", "history one", OriginRemote),
		msg("m2", "", "history two", OriginSelf),
	})

	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}
	if s.ContainsID("stale") {
		t.Error("stale message survived Replace")
	}
	if !s.ContainsID("m1") || !s.ContainsID("m2") {
		t.Error("history messages missing after Replace")
	}
}

func TestStoreResolveTemp(t *testing.T) {
	s := NewStore()
	m := msg("", "tmp-1", "hi", OriginSelf)
	m.State = StatePending
	s.Append(m)

	if !s.ResolveTemp("tmp-1", "m1") {
		t.Fatal("ResolveTemp = false, want true")
	}

	got, ok := s.Get("m1")
	if !ok {
		t.Fatal("message not findable by server id after resolve")
	}
	if got.State != StateSent {
		t.Errorf("state = %v, want Sent", got.State)
	}
	if got.ClientTempID != "tmp-1" {
		t.Errorf("ClientTempID = %q, want tmp-1", got.ClientTempID)
	}
}

func TestStoreResolveTempUnknown(t *testing.T) {
	s := NewStore()
	if s.ResolveTemp("nope", "m1") {
		t.Error("ResolveTemp for unknown temp id = true, want false")
	}
}

func TestStoreAdvance(t *testing.T) {
	s := NewStore()
	m := msg("m1", "", "hi", OriginSelf)
	m.State = StateSent
	s.Append(m)

	if !s.Advance("m1", StateSeen) {
		t.Fatal("Advance = false, want true")
	}
	// Second receipt for the same message is a no-op, not an error.
	if s.Advance("m1", StateSeen) {
		t.Error("repeated Advance = true, want false")
	}
	got, _ := s.Get("m1")
	if got.State != StateSeen {
		t.Errorf("state = %v, want Seen", got.State)
	}
}

func TestStoreAdvanceUnknownID(t *testing.T) {
	s := NewStore()
	if s.Advance("ghost", StateSeen) {
		t.Error("Advance for unknown id = true, want false")
	}
}

func TestStoreClear(t *testing.T) {
	s := NewStore()
	s.Append(msg("m1", "", "hi", OriginRemote))
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("len = %d, want 0 after Clear", s.Len())
	}
	// Clearing twice is a no-op.
	s.Clear()
	if s.ContainsID("m1") {
		t.Error("id index survived Clear")
	}
}

func TestConversationKeyUnordered(t *testing.T) {
	a := Conversation{Local: Identity{ID: "u1"}, Remote: Identity{ID: "u2"}}
	b := Conversation{Local: Identity{ID: "u2"}, Remote: Identity{ID: "u1"}}
	if a.Key() != b.Key() {
		t.Errorf("Key mismatch: %q vs %q", a.Key(), b.Key())
	}
}
