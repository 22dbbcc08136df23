package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	b.Publish(New(KindMessageAppended, "payload"))

	select {
	case evt := <-ch:
		if evt.Kind != KindMessageAppended {
			t.Errorf("got kind %q, want %q", evt.Kind, KindMessageAppended)
		}
		if evt.Payload != "payload" {
			t.Errorf("payload = %v, want payload", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPrefixFiltering(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe("transport.", 10)
	defer unsub()

	b.Publish(New(KindMessageAppended, nil))
	b.Publish(New(KindTransportReceive, nil))

	select {
	case evt := <-ch:
		if evt.Kind != KindTransportReceive {
			t.Errorf("got kind %q, want %q", evt.Kind, KindTransportReceive)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// The message.* event must not have been delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe("message.", 10)
	unsub()

	b.Publish(New(KindMessageAppended, nil))

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe("message.", 1)
	defer unsub()

	b.Publish(New(KindMessageAppended, 1))
	// Buffer is full, this one is dropped.
	b.Publish(New(KindMessageAppended, 2))

	evt := <-ch
	if evt.Payload != 1 {
		t.Errorf("payload = %v, want 1", evt.Payload)
	}
	select {
	case evt := <-ch:
		t.Errorf("unexpected second event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}
