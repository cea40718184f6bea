package hub

import "testing"

func TestBroadcastReachesAllInOrder(t *testing.T) {
	h := New[int](4)

	_, ch1 := h.Subscribe()
	_, ch2 := h.Subscribe()
	_, ch3 := h.Subscribe()

	h.Broadcast(7)
	h.Broadcast(8)

	for i, ch := range []<-chan int{ch1, ch2, ch3} {
		if got := <-ch; got != 7 {
			t.Errorf("subscriber %d: first message = %d, want 7", i+1, got)
		}
		if got := <-ch; got != 8 {
			t.Errorf("subscriber %d: second message = %d, want 8", i+1, got)
		}
	}
}

func TestRespondTargetsOneSubscriber(t *testing.T) {
	h := New[string](4)

	id1, ch1 := h.Subscribe()
	_, ch2 := h.Subscribe()

	h.Respond(id1, "direct")

	if got := <-ch1; got != "direct" {
		t.Errorf("direct reply = %q, want %q", got, "direct")
	}
	select {
	case msg := <-ch2:
		t.Errorf("unexpected message for other subscriber: %q", msg)
	default:
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := New[int](4)

	id, ch := h.Subscribe()
	h.Unsubscribe(id)

	// Must be a silent no-op, not a panic or error.
	h.Broadcast(1)
	h.Respond(id, 2)

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after Unsubscribe")
	}
	if h.Count() != 0 {
		t.Errorf("Count() = %d, want 0", h.Count())
	}

	// Unsubscribing twice is harmless.
	h.Unsubscribe(id)
}

func TestRespondUnknownIDIsNoOp(t *testing.T) {
	h := New[int](4)
	h.Respond(SubscriberID(42), 1)
}

func TestSlowSubscriberMissesInsteadOfBlocking(t *testing.T) {
	h := New[int](1)
	_, ch := h.Subscribe()

	h.Broadcast(1)
	h.Broadcast(2) // buffer full, dropped

	if got := <-ch; got != 1 {
		t.Errorf("first message = %d, want 1", got)
	}
	select {
	case msg := <-ch:
		t.Errorf("unexpected buffered message %d", msg)
	default:
	}
}

func TestClose(t *testing.T) {
	h := New[int](4)
	_, ch := h.Subscribe()

	h.Close()

	if _, ok := <-ch; ok {
		t.Error("expected subscriber channel to be closed")
	}

	// Deliveries and late subscriptions after Close must not panic.
	h.Broadcast(1)
	_, late := h.Subscribe()
	if _, ok := <-late; ok {
		t.Error("expected late subscription channel to be closed")
	}
}
