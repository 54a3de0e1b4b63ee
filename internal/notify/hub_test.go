package notify

import "testing"

func TestHubPushAndReceive(t *testing.T) {
	h := NewHub(10, 4)
	ch := h.Register("alice")

	if ok := h.Push("alice", Event{Type: EventMessage, SessionID: "s1"}); !ok {
		t.Fatal("expected push to a registered channel to succeed")
	}

	ev := <-ch
	if ev.Type != EventMessage || ev.SessionID != "s1" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestHubPushToUnregistered(t *testing.T) {
	h := NewHub(10, 4)
	if ok := h.Push("ghost", Event{Type: EventMessage}); ok {
		t.Error("expected push to an unregistered name to report false")
	}
}

func TestHubCapacityEvictsOldest(t *testing.T) {
	h := NewHub(2, 4)
	chA := h.Register("a")
	h.Register("b")
	if h.Len() != 2 {
		t.Fatalf("expected 2 channels, got %d", h.Len())
	}

	// Third registration evicts the oldest ("a").
	h.Register("c")
	if h.Len() != 2 {
		t.Fatalf("expected 2 channels after eviction, got %d", h.Len())
	}

	if _, open := <-chA; open {
		t.Error("expected evicted channel to be closed")
	}
	if ok := h.Push("a", Event{Type: EventMessage}); ok {
		t.Error("expected push to evicted name to report false")
	}
	if ok := h.Push("c", Event{Type: EventMessage}); !ok {
		t.Error("expected push to newest registrant to succeed")
	}
}

func TestHubReregisterClosesOldChannel(t *testing.T) {
	h := NewHub(10, 4)
	old := h.Register("alice")
	fresh := h.Register("alice")

	if _, open := <-old; open {
		t.Error("expected replaced channel to be closed")
	}
	if h.Len() != 1 {
		t.Fatalf("expected 1 channel, got %d", h.Len())
	}

	h.Push("alice", Event{Type: EventConnected})
	ev := <-fresh
	if ev.Type != EventConnected {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestHubFullChannelDropsOldest(t *testing.T) {
	h := NewHub(10, 2)
	ch := h.Register("alice")

	h.Push("alice", Event{SessionID: "1"})
	h.Push("alice", Event{SessionID: "2"})
	// Channel is full; the oldest event is dropped to make room.
	if ok := h.Push("alice", Event{SessionID: "3"}); !ok {
		t.Fatal("expected push to a full channel to succeed by dropping the oldest")
	}

	first := <-ch
	if first.SessionID != "2" {
		t.Errorf("expected oldest event to be dropped, got %q first", first.SessionID)
	}
	second := <-ch
	if second.SessionID != "3" {
		t.Errorf("expected newest event last, got %q", second.SessionID)
	}
}

func TestHubUnregisterIdempotent(t *testing.T) {
	h := NewHub(10, 4)
	ch := h.Register("alice")
	h.Unregister("alice")
	h.Unregister("alice")

	if _, open := <-ch; open {
		t.Error("expected channel to be closed after unregister")
	}
	if h.Len() != 0 {
		t.Errorf("expected 0 channels, got %d", h.Len())
	}
}
