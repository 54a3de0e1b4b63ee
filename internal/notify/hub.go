// Package notify implements the per-user push channel registry used to fan
// out session events (messages, partner joined/left, system notices) to live
// connections. Channels are bounded in two ways: each user's channel holds a
// fixed number of undelivered events (drop-oldest on overflow), and the total
// number of registered channels is capped, with the oldest registration
// evicted to make room (FIFO, not LRU).
package notify

import (
	"log"
	"sync"
)

const (
	// DefaultMaxChannels caps the number of concurrently registered
	// push channels.
	DefaultMaxChannels = 100

	// DefaultChannelDepth is the per-user undelivered-event queue depth.
	DefaultChannelDepth = 32
)

// Event is a single push notification delivered to a live connection.
// Delivery is at-most-once and best-effort: events to users without a
// registered channel are dropped silently.
type Event struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Sound     string      `json:"sound,omitempty"`
}

// Event types pushed through the hub.
const (
	EventConnected = "connected"
	EventMessage   = "private_message"
	EventKeepalive = "keepalive"
)

// Sound tags attached to system notices so the client can pick a cue.
const (
	SoundNotify = "notify"
	SoundLogout = "logout"
)

// subscriber is one registered push channel.
type subscriber struct {
	name string
	ch   chan Event
}

// Hub is the bounded per-user push channel registry. All methods are
// goroutine-safe. Push never blocks, so it is safe to call while holding
// other locks.
type Hub struct {
	mu       sync.Mutex
	capacity int
	depth    int
	subs     map[string]*subscriber
	order    []*subscriber // registration order, oldest first
}

// NewHub creates a hub capped at maxChannels concurrent subscribers, each
// with the given queue depth. Non-positive arguments fall back to defaults.
func NewHub(maxChannels, depth int) *Hub {
	if maxChannels <= 0 {
		maxChannels = DefaultMaxChannels
	}
	if depth <= 0 {
		depth = DefaultChannelDepth
	}
	return &Hub{
		capacity: maxChannels,
		depth:    depth,
		subs:     make(map[string]*subscriber),
	}
}

// Register creates the outbound channel for name and returns its receive
// side. A previous channel for the same name is closed and replaced. If the
// hub is at capacity the oldest-registered channel is evicted; its consumer
// observes the close and must terminate.
func (h *Hub) Register(name string) <-chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.subs[name]; ok {
		h.dropLocked(old)
	}

	for len(h.subs) >= h.capacity && len(h.order) > 0 {
		oldest := h.order[0]
		log.Printf("[notify] channel cap %d reached, evicting oldest subscriber %s", h.capacity, oldest.name)
		h.dropLocked(oldest)
	}

	sub := &subscriber{name: name, ch: make(chan Event, h.depth)}
	h.subs[name] = sub
	h.order = append(h.order, sub)
	return sub.ch
}

// Unregister removes and closes the channel for name. Idempotent.
func (h *Hub) Unregister(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[name]; ok {
		h.dropLocked(sub)
	}
}

// Push enqueues an event to the named channel without blocking. When the
// channel is full the oldest undelivered event is dropped to admit the new
// one. Returns whether delivery was attempted (a channel existed); false
// means the user has no live push connection and the event was discarded.
func (h *Hub) Push(name string, ev Event) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subs[name]
	if !ok {
		return false
	}

	select {
	case sub.ch <- ev:
		return true
	default:
	}

	// Full: drop the oldest queued event and retry once. The second send
	// cannot block because this goroutine holds the only sender path.
	select {
	case <-sub.ch:
	default:
	}
	select {
	case sub.ch <- ev:
	default:
	}
	return true
}

// Len returns the number of registered channels.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// dropLocked closes a subscriber's channel and removes it from both the name
// map and the registration order. Caller holds h.mu.
func (h *Hub) dropLocked(sub *subscriber) {
	if cur, ok := h.subs[sub.name]; ok && cur == sub {
		delete(h.subs, sub.name)
	}
	for i, s := range h.order {
		if s == sub {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	close(sub.ch)
}
