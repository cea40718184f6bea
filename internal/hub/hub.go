// Package hub provides a generic subscription/broadcast fabric.
//
// A Hub multiplexes one shared service instance among many consumers. Each
// subscriber gets its own buffered channel; the owning service can deliver a
// message to exactly one subscriber (Respond) or to all of them in
// subscription order (Broadcast). Delivering to a subscriber that has already
// unsubscribed is a no-op, never an error.
package hub

import "sync"

// SubscriberID identifies one registered consumer of a Hub.
type SubscriberID uint64

// DefaultBuffer is the per-subscriber channel capacity used when New is given
// a non-positive buffer size.
const DefaultBuffer = 16

type subscriber[T any] struct {
	id SubscriberID
	ch chan T
}

// Hub fans messages out to registered subscribers. It is safe for concurrent
// use. A subscriber that does not drain its channel misses messages rather
// than blocking the publisher.
type Hub[T any] struct {
	mu     sync.Mutex
	subs   []subscriber[T]
	nextID SubscriberID
	buffer int
	closed bool
}

// New creates a Hub whose subscriber channels hold up to buffer messages.
func New[T any](buffer int) *Hub[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub[T]{buffer: buffer}
}

// Subscribe registers a new consumer and returns its id together with the
// channel its messages arrive on. The channel is closed on Unsubscribe.
func (h *Hub[T]) Subscribe() (SubscriberID, <-chan T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := subscriber[T]{id: h.nextID, ch: make(chan T, h.buffer)}
	if h.closed {
		// Late subscribers on a closed hub get an already-closed channel.
		close(sub.ch)
		return sub.id, sub.ch
	}
	h.subs = append(h.subs, sub)
	return sub.id, sub.ch
}

// Unsubscribe removes a consumer and closes its channel. Unknown ids are
// ignored, so unsubscribing twice is harmless.
func (h *Hub[T]) Unsubscribe(id SubscriberID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, sub := range h.subs {
		if sub.id == id {
			h.subs = append(h.subs[:i], h.subs[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

// Respond delivers msg to exactly the subscriber with the given id. If the
// subscriber is gone or its channel is full, the message is dropped.
func (h *Hub[T]) Respond(id SubscriberID, msg T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		if sub.id == id {
			deliver(sub.ch, msg)
			return
		}
	}
}

// Broadcast delivers msg to every current subscriber in subscription order.
func (h *Hub[T]) Broadcast(msg T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		deliver(sub.ch, msg)
	}
}

// Count reports the number of current subscribers.
func (h *Hub[T]) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close closes all subscriber channels and rejects future deliveries.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, sub := range h.subs {
		close(sub.ch)
	}
	h.subs = nil
}

// deliver sends without blocking; a saturated subscriber misses the message.
func deliver[T any](ch chan T, msg T) {
	select {
	case ch <- msg:
	default:
	}
}
