package events

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultSubscriberBuffer is the per-subscriber queue length.
const DefaultSubscriberBuffer = 16

// Hub fans changes out to in-process subscribers. A subscriber whose buffer
// is full misses the change; watchers re-read the whole list on the next one.
type Hub struct {
	mu      sync.RWMutex
	subs    map[int]chan Change
	nextID  int
	buffer  int
	closed  bool
	dropped atomic.Int64
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Hub{
		subs:   make(map[int]chan Change),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber. The returned cancel function removes it
// and closes the channel; it is safe to call more than once. After Close the
// returned channel is already closed.
func (h *Hub) Subscribe() (<-chan Change, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Change, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Close closes every subscriber channel and refuses new subscribers, which
// ends open watch streams.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// Publish never blocks on slow subscribers.
func (h *Hub) Publish(_ context.Context, change Change) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs {
		select {
		case ch <- change:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped because a buffer was full.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
