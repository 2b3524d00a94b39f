package api

import (
	"sync"

	"github.com/talgya/particle-worker/internal/worker"
)

// Hub fans the worker's result stream out to HTTP clients and remembers the
// latest result. Slow subscribers lose ticks but never a phase switch, and
// the worker is never blocked.
type Hub struct {
	mu      sync.RWMutex
	latest  *worker.Result
	subs    map[int]chan worker.Result
	nextID  int
	dropped uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan worker.Result)}
}

// Publish records r as the latest result and offers it to every subscriber.
// Results are treated as immutable once published. A phase switch is not
// dropped on a full buffer: the subscriber's oldest queued frame is evicted
// to make room for it.
func (h *Hub) Publish(r worker.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = &r
	phase := r.PhaseSwitch != nil && *r.PhaseSwitch
	for _, ch := range h.subs {
		select {
		case ch <- r:
			continue
		default:
		}
		if !phase {
			h.dropped++
			continue
		}
		h.evictFor(ch, r)
	}
}

// evictFor drops the oldest buffered frame of ch and enqueues r. Only
// Publish sends, under mu, so a freed slot stays free. Called with mu held.
func (h *Hub) evictFor(ch chan worker.Result, r worker.Result) {
	select {
	case <-ch:
		h.dropped++
	default:
		// The reader drained the buffer in the meantime.
	}
	select {
	case ch <- r:
	default:
		// Zero-capacity subscriber with no waiting reader.
		h.dropped++
	}
}

// Consume publishes every result from the worker until the channel closes.
// Observers run on the consuming goroutine, before the result is published.
func (h *Hub) Consume(results <-chan worker.Result, observers ...func(worker.Result)) {
	for r := range results {
		for _, obs := range observers {
			obs(r)
		}
		h.Publish(r)
	}
}

// Latest returns the most recent result.
func (h *Hub) Latest() (worker.Result, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.latest == nil {
		return worker.Result{}, false
	}
	return *h.latest, true
}

// Subscribe registers a buffered subscriber.
func (h *Hub) Subscribe(buffer int) (int, <-chan worker.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan worker.Result, buffer)
	h.subs[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber.
func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many frames were skipped for slow subscribers.
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}
