// Package hub implements the process-wide broadcast channel between the
// webhook receiver and connected viewers.
package hub

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/givddul/issuerelay/internal/event"
)

// Publisher is the write side of the hub. The webhook receiver publishes
// through this interface so tests can substitute a fake.
type Publisher interface {
	Publish(ev event.Event)
}

// subscriberBuffer is the per-viewer channel depth. A viewer that falls this
// far behind starts losing events; delivery is fire-and-forget.
const subscriberBuffer = 16

// Hub fans events out to every current subscriber. There is no backlog:
// a viewer connecting after a publish never sees the missed event.
type Hub struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]chan event.Event
	closed bool
}

// New creates an empty hub
func New() *Hub {
	return &Hub{
		subs: make(map[uuid.UUID]chan event.Event),
	}
}

// Publish delivers ev to all current subscribers. It never blocks: events
// are dropped for subscribers whose buffer is full.
func (h *Hub) Publish(ev event.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			log.Warn().Str("subscriber", id.String()).Str("event", string(ev.Name)).Msg("subscriber buffer full, dropping event")
		}
	}
}

// Subscribe registers a new viewer and returns its id and event channel.
// The channel is closed on Unsubscribe or when the hub shuts down.
func (h *Hub) Subscribe() (uuid.UUID, <-chan event.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.New()
	ch := make(chan event.Event, subscriberBuffer)
	if h.closed {
		close(ch)
		return id, ch
	}

	h.subs[id] = ch
	log.Info().Str("subscriber", id.String()).Int("subscribers", len(h.subs)).Msg("client connected")
	return id, ch
}

// Unsubscribe removes a viewer and closes its channel
func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(ch)
	log.Info().Str("subscriber", id.String()).Int("subscribers", len(h.subs)).Msg("client disconnected")
}

// Close shuts the hub down, closing every subscriber channel. Publish and
// Subscribe become no-ops afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
