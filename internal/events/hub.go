// Package events fans alarm change notifications out to connected clients
// and, optionally, to other instances through redis pub/sub.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event kinds.
const (
	KindToggled    = "toggled"
	KindCreated    = "created"
	KindUpdated    = "updated"
	KindSimulation = "simulation"
)

// Event tells subscribers that something changed and they should re-fetch.
type Event struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	AlarmID string    `json:"alarmId,omitempty"`
	Status  string    `json:"status,omitempty"`
	At      time.Time `json:"at"`
	Origin  string    `json:"origin,omitempty"`
}

// NewEvent stamps a new event with a random id.
func NewEvent(kind, alarmID, status string, at time.Time) Event {
	return Event{
		ID:      uuid.NewString(),
		Kind:    kind,
		AlarmID: alarmID,
		Status:  status,
		At:      at.UTC(),
	}
}

// Relay forwards locally published events to other instances.
type Relay interface {
	Publish(ctx context.Context, ev Event) error
}

// Hub fans out events to subscriber channels. Slow subscribers miss events
// rather than block publishers.
type Hub struct {
	mu      sync.Mutex
	clients map[chan Event]struct{}
	relay   Relay
	onError func(error)
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[chan Event]struct{})}
}

// SetRelay attaches a relay. onError is called when forwarding fails.
func (h *Hub) SetRelay(r Relay, onError func(error)) {
	h.mu.Lock()
	h.relay = r
	h.onError = onError
	h.mu.Unlock()
}

// Subscribe registers a new client channel.
func (h *Hub) Subscribe() chan Event {
	if h == nil {
		return nil
	}
	ch := make(chan Event, 16)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a client channel.
func (h *Hub) Unsubscribe(ch chan Event) {
	if h == nil || ch == nil {
		return
	}
	h.mu.Lock()
	_, ok := h.clients[ch]
	delete(h.clients, ch)
	h.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish delivers ev locally and forwards it through the relay, if any.
func (h *Hub) Publish(ctx context.Context, ev Event) {
	if h == nil {
		return
	}
	h.Deliver(ev)

	h.mu.Lock()
	relay, onError := h.relay, h.onError
	h.mu.Unlock()
	if relay == nil {
		return
	}
	if err := relay.Publish(ctx, ev); err != nil && onError != nil {
		onError(err)
	}
}

// Deliver sends ev to local subscribers only.
func (h *Hub) Deliver(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
		}
	}
}
