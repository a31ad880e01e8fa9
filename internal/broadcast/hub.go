// Package broadcast is the real-time room hub. Each document id is a room;
// subscribers join rooms and receive every event published to them while
// they are connected. There is no replay.
package broadcast

import (
	"sync"

	"github.com/google/uuid"

	"github.com/kalambet/docmind/internal/metrics"
)

// SendBuffer is the number of undelivered messages a subscriber may hold
// before further messages to it are dropped.
const SendBuffer = 64

// EventDocumentUpdated is the event name for document deltas.
const EventDocumentUpdated = "documentUpdated"

// Message is one event delivered to a subscriber.
type Message struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// Subscription is one connected client.
type Subscription struct {
	ID string

	send  chan Message
	rooms map[string]struct{} // guarded by Hub.mu
}

// C returns the channel messages are delivered on. It is closed by
// Hub.Unsubscribe.
func (s *Subscription) C() <-chan Message { return s.send }

// Hub routes published events to the subscribers of a room.
//
// Hub is safe for concurrent use.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Subscription]struct{}
	subs  map[string]*Subscription
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Subscription]struct{}),
		subs:  make(map[string]*Subscription),
	}
}

// Subscribe registers a new subscriber that is in no rooms yet.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		ID:    uuid.NewString(),
		send:  make(chan Message, SendBuffer),
		rooms: make(map[string]struct{}),
	}
	h.mu.Lock()
	h.subs[sub.ID] = sub
	h.mu.Unlock()
	metrics.RealtimeSubscribers.Inc()
	return sub
}

// Unsubscribe removes sub from every room and closes its channel. Calling it
// more than once is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.ID]; !ok {
		return
	}
	for room := range sub.rooms {
		h.removeLocked(room, sub)
	}
	delete(h.subs, sub.ID)
	close(sub.send)
	metrics.RealtimeSubscribers.Dec()
}

// Join adds sub to room. Joining a room twice has no effect.
func (h *Hub) Join(sub *Subscription, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.ID]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Subscription]struct{})
		h.rooms[room] = members
	}
	members[sub] = struct{}{}
	sub.rooms[room] = struct{}{}
}

// Leave removes sub from room.
func (h *Hub) Leave(sub *Subscription, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(room, sub)
}

func (h *Hub) removeLocked(room string, sub *Subscription) {
	delete(sub.rooms, room)
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, sub)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Publish delivers a documentUpdated event carrying data to every subscriber
// of room. It never blocks: a subscriber whose buffer is full misses the
// message. Publishing to an empty room is a no-op.
func (h *Hub) Publish(room string, data map[string]any) {
	msg := Message{Event: EventDocumentUpdated, Data: data}

	// Sends happen under the read lock so Unsubscribe cannot close a channel
	// mid-send.
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.rooms[room] {
		select {
		case sub.send <- msg:
			metrics.BroadcastMessages.WithLabelValues(metrics.OutcomeDelivered).Inc()
		default:
			metrics.BroadcastMessages.WithLabelValues(metrics.OutcomeDropped).Inc()
		}
	}
}

// RoomSize returns the number of subscribers in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
