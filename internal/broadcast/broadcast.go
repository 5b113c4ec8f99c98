// Package broadcast fans session events out to every connected client.
// Each session has its own room of subscribers; transports plug in by
// implementing Subscriber over their own write path.
package broadcast

import (
	"encoding/json"
	"log"
	"sync"
)

// Event is one named payload delivered to a session's subscribers. Data is
// the JSON-encoded payload, serialized once per broadcast.
type Event struct {
	Name string
	Data []byte
}

// Subscriber is one connected client sink. TrySend must not block
// indefinitely; a returned error marks the subscriber for pruning.
type Subscriber interface {
	TrySend(event Event) error
	Closed() bool
}

// Hub routes events to per-session subscriber rooms.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[Subscriber]struct{}
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[Subscriber]struct{})}
}

// Subscribe registers a sink for one session and returns its unsubscribe
// function. Unsubscribing twice is harmless.
func (h *Hub) Subscribe(sessionID string, subscriber Subscriber) func() {
	h.mu.Lock()
	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[Subscriber]struct{})
		h.rooms[sessionID] = room
	}
	room[subscriber] = struct{}{}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if room, ok := h.rooms[sessionID]; ok {
			delete(room, subscriber)
			if len(room) == 0 {
				delete(h.rooms, sessionID)
			}
		}
	}
}

// SubscriberCount reports how many sinks a session currently has.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[sessionID])
}

// Broadcast serializes the payload once and delivers it to every live
// subscriber of the session. A payload that cannot be serialized degrades
// to an empty JSON object so the event itself still goes out. Subscribers
// that are closed or fail the send are dropped from the room.
func (h *Hub) Broadcast(sessionID, name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("broadcast payload marshal failed: session=%s event=%s err=%v", sessionID, name, err)
		data = []byte("{}")
	}
	event := Event{Name: name, Data: data}

	h.mu.Lock()
	room := h.rooms[sessionID]
	subscribers := make([]Subscriber, 0, len(room))
	for subscriber := range room {
		subscribers = append(subscribers, subscriber)
	}
	h.mu.Unlock()

	var dead []Subscriber
	for _, subscriber := range subscribers {
		if subscriber.Closed() {
			dead = append(dead, subscriber)
			continue
		}
		if err := subscriber.TrySend(event); err != nil {
			dead = append(dead, subscriber)
		}
	}
	if len(dead) == 0 {
		return
	}

	h.mu.Lock()
	if room, ok := h.rooms[sessionID]; ok {
		for _, subscriber := range dead {
			delete(room, subscriber)
		}
		if len(room) == 0 {
			delete(h.rooms, sessionID)
		}
	}
	h.mu.Unlock()
}
