package hub

import (
	"log"
	"sync"
)

// Conn is the narrow surface the hub needs from a live connection.
// The WebSocket handler supplies an implementation whose WriteJSON is
// safe for concurrent use.
type Conn interface {
	WriteJSON(v any) error
}

// Delivery reports what happened to one push attempt. It is consumed
// only for cleanup decisions; a push never fails the action that
// triggered it.
type Delivery int

const (
	// Delivered means the subscriber accepted the event.
	Delivered Delivery = iota
	// NoSubscriber means nobody was listening; the event is dropped.
	NoSubscriber
	// Dropped means the write failed and the subscriber was pruned.
	Dropped
)

// Hub owns the sessionID -> live connection relation. At most one
// subscriber per session; the last join wins.
type Hub struct {
	mu   sync.Mutex
	subs map[string]Conn
}

// New bootstraps an empty hub.
func New() *Hub {
	return &Hub{subs: make(map[string]Conn)}
}

// Subscribe registers conn as the sole subscriber for sessionID,
// silently replacing any previous one.
func (h *Hub) Subscribe(sessionID string, conn Conn) {
	h.mu.Lock()
	h.subs[sessionID] = conn
	h.mu.Unlock()
}

// Unsubscribe removes every mapping currently held by conn. Identity
// is checked so a stale connection cannot evict the one that
// replaced it. Idempotent.
func (h *Hub) Unsubscribe(conn Conn) {
	h.mu.Lock()
	for id, c := range h.subs {
		if c == conn {
			delete(h.subs, id)
		}
	}
	h.mu.Unlock()
}

// Push delivers event to the session's subscriber, if any. A failed
// write prunes the subscriber immediately.
func (h *Hub) Push(sessionID string, event any) Delivery {
	h.mu.Lock()
	conn, ok := h.subs[sessionID]
	h.mu.Unlock()
	if !ok {
		return NoSubscriber
	}

	if err := conn.WriteJSON(event); err != nil {
		log.Printf("[hub] push to session %s failed, pruning subscriber: %v", sessionID, err)
		h.mu.Lock()
		if cur, ok := h.subs[sessionID]; ok && cur == conn {
			delete(h.subs, sessionID)
		}
		h.mu.Unlock()
		return Dropped
	}
	return Delivered
}
