package session

import (
	"sync"
)

// Conn is a live connection the hub can deliver events to. Send must be safe
// for concurrent use and must not block indefinitely; delivery is best-effort.
type Conn interface {
	Send(evt Event) error
	Close() error
	ID() string
	RoomID() string
}

// Hub fans events out to every live connection of a room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Conn]struct{} // roomID -> set of connections
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[Conn]struct{})}
}

func (h *Hub) Add(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rs, ok := h.rooms[c.RoomID()]
	if !ok {
		rs = make(map[Conn]struct{})
		h.rooms[c.RoomID()] = rs
	}
	rs[c] = struct{}{}
}

func (h *Hub) Remove(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rs, ok := h.rooms[c.RoomID()]; ok {
		delete(rs, c)
		if len(rs) == 0 {
			delete(h.rooms, c.RoomID())
		}
	}
}

// Broadcast delivers evt to every connection in the room. A failing
// connection never blocks or fails delivery to the rest.
func (h *Hub) Broadcast(roomID string, evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if rs, ok := h.rooms[roomID]; ok {
		for c := range rs {
			_ = c.Send(evt) // best-effort
		}
	}
}
