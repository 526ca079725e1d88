// Package ws is the websocket Broadcast Gateway: it fans room events out to
// connected clients and routes their inbound messages to the services.
package ws

import (
	"encoding/json"
	"log/slog"
	"quiz-lab/domain"
	"quiz-lab/domain/event"
	"sync"
)

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Hub keeps the clients of every room. Notify never blocks: a client whose
// buffer is full is disconnected.
type Hub struct {
	log   *slog.Logger
	mu    sync.RWMutex
	rooms map[domain.RoomCode]map[*Client]struct{}
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{log: log, rooms: make(map[domain.RoomCode]map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[c.room] == nil {
		h.rooms[c.room] = make(map[*Client]struct{})
	}
	h.rooms[c.room][c] = struct{}{}
	h.log.Debug("Client registered", "room", c.room, "player", c.identity.ID, "clients", len(h.rooms[c.room]))
}

// Unregister detaches c and reports whether it was still attached.
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.detach(c)
}

func (h *Hub) detach(c *Client) bool {
	clients, ok := h.rooms[c.room]
	if !ok {
		return false
	}
	if _, ok := clients[c]; !ok {
		return false
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.rooms, c.room)
	}
	c.closeSend()
	return true
}

// DetachPlayer disconnects every client a player holds in a room and
// returns how many were attached.
func (h *Hub) DetachPlayer(roomCode domain.RoomCode, id domain.PlayerID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.detachPlayer(roomCode, id)
}

func (h *Hub) detachPlayer(roomCode domain.RoomCode, id domain.PlayerID) int {
	n := 0
	for c := range h.rooms[roomCode] {
		if c.identity.ID == id && h.detach(c) {
			n++
		}
	}
	return n
}

// Notify delivers an event to every client of a room. A room:closed event
// is the last one a room sees; its clients are detached right after. A
// kicked player is detached once the kick has reached it.
func (h *Hub) Notify(roomCode domain.RoomCode, eventName string, payload any) {
	data, err := encode(eventName, payload)
	if err != nil {
		h.log.Error("Failed to encode event", "room", roomCode, "event", eventName, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[roomCode] {
		if !c.enqueue(data) {
			h.log.Warn("Dropping slow client", "room", roomCode, "player", c.identity.ID)
			h.detach(c)
		}
	}
	switch eventName {
	case event.RoomClosed:
		for c := range h.rooms[roomCode] {
			h.detach(c)
		}
	case event.PlayerKicked:
		if id, ok := kickedPlayer(payload); ok {
			n := h.detachPlayer(roomCode, id)
			h.log.Debug("Kicked player detached", "room", roomCode, "player", id, "clients", n)
		}
	}
}

func kickedPlayer(payload any) (domain.PlayerID, bool) {
	switch p := payload.(type) {
	case domain.PlayerKickedPayload:
		return p.PlayerID, true
	case *domain.PlayerKickedPayload:
		if p != nil {
			return p.PlayerID, true
		}
	}
	return "", false
}

// Send delivers an event to a single client.
func (h *Hub) Send(c *Client, eventName string, payload any) {
	data, err := encode(eventName, payload)
	if err != nil {
		h.log.Error("Failed to encode event", "event", eventName, "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !c.enqueue(data) {
		h.detach(c)
	}
}

// Clients returns how many clients are attached to a room.
func (h *Hub) Clients(roomCode domain.RoomCode) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomCode])
}

// HasPlayer reports whether a player still has a connection to a room.
func (h *Hub) HasPlayer(roomCode domain.RoomCode, id domain.PlayerID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[roomCode] {
		if c.identity.ID == id {
			return true
		}
	}
	return false
}

func encode(eventName string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: eventName, Payload: raw})
}
