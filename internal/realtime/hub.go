package realtime

import (
	"fmt"
	"sync"
)

// Client is anything the hub can deliver frames to
type Client interface {
	ID() string
	Send(payload []byte) error
}

// Hub tracks which connections belong to which broadcast rooms. Rooms are
// instance rooms, a tenant's admin room and per-user rooms.
type Hub struct {
	mu          sync.RWMutex
	clients     map[string]Client
	rooms       map[string]map[string]Client // room -> connID -> client
	memberships map[string]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:     make(map[string]Client),
		rooms:       make(map[string]map[string]Client),
		memberships: make(map[string]map[string]struct{}),
	}
}

func InstanceRoom(instanceID int64) string {
	return fmt.Sprintf("instance:%d", instanceID)
}

func AdminsRoom(tenantID int64) string {
	return fmt.Sprintf("tenant:%d:admins", tenantID)
}

func UserRoom(tenantID, userID int64) string {
	return fmt.Sprintf("tenant:%d:user:%d", tenantID, userID)
}

// Attach registers a client with no room memberships
func (h *Hub) Attach(c Client) {
	h.mu.Lock()
	h.clients[c.ID()] = c
	if h.memberships[c.ID()] == nil {
		h.memberships[c.ID()] = make(map[string]struct{})
	}
	h.mu.Unlock()
}

// Detach removes a client from every room. Unknown clients are ignored.
func (h *Hub) Detach(c Client) {
	h.mu.Lock()
	id := c.ID()
	for room := range h.memberships[id] {
		h.leaveLocked(room, id)
	}
	delete(h.memberships, id)
	delete(h.clients, id)
	h.mu.Unlock()
}

// Join adds an attached client to a room
func (h *Hub) Join(room string, c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := c.ID()
	if _, ok := h.clients[id]; !ok {
		return
	}
	members := h.rooms[room]
	if members == nil {
		members = make(map[string]Client)
		h.rooms[room] = members
	}
	members[id] = c
	h.memberships[id][room] = struct{}{}
}

func (h *Hub) Leave(room string, c Client) {
	h.mu.Lock()
	h.leaveLocked(room, c.ID())
	h.mu.Unlock()
}

func (h *Hub) leaveLocked(room, id string) {
	if members := h.rooms[room]; members != nil {
		delete(members, id)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if m := h.memberships[id]; m != nil {
		delete(m, room)
	}
}

// Broadcast delivers payload to every member of room except excludeID and
// returns how many clients accepted it.
func (h *Hub) Broadcast(room string, payload []byte, excludeID string) int {
	h.mu.RLock()
	targets := make([]Client, 0, len(h.rooms[room]))
	for id, c := range h.rooms[room] {
		if excludeID != "" && id == excludeID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if err := c.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// SendTo delivers payload to one attached client; detached clients are a no-op
func (h *Hub) SendTo(id string, payload []byte) bool {
	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return c.Send(payload) == nil
}

// Rooms lists the rooms a client currently belongs to
func (h *Hub) Rooms(id string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.memberships[id]))
	for room := range h.memberships[id] {
		out = append(out, room)
	}
	return out
}

// Members counts the clients in a room
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
