package realtime

import (
	"context"
	"log/slog"
	"sync"
)

// WriteFunc pushes one event onto a subscriber's connection.
type WriteFunc func(ctx context.Context, event any) error

// Client is one live subscription and the rooms it joined.
type Client struct {
	rooms []string
	write WriteFunc
}

// Hub is the connection registry. Subscribers join named rooms and broadcasts
// fan out to whoever is in the room at that moment. All connection state is
// held here, scoped to the Hub instance.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{})}
}

// Join registers a subscriber in the given rooms.
func (h *Hub) Join(write WriteFunc, rooms ...string) *Client {
	c := &Client{rooms: rooms, write: write}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, room := range rooms {
		members, ok := h.rooms[room]
		if !ok {
			members = make(map[*Client]struct{})
			h.rooms[room] = members
		}

		members[c] = struct{}{}
	}

	return c
}

// Leave removes a subscriber from every room it joined.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, room := range c.rooms {
		members, ok := h.rooms[room]
		if !ok {
			continue
		}

		delete(members, c)

		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Broadcast writes event to every subscriber in the room and reports how many
// took it. A subscriber whose write fails is dropped from the registry; its
// own read loop will notice the dead socket.
func (h *Hub) Broadcast(ctx context.Context, room string, event any) int {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	var delivered int

	for _, c := range members {
		if err := c.write(ctx, event); err != nil {
			slog.Warn("dropping realtime subscriber", "room", room, "error", err)
			h.Leave(c)

			continue
		}

		delivered++
	}

	return delivered
}

// Count reports how many subscribers a room has.
func (h *Hub) Count(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms[room])
}

// Rooms lists the rooms that currently have subscribers.
func (h *Hub) Rooms() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.rooms))
	for room := range h.rooms {
		names = append(names, room)
	}

	return names
}
