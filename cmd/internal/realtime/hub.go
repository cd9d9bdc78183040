// Package realtime pushes saved RSVPs to everyone watching an event page over
// websockets.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"bbqmaster/cmd/internal/rsvp"
	v1 "bbqmaster/shared/contracts/live/v1"
)

// Hub owns the in-memory rooms. Rooms are created on first join and dropped
// when the last member leaves.
type Hub struct {
	log *slog.Logger

	mu    sync.Mutex
	rooms map[string]*Room
	conns int
}

// NewHub constructs a Hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:   log,
		rooms: make(map[string]*Room),
	}
}

// Join adds client to the room for code.
func (h *Hub) Join(code string, client *Client) *Room {
	h.mu.Lock()
	r, ok := h.rooms[code]
	if !ok {
		r = NewRoom(h.log, code)
		h.rooms[code] = r
	}
	r.Join(client)
	h.conns++
	h.mu.Unlock()
	return r
}

// Leave removes client from the room for code.
func (h *Hub) Leave(code, clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[code]
	if !ok {
		return
	}
	left, ok := r.Leave(clientID)
	if left == 0 {
		delete(h.rooms, code)
	}
	if ok {
		h.conns--
	}
}

// Connections returns the number of joined clients.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conns
}

// Publish broadcasts env to the room for code, if anyone is watching.
func (h *Hub) Publish(code string, env v1.Envelope) int {
	h.mu.Lock()
	r := h.rooms[code]
	h.mu.Unlock()
	if r == nil {
		return 0
	}
	return r.Broadcast(env)
}

// PublishSaved is an rsvp publisher: it announces s to the event's room.
func (h *Hub) PublishSaved(_ context.Context, s rsvp.Saved) {
	code := s.Event.ShareCode
	if code == "" {
		return
	}
	payload, err := json.Marshal(v1.RsvpSavedPayload{
		Code:        code,
		Name:        s.Name,
		Status:      string(s.Rsvp.Status),
		FamilyCount: len(s.Rsvp.Family),
		WillBring:   s.Rsvp.WillBring,
		SavedAt:     s.Rsvp.UpdatedAt,
	})
	if err != nil {
		h.log.Error("live.publish.encode.fail", "err", err)
		return
	}
	n := h.Publish(code, newEnvelope(v1.TypeRsvpSaved, payload, time.Now().UTC()))
	h.log.Debug("live.publish", "code", code, "delivered", n)
}
