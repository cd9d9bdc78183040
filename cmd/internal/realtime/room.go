package realtime

import (
	"log/slog"
	"sync"

	v1 "bbqmaster/shared/contracts/live/v1"
)

// Room is the set of clients watching one event, keyed by share code.
//
// Join/Leave are safe under concurrent Broadcast, and Broadcast never blocks:
// a member whose queue is full misses the envelope.
type Room struct {
	log  *slog.Logger
	Code string

	mu      sync.RWMutex
	members map[string]*Client
}

// NewRoom constructs an empty room.
func NewRoom(log *slog.Logger, code string) *Room {
	return &Room{
		log:     log,
		Code:    code,
		members: make(map[string]*Client),
	}
}

// Join adds a client.
func (r *Room) Join(client *Client) {
	if r == nil || client == nil || client.ID == "" {
		return
	}

	r.mu.Lock()
	r.members[client.ID] = client
	r.mu.Unlock()

	r.log.Debug("live.room.join", "code", r.Code, "connection_id", client.ID)
}

// Leave removes a client and signals it to shut down. It reports how many
// members remain and whether the client was a member.
func (r *Room) Leave(clientID string) (int, bool) {
	if r == nil || clientID == "" {
		return 0, false
	}

	r.mu.Lock()
	cl, ok := r.members[clientID]
	delete(r.members, clientID)
	left := len(r.members)
	r.mu.Unlock()

	// Close after removal so no broadcaster still holds the client.
	if cl != nil {
		cl.Close()
	}

	r.log.Debug("live.room.leave", "code", r.Code, "connection_id", clientID)
	return left, ok
}

// Len returns the number of members.
func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Broadcast fans env out to all members and returns how many received it.
func (r *Room) Broadcast(env v1.Envelope) int {
	if r == nil {
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	sent := 0
	for _, m := range r.members {
		select {
		case <-m.Done():
			continue
		default:
		}

		select {
		case m.Send <- env:
			sent++
		default:
		}
	}
	return sent
}
