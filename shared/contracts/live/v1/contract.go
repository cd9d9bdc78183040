// Package v1 defines the live RSVP feed protocol v1.
//
// It is shared between the server and clients so the wire format has one
// source of truth. Keep it dependency-light.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is embedded in every envelope.
const Version = "v1"

// Subprotocol is the websocket subprotocol clients must offer.
const Subprotocol = "bbq.live.v1"

// Type constants (wire-stable).
const (
	// TypeHello is sent once after the upgrade (server -> client).
	TypeHello = "hello"

	// TypeRsvpSaved announces a saved RSVP (server -> room members).
	TypeRsvpSaved = "rsvp.saved"

	// TypePing and TypePong are an application-level liveness check
	// (client -> server -> client).
	TypePing = "ping"
	TypePong = "pong"

	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate checks the fields every client-sent envelope must carry.
func (e Envelope) Validate() error {
	if e.V != Version {
		return fmt.Errorf("invalid protocol version: got=%q want=%q", e.V, Version)
	}
	switch strings.TrimSpace(e.Type) {
	case "":
		return errors.New("missing type")
	case TypePing:
		return nil
	default:
		return fmt.Errorf("unsupported type: %s", e.Type)
	}
}

// HelloPayload identifies the room the connection joined.
type HelloPayload struct {
	ConnectionID string `json:"connection_id"`
	Code         string `json:"code"`
	Title        string `json:"title"`
}

// RsvpSavedPayload is the public view of a saved RSVP.
type RsvpSavedPayload struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	FamilyCount int       `json:"family_count"`
	WillBring   []string  `json:"will_bring"`
	SavedAt     time.Time `json:"saved_at"`
}

// ErrorPayload describes a rejected client envelope.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
