// Package rsvp keeps exactly one RSVP per (event, user) in sync with what the
// signed-in guest submits, and prefills the form from what is stored.
package rsvp

import (
	"context"
	"time"
)

// FamilyMember is one companion listed on an RSVP.
type FamilyMember struct {
	Name  string `json:"name"`
	Adult bool   `json:"adult"`
}

// Rsvp is a persisted RSVP row.
type Rsvp struct {
	ID        string
	EventID   string
	UserID    string
	Status    Status
	Note      *string
	Family    []FamilyMember
	WillBring []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the persistence boundary for RSVPs.
type Store interface {
	// Get returns ErrNotFound when the user has not answered yet.
	Get(ctx context.Context, eventID, userID string) (Rsvp, error)

	// Upsert inserts r or, when a row for (EventID, UserID) exists, replaces
	// its status, note, family, will-bring and updated_at. ID and CreatedAt of
	// an existing row are kept.
	Upsert(ctx context.Context, r Rsvp) (Rsvp, error)
}
