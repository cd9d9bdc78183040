// Package user owns the users table: identities are matched lazily by email
// on the first write-triggering action and never created at sign-in.
package user

import (
	"context"
	"strings"
	"time"
)

// User is a row in the users table.
type User struct {
	ID        string
	Email     string
	Name      *string
	ImageURL  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Profile is the identity metadata written on every upsert.
type Profile struct {
	Email    string
	Name     *string
	ImageURL *string
}

// Store is the persistence boundary for users.
type Store interface {
	// UpsertByEmail inserts the user or, when the email already exists,
	// overwrites name and image URL with the profile's values.
	UpsertByEmail(ctx context.Context, p Profile, now time.Time) (User, error)

	// FindByEmail returns ErrNotFound when no row exists.
	FindByEmail(ctx context.Context, email string) (User, error)
}

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizeProfile trims the profile and rejects it when the email is missing.
func normalizeProfile(p Profile) (Profile, error) {
	email := NormalizeEmail(p.Email)
	if email == "" || !strings.Contains(email, "@") {
		return Profile{}, ErrInvalidInput
	}
	return Profile{
		Email:    email,
		Name:     trimPtr(p.Name),
		ImageURL: trimPtr(p.ImageURL),
	}, nil
}

func trimPtr(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}
