package auth

import (
	"context"
	"strings"
	"time"
)

// Session is an immutable snapshot of the signed-in identity.
type Session struct {
	Email     string
	Name      *string
	AvatarURL *string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// DisplayName returns the name, or the email when the provider gave none.
func (s Session) DisplayName() string {
	if s.Name != nil && strings.TrimSpace(*s.Name) != "" {
		return *s.Name
	}
	return s.Email
}

type sessionKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session attached by Middleware, if any.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	if !ok || s.Email == "" {
		return Session{}, false
	}
	return s, true
}
