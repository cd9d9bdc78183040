// Package event owns event creation and lookup, including share code
// allocation against the store's uniqueness guarantee.
package event

import (
	"context"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// Event is a persisted event.
type Event struct {
	ID          string
	HostID      string
	Title       string
	Description *string
	DateTime    time.Time
	Timezone    string
	Location    *string
	Extras      []string
	ShareCode   string
	CreatedAt   time.Time
}

// Store is the persistence boundary for events.
type Store interface {
	// Insert writes ev as a new row. A taken share code yields a
	// ConflictError with Field == FieldShareCode.
	Insert(ctx context.Context, ev Event) (Event, error)

	// GetByShareCode returns ErrNotFound when no event carries code.
	GetByShareCode(ctx context.Context, code string) (Event, error)
}

var dateTimeLocalLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
}

// ParseDateTime parses value as a datetime-local string in the named IANA
// zone, falling back to RFC 3339. The result is in UTC.
func ParseDateTime(value, timezone string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: date_time is required", ErrInvalidInput)
	}
	loc, err := LoadTimezone(timezone)
	if err != nil {
		return time.Time{}, err
	}
	for _, layout := range dateTimeLocalLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.UTC(), nil
		}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date_time %q", ErrInvalidInput, value)
	}
	return t.UTC(), nil
}

// LoadTimezone resolves an IANA zone name; empty means UTC.
func LoadTimezone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q", ErrInvalidInput, name)
	}
	return loc, nil
}

// NormalizeShareCode canonicalizes user-supplied codes from URLs.
func NormalizeShareCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
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
