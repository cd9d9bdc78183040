package rsvp

import "strings"

// Status is the attendance answer.
type Status string

const (
	StatusYes     Status = "YES"
	StatusLateYes Status = "LATE_YES"
	StatusMaybe   Status = "MAYBE"
	StatusNo      Status = "NO"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusYes, StatusLateYes, StatusMaybe, StatusNo}

var statusLabels = map[Status]string{
	StatusYes:     "Of Course!",
	StatusLateYes: "Sure, but late as usual",
	StatusMaybe:   "Will do my best, but can't promise",
	StatusNo:      "No. I'm just a crappy friend",
}

// Label returns the human-readable label, or "" for unknown statuses.
func (s Status) Label() string { return statusLabels[s] }

// Valid reports whether s is one of Statuses.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// ParseStatus validates raw input. Empty input yields ErrStatusRequired.
func ParseStatus(raw string) (Status, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrStatusRequired
	}
	s := Status(strings.ToUpper(raw))
	if !s.Valid() {
		return "", &ValidationError{Field: "status", Message: "Unknown RSVP option."}
	}
	return s, nil
}

// StatusOption pairs a status with its label for form rendering.
type StatusOption struct {
	Value Status `json:"value"`
	Label string `json:"label"`
}

// Options returns the selectable statuses in display order.
func Options() []StatusOption {
	out := make([]StatusOption, 0, len(Statuses))
	for _, s := range Statuses {
		out = append(out, StatusOption{Value: s, Label: s.Label()})
	}
	return out
}
