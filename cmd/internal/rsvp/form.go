package rsvp

import (
	"slices"

	"bbqmaster/cmd/internal/textlist"
)

// Form is the editable RSVP as the guest sees it. WillBring is free text.
type Form struct {
	Status    string         `json:"status"`
	Note      string         `json:"note"`
	Family    []FamilyMember `json:"family"`
	WillBring string         `json:"will_bring"`
}

// EmptyForm is the prefill for a guest without a stored RSVP.
func EmptyForm() Form {
	return Form{Family: []FamilyMember{}}
}

// FormFromRsvp renders a stored RSVP for editing.
func FormFromRsvp(r Rsvp) Form {
	f := Form{
		Status:    string(r.Status),
		Family:    slices.Clone(r.Family),
		WillBring: textlist.Join(r.WillBring),
	}
	if r.Note != nil {
		f.Note = *r.Note
	}
	if f.Family == nil {
		f.Family = []FamilyMember{}
	}
	return f
}

// ParseBring splits the free-text will-bring field into items.
func ParseBring(text string) []string {
	return textlist.Split(text)
}

func noteOrNil(note string) *string {
	if note == "" {
		return nil
	}
	return &note
}
