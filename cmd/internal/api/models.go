package api

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"bbqmaster/cmd/internal/event"
	"bbqmaster/cmd/internal/rsvp"
	"bbqmaster/cmd/internal/textlist"
)

// textOrList accepts either a JSON array of strings or one comma-separated
// string.
type textOrList []string

func (t *textOrList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = nil
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = textlist.Split(s)
		return nil
	}
	var items []string
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	*t = items
	return nil
}

type createEventRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	DateTime    string     `json:"date_time"`
	Timezone    string     `json:"timezone"`
	Location    *string    `json:"location"`
	Extras      textOrList `json:"extras"`
}

type eventResponse struct {
	ID          string    `json:"id"`
	HostID      string    `json:"host_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	DateTime    time.Time `json:"date_time"`
	Timezone    string    `json:"timezone"`
	Location    *string   `json:"location"`
	Extras      []string  `json:"extras"`
	ShareCode   string    `json:"share_code"`
	ShareURL    string    `json:"share_url"`
	CreatedAt   time.Time `json:"created_at"`
}

type rsvpFormResponse struct {
	Event   eventResponse       `json:"event"`
	Form    rsvp.Form           `json:"form"`
	Options []rsvp.StatusOption `json:"options"`
}

type rsvpResponse struct {
	ID        string              `json:"id"`
	EventID   string              `json:"event_id"`
	Status    rsvp.Status         `json:"status"`
	Label     string              `json:"label"`
	Note      *string             `json:"note"`
	Family    []rsvp.FamilyMember `json:"family"`
	WillBring []string            `json:"will_bring"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func toEventResponse(ev event.Event, baseURL string) eventResponse {
	extras := ev.Extras
	if extras == nil {
		extras = []string{}
	}
	return eventResponse{
		ID:          ev.ID,
		HostID:      ev.HostID,
		Title:       ev.Title,
		Description: ev.Description,
		DateTime:    ev.DateTime,
		Timezone:    ev.Timezone,
		Location:    ev.Location,
		Extras:      extras,
		ShareCode:   ev.ShareCode,
		ShareURL:    shareURL(baseURL, ev.ShareCode),
		CreatedAt:   ev.CreatedAt,
	}
}

func toRsvpResponse(r rsvp.Rsvp) rsvpResponse {
	family := r.Family
	if family == nil {
		family = []rsvp.FamilyMember{}
	}
	bring := r.WillBring
	if bring == nil {
		bring = []string{}
	}
	return rsvpResponse{
		ID:        r.ID,
		EventID:   r.EventID,
		Status:    r.Status,
		Label:     r.Status.Label(),
		Note:      r.Note,
		Family:    family,
		WillBring: bring,
		UpdatedAt: r.UpdatedAt,
	}
}

func shareURL(baseURL, code string) string {
	return strings.TrimRight(baseURL, "/") + "/e/" + code
}
