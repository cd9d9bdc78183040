package realtime

import (
	"time"

	"bbqmaster/cmd/internal/ids"
)

// newConnectionID returns a ULID naming one websocket connection in logs.
func newConnectionID(now time.Time) string {
	id, err := ids.NewULID(now)
	if err != nil {
		return ""
	}
	return id
}

// newEnvelopeID returns a ULID so envelopes sort by creation time.
func newEnvelopeID(now time.Time) string {
	return newConnectionID(now)
}
