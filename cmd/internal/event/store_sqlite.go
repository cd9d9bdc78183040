package event

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"bbqmaster/cmd/internal/dberr"
)

// SQLiteStore persists events in an embedded SQLite database.
// Extras are stored as a JSON array, timestamps as unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an opened, migrated *sql.DB.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("event: nil sqlite db")
	}
	return &SQLiteStore{db: db}, nil
}

// Insert implements Store.
func (s *SQLiteStore) Insert(ctx context.Context, ev Event) (Event, error) {
	const op = "event.Insert"
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	if ev.Extras == nil {
		ev.Extras = []string{}
	}
	extras, err := json.Marshal(ev.Extras)
	if err != nil {
		return Event{}, fmt.Errorf("%s: encode extras: %w", op, err)
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events
		   (id, host_id, title, description, date_time, timezone, location, extras, share_code, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.HostID, ev.Title, nullString(ev.Description), ev.DateTime.UTC().UnixMilli(), ev.Timezone,
		nullString(ev.Location), string(extras), ev.ShareCode, ev.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return Event{}, classifyInsertError(op, err)
	}
	ev.DateTime = time.UnixMilli(ev.DateTime.UnixMilli()).UTC()
	ev.CreatedAt = time.UnixMilli(ev.CreatedAt.UnixMilli()).UTC()
	return ev, nil
}

// GetByShareCode implements Store.
func (s *SQLiteStore) GetByShareCode(ctx context.Context, code string) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}

	var (
		ev                Event
		description, loc  sql.NullString
		extras            string
		dateMs, createdMs int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, host_id, title, description, date_time, timezone, location, extras, share_code, created_at
		   FROM events
		  WHERE share_code = ?`,
		code,
	).Scan(&ev.ID, &ev.HostID, &ev.Title, &description, &dateMs, &ev.Timezone,
		&loc, &extras, &ev.ShareCode, &createdMs)
	if err != nil {
		if dberr.NoRows(err) {
			return Event{}, ErrNotFound
		}
		return Event{}, fmt.Errorf("event.GetByShareCode: %w", err)
	}
	if err := json.Unmarshal([]byte(extras), &ev.Extras); err != nil {
		return Event{}, fmt.Errorf("event.GetByShareCode: decode extras: %w", err)
	}
	if ev.Extras == nil {
		ev.Extras = []string{}
	}
	ev.Description = stringPtr(description)
	ev.Location = stringPtr(loc)
	ev.DateTime = time.UnixMilli(dateMs).UTC()
	ev.CreatedAt = time.UnixMilli(createdMs).UTC()
	return ev, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

var _ Store = (*SQLiteStore)(nil)
