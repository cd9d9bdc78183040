package rsvp

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"bbqmaster/cmd/internal/dberr"
)

// SQLiteStore persists RSVPs in an embedded SQLite database. Family and
// will-bring are JSON text, timestamps unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an opened, migrated *sql.DB.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("rsvp: nil sqlite db")
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteColumns = `id, event_id, user_id, status, note, family, will_bring, created_at, updated_at`

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, eventID, userID string) (Rsvp, error) {
	if err := ctx.Err(); err != nil {
		return Rsvp{}, err
	}

	out, err := scanSQLiteRsvp(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteColumns+` FROM rsvps WHERE event_id = ? AND user_id = ?`,
		eventID, userID,
	))
	if err != nil {
		if dberr.NoRows(err) {
			return Rsvp{}, ErrNotFound
		}
		return Rsvp{}, fmt.Errorf("rsvp.Get: %w", err)
	}
	return out, nil
}

// Upsert implements Store.
func (s *SQLiteStore) Upsert(ctx context.Context, r Rsvp) (Rsvp, error) {
	const op = "rsvp.Upsert"
	if err := ctx.Err(); err != nil {
		return Rsvp{}, err
	}
	if r.Family == nil {
		r.Family = []FamilyMember{}
	}
	if r.WillBring == nil {
		r.WillBring = []string{}
	}
	family, err := json.Marshal(r.Family)
	if err != nil {
		return Rsvp{}, fmt.Errorf("%s: encode family: %w", op, err)
	}
	bring, err := json.Marshal(r.WillBring)
	if err != nil {
		return Rsvp{}, fmt.Errorf("%s: encode will_bring: %w", op, err)
	}
	var note sql.NullString
	if r.Note != nil {
		note = sql.NullString{String: *r.Note, Valid: true}
	}
	ms := r.UpdatedAt.UnixMilli()

	out, err := scanSQLiteRsvp(s.db.QueryRowContext(ctx,
		`INSERT INTO rsvps (`+sqliteColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (event_id, user_id) DO UPDATE
		    SET status = excluded.status,
		        note = excluded.note,
		        family = excluded.family,
		        will_bring = excluded.will_bring,
		        updated_at = excluded.updated_at
		 RETURNING `+sqliteColumns,
		r.ID, r.EventID, r.UserID, string(r.Status), note, string(family), string(bring), ms, ms,
	))
	if err != nil {
		return Rsvp{}, classifyWriteError(op, err)
	}
	return out, nil
}

func scanSQLiteRsvp(row *sql.Row) (Rsvp, error) {
	var (
		out                   Rsvp
		status, family, bring string
		note                  sql.NullString
		createdMs, updatedMs  int64
	)
	if err := row.Scan(&out.ID, &out.EventID, &out.UserID, &status, &note,
		&family, &bring, &createdMs, &updatedMs); err != nil {
		return Rsvp{}, err
	}
	if err := json.Unmarshal([]byte(family), &out.Family); err != nil {
		return Rsvp{}, fmt.Errorf("decode family: %w", err)
	}
	if err := json.Unmarshal([]byte(bring), &out.WillBring); err != nil {
		return Rsvp{}, fmt.Errorf("decode will_bring: %w", err)
	}
	if out.Family == nil {
		out.Family = []FamilyMember{}
	}
	if out.WillBring == nil {
		out.WillBring = []string{}
	}
	if note.Valid {
		n := note.String
		out.Note = &n
	}
	out.Status = Status(status)
	out.CreatedAt = time.UnixMilli(createdMs).UTC()
	out.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return out, nil
}

var _ Store = (*SQLiteStore)(nil)
