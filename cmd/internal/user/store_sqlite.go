package user

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bbqmaster/cmd/internal/dberr"
	"bbqmaster/cmd/internal/ids"
)

// SQLiteStore persists users in an embedded SQLite database (modernc.org/sqlite).
// Timestamps are stored as unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an opened, migrated *sql.DB.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("user: nil sqlite db")
	}
	return &SQLiteStore{db: db}, nil
}

// UpsertByEmail implements Store.
func (s *SQLiteStore) UpsertByEmail(ctx context.Context, p Profile, now time.Time) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	p, err := normalizeProfile(p)
	if err != nil {
		return User{}, err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return User{}, err
	}

	var (
		out                  User
		name, imageURL       sql.NullString
		createdMs, updatedMs int64
	)
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO users (id, email, name, image_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (email) DO UPDATE
		    SET name = excluded.name,
		        image_url = excluded.image_url,
		        updated_at = excluded.updated_at
		 RETURNING id, email, name, image_url, created_at, updated_at`,
		id, p.Email, nullString(p.Name), nullString(p.ImageURL), now.UnixMilli(), now.UnixMilli(),
	).Scan(&out.ID, &out.Email, &name, &imageURL, &createdMs, &updatedMs)
	if err != nil {
		return User{}, fmt.Errorf("user.UpsertByEmail: %w", err)
	}
	out.Name = stringPtr(name)
	out.ImageURL = stringPtr(imageURL)
	out.CreatedAt = time.UnixMilli(createdMs).UTC()
	out.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return out, nil
}

// FindByEmail implements Store.
func (s *SQLiteStore) FindByEmail(ctx context.Context, email string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	email = NormalizeEmail(email)
	if email == "" {
		return User{}, ErrInvalidInput
	}

	var (
		out                  User
		name, imageURL       sql.NullString
		createdMs, updatedMs int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, image_url, created_at, updated_at FROM users WHERE email = ?`,
		email,
	).Scan(&out.ID, &out.Email, &name, &imageURL, &createdMs, &updatedMs)
	if err != nil {
		if dberr.NoRows(err) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("user.FindByEmail: %w", err)
	}
	out.Name = stringPtr(name)
	out.ImageURL = stringPtr(imageURL)
	out.CreatedAt = time.UnixMilli(createdMs).UTC()
	out.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return out, nil
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
