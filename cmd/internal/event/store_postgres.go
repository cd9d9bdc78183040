package event

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"bbqmaster/cmd/internal/dberr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists events in PostgreSQL.
// The pool is owned by the caller; the store never closes it.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the schema used by the store (default "bbq").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("event: invalid schema identifier %q", schema)
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "bbq"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("event: nil pool")
	}
	return st, nil
}

// Insert implements Store.
func (s *PostgresStore) Insert(ctx context.Context, ev Event) (Event, error) {
	const op = "event.Insert"
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	if ev.Extras == nil {
		ev.Extras = []string{}
	}

	events := pgIdent(s.schema, "events")
	err := s.pool.QueryRow(ctx,
		`INSERT INTO `+events+`
		   (id, host_id, title, description, date_time, timezone, location, extras, share_code, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at`,
		ev.ID, ev.HostID, ev.Title, ev.Description, ev.DateTime.UTC(), ev.Timezone,
		ev.Location, ev.Extras, ev.ShareCode, ev.CreatedAt,
	).Scan(&ev.CreatedAt)
	if err != nil {
		return Event{}, classifyInsertError(op, err)
	}
	ev.CreatedAt = ev.CreatedAt.UTC()
	return ev, nil
}

// GetByShareCode implements Store.
func (s *PostgresStore) GetByShareCode(ctx context.Context, code string) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}

	events := pgIdent(s.schema, "events")
	var ev Event
	err := s.pool.QueryRow(ctx,
		`SELECT id, host_id, title, description, date_time, timezone, location, extras, share_code, created_at
		   FROM `+events+`
		  WHERE share_code = $1`,
		code,
	).Scan(&ev.ID, &ev.HostID, &ev.Title, &ev.Description, &ev.DateTime, &ev.Timezone,
		&ev.Location, &ev.Extras, &ev.ShareCode, &ev.CreatedAt)
	if err != nil {
		if dberr.NoRows(err) {
			return Event{}, ErrNotFound
		}
		return Event{}, fmt.Errorf("event.GetByShareCode: %w", err)
	}
	ev.DateTime = ev.DateTime.UTC()
	ev.CreatedAt = ev.CreatedAt.UTC()
	if ev.Extras == nil {
		ev.Extras = []string{}
	}
	return ev, nil
}

// classifyInsertError maps driver errors from an events insert onto the
// package's error kinds. Shared by the Postgres and SQLite stores.
func classifyInsertError(op string, err error) error {
	if target, ok := dberr.UniqueViolation(err); ok {
		if dberr.Mentions(target, FieldShareCode) {
			return ConflictError{Op: op, Field: FieldShareCode}
		}
		return ConflictError{Op: op, Field: target}
	}
	if dberr.ForeignKeyViolation(err) {
		return fmt.Errorf("%s: unknown host: %w", op, ErrInvalidInput)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func pgIdent(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}

var _ Store = (*PostgresStore)(nil)
