package rsvp

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"bbqmaster/cmd/internal/dberr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists RSVPs in PostgreSQL. Family and will-bring are jsonb.
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
			return fmt.Errorf("rsvp: invalid schema identifier %q", schema)
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
		return nil, fmt.Errorf("rsvp: nil pool")
	}
	return st, nil
}

const rsvpColumns = `id, event_id, user_id, status, note, family, will_bring, created_at, updated_at`

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, eventID, userID string) (Rsvp, error) {
	if err := ctx.Err(); err != nil {
		return Rsvp{}, err
	}

	rsvps := pgIdent(s.schema, "rsvps")
	out, err := scanRsvp(s.pool.QueryRow(ctx,
		`SELECT `+rsvpColumns+`
		   FROM `+rsvps+`
		  WHERE event_id = $1 AND user_id = $2`,
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

// Upsert implements Store with ON CONFLICT ON CONSTRAINT uq_rsvps_event_user.
func (s *PostgresStore) Upsert(ctx context.Context, r Rsvp) (Rsvp, error) {
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

	rsvps := pgIdent(s.schema, "rsvps")
	out, err := scanRsvp(s.pool.QueryRow(ctx,
		`INSERT INTO `+rsvps+` (`+rsvpColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		 ON CONFLICT ON CONSTRAINT uq_rsvps_event_user DO UPDATE
		    SET status = EXCLUDED.status,
		        note = EXCLUDED.note,
		        family = EXCLUDED.family,
		        will_bring = EXCLUDED.will_bring,
		        updated_at = EXCLUDED.updated_at
		 RETURNING `+rsvpColumns,
		r.ID, r.EventID, r.UserID, string(r.Status), r.Note, r.Family, r.WillBring, r.UpdatedAt,
	))
	if err != nil {
		return Rsvp{}, classifyWriteError(op, err)
	}
	return out, nil
}

func scanRsvp(row pgx.Row) (Rsvp, error) {
	var (
		out    Rsvp
		status string
	)
	if err := row.Scan(&out.ID, &out.EventID, &out.UserID, &status, &out.Note,
		&out.Family, &out.WillBring, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return Rsvp{}, err
	}
	out.Status = Status(status)
	out.CreatedAt = out.CreatedAt.UTC()
	out.UpdatedAt = out.UpdatedAt.UTC()
	if out.Family == nil {
		out.Family = []FamilyMember{}
	}
	if out.WillBring == nil {
		out.WillBring = []string{}
	}
	return out, nil
}

// classifyWriteError maps driver errors from an RSVP write onto package kinds.
// Shared by the Postgres and SQLite stores.
func classifyWriteError(op string, err error) error {
	if dberr.ForeignKeyViolation(err) {
		return fmt.Errorf("%s: unknown event or user: %w", op, ErrInvalidInput)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func pgIdent(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}

var _ Store = (*PostgresStore)(nil)
