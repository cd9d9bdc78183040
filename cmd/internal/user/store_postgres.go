package user

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"bbqmaster/cmd/internal/dberr"
	"bbqmaster/cmd/internal/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists users in PostgreSQL.
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
			return fmt.Errorf("user: invalid schema identifier %q", schema)
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
		return nil, fmt.Errorf("user: nil pool")
	}
	return st, nil
}

// UpsertByEmail implements Store with INSERT ... ON CONFLICT (email) DO UPDATE.
func (s *PostgresStore) UpsertByEmail(ctx context.Context, p Profile, now time.Time) (User, error) {
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

	users := pgIdent(s.schema, "users")
	var out User
	err = s.pool.QueryRow(ctx,
		`INSERT INTO `+users+` (id, email, name, image_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 ON CONFLICT (email) DO UPDATE
		    SET name = EXCLUDED.name,
		        image_url = EXCLUDED.image_url,
		        updated_at = EXCLUDED.updated_at
		 RETURNING id, email, name, image_url, created_at, updated_at`,
		id, p.Email, p.Name, p.ImageURL, now,
	).Scan(&out.ID, &out.Email, &out.Name, &out.ImageURL, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return User{}, fmt.Errorf("user.UpsertByEmail: %w", err)
	}
	return out, nil
}

// FindByEmail implements Store.
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	email = NormalizeEmail(email)
	if email == "" {
		return User{}, ErrInvalidInput
	}

	users := pgIdent(s.schema, "users")
	var out User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, name, image_url, created_at, updated_at
		   FROM `+users+`
		  WHERE email = $1`,
		email,
	).Scan(&out.ID, &out.Email, &out.Name, &out.ImageURL, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if dberr.NoRows(err) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("user.FindByEmail: %w", err)
	}
	return out, nil
}

func pgIdent(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}

var _ Store = (*PostgresStore)(nil)
