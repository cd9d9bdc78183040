package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bbqmaster/cmd/internal/event"
	"bbqmaster/cmd/internal/migrations"
	"bbqmaster/cmd/internal/rsvp"
	"bbqmaster/cmd/internal/user"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"
)

// Backend kinds.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Backend bundles the per-table stores with the connection they share.
// The app owns the connection lifecycle; the stores never close it.
type Backend struct {
	Kind   string
	Users  user.Store
	Events event.Store
	Rsvps  rsvp.Store

	pool *pgxpool.Pool
	db   *sql.DB
}

// OpenBackend selects a store implementation from cfg.DatabaseURL.
func OpenBackend(ctx context.Context, cfg Config, log Logger) (*Backend, error) {
	raw := strings.TrimSpace(cfg.DatabaseURL)
	switch {
	case raw == "":
		log.Info("db.disabled.inmemory_store")
		return &Backend{
			Kind:   BackendMemory,
			Users:  user.NewInMemoryStore(),
			Events: event.NewInMemoryStore(),
			Rsvps:  rsvp.NewInMemoryStore(),
		}, nil
	case strings.HasPrefix(raw, "sqlite://"):
		return openSQLite(cfg, strings.TrimPrefix(raw, "sqlite://"), log)
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return openPostgres(ctx, cfg, log)
	default:
		return nil, errors.New("db: BBQ_DATABASE_URL must start with postgres:// or sqlite://")
	}
}

func openPostgres(ctx context.Context, cfg Config, log Logger) (*Backend, error) {
	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	users, err := user.NewPostgresStore(pool, user.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, err
	}
	events, err := event.NewPostgresStore(pool, event.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, err
	}
	rsvps, err := rsvp.NewPostgresStore(pool, rsvp.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("db.enabled.postgres_store", "schema", cfg.DBSchema)
	return &Backend{Kind: BackendPostgres, Users: users, Events: events, Rsvps: rsvps, pool: pool}, nil
}

func openSQLite(cfg Config, path string, log Logger) (*Backend, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("db: sqlite:// URL needs a file path")
	}
	dsn := sqliteDSN(path)

	if cfg.DBAutoMigrate {
		if err := migrations.UpSQLite(dsn); err != nil {
			return nil, fmt.Errorf("db: migrate sqlite: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	users, err := user.NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	events, err := event.NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	rsvps, err := rsvp.NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info("db.enabled.sqlite_store", "path", path)
	return &Backend{Kind: BackendSQLite, Users: users, Events: events, Rsvps: rsvps, db: db}, nil
}

func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Persistent reports whether the backend survives restarts.
func (b *Backend) Persistent() bool {
	return b != nil && b.Kind != BackendMemory
}

// Ping checks the backing database within timeout. The memory backend is
// always ready.
func (b *Backend) Ping(parent context.Context, timeout time.Duration) error {
	switch {
	case b == nil:
		return errors.New("db: nil backend")
	case b.pool != nil:
		return PingDB(parent, b.pool, timeout)
	case b.db != nil:
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		return b.db.PingContext(ctx)
	default:
		return nil
	}
}

// Close releases the shared connection.
func (b *Backend) Close() error {
	if b == nil {
		return nil
	}
	if b.pool != nil {
		b.pool.Close()
	}
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// NewDBPool builds a pgxpool pinned to cfg.DBSchema, applies migrations when
// enabled, and validates connectivity.
func NewDBPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns >= 0 {
		pcfg.MinConns = cfg.DBMinConns
	}
	if s := strings.TrimSpace(cfg.DBSchema); s != "" {
		pcfg.ConnConfig.RuntimeParams["search_path"] = s
	}

	if cfg.DBAutoMigrate {
		migCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := migrations.UpPostgres(migCtx, pcfg.ConnConfig, cfg.DBSchema)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("db: migrate postgres: %w", err)
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	if err := PingDB(ctx, pool, 3*time.Second); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// PingDB checks if we can acquire a connection within timeout.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}
