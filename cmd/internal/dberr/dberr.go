// Package dberr classifies driver errors (Postgres via pgconn, SQLite via
// modernc.org/sqlite) into the few kinds the stores care about.
package dberr

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// UniqueViolation reports whether err is a unique-constraint violation.
//
// target identifies the violated constraint: the constraint name for Postgres
// ("uq_events_share_code"), or the "table.column" list SQLite puts in its
// message ("events.share_code"). It is lower-cased.
func UniqueViolation(err error) (target string, ok bool) {
	if err == nil {
		return "", false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return "", false
		}
		return strings.ToLower(strings.TrimSpace(pgErr.ConstraintName)), true
	}

	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return sqliteConstraintTarget(sqliteErr.Error()), true
		}
		return "", false
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint failed") {
		return sqliteConstraintTarget(msg), true
	}
	return "", false
}

// ForeignKeyViolation reports whether err is a foreign-key violation.
func ForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}

// NoRows reports whether err means "select matched nothing" for either driver.
func NoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

// Message returns the backend's own text for err: the Postgres message when
// err carries a PgError, otherwise the innermost wrapped error's text.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.TrimSpace(pgErr.Message) != "" {
		return pgErr.Message
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

// Mentions reports whether a constraint target refers to the given name
// fragment ("share_code", "email", ...).
func Mentions(target, fragment string) bool {
	return strings.Contains(target, strings.ToLower(fragment))
}

func sqliteConstraintTarget(msg string) string {
	msg = strings.ToLower(msg)
	const marker = "unique constraint failed:"
	i := strings.Index(msg, marker)
	if i < 0 {
		return msg
	}
	rest := strings.TrimSpace(msg[i+len(marker):])
	if j := strings.IndexAny(rest, "()"); j >= 0 {
		rest = strings.TrimSpace(rest[:j])
	}
	return rest
}
