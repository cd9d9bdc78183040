package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"bbqmaster/cmd/internal/dbtest"
)

func strPtr(s string) *string { return &s }

func exerciseStore(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2025, 7, 4, 12, 0, 0, 0, time.UTC)

	if _, err := st.FindByEmail(ctx, "sam@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before first write, got %v", err)
	}

	first, err := st.UpsertByEmail(ctx, Profile{
		Email:    "  Sam@Example.com ",
		Name:     strPtr("Sam"),
		ImageURL: strPtr("https://img.example/sam.png"),
	}, now)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if first.ID == "" || first.Email != "sam@example.com" {
		t.Fatalf("unexpected user: %+v", first)
	}

	second, err := st.UpsertByEmail(ctx, Profile{
		Email: "sam@example.com",
		Name:  strPtr("Samantha"),
	}, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same id, got %q and %q", first.ID, second.ID)
	}
	if second.Name == nil || *second.Name != "Samantha" {
		t.Fatalf("expected refreshed name, got %v", second.Name)
	}
	if second.ImageURL != nil {
		t.Fatalf("expected cleared image url, got %q", *second.ImageURL)
	}

	found, err := st.FindByEmail(ctx, "SAM@example.com")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.ID != first.ID {
		t.Fatalf("expected id %q, got %q", first.ID, found.ID)
	}

	if _, err := st.UpsertByEmail(ctx, Profile{Email: "not-an-email"}, now); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestInMemoryStore(t *testing.T) {
	t.Parallel()

	st := NewInMemoryStore()
	exerciseStore(t, st)
	if st.Len() != 1 {
		t.Fatalf("expected 1 user, got %d", st.Len())
	}
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	st, err := NewSQLiteStore(dbtest.SQLite(t))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	exerciseStore(t, st)
}

func TestPostgresStore(t *testing.T) {
	t.Parallel()

	pool, schema := dbtest.Postgres(t, "bbq_user")
	st, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	exerciseStore(t, st)
}

func TestWithSchema_RejectsInvalidIdentifier(t *testing.T) {
	t.Parallel()

	if err := WithSchema("bbq; DROP")(&PostgresStore{}); err == nil {
		t.Fatalf("expected error for invalid schema")
	}
}
