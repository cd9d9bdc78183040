package rsvp

import (
	"context"
	"errors"
	"testing"
	"time"

	"bbqmaster/cmd/internal/dbtest"
	"bbqmaster/cmd/internal/event"
	"bbqmaster/cmd/internal/user"
)

func exerciseStore(t *testing.T, st Store, eventID, userID string) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	if _, err := st.Get(ctx, eventID, userID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	note := "bringing the grill"
	first, err := st.Upsert(ctx, Rsvp{
		ID:        "01J2RSVP00000000000000000A",
		EventID:   eventID,
		UserID:    userID,
		Status:    StatusYes,
		Note:      &note,
		Family:    []FamilyMember{{Name: "Sam", Adult: true}, {Name: "Kit", Adult: false}},
		WillBring: []string{"salad"},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second, err := st.Upsert(ctx, Rsvp{
		ID:        "01J2RSVP00000000000000000B",
		EventID:   eventID,
		UserID:    userID,
		Status:    StatusNo,
		UpdatedAt: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected conflict target to keep row %q, got %q", first.ID, second.ID)
	}

	got, err := st.Get(ctx, eventID, userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusNo || got.Note != nil || len(got.Family) != 0 || len(got.WillBring) != 0 {
		t.Fatalf("expected content fully replaced, got %+v", got)
	}
	if !got.UpdatedAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected updated_at %v, got %v", now.Add(time.Hour), got.UpdatedAt)
	}
}

func TestInMemoryStore(t *testing.T) {
	t.Parallel()
	exerciseStore(t, NewInMemoryStore(), "E1", "U1")
}

func seedEvent(t *testing.T, users user.Store, events event.Store) (string, string) {
	t.Helper()
	ctx := context.Background()
	host, err := users.UpsertByEmail(ctx, user.Profile{Email: "host@example.com"}, time.Now().UTC())
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	guest, err := users.UpsertByEmail(ctx, user.Profile{Email: "guest@example.com"}, time.Now().UTC())
	if err != nil {
		t.Fatalf("guest: %v", err)
	}
	ev, err := events.Insert(ctx, event.Event{
		ID:        "01J2EVENT0000000000000000A",
		HostID:    host.ID,
		Title:     "Cookout",
		DateTime:  time.Date(2025, 7, 4, 22, 0, 0, 0, time.UTC),
		Timezone:  "UTC",
		ShareCode: "COOK123",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("event: %v", err)
	}
	return ev.ID, guest.ID
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	db := dbtest.SQLite(t)
	users, _ := user.NewSQLiteStore(db)
	events, _ := event.NewSQLiteStore(db)
	eventID, userID := seedEvent(t, users, events)

	st, err := NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	exerciseStore(t, st, eventID, userID)

	_, err = st.Upsert(context.Background(), Rsvp{ID: "X", EventID: "missing", UserID: userID, Status: StatusYes})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected foreign key failure as ErrInvalidInput, got %v", err)
	}
}

func TestPostgresStore(t *testing.T) {
	t.Parallel()

	pool, schema := dbtest.Postgres(t, "bbq_rsvp")
	users, _ := user.NewPostgresStore(pool, user.WithSchema(schema))
	events, _ := event.NewPostgresStore(pool, event.WithSchema(schema))
	eventID, userID := seedEvent(t, users, events)

	st, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	exerciseStore(t, st, eventID, userID)
}
