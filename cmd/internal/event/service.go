package event

import (
	"context"
	"errors"
	"strings"
	"time"

	"bbqmaster/cmd/internal/ids"
	"bbqmaster/cmd/internal/textlist"
	"bbqmaster/cmd/internal/user"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxTitleLen = 200

// CreateInput describes a new event. DateTime must already be resolved to an
// instant (see ParseDateTime).
type CreateInput struct {
	Host        user.Profile
	Title       string
	Description *string
	DateTime    time.Time
	Timezone    string
	Location    *string
	Extras      []string
	Now         time.Time
}

// Service creates and looks up events.
type Service struct {
	store  Store
	users  user.Store
	alloc  *Allocator
	tracer trace.Tracer
}

// NewService constructs a Service. alloc must insert into store.
func NewService(store Store, users user.Store, alloc *Allocator) (*Service, error) {
	if store == nil || users == nil || alloc == nil {
		return nil, ErrInvalidInput
	}
	return &Service{
		store:  store,
		users:  users,
		alloc:  alloc,
		tracer: otel.Tracer("bbqmaster/event"),
	}, nil
}

// Create upserts the host user, then inserts the event under a freshly
// allocated share code.
func (s *Service) Create(ctx context.Context, in CreateInput) (Event, error) {
	if s == nil || s.store == nil {
		return Event{}, ErrInvalidInput
	}
	ctx, span := s.tracer.Start(ctx, "event.Create")
	defer span.End()

	ev, err := s.create(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Event{}, err
	}
	span.SetAttributes(attribute.String("event.share_code", ev.ShareCode))
	return ev, nil
}

func (s *Service) create(ctx context.Context, in CreateInput) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" || len(title) > maxTitleLen {
		return Event{}, ErrInvalidInput
	}
	if in.DateTime.IsZero() {
		return Event{}, ErrInvalidInput
	}
	tz := strings.TrimSpace(in.Timezone)
	if _, err := LoadTimezone(tz); err != nil {
		return Event{}, err
	}
	if tz == "" {
		tz = "UTC"
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	host, err := s.users.UpsertByEmail(ctx, in.Host, now)
	if err != nil {
		if errors.Is(err, user.ErrInvalidInput) {
			return Event{}, ErrInvalidInput
		}
		return Event{}, err
	}

	id, err := ids.NewULID(now)
	if err != nil {
		return Event{}, err
	}

	return s.alloc.Allocate(ctx, Event{
		ID:          id,
		HostID:      host.ID,
		Title:       title,
		Description: trimPtr(in.Description),
		DateTime:    in.DateTime.UTC(),
		Timezone:    tz,
		Location:    trimPtr(in.Location),
		Extras:      textlist.Clean(in.Extras),
		CreatedAt:   now,
	})
}

// GetByCode resolves an event by share code (case-insensitive).
func (s *Service) GetByCode(ctx context.Context, code string) (Event, error) {
	if s == nil || s.store == nil {
		return Event{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	code = NormalizeShareCode(code)
	if !ValidShareCode(code) {
		return Event{}, ErrNotFound
	}

	ctx, span := s.tracer.Start(ctx, "event.GetByCode",
		trace.WithAttributes(attribute.String("event.share_code", code)))
	defer span.End()

	ev, err := s.store.GetByShareCode(ctx, code)
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return ev, err
}
