package rsvp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"bbqmaster/cmd/internal/event"
	"bbqmaster/cmd/internal/ids"
	"bbqmaster/cmd/internal/user"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// Identity is the signed-in guest as reported by the identity provider.
type Identity struct {
	Email     string
	Name      *string
	AvatarURL *string
}

// Saved is published after every successful write.
type Saved struct {
	Event event.Event
	Name  string
	Rsvp  Rsvp
}

// Synchronizer maps (event, guest email) onto a single RSVP row.
type Synchronizer struct {
	users   user.Store
	store   Store
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time
	publish func(context.Context, Saved)
	observe func(Status, error)

	inflight singleflight.Group
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger used for swallowed prefill failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPublisher registers fn to receive every successful save.
func WithPublisher(fn func(context.Context, Saved)) Option {
	return func(s *Synchronizer) { s.publish = fn }
}

// WithObserver registers fn to receive the outcome of every executed save.
// status is empty when validation failed.
func WithObserver(fn func(Status, error)) Option {
	return func(s *Synchronizer) { s.observe = fn }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSynchronizer constructs a Synchronizer.
func NewSynchronizer(users user.Store, store Store, opts ...Option) (*Synchronizer, error) {
	if users == nil || store == nil {
		return nil, ErrInvalidInput
	}
	s := &Synchronizer{
		users:  users,
		store:  store,
		logger: slog.Default(),
		tracer: otel.Tracer("bbqmaster/rsvp"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Load returns the guest's stored RSVP for ev as a Form, or EmptyForm.
// It never creates a user row and never fails: lookup errors are logged at
// debug level and produce an empty form.
func (s *Synchronizer) Load(ctx context.Context, ev event.Event, id Identity) Form {
	ctx, span := s.tracer.Start(ctx, "rsvp.Load",
		trace.WithAttributes(attribute.String("event.id", ev.ID)))
	defer span.End()

	email := user.NormalizeEmail(id.Email)
	if email == "" || ev.ID == "" {
		return EmptyForm()
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			s.logger.DebugContext(ctx, "rsvp.prefill.user_lookup_failed", "event_id", ev.ID, "err", err)
		}
		return EmptyForm()
	}

	r, err := s.store.Get(ctx, ev.ID, u.ID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.DebugContext(ctx, "rsvp.prefill.rsvp_lookup_failed", "event_id", ev.ID, "err", err)
		}
		return EmptyForm()
	}
	return FormFromRsvp(r)
}

// Save validates f and writes it as the guest's RSVP for ev.
//
// A missing status fails with ErrStatusRequired before any store call. The
// user row is upserted on every save so name and avatar follow the identity
// provider. Concurrent identical submissions share one write.
func (s *Synchronizer) Save(ctx context.Context, ev event.Event, id Identity, f Form) (Rsvp, error) {
	ctx, span := s.tracer.Start(ctx, "rsvp.Save",
		trace.WithAttributes(attribute.String("event.id", ev.ID)))
	defer span.End()

	status, err := ParseStatus(f.Status)
	if err != nil {
		s.record(span, "", err)
		return Rsvp{}, err
	}
	email := user.NormalizeEmail(id.Email)
	if email == "" || ev.ID == "" {
		s.record(span, status, ErrInvalidInput)
		return Rsvp{}, ErrInvalidInput
	}
	span.SetAttributes(attribute.String("rsvp.status", string(status)))

	// The shared write outlives any single caller; each caller still
	// stops waiting when its own context ends.
	key := inflightKey(ev.ID, email, status, id, f)
	writeCtx := context.WithoutCancel(ctx)
	ch := s.inflight.DoChan(key, func() (any, error) {
		r, err := s.save(writeCtx, ev, id, status, f)
		if s.observe != nil {
			s.observe(status, err)
		}
		return r, err
	})

	select {
	case <-ctx.Done():
		err := ctx.Err()
		markSpan(span, err)
		return Rsvp{}, err
	case res := <-ch:
		if res.Shared {
			span.SetAttributes(attribute.Bool("rsvp.shared", true))
		}
		markSpan(span, res.Err)
		if res.Err != nil {
			return Rsvp{}, res.Err
		}
		return res.Val.(Rsvp), nil
	}
}

func (s *Synchronizer) save(ctx context.Context, ev event.Event, id Identity, status Status, f Form) (Rsvp, error) {
	now := s.now()

	u, err := s.users.UpsertByEmail(ctx, user.Profile{
		Email:    id.Email,
		Name:     id.Name,
		ImageURL: id.AvatarURL,
	}, now)
	if err != nil {
		return Rsvp{}, err
	}

	rid, err := ids.NewULID(now)
	if err != nil {
		return Rsvp{}, err
	}
	family := f.Family
	if family == nil {
		family = []FamilyMember{}
	}

	out, err := s.store.Upsert(ctx, Rsvp{
		ID:        rid,
		EventID:   ev.ID,
		UserID:    u.ID,
		Status:    status,
		Note:      noteOrNil(f.Note),
		Family:    family,
		WillBring: ParseBring(f.WillBring),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Rsvp{}, err
	}

	if s.publish != nil {
		name := u.Email
		if u.Name != nil {
			name = *u.Name
		}
		s.publish(context.WithoutCancel(ctx), Saved{Event: ev, Name: name, Rsvp: out})
	}
	return out, nil
}

func (s *Synchronizer) record(span trace.Span, status Status, err error) {
	markSpan(span, err)
	if s.observe != nil {
		s.observe(status, err)
	}
}

func markSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func inflightKey(eventID, email string, status Status, id Identity, f Form) string {
	payload, _ := json.Marshal(struct {
		Name      *string        `json:"u"`
		Avatar    *string        `json:"a"`
		Note      string         `json:"n"`
		Family    []FamilyMember `json:"f"`
		WillBring []string       `json:"b"`
	}{id.Name, id.AvatarURL, f.Note, f.Family, ParseBring(f.WillBring)})
	sum := sha256.Sum256(payload)
	return strings.Join([]string{eventID, email, string(status), hex.EncodeToString(sum[:])}, "|")
}
