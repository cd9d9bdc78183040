// Package api serves the event and RSVP JSON endpoints.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"bbqmaster/cmd/internal/auth"
	"bbqmaster/cmd/internal/dberr"
	"bbqmaster/cmd/internal/event"
	"bbqmaster/cmd/internal/httpjson"
	"bbqmaster/cmd/internal/rsvp"
	"bbqmaster/cmd/internal/user"
)

// Handler wires HTTP endpoints to the event service and RSVP synchronizer.
type Handler struct {
	log *slog.Logger
	cfg Config

	events *event.Service
	rsvps  *rsvp.Synchronizer

	createLimiter *ipLimiter
	onCreateError func(error)
	now           func() time.Time
}

// HandlerOption configures optional Handler dependencies.
type HandlerOption func(*Handler)

// WithCreateErrorObserver is called with every failed event creation.
func WithCreateErrorObserver(fn func(error)) HandlerOption {
	return func(h *Handler) { h.onCreateError = fn }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs a Handler.
func NewHandler(log *slog.Logger, cfg Config, events *event.Service, rsvps *rsvp.Synchronizer, opts ...HandlerOption) (*Handler, error) {
	if events == nil || rsvps == nil {
		return nil, errors.New("api: nil event service or rsvp synchronizer")
	}
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()

	h := &Handler{
		log:           log,
		cfg:           cfg,
		events:        events,
		rsvps:         rsvps,
		createLimiter: newIPLimiter(cfg.CreatePerMinute, cfg.CreateBurst, cfg.LimiterIdleTTL),
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Register wires routes onto mux. Session extraction happens upstream in
// auth.Handler.Middleware.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.Handle("POST /api/events", auth.RequireSession(http.HandlerFunc(h.handleCreateEvent)))
	mux.HandleFunc("GET /api/events/{code}", h.handleGetEvent)
	mux.Handle("GET /api/events/{code}/rsvp", auth.RequireSession(http.HandlerFunc(h.handleLoadRsvp)))
	mux.Handle("PUT /api/events/{code}/rsvp", auth.RequireSession(http.HandlerFunc(h.handleSaveRsvp)))
}

// ---- events ----

func (h *Handler) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	now := h.now()

	key := sess.Email
	if ip := clientIP(r, h.cfg.TrustProxy); ip != nil {
		key = ip.String()
	}
	if ok, retryAfter := h.createLimiter.allow(key, now); !ok {
		h.log.Info("event.create.rate_limited", "key", key)
		writeRateLimited(w, retryAfter)
		return
	}

	var req createEventRequest
	if err := httpjson.Decode(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	when, err := event.ParseDateTime(req.DateTime, req.Timezone)
	if err != nil {
		httpjson.FieldError(w, http.StatusBadRequest, "invalid_request", "date_time", "date_time must be a valid date and time")
		return
	}

	ev, err := h.events.Create(r.Context(), event.CreateInput{
		Host:        user.Profile{Email: sess.Email, Name: sess.Name, ImageURL: sess.AvatarURL},
		Title:       req.Title,
		Description: req.Description,
		DateTime:    when,
		Timezone:    req.Timezone,
		Location:    req.Location,
		Extras:      req.Extras,
		Now:         now,
	})
	if err != nil {
		if h.onCreateError != nil {
			h.onCreateError(err)
		}
		switch {
		case errors.Is(err, event.ErrShareCodeExhausted):
			h.log.Error("event.create.exhausted", "err", err)
			httpjson.Error(w, http.StatusServiceUnavailable, "share_code_exhausted", "could not allocate a share code, please retry")
		case event.IsInvalidInput(err):
			httpjson.Error(w, http.StatusBadRequest, "invalid_request", "title, date_time and timezone must be valid")
		default:
			h.log.Error("event.create.fail", "err", err)
			httpjson.Error(w, http.StatusInternalServerError, "server_error", dberr.Message(err))
		}
		return
	}

	h.log.Info("event.create.ok", "event_id", ev.ID, "share_code", ev.ShareCode)
	httpjson.Write(w, http.StatusCreated, toEventResponse(ev, h.cfg.PublicBaseURL))
}

func (h *Handler) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.lookupEvent(w, r)
	if !ok {
		return
	}
	httpjson.Write(w, http.StatusOK, toEventResponse(ev, h.cfg.PublicBaseURL))
}

// ---- rsvp ----

func (h *Handler) handleLoadRsvp(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.lookupEvent(w, r)
	if !ok {
		return
	}
	sess, _ := auth.FromContext(r.Context())

	form := h.rsvps.Load(r.Context(), ev, identityOf(sess))
	httpjson.Write(w, http.StatusOK, rsvpFormResponse{
		Event:   toEventResponse(ev, h.cfg.PublicBaseURL),
		Form:    form,
		Options: rsvp.Options(),
	})
}

func (h *Handler) handleSaveRsvp(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.lookupEvent(w, r)
	if !ok {
		return
	}
	sess, _ := auth.FromContext(r.Context())

	var form rsvp.Form
	if err := httpjson.Decode(w, r, h.cfg.MaxBodyBytes, &form); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	saved, err := h.rsvps.Save(r.Context(), ev, identityOf(sess), form)
	if err != nil {
		var ve *rsvp.ValidationError
		switch {
		case errors.As(err, &ve):
			httpjson.FieldError(w, http.StatusUnprocessableEntity, "validation_failed", ve.Field, ve.Message)
		case errors.Is(err, rsvp.ErrInvalidInput):
			httpjson.Error(w, http.StatusBadRequest, "invalid_request", "invalid rsvp")
		default:
			h.log.Error("rsvp.save.fail", "event_id", ev.ID, "err", err)
			httpjson.Error(w, http.StatusInternalServerError, "server_error", dberr.Message(err))
		}
		return
	}

	h.log.Info("rsvp.save.ok", "event_id", ev.ID, "rsvp_id", saved.ID, "status", saved.Status)
	httpjson.Write(w, http.StatusOK, toRsvpResponse(saved))
}

// ---- helpers ----

func (h *Handler) lookupEvent(w http.ResponseWriter, r *http.Request) (event.Event, bool) {
	ev, err := h.events.GetByCode(r.Context(), r.PathValue("code"))
	switch {
	case err == nil:
		return ev, true
	case event.IsNotFound(err):
		httpjson.Error(w, http.StatusNotFound, "event_not_found", "event not found")
	default:
		h.log.Error("event.lookup.fail", "err", err)
		httpjson.Error(w, http.StatusInternalServerError, "server_error", dberr.Message(err))
	}
	return event.Event{}, false
}

func identityOf(s auth.Session) rsvp.Identity {
	return rsvp.Identity{Email: s.Email, Name: s.Name, AvatarURL: s.AvatarURL}
}
