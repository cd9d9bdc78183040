package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bbqmaster/cmd/internal/auth"
	"bbqmaster/cmd/internal/event"
	"bbqmaster/cmd/internal/httpjson"
	"bbqmaster/cmd/internal/rsvp"
	"bbqmaster/cmd/internal/user"
)

type fixture struct {
	mux      *http.ServeMux
	events   *event.InMemoryStore
	rsvps    *rsvp.InMemoryStore
	users    *user.InMemoryStore
	failures []error
}

// storeWrap lets a test put a faulty store in front of the in-memory ones.
type storeWrap struct {
	events func(event.Store) event.Store
	rsvps  func(rsvp.Store) rsvp.Store
}

func newFixture(t *testing.T, cfg Config, allocOpts ...event.AllocatorOption) *fixture {
	t.Helper()
	return newWrappedFixture(t, cfg, storeWrap{}, allocOpts...)
}

func newWrappedFixture(t *testing.T, cfg Config, wrap storeWrap, allocOpts ...event.AllocatorOption) *fixture {
	t.Helper()

	f := &fixture{
		events: event.NewInMemoryStore(),
		rsvps:  rsvp.NewInMemoryStore(),
		users:  user.NewInMemoryStore(),
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	var events event.Store = f.events
	if wrap.events != nil {
		events = wrap.events(events)
	}
	var rsvps rsvp.Store = f.rsvps
	if wrap.rsvps != nil {
		rsvps = wrap.rsvps(rsvps)
	}

	alloc, err := event.NewAllocator(events, allocOpts...)
	if err != nil {
		t.Fatalf("NewAllocator: %v", err)
	}
	svc, err := event.NewService(events, f.users, alloc)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	sync, err := rsvp.NewSynchronizer(f.users, rsvps, rsvp.WithLogger(log))
	if err != nil {
		t.Fatalf("NewSynchronizer: %v", err)
	}
	h, err := NewHandler(log, cfg, svc, sync, WithCreateErrorObserver(func(err error) {
		f.failures = append(f.failures, err)
	}))
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	f.mux = http.NewServeMux()
	h.Register(f.mux)
	return f
}

func (f *fixture) do(t *testing.T, method, path, email string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rdr = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			rdr = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, rdr)
	req.RemoteAddr = "203.0.113.7:5555"
	if email != "" {
		name := "Ada Host"
		req = req.WithContext(auth.WithSession(req.Context(), auth.Session{Email: email, Name: &name}))
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func createCookout(t *testing.T, f *fixture) eventResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/events", "host@example.com", map[string]any{
		"title":     "Cookout",
		"date_time": "2025-07-04T18:00",
		"timezone":  "America/New_York",
		"extras":    "Pool, Kids welcome,",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rec.Code, rec.Body.String())
	}
	return decodeBody[eventResponse](t, rec)
}

func TestCreateEvent_AndFetchByCode(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.PublicBaseURL = "https://bbq.example.com/"
	f := newFixture(t, cfg)

	ev := createCookout(t, f)
	if len(ev.ShareCode) != event.DefaultShareCodeLength || !event.ValidShareCode(ev.ShareCode) {
		t.Fatalf("bad share code %q", ev.ShareCode)
	}
	if ev.ShareURL != "https://bbq.example.com/e/"+ev.ShareCode {
		t.Fatalf("share_url=%q", ev.ShareURL)
	}
	want := time.Date(2025, 7, 4, 22, 0, 0, 0, time.UTC)
	if !ev.DateTime.Equal(want) {
		t.Fatalf("date_time=%v want=%v", ev.DateTime, want)
	}
	if len(ev.Extras) != 2 || ev.Extras[0] != "Pool" || ev.Extras[1] != "Kids welcome" {
		t.Fatalf("extras=%v", ev.Extras)
	}
	if f.users.Len() != 1 {
		t.Fatalf("host not upserted, users=%d", f.users.Len())
	}

	rec := f.do(t, http.MethodGet, "/api/events/"+ev.ShareCode, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status=%d", rec.Code)
	}
	got := decodeBody[eventResponse](t, rec)
	if got.ID != ev.ID || got.Title != "Cookout" {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestCreateEvent_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		email string
		body  any
		want  int
		code  string
	}{
		{name: "no session", body: map[string]any{"title": "x", "date_time": "2025-07-04T18:00"}, want: http.StatusUnauthorized, code: "unauthorized"},
		{name: "bad json", email: "h@example.com", body: "{", want: http.StatusBadRequest, code: "invalid_json"},
		{name: "unknown field", email: "h@example.com", body: map[string]any{"title": "x", "date_time": "2025-07-04T18:00", "bogus": 1}, want: http.StatusBadRequest, code: "invalid_json"},
		{name: "missing date", email: "h@example.com", body: map[string]any{"title": "x"}, want: http.StatusBadRequest, code: "invalid_request"},
		{name: "blank title", email: "h@example.com", body: map[string]any{"title": "  ", "date_time": "2025-07-04T18:00"}, want: http.StatusBadRequest, code: "invalid_request"},
		{name: "unknown zone", email: "h@example.com", body: map[string]any{"title": "x", "date_time": "2025-07-04T18:00", "timezone": "Mars/Olympus"}, want: http.StatusBadRequest, code: "invalid_request"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, DefaultConfig())

			rec := f.do(t, http.MethodPost, "/api/events", tc.email, tc.body)
			if rec.Code != tc.want {
				t.Fatalf("status=%d want=%d body=%s", rec.Code, tc.want, rec.Body.String())
			}
			if got := decodeBody[httpjson.ErrorResponse](t, rec); got.Error.Code != tc.code {
				t.Fatalf("code=%q want=%q", got.Error.Code, tc.code)
			}
			if f.events.Len() != 0 {
				t.Fatalf("events written on failure: %d", f.events.Len())
			}
		})
	}
}

func TestCreateEvent_ShareCodeExhausted(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultConfig(), event.WithGenerator(func() string { return "TAKEN00" }))
	if _, err := f.events.Insert(context.Background(), event.Event{ID: "existing", Title: "Other", ShareCode: "TAKEN00"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := f.do(t, http.MethodPost, "/api/events", "host@example.com", map[string]any{
		"title":     "Cookout",
		"date_time": "2025-07-04T18:00:00Z",
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[httpjson.ErrorResponse](t, rec); got.Error.Code != "share_code_exhausted" {
		t.Fatalf("code=%q", got.Error.Code)
	}
	if f.events.Len() != 1 {
		t.Fatalf("rows=%d want=1", f.events.Len())
	}
	if len(f.failures) != 1 || !errors.Is(f.failures[0], event.ErrShareCodeExhausted) {
		t.Fatalf("observer got %v", f.failures)
	}
}

func TestCreateEvent_RateLimitedPerIP(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.CreatePerMinute = 1
	cfg.CreateBurst = 2
	f := newFixture(t, cfg)

	body := map[string]any{"title": "Cookout", "date_time": "2025-07-04T18:00:00Z"}
	for i := 0; i < 2; i++ {
		if rec := f.do(t, http.MethodPost, "/api/events", "host@example.com", body); rec.Code != http.StatusCreated {
			t.Fatalf("request %d status=%d", i, rec.Code)
		}
	}
	rec := f.do(t, http.MethodPost, "/api/events", "host@example.com", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d want=429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
}

func TestGetEvent_NotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultConfig())
	for _, code := range []string{"ZZZZZZZ", "bad"} {
		rec := f.do(t, http.MethodGet, "/api/events/"+code, "", nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: status=%d", code, rec.Code)
		}
		if got := decodeBody[httpjson.ErrorResponse](t, rec); got.Error.Code != "event_not_found" {
			t.Fatalf("%s: code=%q", code, got.Error.Code)
		}
	}
}

func TestRsvp_SaveAndPrefill(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultConfig())
	ev := createCookout(t, f)
	path := "/api/events/" + ev.ShareCode + "/rsvp"

	rec := f.do(t, http.MethodGet, path, "guest@example.com", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("load status=%d", rec.Code)
	}
	empty := decodeBody[rsvpFormResponse](t, rec)
	if empty.Form.Status != "" || len(empty.Form.Family) != 0 || len(empty.Options) != 4 {
		t.Fatalf("unexpected empty prefill: %+v", empty)
	}
	if empty.Options[1].Label != "Sure, but late as usual" {
		t.Fatalf("label=%q", empty.Options[1].Label)
	}

	rec = f.do(t, http.MethodPut, path, "guest@example.com", rsvp.Form{
		Status:    "YES",
		Note:      "bringing the grill",
		Family:    []rsvp.FamilyMember{{Name: "Sam", Adult: true}},
		WillBring: "salad, beer,  ice ,",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("save status=%d body=%s", rec.Code, rec.Body.String())
	}
	first := decodeBody[rsvpResponse](t, rec)
	if first.Label != "Of Course!" || len(first.WillBring) != 3 {
		t.Fatalf("unexpected rsvp: %+v", first)
	}

	rec = f.do(t, http.MethodPut, path, "guest@example.com", rsvp.Form{Status: "NO"})
	if rec.Code != http.StatusOK {
		t.Fatalf("second save status=%d", rec.Code)
	}
	second := decodeBody[rsvpResponse](t, rec)
	if second.ID != first.ID || second.Status != rsvp.StatusNo || second.Note != nil {
		t.Fatalf("unexpected second rsvp: %+v", second)
	}
	if f.rsvps.Len() != 1 {
		t.Fatalf("rsvp rows=%d want=1", f.rsvps.Len())
	}

	rec = f.do(t, http.MethodGet, path, "GUEST@example.com", nil)
	prefill := decodeBody[rsvpFormResponse](t, rec)
	if prefill.Form.Status != "NO" || prefill.Form.Note != "" || prefill.Form.WillBring != "" {
		t.Fatalf("unexpected prefill: %+v", prefill.Form)
	}
}

func TestRsvp_ValidationAndAuth(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultConfig())
	ev := createCookout(t, f)
	path := "/api/events/" + ev.ShareCode + "/rsvp"
	usersBefore := f.users.Len()

	rec := f.do(t, http.MethodPut, path, "guest@example.com", rsvp.Form{Note: "no status"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d want=422", rec.Code)
	}
	got := decodeBody[httpjson.ErrorResponse](t, rec)
	if got.Error.Message != "Please choose an RSVP option." || got.Error.Field != "status" {
		t.Fatalf("unexpected error: %+v", got.Error)
	}
	if f.rsvps.Len() != 0 || f.users.Len() != usersBefore {
		t.Fatalf("store touched on validation failure")
	}

	rec = f.do(t, http.MethodPut, path, "guest@example.com", rsvp.Form{Status: "PERHAPS"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown status: code=%d", rec.Code)
	}

	rec = f.do(t, http.MethodPut, path, "", rsvp.Form{Status: "YES"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous save: code=%d", rec.Code)
	}

	rec = f.do(t, http.MethodPut, "/api/events/NOPE000/rsvp", "guest@example.com", rsvp.Form{Status: "YES"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown event: code=%d", rec.Code)
	}
}

func TestTextOrList(t *testing.T) {
	t.Parallel()

	cases := map[string][]string{
		`"a, b ,, c"`:  {"a", "b", "c"},
		`["x", "y z"]`: {"x", "y z"},
		`null`:         nil,
	}
	for in, want := range cases {
		var got textOrList
		if err := json.Unmarshal([]byte(in), &got); err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if len(got) != len(want) {
			t.Fatalf("%s: got=%v want=%v", in, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%s: got=%v want=%v", in, got, want)
			}
		}
	}
}

type failingEvents struct {
	event.Store
	err error
}

func (s failingEvents) Insert(context.Context, event.Event) (event.Event, error) {
	return event.Event{}, s.err
}

type failingRsvps struct {
	rsvp.Store
	err error
}

func (s failingRsvps) Upsert(context.Context, rsvp.Rsvp) (rsvp.Rsvp, error) {
	return rsvp.Rsvp{}, s.err
}

func TestBackendErrorsReachTheUser(t *testing.T) {
	t.Parallel()

	t.Run("event create", func(t *testing.T) {
		t.Parallel()

		f := newWrappedFixture(t, DefaultConfig(), storeWrap{
			events: func(inner event.Store) event.Store {
				return failingEvents{Store: inner, err: fmt.Errorf("event.Insert: %w", errors.New("permission denied for table events"))}
			},
		})
		rec := f.do(t, http.MethodPost, "/api/events", "host@example.com", map[string]any{
			"title":     "Cookout",
			"date_time": "2025-07-04T18:00",
			"timezone":  "UTC",
		})
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
		}
		got := decodeBody[httpjson.ErrorResponse](t, rec)
		if got.Error.Code != "server_error" || got.Error.Message != "permission denied for table events" {
			t.Fatalf("unexpected error body: %+v", got.Error)
		}
	})

	t.Run("rsvp save", func(t *testing.T) {
		t.Parallel()

		f := newWrappedFixture(t, DefaultConfig(), storeWrap{
			rsvps: func(inner rsvp.Store) rsvp.Store {
				return failingRsvps{Store: inner, err: errors.New("permission denied for table rsvps")}
			},
		})
		ev := createCookout(t, f)
		rec := f.do(t, http.MethodPut, "/api/events/"+ev.ShareCode+"/rsvp", "guest@example.com", rsvp.Form{Status: "YES"})
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
		}
		got := decodeBody[httpjson.ErrorResponse](t, rec)
		if got.Error.Code != "server_error" || got.Error.Message != "permission denied for table rsvps" {
			t.Fatalf("unexpected error body: %+v", got.Error)
		}
	})
}
