package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"bbqmaster/cmd/internal/event"
	"bbqmaster/cmd/internal/rsvp"
	v1 "bbqmaster/shared/contracts/live/v1"

	"github.com/coder/websocket"
)

const testCode = "COOK123"

func newTestGateway(t *testing.T, cfg GatewayConfig) (*Hub, *httptest.Server) {
	t.Helper()

	hub := NewHub(testLogger())
	resolve := func(_ context.Context, code string) (event.Event, error) {
		if event.NormalizeShareCode(code) != testCode {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{ID: "ev1", Title: "Cookout", ShareCode: testCode}, nil
	}
	gw, err := NewGateway(testLogger(), hub, resolve, cfg)
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /e/{code}/live", gw)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return hub, ts
}

func dialLive(t *testing.T, baseHTTPURL, code, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()

	u, err := url.Parse(baseHTTPURL)
	if err != nil {
		t.Fatalf("url.Parse: %v", err)
	}
	u.Scheme = "ws"
	u.Path = "/e/" + code + "/live"

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		Subprotocols: []string{v1.Subprotocol},
		HTTPHeader:   h,
	})
}

func readUntilType(t *testing.T, conn *websocket.Conn, typ string, maxReads int) v1.Envelope {
	t.Helper()
	for i := 0; i < maxReads; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, b, err := conn.Read(ctx)
		cancel()
		if err != nil {
			t.Fatalf("conn.Read: %v", err)
		}
		var env v1.Envelope
		if err := json.Unmarshal(b, &env); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		if env.Type == typ {
			return env
		}
	}
	t.Fatalf("did not receive envelope type %q", typ)
	return v1.Envelope{}
}

func writeRaw(t *testing.T, conn *websocket.Conn, b []byte) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		t.Fatalf("conn.Write: %v", err)
	}
}

func TestGateway_HelloPingAndSavedBroadcast(t *testing.T) {
	t.Parallel()

	hub, ts := newTestGateway(t, DefaultGatewayConfig())

	conn, resp, err := dialLive(t, ts.URL, testCode, "http://localhost")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "done") }()

	if got := conn.Subprotocol(); got != v1.Subprotocol {
		t.Fatalf("subprotocol=%q want=%q", got, v1.Subprotocol)
	}

	hello := readUntilType(t, conn, v1.TypeHello, 1)
	var hp v1.HelloPayload
	if err := json.Unmarshal(hello.Payload, &hp); err != nil {
		t.Fatalf("unmarshal hello: %v", err)
	}
	if hp.Code != testCode || hp.Title != "Cookout" || hp.ConnectionID == "" {
		t.Fatalf("unexpected hello: %+v", hp)
	}

	ping, _ := json.Marshal(v1.Envelope{V: v1.Version, Type: v1.TypePing, TS: time.Now().UTC()})
	writeRaw(t, conn, ping)
	readUntilType(t, conn, v1.TypePong, 3)

	hub.PublishSaved(context.Background(), rsvp.Saved{
		Event: event.Event{ID: "ev1", ShareCode: testCode},
		Name:  "Ada",
		Rsvp:  rsvp.Rsvp{Status: rsvp.StatusYes, UpdatedAt: time.Now().UTC()},
	})

	saved := readUntilType(t, conn, v1.TypeRsvpSaved, 3)
	var sp v1.RsvpSavedPayload
	if err := json.Unmarshal(saved.Payload, &sp); err != nil {
		t.Fatalf("unmarshal saved: %v", err)
	}
	if sp.Name != "Ada" || sp.Status != "YES" {
		t.Fatalf("unexpected saved payload: %+v", sp)
	}
}

func TestGateway_RejectsUnsupportedEnvelope(t *testing.T) {
	t.Parallel()

	_, ts := newTestGateway(t, DefaultGatewayConfig())

	conn, resp, err := dialLive(t, ts.URL, testCode, "http://localhost")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "done") }()

	readUntilType(t, conn, v1.TypeHello, 1)

	writeRaw(t, conn, []byte(`{"v":"v1","type":"rsvp.saved","ts":"2025-07-04T18:00:00Z"}`))
	env := readUntilType(t, conn, v1.TypeError, 3)
	var ep v1.ErrorPayload
	if err := json.Unmarshal(env.Payload, &ep); err != nil {
		t.Fatalf("unmarshal error payload: %v", err)
	}
	if ep.Code != "bad_envelope" {
		t.Fatalf("error code=%q want=bad_envelope", ep.Code)
	}

	writeRaw(t, conn, []byte(`{not json`))
	env = readUntilType(t, conn, v1.TypeError, 3)
	if err := json.Unmarshal(env.Payload, &ep); err != nil {
		t.Fatalf("unmarshal error payload: %v", err)
	}
	if ep.Code != "bad_json" {
		t.Fatalf("error code=%q want=bad_json", ep.Code)
	}
}

func TestGateway_HandshakeRejections(t *testing.T) {
	t.Parallel()

	_, ts := newTestGateway(t, DefaultGatewayConfig())

	cases := []struct {
		name   string
		code   string
		origin string
		want   int
	}{
		{name: "unknown code", code: "NOPE000", origin: "http://localhost", want: http.StatusNotFound},
		{name: "missing origin", code: testCode, origin: "", want: http.StatusForbidden},
		{name: "foreign origin", code: testCode, origin: "https://evil.example", want: http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, resp, err := dialLive(t, ts.URL, tc.code, tc.origin)
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
			if err == nil {
				t.Fatalf("expected handshake failure")
			}
			if resp == nil || resp.StatusCode != tc.want {
				status := 0
				if resp != nil {
					status = resp.StatusCode
				}
				t.Fatalf("status=%d want=%d err=%v", status, tc.want, err)
			}
		})
	}
}

func TestGateway_RateLimitClosesConnection(t *testing.T) {
	t.Parallel()

	cfg := DefaultGatewayConfig()
	cfg.RateEvents = 2
	cfg.RateWindow = time.Minute
	_, ts := newTestGateway(t, cfg)

	conn, resp, err := dialLive(t, ts.URL, testCode, "http://localhost")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "done") }()

	readUntilType(t, conn, v1.TypeHello, 1)

	ping, _ := json.Marshal(v1.Envelope{V: v1.Version, Type: v1.TypePing, TS: time.Now().UTC()})
	for i := 0; i < 3; i++ {
		writeRaw(t, conn, ping)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		_, _, err := conn.Read(ctx)
		if err == nil {
			continue
		}
		if got := websocket.CloseStatus(err); got != websocket.StatusPolicyViolation {
			t.Fatalf("close status=%v want=%v err=%v", got, websocket.StatusPolicyViolation, err)
		}
		return
	}
}
