// Package main provides a CI-friendly smoke test for the live RSVP feed.
//
// It validates:
//   - handshake + subprotocol selection
//   - hello for the requested share code
//   - ping -> pong
//
// With -watch it keeps printing envelopes until interrupted.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	v1 "bbqmaster/shared/contracts/live/v1"

	"github.com/coder/websocket"
)

const maxReadBytes = 1 << 20 // 1MiB

func main() {
	var (
		wsURL   = flag.String("url", "ws://127.0.0.1:8080/e/ABC1234/live", "Live feed URL")
		origin  = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		watch   = flag.Bool("watch", false, "Keep printing envelopes after the checks pass")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateWSURL(*wsURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}

	root, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn := mustConnect(root, *wsURL, *origin, *timeout)
	defer closeWS(conn)

	hello := mustRead(root, conn, *timeout)
	if hello.Type != v1.TypeHello {
		fatalf("expected %s, got %s", v1.TypeHello, hello.Type)
	}
	var hp v1.HelloPayload
	if err := json.Unmarshal(hello.Payload, &hp); err != nil {
		fatalf("decode hello: %v", err)
	}
	if *verbose {
		fmt.Printf("connected: conn=%s code=%s title=%q\n", hp.ConnectionID, hp.Code, hp.Title)
	}

	nonce := fmt.Sprintf("ping-%d", time.Now().UnixNano())
	payload, _ := json.Marshal(map[string]string{"nonce": nonce})
	mustWrite(root, conn, v1.Envelope{V: v1.Version, Type: v1.TypePing, TS: time.Now().UTC(), Payload: payload}, *timeout)

	pong := mustRead(root, conn, *timeout)
	if pong.Type != v1.TypePong {
		fatalf("expected %s, got %s", v1.TypePong, pong.Type)
	}
	var echoed struct {
		Nonce string `json:"nonce"`
	}
	if err := json.Unmarshal(pong.Payload, &echoed); err != nil || echoed.Nonce != nonce {
		fatalf("pong payload mismatch: got=%s want nonce=%q", string(pong.Payload), nonce)
	}

	fmt.Printf("OK: conn=%s code=%s\n", hp.ConnectionID, hp.Code)

	if !*watch {
		return
	}
	for {
		env, err := readEnvelope(root, conn, 0)
		if err != nil {
			if root.Err() != nil {
				return
			}
			fatalf("read: %v", err)
		}
		printEnvelope(env)
	}
}

func mustConnect(parent context.Context, wsURL, origin string, stepTimeout time.Duration) *websocket.Conn {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	hdr := http.Header{}
	if strings.TrimSpace(origin) != "" {
		hdr.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{v1.Subprotocol},
		HTTPHeader:   hdr,
	})
	if err != nil {
		if resp != nil {
			fatalf("dial: %v (status=%d)", err, resp.StatusCode)
		}
		fatalf("dial: %v", err)
	}
	if got := conn.Subprotocol(); got != v1.Subprotocol {
		closeWS(conn)
		fatalf("subprotocol mismatch: got=%q want=%q", got, v1.Subprotocol)
	}
	conn.SetReadLimit(maxReadBytes)
	return conn
}

func mustRead(parent context.Context, conn *websocket.Conn, stepTimeout time.Duration) v1.Envelope {
	env, err := readEnvelope(parent, conn, stepTimeout)
	if err != nil {
		fatalf("read: %v", err)
	}
	return env
}

func readEnvelope(parent context.Context, conn *websocket.Conn, stepTimeout time.Duration) (v1.Envelope, error) {
	ctx := parent
	if stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, stepTimeout)
		defer cancel()
	}

	typ, data, err := conn.Read(ctx)
	if err != nil {
		return v1.Envelope{}, err
	}
	if typ != websocket.MessageText {
		return v1.Envelope{}, fmt.Errorf("unexpected message type: %v", typ)
	}

	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return v1.Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.V != v1.Version {
		return v1.Envelope{}, fmt.Errorf("unexpected version: %q", env.V)
	}
	return env, nil
}

func mustWrite(parent context.Context, conn *websocket.Conn, env v1.Envelope, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	data, err := json.Marshal(env)
	if err != nil {
		fatalf("encode %s: %v", env.Type, err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		fatalf("write %s: %v", env.Type, err)
	}
}

func printEnvelope(env v1.Envelope) {
	switch env.Type {
	case v1.TypeRsvpSaved:
		var p v1.RsvpSavedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			fmt.Printf("%s %s (undecodable: %v)\n", env.TS.Format(time.RFC3339), env.Type, err)
			return
		}
		fmt.Printf("%s %s name=%q status=%s family=%d bring=%s\n",
			p.SavedAt.Format(time.RFC3339), env.Type, p.Name, p.Status, p.FamilyCount, strings.Join(p.WillBring, ", "))
	default:
		fmt.Printf("%s %s %s\n", env.TS.Format(time.RFC3339), env.Type, string(env.Payload))
	}
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	if !strings.HasPrefix(u.Path, "/e/") || !strings.HasSuffix(u.Path, "/live") {
		return errors.New("path must look like /e/{code}/live")
	}
	return nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
