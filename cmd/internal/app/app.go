// Package app wires the bbqmaster server runtime: config, logging, storage,
// HTTP routes and the live RSVP feed.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"bbqmaster/cmd/internal/api"
	"bbqmaster/cmd/internal/auth"
	"bbqmaster/cmd/internal/event"
	"bbqmaster/cmd/internal/metrics"
	"bbqmaster/cmd/internal/realtime"
	"bbqmaster/cmd/internal/rsvp"
)

// App is the bbqmaster server runtime: it owns the backend, HTTP wiring and
// the live feed hub.
type App struct {
	cfg Config
	log Logger

	backend *Backend
	metrics *metrics.Metrics
	hub     *realtime.Hub

	events *event.Service
	rsvps  *rsvp.Synchronizer

	tokens  *auth.TokenManager
	auth    *auth.Handler
	api     *api.Handler
	gateway *realtime.Gateway

	unsubscribe []func()
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	backend, err := OpenBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a, err := wire(cfg, log, backend)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return a, nil
}

func wire(cfg Config, log Logger, backend *Backend) (*App, error) {
	hub := realtime.NewHub(log)
	m := metrics.New(hub.Connections)

	alloc, err := event.NewAllocator(backend.Events,
		event.WithAttempts(cfg.ShareCodeAttempts),
		event.WithCodeLength(cfg.ShareCodeLength),
		event.WithObserver(m.ObserveShareCodeAttempt),
	)
	if err != nil {
		return nil, err
	}
	events, err := event.NewService(backend.Events, backend.Users, alloc)
	if err != nil {
		return nil, err
	}

	rsvps, err := rsvp.NewSynchronizer(backend.Users, backend.Rsvps,
		rsvp.WithLogger(log),
		rsvp.WithPublisher(hub.PublishSaved),
		rsvp.WithObserver(m.ObserveRsvpSave),
	)
	if err != nil {
		return nil, err
	}

	authCfg := authConfig(cfg)
	tokens, err := auth.NewTokenManager(authCfg)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(authCfg.PasetoV4SecretKeyHex) == "" {
		log.Warn("auth.key.ephemeral", "public_key_hex", tokens.PublicKeyHex())
	}

	authOpts := []auth.HandlerOption{}
	if authCfg.GoogleEnabled() {
		provider, err := auth.NewGoogleProvider(authCfg)
		if err != nil {
			return nil, err
		}
		authOpts = append(authOpts, auth.WithProvider(provider))
	} else {
		log.Warn("auth.google.disabled")
	}
	authHandler, err := auth.NewHandler(log, authCfg, tokens, authOpts...)
	if err != nil {
		return nil, err
	}

	apiHandler, err := api.NewHandler(log, api.Config{
		PublicBaseURL:   cfg.PublicBaseURL,
		TrustProxy:      cfg.TrustProxy,
		MaxBodyBytes:    cfg.MaxBodyBytes,
		CreatePerMinute: cfg.EventCreatePerMin,
		CreateBurst:     cfg.EventCreateBurst,
	}, events, rsvps, api.WithCreateErrorObserver(m.ObserveEventCreateError))
	if err != nil {
		return nil, err
	}

	gateway, err := realtime.NewGateway(log, hub, events.GetByCode, realtime.GatewayConfig{
		OriginRequired:   cfg.WSOriginRequired,
		AllowedOrigins:   cfg.WSAllowedOrigins,
		WriteTimeout:     cfg.WSWriteTimeout,
		ReadIdleTimeout:  cfg.WSReadIdleTimeout,
		SendQueueSize:    cfg.WSSendQueueSize,
		HeartbeatEvery:   cfg.WSHeartbeatEvery,
		HeartbeatTimeout: cfg.WSHeartbeatTimeout,
		RateEvents:       cfg.WSRateEvents,
		RateWindow:       cfg.WSRateWindow,
	})
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		log:     log,
		backend: backend,
		metrics: m,
		hub:     hub,
		events:  events,
		rsvps:   rsvps,
		tokens:  tokens,
		auth:    authHandler,
		api:     apiHandler,
		gateway: gateway,
	}

	broker := authHandler.Broker()
	a.unsubscribe = append(a.unsubscribe,
		broker.Subscribe(m.ObserveAuthChange),
		broker.Subscribe(func(c auth.Change) {
			log.Info("audit.session."+string(c.Kind), "email", c.Session.Email, "name", c.Session.DisplayName(), "at", c.At)
		}),
	)
	return a, nil
}

func authConfig(cfg Config) auth.Config {
	ac := auth.DefaultConfig()
	ac.PasetoV4SecretKeyHex = cfg.PasetoV4SecretKeyHex
	ac.CookieSecure = cfg.CookieSecure
	ac.GoogleClientID = cfg.GoogleClientID
	ac.GoogleClientSecret = cfg.GoogleClientSecret
	ac.GoogleRedirectURL = cfg.GoogleRedirectURL
	if cfg.SessionTTL > 0 {
		ac.SessionTTL = cfg.SessionTTL
	}
	return ac
}

// Handler returns the fully wrapped root handler.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a)

	var h http.Handler = a.auth.Middleware(mux)
	h = WithCORS(h, a.cfg, a.log)
	h = WithSecurityHeaders(h)
	h = WithRequestLogging(h, a.log)
	return withTracing(h)
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	base := runtimeBaseURL(a.cfg.HTTPAddr)
	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"backend", a.backend.Kind,
		"base_url", base,
		"live_url", wsBaseURL(base)+"/e/{code}/live",
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		a.Close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}
	a.Close()

	a.log.Info("server.stopped")
	return nil
}

// Close detaches subscribers and releases the backend.
func (a *App) Close() {
	for _, fn := range a.unsubscribe {
		fn()
	}
	a.unsubscribe = nil
	if err := a.backend.Close(); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// runtimeBaseURL turns a listen address into a URL a local client can dial.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func wsBaseURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}
