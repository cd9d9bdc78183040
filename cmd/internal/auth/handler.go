package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bbqmaster/cmd/internal/httpjson"
)

// Handler serves the sign-in redirect flow and session endpoints.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	tokens   *TokenManager
	provider Provider
	broker   *Broker
	now      func() time.Time
}

// HandlerOption configures optional Handler dependencies.
type HandlerOption func(*Handler)

// WithProvider sets the identity provider. Without one, /auth/login and
// /auth/callback answer 503.
func WithProvider(p Provider) HandlerOption {
	return func(h *Handler) { h.provider = p }
}

// WithBroker sets the broker that receives sign-in and sign-out changes.
func WithBroker(b *Broker) HandlerOption {
	return func(h *Handler) {
		if b != nil {
			h.broker = b
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs a Handler.
func NewHandler(log *slog.Logger, cfg Config, tokens *TokenManager, opts ...HandlerOption) (*Handler, error) {
	if tokens == nil {
		return nil, ErrConfig
	}
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{
		log:    log,
		cfg:    cfg.withDefaults(),
		tokens: tokens,
		broker: NewBroker(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Broker returns the broker sessions are published on.
func (h *Handler) Broker() *Broker { return h.broker }

// Register wires auth routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("GET /auth/login", h.handleLogin)
	mux.HandleFunc("GET /auth/callback", h.handleCallback)
	mux.HandleFunc("POST /auth/logout", h.handleLogout)
	mux.HandleFunc("GET /me", h.handleMe)
}

// Middleware attaches the caller's Session to the request context when a
// valid token is presented. Requests without one pass through unchanged.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := h.tokenFromRequest(r); tok != "" {
			if s, err := h.tokens.VerifySession(tok, h.now()); err == nil {
				r = r.WithContext(WithSession(r.Context(), s))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSession answers 401 when the request carries no session.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			httpjson.Error(w, http.StatusUnauthorized, "unauthorized", "sign in required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ---- handlers ----

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		httpjson.Error(w, http.StatusServiceUnavailable, "auth_unavailable", "sign-in is not configured")
		return
	}

	state, err := newOpaqueToken(32)
	if err != nil {
		h.log.Error("auth.login.state.fail", "err", err)
		httpjson.Error(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	verifier := NewVerifier()
	from := SafeRedirect(r.URL.Query().Get("from"))

	flowTok, exp, err := h.tokens.IssueFlow(Flow{State: state, Verifier: verifier, From: from}, h.now())
	if err != nil {
		h.log.Error("auth.login.flow.fail", "err", err)
		httpjson.Error(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	h.setCookie(w, h.cfg.FlowCookieName, flowTok, "/auth", exp)

	http.Redirect(w, r, h.provider.AuthCodeURL(state, verifier), http.StatusFound)
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		httpjson.Error(w, http.StatusServiceUnavailable, "auth_unavailable", "sign-in is not configured")
		return
	}

	q := r.URL.Query()
	if e := strings.TrimSpace(q.Get("error")); e != "" {
		h.expireCookie(w, h.cfg.FlowCookieName, "/auth")
		httpjson.Error(w, http.StatusUnauthorized, "auth_denied", e)
		return
	}

	c, err := r.Cookie(h.cfg.FlowCookieName)
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid_flow", "sign-in flow expired, please retry")
		return
	}
	flow, err := h.tokens.VerifyFlow(c.Value, h.now())
	if err != nil || !secureStringEqual(flow.State, q.Get("state")) {
		h.expireCookie(w, h.cfg.FlowCookieName, "/auth")
		httpjson.Error(w, http.StatusBadRequest, "invalid_flow", "sign-in flow expired, please retry")
		return
	}
	h.expireCookie(w, h.cfg.FlowCookieName, "/auth")

	code := strings.TrimSpace(q.Get("code"))
	if code == "" {
		httpjson.Error(w, http.StatusBadRequest, "invalid_request", "missing code")
		return
	}

	profile, err := h.provider.Exchange(r.Context(), code, flow.Verifier)
	if err != nil {
		if errors.Is(err, ErrUnverifiedEmail) {
			httpjson.Error(w, http.StatusForbidden, "email_not_verified", "email verification required")
			return
		}
		h.log.Error("auth.callback.exchange.fail", "err", err)
		httpjson.Error(w, http.StatusBadGateway, "provider_error", "could not complete sign-in")
		return
	}

	tok, sess, err := h.tokens.IssueSession(Session{
		Email:     profile.Email,
		Name:      profile.Name,
		AvatarURL: profile.AvatarURL,
	}, h.now())
	if err != nil {
		h.log.Error("auth.callback.issue.fail", "err", err)
		httpjson.Error(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	h.setCookie(w, h.cfg.SessionCookieName, tok, "/", sess.ExpiresAt)
	h.broker.Publish(Change{Kind: SignedIn, Session: sess, At: h.now()})

	http.Redirect(w, r, SafeRedirect(flow.From), http.StatusFound)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if tok := h.tokenFromRequest(r); tok != "" {
		if s, err := h.tokens.VerifySession(tok, h.now()); err == nil {
			h.broker.Publish(Change{Kind: SignedOut, Session: s, At: h.now()})
		}
	}
	h.expireCookie(w, h.cfg.SessionCookieName, "/")
	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	Email       string    `json:"email"`
	Name        *string   `json:"name,omitempty"`
	DisplayName string    `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	s, ok := FromContext(r.Context())
	if !ok {
		if tok := h.tokenFromRequest(r); tok != "" {
			s, ok = h.verify(tok)
		}
	}
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "unauthorized", "not signed in")
		return
	}
	httpjson.Write(w, http.StatusOK, meResponse{
		Email:       s.Email,
		Name:        s.Name,
		DisplayName: s.DisplayName(),
		AvatarURL:   s.AvatarURL,
		ExpiresAt:   s.ExpiresAt,
	})
}

// ---- helpers ----

func (h *Handler) verify(tok string) (Session, bool) {
	s, err := h.tokens.VerifySession(tok, h.now())
	return s, err == nil
}

func (h *Handler) tokenFromRequest(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("Authorization")); v != "" {
		if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
			return strings.TrimSpace(v[7:])
		}
	}
	if c, err := r.Cookie(h.cfg.SessionCookieName); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value, path string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

func (h *Handler) expireCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

// SafeRedirect returns from when it is a local absolute path, otherwise "/".
func SafeRedirect(from string) string {
	from = strings.TrimSpace(from)
	if from == "" || !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") || strings.ContainsAny(from, "\\\r\n") {
		return "/"
	}
	u, err := url.Parse(from)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	return from
}

func newOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func secureStringEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
