package auth

import (
	"net/http"
	"strings"
	"time"
)

// Config controls session tokens, cookies and the Google OAuth client.
type Config struct {
	// Issuer is the value set in the "iss" claim.
	Issuer string

	SessionTTL time.Duration
	FlowTTL    time.Duration
	ClockSkew  time.Duration

	// PasetoV4SecretKeyHex is the hex-encoded Ed25519 secret key. When empty an
	// ephemeral key is generated and sessions do not survive restarts.
	PasetoV4SecretKeyHex string

	SessionCookieName string
	FlowCookieName    string
	CookieSecure      bool
	CookieSameSite    http.SameSite

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
}

// DefaultConfig returns defaults suitable for local development.
func DefaultConfig() Config {
	return Config{
		Issuer:            "bbqmaster",
		SessionTTL:        7 * 24 * time.Hour,
		FlowTTL:           10 * time.Minute,
		ClockSkew:         30 * time.Second,
		SessionCookieName: "bbq_session",
		FlowCookieName:    "bbq_oauth_flow",
		CookieSameSite:    http.SameSiteLaxMode,
	}
}

// GoogleEnabled reports whether the Google client is fully configured.
func (c Config) GoogleEnabled() bool {
	return strings.TrimSpace(c.GoogleClientID) != "" &&
		strings.TrimSpace(c.GoogleClientSecret) != "" &&
		strings.TrimSpace(c.GoogleRedirectURL) != ""
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if strings.TrimSpace(c.Issuer) == "" {
		c.Issuer = d.Issuer
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = d.SessionTTL
	}
	if c.FlowTTL <= 0 {
		c.FlowTTL = d.FlowTTL
	}
	if c.ClockSkew < 0 {
		c.ClockSkew = 0
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		c.SessionCookieName = d.SessionCookieName
	}
	if strings.TrimSpace(c.FlowCookieName) == "" {
		c.FlowCookieName = d.FlowCookieName
	}
	if c.CookieSameSite == 0 {
		c.CookieSameSite = d.CookieSameSite
	}
	return c
}
