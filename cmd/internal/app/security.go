package app

import (
	"encoding/hex"
	"errors"
	"net/url"
	"strings"

	"bbqmaster/cmd/internal/event"
)

// ValidateConfig enforces startup policy. It fails fast on settings that
// would otherwise degrade silently at request time.
func ValidateConfig(cfg Config) error {
	if k := strings.TrimSpace(cfg.PasetoV4SecretKeyHex); k != "" {
		b, err := hex.DecodeString(k)
		if err != nil || len(b) != 64 {
			return errors.New("config: BBQ_PASETO_V4_SECRET_KEY_HEX must be 64 hex-encoded bytes")
		}
	}

	google := []string{cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL}
	set := 0
	for _, v := range google {
		if strings.TrimSpace(v) != "" {
			set++
		}
	}
	if set != 0 && set != len(google) {
		return errors.New("config: BBQ_GOOGLE_CLIENT_ID, BBQ_GOOGLE_CLIENT_SECRET and BBQ_GOOGLE_REDIRECT_URL must be set together")
	}

	u, err := url.Parse(strings.TrimSpace(cfg.PublicBaseURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("config: BBQ_PUBLIC_BASE_URL must be an absolute http(s) URL")
	}
	if u.Scheme == "https" && !cfg.CookieSecure {
		return errors.New("config: BBQ_COOKIE_SECURE must be true when BBQ_PUBLIC_BASE_URL is https")
	}

	if cfg.ShareCodeAttempts <= 0 {
		return errors.New("config: BBQ_SHARE_CODE_ATTEMPTS must be positive")
	}
	if cfg.ShareCodeLength < event.DefaultShareCodeLength {
		return errors.New("config: BBQ_SHARE_CODE_LENGTH must be at least 7")
	}
	return nil
}
