package api

import "time"

// Config controls the event and RSVP endpoints.
type Config struct {
	// PublicBaseURL prefixes share links, e.g. https://bbq.example.com.
	PublicBaseURL string
	TrustProxy    bool
	MaxBodyBytes  int64

	// Event creation is limited per client IP.
	CreatePerMinute int
	CreateBurst     int
	LimiterIdleTTL  time.Duration
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() Config {
	return Config{
		PublicBaseURL:   "http://localhost:8080",
		MaxBodyBytes:    64 << 10,
		CreatePerMinute: 10,
		CreateBurst:     5,
		LimiterIdleTTL:  10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = d.MaxBodyBytes
	}
	if c.CreatePerMinute <= 0 {
		c.CreatePerMinute = d.CreatePerMinute
	}
	if c.CreateBurst <= 0 {
		c.CreateBurst = d.CreateBurst
	}
	if c.LimiterIdleTTL <= 0 {
		c.LimiterIdleTTL = d.LimiterIdleTTL
	}
	return c
}
