package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string `env:"BBQ_HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	LogLevel  string `env:"BBQ_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"BBQ_LOG_FORMAT" envDefault:"json"`

	ReadHeaderTimeout time.Duration `env:"BBQ_HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"BBQ_HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"BBQ_HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `env:"BBQ_HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	MaxHeaderBytes    int           `env:"BBQ_HTTP_MAX_HEADER_BYTES" envDefault:"1048576"`

	// DatabaseURL selects the store: empty for in-memory, postgres:// or
	// sqlite://path.
	DatabaseURL   string `env:"BBQ_DATABASE_URL"`
	DBSchema      string `env:"BBQ_DB_SCHEMA" envDefault:"bbq"`
	DBMaxConns    int32  `env:"BBQ_DB_MAX_CONNS" envDefault:"10"`
	DBMinConns    int32  `env:"BBQ_DB_MIN_CONNS" envDefault:"0"`
	DBAutoMigrate bool   `env:"BBQ_DB_AUTO_MIGRATE" envDefault:"true"`

	// If true, /readyz returns 503 unless a database is configured and reachable.
	ReadinessRequireDB bool `env:"BBQ_READINESS_REQUIRE_DB" envDefault:"false"`

	PublicBaseURL     string `env:"BBQ_PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	TrustProxy        bool   `env:"BBQ_TRUST_PROXY" envDefault:"false"`
	MaxBodyBytes      int64  `env:"BBQ_MAX_BODY_BYTES" envDefault:"65536"`
	ShareCodeAttempts int    `env:"BBQ_SHARE_CODE_ATTEMPTS" envDefault:"5"`
	ShareCodeLength   int    `env:"BBQ_SHARE_CODE_LENGTH" envDefault:"7"`
	EventCreatePerMin int    `env:"BBQ_EVENT_CREATE_PER_MIN" envDefault:"10"`
	EventCreateBurst  int    `env:"BBQ_EVENT_CREATE_BURST" envDefault:"5"`

	GoogleClientID       string        `env:"BBQ_GOOGLE_CLIENT_ID"`
	GoogleClientSecret   string        `env:"BBQ_GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL    string        `env:"BBQ_GOOGLE_REDIRECT_URL"`
	PasetoV4SecretKeyHex string        `env:"BBQ_PASETO_V4_SECRET_KEY_HEX"`
	SessionTTL           time.Duration `env:"BBQ_SESSION_TTL" envDefault:"168h"`
	CookieSecure         bool          `env:"BBQ_COOKIE_SECURE" envDefault:"false"`

	CORSAllowedOrigins   []string `env:"BBQ_CORS_ALLOWED_ORIGINS" envSeparator:","`
	CORSAllowCredentials bool     `env:"BBQ_CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	CORSMaxAgeSeconds    int      `env:"BBQ_CORS_MAX_AGE_SECONDS" envDefault:"600"`

	WSOriginRequired   bool          `env:"BBQ_WS_ORIGIN_REQUIRED" envDefault:"true"`
	WSAllowedOrigins   []string      `env:"BBQ_WS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost,http://127.0.0.1"`
	WSWriteTimeout     time.Duration `env:"BBQ_WS_WRITE_TIMEOUT" envDefault:"5s"`
	WSReadIdleTimeout  time.Duration `env:"BBQ_WS_READ_IDLE_TIMEOUT" envDefault:"2m"`
	WSSendQueueSize    int           `env:"BBQ_WS_SEND_QUEUE_SIZE" envDefault:"64"`
	WSHeartbeatEvery   time.Duration `env:"BBQ_WS_HEARTBEAT_EVERY" envDefault:"25s"`
	WSHeartbeatTimeout time.Duration `env:"BBQ_WS_HEARTBEAT_TIMEOUT" envDefault:"5s"`
	WSRateEvents       int           `env:"BBQ_WS_RATE_EVENTS" envDefault:"30"`
	WSRateWindow       time.Duration `env:"BBQ_WS_RATE_WINDOW" envDefault:"10s"`

	// OTelEndpoint enables OTLP/HTTP trace export when set.
	OTelEndpoint string `env:"BBQ_OTEL_ENDPOINT"`
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
