package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every variable, e.g. BOOKSTORE_BACKEND_URL.
const EnvPrefix = "BOOKSTORE"

type Config struct {
	Port      string `envconfig:"PORT" default:"8080"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	BackendURL  string        `envconfig:"BACKEND_URL" required:"true"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"5s"`
	Retry       int           `envconfig:"RETRY" default:"2"`
	CSRFCookie  string        `envconfig:"CSRF_COOKIE" default:"csrftoken"`
	CSRFHeader  string        `envconfig:"CSRF_HEADER" default:"X-CSRFToken"`

	SessionCookie   string        `envconfig:"SESSION_COOKIE" default:"bookstore_session"`
	SecureCookie    bool          `envconfig:"SECURE_COOKIE" default:"false"`
	SessionTTL      time.Duration `envconfig:"SESSION_TTL" default:"30m"`
	MaxSessions     int           `envconfig:"MAX_SESSIONS" default:"10000"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	PageSize         int           `envconfig:"PAGE_SIZE" default:"8"`
	FadeDelay        time.Duration `envconfig:"FADE_DELAY" default:"300ms"`
	DateLayout       string        `envconfig:"DATE_LAYOUT" default:"02.01.2006"`
	Currency         string        `envconfig:"CURRENCY"`
	PlaceholderImage string        `envconfig:"PLACEHOLDER_IMAGE" default:"https://via.placeholder.com/300x400"`

	OTelEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTelEndpoint string `envconfig:"OTEL_ENDPOINT" default:"localhost:4317"`
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid %s_BACKEND_URL %q", EnvPrefix, c.BackendURL)
	}
	c.BackendURL = strings.TrimRight(c.BackendURL, "/")
	if c.PageSize < 1 {
		return fmt.Errorf("invalid %s_PAGE_SIZE %d", EnvPrefix, c.PageSize)
	}
	if c.Retry < 0 {
		c.Retry = 0
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger from LogFormat and LogLevel.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if strings.EqualFold(c.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
