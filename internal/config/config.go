package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/history"
)

type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"shoutbox"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPPort    string `env:"HTTP_PORT" envDefault:":8084"`
	ObsHTTPAddr string `env:"HTTP_ADDR" envDefault:":8094"`
	InstanceID  string `env:"INSTANCE_ID"`

	AllowedOrigins    []string      `env:"SHOUTBOX_ALLOWED_ORIGINS" envSeparator:","`
	MaxMessageLength  int           `env:"SHOUTBOX_MAX_MESSAGE_LENGTH" envDefault:"500"`
	RatePoints        int           `env:"SHOUTBOX_RATE_POINTS" envDefault:"5"`
	RateDuration      time.Duration `env:"SHOUTBOX_RATE_DURATION" envDefault:"5s"`
	HistoryLimit      int           `env:"SHOUTBOX_HISTORY_LIMIT" envDefault:"50"`
	RequireEditAuthor bool          `env:"SHOUTBOX_EDIT_REQUIRES_AUTHOR" envDefault:"false"`
	ConnectLimit      int           `env:"SHOUTBOX_CONNECT_LIMIT" envDefault:"30"`
	ConnectWindow     time.Duration `env:"SHOUTBOX_CONNECT_WINDOW" envDefault:"1m"`

	HistoryBackend   string `env:"SHOUTBOX_HISTORY_BACKEND" envDefault:"memory"`
	HistoryRetention int    `env:"SHOUTBOX_HISTORY_RETENTION" envDefault:"1000"`
	DatabaseURL      string `env:"DATABASE_URL"`
	SQLitePath       string `env:"SQLITE_PATH" envDefault:"shoutbox.db"`
	BadgerPath       string `env:"BADGER_PATH" envDefault:"data/badger"`

	PersistQueue   int           `env:"SHOUTBOX_PERSIST_QUEUE" envDefault:"1024"`
	PersistRetries int           `env:"SHOUTBOX_PERSIST_RETRIES" envDefault:"3"`
	PersistBackoff time.Duration `env:"SHOUTBOX_PERSIST_BACKOFF" envDefault:"200ms"`

	RedisAddr    string   `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RelayEnabled bool     `env:"SHOUTBOX_RELAY_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"shoutbox-events"`

	JWTSecret   string `env:"JWT_SECRET"`
	JWTIssuer   string `env:"JWT_ISSUER"`
	JWTAudience string `env:"JWT_AUDIENCE"`

	TracingEnabled bool   `env:"TRACING_ENABLED" envDefault:"false"`
	JaegerURL      string `env:"JAEGER_URL" envDefault:"http://localhost:14268/api/traces"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.HTTPPort = fixPort(cfg.HTTPPort)
	cfg.ObsHTTPAddr = fixPort(cfg.ObsHTTPAddr)
	cfg.AllowedOrigins = trimAll(cfg.AllowedOrigins)
	cfg.KafkaBrokers = trimAll(cfg.KafkaBrokers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.MaxMessageLength <= 0 {
		errs = append(errs, errors.New("SHOUTBOX_MAX_MESSAGE_LENGTH must be positive"))
	}
	if c.RatePoints <= 0 {
		errs = append(errs, errors.New("SHOUTBOX_RATE_POINTS must be positive"))
	}
	if c.RateDuration <= 0 {
		errs = append(errs, errors.New("SHOUTBOX_RATE_DURATION must be positive"))
	}
	if c.HistoryLimit <= 0 {
		errs = append(errs, errors.New("SHOUTBOX_HISTORY_LIMIT must be positive"))
	}
	switch c.HistoryBackend {
	case history.BackendMemory, history.BackendSQLite, history.BackendBadger, history.BackendRedis:
	case history.BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("SHOUTBOX_HISTORY_BACKEND: %w: %q", history.ErrUnknownBackend, c.HistoryBackend))
	}
	return errors.Join(errs...)
}

// NeedsRedis reports whether any enabled component talks to Redis.
func (c *Config) NeedsRedis() bool {
	return c.RelayEnabled || c.HistoryBackend == history.BackendRedis
}

func fixPort(port string) string {
	if port != "" && !strings.HasPrefix(port, ":") && !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}

func trimAll(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
