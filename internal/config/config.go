package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Store drivers
const (
	StoreMemory   = "memory"
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
)

// Config is the service configuration, read from the environment
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	JWTSecret   string
	JWTTokenTTL time.Duration

	StoreDriver   string
	MongoURI      string
	MongoDatabase string
	DatabaseURL   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PlanCacheTTL  time.Duration

	WhatsAppAPIURL  string
	WhatsAppAPIKey  string
	WhatsAppPushURL string

	PairingTimeout    time.Duration
	PairingStaleAfter time.Duration
	PollInterval      time.Duration
	PollErrorInterval time.Duration
	PollMaxFailures   int
	DeviceCapDefault  int

	NotificationTTL   time.Duration
	NotificationQueue int

	FailedSessionRetention time.Duration
}

// Load reads .env when present and then the process environment
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function
func FromEnv(getenv func(string) string) (*Config, error) {
	var errs []error

	str := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	duration := func(key string, def time.Duration) time.Duration {
		raw := str(key, "")
		if raw == "" {
			return def
		}
		d, err := cast.ToDurationE(raw)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, raw))
			return def
		}
		return d
	}
	integer := func(key string, def int) int {
		raw := str(key, "")
		if raw == "" {
			return def
		}
		n, err := cast.ToIntE(raw)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid integer %q", key, raw))
			return def
		}
		return n
	}

	cfg := &Config{
		Port:      str("PORT", "8080"),
		LogLevel:  str("LOG_LEVEL", "info"),
		LogFormat: str("LOG_FORMAT", "json"),

		JWTSecret:   str("JWT_SECRET", ""),
		JWTTokenTTL: duration("JWT_TOKEN_TTL", 7*24*time.Hour),

		StoreDriver:   strings.ToLower(str("STORE_DRIVER", StoreMemory)),
		MongoURI:      str("MONGODB_URI", ""),
		MongoDatabase: str("MONGODB_DATABASE", "lexlink"),
		DatabaseURL:   str("DATABASE_URL", ""),

		RedisAddr:     str("REDIS_ADDR", ""),
		RedisPassword: str("REDIS_PASSWORD", ""),
		RedisDB:       integer("REDIS_DB", 0),
		PlanCacheTTL:  duration("PLAN_CACHE_TTL", 5*time.Minute),

		WhatsAppAPIURL:  strings.TrimRight(str("WHATSAPP_API_URL", ""), "/"),
		WhatsAppAPIKey:  str("WHATSAPP_API_KEY", ""),
		WhatsAppPushURL: str("WHATSAPP_PUSH_URL", ""),

		PairingTimeout:    duration("PAIRING_TIMEOUT", 2*time.Minute),
		PairingStaleAfter: duration("PAIRING_STALE_AFTER", 20*time.Second),
		PollInterval:      duration("POLL_INTERVAL", 3*time.Second),
		PollErrorInterval: duration("POLL_ERROR_INTERVAL", 5*time.Second),
		PollMaxFailures:   integer("POLL_MAX_FAILURES", 5),
		DeviceCapDefault:  integer("DEVICE_CAP_DEFAULT", 10),

		NotificationTTL:   duration("NOTIFICATION_TTL", 3*time.Second),
		NotificationQueue: integer("NOTIFICATION_QUEUE", 1),

		FailedSessionRetention: duration("FAILED_SESSION_RETENTION", 10*time.Minute),
	}

	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if cfg.WhatsAppAPIURL == "" {
		errs = append(errs, errors.New("WHATSAPP_API_URL is required"))
	}

	switch cfg.StoreDriver {
	case StoreMemory:
	case StoreMongo:
		if cfg.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required for the mongo store"))
		}
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER: unknown driver %q", cfg.StoreDriver))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}
