package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const EnvProduction = "production"

type Config struct {
	Port     int
	Env      string
	LogLevel string

	// DatabaseURL empty selects the in-memory store.
	DatabaseURL  string
	DBMaxConns   int32
	DBMinConns   int32
	AllowOrigins []string

	JWTSigningKey string
	JWTExpiration time.Duration
	AdminUsername string
	AdminPassword string

	RelayURL           string
	RelayAPIKey        string
	OutboxPollInterval time.Duration
	OutboxMaxAttempts  int

	OpenAIAPIKey    string
	OpenAIBaseURL   string
	TranscribeModel string
	StructureModel  string

	NATSURL       string
	MetricsPrefix string
}

func (c Config) Production() bool {
	return c.Env == EnvProduction
}

// Load reads the process environment, falling back to ./.env for unset keys.
func Load() (Config, error) {
	return load(filepath.Join(".", ".env"))
}

func load(envPath string) (Config, error) {
	values := map[string]string{}
	if _, err := os.Stat(envPath); err == nil {
		fileValues, err := godotenv.Read(envPath)
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", envPath, err)
		}
		values = fileValues
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("stat %s: %w", envPath, err)
	}
	get := func(key string) string {
		return firstNonEmpty(os.Getenv(key), values[key])
	}

	cfg := Config{
		Env:             strings.ToLower(firstNonEmpty(get("APP_ENV"), "development")),
		LogLevel:        strings.ToLower(firstNonEmpty(get("LOG_LEVEL"), "info")),
		DatabaseURL:     get("DATABASE_URL"),
		JWTSigningKey:   get("JWT_SIGNING_KEY"),
		AdminUsername:   get("ADMIN_USERNAME"),
		AdminPassword:   get("ADMIN_PASSWORD"),
		RelayURL:        get("RELAY_URL"),
		RelayAPIKey:     get("RELAY_API_KEY"),
		OpenAIAPIKey:    get("OPENAI_API_KEY"),
		OpenAIBaseURL:   get("OPENAI_BASE_URL"),
		TranscribeModel: firstNonEmpty(get("TRANSCRIBE_MODEL"), "whisper-1"),
		StructureModel:  firstNonEmpty(get("STRUCTURE_MODEL"), "gpt-4o-mini"),
		NATSURL:         get("NATS_URL"),
		MetricsPrefix:   firstNonEmpty(get("METRICS_PREFIX"), "clinic"),
		AllowOrigins:    splitList(firstNonEmpty(get("CORS_ALLOWED_ORIGINS"), "*")),
	}

	var err error
	if cfg.Port, err = intValue(get("PORT"), 8080); err != nil || cfg.Port <= 0 {
		return Config{}, fmt.Errorf("invalid PORT: %q", get("PORT"))
	}
	hours, err := intValue(get("JWT_EXPIRATION_HOURS"), 24)
	if err != nil || hours <= 0 {
		return Config{}, fmt.Errorf("invalid JWT_EXPIRATION_HOURS: %q", get("JWT_EXPIRATION_HOURS"))
	}
	cfg.JWTExpiration = time.Duration(hours) * time.Hour

	if cfg.OutboxPollInterval, err = durationValue(get("OUTBOX_POLL_INTERVAL"), 5*time.Second); err != nil || cfg.OutboxPollInterval <= 0 {
		return Config{}, fmt.Errorf("invalid OUTBOX_POLL_INTERVAL: %q", get("OUTBOX_POLL_INTERVAL"))
	}
	if cfg.OutboxMaxAttempts, err = intValue(get("OUTBOX_MAX_ATTEMPTS"), 8); err != nil || cfg.OutboxMaxAttempts <= 0 {
		return Config{}, fmt.Errorf("invalid OUTBOX_MAX_ATTEMPTS: %q", get("OUTBOX_MAX_ATTEMPTS"))
	}
	maxConns, err := intValue(get("DB_MAX_CONNS"), 10)
	if err != nil || maxConns <= 0 {
		return Config{}, fmt.Errorf("invalid DB_MAX_CONNS: %q", get("DB_MAX_CONNS"))
	}
	minConns, err := intValue(get("DB_MIN_CONNS"), 1)
	if err != nil || minConns < 0 || minConns > maxConns {
		return Config{}, fmt.Errorf("invalid DB_MIN_CONNS: %q", get("DB_MIN_CONNS"))
	}
	cfg.DBMaxConns, cfg.DBMinConns = int32(maxConns), int32(minConns)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL: %q", c.LogLevel)
	}
	if c.Production() {
		if c.JWTSigningKey == "" {
			return errors.New("JWT_SIGNING_KEY is required in production")
		}
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required in production")
		}
	}
	if (c.RelayURL == "") != (c.RelayAPIKey == "") {
		return errors.New("RELAY_URL and RELAY_API_KEY must be set together")
	}
	return nil
}

func firstNonEmpty(candidates ...string) string {
	for _, candidate := range candidates {
		if value := strings.TrimSpace(candidate); value != "" {
			return value
		}
	}
	return ""
}

func intValue(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func durationValue(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(raw)
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
