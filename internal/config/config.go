package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/benvon/capture/internal/validation"
	"gopkg.in/yaml.v3"
)

// Local storage backends
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

const appName = "capture"

// AuthConfig holds the identity provider settings
type AuthConfig struct {
	Issuer       string `yaml:"issuer"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	TokenURL     string `yaml:"token_url"`
	JWKSURL      string `yaml:"jwks_url"`
	SignupURL    string `yaml:"signup_url"`
	Audience     string `yaml:"audience"`
}

// Config holds application configuration
type Config struct {
	Store       string     `yaml:"store" validate:"oneof=sqlite redis memory"`
	DataDir     string     `yaml:"data_dir"`
	RedisURL    string     `yaml:"redis_url"`
	KeyPrefix   string     `yaml:"key_prefix" validate:"required"`
	DatabaseURL string     `yaml:"database_url"`
	Auth        AuthConfig `yaml:"auth"`
	RabbitMQURL string     `yaml:"rabbitmq_url"`

	SessionWatchdog time.Duration `yaml:"session_watchdog" validate:"gt=0"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout" validate:"gt=0"`
	MirrorTimeout   time.Duration `yaml:"mirror_timeout" validate:"gt=0"`
	RetryAttempts   int           `yaml:"retry_attempts" validate:"min=1,max=10"`
	RetryBaseDelay  time.Duration `yaml:"retry_base_delay" validate:"gte=0"`
	DefaultPriority string        `yaml:"default_priority" validate:"priority"`

	Debug        bool   `yaml:"debug"`
	OTELEnabled  bool   `yaml:"otel_enabled"`
	OTELEndpoint string `yaml:"otel_endpoint"`

	// File is the config file that was read, if any
	File string `yaml:"-"`
}

// RemoteConfigured reports whether remote sync can be wired: a database and an identity provider.
func (c *Config) RemoteConfigured() bool {
	return c.DatabaseURL != "" && c.Auth.Issuer != "" && c.Auth.ClientID != ""
}

// Load loads configuration from defaults, the optional config file and environment variables,
// in that order of precedence.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	env := source(getenv)
	cfg := defaults(env)

	path, explicit := env.configPath()
	if path != "" {
		if err := cfg.readFile(path, explicit); err != nil {
			return nil, err
		}
	}

	env.apply(cfg)

	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	cfg.DefaultPriority = strings.ToLower(strings.TrimSpace(cfg.DefaultPriority))
	if err := validation.Validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Store == StoreRedis && cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required when CAPTURE_STORE is redis")
	}

	return cfg, nil
}

func defaults(env source) *Config {
	return &Config{
		Store:           StoreSQLite,
		DataDir:         env.dataDir(),
		RedisURL:        "redis://localhost:6379/0",
		KeyPrefix:       "coding-todo-",
		SessionWatchdog: 5 * time.Second,
		FetchTimeout:    10 * time.Second,
		MirrorTimeout:   10 * time.Second,
		RetryAttempts:   3,
		RetryBaseDelay:  500 * time.Millisecond,
		DefaultPriority: "now",
	}
}

// readFile overlays the YAML file at path. A missing file is only an error when it was named explicitly.
func (c *Config) readFile(path string, explicit bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.File = path
	return nil
}

// source reads environment variables through an injectable lookup.
type source func(string) string

func (s source) configPath() (string, bool) {
	if path := s("CAPTURE_CONFIG"); path != "" {
		return path, true
	}
	if dir := s("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.yaml"), false
	}
	if home := s("HOME"); home != "" {
		return filepath.Join(home, ".config", appName, "config.yaml"), false
	}
	return "", false
}

func (s source) dataDir() string {
	if dir := s("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	if home := s("HOME"); home != "" {
		return filepath.Join(home, ".local", "share", appName)
	}
	return "." + appName
}

func (s source) apply(cfg *Config) {
	cfg.Store = s.getEnv("CAPTURE_STORE", cfg.Store)
	cfg.DataDir = s.getEnv("CAPTURE_DATA_DIR", cfg.DataDir)
	cfg.RedisURL = s.getEnv("REDIS_URL", cfg.RedisURL)
	cfg.KeyPrefix = s.getEnv("CAPTURE_KEY_PREFIX", cfg.KeyPrefix)
	cfg.DatabaseURL = s.getEnv("DATABASE_URL", cfg.DatabaseURL)

	cfg.Auth.Issuer = strings.TrimSuffix(s.getEnv("AUTH_ISSUER", cfg.Auth.Issuer), "/")
	cfg.Auth.ClientID = s.getEnv("AUTH_CLIENT_ID", cfg.Auth.ClientID)
	cfg.Auth.ClientSecret = s.getEnv("AUTH_CLIENT_SECRET", cfg.Auth.ClientSecret)
	cfg.Auth.TokenURL = s.getEnv("AUTH_TOKEN_URL", cfg.Auth.TokenURL)
	cfg.Auth.JWKSURL = s.getEnv("AUTH_JWKS_URL", cfg.Auth.JWKSURL)
	cfg.Auth.SignupURL = s.getEnv("AUTH_SIGNUP_URL", cfg.Auth.SignupURL)
	cfg.Auth.Audience = s.getEnv("AUTH_AUDIENCE", cfg.Auth.Audience)

	cfg.RabbitMQURL = s.getEnv("RABBITMQ_URL", cfg.RabbitMQURL)

	cfg.SessionWatchdog = s.getEnvDuration("SESSION_WATCHDOG", cfg.SessionWatchdog)
	cfg.FetchTimeout = s.getEnvDuration("FETCH_TIMEOUT", cfg.FetchTimeout)
	cfg.MirrorTimeout = s.getEnvDuration("MIRROR_TIMEOUT", cfg.MirrorTimeout)
	cfg.RetryAttempts = s.getEnvInt("RETRY_ATTEMPTS", cfg.RetryAttempts)
	cfg.RetryBaseDelay = s.getEnvDuration("RETRY_BASE_DELAY", cfg.RetryBaseDelay)
	cfg.DefaultPriority = s.getEnv("DEFAULT_PRIORITY", cfg.DefaultPriority)

	cfg.Debug = s.getEnvBool("DEBUG", cfg.Debug)
	cfg.OTELEnabled = s.getEnvBool("OTEL_ENABLED", cfg.OTELEnabled)
	cfg.OTELEndpoint = s.getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTELEndpoint)
}

func (s source) getEnv(key, defaultValue string) string {
	if value := s(key); value != "" {
		return value
	}
	return defaultValue
}

func (s source) getEnvBool(key string, defaultValue bool) bool {
	if value := s(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func (s source) getEnvInt(key string, defaultValue int) int {
	if value := s(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (s source) getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := s(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
