// Package config loads server settings from .env, an optional YAML file
// and CHAT_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/adhocore/gronx"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultAddr           = ":8080"
	defaultAllowedOrigin  = "http://127.0.0.1:5173"
	defaultLikeMaxRetries = 8
	defaultFeedBuffer     = 64
	defaultReconcileCron  = "*/5 * * * *"
	defaultRateLimitRPS   = 50
	defaultRateLimitBurst = 100

	// ReconcileOff disables the reconciliation schedule.
	ReconcileOff = "off"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"

	ProviderJWT      = "jwt"
	ProviderFirebase = "firebase"
)

type Config struct {
	Addr           string          `yaml:"addr"`
	Backend        string          `yaml:"backend"`
	PostgresDSN    string          `yaml:"postgres_dsn"`
	ValkeyAddr     string          `yaml:"valkey_addr"`
	AllowedOrigin  string          `yaml:"allowed_origin"`
	LogLevel       string          `yaml:"log_level"`
	LikeMaxRetries int             `yaml:"like_max_retries"`
	FeedBuffer     int             `yaml:"feed_buffer"`
	ReconcileCron  string          `yaml:"reconcile_cron"`
	Auth           AuthConfig      `yaml:"auth"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

type AuthConfig struct {
	Provider        string `yaml:"provider"`
	JWTSecret       string `yaml:"jwt_secret"`
	FirebaseProject string `yaml:"firebase_project"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	return &Config{
		Addr:           defaultAddr,
		Backend:        BackendMemory,
		AllowedOrigin:  defaultAllowedOrigin,
		LogLevel:       "info",
		LikeMaxRetries: defaultLikeMaxRetries,
		FeedBuffer:     defaultFeedBuffer,
		ReconcileCron:  defaultReconcileCron,
		Auth:           AuthConfig{Provider: ProviderJWT},
		RateLimit:      RateLimitConfig{RPS: defaultRateLimitRPS, Burst: defaultRateLimitBurst},
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", path)
		}
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	envString("CHAT_ADDR", &c.Addr)
	envString("CHAT_BACKEND", &c.Backend)
	envString("CHAT_POSTGRES_DSN", &c.PostgresDSN)
	envString("CHAT_VALKEY_ADDR", &c.ValkeyAddr)
	envString("CHAT_ALLOWED_ORIGIN", &c.AllowedOrigin)
	envString("CHAT_LOG_LEVEL", &c.LogLevel)
	envString("CHAT_RECONCILE_CRON", &c.ReconcileCron)
	envString("CHAT_AUTH_PROVIDER", &c.Auth.Provider)
	envString("CHAT_JWT_SECRET", &c.Auth.JWTSecret)
	envString("CHAT_FIREBASE_PROJECT", &c.Auth.FirebaseProject)
	if err := envInt("CHAT_LIKE_MAX_RETRIES", &c.LikeMaxRetries); err != nil {
		return err
	}
	if err := envInt("CHAT_FEED_BUFFER", &c.FeedBuffer); err != nil {
		return err
	}
	if err := envInt("CHAT_RATE_LIMIT_BURST", &c.RateLimit.Burst); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("CHAT_RATE_LIMIT_RPS"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("CHAT_RATE_LIMIT_RPS: %w", err)
		}
		c.RateLimit.RPS = f
	}
	return nil
}

// Validate checks every field. A reconcile schedule of "off" becomes empty.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return errors.New("postgres backend needs postgres_dsn")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}

	switch c.Auth.Provider {
	case ProviderJWT:
		if c.Auth.JWTSecret == "" {
			return errors.New("jwt auth needs auth.jwt_secret")
		}
	case ProviderFirebase:
	default:
		return fmt.Errorf("unknown auth provider %q", c.Auth.Provider)
	}

	if c.LikeMaxRetries <= 0 {
		return fmt.Errorf("like_max_retries must be positive, got %d", c.LikeMaxRetries)
	}
	if c.FeedBuffer <= 0 {
		return fmt.Errorf("feed_buffer must be positive, got %d", c.FeedBuffer)
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit needs positive rps and burst, got %v/%d", c.RateLimit.RPS, c.RateLimit.Burst)
	}

	if c.ReconcileCron == ReconcileOff {
		c.ReconcileCron = ""
	}
	if c.ReconcileCron != "" && !gronx.IsValid(c.ReconcileCron) {
		return fmt.Errorf("invalid reconcile cron expression: %s", c.ReconcileCron)
	}
	return nil
}

// ResolveConfigPath prefers the flag when set, then CHAT_CONFIG.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("CHAT_CONFIG"); p != "" {
		return p
	}
	return flagPath
}

func envString(name string, dst *string) {
	if v, ok := os.LookupEnv(name); ok {
		*dst = v
	}
}

func envInt(name string, dst *int) error {
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}
