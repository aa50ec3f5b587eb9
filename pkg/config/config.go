// Package config loads server settings from defaults, an optional YAML file
// and the environment, in that order of precedence.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding the YAML file path.
const EnvConfigPath = "KINDNEST_CONFIG"

type Config struct {
	Port    string `yaml:"port"`
	GinMode string `yaml:"gin_mode"`

	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Email    EmailConfig    `yaml:"email"`
	Telegram TelegramConfig `yaml:"telegram"`
	Redis    RedisConfig    `yaml:"redis"`
	OTP      OTPConfig      `yaml:"otp"`

	FrontendURL      string        `yaml:"frontend_url"`
	CORSOrigins      []string      `yaml:"cors_origins"`
	StaleScheduleAge time.Duration `yaml:"stale_schedule_age"`
}

type DatabaseConfig struct {
	// URL selects Postgres; empty means SQLite at Path.
	URL  string `yaml:"url"`
	Path string `yaml:"path"`
}

type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret"`
	TokenTTL        time.Duration `yaml:"token_ttl"`
	ServiceSecret   string        `yaml:"service_secret"`
	AdminEmail      string        `yaml:"admin_email"`
	AdminPassword   string        `yaml:"admin_password"`
	AdminSecretCode string        `yaml:"admin_secret_code"`
}

type EmailConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	From         string `yaml:"from"`
	AdminAddress string `yaml:"admin_address"`
}

type TelegramConfig struct {
	Token     string `yaml:"token"`
	AdminChat int64  `yaml:"admin_chat"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
}

type OTPConfig struct {
	MaxAttempts   int           `yaml:"max_attempts"`
	AttemptWindow time.Duration `yaml:"attempt_window"`
}

func Default() *Config {
	return &Config{
		Port:    "8000",
		GinMode: "release",
		Database: DatabaseConfig{
			Path: "kindnest.db",
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Email: EmailConfig{
			Port: 587,
		},
		OTP: OTPConfig{
			MaxAttempts:   5,
			AttemptWindow: 15 * time.Minute,
		},
		FrontendURL:      "http://localhost:3000",
		CORSOrigins:      []string{"http://localhost:3000"},
		StaleScheduleAge: 7 * 24 * time.Hour,
	}
}

// Load builds the configuration. path may be empty, in which case
// KINDNEST_CONFIG is consulted; a missing file is only an error when a path
// was given explicitly.
func Load(path string) (*Config, error) {
	loadDotEnv()

	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		slog.Debug("loaded config file", "path", path)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads the first .env found in the working directory or its
// parents. Variables already set in the environment win.
func loadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for {
		p := filepath.Join(dir, ".env")
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Port)
	str("GIN_MODE", &c.GinMode)
	str("DATABASE_URL", &c.Database.URL)
	str("DATA_PATH", &c.Database.Path)
	str("JWT_SECRET", &c.Auth.JWTSecret)
	str("API_MASTER_SECRET", &c.Auth.ServiceSecret)
	str("ADMIN_EMAIL", &c.Auth.AdminEmail)
	str("ADMIN_PASSWORD", &c.Auth.AdminPassword)
	str("ADMIN_SECRET_CODE", &c.Auth.AdminSecretCode)
	str("EMAIL_HOST", &c.Email.Host)
	str("EMAIL_USER", &c.Email.User)
	str("EMAIL_PASSWORD", &c.Email.Password)
	str("EMAIL_FROM", &c.Email.From)
	str("EMAIL_ADM", &c.Email.AdminAddress)
	str("TELEGRAM_BOT_TOKEN", &c.Telegram.Token)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("FRONTEND_URL", &c.FrontendURL)

	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		c.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.CORSOrigins = append(c.CORSOrigins, o)
			}
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"EMAIL_PORT", &c.Email.Port},
		{"OTP_MAX_ATTEMPTS", &c.OTP.MaxAttempts},
	}
	for _, e := range ints {
		if v, ok := lookup(e.key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", e.key, err)
			}
			*e.dst = n
		}
	}
	if v, ok := lookup("TELEGRAM_ADMIN_CHAT"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_ADMIN_CHAT: %w", err)
		}
		c.Telegram.AdminChat = n
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"OTP_ATTEMPT_WINDOW", &c.OTP.AttemptWindow},
		{"STALE_SCHEDULE_AGE", &c.StaleScheduleAge},
		{"TOKEN_TTL", &c.Auth.TokenTTL},
	}
	for _, e := range durations {
		if v, ok := lookup(e.key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", e.key, err)
			}
			*e.dst = d
		}
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("gin_mode must be debug, release or test, got %q", c.GinMode)
	}
	if c.OTP.MaxAttempts <= 0 {
		return fmt.Errorf("otp.max_attempts must be positive")
	}
	if c.OTP.AttemptWindow <= 0 {
		return fmt.Errorf("otp.attempt_window must be positive")
	}
	if c.StaleScheduleAge <= 0 {
		return fmt.Errorf("stale_schedule_age must be positive")
	}
	return nil
}
