// Package config resolves the taskhub home directory and loads config.yaml
// from it, with TASKHUB_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

// FileName is the config file under home.
const FileName = "config.yaml"

const DefaultAddr = "127.0.0.1:3548"

// Config is the resolved configuration.
type Config struct {
	Home string

	Addr string
	Dev  bool

	DatabaseDriver string
	DatabaseURL    string

	MaxFileSize   int64
	AllowedTypes  []string
	MaxTextLength int

	ConflictRetries int

	JWTSecret string
	TokenTTL  time.Duration

	SlackWebhookURL string

	LogFormat   string
	OtelEnabled bool

	// Viper holds the raw settings; storage reads its keys from it.
	Viper *viper.Viper
}

// Path returns <home>/config.yaml.
func Path(home string) string {
	return filepath.Join(home, FileName)
}

// New returns a viper instance with defaults and env binding for home.
func New(home string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TASKHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", DefaultAddr)
	v.SetDefault("server.dev", false)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.url", "")
	v.SetDefault("storage.provider", "filesystem")
	v.SetDefault("storage.folder", filepath.Join(home, "files"))
	v.SetDefault("limits.max_file_size", models.DefaultMaxFileSize)
	v.SetDefault("limits.allowed_types", []string{})
	v.SetDefault("limits.max_text_length", models.DefaultMaxTextLength)
	v.SetDefault("service.conflict_retries", models.DefaultConflictRetries)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("notify.slack_webhook_url", "")
	v.SetDefault("log.format", "text")
	v.SetDefault("otel.enabled", true)
	return v
}

// Load reads <home>/config.yaml when present and applies env overrides.
func Load(home string) (*Config, error) {
	v := New(home)
	v.SetConfigFile(Path(home))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", Path(home), err)
		}
	}
	return FromViper(home, v)
}

// FromViper converts v into a Config and checks it.
func FromViper(home string, v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Home:            home,
		Addr:            v.GetString("server.addr"),
		Dev:             v.GetBool("server.dev"),
		DatabaseDriver:  v.GetString("database.driver"),
		DatabaseURL:     v.GetString("database.url"),
		MaxFileSize:     v.GetInt64("limits.max_file_size"),
		AllowedTypes:    v.GetStringSlice("limits.allowed_types"),
		MaxTextLength:   v.GetInt("limits.max_text_length"),
		ConflictRetries: v.GetInt("service.conflict_retries"),
		JWTSecret:       v.GetString("auth.jwt_secret"),
		TokenTTL:        v.GetDuration("auth.token_ttl"),
		SlackWebhookURL: v.GetString("notify.slack_webhook_url"),
		LogFormat:       v.GetString("log.format"),
		OtelEnabled:     v.GetBool("otel.enabled"),
		Viper:           v,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver: unsupported %q", c.DatabaseDriver)
	}
	if c.MaxFileSize <= 0 {
		return errors.New("limits.max_file_size must be positive")
	}
	if c.MaxTextLength <= 0 {
		return errors.New("limits.max_text_length must be positive")
	}
	if c.ConflictRetries < 1 {
		return errors.New("service.conflict_retries must be at least 1")
	}
	if c.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unsupported %q", c.LogFormat)
	}
	return nil
}

// WriteDefault writes a starter config.yaml unless one exists.
func WriteDefault(home string) (bool, error) {
	p := Path(home)
	if _, err := os.Stat(p); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(home, 0o755); err != nil {
		return false, err
	}
	return true, os.WriteFile(p, []byte(defaultFile), 0o644)
}

const defaultFile = `server:
  addr: 127.0.0.1:3548
database:
  driver: sqlite
storage:
  provider: filesystem
limits:
  max_file_size: 10485760
  max_text_length: 100000
service:
  conflict_retries: 3
auth:
  jwt_secret: ""
  token_ttl: 24h
log:
  format: text
`
