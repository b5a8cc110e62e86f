// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the joke agent configuration. Values are layered:
// built-in defaults, then an optional YAML file, then a .env file, then the
// process environment. Command line flags are applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Environment variables read by [Config.ApplyEnv].
const (
	EnvGoogleAPIKey = "GOOGLE_API_KEY"
	EnvModel        = "GEMINI_MODEL_NAME"
	EnvHost         = "JOKEAGENT_HOST"
	EnvPort         = "JOKEAGENT_PORT"
	EnvStore        = "JOKEAGENT_STORE"
	EnvStoreDSN     = "JOKEAGENT_STORE_DSN"
	EnvLogLevel     = "JOKEAGENT_LOG_LEVEL"
	EnvLogFormat    = "JOKEAGENT_LOG_FORMAT"
	EnvOffline      = "JOKEAGENT_OFFLINE"
	EnvAPIToken     = "JOKEAGENT_API_TOKEN"
)

// Config is the complete agent configuration.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// PublicURL is advertised in the agent card. It defaults to http://host:port/.
	PublicURL string `yaml:"public_url"`

	GoogleAPIKey string `yaml:"google_api_key"`
	Model        string `yaml:"model"`
	// Offline replaces the Gemini model with a canned joke.
	Offline bool `yaml:"offline"`

	Store     StoreConfig     `yaml:"store"`
	Log       LogConfig       `yaml:"log"`
	Push      PushConfig      `yaml:"push"`
	Retention RetentionConfig `yaml:"retention"`
	Auth      AuthConfig      `yaml:"auth"`

	StreamIdleTimeout time.Duration `yaml:"stream_idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig selects where tasks and push configs are kept.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// PushConfig configures push notification delivery.
type PushConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	// SigningKeyID, when set, signs deliveries with a fresh ES256 key of that id.
	SigningKeyID string `yaml:"signing_key_id"`
}

// AuthConfig configures caller authentication. Without tokens every caller
// is anonymous.
type AuthConfig struct {
	// Tokens maps accepted bearer tokens to user names.
	Tokens         map[string]string `yaml:"tokens"`
	AllowAnonymous bool              `yaml:"allow_anonymous"`
}

// RetentionConfig configures the janitor removing old finished tasks.
type RetentionConfig struct {
	Enabled  bool          `yaml:"enabled"`
	TTL      time.Duration `yaml:"ttl"`
	Schedule string        `yaml:"schedule"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Host:  "localhost",
		Port:  10000,
		Model: "gemini-1.5-flash",
		Store: StoreConfig{
			Driver: StoreMemory,
			DSN:    "jokeagent.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Push: PushConfig{
			Timeout:      10 * time.Second,
			SigningKeyID: "jokeagent",
		},
		Retention: RetentionConfig{
			TTL:      24 * time.Hour,
			Schedule: "@every 10m",
		},
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load builds the configuration from the defaults, the YAML file at path
// (skipped when empty), the .env file at dotenv (skipped when missing) and
// the environment.
func Load(path, dotenv string) (*Config, error) {
	c := Default()
	if path != "" {
		if err := c.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFile merges the YAML file at path into c.
func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides c with the variables lookup finds.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str(EnvGoogleAPIKey, &c.GoogleAPIKey)
	str(EnvModel, &c.Model)
	str(EnvHost, &c.Host)
	str(EnvStore, &c.Store.Driver)
	str(EnvStoreDSN, &c.Store.DSN)
	str(EnvLogLevel, &c.Log.Level)
	str(EnvLogFormat, &c.Log.Format)

	if v, ok := lookup(EnvAPIToken); ok && v != "" {
		if c.Auth.Tokens == nil {
			c.Auth.Tokens = make(map[string]string)
		}
		c.Auth.Tokens[v] = "default"
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		c.Port = port
	}
	if v, ok := lookup(EnvOffline); ok && v != "" {
		offline, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvOffline, err)
		}
		c.Offline = offline
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("sqlite store requires a dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if !c.Offline && c.GoogleAPIKey == "" {
		errs = append(errs, fmt.Errorf("%s environment variable not set", EnvGoogleAPIKey))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if c.Push.MaxRetries < 0 {
		errs = append(errs, errors.New("push max_retries must not be negative"))
	}
	if c.Retention.Enabled && c.Retention.TTL <= 0 {
		errs = append(errs, errors.New("retention ttl must be positive"))
	}
	return errors.Join(errs...)
}

// LogLevel parses the configured log level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	return level, nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URL returns the public URL of the agent.
func (c *Config) URL() string {
	if c.PublicURL != "" {
		return c.PublicURL
	}
	return "http://" + c.Addr() + "/"
}

// Logger returns a logger writing to w as configured.
func (c *Config) Logger(w *os.File) *slog.Logger {
	level, err := c.LogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
