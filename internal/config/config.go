// Package config assembles rdapwatch settings from defaults, an optional TOML
// file, a .env file and the process environment. Command-line flags are
// applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/x-stp/rdapwatch/internal/core"
	"github.com/x-stp/rdapwatch/internal/rdap"
	"github.com/x-stp/rdapwatch/internal/store"
	"github.com/x-stp/rdapwatch/internal/timeconv"
)

// DefaultEnvFile is read when no other env file is named.
const DefaultEnvFile = ".env"

// Environment variables.
const (
	EnvBotToken    = "BOT_TOKEN"
	EnvDomainsFile = "DOMAINS_FILE"
	EnvEndpoint    = "RDAP_ENDPOINT"
	EnvTimeout     = "RDAP_TIMEOUT"
	EnvInterval    = "RDAP_INTERVAL"
	EnvTimezone    = "DISPLAY_TIMEZONE"
	EnvLogLevel    = "LOG_LEVEL"
	EnvMetricsAddr = "METRICS_ADDR"
)

// ErrMissingToken is returned by Validate when the bot token is required but
// not set.
var ErrMissingToken = errors.New("bot token is not set (" + EnvBotToken + ")")

type Config struct {
	Bot     Bot     `toml:"bot"`
	Store   Store   `toml:"store"`
	RDAP    RDAP    `toml:"rdap"`
	Display Display `toml:"display"`
	Log     Log     `toml:"log"`
	Metrics Metrics `toml:"metrics"`
}

type Bot struct {
	Token   string `toml:"token"`
	Workers int    `toml:"workers"`
}

type Store struct {
	Path string `toml:"path"`
}

type RDAP struct {
	// Endpoint is a URL template; {domain} is replaced by the domain name.
	Endpoint string        `toml:"endpoint"`
	Timeout  time.Duration `toml:"timeout"`
	Interval time.Duration `toml:"interval"`
}

type Display struct {
	Timezone string `toml:"timezone"`
}

type Log struct {
	Level string `toml:"level"`
}

type Metrics struct {
	// Addr is the admin listen address. Empty disables the server.
	Addr string `toml:"addr"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Bot:     Bot{Workers: core.DefaultWorkers},
		Store:   Store{Path: store.DefaultPath},
		RDAP:    RDAP{Endpoint: rdap.DefaultEndpoint, Timeout: rdap.DefaultTimeout, Interval: core.DefaultLookupInterval},
		Display: Display{Timezone: timeconv.DefaultZone},
		Log:     Log{Level: logrus.InfoLevel.String()},
	}
}

// Load builds a Config from defaults, then path (a TOML file, skipped when
// empty), then envFile (skipped when empty or absent), then the environment.
// Variables already present in the environment win over envFile entries.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("configuration: %w", err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("configuration: loading %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setDuration := func(key string, dst *time.Duration) error {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("configuration: %s: %w", key, err)
		}
		*dst = d
		return nil
	}

	setString(EnvBotToken, &c.Bot.Token)
	setString(EnvDomainsFile, &c.Store.Path)
	setString(EnvEndpoint, &c.RDAP.Endpoint)
	setString(EnvTimezone, &c.Display.Timezone)
	setString(EnvLogLevel, &c.Log.Level)
	setString(EnvMetricsAddr, &c.Metrics.Addr)

	if err := setDuration(EnvTimeout, &c.RDAP.Timeout); err != nil {
		return err
	}
	return setDuration(EnvInterval, &c.RDAP.Interval)
}

// Validate checks the settings. The token is only checked when requireToken
// is set, so offline commands work without one.
func (c *Config) Validate(requireToken bool) error {
	if requireToken && c.Bot.Token == "" {
		return ErrMissingToken
	}
	if c.Store.Path == "" {
		return errors.New("configuration: store path is empty")
	}
	if !strings.Contains(c.RDAP.Endpoint, rdap.DomainPlaceholder) {
		return fmt.Errorf("configuration: RDAP endpoint %q has no %s placeholder", c.RDAP.Endpoint, rdap.DomainPlaceholder)
	}
	if c.RDAP.Timeout <= 0 {
		return fmt.Errorf("configuration: RDAP timeout must be positive, got %s", c.RDAP.Timeout)
	}
	if c.RDAP.Interval < 0 {
		return fmt.Errorf("configuration: lookup interval must not be negative, got %s", c.RDAP.Interval)
	}
	if c.Bot.Workers <= 0 {
		return fmt.Errorf("configuration: workers must be positive, got %d", c.Bot.Workers)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	return nil
}
