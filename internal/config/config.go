// Package config loads the terminal configuration from an optional JSON file,
// a .env file and the environment. Environment variables take precedence over
// the config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// DefaultConfigFile is read when no other path is given.
const DefaultConfigFile = "config.json"

// Remote backend kinds.
const (
	RemoteNone     = ""
	RemoteAction   = "action"
	RemotePostgres = "postgres"
)

// Config represents the application's configuration structure.
type Config struct {
	ListenAddress string  `mapstructure:"listen-address"`
	DataFile      string  `mapstructure:"data-file"`
	FallbackRate  float64 `mapstructure:"fallback-rate"`
	LocalCurrency string  `mapstructure:"local-currency"`
	Timezone      string  `mapstructure:"timezone"`
	RateSourceURL string  `mapstructure:"rate-source-url"`
	RemoteKind    string  `mapstructure:"remote-kind"`
	RemoteURL     string  `mapstructure:"remote-url"`
	RemoteAPIKey  string  `mapstructure:"remote-api-key"`
	DatabaseURL   string  `mapstructure:"database-url"`
	InsertFailure string  `mapstructure:"insert-failure"`
	UpdateFailure string  `mapstructure:"update-failure"`
	LogLevel      string  `mapstructure:"log-level"`
}

var defaults = map[string]any{
	"listen-address":  ":8081",
	"data-file":       "data/pos.json",
	"fallback-rate":   36.5,
	"local-currency":  "VES",
	"timezone":        "Local",
	"rate-source-url": "",
	"remote-kind":     RemoteNone,
	"remote-url":      "",
	"remote-api-key":  "",
	"database-url":    "",
	"insert-failure":  "keep",
	"update-failure":  "refetch",
	"log-level":       "info",
}

// Load reads configFile (missing is fine) after loading .env into the
// environment (missing is fine too). Remote credentials usually come from
// .env or the environment, never from the config file in version control.
func Load(configFile string) (*Config, error) {
	// A missing .env only means credentials are not supplied.
	_ = godotenv.Load()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("POS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	for k := range defaults {
		if err := v.BindEnv(k); err != nil {
			return nil, err
		}
	}

	if configFile == "" {
		configFile = DefaultConfigFile
	}
	v.SetConfigFile(configFile)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("could not read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.FallbackRate <= 0 {
		return fmt.Errorf("fallback-rate must be greater than zero, got %v", c.FallbackRate)
	}
	switch c.RemoteKind {
	case RemoteNone, RemoteAction, RemotePostgres:
	default:
		return fmt.Errorf("unknown remote-kind %q", c.RemoteKind)
	}
	return nil
}

// Fallback returns the fallback rate as a decimal.
func (c *Config) Fallback() decimal.Decimal {
	return decimal.NewFromFloat(c.FallbackRate)
}

// RemoteConfigured reports whether the credentials of the selected backend
// are present. Without them the terminal runs on local storage only.
func (c *Config) RemoteConfigured() bool {
	switch c.RemoteKind {
	case RemoteAction:
		return c.RemoteURL != ""
	case RemotePostgres:
		return c.DatabaseURL != ""
	default:
		return false
	}
}
