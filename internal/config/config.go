// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

// Package config loads the rankcore configuration from a YAML file layered
// under command-line flags.
package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/rankcore/rankcore/internal/bridge"
)

// Config is the full configuration surface of a rankcore process.
type Config struct {
	// ServerID identifies this process on the shared change channel.
	ServerID string `koanf:"server_id"`

	// DatabaseURL is the PostgreSQL connection string. Falls back to the
	// DATABASE_URL environment variable when empty.
	DatabaseURL string `koanf:"database_url"`

	Redis       RedisConfig   `koanf:"redis"`
	Bridge      bridge.Config `koanf:"bridge"`
	MetricsAddr string        `koanf:"metrics_addr"`
	LogFormat   string        `koanf:"log_format"`
}

// RedisConfig configures the change-channel transport.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Channel  string `koanf:"channel"`
}

// Defaults for optional settings.
const (
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultLogFormat   = "json"
	DefaultChannel     = "rankcore:changes"
)

// Load reads the configuration file (if path is non-empty) and layers the
// given flag set on top, so flags override file values.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.In("config").Code("CONFIG_FILE_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		// Flag names use dashes ("redis-addr"); config keys use dots and
		// underscores ("redis.addr", "server_id").
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key := strings.NewReplacer("redis-", "redis.", "bridge-", "bridge.").Replace(f.Name)
			key = strings.ReplaceAll(key, "-", "_")
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.In("config").Code("CONFIG_FLAG_LOAD_FAILED").Wrap(err)
		}
	}

	cfg := &Config{
		MetricsAddr: DefaultMetricsAddr,
		LogFormat:   DefaultLogFormat,
		Redis:       RedisConfig{Channel: DefaultChannel},
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.In("config").Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	return cfg, nil
}

// Validate checks that the configuration can run a process.
func (c *Config) Validate() error {
	if c.ServerID == "" {
		return oops.In("config").Code("INVALID_CONFIG").
			Errorf("server_id is required")
	}
	if c.DatabaseURL == "" {
		return oops.In("config").Code("INVALID_CONFIG").
			Errorf("database_url (or DATABASE_URL) is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.In("config").Code("INVALID_CONFIG").
			With("log_format", c.LogFormat).
			Errorf("log_format must be 'json' or 'text'")
	}
	if err := c.Bridge.Validate(); err != nil {
		return err
	}
	return nil
}
