// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

// Package config loads the layered runtime configuration: compiled
// defaults, then an optional YAML file, then environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/evakv0th/universe-test-monorepo/internal/api"
	"github.com/evakv0th/universe-test-monorepo/internal/collector"
	"github.com/evakv0th/universe-test-monorepo/internal/logging"
	"github.com/evakv0th/universe-test-monorepo/internal/storage/postgres"
	"github.com/evakv0th/universe-test-monorepo/internal/stream"
)

// EmbeddedNATSConfig controls the optional in-process JetStream server.
type EmbeddedNATSConfig struct {
	Enabled bool                `koanf:"enabled"`
	Server  stream.ServerConfig `koanf:"server"`
}

// Config is the full runtime configuration tree.
type Config struct {
	Server       api.Config         `koanf:"server"`
	Logging      logging.Config     `koanf:"logging"`
	NATS         stream.ConnConfig  `koanf:"nats"`
	EmbeddedNATS EmbeddedNATSConfig `koanf:"embedded_nats"`
	Database     postgres.Config    `koanf:"database"`
	Collector    collector.Config   `koanf:"collector"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		Server:  api.DefaultConfig(),
		Logging: logging.DefaultConfig(),
		NATS:    stream.DefaultConnConfig(),
		EmbeddedNATS: EmbeddedNATSConfig{
			Enabled: false,
			Server:  stream.DefaultServerConfig(),
		},
		Database:  postgres.DefaultConfig(),
		Collector: collector.DefaultConfig(),
	}
}

// envAliases maps the well-known deployment variables onto their config
// paths. Anything else must use the UT_ prefix with __ as the level
// separator, e.g. UT_COLLECTOR__ACK_WAIT.
var envAliases = map[string]string{
	"HTTP_ADDR":      "server.addr",
	"LOG_LEVEL":      "logging.level",
	"LOG_FORMAT":     "logging.format",
	"NATS_URL":       "nats.url",
	"NATS_EMBEDDED":  "embedded_nats.enabled",
	"NATS_STORE_DIR": "embedded_nats.server.store_dir",
	"DATABASE_URL":   "database.dsn",
}

func transformEnv(key string) string {
	if path, ok := envAliases[key]; ok {
		return path
	}
	if rest, ok := strings.CutPrefix(key, "UT_"); ok {
		return strings.ReplaceAll(strings.ToLower(rest), "__", ".")
	}
	return ""
}

// Load builds the configuration from defaults, the optional YAML file
// at path, and the environment, in that order of precedence.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := Default()
	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", transformEnv), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that cannot start.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.NATS.URL == "" && !c.EmbeddedNATS.Enabled {
		return fmt.Errorf("nats.url must be set when the embedded server is disabled")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn must not be empty")
	}
	if c.Collector.SubscribeAttempts < 1 {
		return fmt.Errorf("collector.subscribe_attempts must be at least 1")
	}
	return nil
}
