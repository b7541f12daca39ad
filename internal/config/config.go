// Package config provides configuration management for booksys.
//
// Settings are read from a YAML file, then overridden by BOOKSYS_*
// environment variables, then completed with defaults.
//
// Config file locations (priority order):
//  1. $BOOKSYS_CONFIG
//  2. ./booksys.yaml
//  3. ~/.config/booksys/config.yaml
//  4. /etc/booksys/config.yaml
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/natefinch/atomic"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "BOOKSYS_"

// Load finds and loads the config file, or starts from defaults if none is
// found. Environment overrides apply either way.
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		cfg := &Config{}
		if err := cfg.finish(); err != nil {
			return nil, "", err
		}
		return cfg, "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.finish(); err != nil {
		return nil, path, err
	}

	return &cfg, path, nil
}

func (c *Config) finish() error {
	if err := c.applyEnv(); err != nil {
		return err
	}
	c.applyDefaults()
	return c.Validate()
}

// applyEnv overrides fields from BOOKSYS_* environment variables
func (c *Config) applyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Save writes config to the specified path, replacing it atomically
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = Duration(10 * time.Second)
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = Duration(2 * time.Minute)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if c.Database.Path == "" {
		c.Database.Path = "./booksys.db"
	}

	if c.Session.TTL == 0 {
		c.Session.TTL = Duration(24 * time.Hour)
	}
	if c.Session.PruneInterval == 0 {
		c.Session.PruneInterval = c.Session.TTL
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.Books.DefaultPageSize == 0 {
		c.Books.DefaultPageSize = 20
	}
	if c.Books.MaxPageSize == 0 {
		c.Books.MaxPageSize = 100
	}

	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 10
	}

	if c.Password.MemoryKiB == 0 {
		c.Password.MemoryKiB = 64 * 1024
	}
	if c.Password.Iterations == 0 {
		c.Password.Iterations = 3
	}
	if c.Password.Parallelism == 0 {
		c.Password.Parallelism = 2
	}
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: must be text or json, got %q", c.Log.Format)
	}
	if c.Session.TTL < 0 || c.Session.PruneInterval < 0 {
		return fmt.Errorf("session: durations must not be negative")
	}
	if c.Books.DefaultPageSize < 1 {
		return fmt.Errorf("books.default_page_size: must be at least 1")
	}
	if c.Books.MaxPageSize < c.Books.DefaultPageSize {
		return fmt.Errorf("books.max_page_size: must be at least default_page_size (%d)", c.Books.DefaultPageSize)
	}
	if _, err := c.Server.TrustedProxyPrefixes(); err != nil {
		return fmt.Errorf("server.trusted_proxies: %w", err)
	}
	if c.RateLimit.PerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit: values must not be negative")
	}
	return nil
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Listen: %s, Database: %s\n", c.Server.Addr, c.Database.Path)
	summary += fmt.Sprintf("Session TTL: %s, prune every %s\n", c.Session.TTL.Duration(), c.Session.PruneInterval.Duration())
	summary += fmt.Sprintf("Page size: %d (max %d), Log: %s/%s", c.Books.DefaultPageSize, c.Books.MaxPageSize, c.Log.Level, c.Log.Format)
	return summary
}
