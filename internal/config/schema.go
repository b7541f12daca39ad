package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version   int             `yaml:"version"`
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Database  DatabaseConfig  `yaml:"database" envPrefix:"DATABASE_"`
	Session   SessionConfig   `yaml:"session" envPrefix:"SESSION_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Books     BooksConfig     `yaml:"books" envPrefix:"BOOKS_"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
	Password  PasswordConfig  `yaml:"password" envPrefix:"PASSWORD_"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr              string   `yaml:"addr" env:"ADDR"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout" env:"READ_HEADER_TIMEOUT"`
	IdleTimeout       Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	CookieSecure      bool     `yaml:"cookie_secure" env:"COOKIE_SECURE"`
	CORSOrigins       []string `yaml:"cors_origins,omitempty" env:"CORS_ORIGINS" envSeparator:","`
	// TrustedProxies are the IPs or CIDRs allowed to set X-Forwarded-For
	// and X-Real-IP. Forwarding headers are ignored when it is empty.
	TrustedProxies []string `yaml:"trusted_proxies,omitempty" env:"TRUSTED_PROXIES" envSeparator:","`
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address becomes a
// single-host prefix.
func (s ServerConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(s.TrustedProxies))
	for _, entry := range s.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// SessionConfig controls login session lifetime
type SessionConfig struct {
	TTL           Duration `yaml:"ttl" env:"TTL"`
	PruneInterval Duration `yaml:"prune_interval" env:"PRUNE_INTERVAL"`
}

// LogConfig controls the logger
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`   // logrus level name
	Format string `yaml:"format" env:"FORMAT"` // text or json
}

// BooksConfig bounds book list queries
type BooksConfig struct {
	DefaultPageSize int `yaml:"default_page_size" env:"DEFAULT_PAGE_SIZE"`
	MaxPageSize     int `yaml:"max_page_size" env:"MAX_PAGE_SIZE"`
}

// RateLimitConfig throttles register and login per client IP. Zero
// PerMinute disables throttling.
type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute" env:"PER_MINUTE"`
	Burst     int `yaml:"burst" env:"BURST"`
}

// PasswordConfig holds the argon2id cost parameters for new hashes
type PasswordConfig struct {
	MemoryKiB   uint32 `yaml:"memory_kib" env:"MEMORY_KIB"`
	Iterations  uint32 `yaml:"iterations" env:"ITERATIONS"`
	Parallelism uint8  `yaml:"parallelism" env:"PARALLELISM"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText implements encoding.TextUnmarshaler, used for env overrides
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
