package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds every option the assembly needs to build the pipeline. All
// values are fixed at load time; a reload produces a whole new snapshot.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Pipeline PipelineConfig `koanf:"pipeline"`
}

// ServerConfig collects the bootstrap knobs owned by the lifecycle server.
type ServerConfig struct {
	Listen    ListenConfig    `koanf:"listen"`
	Logging   LoggingConfig   `koanf:"logging"`
	Responses ResponsesConfig `koanf:"responses"`
}

// ListenConfig instructs the HTTP listener about bind address and port.
type ListenConfig struct {
	Address string `koanf:"address"`
	Port    int    `koanf:"port"`
}

// LoggingConfig expresses log level and format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ResponsesConfig carries the optional inline template rendered for error and
// deny bodies by the HTTP adapter.
type ResponsesConfig struct {
	ErrorTemplate string `koanf:"errorTemplate"`
}

// PipelineConfig enumerates the per-unit settings, each set once at assembly
// time. There is no runtime reconfiguration: changing any value requires a
// reload, which rebuilds the chain from scratch.
type PipelineConfig struct {
	Auth        AuthConfig        `koanf:"auth"`
	RateLimit   RateLimitConfig   `koanf:"rateLimit"`
	Policy      PolicyConfig      `koanf:"policy"`
	CORS        CORSConfig        `koanf:"cors"`
	Compression CompressionConfig `koanf:"compression"`
	Cache       CacheConfig       `koanf:"cache"`
}

// AuthConfig lists the credentials the authentication unit accepts.
type AuthConfig struct {
	Enabled bool     `koanf:"enabled"`
	Tokens  []string `koanf:"tokens"`
}

// RateLimitConfig bounds requests per identity inside a sliding window.
type RateLimitConfig struct {
	Enabled       bool `koanf:"enabled"`
	MaxRequests   int  `koanf:"maxRequests"`
	WindowSeconds int  `koanf:"windowSeconds"`
}

// Window returns the configured window as a duration.
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// PolicyConfig holds the boolean guard expression evaluated against request
// attributes. An empty expression disables the unit.
type PolicyConfig struct {
	Expression string `koanf:"expression"`
}

// CORSConfig lists the origins the cross-origin unit answers for.
type CORSConfig struct {
	Enabled        bool     `koanf:"enabled"`
	AllowedOrigins []string `koanf:"allowedOrigins"`
}

// CompressionConfig controls the response-transforming unit.
type CompressionConfig struct {
	Enabled  bool   `koanf:"enabled"`
	MinBytes int    `koanf:"minBytes"`
	Encoding string `koanf:"encoding"`
}

// CacheConfig selects the response cache backend and freshness window.
type CacheConfig struct {
	Enabled    bool             `koanf:"enabled"`
	Backend    string           `koanf:"backend"`
	TTLSeconds int              `koanf:"ttlSeconds"`
	Redis      RedisCacheConfig `koanf:"redis"`
}

// TTL returns the configured time-to-live as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// RedisCacheConfig carries connection settings for the Redis backend.
type RedisCacheConfig struct {
	Address  string `koanf:"address"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// DefaultConfig seeds the loader with the documented defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Listen:  ListenConfig{Address: "0.0.0.0", Port: 8080},
			Logging: LoggingConfig{Level: "info", Format: "json"},
		},
		Pipeline: PipelineConfig{
			RateLimit:   RateLimitConfig{MaxRequests: 10, WindowSeconds: 60},
			CORS:        CORSConfig{AllowedOrigins: []string{"*"}},
			Compression: CompressionConfig{MinBytes: 100, Encoding: "gzip"},
			Cache:       CacheConfig{Backend: "memory", TTLSeconds: 300},
		},
	}
}

// Validate fails fast on misconfiguration so no request is ever processed by
// a chain assembled from invalid settings.
func (c Config) Validate() error {
	if c.Server.Listen.Port < 0 || c.Server.Listen.Port > 65535 {
		return fmt.Errorf("config: listen port %d out of range", c.Server.Listen.Port)
	}
	if c.Pipeline.Auth.Enabled && len(c.Pipeline.Auth.Tokens) == 0 {
		return errors.New("config: auth enabled without any valid tokens")
	}
	if c.Pipeline.RateLimit.Enabled {
		if c.Pipeline.RateLimit.MaxRequests <= 0 {
			return fmt.Errorf("config: rate limit max requests must be positive, got %d", c.Pipeline.RateLimit.MaxRequests)
		}
		if c.Pipeline.RateLimit.WindowSeconds <= 0 {
			return fmt.Errorf("config: rate limit window must be positive, got %ds", c.Pipeline.RateLimit.WindowSeconds)
		}
	}
	if c.Pipeline.Cache.Enabled {
		if c.Pipeline.Cache.TTLSeconds <= 0 {
			return fmt.Errorf("config: cache ttl must be positive, got %ds", c.Pipeline.Cache.TTLSeconds)
		}
		switch strings.ToLower(strings.TrimSpace(c.Pipeline.Cache.Backend)) {
		case "", "memory":
		case "redis":
			if strings.TrimSpace(c.Pipeline.Cache.Redis.Address) == "" {
				return errors.New("config: redis cache backend requires an address")
			}
		default:
			return fmt.Errorf("config: unsupported cache backend %q", c.Pipeline.Cache.Backend)
		}
	}
	if c.Pipeline.Compression.Enabled {
		if c.Pipeline.Compression.MinBytes < 0 {
			return fmt.Errorf("config: compression min bytes must not be negative, got %d", c.Pipeline.Compression.MinBytes)
		}
		if enc := strings.ToLower(strings.TrimSpace(c.Pipeline.Compression.Encoding)); enc != "" && enc != "gzip" {
			return fmt.Errorf("config: unsupported compression encoding %q", c.Pipeline.Compression.Encoding)
		}
	}
	if c.Pipeline.CORS.Enabled && len(c.Pipeline.CORS.AllowedOrigins) == 0 {
		return errors.New("config: cors enabled without allowed origins")
	}
	return nil
}
