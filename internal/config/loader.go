package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	ktoml "github.com/knadh/koanf/parsers/toml"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Loader hydrates the runtime configuration while respecting env > file >
// default precedence.
type Loader struct {
	envPrefix string
	files     []string
}

// NewLoader prepares a config hydrator that honors the env-first contract
// before touching files or defaults.
func NewLoader(envPrefix string, files ...string) *Loader {
	return &Loader{
		envPrefix: envPrefix,
		files:     files,
	}
}

// Load assembles the effective snapshot using the documented precedence
// rules. Validation runs before the snapshot is returned so assembly fails
// fast on misconfiguration.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	defaultCfg := DefaultConfig()
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(structToMap(defaultCfg), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	for _, path := range l.files {
		if path == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return Config{}, ctx.Err()
		default:
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file %s not found", path)
			}
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
		parser, err := parserFor(path)
		if err != nil {
			return Config{}, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if l.envPrefix != "" {
		canonical := map[string]string{
			"pipeline.ratelimit.maxrequests":   "pipeline.rateLimit.maxRequests",
			"pipeline.ratelimit.windowseconds": "pipeline.rateLimit.windowSeconds",
			"pipeline.ratelimit.enabled":       "pipeline.rateLimit.enabled",
			"pipeline.cors.allowedorigins":     "pipeline.cors.allowedOrigins",
			"pipeline.compression.minbytes":    "pipeline.compression.minBytes",
			"pipeline.cache.ttlseconds":        "pipeline.cache.ttlSeconds",
			"server.responses.errortemplate":   "server.responses.errorTemplate",
		}
		transform := func(s string) string {
			// Double underscores signal a nested path
			// (PIPELINE__CACHE__TTLSECONDS -> pipeline.cache.ttlSeconds).
			key := strings.TrimPrefix(s, l.envPrefix+"_")
			key = strings.ReplaceAll(key, "__", ".")
			lower := strings.ToLower(key)
			if mapped, ok := canonical[lower]; ok {
				return mapped
			}
			// Single underscores are removed so LISTEN_PORT collapses into
			// listenport when callers choose not to use double underscores
			// for object nesting.
			key = strings.ReplaceAll(key, "_", "")
			return strings.ToLower(key)
		}
		if err := k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// parserFor picks the file parser from the extension so operators can write
// config in YAML, JSON, or TOML.
func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", "":
		return kyaml.Parser(), nil
	case ".json":
		return kjson.Parser(), nil
	case ".toml":
		return ktoml.Parser(), nil
	default:
		return nil, fmt.Errorf("config: unsupported file format %q", filepath.Ext(path))
	}
}

// structToMap converts DefaultConfig into a map for the koanf confmap provider.
func structToMap(cfg Config) map[string]any {
	return map[string]any{
		"server": map[string]any{
			"listen": map[string]any{
				"address": cfg.Server.Listen.Address,
				"port":    cfg.Server.Listen.Port,
			},
			"logging": map[string]any{
				"level":  cfg.Server.Logging.Level,
				"format": cfg.Server.Logging.Format,
			},
			"responses": map[string]any{
				"errorTemplate": cfg.Server.Responses.ErrorTemplate,
			},
		},
		"pipeline": map[string]any{
			"auth": map[string]any{
				"enabled": cfg.Pipeline.Auth.Enabled,
				"tokens":  cfg.Pipeline.Auth.Tokens,
			},
			"rateLimit": map[string]any{
				"enabled":       cfg.Pipeline.RateLimit.Enabled,
				"maxRequests":   cfg.Pipeline.RateLimit.MaxRequests,
				"windowSeconds": cfg.Pipeline.RateLimit.WindowSeconds,
			},
			"policy": map[string]any{
				"expression": cfg.Pipeline.Policy.Expression,
			},
			"cors": map[string]any{
				"enabled":        cfg.Pipeline.CORS.Enabled,
				"allowedOrigins": cfg.Pipeline.CORS.AllowedOrigins,
			},
			"compression": map[string]any{
				"enabled":  cfg.Pipeline.Compression.Enabled,
				"minBytes": cfg.Pipeline.Compression.MinBytes,
				"encoding": cfg.Pipeline.Compression.Encoding,
			},
			"cache": map[string]any{
				"enabled":    cfg.Pipeline.Cache.Enabled,
				"backend":    cfg.Pipeline.Cache.Backend,
				"ttlSeconds": cfg.Pipeline.Cache.TTLSeconds,
				"redis": map[string]any{
					"address":  cfg.Pipeline.Cache.Redis.Address,
					"username": cfg.Pipeline.Cache.Redis.Username,
					"password": cfg.Pipeline.Cache.Redis.Password,
					"db":       cfg.Pipeline.Cache.Redis.DB,
				},
			},
		},
	}
}
