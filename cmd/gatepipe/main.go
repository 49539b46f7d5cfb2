package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/l0p7/gatepipe/internal/api"
	"github.com/l0p7/gatepipe/internal/cache"
	"github.com/l0p7/gatepipe/internal/config"
	"github.com/l0p7/gatepipe/internal/logging"
	"github.com/l0p7/gatepipe/internal/metrics"
	"github.com/l0p7/gatepipe/internal/middleware"
	"github.com/l0p7/gatepipe/internal/pipeline"
	"github.com/l0p7/gatepipe/internal/proxy"
	"github.com/l0p7/gatepipe/internal/server"
	"github.com/l0p7/gatepipe/internal/templates"
)

func main() {
	var (
		configFile = flag.String("config", "", "path to server configuration file")
		envPrefix  = flag.String("env-prefix", "GATEPIPE", "environment variable prefix")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(*envPrefix, *configFile)
	cfg, err := loader.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Server.Logging)
	if err != nil {
		log.Fatalf("failed to configure logger: %v", err)
	}

	promRegistry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(promRegistry)

	renderer := templates.NewRenderer()
	errorTpl, err := renderer.CompileInline("error", cfg.Server.Responses.ErrorTemplate)
	if err != nil {
		logger.Error("error template invalid", slog.Any("error", err))
		os.Exit(1)
	}

	chain, store, err := buildChain(cfg, logger, recorder)
	if err != nil {
		logger.Error("pipeline assembly failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore(logger, store)

	adapter := server.NewAdapter(chain, logger, errorTpl)

	if *configFile != "" {
		watcher, err := loader.Watch(ctx, func(next config.Config) {
			newChain, newStore, buildErr := buildChain(next, logger, recorder)
			if buildErr != nil {
				logger.Error("reload rejected", slog.Any("error", buildErr))
				return
			}
			adapter.Swap(newChain)
			closeStore(logger, store)
			store = newStore
			logger.Info("pipeline reloaded")
		}, func(err error) {
			if err != nil {
				logger.Error("config watcher error", slog.Any("error", err))
			}
		})
		if err != nil {
			logger.Error("config watcher setup failed", slog.Any("error", err))
		} else {
			defer watcher.Stop()
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/", adapter)

	srv, err := server.New(cfg, logger, mux)
	if err != nil {
		logger.Error("unable to construct server", slog.Any("error", err))
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated unexpectedly", slog.Any("error", err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}

// buildChain assembles the middleware stack around the terminal handler in
// the documented order: measurement and logging wrap everything so they
// observe accepted and rejected calls alike, guards sit inside them, and the
// caching proxy wraps only the expensive core together with compression.
func buildChain(cfg config.Config, logger *slog.Logger, recorder *metrics.Recorder) (pipeline.Handler, cache.Store, error) {
	var units []pipeline.Middleware

	units = append(units,
		middleware.NewMetrics(recorder),
		middleware.NewRequestID(),
		middleware.NewLogging(logger),
	)

	if cfg.Pipeline.CORS.Enabled {
		cors, err := middleware.NewCORS(cfg.Pipeline.CORS)
		if err != nil {
			return nil, nil, err
		}
		units = append(units, cors)
	}
	if cfg.Pipeline.Auth.Enabled {
		auth, err := middleware.NewAuth(cfg.Pipeline.Auth, logger)
		if err != nil {
			return nil, nil, err
		}
		units = append(units, auth)
	}
	if cfg.Pipeline.RateLimit.Enabled {
		limiter, err := middleware.NewRateLimit(cfg.Pipeline.RateLimit, logger)
		if err != nil {
			return nil, nil, err
		}
		units = append(units, limiter)
	}
	if strings.TrimSpace(cfg.Pipeline.Policy.Expression) != "" {
		policy, err := middleware.NewPolicy(cfg.Pipeline.Policy, logger)
		if err != nil {
			return nil, nil, err
		}
		units = append(units, policy)
	}

	var store cache.Store
	if cfg.Pipeline.Cache.Enabled {
		store = buildStore(logger, cfg.Pipeline.Cache)
		cacheProxy, err := proxy.New(proxy.Config{
			TTL:      cfg.Pipeline.Cache.TTL(),
			Store:    store,
			Logger:   logger,
			Recorder: recorder,
		})
		if err != nil {
			return nil, nil, err
		}
		units = append(units, cacheProxy)
	}

	if cfg.Pipeline.Compression.Enabled {
		compression, err := middleware.NewCompression(cfg.Pipeline.Compression)
		if err != nil {
			return nil, nil, err
		}
		units = append(units, compression)
	}

	chain, err := pipeline.Chain(api.New(), units...)
	if err != nil {
		return nil, nil, err
	}
	return chain, store, nil
}

// buildStore selects the cache backend, falling back to memory when Redis is
// unreachable so a cache outage degrades performance instead of availability.
func buildStore(logger *slog.Logger, cfg config.CacheConfig) cache.Store {
	backend := strings.TrimSpace(strings.ToLower(cfg.Backend))
	switch backend {
	case "", "memory":
		if logger != nil {
			logger.Info("using memory response cache", slog.Duration("ttl", cfg.TTL()))
		}
		return cache.NewMemory()
	case "redis":
		store, err := cache.NewRedis(cache.RedisConfig{
			Address:  cfg.Redis.Address,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			if logger != nil {
				logger.Error("redis cache initialization failed", slog.Any("error", err))
				logger.Info("falling back to memory cache")
			}
			return cache.NewMemory()
		}
		if logger != nil {
			logger.Info("using redis response cache", slog.String("address", cfg.Redis.Address))
		}
		return store
	default:
		if logger != nil {
			logger.Warn("unsupported cache backend, defaulting to memory", slog.String("backend", cfg.Backend))
		}
		return cache.NewMemory()
	}
}

func closeStore(logger *slog.Logger, store cache.Store) {
	if store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := store.Close(ctx); err != nil {
		logger.Error("cache shutdown failed", slog.Any("error", err))
	}
}
