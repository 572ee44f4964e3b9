package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/pagedex/pagedex/internal/config"
	"github.com/pagedex/pagedex/internal/db"
	dbRedis "github.com/pagedex/pagedex/internal/db/redis"
	dbValkey "github.com/pagedex/pagedex/internal/db/valkey"
	"github.com/pagedex/pagedex/internal/domain/search/query"
	logpkg "github.com/pagedex/pagedex/internal/logger"
	"github.com/pagedex/pagedex/internal/metrics"
	"github.com/pagedex/pagedex/internal/repository/querycache"
	searchrepo "github.com/pagedex/pagedex/internal/repository/search"
	"github.com/pagedex/pagedex/internal/retry"
	chiTransport "github.com/pagedex/pagedex/internal/transport/chi"
	countuc "github.com/pagedex/pagedex/internal/usecase/count"
	fieldsuc "github.com/pagedex/pagedex/internal/usecase/fields"
	healthuc "github.com/pagedex/pagedex/internal/usecase/health"
	"github.com/pagedex/pagedex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting pagedex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Create database store based on driver
	var store db.Store
	switch cfg.Database.Driver {
	case "valkey":
		store, err = dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
	case "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterSearchMetrics()
	metrics.RegisterHTTPMetrics()

	retryPolicy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.BaseDelayMs) * time.Millisecond,
	}
	callTimeout := time.Duration(cfg.Search.CallTimeoutSec) * time.Second

	// Build the executor chain: bare repository, optionally wrapped in the
	// result cache.
	searchRepo := searchrepo.New(store)
	var exec chiTransport.Executor = searchRepo
	var cache *querycache.Cache
	if cfg.Cache.Enabled {
		cache = querycache.New(
			searchRepo,
			querycache.Config{
				TTL:                time.Duration(cfg.Cache.TTLSec) * time.Second,
				Capacity:           cfg.Cache.Capacity,
				SlowQueryThreshold: time.Duration(cfg.Cache.SlowQueryMillis) * time.Millisecond,
				SlowLogCapacity:    cfg.Cache.SlowLogCapacity,
			},
			metrics.CacheTotal,
			metrics.CacheEvictionsTotal,
			metrics.SlowQueriesTotal,
			logger,
		)
		exec = cache
		logger.Info("Result cache enabled",
			zap.Int("capacity", cfg.Cache.Capacity),
			zap.Int("ttl_sec", cfg.Cache.TTLSec),
		)
	}

	// Create use case services
	countSvc := countuc.New(exec, searchRepo, countuc.Config{Retry: retryPolicy})
	healthSvc := healthuc.New(store)

	indexes, err := buildIndexes(cfg.Indexes)
	if err != nil {
		logger.Fatal("Invalid index configuration", zap.Error(err))
	}

	// Create chi server
	server := chiTransport.NewServer(exec, countSvc, cache, healthSvc, chiTransport.Config{
		Limits: query.Limits{
			MaxPageSize:   cfg.Search.MaxPageSize,
			OffsetCeiling: cfg.Search.OffsetCeiling,
		},
		Retry:       retryPolicy,
		CallTimeout: callTimeout,
		Indexes:     indexes,
	}, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildIndexes turns the YAML index settings into transport index configs.
func buildIndexes(settings map[string]config.IndexSettings) (map[string]chiTransport.IndexConfig, error) {
	indexes := make(map[string]chiTransport.IndexConfig, len(settings))
	for name, s := range settings {
		var selector *fieldsuc.Selector
		if len(s.Schema) > 0 {
			var err error
			selector, err = fieldsuc.New(fieldsuc.Config{
				Schema:    s.Schema,
				Essential: s.Essential,
				Presets:   s.Presets,
			})
			if err != nil {
				return nil, fmt.Errorf("index %s: %w", name, err)
			}
		}
		sortable := make(map[string]bool, len(s.Sortable))
		for _, f := range s.Sortable {
			sortable[f] = true
		}
		indexes[name] = chiTransport.IndexConfig{
			Selector: selector,
			Sortable: sortable,
		}
	}
	return indexes, nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// One canonical line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
