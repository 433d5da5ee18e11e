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

	"github.com/cedrus-db/cedrus/internal/config"
	dbRedis "github.com/cedrus-db/cedrus/internal/db/redis"
	"github.com/cedrus-db/cedrus/internal/domain"
	"github.com/cedrus-db/cedrus/internal/domain/schema"
	logpkg "github.com/cedrus-db/cedrus/internal/logger"
	"github.com/cedrus-db/cedrus/internal/metrics"
	documentrepo "github.com/cedrus-db/cedrus/internal/repository/document"
	"github.com/cedrus-db/cedrus/internal/repository/embcache"
	filterrepo "github.com/cedrus-db/cedrus/internal/repository/filter"
	schemarepo "github.com/cedrus-db/cedrus/internal/repository/schema"
	searchrepo "github.com/cedrus-db/cedrus/internal/repository/search"
	chiTransport "github.com/cedrus-db/cedrus/internal/transport/chi"
	openaiEmb "github.com/cedrus-db/cedrus/internal/transport/openai"
	embeddinguc "github.com/cedrus-db/cedrus/internal/usecase/embedding"
	searchuc "github.com/cedrus-db/cedrus/internal/usecase/search"
	storeuc "github.com/cedrus-db/cedrus/internal/usecase/store"
	"github.com/cedrus-db/cedrus/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting cedrus API server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
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

	// Register embedding metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()

	// Providers are wired by name; adding one means one Register call.
	registry := embeddinguc.NewRegistry()
	registry.Register("openai", func(pc embeddinguc.ProviderConfig, l *zap.Logger) (domain.Embedder, error) {
		return openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     pc.APIKey,
			BaseURL:    pc.BaseURL,
			Model:      pc.Model,
			Dimensions: pc.Dimensions,
			Provider:   "openai",
			Logger:     l,
		}), nil
	})

	provCfg := cfg.ProviderSettings()
	embedder, err := buildEmbedder(registry, cfg, provCfg, store, logger)
	if err != nil {
		logger.Fatal("Failed to create embedder", zap.Error(err))
	}
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", provCfg.Model),
		zap.Int("dimensions", provCfg.Dimensions),
		zap.Bool("cache", cfg.Embedding.Cache),
	)

	col, err := buildCollection(cfg)
	if err != nil {
		logger.Fatal("Invalid collection schema", zap.Error(err))
	}

	// Create repositories
	docRepo := documentrepo.New(store, col)
	searchRepo := searchrepo.New(store, col)
	schemaRepo := schemarepo.New(store, schemarepo.HNSWConfig{
		M:           cfg.Store.HNSWM,
		EFConstruct: cfg.Store.HNSWEFConstruct,
	}, logger)
	converter := filterrepo.New(col)

	// Create use case services
	storeSvc := storeuc.New(docRepo, schemaRepo, embedder, col, logger)
	searchSvc := searchuc.New(searchRepo, converter, embedder, logger)

	if cfg.Store.InitializeSchema {
		result, err := storeSvc.EnsureSchema(ctx)
		if err != nil {
			logger.Fatal("Schema initialization failed", zap.Error(err))
		}
		if result.Warning != nil {
			logger.Warn("Schema initialized with warning", zap.Error(result.Warning))
		}
	}

	// Create chi server
	server := chiTransport.NewServer(storeSvc, searchSvc, store, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.RegisterRoutes(r)

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

// buildCollection maps the store configuration onto a collection schema.
func buildCollection(cfg config.Config) (schema.Collection, error) {
	fields, err := schema.ParseFields(cfg.Store.FilterableFields)
	if err != nil {
		return schema.Collection{}, fmt.Errorf("parse filterable fields: %w", err)
	}

	col, err := schema.New(
		cfg.Store.CollectionName,
		cfg.Store.VectorPath,
		cfg.Store.IndexName,
		cfg.Store.Dimensions,
		schema.Metric(cfg.Store.Metric),
		fields,
	)
	if err != nil {
		return schema.Collection{}, fmt.Errorf("build collection schema: %w", err)
	}
	return col, nil
}

// buildEmbedder assembles the decorator chain: provider -> Cached -> Instrumented
func buildEmbedder(
	registry *embeddinguc.Registry,
	cfg config.Config,
	provCfg config.ProviderConfig,
	store *dbRedis.Store,
	logger *zap.Logger,
) (domain.Embedder, error) {
	base, err := registry.New(cfg.Embedding.Provider, embeddinguc.ProviderConfig{
		APIKey:     provCfg.APIKey,
		BaseURL:    provCfg.BaseURL,
		Model:      provCfg.Model,
		Dimensions: provCfg.Dimensions,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build provider %q: %w", cfg.Embedding.Provider, err)
	}

	embedder := base
	if cfg.Embedding.Cache {
		embedder = embcache.New(base, store, metrics.EmbeddingCacheTotal, logger)
	}

	return embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Embedding.Provider, provCfg.Model, logger,
	), nil
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

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
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
