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

	"github.com/kailas-cloud/rci/internal/cache"
	"github.com/kailas-cloud/rci/internal/config"
	logpkg "github.com/kailas-cloud/rci/internal/logger"
	"github.com/kailas-cloud/rci/internal/metrics"
	"github.com/kailas-cloud/rci/internal/parser"
	"github.com/kailas-cloud/rci/internal/store/file"
	chiTransport "github.com/kailas-cloud/rci/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/rci/internal/transport/openai"
	healthuc "github.com/kailas-cloud/rci/internal/usecase/health"
	searchuc "github.com/kailas-cloud/rci/internal/usecase/search"
	statusuc "github.com/kailas-cloud/rci/internal/usecase/status"
	syncuc "github.com/kailas-cloud/rci/internal/usecase/sync"
	"github.com/kailas-cloud/rci/internal/version"
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

	logger.Info("Starting rci API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("index_path", cfg.VectorStore.Path),
		zap.String("embedding_model", cfg.Embedding.Model),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterCoreMetrics()

	// Vector store — file-backed index
	store := file.New(cfg.VectorStore.Path, cfg.Embedding.Dimensions, logger)
	if err := store.Initialize(); err != nil {
		logger.Fatal("Failed to initialize vector store", zap.Error(err))
	}
	logger.Info("Vector store ready", zap.String("path", cfg.VectorStore.Path))

	// Embedding provider
	embedder := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		RetryDelay: time.Duration(cfg.Embedding.RetryDelaySec) * time.Second,
		Logger:     logger,
	})

	// Smart cache (exact + semantic tiers)
	smartCache := cache.New(cache.Config{
		Enabled:   cfg.Cache.Enabled,
		MaxSize:   cfg.Cache.MaxSize,
		TTL:       time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		Threshold: cfg.Cache.SimilarityThreshold,
	}, logger)

	// Optional codegen rules: a rag-enhanced rule overrides the sync namespace.
	syncDefaults := cfg.Sync
	if cfg.RulesPath != "" {
		rules, err := config.LoadRules(cfg.RulesPath)
		if err != nil {
			logger.Fatal("Failed to load rules", zap.String("path", cfg.RulesPath), zap.Error(err))
		}
		if rag := config.RagEnhancedRule(rules); rag != nil && rag.Namespace != "" {
			syncDefaults.PackageName = rag.Namespace
			logger.Info("Applying rag-enhanced rule",
				zap.String("namespace", rag.Namespace))
		}
	}

	// Use case services
	docParser := parser.New(logger)
	syncSvc := syncuc.New(docParser, store, embedder, smartCache, logger).
		WithDefaults(syncDefaults.SourcePath, syncDefaults.PackageName).
		WithBatchSize(syncDefaults.BatchSize)
	searchSvc := searchuc.New(store, embedder, smartCache, logger)
	statusSvc := statusuc.New(store, smartCache, statusuc.Config{
		VectorStore:    cfg.VectorStore.Type,
		EmbeddingModel: cfg.Embedding.Model,
		Dimension:      cfg.Embedding.Dimensions,
		Cache: statusuc.CacheConfig{
			Enabled:    cfg.Cache.Enabled,
			TTLSeconds: cfg.Cache.TTLSeconds,
			MaxSize:    cfg.Cache.MaxSize,
		},
	}, logger)
	healthSvc := healthuc.New(store, embedder)

	// Chi server
	server := chiTransport.NewServer(searchSvc, syncSvc, statusSvc, healthSvc, logger)

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
					_ = json.NewEncoder(w).Encode(map[string]any{
						"success": false,
						"error":   "internal error",
						"code":    "INTERNAL_ERROR",
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
