package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/leaderhub/internal/api"
	"github.com/onnwee/leaderhub/internal/auth"
	"github.com/onnwee/leaderhub/internal/config"
	"github.com/onnwee/leaderhub/internal/db"
	"github.com/onnwee/leaderhub/internal/health"
	"github.com/onnwee/leaderhub/internal/kpi"
	"github.com/onnwee/leaderhub/internal/leaderboard"
	"github.com/onnwee/leaderhub/internal/middleware"
	"github.com/onnwee/leaderhub/internal/ranking"
	"github.com/onnwee/leaderhub/internal/tracing"
)

// storage is the KPI store plus the connections behind it.
type storage struct {
	repo  kpi.Repository
	db    *sql.DB
	redis *redis.Client
}

// Close releases the connections.
func (s *storage) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}

// openStorage connects the KPI store the config selects: the in-memory
// store, or Postgres optionally fronted by the Redis cache.
func openStorage(ctx context.Context, cfg *config.Config, metrics *kpi.Metrics, logger *slog.Logger) (*storage, error) {
	s := &storage{}

	if cfg.MemoryStore {
		s.repo = kpi.NewInMemoryRepository()
		logger.Warn("using in-memory KPI store; data is lost on restart")
	} else {
		pool, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultPoolConfig())
		if err != nil {
			return nil, err
		}
		s.db = pool
		s.repo = kpi.NewPostgresRepository(pool)
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		s.redis = redis.NewClient(opts)
		s.repo = kpi.NewCachedRepository(s.repo, s.redis, cfg.KPICacheTTL(), metrics, logger)
	}

	return s, nil
}

// handlerDeps are the collaborators newHandler wires together.
type handlerDeps struct {
	// ctx bounds background work such as rate limit cleanup.
	ctx      context.Context
	cfg      *config.Config
	logger   *slog.Logger
	store    *storage
	catalog  *ranking.Catalog
	registry *prometheus.Registry

	// kpiMetrics is registered by newHandler; openStorage already holds it.
	kpiMetrics *kpi.Metrics
}

// newHandler builds the full middleware chain and route table.
func newHandler(d handlerDeps) (http.Handler, error) {
	httpMetrics := middleware.NewMetrics()
	lbMetrics := leaderboard.NewMetrics()

	d.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := httpMetrics.Register(d.registry); err != nil {
		return nil, fmt.Errorf("failed to register http metrics: %w", err)
	}
	if err := lbMetrics.Register(d.registry); err != nil {
		return nil, fmt.Errorf("failed to register leaderboard metrics: %w", err)
	}
	if d.kpiMetrics != nil {
		if err := d.kpiMetrics.Register(d.registry); err != nil {
			return nil, fmt.Errorf("failed to register kpi metrics: %w", err)
		}
	}

	var jwtOpts []auth.Option
	if d.cfg.JWTSecretPrevious != "" {
		jwtOpts = append(jwtOpts, auth.WithPreviousSecret(d.cfg.JWTSecretPrevious))
	}
	jwtService := auth.NewJWTService(d.cfg.JWTSecret, jwtOpts...)

	limit := middleware.RateLimitConfig{
		RequestsPerWindow: d.cfg.RateLimitPerMinute,
		WindowDuration:    time.Minute,
	}
	if err := limit.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rate limit: %w", err)
	}
	var limitStore middleware.RateLimitStore
	if d.store.redis != nil {
		limitStore = middleware.NewRedisRateLimitStore(d.store.redis)
	} else {
		memStore := middleware.NewInMemoryRateLimitStore()
		go cleanupLoop(d.ctx, memStore, limit.WindowDuration)
		limitStore = memStore
	}
	authenticate := middleware.Authenticate(jwtService)
	rateLimit := middleware.RateLimiter(limitStore, limit, middleware.ProviderKeyFunc(), httpMetrics)
	protect := func(next http.Handler) http.Handler {
		return authenticate(rateLimit(next))
	}

	service := leaderboard.NewService(leaderboard.ServiceConfig{
		Repository: d.store.repo,
		Catalog:    d.catalog,
		Metrics:    lbMetrics,
		Logger:     d.logger,
	})

	healthCfg := api.HealthHandlersConfig{}
	if d.store.db != nil {
		healthCfg.DBChecker = health.NewDBChecker(d.store.db)
	}
	if d.store.redis != nil {
		healthCfg.RedisChecker = health.NewRedisChecker(d.store.redis)
	}
	healthHandlers := api.NewHealthHandlers(healthCfg)

	mux := http.NewServeMux()
	api.NewLeaderboardHandlers(service, d.store.repo).RegisterRoutes(mux, protect)
	mux.HandleFunc("GET /health", healthHandlers.Health)
	mux.HandleFunc("GET /ready", healthHandlers.Ready)
	mux.Handle("GET /metrics", api.MetricsHandler(d.registry, d.cfg.MetricsToken))
	mux.Handle("/", api.NotFound())

	// RequestID -> Tracing -> HTTPMetrics -> Logging -> routes
	var handler http.Handler = mux
	handler = middleware.Logging(d.logger)(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Tracing(tracing.DefaultServiceName)(handler)
	handler = middleware.RequestID(handler)
	return handler, nil
}

// cleanupLoop drops expired rate limit buckets every interval until ctx ends.
func cleanupLoop(ctx context.Context, store *middleware.InMemoryRateLimitStore, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.Cleanup()
		}
	}
}
