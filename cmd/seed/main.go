// Command seed imports a YAML fixture of KPI snapshots into Postgres.
// When REDIS_URL is set, cached markets are invalidated as snapshots land.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/onnwee/leaderhub/internal/config"
	"github.com/onnwee/leaderhub/internal/db"
	"github.com/onnwee/leaderhub/internal/kpi"
	"github.com/onnwee/leaderhub/internal/middleware"
	"github.com/onnwee/leaderhub/internal/stats"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	fixturePath := flag.String("file", "", "YAML fixture to import (required)")
	concurrency := flag.Int("concurrency", kpi.DefaultImportConcurrency, "concurrent upserts per market")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: seed -file fixture.yaml [-config config.yaml] [-concurrency n]")
		os.Exit(2)
	}

	cfg, errs := config.Load(*configPath)
	env := config.DefaultEnv
	if cfg != nil {
		env = cfg.Env
	}
	logger := middleware.NewLogger(env)
	slog.SetDefault(logger)

	if errs = importErrors(errs); len(errs) > 0 {
		for _, err := range errs {
			logger.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *fixturePath, *concurrency, logger); err != nil {
		logger.Error("import failed", "error", err)
		os.Exit(1)
	}
}

// importErrors drops configuration errors that only matter to the API
// server.
func importErrors(errs []error) []error {
	var out []error
	for _, err := range errs {
		if errors.Is(err, config.ErrMissingJWTSecret) || errors.Is(err, config.ErrWeakJWTSecret) {
			continue
		}
		out = append(out, err)
	}
	return out
}

func run(ctx context.Context, cfg *config.Config, fixturePath string, concurrency int, logger *slog.Logger) error {
	fixture, err := kpi.LoadFixture(fixturePath)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return config.ErrMissingDatabaseURL
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultPoolConfig())
	if err != nil {
		return err
	}
	defer pool.Close()

	var repo kpi.Repository = kpi.NewPostgresRepository(pool)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		repo = kpi.NewCachedRepository(repo, client, cfg.KPICacheTTL(), nil, logger)
	}

	st := stats.NewImportStats()
	err = fixture.Apply(ctx, repo, concurrency, st)
	st.LogSummary(logger, fixturePath)
	return err
}
