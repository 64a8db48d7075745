// Package main is the entry point for the leaderhub API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/onnwee/leaderhub/internal/config"
	"github.com/onnwee/leaderhub/internal/kpi"
	"github.com/onnwee/leaderhub/internal/middleware"
	"github.com/onnwee/leaderhub/internal/ranking"
	"github.com/onnwee/leaderhub/internal/stats"
	"github.com/onnwee/leaderhub/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	memory := flag.Bool("memory", false, "serve from the in-memory KPI store instead of Postgres")
	seedPath := flag.String("seed", "", "YAML fixture loaded into the store at startup")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Leaderhub API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *memory {
		_ = os.Setenv("LEADERHUB_MEMORY_STORE", "true")
	}
	cfg, errs := config.Load(*configPath)

	env := config.DefaultEnv
	if cfg != nil {
		env = cfg.Env
	}
	logger := middleware.NewLogger(env)
	slog.SetDefault(logger)

	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}

	summary := make([]any, 0, 2*len(cfg.LogSummary()))
	for k, v := range cfg.LogSummary() {
		summary = append(summary, k, v)
	}
	logger.Info("configuration loaded", summary...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *seedPath); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, seedPath string) error {
	tp, err := tracing.NewProvider(cfg.Tracing())
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down tracing", "error", err)
		}
	}()

	catalog, err := ranking.LoadCatalog(cfg.DimensionCatalogPath)
	if err != nil {
		// LoadCatalog returns the defaults alongside the error.
		logger.Warn("serving default dimension catalog", "error", err)
	}

	kpiMetrics := kpi.NewMetrics()
	store, err := openStorage(ctx, cfg, kpiMetrics, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close storage", "error", err)
		}
	}()

	if seedPath != "" {
		if err := seed(ctx, store.repo, seedPath, logger); err != nil {
			return err
		}
	}

	handler, err := newHandler(handlerDeps{
		ctx:        ctx,
		cfg:        cfg,
		logger:     logger,
		store:      store,
		catalog:    catalog,
		registry:   prometheus.NewRegistry(),
		kpiMetrics: kpiMetrics,
	})
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return serve(ctx, newServer(handler), ln, logger)
}

func newServer(handler http.Handler) *http.Server {
	return &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// serve runs server on ln until ctx is done, then drains in-flight
// requests for up to shutdownTimeout.
func serve(ctx context.Context, server *http.Server, ln net.Listener, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", ln.Addr().String())
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// seed loads a fixture into repo before serving.
func seed(ctx context.Context, repo kpi.Repository, path string, logger *slog.Logger) error {
	fixture, err := kpi.LoadFixture(path)
	if err != nil {
		return err
	}
	st := stats.NewImportStats()
	err = fixture.Apply(ctx, repo, kpi.DefaultImportConcurrency, st)
	st.LogSummary(logger, path)
	if err != nil {
		return fmt.Errorf("failed to seed store: %w", err)
	}
	return nil
}
