package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/coinfeed/internal/api"
	"github.com/rickgao/coinfeed/internal/broadcast"
	"github.com/rickgao/coinfeed/internal/cache"
	"github.com/rickgao/coinfeed/internal/config"
	"github.com/rickgao/coinfeed/internal/metrics"
	"github.com/rickgao/coinfeed/internal/poller"
	"github.com/rickgao/coinfeed/internal/query"
	"github.com/rickgao/coinfeed/internal/server"
	"github.com/rickgao/coinfeed/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/coinfeed.yaml", "path to config file")
	envFile := flag.String("env-file", ".env", "optional .env file loaded before the config")
	flag.Parse()

	// Bootstrap logger until config is read
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := config.LoadDotenv(*envFile); err != nil {
		logger.Error("failed to load env file", "err", err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger = cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting coinfeed",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"api_url", cfg.API.RestURL,
		"convert", cfg.API.Convert,
	)

	// Create context with cancellation on shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("coinfeed exited with error", "err", err)
		os.Exit(1)
	}

	logger.Info("coinfeed stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// Create API client
	apiClient := api.NewClient(
		cfg.API.RestURL,
		cfg.API.APIKey,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithConvert(cfg.API.Convert),
		api.WithPagination(cfg.API.PageSize, cfg.API.MaxPages, cfg.API.PageTimeout),
	)
	normalizer := api.NewNormalizer(cfg.API.Convert, cfg.API.ImageURLTemplate)

	snapshots := cache.New()
	hub := broadcast.New(snapshots, m, logger)

	sweeper := poller.New(
		poller.Config{Interval: cfg.Poller.Interval, Timeout: cfg.Poller.Timeout},
		apiClient,
		normalizer,
		snapshots,
		hub,
		poller.WithMetrics(m),
		poller.WithLogger(logger),
	)

	engine := query.NewEngine(query.Config{
		DefaultLimit: cfg.Query.DefaultLimit,
		MaxLimit:     cfg.Query.MaxLimit,
	})

	srvCfg := server.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		WriteTimeout:   cfg.Server.WriteTimeout,
		PingInterval:   cfg.Server.PingInterval,
		EnableRefresh:  cfg.Server.EnableRefresh,
	}
	if cfg.Metrics.Enabled {
		srvCfg.MetricsPath = cfg.Metrics.Path
	}
	srv := server.New(srvCfg, snapshots, engine, hub,
		server.WithLogger(logger),
		server.WithMetrics(m),
		server.WithScheduler(sweeper),
	)

	g, gctx := errgroup.WithContext(ctx)

	// HTTP server first so queries get a 503 rather than a refused
	// connection while the first sweep runs.
	g.Go(func() error {
		return srv.Run(gctx)
	})

	g.Go(func() error {
		if err := sweeper.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := sweeper.Stop(shutdownCtx); err != nil {
			logger.Warn("poller did not stop cleanly", "err", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		// Ends every push connection; http.Server.Shutdown does not track
		// hijacked websocket connections.
		hub.Close()
		return nil
	})

	logger.Info("coinfeed running",
		"port", cfg.Server.Port,
		"interval", cfg.Poller.Interval,
		"refresh_enabled", cfg.Server.EnableRefresh,
		"metrics_enabled", cfg.Metrics.Enabled,
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
