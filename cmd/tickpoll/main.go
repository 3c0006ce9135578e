package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/mkofler/tickpoll/internal/batch"
	"github.com/mkofler/tickpoll/internal/config"
	"github.com/mkofler/tickpoll/internal/database"
	"github.com/mkofler/tickpoll/internal/engine"
	"github.com/mkofler/tickpoll/internal/feed"
	"github.com/mkofler/tickpoll/internal/history"
	"github.com/mkofler/tickpoll/internal/model"
	"github.com/mkofler/tickpoll/internal/version"
	"github.com/mkofler/tickpoll/internal/worker"
)

func main() {
	configPath := flag.String("config", "configs/tickpoll.yaml", "path to config file")
	flag.Parse()

	// Optional .env for local development; a missing file is fine.
	_ = godotenv.Load()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting tickpoll",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	groups, err := cfg.InstrumentGroups()
	if err != nil {
		logger.Error("invalid instrument groups", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"exchanges", len(cfg.Exchanges),
		"groups", len(groups),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to databases
	pools, err := database.NewPools(ctx, cfg.Databases)
	if err != nil {
		logger.Error("failed to connect to databases", "error", err)
		os.Exit(1)
	}
	defer pools.Close()

	store := database.NewStore(pools, logger)
	logger.Info("databases connected", "targets", len(cfg.Databases))

	// Ensure one table per symbol up front so the first flush of a
	// fresh deployment does not race table creation.
	for _, group := range groups {
		for _, sym := range group.Symbols {
			canonical := model.ResolveCanonical(sym, cfg.Aliases)
			if canonical == "" {
				continue
			}
			if err := store.EnsureTable(ctx, group.DatabaseTarget, canonical); err != nil {
				logger.Error("failed to ensure table",
					"target", group.DatabaseTarget,
					"name", canonical,
					"error", err,
				)
				os.Exit(1)
			}
		}
	}

	// Optional Redis cache for high/low seeds
	var cache *redis.Client
	if cfg.Redis.Addr != "" {
		cache = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := cache.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, high/low lookups go straight to SQL", "error", err)
			cache = nil
		} else {
			logger.Info("redis connected", "addr", cfg.Redis.Addr)
		}
	}

	seeder := history.NewLookup(store, cache, cfg.Redis.TTL.Std(), logger)
	flusher := batch.NewFlusher(store, logger)

	// Quote feed adapters
	feeds := feed.Directory{}
	if cfg.Feed.RestURL != "" {
		feeds[model.ProviderRest] = feed.NewHTTPSource(
			cfg.Feed.RestURL,
			cfg.Feed.APIKey,
			feed.WithTimeout(cfg.Feed.Timeout.Std()),
			feed.WithRetries(cfg.Feed.MaxRetries, time.Second),
			feed.WithLogger(logger),
		)
	}

	var stream *feed.StreamSource
	if cfg.Feed.WSURL != "" {
		stream = feed.NewStreamSource(feed.DefaultStreamConfig(cfg.Feed.WSURL, cfg.Feed.APIKey), logger)
		if err := stream.Start(ctx); err != nil {
			logger.Error("failed to start stream source", "error", err)
			os.Exit(1)
		}
		feeds[model.ProviderStream] = stream
	}

	// Crossing events are informational; log them.
	crossings := worker.CrossingHandlerFunc(func(ev worker.CrossingEvent) {
		logger.Info("price crossing",
			"symbol", ev.Symbol,
			"price", ev.Price,
			"prev_high", ev.PrevHigh,
			"prev_low", ev.PrevLow,
		)
	})

	// Each cycle re-reads the config file, so window or group edits
	// take effect at the next cycle boundary without a restart.
	source := engine.ConfigSourceFunc(func() ([]model.MarketWindow, []model.InstrumentGroup, map[string]string, error) {
		fresh, err := config.LoadAndValidate(*configPath)
		if err != nil {
			return nil, nil, nil, err
		}
		freshGroups, err := fresh.InstrumentGroups()
		if err != nil {
			return nil, nil, nil, err
		}
		return fresh.Windows(), freshGroups, fresh.Aliases, nil
	})

	sched := engine.New(
		engine.Config{
			CycleInterval: cfg.Engine.CycleInterval.Std(),
			Worker: worker.Config{
				FlushEvery:    cfg.Engine.FlushEvery,
				JitterMax:     cfg.Engine.JitterMax.Std(),
				FetchTimeout:  cfg.Engine.FetchTimeout.Std(),
				BackoffDelays: worker.DefaultBackoffDelays(),
			},
		},
		source,
		feeds,
		seeder,
		flusher,
		crossings,
		logger,
	)

	// Health endpoint
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: createHealthHandler(cfg.Health.Path, pools, sched, logger),
	}
	go func() {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	// Start the scheduler (first cycle is synchronous; a config
	// failure here is fatal)
	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	logger.Info("tickpoll running",
		"instance_id", cfg.Instance.ID,
		"cycle_interval", cfg.Engine.CycleInterval.Std(),
		"health_url", fmt.Sprintf("http://localhost:%d%s", cfg.Health.Port, cfg.Health.Path),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler stop timed out", "error", err)
	}
	if stream != nil {
		if err := stream.Stop(shutdownCtx); err != nil {
			logger.Warn("stream stop timed out", "error", err)
		}
	}
	healthServer.Shutdown(shutdownCtx)

	logger.Info("tickpoll stopped")
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(path string, pools *database.Pools, sched *engine.Scheduler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Cycle      string         `json:"cycle"`
			Workers    int64          `json:"workers"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Cycle:      sched.CurrentCycle(),
			Workers:    sched.LiveWorkers(),
			Components: make(map[string]any),
		}

		if err := pools.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["database"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["database"] = "connected"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
