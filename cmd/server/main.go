// Package main runs the metrics API server: the simulation engine, its HTTP
// and websocket surface, and the optional warehouse, cache and Kafka sinks.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vectorquant/internal/alerting"
	"vectorquant/internal/api"
	"vectorquant/internal/checkpoint"
	"vectorquant/internal/config"
	"vectorquant/internal/engine"
	"vectorquant/internal/logging"
	"vectorquant/internal/observability"
	"vectorquant/internal/publisher"
	"vectorquant/internal/simulation"
	"vectorquant/internal/storage"
	"vectorquant/internal/storage/memory"
	rediscache "vectorquant/internal/storage/redis"
	"vectorquant/internal/stream"
	"vectorquant/internal/warehouse"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var cfgFile, envFile string

	cmd := &cobra.Command{
		Use:          "server",
		Short:        "Serve simulated trading metrics over HTTP",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnvFile(envFile); err != nil {
				return err
			}
			if brokers, _ := cmd.Flags().GetStringSlice("kafka-brokers"); len(brokers) > 0 {
				v.Set("kafka.brokers", brokers)
				v.Set("kafka.enabled", true)
			}
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}

			logger := logging.New(cfg.Log.Level, cfg.Log.Format)
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cfg, logger); err != nil {
				logger.Error("server stopped", zap.Error(err))
				return err
			}
			logger.Info("server stopped")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "path to a YAML config file")
	flags.StringVar(&envFile, "env-file", ".env", "path to a .env file")
	flags.String("addr", ":8000", "API listen address")
	flags.String("metrics-addr", ":9090", "Prometheus listen address (empty disables)")
	flags.String("storage", "memory", "storage backend: memory or sql")
	flags.String("postgres-dsn", "", "Postgres DSN for the alerts store")
	flags.String("clickhouse-dsn", "", "ClickHouse DSN for the time series stores")
	flags.Uint64("seed", 0, "simulation seed (0 draws from entropy)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.Bool("redis", false, "checkpoint state to Redis")
	flags.StringSlice("kafka-brokers", nil, "Kafka brokers; enables event publishing when set")

	bindFlags(v, flags, map[string]string{
		"server.addr":            "addr",
		"server.metrics_addr":    "metrics-addr",
		"storage.backend":        "storage",
		"storage.postgres_dsn":   "postgres-dsn",
		"storage.clickhouse_dsn": "clickhouse-dsn",
		"simulation.seed":        "seed",
		"log.level":              "log-level",
		"redis.enabled":          "redis",
	})
	return cmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	stores, closeStores, err := warehouse.Open(ctx, warehouse.OpenOptions{
		Backend:       cfg.Storage.Backend,
		PostgresDSN:   cfg.Storage.PostgresDSN,
		ClickhouseDSN: cfg.Storage.ClickhouseDSN,
		MaxConns:      cfg.Storage.MaxConns,
		Retention:     cfg.Storage.Retention,
		MaxRows:       cfg.Storage.MaxRows,
	}, logger)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer closeStores()

	cache, closeCache, err := openCache(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	eng := engine.New(engine.Options{
		Stepper: simulation.NewStepper(
			simulation.NewSource(cfg.Simulation.Seed),
			simulation.WithUptimeStep(cfg.Simulation.UptimeStep),
		),
		Evaluator: alerting.NewEvaluator(),
		Logger:    logger,
	})

	cp := checkpoint.New(cache, eng, checkpoint.DefaultInterval, logger)
	if _, err := cp.Restore(ctx, eng); err != nil {
		logger.Warn("starting from initial state", zap.Error(err))
	}

	guard := warehouse.NewGuard(warehouse.GuardSettings{
		Name:         "warehouse",
		CallTimeout:  cfg.Warehouse.CallTimeout,
		OpenFor:      cfg.Warehouse.OpenFor,
		MinRequests:  cfg.Warehouse.MinRequests,
		FailureRatio: cfg.Warehouse.FailureRatio,
	}, logger)

	recorder := warehouse.NewRecorder(stores, guard, cfg.Warehouse.QueueSize, logger)
	eng.OnTick(recorder)
	eng.OnAlerts(recorder)

	hub := stream.NewHub(logger)
	eng.OnTick(hub)
	eng.OnAlerts(hub)

	if cfg.Kafka.Enabled {
		pub := publisher.New(publisher.NewKafkaWriter(cfg.Kafka.Brokers), publisher.Topics{
			Snapshots: cfg.Kafka.SnapshotTopic,
			Alerts:    cfg.Kafka.AlertTopic,
		}, logger)
		eng.OnTick(pub)
		eng.OnAlerts(pub)
		defer func() {
			if err := pub.Close(); err != nil {
				logger.Warn("close publisher", zap.Error(err))
			}
		}()
	}

	apiServer := api.NewServer(api.Deps{
		Engine:  eng,
		History: warehouse.NewHistory(stores, guard, eng, logger),
		Stream:  hub,
		Logger:  logger,
	}, api.Config{
		RatePerSecond: cfg.Server.RatePerSecond,
		Burst:         cfg.Server.Burst,
		AllowOrigins:  cfg.Server.AllowOrigins,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	// Hijacked websocket connections are not closed by Shutdown.
	httpServer.RegisterOnShutdown(hub.Close)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return recorder.Run(gctx) })
	g.Go(func() error { return cp.Run(gctx) })
	g.Go(func() error {
		return serve(gctx, httpServer, cfg.Server.ShutdownTimeout, logger.With(zap.String("listener", "api")))
	})

	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		metricsServer := &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			return serve(gctx, metricsServer, cfg.Server.ShutdownTimeout, logger.With(zap.String("listener", "metrics")))
		})
	}

	logger.Info("server started",
		zap.String("addr", cfg.Server.Addr),
		zap.String("metrics_addr", cfg.Server.MetricsAddr),
		zap.String("storage", cfg.Storage.Backend),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Bool("kafka", cfg.Kafka.Enabled),
	)
	return g.Wait()
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, timeout time.Duration, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen %s: %w", srv.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown %s: %w", srv.Addr, err)
	}
	return nil
}

// openCache connects the Redis snapshot cache when enabled and falls back to
// an in-process cache otherwise, or when Redis cannot be reached.
func openCache(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (storage.SnapshotCache, func(), error) {
	if !cfg.Enabled {
		return memory.NewSnapshotCache(), func() {}, nil
	}

	cache, client, err := rediscache.Connect(ctx, rediscache.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		Key:      cfg.Key,
		TTL:      cfg.TTL,
	})
	if err != nil {
		logger.Warn("redis unavailable, checkpoints stay in memory", zap.Error(err))
		return memory.NewSnapshotCache(), func() {}, nil
	}
	return cache, func() {
		if err := client.Close(); err != nil {
			logger.Warn("close redis", zap.Error(err))
		}
	}, nil
}
