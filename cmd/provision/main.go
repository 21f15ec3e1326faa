// Package main applies the warehouse schema and optionally loads sample rows.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vectorquant/internal/config"
	"vectorquant/internal/logging"
	"vectorquant/internal/simulation"
	"vectorquant/internal/warehouse"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	v.SetDefault("storage.backend", config.BackendSQL)
	var (
		cfgFile string
		envFile string
		seed    bool
		rngSeed uint64
	)

	cmd := &cobra.Command{
		Use:          "provision",
		Short:        "Create warehouse tables and optionally seed sample data",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnvFile(envFile); err != nil {
				return err
			}
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}

			logger := logging.New(cfg.Log.Level, cfg.Log.Format)
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return provision(ctx, cfg, seed, rngSeed, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "path to a YAML config file")
	flags.StringVar(&envFile, "env-file", ".env", "path to a .env file")
	flags.BoolVar(&seed, "seed", false, "insert 24h of sample prices, metrics and alerts")
	flags.Uint64Var(&rngSeed, "rng-seed", 0, "random seed for sample rows (0 draws from entropy)")
	flags.String("storage", "sql", "storage backend: memory or sql")
	flags.String("postgres-dsn", "", "Postgres DSN")
	flags.String("clickhouse-dsn", "", "ClickHouse DSN")

	for key, name := range map[string]string{
		"storage.backend":        "storage",
		"storage.postgres_dsn":   "postgres-dsn",
		"storage.clickhouse_dsn": "clickhouse-dsn",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
	return cmd
}

func provision(ctx context.Context, cfg *config.Config, seed bool, rngSeed uint64, logger *zap.Logger) error {
	start := time.Now()

	stores, cleanup, err := warehouse.Open(ctx, warehouse.OpenOptions{
		Backend:       cfg.Storage.Backend,
		PostgresDSN:   cfg.Storage.PostgresDSN,
		ClickhouseDSN: cfg.Storage.ClickhouseDSN,
		MaxConns:      cfg.Storage.MaxConns,
		Retention:     cfg.Storage.Retention,
		MaxRows:       cfg.Storage.MaxRows,
		Migrate:       true,
	}, logger)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer cleanup()

	if !seed {
		logger.Info("schema ready", zap.Duration("took", time.Since(start)))
		return nil
	}

	res, err := warehouse.Seed(ctx, stores, simulation.NewSource(rngSeed), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	logger.Info("sample data loaded",
		zap.Int("prices", res.Prices),
		zap.Int("metrics", res.Metrics),
		zap.Int("alerts", res.Alerts),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}
