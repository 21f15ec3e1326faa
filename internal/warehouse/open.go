package warehouse

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	chstore "vectorquant/internal/storage/clickhouse"
	"vectorquant/internal/storage/memory"
	"vectorquant/internal/storage/migrations"
	pgstore "vectorquant/internal/storage/postgres"
)

// Storage backends accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQL    = "sql"
)

// OpenOptions selects and configures the store backend.
type OpenOptions struct {
	Backend       string
	PostgresDSN   string
	ClickhouseDSN string
	MaxConns      int32
	// Migrate applies the embedded schema before the stores are built.
	Migrate bool
	// Retention and MaxRows bound the memory backend; zero keeps its defaults.
	Retention time.Duration
	MaxRows   int
}

// Open builds the stores for opts.Backend. The returned cleanup closes any
// connections that were opened and is never nil.
func Open(ctx context.Context, opts OpenOptions, logger *zap.Logger) (Stores, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch opts.Backend {
	case BackendMemory, "":
		var keep []memory.Option
		if opts.Retention > 0 {
			keep = append(keep, memory.WithHorizon(opts.Retention))
		}
		if opts.MaxRows > 0 {
			keep = append(keep, memory.WithMaxRows(opts.MaxRows))
		}
		logger.Info("using in-memory stores",
			zap.Duration("retention", opts.Retention),
			zap.Int("max_rows", opts.MaxRows))
		return Stores{
			Prices:  memory.NewPriceStore(keep...),
			Metrics: memory.NewMetricStore(keep...),
			Alerts:  memory.NewAlertStore(keep...),
		}, func() {}, nil
	case BackendSQL:
		return openSQL(ctx, opts, logger)
	default:
		return Stores{}, func() {}, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

func openSQL(ctx context.Context, opts OpenOptions, logger *zap.Logger) (Stores, func(), error) {
	pool, err := pgstore.NewPool(ctx, opts.PostgresDSN, opts.MaxConns)
	if err != nil {
		return Stores{}, func() {}, err
	}

	var conn *chstore.Conn
	if opts.Migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return Stores{}, func() {}, fmt.Errorf("postgres migrations: %w", err)
		}
		conn, err = migrations.RunClickhouseMigrations(ctx, opts.ClickhouseDSN)
		if err != nil {
			pool.Close()
			return Stores{}, func() {}, fmt.Errorf("clickhouse migrations: %w", err)
		}
		logger.Info("migrations applied")
	} else {
		conn, err = chstore.NewConn(ctx, opts.ClickhouseDSN)
		if err != nil {
			pool.Close()
			return Stores{}, func() {}, err
		}
	}

	logger.Info("using sql stores")
	stores := Stores{
		Prices:  chstore.NewPriceStore(conn),
		Metrics: chstore.NewMetricStore(conn),
		Alerts:  pgstore.NewAlertStore(pool),
	}
	cleanup := func() {
		if err := conn.Close(); err != nil {
			logger.Warn("close clickhouse", zap.Error(err))
		}
		pool.Close()
	}
	return stores, cleanup, nil
}
