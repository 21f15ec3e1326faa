// Package main polls a running server and logs a compact dashboard card per
// poll. It keeps printing simulated numbers when the server is offline.
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

	"vectorquant/internal/client"
	"vectorquant/internal/config"
	"vectorquant/internal/domain"
	"vectorquant/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var (
		cfgFile     string
		envFile     string
		polls       int
		mode        string
		riskLimit   float64
		temperature float64
	)

	cmd := &cobra.Command{
		Use:          "watch",
		Short:        "Poll the metrics API and log what a dashboard would show",
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

			c := client.New(cfg.Client.BaseURL,
				client.WithMetricsTimeout(cfg.Client.MetricsTimeout),
				client.WithControlTimeout(cfg.Client.ControlTimeout),
				client.WithCacheTTL(cfg.Client.CacheTTL),
				client.WithLogger(logger),
			)

			if cmd.Flags().Changed("mode") {
				ctl := domain.Controls{Mode: domain.Mode(mode), RiskLimit: riskLimit, Temperature: temperature}
				if err := c.UpdateControls(ctx, ctl); err != nil {
					logger.Warn("controls not applied", zap.Error(err))
				}
			}

			return watch(ctx, c, cfg.Client.PollInterval, polls, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "path to a YAML config file")
	flags.StringVar(&envFile, "env-file", ".env", "path to a .env file")
	flags.IntVar(&polls, "polls", 0, "stop after this many polls (0 runs until interrupted)")
	flags.StringVar(&mode, "mode", string(domain.ModeShadow), "push this trading mode before polling: Shadow or Live")
	flags.Float64Var(&riskLimit, "risk-limit", domain.InitialRiskLimit, "risk limit pushed with --mode")
	flags.Float64Var(&temperature, "temperature", domain.InitialTemperature, "temperature pushed with --mode")
	flags.String("url", "http://127.0.0.1:8000", "server base URL")
	flags.Duration("interval", time.Second, "poll interval")

	for key, name := range map[string]string{
		"client.base_url":      "url",
		"client.poll_interval": "interval",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
	return cmd
}

func watch(ctx context.Context, c *client.Client, interval time.Duration, polls int, logger *zap.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	wasConnected := true
	for n := 1; ; n++ {
		c.Health(ctx)
		reading := c.Metrics(ctx)

		connected := c.Connected()
		if connected != wasConnected {
			if connected {
				logger.Info("backend API connected")
			} else {
				logger.Warn("backend API offline, showing fallback data")
			}
			wasConnected = connected
		}

		logCard(logger, reading, connected)
		if connected {
			logAlerts(ctx, c, logger)
		}

		if polls > 0 && n >= polls {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func logCard(logger *zap.Logger, r client.Reading, connected bool) {
	m := r.Metrics
	logger.Info("metrics",
		zap.Bool("connected", connected),
		zap.String("source", string(r.Source)),
		zap.String("mode", m.Mode.String()),
		zap.Float64("pnl", m.PnL),
		zap.Float64("latency_ms", m.LatencyMs),
		zap.Float64("orders_per_sec", m.OrdersPerSec),
		zap.Float64("risk_limit", m.RiskLimit),
		zap.Float64("temperature", m.Temperature),
		zap.Float64("btc_price", m.BTCPrice),
		zap.Float64("eth_price", m.ETHPrice),
		zap.Float64("sol_price", m.SOLPrice),
		zap.Float64("cpu_usage", m.CPUUsage),
		zap.Float64("error_rate", m.ErrorRate),
	)
}

func logAlerts(ctx context.Context, c *client.Client, logger *zap.Logger) {
	alerts, err := c.Alerts(ctx)
	if err != nil {
		logger.Debug("alerts unavailable", zap.Error(err))
		return
	}
	for _, a := range alerts {
		logger.Warn("alert",
			zap.String("type", string(a.Type)),
			zap.String("severity", string(a.Severity)),
			zap.String("message", a.Message),
		)
	}
}
