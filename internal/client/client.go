// Package client is the dashboard side of the metrics API. It polls a running
// server and keeps serving plausible numbers when the server goes away.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"vectorquant/internal/domain"
	"vectorquant/internal/simulation"
)

// Default request budgets.
const (
	DefaultMetricsTimeout = 2 * time.Second
	DefaultControlTimeout = 1 * time.Second
	DefaultCacheTTL       = 1 * time.Second
)

// ErrUnexpectedStatus is returned when the server answers with a non-200 status.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Where a metrics reading came from.
type Source string

const (
	SourceLive      Source = "live"
	SourceCached    Source = "cached"
	SourceLastGood  Source = "last_good"
	SourceSimulated Source = "simulated"
)

// Reading is one metrics sample as seen by the dashboard.
type Reading struct {
	Metrics domain.MetricsView
	Source  Source
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMetricsTimeout bounds GET requests for metrics and read views.
func WithMetricsTimeout(d time.Duration) Option {
	return func(c *Client) { c.metricsTimeout = d }
}

// WithControlTimeout bounds control updates and health checks.
func WithControlTimeout(d time.Duration) Option {
	return func(c *Client) { c.controlTimeout = d }
}

// WithCacheTTL sets how long a live metrics reading is reused.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Client) { c.cacheTTL = d }
}

// WithRandomSource sets the source for simulated fallback readings.
func WithRandomSource(r simulation.RandomSource) Option {
	return func(c *Client) { c.rng = r }
}

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
	return func(c *Client) { c.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client polls the metrics API.
type Client struct {
	baseURL        string
	http           *http.Client
	metricsTimeout time.Duration
	controlTimeout time.Duration
	cacheTTL       time.Duration
	clock          func() time.Time
	logger         *zap.Logger

	mu        sync.Mutex
	rng       simulation.RandomSource
	controls  domain.Controls
	connected bool
	cached    *domain.MetricsView
	cachedAt  time.Time
	lastGood  *domain.MetricsView
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &http.Client{},
		metricsTimeout: DefaultMetricsTimeout,
		controlTimeout: DefaultControlTimeout,
		cacheTTL:       DefaultCacheTTL,
		clock:          time.Now,
		logger:         zap.NewNop(),
		controls:       domain.Initial().Controls(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = simulation.NewSource(0)
	}
	c.logger = c.logger.Named("client")
	return c
}

// Connected reports whether the last exchange with the server succeeded.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Controls returns the controls the dashboard last asked for.
func (c *Client) Controls() domain.Controls {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controls
}

// Metrics returns the current metrics. A live reading younger than the cache
// TTL is reused. When the server cannot be reached the last good reading is
// returned, or a simulated one carrying the requested controls.
func (c *Client) Metrics(ctx context.Context) Reading {
	now := c.clock()

	c.mu.Lock()
	if c.cached != nil && now.Sub(c.cachedAt) < c.cacheTTL {
		v := *c.cached
		c.mu.Unlock()
		return Reading{Metrics: v, Source: SourceCached}
	}
	c.mu.Unlock()

	var v domain.MetricsView
	err := c.get(ctx, "/metrics", c.metricsTimeout, &v)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.connected = true
		c.cached = &v
		c.cachedAt = now
		c.lastGood = &v
		return Reading{Metrics: v, Source: SourceLive}
	}

	c.connected = false
	c.logger.Debug("metrics unavailable", zap.Error(err))
	if c.lastGood != nil {
		return Reading{Metrics: *c.lastGood, Source: SourceLastGood}
	}
	state := simulation.Fallback(c.rng, c.controls)
	return Reading{
		Metrics: domain.NewMetricsView(domain.Snapshot{State: state, Taken: now}),
		Source:  SourceSimulated,
	}
}

// UpdateControls pushes controls to the server. The controls are remembered
// even when the push fails so that simulated readings reflect them.
func (c *Client) UpdateControls(ctx context.Context, ctl domain.Controls) error {
	if !ctl.Mode.IsValid() {
		return domain.ErrInvalidMode
	}

	c.mu.Lock()
	c.controls = ctl
	c.mu.Unlock()

	body, err := json.Marshal(map[string]interface{}{
		"mode":        ctl.Mode,
		"risk_limit":  ctl.RiskLimit,
		"temperature": ctl.Temperature,
	})
	if err != nil {
		return fmt.Errorf("encode controls: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.controlTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/update_controls", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	err = c.do(req, nil)
	c.setConnected(err == nil)
	if err != nil {
		return fmt.Errorf("update controls: %w", err)
	}
	return nil
}

// Health calls GET /health and updates Connected.
func (c *Client) Health(ctx context.Context) bool {
	var body struct {
		Status string `json:"status"`
	}
	err := c.get(ctx, "/health", c.controlTimeout, &body)
	ok := err == nil && body.Status == "healthy"
	c.setConnected(ok)
	return ok
}

// Alerts returns the alerts currently firing on the server.
func (c *Client) Alerts(ctx context.Context) ([]domain.AlertView, error) {
	var body struct {
		Alerts []domain.AlertView `json:"alerts"`
	}
	if err := c.get(ctx, "/alerts", c.metricsTimeout, &body); err != nil {
		c.setConnected(false)
		return nil, fmt.Errorf("alerts: %w", err)
	}
	c.setConnected(true)
	return body.Alerts, nil
}

// Performance returns the performance analytics view.
func (c *Client) Performance(ctx context.Context) (domain.PerformanceView, error) {
	var v domain.PerformanceView
	err := c.read(ctx, "/performance", &v)
	return v, err
}

// System returns the system health view.
func (c *Client) System(ctx context.Context) (domain.SystemView, error) {
	var v domain.SystemView
	err := c.read(ctx, "/system", &v)
	return v, err
}

// Prices returns the market price view.
func (c *Client) Prices(ctx context.Context) (domain.PricesView, error) {
	var v domain.PricesView
	err := c.read(ctx, "/crypto-prices", &v)
	return v, err
}

func (c *Client) read(ctx context.Context, path string, out interface{}) error {
	err := c.get(ctx, path, c.metricsTimeout, out)
	c.setConnected(err == nil)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	return nil
}

func (c *Client) setConnected(ok bool) {
	c.mu.Lock()
	c.connected = ok
	c.mu.Unlock()
}

func (c *Client) get(ctx context.Context, path string, timeout time.Duration, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
