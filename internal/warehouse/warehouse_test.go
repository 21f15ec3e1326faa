package warehouse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vectorquant/internal/domain"
	"vectorquant/internal/metrics"
	"vectorquant/internal/observability"
	"vectorquant/internal/simulation"
	"vectorquant/internal/storage"
	"vectorquant/internal/storage/memory"
)

var errBoom = errors.New("boom")

// failingPrices is a PriceStore whose every call fails.
type failingPrices struct {
	calls int
}

func (f *failingPrices) InsertBulk(context.Context, []*domain.CryptoPrice) error {
	f.calls++
	return errBoom
}

func (f *failingPrices) GetRecent(context.Context, time.Time, int) ([]*domain.CryptoPrice, error) {
	f.calls++
	return nil, errBoom
}

func (f *failingPrices) GetBySymbol(context.Context, string, time.Time, time.Time) ([]*domain.CryptoPrice, error) {
	f.calls++
	return nil, errBoom
}

type fixedLive struct {
	snap domain.Snapshot
}

func (f fixedLive) Snapshot() domain.Snapshot { return f.snap }

func memoryStores() Stores {
	return Stores{
		Prices:  memory.NewPriceStore(),
		Metrics: memory.NewMetricStore(),
		Alerts:  memory.NewAlertStore(),
	}
}

func testGuard(name string) *Guard {
	return NewGuard(GuardSettings{
		Name:         name,
		CallTimeout:  50 * time.Millisecond,
		OpenFor:      time.Minute,
		MinRequests:  2,
		FailureRatio: 0.5,
	}, nil)
}

func TestGuard_Trips(t *testing.T) {
	g := testGuard("trip")
	ctx := context.Background()
	calls := 0
	fail := func(context.Context) error { calls++; return errBoom }

	assert.ErrorIs(t, g.Do(ctx, fail), errBoom)
	assert.ErrorIs(t, g.Do(ctx, fail), errBoom)

	err := g.Do(ctx, fail)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 2, calls, "open breaker must not call through")
}

func TestGuard_NotFoundIsNotAFailure(t *testing.T) {
	g := testGuard("notfound")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := g.Do(ctx, func(context.Context) error { return storage.ErrNotFound })
		assert.ErrorIs(t, err, storage.ErrNotFound)
	}
	assert.Equal(t, "closed", g.State().String())
}

func TestGuard_CallTimeout(t *testing.T) {
	g := testGuard("timeout")

	err := g.Do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQuery_ReturnsValue(t *testing.T) {
	g := testGuard("query")
	got, err := Query(context.Background(), g, func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestRecorder_WritesTicksAndAlerts(t *testing.T) {
	stores := memoryStores()
	rec := NewRecorder(stores, testGuard("recorder"), 16, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()

	taken := time.Unix(1700000000, 0)
	snap := domain.Snapshot{State: domain.Initial(), Taken: taken}
	rec.ObserveTick(snap)
	rec.ObserveAlerts(snap, []domain.Alert{
		{Kind: domain.AlertKindTrading, Message: "loss", Severity: domain.SeverityHigh, Timestamp: taken},
	})
	rec.ObserveAlerts(snap, nil)

	require.Eventually(t, func() bool {
		alerts, _ := stores.Alerts.GetRecent(context.Background(), 10)
		prices, _ := stores.Prices.GetRecent(context.Background(), taken, 10)
		return len(alerts) == 1 && len(prices) == 3
	}, 2*time.Second, 10*time.Millisecond)

	metrics, err := stores.Metrics.GetRecent(context.Background(), taken, 100)
	require.NoError(t, err)
	assert.Len(t, metrics, len(snap.Metrics()))

	cancel()
	assert.NoError(t, <-done)
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	rec := NewRecorder(memoryStores(), testGuard("full"), 1, nil)
	before := testutil.ToFloat64(observability.DefaultMetrics.WarehouseDropped)

	snap := domain.Snapshot{State: domain.Initial(), Taken: time.Now()}
	rec.ObserveTick(snap)
	rec.ObserveTick(snap)

	assert.Equal(t, before+1, testutil.ToFloat64(observability.DefaultMetrics.WarehouseDropped))
}

func TestRecorder_DrainsOnShutdown(t *testing.T) {
	stores := memoryStores()
	rec := NewRecorder(stores, testGuard("drain"), 8, nil)

	taken := time.Unix(1700000000, 0)
	rec.ObserveTick(domain.Snapshot{State: domain.Initial(), Taken: taken})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, rec.Run(ctx))

	prices, err := stores.Prices.GetRecent(context.Background(), taken, 10)
	require.NoError(t, err)
	assert.Len(t, prices, 3)
}

func TestHistory_Prices(t *testing.T) {
	stores := memoryStores()
	now := time.Unix(1700000000, 0)
	live := fixedLive{snap: domain.Snapshot{State: domain.Initial(), Taken: now}}

	h := NewHistory(stores, testGuard("history"), live, nil)
	h.clock = func() time.Time { return now }

	// Empty warehouse answers from the live snapshot.
	rows, source := h.Prices(context.Background(), time.Hour, 100)
	assert.Equal(t, SourceLive, source)
	assert.Len(t, rows, 3)

	require.NoError(t, stores.Prices.InsertBulk(context.Background(), []*domain.CryptoPrice{
		{Symbol: domain.SymbolADA, Price: 0.5, Timestamp: now.Add(-time.Minute)},
		{Symbol: domain.SymbolADA, Price: 0.4, Timestamp: now.Add(-2 * time.Hour)},
	}))

	rows, source = h.Prices(context.Background(), time.Hour, 100)
	assert.Equal(t, SourceWarehouse, source)
	require.Len(t, rows, 1)
	assert.Equal(t, 0.5, rows[0].Price)
}

func TestHistory_PricesFallbackOnFailure(t *testing.T) {
	failing := &failingPrices{}
	stores := memoryStores()
	stores.Prices = failing

	now := time.Unix(1700000000, 0)
	st := domain.Initial()
	st.BTCPrice = 70000
	h := NewHistory(stores, testGuard("fallback"), fixedLive{snap: domain.Snapshot{State: st, Taken: now}}, nil)

	for i := 0; i < 4; i++ {
		rows, source := h.Prices(context.Background(), time.Hour, 10)
		assert.Equal(t, SourceLive, source)
		require.Len(t, rows, 3)
		assert.Equal(t, 70000.0, rows[0].Price)
	}
	assert.Equal(t, 2, failing.calls, "breaker should stop calling the failing store")
}

func TestHistory_AlertsAndResolve(t *testing.T) {
	stores := memoryStores()
	h := NewHistory(stores, testGuard("alerts"), fixedLive{}, nil)
	ctx := context.Background()

	a := &domain.AlertRecord{AlertType: "system", Message: "High CPU usage: 85.0%", Severity: "medium", Timestamp: time.Now()}
	require.NoError(t, stores.Alerts.Insert(ctx, a))

	list, err := h.Alerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	resolved, err := h.Resolve(ctx, a.AlertID)
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)

	_, err = h.Resolve(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSeed(t *testing.T) {
	stores := memoryStores()
	end := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	res, err := Seed(context.Background(), stores, simulation.NewSource(42), end)
	require.NoError(t, err)

	assert.Equal(t, 289*len(simulation.SeedBasePrices), res.Prices)
	assert.Equal(t, 6, res.Metrics)
	assert.Equal(t, 3, res.Alerts)

	alerts, err := stores.Alerts.GetRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, alerts, 3)
	for _, a := range alerts {
		assert.NotEmpty(t, a.AlertID)
	}
}

func TestOpen_Memory(t *testing.T) {
	stores, cleanup, err := Open(context.Background(), OpenOptions{Backend: BackendMemory}, nil)
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, stores.Prices)
	assert.NotNil(t, stores.Metrics)
	assert.NotNil(t, stores.Alerts)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, cleanup, err := Open(context.Background(), OpenOptions{Backend: "sqlite"}, nil)
	assert.Error(t, err)
	assert.NotNil(t, cleanup)
}

func TestHistory_SymbolPrices(t *testing.T) {
	ctx := context.Background()
	stores := memoryStores()
	now := time.Unix(1700000000, 0)

	live := fixedLive{snap: domain.Snapshot{State: domain.Initial(), Taken: now}}
	h := NewHistory(stores, testGuard("symbol"), live, nil)
	h.clock = func() time.Time { return now }

	rows, source := h.SymbolPrices(ctx, domain.SymbolETH, time.Hour)
	assert.Equal(t, SourceLive, source)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.InitialETHPrice, rows[0].Price)

	require.NoError(t, stores.Prices.InsertBulk(ctx, []*domain.CryptoPrice{
		{Symbol: domain.SymbolETH, Price: 3600, Timestamp: now.Add(-10 * time.Minute)},
		{Symbol: domain.SymbolETH, Price: 3610, Timestamp: now.Add(-5 * time.Minute)},
		{Symbol: domain.SymbolBTC, Price: 66000, Timestamp: now.Add(-5 * time.Minute)},
	}))

	rows, source = h.SymbolPrices(ctx, domain.SymbolETH, time.Hour)
	assert.Equal(t, SourceWarehouse, source)
	require.Len(t, rows, 2)
	assert.Equal(t, 3600.0, rows[0].Price)
}

func TestHistory_Summaries(t *testing.T) {
	ctx := context.Background()
	stores := memoryStores()
	now := time.Unix(1700000000, 0)

	h := NewHistory(stores, testGuard("summary"), fixedLive{}, nil)
	h.clock = func() time.Time { return now }

	_, err := h.Summaries(ctx, domain.MetricPnL, time.Hour)
	assert.ErrorIs(t, err, metrics.ErrNoPoints)
	// An empty window is an answer, so the breaker stays closed.
	_, err = h.Summaries(ctx, domain.MetricPnL, time.Hour)
	assert.ErrorIs(t, err, metrics.ErrNoPoints)
	assert.Equal(t, gobreaker.StateClosed, h.guard.State())

	snap := domain.Snapshot{State: domain.Initial(), Taken: now.Add(-time.Minute)}
	require.NoError(t, stores.Metrics.InsertBulk(ctx, snap.Metrics()))

	all, err := h.Summaries(ctx, "", time.Hour)
	require.NoError(t, err)
	assert.Len(t, all, len(snap.Metrics()))

	one, err := h.Summaries(ctx, domain.MetricPnL, time.Hour)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, 1, one[0].Count)
}
