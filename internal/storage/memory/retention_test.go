package memory

import (
	"context"
	"testing"
	"time"

	"vectorquant/internal/domain"
)

func TestPriceStore_PrunesPastHorizon(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	// 72 hours of hourly rows, oldest first.
	for h := 0; h < 72; h++ {
		snap := domain.Snapshot{State: domain.Initial(), Taken: base.Add(time.Duration(h) * time.Hour)}
		if err := store.InsertBulk(ctx, snap.Prices()); err != nil {
			t.Fatalf("InsertBulk failed: %v", err)
		}
	}

	newest := base.Add(71 * time.Hour)
	old, err := store.GetBySymbol(ctx, domain.SymbolBTC, base, newest.Add(-DefaultHorizon-time.Nanosecond))
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}
	if len(old) != 0 {
		t.Errorf("expected rows past the horizon to be dropped, got %d", len(old))
	}

	// The horizon itself is inclusive: hours 47 through 71.
	if got := store.Len(domain.SymbolBTC); got != 25 {
		t.Errorf("expected 25 BTC rows kept, got %d", got)
	}

	recent, err := store.GetRecent(ctx, newest.Add(-time.Hour), 0)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(recent) != 6 {
		t.Fatalf("expected 6 rows in the last hour, got %d", len(recent))
	}
	if recent[0].Symbol != domain.SymbolBTC || recent[1].Symbol != domain.SymbolETH {
		t.Errorf("expected ties ordered by symbol, got %s then %s", recent[0].Symbol, recent[1].Symbol)
	}
}

func TestPriceStore_CapsRowsPerSymbol(t *testing.T) {
	store := NewPriceStore(WithMaxRows(10))
	ctx := context.Background()
	taken := time.Unix(1700000000, 0)

	// Rows sharing one timestamp are never past the horizon.
	for i := 0; i < 100; i++ {
		snap := domain.Snapshot{State: domain.Initial(), Taken: taken}
		snap.State.BTCPrice = float64(i)
		if err := store.InsertBulk(ctx, snap.Prices()); err != nil {
			t.Fatalf("InsertBulk failed: %v", err)
		}
	}

	if got := store.Len(domain.SymbolBTC); got != 10 {
		t.Fatalf("expected 10 BTC rows, got %d", got)
	}
	rows, _ := store.GetBySymbol(ctx, domain.SymbolBTC, taken, taken)
	if rows[0].Price != 90 || rows[9].Price != 99 {
		t.Errorf("expected the newest rows kept, got %v..%v", rows[0].Price, rows[9].Price)
	}
}

func TestPriceStore_OutOfOrderInsert(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	rows := []*domain.CryptoPrice{
		{Symbol: domain.SymbolBTC, Price: 3, Timestamp: base.Add(3 * time.Minute)},
		{Symbol: domain.SymbolBTC, Price: 1, Timestamp: base.Add(time.Minute)},
		{Symbol: domain.SymbolBTC, Price: 2, Timestamp: base.Add(2 * time.Minute)},
	}
	if err := store.InsertBulk(ctx, rows); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, _ := store.GetBySymbol(ctx, domain.SymbolBTC, base, base.Add(time.Hour))
	for i, p := range got {
		if p.Price != float64(i+1) {
			t.Errorf("row %d: expected price %d, got %v", i, i+1, p.Price)
		}
	}
}

func TestMetricStore_PrunesPastHorizon(t *testing.T) {
	store := NewMetricStore(WithHorizon(time.Hour))
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	for m := 0; m <= 180; m++ {
		snap := domain.Snapshot{State: domain.Initial(), Taken: base.Add(time.Duration(m) * time.Minute)}
		if err := store.InsertBulk(ctx, snap.Metrics()); err != nil {
			t.Fatalf("InsertBulk failed: %v", err)
		}
	}

	if got := store.Len(domain.MetricPnL); got != 61 {
		t.Errorf("expected 61 pnl rows within the hour, got %d", got)
	}

	names, err := store.GetNames(ctx, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetNames failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no names for a pruned window, got %v", names)
	}
}

func TestAlertStore_CapsLog(t *testing.T) {
	store := NewAlertStore(WithMaxRows(3))
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	var ids []string
	for i := 0; i < 5; i++ {
		a := &domain.AlertRecord{AlertType: "error", Timestamp: base.Add(time.Duration(i) * time.Second)}
		if err := store.Insert(ctx, a); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		ids = append(ids, a.AlertID)
	}

	if store.Len() != 3 {
		t.Fatalf("expected 3 alerts kept, got %d", store.Len())
	}
	if _, err := store.GetByID(ctx, ids[0]); err == nil {
		t.Error("expected the oldest alert to be dropped")
	}
	if _, err := store.GetByID(ctx, ids[4]); err != nil {
		t.Errorf("expected the newest alert kept, got %v", err)
	}
}

func TestAlertStore_PrunesPastHorizon(t *testing.T) {
	store := NewAlertStore(WithHorizon(time.Hour))
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	old := &domain.AlertRecord{AlertType: "system", Timestamp: base}
	if err := store.Insert(ctx, old); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, &domain.AlertRecord{AlertType: "system", Timestamp: base.Add(2 * time.Hour)}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if store.Len() != 1 {
		t.Errorf("expected 1 alert kept, got %d", store.Len())
	}
	if _, err := store.GetByID(ctx, old.AlertID); err == nil {
		t.Error("expected the expired alert to be dropped")
	}
}
