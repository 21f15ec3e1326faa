package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"vectorquant/internal/domain"
	"vectorquant/internal/storage"
)

func TestPriceStore_GetRecent(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	var rows []*domain.CryptoPrice
	for i := 0; i < 10; i++ {
		rows = append(rows, &domain.CryptoPrice{
			Symbol:    domain.SymbolBTC,
			Price:     65000 + float64(i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
	}
	if err := store.InsertBulk(ctx, rows); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetRecent(ctx, base.Add(5*time.Minute), 0)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(got))
	}
	if got[0].Price != 65009 {
		t.Errorf("expected newest first, got price %v", got[0].Price)
	}

	limited, _ := store.GetRecent(ctx, base, 2)
	if len(limited) != 2 {
		t.Errorf("expected limit 2, got %d", len(limited))
	}
}

func TestPriceStore_GetBySymbol(t *testing.T) {
	store := NewPriceStore()
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	rows := []*domain.CryptoPrice{
		{Symbol: domain.SymbolETH, Price: 3502, Timestamp: base.Add(2 * time.Minute)},
		{Symbol: domain.SymbolETH, Price: 3500, Timestamp: base},
		{Symbol: domain.SymbolSOL, Price: 150, Timestamp: base},
		{Symbol: domain.SymbolETH, Price: 3510, Timestamp: base.Add(10 * time.Minute)},
	}
	if err := store.InsertBulk(ctx, rows); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetBySymbol(ctx, domain.SymbolETH, base, base.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].Price != 3500 || got[1].Price != 3502 {
		t.Errorf("expected oldest first, got %v then %v", got[0].Price, got[1].Price)
	}
}

func TestPriceStore_InvalidInput(t *testing.T) {
	store := NewPriceStore()
	err := store.InsertBulk(context.Background(), []*domain.CryptoPrice{{Price: 1}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
