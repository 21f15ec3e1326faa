package clickhouse_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vectorquant/internal/domain"
	"vectorquant/internal/simulation"
	chstore "vectorquant/internal/storage/clickhouse"
)

func TestPriceStore_InsertBulkAndGetBySymbol(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := chstore.NewPriceStore(conn)
	ctx := context.Background()

	// Empty insert is a no-op
	assert.NoError(t, store.InsertBulk(ctx, nil))

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	snap := domain.Snapshot{State: domain.Initial(), Taken: base}
	require.NoError(t, store.InsertBulk(ctx, snap.Prices()))

	later := domain.Snapshot{State: domain.Initial(), Taken: base.Add(time.Minute)}
	later.State.BTCPrice = 65500
	require.NoError(t, store.InsertBulk(ctx, later.Prices()))

	got, err := store.GetBySymbol(ctx, domain.SymbolBTC, base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 65000.0, got[0].Price)
	assert.Equal(t, 65500.0, got[1].Price)
	assert.Equal(t, base, got[0].Timestamp)
}

func TestPriceStore_GetRecent(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := chstore.NewPriceStore(conn)
	ctx := context.Background()

	end := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	seed := simulation.SeedRows(simulation.NewSource(42), end)
	require.NoError(t, store.InsertBulk(ctx, seed.Prices))

	got, err := store.GetRecent(ctx, end.Add(-time.Hour), 1000)
	require.NoError(t, err)

	// 13 five-minute points per symbol inside the last hour, inclusive.
	assert.Len(t, got, 13*len(simulation.SeedBasePrices))
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Timestamp.After(got[i-1].Timestamp), "rows must be newest first")
	}

	limited, err := store.GetRecent(ctx, end.Add(-time.Hour), 5)
	require.NoError(t, err)
	assert.Len(t, limited, 5)
}
