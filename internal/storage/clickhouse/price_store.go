package clickhouse

import (
	"context"
	"fmt"
	"time"

	"vectorquant/internal/domain"
	"vectorquant/internal/storage"
)

// PriceStore implements storage.PriceStore using ClickHouse.
type PriceStore struct {
	conn *Conn
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(conn *Conn) *PriceStore {
	return &PriceStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// InsertBulk appends price rows in a single batch.
func (s *PriceStore) InsertBulk(ctx context.Context, prices []*domain.CryptoPrice) (err error) {
	if len(prices) == 0 {
		return nil
	}
	defer track("insert_prices")(&err)

	for _, p := range prices {
		if p == nil || p.Symbol == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO crypto_prices (
			symbol, price, change_24h, volume_24h, market_cap, timestamp
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range prices {
		err = batch.Append(
			p.Symbol, p.Price, p.Change24h,
			p.Volume24h, p.MarketCap, p.Timestamp.UTC(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetRecent retrieves rows with timestamp >= since, newest first.
func (s *PriceStore) GetRecent(ctx context.Context, since time.Time, limit int) (out []*domain.CryptoPrice, err error) {
	defer track("recent_prices")(&err)

	query := `
		SELECT symbol, price, change_24h, volume_24h, market_cap, timestamp
		FROM crypto_prices
		WHERE timestamp >= ?
		ORDER BY timestamp DESC, symbol ASC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, since.UTC(), uint64(storage.ClampLimit(limit, storage.MaxRows)))
	if err != nil {
		return nil, fmt.Errorf("query recent prices: %w", err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

// GetBySymbol retrieves rows for a symbol within [start, end] (inclusive), oldest first.
func (s *PriceStore) GetBySymbol(ctx context.Context, symbol string, start, end time.Time) (out []*domain.CryptoPrice, err error) {
	defer track("prices_by_symbol")(&err)

	query := `
		SELECT symbol, price, change_24h, volume_24h, market_cap, timestamp
		FROM crypto_prices
		WHERE symbol = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query prices by symbol: %w", err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

// scanPrices scans multiple rows.
func scanPrices(rows chRows) ([]*domain.CryptoPrice, error) {
	var prices []*domain.CryptoPrice

	for rows.Next() {
		var p domain.CryptoPrice
		err := rows.Scan(
			&p.Symbol, &p.Price, &p.Change24h,
			&p.Volume24h, &p.MarketCap, &p.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		p.Timestamp = p.Timestamp.UTC()
		prices = append(prices, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price rows: %w", err)
	}

	return prices, nil
}
