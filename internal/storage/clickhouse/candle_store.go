package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"crypto-trade-desk/internal/domain"
	"crypto-trade-desk/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse.
//
// market_data is a ReplacingMergeTree keyed by (symbol, timeframe, timestamp),
// so re-collecting a window upserts rather than duplicates. Reads use FINAL
// to collapse not-yet-merged replacements.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// InsertBulk upserts a batch of candles.
func (s *CandleStore) InsertBulk(ctx context.Context, candles []*domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	for _, c := range candles {
		if c == nil || c.Symbol == "" || c.Timeframe == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO market_data (
			symbol, timeframe, timestamp, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range candles {
		err = batch.Append(
			c.Symbol, c.Timeframe, c.Timestamp,
			c.Open.InexactFloat64(), c.High.InexactFloat64(),
			c.Low.InexactFloat64(), c.Close.InexactFloat64(),
			c.Volume.InexactFloat64(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetRecent retrieves the most recent candles for a symbol and timeframe,
// ordered oldest first.
func (s *CandleStore) GetRecent(ctx context.Context, symbol, timeframe string, limit int) ([]*domain.Candle, error) {
	query := `
		SELECT symbol, timeframe, timestamp, open, high, low, close, volume
		FROM market_data FINAL
		WHERE symbol = ? AND timeframe = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, symbol, timeframe, uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("query recent candles: %w", err)
	}
	defer rows.Close()

	candles, err := scanCandles(rows)
	if err != nil {
		return nil, err
	}

	// Flip newest-first into chronological order.
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}

	return candles, nil
}

// scanCandles scans multiple rows into a slice of Candle.
func scanCandles(rows chRows) ([]*domain.Candle, error) {
	var candles []*domain.Candle

	for rows.Next() {
		var (
			c                          domain.Candle
			ts                         time.Time
			open, high, low, cls, vol  float64
		)

		err := rows.Scan(&c.Symbol, &c.Timeframe, &ts, &open, &high, &low, &cls, &vol)
		if err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}

		c.Timestamp = ts
		c.Open = decimal.NewFromFloat(open)
		c.High = decimal.NewFromFloat(high)
		c.Low = decimal.NewFromFloat(low)
		c.Close = decimal.NewFromFloat(cls)
		c.Volume = decimal.NewFromFloat(vol)
		candles = append(candles, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}

	return candles, nil
}
