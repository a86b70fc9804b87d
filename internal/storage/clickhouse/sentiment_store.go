package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"crypto-trade-desk/internal/domain"
	"crypto-trade-desk/internal/storage"
)

// SentimentStore implements storage.SentimentStore using ClickHouse.
type SentimentStore struct {
	conn *Conn
}

// NewSentimentStore creates a new SentimentStore.
func NewSentimentStore(conn *Conn) *SentimentStore {
	return &SentimentStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SentimentStore = (*SentimentStore)(nil)

// Insert records a sentiment reading. Re-inserting the same
// (source, symbol, timestamp) replaces the previous row.
func (s *SentimentStore) Insert(ctx context.Context, p *domain.SentimentPoint) error {
	if p == nil || p.Source == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO sentiment_data (
			source, symbol, timestamp, value, classification, raw_data
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		p.Source.String(), p.Symbol, p.Timestamp,
		p.Value.InexactFloat64(), p.Classification, p.RawData,
	)
	if err != nil {
		return fmt.Errorf("insert sentiment point: %w", err)
	}
	return nil
}

// Latest retrieves the most recent reading for a source and symbol. An empty
// symbol matches market-wide readings.
func (s *SentimentStore) Latest(ctx context.Context, source domain.SentimentSource, symbol string) (*domain.SentimentPoint, error) {
	query := `
		SELECT source, symbol, timestamp, value, classification, raw_data
		FROM sentiment_data FINAL
		WHERE source = ? AND symbol = ?
		ORDER BY timestamp DESC
		LIMIT 1
	`

	var (
		p   domain.SentimentPoint
		src string
		ts  time.Time
		val float64
	)
	err := s.conn.QueryRow(ctx, query, source.String(), symbol).Scan(
		&src, &p.Symbol, &ts, &val, &p.Classification, &p.RawData,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest sentiment point: %w", err)
	}

	p.Source = domain.SentimentSource(src)
	p.Timestamp = ts
	p.Value = decimal.NewFromFloat(val)
	return &p, nil
}
