package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/krxvalue/internal/contracts"
)

// DailyPrice is one stored OHLCV row
type DailyPrice struct {
	Code   string
	Date   time.Time
	Open   int64
	High   int64
	Low    int64
	Close  int64
	Volume int64
}

// PriceRepository reads and writes data.daily_prices
// ⭐ SSOT: 가격 데이터 저장소는 여기서만
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

const createSchemaSQL = `
	CREATE SCHEMA IF NOT EXISTS data;
	CREATE TABLE IF NOT EXISTS data.daily_prices (
		stock_code  VARCHAR(12) NOT NULL,
		trade_date  DATE        NOT NULL,
		open_price  BIGINT      NOT NULL,
		high_price  BIGINT      NOT NULL,
		low_price   BIGINT      NOT NULL,
		close_price BIGINT      NOT NULL,
		volume      BIGINT      NOT NULL DEFAULT 0,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (stock_code, trade_date)
	);
`

// EnsureSchema creates the price table when missing
func (r *PriceRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, createSchemaSQL); err != nil {
		return fmt.Errorf("failed to create price schema: %w", err)
	}
	return nil
}

// PriceSeries returns the closes of a code within [from, to], ascending
func (r *PriceRepository) PriceSeries(ctx context.Context, code string, from, to time.Time) ([]contracts.PricePoint, error) {
	query := `
		SELECT trade_date, close_price
		FROM data.daily_prices
		WHERE stock_code = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, code, contracts.Day(from), contracts.Day(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	var points []contracts.PricePoint
	for rows.Next() {
		var (
			date       time.Time
			closePrice int64
		)
		if err := rows.Scan(&date, &closePrice); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		points = append(points, contracts.PricePoint{Date: date, Close: float64(closePrice)})
	}
	return points, rows.Err()
}

// LatestDate returns the most recent stored trade date of a code
func (r *PriceRepository) LatestDate(ctx context.Context, code string) (time.Time, bool, error) {
	var latest *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT MAX(trade_date) FROM data.daily_prices WHERE stock_code = $1`, code,
	).Scan(&latest)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query latest date: %w", err)
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return *latest, true, nil
}

// SaveBatch upserts price rows in a single round trip
func (r *PriceRepository) SaveBatch(ctx context.Context, prices []DailyPrice) error {
	if len(prices) == 0 {
		return nil
	}

	query := `
		INSERT INTO data.daily_prices (stock_code, trade_date, open_price, high_price, low_price, close_price, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (stock_code, trade_date) DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			volume = EXCLUDED.volume,
			updated_at = NOW()
	`

	batch := &pgx.Batch{}
	for _, p := range prices {
		batch.Queue(query, p.Code, contracts.Day(p.Date), p.Open, p.High, p.Low, p.Close, p.Volume)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range prices {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to save prices: %w", err)
		}
	}
	return nil
}
