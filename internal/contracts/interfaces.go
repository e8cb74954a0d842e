package contracts

import (
	"context"
	"time"
)

// SnapshotSource returns the per-ticker tables of one market on one date.
// An empty result means no data for that date, not an error.
type SnapshotSource interface {
	CapitalizationTable(ctx context.Context, date time.Time, market Market) ([]CapEntry, error)
	FundamentalTable(ctx context.Context, date time.Time, market Market) (map[string]Fundamental, error)
}

// NameResolver resolves a ticker to its display name
type NameResolver interface {
	TickerName(ctx context.Context, ticker string) (string, error)
}

// PriceSource returns ascending daily closes over [from, to]
type PriceSource interface {
	PriceSeries(ctx context.Context, ticker string, from, to time.Time) ([]PricePoint, error)
	IndexSeries(ctx context.Context, indexID string, from, to time.Time) ([]PricePoint, error)
}

// MarketDataGateway is everything the screener and backtest need from the outside
type MarketDataGateway interface {
	SnapshotSource
	NameResolver
	PriceSource
}

// Screener answers screening criteria
type Screener interface {
	Screen(ctx context.Context, criteria Criteria) (*ScreeningResult, error)
}
