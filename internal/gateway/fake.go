package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/krxvalue/internal/contracts"
)

// FakeGateway is a deterministic in-memory MarketDataGateway.
// It counts calls per method and can inject failures per date or ticker.
type FakeGateway struct {
	mu sync.Mutex

	caps         map[string][]contracts.CapEntry
	fundamentals map[string]map[string]contracts.Fundamental
	names        map[string]string
	prices       map[string][]contracts.PricePoint
	indexes      map[string][]contracts.PricePoint

	snapshotErrs map[string]error
	nameErrs     map[string]error
	priceErrs    map[string]error

	calls map[string]int
}

// Method names reported by Calls
const (
	MethodCapitalization = "CapitalizationTable"
	MethodFundamental    = "FundamentalTable"
	MethodTickerName     = "TickerName"
	MethodPriceSeries    = "PriceSeries"
	MethodIndexSeries    = "IndexSeries"
)

// NewFakeGateway creates an empty fake gateway
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		caps:         make(map[string][]contracts.CapEntry),
		fundamentals: make(map[string]map[string]contracts.Fundamental),
		names:        make(map[string]string),
		prices:       make(map[string][]contracts.PricePoint),
		indexes:      make(map[string][]contracts.PricePoint),
		snapshotErrs: make(map[string]error),
		nameErrs:     make(map[string]error),
		priceErrs:    make(map[string]error),
		calls:        make(map[string]int),
	}
}

func snapshotKey(market contracts.Market, date time.Time) string {
	return string(market) + "|" + contracts.FormatDate(date)
}

// SetSnapshot registers both tables of one market on one date
func (f *FakeGateway) SetSnapshot(market contracts.Market, date time.Time, caps []contracts.CapEntry, fundamentals map[string]contracts.Fundamental) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := snapshotKey(market, date)
	f.caps[key] = append([]contracts.CapEntry(nil), caps...)

	table := make(map[string]contracts.Fundamental, len(fundamentals))
	for ticker, row := range fundamentals {
		table[ticker] = row
	}
	f.fundamentals[key] = table
}

// SetName registers a ticker display name
func (f *FakeGateway) SetName(ticker, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names[ticker] = name
}

// SetPrices registers a ticker's daily closes (any order)
func (f *FakeGateway) SetPrices(ticker string, points []contracts.PricePoint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[ticker] = append([]contracts.PricePoint(nil), points...)
}

// SetIndex registers a benchmark index's daily closes
func (f *FakeGateway) SetIndex(indexID string, points []contracts.PricePoint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexes[indexID] = append([]contracts.PricePoint(nil), points...)
}

// FailSnapshot makes both table lookups fail for one market and date
func (f *FakeGateway) FailSnapshot(market contracts.Market, date time.Time, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshotErrs[snapshotKey(market, date)] = err
}

// FailName makes TickerName fail for one ticker
func (f *FakeGateway) FailName(ticker string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nameErrs[ticker] = err
}

// FailPrices makes PriceSeries (or IndexSeries) fail for one identifier
func (f *FakeGateway) FailPrices(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.priceErrs[id] = err
}

// Calls returns how many times a method was called
func (f *FakeGateway) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// TotalCalls returns the number of calls over all methods
func (f *FakeGateway) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// CapitalizationTable implements contracts.SnapshotSource
func (f *FakeGateway) CapitalizationTable(ctx context.Context, date time.Time, market contracts.Market) ([]contracts.CapEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[MethodCapitalization]++
	key := snapshotKey(market, date)
	if err := f.snapshotErrs[key]; err != nil {
		return nil, err
	}
	return append([]contracts.CapEntry(nil), f.caps[key]...), nil
}

// FundamentalTable implements contracts.SnapshotSource
func (f *FakeGateway) FundamentalTable(ctx context.Context, date time.Time, market contracts.Market) (map[string]contracts.Fundamental, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[MethodFundamental]++
	key := snapshotKey(market, date)
	if err := f.snapshotErrs[key]; err != nil {
		return nil, err
	}

	table := make(map[string]contracts.Fundamental, len(f.fundamentals[key]))
	for ticker, row := range f.fundamentals[key] {
		table[ticker] = row
	}
	return table, nil
}

// TickerName implements contracts.NameResolver
func (f *FakeGateway) TickerName(ctx context.Context, ticker string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[MethodTickerName]++
	if err := f.nameErrs[ticker]; err != nil {
		return "", err
	}
	name, ok := f.names[ticker]
	if !ok {
		return "", fmt.Errorf("unknown ticker %s", ticker)
	}
	return name, nil
}

// PriceSeries implements contracts.PriceSource
func (f *FakeGateway) PriceSeries(ctx context.Context, ticker string, from, to time.Time) ([]contracts.PricePoint, error) {
	return f.series(ctx, MethodPriceSeries, f.prices, ticker, from, to)
}

// IndexSeries implements contracts.PriceSource
func (f *FakeGateway) IndexSeries(ctx context.Context, indexID string, from, to time.Time) ([]contracts.PricePoint, error) {
	return f.series(ctx, MethodIndexSeries, f.indexes, indexID, from, to)
}

func (f *FakeGateway) series(ctx context.Context, method string, source map[string][]contracts.PricePoint, id string, from, to time.Time) ([]contracts.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[method]++
	if err := f.priceErrs[id]; err != nil {
		return nil, err
	}

	return clipSeries(source[id], from, to), nil
}
