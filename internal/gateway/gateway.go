package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/krxvalue/internal/contracts"
	"github.com/wonny/krxvalue/internal/external/krx"
	"github.com/wonny/krxvalue/internal/external/naver"
	"github.com/wonny/krxvalue/internal/s0_data"
	"github.com/wonny/krxvalue/pkg/config"
	"github.com/wonny/krxvalue/pkg/httputil"
	"github.com/wonny/krxvalue/pkg/logger"
)

// PriceStore is the optional local price store consulted before Naver
type PriceStore interface {
	PriceSeries(ctx context.Context, code string, from, to time.Time) ([]contracts.PricePoint, error)
	LatestDate(ctx context.Context, code string) (time.Time, bool, error)
	SaveBatch(ctx context.Context, prices []s0_data.DailyPrice) error
}

// Gateway is the production MarketDataGateway.
// Snapshots and index series come from KRX, names and prices from Naver.
// ⭐ SSOT: 외부 시장 데이터 조회는 이 타입을 통해서만
type Gateway struct {
	krx    *krx.Client
	naver  *naver.Client
	store  PriceStore
	logger *logger.Logger
	now    func() time.Time
}

var _ contracts.MarketDataGateway = (*Gateway)(nil)

// New composes a gateway. store may be nil.
func New(krxClient *krx.Client, naverClient *naver.Client, store PriceStore, log *logger.Logger) *Gateway {
	return &Gateway{
		krx:    krxClient,
		naver:  naverClient,
		store:  store,
		logger: log.Component("gateway"),
		now:    time.Now,
	}
}

// NewFromConfig builds both upstream clients on one paced HTTP client
func NewFromConfig(cfg *config.Config, store PriceStore, log *logger.Logger) *Gateway {
	httpClient := httputil.New(cfg, log)

	return New(
		krx.NewClient(httpClient, cfg.KRX.BaseURL, log),
		naver.NewClient(httpClient, cfg.Naver.BaseURL, cfg.Naver.ChartURL, log),
		store,
		log,
	)
}

// CapitalizationTable implements contracts.SnapshotSource
func (g *Gateway) CapitalizationTable(ctx context.Context, date time.Time, market contracts.Market) ([]contracts.CapEntry, error) {
	return g.krx.FetchMarketCaps(ctx, date, market)
}

// FundamentalTable implements contracts.SnapshotSource
func (g *Gateway) FundamentalTable(ctx context.Context, date time.Time, market contracts.Market) (map[string]contracts.Fundamental, error) {
	return g.krx.FetchFundamentals(ctx, date, market)
}

// TickerName implements contracts.NameResolver
func (g *Gateway) TickerName(ctx context.Context, ticker string) (string, error) {
	return g.naver.FetchStockName(ctx, ticker)
}

// PriceSeries implements contracts.PriceSource.
// Stored rows are used only when they cover the whole range; otherwise Naver
// is asked and its rows are written back to the store.
func (g *Gateway) PriceSeries(ctx context.Context, ticker string, from, to time.Time) ([]contracts.PricePoint, error) {
	if g.store != nil {
		points, ok := g.storedSeries(ctx, ticker, from, to)
		if ok {
			return points, nil
		}
	}

	prices, err := g.naver.FetchPrices(ctx, ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch prices %s: %w", ticker, err)
	}

	if g.store != nil {
		if err := g.store.SaveBatch(ctx, toDailyPrices(prices)); err != nil {
			g.logger.WithError(err).WithField("ticker", ticker).Warn("Price store write failed")
		}
	}

	points := make([]contracts.PricePoint, 0, len(prices))
	for _, p := range prices {
		points = append(points, contracts.PricePoint{Date: p.TradeDate, Close: float64(p.ClosePrice)})
	}
	return clipSeries(points, from, to), nil
}

// storedSeries returns the stored range when it spans from the first weekday
// on or after from to the last weekday on or before min(to, today).
// A holiday at either edge only costs a Naver round trip.
func (g *Gateway) storedSeries(ctx context.Context, ticker string, from, to time.Time) ([]contracts.PricePoint, bool) {
	log := g.logger.WithField("ticker", ticker)

	end := contracts.Day(to)
	if today := contracts.Today(g.now()); today.Before(end) {
		end = today
	}
	end = weekdayOnOrBefore(end)
	start := weekdayOnOrAfter(contracts.Day(from))
	if end.Before(start) {
		return nil, false
	}

	latest, found, err := g.store.LatestDate(ctx, ticker)
	if err != nil {
		log.WithError(err).Warn("Price store read failed, falling back to Naver")
		return nil, false
	}
	if !found || contracts.Day(latest).Before(end) {
		return nil, false
	}

	points, err := g.store.PriceSeries(ctx, ticker, from, to)
	if err != nil {
		log.WithError(err).Warn("Price store read failed, falling back to Naver")
		return nil, false
	}
	points = clipSeries(points, from, to)
	if len(points) == 0 || contracts.Day(points[0].Date).After(start) {
		return nil, false
	}
	return points, true
}

// IndexSeries implements contracts.PriceSource
func (g *Gateway) IndexSeries(ctx context.Context, indexID string, from, to time.Time) ([]contracts.PricePoint, error) {
	points, err := g.krx.FetchIndexSeries(ctx, indexID, from, to)
	if err != nil {
		return nil, err
	}
	return clipSeries(points, from, to), nil
}

func toDailyPrices(prices []naver.PriceData) []s0_data.DailyPrice {
	rows := make([]s0_data.DailyPrice, 0, len(prices))
	for _, p := range prices {
		rows = append(rows, s0_data.DailyPrice{
			Code:   p.StockCode,
			Date:   p.TradeDate,
			Open:   p.OpenPrice,
			High:   p.HighPrice,
			Low:    p.LowPrice,
			Close:  p.ClosePrice,
			Volume: p.Volume,
		})
	}
	return rows
}
