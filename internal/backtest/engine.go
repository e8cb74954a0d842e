package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/krxvalue/internal/contracts"
	"github.com/wonny/krxvalue/internal/metrics"
	"github.com/wonny/krxvalue/pkg/logger"
)

// Engine replays the screen at every month end and measures the basket
// against the market benchmark
// ⭐ SSOT: 백테스팅 실행은 여기서만
type Engine struct {
	screener contracts.Screener
	prices   contracts.PriceSource
	logger   *logger.Logger
}

// NewEngine creates a backtest engine. screener is normally the query cache
// so repeated rebalance dates are not screened twice.
func NewEngine(screener contracts.Screener, prices contracts.PriceSource, log *logger.Logger) *Engine {
	return &Engine{
		screener: screener,
		prices:   prices,
		logger:   log.Component("backtest"),
	}
}

// RunMarket runs the monthly rebalance backtest for one market.
// Per-ticker and benchmark price failures degrade to skipped rows recorded
// in Diagnostics; a failed screen aborts the run.
func (e *Engine) RunMarket(ctx context.Context, market contracts.Market, cfg contracts.BacktestConfig) ([]contracts.RebalancePeriod, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dates, err := MonthEndDates(cfg.StartDate, cfg.EndDate)
	if err != nil {
		return nil, err
	}
	pairs := RebalancePairs(dates)

	e.logger.WithFields(map[string]interface{}{
		"market":  market,
		"start":   contracts.FormatDate(cfg.StartDate),
		"end":     contracts.FormatDate(cfg.EndDate),
		"periods": len(pairs),
	}).Info("Starting backtest")

	periods := make([]contracts.RebalancePeriod, 0, len(pairs))
	for _, pair := range pairs {
		period, err := e.runPeriod(ctx, market, cfg, pair)
		if err != nil {
			return nil, err
		}
		periods = append(periods, period)
	}

	applyCumulative(periods)
	return periods, nil
}

func (e *Engine) runPeriod(ctx context.Context, market contracts.Market, cfg contracts.BacktestConfig, pair Pair) (contracts.RebalancePeriod, error) {
	result, err := e.screener.Screen(ctx, cfg.CriteriaAt(market, pair.Buy))
	if err != nil {
		return contracts.RebalancePeriod{}, fmt.Errorf("screen %s at %s: %w", market, contracts.FormatDate(pair.Buy), err)
	}

	tickers := result.Tickers()
	buy := result.AsOf

	portfolio, diagnostics, err := e.portfolioReturn(ctx, tickers, buy, pair.Sell)
	if err != nil {
		return contracts.RebalancePeriod{}, err
	}

	benchmark, note, err := e.benchmarkReturn(ctx, market, buy, pair.Sell)
	if err != nil {
		return contracts.RebalancePeriod{}, err
	}
	if note != "" {
		diagnostics = append(diagnostics, note)
	}

	e.logger.WithFields(map[string]interface{}{
		"market":    market,
		"buy":       contracts.FormatDate(buy),
		"sell":      contracts.FormatDate(pair.Sell),
		"selected":  len(tickers),
		"portfolio": fmt.Sprintf("%.2f%%", portfolio*100),
		"benchmark": fmt.Sprintf("%.2f%%", benchmark*100),
		"skipped":   len(diagnostics),
	}).Debug("Rebalance period computed")

	return contracts.RebalancePeriod{
		Market:          market,
		NominalBuyDate:  pair.Buy,
		BuyDate:         buy,
		SellDate:        pair.Sell,
		SelectedCount:   len(tickers),
		Tickers:         tickers,
		PortfolioReturn: portfolio,
		BenchmarkReturn: benchmark,
		ExcessReturn:    portfolio - benchmark,
		Diagnostics:     diagnostics,
	}, nil
}

// portfolioReturn is the equal weight mean of last/first - 1 over the
// tickers that have usable prices. Only context errors are returned.
func (e *Engine) portfolioReturn(ctx context.Context, tickers []string, buy, sell time.Time) (float64, []string, error) {
	var diagnostics []string
	returns := make([]float64, 0, len(tickers))

	for _, ticker := range tickers {
		series, err := e.prices.PriceSeries(ctx, ticker, buy, sell)
		if err != nil {
			if ctx.Err() != nil {
				return 0, nil, ctx.Err()
			}
			diagnostics = append(diagnostics, fmt.Sprintf("%s: %v: %v", ticker, contracts.ErrPriceLookup, err))
			continue
		}

		r, reason := periodReturn(series)
		if reason != "" {
			diagnostics = append(diagnostics, fmt.Sprintf("%s: %s", ticker, reason))
			continue
		}
		returns = append(returns, r)
	}

	if len(returns) == 0 {
		return 0, diagnostics, nil
	}
	return stat.Mean(returns, nil), diagnostics, nil
}

func (e *Engine) benchmarkReturn(ctx context.Context, market contracts.Market, buy, sell time.Time) (float64, string, error) {
	indexID := market.BenchmarkIndex()

	series, err := e.prices.IndexSeries(ctx, indexID, buy, sell)
	if err != nil {
		if ctx.Err() != nil {
			return 0, "", ctx.Err()
		}
		return 0, fmt.Sprintf("benchmark %s: %v: %v", indexID, contracts.ErrPriceLookup, err), nil
	}

	r, reason := periodReturn(series)
	if reason != "" {
		return 0, fmt.Sprintf("benchmark %s: %s", indexID, reason), nil
	}
	return r, "", nil
}

// periodReturn returns last/first close - 1, or a reason the series is unusable
func periodReturn(series []contracts.PricePoint) (float64, string) {
	if len(series) == 0 {
		return 0, "no prices"
	}

	first := series[0].Close
	if first <= 0 {
		return 0, "non-positive buy price"
	}
	return series[len(series)-1].Close/first - 1, ""
}

// CompareMarkets runs every market independently (default: all supported)
func (e *Engine) CompareMarkets(ctx context.Context, cfg contracts.BacktestConfig, markets []contracts.Market) (*contracts.Comparison, error) {
	if len(markets) == 0 {
		markets = contracts.SupportedMarkets
	}

	comparison := &contracts.Comparison{
		RunID:     uuid.NewString(),
		Config:    cfg,
		Markets:   append([]contracts.Market(nil), markets...),
		Summaries: make([]contracts.MarketSummary, 0, len(markets)),
		Periods:   make(map[contracts.Market][]contracts.RebalancePeriod, len(markets)),
	}

	start := time.Now()
	for _, market := range markets {
		periods, err := e.RunMarket(ctx, market, cfg)
		if err != nil {
			metrics.RecordBacktestRun(string(market), "failure")
			return nil, fmt.Errorf("backtest %s: %w", market, err)
		}
		metrics.RecordBacktestRun(string(market), "success")

		comparison.Periods[market] = periods
		comparison.Summaries = append(comparison.Summaries, Summarize(market, periods))
	}

	e.logger.WithFields(map[string]interface{}{
		"run_id":   comparison.RunID,
		"markets":  len(markets),
		"duration": time.Since(start).String(),
	}).Info("Backtest completed")

	return comparison, nil
}
