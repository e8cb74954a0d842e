package contracts

import (
	"strings"
	"time"
)

// BacktestConfig holds the date range and the screening filters replayed
// at every rebalance date
type BacktestConfig struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	TopN      int       `json:"top_n" validate:"min=1,max=100"`
	CapMin    int64     `json:"cap_min" validate:"gte=0"`
	CapMax    int64     `json:"cap_max" validate:"gtefield=CapMin"`
	PERMax    *float64  `json:"per_max,omitempty" validate:"omitempty,gt=0"`
	PBRMax    *float64  `json:"pbr_max,omitempty" validate:"omitempty,gt=0"`
	DivPolicy DivPolicy `json:"div_policy" validate:"oneof=zero exclude"`
}

// BacktestRequest is the raw, user facing form of a backtest request
type BacktestRequest struct {
	StartDate string   `json:"start_date"` // YYYYMMDD or YYYY-MM-DD
	EndDate   string   `json:"end_date"`
	TopN      int      `json:"top_n"`
	CapMin    int64    `json:"cap_min"`
	CapMax    int64    `json:"cap_max"`
	PERMax    *float64 `json:"per_max,omitempty"`
	PBRMax    *float64 `json:"pbr_max,omitempty"`
	DivPolicy string   `json:"div_policy"`
}

// NewBacktestConfig parses and validates a raw request. Both dates are required.
func NewBacktestConfig(req BacktestRequest) (BacktestConfig, error) {
	if strings.TrimSpace(req.StartDate) == "" || strings.TrimSpace(req.EndDate) == "" {
		return BacktestConfig{}, invalidParameter("startDate and endDate are required")
	}

	start, err := ParseDate(req.StartDate, time.Time{})
	if err != nil {
		return BacktestConfig{}, err
	}
	end, err := ParseDate(req.EndDate, time.Time{})
	if err != nil {
		return BacktestConfig{}, err
	}

	policy, err := ParseDivPolicy(req.DivPolicy)
	if err != nil {
		return BacktestConfig{}, err
	}

	cfg := BacktestConfig{
		StartDate: start,
		EndDate:   end,
		TopN:      req.TopN,
		CapMin:    req.CapMin,
		CapMax:    req.CapMax,
		PERMax:    copyFloat(req.PERMax),
		PBRMax:    copyFloat(req.PBRMax),
		DivPolicy: policy,
	}
	if err := cfg.Validate(); err != nil {
		return BacktestConfig{}, err
	}
	return cfg, nil
}

// Validate checks the range and the filter fields
func (c BacktestConfig) Validate() error {
	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		return invalidParameter("startDate and endDate are required")
	}
	if c.StartDate.After(c.EndDate) {
		return invalidParameter("startDate %s is after endDate %s", FormatDate(c.StartDate), FormatDate(c.EndDate))
	}
	return validateStruct(c)
}

// CriteriaAt builds the screening criteria for one rebalance date
func (c BacktestConfig) CriteriaAt(market Market, date time.Time) Criteria {
	return Criteria{
		Market:    market,
		Date:      Day(date),
		CapMin:    c.CapMin,
		CapMax:    c.CapMax,
		TopN:      c.TopN,
		PERMax:    copyFloat(c.PERMax),
		PBRMax:    copyFloat(c.PBRMax),
		DivPolicy: c.DivPolicy,
	}
}

// RebalancePeriod is one holding period of the monthly rebalance
type RebalancePeriod struct {
	Market              Market    `json:"market"`
	NominalBuyDate      time.Time `json:"nominal_buy_date"`
	BuyDate             time.Time `json:"buy_date"` // effective, after snapshot fallback
	SellDate            time.Time `json:"sell_date"`
	SelectedCount       int       `json:"selected_count"`
	Tickers             []string  `json:"tickers"`
	PortfolioReturn     float64   `json:"portfolio_return"`
	BenchmarkReturn     float64   `json:"benchmark_return"`
	ExcessReturn        float64   `json:"excess_return"`
	PortfolioCumulative float64   `json:"portfolio_cumulative"`
	BenchmarkCumulative float64   `json:"benchmark_cumulative"`
	ExcessCumulative    float64   `json:"excess_cumulative"` // portfolio curve - benchmark curve
	Diagnostics         []string  `json:"diagnostics,omitempty"`
}

// MarketSummary aggregates the periods of one market
type MarketSummary struct {
	Market                    Market  `json:"market"`
	Periods                   int     `json:"periods"`
	PortfolioCumulativeReturn float64 `json:"portfolio_cumulative_return"`
	BenchmarkCumulativeReturn float64 `json:"benchmark_cumulative_return"`
	PortfolioMaxDrawdown      float64 `json:"portfolio_mdd"`
	BenchmarkMaxDrawdown      float64 `json:"benchmark_mdd"`
}

// Comparison is the outcome of one multi-market backtest run
type Comparison struct {
	RunID     string                       `json:"run_id"`
	Config    BacktestConfig               `json:"config"`
	Markets   []Market                     `json:"markets"`
	Summaries []MarketSummary              `json:"summaries"`
	Periods   map[Market][]RebalancePeriod `json:"periods"`
}
