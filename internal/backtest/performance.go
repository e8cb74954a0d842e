package backtest

import (
	"gonum.org/v1/gonum/floats"

	"github.com/wonny/krxvalue/internal/contracts"
)

// equityCurve returns ∏(1+r) up to each period
func equityCurve(returns []float64) []float64 {
	if len(returns) == 0 {
		return nil
	}

	growth := make([]float64, len(returns))
	for i, r := range returns {
		growth[i] = 1 + r
	}
	return floats.CumProd(make([]float64, len(growth)), growth)
}

// CumulativeReturns returns the compounded return after each period
func CumulativeReturns(returns []float64) []float64 {
	curve := equityCurve(returns)
	for i := range curve {
		curve[i]--
	}
	return curve
}

// TotalReturn compounds all periods. Empty input is 0.
func TotalReturn(returns []float64) float64 {
	curve := equityCurve(returns)
	if len(curve) == 0 {
		return 0
	}
	return curve[len(curve)-1] - 1
}

// MaxDrawdown is min over t of equity[t]/runningPeak[t] - 1 (<= 0).
// The running peak starts at the first equity value.
func MaxDrawdown(returns []float64) float64 {
	curve := equityCurve(returns)
	if len(curve) == 0 {
		return 0
	}

	peak := curve[0]
	mdd := 0.0
	for _, equity := range curve {
		if equity > peak {
			peak = equity
		}
		if dd := equity/peak - 1; dd < mdd {
			mdd = dd
		}
	}
	return mdd
}

// Summarize aggregates the periods of one market
func Summarize(market contracts.Market, periods []contracts.RebalancePeriod) contracts.MarketSummary {
	summary := contracts.MarketSummary{Market: market, Periods: len(periods)}
	if len(periods) == 0 {
		return summary
	}

	portfolio := make([]float64, len(periods))
	benchmark := make([]float64, len(periods))
	for i, p := range periods {
		portfolio[i] = p.PortfolioReturn
		benchmark[i] = p.BenchmarkReturn
	}

	summary.PortfolioCumulativeReturn = TotalReturn(portfolio)
	summary.BenchmarkCumulativeReturn = TotalReturn(benchmark)
	summary.PortfolioMaxDrawdown = MaxDrawdown(portfolio)
	summary.BenchmarkMaxDrawdown = MaxDrawdown(benchmark)
	return summary
}

// applyCumulative fills the cumulative columns. Excess cumulative is the
// difference of the two compounded curves, not the compounded excess.
func applyCumulative(periods []contracts.RebalancePeriod) {
	portfolio := make([]float64, len(periods))
	benchmark := make([]float64, len(periods))
	for i, p := range periods {
		portfolio[i] = p.PortfolioReturn
		benchmark[i] = p.BenchmarkReturn
	}

	pc := CumulativeReturns(portfolio)
	bc := CumulativeReturns(benchmark)
	for i := range periods {
		periods[i].PortfolioCumulative = pc[i]
		periods[i].BenchmarkCumulative = bc[i]
		periods[i].ExcessCumulative = pc[i] - bc[i]
	}
}
