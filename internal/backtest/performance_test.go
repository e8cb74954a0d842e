package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/krxvalue/internal/contracts"
)

func TestTotalReturn(t *testing.T) {
	assert.InDelta(t, -0.076, TotalReturn([]float64{0.10, -0.20, 0.05}), 1e-12)
	assert.InDelta(t, -0.000706, TotalReturn([]float64{0.01, -0.03, 0.02}), 1e-9)
	assert.Equal(t, 0.0, TotalReturn(nil))
}

func TestCumulativeReturns(t *testing.T) {
	got := CumulativeReturns([]float64{0.10, -0.20, 0.05})
	require.Len(t, got, 3)
	assert.InDelta(t, 0.10, got[0], 1e-12)
	assert.InDelta(t, -0.12, got[1], 1e-12)
	assert.InDelta(t, -0.076, got[2], 1e-12)
}

func TestMaxDrawdown(t *testing.T) {
	// equity 1.10, 0.88, 0.924: trough 0.88 against peak 1.10
	assert.InDelta(t, -0.2, MaxDrawdown([]float64{0.10, -0.20, 0.05}), 1e-12)

	// only rising
	assert.Equal(t, 0.0, MaxDrawdown([]float64{0.01, 0.02, 0.03}))

	// first period loss alone is not a drawdown from a prior peak
	assert.Equal(t, 0.0, MaxDrawdown([]float64{-0.10}))

	assert.Equal(t, 0.0, MaxDrawdown(nil))
}

func TestSummarize(t *testing.T) {
	periods := []contracts.RebalancePeriod{
		{PortfolioReturn: 0.10, BenchmarkReturn: 0.01},
		{PortfolioReturn: -0.20, BenchmarkReturn: -0.03},
		{PortfolioReturn: 0.05, BenchmarkReturn: 0.02},
	}

	s := Summarize(contracts.MarketKOSPI, periods)
	assert.Equal(t, contracts.MarketKOSPI, s.Market)
	assert.Equal(t, 3, s.Periods)
	assert.InDelta(t, -0.076, s.PortfolioCumulativeReturn, 1e-12)
	assert.InDelta(t, -0.000706, s.BenchmarkCumulativeReturn, 1e-9)
	assert.InDelta(t, -0.2, s.PortfolioMaxDrawdown, 1e-12)
	assert.InDelta(t, 1.01*0.97/1.01-1, s.BenchmarkMaxDrawdown, 1e-12)

	empty := Summarize(contracts.MarketKOSDAQ, nil)
	assert.Equal(t, contracts.MarketSummary{Market: contracts.MarketKOSDAQ}, empty)
}

func TestApplyCumulative_ExcessIsDifferenceOfCurves(t *testing.T) {
	periods := []contracts.RebalancePeriod{
		{PortfolioReturn: 0.10, BenchmarkReturn: 0.05},
		{PortfolioReturn: 0.10, BenchmarkReturn: 0.05},
	}
	applyCumulative(periods)

	assert.InDelta(t, 0.21, periods[1].PortfolioCumulative, 1e-12)
	assert.InDelta(t, 0.1025, periods[1].BenchmarkCumulative, 1e-12)
	assert.InDelta(t, 0.21-0.1025, periods[1].ExcessCumulative, 1e-12)
	// compounding the excess returns would give 1.05*1.05-1 = 0.1025
	assert.NotEqual(t, 0.1025, periods[1].ExcessCumulative)
}
