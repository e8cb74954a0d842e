package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/krxvalue/internal/contracts"
	"github.com/wonny/krxvalue/internal/report"
	"github.com/wonny/krxvalue/pkg/logger"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "월말 리밸런싱 백테스트",
	Long: `매월 말 TAT 상위 종목을 동일가중으로 매수해 다음 월말에 매도하는
리밸런싱을 시장 지수(KOSPI 1001, KOSDAQ 2001)와 비교합니다.

결과는 --output-dir 에 저장됩니다:
  backtest_summary.csv
  backtest_<market>_monthly.csv
  backtest_report.md

Example:
  go run ./cmd/krxvalue backtest --start-date 2025-01-01 --end-date 2025-12-31
  go run ./cmd/krxvalue backtest --start-date 20250101 --end-date 20251231 --markets KOSDAQ --top-n 20`,
	RunE: runBacktest,
}

var (
	backtestStart     string
	backtestEnd       string
	backtestTopN      int
	backtestCapMin    int64
	backtestCapMax    int64
	backtestPERMax    string
	backtestPBRMax    string
	backtestDivPolicy string
	backtestMarkets   string
	backtestOutputDir string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	// Flags
	backtestCmd.Flags().StringVar(&backtestStart, "start-date", "", "시작일 (YYYYMMDD 또는 YYYY-MM-DD, 필수)")
	backtestCmd.Flags().StringVar(&backtestEnd, "end-date", "", "종료일 (YYYYMMDD 또는 YYYY-MM-DD, 필수)")
	backtestCmd.Flags().IntVar(&backtestTopN, "top-n", 10, "리밸런싱마다 편입할 종목 수")
	backtestCmd.Flags().Int64Var(&backtestCapMin, "cap-min", 500_000_000_000, "시가총액 하한 (원)")
	backtestCmd.Flags().Int64Var(&backtestCapMax, "cap-max", 1_000_000_000_000, "시가총액 상한 (원)")
	backtestCmd.Flags().StringVar(&backtestPERMax, "per-max", "", "PER 상한 (비우면 미적용)")
	backtestCmd.Flags().StringVar(&backtestPBRMax, "pbr-max", "", "PBR 상한 (비우면 미적용)")
	backtestCmd.Flags().StringVar(&backtestDivPolicy, "div-policy", "zero", "배당 결측 처리 (zero|exclude)")
	backtestCmd.Flags().StringVar(&backtestMarkets, "markets", "all", "대상 시장 (all|KOSPI|KOSDAQ)")
	backtestCmd.Flags().StringVar(&backtestOutputDir, "output-dir", "reports", "리포트 저장 디렉토리")

	backtestCmd.MarkFlagRequired("start-date")
	backtestCmd.MarkFlagRequired("end-date")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	req := contracts.BacktestRequest{
		StartDate: backtestStart,
		EndDate:   backtestEnd,
		TopN:      backtestTopN,
		CapMin:    backtestCapMin,
		CapMax:    backtestCapMax,
		DivPolicy: backtestDivPolicy,
	}
	if req.PERMax, err = parseBound("per-max", backtestPERMax); err != nil {
		return err
	}
	if req.PBRMax, err = parseBound("pbr-max", backtestPBRMax); err != nil {
		return err
	}

	btCfg, err := contracts.NewBacktestConfig(req)
	if err != nil {
		PrintError(err.Error())
		return err
	}
	markets, err := contracts.ParseMarketScope(backtestMarkets)
	if err != nil {
		PrintError(err.Error())
		return err
	}

	a, err := newApp(cfg, log)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer a.Close()

	PrintTitle("Monthly Rebalance Backtest")
	PrintKeyValue("Period", fmt.Sprintf("%s ~ %s",
		btCfg.StartDate.Format(contracts.ISODateLayout), btCfg.EndDate.Format(contracts.ISODateLayout)), 8)
	PrintKeyValue("Markets", fmt.Sprintf("%v", markets), 8)
	PrintKeyValue("Top N", strconv.Itoa(btCfg.TopN), 8)
	PrintSeparator()

	start := time.Now()
	comparison, err := a.engine.CompareMarkets(context.Background(), btCfg, markets)
	if err != nil {
		PrintError(err.Error())
		return err
	}

	printBacktestSummary(comparison)

	mdPath, err := report.WriteBacktestReport(backtestOutputDir, comparison)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	fmt.Println()
	PrintSuccess(fmt.Sprintf("Run %s completed in %.2fs", comparison.RunID, time.Since(start).Seconds()))
	PrintSuccess(fmt.Sprintf("Report: %s", mdPath))
	return nil
}

func printBacktestSummary(comparison *contracts.Comparison) {
	widths := []int{8, 8, 12, 12, 10, 10}
	PrintTableHeader([]string{"market", "periods", "portfolio", "benchmark", "port_mdd", "bench_mdd"}, widths)
	for _, s := range comparison.Summaries {
		PrintTableRow([]string{
			string(s.Market),
			strconv.Itoa(s.Periods),
			formatPercent(s.PortfolioCumulativeReturn),
			formatPercent(s.BenchmarkCumulativeReturn),
			formatPercent(s.PortfolioMaxDrawdown),
			formatPercent(s.BenchmarkMaxDrawdown),
		}, widths)
	}

	for _, market := range comparison.Markets {
		for _, p := range comparison.Periods[market] {
			for _, d := range p.Diagnostics {
				line := fmt.Sprintf("%s %s: %s", market, p.BuyDate.Format(contracts.ISODateLayout), d)
				PrintInfo(line)
			}
		}
	}
}
