package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wonny/krxvalue/internal/contracts"
)

// File names written by WriteBacktestReport
const (
	SummaryFileName  = "backtest_summary.csv"
	MarkdownFileName = "backtest_report.md"
)

// utf8BOM keeps Excel from misreading Korean text
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var summaryHeader = []string{
	"market",
	"periods",
	"portfolio_cumulative_return",
	"benchmark_cumulative_return",
	"portfolio_mdd",
	"benchmark_mdd",
}

var periodHeader = []string{
	"market",
	"rebalance_date",
	"next_rebalance_date",
	"selected_count",
	"portfolio_return",
	"benchmark_return",
	"excess_return",
	"portfolio_cumulative",
	"benchmark_cumulative",
	"excess_cumulative",
}

// MonthlyFileName returns the per-market period file name
func MonthlyFileName(market contracts.Market) string {
	return fmt.Sprintf("backtest_%s_monthly.csv", strings.ToLower(string(market)))
}

// WriteBacktestReport writes the summary CSV, one monthly CSV per market and
// a Markdown summary into dir. It returns the Markdown path.
func WriteBacktestReport(dir string, comparison *contracts.Comparison) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report dir: %w", err)
	}

	summaryRows := summaryRecords(comparison.Summaries)
	if err := writeCSVFile(filepath.Join(dir, SummaryFileName), summaryHeader, summaryRows); err != nil {
		return "", err
	}

	for _, market := range comparison.Markets {
		rows := periodRecords(comparison.Periods[market])
		if err := writeCSVFile(filepath.Join(dir, MonthlyFileName(market)), periodHeader, rows); err != nil {
			return "", err
		}
	}

	mdPath := filepath.Join(dir, MarkdownFileName)
	if err := os.WriteFile(mdPath, []byte(markdownSummary(summaryRows)), 0o644); err != nil {
		return "", fmt.Errorf("failed to write markdown report: %w", err)
	}

	return mdPath, nil
}

func summaryRecords(summaries []contracts.MarketSummary) [][]string {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			string(s.Market),
			strconv.Itoa(s.Periods),
			formatFloat(s.PortfolioCumulativeReturn),
			formatFloat(s.BenchmarkCumulativeReturn),
			formatFloat(s.PortfolioMaxDrawdown),
			formatFloat(s.BenchmarkMaxDrawdown),
		})
	}
	return rows
}

func periodRecords(periods []contracts.RebalancePeriod) [][]string {
	rows := make([][]string, 0, len(periods))
	for _, p := range periods {
		rows = append(rows, []string{
			string(p.Market),
			p.BuyDate.Format(contracts.ISODateLayout),
			p.SellDate.Format(contracts.ISODateLayout),
			strconv.Itoa(p.SelectedCount),
			formatFloat(p.PortfolioReturn),
			formatFloat(p.BenchmarkReturn),
			formatFloat(p.ExcessReturn),
			formatFloat(p.PortfolioCumulative),
			formatFloat(p.BenchmarkCumulative),
			formatFloat(p.ExcessCumulative),
		})
	}
	return rows
}

func markdownSummary(rows [][]string) string {
	separator := make([]string, len(summaryHeader))
	for i := range separator {
		separator[i] = "---"
	}

	lines := []string{
		"# Monthly Rebalance Backtest Report",
		"",
		"## Summary",
		"",
		"| " + strings.Join(summaryHeader, " | ") + " |",
		"| " + strings.Join(separator, " | ") + " |",
	}
	for _, row := range rows {
		lines = append(lines, "| "+strings.Join(row, " | ")+" |")
	}
	return strings.Join(lines, "\n")
}

func writeCSVFile(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	defer file.Close()

	if err := writeCSV(file, header, rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeCSV writes a BOM-prefixed CSV document
func writeCSV(w io.Writer, header []string, rows [][]string) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
