package commands

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/wonny/krxvalue/internal/contracts"
)

// 터미널 출력 공통 포맷. 종목명(한글)은 2칸 폭이므로 패딩은 runewidth 기준.

const lineWidth = 59

func PrintSeparator()       { fmt.Println(strings.Repeat("─", lineWidth)) }
func PrintDoubleSeparator() { fmt.Println(strings.Repeat("═", lineWidth)) }

// PrintTitle prints a boxed title
func PrintTitle(title string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println()
	fmt.Printf("⚠️  %s\n", message)
	fmt.Println()
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// PrintTableHeader prints the column titles and a rule under them
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	total := 2 * (len(widths) - 1)
	for _, w := range widths {
		total += w
	}
	fmt.Println(strings.Repeat("─", total))
}

// PrintTableRow prints one row; cells wider than their column are truncated
func PrintTableRow(values []string, widths []int) {
	fmt.Println(formatRow(values, widths))
}

func formatRow(values []string, widths []int) string {
	cells := make([]string, len(values))
	for i, val := range values {
		w := widths[i]
		cells[i] = runewidth.FillRight(runewidth.Truncate(val, w, "…"), w)
	}
	return strings.TrimRight(strings.Join(cells, "  "), " ")
}

// PrintList prints a bulleted list
func PrintList(items []string) {
	for _, item := range items {
		fmt.Printf("   • %s\n", item)
	}
}

// PrintKeyValue prints "key : value" with the key padded to keyWidth columns
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %s : %s\n", runewidth.FillRight(key, keyWidth), value)
}

// formatPercent renders a return as a signed percentage
func formatPercent(v float64) string {
	return fmt.Sprintf("%+.2f%%", v*100)
}

// formatOptional renders a nil pointer as "-"
func formatOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

// maxEok keeps eok * wonPerEok inside int64
const maxEok = math.MaxInt64 / wonPerEok

// eokToWon converts a 억원 flag value, rejecting values that would overflow
func eokToWon(name string, eok int64) (int64, error) {
	if eok < 0 || eok > maxEok {
		return 0, fmt.Errorf("%w: --%s must be between 0 and %d (got %d)", contracts.ErrInvalidParameter, name, int64(maxEok), eok)
	}
	return eok * wonPerEok, nil
}

// parseBound parses an optional upper bound flag; empty means unset
func parseBound(name, raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: --%s must be a number (got %q)", contracts.ErrInvalidParameter, name, raw)
	}
	return &v, nil
}
