package backtest

import (
	"fmt"
	"time"

	"github.com/wonny/krxvalue/internal/contracts"
)

// MonthEndDates returns every calendar month end inside [start, end].
// A range without a month end yields [end].
func MonthEndDates(start, end time.Time) ([]time.Time, error) {
	start, end = contracts.Day(start), contracts.Day(end)
	if start.After(end) {
		return nil, fmt.Errorf("%w: start date %s is after end date %s",
			contracts.ErrInvalidParameter, contracts.FormatDate(start), contracts.FormatDate(end))
	}

	dates := make([]time.Time, 0, 12)
	month := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !month.After(end) {
		monthEnd := month.AddDate(0, 1, -1)
		if !monthEnd.Before(start) && !monthEnd.After(end) {
			dates = append(dates, monthEnd)
		}
		month = month.AddDate(0, 1, 0)
	}

	if len(dates) == 0 {
		dates = append(dates, end)
	}
	return dates, nil
}

// Pair is one holding period's nominal buy and sell dates
type Pair struct {
	Buy  time.Time
	Sell time.Time
}

// RebalancePairs pairs each date with the next one
func RebalancePairs(dates []time.Time) []Pair {
	if len(dates) < 2 {
		return nil
	}

	pairs := make([]Pair, 0, len(dates)-1)
	for i := 0; i < len(dates)-1; i++ {
		pairs = append(pairs, Pair{Buy: dates[i], Sell: dates[i+1]})
	}
	return pairs
}
