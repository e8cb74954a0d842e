package gateway

import (
	"sort"
	"time"

	"github.com/wonny/krxvalue/internal/contracts"
)

// clipSeries returns the points inside [from, to] (calendar days, inclusive)
// in ascending date order
func clipSeries(points []contracts.PricePoint, from, to time.Time) []contracts.PricePoint {
	start, end := contracts.Day(from), contracts.Day(to)

	out := make([]contracts.PricePoint, 0, len(points))
	for _, p := range points {
		d := contracts.Day(p.Date)
		if d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func weekdayOnOrAfter(d time.Time) time.Time {
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func weekdayOnOrBefore(d time.Time) time.Time {
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
