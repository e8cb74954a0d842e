package contracts

import (
	"strings"
	"time"
)

// Market identifies a KRX board
type Market string

const (
	MarketKOSPI  Market = "KOSPI"
	MarketKOSDAQ Market = "KOSDAQ"
)

// SupportedMarkets lists every market in report order
var SupportedMarkets = []Market{MarketKOSPI, MarketKOSDAQ}

// ParseMarket normalizes user input (" kospi " -> KOSPI)
func ParseMarket(raw string) (Market, error) {
	m := Market(strings.ToUpper(strings.TrimSpace(raw)))
	switch m {
	case MarketKOSPI, MarketKOSDAQ:
		return m, nil
	}
	return "", invalidParameter("market must be one of: KOSPI, KOSDAQ (got %q)", raw)
}

// BenchmarkIndex returns the KRX index identifier used as the market benchmark
func (m Market) BenchmarkIndex() string {
	switch m {
	case MarketKOSPI:
		return "1001" // 코스피
	case MarketKOSDAQ:
		return "2001" // 코스닥
	}
	return ""
}

// KRXCode returns the mktId used by the KRX data portal
func (m Market) KRXCode() string {
	switch m {
	case MarketKOSPI:
		return "STK"
	case MarketKOSDAQ:
		return "KSQ"
	}
	return ""
}

// Date layouts accepted from users; CompactDateLayout is also the canonical form
const (
	CompactDateLayout = "20060102"
	ISODateLayout     = "2006-01-02"
)

// ParseDate accepts YYYYMMDD or YYYY-MM-DD. An empty string means today in Seoul.
// Returned dates are calendar days at UTC midnight.
func ParseDate(raw string, now time.Time) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Today(now), nil
	}

	for _, layout := range []string{CompactDateLayout, ISODateLayout} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}

	return time.Time{}, invalidParameter("date must be YYYYMMDD or YYYY-MM-DD (got %q)", raw)
}

// KST is the exchange's zone. Korea has no DST, so a fixed offset is exact
// and needs no tzdata on the host.
var KST = time.FixedZone("KST", 9*60*60)

// Today returns the KRX calendar day of now, whatever the host zone
func Today(now time.Time) time.Time {
	return Day(now.In(KST))
}

// Day truncates t to its calendar day at UTC midnight
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDate renders the canonical compact form (20260219)
func FormatDate(t time.Time) string {
	return t.Format(CompactDateLayout)
}

// ParseMarketScope turns "all", "" or a single market name into a market list
func ParseMarketScope(raw string) ([]Market, error) {
	value := strings.TrimSpace(raw)
	if value == "" || strings.EqualFold(value, "all") {
		return append([]Market(nil), SupportedMarkets...), nil
	}

	m, err := ParseMarket(value)
	if err != nil {
		return nil, invalidParameter("markets must be one of: all, KOSPI, KOSDAQ (got %q)", raw)
	}
	return []Market{m}, nil
}
