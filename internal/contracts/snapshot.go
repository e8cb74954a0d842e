package contracts

import "time"

// CapEntry is one row of the capitalization table
type CapEntry struct {
	Ticker    string `json:"ticker"`
	MarketCap int64  `json:"market_cap"` // 원
}

// Fundamental is one row of the fundamental table. DIV is nil when the
// source reports no dividend yield.
type Fundamental struct {
	PER float64  `json:"per"`
	PBR float64  `json:"pbr"`
	DIV *float64 `json:"div,omitempty"` // %
}

// MarketSnapshot is the data of one market on one resolved date
type MarketSnapshot struct {
	Market       Market                 `json:"market"`
	AsOf         time.Time              `json:"as_of"`
	Caps         []CapEntry             `json:"caps"` // source order
	Fundamentals map[string]Fundamental `json:"fundamentals"`
}

// PricePoint is a daily close
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}
