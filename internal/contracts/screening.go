package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScoredCandidate is a ranked screening row with its score breakdown.
// Values are kept at full precision; use Display for rounded output.
type ScoredCandidate struct {
	Rank            int      `json:"rank"`
	Ticker          string   `json:"ticker"`
	Name            string   `json:"name"`
	MarketCap       int64    `json:"market_cap"`
	PER             float64  `json:"per"`
	PBR             float64  `json:"pbr"`
	DIV             *float64 `json:"div,omitempty"`
	PERContribution float64  `json:"per_contribution"`
	PBRContribution float64  `json:"pbr_contribution"`
	DIVContribution float64  `json:"div_contribution"`
	TotalScore      float64  `json:"total_score"` // TAT
}

// CandidateView is the rounded presentation form of a candidate
type CandidateView struct {
	Rank              int      `json:"rank"`
	Ticker            string   `json:"ticker"`
	Name              string   `json:"name"`
	MarketCapTrillion float64  `json:"market_cap_trillion"` // 조원
	PER               float64  `json:"per"`
	PBR               float64  `json:"pbr"`
	DIV               *float64 `json:"div"`
	PERContribution   float64  `json:"per_contribution"`
	PBRContribution   float64  `json:"pbr_contribution"`
	DIVContribution   float64  `json:"div_contribution"`
	TotalScore        float64  `json:"total_score"`
}

const wonPerTrillion = 1_000_000_000_000

// Display rounds the cap (in 조) to 3 decimals and the score terms to 4
func (c ScoredCandidate) Display() CandidateView {
	return CandidateView{
		Rank:              c.Rank,
		Ticker:            c.Ticker,
		Name:              c.Name,
		MarketCapTrillion: decimal.NewFromInt(c.MarketCap).Div(decimal.NewFromInt(wonPerTrillion)).Round(3).InexactFloat64(),
		PER:               c.PER,
		PBR:               c.PBR,
		DIV:               copyFloat(c.DIV),
		PERContribution:   round(c.PERContribution, 4),
		PBRContribution:   round(c.PBRContribution, 4),
		DIVContribution:   round(c.DIVContribution, 4),
		TotalScore:        round(c.TotalScore, 4),
	}
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// ScreenStats counts rows through the pipeline
type ScreenStats struct {
	TotalJoined int `json:"total"`
	Filtered    int `json:"filtered"`
	Final       int `json:"final"`
}

// ScreeningResult is the answer to one Criteria
type ScreeningResult struct {
	Criteria      Criteria          `json:"criteria"`
	Candidates    []ScoredCandidate `json:"candidates"`
	AsOf          time.Time         `json:"as_of"`
	Stats         ScreenStats       `json:"stats"`
	ResolutionLog []string          `json:"resolution_log"`
	CacheHit      bool              `json:"cache_hit"`

	// Archived is set when the answer was reloaded from the result archive
	// because the live screen could not reach KRX
	Archived   bool      `json:"archived,omitempty"`
	ArchivedAt time.Time `json:"archived_at,omitzero"`
}

// Clone returns a deep copy that shares no mutable state with r
func (r *ScreeningResult) Clone() *ScreeningResult {
	if r == nil {
		return nil
	}

	out := *r
	out.Criteria.PERMax = copyFloat(r.Criteria.PERMax)
	out.Criteria.PBRMax = copyFloat(r.Criteria.PBRMax)

	if r.Candidates != nil {
		out.Candidates = make([]ScoredCandidate, len(r.Candidates))
		for i, c := range r.Candidates {
			c.DIV = copyFloat(c.DIV)
			out.Candidates[i] = c
		}
	}

	if r.ResolutionLog != nil {
		out.ResolutionLog = append([]string(nil), r.ResolutionLog...)
	}

	return &out
}

// Tickers returns the selected tickers in rank order
func (r *ScreeningResult) Tickers() []string {
	tickers := make([]string, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		tickers = append(tickers, c.Ticker)
	}
	return tickers
}

// Display returns the rounded rows in rank order
func (r *ScreeningResult) Display() []CandidateView {
	views := make([]CandidateView, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		views = append(views, c.Display())
	}
	return views
}
