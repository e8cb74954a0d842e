package contracts

import (
	"strconv"
	"strings"
	"time"
)

// DivPolicy decides what happens to rows with a missing dividend yield
type DivPolicy string

const (
	// DivZeroFill keeps the row; its dividend term scores 0
	DivZeroFill DivPolicy = "zero"
	// DivExclude drops the row
	DivExclude DivPolicy = "exclude"
)

// ParseDivPolicy normalizes user input. Empty means zero-fill.
func ParseDivPolicy(raw string) (DivPolicy, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "", "zero", "zerofill", "zero_fill":
		return DivZeroFill, nil
	case "exclude":
		return DivExclude, nil
	}
	return "", invalidParameter("divPolicy must be one of: zero, exclude (got %q)", raw)
}

// ScreenRequest is the raw, user facing form of a screening request
type ScreenRequest struct {
	Market    string
	Date      string // YYYYMMDD, YYYY-MM-DD or empty (today)
	CapMin    int64  // 원
	CapMax    int64  // 원
	TopN      int
	PERMax    *float64
	PBRMax    *float64
	DivPolicy string
}

// Criteria is a validated, normalized screening request.
// Build it with NewCriteria; treat it as immutable afterwards.
type Criteria struct {
	Market    Market    `json:"market" validate:"required,oneof=KOSPI KOSDAQ"`
	Date      time.Time `json:"date"`
	CapMin    int64     `json:"cap_min" validate:"gte=0"`
	CapMax    int64     `json:"cap_max" validate:"gtefield=CapMin"`
	TopN      int       `json:"top_n" validate:"min=1,max=100"`
	PERMax    *float64  `json:"per_max,omitempty" validate:"omitempty,gt=0"`
	PBRMax    *float64  `json:"pbr_max,omitempty" validate:"omitempty,gt=0"`
	DivPolicy DivPolicy `json:"div_policy" validate:"oneof=zero exclude"`
}

// NewCriteria parses and validates a raw request. now supplies the date
// used when the request leaves it empty.
func NewCriteria(req ScreenRequest, now time.Time) (Criteria, error) {
	market, err := ParseMarket(req.Market)
	if err != nil {
		return Criteria{}, err
	}

	date, err := ParseDate(req.Date, now)
	if err != nil {
		return Criteria{}, err
	}

	policy, err := ParseDivPolicy(req.DivPolicy)
	if err != nil {
		return Criteria{}, err
	}

	c := Criteria{
		Market:    market,
		Date:      date,
		CapMin:    req.CapMin,
		CapMax:    req.CapMax,
		TopN:      req.TopN,
		PERMax:    copyFloat(req.PERMax),
		PBRMax:    copyFloat(req.PBRMax),
		DivPolicy: policy,
	}

	if err := c.Validate(); err != nil {
		return Criteria{}, err
	}

	return c, nil
}

// Validate checks every field. Screening calls it again so that hand-built
// criteria cannot skip the checks.
func (c Criteria) Validate() error {
	if c.Date.IsZero() {
		return invalidParameter("date is required")
	}
	return validateStruct(c)
}

// Key returns the normalized cache key:
// market|YYYYMMDD|capMin|capMax|topN|perMax|pbrMax|divPolicy
func (c Criteria) Key() string {
	parts := []string{
		string(c.Market),
		FormatDate(c.Date),
		strconv.FormatInt(c.CapMin, 10),
		strconv.FormatInt(c.CapMax, 10),
		strconv.Itoa(c.TopN),
		formatBound(c.PERMax),
		formatBound(c.PBRMax),
		string(c.DivPolicy),
	}
	return strings.Join(parts, "|")
}

func formatBound(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
