package krx

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/wonny/krxvalue/internal/contracts"
)

// krxIndexRow represents a row in the MDCSTAT00301 response
type krxIndexRow struct {
	TRD_DD     string `json:"TRD_DD"`     // 2026/02/13
	CLSPRC_IDX string `json:"CLSPRC_IDX"` // 종가
}

// FetchIndexSeries returns daily closes of a KRX index ("1001" 코스피,
// "2001" 코스닥) over [from, to], ascending
func (c *Client) FetchIndexSeries(ctx context.Context, indexID string, from, to time.Time) ([]contracts.PricePoint, error) {
	if len(indexID) < 2 {
		return nil, fmt.Errorf("invalid index id: %q", indexID)
	}

	var rows []krxIndexRow
	err := c.fetchRows(ctx, "dbms/MDC/STAT/standard/MDCSTAT00301", url.Values{
		"indIdx":  {indexID[:1]},
		"indIdx2": {indexID[1:]},
		"strtDd":  {contracts.FormatDate(from)},
		"endDd":   {contracts.FormatDate(to)},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("fetch index %s: %w", indexID, err)
	}

	points := make([]contracts.PricePoint, 0, len(rows))
	for _, row := range rows {
		date, err := parseTradeDate(row.TRD_DD)
		if err != nil {
			continue
		}
		closePrice, ok := parseKRXFloat(row.CLSPRC_IDX)
		if !ok {
			continue
		}
		points = append(points, contracts.PricePoint{Date: date, Close: closePrice})
	}

	// 포털은 최신일 우선으로 내려줌
	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})

	return points, nil
}

func parseTradeDate(s string) (time.Time, error) {
	s = strings.NewReplacer("/", "", "-", "", ".", "").Replace(strings.TrimSpace(s))
	return time.Parse(contracts.CompactDateLayout, s)
}
