package krx

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/wonny/krxvalue/internal/contracts"
)

// krxFundamentalRow represents a row in the MDCSTAT03501 response
type krxFundamentalRow struct {
	ISU_SRT_CD string `json:"ISU_SRT_CD"`
	PER        string `json:"PER"`
	PBR        string `json:"PBR"`
	DVD_YLD    string `json:"DVD_YLD"` // 배당수익률 (%)
}

// FetchFundamentals returns PER/PBR/dividend yield per ticker.
// Missing PER/PBR become 0 (dropped by the >0 filter); a missing
// dividend yield stays nil.
func (c *Client) FetchFundamentals(ctx context.Context, date time.Time, market contracts.Market) (map[string]contracts.Fundamental, error) {
	mktID := market.KRXCode()
	if mktID == "" {
		return nil, fmt.Errorf("unsupported market: %s", market)
	}
	trdDd := contracts.FormatDate(date)

	var rows []krxFundamentalRow
	err := c.fetchRows(ctx, "dbms/MDC/STAT/standard/MDCSTAT03501", url.Values{
		"searchType": {"1"},
		"mktId":      {mktID},
		"trdDd":      {trdDd},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("fetch %s fundamentals for %s: %w", market, trdDd, err)
	}

	result := make(map[string]contracts.Fundamental, len(rows))
	for _, row := range rows {
		if row.ISU_SRT_CD == "" {
			continue
		}

		per, _ := parseKRXFloat(row.PER)
		pbr, _ := parseKRXFloat(row.PBR)
		f := contracts.Fundamental{PER: per, PBR: pbr}
		if div, ok := parseKRXFloat(row.DVD_YLD); ok {
			f.DIV = &div
		}
		result[row.ISU_SRT_CD] = f
	}

	c.logger.WithFields(map[string]interface{}{
		"market":     market,
		"trade_date": trdDd,
		"count":      len(result),
	}).Debug("Fetched fundamentals from KRX")

	return result, nil
}
