package krx

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/wonny/krxvalue/internal/contracts"
)

// krxMarketCapRow represents a row in the MDCSTAT01501 response
type krxMarketCapRow struct {
	ISU_SRT_CD string `json:"ISU_SRT_CD"` // 종목코드 (단축)
	ISU_ABBRV  string `json:"ISU_ABBRV"`  // 종목명
	TDD_CLSPRC string `json:"TDD_CLSPRC"` // 종가
	MKTCAP     string `json:"MKTCAP"`     // 시가총액
	LIST_SHRS  string `json:"LIST_SHRS"`  // 상장주식수
}

// FetchMarketCaps returns the capitalization table of one market on one
// date, in portal order. Holidays return an empty table.
// ⭐ SSOT: KRX 시가총액 조회는 이 함수에서만
func (c *Client) FetchMarketCaps(ctx context.Context, date time.Time, market contracts.Market) ([]contracts.CapEntry, error) {
	mktID := market.KRXCode()
	if mktID == "" {
		return nil, fmt.Errorf("unsupported market: %s", market)
	}
	trdDd := contracts.FormatDate(date)

	var rows []krxMarketCapRow
	err := c.fetchRows(ctx, "dbms/MDC/STAT/standard/MDCSTAT01501", url.Values{
		"mktId": {mktID},
		"trdDd": {trdDd},
		"share": {"1"},
		"money": {"1"},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("fetch %s market caps for %s: %w", market, trdDd, err)
	}

	result := make([]contracts.CapEntry, 0, len(rows))
	for _, row := range rows {
		marketCap := parseKRXNumber(row.MKTCAP)
		if row.ISU_SRT_CD == "" || marketCap == 0 {
			continue
		}
		result = append(result, contracts.CapEntry{
			Ticker:    row.ISU_SRT_CD,
			MarketCap: marketCap,
		})
	}

	c.logger.WithFields(map[string]interface{}{
		"market":     market,
		"trade_date": trdDd,
		"count":      len(result),
	}).Debug("Fetched market caps from KRX")

	return result, nil
}
