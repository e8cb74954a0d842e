package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/krxvalue/internal/contracts"
)

// siseJson answers a JS array literal: a header row then
// [date, open, high, low, close, volume, (외국인소진율)] rows.
const siseColumns = 6

var (
	siseRowRe     = regexp.MustCompile(`\["(\d{8})",\s*(\d+),\s*(\d+),\s*(\d+),\s*(\d+),\s*(\d+)`)
	trailingComma = regexp.MustCompile(`,\s*]`)
)

// FetchPrices fetches daily OHLCV rows for a stock over [from, to]
// ⭐ SSOT: Naver Finance 가격 API 호출은 이 함수에서만
func (c *Client) FetchPrices(ctx context.Context, stockCode string, from, to time.Time) ([]PriceData, error) {
	query := url.Values{}
	query.Set("symbol", stockCode)
	query.Set("requestType", "1")
	query.Set("startTime", contracts.FormatDate(from))
	query.Set("endTime", contracts.FormatDate(to))
	query.Set("timeframe", "day")

	resp, err := c.httpClient.Get(ctx, c.chartURL+"/siseJson.naver?"+query.Encode(),
		map[string]string{"Referer": c.baseURL + "/"})
	if err != nil {
		return nil, fmt.Errorf("siseJson %s: %w", stockCode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("siseJson %s: unexpected status code: %d", stockCode, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("siseJson %s: read body: %w", stockCode, err)
	}

	prices := decodeSise(body)
	for i := range prices {
		prices[i].StockCode = stockCode
	}

	c.logger.WithFields(map[string]interface{}{
		"stock_code": stockCode,
		"from":       contracts.FormatDate(from),
		"to":         contracts.FormatDate(to),
		"rows":       len(prices),
	}).Debug("Fetched prices")
	return prices, nil
}

// FetchClosingPrices is FetchPrices reduced to closes
func (c *Client) FetchClosingPrices(ctx context.Context, stockCode string, from, to time.Time) ([]contracts.PricePoint, error) {
	prices, err := c.FetchPrices(ctx, stockCode, from, to)
	if err != nil {
		return nil, err
	}

	points := make([]contracts.PricePoint, len(prices))
	for i, p := range prices {
		points[i] = contracts.PricePoint{Date: p.TradeDate, Close: float64(p.ClosePrice)}
	}
	return points, nil
}

// decodeSise turns a siseJson body into price rows. The body is normalized
// into JSON first; when that still fails the rows are scraped by regexp.
// Unparseable rows, including the header, are skipped.
func decodeSise(body []byte) []PriceData {
	text := strings.TrimSpace(string(body))
	text = strings.ReplaceAll(text, "'", `"`)
	text = trailingComma.ReplaceAllString(text, "]")

	var rows [][]string
	var table [][]interface{}
	if err := json.Unmarshal([]byte(text), &table); err == nil {
		for _, row := range table {
			fields := make([]string, len(row))
			for i, cell := range row {
				fields[i] = cellText(cell)
			}
			rows = append(rows, fields)
		}
	} else {
		for _, m := range siseRowRe.FindAllStringSubmatch(text, -1) {
			rows = append(rows, m[1:])
		}
	}

	var prices []PriceData
	for _, fields := range rows {
		if p, ok := priceFromFields(fields); ok {
			prices = append(prices, p)
		}
	}
	return prices
}

// priceFromFields reads [date, open, high, low, close, volume, ...]
func priceFromFields(fields []string) (PriceData, bool) {
	if len(fields) < siseColumns {
		return PriceData{}, false
	}

	date, err := time.Parse(contracts.CompactDateLayout, strings.TrimSpace(fields[0]))
	if err != nil {
		return PriceData{}, false
	}

	return PriceData{
		TradeDate:  date,
		OpenPrice:  parseCell(fields[1]),
		HighPrice:  parseCell(fields[2]),
		LowPrice:   parseCell(fields[3]),
		ClosePrice: parseCell(fields[4]),
		Volume:     parseCell(fields[5]),
	}, true
}

// cellText renders a decoded JSON cell as text
func cellText(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

// parseCell truncates a numeric cell to an integer; junk reads as 0
func parseCell(s string) int64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return int64(f)
}
