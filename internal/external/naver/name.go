package naver

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FetchStockName resolves a ticker to its display name from the item page
// ⭐ SSOT: 종목명 조회는 이 함수에서만
func (c *Client) FetchStockName(ctx context.Context, stockCode string) (string, error) {
	html, err := c.fetchHTML(ctx, "/item/main.naver", url.Values{"code": {stockCode}})
	if err != nil {
		return "", fmt.Errorf("fetch item page %s: %w", stockCode, err)
	}

	name, err := parseStockName(html)
	if err != nil {
		return "", fmt.Errorf("parse item page %s: %w", stockCode, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"stock_code": stockCode,
		"name":       name,
	}).Debug("Fetched stock name")
	return name, nil
}

// parseStockName extracts the company name (div.wrap_company h2 a)
func parseStockName(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}

	name := strings.TrimSpace(doc.Find("div.wrap_company h2 a").First().Text())
	if name == "" {
		name = strings.TrimSpace(doc.Find("div.wrap_company h2").First().Text())
	}
	if name == "" {
		return "", fmt.Errorf("company name not found")
	}
	return name, nil
}
