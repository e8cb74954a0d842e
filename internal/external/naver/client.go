package naver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/wonny/krxvalue/pkg/httputil"
	"github.com/wonny/krxvalue/pkg/logger"
)

// Default endpoints
const (
	DefaultBaseURL  = "https://finance.naver.com"
	DefaultChartURL = "https://fchart.stock.naver.com"
)

// Client handles communication with Naver Finance
// ⭐ SSOT: Naver Finance API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	chartURL   string
}

// NewClient creates a new Naver Finance client. Empty URLs select the defaults.
func NewClient(httpClient *httputil.Client, baseURL, chartURL string, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if chartURL == "" {
		chartURL = DefaultChartURL
	}

	return &Client{
		httpClient: httpClient,
		logger:     log.Component("naver"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		chartURL:   strings.TrimRight(chartURL, "/"),
	}
}

// fetchHTML fetches a finance.naver.com page decoded to UTF-8 (pages are EUC-KR)
func (c *Client) fetchHTML(ctx context.Context, path string, params url.Values) (string, error) {
	fullURL := fmt.Sprintf("%s%s", c.baseURL, path)
	if len(params) > 0 {
		fullURL = fmt.Sprintf("%s?%s", fullURL, params.Encode())
	}

	resp, err := c.httpClient.Get(ctx, fullURL, map[string]string{"Referer": c.baseURL + "/"})
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("failed to detect charset: %w", err)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	return string(body), nil
}

// PriceData represents daily price data
type PriceData struct {
	StockCode  string
	TradeDate  time.Time
	OpenPrice  int64
	HighPrice  int64
	LowPrice   int64
	ClosePrice int64
	Volume     int64
}
