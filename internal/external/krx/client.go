package krx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/wonny/krxvalue/pkg/httputil"
	"github.com/wonny/krxvalue/pkg/logger"
)

// DefaultBaseURL is the KRX market data portal
const DefaultBaseURL = "http://data.krx.co.kr"

const jsonDataPath = "/comm/bldAttendant/getJsonData.cmd"

// Client talks to the KRX data portal (getJsonData.cmd)
// ⭐ SSOT: KRX 시장 데이터 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new KRX client. An empty baseURL selects DefaultBaseURL.
func NewClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		httpClient: httpClient,
		logger:     log.Component("krx"),
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// krxResponse covers both envelopes the portal uses
type krxResponse struct {
	OutBlock1 json.RawMessage `json:"OutBlock_1"`
	Output    json.RawMessage `json:"output"`
}

func (r krxResponse) rows() json.RawMessage {
	if len(r.OutBlock1) > 0 {
		return r.OutBlock1
	}
	return r.Output
}

// fetchRows posts one bld query and decodes its row block into dest
func (c *Client) fetchRows(ctx context.Context, bld string, params url.Values, dest interface{}) error {
	form := url.Values{
		"bld":         {bld},
		"locale":      {"ko_KR"},
		"csvxls_isNo": {"false"},
	}
	for k, v := range params {
		form[k] = v
	}

	// KRX blocks requests without browser-like headers
	headers := map[string]string{
		"Accept":          "application/json, text/javascript, */*; q=0.01",
		"Accept-Language": "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7",
		"Origin":          c.baseURL,
		"Referer":         c.baseURL + "/contents/MDC/MDI/mdiLoader/index.cmd?menuId=MDC0201020101",
	}

	resp, err := c.httpClient.PostForm(ctx, c.baseURL+jsonDataPath, form, headers)
	if err != nil {
		return fmt.Errorf("KRX API request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("KRX API returned status %d: %s", resp.StatusCode, string(body[:min(200, len(body))]))
	}

	var envelope krxResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		preview := string(body)
		if len(preview) > 500 {
			preview = preview[:500]
		}
		c.logger.WithField("response_preview", preview).Error("Failed to parse KRX response")
		return fmt.Errorf("decode KRX response: %w", err)
	}

	rows := envelope.rows()
	if len(rows) == 0 || string(rows) == "null" {
		return nil
	}

	if err := json.Unmarshal(rows, dest); err != nil {
		return fmt.Errorf("decode KRX rows: %w", err)
	}
	return nil
}
