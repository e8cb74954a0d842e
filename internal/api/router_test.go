package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/krxvalue/internal/api/handlers"
	"github.com/wonny/krxvalue/internal/backtest"
	"github.com/wonny/krxvalue/internal/contracts"
	"github.com/wonny/krxvalue/internal/gateway"
	"github.com/wonny/krxvalue/internal/querycache"
	"github.com/wonny/krxvalue/internal/selection"
	"github.com/wonny/krxvalue/internal/snapshot"
	"github.com/wonny/krxvalue/pkg/config"
	"github.com/wonny/krxvalue/pkg/logger"
)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func seed(fake *gateway.FakeGateway) {
	caps := []contracts.CapEntry{
		{Ticker: "000001", MarketCap: 600_000_000_000},
		{Ticker: "000002", MarketCap: 700_000_000_000},
		{Ticker: "000003", MarketCap: 800_000_000_000},
	}
	div := func(v float64) *float64 { return &v }
	fundamentals := map[string]contracts.Fundamental{
		"000001": {PER: 5, PBR: 0.5, DIV: div(3)},
		"000002": {PER: 8, PBR: 0.8, DIV: div(2)},
		"000003": {PER: 10, PBR: 1},
	}
	fake.SetSnapshot(contracts.MarketKOSPI, d(2026, 1, 30), caps, fundamentals)
	fake.SetSnapshot(contracts.MarketKOSPI, d(2026, 2, 27), caps, fundamentals)
	fake.SetName("000001", "일번")
	fake.SetName("000002", "이번")
	fake.SetName("000003", "삼번")

	for ticker, closes := range map[string][]float64{
		"000001": {100, 110, 121},
		"000002": {200, 190, 209},
		"000003": {50, 50, 50},
	} {
		fake.SetPrices(ticker, []contracts.PricePoint{
			{Date: d(2026, 1, 30), Close: closes[0]},
			{Date: d(2026, 2, 27), Close: closes[1]},
			{Date: d(2026, 3, 31), Close: closes[2]},
		})
	}
	fake.SetIndex("1001", []contracts.PricePoint{
		{Date: d(2026, 1, 30), Close: 1000},
		{Date: d(2026, 2, 27), Close: 1010},
		{Date: d(2026, 3, 31), Close: 1111},
	})
}

func newTestRouter(t *testing.T, fake *gateway.FakeGateway, metricsEnabled bool) http.Handler {
	t.Helper()

	log := logger.NewNop()
	names := selection.NewNameCache()
	resolver := snapshot.NewResolver(fake, snapshot.Config{MaxBacktrackDays: 14}, log)
	cache := querycache.New(selection.NewService(resolver, fake, names, log), nil, log)

	defaults := config.ScreeningConfig{
		CapMin:    500_000_000_000,
		CapMax:    1_000_000_000_000,
		TopN:      10,
		DivPolicy: "zero",
	}

	return NewRouter(Handlers{
		Screen:   handlers.NewScreenHandler(cache, defaults, log),
		Backtest: handlers.NewBacktestHandler(backtest.NewEngine(cache, fake, log), log),
		Stock:    handlers.NewStockHandler(fake, names.Bind(fake), log),
	}, metricsEnabled, log)
}

func do(t *testing.T, router http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var payload map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	}
	return rec, payload
}

func TestHealth(t *testing.T) {
	rec, body := do(t, newTestRouter(t, gateway.NewFakeGateway(), false), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestHealth_Checks(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		wantCode   int
		wantStatus string
	}{
		{
			name:       "all healthy",
			checks:     map[string]HealthCheck{"database": func(context.Context) error { return nil }},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name: "redis down",
			checks: map[string]HealthCheck{
				"database": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return errors.New("connection refused") },
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			healthCheckHandler(tt.checks)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantStatus, body["status"])
			assert.Len(t, body["checks"], len(tt.checks))
		})
	}
}

func TestScreen(t *testing.T) {
	fake := gateway.NewFakeGateway()
	seed(fake)
	router := newTestRouter(t, fake, false)

	// 2026-01-31 is a Saturday
	rec, body := do(t, router, http.MethodGet, "/api/screen?market=kospi&date=20260131&top_n=2", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "KOSPI", body["market"])
	assert.Equal(t, "2026-01-30", body["as_of"])
	assert.Equal(t, false, body["cache_hit"])

	candidates := body["candidates"].([]interface{})
	require.Len(t, candidates, 2)
	first := candidates[0].(map[string]interface{})
	assert.Equal(t, "000001", first["ticker"])
	assert.Equal(t, "일번", first["name"])
	assert.Equal(t, 0.6, first["market_cap_trillion"])
	assert.Equal(t, 2.23, first["total_score"])

	stats := body["stats"].(map[string]interface{})
	assert.Equal(t, 3.0, stats["total"])
	assert.Equal(t, 3.0, stats["filtered"])
	assert.Equal(t, 2.0, stats["final"])

	// Same criteria in another spelling is a cache hit
	calls := fake.TotalCalls()
	rec, body = do(t, router, http.MethodGet, "/api/screen?market=KOSPI&date=2026-01-31&top_n=2&div_policy=zero", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["cache_hit"])
	assert.Equal(t, calls, fake.TotalCalls())
}

func TestScreen_Errors(t *testing.T) {
	fake := gateway.NewFakeGateway()
	seed(fake)
	router := newTestRouter(t, fake, false)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"unknown market", "/api/screen?market=NASDAQ&date=20260130", http.StatusBadRequest},
		{"malformed top_n", "/api/screen?date=20260130&top_n=ten", http.StatusBadRequest},
		{"top_n out of range", "/api/screen?date=20260130&top_n=101", http.StatusBadRequest},
		{"cap range reversed", "/api/screen?date=20260130&cap_min=2&cap_max=1", http.StatusBadRequest},
		{"non-positive bound", "/api/screen?date=20260130&per_max=0", http.StatusBadRequest},
		{"bad date", "/api/screen?date=2026-13-45", http.StatusBadRequest},
		{"no data", "/api/screen?market=KOSDAQ&date=20260130", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, router, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestScreen_GatewayFailure(t *testing.T) {
	fake := gateway.NewFakeGateway()
	seed(fake)
	router := newTestRouter(t, fake, false)

	// every probe fails -> window exhausted -> 404, not a 5xx
	for i := 0; i <= 14; i++ {
		fake.FailSnapshot(contracts.MarketKOSPI, d(2025, 6, 30).AddDate(0, 0, -i), errors.New("timeout"))
	}
	rec, _ := do(t, router, http.MethodGet, "/api/screen?date=20250630", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBacktest(t *testing.T) {
	fake := gateway.NewFakeGateway()
	seed(fake)
	router := newTestRouter(t, fake, false)

	rec, body := do(t, router, http.MethodPost, "/api/backtest", `{
		"start_date": "2026-01-01",
		"end_date": "2026-03-31",
		"top_n": 10,
		"cap_min": 500000000000,
		"cap_max": 1000000000000,
		"markets": "KOSPI"
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.NotEmpty(t, body["run_id"])
	summaries := body["summaries"].([]interface{})
	require.Len(t, summaries, 1)
	summary := summaries[0].(map[string]interface{})
	assert.Equal(t, "KOSPI", summary["market"])
	assert.Equal(t, 2.0, summary["periods"])

	periods := body["periods"].(map[string]interface{})["KOSPI"].([]interface{})
	require.Len(t, periods, 2)
}

func TestBacktest_Errors(t *testing.T) {
	fake := gateway.NewFakeGateway()
	seed(fake)
	router := newTestRouter(t, fake, false)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{`, http.StatusBadRequest},
		{"missing dates", `{"top_n": 10, "cap_max": 1}`, http.StatusBadRequest},
		{"reversed range", `{"start_date": "20260331", "end_date": "20260101", "top_n": 10, "cap_max": 1}`, http.StatusBadRequest},
		{"unknown market", `{"start_date": "20260101", "end_date": "20260331", "top_n": 10, "cap_max": 1, "markets": "NYSE"}`, http.StatusBadRequest},
		{"no data", `{"start_date": "20260101", "end_date": "20260331", "top_n": 10, "cap_max": 1000000000000, "markets": "KOSDAQ"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := do(t, router, http.MethodPost, "/api/backtest", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestStockEndpoints(t *testing.T) {
	fake := gateway.NewFakeGateway()
	seed(fake)
	router := newTestRouter(t, fake, false)

	rec, body := do(t, router, http.MethodGet, "/api/stocks/000001/prices?from=20260101&to=20260228", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].([]interface{})
	require.Len(t, data, 2)
	assert.Equal(t, "2026-01-30", data[0].(map[string]interface{})["date"])

	rec, body = do(t, router, http.MethodGet, "/api/stocks/000002/name", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "이번", body["name"])

	rec, _ = do(t, router, http.MethodGet, "/api/stocks/999999/name", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec, _ = do(t, router, http.MethodGet, "/api/stocks/000001/prices?from=20260301&to=20260101", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec, _ := do(t, newTestRouter(t, gateway.NewFakeGateway(), true), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, newTestRouter(t, gateway.NewFakeGateway(), false), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	handler := recoveryMiddleware(logger.NewNop())(panicking)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}
