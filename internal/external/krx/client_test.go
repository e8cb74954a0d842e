package krx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/krxvalue/internal/contracts"
	"github.com/wonny/krxvalue/pkg/config"
	"github.com/wonny/krxvalue/pkg/httputil"
	"github.com/wonny/krxvalue/pkg/logger"
)

var tradeDate = time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC)

// newTestClient serves body for every bld and records the posted form
func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *Client {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(server.Close)

	cfg := &config.Config{Gateway: config.GatewayConfig{RequestTimeout: 5 * time.Second}}
	httpClient := httputil.New(cfg, logger.NewNop()).DisableRetry()
	return NewClient(httpClient, server.URL, logger.NewNop())
}

func TestParseKRXNumber(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"612,345,678,901", 612345678901},
		{" 1,000 ", 1000},
		{"-", 0},
		{"", 0},
		{"abc", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseKRXNumber(tt.input); got != tt.want {
				t.Errorf("parseKRXNumber(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseKRXFloat(t *testing.T) {
	v, ok := parseKRXFloat("2,650.31")
	assert.True(t, ok)
	assert.Equal(t, 2650.31, v)

	_, ok = parseKRXFloat("-")
	assert.False(t, ok)
	_, ok = parseKRXFloat("")
	assert.False(t, ok)
}

func TestFetchMarketCaps(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, jsonDataPath, r.URL.Path)
		assert.Equal(t, "dbms/MDC/STAT/standard/MDCSTAT01501", r.PostForm.Get("bld"))
		assert.Equal(t, "KSQ", r.PostForm.Get("mktId"))
		assert.Equal(t, "20260213", r.PostForm.Get("trdDd"))
		assert.NotEmpty(t, r.Header.Get("Referer"))

		w.Write([]byte(`{"OutBlock_1":[
			{"ISU_SRT_CD":"247540","ISU_ABBRV":"에코프로비엠","MKTCAP":"12,345,678,000,000","LIST_SHRS":"97,801,344","TDD_CLSPRC":"126,200"},
			{"ISU_SRT_CD":"086520","ISU_ABBRV":"에코프로","MKTCAP":"612,000,000,000","LIST_SHRS":"1","TDD_CLSPRC":"1"},
			{"ISU_SRT_CD":"","MKTCAP":"1"},
			{"ISU_SRT_CD":"000000","MKTCAP":"-"}
		]}`))
	})

	caps, err := client.FetchMarketCaps(context.Background(), tradeDate, contracts.MarketKOSDAQ)
	require.NoError(t, err)
	assert.Equal(t, []contracts.CapEntry{
		{Ticker: "247540", MarketCap: 12_345_678_000_000},
		{Ticker: "086520", MarketCap: 612_000_000_000},
	}, caps)
}

func TestFetchMarketCaps_HolidayIsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"OutBlock_1":[]}`))
	})

	caps, err := client.FetchMarketCaps(context.Background(), tradeDate, contracts.MarketKOSPI)
	require.NoError(t, err)
	assert.Empty(t, caps)
}

func TestFetchMarketCaps_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("LOGOUT"))
	})

	_, err := client.FetchMarketCaps(context.Background(), tradeDate, contracts.MarketKOSPI)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestFetchFundamentals(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "dbms/MDC/STAT/standard/MDCSTAT03501", r.PostForm.Get("bld"))
		assert.Equal(t, "STK", r.PostForm.Get("mktId"))

		w.Write([]byte(`{"output":[
			{"ISU_SRT_CD":"005930","PER":"12.34","PBR":"1.10","DVD_YLD":"2.15"},
			{"ISU_SRT_CD":"000660","PER":"-","PBR":"1.50","DVD_YLD":"-"}
		]}`))
	})

	table, err := client.FetchFundamentals(context.Background(), tradeDate, contracts.MarketKOSPI)
	require.NoError(t, err)
	require.Len(t, table, 2)

	samsung := table["005930"]
	assert.Equal(t, 12.34, samsung.PER)
	assert.Equal(t, 1.10, samsung.PBR)
	require.NotNil(t, samsung.DIV)
	assert.Equal(t, 2.15, *samsung.DIV)

	hynix := table["000660"]
	assert.Equal(t, 0.0, hynix.PER)
	assert.Nil(t, hynix.DIV)
}

func TestFetchIndexSeries(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "dbms/MDC/STAT/standard/MDCSTAT00301", r.PostForm.Get("bld"))
		assert.Equal(t, "1", r.PostForm.Get("indIdx"))
		assert.Equal(t, "001", r.PostForm.Get("indIdx2"))
		assert.Equal(t, "20260130", r.PostForm.Get("strtDd"))
		assert.Equal(t, "20260227", r.PostForm.Get("endDd"))

		w.Write([]byte(`{"output":[
			{"TRD_DD":"2026/02/27","CLSPRC_IDX":"2,700.50"},
			{"TRD_DD":"2026/02/13","CLSPRC_IDX":"2,650.00"},
			{"TRD_DD":"2026/01/30","CLSPRC_IDX":"2,600.25"}
		]}`))
	})

	from := time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)
	series, err := client.FetchIndexSeries(context.Background(), "1001", from, to)
	require.NoError(t, err)

	require.Len(t, series, 3)
	assert.Equal(t, from, series[0].Date)
	assert.Equal(t, 2600.25, series[0].Close)
	assert.Equal(t, to, series[2].Date)
	assert.Equal(t, 2700.50, series[2].Close)
}
