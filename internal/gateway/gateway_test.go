package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/krxvalue/internal/contracts"
	"github.com/wonny/krxvalue/internal/s0_data"
	"github.com/wonny/krxvalue/pkg/config"
	"github.com/wonny/krxvalue/pkg/logger"
)

const siseHeader = "[['날짜', '시가', '고가', '저가', '종가', '거래량', '외국인소진율'],\n"

// siseRows are month-end sessions; the handler serves the requested window
var siseRows = []struct{ date, row string }{
	{"20260130", `["20260130", 100, 105, 99, 101, 12000, 10.5],`},
	{"20260227", `["20260227", 101, 112, 100, 110, 15000, 10.7],`},
	{"20260331", `["20260331", 110, 125, 108, 121, 18000, 10.9],`},
}

var (
	jan30 = time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC)
	feb27 = time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)
	mar31 = time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
)

// upstream fakes both KRX and Naver on one server and counts Naver price hits
type upstream struct {
	server     *httptest.Server
	mu         sync.Mutex
	priceCalls int
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()

	u := &upstream{}
	mux := http.NewServeMux()
	mux.HandleFunc("/comm/bldAttendant/getJsonData.cmd", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.PostForm.Get("bld") {
		case "dbms/MDC/STAT/standard/MDCSTAT01501":
			w.Write([]byte(`{"OutBlock_1":[{"ISU_SRT_CD":"247540","MKTCAP":"612,000,000,000"}]}`))
		case "dbms/MDC/STAT/standard/MDCSTAT03501":
			w.Write([]byte(`{"output":[{"ISU_SRT_CD":"247540","PER":"5.00","PBR":"0.70","DVD_YLD":"1.50"}]}`))
		case "dbms/MDC/STAT/standard/MDCSTAT00301":
			w.Write([]byte(`{"output":[{"TRD_DD":"2026/02/27","CLSPRC_IDX":"2,700.50"},{"TRD_DD":"2026/01/30","CLSPRC_IDX":"2,600.25"}]}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/siseJson.naver", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.priceCalls++
		u.mu.Unlock()

		start, end := r.URL.Query().Get("startTime"), r.URL.Query().Get("endTime")
		var body strings.Builder
		body.WriteString(siseHeader)
		for _, row := range siseRows {
			if row.date >= start && row.date <= end {
				body.WriteString(row.row + "\n")
			}
		}
		body.WriteString("]\n")
		w.Write([]byte(body.String()))
	})
	mux.HandleFunc("/item/main.naver", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<div class="wrap_company"><h2><a href="#">에코프로</a></h2></div>`))
	})

	u.server = httptest.NewServer(mux)
	t.Cleanup(u.server.Close)
	return u
}

func (u *upstream) calls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.priceCalls
}

func (u *upstream) gateway(store PriceStore) *Gateway {
	cfg := &config.Config{
		KRX:     config.KRXConfig{BaseURL: u.server.URL},
		Naver:   config.NaverConfig{BaseURL: u.server.URL, ChartURL: u.server.URL},
		Gateway: config.GatewayConfig{RequestTimeout: 5 * time.Second, RatePerSecond: 100, Burst: 10},
	}
	gw := NewFromConfig(cfg, store, logger.NewNop())
	gw.now = func() time.Time { return time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC) }
	return gw
}

// memoryStore is an in-memory PriceStore
type memoryStore struct {
	mu      sync.Mutex
	rows    map[string][]contracts.PricePoint
	saved   []s0_data.DailyPrice
	readErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: make(map[string][]contracts.PricePoint)}
}

func (m *memoryStore) PriceSeries(ctx context.Context, code string, from, to time.Time) ([]contracts.PricePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	return clipSeries(m.rows[code], from, to), nil
}

func (m *memoryStore) LatestDate(ctx context.Context, code string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return time.Time{}, false, m.readErr
	}
	var latest time.Time
	for _, p := range m.rows[code] {
		if p.Date.After(latest) {
			latest = p.Date
		}
	}
	return latest, !latest.IsZero(), nil
}

// SaveBatch upserts by (code, date) like the Postgres repository
func (m *memoryStore) SaveBatch(ctx context.Context, prices []s0_data.DailyPrice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, prices...)
	for _, p := range prices {
		point := contracts.PricePoint{Date: p.Date, Close: float64(p.Close)}
		rows := m.rows[p.Code]
		replaced := false
		for i := range rows {
			if rows[i].Date.Equal(p.Date) {
				rows[i], replaced = point, true
			}
		}
		if !replaced {
			rows = append(rows, point)
		}
		m.rows[p.Code] = rows
	}
	return nil
}

func TestGateway_Snapshot(t *testing.T) {
	gw := newUpstream(t).gateway(nil)
	ctx := context.Background()

	caps, err := gw.CapitalizationTable(ctx, feb27, contracts.MarketKOSDAQ)
	require.NoError(t, err)
	assert.Equal(t, []contracts.CapEntry{{Ticker: "247540", MarketCap: 612_000_000_000}}, caps)

	table, err := gw.FundamentalTable(ctx, feb27, contracts.MarketKOSDAQ)
	require.NoError(t, err)
	require.Contains(t, table, "247540")
	assert.Equal(t, 5.0, table["247540"].PER)
	require.NotNil(t, table["247540"].DIV)
	assert.Equal(t, 1.5, *table["247540"].DIV)
}

func TestGateway_TickerName(t *testing.T) {
	gw := newUpstream(t).gateway(nil)

	name, err := gw.TickerName(context.Background(), "086520")
	require.NoError(t, err)
	assert.Equal(t, "에코프로", name)
}

func TestGateway_IndexSeriesAscending(t *testing.T) {
	gw := newUpstream(t).gateway(nil)

	series, err := gw.IndexSeries(context.Background(), "2001", jan30, feb27)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, jan30, series[0].Date)
	assert.Equal(t, 2700.50, series[1].Close)
}

func TestGateway_PriceSeriesWithoutStore(t *testing.T) {
	up := newUpstream(t)
	gw := up.gateway(nil)

	series, err := gw.PriceSeries(context.Background(), "247540", jan30, feb27)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, 101.0, series[0].Close)
	assert.Equal(t, 110.0, series[1].Close)
	assert.Equal(t, 1, up.calls())
}

func TestGateway_PriceSeriesWritesThroughStore(t *testing.T) {
	up := newUpstream(t)
	store := newMemoryStore()
	gw := up.gateway(store)
	ctx := context.Background()

	first, err := gw.PriceSeries(ctx, "247540", jan30, feb27)
	require.NoError(t, err)
	require.Len(t, store.saved, 2)
	assert.Equal(t, "247540", store.saved[0].Code)
	assert.Equal(t, int64(105), store.saved[0].High)

	// Second read is served from the store
	second, err := gw.PriceSeries(ctx, "247540", jan30, feb27)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, up.calls())
}

// Consecutive backtest periods share their boundary session, so the second
// window starts where the stored rows end.
func TestGateway_PriceSeriesRefetchesPartialStore(t *testing.T) {
	up := newUpstream(t)
	store := newMemoryStore()
	gw := up.gateway(store)
	ctx := context.Background()

	first, err := gw.PriceSeries(ctx, "247540", jan30, feb27)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := gw.PriceSeries(ctx, "247540", feb27, mar31)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, feb27, second[0].Date)
	assert.Equal(t, mar31, second[1].Date)
	assert.InDelta(t, 0.1, second[1].Close/second[0].Close-1, 1e-9)
	assert.Equal(t, 2, up.calls())

	// Now fully stored
	again, err := gw.PriceSeries(ctx, "247540", feb27, mar31)
	require.NoError(t, err)
	assert.Equal(t, second, again)
	assert.Equal(t, 2, up.calls())
}

func TestGateway_PriceSeriesStoreMissingStart(t *testing.T) {
	up := newUpstream(t)
	store := newMemoryStore()
	require.NoError(t, store.SaveBatch(context.Background(), []s0_data.DailyPrice{
		{Code: "247540", Date: feb27, Close: 110},
		{Code: "247540", Date: mar31, Close: 121},
	}))
	gw := up.gateway(store)

	series, err := gw.PriceSeries(context.Background(), "247540", jan30, mar31)
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, jan30, series[0].Date)
	assert.Equal(t, 1, up.calls())
}

func TestSessionBounds(t *testing.T) {
	sat := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	sun := sat.AddDate(0, 0, 1)
	mon := sat.AddDate(0, 0, 2)

	assert.Equal(t, mon, weekdayOnOrAfter(sat))
	assert.Equal(t, mon, weekdayOnOrAfter(sun))
	assert.Equal(t, feb27, weekdayOnOrBefore(sun))
	assert.Equal(t, feb27, weekdayOnOrBefore(feb27))
}

func TestGateway_PriceSeriesStoreFailureFallsBack(t *testing.T) {
	up := newUpstream(t)
	store := newMemoryStore()
	store.readErr = errors.New("connection refused")
	gw := up.gateway(store)

	series, err := gw.PriceSeries(context.Background(), "247540", jan30, feb27)
	require.NoError(t, err)
	assert.Len(t, series, 2)
	assert.Equal(t, 1, up.calls())
}

func TestClipSeries(t *testing.T) {
	points := []contracts.PricePoint{
		{Date: feb27, Close: 3},
		{Date: jan30.AddDate(0, 0, -1), Close: 1},
		{Date: jan30, Close: 2},
	}

	got := clipSeries(points, jan30, feb27)
	require.Len(t, got, 2)
	assert.Equal(t, 2.0, got[0].Close)
	assert.Equal(t, 3.0, got[1].Close)
}
