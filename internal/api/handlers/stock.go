package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/krxvalue/internal/contracts"
	"github.com/wonny/krxvalue/pkg/logger"
)

// StockHandler serves per-ticker lookups
// ⭐ SSOT: 종목 데이터 API 핸들러는 이 구조체에서만
type StockHandler struct {
	prices contracts.PriceSource
	names  contracts.NameResolver
	now    func() time.Time
	logger *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(prices contracts.PriceSource, names contracts.NameResolver, log *logger.Logger) *StockHandler {
	return &StockHandler{
		prices: prices,
		names:  names,
		now:    time.Now,
		logger: log,
	}
}

// DailyPriceResponse represents a daily close for API response
type DailyPriceResponse struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// GetDailyPrices returns the daily closes of a stock
// GET /api/stocks/{code}/prices?from=20260101&to=20260131 or ?days=365
func (h *StockHandler) GetDailyPrices(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	q := r.URL.Query()

	// Parse days parameter (default: 365)
	days := 365
	if daysStr := q.Get("days"); daysStr != "" {
		if d, err := strconv.Atoi(daysStr); err == nil && d > 0 {
			days = d
		}
	}

	now := h.now()
	to, err := contracts.ParseDate(q.Get("to"), now)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	from := to.AddDate(0, 0, -days)
	if raw := q.Get("from"); raw != "" {
		if from, err = contracts.ParseDate(raw, now); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if from.After(to) {
		respondError(w, http.StatusBadRequest, "from must not be after to")
		return
	}

	series, err := h.prices.PriceSeries(r.Context(), code, from, to)
	if err != nil {
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"code": code,
			"from": contracts.FormatDate(from),
			"to":   contracts.FormatDate(to),
		}).Error("Failed to get daily prices")
		respondError(w, http.StatusBadGateway, "Failed to retrieve daily prices")
		return
	}

	result := make([]DailyPriceResponse, len(series))
	for i, p := range series {
		result[i] = DailyPriceResponse{
			Date:  p.Date.Format(contracts.ISODateLayout),
			Close: p.Close,
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"code":    code,
		"data":    result,
	})
}

// GetName returns the display name of a stock
// GET /api/stocks/{code}/name
func (h *StockHandler) GetName(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	name, err := h.names.TickerName(r.Context(), code)
	if err != nil {
		h.logger.WithError(err).WithField("code", code).Warn("Failed to resolve stock name")
		respondError(w, http.StatusBadGateway, "Failed to resolve stock name")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"code": code,
		"name": name,
	})
}
