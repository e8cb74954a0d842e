package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wonny/krxvalue/internal/contracts"
	"github.com/wonny/krxvalue/pkg/logger"
)

// BacktestRunner runs multi-market backtests
type BacktestRunner interface {
	CompareMarkets(ctx context.Context, cfg contracts.BacktestConfig, markets []contracts.Market) (*contracts.Comparison, error)
}

// BacktestHandler serves monthly rebalance backtests
// ⭐ SSOT: 백테스트 API 핸들러는 이 구조체에서만
type BacktestHandler struct {
	runner BacktestRunner
	logger *logger.Logger
}

// NewBacktestHandler creates a new backtest handler
func NewBacktestHandler(runner BacktestRunner, log *logger.Logger) *BacktestHandler {
	return &BacktestHandler{
		runner: runner,
		logger: log,
	}
}

// BacktestRequest is the POST body of /api/backtest
type BacktestRequest struct {
	contracts.BacktestRequest
	Markets string `json:"markets"` // all, KOSPI, KOSDAQ
}

// Run executes a backtest synchronously and returns the comparison
// POST /api/backtest
func (h *BacktestHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cfg, err := contracts.NewBacktestConfig(req.BacktestRequest)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	markets, err := contracts.ParseMarketScope(req.Markets)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	comparison, err := h.runner.CompareMarkets(r.Context(), cfg, markets)
	if err != nil {
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"start":   req.StartDate,
			"end":     req.EndDate,
			"markets": strings.ToUpper(req.Markets),
		}).Warn("Backtest failed")
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, comparison)
}
