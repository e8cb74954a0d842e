package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/krxvalue/internal/api/handlers"
	"github.com/wonny/krxvalue/internal/metrics"
	"github.com/wonny/krxvalue/pkg/logger"
)

// HealthCheck probes one optional dependency (database, redis)
type HealthCheck func(ctx context.Context) error

// Handlers groups the endpoint handlers mounted by NewRouter
type Handlers struct {
	Screen   *handlers.ScreenHandler
	Backtest *handlers.BacktestHandler
	Stock    *handlers.StockHandler

	// Checks are reported by /health by name; a failing check degrades the status
	Checks map[string]HealthCheck
}

// NewRouter mounts health, metrics and the /api routes
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, metricsEnabled bool, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(h.Checks)).Methods("GET")

	if metricsEnabled {
		r.Handle("/metrics", metrics.Handler()).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Screening
	api.HandleFunc("/screen", h.Screen.Screen).Methods("GET")

	// Backtest
	api.HandleFunc("/backtest", h.Backtest.Run).Methods("POST")

	// Stocks
	api.HandleFunc("/stocks/{code:[0-9A-Z]{6}}/prices", h.Stock.GetDailyPrices).Methods("GET")
	api.HandleFunc("/stocks/{code:[0-9A-Z]{6}}/name", h.Stock.GetName).Methods("GET")

	r.Use(loggingMiddleware(log), recoveryMiddleware(log))

	return r
}

const healthCheckTimeout = 2 * time.Second

// healthCheckHandler reports "ok", or "degraded" with 503 when any check fails
func healthCheckHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		status, code := "ok", http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status, code = "degraded", http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		writeJSON(w, code, map[string]interface{}{
			"status":  status,
			"service": "krxvalue-api",
			"checks":  results,
		})
	}
}
