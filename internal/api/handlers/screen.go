package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/krxvalue/internal/contracts"
	"github.com/wonny/krxvalue/pkg/config"
	"github.com/wonny/krxvalue/pkg/logger"
)

// ScreenHandler serves value screening requests
// ⭐ SSOT: 스크리닝 API 핸들러는 이 구조체에서만
type ScreenHandler struct {
	screener contracts.Screener
	defaults config.ScreeningConfig
	now      func() time.Time
	logger   *logger.Logger
}

// NewScreenHandler creates a new screen handler. defaults fill parameters the
// query string leaves out.
func NewScreenHandler(screener contracts.Screener, defaults config.ScreeningConfig, log *logger.Logger) *ScreenHandler {
	return &ScreenHandler{
		screener: screener,
		defaults: defaults,
		now:      time.Now,
		logger:   log,
	}
}

// ScreenResponse is the presentation form of a screening result
type ScreenResponse struct {
	Market        contracts.Market          `json:"market"`
	AsOf          string                    `json:"as_of"`
	Candidates    []contracts.CandidateView `json:"candidates"`
	Stats         contracts.ScreenStats     `json:"stats"`
	ResolutionLog []string                  `json:"resolution_log"`
	CacheHit      bool                      `json:"cache_hit"`
	Archived      bool                      `json:"archived,omitempty"`
	ElapsedMs     int64                     `json:"elapsed_ms"`
}

// Screen runs one screening
// GET /api/screen?market=KOSPI&date=20260213&cap_min=&cap_max=&top_n=&per_max=&pbr_max=&div_policy=
func (h *ScreenHandler) Screen(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req, err := h.parseRequest(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	criteria, err := contracts.NewCriteria(req, h.now())
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	result, err := h.screener.Screen(r.Context(), criteria)
	if err != nil {
		h.logger.WithError(err).WithField("criteria", criteria.Key()).Warn("Screening failed")
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, ScreenResponse{
		Market:        criteria.Market,
		AsOf:          result.AsOf.Format(contracts.ISODateLayout),
		Candidates:    result.Display(),
		Stats:         result.Stats,
		ResolutionLog: result.ResolutionLog,
		CacheHit:      result.CacheHit,
		Archived:      result.Archived,
		ElapsedMs:     time.Since(start).Milliseconds(),
	})
}

// parseRequest reads the query string; only malformed numbers fail here
func (h *ScreenHandler) parseRequest(q url.Values) (contracts.ScreenRequest, error) {
	req := contracts.ScreenRequest{
		Market:    q.Get("market"),
		Date:      q.Get("date"),
		CapMin:    h.defaults.CapMin,
		CapMax:    h.defaults.CapMax,
		TopN:      h.defaults.TopN,
		DivPolicy: h.defaults.DivPolicy,
	}
	if req.Market == "" {
		req.Market = string(contracts.MarketKOSPI)
	}
	if v := q.Get("div_policy"); v != "" {
		req.DivPolicy = v
	}

	var err error
	if req.CapMin, err = int64Param(q, "cap_min", req.CapMin); err != nil {
		return req, err
	}
	if req.CapMax, err = int64Param(q, "cap_max", req.CapMax); err != nil {
		return req, err
	}
	if req.TopN, err = intParam(q, "top_n", req.TopN); err != nil {
		return req, err
	}
	if req.PERMax, err = boundParam(q, "per_max"); err != nil {
		return req, err
	}
	if req.PBRMax, err = boundParam(q, "pbr_max"); err != nil {
		return req, err
	}
	return req, nil
}

func int64Param(q url.Values, key string, def int64) (int64, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errInvalidNumber(key, raw)
	}
	return v, nil
}

func intParam(q url.Values, key string, def int) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errInvalidNumber(key, raw)
	}
	return v, nil
}

// boundParam parses an optional upper bound; empty means unset
func boundParam(q url.Values, key string) (*float64, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, errInvalidNumber(key, raw)
	}
	return &v, nil
}
