package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/krxvalue/internal/api"
	"github.com/wonny/krxvalue/internal/api/handlers"
)

const shutdownTimeout = 30 * time.Second

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `스크리닝/백테스트 REST API 서버를 시작합니다.

SCHEDULE_ENABLED=true 이면 스크리닝 캐시 워밍 스케줄러도 함께 실행합니다.

Endpoints:
  GET  /health                      - DB/Redis 상태
  GET  /metrics                     - Prometheus metrics (METRICS_ENABLED)
  GET  /api/screen                  - TAT 스크리닝
  POST /api/backtest                - 월말 리밸런싱 백테스트
  GET  /api/stocks/{code}/prices    - 일별 종가
  GET  /api/stocks/{code}/name      - 종목명

Example:
  go run ./cmd/krxvalue api
  go run ./cmd/krxvalue api --port 8080`,
	RunE: serveAPI,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
}

func serveAPI(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cfg, log := a.cfg, a.log
	if apiPort != "" {
		cfg.Port = apiPort
	}

	router := api.NewRouter(api.Handlers{
		Screen:   handlers.NewScreenHandler(a.screener, cfg.Screening, log),
		Backtest: handlers.NewBacktestHandler(a.engine, log),
		Stock:    handlers.NewStockHandler(a.gateway, a.names.Bind(a.gateway), log),
		Checks:   a.checks,
	}, cfg.MetricsEnabled, log)

	if cfg.ScheduleEnabled {
		sched, err := newScheduler(a)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	ctx, stop := interruptContext()
	defer stop()

	server := api.New(cfg, log, router)
	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Start() }()

	log.WithFields(map[string]interface{}{
		"addr":     server.Addr(),
		"env":      cfg.Env,
		"schedule": cfg.ScheduleEnabled,
	}).Info("API server listening")
	PrintSuccess(fmt.Sprintf("http://localhost:%s (Ctrl+C 로 종료)", cfg.Port))
	PrintList([]string{
		"GET  /health",
		"GET  /api/screen?market=KOSPI&date=20260213",
		"POST /api/backtest",
		"GET  /api/stocks/{code}/prices",
		"GET  /api/stocks/{code}/name",
	})

	select {
	case err := <-serveErr:
		// Start only returns early on a listen failure
		return err
	case <-ctx.Done():
	}

	log.Info("Shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("API server stopped")
	return nil
}
