package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wonny/krxvalue/internal/api"
	"github.com/wonny/krxvalue/internal/backtest"
	"github.com/wonny/krxvalue/internal/contracts"
	"github.com/wonny/krxvalue/internal/gateway"
	"github.com/wonny/krxvalue/internal/metrics"
	"github.com/wonny/krxvalue/internal/querycache"
	"github.com/wonny/krxvalue/internal/s0_data"
	"github.com/wonny/krxvalue/internal/selection"
	"github.com/wonny/krxvalue/internal/snapshot"
	"github.com/wonny/krxvalue/pkg/config"
	"github.com/wonny/krxvalue/pkg/database"
	"github.com/wonny/krxvalue/pkg/logger"
	"github.com/wonny/krxvalue/pkg/redis"
)

// app holds the wired components shared by every command
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	gateway *gateway.Gateway
	names   *selection.NameCache
	cache   *querycache.Cache
	// screener is cache plus the archive fallback; the warm job and backtests use cache directly
	screener contracts.Screener
	engine   *backtest.Engine
	archive  *selection.Repository // nil without a database
	checks   map[string]api.HealthCheck

	closers []func()
}

// newApp wires gateway -> resolver -> screener -> query cache -> backtest.
// Postgres and Redis are optional; failures to reach them are logged and skipped.
func newApp(cfg *config.Config, log *logger.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log, checks: make(map[string]api.HealthCheck)}

	// 1. Optional Postgres price store + result archive
	var store gateway.PriceStore
	db, err := database.New(cfg)
	switch {
	case errors.Is(err, database.ErrNotConfigured):
		log.Debug("DATABASE_URL not set, prices come from Naver only")
	case err != nil:
		log.WithError(err).Warn("Database unavailable, continuing without price store")
	default:
		a.closers = append(a.closers, db.Close)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		priceRepo := s0_data.NewPriceRepository(db.Pool)
		archive := selection.NewRepository(db.Pool)
		if err := priceRepo.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
		if err := archive.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
		store = priceRepo
		a.archive = archive
		a.checks["database"] = db.Ping
	}

	// 2. Result store: memory, plus Redis when enabled
	memory := querycache.NewMemoryStore(querycache.MemoryOptions{
		MaxEntries: cfg.Cache.MaxEntries,
		TTL:        cfg.Cache.TTL,
	})
	var resultStore querycache.Store = memory
	rdb, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, using in-process cache only")
	} else if rdb.Enabled() {
		a.closers = append(a.closers, func() { rdb.Close() })
		a.checks["redis"] = rdb.Ping
		shared := querycache.NewRedisStore(redis.NewCache(rdb, "krxvalue"), cfg.Cache.RedisTTL)
		resultStore = querycache.NewTieredStore(resultStore, shared, log)
	}

	// 3. Screening pipeline
	a.gateway = gateway.NewFromConfig(cfg, store, log)
	resolver := snapshot.NewResolver(a.gateway, snapshot.Config{
		MaxBacktrackDays: cfg.Screening.MaxBacktrackDays,
		ProbeTimeout:     cfg.Gateway.ProbeTimeout,
	}, log)
	a.names = selection.NewNameCache()
	service := selection.NewService(resolver, a.gateway, a.names, log)
	a.cache = querycache.New(service, resultStore, log)
	a.engine = backtest.NewEngine(a.cache, a.gateway, log)

	// 4. User-facing screens fall back to the archive when KRX is unreachable
	a.screener = a.cache
	if a.archive != nil {
		a.screener = selection.NewArchiveFallback(a.cache, a.archive, log)
	}

	if cfg.MetricsEnabled {
		for name, size := range map[string]func() int{"names": a.names.Len, "results": memory.Len} {
			if err := metrics.RegisterCacheSize(name, size); err != nil {
				log.WithError(err).WithField("cache", name).Warn("Cache size gauge not registered")
			}
		}
	}

	return a, nil
}

// Close releases database and redis connections
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// interruptContext is cancelled on Ctrl+C or SIGTERM
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
