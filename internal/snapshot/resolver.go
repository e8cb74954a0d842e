package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/krxvalue/internal/contracts"
	"github.com/wonny/krxvalue/internal/metrics"
	"github.com/wonny/krxvalue/pkg/logger"
)

// DefaultMaxBacktrackDays covers two weeks of weekends and holidays
const DefaultMaxBacktrackDays = 14

// Resolver finds the most recent date with usable market data
type Resolver struct {
	source           contracts.SnapshotSource
	maxBacktrackDays int
	probeTimeout     time.Duration
	logger           *logger.Logger
}

// Config for the resolver. A negative MaxBacktrackDays selects the default.
type Config struct {
	MaxBacktrackDays int
	ProbeTimeout     time.Duration // 0 = no per-probe limit
}

// NewResolver creates a new snapshot resolver
func NewResolver(source contracts.SnapshotSource, cfg Config, log *logger.Logger) *Resolver {
	maxDays := cfg.MaxBacktrackDays
	if maxDays < 0 {
		maxDays = DefaultMaxBacktrackDays
	}

	return &Resolver{
		source:           source,
		maxBacktrackDays: maxDays,
		probeTimeout:     cfg.ProbeTimeout,
		logger:           log.Component("snapshot"),
	}
}

// Resolve walks back from baseDate one calendar day at a time until both
// tables are non-empty. Probe failures are recorded in the log and skipped.
// Only parent context cancellation and window exhaustion stop the search.
func (r *Resolver) Resolve(ctx context.Context, market contracts.Market, baseDate time.Time) (*contracts.MarketSnapshot, []string, error) {
	base := contracts.Day(baseDate)
	resolutionLog := make([]string, 0, 2)

	for offset := 0; offset <= r.maxBacktrackDays; offset++ {
		if err := ctx.Err(); err != nil {
			return nil, resolutionLog, err
		}

		candidate := base.AddDate(0, 0, -offset)
		day := contracts.FormatDate(candidate)

		caps, fundamentals, err := r.probe(ctx, market, candidate)
		if err != nil {
			// 상위 컨텍스트 취소는 miss가 아님
			if ctx.Err() != nil {
				return nil, resolutionLog, ctx.Err()
			}

			metrics.RecordSnapshotProbe(string(market), "failed")
			resolutionLog = append(resolutionLog, fmt.Sprintf("%s: fetch failed (%v)", day, err))
			r.logger.WithFields(map[string]interface{}{
				"market": market,
				"date":   day,
			}).WithError(err).Warn("Snapshot probe failed")
			continue
		}

		if len(caps) == 0 || len(fundamentals) == 0 {
			metrics.RecordSnapshotProbe(string(market), "empty")
			resolutionLog = append(resolutionLog, fmt.Sprintf("%s: no data", day))
			continue
		}

		metrics.RecordSnapshotProbe(string(market), "hit")
		if offset == 0 {
			resolutionLog = append(resolutionLog, fmt.Sprintf("%s: used requested date", day))
		} else {
			resolutionLog = append(resolutionLog, fmt.Sprintf("%s: fell back %d day(s) from %s",
				day, offset, contracts.FormatDate(base)))
		}

		r.logger.WithFields(map[string]interface{}{
			"market":    market,
			"requested": contracts.FormatDate(base),
			"as_of":     day,
			"tickers":   len(caps),
		}).Debug("Snapshot resolved")

		return &contracts.MarketSnapshot{
			Market:       market,
			AsOf:         candidate,
			Caps:         caps,
			Fundamentals: fundamentals,
		}, resolutionLog, nil
	}

	return nil, resolutionLog, &contracts.NoDataError{
		Market:     market,
		WindowDays: r.maxBacktrackDays + 1,
	}
}

// probe fetches both tables for one date under the probe timeout
func (r *Resolver) probe(ctx context.Context, market contracts.Market, date time.Time) ([]contracts.CapEntry, map[string]contracts.Fundamental, error) {
	if r.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.probeTimeout)
		defer cancel()
	}

	caps, err := r.source.CapitalizationTable(ctx, date, market)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: capitalization: %v", contracts.ErrGatewayFailure, err)
	}
	if len(caps) == 0 {
		return nil, nil, nil
	}

	fundamentals, err := r.source.FundamentalTable(ctx, date, market)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: fundamentals: %v", contracts.ErrGatewayFailure, err)
	}

	return caps, fundamentals, nil
}
