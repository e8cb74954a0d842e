package selection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/krxvalue/internal/contracts"
	"github.com/wonny/krxvalue/internal/metrics"
	"github.com/wonny/krxvalue/internal/snapshot"
	"github.com/wonny/krxvalue/pkg/logger"
)

// Service runs the TAT (1/PER + 1/PBR + DIV/100) small/mid-cap value screen
// ⭐ SSOT: 스크리닝/스코어링 로직은 여기서만
type Service struct {
	resolver *snapshot.Resolver
	names    contracts.NameResolver
	cache    *NameCache
	logger   *logger.Logger
}

// NewService creates a screening service. Services built with the same
// NameCache share resolved names.
func NewService(resolver *snapshot.Resolver, names contracts.NameResolver, cache *NameCache, log *logger.Logger) *Service {
	if cache == nil {
		cache = NewNameCache()
	}

	return &Service{
		resolver: resolver,
		names:    names,
		cache:    cache,
		logger:   log.Component("selection"),
	}
}

// Screen resolves the snapshot and returns the top N candidates by TAT
func (s *Service) Screen(ctx context.Context, criteria contracts.Criteria) (*contracts.ScreeningResult, error) {
	start := time.Now()

	result, err := s.screen(ctx, criteria)
	metrics.RecordScreening(string(criteria.Market), outcome(err), time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"market":   criteria.Market,
		"as_of":    contracts.FormatDate(result.AsOf),
		"total":    result.Stats.TotalJoined,
		"filtered": result.Stats.Filtered,
		"final":    result.Stats.Final,
		"elapsed":  time.Since(start).String(),
	}).Info("Screening completed")

	return result, nil
}

func (s *Service) screen(ctx context.Context, criteria contracts.Criteria) (*contracts.ScreeningResult, error) {
	// 1. Validate (before any gateway call)
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	// 2. Resolve snapshot with date fallback
	snap, resolutionLog, err := s.resolver.Resolve(ctx, criteria.Market, criteria.Date)
	if err != nil {
		return nil, fmt.Errorf("resolve %s snapshot: %w", criteria.Market, err)
	}

	// 3. Inner join in capitalization table order
	joined := join(snap)

	// 4-6. Filters
	filtered := make([]contracts.ScoredCandidate, 0, len(joined))
	for _, row := range joined {
		if passes(row, criteria) {
			filtered = append(filtered, row)
		}
	}

	// 8. Names
	for i := range filtered {
		name, err := s.cache.Resolve(ctx, s.names, filtered[i].Ticker)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			name = filtered[i].Ticker
			resolutionLog = append(resolutionLog, fmt.Sprintf("%s: name lookup failed (%v)", filtered[i].Ticker, err))
			s.logger.WithField("ticker", filtered[i].Ticker).WithError(err).Warn("Ticker name lookup failed")
		}
		filtered[i].Name = name
	}

	// 9. Contributions
	for i := range filtered {
		score(&filtered[i])
	}

	// 10. Stable sort + top N
	filteredCount := len(filtered)
	candidates := rank(filtered, criteria.TopN)

	return &contracts.ScreeningResult{
		Criteria:   criteria,
		Candidates: candidates,
		AsOf:       snap.AsOf,
		Stats: contracts.ScreenStats{
			TotalJoined: len(joined),
			Filtered:    filteredCount,
			Final:       len(candidates),
		},
		ResolutionLog: resolutionLog,
	}, nil
}

// join keeps tickers present in both tables, in capitalization table order
func join(snap *contracts.MarketSnapshot) []contracts.ScoredCandidate {
	rows := make([]contracts.ScoredCandidate, 0, len(snap.Caps))
	for _, entry := range snap.Caps {
		f, ok := snap.Fundamentals[entry.Ticker]
		if !ok {
			continue
		}

		row := contracts.ScoredCandidate{
			Ticker:    entry.Ticker,
			MarketCap: entry.MarketCap,
			PER:       f.PER,
			PBR:       f.PBR,
		}
		if f.DIV != nil {
			div := *f.DIV
			row.DIV = &div
		}
		rows = append(rows, row)
	}
	return rows
}

// passes applies the cap/PER/PBR filters, the optional bounds and the
// dividend policy
func passes(row contracts.ScoredCandidate, c contracts.Criteria) bool {
	if row.PER <= 0 || row.PBR <= 0 {
		return false
	}
	if row.MarketCap < c.CapMin || row.MarketCap > c.CapMax {
		return false
	}
	if c.PERMax != nil && row.PER > *c.PERMax {
		return false
	}
	if c.PBRMax != nil && row.PBR > *c.PBRMax {
		return false
	}
	if c.DivPolicy == contracts.DivExclude && row.DIV == nil {
		return false
	}
	return true
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, contracts.ErrInvalidParameter):
		return "invalid"
	case errors.Is(err, contracts.ErrNoDataAvailable):
		return "no_data"
	default:
		return "error"
	}
}
