package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/krxvalue/internal/contracts"
	"github.com/wonny/krxvalue/pkg/config"
	"github.com/wonny/krxvalue/pkg/logger"
)

// DefaultWarmSchedule runs after the KRX close on weekdays
const DefaultWarmSchedule = "0 30 18 * * 1-5"

// ResultArchive stores screening results beyond the process lifetime
type ResultArchive interface {
	SaveScreeningResult(ctx context.Context, result *contracts.ScreeningResult) error
	HasResult(ctx context.Context, criteriaKey string) (bool, error)
}

// ScreenWarmJob runs the default screen for every market through the query
// cache so the first API request of the day is a hit
type ScreenWarmJob struct {
	screener contracts.Screener
	archive  ResultArchive
	defaults config.ScreeningConfig
	markets  []contracts.Market
	schedule string
	now      func() time.Time
	logger   *logger.Logger
}

// NewScreenWarmJob creates the warm job. archive may be nil; an empty
// schedule selects DefaultWarmSchedule.
func NewScreenWarmJob(screener contracts.Screener, archive ResultArchive, defaults config.ScreeningConfig, schedule string, log *logger.Logger) *ScreenWarmJob {
	if schedule == "" {
		schedule = DefaultWarmSchedule
	}

	return &ScreenWarmJob{
		screener: screener,
		archive:  archive,
		defaults: defaults,
		markets:  contracts.SupportedMarkets,
		schedule: schedule,
		now:      time.Now,
		logger:   log,
	}
}

// Name returns the job name
func (j *ScreenWarmJob) Name() string {
	return "screen_warm"
}

// Schedule returns the cron schedule
func (j *ScreenWarmJob) Schedule() string {
	return j.schedule
}

// Run screens each market with today's date. A market failure does not stop
// the others; the joined error makes the scheduler retry.
func (j *ScreenWarmJob) Run(ctx context.Context) error {
	var errs []error

	for _, market := range j.markets {
		if err := j.warm(ctx, market); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			j.logger.WithError(err).WithField("market", market).Warn("Screen warm failed")
			errs = append(errs, fmt.Errorf("%s: %w", market, err))
		}
	}

	return errors.Join(errs...)
}

func (j *ScreenWarmJob) warm(ctx context.Context, market contracts.Market) error {
	criteria, err := contracts.NewCriteria(contracts.ScreenRequest{
		Market:    string(market),
		CapMin:    j.defaults.CapMin,
		CapMax:    j.defaults.CapMax,
		TopN:      j.defaults.TopN,
		DivPolicy: j.defaults.DivPolicy,
	}, j.now())
	if err != nil {
		return err
	}

	result, err := j.screener.Screen(ctx, criteria)
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"market":    market,
		"as_of":     contracts.FormatDate(result.AsOf),
		"final":     result.Stats.Final,
		"cache_hit": result.CacheHit,
	}).Info("Screen warmed")

	if j.archive == nil {
		return nil
	}
	return j.archiveResult(ctx, result)
}

// archiveResult saves fresh results, and cache hits the archive has not seen
// (computed by another replica through the shared Redis store)
func (j *ScreenWarmJob) archiveResult(ctx context.Context, result *contracts.ScreeningResult) error {
	if result.CacheHit {
		stored, err := j.archive.HasResult(ctx, result.Criteria.Key())
		if err != nil {
			return fmt.Errorf("check archive: %w", err)
		}
		if stored {
			return nil
		}
	}
	if err := j.archive.SaveScreeningResult(ctx, result); err != nil {
		return fmt.Errorf("archive result: %w", err)
	}
	return nil
}
