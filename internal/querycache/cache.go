package querycache

import (
	"context"
	"fmt"

	"github.com/wonny/krxvalue/internal/contracts"
	"github.com/wonny/krxvalue/internal/metrics"
	"github.com/wonny/krxvalue/pkg/flight"
	"github.com/wonny/krxvalue/pkg/logger"
)

// Cache memoizes screening results by normalized criteria.
// Hits are deep copies flagged CacheHit. Errors are never stored.
// ⭐ SSOT: 스크리닝 결과 캐시는 여기서만
type Cache struct {
	screener contracts.Screener
	store    Store
	flight   flight.Group[*contracts.ScreeningResult]
	logger   *logger.Logger
}

// New creates a query cache in front of screener
func New(screener contracts.Screener, store Store, log *logger.Logger) *Cache {
	if store == nil {
		store = NewMemoryStore(MemoryOptions{})
	}

	return &Cache{
		screener: screener,
		store:    store,
		logger:   log.Component("querycache"),
	}
}

// Screen implements contracts.Screener so the cache can stand in for the engine
func (c *Cache) Screen(ctx context.Context, criteria contracts.Criteria) (*contracts.ScreeningResult, error) {
	return c.GetOrCompute(ctx, criteria)
}

// GetOrCompute returns a cached copy or runs the screen once per key
func (c *Cache) GetOrCompute(ctx context.Context, criteria contracts.Criteria) (*contracts.ScreeningResult, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	key := criteria.Key()

	if result, ok := c.lookup(ctx, key); ok {
		metrics.RecordCacheLookup(true)
		return hit(result), nil
	}
	metrics.RecordCacheLookup(false)

	// 동일 키 동시 요청은 한 번만 계산
	shared, err := c.flight.Do(ctx, key, func(ctx context.Context) (*contracts.ScreeningResult, error) {
		if result, ok := c.lookup(ctx, key); ok {
			return hit(result), nil
		}

		result, err := c.screener.Screen(ctx, criteria)
		if err != nil {
			return nil, err
		}

		stored := result.Clone()
		stored.CacheHit = false
		if err := c.store.Set(ctx, key, stored); err != nil {
			return nil, fmt.Errorf("store screening result: %w", err)
		}

		c.logger.WithFields(map[string]interface{}{
			"key":   key,
			"final": result.Stats.Final,
		}).Debug("Screening result cached")

		return stored, nil
	})
	if err != nil {
		return nil, err
	}

	return shared.Clone(), nil
}

func (c *Cache) lookup(ctx context.Context, key string) (*contracts.ScreeningResult, bool) {
	result, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.WithField("key", key).WithError(err).Warn("Query cache read failed")
		return nil, false
	}
	return result, ok
}

func hit(result *contracts.ScreeningResult) *contracts.ScreeningResult {
	out := result.Clone()
	out.CacheHit = true
	return out
}
