package querycache

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/wonny/krxvalue/internal/contracts"
	"github.com/wonny/krxvalue/pkg/logger"
	"github.com/wonny/krxvalue/pkg/redis"
)

// Store holds screening results by normalized key.
// Cache clones results on the way in and out, so stores may keep the
// pointers they are given.
type Store interface {
	Get(ctx context.Context, key string) (*contracts.ScreeningResult, bool, error)
	Set(ctx context.Context, key string, result *contracts.ScreeningResult) error
}

// MemoryStore is an in-process store on go-cache.
// With zero options it never expires or evicts (process-lifetime cache).
type MemoryStore struct {
	mu       sync.Mutex
	items    *gocache.Cache
	ttl      time.Duration
	capacity int

	// recency order of keys, front = most recently used
	order *list.List
	elems map[string]*list.Element
}

// MemoryOptions bounds a MemoryStore
type MemoryOptions struct {
	MaxEntries int           // 0 = unbounded; otherwise least recently used is evicted
	TTL        time.Duration // 0 = never expires
}

// NewMemoryStore creates an in-process store
func NewMemoryStore(opts MemoryOptions) *MemoryStore {
	ttl := gocache.NoExpiration
	cleanup := time.Duration(0)
	if opts.TTL > 0 {
		ttl = opts.TTL
		cleanup = opts.TTL
	}

	return &MemoryStore{
		items:    gocache.New(ttl, cleanup),
		ttl:      ttl,
		capacity: opts.MaxEntries,
		order:    list.New(),
		elems:    make(map[string]*list.Element),
	}
}

// Get implements Store
func (s *MemoryStore) Get(_ context.Context, key string) (*contracts.ScreeningResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items.Get(key)
	if !ok {
		s.forget(key)
		return nil, false, nil
	}

	if elem, exists := s.elems[key]; exists {
		s.order.MoveToFront(elem)
	}
	return v.(*contracts.ScreeningResult), true, nil
}

// Set implements Store
func (s *MemoryStore) Set(_ context.Context, key string, result *contracts.ScreeningResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items.Set(key, result, s.ttl)

	if elem, exists := s.elems[key]; exists {
		s.order.MoveToFront(elem)
	} else {
		s.elems[key] = s.order.PushFront(key)
	}

	if s.capacity > 0 {
		for s.order.Len() > s.capacity {
			oldest := s.order.Back()
			evicted := oldest.Value.(string)
			s.items.Delete(evicted)
			s.forget(evicted)
		}
	}

	return nil
}

// Len returns the number of live entries
func (s *MemoryStore) Len() int {
	return s.items.ItemCount()
}

func (s *MemoryStore) forget(key string) {
	if elem, exists := s.elems[key]; exists {
		s.order.Remove(elem)
		delete(s.elems, key)
	}
}

// RedisStore shares results between API replicas.
// A disabled redis client makes every Get a miss and every Set a no-op.
type RedisStore struct {
	cache *redis.Cache
	ttl   time.Duration
}

// NewRedisStore creates a redis backed store
func NewRedisStore(cache *redis.Cache, ttl time.Duration) *RedisStore {
	return &RedisStore{cache: cache, ttl: ttl}
}

// Get implements Store. An entry written by an incompatible build is deleted
// and reported as a miss so the next Set replaces it.
func (s *RedisStore) Get(ctx context.Context, key string) (*contracts.ScreeningResult, bool, error) {
	var result contracts.ScreeningResult
	found, err := s.cache.Get(ctx, redis.ScreenKey(key), &result)
	if errors.Is(err, redis.ErrCorrupt) {
		return nil, false, s.cache.Delete(ctx, redis.ScreenKey(key))
	}
	if err != nil || !found {
		return nil, false, err
	}
	return &result, true, nil
}

// Set implements Store
func (s *RedisStore) Set(ctx context.Context, key string, result *contracts.ScreeningResult) error {
	return s.cache.Set(ctx, redis.ScreenKey(key), result, s.ttl)
}

// TieredStore reads memory first, then the shared store, and back-fills
// memory on a shared hit. Shared store failures degrade to misses.
type TieredStore struct {
	local  Store
	shared Store
	logger *logger.Logger
}

// NewTieredStore creates a two level store
func NewTieredStore(local, shared Store, log *logger.Logger) *TieredStore {
	return &TieredStore{local: local, shared: shared, logger: log}
}

// Get implements Store
func (s *TieredStore) Get(ctx context.Context, key string) (*contracts.ScreeningResult, bool, error) {
	if result, ok, err := s.local.Get(ctx, key); err == nil && ok {
		return result, true, nil
	}

	result, ok, err := s.shared.Get(ctx, key)
	if err != nil {
		s.logger.WithField("key", key).WithError(err).Warn("Shared cache read failed")
		return nil, false, nil
	}
	if !ok {
		return nil, false, nil
	}

	if err := s.local.Set(ctx, key, result); err != nil {
		return nil, false, err
	}
	return result, true, nil
}

// Set implements Store
func (s *TieredStore) Set(ctx context.Context, key string, result *contracts.ScreeningResult) error {
	if err := s.local.Set(ctx, key, result); err != nil {
		return err
	}

	if err := s.shared.Set(ctx, key, result); err != nil {
		s.logger.WithField("key", key).WithError(err).Warn("Shared cache write failed")
	}
	return nil
}
