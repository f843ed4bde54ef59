package common

import (
	"context"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// CacheService is an in-memory TTL cache for tool lookups.
type CacheService struct {
	cache    *cache.Cache
	onLookup func(hit bool)
}

func NewCacheService(defaultExpiration, cleanUpInterval time.Duration) *CacheService {
	return &CacheService{cache: cache.New(defaultExpiration, cleanUpInterval)}
}

// OnLookup registers a callback invoked on every GetOrLoad.
func (cs *CacheService) OnLookup(fn func(hit bool)) {
	cs.onLookup = fn
}

func (cs *CacheService) Get(key string) (interface{}, bool) {
	return cs.cache.Get(normalizeKey(key))
}

func (cs *CacheService) Set(key string, value interface{}) {
	cs.cache.SetDefault(normalizeKey(key), value)
}

// GetOrLoad returns the cached value for key or stores the loader's result.
// Loader errors are not cached.
func (cs *CacheService) GetOrLoad(ctx context.Context, key string, loader func(ctx context.Context) (any, error)) (interface{}, error) {
	if val, found := cs.Get(key); found {
		cs.lookup(true)
		return val, nil
	}
	cs.lookup(false)

	val, err := loader(ctx)
	if err != nil {
		return nil, err
	}

	cs.Set(key, val)
	return val, nil
}

func (cs *CacheService) ItemCount() int {
	return cs.cache.ItemCount()
}

func (cs *CacheService) lookup(hit bool) {
	if cs.onLookup != nil {
		cs.onLookup(hit)
	}
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.Join(strings.Fields(key), " "))
}
