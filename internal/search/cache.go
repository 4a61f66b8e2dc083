package search

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/karlseguin/ccache/v3"
)

const generationKey = "search:generation"

// CacheOptions configures the result cache.
type CacheOptions struct {
	LocalSize int64
	LocalTTL  time.Duration
	// RemoteTTL is the memcached expiration; ignored without Servers.
	RemoteTTL time.Duration
	Servers   []string
}

// DefaultCacheOptions returns a local-only cache.
func DefaultCacheOptions() CacheOptions {
	return CacheOptions{
		LocalSize: 1000,
		LocalTTL:  5 * time.Minute,
		RemoteTTL: 15 * time.Minute,
	}
}

// Cache stores search results in a local tier backed by an optional
// memcached tier. Every entry is keyed under a generation number;
// Invalidate moves to a new generation so that all earlier entries are
// never read again.
type Cache struct {
	local  *ccache.Cache[*Result]
	remote *memcache.Client
	opts   CacheOptions

	generation atomic.Int64
}

// NewCache creates a result cache.
func NewCache(opts CacheOptions) *Cache {
	if opts.LocalSize <= 0 {
		opts.LocalSize = DefaultCacheOptions().LocalSize
	}
	if opts.LocalTTL <= 0 {
		opts.LocalTTL = DefaultCacheOptions().LocalTTL
	}
	if opts.RemoteTTL <= 0 {
		opts.RemoteTTL = DefaultCacheOptions().RemoteTTL
	}

	c := &Cache{
		local: ccache.New(ccache.Configure[*Result]().MaxSize(opts.LocalSize)),
		opts:  opts,
	}
	if len(opts.Servers) > 0 {
		c.remote = memcache.New(opts.Servers...)
		log.Printf("Search cache using memcached at %v", opts.Servers)
	}
	return c
}

// Close stops the local cache's background worker.
func (c *Cache) Close() {
	c.local.Stop()
}

// Get returns the cached result for the criteria, if any.
func (c *Cache) Get(crit Criteria) (*Result, bool) {
	return c.get(c.key(crit))
}

func (c *Cache) get(key string) (*Result, bool) {
	if item := c.local.Get(key); item != nil && !item.Expired() {
		return item.Value(), true
	}
	if c.remote == nil {
		return nil, false
	}

	it, err := c.remote.Get(key)
	if err != nil {
		if !errors.Is(err, memcache.ErrCacheMiss) {
			log.Printf("Error reading search cache from memcached: %v", err)
		}
		return nil, false
	}

	var res Result
	if err := json.Unmarshal(it.Value, &res); err != nil {
		log.Printf("Error decoding cached search result: %v", err)
		return nil, false
	}
	c.local.Set(key, &res, c.opts.LocalTTL)
	return &res, true
}

// Set stores a result in both tiers under the current generation.
func (c *Cache) Set(crit Criteria, res *Result) {
	c.set(c.key(crit), res)
}

// set stores res under key. A key taken before a search keeps the result in
// the generation it was read in, so an Invalidate during the search wins.
func (c *Cache) set(key string, res *Result) {
	c.local.Set(key, res, c.opts.LocalTTL)

	if c.remote == nil {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		log.Printf("Error encoding search result for cache: %v", err)
		return
	}
	item := &memcache.Item{
		Key:        key,
		Value:      data,
		Expiration: int32(c.opts.RemoteTTL / time.Second),
	}
	if err := c.remote.Set(item); err != nil {
		log.Printf("Error writing search cache to memcached: %v", err)
	}
}

// Invalidate discards every cached result. It is called after any change
// that can alter search results.
func (c *Cache) Invalidate(ctx context.Context) {
	c.generation.Add(1)
	c.local.Clear()

	if c.remote == nil {
		return
	}
	if _, err := c.remote.Increment(generationKey, 1); err != nil {
		if !errors.Is(err, memcache.ErrCacheMiss) {
			log.Printf("Error bumping search cache generation: %v", err)
			return
		}
		err = c.remote.Add(&memcache.Item{Key: generationKey, Value: []byte("1")})
		if err != nil && !errors.Is(err, memcache.ErrNotStored) {
			log.Printf("Error creating search cache generation: %v", err)
		}
	}
}

func (c *Cache) currentGeneration() int64 {
	if c.remote == nil {
		return c.generation.Load()
	}
	it, err := c.remote.Get(generationKey)
	if err != nil {
		if !errors.Is(err, memcache.ErrCacheMiss) {
			log.Printf("Error reading search cache generation: %v", err)
		}
		return 0
	}
	gen, err := strconv.ParseInt(string(it.Value), 10, 64)
	if err != nil {
		return 0
	}
	return gen
}

// key hashes the criteria since memcached keys are limited in length.
func (c *Cache) key(crit Criteria) string {
	sum := sha1.Sum([]byte(crit.Key()))
	return fmt.Sprintf("search:%d:%s", c.currentGeneration(), hex.EncodeToString(sum[:]))
}

// CachedSearcher serves repeated searches from a Cache.
type CachedSearcher struct {
	next  Searcher
	cache *Cache
}

// NewCachedSearcher wraps next with cache.
func NewCachedSearcher(next Searcher, cache *Cache) *CachedSearcher {
	return &CachedSearcher{next: next, cache: cache}
}

// Search returns a cached result or runs the search and caches it.
func (s *CachedSearcher) Search(ctx context.Context, c Criteria) (*Result, error) {
	key := s.cache.key(c)
	if res, ok := s.cache.get(key); ok {
		return res, nil
	}
	res, err := s.next.Search(ctx, c)
	if err != nil {
		return nil, err
	}
	s.cache.set(key, res)
	return res, nil
}
