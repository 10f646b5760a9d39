package apiclient

import (
	"hash/fnv"
	"net/http"
	"sync"
	"time"
)

// CacheOptions are the cache directives of a client or a call. They follow
// the fetch-cache model: Revalidate is how long a GET response stays fresh,
// Tags group entries for InvalidateTags, and NoStore bypasses the cache.
type CacheOptions struct {
	Revalidate time.Duration
	Tags       []string
	NoStore    bool
}

// merge overlays the non-zero fields of override onto c.
func (c CacheOptions) merge(override CacheOptions) CacheOptions {
	out := c
	if override.Revalidate != 0 {
		out.Revalidate = override.Revalidate
	}
	if len(override.Tags) > 0 {
		out.Tags = append([]string(nil), override.Tags...)
	}
	if override.NoStore {
		out.NoStore = true
	}
	return out
}

func (c CacheOptions) cacheable(method string) bool {
	return method == http.MethodGet && !c.NoStore && c.Revalidate > 0
}

// CacheEntry is a stored successful response body.
type CacheEntry struct {
	StatusCode int
	Body       []byte
	Tags       []string
	ExpiresAt  time.Time
}

// Cache stores response bodies keyed by method and URL.
type Cache interface {
	Get(key string) (*CacheEntry, bool)
	Set(key string, entry *CacheEntry, ttl time.Duration)
	Delete(key string)
	DeleteTags(tags ...string) int
	Clear()
}

const memoryCacheShards = 16

// MemoryCache is a sharded in-memory Cache.
type MemoryCache struct {
	shards [memoryCacheShards]*cacheShard
}

type cacheShard struct {
	mu    sync.RWMutex
	store map[string]*CacheEntry
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{}
	for i := range c.shards {
		c.shards[i] = &cacheShard{store: make(map[string]*CacheEntry)}
	}
	return c
}

func (c *MemoryCache) shard(key string) *cacheShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%memoryCacheShards]
}

// Get returns a fresh entry. Expired entries are removed.
func (c *MemoryCache) Get(key string) (*CacheEntry, bool) {
	s := c.shard(key)
	s.mu.RLock()
	entry, ok := s.store[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		s.mu.Lock()
		if s.store[key] == entry {
			delete(s.store, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	return entry, true
}

// Set stores entry for ttl.
func (c *MemoryCache) Set(key string, entry *CacheEntry, ttl time.Duration) {
	s := c.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ExpiresAt = time.Now().Add(ttl)
	s.store[key] = entry
}

// Delete removes key.
func (c *MemoryCache) Delete(key string) {
	s := c.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.store, key)
}

// DeleteTags removes every entry carrying any of tags and returns how many
// were removed.
func (c *MemoryCache) DeleteTags(tags ...string) int {
	if len(tags) == 0 {
		return 0
	}
	want := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		want[t] = struct{}{}
	}

	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for key, entry := range s.store {
			for _, t := range entry.Tags {
				if _, ok := want[t]; ok {
					delete(s.store, key)
					removed++
					break
				}
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Clear removes every entry.
func (c *MemoryCache) Clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.store = make(map[string]*CacheEntry)
		s.mu.Unlock()
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.store)
		s.mu.RUnlock()
	}
	return n
}

func cacheKey(method, url string) string {
	return method + ":" + url
}
