package admission

import (
	"container/list"
	"sync"
	"time"

	"visor/internal/domain"
)

// CacheKey identifies one exact analysis request. Every prompt-shaping field
// participates in the identity: two requests differing in any field are
// distinct entries even for the same image.
type CacheKey struct {
	Hash         string
	Mode         domain.Mode
	CustomPrompt string
	Tone         domain.Tone
	Length       domain.Length
	Language     string
	Question     string
}

// KeyFor builds the composite cache key for a fingerprinted request.
func KeyFor(hash string, req domain.AnalysisRequest) CacheKey {
	return CacheKey{
		Hash:         hash,
		Mode:         req.Mode,
		CustomPrompt: req.CustomPrompt,
		Tone:         req.Tone,
		Length:       req.Length,
		Language:     req.Language,
		Question:     req.Question,
	}
}

// CachedResult is the value stored for a completed analysis. Cached replays
// intentionally omit the model identifier.
type CachedResult struct {
	Text       string
	Confidence domain.Confidence
	Elapsed    time.Duration
}

// ResultCache is a bounded map of completed analyses with insertion-order
// eviction: when an insert pushes the size over max, the evictBatch
// oldest-inserted entries go. Recency of use is deliberately ignored, and
// entries never expire by age.
type ResultCache struct {
	mu      sync.Mutex
	max     int
	batch   int
	entries map[CacheKey]*list.Element
	order   *list.List // cacheItem values, front is oldest
}

type cacheItem struct {
	key   CacheKey
	value CachedResult
}

// NewResultCache returns a cache bounded at max entries that evicts batch
// entries at a time.
func NewResultCache(max, batch int) *ResultCache {
	if max <= 0 {
		max = 1000
	}
	if batch <= 0 || batch > max {
		batch = 100
	}
	return &ResultCache{
		max:     max,
		batch:   batch,
		entries: make(map[CacheKey]*list.Element),
		order:   list.New(),
	}
}

// Get returns the stored result for key, if any.
func (c *ResultCache) Get(key CacheKey) (CachedResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return CachedResult{}, false
	}
	return el.Value.(cacheItem).value, true
}

// Put inserts an entry and evicts the oldest batch when the size bound is
// exceeded. Re-inserting an existing key overwrites the value in place and
// keeps the original insertion position.
func (c *ResultCache) Put(key CacheKey, value CachedResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		item := el.Value.(cacheItem)
		item.value = value
		el.Value = item
		return
	}

	c.entries[key] = c.order.PushBack(cacheItem{key: key, value: value})
	if len(c.entries) > c.max {
		c.evictOldest(c.batch)
	}
}

// evictOldest removes up to n entries from the front of the insertion order.
// Callers must hold mu.
func (c *ResultCache) evictOldest(n int) {
	for i := 0; i < n; i++ {
		front := c.order.Front()
		if front == nil {
			return
		}
		item := c.order.Remove(front).(cacheItem)
		delete(c.entries, item.key)
	}
}

// Sweep clears the cache wholesale if the periodic maintenance pass finds it
// oversized, returning the number of entries dropped. The insert path already
// enforces the bound, so this is a blunt safety valve that only fires when
// that bound was misconfigured.
func (c *ResultCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) <= c.max {
		return 0
	}
	dropped := len(c.entries)
	c.entries = make(map[CacheKey]*list.Element)
	c.order.Init()
	return dropped
}

// Len returns the current entry count.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
