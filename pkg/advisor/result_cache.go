package advisor

import (
	"fmt"
	"hash"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kasuganosora/sqladvisor/pkg/query"
)

// ResultCache caches analysis results keyed by source fingerprint.
// Implementations must be safe for concurrent use.
type ResultCache interface {
	Get(fingerprint uint64) (*OptimizationResult, bool)
	Put(fingerprint uint64, result *OptimizationResult)
	Invalidate()
	Stats() (hits, misses int64)
}

// MemoryResultCache is an in-process ResultCache with LRU-style eviction.
type MemoryResultCache struct {
	mu      sync.RWMutex
	cache   map[uint64]*cachedResult
	maxSize int
	hits    int64
	misses  int64
}

var _ ResultCache = (*MemoryResultCache)(nil)

// cachedResult stores a cached analysis result with metadata.
type cachedResult struct {
	Result    *OptimizationResult
	CreatedAt time.Time
	HitCount  int64
	LastHit   time.Time
}

// NewMemoryResultCache creates a result cache with the given maximum size.
func NewMemoryResultCache(maxSize int) *MemoryResultCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &MemoryResultCache{
		cache:   make(map[uint64]*cachedResult, maxSize),
		maxSize: maxSize,
	}
}

// Get retrieves a cached result by source fingerprint.
func (rc *MemoryResultCache) Get(fingerprint uint64) (*OptimizationResult, bool) {
	rc.mu.RLock()
	entry, ok := rc.cache[fingerprint]
	if !ok {
		rc.mu.RUnlock()
		atomic.AddInt64(&rc.misses, 1)
		return nil, false
	}
	// Read fields under RLock to avoid data race
	result := entry.Result
	lastHit := entry.LastHit
	rc.mu.RUnlock()

	atomic.AddInt64(&rc.hits, 1)
	atomic.AddInt64(&entry.HitCount, 1)

	// Update last hit time under write lock only occasionally
	// to avoid write contention on hot entries
	now := time.Now()
	if now.Sub(lastHit) > time.Second {
		rc.mu.Lock()
		entry.LastHit = now
		rc.mu.Unlock()
	}

	return result, true
}

// Put stores an analysis result in the cache.
func (rc *MemoryResultCache) Put(fingerprint uint64, result *OptimizationResult) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	// Evict if at capacity (simple: remove least recently hit entry)
	if len(rc.cache) >= rc.maxSize {
		rc.evictOne()
	}

	now := time.Now()
	rc.cache[fingerprint] = &cachedResult{
		Result:    result,
		CreatedAt: now,
		LastHit:   now,
	}
}

// Invalidate removes all cached results (e.g., after schema or statistics changes).
func (rc *MemoryResultCache) Invalidate() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.cache = make(map[uint64]*cachedResult, rc.maxSize)
}

// Stats returns cache hit/miss statistics.
func (rc *MemoryResultCache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&rc.hits), atomic.LoadInt64(&rc.misses)
}

// Size returns the current number of cached results.
func (rc *MemoryResultCache) Size() int {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return len(rc.cache)
}

// evictOne removes the least recently hit entry. Must be called with write lock held.
func (rc *MemoryResultCache) evictOne() {
	var oldestKey uint64
	var oldestTime time.Time
	first := true

	for k, v := range rc.cache {
		if first || v.LastHit.Before(oldestTime) {
			oldestKey = k
			oldestTime = v.LastHit
			first = false
		}
	}

	if !first {
		delete(rc.cache, oldestKey)
	}
}

// Fingerprint computes a FNV-1a hash over the analysis-relevant parts of a
// query source. Two sources that fingerprint equal produce the same analysis.
func Fingerprint(src query.Source) uint64 {
	h := fnv.New64a()
	if src == nil {
		return h.Sum64()
	}

	fmt.Fprintf(h, "table:%s|", src.Table())

	for _, p := range src.Predicates() {
		fingerprintPredicate(h, p)
	}

	for _, t := range src.JoinSequence() {
		fmt.Fprintf(h, "seq:%s|", t)
	}

	for _, cond := range src.JoinConditions() {
		fmt.Fprintf(h, "join:%s:%s:%s:%g:%t|",
			cond.LeftTable, cond.RightTable, cond.JoinField, cond.Selectivity, cond.HasIndex)
	}

	return h.Sum64()
}

// fingerprintPredicate hashes a predicate by its rendered form and parameters.
func fingerprintPredicate(h hash.Hash64, p query.Predicate) {
	if p == nil {
		return
	}
	fmt.Fprintf(h, "pred:%d:%s", p.Kind(), p.SQL())
	for _, param := range p.Params() {
		fmt.Fprintf(h, ":%s", param)
	}
	fmt.Fprint(h, "|")
}
