package statistics

import (
	"sync"
	"time"
)

// DefaultCacheTTL 统计缓存默认过期时间
const DefaultCacheTTL = 5 * time.Minute

// rowCountEntry 行数缓存项
type rowCountEntry struct {
	count    int64
	expireAt time.Time
}

// joinSelEntry 连接选择率缓存项
type joinSelEntry struct {
	selectivity float64
	expireAt    time.Time
}

// CachingStatistics 带 TTL 缓存的统计装饰器
// 行数和连接选择率查询走缓存，索引查询直接透传。
// 未知哨兵同样缓存，避免对缺失表反复回源。
type CachingStatistics struct {
	mu        sync.RWMutex
	inner     TableStatistics
	ttl       time.Duration
	rowCounts map[string]rowCountEntry
	joinSels  map[string]joinSelEntry
	hits      int64
	misses    int64
}

// CacheStats 缓存运行指标
type CacheStats struct {
	Size    int           `json:"size"`
	Hits    int64         `json:"hits"`
	Misses  int64         `json:"misses"`
	HitRate float64       `json:"hit_rate"`
	TTL     time.Duration `json:"ttl"`
}

// NewCachingStatistics 包装统计实现，ttl<=0 时取默认值
func NewCachingStatistics(inner TableStatistics, ttl time.Duration) *CachingStatistics {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachingStatistics{
		inner:     inner,
		ttl:       ttl,
		rowCounts: make(map[string]rowCountEntry),
		joinSels:  make(map[string]joinSelEntry),
	}
}

func (c *CachingStatistics) EstimatedRowCount(tableName string) int64 {
	c.mu.RLock()
	entry, ok := c.rowCounts[tableName]
	c.mu.RUnlock()

	if ok && time.Now().Before(entry.expireAt) {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return entry.count
	}

	count := c.inner.EstimatedRowCount(tableName)
	debugf("[StatsCache] row count miss for table %s: %d\n", tableName, count)

	c.mu.Lock()
	c.misses++
	c.rowCounts[tableName] = rowCountEntry{count: count, expireAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return count
}

func (c *CachingStatistics) JoinSelectivity(leftTable, rightTable, joinField string) float64 {
	key := joinKey(leftTable, rightTable, joinField)

	c.mu.RLock()
	entry, ok := c.joinSels[key]
	c.mu.RUnlock()

	if ok && time.Now().Before(entry.expireAt) {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return entry.selectivity
	}

	sel := c.inner.JoinSelectivity(leftTable, rightTable, joinField)
	debugf("[StatsCache] join selectivity miss for %s: %.4f\n", key, sel)

	c.mu.Lock()
	c.misses++
	c.joinSels[key] = joinSelEntry{selectivity: sel, expireAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return sel
}

// HasIndexOnField 不缓存，索引变更需要立即可见
func (c *CachingStatistics) HasIndexOnField(tableName, fieldName string) bool {
	return c.inner.HasIndexOnField(tableName, fieldName)
}

// InvalidateTable 失效指定表的行数缓存
func (c *CachingStatistics) InvalidateTable(tableName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rowCounts, tableName)
}

// InvalidateAll 清空全部缓存
func (c *CachingStatistics) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	debugln("[StatsCache] invalidate all entries")
	c.rowCounts = make(map[string]rowCountEntry)
	c.joinSels = make(map[string]joinSelEntry)
}

// GetStats 返回缓存指标快照
func (c *CachingStatistics) GetStats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return CacheStats{
		Size:    len(c.rowCounts) + len(c.joinSels),
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: hitRate,
		TTL:     c.ttl,
	}
}
