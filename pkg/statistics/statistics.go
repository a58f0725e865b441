package statistics

import (
	"strings"
	"sync"
)

// 未知值哨兵
// 实现方没有数据时返回这两个值，分析器据此回退到既定默认值。
const (
	UnknownRowCount    int64   = -1
	UnknownSelectivity float64 = -1.0
)

// TableStatistics 表统计信息契约
// 所有方法只做查询，不得阻塞；实现必须并发安全。
type TableStatistics interface {
	// EstimatedRowCount 表的估计行数，未知返回 UnknownRowCount
	EstimatedRowCount(tableName string) int64
	// JoinSelectivity 两表按字段连接的选择率，未知返回 UnknownSelectivity
	JoinSelectivity(leftTable, rightTable, joinField string) float64
	// HasIndexOnField 字段上是否存在索引
	HasIndexOnField(tableName, fieldName string) bool
}

// MapStatistics 基于内存映射的统计实现
// 主要用于测试和静态配置场景。
type MapStatistics struct {
	mu        sync.RWMutex
	rowCounts map[string]int64
	joinSels  map[string]float64
	indexes   map[string]map[string]bool
}

// NewMapStatistics 创建空的内存统计
func NewMapStatistics() *MapStatistics {
	return &MapStatistics{
		rowCounts: make(map[string]int64),
		joinSels:  make(map[string]float64),
		indexes:   make(map[string]map[string]bool),
	}
}

// SetRowCount 设置表行数
func (m *MapStatistics) SetRowCount(tableName string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rowCounts[tableName] = count
}

// SetJoinSelectivity 设置连接选择率，左右表顺序无关
func (m *MapStatistics) SetJoinSelectivity(leftTable, rightTable, joinField string, selectivity float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joinSels[joinKey(leftTable, rightTable, joinField)] = selectivity
}

// AddIndex 登记字段索引
func (m *MapStatistics) AddIndex(tableName, fieldName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexes[tableName] == nil {
		m.indexes[tableName] = make(map[string]bool)
	}
	m.indexes[tableName][fieldName] = true
}

func (m *MapStatistics) EstimatedRowCount(tableName string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if count, ok := m.rowCounts[tableName]; ok {
		return count
	}
	return UnknownRowCount
}

func (m *MapStatistics) JoinSelectivity(leftTable, rightTable, joinField string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sel, ok := m.joinSels[joinKey(leftTable, rightTable, joinField)]; ok {
		return sel
	}
	return UnknownSelectivity
}

func (m *MapStatistics) HasIndexOnField(tableName, fieldName string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.indexes[tableName][fieldName]
}

// joinKey 归一化连接键
// 表名排序后拼接，左右表顺序不影响查询结果。
func joinKey(leftTable, rightTable, joinField string) string {
	if leftTable > rightTable {
		leftTable, rightTable = rightTable, leftTable
	}
	return strings.Join([]string{leftTable, rightTable, joinField}, "|")
}
