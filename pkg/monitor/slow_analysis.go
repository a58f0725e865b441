package monitor

import (
	"fmt"
	"sync"
	"time"
)

// SlowAnalysisRecord 超预算分析记录
type SlowAnalysisRecord struct {
	ID          int64
	Query       string
	Duration    time.Duration
	Timestamp   time.Time
	TableName   string
	Suggestions int
	Source      string
	Error       string
}

// SlowAnalysisTracker 超预算分析追踪器
// 记录耗时超过阈值的分析请求，容量满后淘汰最旧记录。
type SlowAnalysisTracker struct {
	mu         sync.RWMutex
	records    []*SlowAnalysisRecord
	recordMap  map[int64]*SlowAnalysisRecord
	threshold  time.Duration
	maxEntries int
	nextID     int64
}

// NewSlowAnalysisTracker 创建超预算分析追踪器
func NewSlowAnalysisTracker(threshold time.Duration, maxEntries int) *SlowAnalysisTracker {
	return &SlowAnalysisTracker{
		records:    make([]*SlowAnalysisRecord, 0, maxEntries),
		recordMap:  make(map[int64]*SlowAnalysisRecord),
		threshold:  threshold,
		maxEntries: maxEntries,
		nextID:     1,
	}
}

// IsSlow 检查分析耗时是否超过阈值
func (s *SlowAnalysisTracker) IsSlow(duration time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return duration >= s.threshold
}

// Record 记录一次超预算分析
func (s *SlowAnalysisTracker) Record(query string, duration time.Duration, tableName string, suggestions int) int64 {
	return s.RecordWithError(query, duration, tableName, suggestions, "")
}

// RecordWithError 记录带错误信息的超预算分析
func (s *SlowAnalysisTracker) RecordWithError(query string, duration time.Duration, tableName string, suggestions int, errMsg string) int64 {
	if !s.IsSlow(duration) {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := &SlowAnalysisRecord{
		ID:          s.nextID,
		Query:       query,
		Duration:    duration,
		Timestamp:   time.Now(),
		TableName:   tableName,
		Suggestions: suggestions,
		Source:      "system",
		Error:       errMsg,
	}

	s.recordMap[record.ID] = record
	s.records = append(s.records, record)
	s.nextID++

	// 如果超出最大条目数，移除最旧的记录
	if len(s.records) > s.maxEntries {
		oldest := s.records[0]
		delete(s.recordMap, oldest.ID)
		s.records = s.records[1:]
	}

	return record.ID
}

// Get 获取指定记录
func (s *SlowAnalysisTracker) Get(id int64) (*SlowAnalysisRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.recordMap[id]
	return record, ok
}

// GetAll 获取所有记录
func (s *SlowAnalysisTracker) GetAll() []*SlowAnalysisRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*SlowAnalysisRecord, len(s.records))
	copy(result, s.records)
	return result
}

// GetByTable 获取指定表的记录
func (s *SlowAnalysisTracker) GetByTable(tableName string) []*SlowAnalysisRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*SlowAnalysisRecord{}
	for _, record := range s.records {
		if record.TableName == tableName {
			result = append(result, record)
		}
	}
	return result
}

// GetByTimeRange 获取指定时间范围的记录
func (s *SlowAnalysisTracker) GetByTimeRange(start, end time.Time) []*SlowAnalysisRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*SlowAnalysisRecord{}
	for _, record := range s.records {
		// 包含边界：时间 >= start 且 <= end
		if !record.Timestamp.Before(start) && !record.Timestamp.After(end) {
			result = append(result, record)
		}
	}
	return result
}

// Count 获取记录总数
func (s *SlowAnalysisTracker) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Delete 删除指定记录
func (s *SlowAnalysisTracker) Delete(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recordMap[id]; !ok {
		return false
	}

	delete(s.recordMap, id)
	for i, record := range s.records {
		if record.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			break
		}
	}
	return true
}

// Clear 清空所有记录
func (s *SlowAnalysisTracker) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make([]*SlowAnalysisRecord, 0, s.maxEntries)
	s.recordMap = make(map[int64]*SlowAnalysisRecord)
	s.nextID = 1
}

// SetThreshold 设置阈值
func (s *SlowAnalysisTracker) SetThreshold(threshold time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threshold = threshold
}

// GetThreshold 获取阈值
func (s *SlowAnalysisTracker) GetThreshold() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threshold
}

// Summarize 汇总超预算分析
func (s *SlowAnalysisTracker) Summarize() *SlowAnalysisSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return &SlowAnalysisSummary{}
	}

	summary := &SlowAnalysisSummary{
		TotalAnalyses: len(s.records),
		TableStats:    make(map[string]*TableSlowAnalysisStats),
		MaxDuration:   s.records[0].Duration,
		MinDuration:   s.records[0].Duration,
	}

	totalDuration := time.Duration(0)
	totalSuggestions := 0

	for _, record := range s.records {
		totalDuration += record.Duration
		totalSuggestions += record.Suggestions

		if record.Duration > summary.MaxDuration {
			summary.MaxDuration = record.Duration
		}
		if record.Duration < summary.MinDuration {
			summary.MinDuration = record.Duration
		}

		if record.Error != "" {
			summary.ErrorCount++
		}

		// 表级别统计
		if stats, ok := summary.TableStats[record.TableName]; ok {
			stats.AnalysisCount++
			stats.TotalDuration += record.Duration
			if record.Duration > stats.MaxDuration {
				stats.MaxDuration = record.Duration
			}
		} else {
			summary.TableStats[record.TableName] = &TableSlowAnalysisStats{
				TableName:     record.TableName,
				AnalysisCount: 1,
				TotalDuration: record.Duration,
				MaxDuration:   record.Duration,
			}
		}
	}

	summary.TotalDuration = totalDuration
	summary.AvgDuration = totalDuration / time.Duration(len(s.records))
	summary.TotalSuggestions = totalSuggestions

	// 计算表级别的平均值
	for _, stats := range summary.TableStats {
		if stats.AnalysisCount > 0 {
			stats.AvgDuration = stats.TotalDuration / time.Duration(stats.AnalysisCount)
		}
	}

	return summary
}

// SlowAnalysisSummary 超预算分析汇总
type SlowAnalysisSummary struct {
	TotalAnalyses    int
	AvgDuration      time.Duration
	MaxDuration      time.Duration
	MinDuration      time.Duration
	TotalDuration    time.Duration
	TotalSuggestions int
	ErrorCount       int
	TableStats       map[string]*TableSlowAnalysisStats
}

// TableSlowAnalysisStats 表级别超预算分析统计
type TableSlowAnalysisStats struct {
	TableName     string
	AnalysisCount int
	TotalDuration time.Duration
	MaxDuration   time.Duration
	AvgDuration   time.Duration
}

// GetRecommendations 获取运维建议
func (s *SlowAnalysisTracker) GetRecommendations() []string {
	summary := s.Summarize()
	recommendations := []string{}

	// 基于超预算分析总数的建议
	if summary.TotalAnalyses > 100 {
		recommendations = append(recommendations, fmt.Sprintf("超预算分析数量过多(%d)，建议提高时长预算或简化查询", summary.TotalAnalyses))
	}

	// 基于平均时长的建议
	if summary.AvgDuration > time.Second {
		recommendations = append(recommendations, fmt.Sprintf("平均分析时长较长(%v)，建议开启结果缓存", summary.AvgDuration))
	}

	// 基于错误率的建议
	if summary.TotalAnalyses > 0 {
		errorRate := float64(summary.ErrorCount) / float64(summary.TotalAnalyses)
		if errorRate > 0.1 {
			recommendations = append(recommendations, fmt.Sprintf("超预算分析错误率过高(%.2f%%)，建议检查错误原因", errorRate*100))
		}
	}

	// 表级别建议
	for tableName, stats := range summary.TableStats {
		if stats.AnalysisCount > 10 {
			recommendations = append(recommendations, fmt.Sprintf("表 %s 有 %d 次超预算分析，建议检查该表的查询复杂度", tableName, stats.AnalysisCount))
		}
	}

	return recommendations
}

// AnalysisContext 单次分析的监控上下文
type AnalysisContext struct {
	Metrics   *MetricsCollector
	SlowLog   *SlowAnalysisTracker
	StartTime time.Time
	TableName string
	Query     string
}

// NewAnalysisContext 创建监控上下文
func NewAnalysisContext(metrics *MetricsCollector, slowLog *SlowAnalysisTracker, tableName, query string) *AnalysisContext {
	return &AnalysisContext{
		Metrics:   metrics,
		SlowLog:   slowLog,
		StartTime: time.Now(),
		TableName: tableName,
		Query:     query,
	}
}

// Start 开始监控
func (ac *AnalysisContext) Start() {
	if ac.Metrics != nil {
		ac.Metrics.StartAnalysis()
	}
}

// End 结束监控
func (ac *AnalysisContext) End(success bool, suggestions int, err error) {
	duration := time.Since(ac.StartTime)

	if ac.Metrics != nil {
		ac.Metrics.RecordAnalysis(duration, success, ac.TableName, suggestions)
		ac.Metrics.EndAnalysis()
	}

	if ac.SlowLog != nil && ac.SlowLog.IsSlow(duration) {
		if ac.Metrics != nil {
			ac.Metrics.RecordBudgetExceeded()
		}
		var errMsg string
		if err != nil {
			errMsg = err.Error()
		}
		ac.SlowLog.RecordWithError(ac.Query, duration, ac.TableName, suggestions, errMsg)
	}
}
