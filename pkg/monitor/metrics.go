package monitor

import (
	"sync"
	"time"
)

// MetricsCollector 分析指标收集器
type MetricsCollector struct {
	mu                 sync.RWMutex
	analysisCount      int64
	analysisSuccess    int64
	analysisError      int64
	totalDuration      time.Duration
	budgetExceeded     int64
	activeAnalyses     int64
	suggestionCount    int64
	errorCount         map[string]int64
	tableAnalysisCount map[string]int64
	startTime          time.Time
}

// NewMetricsCollector 创建分析指标收集器
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		errorCount:         make(map[string]int64),
		tableAnalysisCount: make(map[string]int64),
		startTime:          time.Now(),
	}
}

// RecordAnalysis 记录一次分析
func (m *MetricsCollector) RecordAnalysis(duration time.Duration, success bool, tableName string, suggestions int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.analysisCount++
	m.totalDuration += duration

	if success {
		m.analysisSuccess++
		m.suggestionCount += int64(suggestions)
	} else {
		m.analysisError++
	}

	if tableName != "" {
		m.tableAnalysisCount[tableName]++
	}
}

// RecordError 记录错误
func (m *MetricsCollector) RecordError(errType string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.errorCount[errType]++
}

// RecordBudgetExceeded 记录超出时长预算的分析
func (m *MetricsCollector) RecordBudgetExceeded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.budgetExceeded++
}

// StartAnalysis 开始分析
func (m *MetricsCollector) StartAnalysis() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.activeAnalyses++
}

// EndAnalysis 结束分析
func (m *MetricsCollector) EndAnalysis() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeAnalyses > 0 {
		m.activeAnalyses--
	}
}

// GetAnalysisCount 获取分析总数
func (m *MetricsCollector) GetAnalysisCount() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.analysisCount
}

// GetAnalysisSuccess 获取成功分析数
func (m *MetricsCollector) GetAnalysisSuccess() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.analysisSuccess
}

// GetAnalysisError 获取失败分析数
func (m *MetricsCollector) GetAnalysisError() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.analysisError
}

// GetSuccessRate 获取成功率
func (m *MetricsCollector) GetSuccessRate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.analysisCount == 0 {
		return 0
	}
	return float64(m.analysisSuccess) / float64(m.analysisCount) * 100
}

// GetAvgDuration 获取平均分析时长
func (m *MetricsCollector) GetAvgDuration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.analysisCount == 0 {
		return 0
	}
	return m.totalDuration / time.Duration(m.analysisCount)
}

// GetBudgetExceededCount 获取超预算分析数量
func (m *MetricsCollector) GetBudgetExceededCount() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.budgetExceeded
}

// GetActiveAnalyses 获取当前进行中的分析数
func (m *MetricsCollector) GetActiveAnalyses() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeAnalyses
}

// GetSuggestionCount 获取累计建议数
func (m *MetricsCollector) GetSuggestionCount() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.suggestionCount
}

// GetErrorCount 获取指定类型的错误数
func (m *MetricsCollector) GetErrorCount(errType string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.errorCount[errType]
}

// GetAllErrors 获取所有错误统计
func (m *MetricsCollector) GetAllErrors() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]int64)
	for k, v := range m.errorCount {
		result[k] = v
	}
	return result
}

// GetTableAnalysisCount 获取表分析次数
func (m *MetricsCollector) GetTableAnalysisCount(tableName string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tableAnalysisCount[tableName]
}

// GetAllTableAnalysisCount 获取所有表的分析统计
func (m *MetricsCollector) GetAllTableAnalysisCount() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]int64)
	for k, v := range m.tableAnalysisCount {
		result[k] = v
	}
	return result
}

// GetUptime 获取运行时间
func (m *MetricsCollector) GetUptime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Since(m.startTime)
}

// Reset 重置所有指标
func (m *MetricsCollector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.analysisCount = 0
	m.analysisSuccess = 0
	m.analysisError = 0
	m.totalDuration = 0
	m.budgetExceeded = 0
	m.activeAnalyses = 0
	m.suggestionCount = 0
	m.errorCount = make(map[string]int64)
	m.tableAnalysisCount = make(map[string]int64)
	m.startTime = time.Now()
}

// AnalysisMetrics 分析指标快照
type AnalysisMetrics struct {
	AnalysisCount      int64
	AnalysisSuccess    int64
	AnalysisError      int64
	SuccessRate        float64
	AvgDuration        time.Duration
	BudgetExceeded     int64
	ActiveAnalyses     int64
	SuggestionCount    int64
	ErrorCount         map[string]int64
	TableAnalysisCount map[string]int64
	Uptime             time.Duration
}

// GetSnapshot 获取指标快照
func (m *MetricsCollector) GetSnapshot() *AnalysisMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Compute values inline to avoid re-acquiring the lock
	var successRate float64
	var avgDuration time.Duration
	if m.analysisCount > 0 {
		successRate = float64(m.analysisSuccess) / float64(m.analysisCount) * 100
		avgDuration = m.totalDuration / time.Duration(m.analysisCount)
	}

	errorsCopy := make(map[string]int64, len(m.errorCount))
	for k, v := range m.errorCount {
		errorsCopy[k] = v
	}

	tableCopy := make(map[string]int64, len(m.tableAnalysisCount))
	for k, v := range m.tableAnalysisCount {
		tableCopy[k] = v
	}

	return &AnalysisMetrics{
		AnalysisCount:      m.analysisCount,
		AnalysisSuccess:    m.analysisSuccess,
		AnalysisError:      m.analysisError,
		SuccessRate:        successRate,
		AvgDuration:        avgDuration,
		BudgetExceeded:     m.budgetExceeded,
		ActiveAnalyses:     m.activeAnalyses,
		SuggestionCount:    m.suggestionCount,
		ErrorCount:         errorsCopy,
		TableAnalysisCount: tableCopy,
		Uptime:             time.Since(m.startTime),
	}
}
