package monitor

import (
	"testing"
	"time"
)

func TestNewMetricsCollector(t *testing.T) {
	collector := NewMetricsCollector()
	if collector == nil {
		t.Fatal("NewMetricsCollector returned nil")
	}
	if collector.errorCount == nil {
		t.Error("errorCount map should be initialized")
	}
	if collector.tableAnalysisCount == nil {
		t.Error("tableAnalysisCount map should be initialized")
	}
	if collector.startTime.IsZero() {
		t.Error("startTime should be set")
	}
}

func TestRecordAnalysis(t *testing.T) {
	collector := NewMetricsCollector()

	// 记录成功分析
	collector.RecordAnalysis(100*time.Millisecond, true, "users", 3)
	if collector.GetAnalysisCount() != 1 {
		t.Errorf("AnalysisCount = %d, want 1", collector.GetAnalysisCount())
	}
	if collector.GetAnalysisSuccess() != 1 {
		t.Errorf("AnalysisSuccess = %d, want 1", collector.GetAnalysisSuccess())
	}
	if collector.GetSuggestionCount() != 3 {
		t.Errorf("SuggestionCount = %d, want 3", collector.GetSuggestionCount())
	}

	// 记录失败分析
	collector.RecordAnalysis(200*time.Millisecond, false, "orders", 0)
	if collector.GetAnalysisCount() != 2 {
		t.Errorf("AnalysisCount = %d, want 2", collector.GetAnalysisCount())
	}
	if collector.GetAnalysisError() != 1 {
		t.Errorf("AnalysisError = %d, want 1", collector.GetAnalysisError())
	}
}

func TestGetSuccessRate(t *testing.T) {
	collector := NewMetricsCollector()

	// 初始状态
	rate := collector.GetSuccessRate()
	if rate != 0 {
		t.Errorf("Initial success rate = %f, want 0", rate)
	}

	// 记录100%成功率
	collector.RecordAnalysis(100*time.Millisecond, true, "users", 1)
	rate = collector.GetSuccessRate()
	if rate != 100.0 {
		t.Errorf("Success rate = %f, want 100.0", rate)
	}

	// 50%成功率
	collector.RecordAnalysis(200*time.Millisecond, false, "orders", 0)
	rate = collector.GetSuccessRate()
	if rate != 50.0 {
		t.Errorf("Success rate = %f, want 50.0", rate)
	}
}

func TestGetAvgDuration(t *testing.T) {
	collector := NewMetricsCollector()

	// 初始状态
	avg := collector.GetAvgDuration()
	if avg != 0 {
		t.Errorf("Initial avg duration = %v, want 0", avg)
	}

	// 单次分析
	collector.RecordAnalysis(100*time.Millisecond, true, "users", 1)
	avg = collector.GetAvgDuration()
	if avg != 100*time.Millisecond {
		t.Errorf("Avg duration = %v, want 100ms", avg)
	}

	// 多次分析 (100ms + 200ms + 300ms) / 3 = 200ms
	collector.RecordAnalysis(200*time.Millisecond, true, "orders", 1)
	collector.RecordAnalysis(300*time.Millisecond, true, "products", 1)
	avg = collector.GetAvgDuration()
	if avg != 200*time.Millisecond {
		t.Errorf("Avg duration = %v, want 200ms", avg)
	}
}

func TestRecordBudgetExceeded(t *testing.T) {
	collector := NewMetricsCollector()

	collector.RecordBudgetExceeded()
	if collector.GetBudgetExceededCount() != 1 {
		t.Errorf("BudgetExceeded = %d, want 1", collector.GetBudgetExceededCount())
	}

	for i := 0; i < 5; i++ {
		collector.RecordBudgetExceeded()
	}
	if collector.GetBudgetExceededCount() != 6 {
		t.Errorf("BudgetExceeded = %d, want 6", collector.GetBudgetExceededCount())
	}
}

func TestStartEndAnalysis(t *testing.T) {
	collector := NewMetricsCollector()

	// 开始分析
	collector.StartAnalysis()
	active := collector.GetActiveAnalyses()
	if active != 1 {
		t.Errorf("Active analyses = %d, want 1", active)
	}

	// 开始更多分析
	collector.StartAnalysis()
	collector.StartAnalysis()
	active = collector.GetActiveAnalyses()
	if active != 3 {
		t.Errorf("Active analyses = %d, want 3", active)
	}

	// 结束分析
	collector.EndAnalysis()
	active = collector.GetActiveAnalyses()
	if active != 2 {
		t.Errorf("Active analyses = %d, want 2", active)
	}

	// 结束所有分析
	collector.EndAnalysis()
	collector.EndAnalysis()
	active = collector.GetActiveAnalyses()
	if active != 0 {
		t.Errorf("Active analyses = %d, want 0", active)
	}

	// 多余的 EndAnalysis 不会变成负数
	collector.EndAnalysis()
	if collector.GetActiveAnalyses() != 0 {
		t.Error("Active analyses should not go negative")
	}
}

func TestRecordError(t *testing.T) {
	collector := NewMetricsCollector()

	// 记录错误
	collector.RecordError("validation_error")
	collector.RecordError("parse_error")
	collector.RecordError("validation_error")

	// 检查特定错误计数
	count := collector.GetErrorCount("validation_error")
	if count != 2 {
		t.Errorf("validation_error count = %d, want 2", count)
	}

	count = collector.GetErrorCount("parse_error")
	if count != 1 {
		t.Errorf("parse_error count = %d, want 1", count)
	}

	// 检查不存在的错误
	count = collector.GetErrorCount("nonexistent")
	if count != 0 {
		t.Errorf("nonexistent error count = %d, want 0", count)
	}
}

func TestGetAllErrors(t *testing.T) {
	collector := NewMetricsCollector()

	collector.RecordError("error1")
	collector.RecordError("error2")
	collector.RecordError("error1")

	errors := collector.GetAllErrors()
	if len(errors) != 2 {
		t.Errorf("Error types count = %d, want 2", len(errors))
	}

	if errors["error1"] != 2 {
		t.Errorf("error1 count = %d, want 2", errors["error1"])
	}
	if errors["error2"] != 1 {
		t.Errorf("error2 count = %d, want 1", errors["error2"])
	}
}

func TestTableAnalysisCount(t *testing.T) {
	collector := NewMetricsCollector()

	// 记录表分析
	collector.RecordAnalysis(100*time.Millisecond, true, "users", 1)
	collector.RecordAnalysis(100*time.Millisecond, true, "orders", 1)
	collector.RecordAnalysis(100*time.Millisecond, true, "users", 1)

	count := collector.GetTableAnalysisCount("users")
	if count != 2 {
		t.Errorf("users analysis count = %d, want 2", count)
	}

	count = collector.GetTableAnalysisCount("orders")
	if count != 1 {
		t.Errorf("orders analysis count = %d, want 1", count)
	}

	// 检查不存在的表
	count = collector.GetTableAnalysisCount("nonexistent")
	if count != 0 {
		t.Errorf("nonexistent table count = %d, want 0", count)
	}

	counts := collector.GetAllTableAnalysisCount()
	if len(counts) != 2 {
		t.Errorf("Table count = %d, want 2", len(counts))
	}
}

func TestAnalysisWithNoTable(t *testing.T) {
	collector := NewMetricsCollector()

	collector.RecordAnalysis(100*time.Millisecond, true, "", 1)

	// 不应该记录表统计
	counts := collector.GetAllTableAnalysisCount()
	if len(counts) != 0 {
		t.Error("No table should be recorded when table is empty")
	}
}

func TestGetUptime(t *testing.T) {
	collector := NewMetricsCollector()

	uptime := collector.GetUptime()
	if uptime < 0 {
		t.Error("Uptime should be positive")
	}

	// 等待一段时间
	time.Sleep(10 * time.Millisecond)

	uptime2 := collector.GetUptime()
	if uptime2 <= uptime {
		t.Error("Uptime should increase")
	}
}

func TestReset(t *testing.T) {
	collector := NewMetricsCollector()

	// 添加一些数据
	collector.RecordAnalysis(100*time.Millisecond, true, "users", 2)
	collector.RecordAnalysis(200*time.Millisecond, false, "orders", 0)
	collector.RecordError("test_error")
	collector.RecordBudgetExceeded()
	collector.StartAnalysis()

	// 重置
	collector.Reset()

	// 验证所有数据已重置
	if collector.GetAnalysisCount() != 0 {
		t.Error("AnalysisCount should be 0 after reset")
	}
	if collector.GetAnalysisSuccess() != 0 {
		t.Error("AnalysisSuccess should be 0 after reset")
	}
	if collector.GetAnalysisError() != 0 {
		t.Error("AnalysisError should be 0 after reset")
	}
	if collector.GetBudgetExceededCount() != 0 {
		t.Error("BudgetExceeded should be 0 after reset")
	}
	if collector.GetActiveAnalyses() != 0 {
		t.Error("ActiveAnalyses should be 0 after reset")
	}
	if collector.GetSuggestionCount() != 0 {
		t.Error("SuggestionCount should be 0 after reset")
	}
	if len(collector.GetAllErrors()) != 0 {
		t.Error("Errors should be empty after reset")
	}
	if len(collector.GetAllTableAnalysisCount()) != 0 {
		t.Error("TableAnalysisCount should be empty after reset")
	}
}

func TestGetSnapshot(t *testing.T) {
	collector := NewMetricsCollector()

	// 添加一些数据
	collector.RecordAnalysis(100*time.Millisecond, true, "users", 2)
	collector.RecordAnalysis(200*time.Millisecond, false, "orders", 0)
	collector.RecordError("test_error")

	snapshot := collector.GetSnapshot()
	if snapshot == nil {
		t.Fatal("GetSnapshot() returned nil")
	}

	// 验证快照数据
	if snapshot.AnalysisCount != 2 {
		t.Errorf("Snapshot AnalysisCount = %d, want 2", snapshot.AnalysisCount)
	}
	if snapshot.AnalysisSuccess != 1 {
		t.Errorf("Snapshot AnalysisSuccess = %d, want 1", snapshot.AnalysisSuccess)
	}
	if snapshot.AnalysisError != 1 {
		t.Errorf("Snapshot AnalysisError = %d, want 1", snapshot.AnalysisError)
	}
	if snapshot.SuccessRate != 50.0 {
		t.Errorf("Snapshot SuccessRate = %f, want 50.0", snapshot.SuccessRate)
	}
	if snapshot.AvgDuration != 150*time.Millisecond {
		t.Errorf("Snapshot AvgDuration = %v, want 150ms", snapshot.AvgDuration)
	}
	if snapshot.SuggestionCount != 2 {
		t.Errorf("Snapshot SuggestionCount = %d, want 2", snapshot.SuggestionCount)
	}
	if len(snapshot.ErrorCount) != 1 {
		t.Errorf("Snapshot ErrorCount length = %d, want 1", len(snapshot.ErrorCount))
	}
	if len(snapshot.TableAnalysisCount) != 2 {
		t.Errorf("Snapshot TableAnalysisCount length = %d, want 2", len(snapshot.TableAnalysisCount))
	}
	if snapshot.Uptime < 0 {
		t.Error("Snapshot Uptime should be positive")
	}

	// 快照是副本，修改不影响收集器
	snapshot.ErrorCount["injected"] = 1
	if collector.GetErrorCount("injected") != 0 {
		t.Error("Snapshot maps should be copies")
	}
}

func TestConcurrentAccess(t *testing.T) {
	collector := NewMetricsCollector()
	done := make(chan bool)

	// 并发记录分析
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				collector.RecordAnalysis(100*time.Millisecond, true, "test", 1)
				collector.RecordError("test_error")
			}
			done <- true
		}()
	}

	// 等待所有goroutine完成
	for i := 0; i < 10; i++ {
		<-done
	}

	// 验证数据
	if collector.GetAnalysisCount() != 1000 {
		t.Errorf("AnalysisCount = %d, want 1000", collector.GetAnalysisCount())
	}
	if collector.GetErrorCount("test_error") != 1000 {
		t.Errorf("test_error count = %d, want 1000", collector.GetErrorCount("test_error"))
	}
}

func TestMetricsAccuracy(t *testing.T) {
	collector := NewMetricsCollector()

	durations := []time.Duration{50, 100, 150, 200, 250}
	total := time.Duration(0)
	for _, d := range durations {
		collector.RecordAnalysis(d, true, "test", 1)
		total += d
	}

	expectedAvg := total / time.Duration(len(durations))
	actualAvg := collector.GetAvgDuration()

	if actualAvg != expectedAvg {
		t.Errorf("AvgDuration = %v, want %v", actualAvg, expectedAvg)
	}
}
