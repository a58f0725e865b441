package advisor

import (
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/sqladvisor/pkg/config"
	"github.com/kasuganosora/sqladvisor/pkg/monitor"
	"github.com/kasuganosora/sqladvisor/pkg/query"
	"github.com/kasuganosora/sqladvisor/pkg/statistics"
)

// QueryOptimizer 查询分析门面
// 统一调度索引建议、谓词下推、连接重排三类分析器，
// 单个分析器失败不阻断整体结果。
type QueryOptimizer struct {
	cfg      config.OptimizerConfig
	advisor  *IndexAdvisor
	pushdown *PushdownOptimizer
	reorder  *JoinReorderOptimizer

	cache   ResultCache
	metrics *monitor.MetricsCollector
	slowLog *monitor.SlowAnalysisTracker
}

// NewQueryOptimizer 创建查询分析门面，cfg 为 nil 时使用默认配置
func NewQueryOptimizer(cfg *config.OptimizerConfig) (*QueryOptimizer, error) {
	c := config.DefaultOptimizerConfig()
	if cfg != nil {
		c = *cfg
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &QueryOptimizer{
		cfg:      c,
		advisor:  NewIndexAdvisor(&c),
		pushdown: NewPushdownOptimizer(&c),
		reorder:  NewJoinReorderOptimizer(&c),
	}, nil
}

// SetStatistics 注入表统计信息，传给连接重排优化器
func (qo *QueryOptimizer) SetStatistics(stats statistics.TableStatistics) {
	qo.reorder.SetStatistics(stats)
}

// SetResultCache 注入结果缓存，nil 表示关闭缓存
func (qo *QueryOptimizer) SetResultCache(cache ResultCache) {
	qo.cache = cache
}

// SetMonitor 注入监控组件，任意一个可以为 nil
func (qo *QueryOptimizer) SetMonitor(metrics *monitor.MetricsCollector, slowLog *monitor.SlowAnalysisTracker) {
	qo.metrics = metrics
	qo.slowLog = slowLog
}

// Advisor 索引推荐器
func (qo *QueryOptimizer) Advisor() *IndexAdvisor { return qo.advisor }

// Pushdown 谓词下推优化器
func (qo *QueryOptimizer) Pushdown() *PushdownOptimizer { return qo.pushdown }

// Reorder 连接重排优化器
func (qo *QueryOptimizer) Reorder() *JoinReorderOptimizer { return qo.reorder }

// Config 当前生效的配置副本
func (qo *QueryOptimizer) Config() config.OptimizerConfig { return qo.cfg }

// Analyze 对查询源执行全量分析
// 配置开关控制各分析器，超时只告警不中断。
func (qo *QueryOptimizer) Analyze(src query.Source) (*OptimizationResult, error) {
	if src == nil {
		return nil, query.NewValidationError("source", "query source must not be nil")
	}

	// 1. 缓存命中直接返回
	fingerprint := Fingerprint(src)
	if qo.cache != nil {
		if cached, ok := qo.cache.Get(fingerprint); ok {
			if qo.cfg.VerboseOutput {
				log.Printf("[ADVISOR] cache hit for table %s", src.Table())
			}
			return cached, nil
		}
	}

	mctx := monitor.NewAnalysisContext(qo.metrics, qo.slowLog, src.Table(), describeSource(src))
	mctx.Start()
	start := time.Now()

	var firstErr error
	analyzerFailed := func(stage string, err error) {
		log.Printf("[ADVISOR] %s failed: %v", stage, err)
		if qo.metrics != nil {
			qo.metrics.RecordError(stage)
		}
		if firstErr == nil {
			firstErr = err
		}
	}

	// 2. 索引建议
	var indexSuggestions []IndexSuggestion
	if qo.cfg.EnableIndexSuggestions {
		suggestions, err := qo.advisor.AnalyzeQuery(src)
		if err != nil {
			analyzerFailed("index_analysis", err)
		} else {
			indexSuggestions = suggestions
		}
	}

	// 3. 谓词求值顺序
	var pushdownSuggestions []PushdownSuggestion
	if qo.cfg.EnablePredicateReordering {
		predicates := src.Predicates()
		if predicates == nil {
			predicates = []query.Predicate{}
		}
		suggestions, err := qo.pushdown.SuggestEvaluationOrder(predicates)
		if err != nil {
			analyzerFailed("pushdown_analysis", err)
		} else {
			pushdownSuggestions = suggestions
		}
	}

	// 4. 连接重排
	var joinSuggestions []JoinReorderSuggestion
	if qo.cfg.EnableJoinReordering {
		suggestions, err := qo.reorder.OptimizeJoinOrder(src)
		if err != nil {
			analyzerFailed("join_analysis", err)
		} else {
			joinSuggestions = suggestions
		}
	}

	elapsed := time.Since(start)
	result := NewOptimizationResult(uuid.NewString(), indexSuggestions, pushdownSuggestions, joinSuggestions, elapsed)

	// 5. 超预算只告警，结果照常返回
	if budget := qo.cfg.MaxAnalysisTime(); elapsed > budget {
		log.Printf("[ADVISOR] analysis %s exceeded time budget: %v > %v", result.AnalysisID(), elapsed, budget)
	}

	mctx.End(firstErr == nil, result.TotalSuggestionCount(), firstErr)

	// 分析是纯函数，部分失败的结果也可以缓存
	if qo.cache != nil {
		qo.cache.Put(fingerprint, result)
	}

	return result, nil
}

// describeSource 压缩成一行查询描述，用于慢分析日志
func describeSource(src query.Source) string {
	var b strings.Builder
	b.WriteString(src.Table())
	if predicates := src.Predicates(); len(predicates) > 0 {
		parts := make([]string, 0, len(predicates))
		for _, p := range predicates {
			if p != nil {
				parts = append(parts, p.SQL())
			}
		}
		if len(parts) > 0 {
			b.WriteString(" WHERE ")
			b.WriteString(strings.Join(parts, " AND "))
		}
	}
	if seq := src.JoinSequence(); len(seq) > 1 {
		b.WriteString(" JOIN ")
		b.WriteString(strings.Join(seq, ","))
	}
	return b.String()
}
