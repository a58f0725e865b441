package advisor

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kasuganosora/sqladvisor/pkg/query"
)

// IndexType 索引类型
type IndexType string

const (
	IndexTypeBTree     IndexType = "BTREE"
	IndexTypeComposite IndexType = "COMPOSITE"
)

// Priority 建议优先级
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// ReorderType 连接重排策略
type ReorderType string

const (
	ReorderSelectivityBased     ReorderType = "SELECTIVITY_BASED"
	ReorderCardinalityReduction ReorderType = "CARDINALITY_REDUCTION"
	ReorderIndexDriven          ReorderType = "INDEX_DRIVEN"
	ReorderCostBased            ReorderType = "COST_BASED"
	ReorderNestedLoop           ReorderType = "NESTED_LOOP_OPTIMIZATION"
)

// PushdownType 谓词下推策略
type PushdownType string

const (
	PushdownSelectivityReorder    PushdownType = "SELECTIVITY_REORDER"
	PushdownNestedConjunctReorder PushdownType = "NESTED_CONJUNCT_REORDER"
)

// priorityForSelectivity 按选择率划分优先级
// 选择率越低过滤越强，索引收益越高。
func priorityForSelectivity(selectivity float64) Priority {
	switch {
	case selectivity <= 0.1:
		return PriorityHigh
	case selectivity <= 0.3:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// priorityForImprovement 按收益比例划分优先级
func priorityForImprovement(improvement float64) Priority {
	switch {
	case improvement > 0.5:
		return PriorityHigh
	case improvement > 0.2:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// IndexSuggestion 索引建议
type IndexSuggestion struct {
	TableName            string    `json:"table_name"`
	Columns              []string  `json:"columns"`
	IndexType            IndexType `json:"index_type"`
	Priority             Priority  `json:"priority"`
	EstimatedSelectivity float64   `json:"estimated_selectivity"`
	Reason               string    `json:"reason"`
	IndexName            string    `json:"index_name"`
}

// CreateIndexSQL 生成建索引语句，不带结尾分号
func (s *IndexSuggestion) CreateIndexSQL() string {
	name := s.IndexName
	if name == "" {
		name = defaultIndexName(s.TableName, s.Columns)
	}
	return fmt.Sprintf("CREATE INDEX %s ON %s (%s)", name, sanitizeIdent(s.TableName), strings.Join(sanitizeIdents(s.Columns), ", "))
}

// sanitizeIdent 把标识符收敛到 [A-Za-z0-9_]
func sanitizeIdent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func sanitizeIdents(names []string) []string {
	result := make([]string, len(names))
	for i, n := range names {
		result[i] = sanitizeIdent(n)
	}
	return result
}

// defaultIndexName 生成索引名 idx_表名_列名
func defaultIndexName(tableName string, columns []string) string {
	parts := append([]string{"idx", sanitizeIdent(tableName)}, sanitizeIdents(columns)...)
	return strings.Join(parts, "_")
}

// PushdownSuggestion 谓词求值顺序建议
type PushdownSuggestion struct {
	Predicate            string       `json:"predicate"`
	OriginalPosition     int          `json:"original_position"`
	SuggestedPosition    int          `json:"suggested_position"`
	EstimatedSelectivity float64      `json:"estimated_selectivity"`
	OptimizationType     PushdownType `json:"optimization_type"`
	Reason               string       `json:"reason"`
}

// DefaultJoinImpact 连接重排建议的默认收益描述
const DefaultJoinImpact = "Reduced intermediate join result sizes"

// JoinReorderSuggestion 连接顺序建议
type JoinReorderSuggestion struct {
	OriginalSequence      []string              `json:"original_sequence"`
	SuggestedSequence     []string              `json:"suggested_sequence"`
	EstimatedImprovement  float64               `json:"estimated_improvement"`
	Priority              Priority              `json:"priority"`
	ReorderType           ReorderType           `json:"reorder_type"`
	InfluencingConditions []query.JoinCondition `json:"influencing_conditions,omitempty"`
	Reason                string                `json:"reason"`
	ExpectedImpact        string                `json:"expected_impact"`
}

// OptimizationResult 一次分析的汇总结果
// 字段不可变，访问器返回副本。
type OptimizationResult struct {
	analysisID             string
	indexSuggestions       []IndexSuggestion
	pushdownSuggestions    []PushdownSuggestion
	joinReorderSuggestions []JoinReorderSuggestion
	analysisTime           time.Duration
}

// NewOptimizationResult 创建分析结果，入参切片会被拷贝
func NewOptimizationResult(
	analysisID string,
	indexSuggestions []IndexSuggestion,
	pushdownSuggestions []PushdownSuggestion,
	joinReorderSuggestions []JoinReorderSuggestion,
	analysisTime time.Duration,
) *OptimizationResult {
	return &OptimizationResult{
		analysisID:             analysisID,
		indexSuggestions:       append([]IndexSuggestion(nil), indexSuggestions...),
		pushdownSuggestions:    append([]PushdownSuggestion(nil), pushdownSuggestions...),
		joinReorderSuggestions: append([]JoinReorderSuggestion(nil), joinReorderSuggestions...),
		analysisTime:           analysisTime,
	}
}

// AnalysisID 分析标识
func (r *OptimizationResult) AnalysisID() string { return r.analysisID }

// AnalysisTime 分析耗时
func (r *OptimizationResult) AnalysisTime() time.Duration { return r.analysisTime }

// IndexSuggestions 索引建议副本
func (r *OptimizationResult) IndexSuggestions() []IndexSuggestion {
	return append([]IndexSuggestion(nil), r.indexSuggestions...)
}

// PushdownSuggestions 谓词下推建议副本
func (r *OptimizationResult) PushdownSuggestions() []PushdownSuggestion {
	return append([]PushdownSuggestion(nil), r.pushdownSuggestions...)
}

// JoinReorderSuggestions 连接重排建议副本
func (r *OptimizationResult) JoinReorderSuggestions() []JoinReorderSuggestion {
	return append([]JoinReorderSuggestion(nil), r.joinReorderSuggestions...)
}

// TotalSuggestionCount 建议总数
func (r *OptimizationResult) TotalSuggestionCount() int {
	return len(r.indexSuggestions) + len(r.pushdownSuggestions) + len(r.joinReorderSuggestions)
}

// HasSuggestions 是否产生了任何建议
func (r *OptimizationResult) HasSuggestions() bool {
	return r.TotalSuggestionCount() > 0
}

// Summary 单行汇总
func (r *OptimizationResult) Summary() string {
	return fmt.Sprintf("%d index, %d pushdown, %d join reorder suggestions in %v",
		len(r.indexSuggestions), len(r.pushdownSuggestions), len(r.joinReorderSuggestions), r.analysisTime)
}

// optimizationResultJSON 序列化中转结构
type optimizationResultJSON struct {
	AnalysisID             string                  `json:"analysis_id"`
	IndexSuggestions       []IndexSuggestion       `json:"index_suggestions"`
	PushdownSuggestions    []PushdownSuggestion    `json:"pushdown_suggestions"`
	JoinReorderSuggestions []JoinReorderSuggestion `json:"join_reorder_suggestions"`
	AnalysisTimeNs         int64                   `json:"analysis_time_ns"`
}

// MarshalJSON 实现 json.Marshaler
func (r *OptimizationResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(optimizationResultJSON{
		AnalysisID:             r.analysisID,
		IndexSuggestions:       r.indexSuggestions,
		PushdownSuggestions:    r.pushdownSuggestions,
		JoinReorderSuggestions: r.joinReorderSuggestions,
		AnalysisTimeNs:         int64(r.analysisTime),
	})
}

// UnmarshalJSON 实现 json.Unmarshaler
func (r *OptimizationResult) UnmarshalJSON(data []byte) error {
	var j optimizationResultJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	r.analysisID = j.AnalysisID
	r.indexSuggestions = j.IndexSuggestions
	r.pushdownSuggestions = j.PushdownSuggestions
	r.joinReorderSuggestions = j.JoinReorderSuggestions
	r.analysisTime = time.Duration(j.AnalysisTimeNs)
	return nil
}
