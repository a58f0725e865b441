package advisor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kasuganosora/sqladvisor/pkg/config"
	"github.com/kasuganosora/sqladvisor/pkg/query"
	"github.com/kasuganosora/sqladvisor/pkg/statistics"
)

// joinFieldSelectivity 连接字段的默认选择率，等值连接过滤能力强
const joinFieldSelectivity = 0.1

// IndexAdvisor 索引推荐器
// 基于谓词形态和选择率估算推荐单列与组合索引。
type IndexAdvisor struct {
	cfg       config.OptimizerConfig
	estimator *statistics.SelectivityEstimator
}

// NewIndexAdvisor 创建索引推荐器，cfg 为 nil 时使用默认配置
func NewIndexAdvisor(cfg *config.OptimizerConfig) *IndexAdvisor {
	c := config.DefaultOptimizerConfig()
	if cfg != nil {
		c = *cfg
	}
	return &IndexAdvisor{
		cfg:       c,
		estimator: statistics.NewSelectivityEstimator(),
	}
}

// indexCandidate 索引候选，定名在批量去重之后统一进行
type indexCandidate struct {
	tableName   string
	columns     []string
	indexType   IndexType
	selectivity float64
	reason      string
}

// AnalyzePredicates 分析过滤谓词并产出索引建议
// 同一列多个候选只保留选择率最低的一个，保持首次出现顺序。
func (ia *IndexAdvisor) AnalyzePredicates(tableName string, predicates []query.Predicate) ([]IndexSuggestion, error) {
	if predicates == nil {
		return nil, query.NewValidationError("predicates", "predicates list must not be nil")
	}
	tableName = strings.TrimSpace(tableName)
	if tableName == "" {
		return nil, query.NewValidationError("tableName", "table name must not be empty")
	}

	var candidates []indexCandidate
	for _, p := range predicates {
		candidates = append(candidates, ia.collectPredicateCandidates(tableName, p)...)
	}

	candidates = dedupeByColumn(candidates)
	candidates = ia.filterBySelectivity(candidates)

	return finalizeSuggestions(candidates), nil
}

// splitQualified 拆出字段的表限定前缀，未限定时落到给定默认表
// "orders.total" -> ("orders", "total")，"shop.orders.total" -> ("shop.orders", "total")。
func splitQualified(defaultTable, field string) (string, string) {
	idx := strings.LastIndex(field, ".")
	if idx < 0 {
		return defaultTable, field
	}
	return field[:idx], field[idx+1:]
}

// collectPredicateCandidates 按谓词形态收集候选，逻辑谓词递归展开
// 字段带表限定时建议挂到限定的表上，连接查询的谓词由此各归各表。
func (ia *IndexAdvisor) collectPredicateCandidates(tableName string, p query.Predicate) []indexCandidate {
	if p == nil {
		return nil
	}

	switch pred := p.(type) {
	case *query.Simple:
		tbl, col := splitQualified(tableName, pred.Field)
		return []indexCandidate{{
			tableName:   tbl,
			columns:     []string{col},
			indexType:   IndexTypeBTree,
			selectivity: ia.estimator.Estimate(pred),
			reason:      fmt.Sprintf("Equality/comparison predicate on column %s", col),
		}}
	case *query.In:
		tbl, col := splitQualified(tableName, pred.Field)
		return []indexCandidate{{
			tableName:   tbl,
			columns:     []string{col},
			indexType:   IndexTypeBTree,
			selectivity: ia.estimator.Estimate(pred),
			reason:      fmt.Sprintf("IN clause optimization for column %s (%d values)", col, len(pred.Values)),
		}}
	case *query.Between:
		tbl, col := splitQualified(tableName, pred.Field)
		return []indexCandidate{{
			tableName:   tbl,
			columns:     []string{col},
			indexType:   IndexTypeBTree,
			selectivity: ia.estimator.Estimate(pred),
			reason:      fmt.Sprintf("Range query optimization for column %s", col),
		}}
	case *query.Like:
		tbl, col := splitQualified(tableName, pred.Field)
		return []indexCandidate{{
			tableName:   tbl,
			columns:     []string{col},
			indexType:   IndexTypeBTree,
			selectivity: ia.estimator.Estimate(pred),
			reason:      fmt.Sprintf("Text search optimization for column %s (%s pattern)", col, pred.PatternKind()),
		}}
	case *query.Logical:
		var candidates []indexCandidate
		for _, child := range pred.Children {
			candidates = append(candidates, ia.collectPredicateCandidates(tableName, child)...)
		}
		return candidates
	default:
		// NULL 判断和未知形态的谓词索引收益有限，跳过
		return nil
	}
}

// AnalyzeJoinConditions 为连接字段推荐索引
// 连接两侧的表都会得到建议，已声明有索引的条件跳过。
func (ia *IndexAdvisor) AnalyzeJoinConditions(conditions []query.JoinCondition) ([]IndexSuggestion, error) {
	if conditions == nil {
		return nil, query.NewValidationError("conditions", "join conditions list must not be nil")
	}

	var candidates []indexCandidate
	for _, cond := range conditions {
		if cond.JoinField == "" || cond.LeftTable == "" || cond.RightTable == "" {
			continue
		}
		if cond.HasIndex {
			continue
		}
		reason := fmt.Sprintf("Join optimization for join field %s", cond.JoinField)
		candidates = append(candidates,
			indexCandidate{
				tableName:   cond.LeftTable,
				columns:     []string{cond.JoinField},
				indexType:   IndexTypeBTree,
				selectivity: joinFieldSelectivity,
				reason:      reason,
			},
			indexCandidate{
				tableName:   cond.RightTable,
				columns:     []string{cond.JoinField},
				indexType:   IndexTypeBTree,
				selectivity: joinFieldSelectivity,
				reason:      reason,
			},
		)
	}

	candidates = dedupeByColumn(candidates)

	return finalizeSuggestions(candidates), nil
}

// SuggestCompositeIndexes 基于列使用频率推荐组合索引
// columnUsage 记录每列在查询中出现的次数，threshold 为入选的最低频率占比。
func (ia *IndexAdvisor) SuggestCompositeIndexes(tableName string, columnUsage map[string]int, threshold float64) ([]IndexSuggestion, error) {
	if threshold < 0.0 || threshold > 1.0 {
		return nil, query.NewValidationError("threshold", "threshold must be between 0.0 and 1.0")
	}
	tableName = strings.TrimSpace(tableName)
	if tableName == "" {
		return nil, query.NewValidationError("tableName", "table name must not be empty")
	}
	if len(columnUsage) == 0 {
		return []IndexSuggestion{}, nil
	}

	// 1. 统计总使用次数，非正计数不参与
	totalUsage := 0
	for _, count := range columnUsage {
		if count > 0 {
			totalUsage += count
		}
	}
	if totalUsage == 0 {
		return []IndexSuggestion{}, nil
	}

	// 2. 频率超过阈值占比的列入选
	type columnCount struct {
		column string
		count  int
	}
	var qualified []columnCount
	for column, count := range columnUsage {
		if count <= 0 {
			continue
		}
		if float64(count) > threshold*float64(totalUsage) {
			qualified = append(qualified, columnCount{column: column, count: count})
		}
	}

	// 3. 按使用次数降序排列，次数相同按列名排序保证稳定
	sort.Slice(qualified, func(i, j int) bool {
		if qualified[i].count != qualified[j].count {
			return qualified[i].count > qualified[j].count
		}
		return qualified[i].column < qualified[j].column
	})

	// 4. 截断到最大组合列数，不足两列不成组合索引
	maxColumns := ia.cfg.MaxCompositeIndexColumns
	if maxColumns < 2 {
		maxColumns = 2
	}
	if len(qualified) > maxColumns {
		qualified = qualified[:maxColumns]
	}
	if len(qualified) < 2 {
		return []IndexSuggestion{}, nil
	}

	columns := make([]string, len(qualified))
	for i, qc := range qualified {
		columns[i] = qc.column
	}

	// 组合索引列越多过滤越精确
	selectivity := 0.1 / float64(len(columns))
	if selectivity < 0.01 {
		selectivity = 0.01
	}

	candidate := indexCandidate{
		tableName:   tableName,
		columns:     columns,
		indexType:   IndexTypeComposite,
		selectivity: selectivity,
		reason:      fmt.Sprintf("Frequently used columns: %s", strings.Join(columns, ", ")),
	}

	return finalizeSuggestions([]indexCandidate{candidate}), nil
}

// AnalyzeQuery 对完整查询做索引分析，合并谓词与连接两路建议
func (ia *IndexAdvisor) AnalyzeQuery(src query.Source) ([]IndexSuggestion, error) {
	if src == nil {
		return nil, query.NewValidationError("source", "query source must not be nil")
	}
	tableName := strings.TrimSpace(src.Table())
	if tableName == "" {
		return nil, query.NewValidationError("tableName", "table name must not be empty")
	}

	// 1. 主表过滤谓词候选
	var candidates []indexCandidate
	for _, p := range src.Predicates() {
		candidates = append(candidates, ia.collectPredicateCandidates(tableName, p)...)
	}
	candidates = ia.filterBySelectivity(candidates)

	// 2. 连接字段候选
	for _, cond := range src.JoinConditions() {
		if cond.JoinField == "" || cond.LeftTable == "" || cond.RightTable == "" || cond.HasIndex {
			continue
		}
		reason := fmt.Sprintf("Join optimization for join field %s", cond.JoinField)
		candidates = append(candidates,
			indexCandidate{
				tableName:   cond.LeftTable,
				columns:     []string{cond.JoinField},
				indexType:   IndexTypeBTree,
				selectivity: joinFieldSelectivity,
				reason:      reason,
			},
			indexCandidate{
				tableName:   cond.RightTable,
				columns:     []string{cond.JoinField},
				indexType:   IndexTypeBTree,
				selectivity: joinFieldSelectivity,
				reason:      reason,
			},
		)
	}

	// 3. 跨两路去重后统一定名
	candidates = dedupeByColumn(candidates)

	return finalizeSuggestions(candidates), nil
}

// filterBySelectivity 过滤掉选择率超过阈值的候选
func (ia *IndexAdvisor) filterBySelectivity(candidates []indexCandidate) []indexCandidate {
	var kept []indexCandidate
	for _, c := range candidates {
		if c.selectivity <= ia.cfg.IndexSelectivityThreshold {
			kept = append(kept, c)
		}
	}
	return kept
}

// dedupeByColumn 同表同列集合只保留选择率最低的候选，次序按首次出现
func dedupeByColumn(candidates []indexCandidate) []indexCandidate {
	best := make(map[string]int)
	var kept []indexCandidate

	for _, c := range candidates {
		key := fmt.Sprintf("%s(%s)", c.tableName, strings.Join(c.columns, ","))
		if pos, ok := best[key]; ok {
			if c.selectivity < kept[pos].selectivity {
				kept[pos] = c
			}
			continue
		}
		best[key] = len(kept)
		kept = append(kept, c)
	}

	return kept
}

// finalizeSuggestions 候选转建议并分配批内唯一的索引名
func finalizeSuggestions(candidates []indexCandidate) []IndexSuggestion {
	suggestions := make([]IndexSuggestion, 0, len(candidates))
	used := make(map[string]bool)

	for _, c := range candidates {
		name := defaultIndexName(c.tableName, c.columns)
		if used[name] {
			for i := 2; ; i++ {
				next := fmt.Sprintf("%s_%d", name, i)
				if !used[next] {
					name = next
					break
				}
			}
		}
		used[name] = true

		suggestions = append(suggestions, IndexSuggestion{
			TableName:            c.tableName,
			Columns:              append([]string(nil), c.columns...),
			IndexType:            c.indexType,
			Priority:             priorityForSelectivity(c.selectivity),
			EstimatedSelectivity: c.selectivity,
			Reason:               c.reason,
			IndexName:            name,
		})
	}

	return suggestions
}
