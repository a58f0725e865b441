package advisor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kasuganosora/sqladvisor/pkg/config"
	"github.com/kasuganosora/sqladvisor/pkg/query"
	"github.com/kasuganosora/sqladvisor/pkg/statistics"
)

const (
	// defaultTableRows 无统计信息时的行数假设
	defaultTableRows = 1000.0
	// neutralJoinSelectivity 无连接条件可用时的中性选择率
	neutralJoinSelectivity = 0.5
)

// JoinReorderOptimizer 连接顺序优化器
// 以左深连接树的代价模型比较原始顺序与贪心重排后的顺序。
type JoinReorderOptimizer struct {
	cfg   config.OptimizerConfig
	stats statistics.TableStatistics
}

// NewJoinReorderOptimizer 创建连接重排优化器，cfg 为 nil 时使用默认配置
func NewJoinReorderOptimizer(cfg *config.OptimizerConfig) *JoinReorderOptimizer {
	c := config.DefaultOptimizerConfig()
	if cfg != nil {
		c = *cfg
	}
	return &JoinReorderOptimizer{cfg: c}
}

// SetStatistics 注入表统计信息，nil 表示退回纯选择率模式
func (jo *JoinReorderOptimizer) SetStatistics(stats statistics.TableStatistics) {
	jo.stats = stats
}

// joinEdge 两表之间的连接边，多个条件合并取最强的一个
type joinEdge struct {
	left        string
	right       string
	selectivity float64
	hasIndex    bool
}

// pairKey 无序表对的键
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// AnalyzeJoinSequence 分析连接顺序并在收益达到阈值时给出重排建议
// 贪心策略：先连最强过滤的表对，再逐步挂接代价最低的相邻表，
// 无条件可达的表保持原有相对顺序附在末尾。
func (jo *JoinReorderOptimizer) AnalyzeJoinSequence(sequence []string, conditions []query.JoinCondition) ([]JoinReorderSuggestion, error) {
	if sequence == nil {
		return nil, query.NewValidationError("sequence", "join sequence must not be nil")
	}
	if conditions == nil {
		return nil, query.NewValidationError("conditions", "join conditions list must not be nil")
	}

	normalized := normalizeSequence(sequence)
	distinct, counts := distinctTables(normalized)
	if len(distinct) <= 1 {
		return []JoinReorderSuggestion{}, nil
	}

	// 1. 构边，只使用两端都在序列里的条件
	tableSet := make(map[string]bool, len(distinct))
	for _, t := range distinct {
		tableSet[t] = true
	}

	edges := make(map[string]*joinEdge)
	var influencing []query.JoinCondition
	seenConds := make(map[string]bool)
	for _, cond := range conditions {
		if !tableSet[cond.LeftTable] || !tableSet[cond.RightTable] || cond.LeftTable == cond.RightTable {
			continue
		}
		condKey := pairKey(cond.LeftTable, cond.RightTable) + "|" + cond.JoinField
		if !seenConds[condKey] {
			seenConds[condKey] = true
			influencing = append(influencing, cond)
		}

		key := pairKey(cond.LeftTable, cond.RightTable)
		if e, ok := edges[key]; ok {
			if cond.Selectivity < e.selectivity {
				e.selectivity = cond.Selectivity
			}
			e.hasIndex = e.hasIndex || cond.HasIndex
		} else {
			edges[key] = &joinEdge{
				left:        cond.LeftTable,
				right:       cond.RightTable,
				selectivity: cond.Selectivity,
				hasIndex:    cond.HasIndex,
			}
		}
	}
	if len(edges) == 0 {
		return []JoinReorderSuggestion{}, nil
	}

	// 2. 两张表且有统计信息时走小表驱动路径
	if len(distinct) == 2 && jo.stats != nil {
		candidate := append([]string(nil), distinct...)
		sort.SliceStable(candidate, func(i, j int) bool {
			return jo.tableRows(candidate[i]) < jo.tableRows(candidate[j])
		})
		if sameOrder(candidate, distinct) {
			return []JoinReorderSuggestion{}, nil
		}
		improvement := jo.EstimateCardinalityReduction(distinct, jo.stats)
		if improvement <= 0 || improvement < jo.cfg.JoinReorderingThreshold {
			return []JoinReorderSuggestion{}, nil
		}
		suggestion := JoinReorderSuggestion{
			OriginalSequence:      normalized,
			SuggestedSequence:     expandWithCounts(candidate, counts),
			EstimatedImprovement:  improvement,
			Priority:              priorityForImprovement(improvement),
			ReorderType:           ReorderNestedLoop,
			InfluencingConditions: influencing,
			Reason:                "Driving the join with the smaller table reduces nested loop iterations",
			ExpectedImpact:        DefaultJoinImpact,
		}
		return []JoinReorderSuggestion{suggestion}, nil
	}

	// 3. 贪心生成候选顺序
	candidate := jo.greedyOrder(distinct, edges)
	if sameOrder(candidate, distinct) {
		return []JoinReorderSuggestion{}, nil
	}

	// 4. 代价对比
	origCost := jo.sequenceCost(distinct, edges)
	candCost := jo.sequenceCost(candidate, edges)
	improvement := costImprovement(origCost, candCost)
	if improvement <= 0 || improvement < jo.cfg.JoinReorderingThreshold {
		return []JoinReorderSuggestion{}, nil
	}

	reorderType := ReorderSelectivityBased
	reason := "Joining low-selectivity pairs first reduces intermediate result sizes"
	if jo.stats != nil {
		reorderType = ReorderCostBased
		reason = fmt.Sprintf("Cost-based reordering using table statistics reduces estimated join cost by %.0f%%", improvement*100)
	}

	suggestion := JoinReorderSuggestion{
		OriginalSequence:      normalized,
		SuggestedSequence:     expandWithCounts(candidate, counts),
		EstimatedImprovement:  improvement,
		Priority:              priorityForImprovement(improvement),
		ReorderType:           reorderType,
		InfluencingConditions: influencing,
		Reason:                reason,
		ExpectedImpact:        DefaultJoinImpact,
	}
	return []JoinReorderSuggestion{suggestion}, nil
}

// greedyOrder 贪心排序：种子取选择率最低的边，之后每步挂接代价最低的未放置表
func (jo *JoinReorderOptimizer) greedyOrder(distinct []string, edges map[string]*joinEdge) []string {
	position := make(map[string]int, len(distinct))
	for i, t := range distinct {
		position[t] = i
	}

	// 种子边：选择率最低，平手先取有索引的，再按键名
	var seed *joinEdge
	var seedKey string
	for key, e := range edges {
		if seed == nil || betterEdge(e, key, seed, seedKey) {
			seed = e
			seedKey = key
		}
	}

	first, second := seed.left, seed.right
	if position[second] < position[first] {
		first, second = second, first
	}

	order := []string{first, second}
	placed := map[string]bool{first: true, second: true}

	// 逐步扩展
	for len(order) < len(distinct) {
		var best *joinEdge
		var bestKey, bestNext string
		for key, e := range edges {
			var next string
			switch {
			case placed[e.left] && !placed[e.right]:
				next = e.right
			case placed[e.right] && !placed[e.left]:
				next = e.left
			default:
				continue
			}
			if best == nil || betterEdge(e, key, best, bestKey) {
				best = e
				bestKey = key
				bestNext = next
			}
		}
		if best == nil {
			// 不连通的表保持原有相对顺序
			for _, t := range distinct {
				if !placed[t] {
					order = append(order, t)
					placed[t] = true
				}
			}
			break
		}
		order = append(order, bestNext)
		placed[bestNext] = true
	}

	return order
}

// betterEdge 边的优先序：选择率低优先，平手有索引优先，再按键名定序
func betterEdge(e *joinEdge, key string, than *joinEdge, thanKey string) bool {
	if e.selectivity != than.selectivity {
		return e.selectivity < than.selectivity
	}
	if e.hasIndex != than.hasIndex {
		return e.hasIndex
	}
	return key < thanKey
}

// sequenceCost 左深连接树代价
// 每步代价为当前中间结果行数乘以下一张表的行数，
// 中间结果按最优连接选择率收缩，最终连接积与顺序无关，不计入。
func (jo *JoinReorderOptimizer) sequenceCost(seq []string, edges map[string]*joinEdge) float64 {
	if len(seq) == 0 {
		return 0
	}
	current := jo.tableRows(seq[0])
	total := 0.0
	placed := []string{seq[0]}
	for _, t := range seq[1:] {
		sel := neutralJoinSelectivity
		for _, p := range placed {
			if e, ok := edges[pairKey(p, t)]; ok && e.selectivity < sel {
				sel = e.selectivity
			}
		}
		rows := jo.tableRows(t)
		total += current * rows
		current = current * rows * sel
		placed = append(placed, t)
	}
	return total
}

// tableRows 表行数，统计缺失时使用默认值
func (jo *JoinReorderOptimizer) tableRows(table string) float64 {
	if jo.stats != nil {
		if rc := jo.stats.EstimatedRowCount(table); rc != statistics.UnknownRowCount {
			return float64(rc)
		}
	}
	return defaultTableRows
}

// EstimateCardinalityReduction 估算按行数升序重排能减少的中间结果比例
// 代价取各前缀中间结果行数之和，末项是与顺序无关的完整连接积，不计入。
// 返回 [0,1]，序列不足两张表或统计缺失时为 0。
func (jo *JoinReorderOptimizer) EstimateCardinalityReduction(sequence []string, stats statistics.TableStatistics) float64 {
	if stats == nil {
		return 0.0
	}
	distinct, _ := distinctTables(sequence)
	if len(distinct) <= 1 {
		return 0.0
	}

	rows := func(t string) float64 {
		if rc := stats.EstimatedRowCount(t); rc != statistics.UnknownRowCount {
			return float64(rc)
		}
		return defaultTableRows
	}

	candidate := append([]string(nil), distinct...)
	sort.SliceStable(candidate, func(i, j int) bool {
		return rows(candidate[i]) < rows(candidate[j])
	})

	cost := func(seq []string) float64 {
		current := rows(seq[0])
		total := current
		for i := 1; i < len(seq)-1; i++ {
			sel := stats.JoinSelectivity(seq[i-1], seq[i], "")
			if sel == statistics.UnknownSelectivity {
				sel = neutralJoinSelectivity
			}
			current = current * rows(seq[i]) * sel
			total += current
		}
		return total
	}

	return costImprovement(cost(distinct), cost(candidate))
}

// OptimizeForIndexUsage 让索引多的表尽早参与连接
// indexInfo 为表名到该表索引列的映射。
func (jo *JoinReorderOptimizer) OptimizeForIndexUsage(sequence []string, indexInfo map[string][]string) ([]JoinReorderSuggestion, error) {
	if sequence == nil {
		return nil, query.NewValidationError("sequence", "join sequence must not be nil")
	}
	if indexInfo == nil {
		return nil, query.NewValidationError("indexInfo", "index info map must not be nil")
	}

	normalized := normalizeSequence(sequence)
	distinct, counts := distinctTables(normalized)
	if len(distinct) <= 1 {
		return []JoinReorderSuggestion{}, nil
	}

	idxCount := func(t string) int { return len(indexInfo[t]) }

	candidate := append([]string(nil), distinct...)
	sort.SliceStable(candidate, func(i, j int) bool {
		return idxCount(candidate[i]) > idxCount(candidate[j])
	})
	if sameOrder(candidate, distinct) {
		return []JoinReorderSuggestion{}, nil
	}

	// 改进比例按修复的逆序对占比计算
	inversions := 0
	pairs := 0
	for i := 0; i < len(distinct); i++ {
		for j := i + 1; j < len(distinct); j++ {
			pairs++
			if idxCount(distinct[i]) < idxCount(distinct[j]) {
				inversions++
			}
		}
	}
	improvement := float64(inversions) / float64(pairs)
	if improvement <= 0 || improvement < jo.cfg.JoinReorderingThreshold {
		return []JoinReorderSuggestion{}, nil
	}

	suggestion := JoinReorderSuggestion{
		OriginalSequence:     normalized,
		SuggestedSequence:    expandWithCounts(candidate, counts),
		EstimatedImprovement: improvement,
		Priority:             priorityForImprovement(improvement),
		ReorderType:          ReorderIndexDriven,
		Reason:               "Tables with more indexes join earlier for index-assisted lookups",
		ExpectedImpact:       DefaultJoinImpact,
	}
	return []JoinReorderSuggestion{suggestion}, nil
}

// OptimizeJoinOrder 对查询源做连接顺序分析
// 有连接条件走选择率/代价路径，只有统计信息时退化为按行数升序。
func (jo *JoinReorderOptimizer) OptimizeJoinOrder(src query.Source) ([]JoinReorderSuggestion, error) {
	if src == nil {
		return nil, query.NewValidationError("source", "query source must not be nil")
	}

	sequence := src.JoinSequence()
	conditions := src.JoinConditions()

	if len(conditions) > 0 {
		return jo.AnalyzeJoinSequence(sequence, conditions)
	}

	normalized := normalizeSequence(sequence)
	distinct, counts := distinctTables(normalized)
	if len(distinct) <= 1 || jo.stats == nil {
		return []JoinReorderSuggestion{}, nil
	}

	candidate := append([]string(nil), distinct...)
	sort.SliceStable(candidate, func(i, j int) bool {
		return jo.tableRows(candidate[i]) < jo.tableRows(candidate[j])
	})
	if sameOrder(candidate, distinct) {
		return []JoinReorderSuggestion{}, nil
	}

	improvement := jo.EstimateCardinalityReduction(sequence, jo.stats)
	if improvement <= 0 || improvement < jo.cfg.JoinReorderingThreshold {
		return []JoinReorderSuggestion{}, nil
	}

	suggestion := JoinReorderSuggestion{
		OriginalSequence:     normalized,
		SuggestedSequence:    expandWithCounts(candidate, counts),
		EstimatedImprovement: improvement,
		Priority:             priorityForImprovement(improvement),
		ReorderType:          ReorderCardinalityReduction,
		Reason:               "Reordering by ascending table cardinality reduces intermediate results",
		ExpectedImpact:       DefaultJoinImpact,
	}
	return []JoinReorderSuggestion{suggestion}, nil
}

// normalizeSequence 去掉空白项并修剪表名，保持原有顺序
func normalizeSequence(sequence []string) []string {
	var normalized []string
	for _, t := range sequence {
		t = strings.TrimSpace(t)
		if t != "" {
			normalized = append(normalized, t)
		}
	}
	return normalized
}

// distinctTables 去重后的表序列与出现次数，空白项跳过
func distinctTables(sequence []string) ([]string, map[string]int) {
	counts := make(map[string]int)
	var distinct []string
	for _, t := range sequence {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if counts[t] == 0 {
			distinct = append(distinct, t)
		}
		counts[t]++
	}
	return distinct, counts
}

// expandWithCounts 按出现次数还原完整序列，重复表连续排列
func expandWithCounts(order []string, counts map[string]int) []string {
	var result []string
	for _, t := range order {
		for i := 0; i < counts[t]; i++ {
			result = append(result, t)
		}
	}
	return result
}

// sameOrder 两个序列是否完全一致
func sameOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// costImprovement 代价改进比例，裁剪到 [0,1]
func costImprovement(origCost, candCost float64) float64 {
	if origCost <= 0 {
		return 0.0
	}
	improvement := (origCost - candCost) / origCost
	if improvement < 0 {
		return 0.0
	}
	if improvement > 1 {
		return 1.0
	}
	return improvement
}
