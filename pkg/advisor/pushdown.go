package advisor

import (
	"fmt"
	"sort"

	"github.com/kasuganosora/sqladvisor/pkg/config"
	"github.com/kasuganosora/sqladvisor/pkg/query"
	"github.com/kasuganosora/sqladvisor/pkg/statistics"
)

// PushdownOptimizer 谓词求值顺序优化器
// 高选择性（低选择率）谓词先求值可以尽早缩小中间结果。
type PushdownOptimizer struct {
	cfg       config.OptimizerConfig
	estimator *statistics.SelectivityEstimator
}

// NewPushdownOptimizer 创建谓词下推优化器，cfg 为 nil 时使用默认配置
func NewPushdownOptimizer(cfg *config.OptimizerConfig) *PushdownOptimizer {
	c := config.DefaultOptimizerConfig()
	if cfg != nil {
		c = *cfg
	}
	return &PushdownOptimizer{
		cfg:       c,
		estimator: statistics.NewSelectivityEstimator(),
	}
}

// SuggestEvaluationOrder 建议谓词求值顺序
// 顶层列表整体重排，AND 谓词内部的子句递归处理，
// OR/NOT 内部的顺序不改变语义收益，不跨越。
func (po *PushdownOptimizer) SuggestEvaluationOrder(predicates []query.Predicate) ([]PushdownSuggestion, error) {
	if predicates == nil {
		return nil, query.NewValidationError("predicates", "predicates list must not be nil")
	}

	suggestions := po.reorderList(predicates, PushdownSelectivityReorder)
	for _, p := range predicates {
		suggestions = append(suggestions, po.collectNested(p)...)
	}
	if suggestions == nil {
		suggestions = []PushdownSuggestion{}
	}
	return suggestions, nil
}

// reorderList 对一个谓词列表按选择率升序重排
// 位置提前且收益达到阈值的谓词产出建议，位置均相对于该列表。
func (po *PushdownOptimizer) reorderList(list []query.Predicate, optType PushdownType) []PushdownSuggestion {
	if len(list) <= 1 {
		return nil
	}

	sels := make([]float64, len(list))
	for i, p := range list {
		sels[i] = po.estimator.Estimate(p)
	}

	// 稳定排序，选择率相同保持原次序
	order := make([]int, len(list))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return sels[order[a]] < sels[order[b]]
	})

	var suggestions []PushdownSuggestion
	for newPos, origIdx := range order {
		if newPos >= origIdx {
			continue
		}
		// 收益以被挤到后面的原占位谓词为参照
		gain := sels[newPos] - sels[origIdx]
		if gain < po.cfg.PredicateReorderingThreshold {
			continue
		}
		suggestions = append(suggestions, PushdownSuggestion{
			Predicate:            list[origIdx].SQL(),
			OriginalPosition:     origIdx,
			SuggestedPosition:    newPos,
			EstimatedSelectivity: sels[origIdx],
			OptimizationType:     optType,
			Reason: fmt.Sprintf("Predicate with selectivity %.2f should be evaluated before predicate with selectivity %.2f",
				sels[origIdx], sels[newPos]),
		})
	}
	return suggestions
}

// collectNested 递归进入 AND 谓词，为其子句列表产出建议
func (po *PushdownOptimizer) collectNested(p query.Predicate) []PushdownSuggestion {
	logical, ok := p.(*query.Logical)
	if !ok || logical.Operator != query.LogicAnd {
		return nil
	}

	suggestions := po.reorderList(logical.Children, PushdownNestedConjunctReorder)
	for _, child := range logical.Children {
		suggestions = append(suggestions, po.collectNested(child)...)
	}
	return suggestions
}
