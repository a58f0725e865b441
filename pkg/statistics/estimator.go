package statistics

import (
	"math"

	"github.com/kasuganosora/sqladvisor/pkg/query"
)

// 启发式选择率常量
// 没有任何统计数据时按谓词形态估算，数值越小代表过滤越强。
const (
	selEquality      = 0.1  // field = value
	selNotEqual      = 0.9  // field != value
	selRange         = 0.3  // < <= > >=
	selBetween       = 0.3  // BETWEEN
	selInPerValue    = 0.05 // IN 每个值的贡献
	selInMax         = 0.5  // IN 上限
	selLikeExact     = 0.1  // 无通配符，等价等值匹配
	selLikePrefixCap = 0.25 // 前缀匹配上限
	selLikePrefixMin = 0.05 // 前缀匹配下限
	selLikeSuffix    = 0.75 // 后缀匹配，无法利用索引
	selLikeContains  = 0.85 // 包含匹配，接近全扫
	selIsNull        = 0.05 // IS NULL
	selIsNotNull     = 0.95 // IS NOT NULL
	selDefault       = 0.5  // 未识别谓词
)

// SelectivityEstimator 谓词选择率估算器
// 纯启发式实现，只看谓词形态，不访问任何表数据。
type SelectivityEstimator struct{}

// NewSelectivityEstimator 创建估算器
func NewSelectivityEstimator() *SelectivityEstimator {
	return &SelectivityEstimator{}
}

// Estimate 估算单个谓词的选择率，结果落在 [0,1]
func (e *SelectivityEstimator) Estimate(p query.Predicate) float64 {
	if p == nil {
		return selDefault
	}

	switch pred := p.(type) {
	case *query.Simple:
		return e.estimateSimple(pred)
	case *query.In:
		return e.estimateIn(pred)
	case *query.Like:
		return e.estimateLike(pred)
	case *query.Between:
		return selBetween
	case *query.Null:
		if pred.IsNull {
			return selIsNull
		}
		return selIsNotNull
	case *query.Logical:
		return e.estimateLogical(pred)
	default:
		return selDefault
	}
}

// EstimateAll 估算谓词列表的合取选择率（逐项相乘）
func (e *SelectivityEstimator) EstimateAll(predicates []query.Predicate) float64 {
	result := 1.0
	for _, p := range predicates {
		result *= e.Estimate(p)
	}
	return result
}

func (e *SelectivityEstimator) estimateSimple(p *query.Simple) float64 {
	switch p.Operator {
	case query.OpEQ:
		return selEquality
	case query.OpNE, query.OpLG:
		return selNotEqual
	case query.OpLT, query.OpLE, query.OpGT, query.OpGE:
		return selRange
	default:
		return selDefault
	}
}

// estimateIn IN 选择率随值数量线性增长，封顶 selInMax
func (e *SelectivityEstimator) estimateIn(p *query.In) float64 {
	return math.Min(selInMax, selInPerValue*float64(len(p.Values)))
}

// estimateLike 按模式分类估算
// 前缀匹配随字面量长度递减：1 - 0.9^n，收敛在 [selLikePrefixMin, selLikePrefixCap]。
func (e *SelectivityEstimator) estimateLike(p *query.Like) float64 {
	switch p.PatternKind() {
	case query.PatternExact:
		return selLikeExact
	case query.PatternPrefix:
		sel := 1.0 - math.Pow(0.9, float64(p.PrefixLength()))
		sel = math.Min(selLikePrefixCap, sel)
		return math.Max(selLikePrefixMin, sel)
	case query.PatternSuffix:
		return selLikeSuffix
	case query.PatternContains:
		return selLikeContains
	default:
		return selDefault
	}
}

// estimateLogical 逻辑组合的选择率
// AND 相乘，OR 取补集乘积的补，NOT 取反。
func (e *SelectivityEstimator) estimateLogical(p *query.Logical) float64 {
	switch p.Operator {
	case query.LogicAnd:
		result := 1.0
		for _, c := range p.Children {
			result *= e.Estimate(c)
		}
		return result
	case query.LogicOr:
		miss := 1.0
		for _, c := range p.Children {
			miss *= 1.0 - e.Estimate(c)
		}
		return 1.0 - miss
	case query.LogicNot:
		if len(p.Children) == 0 {
			return selDefault
		}
		return 1.0 - e.Estimate(p.Children[0])
	default:
		return selDefault
	}
}
