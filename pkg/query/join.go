package query

import (
	"fmt"
	"strings"
)

// JoinCondition 两表连接条件
// 值语义：WithSelectivity / WithIndex 返回副本，原值不变。
type JoinCondition struct {
	LeftTable   string
	RightTable  string
	JoinField   string
	Selectivity float64
	HasIndex    bool
}

// NewJoinCondition 创建连接条件
// 选择率默认 0.5，索引标记默认 false。
func NewJoinCondition(leftTable, rightTable, joinField string) (JoinCondition, error) {
	lt := strings.TrimSpace(leftTable)
	if lt == "" {
		return JoinCondition{}, NewValidationError("leftTable", "left table name must not be empty")
	}
	rt := strings.TrimSpace(rightTable)
	if rt == "" {
		return JoinCondition{}, NewValidationError("rightTable", "right table name must not be empty")
	}
	jf, err := validateIdent("joinField", joinField)
	if err != nil {
		return JoinCondition{}, err
	}
	return JoinCondition{
		LeftTable:   lt,
		RightTable:  rt,
		JoinField:   jf,
		Selectivity: 0.5,
		HasIndex:    false,
	}, nil
}

// WithSelectivity 返回改写选择率后的副本，取值收敛到 [0,1]
func (jc JoinCondition) WithSelectivity(s float64) JoinCondition {
	if s < 0 {
		s = 0
	}
	if s > 1 {
		s = 1
	}
	jc.Selectivity = s
	return jc
}

// WithIndex 返回改写索引标记后的副本
func (jc JoinCondition) WithIndex(hasIndex bool) JoinCondition {
	jc.HasIndex = hasIndex
	return jc
}

// String 渲染为 ON 片段
func (jc JoinCondition) String() string {
	return fmt.Sprintf("%s.%s = %s.%s", jc.LeftTable, jc.JoinField, jc.RightTable, jc.JoinField)
}
