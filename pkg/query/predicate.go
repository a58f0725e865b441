package query

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind 谓词种类
type Kind int

const (
	KindSimple Kind = iota
	KindIn
	KindLike
	KindBetween
	KindNull
	KindLogical
)

// String 返回种类名称
func (k Kind) String() string {
	switch k {
	case KindSimple:
		return "SIMPLE"
	case KindIn:
		return "IN"
	case KindLike:
		return "LIKE"
	case KindBetween:
		return "BETWEEN"
	case KindNull:
		return "NULL"
	case KindLogical:
		return "LOGICAL"
	default:
		return "UNKNOWN"
	}
}

// Operator 比较运算符
type Operator string

const (
	OpEQ Operator = "="
	OpNE Operator = "!="
	OpLG Operator = "<>"
	OpLT Operator = "<"
	OpLE Operator = "<="
	OpGT Operator = ">"
	OpGE Operator = ">="
)

// Valid 判断运算符是否受支持
func (op Operator) Valid() bool {
	switch op {
	case OpEQ, OpNE, OpLG, OpLT, OpLE, OpGT, OpGE:
		return true
	default:
		return false
	}
}

// LogicOperator 逻辑运算符
type LogicOperator string

const (
	LogicAnd LogicOperator = "AND"
	LogicOr  LogicOperator = "OR"
	LogicNot LogicOperator = "NOT"
)

// Predicate 查询谓词
// 纯数据结构：除 SQL 片段渲染和参数名提取外不承载任何行为。
// 分析器通过类型断言区分具体种类，未识别的实现一律静默跳过。
type Predicate interface {
	Kind() Kind
	SQL() string
	Params() []string
}

// identPattern 字段名与参数名的合法字符集
var identPattern = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)

// validateIdent 校验标识符（先去除首尾空白）
func validateIdent(param, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", NewValidationError(param, fmt.Sprintf("%s must not be empty", param))
	}
	if !identPattern.MatchString(trimmed) {
		return "", NewValidationError(param, fmt.Sprintf("%s %q contains characters outside [A-Za-z0-9_.]", param, value))
	}
	return trimmed, nil
}

// Simple 基本比较谓词（field op :param）
type Simple struct {
	Field     string
	Operator  Operator
	Value     interface{}
	ParamName string
}

// NewSimple 创建比较谓词
func NewSimple(field string, op Operator, value interface{}, paramName string) (*Simple, error) {
	f, err := validateIdent("field", field)
	if err != nil {
		return nil, err
	}
	if !op.Valid() {
		return nil, NewValidationError("operator", fmt.Sprintf("unsupported operator %q", string(op)))
	}
	p, err := validateIdent("param name", paramName)
	if err != nil {
		return nil, err
	}
	return &Simple{Field: f, Operator: op, Value: value, ParamName: p}, nil
}

func (s *Simple) Kind() Kind { return KindSimple }

func (s *Simple) SQL() string {
	return fmt.Sprintf("%s %s :%s", s.Field, s.Operator, s.ParamName)
}

func (s *Simple) Params() []string { return []string{s.ParamName} }

// In IN 谓词（field IN (:param)）
type In struct {
	Field     string
	Values    []interface{}
	ParamName string
}

// NewIn 创建 IN 谓词，值列表不能为空
func NewIn(field string, values []interface{}, paramName string) (*In, error) {
	f, err := validateIdent("field", field)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, NewValidationError("values", "IN values must not be empty")
	}
	p, err := validateIdent("param name", paramName)
	if err != nil {
		return nil, err
	}
	copied := make([]interface{}, len(values))
	copy(copied, values)
	return &In{Field: f, Values: copied, ParamName: p}, nil
}

func (i *In) Kind() Kind { return KindIn }

func (i *In) SQL() string {
	return fmt.Sprintf("%s IN (:%s)", i.Field, i.ParamName)
}

func (i *In) Params() []string { return []string{i.ParamName} }

// PatternKind LIKE 模式分类
type PatternKind int

const (
	PatternExact    PatternKind = iota // 无通配符
	PatternPrefix                      // abc%
	PatternSuffix                      // %abc
	PatternContains                    // %abc%
)

// String 返回模式分类名称
func (pk PatternKind) String() string {
	switch pk {
	case PatternExact:
		return "exact"
	case PatternPrefix:
		return "prefix"
	case PatternSuffix:
		return "suffix"
	case PatternContains:
		return "contains"
	default:
		return "unknown"
	}
}

// Like LIKE 谓词（field LIKE :param）
type Like struct {
	Field     string
	Pattern   string
	ParamName string
}

// NewLike 创建 LIKE 谓词
func NewLike(field, pattern, paramName string) (*Like, error) {
	f, err := validateIdent("field", field)
	if err != nil {
		return nil, err
	}
	p, err := validateIdent("param name", paramName)
	if err != nil {
		return nil, err
	}
	return &Like{Field: f, Pattern: pattern, ParamName: p}, nil
}

func (l *Like) Kind() Kind { return KindLike }

func (l *Like) SQL() string {
	return fmt.Sprintf("%s LIKE :%s", l.Field, l.ParamName)
}

func (l *Like) Params() []string { return []string{l.ParamName} }

// PatternKind 根据通配符位置对模式分类
func (l *Like) PatternKind() PatternKind {
	p := l.Pattern
	leading := strings.HasPrefix(p, "%")
	trailing := strings.HasSuffix(p, "%")
	switch {
	case leading && trailing:
		return PatternContains
	case leading:
		return PatternSuffix
	case trailing:
		return PatternPrefix
	case strings.ContainsAny(p, "%_"):
		// 中置通配符：前导字面量仍可利用索引，按前缀处理
		return PatternPrefix
	default:
		return PatternExact
	}
}

// PrefixLength 返回首个通配符之前的字面量长度
func (l *Like) PrefixLength() int {
	if idx := strings.IndexAny(l.Pattern, "%_"); idx >= 0 {
		return idx
	}
	return len(l.Pattern)
}

// Null IS NULL / IS NOT NULL 谓词
type Null struct {
	Field  string
	IsNull bool
}

// NewIsNull 创建 IS NULL 谓词
func NewIsNull(field string) (*Null, error) {
	f, err := validateIdent("field", field)
	if err != nil {
		return nil, err
	}
	return &Null{Field: f, IsNull: true}, nil
}

// NewIsNotNull 创建 IS NOT NULL 谓词
func NewIsNotNull(field string) (*Null, error) {
	f, err := validateIdent("field", field)
	if err != nil {
		return nil, err
	}
	return &Null{Field: f, IsNull: false}, nil
}

func (n *Null) Kind() Kind { return KindNull }

func (n *Null) SQL() string {
	if n.IsNull {
		return fmt.Sprintf("%s IS NULL", n.Field)
	}
	return fmt.Sprintf("%s IS NOT NULL", n.Field)
}

func (n *Null) Params() []string { return nil }

// Between BETWEEN 谓词（field BETWEEN :low AND :high）
type Between struct {
	Field     string
	Low       interface{}
	High      interface{}
	LowParam  string
	HighParam string
}

// NewBetween 创建 BETWEEN 谓词
func NewBetween(field string, low, high interface{}, lowParam, highParam string) (*Between, error) {
	f, err := validateIdent("field", field)
	if err != nil {
		return nil, err
	}
	lp, err := validateIdent("param name", lowParam)
	if err != nil {
		return nil, err
	}
	hp, err := validateIdent("param name", highParam)
	if err != nil {
		return nil, err
	}
	return &Between{Field: f, Low: low, High: high, LowParam: lp, HighParam: hp}, nil
}

func (b *Between) Kind() Kind { return KindBetween }

func (b *Between) SQL() string {
	return fmt.Sprintf("%s BETWEEN :%s AND :%s", b.Field, b.LowParam, b.HighParam)
}

func (b *Between) Params() []string { return []string{b.LowParam, b.HighParam} }

// Logical 逻辑组合谓词，子谓词有序
type Logical struct {
	Operator LogicOperator
	Children []Predicate
}

// NewAnd 创建 AND 组合
func NewAnd(children ...Predicate) (*Logical, error) {
	return newLogical(LogicAnd, children)
}

// NewOr 创建 OR 组合
func NewOr(children ...Predicate) (*Logical, error) {
	return newLogical(LogicOr, children)
}

// NewNot 创建 NOT 组合，只接受一个子谓词
func NewNot(child Predicate) (*Logical, error) {
	if child == nil {
		return nil, NewValidationError("children", "NOT requires exactly one child predicate")
	}
	return &Logical{Operator: LogicNot, Children: []Predicate{child}}, nil
}

func newLogical(op LogicOperator, children []Predicate) (*Logical, error) {
	if len(children) == 0 {
		return nil, NewValidationError("children", fmt.Sprintf("%s requires at least one child predicate", op))
	}
	for i, c := range children {
		if c == nil {
			return nil, NewValidationError("children", fmt.Sprintf("child predicate %d is nil", i))
		}
	}
	copied := make([]Predicate, len(children))
	copy(copied, children)
	return &Logical{Operator: op, Children: copied}, nil
}

func (l *Logical) Kind() Kind { return KindLogical }

func (l *Logical) SQL() string {
	if l.Operator == LogicNot {
		if len(l.Children) == 0 {
			return "NOT ()"
		}
		return fmt.Sprintf("NOT (%s)", l.Children[0].SQL())
	}

	parts := make([]string, 0, len(l.Children))
	for _, c := range l.Children {
		parts = append(parts, c.SQL())
	}
	return "(" + strings.Join(parts, " "+string(l.Operator)+" ") + ")"
}

func (l *Logical) Params() []string {
	var params []string
	for _, c := range l.Children {
		params = append(params, c.Params()...)
	}
	return params
}
