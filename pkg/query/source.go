package query

// Source 待分析查询的只读视图
// 分析器只依赖这四个访问器，任何查询构建层都可以实现它。
type Source interface {
	// Table 主表名
	Table() string
	// Predicates WHERE 谓词列表，保持书写顺序
	Predicates() []Predicate
	// JoinSequence 连接顺序中的表名（含重复出现）
	JoinSequence() []string
	// JoinConditions 连接条件列表
	JoinConditions() []JoinCondition
}

// Spec Source 的普通数据实现
// SQL 解析层和 GORM 适配层都产出该结构。
type Spec struct {
	TableName string
	Where     []Predicate
	Joins     []string
	On        []JoinCondition
}

func (s *Spec) Table() string { return s.TableName }

func (s *Spec) Predicates() []Predicate { return s.Where }

func (s *Spec) JoinSequence() []string { return s.Joins }

func (s *Spec) JoinConditions() []JoinCondition { return s.On }
