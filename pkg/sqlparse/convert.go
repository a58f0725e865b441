package sqlparse

import (
	"fmt"
	"math"
	"strconv"

	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/opcode"

	"github.com/kasuganosora/sqladvisor/pkg/query"
)

// converter 单条语句的转换状态
// 参数占位名按字面量出现顺序编号：p1, p2, ...
type converter struct {
	tables   []string
	aliases  map[string]string
	paramSeq int
}

// convertSelect 把 SELECT 语句转换为 query.Spec
func convertSelect(stmt *ast.SelectStmt) (*query.Spec, error) {
	c := &converter{aliases: make(map[string]string)}
	spec := &query.Spec{}

	if stmt.From != nil && stmt.From.TableRefs != nil {
		c.collectTables(stmt.From.TableRefs, spec)
	}
	if len(c.tables) == 0 {
		return nil, query.NewValidationError("sql", "statement has no base table")
	}
	spec.TableName = c.tables[0]
	if len(c.tables) > 1 {
		spec.Joins = append([]string(nil), c.tables...)
	}

	if stmt.Where != nil {
		c.collectWhere(stmt.Where, spec)
	}
	return spec, nil
}

// collectTables 按 FROM 顺序收集表名，并抽取 JOIN ON 条件
// 表名保留 schema 限定（schema.table），别名映射回真实表名
func (c *converter) collectTables(node ast.ResultSetNode, spec *query.Spec) {
	switch n := node.(type) {
	case *ast.Join:
		c.collectTables(n.Left, spec)
		if n.Right != nil {
			c.collectTables(n.Right, spec)
		}
		if n.On != nil && n.On.Expr != nil {
			c.collectOnCondition(n.On.Expr, spec)
		}
	case *ast.TableSource:
		tn, ok := n.Source.(*ast.TableName)
		if !ok {
			// 子查询做数据源时无法静态分析，跳过
			return
		}
		full := tn.Name.String()
		if tn.Schema.String() != "" {
			full = tn.Schema.String() + "." + full
		}
		c.tables = append(c.tables, full)
		c.aliases[tn.Name.L] = full
		if n.AsName.L != "" {
			c.aliases[n.AsName.L] = full
		}
	}
}

// collectOnCondition 从 ON 表达式抽取等值连接条件，AND 链逐个处理
func (c *converter) collectOnCondition(expr ast.ExprNode, spec *query.Spec) {
	switch n := expr.(type) {
	case *ast.ParenthesesExpr:
		c.collectOnCondition(n.Expr, spec)
	case *ast.BinaryOperationExpr:
		switch n.Op {
		case opcode.LogicAnd:
			c.collectOnCondition(n.L, spec)
			c.collectOnCondition(n.R, spec)
		case opcode.EQ:
			left, lok := n.L.(*ast.ColumnNameExpr)
			right, rok := n.R.(*ast.ColumnNameExpr)
			if lok && rok {
				c.appendJoinCondition(left, right, spec)
			}
		}
	}
}

// appendJoinCondition 由两个列引用构造连接条件，连接字段取右侧列名
// 列缺少表限定时退回到最近收集的相邻表
func (c *converter) appendJoinCondition(left, right *ast.ColumnNameExpr, spec *query.Spec) {
	leftTable := c.resolveTable(left)
	rightTable := c.resolveTable(right)

	switch {
	case leftTable == "" && rightTable == "":
		if len(c.tables) < 2 {
			return
		}
		leftTable = c.tables[len(c.tables)-2]
		rightTable = c.tables[len(c.tables)-1]
	case leftTable == "":
		leftTable = c.lastTableExcept(rightTable)
	case rightTable == "":
		rightTable = c.lastTableExcept(leftTable)
	}
	if leftTable == "" || rightTable == "" || leftTable == rightTable {
		return
	}

	cond, err := query.NewJoinCondition(leftTable, rightTable, right.Name.Name.String())
	if err != nil {
		return
	}
	spec.On = append(spec.On, cond)
}

// resolveTable 解析列引用的表限定名
func (c *converter) resolveTable(col *ast.ColumnNameExpr) string {
	if col == nil || col.Name == nil {
		return ""
	}
	q := col.Name.Table.L
	if q == "" {
		return ""
	}
	if full, ok := c.aliases[q]; ok {
		return full
	}
	if col.Name.Schema.L != "" {
		return col.Name.Schema.String() + "." + col.Name.Table.String()
	}
	return col.Name.Table.String()
}

// lastTableExcept 返回最近收集的不等于 except 的表名
func (c *converter) lastTableExcept(except string) string {
	for i := len(c.tables) - 1; i >= 0; i-- {
		if c.tables[i] != except {
			return c.tables[i]
		}
	}
	return ""
}

// collectWhere 把 WHERE 表达式转换为谓词列表
// 顶层 AND 直接摊平，跨表等值比较视为隐式连接条件（逗号连接写法）
func (c *converter) collectWhere(expr ast.ExprNode, spec *query.Spec) {
	for _, conjunct := range flattenConjuncts(expr) {
		if c.tryImplicitJoin(conjunct, spec) {
			continue
		}
		if pred := c.convertPredicate(conjunct); pred != nil {
			spec.Where = append(spec.Where, pred)
		}
	}
}

// flattenConjuncts 摊平 AND 链
func flattenConjuncts(expr ast.ExprNode) []ast.ExprNode {
	switch n := expr.(type) {
	case *ast.ParenthesesExpr:
		return flattenConjuncts(n.Expr)
	case *ast.BinaryOperationExpr:
		if n.Op == opcode.LogicAnd {
			return append(flattenConjuncts(n.L), flattenConjuncts(n.R)...)
		}
	}
	return []ast.ExprNode{expr}
}

// flattenDisjuncts 摊平 OR 链
func flattenDisjuncts(expr ast.ExprNode) []ast.ExprNode {
	switch n := expr.(type) {
	case *ast.ParenthesesExpr:
		return flattenDisjuncts(n.Expr)
	case *ast.BinaryOperationExpr:
		if n.Op == opcode.LogicOr {
			return append(flattenDisjuncts(n.L), flattenDisjuncts(n.R)...)
		}
	}
	return []ast.ExprNode{expr}
}

// tryImplicitJoin 识别 WHERE 中的跨表等值条件
func (c *converter) tryImplicitJoin(expr ast.ExprNode, spec *query.Spec) bool {
	bin, ok := expr.(*ast.BinaryOperationExpr)
	if !ok || bin.Op != opcode.EQ {
		return false
	}
	left, lok := bin.L.(*ast.ColumnNameExpr)
	right, rok := bin.R.(*ast.ColumnNameExpr)
	if !lok || !rok {
		return false
	}
	leftTable := c.resolveTable(left)
	rightTable := c.resolveTable(right)
	if leftTable == "" || rightTable == "" || leftTable == rightTable {
		return false
	}
	cond, err := query.NewJoinCondition(leftTable, rightTable, right.Name.Name.String())
	if err != nil {
		return false
	}
	spec.On = append(spec.On, cond)
	return true
}

// convertPredicate 把单个 AST 表达式转换为谓词
// 函数调用、子查询等无法静态估算的形态返回 nil
func (c *converter) convertPredicate(node ast.ExprNode) query.Predicate {
	switch n := node.(type) {
	case *ast.ParenthesesExpr:
		return c.convertPredicate(n.Expr)
	case *ast.BinaryOperationExpr:
		return c.convertBinary(n)
	case *ast.PatternInExpr:
		return c.convertIn(n)
	case *ast.PatternLikeOrIlikeExpr:
		return c.convertLike(n)
	case *ast.BetweenExpr:
		return c.convertBetween(n)
	case *ast.IsNullExpr:
		return c.convertIsNull(n)
	case *ast.UnaryOperationExpr:
		if n.Op == opcode.Not || n.Op == opcode.Not2 {
			child := c.convertPredicate(n.V)
			if child == nil {
				return nil
			}
			if not, err := query.NewNot(child); err == nil {
				return not
			}
		}
	}
	return nil
}

func (c *converter) convertBinary(n *ast.BinaryOperationExpr) query.Predicate {
	switch n.Op {
	case opcode.LogicAnd:
		return c.convertConjunction(n)
	case opcode.LogicOr:
		return c.convertDisjunction(n)
	default:
		return c.convertComparison(n)
	}
}

// convertConjunction 转换嵌套 AND，无法转换的子项直接丢弃
func (c *converter) convertConjunction(n *ast.BinaryOperationExpr) query.Predicate {
	conjuncts := flattenConjuncts(n)
	children := make([]query.Predicate, 0, len(conjuncts))
	for _, conjunct := range conjuncts {
		if pred := c.convertPredicate(conjunct); pred != nil {
			children = append(children, pred)
		}
	}
	switch len(children) {
	case 0:
		return nil
	case 1:
		return children[0]
	}
	and, err := query.NewAnd(children...)
	if err != nil {
		return nil
	}
	return and
}

// convertDisjunction 转换 OR，任一分支无法转换则整体放弃
func (c *converter) convertDisjunction(n *ast.BinaryOperationExpr) query.Predicate {
	disjuncts := flattenDisjuncts(n)
	children := make([]query.Predicate, 0, len(disjuncts))
	for _, d := range disjuncts {
		pred := c.convertPredicate(d)
		if pred == nil {
			return nil
		}
		children = append(children, pred)
	}
	if len(children) == 1 {
		return children[0]
	}
	or, err := query.NewOr(children...)
	if err != nil {
		return nil
	}
	return or
}

// convertComparison 转换比较表达式，值在左侧时翻转比较方向
func (c *converter) convertComparison(n *ast.BinaryOperationExpr) query.Predicate {
	op, ok := comparisonOp(n.Op)
	if !ok {
		return nil
	}

	if col, cok := n.L.(*ast.ColumnNameExpr); cok {
		if value, vok := extractValue(n.R); vok {
			return c.newSimple(col, op, value)
		}
		return nil
	}
	if col, cok := n.R.(*ast.ColumnNameExpr); cok {
		if value, vok := extractValue(n.L); vok {
			return c.newSimple(col, mirrorOp(op), value)
		}
	}
	return nil
}

func (c *converter) newSimple(col *ast.ColumnNameExpr, op query.Operator, value interface{}) query.Predicate {
	pred, err := query.NewSimple(c.columnField(col), op, value, c.nextParam())
	if err != nil {
		return nil
	}
	return pred
}

// convertIn 转换 IN 谓词，子查询形态跳过
func (c *converter) convertIn(n *ast.PatternInExpr) query.Predicate {
	col, ok := n.Expr.(*ast.ColumnNameExpr)
	if !ok || n.Sel != nil {
		return nil
	}
	values := make([]interface{}, 0, len(n.List))
	for _, item := range n.List {
		if v, vok := extractValue(item); vok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil
	}
	pred, err := query.NewIn(c.columnField(col), values, c.nextParam())
	if err != nil {
		return nil
	}
	return c.maybeNegate(pred, n.Not)
}

// convertLike 转换 LIKE 谓词，模式必须是字符串字面量
func (c *converter) convertLike(n *ast.PatternLikeOrIlikeExpr) query.Predicate {
	col, ok := n.Expr.(*ast.ColumnNameExpr)
	if !ok {
		return nil
	}
	raw, vok := extractValue(n.Pattern)
	if !vok {
		return nil
	}
	pattern, sok := raw.(string)
	if !sok {
		return nil
	}
	pred, err := query.NewLike(c.columnField(col), pattern, c.nextParam())
	if err != nil {
		return nil
	}
	return c.maybeNegate(pred, n.Not)
}

// convertBetween 转换 BETWEEN 谓词
func (c *converter) convertBetween(n *ast.BetweenExpr) query.Predicate {
	col, ok := n.Expr.(*ast.ColumnNameExpr)
	if !ok {
		return nil
	}
	low, lok := extractValue(n.Left)
	high, hok := extractValue(n.Right)
	if !lok || !hok {
		return nil
	}
	pred, err := query.NewBetween(c.columnField(col), low, high, c.nextParam(), c.nextParam())
	if err != nil {
		return nil
	}
	return c.maybeNegate(pred, n.Not)
}

// convertIsNull 转换 IS NULL / IS NOT NULL
func (c *converter) convertIsNull(n *ast.IsNullExpr) query.Predicate {
	col, ok := n.Expr.(*ast.ColumnNameExpr)
	if !ok {
		return nil
	}
	var pred query.Predicate
	var err error
	if n.Not {
		pred, err = query.NewIsNotNull(c.columnField(col))
	} else {
		pred, err = query.NewIsNull(c.columnField(col))
	}
	if err != nil {
		return nil
	}
	return pred
}

// maybeNegate 按需包一层 NOT
func (c *converter) maybeNegate(pred query.Predicate, not bool) query.Predicate {
	if !not {
		return pred
	}
	negated, err := query.NewNot(pred)
	if err != nil {
		return nil
	}
	return negated
}

// columnField 列引用的字段名，带表限定时解析别名
func (c *converter) columnField(col *ast.ColumnNameExpr) string {
	name := col.Name.Name.String()
	if table := c.resolveTable(col); table != "" {
		return table + "." + name
	}
	return name
}

// nextParam 生成下一个参数占位名
func (c *converter) nextParam() string {
	c.paramSeq++
	return "p" + strconv.Itoa(c.paramSeq)
}

// comparisonOp TiDB 运算符到谓词运算符的映射
func comparisonOp(op opcode.Op) (query.Operator, bool) {
	switch op {
	case opcode.EQ, opcode.NullEQ:
		return query.OpEQ, true
	case opcode.NE:
		return query.OpNE, true
	case opcode.LT:
		return query.OpLT, true
	case opcode.LE:
		return query.OpLE, true
	case opcode.GT:
		return query.OpGT, true
	case opcode.GE:
		return query.OpGE, true
	default:
		return "", false
	}
}

// mirrorOp 翻转比较方向
func mirrorOp(op query.Operator) query.Operator {
	switch op {
	case query.OpLT:
		return query.OpGT
	case query.OpLE:
		return query.OpGE
	case query.OpGT:
		return query.OpLT
	case query.OpGE:
		return query.OpLE
	default:
		return op
	}
}

// extractValue 提取字面量的值，负号一元表达式就地折叠
func extractValue(node ast.ExprNode) (interface{}, bool) {
	switch n := node.(type) {
	case ast.ValueExpr:
		return normalizeValue(n.GetValue()), true
	case *ast.ParenthesesExpr:
		return extractValue(n.Expr)
	case *ast.UnaryOperationExpr:
		if n.Op != opcode.Minus {
			return nil, false
		}
		inner, ok := extractValue(n.V)
		if !ok {
			return nil, false
		}
		switch v := inner.(type) {
		case int64:
			return -v, true
		case float64:
			return -v, true
		}
	}
	return nil, false
}

// normalizeValue 把 TiDB 内部值类型归一为标准 Go 类型
func normalizeValue(val interface{}) interface{} {
	switch v := val.(type) {
	case nil:
		return nil
	case bool, string, float64, int64:
		return v
	case float32:
		return float64(v)
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		if v <= uint64(math.MaxInt64) {
			return int64(v)
		}
		return v
	default:
		// MyDecimal 等内部类型走字符串表示
		if s, ok := val.(fmt.Stringer); ok {
			text := s.String()
			if f, err := strconv.ParseFloat(text, 64); err == nil {
				return f
			}
			return text
		}
		return val
	}
}
