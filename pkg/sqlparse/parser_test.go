package sqlparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/sqladvisor/pkg/query"
)

// TestParseQueryEmptyInput 测试空输入返回校验错误
func TestParseQueryEmptyInput(t *testing.T) {
	p := NewParser()

	for _, sql := range []string{"", "   ", "\t\n"} {
		spec, err := p.ParseQuery(sql)
		assert.Nil(t, spec)
		require.Error(t, err)
		assert.True(t, query.IsValidationError(err))
		assert.Contains(t, err.Error(), "sql")
	}
}

// TestParseQueryInvalidSyntax 测试语法错误返回解析失败
func TestParseQueryInvalidSyntax(t *testing.T) {
	p := NewParser()

	spec, err := p.ParseQuery("SELEC * FRM users")
	assert.Nil(t, spec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse sql")
}

// TestParseQueryUnsupportedStatements 测试非 SELECT 语句返回类型错误
func TestParseQueryUnsupportedStatements(t *testing.T) {
	p := NewParser()

	cases := []struct {
		sql      string
		stmtType string
	}{
		{"INSERT INTO users (id) VALUES (1)", "INSERT"},
		{"UPDATE users SET status = 'x'", "UPDATE"},
		{"DELETE FROM users WHERE id = 1", "DELETE"},
		{"CREATE TABLE t (id INT)", "CREATE_TABLE"},
		{"DROP TABLE t", "DROP_TABLE"},
		{"SHOW TABLES", "SHOW"},
	}
	for _, tc := range cases {
		spec, err := p.ParseQuery(tc.sql)
		assert.Nil(t, spec)
		require.Error(t, err, tc.sql)
		assert.True(t, IsUnsupportedStatement(err), tc.sql)
		assert.Equal(t,
			"unsupported statement type "+tc.stmtType+": only SELECT can be analyzed",
			err.Error())
	}
}

// TestParseQuerySimpleEquality 测试单表等值查询
func TestParseQuerySimpleEquality(t *testing.T) {
	p := NewParser()

	spec, err := p.ParseQuery("SELECT * FROM users WHERE status = 'active'")
	require.NoError(t, err)
	assert.Equal(t, "users", spec.TableName)
	assert.Empty(t, spec.Joins)
	assert.Empty(t, spec.On)
	require.Len(t, spec.Where, 1)

	simple, ok := spec.Where[0].(*query.Simple)
	require.True(t, ok)
	assert.Equal(t, "status", simple.Field)
	assert.Equal(t, query.OpEQ, simple.Operator)
	assert.Equal(t, "active", simple.Value)
	assert.Equal(t, "p1", simple.ParamName)
	assert.Equal(t, "status = :p1", simple.SQL())
}

// TestParseQueryComparisonOperators 测试各类比较运算符与字面量类型
func TestParseQueryComparisonOperators(t *testing.T) {
	p := NewParser()

	spec, err := p.ParseQuery(
		"SELECT * FROM users WHERE age > 18 AND score <= 90.5 AND name != 'bob'")
	require.NoError(t, err)
	require.Len(t, spec.Where, 3)

	gt := spec.Where[0].(*query.Simple)
	assert.Equal(t, query.OpGT, gt.Operator)
	assert.Equal(t, int64(18), gt.Value)
	assert.Equal(t, "p1", gt.ParamName)

	le := spec.Where[1].(*query.Simple)
	assert.Equal(t, query.OpLE, le.Operator)
	assert.Equal(t, float64(90.5), le.Value)
	assert.Equal(t, "p2", le.ParamName)

	ne := spec.Where[2].(*query.Simple)
	assert.Equal(t, query.OpNE, ne.Operator)
	assert.Equal(t, "bob", ne.Value)
	assert.Equal(t, "p3", ne.ParamName)
}

// TestParseQueryValueOnLeftSide 测试值在左侧时比较方向翻转
func TestParseQueryValueOnLeftSide(t *testing.T) {
	p := NewParser()

	spec, err := p.ParseQuery("SELECT * FROM users WHERE 18 < age")
	require.NoError(t, err)
	require.Len(t, spec.Where, 1)

	simple := spec.Where[0].(*query.Simple)
	assert.Equal(t, "age", simple.Field)
	assert.Equal(t, query.OpGT, simple.Operator)
	assert.Equal(t, int64(18), simple.Value)
}

// TestParseQueryNegativeLiteral 测试负数字面量折叠
func TestParseQueryNegativeLiteral(t *testing.T) {
	p := NewParser()

	spec, err := p.ParseQuery("SELECT * FROM accounts WHERE balance > -100")
	require.NoError(t, err)
	require.Len(t, spec.Where, 1)

	simple := spec.Where[0].(*query.Simple)
	assert.Equal(t, query.OpGT, simple.Operator)
	assert.Equal(t, int64(-100), simple.Value)
}

// TestParseQueryInClause 测试 IN 谓词
func TestParseQueryInClause(t *testing.T) {
	p := NewParser()

	spec, err := p.ParseQuery(
		"SELECT * FROM users WHERE status IN ('active', 'pending', 'blocked')")
	require.NoError(t, err)
	require.Len(t, spec.Where, 1)

	in, ok := spec.Where[0].(*query.In)
	require.True(t, ok)
	assert.Equal(t, "status", in.Field)
	assert.Equal(t, []interface{}{"active", "pending", "blocked"}, in.Values)
	assert.Equal(t, "p1", in.ParamName)
}

// TestParseQueryNotInClause 测试 NOT IN 包装为 NOT 谓词
func TestParseQueryNotInClause(t *testing.T) {
	p := NewParser()

	spec, err := p.ParseQuery("SELECT * FROM users WHERE status NOT IN ('blocked', 'deleted')")
	require.NoError(t, err)
	require.Len(t, spec.Where, 1)

	not, ok := spec.Where[0].(*query.Logical)
	require.True(t, ok)
	assert.Equal(t, query.LogicNot, not.Operator)
	require.Len(t, not.Children, 1)

	in := not.Children[0].(*query.In)
	assert.Len(t, in.Values, 2)
}

// TestParseQueryLikePatterns 测试 LIKE 谓词与模式分类
func TestParseQueryLikePatterns(t *testing.T) {
	p := NewParser()

	spec, err := p.ParseQuery("SELECT * FROM users WHERE name LIKE 'john%'")
	require.NoError(t, err)
	require.Len(t, spec.Where, 1)

	like, ok := spec.Where[0].(*query.Like)
	require.True(t, ok)
	assert.Equal(t, "name", like.Field)
	assert.Equal(t, "john%", like.Pattern)
	assert.Equal(t, query.PatternPrefix, like.PatternKind())

	spec, err = p.ParseQuery("SELECT * FROM users WHERE name NOT LIKE '%spam%'")
	require.NoError(t, err)
	require.Len(t, spec.Where, 1)

	not := spec.Where[0].(*query.Logical)
	assert.Equal(t, query.LogicNot, not.Operator)
	inner := not.Children[0].(*query.Like)
	assert.Equal(t, query.PatternContains, inner.PatternKind())
}

// TestParseQueryBetween 测试 BETWEEN 谓词，两个边界各占一个参数
func TestParseQueryBetween(t *testing.T) {
	p := NewParser()

	spec, err := p.ParseQuery("SELECT * FROM users WHERE age BETWEEN 18 AND 30")
	require.NoError(t, err)
	require.Len(t, spec.Where, 1)

	between, ok := spec.Where[0].(*query.Between)
	require.True(t, ok)
	assert.Equal(t, "age", between.Field)
	assert.Equal(t, int64(18), between.Low)
	assert.Equal(t, int64(30), between.High)
	assert.Equal(t, "p1", between.LowParam)
	assert.Equal(t, "p2", between.HighParam)
}

// TestParseQueryNullChecks 测试 IS NULL / IS NOT NULL
func TestParseQueryNullChecks(t *testing.T) {
	p := NewParser()

	spec, err := p.ParseQuery("SELECT * FROM users WHERE deleted_at IS NULL")
	require.NoError(t, err)
	require.Len(t, spec.Where, 1)

	null, ok := spec.Where[0].(*query.Null)
	require.True(t, ok)
	assert.Equal(t, "deleted_at", null.Field)
	assert.True(t, null.IsNull)

	spec, err = p.ParseQuery("SELECT * FROM users WHERE email IS NOT NULL")
	require.NoError(t, err)
	require.Len(t, spec.Where, 1)

	notNull := spec.Where[0].(*query.Null)
	assert.False(t, notNull.IsNull)
}

// TestParseQueryOrGrouping 测试 OR 保持为单个逻辑谓词
func TestParseQueryOrGrouping(t *testing.T) {
	p := NewParser()

	spec, err := p.ParseQuery("SELECT * FROM users WHERE status = 'a' OR status = 'b'")
	require.NoError(t, err)
	require.Len(t, spec.Where, 1)

	or, ok := spec.Where[0].(*query.Logical)
	require.True(t, ok)
	assert.Equal(t, query.LogicOr, or.Operator)
	require.Len(t, or.Children, 2)
	assert.Equal(t, "p1", or.Children[0].(*query.Simple).ParamName)
	assert.Equal(t, "p2", or.Children[1].(*query.Simple).ParamName)
}

// TestParseQueryAndFlattening 测试顶层 AND 摊平为谓词列表
func TestParseQueryAndFlattening(t *testing.T) {
	p := NewParser()

	spec, err := p.ParseQuery(
		"SELECT * FROM users WHERE (age > 18 AND status = 'active') AND score > 60")
	require.NoError(t, err)
	require.Len(t, spec.Where, 3)

	for i, param := range []string{"p1", "p2", "p3"} {
		assert.Equal(t, param, spec.Where[i].(*query.Simple).ParamName)
	}
}

// TestParseQueryNestedLogic 测试 OR 内部的 AND 保持嵌套结构
func TestParseQueryNestedLogic(t *testing.T) {
	p := NewParser()

	spec, err := p.ParseQuery(
		"SELECT * FROM users WHERE status = 'vip' OR (age > 18 AND age < 30)")
	require.NoError(t, err)
	require.Len(t, spec.Where, 1)

	or := spec.Where[0].(*query.Logical)
	assert.Equal(t, query.LogicOr, or.Operator)
	require.Len(t, or.Children, 2)

	_, isSimple := or.Children[0].(*query.Simple)
	assert.True(t, isSimple)

	and, isLogical := or.Children[1].(*query.Logical)
	require.True(t, isLogical)
	assert.Equal(t, query.LogicAnd, and.Operator)
	assert.Len(t, and.Children, 2)
}

// TestParseQueryNotOperator 测试 NOT 一元运算
func TestParseQueryNotOperator(t *testing.T) {
	p := NewParser()

	spec, err := p.ParseQuery("SELECT * FROM users WHERE NOT (status = 'blocked')")
	require.NoError(t, err)
	require.Len(t, spec.Where, 1)

	not := spec.Where[0].(*query.Logical)
	assert.Equal(t, query.LogicNot, not.Operator)
	require.Len(t, not.Children, 1)
	assert.Equal(t, "status", not.Children[0].(*query.Simple).Field)
}

// TestParseQueryExplicitJoin 测试显式 JOIN 的表序列和连接条件
func TestParseQueryExplicitJoin(t *testing.T) {
	p := NewParser()

	spec, err := p.ParseQuery(
		"SELECT * FROM users JOIN orders ON users.id = orders.user_id WHERE users.status = 'active'")
	require.NoError(t, err)
	assert.Equal(t, "users", spec.TableName)
	assert.Equal(t, []string{"users", "orders"}, spec.Joins)

	require.Len(t, spec.On, 1)
	cond := spec.On[0]
	assert.Equal(t, "users", cond.LeftTable)
	assert.Equal(t, "orders", cond.RightTable)
	assert.Equal(t, "user_id", cond.JoinField)

	require.Len(t, spec.Where, 1)
	assert.Equal(t, "users.status", spec.Where[0].(*query.Simple).Field)
}

// TestParseQueryJoinWithAlias 测试别名解析回真实表名
func TestParseQueryJoinWithAlias(t *testing.T) {
	p := NewParser()

	spec, err := p.ParseQuery(
		"SELECT * FROM users u JOIN orders o ON u.id = o.user_id WHERE u.status = 'active'")
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "orders"}, spec.Joins)

	require.Len(t, spec.On, 1)
	assert.Equal(t, "users", spec.On[0].LeftTable)
	assert.Equal(t, "orders", spec.On[0].RightTable)
	assert.Equal(t, "user_id", spec.On[0].JoinField)

	require.Len(t, spec.Where, 1)
	assert.Equal(t, "users.status", spec.Where[0].(*query.Simple).Field)
}

// TestParseQueryMultipleJoins 测试链式 JOIN 按 FROM 顺序收集
func TestParseQueryMultipleJoins(t *testing.T) {
	p := NewParser()

	spec, err := p.ParseQuery(
		"SELECT * FROM users " +
			"JOIN orders ON users.id = orders.user_id " +
			"JOIN payments ON orders.id = payments.order_id")
	require.NoError(t, err)
	assert.Equal(t, "users", spec.TableName)
	assert.Equal(t, []string{"users", "orders", "payments"}, spec.Joins)

	require.Len(t, spec.On, 2)
	assert.Equal(t, "users", spec.On[0].LeftTable)
	assert.Equal(t, "orders", spec.On[0].RightTable)
	assert.Equal(t, "orders", spec.On[1].LeftTable)
	assert.Equal(t, "payments", spec.On[1].RightTable)
	assert.Equal(t, "order_id", spec.On[1].JoinField)
}

// TestParseQueryLeftJoin 测试外连接同样收集表和条件
func TestParseQueryLeftJoin(t *testing.T) {
	p := NewParser()

	spec, err := p.ParseQuery(
		"SELECT * FROM users LEFT JOIN orders ON users.id = orders.user_id")
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "orders"}, spec.Joins)
	require.Len(t, spec.On, 1)
	assert.Equal(t, "user_id", spec.On[0].JoinField)
}

// TestParseQueryImplicitCommaJoin 测试逗号连接从 WHERE 抽取连接条件
func TestParseQueryImplicitCommaJoin(t *testing.T) {
	p := NewParser()

	spec, err := p.ParseQuery(
		"SELECT * FROM users, orders WHERE users.id = orders.user_id AND orders.total > 100")
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "orders"}, spec.Joins)

	require.Len(t, spec.On, 1)
	assert.Equal(t, "users", spec.On[0].LeftTable)
	assert.Equal(t, "orders", spec.On[0].RightTable)
	assert.Equal(t, "user_id", spec.On[0].JoinField)

	require.Len(t, spec.Where, 1)
	simple := spec.Where[0].(*query.Simple)
	assert.Equal(t, "orders.total", simple.Field)
	assert.Equal(t, query.OpGT, simple.Operator)
	assert.Equal(t, "p1", simple.ParamName)
}

// TestParseQueryJoinUnqualifiedOn 测试 ON 列缺少限定名时退回相邻表
func TestParseQueryJoinUnqualifiedOn(t *testing.T) {
	p := NewParser()

	spec, err := p.ParseQuery("SELECT * FROM users JOIN orders ON id = user_id")
	require.NoError(t, err)
	require.Len(t, spec.On, 1)
	assert.Equal(t, "users", spec.On[0].LeftTable)
	assert.Equal(t, "orders", spec.On[0].RightTable)
	assert.Equal(t, "user_id", spec.On[0].JoinField)
}

// TestParseQueryUnsupportedPredicatesSkipped 测试函数调用等形态跳过且不占用参数序号
func TestParseQueryUnsupportedPredicatesSkipped(t *testing.T) {
	p := NewParser()

	spec, err := p.ParseQuery(
		"SELECT * FROM users WHERE LOWER(name) = 'bob' AND status = 'active'")
	require.NoError(t, err)
	require.Len(t, spec.Where, 1)

	simple := spec.Where[0].(*query.Simple)
	assert.Equal(t, "status", simple.Field)
	assert.Equal(t, "p1", simple.ParamName)
}

// TestParseQuerySubqueryInSkipped 测试 IN 子查询跳过
func TestParseQuerySubqueryInSkipped(t *testing.T) {
	p := NewParser()

	spec, err := p.ParseQuery(
		"SELECT * FROM users WHERE id IN (SELECT user_id FROM banned)")
	require.NoError(t, err)
	assert.Empty(t, spec.Where)
}

// TestParseQueryOrWithUnconvertibleArm 测试 OR 任一分支无法转换时整体放弃
func TestParseQueryOrWithUnconvertibleArm(t *testing.T) {
	p := NewParser()

	spec, err := p.ParseQuery(
		"SELECT * FROM users WHERE status = 'a' OR LOWER(name) = 'bob'")
	require.NoError(t, err)
	assert.Empty(t, spec.Where)
}

// TestParseQueryNoBaseTable 测试无 FROM 或子查询数据源返回校验错误
func TestParseQueryNoBaseTable(t *testing.T) {
	p := NewParser()

	for _, sql := range []string{
		"SELECT 1",
		"SELECT * FROM (SELECT id FROM users) t WHERE id = 1",
	} {
		spec, err := p.ParseQuery(sql)
		assert.Nil(t, spec, sql)
		require.Error(t, err, sql)
		assert.True(t, query.IsValidationError(err), sql)
	}
}

// TestParseQuerySchemaQualifiedTable 测试 schema 限定的表名
func TestParseQuerySchemaQualifiedTable(t *testing.T) {
	p := NewParser()

	spec, err := p.ParseQuery("SELECT * FROM shop.orders WHERE orders.total > 5")
	require.NoError(t, err)
	assert.Equal(t, "shop.orders", spec.TableName)
	require.Len(t, spec.Where, 1)
	assert.Equal(t, "shop.orders.total", spec.Where[0].(*query.Simple).Field)
}

// TestParseQueryMultipleStatements 测试多条语句只分析第一条
func TestParseQueryMultipleStatements(t *testing.T) {
	p := NewParser()

	spec, err := p.ParseQuery("SELECT * FROM users; SELECT * FROM orders")
	require.NoError(t, err)
	assert.Equal(t, "users", spec.TableName)
}

// TestParseQueryIgnoresProjectionAndOrdering 测试投影、排序、分页不影响转换
func TestParseQueryIgnoresProjectionAndOrdering(t *testing.T) {
	p := NewParser()

	spec, err := p.ParseQuery(
		"SELECT id, name FROM users WHERE status = 'active' " +
			"GROUP BY name ORDER BY id DESC LIMIT 10 OFFSET 5")
	require.NoError(t, err)
	assert.Equal(t, "users", spec.TableName)
	require.Len(t, spec.Where, 1)
}
