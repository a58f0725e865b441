package sqlparse

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"

	"github.com/kasuganosora/sqladvisor/pkg/query"
)

// Parser SQL 解析器，封装 TiDB parser
// 把 SELECT 语句转换为查询分析层使用的 query.Spec。
// TiDB parser 实例有内部状态，互斥锁保证并发调用安全。
type Parser struct {
	mu     sync.Mutex
	parser *parser.Parser
}

// NewParser 创建新的 SQL 解析器
func NewParser() *Parser {
	return &Parser{
		parser: parser.New(),
	}
}

// UnsupportedStatementError 语句类型不支持分析时返回
type UnsupportedStatementError struct {
	StmtType string
}

func (e *UnsupportedStatementError) Error() string {
	return fmt.Sprintf("unsupported statement type %s: only SELECT can be analyzed", e.StmtType)
}

// IsUnsupportedStatement 判断错误是否为语句类型不支持
func IsUnsupportedStatement(err error) bool {
	var target *UnsupportedStatementError
	return errors.As(err, &target)
}

// ParseQuery 解析 SQL 并转换为查询描述
// 输入包含多条语句时只分析第一条
func (p *Parser) ParseQuery(sql string) (*query.Spec, error) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return nil, query.NewValidationError("sql", "sql statement must not be empty")
	}

	p.mu.Lock()
	stmts, _, err := p.parser.ParseSQL(trimmed)
	p.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to parse sql: %w", err)
	}
	if len(stmts) == 0 {
		return nil, query.NewValidationError("sql", "no statement found in input")
	}

	sel, ok := stmts[0].(*ast.SelectStmt)
	if !ok {
		return nil, &UnsupportedStatementError{StmtType: stmtTypeName(stmts[0])}
	}
	return convertSelect(sel)
}

// stmtTypeName 获取 SQL 语句类型名称
func stmtTypeName(stmt ast.StmtNode) string {
	switch stmt.(type) {
	case *ast.SelectStmt:
		return "SELECT"
	case *ast.InsertStmt:
		return "INSERT"
	case *ast.UpdateStmt:
		return "UPDATE"
	case *ast.DeleteStmt:
		return "DELETE"
	case *ast.SetStmt:
		return "SET"
	case *ast.ShowStmt:
		return "SHOW"
	case *ast.UseStmt:
		return "USE"
	case *ast.CreateTableStmt:
		return "CREATE_TABLE"
	case *ast.DropTableStmt:
		return "DROP_TABLE"
	case *ast.AlterTableStmt:
		return "ALTER_TABLE"
	case *ast.TruncateTableStmt:
		return "TRUNCATE_TABLE"
	case *ast.BeginStmt:
		return "BEGIN"
	case *ast.CommitStmt:
		return "COMMIT"
	case *ast.RollbackStmt:
		return "ROLLBACK"
	default:
		return "UNKNOWN"
	}
}
