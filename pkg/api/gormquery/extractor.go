// Package gormquery turns a GORM query chain into a query.Spec so the
// chain can be analyzed before it is ever executed.
//
// The extractor renders the statement through a dry-run session and feeds
// the resulting SQL to the TiDB-based parser. Raw string conditions,
// map/struct conditions and Joins fragments are all supported because the
// analysis always starts from the final rendered SELECT.
package gormquery

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/kasuganosora/sqladvisor/pkg/query"
	"github.com/kasuganosora/sqladvisor/pkg/sqlparse"
)

// Extractor renders GORM statements and converts them to query specs.
// Safe for concurrent use once constructed.
type Extractor struct {
	parser *sqlparse.Parser
}

// NewExtractor creates an extractor with its own SQL parser instance.
func NewExtractor() *Extractor {
	return &Extractor{parser: sqlparse.NewParser()}
}

// ExtractSQL renders the SELECT statement the given chain would execute.
// The chain must carry a table, either via Table() or Model().
func (e *Extractor) ExtractSQL(db *gorm.DB) (string, error) {
	if db == nil {
		return "", query.NewValidationError("db", "gorm db must not be nil")
	}

	tx := db.Session(&gorm.Session{DryRun: true, SkipDefaultTransaction: true}).
		Find(&[]map[string]interface{}{})
	if tx.Error != nil {
		return "", fmt.Errorf("failed to render gorm query: %w", tx.Error)
	}

	stmt := tx.Statement
	rendered := db.Dialector.Explain(stmt.SQL.String(), stmt.Vars...)
	if strings.TrimSpace(rendered) == "" {
		return "", query.NewValidationError("db", "gorm statement rendered empty sql")
	}
	return rendered, nil
}

// Extract renders the chain and parses it into a query spec.
func (e *Extractor) Extract(db *gorm.DB) (*query.Spec, error) {
	sql, err := e.ExtractSQL(db)
	if err != nil {
		return nil, err
	}
	return e.parser.ParseQuery(sql)
}
