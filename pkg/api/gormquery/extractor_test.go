package gormquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/utils/tests"

	"github.com/kasuganosora/sqladvisor/pkg/query"
)

type User struct {
	ID     uint
	Status string
	Age    int
}

func newDryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(tests.DummyDialector{}, &gorm.Config{DryRun: true})
	require.NoError(t, err)
	return db
}

// TestExtractNilDB rejects a nil chain.
func TestExtractNilDB(t *testing.T) {
	e := NewExtractor()

	_, err := e.ExtractSQL(nil)
	require.Error(t, err)
	assert.True(t, query.IsValidationError(err))

	_, err = e.Extract(nil)
	require.Error(t, err)
	assert.True(t, query.IsValidationError(err))
}

// TestExtractSQLRendersSelect renders the statement with values inlined.
func TestExtractSQLRendersSelect(t *testing.T) {
	e := NewExtractor()
	db := newDryRunDB(t)

	sql, err := e.ExtractSQL(db.Table("users").Where("status = ?", "active"))
	require.NoError(t, err)
	assert.Contains(t, sql, "SELECT * FROM `users`")
	assert.Contains(t, sql, `status = "active"`)
}

// TestExtractRawWhere converts a raw string condition.
func TestExtractRawWhere(t *testing.T) {
	e := NewExtractor()
	db := newDryRunDB(t)

	spec, err := e.Extract(db.Table("users").Where("status = ?", "active"))
	require.NoError(t, err)
	assert.Equal(t, "users", spec.TableName)
	require.Len(t, spec.Where, 1)

	simple, ok := spec.Where[0].(*query.Simple)
	require.True(t, ok)
	assert.Equal(t, "status", simple.Field)
	assert.Equal(t, query.OpEQ, simple.Operator)
	assert.Equal(t, "active", simple.Value)
}

// TestExtractMapConditions converts map conditions, keys render sorted.
func TestExtractMapConditions(t *testing.T) {
	e := NewExtractor()
	db := newDryRunDB(t)

	spec, err := e.Extract(db.Table("users").Where(map[string]interface{}{
		"status": "active",
		"age":    25,
	}))
	require.NoError(t, err)
	require.Len(t, spec.Where, 2)

	age := spec.Where[0].(*query.Simple)
	assert.Equal(t, "age", age.Field)
	assert.Equal(t, int64(25), age.Value)

	status := spec.Where[1].(*query.Simple)
	assert.Equal(t, "status", status.Field)
	assert.Equal(t, "active", status.Value)
}

// TestExtractStructModel resolves the table name from the model.
func TestExtractStructModel(t *testing.T) {
	e := NewExtractor()
	db := newDryRunDB(t)

	spec, err := e.Extract(db.Model(&User{}).Where("age > ?", 18))
	require.NoError(t, err)
	assert.Equal(t, "users", spec.TableName)
	require.Len(t, spec.Where, 1)

	simple := spec.Where[0].(*query.Simple)
	assert.Equal(t, "age", simple.Field)
	assert.Equal(t, query.OpGT, simple.Operator)
	assert.Equal(t, int64(18), simple.Value)
}

// TestExtractJoins picks up join sequence and conditions from a Joins fragment.
func TestExtractJoins(t *testing.T) {
	e := NewExtractor()
	db := newDryRunDB(t)

	spec, err := e.Extract(db.Table("users").
		Joins("JOIN orders ON users.id = orders.user_id").
		Where("users.status = ?", "active"))
	require.NoError(t, err)
	assert.Equal(t, "users", spec.TableName)
	assert.Equal(t, []string{"users", "orders"}, spec.Joins)

	require.Len(t, spec.On, 1)
	assert.Equal(t, "users", spec.On[0].LeftTable)
	assert.Equal(t, "orders", spec.On[0].RightTable)
	assert.Equal(t, "user_id", spec.On[0].JoinField)

	require.Len(t, spec.Where, 1)
	assert.Equal(t, "users.status", spec.Where[0].(*query.Simple).Field)
}

// TestExtractInSlice expands slice vars into an IN predicate.
func TestExtractInSlice(t *testing.T) {
	e := NewExtractor()
	db := newDryRunDB(t)

	spec, err := e.Extract(db.Table("users").
		Where("status IN ?", []string{"active", "pending", "blocked"}))
	require.NoError(t, err)
	require.Len(t, spec.Where, 1)

	in, ok := spec.Where[0].(*query.In)
	require.True(t, ok)
	assert.Equal(t, "status", in.Field)
	assert.Len(t, in.Values, 3)
}

// TestExtractOrChain keeps OR conditions as one logical predicate.
func TestExtractOrChain(t *testing.T) {
	e := NewExtractor()
	db := newDryRunDB(t)

	spec, err := e.Extract(db.Table("users").
		Where("age > ?", 18).
		Or("score > ?", 90))
	require.NoError(t, err)
	require.Len(t, spec.Where, 1)

	or, ok := spec.Where[0].(*query.Logical)
	require.True(t, ok)
	assert.Equal(t, query.LogicOr, or.Operator)
	assert.Len(t, or.Children, 2)
}

// TestExtractNoTable surfaces the render error when no table is set.
func TestExtractNoTable(t *testing.T) {
	e := NewExtractor()
	db := newDryRunDB(t)

	_, err := e.Extract(db.Where("status = ?", "active"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to render gorm query")
}

// TestExtractIgnoresOrderingAndLimit converts only the filter surface.
func TestExtractIgnoresOrderingAndLimit(t *testing.T) {
	e := NewExtractor()
	db := newDryRunDB(t)

	spec, err := e.Extract(db.Table("users").
		Where("age > ?", 18).
		Order("id DESC").
		Limit(10))
	require.NoError(t, err)
	require.Len(t, spec.Where, 1)
}
