package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kasuganosora/sqladvisor/pkg/advisor"
	"github.com/kasuganosora/sqladvisor/pkg/monitor"
	"github.com/kasuganosora/sqladvisor/pkg/query"
	"github.com/kasuganosora/sqladvisor/pkg/sqlparse"
	"github.com/mark3labs/mcp-go/mcp"
)

type contextKey string

const ctxKeyAuthorized contextKey = "authorized"

// defaultCompositeThreshold is the usage share a column must exceed to enter a
// composite index when the caller does not pass an explicit threshold.
const defaultCompositeThreshold = 0.2

// ToolDeps holds shared dependencies for MCP tool handlers
type ToolDeps struct {
	Optimizer *advisor.QueryOptimizer
	Parser    *sqlparse.Parser
	Metrics   *monitor.MetricsCollector
}

// joinConditionInput is the wire form of one join condition argument
type joinConditionInput struct {
	LeftTable   string   `json:"left_table"`
	RightTable  string   `json:"right_table"`
	JoinField   string   `json:"join_field"`
	Selectivity *float64 `json:"selectivity"`
	HasIndex    *bool    `json:"has_index"`
}

// HandleAnalyzeSQL runs the full advisory pipeline over one SELECT statement
func (d *ToolDeps) HandleAnalyzeSQL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !authorized(ctx) {
		return mcp.NewToolResultError("unauthorized: valid Bearer token required"), nil
	}

	sql := request.GetString("sql", "")
	if sql == "" {
		return mcp.NewToolResultError("sql parameter is required"), nil
	}

	spec, err := d.Parser.ParseQuery(sql)
	if err != nil {
		d.recordFailure("analyze_sql")
		return mcp.NewToolResultError(fmt.Sprintf("parse failed: %v", err)), nil
	}

	result, err := d.Optimizer.Analyze(spec)
	if err != nil {
		d.recordFailure("analyze_sql")
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		d.recordFailure("analyze_sql")
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}

	return mcp.NewToolResultText(string(payload)), nil
}

// HandleSuggestIndexes suggests indexes for the filter and join columns of one
// SELECT statement
func (d *ToolDeps) HandleSuggestIndexes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !authorized(ctx) {
		return mcp.NewToolResultError("unauthorized: valid Bearer token required"), nil
	}

	sql := request.GetString("sql", "")
	if sql == "" {
		return mcp.NewToolResultError("sql parameter is required"), nil
	}

	spec, err := d.Parser.ParseQuery(sql)
	if err != nil {
		d.recordFailure("suggest_indexes")
		return mcp.NewToolResultError(fmt.Sprintf("parse failed: %v", err)), nil
	}

	suggestions, err := d.Optimizer.Advisor().AnalyzeQuery(spec)
	if err != nil {
		d.recordFailure("suggest_indexes")
		return mcp.NewToolResultError(fmt.Sprintf("index analysis failed: %v", err)), nil
	}

	payload, err := json.MarshalIndent(suggestions, "", "  ")
	if err != nil {
		d.recordFailure("suggest_indexes")
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}

	return mcp.NewToolResultText(string(payload)), nil
}

// HandleSuggestJoinOrder suggests a cheaper join sequence for a set of tables
func (d *ToolDeps) HandleSuggestJoinOrder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !authorized(ctx) {
		return mcp.NewToolResultError("unauthorized: valid Bearer token required"), nil
	}

	tablesParam := request.GetString("tables", "")
	conditionsParam := request.GetString("conditions", "")

	if tablesParam == "" {
		return mcp.NewToolResultError("tables parameter is required"), nil
	}
	if conditionsParam == "" {
		return mcp.NewToolResultError("conditions parameter is required"), nil
	}

	sequence := splitTableList(tablesParam)

	var inputs []joinConditionInput
	if err := json.Unmarshal([]byte(conditionsParam), &inputs); err != nil {
		d.recordFailure("suggest_join_order")
		return mcp.NewToolResultError(fmt.Sprintf("invalid conditions JSON: %v", err)), nil
	}

	conditions := make([]query.JoinCondition, 0, len(inputs))
	for i, in := range inputs {
		cond, err := query.NewJoinCondition(in.LeftTable, in.RightTable, in.JoinField)
		if err != nil {
			d.recordFailure("suggest_join_order")
			return mcp.NewToolResultError(fmt.Sprintf("condition %d is invalid: %v", i+1, err)), nil
		}
		if in.Selectivity != nil {
			cond = cond.WithSelectivity(*in.Selectivity)
		}
		if in.HasIndex != nil {
			cond = cond.WithIndex(*in.HasIndex)
		}
		conditions = append(conditions, cond)
	}

	suggestions, err := d.Optimizer.Reorder().AnalyzeJoinSequence(sequence, conditions)
	if err != nil {
		d.recordFailure("suggest_join_order")
		return mcp.NewToolResultError(fmt.Sprintf("join analysis failed: %v", err)), nil
	}

	payload, err := json.MarshalIndent(suggestions, "", "  ")
	if err != nil {
		d.recordFailure("suggest_join_order")
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}

	return mcp.NewToolResultText(string(payload)), nil
}

// HandleSuggestCompositeIndex suggests a composite index from column usage
// counts collected over a workload
func (d *ToolDeps) HandleSuggestCompositeIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !authorized(ctx) {
		return mcp.NewToolResultError("unauthorized: valid Bearer token required"), nil
	}

	table := request.GetString("table", "")
	usageParam := request.GetString("column_usage", "")

	if table == "" {
		return mcp.NewToolResultError("table parameter is required"), nil
	}
	if usageParam == "" {
		return mcp.NewToolResultError("column_usage parameter is required"), nil
	}

	var usage map[string]int
	if err := json.Unmarshal([]byte(usageParam), &usage); err != nil {
		d.recordFailure("suggest_composite_index")
		return mcp.NewToolResultError(fmt.Sprintf("invalid column_usage JSON: %v", err)), nil
	}

	threshold := defaultCompositeThreshold
	if raw := request.GetString("threshold", ""); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid threshold %q", raw)), nil
		}
		threshold = v
	}

	suggestions, err := d.Optimizer.Advisor().SuggestCompositeIndexes(table, usage, threshold)
	if err != nil {
		d.recordFailure("suggest_composite_index")
		return mcp.NewToolResultError(fmt.Sprintf("composite index analysis failed: %v", err)), nil
	}

	payload, err := json.MarshalIndent(suggestions, "", "  ")
	if err != nil {
		d.recordFailure("suggest_composite_index")
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}

	return mcp.NewToolResultText(string(payload)), nil
}

// splitTableList splits a comma separated table list, dropping empty items
func splitTableList(s string) []string {
	parts := strings.Split(s, ",")
	tables := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tables = append(tables, t)
		}
	}
	return tables
}

// recordFailure counts one failed tool call in the shared metrics collector
func (d *ToolDeps) recordFailure(toolName string) {
	if d.Metrics != nil {
		d.Metrics.RecordError("mcp_" + toolName)
	}
}

// authorized reports whether the HTTP transport marked this request as
// authenticated. Requests that never passed the context func are rejected.
func authorized(ctx context.Context) bool {
	ok, _ := ctx.Value(ctxKeyAuthorized).(bool)
	return ok
}
