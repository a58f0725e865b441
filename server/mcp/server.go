package mcp

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/kasuganosora/sqladvisor/pkg/advisor"
	"github.com/kasuganosora/sqladvisor/pkg/config"
	"github.com/kasuganosora/sqladvisor/pkg/monitor"
	"github.com/kasuganosora/sqladvisor/pkg/sqlparse"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Server is the MCP protocol server
type Server struct {
	optimizer *advisor.QueryOptimizer
	metrics   *monitor.MetricsCollector
	cfg       *config.ServerConfig
}

// NewServer creates a new MCP server
func NewServer(optimizer *advisor.QueryOptimizer, cfg *config.ServerConfig) *Server {
	if cfg == nil {
		cfg = &config.DefaultConfig().Server
	}
	return &Server{
		optimizer: optimizer,
		cfg:       cfg,
	}
}

// SetMetrics sets the metrics collector used for tool call error accounting
func (s *Server) SetMetrics(metrics *monitor.MetricsCollector) {
	s.metrics = metrics
}

// Start starts the MCP server (blocking)
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	deps := &ToolDeps{
		Optimizer: s.optimizer,
		Parser:    sqlparse.NewParser(),
		Metrics:   s.metrics,
	}

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer(
		"sqladvisor",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)

	// Register tools
	analyzeTool := mcp.NewTool("analyze_sql",
		mcp.WithDescription("Run the full advisory analysis on a SELECT statement: index suggestions, predicate pushdown suggestions and join reorder suggestions. Nothing is executed against a database."),
		mcp.WithString("sql", mcp.Description("The SELECT statement to analyze"), mcp.Required()),
	)

	indexTool := mcp.NewTool("suggest_indexes",
		mcp.WithDescription("Suggest indexes for the filter and join columns of a SELECT statement"),
		mcp.WithString("sql", mcp.Description("The SELECT statement to analyze"), mcp.Required()),
	)

	joinTool := mcp.NewTool("suggest_join_order",
		mcp.WithDescription("Suggest a cheaper join sequence for a set of tables. Conditions are JSON objects with left_table, right_table, join_field and optional selectivity (0.0-1.0) and has_index fields."),
		mcp.WithString("tables", mcp.Description("Join sequence as a comma separated table list, e.g. \"products,orders,users\""), mcp.Required()),
		mcp.WithString("conditions", mcp.Description("Join conditions as a JSON array"), mcp.Required()),
	)

	compositeTool := mcp.NewTool("suggest_composite_index",
		mcp.WithDescription("Suggest a composite index from column usage counts collected over a workload"),
		mcp.WithString("table", mcp.Description("The table name"), mcp.Required()),
		mcp.WithString("column_usage", mcp.Description("JSON object mapping column name to usage count, e.g. {\"status\": 12, \"created_at\": 7}"), mcp.Required()),
		mcp.WithString("threshold", mcp.Description("Minimum share of total usage for a column to qualify, 0.0-1.0 (default 0.2)")),
	)

	mcpSrv.AddTool(analyzeTool, deps.HandleAnalyzeSQL)
	mcpSrv.AddTool(indexTool, deps.HandleSuggestIndexes)
	mcpSrv.AddTool(joinTool, deps.HandleSuggestJoinOrder)
	mcpSrv.AddTool(compositeTool, deps.HandleSuggestCompositeIndex)

	// Create Streamable HTTP transport with auth
	httpServer := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath("/mcp"),
		mcpserver.WithHTTPContextFunc(s.authContextFunc()),
	)

	log.Printf("[MCP] 启动 MCP 服务器: %s", addr)
	return httpServer.Start(addr)
}

// authContextFunc returns an HTTP context function that validates Bearer token
// auth against the configured static token. An empty configured token disables
// authentication and every request is marked authorized.
func (s *Server) authContextFunc() mcpserver.HTTPContextFunc {
	return func(ctx context.Context, r *http.Request) context.Context {
		if s.cfg.AuthToken == "" {
			return context.WithValue(ctx, ctxKeyAuthorized, true)
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			return ctx
		}

		// Expect "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return ctx
		}

		if parts[1] != s.cfg.AuthToken {
			return ctx
		}

		return context.WithValue(ctx, ctxKeyAuthorized, true)
	}
}
