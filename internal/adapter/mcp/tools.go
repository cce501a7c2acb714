package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/guillermoBallester/rampart/internal/core/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server metadata
const serverName = "rampart"

// Tool descriptions
const (
	descListTables = "List all tables and views with schema, type, estimated row count, and column count. " +
		"When a table whitelist is configured each entry is marked whitelisted true/false; " +
		"only whitelisted tables may appear in queries, so check this before writing SQL."

	descDescribeTable = "Describe a table's structure: columns with types, nullability, defaults, " +
		"primary keys, and comments, plus the row estimate. " +
		"Use this to understand a table before writing queries."

	descDescribeTableParam = "Name of the table to describe"

	descQuery = "Run a single read-only SELECT statement through the SQL guardrail and return a result envelope " +
		"{accepted, reason, rows, row_count, truncated, error}. " +
		"Statements are rejected when they are not a single SELECT, contain forbidden keywords or comments, " +
		"or reference tables outside the whitelist; a server-side row ceiling and query timeout are enforced. " +
		"On rejection, read the reason, fix the SQL, and retry with a narrower query."

	descQueryParam = "SQL to execute (a single SELECT statement)"
)

func RegisterTools(s *server.MCPServer, explorer *service.ExplorerService, guard *service.GuardService) {
	s.AddTool(
		mcp.NewTool("list_tables",
			mcp.WithDescription(descListTables),
		),
		listTablesHandler(explorer),
	)

	s.AddTool(
		mcp.NewTool("describe_table",
			mcp.WithDescription(descDescribeTable),
			mcp.WithString("table_name",
				mcp.Required(),
				mcp.Description(descDescribeTableParam),
			),
			mcp.WithString("schema",
				mcp.Description("Schema name (optional, resolves automatically if omitted)"),
			),
		),
		describeTableHandler(explorer),
	)

	s.AddTool(
		mcp.NewTool("query",
			mcp.WithDescription(descQuery),
			mcp.WithString("sql",
				mcp.Required(),
				mcp.Description(descQueryParam),
			),
		),
		queryHandler(guard),
	)
}

func listTablesHandler(explorer *service.ExplorerService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tables, err := explorer.ListTables(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list tables: %v", err)), nil
		}

		data, err := json.Marshal(tables)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func describeTableHandler(explorer *service.ExplorerService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tableName, ok := request.GetArguments()["table_name"].(string)
		if !ok || tableName == "" {
			return mcp.NewToolResultError("table_name is required"), nil
		}

		schema, _ := request.GetArguments()["schema"].(string)

		detail, err := explorer.DescribeTable(ctx, schema, tableName)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to describe table: %v", err)), nil
		}

		data, err := json.Marshal(detail)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func queryHandler(guard *service.GuardService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, ok := request.GetArguments()["sql"].(string)
		if !ok || sql == "" {
			return mcp.NewToolResultError("sql is required"), nil
		}

		ctx = service.WithToolName(ctx, "query")
		env := guard.Run(ctx, sql)

		data, err := json.Marshal(env)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		// The envelope is returned either way; rejections and execution
		// failures are flagged as tool errors so the agent re-plans.
		if !env.Accepted || env.Error != nil {
			return mcp.NewToolResultError(string(data)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}
