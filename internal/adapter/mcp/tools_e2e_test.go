package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/guillermoBallester/rampart/internal/adapter/postgres"
	"github.com/guillermoBallester/rampart/internal/audit"
	"github.com/guillermoBallester/rampart/internal/core/domain"
	"github.com/guillermoBallester/rampart/internal/core/port"
	"github.com/guillermoBallester/rampart/internal/core/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const e2eSchema = `
	CREATE TABLE categories (
		id   SERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	);
	COMMENT ON TABLE categories IS 'Product categories';

	CREATE TABLE products (
		id          SERIAL PRIMARY KEY,
		category_id INTEGER NOT NULL REFERENCES categories(id),
		name        TEXT NOT NULL,
		price       NUMERIC(10,2) NOT NULL DEFAULT 0
	);
	COMMENT ON TABLE products IS 'Product catalog';

	CREATE TABLE internal_audit (
		id     SERIAL PRIMARY KEY,
		secret TEXT NOT NULL
	);

	INSERT INTO categories (name) VALUES ('Electronics'), ('Books'), ('Clothing');

	INSERT INTO products (category_id, name, price)
	SELECT (i % 3) + 1, 'Product ' || i, (i * 3)::numeric(10,2)
	FROM generate_series(1, 200) AS i;

	INSERT INTO internal_audit (secret) VALUES ('do not read');
`

var e2eWhitelist = []string{"products", "categories"}

// setupE2E starts a Postgres testcontainer, applies the schema, and returns
// a fully wired MCP server backed by real adapters.
func setupE2E(t *testing.T, ceiling int) *server.MCPServer {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	_, err = pool.Exec(ctx, e2eSchema)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, "ANALYZE")
	require.NoError(t, err)

	// Real adapters and services.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	executor := postgres.NewExecutor(pool, true, 10*time.Second)
	validator := domain.NewValidator(e2eWhitelist, nil)
	guard := service.NewGuardService(validator, ceiling, executor, audit.NoopAuditor{}, logger, nil, nil)
	explorerSvc := service.NewExplorerService(postgres.NewExplorer(pool), e2eWhitelist)

	return NewServer("test-e2e", explorerSvc, guard, logger, nil, nil)
}

func TestE2E_MCPTools(t *testing.T) {
	s := setupE2E(t, 50)

	t.Run("list_tables", func(t *testing.T) {
		result := callToolE2E(t, s, "list_tables", nil)
		require.False(t, result.IsError, "unexpected error: %s", toolText(result))

		var tables []port.TableInfo
		require.NoError(t, json.Unmarshal([]byte(toolText(result)), &tables))

		byName := make(map[string]port.TableInfo)
		for _, tbl := range tables {
			byName[tbl.Name] = tbl
		}

		products := byName["products"]
		assert.Equal(t, "table", products.Type)
		assert.Equal(t, "Product catalog", products.Comment)
		require.NotNil(t, products.Whitelisted)
		assert.True(t, *products.Whitelisted)

		internal := byName["internal_audit"]
		require.NotNil(t, internal.Whitelisted)
		assert.False(t, *internal.Whitelisted)
	})

	t.Run("describe_table", func(t *testing.T) {
		result := callToolE2E(t, s, "describe_table", map[string]any{"table_name": "products"})
		require.False(t, result.IsError, "unexpected error: %s", toolText(result))

		var detail port.TableDetail
		require.NoError(t, json.Unmarshal([]byte(toolText(result)), &detail))
		assert.Equal(t, "public", detail.Schema)
		assert.Equal(t, "products", detail.Name)
		assert.Len(t, detail.Columns, 4)
	})

	t.Run("describe_table/not_found", func(t *testing.T) {
		result := callToolE2E(t, s, "describe_table", map[string]any{"table_name": "nonexistent_table"})
		assert.True(t, result.IsError)
		assert.Contains(t, toolText(result), "nonexistent_table")
	})

	t.Run("query", func(t *testing.T) {
		result := callToolE2E(t, s, "query", map[string]any{
			"sql": "SELECT p.name, c.name AS category FROM products p JOIN categories c ON c.id = p.category_id LIMIT 3",
		})
		require.False(t, result.IsError, "unexpected error: %s", toolText(result))

		var env domain.Envelope
		require.NoError(t, json.Unmarshal([]byte(toolText(result)), &env))
		assert.True(t, env.Accepted)
		assert.Equal(t, 3, env.RowCount)
		assert.Contains(t, env.Rows[0], "category")
	})

	t.Run("query/ceiling_applied", func(t *testing.T) {
		result := callToolE2E(t, s, "query", map[string]any{
			"sql": "SELECT id FROM products",
		})
		require.False(t, result.IsError, "unexpected error: %s", toolText(result))

		var env domain.Envelope
		require.NoError(t, json.Unmarshal([]byte(toolText(result)), &env))
		assert.True(t, env.Accepted)
		assert.Equal(t, 50, env.RowCount, "appended LIMIT enforces the ceiling")
		assert.False(t, env.Truncated, "the limit lands in SQL, not in post-hoc truncation")
	})

	t.Run("query/limit_rewritten", func(t *testing.T) {
		result := callToolE2E(t, s, "query", map[string]any{
			"sql": "SELECT id FROM products LIMIT 9999",
		})
		require.False(t, result.IsError, "unexpected error: %s", toolText(result))

		var env domain.Envelope
		require.NoError(t, json.Unmarshal([]byte(toolText(result)), &env))
		assert.Equal(t, 50, env.RowCount)
	})

	t.Run("query/rejects_insert", func(t *testing.T) {
		result := callToolE2E(t, s, "query", map[string]any{
			"sql": "INSERT INTO categories (name) VALUES ('test')",
		})
		assert.True(t, result.IsError)

		var env domain.Envelope
		require.NoError(t, json.Unmarshal([]byte(toolText(result)), &env))
		assert.False(t, env.Accepted)
		assert.Equal(t, domain.ReasonNonSelect, env.Reason)
	})

	t.Run("query/rejects_off_whitelist", func(t *testing.T) {
		result := callToolE2E(t, s, "query", map[string]any{
			"sql": "SELECT secret FROM internal_audit",
		})
		assert.True(t, result.IsError)

		var env domain.Envelope
		require.NoError(t, json.Unmarshal([]byte(toolText(result)), &env))
		assert.Equal(t, domain.ReasonTableNotWhitelisted, env.Reason)
	})

	t.Run("query/execution_error", func(t *testing.T) {
		result := callToolE2E(t, s, "query", map[string]any{
			"sql": "SELECT no_such_column FROM products",
		})
		assert.True(t, result.IsError)

		var env domain.Envelope
		require.NoError(t, json.Unmarshal([]byte(toolText(result)), &env))
		assert.True(t, env.Accepted, "policy accepted; the database rejected")
		assert.Equal(t, domain.ReasonExecutionError, env.Reason)
	})
}

var e2eSessionCounter atomic.Int64

// callToolE2E is like callTool but uses a unique session ID per call,
// allowing multiple calls against the same MCP server.
func callToolE2E(t *testing.T, s *server.MCPServer, toolName string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	sessionID := fmt.Sprintf("e2e-%d", e2eSessionCounter.Add(1))
	session := server.NewInProcessSession(sessionID, nil)
	require.NoError(t, s.RegisterSession(ctx, session))
	sessionCtx := s.WithContext(ctx, session)

	// Initialize session.
	initBytes, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": "init", "method": "initialize",
		"params": map[string]any{
			"protocolVersion": "2025-03-26",
			"capabilities":    map[string]any{},
			"clientInfo":      map[string]any{"name": "test-e2e", "version": "1.0"},
		},
	})
	s.HandleMessage(sessionCtx, initBytes)

	// Call tool.
	reqBytes, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": "call-1", "method": "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": args,
		},
	})
	resp := s.HandleMessage(sessionCtx, reqBytes)
	respBytes, _ := json.Marshal(resp)

	var rpc struct {
		Result *mcp.CallToolResult       `json:"result"`
		Error  *struct{ Message string } `json:"error,omitempty"`
	}
	require.NoError(t, json.Unmarshal(respBytes, &rpc))
	require.Nil(t, rpc.Error, "unexpected RPC error: %v", rpc.Error)
	require.NotNil(t, rpc.Result)
	return rpc.Result
}
