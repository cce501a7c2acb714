package mcp

import (
	"testing"

	"github.com/guillermoBallester/rampart/internal/core/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardOutcome(t *testing.T) {
	t.Parallel()

	accepted := mcp.NewToolResultText(
		`{"accepted":true,"reason":"ok","rows":[{"id":1}],"row_count":1,"truncated":false,"error":null}`)
	env := guardOutcome("query", accepted)
	require.NotNil(t, env)
	assert.True(t, env.Accepted)
	assert.Equal(t, domain.ReasonOK, env.Reason)
	assert.Equal(t, 1, env.RowCount)

	// Rejections travel as tool errors but still carry the envelope.
	rejected := mcp.NewToolResultError(
		`{"accepted":false,"reason":"non_select","rows":null,"row_count":0,"truncated":false,"error":"query rejected: statement is not a SELECT"}`)
	env = guardOutcome("query", rejected)
	require.NotNil(t, env)
	assert.False(t, env.Accepted)
	assert.Equal(t, domain.ReasonNonSelect, env.Reason)

	// Other tools and non-envelope payloads yield nothing.
	assert.Nil(t, guardOutcome("list_tables", accepted))
	assert.Nil(t, guardOutcome("query", mcp.NewToolResultError("sql is required")))
	assert.Nil(t, guardOutcome("query", "not a tool result"))
	assert.Nil(t, guardOutcome("query", &mcp.CallToolResult{}))
}
