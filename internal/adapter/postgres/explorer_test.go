package postgres_test

import (
	"context"
	"testing"

	"github.com/guillermoBallester/rampart/internal/adapter/postgres"
	"github.com/guillermoBallester/rampart/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListTables(t *testing.T) {
	pool := setupTestDB(t)
	explorer := postgres.NewExplorer(pool)

	tables, err := explorer.ListTables(context.Background())
	require.NoError(t, err)

	byName := make(map[string]port.TableInfo, len(tables))
	for _, tbl := range tables {
		byName[tbl.Name] = tbl
	}

	customers, ok := byName["customers"]
	require.True(t, ok)
	assert.Equal(t, "public", customers.Schema)
	assert.Equal(t, "table", customers.Type)
	assert.Equal(t, 3, customers.ColumnCount)
	assert.Equal(t, "Customer accounts", customers.Comment)
	assert.Nil(t, customers.Whitelisted, "annotation belongs to the service layer")

	_, ok = byName["orders"]
	assert.True(t, ok)
}

func TestDescribeTable(t *testing.T) {
	pool := setupTestDB(t)
	explorer := postgres.NewExplorer(pool)

	detail, err := explorer.DescribeTable(context.Background(), "public", "customers")
	require.NoError(t, err)

	assert.Equal(t, "public", detail.Schema)
	assert.Equal(t, "customers", detail.Name)
	assert.Equal(t, "Customer accounts", detail.Comment)
	require.Len(t, detail.Columns, 3)

	byName := make(map[string]port.ColumnInfo, len(detail.Columns))
	for _, c := range detail.Columns {
		byName[c.Name] = c
	}

	id := byName["id"]
	assert.True(t, id.IsPrimaryKey)
	assert.False(t, id.IsNullable)

	email := byName["email"]
	assert.True(t, email.IsNullable)
	assert.Equal(t, "Contact address", email.Comment)
	assert.False(t, email.IsPrimaryKey)
}

func TestDescribeTable_ResolvesSchema(t *testing.T) {
	pool := setupTestDB(t)
	explorer := postgres.NewExplorer(pool)

	detail, err := explorer.DescribeTable(context.Background(), "", "orders")
	require.NoError(t, err)
	assert.Equal(t, "public", detail.Schema)
}

func TestDescribeTable_NotFound(t *testing.T) {
	pool := setupTestDB(t)
	explorer := postgres.NewExplorer(pool)

	_, err := explorer.DescribeTable(context.Background(), "", "no_such_table")
	assert.ErrorIs(t, err, postgres.ErrTableNotFound)
}
