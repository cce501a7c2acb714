package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/guillermoBallester/rampart/internal/core/port"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTableNotFound is returned when DescribeTable cannot resolve the table.
var ErrTableNotFound = errors.New("table not found")

// Explorer answers schema-discovery requests from the catalog.
type Explorer struct {
	pool *pgxpool.Pool
}

func NewExplorer(pool *pgxpool.Pool) *Explorer {
	return &Explorer{pool: pool}
}

func (e *Explorer) ListTables(ctx context.Context) ([]port.TableInfo, error) {
	rows, err := e.pool.Query(ctx, queryListTables)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var tables []port.TableInfo
	for rows.Next() {
		var t port.TableInfo
		if err := rows.Scan(&t.Schema, &t.Name, &t.Type, &t.RowEstimate, &t.ColumnCount, &t.Comment); err != nil {
			return nil, fmt.Errorf("scanning table row: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// DescribeTable returns the full structure of one table. An empty schema
// resolves to the first non-system schema containing the table name.
func (e *Explorer) DescribeTable(ctx context.Context, schema, tableName string) (*port.TableDetail, error) {
	if schema == "" {
		if err := e.pool.QueryRow(ctx, queryResolveTable, tableName).Scan(&schema); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: %s", ErrTableNotFound, tableName)
			}
			return nil, fmt.Errorf("resolving schema for %s: %w", tableName, err)
		}
	}

	detail := &port.TableDetail{Schema: schema, Name: tableName}

	err := e.pool.QueryRow(ctx, queryTableMeta, schema, tableName).Scan(&detail.RowEstimate, &detail.Comment)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s.%s", ErrTableNotFound, schema, tableName)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching table metadata: %w", err)
	}

	columns, err := e.fetchColumns(ctx, schema, tableName)
	if err != nil {
		return nil, err
	}
	detail.Columns = columns

	return detail, nil
}

func (e *Explorer) fetchColumns(ctx context.Context, schema, tableName string) ([]port.ColumnInfo, error) {
	rows, err := e.pool.Query(ctx, queryColumns, schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("fetching columns: %w", err)
	}
	defer rows.Close()

	var columns []port.ColumnInfo
	for rows.Next() {
		var c port.ColumnInfo
		if err := rows.Scan(&c.Name, &c.DataType, &c.IsNullable, &c.DefaultValue, &c.Comment); err != nil {
			return nil, fmt.Errorf("scanning column row: %w", err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pks, err := e.fetchPrimaryKeys(ctx, schema, tableName)
	if err != nil {
		return nil, err
	}
	for i := range columns {
		if _, ok := pks[columns[i].Name]; ok {
			columns[i].IsPrimaryKey = true
		}
	}
	return columns, nil
}

func (e *Explorer) fetchPrimaryKeys(ctx context.Context, schema, tableName string) (map[string]struct{}, error) {
	rows, err := e.pool.Query(ctx, queryPrimaryKeys, schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("fetching primary keys: %w", err)
	}
	defer rows.Close()

	pks := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning primary key row: %w", err)
		}
		pks[name] = struct{}{}
	}
	return pks, rows.Err()
}
