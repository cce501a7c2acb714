package port

import "context"

// TableInfo summarizes one table or view for discovery results.
type TableInfo struct {
	Schema      string `json:"schema"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	RowEstimate int64  `json:"row_estimate"`
	ColumnCount int    `json:"column_count"`
	Comment     string `json:"comment,omitempty"`
	Whitelisted *bool  `json:"whitelisted,omitempty"`
}

// ColumnInfo describes a single column of a table.
type ColumnInfo struct {
	Name         string `json:"name"`
	DataType     string `json:"data_type"`
	IsNullable   bool   `json:"is_nullable"`
	DefaultValue string `json:"default_value,omitempty"`
	IsPrimaryKey bool   `json:"is_primary_key"`
	Comment      string `json:"comment,omitempty"`
}

// TableDetail is the full structure of one table.
type TableDetail struct {
	Schema      string       `json:"schema"`
	Name        string       `json:"name"`
	Comment     string       `json:"comment,omitempty"`
	RowEstimate int64        `json:"row_estimate"`
	Columns     []ColumnInfo `json:"columns"`
}

// SchemaExplorer provides the discovery surface an agent needs to aim its
// queries at permitted tables.
type SchemaExplorer interface {
	ListTables(ctx context.Context) ([]TableInfo, error)
	DescribeTable(ctx context.Context, schema, tableName string) (*TableDetail, error)
}
