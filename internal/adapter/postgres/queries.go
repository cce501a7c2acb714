package postgres

// Catalog queries for the discovery surface. Row estimates come from
// pg_class.reltuples, so they are only as fresh as the last ANALYZE.

const queryListTables = `
	SELECT
		t.table_schema,
		t.table_name,
		CASE t.table_type WHEN 'VIEW' THEN 'view' ELSE 'table' END,
		COALESCE(c.reltuples::bigint, 0),
		(
			SELECT count(*)
			FROM information_schema.columns col
			WHERE col.table_schema = t.table_schema AND col.table_name = t.table_name
		),
		COALESCE(obj_description(c.oid, 'pg_class'), '')
	FROM information_schema.tables t
	LEFT JOIN pg_catalog.pg_namespace n ON n.nspname = t.table_schema
	LEFT JOIN pg_catalog.pg_class c ON c.relnamespace = n.oid AND c.relname = t.table_name
	WHERE t.table_schema NOT IN ('pg_catalog', 'information_schema')
	ORDER BY t.table_schema, t.table_name`

const queryResolveTable = `
	SELECT table_schema
	FROM information_schema.tables
	WHERE table_name = $1
		AND table_schema NOT IN ('pg_catalog', 'information_schema')
	ORDER BY table_schema
	LIMIT 1`

const queryTableMeta = `
	SELECT
		COALESCE(c.reltuples::bigint, 0),
		COALESCE(obj_description(c.oid, 'pg_class'), '')
	FROM pg_catalog.pg_class c
	JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
	WHERE n.nspname = $1 AND c.relname = $2`

const queryColumns = `
	SELECT
		col.column_name,
		col.data_type,
		col.is_nullable = 'YES',
		COALESCE(col.column_default, ''),
		COALESCE(col_description(c.oid, col.ordinal_position), '')
	FROM information_schema.columns col
	LEFT JOIN pg_catalog.pg_namespace n ON n.nspname = col.table_schema
	LEFT JOIN pg_catalog.pg_class c ON c.relnamespace = n.oid AND c.relname = col.table_name
	WHERE col.table_schema = $1 AND col.table_name = $2
	ORDER BY col.ordinal_position`

const queryPrimaryKeys = `
	SELECT kcu.column_name
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kcu
		ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
	WHERE tc.table_schema = $1 AND tc.table_name = $2 AND tc.constraint_type = 'PRIMARY KEY'`
