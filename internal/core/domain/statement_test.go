package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Verbs(t *testing.T) {
	t.Parallel()
	cases := []struct {
		sql  string
		verb Verb
	}{
		{"SELECT 1", VerbSelect},
		{"select * from t", VerbSelect},
		{"  \n SeLeCt 1", VerbSelect},
		{"INSERT INTO t VALUES (1)", VerbInsert},
		{"UPDATE t SET a = 1", VerbUpdate},
		{"DELETE FROM t", VerbDelete},
		{"DROP TABLE t", VerbDDL},
		{"CREATE TABLE t (id int)", VerbDDL},
		{"ALTER TABLE t ADD c int", VerbDDL},
		{"TRUNCATE t", VerbDDL},
		{"EXPLAIN SELECT 1", VerbUnknown},
		{"WITH x AS (SELECT 1) SELECT * FROM x", VerbUnknown},
	}
	for _, tc := range cases {
		stmt, err := Classify(tc.sql)
		require.NoError(t, err, tc.sql)
		assert.Equal(t, tc.verb, stmt.Verb, tc.sql)
	}
}

func TestClassify_SkipsLeadingComments(t *testing.T) {
	t.Parallel()
	stmt, err := Classify("-- a note\n/* another */ SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, VerbSelect, stmt.Verb)
}

func TestClassify_EmptyInput(t *testing.T) {
	t.Parallel()
	for _, sql := range []string{"", "   ", "-- only a comment", "/* nothing */"} {
		_, err := Classify(sql)
		assert.ErrorIs(t, err, ErrEmptyStatement, "%q", sql)
	}
}

func TestClassify_NonWordLead(t *testing.T) {
	t.Parallel()
	_, err := Classify("(SELECT 1)")
	assert.ErrorIs(t, err, ErrParseAmbiguous)
}

func TestClassify_UnbalancedQuoting(t *testing.T) {
	t.Parallel()
	_, err := Classify(`SELECT * FROM t WHERE name = 'oops`)
	assert.ErrorIs(t, err, ErrParseAmbiguous)
}

func TestClassify_StatementCount(t *testing.T) {
	t.Parallel()
	cases := []struct {
		sql   string
		count int
	}{
		{"SELECT 1", 1},
		{"SELECT 1;", 1},
		{"SELECT 1; ", 1},
		{"SELECT 1; -- done", 1},
		{"SELECT 1; DROP TABLE t", 2},
		{"SELECT 1; SELECT 2; SELECT 3", 3},
		{"SELECT ';' ", 1},
		{"SELECT 1;;", 1},
	}
	for _, tc := range cases {
		stmt, err := Classify(tc.sql)
		require.NoError(t, err, tc.sql)
		assert.Equal(t, tc.count, stmt.StatementCount, tc.sql)
	}
}

func TestReferencedTables(t *testing.T) {
	t.Parallel()
	cases := []struct {
		sql    string
		tables []string
	}{
		{"SELECT 1", nil},
		{"SELECT * FROM users", []string{"users"}},
		{"SELECT * FROM Users", []string{"users"}},
		{"SELECT * FROM public.users", []string{"public.users"}},
		{"SELECT * FROM users u JOIN orders o ON o.user_id = u.id", []string{"users", "orders"}},
		{"SELECT * FROM users LEFT JOIN orders ON true", []string{"users", "orders"}},
		{`SELECT * FROM "Order Items"`, []string{"Order Items"}},
		{`SELECT * FROM "Customers"`, []string{"Customers"}},
		{`SELECT * FROM public."Orders"`, []string{"public.Orders"}},
		{"SELECT * FROM (SELECT * FROM users) sub", []string{"users"}},
		{"SELECT * FROM users, orders", []string{"users", "orders"}},
		{"SELECT * FROM users u, public.orders o WHERE o.user_id = u.id", []string{"users", "public.orders"}},
		{"SELECT * FROM users u CROSS JOIN LATERAL (SELECT * FROM orders) o", []string{"users", "orders"}},
	}
	for _, tc := range cases {
		stmt, err := Classify(tc.sql)
		require.NoError(t, err, tc.sql)
		assert.Equal(t, tc.tables, stmt.ReferencedTables(), tc.sql)
	}
}
