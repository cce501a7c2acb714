package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func normalize(t *testing.T, sql string, ceiling int) NormalizedStatement {
	t.Helper()
	norm, err := Normalize(mustClassify(t, sql), ceiling)
	require.NoError(t, err)
	return norm
}

func TestNormalize_AppendsLimitWhenAbsent(t *testing.T) {
	t.Parallel()
	norm := normalize(t, "SELECT * FROM users", 100)
	assert.Equal(t, "SELECT * FROM users LIMIT 100", norm.SQL)
	assert.Equal(t, 100, norm.Limit)
}

func TestNormalize_KeepsLimitUnderCeiling(t *testing.T) {
	t.Parallel()
	norm := normalize(t, "SELECT * FROM users LIMIT 50", 100)
	assert.Equal(t, "SELECT * FROM users LIMIT 50", norm.SQL)
	assert.Equal(t, 50, norm.Limit)
}

func TestNormalize_KeepsLimitEqualToCeiling(t *testing.T) {
	t.Parallel()
	norm := normalize(t, "SELECT * FROM users LIMIT 100", 100)
	assert.Equal(t, "SELECT * FROM users LIMIT 100", norm.SQL)
	assert.Equal(t, 100, norm.Limit)
}

func TestNormalize_RewritesLimitAboveCeiling(t *testing.T) {
	t.Parallel()
	norm := normalize(t, "SELECT * FROM users LIMIT 5000", 100)
	assert.Equal(t, "SELECT * FROM users LIMIT 100", norm.SQL)
	assert.Equal(t, 100, norm.Limit)
}

func TestNormalize_StripsTrailingSemicolon(t *testing.T) {
	t.Parallel()
	norm := normalize(t, "SELECT * FROM users;", 100)
	assert.Equal(t, "SELECT * FROM users LIMIT 100", norm.SQL)

	norm = normalize(t, "SELECT * FROM users LIMIT 200 ;", 100)
	assert.Equal(t, "SELECT * FROM users LIMIT 100", norm.SQL)
}

func TestNormalize_IgnoresTrailingComment(t *testing.T) {
	t.Parallel()
	// Custom denylists may allow comments; the normalizer still has to
	// find the statement's true end past them.
	norm := normalize(t, "SELECT * FROM users -- latest batch\n", 100)
	assert.Equal(t, "SELECT * FROM users LIMIT 100", norm.SQL)
}

func TestNormalize_SubqueryLimitUntouched(t *testing.T) {
	t.Parallel()
	sql := "SELECT * FROM (SELECT * FROM events LIMIT 9999) e"
	norm := normalize(t, sql, 100)
	assert.Equal(t, sql+" LIMIT 100", norm.SQL)
	assert.Equal(t, 100, norm.Limit)
}

func TestNormalize_LastTopLevelLimitWins(t *testing.T) {
	t.Parallel()
	norm := normalize(t, "SELECT * FROM (SELECT 1 LIMIT 3) x LIMIT 500", 100)
	assert.Equal(t, "SELECT * FROM (SELECT 1 LIMIT 3) x LIMIT 100", norm.SQL)
}

func TestNormalize_LimitPreservesSurroundingText(t *testing.T) {
	t.Parallel()
	norm := normalize(t, "SELECT id FROM users WHERE name = 'LIMIT 9' LIMIT 900 OFFSET 10", 100)
	assert.Equal(t, "SELECT id FROM users WHERE name = 'LIMIT 9' LIMIT 100 OFFSET 10", norm.SQL)
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"SELECT * FROM users",
		"SELECT * FROM users LIMIT 5000",
		"SELECT * FROM users LIMIT 10",
		"SELECT * FROM users;",
	}
	for _, sql := range inputs {
		once := normalize(t, sql, 100)
		twice := normalize(t, once.SQL, 100)
		assert.Equal(t, once.SQL, twice.SQL, sql)
		assert.Equal(t, once.Limit, twice.Limit, sql)
	}
}

func TestNormalize_NonLiteralLimitRejected(t *testing.T) {
	t.Parallel()
	cases := []string{
		"SELECT * FROM users LIMIT $1",
		"SELECT * FROM users LIMIT ?",
		"SELECT * FROM users LIMIT ALL",
		"SELECT * FROM users LIMIT 10.5",
		"SELECT * FROM users LIMIT",
	}
	for _, sql := range cases {
		_, err := Normalize(mustClassify(t, sql), 100)
		assert.ErrorIs(t, err, ErrParseAmbiguous, sql)
	}
}

func TestNormalize_LimitArgumentMustStandAlone(t *testing.T) {
	t.Parallel()

	// Each argument reads past its first token: 1e3 lexes as 1 then e3,
	// 100+900 as 100 then an arithmetic tail. Accepting the leading number
	// would ship an effective limit above the ceiling.
	cases := []string{
		"SELECT * FROM customers LIMIT 1e3",
		"SELECT * FROM customers LIMIT 100+900",
		"SELECT * FROM customers LIMIT 100 * 10",
		"SELECT * FROM customers LIMIT 100 abc",
	}
	for _, sql := range cases {
		_, err := Normalize(mustClassify(t, sql), 100)
		assert.ErrorIs(t, err, ErrParseAmbiguous, sql)
	}

	// OFFSET and FETCH legitimately continue the clause.
	norm := normalize(t, "SELECT * FROM customers LIMIT 10 OFFSET 5", 100)
	assert.Equal(t, "SELECT * FROM customers LIMIT 10 OFFSET 5", norm.SQL)
	assert.Equal(t, 10, norm.Limit)
}

func TestNormalize_InvalidCeiling(t *testing.T) {
	t.Parallel()
	stmt := mustClassify(t, "SELECT 1")
	_, err := Normalize(stmt, 0)
	assert.Error(t, err)
	_, err = Normalize(stmt, -5)
	assert.Error(t, err)
}
