package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_JSONShape(t *testing.T) {
	t.Parallel()
	env := Envelope{
		Accepted: true,
		Reason:   ReasonOK,
		Rows:     []map[string]any{{"id": 1}},
		RowCount: 1,
	}
	data, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"accepted":true,"reason":"ok","rows":[{"id":1}],"row_count":1,"truncated":false,"error":null}`, string(data))
}

func TestReject(t *testing.T) {
	t.Parallel()
	env := Reject(ReasonNonSelect, "query rejected: only SELECT statements are allowed (got UPDATE)")
	assert.False(t, env.Accepted)
	assert.Equal(t, ReasonNonSelect, env.Reason)
	assert.Nil(t, env.Rows)
	require.NotNil(t, env.Error)
	assert.Contains(t, *env.Error, "only SELECT")
}
