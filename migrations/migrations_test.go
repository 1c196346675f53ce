package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatementsPerDialect(t *testing.T) {
	my, err := Statements("mysql")
	require.NoError(t, err)
	pg, err := Statements("pgx")
	require.NoError(t, err)
	require.Len(t, my, len(schema))

	for i := range my {
		assert.NotContains(t, my[i], "{{")
		assert.NotContains(t, pg[i], "{{")
	}
	assert.Contains(t, my[0], "DATETIME(6)")
	assert.Contains(t, pg[0], "TIMESTAMPTZ")
	assert.True(t, strings.Contains(pg[1], "NUMERIC(10,2)"))

	_, err = Statements("sqlite")
	assert.Error(t, err)
}
