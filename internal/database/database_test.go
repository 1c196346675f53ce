package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDSNForcesParseTime(t *testing.T) {
	dsn, err := NormalizeDSN("mysql", "app:secret@tcp(db:3306)/tableorder")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "tcp(db:3306)/tableorder")

	_, err = NormalizeDSN("mysql", "app:secret@tcp(db:3306")
	assert.Error(t, err)

	pg := "postgres://app@db:5432/tableorder?sslmode=disable"
	out, err := NormalizeDSN("pgx", pg)
	require.NoError(t, err)
	assert.Equal(t, pg, out)
}

func TestOpenGivesUpAfterRetries(t *testing.T) {
	RetryDelay = 0
	_, err := Open(context.Background(), "no-such-driver", "dsn", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}
