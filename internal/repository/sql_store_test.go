package repository

import (
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"table-ordering-service/internal/entity"
)

func TestIsDuplicate(t *testing.T) {
	assert.True(t, isDuplicate(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.True(t, isDuplicate(pkgerrors.Wrap(&pgconn.PgError{Code: "23505"}, "insert")))
	assert.False(t, isDuplicate(&mysql.MySQLError{Number: 1213}))
	assert.False(t, isDuplicate(errors.New("other")))
}

func TestMustAffect(t *testing.T) {
	assert.ErrorIs(t, mustAffect(0, nil, ErrStaleVersion), ErrStaleVersion)
	assert.NoError(t, mustAffect(1, nil, ErrStaleVersion))
	boom := errors.New("boom")
	assert.ErrorIs(t, mustAffect(0, boom, ErrNotFound), boom)
}

func TestPlaceholdersAreRebound(t *testing.T) {
	q := `UPDATE tables SET current_pin = ? WHERE id = ? AND current_pin IS NULL`
	assert.Equal(t, q, sqlx.Rebind(sqlx.BindType("mysql"), q))
	assert.Equal(t,
		`UPDATE tables SET current_pin = $1 WHERE id = $2 AND current_pin IS NULL`,
		sqlx.Rebind(sqlx.BindType("pgx"), q))
}

func TestStatusStrings(t *testing.T) {
	assert.Equal(t, []string{"placed", "served"}, orderStatusStrings([]entity.OrderStatus{entity.OrderPlaced, entity.OrderServed}))
	assert.Equal(t, []string{"pending"}, notificationStatusStrings([]entity.NotificationStatus{entity.NotificationPending}))
	assert.Nil(t, nullString(""))
	assert.Equal(t, "x", *nullString("x"))
}
