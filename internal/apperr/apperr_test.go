package apperr

import (
	"errors"
	"net/http"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOfFollowsWrapping(t *testing.T) {
	err := pkgerrors.Wrap(Conflict("destination table %d is occupied", 4), "transfer")
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, "destination table 4 is occupied", Message(err))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindOf(err)))
}

func TestUnknownErrorsAreInternal(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "internal server error", Message(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindOf(err)))
}

func TestDatabaseErrorHidesCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Database(cause, "failed to load session")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to load session", Message(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindOf(err)))
}

func TestStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindValidation: http.StatusBadRequest,
		KindNotFound:   http.StatusNotFound,
		KindConflict:   http.StatusBadRequest,
		KindAuth:       http.StatusUnauthorized,
		KindForbidden:  http.StatusForbidden,
		KindDatabase:   http.StatusInternalServerError,
		KindInternal:   http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, HTTPStatus(kind), kind.String())
	}
}
