package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/npezzotti/tactics-board/internal/server"
	"github.com/npezzotti/tactics-board/internal/types"
	"github.com/stretchr/testify/assert"
)

func Test_errorFor(t *testing.T) {
	tcases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: name: failed required", types.ErrValidation), http.StatusBadRequest},
		{server.ErrRoomMissing, http.StatusNotFound},
		{fmt.Errorf("formation %w", types.ErrNotFound), http.StatusNotFound},
		{types.ErrUnauthenticated, http.StatusUnauthorized},
		{types.ErrUnauthorized, http.StatusForbidden},
		{server.ErrRoomExists, http.StatusConflict},
		{types.ErrConflict, http.StatusConflict},
		{errors.New("db error"), http.StatusInternalServerError},
	}

	for _, tc := range tcases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.Equal(t, tc.code, errorFor(tc.err).StatusCode)
		})
	}

	verr := errorFor(fmt.Errorf("%w: name: failed required", types.ErrValidation))
	assert.Equal(t, "validation error: name: failed required", verr.Message, "expected validation details in the message")

	ierr := errorFor(errors.New("pq: connection refused"))
	assert.Equal(t, "internal server error", ierr.Message, "expected internal details to be hidden")
	assert.ErrorContains(t, ierr, "connection refused")
}

func TestApiError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewInternalServerError(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal server error: boom", err.Error())
	assert.Equal(t, "not found", NewNotFoundError().Error())
}
