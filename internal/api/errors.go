package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/npezzotti/tactics-board/internal/types"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func newApiError(code int) *ApiError {
	return &ApiError{
		StatusCode: code,
		Message:    lower(http.StatusText(code)),
	}
}

func NewBadRequestError() *ApiError {
	return newApiError(http.StatusBadRequest)
}

// NewValidationError reports which fields were rejected.
func NewValidationError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusBadRequest,
		Message:    err.Error(),
		Err:        err,
	}
}

func NewNotFoundError() *ApiError {
	return newApiError(http.StatusNotFound)
}

func NewInternalServerError(err error) *ApiError {
	e := newApiError(http.StatusInternalServerError)
	e.Err = err
	return e
}

func NewUnauthorizedError() *ApiError {
	return newApiError(http.StatusUnauthorized)
}

func NewForbiddenError() *ApiError {
	return newApiError(http.StatusForbidden)
}

func NewConflictError() *ApiError {
	return newApiError(http.StatusConflict)
}

// errorFor maps a domain error onto its HTTP form.
func errorFor(err error) *ApiError {
	switch {
	case errors.Is(err, types.ErrValidation):
		return NewValidationError(err)
	case errors.Is(err, types.ErrNotFound):
		return NewNotFoundError()
	case errors.Is(err, types.ErrUnauthenticated):
		return NewUnauthorizedError()
	case errors.Is(err, types.ErrUnauthorized):
		return NewForbiddenError()
	case errors.Is(err, types.ErrAlreadyExists), errors.Is(err, types.ErrConflict):
		return NewConflictError()
	}

	return NewInternalServerError(err)
}
