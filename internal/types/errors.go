package types

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrValidation      = errors.New("validation error")
	ErrAlreadyExists   = errors.New("already exists")
	ErrConflict        = errors.New("conflict")
)
