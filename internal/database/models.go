package database

import (
	"time"

	"github.com/npezzotti/tactics-board/internal/types"
)

type Account struct {
	Id           int
	Username     string
	EmailAddress string
	Role         types.Role
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// User converts the account to its API form without the password hash.
func (a Account) User() types.User {
	return types.User{
		Id:           a.Id,
		Username:     a.Username,
		EmailAddress: a.EmailAddress,
		Role:         a.Role,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	Role         types.Role
	PasswordHash string
}
