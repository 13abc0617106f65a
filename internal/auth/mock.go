package auth

import (
	"context"

	"github.com/npezzotti/tactics-board/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) Verify(ctx context.Context, token string) (types.Identity, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(types.Identity), args.Error(1)
}
