package suggest

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockSuggester struct {
	mock.Mock
}

func (m *MockSuggester) Suggest(ctx context.Context, req Request) ([]string, error) {
	args := m.Called(ctx, req)
	if s, ok := args.Get(0).([]string); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
