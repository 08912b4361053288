package advisor

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockSuggester struct {
	mock.Mock
}

func (m *MockSuggester) Suggest(ctx context.Context, description string) (string, bool) {
	args := m.Called(ctx, description)
	return args.String(0), args.Bool(1)
}
