package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/ward-stats/internal/division"
)

// --- Polling Place Mock ---

type mockPollingClient struct {
	mock.Mock
}

func (m *mockPollingClient) Lookup(ctx context.Context, code division.Code) (string, error) {
	args := m.Called(ctx, code)
	return args.String(0), args.Error(1)
}
