package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/oar-cd/pushdeploy/domain"
)

// MockNotifier implements the Notifier seams of webhook and launcher
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(outcome domain.Outcome) {
	m.Called(outcome)
}

// MockSink implements notify.Sink for testing
type MockSink struct {
	mock.Mock
}

func (m *MockSink) Send(ctx context.Context, message string) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}
