// Package mocks provides mock implementations for testing.
package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/oar-cd/pushdeploy/launcher"
)

// MockLauncher implements webhook.Launcher for testing
type MockLauncher struct {
	mock.Mock
}

func (m *MockLauncher) Launch(repository string) launcher.Result {
	args := m.Called(repository)
	return args.Get(0).(launcher.Result)
}
