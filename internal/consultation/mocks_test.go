package consultation_test

import (
	"astrochat/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockNotifier records pushes with testify/mock.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendTo(userID string, evt models.Event) bool {
	args := m.Called(userID, evt)
	return args.Bool(0)
}

func (m *MockNotifier) Broadcast(evt models.Event) {
	m.Called(evt)
}

func (m *MockNotifier) OnlineIDs() []string {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}

// eventNamed matches an Event argument by name.
func eventNamed(name string) interface{} {
	return mock.MatchedBy(func(evt models.Event) bool { return evt.Name == name })
}
